package main

import (
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Cobb-ukr/ai-test-agent/api"
	"github.com/Cobb-ukr/ai-test-agent/api/v1"
	"github.com/Cobb-ukr/ai-test-agent/common/stopper"
	"github.com/Cobb-ukr/ai-test-agent/database"
	_ "github.com/Cobb-ukr/ai-test-agent/database/pgsql"
	"github.com/Cobb-ukr/ai-test-agent/generate"
	"github.com/Cobb-ukr/ai-test-agent/llm"
	_ "github.com/Cobb-ukr/ai-test-agent/llm/groq"
	"github.com/Cobb-ukr/ai-test-agent/notification"
	_ "github.com/Cobb-ukr/ai-test-agent/notification/webhook"
	"github.com/Cobb-ukr/ai-test-agent/report"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
	_ "github.com/Cobb-ukr/ai-test-agent/sandbox/docker"
	_ "github.com/Cobb-ukr/ai-test-agent/sandbox/local"
)

func waitForSignals(signals ...os.Signal) {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, signals...)
	<-interrupts
}

const lastBootKey = "boot/last"

// recordBoot persists the boot time in the keyvalue table and returns the
// previous boot time, empty on a first boot.
func recordBoot(db database.Datastore, now time.Time) (string, error) {
	previous, err := db.GetKeyValue(lastBootKey)
	if err != nil {
		return "", err
	}

	if err := db.InsertKeyValue(lastBootKey, now.Format(time.RFC3339)); err != nil {
		return "", err
	}

	return previous, nil
}

// Boot wires the services together and blocks until a shutdown signal
// arrives.
func Boot(config *Config) {
	rand.Seed(time.Now().UnixNano())
	st := stopper.NewStopper()

	db, err := database.Open(config.Database)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if previous, err := recordBoot(db, time.Now()); err != nil {
		log.WithError(err).Warning("could not record the boot time")
	} else if previous != "" {
		log.WithField("previous boot", previous).Info("restarting")
	}

	generator, err := llm.Open(config.Generator)
	if err != nil {
		log.Fatal(err)
	}

	runner, err := sandbox.Open(config.Runner)
	if err != nil {
		log.Fatal(err)
	}

	reports, err := report.NewService(config.Report)
	if err != nil {
		log.Fatal(err)
	}

	runs := generate.NewService(db, generator, runner, config.MaxConcurrentRuns, config.RunTimeout)

	env := &v1.Env{
		Store:   db,
		Runs:    runs,
		Reports: reports,
	}

	st.Begin()
	go api.Run(config.API, env, st)

	st.Begin()
	go api.RunHealth(config.API, db, st)

	st.Begin()
	go notification.Run(config.Notifier, db, st)

	waitForSignals(syscall.SIGINT, syscall.SIGTERM)
	log.Info("received interruption, gracefully stopping ...")
	st.Stop()
}

func main() {
	flagConfigPath := flag.String("config", "/etc/ai-test-agent/config.yaml", "Load configuration from the specified file.")
	flagLogLevel := flag.String("log-level", "info", "Define the logging level.")
	flag.Parse()

	level, err := log.ParseLevel(*flagLogLevel)
	if err != nil {
		log.WithError(err).Fatal("failed to parse the log level")
	}
	log.SetLevel(level)

	config, err := LoadConfig(*flagConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	Boot(config)
}
