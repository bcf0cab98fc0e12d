package main

import (
	"errors"
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Cobb-ukr/ai-test-agent/api"
	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/notification"
	"github.com/Cobb-ukr/ai-test-agent/report"
)

var ErrDatasourceNotLoaded = errors.New("could not load configuration: no database source specified")

// File is the yaml configuration file layout.
type File struct {
	AITestAgent Config `yaml:"aitestagent"`
}

// Config is the global configuration for the server.
type Config struct {
	Database  database.RegistrableComponentConfig
	Generator database.RegistrableComponentConfig
	Runner    database.RegistrableComponentConfig
	API       *api.Config
	Report    report.Config
	Notifier  *notification.Config

	// MaxConcurrentRuns bounds the number of runs processed at once.
	MaxConcurrentRuns int `yaml:"maxConcurrentRuns"`

	// RunTimeout bounds one full generation run.
	RunTimeout time.Duration `yaml:"runTimeout"`
}

// DefaultConfig is the default configuration, overridden by the yaml file.
func DefaultConfig() Config {
	return Config{
		Database: database.RegistrableComponentConfig{
			Type: "pgsql",
		},
		Generator: database.RegistrableComponentConfig{
			Type: "groq",
		},
		Runner: database.RegistrableComponentConfig{
			Type: "local",
		},
		API: &api.Config{
			Port:       5000,
			HealthPort: 5001,
			Timeout:    900 * time.Second,
		},
		Report: report.Config{
			Dir:      "reports",
			Renderer: "pandoc",
		},
		Notifier: &notification.Config{
			Attempts:         5,
			RenotifyInterval: 2 * time.Hour,
			PollInterval:     10 * time.Second,
		},
		RunTimeout: 5 * time.Minute,
	}
}

// LoadConfig loads the yaml configuration file at path, after expanding
// environment variable references in it.
func LoadConfig(path string) (config *Config, err error) {
	var cfgFile File
	cfgFile.AITestAgent = DefaultConfig()
	if path == "" {
		return &cfgFile.AITestAgent, nil
	}

	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return
	}
	defer f.Close()

	d, err := ioutil.ReadAll(f)
	if err != nil {
		return
	}

	err = yaml.Unmarshal([]byte(os.ExpandEnv(string(d))), &cfgFile)
	if err != nil {
		return
	}
	config = &cfgFile.AITestAgent

	if config.Database.Type == "pgsql" {
		if source, _ := config.Database.Options["source"].(string); source == "" {
			err = ErrDatasourceNotLoaded
		}
	}

	return
}
