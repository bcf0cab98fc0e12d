package notification

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/common/stopper"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

const (
	checkInterval   = 5 * time.Minute
	maxBackOff      = 15 * time.Minute
	initialBackOff  = 500 * time.Millisecond
	defaultAttempts = 5
)

// Run is the Notifier service: it polls the datastore for deliverable run
// notifications and hands them to every enabled sender.
func Run(config *Config, datastore database.Datastore, st *stopper.Stopper) {
	defer st.End()

	// Do not run the notifier if there is no config or no sender is enabled.
	if config == nil {
		log.Info("notifier service is disabled.")
		return
	}
	if config.Attempts == 0 {
		config.Attempts = defaultAttempts
	}
	if config.PollInterval == 0 {
		config.PollInterval = checkInterval
	}

	enabled := configureSenders(config)
	if len(enabled) == 0 {
		log.Info("notifier service is disabled: no sender enabled.")
		return
	}

	log.Info("notifier service started")

	for running := true; running; {
		notification, err := datastore.GetAvailableNotification(time.Now().Add(-config.RenotifyInterval))
		if err != nil {
			if err != commonerr.ErrNotFound {
				log.WithError(err).Warning("could not get notification to send")
			}

			// No notification or error: wait for the next poll.
			if !st.Sleep(config.PollInterval) {
				running = false
			}
			continue
		}

		if deliver(notification, enabled, config.Attempts, st) {
			if err := datastore.SetNotificationNotified(notification.Name); err != nil {
				log.WithError(err).WithField("notification name", notification.Name).Error("could not mark notification as sent")
			}
		}
	}

	log.Info("notifier service stopped")
}

func configureSenders(config *Config) map[string]Sender {
	enabled := make(map[string]Sender)
	for name, sender := range Senders() {
		ok, err := sender.Configure(config)
		if err != nil {
			log.WithError(err).WithField("sender", name).Error("could not configure notification sender")
			continue
		}
		if ok {
			enabled[name] = sender
		}
	}
	return enabled
}

// deliver attempts each sender up to the attempt limit with exponential
// backoff. It returns true when every sender accepted the notification.
func deliver(notification database.RunNotification, senders map[string]Sender, attempts int, st *stopper.Stopper) bool {
	success := true

	for name, sender := range senders {
		backOff := initialBackOff
		sent := false

		for attempt := 1; attempt <= attempts; attempt++ {
			if err := sender.Send(notification); err == nil {
				sent = true
				break
			} else {
				log.WithError(err).WithFields(log.Fields{
					"notification name": notification.Name,
					"sender":            name,
					"attempt":           attempt,
				}).Warning("could not send notification")
			}

			if !st.Sleep(backOff) {
				return false
			}
			backOff *= 2
			if backOff > maxBackOff {
				backOff = maxBackOff
			}
		}

		if !sent {
			success = false
		}
	}

	return success
}
