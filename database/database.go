package database

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBackendException is an error that occurs when the database backend does
	// not work properly (ie. unreachable).
	ErrBackendException = errors.New("database: an error occured when querying the backend")

	// ErrInconsistent is an error that occurs when a database consistency check
	// fails (i.e. when an entity which is supposed to be unique is detected
	// twice)
	ErrInconsistent = errors.New("database: inconsistent database")
)

// RegistrableComponentConfig is a configuration block that can be used to
// determine which registrable component should be initialized and pass custom
// configuration to it.
type RegistrableComponentConfig struct {
	Type    string
	Options map[string]interface{}
}

var drivers = make(map[string]Driver)

// Driver is a function that opens a Datastore specified by its database driver type and specific
// configuration.
type Driver func(RegistrableComponentConfig) (Datastore, error)

// Register makes a Constructor available by the provided name.
//
// If this function is called twice with the same name or if the Constructor is
// nil, it panics.
func Register(name string, driver Driver) {
	if driver == nil {
		panic("database: could not register nil Driver")
	}
	if _, dup := drivers[name]; dup {
		panic("database: could not register duplicate Driver: " + name)
	}
	drivers[name] = driver
}

// Open opens a Datastore specified by a configuration.
func Open(cfg RegistrableComponentConfig) (Datastore, error) {
	driver, ok := drivers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("database: unknown Driver %q (forgotten configuration or import?)", cfg.Type)
	}
	return driver(cfg)
}

// Datastore represents the required operations on a persistent data store for
// an ai-test-agent deployment.
type Datastore interface {
	// InsertSubmission stores a submitted piece of source code and returns
	// its assigned identifier.
	InsertSubmission(submission Submission) (int, error)

	// FindSubmission retrieves a submission. When withRuns is true, the
	// submission's runs are loaded, most recent first.
	FindSubmission(id int, withRuns bool) (Submission, error)

	// InsertRun creates a new generation run and returns its identifier.
	InsertRun(run Run) (int, error)

	// UpdateRun replaces the mutable fields of an existing run.
	UpdateRun(run Run) error

	// FindRun retrieves a single run.
	FindRun(id int) (Run, error)

	// ListRuns returns all runs attached to a submission, most recent first.
	ListRuns(submissionID int) ([]Run, error)

	// InsertReport records a rendered report artifact.
	InsertReport(report Report) (int, error)

	// FindReport retrieves a report artifact row.
	FindReport(id int) (Report, error)

	// InsertRunNotification creates a pending delivery for a finished run.
	InsertRunNotification(notification RunNotification) error

	// GetAvailableNotification returns the oldest notification that has not
	// been delivered since the given cutoff and is not deleted.
	GetAvailableNotification(notifiedBefore time.Time) (RunNotification, error)

	// FindRunNotification retrieves a notification by name, with its run
	// hydrated.
	FindRunNotification(name string) (RunNotification, error)

	// SetNotificationNotified marks a notification as delivered.
	SetNotificationNotified(name string) error

	// DeleteNotification flags a notification as deleted.
	DeleteNotification(name string) error

	// InsertKeyValue stores (or updates) a single key / value tuple.
	InsertKeyValue(key, value string) error

	// GetKeyValue reads a single key / value tuple, returning an empty
	// string when the key does not exist.
	GetKeyValue(key string) (string, error)

	// Ping verifies that the database is accessible.
	Ping() bool

	// Close closes the database.
	Close()
}
