package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// RunStatus describes where a run is in its lifecycle.
type RunStatus string

const (
	// PendingStatus is assigned when a run has been created but not picked
	// up by the pipeline yet.
	PendingStatus RunStatus = "Pending"
	// GeneratingStatus means the generator request is in flight.
	GeneratingStatus RunStatus = "Generating"
	// ExecutingStatus means the generated tests are running in the sandbox.
	ExecutingStatus RunStatus = "Executing"
	// PassedStatus means every generated test passed (exit code zero).
	PassedStatus RunStatus = "Passed"
	// FailedStatus means the tests executed but at least one failed.
	FailedStatus RunStatus = "Failed"
	// ErroredStatus means the pipeline itself failed before a verdict.
	ErroredStatus RunStatus = "Errored"
)

// Statuses lists all statuses in lifecycle order.
var Statuses = []RunStatus{
	PendingStatus,
	GeneratingStatus,
	ExecutingStatus,
	PassedStatus,
	FailedStatus,
	ErroredStatus,
}

// NewRunStatus attempts to parse a string into a standard RunStatus value.
func NewRunStatus(s string) (RunStatus, error) {
	for _, ss := range Statuses {
		if s == string(ss) {
			return ss, nil
		}
	}
	return PendingStatus, errors.New("could not convert a string to a RunStatus")
}

// Terminal reports whether a run in this status will not change anymore.
func (s RunStatus) Terminal() bool {
	return s == PassedStatus || s == FailedStatus || s == ErroredStatus
}

// Compare determines the equality of two statuses following lifecycle order.
//
// It returns -1, 0 or 1 if s is smaller, equal or bigger than the given
// RunStatus, respectively.
func (s RunStatus) Compare(s2 RunStatus) int {
	var i1, i2 int

	for i1 = 0; i1 < len(Statuses); i1 = i1 + 1 {
		if s == Statuses[i1] {
			break
		}
	}
	for i2 = 0; i2 < len(Statuses); i2 = i2 + 1 {
		if s2 == Statuses[i2] {
			break
		}
	}

	return i1 - i2
}

// Scan implements the sql.Scanner interface.
func (s *RunStatus) Scan(value interface{}) error {
	val, ok := value.(string)
	if !ok {
		return fmt.Errorf("could not scan a RunStatus from a non-string input")
	}

	var err error
	*s, err = NewRunStatus(val)
	return err
}

// Value implements the driver.Valuer interface.
func (s RunStatus) Value() (driver.Value, error) {
	return string(s), nil
}
