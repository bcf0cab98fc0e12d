package database

import "time"

// ID is only meant to be used by database implementations and should never be used for anything else.
type Model struct {
	ID int
}

// Submission is a piece of user source code for which tests are generated.
type Submission struct {
	Model

	// Language identifies the sandbox language table entry (e.g. "python").
	Language string

	// Function is the entry point the generated tests import and exercise.
	Function string

	Source  string
	Created time.Time

	// For output purposes. Only loaded when a submission is fetched with
	// its runs.
	Runs []Run
}

// Run is one generate-and-execute cycle over a submission.
type Run struct {
	Model

	SubmissionID int
	Status       RunStatus

	// GeneratedTests is the full test file produced by the generator,
	// including the prepended import preamble.
	GeneratedTests string

	// Output is the raw combined output of the test execution.
	Output string

	// Summary holds only the verdict lines extracted from Output.
	Summary string

	ExitCode int

	// FailureReason is set when the run ends Errored.
	FailureReason string

	Created  time.Time
	Finished time.Time
}

// Report is a rendered PDF artifact for a finished run.
type Report struct {
	Model

	RunID    int
	Filename string
	Path     string
	Created  time.Time
}

// RunNotification tracks the delivery of a run-completed event to the
// configured senders.
type RunNotification struct {
	Model

	Name string

	Created  time.Time
	Notified time.Time
	Deleted  time.Time

	RunID int

	// For output purposes. Hydrated when a notification is handed to a
	// sender.
	Run *Run
}
