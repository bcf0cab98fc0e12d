package v1

import (
	"strconv"
	"time"

	"github.com/Cobb-ukr/ai-test-agent/database"
)

// Error is the JSON error body carried by every envelope.
type Error struct {
	Message string `json:"Message,omitempty"`
}

// Submission is the wire representation of a database.Submission.
type Submission struct {
	ID       int    `json:"ID"`
	Language string `json:"Language"`
	Function string `json:"Function"`
	Source   string `json:"Source,omitempty"`
	Created  string `json:"Created,omitempty"`
	Runs     []Run  `json:"Runs,omitempty"`
}

// SubmissionFromDatabaseModel converts a stored submission, optionally with
// its runs attached.
func SubmissionFromDatabaseModel(dbSubmission database.Submission, withSource, withRuns bool) Submission {
	submission := Submission{
		ID:       dbSubmission.ID,
		Language: dbSubmission.Language,
		Function: dbSubmission.Function,
		Created:  formatTime(dbSubmission.Created),
	}
	if withSource {
		submission.Source = dbSubmission.Source
	}
	if withRuns {
		for _, dbRun := range dbSubmission.Runs {
			submission.Runs = append(submission.Runs, RunFromDatabaseModel(dbRun, false))
		}
	}
	return submission
}

// Run is the wire representation of a database.Run.
type Run struct {
	ID             int    `json:"ID"`
	SubmissionID   int    `json:"SubmissionID"`
	Status         string `json:"Status"`
	GeneratedTests string `json:"GeneratedTests,omitempty"`
	Output         string `json:"Output,omitempty"`
	Summary        string `json:"Summary,omitempty"`
	ExitCode       int    `json:"ExitCode"`
	FailureReason  string `json:"FailureReason,omitempty"`
	Created        string `json:"Created,omitempty"`
	Finished       string `json:"Finished,omitempty"`
}

// RunFromDatabaseModel converts a stored run. The generated tests and raw
// output are heavy; they are only included when withDetail is set.
func RunFromDatabaseModel(dbRun database.Run, withDetail bool) Run {
	run := Run{
		ID:            dbRun.ID,
		SubmissionID:  dbRun.SubmissionID,
		Status:        string(dbRun.Status),
		Summary:       dbRun.Summary,
		ExitCode:      dbRun.ExitCode,
		FailureReason: dbRun.FailureReason,
		Created:       formatTime(dbRun.Created),
		Finished:      formatTime(dbRun.Finished),
	}
	if withDetail {
		run.GeneratedTests = dbRun.GeneratedTests
		run.Output = dbRun.Output
	}
	return run
}

// Report is the wire representation of a database.Report.
type Report struct {
	ID       int    `json:"ID"`
	RunID    int    `json:"RunID"`
	Filename string `json:"Filename"`
	Download string `json:"Download"`
	Created  string `json:"Created,omitempty"`
}

// ReportFromDatabaseModel converts a stored report row.
func ReportFromDatabaseModel(dbReport database.Report) Report {
	return Report{
		ID:       dbReport.ID,
		RunID:    dbReport.RunID,
		Filename: dbReport.Filename,
		Download: "/v1/reports/" + strconv.Itoa(dbReport.ID) + "/download",
		Created:  formatTime(dbReport.Created),
	}
}

// Notification is the wire representation of a database.RunNotification.
type Notification struct {
	Name     string `json:"Name"`
	Created  string `json:"Created,omitempty"`
	Notified string `json:"Notified,omitempty"`
	Deleted  string `json:"Deleted,omitempty"`
	Run      *Run   `json:"Run,omitempty"`
}

// NotificationFromDatabaseModel converts a stored notification.
func NotificationFromDatabaseModel(dbNotification database.RunNotification) Notification {
	notification := Notification{
		Name:     dbNotification.Name,
		Created:  formatTime(dbNotification.Created),
		Notified: formatTime(dbNotification.Notified),
		Deleted:  formatTime(dbNotification.Deleted),
	}
	if dbNotification.Run != nil {
		run := RunFromDatabaseModel(*dbNotification.Run, false)
		notification.Run = &run
	}
	return notification
}

// Envelopes.

type SubmissionEnvelope struct {
	Submission *Submission `json:"Submission,omitempty"`
	Error      *Error      `json:"Error,omitempty"`
}

type RunEnvelope struct {
	Run   *Run   `json:"Run,omitempty"`
	Error *Error `json:"Error,omitempty"`
}

type ReportEnvelope struct {
	Report *Report `json:"Report,omitempty"`
	Error  *Error  `json:"Error,omitempty"`
}

type NotificationEnvelope struct {
	Notification *Notification `json:"Notification,omitempty"`
	Error        *Error        `json:"Error,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
