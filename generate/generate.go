// Package generate drives one generation run end to end: ask the generator
// for a test file, execute it in the sandbox, persist the verdict and queue
// a notification.
package generate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/llm"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
)

const defaultMaxConcurrent = 4

// Service owns the asynchronous run pipeline behind the API.
type Service struct {
	store     database.Datastore
	generator llm.Generator
	runner    sandbox.Runner
	timeout   time.Duration
	sem       chan struct{}
}

// NewService wires the pipeline. maxConcurrent bounds the number of runs in
// flight; zero selects the default.
func NewService(store database.Datastore, generator llm.Generator, runner sandbox.Runner, maxConcurrent int, timeout time.Duration) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Service{
		store:     store,
		generator: generator,
		runner:    runner,
		timeout:   timeout,
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// StartRun creates a pending run for the submission and processes it in the
// background. The run identifier is returned immediately.
func (s *Service) StartRun(submission database.Submission) (int, error) {
	runID, err := s.store.InsertRun(database.Run{
		SubmissionID: submission.ID,
		Status:       database.PendingStatus,
	})
	if err != nil {
		return 0, err
	}

	go s.process(runID, submission)

	return runID, nil
}

func (s *Service) process(runID int, submission database.Submission) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx := context.Background()
	logFields := log.Fields{"run": runID, "submission": submission.ID}

	run := database.Run{
		Model:        database.Model{ID: runID},
		SubmissionID: submission.ID,
		Status:       database.GeneratingStatus,
	}
	if err := s.store.UpdateRun(run); err != nil {
		log.WithError(err).WithFields(logFields).Error("could not mark run as generating")
		return
	}

	generated, result, summary, err := Execute(ctx, s.generator, s.runner, Input{
		Language: submission.Language,
		Function: submission.Function,
		Source:   submission.Source,
		Timeout:  s.timeout,
		OnTestsGenerated: func(tests string) {
			run.GeneratedTests = tests
			run.Status = database.ExecutingStatus
			if err := s.store.UpdateRun(run); err != nil {
				log.WithError(err).WithFields(logFields).Warning("could not mark run as executing")
			}
		},
	})
	if err != nil {
		run.Status = database.ErroredStatus
		run.FailureReason = err.Error()
		run.Finished = time.Now()
		if err := s.store.UpdateRun(run); err != nil {
			log.WithError(err).WithFields(logFields).Error("could not mark run as errored")
		}
		log.WithError(err).WithFields(logFields).Error("run failed")
		return
	}

	run.GeneratedTests = generated
	run.Output = string(result.Stdout)
	if len(result.Stderr) > 0 {
		run.Output += "\n" + string(result.Stderr)
	}
	run.Summary = summary
	run.ExitCode = result.ExitCode
	run.Finished = time.Now()
	if result.ExitCode == 0 {
		run.Status = database.PassedStatus
	} else {
		run.Status = database.FailedStatus
	}

	if err := s.store.UpdateRun(run); err != nil {
		log.WithError(err).WithFields(logFields).Error("could not store run verdict")
		return
	}

	notification := database.RunNotification{
		Name:  notificationName(runID),
		RunID: runID,
	}
	if err := s.store.InsertRunNotification(notification); err != nil {
		log.WithError(err).WithFields(logFields).Warning("could not queue run notification")
	}

	log.WithFields(logFields).WithField("status", run.Status).Info("run finished")
}

// Input is one pipeline invocation, independent of any datastore.
type Input struct {
	Language string
	Function string
	Source   string
	Timeout  time.Duration

	// OnTestsGenerated fires between generation and execution, with the
	// full test file.
	OnTestsGenerated func(tests string)
}

// Execute runs the generator and the sandbox for a single input and returns
// the generated test file, the execution result and the extracted summary.
// It is used by the pipeline service and by the one-shot CLI.
func Execute(ctx context.Context, generator llm.Generator, runner sandbox.Runner, input Input) (string, *sandbox.Result, string, error) {
	genResult, err := generator.Generate(ctx, llm.Request{
		Language: input.Language,
		Function: input.Function,
		Source:   input.Source,
	})
	if err != nil {
		return "", nil, "", err
	}

	if input.OnTestsGenerated != nil {
		input.OnTestsGenerated(genResult.Tests)
	}

	runResult, err := runner.Run(ctx, sandbox.Job{
		Language: input.Language,
		Source:   input.Source,
		Tests:    genResult.Tests,
		Timeout:  input.Timeout,
	})
	if err != nil {
		return genResult.Tests, nil, "", err
	}

	return genResult.Tests, runResult, Summarize(input.Language, string(runResult.Stdout)), nil
}

// summaryMarkers are the substrings that make an output line part of the
// summary shown to users, per language. The lowercase python markers keep
// pytest's uppercase FAILED short-summary lines out of the verdict.
var summaryMarkers = map[string][]string{
	"python": {"passed", "failed", "error"},
	"go":     {"FAIL", "PASS", "ok  "},
}

// Summarize extracts the verdict lines from raw test output.
func Summarize(language, output string) string {
	markers, ok := summaryMarkers[language]
	if !ok {
		markers = summaryMarkers["python"]
	}

	var lines []string
	for _, line := range strings.Split(output, "\n") {
		for _, marker := range markers {
			if strings.Contains(line, marker) {
				lines = append(lines, line)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// notificationName builds a unique, URL-safe notification identifier.
func notificationName(runID int) string {
	var suffix [8]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		// The system randomness source is gone; a timestamp still keeps
		// names unique enough for delivery bookkeeping.
		return fmt.Sprintf("run-%d-%x", runID, time.Now().UnixNano())
	}
	return fmt.Sprintf("run-%d-%s", runID, hex.EncodeToString(suffix[:]))
}
