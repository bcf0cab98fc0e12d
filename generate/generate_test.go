package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
	"github.com/Cobb-ukr/ai-test-agent/llm"
	"github.com/Cobb-ukr/ai-test-agent/sandbox"
)

type fakeGenerator struct {
	tests string
	err   error
}

func (g fakeGenerator) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if g.err != nil {
		return llm.Result{}, g.err
	}
	return llm.Result{Raw: g.tests, Tests: g.tests}, nil
}

type fakeRunner struct {
	result *sandbox.Result
	err    error
}

func (r fakeRunner) Run(ctx context.Context, job sandbox.Job) (*sandbox.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

// fakeStore records runs in memory and signals when one reaches a terminal
// status.
type fakeStore struct {
	database.Datastore

	mu            sync.Mutex
	nextID        int
	runs          map[int]database.Run
	notifications []database.RunNotification
	terminal      chan int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:     make(map[int]database.Run),
		terminal: make(chan int, 1),
	}
}

func (s *fakeStore) InsertRun(run database.Run) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	run.ID = s.nextID
	s.runs[run.ID] = run
	return run.ID, nil
}

func (s *fakeStore) UpdateRun(run database.Run) error {
	s.mu.Lock()
	if _, ok := s.runs[run.ID]; !ok {
		s.mu.Unlock()
		return commonerr.ErrNotFound
	}
	s.runs[run.ID] = run
	s.mu.Unlock()

	if run.Status.Terminal() {
		s.terminal <- run.ID
	}
	return nil
}

func (s *fakeStore) FindRun(id int) (database.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return database.Run{}, commonerr.ErrNotFound
	}
	return run, nil
}

func (s *fakeStore) InsertRunNotification(notification database.RunNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notification)
	return nil
}

func waitTerminal(t *testing.T, store *fakeStore) database.Run {
	t.Helper()
	select {
	case id := <-store.terminal:
		run, err := store.FindRun(id)
		if err != nil {
			t.Fatalf("FindRun: %v", err)
		}
		return run
	case <-time.After(5 * time.Second):
		t.Fatalf("run never reached a terminal status")
		return database.Run{}
	}
}

func TestStartRunPassed(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store,
		fakeGenerator{tests: "def test_add(): pass"},
		fakeRunner{result: &sandbox.Result{Stdout: []byte("1 passed in 0.01s\n"), ExitCode: 0}},
		0, time.Minute)

	runID, err := svc.StartRun(database.Submission{
		Model:    database.Model{ID: 7},
		Language: "python",
		Function: "add",
		Source:   "def add(a, b): return a + b",
	})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run := waitTerminal(t, store)
	if run.ID != runID {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Status != database.PassedStatus {
		t.Fatalf("expected passed, got %s", run.Status)
	}
	if run.GeneratedTests != "def test_add(): pass" {
		t.Fatalf("generated tests not stored: %q", run.GeneratedTests)
	}
	if !strings.Contains(run.Summary, "1 passed") {
		t.Fatalf("summary not extracted: %q", run.Summary)
	}
	if run.Finished.IsZero() {
		t.Fatalf("finished time not set")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.notifications) != 1 || store.notifications[0].RunID != runID {
		t.Fatalf("notification not queued: %+v", store.notifications)
	}
}

func TestStartRunFailedVerdict(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store,
		fakeGenerator{tests: "def test_add(): assert False"},
		fakeRunner{result: &sandbox.Result{Stdout: []byte("1 failed in 0.01s\n"), ExitCode: 1}},
		0, time.Minute)

	if _, err := svc.StartRun(database.Submission{Model: database.Model{ID: 7}}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run := waitTerminal(t, store)
	if run.Status != database.FailedStatus {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if run.ExitCode != 1 {
		t.Fatalf("exit code not stored: %d", run.ExitCode)
	}
}

func TestStartRunGeneratorError(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store,
		fakeGenerator{err: errors.New("model unavailable")},
		fakeRunner{},
		0, time.Minute)

	if _, err := svc.StartRun(database.Submission{Model: database.Model{ID: 7}}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run := waitTerminal(t, store)
	if run.Status != database.ErroredStatus {
		t.Fatalf("expected errored, got %s", run.Status)
	}
	if !strings.Contains(run.FailureReason, "model unavailable") {
		t.Fatalf("failure reason not stored: %q", run.FailureReason)
	}
}

func TestExecuteCallsBackBetweenStages(t *testing.T) {
	var callbackTests string
	tests, result, summary, err := Execute(context.Background(),
		fakeGenerator{tests: "def test_x(): pass"},
		fakeRunner{result: &sandbox.Result{Stdout: []byte("2 passed\n"), ExitCode: 0}},
		Input{
			Language: "python",
			Function: "x",
			Source:   "def x(): pass",
			OnTestsGenerated: func(generated string) {
				callbackTests = generated
			},
		})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if callbackTests != "def test_x(): pass" {
		t.Fatalf("callback did not receive the tests: %q", callbackTests)
	}
	if tests != callbackTests {
		t.Fatalf("returned tests differ from callback: %q", tests)
	}
	if result.ExitCode != 0 || summary != "2 passed" {
		t.Fatalf("unexpected result: %+v summary=%q", result, summary)
	}
}

func TestSummarizePython(t *testing.T) {
	output := `============================= test session starts ==============================
collected 3 items

test_code.py ..F                                                         [100%]

=================================== FAILURES ===================================
________________________________ test_subtract _________________________________
E       assert 2 == 3
=========================== short test summary info ============================
FAILED test_code.py::test_subtract - assert 2 == 3
========================= 1 failed, 2 passed in 0.04s ==========================`

	summary := Summarize("python", output)
	if !strings.Contains(summary, "1 failed, 2 passed") {
		t.Fatalf("verdict line missing: %q", summary)
	}
	if strings.Contains(summary, "collected 3 items") {
		t.Fatalf("noise line kept: %q", summary)
	}
	if strings.Contains(summary, "FAILED test_code.py::test_subtract") {
		t.Fatalf("short-summary line kept: %q", summary)
	}
}

func TestSummarizeGo(t *testing.T) {
	output := `--- FAIL: TestSubtract (0.00s)
    user_code_test.go:12: Subtract(5, 3) = 1, want 2
FAIL
FAIL	usercode	0.002s`

	summary := Summarize("go", output)
	if !strings.Contains(summary, "--- FAIL: TestSubtract") {
		t.Fatalf("verdict line missing: %q", summary)
	}
	if strings.Contains(summary, "want 2") {
		t.Fatalf("detail line kept: %q", summary)
	}

	summary = Summarize("go", "ok  \tusercode\t0.002s\n")
	if !strings.Contains(summary, "ok  ") {
		t.Fatalf("passing verdict missing: %q", summary)
	}
}

func TestNotificationNameUnique(t *testing.T) {
	a := notificationName(12)
	b := notificationName(12)
	if !strings.HasPrefix(a, "run-12-") {
		t.Fatalf("unexpected name: %q", a)
	}
	if a == b {
		t.Fatalf("names are not unique: %q", a)
	}
}
