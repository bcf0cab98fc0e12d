package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	"github.com/Cobb-ukr/ai-test-agent/common/commonerr"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

// fakeStore serves canned rows for the handler tests. Methods that a test
// does not exercise fall through to the embedded nil interface and panic.
type fakeStore struct {
	database.Datastore

	submissions   map[int]database.Submission
	runs          map[int]database.Run
	reports       map[int]database.Report
	notifications map[string]database.RunNotification
}

func (s *fakeStore) FindSubmission(id int, withRuns bool) (database.Submission, error) {
	submission, ok := s.submissions[id]
	if !ok {
		return database.Submission{}, commonerr.ErrNotFound
	}
	return submission, nil
}

func (s *fakeStore) FindRun(id int) (database.Run, error) {
	run, ok := s.runs[id]
	if !ok {
		return database.Run{}, commonerr.ErrNotFound
	}
	return run, nil
}

func (s *fakeStore) FindReport(id int) (database.Report, error) {
	report, ok := s.reports[id]
	if !ok {
		return database.Report{}, commonerr.ErrNotFound
	}
	return report, nil
}

func (s *fakeStore) FindRunNotification(name string) (database.RunNotification, error) {
	notification, ok := s.notifications[name]
	if !ok {
		return database.RunNotification{}, commonerr.ErrNotFound
	}
	return notification, nil
}

func (s *fakeStore) DeleteNotification(name string) error {
	if _, ok := s.notifications[name]; !ok {
		return commonerr.ErrNotFound
	}
	delete(s.notifications, name)
	return nil
}

func params(pairs ...string) httprouter.Params {
	var p httprouter.Params
	for i := 0; i < len(pairs); i += 2 {
		p = append(p, httprouter.Param{Key: pairs[i], Value: pairs[i+1]})
	}
	return p
}

func TestGetSubmission(t *testing.T) {
	env := &Env{Store: &fakeStore{submissions: map[int]database.Submission{
		4: {Model: database.Model{ID: 4}, Language: "python", Function: "add", Source: "def add(a, b): return a + b"},
	}}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/submissions/4", nil)
	_, status := getSubmission(w, r, params("submissionID", "4"), env)

	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}

	var envelope SubmissionEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Submission == nil || envelope.Submission.ID != 4 {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.Submission.Source == "" {
		t.Fatalf("a direct fetch should include the source")
	}
}

func TestGetSubmissionNotFound(t *testing.T) {
	env := &Env{Store: &fakeStore{submissions: map[int]database.Submission{}}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/submissions/99", nil)
	_, status := getSubmission(w, r, params("submissionID", "99"), env)

	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestGetSubmissionBadID(t *testing.T) {
	env := &Env{Store: &fakeStore{}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/submissions/abc", nil)
	_, status := getSubmission(w, r, params("submissionID", "abc"), env)

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPostSubmissionRejectsBadBody(t *testing.T) {
	env := &Env{Store: &fakeStore{}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader("{not json"))
	_, status := postSubmission(w, r, nil, env)

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPostSubmissionRejectsMissingSubmission(t *testing.T) {
	env := &Env{Store: &fakeStore{}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader("{}"))
	_, status := postSubmission(w, r, nil, env)

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPostSubmissionRejectsUnsupportedLanguage(t *testing.T) {
	env := &Env{Store: &fakeStore{}}

	body := `{"Submission":{"Language":"cobol","Function":"f","Source":"x"}}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/submissions", strings.NewReader(body))
	_, status := postSubmission(w, r, nil, env)

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	var envelope SubmissionEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error == nil || !strings.Contains(envelope.Error.Message, "unsupported language") {
		t.Fatalf("unexpected error: %+v", envelope.Error)
	}
}

func TestGetRun(t *testing.T) {
	env := &Env{Store: &fakeStore{runs: map[int]database.Run{
		8: {
			Model:          database.Model{ID: 8},
			SubmissionID:   4,
			Status:         database.PassedStatus,
			GeneratedTests: "def test_add(): pass",
			Output:         "1 passed",
		},
	}}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/runs/8", nil)
	_, status := getRun(w, r, params("runID", "8"), env)

	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}

	var envelope RunEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Run == nil || envelope.Run.Status != "Passed" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if envelope.Run.GeneratedTests == "" {
		t.Fatalf("a direct run fetch should include the generated tests")
	}
}

func TestPostReportRequiresTerminalRun(t *testing.T) {
	env := &Env{Store: &fakeStore{runs: map[int]database.Run{
		8: {Model: database.Model{ID: 8}, SubmissionID: 4, Status: database.ExecutingStatus},
	}}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/runs/8/report", nil)
	_, status := postReport(w, r, params("runID", "8"), env)

	if status != http.StatusConflict {
		t.Fatalf("expected 409 for a non-terminal run, got %d", status)
	}

	var envelope ReportEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error == nil || !strings.Contains(envelope.Error.Message, "no test results") {
		t.Fatalf("unexpected error: %+v", envelope.Error)
	}
}

func TestPostReportRunNotFound(t *testing.T) {
	env := &Env{Store: &fakeStore{runs: map[int]database.Run{}}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/runs/99/report", nil)
	_, status := postReport(w, r, params("runID", "99"), env)

	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestGetNotification(t *testing.T) {
	run := database.Run{Model: database.Model{ID: 8}, Status: database.PassedStatus}
	env := &Env{Store: &fakeStore{notifications: map[string]database.RunNotification{
		"run-8-0a0b": {Name: "run-8-0a0b", RunID: 8, Run: &run},
	}}}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/notifications/run-8-0a0b", nil)
	_, status := getNotification(w, r, params("notificationName", "run-8-0a0b"), env)

	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}

	var envelope NotificationEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Notification == nil || envelope.Notification.Run == nil {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}

func TestDeleteNotification(t *testing.T) {
	store := &fakeStore{notifications: map[string]database.RunNotification{
		"run-8-0a0b": {Name: "run-8-0a0b", RunID: 8},
	}}
	env := &Env{Store: store}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/notifications/run-8-0a0b", nil)
	_, status := deleteNotification(w, r, params("notificationName", "run-8-0a0b"), env)

	if status != http.StatusOK {
		t.Fatalf("unexpected status: %d", status)
	}

	w = httptest.NewRecorder()
	_, status = deleteNotification(w, r, params("notificationName", "run-8-0a0b"), env)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 on the second delete, got %d", status)
	}
}
