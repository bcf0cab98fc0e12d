package notification

import (
	"errors"
	"testing"

	"github.com/Cobb-ukr/ai-test-agent/common/stopper"
	"github.com/Cobb-ukr/ai-test-agent/database"
)

type stubSender struct {
	failures int
	calls    int
}

func (s *stubSender) Configure(*Config) (bool, error) { return true, nil }

func (s *stubSender) Send(database.RunNotification) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("unreachable")
	}
	return nil
}

func TestRegisterSenderValidation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic when registering a nil sender")
		}
	}()
	RegisterSender("nil-sender", nil)
}

func TestRegisterAndUnregisterSender(t *testing.T) {
	sender := &stubSender{}
	RegisterSender("stub", sender)
	defer UnregisterSender("stub")

	if _, ok := Senders()["stub"]; !ok {
		t.Fatalf("sender not registered")
	}

	UnregisterSender("stub")
	if _, ok := Senders()["stub"]; ok {
		t.Fatalf("sender not unregistered")
	}
}

func TestDeliverFirstAttempt(t *testing.T) {
	sender := &stubSender{}
	st := stopper.NewStopper()

	ok := deliver(database.RunNotification{Name: "run-1-aa"}, map[string]Sender{"stub": sender}, 3, st)
	if !ok {
		t.Fatalf("delivery should have succeeded")
	}
	if sender.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", sender.calls)
	}
}

func TestDeliverRetries(t *testing.T) {
	sender := &stubSender{failures: 2}
	st := stopper.NewStopper()

	ok := deliver(database.RunNotification{Name: "run-1-aa"}, map[string]Sender{"stub": sender}, 5, st)
	if !ok {
		t.Fatalf("delivery should have succeeded after retries")
	}
	if sender.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", sender.calls)
	}
}

func TestDeliverGivesUp(t *testing.T) {
	sender := &stubSender{failures: 10}
	st := stopper.NewStopper()

	ok := deliver(database.RunNotification{Name: "run-1-aa"}, map[string]Sender{"stub": sender}, 2, st)
	if ok {
		t.Fatalf("delivery should have failed")
	}
	if sender.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", sender.calls)
	}
}

func TestDeliverStopsWithStopper(t *testing.T) {
	sender := &stubSender{failures: 10}
	st := stopper.NewStopper()
	st.Stop()

	ok := deliver(database.RunNotification{Name: "run-1-aa"}, map[string]Sender{"stub": sender}, 5, st)
	if ok {
		t.Fatalf("delivery should abort once the stopper fires")
	}
	if sender.calls != 1 {
		t.Fatalf("expected a single attempt before stopping, got %d", sender.calls)
	}
}
