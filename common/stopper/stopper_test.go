package stopper

import (
	"testing"
	"time"
)

func TestSleepElapses(t *testing.T) {
	st := NewStopper()
	if !st.Sleep(time.Millisecond) {
		t.Fatalf("Sleep should return true when the duration elapses")
	}
}

func TestSleepInterrupted(t *testing.T) {
	st := NewStopper()

	done := make(chan bool, 1)
	st.Begin()
	go func() {
		defer st.End()
		done <- st.Sleep(time.Minute)
	}()

	st.Stop()

	select {
	case slept := <-done:
		if slept {
			t.Fatalf("Sleep should return false when stopped")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Sleep did not return after Stop")
	}
}
