package stopper

import (
	"sync"
	"time"
)

// Stopper coordinates the graceful termination of long-running services.
// Each service calls Begin when it starts and End when it returns; Stop
// closes the stop channel and blocks until every service has ended.
type Stopper struct {
	wg   sync.WaitGroup
	stop chan struct{}
}

// NewStopper initializes a new Stopper instance.
func NewStopper() *Stopper {
	return &Stopper{stop: make(chan struct{})}
}

// Begin indicates that a service is starting.
func (s *Stopper) Begin() {
	s.wg.Add(1)
}

// End indicates that a service has stopped.
func (s *Stopper) End() {
	s.wg.Done()
}

// Chan returns the channel on which services listen for the stop signal.
func (s *Stopper) Chan() chan struct{} {
	return s.stop
}

// Sleep puts the current goroutine on sleep during a duration.
// Sleep returns false if the stop signal fired before the duration elapsed.
func (s *Stopper) Sleep(sleepDuration time.Duration) bool {
	select {
	case <-time.After(sleepDuration):
		return true
	case <-s.stop:
		return false
	}
}

// Stop asks every service to end and blocks until they all have.
func (s *Stopper) Stop() {
	close(s.stop)
	s.wg.Wait()
}
