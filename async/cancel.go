package async

import (
	"errors"
	"sync/atomic"
)

// ErrCancelled is the distinguished cancellation error returned by
// CheckCancelled and CancelToken.Err. A pipeline terminates with it when a
// fragment returns it.
var ErrCancelled = errors.New("async: dispatch cancelled")

// CancelSource holds a shared stop flag. It is the only object in the
// library intended to be touched from multiple goroutines.
type CancelSource struct {
	stop atomic.Bool
}

// NewCancelSource creates a CancelSource with the flag cleared.
func NewCancelSource() *CancelSource {
	return &CancelSource{}
}

// RequestStop sets the stop flag.
func (s *CancelSource) RequestStop() {
	s.stop.Store(true)
}

// Reset clears the stop flag.
func (s *CancelSource) Reset() {
	s.stop.Store(false)
}

// Token returns a cheap read-only handle to the source.
func (s *CancelSource) Token() CancelToken {
	return CancelToken{src: s}
}

// CancelToken is a copyable view of a CancelSource. The zero token never
// reports a stop.
type CancelToken struct {
	src *CancelSource
}

// StopRequested reads the stop flag.
func (t CancelToken) StopRequested() bool {
	return t.src != nil && t.src.stop.Load()
}

// Err returns ErrCancelled once a stop has been requested, nil otherwise.
func (t CancelToken) Err() error {
	if t.StopRequested() {
		return ErrCancelled
	}
	return nil
}

// CheckCancelled returns ErrCancelled if the token has observed a stop.
// Fragments call it at logical suspension points; cancellation is strictly
// cooperative.
func CheckCancelled(t CancelToken) error {
	return t.Err()
}
