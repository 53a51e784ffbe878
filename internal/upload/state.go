package upload

import "time"

type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// State is the session state of one controller. Result is only set for
// StatusSuccess and Message only for StatusFailed; the constructors below are
// the only way states are built.
type State[R any] struct {
	Status   Status        `json:"status"`
	Result   R             `json:"result,omitempty"`
	Message  string        `json:"message,omitempty"`
	Request  uint64        `json:"request"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

func idleState[R any]() State[R] {
	return State[R]{Status: StatusIdle}
}

func uploadingState[R any](request uint64) State[R] {
	return State[R]{Status: StatusUploading, Request: request}
}

func successState[R any](request uint64, result R, elapsed time.Duration) State[R] {
	return State[R]{Status: StatusSuccess, Result: result, Request: request, Duration: elapsed}
}

func failedState[R any](request uint64, message string, elapsed time.Duration) State[R] {
	return State[R]{Status: StatusFailed, Message: message, Request: request, Duration: elapsed}
}

// Succeeded returns the result of a successful upload.
func (s State[R]) Succeeded() (R, bool) {
	if s.Status != StatusSuccess {
		var zero R
		return zero, false
	}
	return s.Result, true
}

// Failure returns the user-facing failure message.
func (s State[R]) Failure() (string, bool) {
	if s.Status != StatusFailed {
		return "", false
	}
	return s.Message, true
}

func (s State[R]) InFlight() bool {
	return s.Status == StatusUploading
}
