package detector

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("accident record not found")

// TransportError covers network failures, non-2xx statuses and unreadable
// bodies. It is never retried.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("detector %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("detector %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
