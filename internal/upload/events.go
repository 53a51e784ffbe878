package upload

import (
	"time"

	"github.com/zoobzio/hookz"
)

type Kind string

const (
	KindAccident Kind = "accident"
	KindPlate    Kind = "plate"
)

func (k Kind) Valid() bool {
	return k == KindAccident || k == KindPlate
}

// EventCompleted fires once per applied upload completion, success or failure.
const EventCompleted = hookz.Key("upload.completed")

// Outcome is the kind-independent description of a finished upload.
type Outcome struct {
	Text     string
	Severity string
	Entities int
}

type Event struct {
	Kind     Kind
	Request  uint64
	Status   Status
	Outcome  Outcome
	Duration time.Duration
	Err      error
	At       time.Time
}

// Observer receives upload measurements. Elapsed time is diagnostic only.
type Observer interface {
	UploadCompleted(kind, outcome string, elapsed time.Duration)
	UploadRejected(kind, reason string)
}

type nopObserver struct{}

func (nopObserver) UploadCompleted(string, string, time.Duration) {}
func (nopObserver) UploadRejected(string, string)                 {}
