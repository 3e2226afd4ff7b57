package webhook

import (
	"errors"

	"github.com/voxaide/switchboard/internal/provider"
)

var (
	ErrMissingCallID    = errors.New("webhook payload has no call id")
	ErrUnknownEvent     = errors.New("unknown webhook event type")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

type EventKind string

const (
	KindIncoming      EventKind = "incoming"
	KindStatus        EventKind = "status"
	KindRecording     EventKind = "recording"
	KindTranscription EventKind = "transcription"
	KindAnalytics     EventKind = "analytics"
)

// Event is the normalized form every vendor webhook is reduced to before it
// reaches the orchestrator. Exactly the fields for its Kind are set.
type Event struct {
	Kind            EventKind
	Vendor          provider.Vendor
	CallID          string
	From            string
	To              string
	Status          provider.Status
	DurationSeconds *int
	RecordingURL    string
	Transcript      string
}
