package provider

// Status is the application's own call-state vocabulary, independent of any
// vendor's naming.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no-answer"
	StatusCanceled   Status = "canceled"
)

// Terminal reports whether no further lifecycle transition is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	default:
		return false
	}
}

var statusToTwilio = map[Status]string{
	StatusQueued:     "queued",
	StatusRinging:    "ringing",
	StatusInProgress: "in-progress",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
	StatusBusy:       "busy",
	StatusNoAnswer:   "no-answer",
	StatusCanceled:   "canceled",
}

var statusFromTwilio = map[string]Status{
	"queued":      StatusQueued,
	"initiated":   StatusQueued,
	"ringing":     StatusRinging,
	"in-progress": StatusInProgress,
	"completed":   StatusCompleted,
	"failed":      StatusFailed,
	"busy":        StatusBusy,
	"no-answer":   StatusNoAnswer,
	"canceled":    StatusCanceled,
}

var statusToVapi = map[Status]string{
	StatusQueued:     "starting",
	StatusRinging:    "ringing",
	StatusInProgress: "in_progress",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
	StatusBusy:       "busy",
	StatusNoAnswer:   "no_answer",
	StatusCanceled:   "canceled",
}

var statusFromVapi = map[string]Status{
	"starting":    StatusQueued,
	"ringing":     StatusRinging,
	"in_progress": StatusInProgress,
	"completed":   StatusCompleted,
	"failed":      StatusFailed,
	"busy":        StatusBusy,
	"no_answer":   StatusNoAnswer,
	"canceled":    StatusCanceled,
}

// ToTwilioStatus translates a normalized status to Twilio's vocabulary.
// Values missing from the table pass through unchanged so status updates are
// never blocked on a table gap.
func ToTwilioStatus(s Status) string {
	if vendor, ok := statusToTwilio[s]; ok {
		return vendor
	}

	return string(s)
}

// FromTwilioStatus translates a Twilio status to the normalized vocabulary,
// passing unknown values through unchanged.
func FromTwilioStatus(vendor string) Status {
	if s, ok := statusFromTwilio[vendor]; ok {
		return s
	}

	return Status(vendor)
}

// ToVapiStatus translates a normalized status to VAPI's vocabulary, passing
// unknown values through unchanged.
func ToVapiStatus(s Status) string {
	if vendor, ok := statusToVapi[s]; ok {
		return vendor
	}

	return string(s)
}

// FromVapiStatus translates a VAPI status to the normalized vocabulary,
// passing unknown values through unchanged.
func FromVapiStatus(vendor string) Status {
	if s, ok := statusFromVapi[vendor]; ok {
		return s
	}

	return Status(vendor)
}
