package webhook

import (
	"io"

	"github.com/voxaide/switchboard/internal/provider"

	json "github.com/goccy/go-json"
)

// vapiEnvelope is the JSON body VAPI posts for every server event. The
// "event" field discriminates the payload.
type vapiEnvelope struct {
	Event string `json:"event"`
	Call  struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Customer struct {
			Number string `json:"number"`
		} `json:"customer"`
		DurationSeconds *int `json:"durationSeconds"`
		Artifact        struct {
			RecordingURL string `json:"recordingUrl"`
			Transcript   string `json:"transcript"`
		} `json:"artifact"`
	} `json:"call"`
}

// NormalizeVapiEvent reduces a VAPI server event to the internal Event.
func NormalizeVapiEvent(body io.Reader) (Event, error) {
	var envelope vapiEnvelope

	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return Event{}, ErrMalformedPayload
	}

	if envelope.Call.ID == "" {
		return Event{}, ErrMissingCallID
	}

	event := Event{
		Vendor: provider.VendorVapi,
		CallID: envelope.Call.ID,
		From:   envelope.Call.Customer.Number,
	}

	switch envelope.Event {
	case "call.incoming":
		event.Kind = KindIncoming
	case "call.status":
		event.Kind = KindStatus
		event.Status = provider.FromVapiStatus(envelope.Call.Status)
		event.DurationSeconds = envelope.Call.DurationSeconds
	case "call.recording":
		event.Kind = KindRecording
		event.RecordingURL = envelope.Call.Artifact.RecordingURL
	case "call.transcription":
		event.Kind = KindTranscription
		event.Transcript = envelope.Call.Artifact.Transcript
	case "call.analytics":
		event.Kind = KindAnalytics
	default:
		return Event{}, ErrUnknownEvent
	}

	return event, nil
}
