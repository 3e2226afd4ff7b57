package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxaide/switchboard/internal/provider"
)

func TestNormalizeVapiStatusEvent(t *testing.T) {
	body := `{
		"event": "call.status",
		"call": {
			"id": "vapi-1",
			"status": "in_progress",
			"customer": {"number": "+15550001111"}
		}
	}`

	event, err := NormalizeVapiEvent(strings.NewReader(body))
	require.NoError(t, err)

	require.Equal(t, KindStatus, event.Kind)
	require.Equal(t, provider.VendorVapi, event.Vendor)
	require.Equal(t, "vapi-1", event.CallID)
	require.Equal(t, provider.StatusInProgress, event.Status)
	require.Equal(t, "+15550001111", event.From)
}

func TestNormalizeVapiCompletedWithDuration(t *testing.T) {
	body := `{
		"event": "call.status",
		"call": {"id": "vapi-2", "status": "completed", "durationSeconds": 90}
	}`

	event, err := NormalizeVapiEvent(strings.NewReader(body))
	require.NoError(t, err)

	require.Equal(t, provider.StatusCompleted, event.Status)
	require.NotNil(t, event.DurationSeconds)
	require.Equal(t, 90, *event.DurationSeconds)
}

func TestNormalizeVapiIncoming(t *testing.T) {
	body := `{"event": "call.incoming", "call": {"id": "vapi-3", "customer": {"number": "+15550001111"}}}`

	event, err := NormalizeVapiEvent(strings.NewReader(body))
	require.NoError(t, err)

	require.Equal(t, KindIncoming, event.Kind)
	require.Equal(t, "+15550001111", event.From)
}

func TestNormalizeVapiRecording(t *testing.T) {
	body := `{
		"event": "call.recording",
		"call": {"id": "vapi-4", "artifact": {"recordingUrl": "https://storage.vapi.ai/rec/1"}}
	}`

	event, err := NormalizeVapiEvent(strings.NewReader(body))
	require.NoError(t, err)

	require.Equal(t, KindRecording, event.Kind)
	require.Equal(t, "https://storage.vapi.ai/rec/1", event.RecordingURL)
}

func TestNormalizeVapiTranscription(t *testing.T) {
	body := `{
		"event": "call.transcription",
		"call": {"id": "vapi-5", "artifact": {"transcript": "thanks, goodbye"}}
	}`

	event, err := NormalizeVapiEvent(strings.NewReader(body))
	require.NoError(t, err)

	require.Equal(t, KindTranscription, event.Kind)
	require.Equal(t, "thanks, goodbye", event.Transcript)
}

func TestNormalizeVapiAnalytics(t *testing.T) {
	body := `{"event": "call.analytics", "call": {"id": "vapi-6"}}`

	event, err := NormalizeVapiEvent(strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, KindAnalytics, event.Kind)
}

func TestNormalizeVapiUnknownEvent(t *testing.T) {
	body := `{"event": "call.teleported", "call": {"id": "vapi-7"}}`

	_, err := NormalizeVapiEvent(strings.NewReader(body))
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestNormalizeVapiMissingCallID(t *testing.T) {
	body := `{"event": "call.status", "call": {"status": "ringing"}}`

	_, err := NormalizeVapiEvent(strings.NewReader(body))
	require.ErrorIs(t, err, ErrMissingCallID)
}

func TestNormalizeVapiMalformedBody(t *testing.T) {
	_, err := NormalizeVapiEvent(strings.NewReader("not json"))
	require.ErrorIs(t, err, ErrMalformedPayload)
}
