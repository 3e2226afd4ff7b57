package webhook

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/voxaide/switchboard/internal/provider"
)

func twilioRequest(t *testing.T, form url.Values) *http.Request {
	t.Helper()

	request := httptest.NewRequest(http.MethodPost, "/webhooks/twilio", strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return request
}

func TestNormalizeTwilioStatusEvent(t *testing.T) {
	event, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallSid":      {"CA123"},
		"From":         {"+15550001111"},
		"To":           {"+15550002222"},
		"CallStatus":   {"completed"},
		"CallDuration": {"42"},
	}))
	require.NoError(t, err)

	require.Equal(t, KindStatus, event.Kind)
	require.Equal(t, provider.VendorTwilio, event.Vendor)
	require.Equal(t, "CA123", event.CallID)
	require.Equal(t, provider.StatusCompleted, event.Status)
	require.NotNil(t, event.DurationSeconds)
	require.Equal(t, 42, *event.DurationSeconds)
}

func TestNormalizeTwilioInitiatedStatus(t *testing.T) {
	event, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallSid":    {"CA124"},
		"CallStatus": {"initiated"},
	}))
	require.NoError(t, err)

	require.Equal(t, KindStatus, event.Kind)
	require.Equal(t, provider.StatusQueued, event.Status)
	require.Nil(t, event.DurationSeconds)
}

func TestNormalizeTwilioIncomingCall(t *testing.T) {
	event, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallSid": {"CA125"},
		"From":    {"+15550001111"},
		"To":      {"+15550002222"},
	}))
	require.NoError(t, err)

	require.Equal(t, KindIncoming, event.Kind)
	require.Equal(t, "+15550001111", event.From)
	require.Equal(t, "+15550002222", event.To)
}

func TestNormalizeTwilioRecording(t *testing.T) {
	event, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallSid":      {"CA126"},
		"CallStatus":   {"completed"},
		"RecordingUrl": {"https://api.twilio.com/recordings/RE1"},
	}))
	require.NoError(t, err)

	// A populated RecordingUrl wins over the status field.
	require.Equal(t, KindRecording, event.Kind)
	require.Equal(t, "https://api.twilio.com/recordings/RE1", event.RecordingURL)
}

func TestNormalizeTwilioTranscription(t *testing.T) {
	event, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallSid":           {"CA127"},
		"TranscriptionText": {"hello world"},
	}))
	require.NoError(t, err)

	require.Equal(t, KindTranscription, event.Kind)
	require.Equal(t, "hello world", event.Transcript)
}

func TestNormalizeTwilioMissingCallSid(t *testing.T) {
	_, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallStatus": {"ringing"},
	}))
	require.ErrorIs(t, err, ErrMissingCallID)
}

func TestNormalizeTwilioIgnoresBadDuration(t *testing.T) {
	event, err := NormalizeTwilioEvent(twilioRequest(t, url.Values{
		"CallSid":      {"CA128"},
		"CallStatus":   {"completed"},
		"CallDuration": {"soon"},
	}))
	require.NoError(t, err)
	require.Nil(t, event.DurationSeconds)
}
