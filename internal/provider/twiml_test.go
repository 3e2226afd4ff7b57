package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderTwiMLMessage(t *testing.T) {
	body, err := renderTwiML(ResponseOptions{Message: "Hello from your assistant"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(body, "<?xml"))
	require.Contains(t, body, "<Response>")
	require.Contains(t, body, "Hello from your assistant")
	require.Contains(t, body, "<Say")
	require.NotContains(t, body, "<Gather")
	require.NotContains(t, body, "<Record")
}

func TestRenderTwiMLGather(t *testing.T) {
	body, err := renderTwiML(ResponseOptions{Message: "How can I help?", GatherInput: true})
	require.NoError(t, err)

	require.Contains(t, body, "<Gather")
	require.Contains(t, body, `input="speech dtmf"`)
	require.Contains(t, body, "How can I help?")
}

func TestRenderTwiMLRecord(t *testing.T) {
	body, err := renderTwiML(ResponseOptions{
		Message:              "Leave a message",
		RecordingEnabled:     true,
		TranscriptionEnabled: true,
	})
	require.NoError(t, err)

	require.Contains(t, body, "<Record")
	require.Contains(t, body, `transcribe="true"`)
}

func TestRenderTwiMLEmptyMessagePauses(t *testing.T) {
	body, err := renderTwiML(ResponseOptions{})
	require.NoError(t, err)

	require.Contains(t, body, "<Pause")
}
