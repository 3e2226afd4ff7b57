package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var normalizedStatuses = []Status{
	StatusQueued,
	StatusRinging,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusBusy,
	StatusNoAnswer,
	StatusCanceled,
}

func TestTwilioStatusRoundTrip(t *testing.T) {
	for _, status := range normalizedStatuses {
		require.Equal(t, status, FromTwilioStatus(ToTwilioStatus(status)), "status %s", status)
	}
}

func TestVapiStatusRoundTrip(t *testing.T) {
	for _, status := range normalizedStatuses {
		require.Equal(t, status, FromVapiStatus(ToVapiStatus(status)), "status %s", status)
	}
}

func TestTwilioInitiatedMapsToQueued(t *testing.T) {
	require.Equal(t, StatusQueued, FromTwilioStatus("initiated"))
}

func TestVapiVocabulary(t *testing.T) {
	require.Equal(t, "starting", ToVapiStatus(StatusQueued))
	require.Equal(t, "in_progress", ToVapiStatus(StatusInProgress))
	require.Equal(t, StatusNoAnswer, FromVapiStatus("no_answer"))
}

func TestUnknownStatusPassesThrough(t *testing.T) {
	require.Equal(t, Status("paused"), FromTwilioStatus("paused"))
	require.Equal(t, Status("paused"), FromVapiStatus("paused"))
	require.Equal(t, "paused", ToTwilioStatus(Status("paused")))
	require.Equal(t, "paused", ToVapiStatus(Status("paused")))
}

func TestTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled}
	for _, status := range terminal {
		require.True(t, status.Terminal(), "status %s", status)
	}

	active := []Status{StatusScheduled, StatusQueued, StatusRinging, StatusInProgress}
	for _, status := range active {
		require.False(t, status.Terminal(), "status %s", status)
	}
}
