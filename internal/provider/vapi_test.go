package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"github.com/voxaide/switchboard/internal/config"
)

func newTestVapiAdapter(t *testing.T, handler http.HandlerFunc) *VapiAdapter {
	t.Helper()

	config.Conf.VapiRetryMaxAttempts = 1

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &VapiAdapter{
		HTTPClient:     server.Client(),
		CircuitBreaker: newVapiCircuitBreaker(),
		APIKey:         "test-key",
		BaseURL:        server.URL,
		PhoneNumberID:  "pn-1",
		AssistantID:    "asst-1",
	}
}

func TestVapiScheduleCallSendsSchedulePlan(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotAuth   string
		gotBody   map[string]any
	)

	adapter := newTestVapiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"id":"vapi-call-1"}`))
		require.NoError(t, err)
	})

	providerRef, err := adapter.ScheduleCall(context.Background(), ScheduleOptions{
		CallOptions:   CallOptions{To: "+15550001111"},
		EarliestAtUTC: "2024-03-20T14:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, "vapi-call-1", providerRef)

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/call", gotPath)
	require.Equal(t, "Bearer test-key", gotAuth)

	require.Equal(t, "pn-1", gotBody["phoneNumberId"])
	require.Equal(t, "asst-1", gotBody["assistantId"])

	customer, ok := gotBody["customer"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "+15550001111", customer["number"])

	plan, ok := gotBody["schedulePlan"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "2024-03-20T14:00:00Z", plan["earliestAt"])
}

func TestVapiScheduleCallRequiresDestination(t *testing.T) {
	requested := false

	adapter := newTestVapiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		requested = true
	})

	_, err := adapter.ScheduleCall(context.Background(), ScheduleOptions{
		EarliestAtUTC: "2024-03-20T14:00:00Z",
	})
	require.ErrorIs(t, err, ErrMissingDestination)
	require.False(t, requested)
}

func TestVapiMakeCallOmitsSchedulePlan(t *testing.T) {
	var gotBody map[string]any

	adapter := newTestVapiAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"id":"vapi-call-2"}`))
		require.NoError(t, err)
	})

	providerRef, err := adapter.MakeCall(context.Background(), CallOptions{To: "+15550002222"})
	require.NoError(t, err)
	require.Equal(t, "vapi-call-2", providerRef)

	_, hasPlan := gotBody["schedulePlan"]
	require.False(t, hasPlan)
}
