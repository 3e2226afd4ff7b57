package insights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/require"
	"github.com/voxaide/switchboard/internal/call"
	"github.com/voxaide/switchboard/internal/config"
	"gorm.io/datatypes"

	json "github.com/goccy/go-json"
)

type fakeStore struct {
	calls    map[string]*call.Call
	analyses []*call.CallAnalysis
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]*call.Call)}
}

func (s *fakeStore) GetCallByID(_ context.Context, callID string) (*call.Call, error) {
	found, ok := s.calls[callID]
	if !ok {
		return nil, call.ErrCallNotFound
	}

	return found, nil
}

func (s *fakeStore) CreateCallAnalysis(_ context.Context, analysis *call.CallAnalysis) error {
	s.analyses = append(s.analyses, analysis)
	return nil
}

// completionServer fakes the chat completion endpoint: it captures the user
// prompt of every request and answers with the given text.
func completionServer(t *testing.T, reply string, prompts *[]string) *Service {
	t.Helper()

	config.Conf.InsightsRetryMaxAttempts = 1

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}

		if err := json.NewDecoder(r.Body).Decode(&request); err == nil && len(request.Messages) > 0 {
			*prompts = append(*prompts, request.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")

		response := map[string]any{
			"id": "cmpl-1",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": reply}},
			},
		}

		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(server.Close)

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(server.URL))

	return &Service{
		Client:         &client,
		CircuitBreaker: newInsightsCircuitBreaker(),
		Store:          newFakeStore(),
	}
}

func transcriptPtr(text string) *string { return &text }

const analysisReply = `Summary: The caller rescheduled their appointment.
Insight: The agent resolved the request on the first attempt.
Key Takeaways:
- Caller prefers morning slots
Action Items:
- Confirm the new slot by text
Recommendations:
- Offer morning slots first
`

func TestAnalyzeCallEmbedsAnalyticsAndTranscript(t *testing.T) {
	var prompts []string

	service := completionServer(t, analysisReply, &prompts)
	store := service.Store.(*fakeStore)

	store.calls["CA300"] = &call.Call{
		CallID:     "CA300",
		Transcript: transcriptPtr("I need to move my Tuesday appointment."),
		Analytics:  datatypes.JSON(`{"sentiment":"positive","talk_ratio":0.4}`),
	}

	analysis, err := service.AnalyzeCall(context.Background(), "CA300")
	require.NoError(t, err)
	require.Equal(t, "The caller rescheduled their appointment.", analysis.Summary)
	require.Len(t, store.analyses, 1)

	require.Len(t, prompts, 1)
	require.Contains(t, prompts[0], `"sentiment":"positive"`)
	require.Contains(t, prompts[0], "I need to move my Tuesday appointment.")
}

func TestAnalyzeCallWithoutAnalytics(t *testing.T) {
	var prompts []string

	service := completionServer(t, analysisReply, &prompts)
	store := service.Store.(*fakeStore)

	store.calls["CA301"] = &call.Call{
		CallID:     "CA301",
		Transcript: transcriptPtr("Just checking my schedule."),
	}

	_, err := service.AnalyzeCall(context.Background(), "CA301")
	require.NoError(t, err)

	require.Len(t, prompts, 1)
	require.NotContains(t, prompts[0], "Call analytics:")
	require.Contains(t, prompts[0], "Just checking my schedule.")
}

func TestAnalyzeCallWithoutTranscript(t *testing.T) {
	var prompts []string

	service := completionServer(t, analysisReply, &prompts)
	store := service.Store.(*fakeStore)

	store.calls["CA302"] = &call.Call{CallID: "CA302"}

	_, err := service.AnalyzeCall(context.Background(), "CA302")
	require.ErrorIs(t, err, ErrNoTranscript)
	require.Empty(t, prompts)
}

const trendsReply = `Summary: Call outcomes are steadily getting better.
Insight: Resolution rates show an increasing pattern week over week.
Insight: Callers consistently mention the reminder feature.
Recommendations:
- Keep the reminder lead time at fifteen minutes
`

func TestAnalyzeTrendsPromptsWithEveryPayload(t *testing.T) {
	var prompts []string

	service := completionServer(t, trendsReply, &prompts)
	store := service.Store.(*fakeStore)

	store.calls["CA310"] = &call.Call{
		CallID:    "CA310",
		Analytics: datatypes.JSON(`{"resolved":true}`),
	}
	store.calls["CA311"] = &call.Call{
		CallID:    "CA311",
		Analytics: datatypes.JSON(`{"resolved":false}`),
	}
	store.calls["CA312"] = &call.Call{CallID: "CA312"}

	analysis, err := service.AnalyzeTrends(context.Background(), []string{"CA310", "CA311", "CA312"})
	require.NoError(t, err)

	require.Len(t, prompts, 1)
	require.Contains(t, prompts[0], "Call 1 analytics:")
	require.Contains(t, prompts[0], "Call 2 analytics:")
	require.Contains(t, prompts[0], `{"resolved":true}`)
	require.Contains(t, prompts[0], `{"resolved":false}`)

	require.Len(t, analysis.Insights, 2)
	require.Equal(t, InsightTrend, analysis.Insights[0].Type)
	require.Equal(t, "Call outcomes are steadily getting better.", analysis.Summary)
}

func TestAnalyzeTrendsWithoutAnalytics(t *testing.T) {
	var prompts []string

	service := completionServer(t, trendsReply, &prompts)
	store := service.Store.(*fakeStore)

	store.calls["CA313"] = &call.Call{CallID: "CA313"}

	_, err := service.AnalyzeTrends(context.Background(), []string{"CA313"})
	require.ErrorIs(t, err, ErrNoAnalytics)
	require.Empty(t, prompts)
}

func TestAnalyzeTrendsUnknownCall(t *testing.T) {
	var prompts []string

	service := completionServer(t, trendsReply, &prompts)

	_, err := service.AnalyzeTrends(context.Background(), []string{"missing"})
	require.ErrorIs(t, err, call.ErrCallNotFound)
	require.Empty(t, prompts)
}
