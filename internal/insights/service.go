package insights

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sony/gobreaker/v2"
	"github.com/voxaide/switchboard/internal/call"
	"github.com/voxaide/switchboard/internal/circuitbreak"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	json "github.com/goccy/go-json"
)

var (
	ErrNoTranscript  = errors.New("call has no transcript to analyze")
	ErrNoAnalytics   = errors.New("no analytics available for trend analysis")
	ErrEmptyResponse = errors.New("model returned an empty completion")
)

const analysisPrompt = `You are a call analyst for a personal assistant service.
Analyze the call below and answer in exactly this layout:

Summary: one or two sentences.
Insight: one observation per line, each starting with "Insight:".
Key Takeaways:
- bullet list
Action Items:
- bullet list
Recommendations:
- bullet list
`

const trendsPrompt = `You are a call analyst for a personal assistant service.
Review the aggregated analytics of the calls below and answer in exactly this layout:

Summary: one or two sentences on the overall direction.
Insight: one trend per line, each starting with "Insight:".
Recommendations:
- bullet list
`

// buildAnalysisPrompt embeds the call's stored analytics payload, when one
// exists, ahead of the transcript so the model sees both.
func buildAnalysisPrompt(analytics datatypes.JSON, transcript string) string {
	var prompt strings.Builder

	prompt.WriteString(analysisPrompt)

	if len(analytics) > 0 {
		prompt.WriteString("\nCall analytics:\n")
		prompt.Write(analytics)
		prompt.WriteString("\n")
	}

	prompt.WriteString("\nTranscript:\n")
	prompt.WriteString(transcript)

	return prompt.String()
}

func buildTrendsPrompt(payloads []datatypes.JSON) string {
	var prompt strings.Builder

	prompt.WriteString(trendsPrompt)

	for i, payload := range payloads {
		prompt.WriteString("\nCall " + strconv.Itoa(i+1) + " analytics:\n")
		prompt.Write(payload)
		prompt.WriteString("\n")
	}

	return prompt.String()
}

// Store is the slice of persistence the analyzer needs; call.Repository
// implements it.
type Store interface {
	GetCallByID(ctx context.Context, callID string) (*call.Call, error)
	CreateCallAnalysis(ctx context.Context, analysis *call.CallAnalysis) error
}

type Service struct {
	Client         *openai.Client
	CircuitBreaker *gobreaker.CircuitBreaker[string]
	Store          Store
}

func NewService(store Store) *Service {
	opts := []option.RequestOption{
		option.WithAPIKey(config.Conf.OpenAIAPIKey),
		option.WithRequestTimeout(time.Duration(config.Conf.InsightsTimeout) * time.Second),
	}

	if config.Conf.OpenAIBaseUrl != "" {
		opts = append(opts, option.WithBaseURL(config.Conf.OpenAIBaseUrl))
	}

	client := openai.NewClient(opts...)

	return &Service{
		Client:         &client,
		CircuitBreaker: newInsightsCircuitBreaker(),
		Store:          store,
	}
}

func newInsightsCircuitBreaker() *gobreaker.CircuitBreaker[string] {
	settings := gobreaker.Settings{
		Name:     "InsightsClient",
		Interval: time.Duration(config.Conf.InsightsIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Conf.InsightsConsecutiveFailuresCB
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Info("Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.InsightsService)
			}
		},
	}

	return gobreaker.NewCircuitBreaker[string](settings)
}

// AnalyzeCall runs the transcript through the model, parses the answer into
// structured insights, and persists the run.
func (service *Service) AnalyzeCall(ctx context.Context, callID string) (*Analysis, error) {
	callRecord, err := service.Store.GetCallByID(ctx, callID)
	if err != nil {
		return nil, err
	}

	if callRecord.Transcript == nil || *callRecord.Transcript == "" {
		return nil, ErrNoTranscript
	}

	completion, err := service.CircuitBreaker.Execute(func() (string, error) {
		return service.doCompletionRequest(ctx, callID, buildAnalysisPrompt(callRecord.Analytics, *callRecord.Transcript))
	})
	if err != nil {
		return nil, err
	}

	analysis := parseAnalysis(completion)

	payload, err := json.Marshal(analysis)
	if err != nil {
		return nil, err
	}

	err = service.Store.CreateCallAnalysis(ctx, &call.CallAnalysis{
		ID:       uuid.NewString(),
		CallID:   callID,
		Analysis: datatypes.JSON(payload),
		Summary:  analysis.Summary,
	})
	if err != nil {
		return nil, err
	}

	logging.Logger.Info("Call analysis completed",
		zap.String("call_id", callID),
		zap.Int("insights", len(analysis.Insights)),
		zap.Int("action_items", len(analysis.ActionItems)),
	)

	return &analysis, nil
}

// AnalyzeTrends feeds the stored analytics of several calls through the
// model in a single prompt and parses the reply the same way as a per-call
// analysis, yielding insights typed by keyword.
func (service *Service) AnalyzeTrends(ctx context.Context, callIDs []string) (*Analysis, error) {
	fetched := make([]datatypes.JSON, len(callIDs))

	group, groupCtx := errgroup.WithContext(ctx)

	for i, callID := range callIDs {
		group.Go(func() error {
			callRecord, err := service.Store.GetCallByID(groupCtx, callID)
			if err != nil {
				return err
			}

			fetched[i] = callRecord.Analytics

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	var payloads []datatypes.JSON

	for _, payload := range fetched {
		if len(payload) > 0 {
			payloads = append(payloads, payload)
		}
	}

	if len(payloads) == 0 {
		return nil, ErrNoAnalytics
	}

	completion, err := service.CircuitBreaker.Execute(func() (string, error) {
		return service.doCompletionRequest(ctx, "trends", buildTrendsPrompt(payloads))
	})
	if err != nil {
		return nil, err
	}

	analysis := parseAnalysis(completion)

	logging.Logger.Info("Trend analysis completed",
		zap.Int("calls", len(payloads)),
		zap.Int("insights", len(analysis.Insights)),
	)

	return &analysis, nil
}

// CustomerProfile aggregates what the service knows about a caller.
// Preference extraction and interaction scoring have no data source yet, so
// those fields stay empty until one exists.
type CustomerProfile struct {
	UserID           string   `json:"user_id"`
	Preferences      []string `json:"preferences"`
	InteractionScore *float64 `json:"interaction_score"`
}

// GenerateCustomerProfile returns the profile skeleton for a user.
func (service *Service) GenerateCustomerProfile(_ context.Context, userID string) (*CustomerProfile, error) {
	return &CustomerProfile{
		UserID:      userID,
		Preferences: []string{},
	}, nil
}

func (service *Service) doCompletionRequest(ctx context.Context, label, prompt string) (string, error) {
	startTime := time.Now()
	defer func() {
		prometheus.InsightsRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if ctx.Err() != nil {
		logging.Logger.Warn("[doCompletionRequest] Context already canceled before starting request",
			zap.String("label", label),
			zap.Error(ctx.Err()),
		)

		return "", ctx.Err()
	}

	var content string

	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				logging.Logger.Warn("[doCompletionRequest] Context canceled during retry",
					zap.String("label", label),
					zap.Error(ctx.Err()),
				)

				return ctx.Err()
			}

			completion, err := service.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
				Model: openai.ChatModel(config.Conf.InsightsModel),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.UserMessage(prompt),
				},
			})
			if err != nil {
				logging.Logger.Error("Insights completion request failed",
					zap.String("label", label),
					zap.String("error", err.Error()),
				)

				return err
			}

			if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
				return ErrEmptyResponse
			}

			content = completion.Choices[0].Message.Content

			return nil
		},
		retry.Attempts(config.Conf.InsightsRetryMaxAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(time.Duration(config.Conf.InsightsRetryMinBackoff)*time.Second),
		retry.MaxDelay(time.Duration(config.Conf.InsightsRetryMaxBackoff)*time.Second),
	)
	if err != nil {
		return "", err
	}

	return content, nil
}
