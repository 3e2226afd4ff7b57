package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/voxaide/switchboard/internal/circuitbreak"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	prometheusSwitchboard "github.com/voxaide/switchboard/internal/prometheus"
	"go.uber.org/zap"
)

const vapiGreeting = "Hi, you have reached your assistant."

// VapiAdapter drives calls through the VAPI voice-agent API. VAPI is the
// only adapter with the scheduling and call-analytics capabilities.
type VapiAdapter struct {
	HTTPClient     *http.Client
	CircuitBreaker *gobreaker.CircuitBreaker[[]byte]
	APIKey         string
	BaseURL        string
	PhoneNumberID  string
	AssistantID    string
}

func NewVapiAdapter() *VapiAdapter {
	return &VapiAdapter{
		HTTPClient: &http.Client{
			Timeout: time.Duration(config.Conf.VapiTimeout) * time.Second,
		},
		CircuitBreaker: newVapiCircuitBreaker(),
		APIKey:         config.Conf.VapiAPIKey,
		BaseURL:        config.Conf.VapiBaseUrl,
		PhoneNumberID:  config.Conf.VapiPhoneNumberID,
		AssistantID:    config.Conf.VapiAssistantID,
	}
}

func newVapiCircuitBreaker() *gobreaker.CircuitBreaker[[]byte] {
	settings := gobreaker.Settings{
		Name:     "VapiAdapter",
		Interval: time.Duration(config.Conf.VapiIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Conf.VapiConsecutiveFailuresCB
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Warn("Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.VapiService)
			}
		},
	}

	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

func (a *VapiAdapter) Vendor() Vendor {
	return VendorVapi
}

func (a *VapiAdapter) MakeCall(ctx context.Context, opts CallOptions) (string, error) {
	if opts.To == "" {
		return "", ErrMissingDestination
	}

	body, err := a.doRequest(ctx, "make_call", http.MethodPost, "/call", a.callPayload(opts, ""))
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return "", &ProviderError{Vendor: VendorVapi, Op: "make_call", Err: err}
	}

	logging.Logger.Info("VAPI call created",
		zap.String("call_id", resp.ID),
		zap.String("to", opts.To),
	)

	return resp.ID, nil
}

// ScheduleCall asks VAPI to place the call no earlier than the given UTC
// instant via the call schedule plan.
func (a *VapiAdapter) ScheduleCall(ctx context.Context, opts ScheduleOptions) (string, error) {
	if opts.To == "" {
		return "", ErrMissingDestination
	}

	body, err := a.doRequest(
		ctx,
		"schedule_call",
		http.MethodPost,
		"/call",
		a.callPayload(opts.CallOptions, opts.EarliestAtUTC),
	)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return "", &ProviderError{Vendor: VendorVapi, Op: "schedule_call", Err: err}
	}

	return resp.ID, nil
}

func (a *VapiAdapter) HandleIncomingCall(ctx context.Context, callID, from string) (VoiceResponse, error) {
	if callID == "" {
		return VoiceResponse{}, ErrMissingCallID
	}

	logging.Logger.Info("Handling incoming VAPI call",
		zap.String("call_id", callID),
		zap.String("from", from),
	)

	return a.GenerateCallResponse(ResponseOptions{
		Message:              vapiGreeting,
		GatherInput:          true,
		RecordingEnabled:     true,
		TranscriptionEnabled: true,
	})
}

func (a *VapiAdapter) UpdateCallStatus(ctx context.Context, callID string, status Status) error {
	if callID == "" {
		return ErrMissingCallID
	}

	payload := map[string]any{"status": ToVapiStatus(status)}
	_, err := a.doRequest(ctx, "update_call_status", http.MethodPatch, "/call/"+callID, payload)

	return err
}

func (a *VapiAdapter) HandleRecording(ctx context.Context, callID, recordingURL string) error {
	if callID == "" {
		return ErrMissingCallID
	}

	payload := map[string]any{
		"artifact": map[string]any{"recordingUrl": recordingURL},
	}
	_, err := a.doRequest(ctx, "handle_recording", http.MethodPatch, "/call/"+callID, payload)

	return err
}

func (a *VapiAdapter) HandleTranscription(ctx context.Context, callID, text string) error {
	if callID == "" {
		return ErrMissingCallID
	}

	payload := map[string]any{
		"artifact": map[string]any{"transcript": text},
	}
	_, err := a.doRequest(ctx, "handle_transcription", http.MethodPatch, "/call/"+callID, payload)

	return err
}

// GenerateCallResponse produces the assistant configuration document VAPI
// expects as the answer to an incoming-call webhook.
func (a *VapiAdapter) GenerateCallResponse(opts ResponseOptions) (VoiceResponse, error) {
	assistant := map[string]any{
		"firstMessage": opts.Message,
		"artifactPlan": map[string]any{
			"recordingEnabled": opts.RecordingEnabled,
		},
		"transcriber": map[string]any{
			"enabled": opts.TranscriptionEnabled,
		},
	}

	if opts.GatherInput {
		assistant["inputMode"] = "speech"
	}

	body, err := json.Marshal(map[string]any{"assistant": assistant})
	if err != nil {
		return VoiceResponse{}, err
	}

	return VoiceResponse{ContentType: "application/json", Body: string(body)}, nil
}

// GetCallAnalytics fetches the provider's analysis blob for a finished call.
func (a *VapiAdapter) GetCallAnalytics(ctx context.Context, callID string) (json.RawMessage, error) {
	if callID == "" {
		return nil, ErrMissingCallID
	}

	body, err := a.doRequest(ctx, "get_call_analytics", http.MethodGet, "/call/"+callID, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Analysis json.RawMessage `json:"analysis"`
	}

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, &ProviderError{Vendor: VendorVapi, Op: "get_call_analytics", Err: err}
	}

	return resp.Analysis, nil
}

func (a *VapiAdapter) callPayload(opts CallOptions, earliestAtUTC string) map[string]any {
	payload := map[string]any{
		"phoneNumberId": a.PhoneNumberID,
		"customer":      map[string]any{"number": opts.To},
		"artifactPlan": map[string]any{
			"recordingEnabled": opts.RecordingEnabled,
			"transcriptPlan":   map[string]any{"enabled": opts.TranscriptionEnabled},
		},
	}

	if a.AssistantID != "" {
		payload["assistantId"] = a.AssistantID
	}

	if opts.Message != "" {
		payload["assistantOverrides"] = map[string]any{"firstMessage": opts.Message}
	}

	if earliestAtUTC != "" {
		payload["schedulePlan"] = map[string]any{"earliestAt": earliestAtUTC}
	}

	return payload
}

func (a *VapiAdapter) doRequest(
	ctx context.Context,
	op, method, path string,
	payload any,
) ([]byte, error) {
	return a.CircuitBreaker.Execute(func() ([]byte, error) {
		timer := prometheus.NewTimer(
			prometheusSwitchboard.ProviderRequestDuration.WithLabelValues(string(VendorVapi), op),
		)
		defer timer.ObserveDuration()

		var result []byte

		err := retry.Do(
			func() error {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}

				body, statusCode, err := a.send(ctx, method, path, payload)
				if err != nil {
					return err
				}

				if statusCode >= http.StatusInternalServerError {
					return &ProviderError{Vendor: VendorVapi, Op: op, StatusCode: statusCode}
				}

				if statusCode >= http.StatusBadRequest {
					return retry.Unrecoverable(
						&ProviderError{Vendor: VendorVapi, Op: op, StatusCode: statusCode},
					)
				}

				result = body

				return nil
			},
			retry.Attempts(config.Conf.VapiRetryMaxAttempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(time.Duration(config.Conf.VapiRetryMinBackoff)*time.Second),
			retry.MaxDelay(time.Duration(config.Conf.VapiRetryMaxBackoff)*time.Second),
		)
		if err != nil {
			logging.Logger.Error("VAPI request failed after all retry attempts",
				zap.String("op", op),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return result, nil
	})
}

func (a *VapiAdapter) send(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}

		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, &ProviderError{Vendor: VendorVapi, Op: method + " " + path, Err: err}
	}

	defer func() {
		cerr := resp.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close response body", zap.String("error", cerr.Error()))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}
