package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/voxaide/switchboard/internal/circuitbreak"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	prometheusSwitchboard "github.com/voxaide/switchboard/internal/prometheus"
	"go.uber.org/zap"
)

const twilioGreeting = "Hello, this is your assistant. How can I help you today?"

// TwilioAdapter drives calls and conferences through the Twilio REST API.
// Twilio is the only adapter with the conferencing capability.
type TwilioAdapter struct {
	HTTPClient     *http.Client
	CircuitBreaker *gobreaker.CircuitBreaker[[]byte]
	AccountSID     string
	AuthToken      string
	BaseURL        string
	FromNumber     string
}

func NewTwilioAdapter() *TwilioAdapter {
	return &TwilioAdapter{
		HTTPClient: &http.Client{
			Timeout: time.Duration(config.Conf.TwilioTimeout) * time.Second,
		},
		CircuitBreaker: newTwilioCircuitBreaker(),
		AccountSID:     config.Conf.TwilioAccountSID,
		AuthToken:      config.Conf.TwilioAuthToken,
		BaseURL:        config.Conf.TwilioBaseUrl,
		FromNumber:     config.Conf.TwilioFromNumber,
	}
}

func newTwilioCircuitBreaker() *gobreaker.CircuitBreaker[[]byte] {
	settings := gobreaker.Settings{
		Name:     "TwilioAdapter",
		Interval: time.Duration(config.Conf.TwilioIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Conf.TwilioConsecutiveFailuresCB
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Warn("Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.TwilioService)
			}
		},
	}

	return gobreaker.NewCircuitBreaker[[]byte](settings)
}

func (a *TwilioAdapter) Vendor() Vendor {
	return VendorTwilio
}

// MakeCall places an outbound call and returns the Twilio call SID.
func (a *TwilioAdapter) MakeCall(ctx context.Context, opts CallOptions) (string, error) {
	if opts.To == "" {
		return "", ErrMissingDestination
	}

	from := opts.From
	if from == "" {
		from = a.FromNumber
	}

	form := url.Values{}
	form.Set("To", opts.To)
	form.Set("From", from)
	form.Set("Url", a.voiceCallbackURL(opts))
	form.Set("Record", strconv.FormatBool(opts.RecordingEnabled))

	statusCallback := opts.CallbackURL
	if statusCallback == "" {
		statusCallback = fmt.Sprintf("%s/webhooks/twilio", config.Conf.CallbackBaseURL)
	}

	form.Set("StatusCallback", statusCallback)
	form.Set("StatusCallbackEvent", "initiated ringing answered completed")

	body, err := a.doRequest(ctx, "make_call", http.MethodPost, a.callsPath(""), form)
	if err != nil {
		return "", err
	}

	var resp struct {
		Sid string `json:"sid"`
	}

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return "", &ProviderError{Vendor: VendorTwilio, Op: "make_call", Err: err}
	}

	logging.Logger.Info("Twilio call created",
		zap.String("call_id", resp.Sid),
		zap.String("to", opts.To),
	)

	return resp.Sid, nil
}

func (a *TwilioAdapter) HandleIncomingCall(ctx context.Context, callID, from string) (VoiceResponse, error) {
	if callID == "" {
		return VoiceResponse{}, ErrMissingCallID
	}

	logging.Logger.Info("Handling incoming Twilio call",
		zap.String("call_id", callID),
		zap.String("from", from),
	)

	return a.GenerateCallResponse(ResponseOptions{
		Message:              twilioGreeting,
		GatherInput:          true,
		RecordingEnabled:     true,
		TranscriptionEnabled: true,
	})
}

func (a *TwilioAdapter) UpdateCallStatus(ctx context.Context, callID string, status Status) error {
	if callID == "" {
		return ErrMissingCallID
	}

	form := url.Values{}
	form.Set("Status", ToTwilioStatus(status))

	_, err := a.doRequest(ctx, "update_call_status", http.MethodPost, a.callsPath(callID), form)

	return err
}

// HandleRecording acknowledges a recording by fetching its metadata; a miss
// on the vendor side surfaces as a ProviderError.
func (a *TwilioAdapter) HandleRecording(ctx context.Context, callID, recordingURL string) error {
	if callID == "" {
		return ErrMissingCallID
	}

	_, err := a.doAbsoluteRequest(ctx, "handle_recording", http.MethodGet, recordingURL+".json", nil)

	return err
}

// HandleTranscription forwards the transcript to the in-flight call as a
// user-defined message so Twilio-side tooling can observe it.
func (a *TwilioAdapter) HandleTranscription(ctx context.Context, callID, text string) error {
	if callID == "" {
		return ErrMissingCallID
	}

	payload, err := json.Marshal(map[string]string{"transcription": text})
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("Content", string(payload))

	path := fmt.Sprintf("%s/UserDefinedMessages.json", strings.TrimSuffix(a.callsPath(callID), ".json"))
	_, err = a.doRequest(ctx, "handle_transcription", http.MethodPost, path, form)

	return err
}

// GenerateCallResponse renders TwiML for the given options.
func (a *TwilioAdapter) GenerateCallResponse(opts ResponseOptions) (VoiceResponse, error) {
	body, err := renderTwiML(opts)
	if err != nil {
		return VoiceResponse{}, err
	}

	return VoiceResponse{ContentType: "application/xml", Body: body}, nil
}

// CreateConference names a conference room. Twilio materializes the room on
// the first participant join, so creation is local.
func (a *TwilioAdapter) CreateConference(ctx context.Context, opts ConferenceOptions) (string, error) {
	conferenceID := opts.Name
	if conferenceID == "" {
		conferenceID = uuid.NewString()
	}

	logging.Logger.Info("Twilio conference named", zap.String("conference_id", conferenceID))

	return conferenceID, nil
}

func (a *TwilioAdapter) AddParticipant(ctx context.Context, conferenceID, phoneNumber string) (string, error) {
	if phoneNumber == "" {
		return "", ErrMissingDestination
	}

	form := url.Values{}
	form.Set("From", a.FromNumber)
	form.Set("To", phoneNumber)

	body, err := a.doRequest(ctx, "add_participant", http.MethodPost, a.participantsPath(conferenceID, ""), form)
	if err != nil {
		return "", err
	}

	var resp struct {
		CallSid string `json:"call_sid"`
	}

	err = json.Unmarshal(body, &resp)
	if err != nil {
		return "", &ProviderError{Vendor: VendorTwilio, Op: "add_participant", Err: err}
	}

	return resp.CallSid, nil
}

func (a *TwilioAdapter) RemoveParticipant(ctx context.Context, conferenceID, participantID string) error {
	_, err := a.doRequest(
		ctx,
		"remove_participant",
		http.MethodDelete,
		a.participantsPath(conferenceID, participantID),
		nil,
	)

	return err
}

func (a *TwilioAdapter) MuteParticipant(ctx context.Context, conferenceID, participantID string, muted bool) error {
	form := url.Values{}
	form.Set("Muted", strconv.FormatBool(muted))

	_, err := a.doRequest(
		ctx,
		"mute_participant",
		http.MethodPost,
		a.participantsPath(conferenceID, participantID),
		form,
	)

	return err
}

func (a *TwilioAdapter) EndConference(ctx context.Context, conferenceID string) error {
	form := url.Values{}
	form.Set("Status", "completed")

	path := fmt.Sprintf("/Accounts/%s/Conferences/%s.json", a.AccountSID, conferenceID)
	_, err := a.doRequest(ctx, "end_conference", http.MethodPost, path, form)

	return err
}

func (a *TwilioAdapter) callsPath(callID string) string {
	if callID == "" {
		return fmt.Sprintf("/Accounts/%s/Calls.json", a.AccountSID)
	}

	return fmt.Sprintf("/Accounts/%s/Calls/%s.json", a.AccountSID, callID)
}

func (a *TwilioAdapter) participantsPath(conferenceID, participantID string) string {
	if participantID == "" {
		return fmt.Sprintf("/Accounts/%s/Conferences/%s/Participants.json", a.AccountSID, conferenceID)
	}

	return fmt.Sprintf("/Accounts/%s/Conferences/%s/Participants/%s.json", a.AccountSID, conferenceID, participantID)
}

func (a *TwilioAdapter) voiceCallbackURL(opts CallOptions) string {
	callbackURL := fmt.Sprintf("%s/webhooks/twilio", config.Conf.CallbackBaseURL)

	query := url.Values{}
	if opts.Message != "" {
		query.Set("message", opts.Message)
	}

	if len(query) == 0 {
		return callbackURL
	}

	return callbackURL + "?" + query.Encode()
}

func (a *TwilioAdapter) doRequest(
	ctx context.Context,
	op, method, path string,
	form url.Values,
) ([]byte, error) {
	return a.doAbsoluteRequest(ctx, op, method, a.BaseURL+path, form)
}

func (a *TwilioAdapter) doAbsoluteRequest(
	ctx context.Context,
	op, method, requestURL string,
	form url.Values,
) ([]byte, error) {
	return a.CircuitBreaker.Execute(func() ([]byte, error) {
		timer := prometheus.NewTimer(
			prometheusSwitchboard.ProviderRequestDuration.WithLabelValues(string(VendorTwilio), op),
		)
		defer timer.ObserveDuration()

		var result []byte

		err := retry.Do(
			func() error {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}

				body, statusCode, err := a.send(ctx, method, requestURL, form)
				if err != nil {
					return err
				}

				if statusCode >= http.StatusInternalServerError {
					return &ProviderError{Vendor: VendorTwilio, Op: op, StatusCode: statusCode}
				}

				if statusCode >= http.StatusBadRequest {
					return retry.Unrecoverable(
						&ProviderError{Vendor: VendorTwilio, Op: op, StatusCode: statusCode},
					)
				}

				result = body

				return nil
			},
			retry.Attempts(config.Conf.TwilioRetryMaxAttempts),
			retry.DelayType(retry.BackOffDelay),
			retry.Delay(time.Duration(config.Conf.TwilioRetryMinBackoff)*time.Second),
			retry.MaxDelay(time.Duration(config.Conf.TwilioRetryMaxBackoff)*time.Second),
		)
		if err != nil {
			logging.Logger.Error("Twilio request failed after all retry attempts",
				zap.String("op", op),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return result, nil
	})
}

func (a *TwilioAdapter) send(
	ctx context.Context,
	method, requestURL string,
	form url.Values,
) ([]byte, int, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, 0, err
	}

	req.SetBasicAuth(a.AccountSID, a.AuthToken)

	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, &ProviderError{Vendor: VendorTwilio, Op: method + " " + requestURL, Err: err}
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
