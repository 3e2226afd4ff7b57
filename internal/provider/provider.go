package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// Vendor identifies which telephony backend an adapter talks to.
type Vendor string

const (
	VendorTwilio Vendor = "twilio"
	VendorVapi   Vendor = "vapi"
)

var (
	// ErrUnsupported is returned when a caller requests an optional
	// capability the adapter does not implement.
	ErrUnsupported = errors.New("operation not supported by provider")

	ErrMissingDestination = errors.New("destination number is required")
	ErrMissingCallID      = errors.New("call id is required")
)

// ProviderError wraps a failed vendor call. It carries the vendor and the
// HTTP status when one was received; Err holds the transport error otherwise.
type ProviderError struct {
	Vendor     Vendor
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: vendor returned status %d", e.Vendor, e.Op, e.StatusCode)
	}

	return fmt.Sprintf("%s %s: %v", e.Vendor, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CallOptions are the normalized inputs for placing an outbound call.
type CallOptions struct {
	To                   string `json:"to"                    validate:"required"`
	From                 string `json:"from"`
	RecordingEnabled     bool   `json:"recording_enabled"`
	TranscriptionEnabled bool   `json:"transcription_enabled"`
	CallbackURL          string `json:"callback_url"`
	Message              string `json:"message"`
}

// ResponseOptions drive the vendor-specific voice-script payload.
type ResponseOptions struct {
	Message              string
	GatherInput          bool
	RecordingEnabled     bool
	TranscriptionEnabled bool
}

// VoiceResponse is the provider-shaped script returned on an incoming call:
// TwiML markup for Twilio, a JSON document for VAPI.
type VoiceResponse struct {
	ContentType string
	Body        string
}

// ScheduleOptions are passed to adapters that support provider-side
// scheduling of future calls.
type ScheduleOptions struct {
	CallOptions

	EarliestAtUTC string `json:"earliest_at_utc"`
}

// ConferenceOptions configure a provider-side conference room.
type ConferenceOptions struct {
	Name                 string
	RecordingEnabled     bool
	TranscriptionEnabled bool
	MaxParticipants      int
	WaitingRoom          bool
	MuteOnEntry          bool
}

// Provider is the capability contract every telephony adapter implements.
// Optional capabilities live on separate interfaces; callers discover them
// with type assertions and surface ErrUnsupported when absent.
type Provider interface {
	Vendor() Vendor

	// MakeCall places an outbound call and returns the provider call id.
	// Adapters never persist anything; retries here are transport policy
	// only, never a replay of the whole operation by the orchestrator.
	MakeCall(ctx context.Context, opts CallOptions) (string, error)

	// HandleIncomingCall produces the voice script to answer an inbound
	// call identified by the provider's call id.
	HandleIncomingCall(ctx context.Context, callID, from string) (VoiceResponse, error)

	// UpdateCallStatus pushes a normalized status to the vendor, translated
	// through the fixed status table. Unknown statuses pass through.
	UpdateCallStatus(ctx context.Context, callID string, status Status) error

	// HandleRecording and HandleTranscription are best-effort notifications
	// to the vendor about call artifacts.
	HandleRecording(ctx context.Context, callID, recordingURL string) error
	HandleTranscription(ctx context.Context, callID, text string) error

	// GenerateCallResponse is a pure function from options to the vendor
	// voice-script payload.
	GenerateCallResponse(opts ResponseOptions) (VoiceResponse, error)
}

// ScheduleProvider is the optional provider-side scheduling capability.
type ScheduleProvider interface {
	ScheduleCall(ctx context.Context, opts ScheduleOptions) (string, error)
}

// ConferenceProvider is the optional conferencing capability.
type ConferenceProvider interface {
	CreateConference(ctx context.Context, opts ConferenceOptions) (string, error)
	AddParticipant(ctx context.Context, conferenceID, phoneNumber string) (string, error)
	RemoveParticipant(ctx context.Context, conferenceID, participantID string) error
	MuteParticipant(ctx context.Context, conferenceID, participantID string, muted bool) error
	EndConference(ctx context.Context, conferenceID string) error
}

// AnalyticsProvider is the optional call-analytics capability.
type AnalyticsProvider interface {
	GetCallAnalytics(ctx context.Context, callID string) (json.RawMessage, error)
}

// AsSchedule resolves the scheduling capability or fails with ErrUnsupported.
func AsSchedule(p Provider) (ScheduleProvider, error) {
	sp, ok := p.(ScheduleProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s schedule call", ErrUnsupported, p.Vendor())
	}

	return sp, nil
}

// AsConference resolves the conferencing capability or fails with ErrUnsupported.
func AsConference(p Provider) (ConferenceProvider, error) {
	cp, ok := p.(ConferenceProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s conference", ErrUnsupported, p.Vendor())
	}

	return cp, nil
}

// AsAnalytics resolves the analytics capability or fails with ErrUnsupported.
func AsAnalytics(p Provider) (AnalyticsProvider, error) {
	ap, ok := p.(AnalyticsProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %s call analytics", ErrUnsupported, p.Vendor())
	}

	return ap, nil
}
