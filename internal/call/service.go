package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/events"
	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/provider"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	json "github.com/goccy/go-json"
)

const scheduleTimeLayout = "2006-01-02T15:04:05"

var (
	ErrUnknownVendor         = errors.New("unknown call provider")
	ErrInvalidTimezone       = errors.New("invalid IANA timezone")
	ErrInvalidScheduleTime   = errors.New("invalid schedule time, expected YYYY-MM-DDTHH:MM:SS")
	ErrPastScheduleTime      = errors.New("schedule time is in the past")
	ErrScheduleNotCancelable = errors.New("scheduled call can no longer be canceled")
)

// Store is the persistence surface the orchestrator needs. The gorm-backed
// Repository implements it in production; tests swap in an in-memory fake.
type Store interface {
	CreateCall(ctx context.Context, call *Call) error
	GetCallByID(ctx context.Context, callID string) (*Call, error)
	EnsureCall(ctx context.Context, call *Call) (*Call, error)
	UpdateCallStatus(ctx context.Context, callID, status string) error
	UpdateCall(ctx context.Context, callID string, updates map[string]any) error
	CreateScheduledCall(ctx context.Context, scheduledCall *ScheduledCall, reminders []*Reminder) error
	GetScheduledCallByID(ctx context.Context, scheduleID string) (*ScheduledCall, error)
	UpdateScheduledCall(ctx context.Context, scheduleID string, updates map[string]any) error
	ClaimDueScheduledCalls(ctx context.Context, now time.Time, limit int) ([]*ScheduledCall, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]*Reminder, error)
	UpdateReminderStatus(ctx context.Context, reminderID, status string) error
	CreateCallAnalysis(ctx context.Context, analysis *CallAnalysis) error
}

// EventSink receives normalized call lifecycle events. Nil sinks are allowed;
// event publishing is best-effort and never fails the operation.
type EventSink interface {
	Publish(ctx context.Context, event events.CallEvent) error
}

// RecordingArchiver copies a provider-hosted recording into durable storage
// and returns the object key.
type RecordingArchiver interface {
	Archive(ctx context.Context, callID, recordingURL string) (string, error)
}

type Service struct {
	Store     Store
	Providers map[provider.Vendor]provider.Provider
	Default   provider.Vendor
	Events    EventSink
	Archiver  RecordingArchiver
	Now       func() time.Time
}

func NewService(
	store Store,
	providers map[provider.Vendor]provider.Provider,
	sink EventSink,
	archiver RecordingArchiver,
) *Service {
	return &Service{
		Store:     store,
		Providers: providers,
		Default:   provider.Vendor(config.Conf.DefaultProvider),
		Events:    sink,
		Archiver:  archiver,
		Now:       time.Now,
	}
}

type MakeCallRequest struct {
	UserID               string
	To                   string
	From                 string
	Provider             provider.Vendor
	Message              string
	RecordingEnabled     bool
	TranscriptionEnabled bool
}

type ScheduleCallRequest struct {
	UserID               string
	To                   string
	From                 string
	Provider             provider.Vendor
	Message              string
	RecordingEnabled     bool
	TranscriptionEnabled bool
	ScheduledAt          string
	Timezone             string
	Recurrence           *RecurrenceRule
	Reminder             *ReminderRule
}

func (service *Service) resolveProvider(vendor provider.Vendor) (provider.Provider, error) {
	if vendor == "" {
		vendor = service.Default
	}

	adapter, ok := service.Providers[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, vendor)
	}

	return adapter, nil
}

// MakeCall places an outbound call through the resolved provider and records
// it as queued. Nothing is persisted when the provider rejects the call.
func (service *Service) MakeCall(ctx context.Context, request MakeCallRequest) (*Call, error) {
	if request.To == "" {
		return nil, provider.ErrMissingDestination
	}

	adapter, err := service.resolveProvider(request.Provider)
	if err != nil {
		return nil, err
	}

	callID, err := adapter.MakeCall(ctx, provider.CallOptions{
		To:                   request.To,
		From:                 request.From,
		Message:              request.Message,
		RecordingEnabled:     request.RecordingEnabled,
		TranscriptionEnabled: request.TranscriptionEnabled,
	})
	if err != nil {
		logging.Logger.Error("[MakeCall] Provider rejected outbound call",
			zap.String("vendor", string(adapter.Vendor())),
			zap.String("to", request.To),
			zap.String("error", err.Error()),
		)

		return nil, err
	}

	call := &Call{
		CallID:     callID,
		UserID:     request.UserID,
		FromNumber: request.From,
		ToNumber:   request.To,
		Provider:   string(adapter.Vendor()),
		Status:     string(provider.StatusQueued),
	}

	if err := service.Store.CreateCall(ctx, call); err != nil {
		return nil, err
	}

	logging.Logger.Info("[MakeCall] Outbound call placed",
		zap.String("call_id", callID),
		zap.String("vendor", string(adapter.Vendor())),
		zap.String("to", request.To),
	)

	service.publish(ctx, events.CallEvent{
		Type:   events.EventCallPlaced,
		CallID: callID,
		Vendor: string(adapter.Vendor()),
		Status: string(provider.StatusQueued),
	})

	return call, nil
}

// ScheduleCall validates and persists a future call. The provider must
// advertise scheduling before anything is written; the dispatcher places the
// call when it comes due.
func (service *Service) ScheduleCall(ctx context.Context, request ScheduleCallRequest) (*ScheduledCall, error) {
	if request.To == "" {
		return nil, provider.ErrMissingDestination
	}

	adapter, err := service.resolveProvider(request.Provider)
	if err != nil {
		return nil, err
	}

	if _, err := provider.AsSchedule(adapter); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(request.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, request.Timezone)
	}

	localTime, err := time.ParseInLocation(scheduleTimeLayout, request.ScheduledAt, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScheduleTime, request.ScheduledAt)
	}

	scheduledAt := localTime.UTC()
	if !scheduledAt.After(service.Now().UTC()) {
		return nil, ErrPastScheduleTime
	}

	scheduledCall := &ScheduledCall{
		ID:                   uuid.NewString(),
		UserID:               request.UserID,
		ToNumber:             request.To,
		FromNumber:           request.From,
		Provider:             string(adapter.Vendor()),
		Message:              request.Message,
		RecordingEnabled:     request.RecordingEnabled,
		TranscriptionEnabled: request.TranscriptionEnabled,
		ScheduledAt:          scheduledAt,
		Timezone:             request.Timezone,
		Status:               SchedulePending,
	}

	if request.Recurrence != nil {
		frequency := request.Recurrence.Frequency
		interval := request.Recurrence.Interval
		if interval <= 0 {
			interval = 1
		}

		scheduledCall.RecurrenceFrequency = &frequency
		scheduledCall.RecurrenceInterval = &interval
		scheduledCall.RecurrenceEndDate = request.Recurrence.EndDate

		if len(request.Recurrence.Weekdays) > 0 {
			weekdays, err := json.Marshal(request.Recurrence.Weekdays)
			if err != nil {
				return nil, err
			}

			scheduledCall.RecurrenceWeekdays = datatypes.JSON(weekdays)
		}
	}

	var reminders []*Reminder

	if request.Reminder != nil {
		method := request.Reminder.Method
		if method == "" {
			method = ReminderMethodCall
		}

		reminders = append(reminders, &Reminder{
			ID:     uuid.NewString(),
			FireAt: scheduledAt.Add(-time.Duration(request.Reminder.MinutesBefore) * time.Minute),
			Method: method,
			Status: ReminderPending,
		})
	}

	if err := service.Store.CreateScheduledCall(ctx, scheduledCall, reminders); err != nil {
		return nil, err
	}

	logging.Logger.Info("[ScheduleCall] Call scheduled",
		zap.String("schedule_id", scheduledCall.ID),
		zap.String("vendor", scheduledCall.Provider),
		zap.Time("scheduled_at", scheduledAt),
		zap.String("timezone", request.Timezone),
	)

	return scheduledCall, nil
}

// CancelScheduledCall cancels a schedule that has not been placed yet.
func (service *Service) CancelScheduledCall(ctx context.Context, scheduleID string) error {
	scheduledCall, err := service.Store.GetScheduledCallByID(ctx, scheduleID)
	if err != nil {
		return err
	}

	switch scheduledCall.Status {
	case SchedulePlaced, ScheduleRetired:
		return fmt.Errorf("%w: %s", ErrScheduleNotCancelable, scheduledCall.Status)
	case ScheduleCanceled:
		return nil
	}

	return service.Store.UpdateScheduledCall(ctx, scheduleID, map[string]any{
		"status": ScheduleCanceled,
	})
}

// HandleIncomingCall records an inbound call and asks the provider for the
// greeting response to hand back over the webhook.
func (service *Service) HandleIncomingCall(
	ctx context.Context,
	vendor provider.Vendor,
	callID, from string,
) (provider.VoiceResponse, error) {
	adapter, err := service.resolveProvider(vendor)
	if err != nil {
		return provider.VoiceResponse{}, err
	}

	if callID == "" {
		return provider.VoiceResponse{}, provider.ErrMissingCallID
	}

	_, err = service.Store.EnsureCall(ctx, &Call{
		CallID:     callID,
		FromNumber: from,
		Provider:   string(adapter.Vendor()),
		Status:     string(provider.StatusRinging),
	})
	if err != nil {
		return provider.VoiceResponse{}, err
	}

	response, err := adapter.HandleIncomingCall(ctx, callID, from)
	if err != nil {
		return provider.VoiceResponse{}, err
	}

	service.publish(ctx, events.CallEvent{
		Type:   events.EventCallIncoming,
		CallID: callID,
		Vendor: string(adapter.Vendor()),
		Status: string(provider.StatusRinging),
	})

	return response, nil
}

// UpdateCallStatus pushes a status change to the provider first and persists
// it only when the provider accepted it.
func (service *Service) UpdateCallStatus(ctx context.Context, callID string, status provider.Status) error {
	call, err := service.Store.GetCallByID(ctx, callID)
	if err != nil {
		return err
	}

	adapter, err := service.resolveProvider(provider.Vendor(call.Provider))
	if err != nil {
		return err
	}

	if err := adapter.UpdateCallStatus(ctx, callID, status); err != nil {
		return err
	}

	return service.Store.UpdateCallStatus(ctx, callID, string(status))
}

// HandleStatusEvent persists a provider-reported status transition. Terminal
// statuses also record the call duration when the provider sent one.
func (service *Service) HandleStatusEvent(
	ctx context.Context,
	vendor provider.Vendor,
	callID string,
	status provider.Status,
	durationSeconds *int,
) error {
	if callID == "" {
		return provider.ErrMissingCallID
	}

	updates := map[string]any{"status": string(status)}
	if status.Terminal() && durationSeconds != nil {
		updates["duration"] = *durationSeconds
	}

	_, err := service.Store.EnsureCall(ctx, &Call{
		CallID:   callID,
		Provider: string(vendor),
		Status:   string(status),
	})
	if err != nil {
		return err
	}

	if err := service.Store.UpdateCall(ctx, callID, updates); err != nil {
		return err
	}

	service.publish(ctx, events.CallEvent{
		Type:   events.EventCallStatus,
		CallID: callID,
		Vendor: string(vendor),
		Status: string(status),
	})

	return nil
}

// HandleRecording acknowledges the recording with the provider, stores its
// URL, and archives a copy when an archiver is wired in.
func (service *Service) HandleRecording(
	ctx context.Context,
	vendor provider.Vendor,
	callID, recordingURL string,
) error {
	adapter, err := service.resolveProvider(vendor)
	if err != nil {
		return err
	}

	if err := adapter.HandleRecording(ctx, callID, recordingURL); err != nil {
		return err
	}

	updates := map[string]any{"recording_url": recordingURL}

	if service.Archiver != nil {
		objectKey, err := service.Archiver.Archive(ctx, callID, recordingURL)
		if err != nil {
			logging.Logger.Error("[HandleRecording] Failed to archive recording",
				zap.String("call_id", callID),
				zap.String("error", err.Error()),
			)
		} else {
			updates["recording_object_key"] = objectKey
		}
	}

	if err := service.Store.UpdateCall(ctx, callID, updates); err != nil {
		return err
	}

	service.publish(ctx, events.CallEvent{
		Type:   events.EventCallRecording,
		CallID: callID,
		Vendor: string(vendor),
	})

	return nil
}

// HandleTranscription forwards the transcript to the provider and stores it.
func (service *Service) HandleTranscription(
	ctx context.Context,
	vendor provider.Vendor,
	callID, transcript string,
) error {
	adapter, err := service.resolveProvider(vendor)
	if err != nil {
		return err
	}

	if err := adapter.HandleTranscription(ctx, callID, transcript); err != nil {
		return err
	}

	if err := service.Store.UpdateCall(ctx, callID, map[string]any{"transcript": transcript}); err != nil {
		return err
	}

	service.publish(ctx, events.CallEvent{
		Type:   events.EventCallTranscription,
		CallID: callID,
		Vendor: string(vendor),
	})

	return nil
}

// GetCall returns the stored call record.
func (service *Service) GetCall(ctx context.Context, callID string) (*Call, error) {
	return service.Store.GetCallByID(ctx, callID)
}

// GetCallAnalytics fetches analytics from a capable provider and caches the
// payload on the call row.
func (service *Service) GetCallAnalytics(ctx context.Context, callID string) (json.RawMessage, error) {
	call, err := service.Store.GetCallByID(ctx, callID)
	if err != nil {
		return nil, err
	}

	adapter, err := service.resolveProvider(provider.Vendor(call.Provider))
	if err != nil {
		return nil, err
	}

	analytics, err := provider.AsAnalytics(adapter)
	if err != nil {
		return nil, err
	}

	payload, err := analytics.GetCallAnalytics(ctx, callID)
	if err != nil {
		return nil, err
	}

	err = service.Store.UpdateCall(ctx, callID, map[string]any{
		"analytics": datatypes.JSON(payload),
	})
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// DispatchScheduledCall places one claimed schedule. Recurring schedules are
// advanced to their next occurrence; one-shot schedules are marked placed.
// On provider failure the schedule returns to pending for the next tick.
func (service *Service) DispatchScheduledCall(ctx context.Context, scheduledCall *ScheduledCall) error {
	_, err := service.MakeCall(ctx, MakeCallRequest{
		UserID:               scheduledCall.UserID,
		To:                   scheduledCall.ToNumber,
		From:                 scheduledCall.FromNumber,
		Provider:             provider.Vendor(scheduledCall.Provider),
		Message:              scheduledCall.Message,
		RecordingEnabled:     scheduledCall.RecordingEnabled,
		TranscriptionEnabled: scheduledCall.TranscriptionEnabled,
	})
	if err != nil {
		logging.Logger.Error("[DispatchScheduledCall] Failed to place scheduled call",
			zap.String("schedule_id", scheduledCall.ID),
			zap.String("error", err.Error()),
		)

		return service.Store.UpdateScheduledCall(ctx, scheduledCall.ID, map[string]any{
			"status": SchedulePending,
		})
	}

	rule, ok := service.recurrenceRule(scheduledCall)
	if !ok {
		return service.Store.UpdateScheduledCall(ctx, scheduledCall.ID, map[string]any{
			"status": SchedulePlaced,
		})
	}

	loc, err := time.LoadLocation(scheduledCall.Timezone)
	if err != nil {
		loc = time.UTC
	}

	next, more := rule.NextOccurrence(scheduledCall.ScheduledAt, loc)
	if !more {
		return service.Store.UpdateScheduledCall(ctx, scheduledCall.ID, map[string]any{
			"status": ScheduleRetired,
		})
	}

	logging.Logger.Info("[DispatchScheduledCall] Recurring schedule advanced",
		zap.String("schedule_id", scheduledCall.ID),
		zap.Time("next_occurrence", next),
	)

	return service.Store.UpdateScheduledCall(ctx, scheduledCall.ID, map[string]any{
		"status":       SchedulePending,
		"scheduled_at": next,
	})
}

// FireReminder publishes a reminder event and records the outcome: sent when
// the event went out, failed when the sink rejected it. Delivery is the
// event, so unlike the lifecycle notifications this publish is not
// best-effort.
func (service *Service) FireReminder(ctx context.Context, reminder *Reminder) error {
	scheduledCall, err := service.Store.GetScheduledCallByID(ctx, reminder.ScheduledCallID)
	if err != nil {
		return service.Store.UpdateReminderStatus(ctx, reminder.ID, ReminderFailed)
	}

	if scheduledCall.Status == ScheduleCanceled {
		return service.Store.UpdateReminderStatus(ctx, reminder.ID, ReminderFailed)
	}

	if service.Events != nil {
		event := events.CallEvent{
			Type:       events.EventReminderDue,
			ScheduleID: scheduledCall.ID,
			Vendor:     scheduledCall.Provider,
			Status:     scheduledCall.Status,
			OccurredAt: service.Now().UTC(),
		}

		if err := service.Events.Publish(ctx, event); err != nil {
			logging.Logger.Error("[FireReminder] Failed to publish reminder event",
				zap.String("schedule_id", scheduledCall.ID),
				zap.String("reminder_id", reminder.ID),
				zap.String("error", err.Error()),
			)

			return service.Store.UpdateReminderStatus(ctx, reminder.ID, ReminderFailed)
		}
	}

	return service.Store.UpdateReminderStatus(ctx, reminder.ID, ReminderSent)
}

func (service *Service) recurrenceRule(scheduledCall *ScheduledCall) (RecurrenceRule, bool) {
	if scheduledCall.RecurrenceFrequency == nil {
		return RecurrenceRule{}, false
	}

	rule := RecurrenceRule{
		Frequency: *scheduledCall.RecurrenceFrequency,
		EndDate:   scheduledCall.RecurrenceEndDate,
	}

	if scheduledCall.RecurrenceInterval != nil {
		rule.Interval = *scheduledCall.RecurrenceInterval
	}

	if len(scheduledCall.RecurrenceWeekdays) > 0 {
		var weekdays []time.Weekday
		if err := json.Unmarshal(scheduledCall.RecurrenceWeekdays, &weekdays); err == nil {
			rule.Weekdays = weekdays
		}
	}

	return rule, true
}

func (service *Service) publish(ctx context.Context, event events.CallEvent) {
	if service.Events == nil {
		return
	}

	event.OccurredAt = service.Now().UTC()

	if err := service.Events.Publish(ctx, event); err != nil {
		logging.Logger.Error("[publish] Failed to publish call event",
			zap.String("event_type", string(event.Type)),
			zap.String("call_id", event.CallID),
			zap.String("error", err.Error()),
		)
	}
}
