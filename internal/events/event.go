package events

import "time"

type EventType string

const (
	EventCallPlaced        EventType = "call.placed"
	EventCallIncoming      EventType = "call.incoming"
	EventCallStatus        EventType = "call.status"
	EventCallRecording     EventType = "call.recording"
	EventCallTranscription EventType = "call.transcription"
	EventReminderDue       EventType = "reminder.due"
)

// CallEvent is the normalized lifecycle event published to the call events
// topic. Either CallID or ScheduleID is set depending on the event type.
type CallEvent struct {
	Type       EventType `json:"type"`
	CallID     string    `json:"call_id,omitempty"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	Vendor     string    `json:"vendor,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key returns the partition key so all events of one call stay ordered.
func (event CallEvent) Key() string {
	if event.CallID != "" {
		return event.CallID
	}

	return event.ScheduleID
}
