package call

import (
	"time"

	"gorm.io/datatypes"
)

// Call is the normalized record of one provider call, keyed by the
// provider-assigned call identifier. Rows are never deleted by the service.
type Call struct {
	CallID             string         `gorm:"column:call_id;primaryKey"    json:"call_id"`
	UserID             string         `gorm:"column:user_id"               json:"user_id"`
	FromNumber         string         `gorm:"column:from_number"           json:"from_number"`
	ToNumber           string         `gorm:"column:to_number"             json:"to_number"`
	Provider           string         `gorm:"column:provider"              json:"provider"`
	Status             string         `gorm:"column:status"                json:"status"`
	Duration           *int           `gorm:"column:duration"              json:"duration"`
	RecordingURL       *string        `gorm:"column:recording_url"         json:"recording_url"`
	RecordingObjectKey *string        `gorm:"column:recording_object_key"  json:"recording_object_key"`
	Transcript         *string        `gorm:"column:transcript"            json:"transcript"`
	Analytics          datatypes.JSON `gorm:"column:analytics;type:jsonb"  json:"analytics"`
	CreatedAt          *time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          *time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Call) TableName() string {
	return "calls"
}

// ScheduledCall is a call not yet placed. ScheduledAt is always UTC;
// Timezone keeps the requester's zone for recurrence arithmetic.
type ScheduledCall struct {
	ID                   string         `gorm:"column:id;primaryKey"             json:"id"`
	UserID               string         `gorm:"column:user_id"                   json:"user_id"`
	ToNumber             string         `gorm:"column:to_number"                 json:"to_number"`
	FromNumber           string         `gorm:"column:from_number"               json:"from_number"`
	Provider             string         `gorm:"column:provider"                  json:"provider"`
	Message              string         `gorm:"column:message"                   json:"message"`
	RecordingEnabled     bool           `gorm:"column:recording_enabled"         json:"recording_enabled"`
	TranscriptionEnabled bool           `gorm:"column:transcription_enabled"     json:"transcription_enabled"`
	ScheduledAt          time.Time      `gorm:"column:scheduled_at"              json:"scheduled_at"`
	Timezone             string         `gorm:"column:timezone"                  json:"timezone"`
	RecurrenceFrequency  *string        `gorm:"column:recurrence_frequency"      json:"recurrence_frequency"`
	RecurrenceInterval   *int           `gorm:"column:recurrence_interval"       json:"recurrence_interval"`
	RecurrenceEndDate    *time.Time     `gorm:"column:recurrence_end_date"       json:"recurrence_end_date"`
	RecurrenceWeekdays   datatypes.JSON `gorm:"column:recurrence_weekdays;type:jsonb" json:"recurrence_weekdays"`
	Status               string         `gorm:"column:status"                    json:"status"`
	CreatedAt            *time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            *time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ScheduledCall) TableName() string {
	return "scheduled_calls"
}

const (
	SchedulePending     = "pending"
	ScheduleDispatching = "dispatching"
	SchedulePlaced      = "placed"
	ScheduleCanceled    = "canceled"
	ScheduleRetired     = "retired"
)

// Reminder is derived from a ScheduledCall's reminder rule; at most one per
// scheduled call.
type Reminder struct {
	ID              string     `gorm:"column:id;primaryKey"             json:"id"`
	ScheduledCallID string     `gorm:"column:scheduled_call_id"         json:"scheduled_call_id"`
	FireAt          time.Time  `gorm:"column:fire_at"                   json:"fire_at"`
	Method          string     `gorm:"column:method"                    json:"method"`
	Status          string     `gorm:"column:status"                    json:"status"`
	CreatedAt       *time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Reminder) TableName() string {
	return "reminders"
}

const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
	ReminderFailed  = "failed"
)

const (
	ReminderMethodCall = "call"
	ReminderMethodSMS  = "sms"
)

// CallAnalysis holds one insight run for a call; many per call, ordered by
// creation time.
type CallAnalysis struct {
	ID        string         `gorm:"column:id;primaryKey"             json:"id"`
	CallID    string         `gorm:"column:call_id"                   json:"call_id"`
	Analysis  datatypes.JSON `gorm:"column:analysis;type:jsonb"       json:"analysis"`
	Summary   string         `gorm:"column:summary"                   json:"summary"`
	CreatedAt *time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CallAnalysis) TableName() string {
	return "call_analyses"
}
