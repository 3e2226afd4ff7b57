package conference

import "time"

type Conference struct {
	ID                   string     `gorm:"column:id;primaryKey"         json:"id"`
	Name                 string     `gorm:"column:name"                  json:"name"`
	Provider             string     `gorm:"column:provider"              json:"provider"`
	Status               string     `gorm:"column:status"                json:"status"`
	RecordingEnabled     bool       `gorm:"column:recording_enabled"     json:"recording_enabled"`
	TranscriptionEnabled bool       `gorm:"column:transcription_enabled" json:"transcription_enabled"`
	MaxParticipants      int        `gorm:"column:max_participants"      json:"max_participants"`
	WaitingRoom          bool       `gorm:"column:waiting_room"          json:"waiting_room"`
	MuteOnEntry          bool       `gorm:"column:mute_on_entry"         json:"mute_on_entry"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	StartedAt            *time.Time `gorm:"column:started_at"            json:"started_at,omitempty"`
	EndedAt              *time.Time `gorm:"column:ended_at"              json:"ended_at,omitempty"`
}

func (Conference) TableName() string {
	return "conferences"
}

const (
	ConferenceScheduled  = "scheduled"
	ConferenceInProgress = "in-progress"
	ConferenceCompleted  = "completed"
)

// Participant rows are never deleted; leaving a conference flips the status
// and stamps LeftAt so the attendance history survives. Rows start out
// invited with a null JoinedAt until the participant actually connects.
type Participant struct {
	ID           string     `gorm:"column:id;primaryKey"  json:"id"`
	ConferenceID string     `gorm:"column:conference_id"  json:"conference_id"`
	PhoneNumber  string     `gorm:"column:phone_number"   json:"phone_number"`
	ProviderRef  string     `gorm:"column:provider_ref"   json:"provider_ref,omitempty"`
	Status       string     `gorm:"column:status"         json:"status"`
	Muted        bool       `gorm:"column:muted"          json:"muted"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	JoinedAt     *time.Time `gorm:"column:joined_at"      json:"joined_at,omitempty"`
	LeftAt       *time.Time `gorm:"column:left_at"        json:"left_at,omitempty"`
}

func (Participant) TableName() string {
	return "conference_participants"
}

const (
	ParticipantInvited      = "invited"
	ParticipantWaiting      = "waiting"
	ParticipantConnected    = "connected"
	ParticipantDisconnected = "disconnected"
)
