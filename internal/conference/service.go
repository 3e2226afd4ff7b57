package conference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/provider"
	"go.uber.org/zap"
)

var (
	ErrUnknownVendor       = errors.New("unknown call provider")
	ErrConferenceEnded     = errors.New("conference already ended")
	ErrNoParticipants      = errors.New("no participants given")
	ErrTooManyParticipants = errors.New("participant limit reached")
)

// Store is the persistence surface for conferences; the gorm Repository
// implements it, tests use an in-memory fake.
type Store interface {
	CreateConference(ctx context.Context, conference *Conference) error
	GetConferenceByID(ctx context.Context, conferenceID string) (*Conference, error)
	UpdateConference(ctx context.Context, conferenceID string, updates map[string]any) error
	CreateParticipant(ctx context.Context, participant *Participant) error
	GetParticipantByID(ctx context.Context, conferenceID, participantID string) (*Participant, error)
	GetParticipantByPhone(ctx context.Context, conferenceID, phoneNumber string) (*Participant, error)
	ListParticipants(ctx context.Context, conferenceID string) ([]*Participant, error)
	UpdateParticipant(ctx context.Context, participantID string, updates map[string]any) error
}

type Service struct {
	Store     Store
	Providers map[provider.Vendor]provider.Provider
	Now       func() time.Time
}

func NewService(store Store, providers map[provider.Vendor]provider.Provider) *Service {
	return &Service{
		Store:     store,
		Providers: providers,
		Now:       time.Now,
	}
}

func (service *Service) conferenceProvider(vendor provider.Vendor) (provider.ConferenceProvider, error) {
	adapter, ok := service.Providers[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVendor, vendor)
	}

	return provider.AsConference(adapter)
}

// CreateConference creates a conference with a capable provider, records it
// locally in the scheduled state with one invited participant row per phone
// number, then invites each participant through the provider in input order.
// A provider failure on one participant does not undo earlier invitations:
// the remaining numbers are still attempted, every row is kept, and the
// first error is returned alongside the persisted roster so the caller can
// reconcile by re-listing participants.
func (service *Service) CreateConference(
	ctx context.Context,
	vendor provider.Vendor,
	options provider.ConferenceOptions,
	phoneNumbers []string,
) (*Conference, []*Participant, error) {
	conferencing, err := service.conferenceProvider(vendor)
	if err != nil {
		return nil, nil, err
	}

	if options.MaxParticipants > 0 && len(phoneNumbers) > options.MaxParticipants {
		return nil, nil, fmt.Errorf("%w: %d", ErrTooManyParticipants, options.MaxParticipants)
	}

	conferenceID, err := conferencing.CreateConference(ctx, options)
	if err != nil {
		return nil, nil, err
	}

	name := options.Name
	if name == "" {
		name = conferenceID
	}

	conference := &Conference{
		ID:                   conferenceID,
		Name:                 name,
		Provider:             string(vendor),
		Status:               ConferenceScheduled,
		RecordingEnabled:     options.RecordingEnabled,
		TranscriptionEnabled: options.TranscriptionEnabled,
		MaxParticipants:      options.MaxParticipants,
		WaitingRoom:          options.WaitingRoom,
		MuteOnEntry:          options.MuteOnEntry,
	}

	if err := service.Store.CreateConference(ctx, conference); err != nil {
		return nil, nil, err
	}

	roster := make([]*Participant, 0, len(phoneNumbers))

	for _, phoneNumber := range phoneNumbers {
		participant := &Participant{
			ID:           uuid.NewString(),
			ConferenceID: conferenceID,
			PhoneNumber:  phoneNumber,
			Status:       ParticipantInvited,
			Muted:        options.MuteOnEntry,
		}

		if err := service.Store.CreateParticipant(ctx, participant); err != nil {
			return conference, roster, err
		}

		roster = append(roster, participant)
	}

	var inviteErr error

	for _, participant := range roster {
		providerRef, err := conferencing.AddParticipant(ctx, conferenceID, participant.PhoneNumber)
		if err != nil {
			logging.Logger.Error("[CreateConference] Failed to invite participant",
				zap.String("conference_id", conferenceID),
				zap.String("phone_number", participant.PhoneNumber),
				zap.String("error", err.Error()),
			)

			if inviteErr == nil {
				inviteErr = err
			}

			continue
		}

		if providerRef != "" {
			participant.ProviderRef = providerRef

			err = service.Store.UpdateParticipant(ctx, participant.ID, map[string]any{
				"provider_ref": providerRef,
			})
			if err != nil && inviteErr == nil {
				inviteErr = err
			}
		}
	}

	logging.Logger.Info("[CreateConference] Conference created",
		zap.String("conference_id", conferenceID),
		zap.String("vendor", string(vendor)),
		zap.Int("invited", len(roster)),
	)

	return conference, roster, inviteErr
}

// AddParticipants dials participants one at a time in the order given. A
// failure stops the fan-out but already-joined participants stay in the
// conference; the partial result is returned alongside the error. A number
// that is already on the roster in the invited state is promoted in place
// instead of gaining a second row. Joiners land in the waiting state when
// the conference has a waiting room, connected otherwise.
func (service *Service) AddParticipants(
	ctx context.Context,
	conferenceID string,
	phoneNumbers []string,
) ([]*Participant, error) {
	if len(phoneNumbers) == 0 {
		return nil, ErrNoParticipants
	}

	conference, err := service.Store.GetConferenceByID(ctx, conferenceID)
	if err != nil {
		return nil, err
	}

	if conference.Status == ConferenceCompleted {
		return nil, ErrConferenceEnded
	}

	conferencing, err := service.conferenceProvider(provider.Vendor(conference.Provider))
	if err != nil {
		return nil, err
	}

	joinedStatus := ParticipantConnected
	if conference.WaitingRoom {
		joinedStatus = ParticipantWaiting
	}

	var joined []*Participant

	for _, phoneNumber := range phoneNumbers {
		existing, err := service.Store.GetParticipantByPhone(ctx, conferenceID, phoneNumber)
		if err != nil && !errors.Is(err, ErrParticipantNotFound) {
			return joined, err
		}

		if existing == nil && conference.MaxParticipants > 0 {
			active, err := service.activeCount(ctx, conferenceID)
			if err != nil {
				return joined, err
			}

			if active+1 > conference.MaxParticipants {
				return joined, fmt.Errorf("%w: %d", ErrTooManyParticipants, conference.MaxParticipants)
			}
		}

		providerRef, err := conferencing.AddParticipant(ctx, conferenceID, phoneNumber)
		if err != nil {
			logging.Logger.Error("[AddParticipants] Failed to add participant",
				zap.String("conference_id", conferenceID),
				zap.String("phone_number", phoneNumber),
				zap.String("error", err.Error()),
			)

			return joined, err
		}

		participant, err := service.recordJoin(ctx, conference, existing, phoneNumber, providerRef, joinedStatus)
		if err != nil {
			return joined, err
		}

		joined = append(joined, participant)
	}

	if conference.Status == ConferenceScheduled {
		startedAt := service.Now().UTC()

		err = service.Store.UpdateConference(ctx, conferenceID, map[string]any{
			"status":     ConferenceInProgress,
			"started_at": startedAt,
		})
		if err != nil {
			return joined, err
		}

		conference.Status = ConferenceInProgress
		conference.StartedAt = &startedAt
	}

	return joined, nil
}

func (service *Service) recordJoin(
	ctx context.Context,
	conference *Conference,
	existing *Participant,
	phoneNumber, providerRef, status string,
) (*Participant, error) {
	var joinedAt *time.Time
	if status == ParticipantConnected {
		now := service.Now().UTC()
		joinedAt = &now
	}

	if existing != nil {
		updates := map[string]any{"status": status}
		if providerRef != "" {
			updates["provider_ref"] = providerRef
		}

		if joinedAt != nil {
			updates["joined_at"] = *joinedAt
		}

		if err := service.Store.UpdateParticipant(ctx, existing.ID, updates); err != nil {
			return nil, err
		}

		existing.Status = status
		if providerRef != "" {
			existing.ProviderRef = providerRef
		}

		existing.JoinedAt = joinedAt

		return existing, nil
	}

	participant := &Participant{
		ID:           uuid.NewString(),
		ConferenceID: conference.ID,
		PhoneNumber:  phoneNumber,
		ProviderRef:  providerRef,
		Status:       status,
		Muted:        conference.MuteOnEntry,
		JoinedAt:     joinedAt,
	}

	if err := service.Store.CreateParticipant(ctx, participant); err != nil {
		return nil, err
	}

	return participant, nil
}

// AdmitParticipant moves a waiting participant into the conference.
func (service *Service) AdmitParticipant(ctx context.Context, conferenceID, participantID string) error {
	if _, err := service.Store.GetConferenceByID(ctx, conferenceID); err != nil {
		return err
	}

	participant, err := service.Store.GetParticipantByID(ctx, conferenceID, participantID)
	if err != nil {
		return err
	}

	if participant.Status != ParticipantWaiting {
		return nil
	}

	return service.Store.UpdateParticipant(ctx, participantID, map[string]any{
		"status":    ParticipantConnected,
		"joined_at": service.Now().UTC(),
	})
}

// RemoveParticipant kicks a participant with the provider and marks the row
// disconnected. The row itself is kept.
func (service *Service) RemoveParticipant(ctx context.Context, conferenceID, participantID string) error {
	conference, err := service.Store.GetConferenceByID(ctx, conferenceID)
	if err != nil {
		return err
	}

	if _, err := service.Store.GetParticipantByID(ctx, conferenceID, participantID); err != nil {
		return err
	}

	conferencing, err := service.conferenceProvider(provider.Vendor(conference.Provider))
	if err != nil {
		return err
	}

	if err := conferencing.RemoveParticipant(ctx, conferenceID, participantID); err != nil {
		return err
	}

	return service.Store.UpdateParticipant(ctx, participantID, map[string]any{
		"status":  ParticipantDisconnected,
		"left_at": service.Now().UTC(),
	})
}

// MuteParticipant toggles a participant's mute state and mirrors it locally.
func (service *Service) MuteParticipant(
	ctx context.Context,
	conferenceID, participantID string,
	muted bool,
) error {
	conference, err := service.Store.GetConferenceByID(ctx, conferenceID)
	if err != nil {
		return err
	}

	if _, err := service.Store.GetParticipantByID(ctx, conferenceID, participantID); err != nil {
		return err
	}

	conferencing, err := service.conferenceProvider(provider.Vendor(conference.Provider))
	if err != nil {
		return err
	}

	if err := conferencing.MuteParticipant(ctx, conferenceID, participantID, muted); err != nil {
		return err
	}

	return service.Store.UpdateParticipant(ctx, participantID, map[string]any{"muted": muted})
}

// EndConference terminates the conference with the provider and marks it
// completed. Participant rows are left as they are; the vendor reports each
// leave through its own status callbacks.
func (service *Service) EndConference(ctx context.Context, conferenceID string) error {
	conference, err := service.Store.GetConferenceByID(ctx, conferenceID)
	if err != nil {
		return err
	}

	if conference.Status == ConferenceCompleted {
		return nil
	}

	conferencing, err := service.conferenceProvider(provider.Vendor(conference.Provider))
	if err != nil {
		return err
	}

	if err := conferencing.EndConference(ctx, conferenceID); err != nil {
		return err
	}

	return service.Store.UpdateConference(ctx, conferenceID, map[string]any{
		"status":   ConferenceCompleted,
		"ended_at": service.Now().UTC(),
	})
}

// GetConference returns the conference and its full participant history.
func (service *Service) GetConference(
	ctx context.Context,
	conferenceID string,
) (*Conference, []*Participant, error) {
	conference, err := service.Store.GetConferenceByID(ctx, conferenceID)
	if err != nil {
		return nil, nil, err
	}

	participants, err := service.Store.ListParticipants(ctx, conferenceID)
	if err != nil {
		return nil, nil, err
	}

	return conference, participants, nil
}

func (service *Service) activeCount(ctx context.Context, conferenceID string) (int, error) {
	participants, err := service.Store.ListParticipants(ctx, conferenceID)
	if err != nil {
		return 0, err
	}

	active := 0

	for _, participant := range participants {
		if participant.Status != ParticipantDisconnected {
			active++
		}
	}

	return active, nil
}
