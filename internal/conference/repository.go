package conference

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
	"github.com/voxaide/switchboard/internal/database"
	"github.com/voxaide/switchboard/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrConferenceNotFound        = errors.New("conference not found")
	ErrParticipantNotFound       = errors.New("participant not found")
	ErrInvalidConferenceResult   = errors.New("invalid result type, it should be pointer to Conference struct")
	ErrInvalidParticipantResult  = errors.New("invalid result type, it should be pointer to Participant struct")
	ErrInvalidParticipantsResult = errors.New("invalid result type, it should be slice of Participant structs")
)

type Repository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *Repository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &Repository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

func (repository *Repository) CreateConference(ctx context.Context, conference *Conference) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Create(conference).Error
		if err != nil {
			logging.Logger.Error("[CreateConference] Failed to create conference - may cause circuit breaker trip",
				zap.String("conference_id", conference.ID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return conference, nil
	})

	return err
}

func (repository *Repository) GetConferenceByID(ctx context.Context, conferenceID string) (*Conference, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var conference Conference

		err := repository.DBConn.WithContext(ctx).
			Where("id = ?", conferenceID).
			First(&conference).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrConferenceNotFound
			}

			logging.Logger.Error("[GetConferenceByID] Failed to fetch conference - may cause circuit breaker trip",
				zap.String("conference_id", conferenceID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return &conference, nil
	})
	if err != nil {
		return nil, err
	}

	conference, ok := result.(*Conference)
	if !ok {
		return nil, ErrInvalidConferenceResult
	}

	return conference, nil
}

func (repository *Repository) UpdateConference(
	ctx context.Context,
	conferenceID string,
	updates map[string]any,
) error {
	if len(updates) == 0 {
		return nil
	}

	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).
			Model(&Conference{}).
			Where("id = ?", conferenceID).
			Updates(updates).Error
		if err != nil {
			logging.Logger.Error("[UpdateConference] Failed to update conference - may cause circuit breaker trip",
				zap.String("conference_id", conferenceID),
				zap.Any("updates", updates),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}

func (repository *Repository) CreateParticipant(ctx context.Context, participant *Participant) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Create(participant).Error
		if err != nil {
			logging.Logger.Error("[CreateParticipant] Failed to create participant - may cause circuit breaker trip",
				zap.String("participant_id", participant.ID),
				zap.String("conference_id", participant.ConferenceID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return participant, nil
	})

	return err
}

func (repository *Repository) GetParticipantByID(
	ctx context.Context,
	conferenceID, participantID string,
) (*Participant, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var participant Participant

		err := repository.DBConn.WithContext(ctx).
			Where("id = ? AND conference_id = ?", participantID, conferenceID).
			First(&participant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParticipantNotFound
			}

			logging.Logger.Error("[GetParticipantByID] Failed to fetch participant - may cause circuit breaker trip",
				zap.String("participant_id", participantID),
				zap.String("conference_id", conferenceID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return &participant, nil
	})
	if err != nil {
		return nil, err
	}

	participant, ok := result.(*Participant)
	if !ok {
		return nil, ErrInvalidParticipantResult
	}

	return participant, nil
}

// GetParticipantByPhone finds the most recent non-disconnected roster row
// for a phone number, so re-inviting a number promotes the existing row
// instead of duplicating it.
func (repository *Repository) GetParticipantByPhone(
	ctx context.Context,
	conferenceID, phoneNumber string,
) (*Participant, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var participant Participant

		err := repository.DBConn.WithContext(ctx).
			Where("conference_id = ? AND phone_number = ? AND status <> ?",
				conferenceID, phoneNumber, ParticipantDisconnected).
			Order("created_at DESC").
			First(&participant).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParticipantNotFound
			}

			logging.Logger.Error("[GetParticipantByPhone] Failed to fetch participant - may cause circuit breaker trip",
				zap.String("conference_id", conferenceID),
				zap.String("phone_number", phoneNumber),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return &participant, nil
	})
	if err != nil {
		return nil, err
	}

	participant, ok := result.(*Participant)
	if !ok {
		return nil, ErrInvalidParticipantResult
	}

	return participant, nil
}

// ListParticipants returns all participants of a conference in invitation
// order, disconnected rows included.
func (repository *Repository) ListParticipants(ctx context.Context, conferenceID string) ([]*Participant, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var participants []*Participant

		err := repository.DBConn.WithContext(ctx).
			Where("conference_id = ?", conferenceID).
			Order("created_at ASC").
			Find(&participants).Error
		if err != nil {
			logging.Logger.Error("[ListParticipants] Failed to list participants - may cause circuit breaker trip",
				zap.String("conference_id", conferenceID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return participants, nil
	})
	if err != nil {
		return nil, err
	}

	participants, ok := result.([]*Participant)
	if !ok {
		return nil, ErrInvalidParticipantsResult
	}

	return participants, nil
}

func (repository *Repository) UpdateParticipant(
	ctx context.Context,
	participantID string,
	updates map[string]any,
) error {
	if len(updates) == 0 {
		return nil
	}

	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).
			Model(&Participant{}).
			Where("id = ?", participantID).
			Updates(updates).Error
		if err != nil {
			logging.Logger.Error("[UpdateParticipant] Failed to update participant - may cause circuit breaker trip",
				zap.String("participant_id", participantID),
				zap.Any("updates", updates),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}
