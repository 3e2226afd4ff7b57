package call

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/voxaide/switchboard/internal/database"
	"github.com/voxaide/switchboard/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCallNotFound          = errors.New("call not found")
	ErrScheduledCallNotFound = errors.New("scheduled call not found")
	ErrInvalidCallResult     = errors.New("invalid result type, it should be pointer to Call struct")
	ErrInvalidScheduleResult = errors.New("invalid result type, it should be pointer to ScheduledCall struct")
	ErrInvalidClaimResult    = errors.New("invalid result type, it should be slice of ScheduledCall structs")
	ErrInvalidReminderResult = errors.New("invalid result type, it should be slice of Reminder structs")
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

// CreateCall persists a freshly placed call.
func (repository *Repository) CreateCall(ctx context.Context, call *Call) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Create(call).Error
		if err != nil {
			logging.Logger.Error("[CreateCall] Failed to create call - may cause circuit breaker trip",
				zap.String("call_id", call.CallID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return call, nil
	})

	return err
}

// GetCallByID retrieves a Call by its callID.
func (repository *Repository) GetCallByID(ctx context.Context, callID string) (*Call, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var call Call

		err := repository.DBConn.WithContext(ctx).
			Where("call_id = ?", callID).
			First(&call).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrCallNotFound
			}

			logging.Logger.Error("[GetCallByID] Failed to fetch call - may cause circuit breaker trip",
				zap.String("call_id", callID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return &call, nil
	})
	if err != nil {
		return nil, err
	}

	call, ok := result.(*Call)
	if !ok {
		return nil, ErrInvalidCallResult
	}

	return call, nil
}

// EnsureCall fetches the call for callID, creating a row when the call is not
// known yet. Inbound calls arrive through webhooks before any local record
// exists.
func (repository *Repository) EnsureCall(ctx context.Context, call *Call) (*Call, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).
			Where("call_id = ?", call.CallID).
			FirstOrCreate(call).Error
		if err != nil {
			logging.Logger.Error("[EnsureCall] Failed to fetch or create call - may cause circuit breaker trip",
				zap.String("call_id", call.CallID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return call, nil
	})
	if err != nil {
		return nil, err
	}

	ensured, ok := result.(*Call)
	if !ok {
		return nil, ErrInvalidCallResult
	}

	return ensured, nil
}

// UpdateCallStatus updates the status of a Call identified by callID. A
// same-value update is a no-op so replayed webhooks do not churn rows.
func (repository *Repository) UpdateCallStatus(ctx context.Context, callID, status string) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var call Call

		if ctx.Err() != nil {
			logging.Logger.Warn("[UpdateCallStatus] Context canceled before DB operation",
				zap.String("call_id", callID),
				zap.Error(ctx.Err()),
			)

			return nil, ctx.Err()
		}

		err := repository.DBConn.WithContext(ctx).
			Where("call_id = ?", callID).
			First(&call).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}

		if err != nil {
			logging.Logger.Error("[UpdateCallStatus] Failed to fetch call",
				zap.String("call_id", callID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		if call.Status == status {
			return &call, nil
		}

		err = repository.DBConn.WithContext(ctx).
			Model(&call).
			Where("call_id = ?", callID).
			Update("status", status).Error
		if err != nil {
			logging.Logger.Error("[UpdateCallStatus] Failed to update call status",
				zap.String("call_id", callID),
				zap.String("status", status),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return &call, nil
	})

	return err
}

// UpdateCall applies a custom map of column updates to the call row.
func (repository *Repository) UpdateCall(ctx context.Context, callID string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		result := repository.DBConn.WithContext(ctx).
			Model(&Call{}).
			Where("call_id = ?", callID).
			Updates(updates)
		if result.Error != nil {
			logging.Logger.Error("[UpdateCall] Failed to update call - may cause circuit breaker trip",
				zap.String("call_id", callID),
				zap.Any("updates", updates),
				zap.String("error", result.Error.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, result.Error
		}

		if result.RowsAffected == 0 {
			return nil, ErrCallNotFound
		}

		return nil, nil
	})

	return err
}

// CreateScheduledCall persists a scheduled call and its reminders in one
// transaction so a failed reminder insert never leaves an orphan schedule.
func (repository *Repository) CreateScheduledCall(
	ctx context.Context,
	scheduledCall *ScheduledCall,
	reminders []*Reminder,
) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(scheduledCall).Error; err != nil {
				return err
			}

			for _, reminder := range reminders {
				reminder.ScheduledCallID = scheduledCall.ID
				if err := tx.Create(reminder).Error; err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			logging.Logger.Error("[CreateScheduledCall] Failed to create scheduled call - may cause circuit breaker trip",
				zap.String("schedule_id", scheduledCall.ID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return scheduledCall, nil
	})

	return err
}

// GetScheduledCallByID retrieves a ScheduledCall by its identifier.
func (repository *Repository) GetScheduledCallByID(ctx context.Context, scheduleID string) (*ScheduledCall, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var scheduledCall ScheduledCall

		err := repository.DBConn.WithContext(ctx).
			Where("id = ?", scheduleID).
			First(&scheduledCall).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrScheduledCallNotFound
			}

			logging.Logger.Error("[GetScheduledCallByID] Failed to fetch scheduled call - may cause circuit breaker trip",
				zap.String("schedule_id", scheduleID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return &scheduledCall, nil
	})
	if err != nil {
		return nil, err
	}

	scheduledCall, ok := result.(*ScheduledCall)
	if !ok {
		return nil, ErrInvalidScheduleResult
	}

	return scheduledCall, nil
}

// UpdateScheduledCall applies a custom map of column updates to a schedule row.
func (repository *Repository) UpdateScheduledCall(
	ctx context.Context,
	scheduleID string,
	updates map[string]any,
) error {
	if len(updates) == 0 {
		return nil
	}

	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		result := repository.DBConn.WithContext(ctx).
			Model(&ScheduledCall{}).
			Where("id = ?", scheduleID).
			Updates(updates)
		if result.Error != nil {
			logging.Logger.Error("[UpdateScheduledCall] Failed to update scheduled call - may cause circuit breaker trip",
				zap.String("schedule_id", scheduleID),
				zap.Any("updates", updates),
				zap.String("error", result.Error.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, result.Error
		}

		if result.RowsAffected == 0 {
			return nil, ErrScheduledCallNotFound
		}

		return nil, nil
	})

	return err
}

// ClaimDueScheduledCalls atomically moves due pending schedules to the
// dispatching state and returns them, so concurrent dispatch ticks never
// place the same call twice.
func (repository *Repository) ClaimDueScheduledCalls(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*ScheduledCall, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var claimed []*ScheduledCall

		err := repository.DBConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			err := tx.
				Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
				Where("status = ? AND scheduled_at <= ?", SchedulePending, now).
				Order("scheduled_at ASC").
				Limit(limit).
				Find(&claimed).Error
			if err != nil {
				return err
			}

			for _, scheduledCall := range claimed {
				err = tx.Model(scheduledCall).
					Update("status", ScheduleDispatching).Error
				if err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			logging.Logger.Error("[ClaimDueScheduledCalls] Failed to claim due schedules - may cause circuit breaker trip",
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return claimed, nil
	})
	if err != nil {
		return nil, err
	}

	claimed, ok := result.([]*ScheduledCall)
	if !ok {
		return nil, ErrInvalidClaimResult
	}

	return claimed, nil
}

// DueReminders returns pending reminders whose fire time has passed.
func (repository *Repository) DueReminders(ctx context.Context, now time.Time, limit int) ([]*Reminder, error) {
	result, err := repository.CircuitBreaker.Execute(func() (any, error) {
		var reminders []*Reminder

		err := repository.DBConn.WithContext(ctx).
			Where("status = ? AND fire_at <= ?", ReminderPending, now).
			Order("fire_at ASC").
			Limit(limit).
			Find(&reminders).Error
		if err != nil {
			logging.Logger.Error("[DueReminders] Failed to fetch due reminders - may cause circuit breaker trip",
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return reminders, nil
	})
	if err != nil {
		return nil, err
	}

	reminders, ok := result.([]*Reminder)
	if !ok {
		return nil, ErrInvalidReminderResult
	}

	return reminders, nil
}

// UpdateReminderStatus marks a reminder as sent or failed.
func (repository *Repository) UpdateReminderStatus(ctx context.Context, reminderID, status string) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).
			Model(&Reminder{}).
			Where("id = ?", reminderID).
			Update("status", status).Error
		if err != nil {
			logging.Logger.Error("[UpdateReminderStatus] Failed to update reminder - may cause circuit breaker trip",
				zap.String("reminder_id", reminderID),
				zap.String("status", status),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return nil, nil
	})

	return err
}

// CreateCallAnalysis persists one insight extraction run for a call.
func (repository *Repository) CreateCallAnalysis(ctx context.Context, analysis *CallAnalysis) error {
	_, err := repository.CircuitBreaker.Execute(func() (any, error) {
		err := repository.DBConn.WithContext(ctx).Create(analysis).Error
		if err != nil {
			logging.Logger.Error("[CreateCallAnalysis] Failed to create call analysis - may cause circuit breaker trip",
				zap.String("call_id", analysis.CallID),
				zap.String("error", err.Error()),
				zap.Bool("is_context_error", ctx.Err() != nil),
			)

			return nil, err
		}

		return analysis, nil
	})

	return err
}
