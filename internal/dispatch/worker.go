package dispatch

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/voxaide/switchboard/internal/call"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	prometheusSwitchboard "github.com/voxaide/switchboard/internal/prometheus"
	"go.uber.org/zap"
)

// Worker drives time-based work: placing due scheduled calls and firing due
// reminders. Each tick claims a batch and fans it out on the pool.
type Worker struct {
	WorkerPool  *ants.Pool
	CallService *call.Service
	Store       call.Store
	Now         func() time.Time
}

func NewWorker(callService *call.Service, store call.Store) (*Worker, error) {
	workerPool, err := ants.NewPool(config.Conf.DispatchPoolSize, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}

	return &Worker{
		WorkerPool:  workerPool,
		CallService: callService,
		Store:       store,
		Now:         time.Now,
	}, nil
}

func (worker *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(config.Conf.DispatchInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			worker.processDueSchedules(ctx)
			worker.processDueReminders(ctx)
		}
	}
}

func (worker *Worker) processDueSchedules(ctx context.Context) {
	timer := prometheus.NewTimer(prometheusSwitchboard.DispatchBatchDuration.WithLabelValues("schedules"))
	defer timer.ObserveDuration()

	claimed, err := worker.Store.ClaimDueScheduledCalls(ctx, worker.Now().UTC(), config.Conf.DispatchBatchLimit)
	if err != nil {
		return
	}

	if len(claimed) == 0 {
		return
	}

	logging.Logger.Info("start dispatching due scheduled calls", zap.Int("count_schedules", len(claimed)))

	for idx := range claimed {
		scheduledCall := claimed[idx]

		err := worker.WorkerPool.Submit(func() {
			if err := worker.CallService.DispatchScheduledCall(ctx, scheduledCall); err != nil {
				logging.Logger.Error("failed to dispatch scheduled call",
					zap.String("schedule_id", scheduledCall.ID),
					zap.String("error", err.Error()),
				)
			}
		})
		if err != nil {
			logging.Logger.Error("failed to submit dispatch worker pool",
				zap.String("schedule_id", scheduledCall.ID),
				zap.String("error", err.Error()),
			)
		}
	}
}

func (worker *Worker) processDueReminders(ctx context.Context) {
	timer := prometheus.NewTimer(prometheusSwitchboard.DispatchBatchDuration.WithLabelValues("reminders"))
	defer timer.ObserveDuration()

	reminders, err := worker.Store.DueReminders(ctx, worker.Now().UTC(), config.Conf.DispatchBatchLimit)
	if err != nil {
		return
	}

	if len(reminders) == 0 {
		return
	}

	logging.Logger.Info("start firing due reminders", zap.Int("count_reminders", len(reminders)))

	for idx := range reminders {
		reminder := reminders[idx]

		err := worker.WorkerPool.Submit(func() {
			if err := worker.CallService.FireReminder(ctx, reminder); err != nil {
				logging.Logger.Error("failed to fire reminder",
					zap.String("reminder_id", reminder.ID),
					zap.String("error", err.Error()),
				)
			}
		})
		if err != nil {
			logging.Logger.Error("failed to submit dispatch worker pool",
				zap.String("reminder_id", reminder.ID),
				zap.String("error", err.Error()),
			)
		}
	}
}

// Release returns pool resources on shutdown.
func (worker *Worker) Release() {
	worker.WorkerPool.Release()
}
