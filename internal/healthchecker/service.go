package healthchecker

import (
	"context"
	"time"

	"github.com/voxaide/switchboard/internal/circuitbreak"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Healthchecker struct {
	CtxCancelFunc context.CancelFunc
	ErrorService  string
}

func NewService(ctxCancelFunc context.CancelFunc) *Healthchecker {
	return &Healthchecker{
		CtxCancelFunc: ctxCancelFunc,
	}
}

// Monitor blocks until a circuit breaker trips, then cancels the app context
// so the run loop can tear everything down and wait for recovery.
func (h *Healthchecker) Monitor() {
	logging.Logger.Info("health checker monitor start successfully")

	serviceName := <-circuitbreak.CircuitBreakChan

	logging.Logger.Info("circuit break happened", zap.String("service", serviceName))
	h.ErrorService = serviceName
	h.CtxCancelFunc()
}

// Check polls the broken dependency until it answers again.
func (h *Healthchecker) Check() {
	if h.ErrorService == "" {
		logging.Logger.Error("healthchecker error service is empty")
	}

	ticker := time.NewTicker(time.Duration(config.Conf.HealthCheckerMonitorInterval) * time.Second)
	defer ticker.Stop()

	for {
		<-ticker.C

		ok := h.checkErrorService()
		if ok {
			return
		}
	}
}

// CheckAll probes every external dependency concurrently and returns the
// first failure. It backs the readiness endpoint.
func CheckAll() error {
	var group errgroup.Group

	group.Go(CheckDB)
	group.Go(CheckTwilio)
	group.Go(CheckVapi)
	group.Go(CheckStorage)
	group.Go(CheckKafkaProducer)

	return group.Wait()
}

func (h *Healthchecker) checkErrorService() bool {
	type checkFunc func() error

	checks := map[string]checkFunc{
		circuitbreak.DBService:            CheckDB,
		circuitbreak.TwilioService:        CheckTwilio,
		circuitbreak.VapiService:          CheckVapi,
		circuitbreak.InsightsService:      CheckInsights,
		circuitbreak.StorageService:       CheckStorage,
		circuitbreak.KafkaProducerService: CheckKafkaProducer,
	}

	check, ok := checks[h.ErrorService]
	if !ok {
		logging.Logger.Warn("Unknown service in checkErrorService", zap.String("service", h.ErrorService))
		return false
	}

	err := check()
	if err != nil {
		logging.Logger.Info(h.ErrorService+" service still unhealthy", zap.Error(err))
		return false
	}

	logging.Logger.Info(h.ErrorService + " service back healthy")

	return true
}
