package switchboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voxaide/switchboard/internal/call"
	"github.com/voxaide/switchboard/internal/circuitbreak"
	"github.com/voxaide/switchboard/internal/conference"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/database"
	"github.com/voxaide/switchboard/internal/dispatch"
	"github.com/voxaide/switchboard/internal/events"
	"github.com/voxaide/switchboard/internal/healthchecker"
	"github.com/voxaide/switchboard/internal/insights"
	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/provider"
	"github.com/voxaide/switchboard/internal/storage"
	"github.com/voxaide/switchboard/internal/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

type Switchboard struct {
	DBConn               *gorm.DB
	Providers            map[provider.Vendor]provider.Provider
	KafkaProducer        *events.Producer
	Archiver             *storage.Archiver
	CallService          *call.Service
	ConferenceService    *conference.Service
	InsightsService      *insights.Service
	DispatchWorker       *dispatch.Worker
	HealthCheckerService *healthchecker.Healthchecker
	HTTPServer           *http.Server
}

func NewApp(ctxCancelFunc context.CancelFunc) (*Switchboard, error) {
	logging.Logger.Info("[NewApp] Initializing switchboard application...")

	healthcheckerService := healthchecker.NewService(ctxCancelFunc)

	logging.Logger.Info("[NewApp] Health checker service created")

	dbConn, err := database.NewDatabase()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to initialize database", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Database connection established")

	archiver, err := storage.NewArchiver()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to initialize recording archiver", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Recording archiver created")

	kafkaProducer, err := events.NewProducer()
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create Kafka producer", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Kafka producer created")

	providers := map[provider.Vendor]provider.Provider{
		provider.VendorTwilio: provider.NewTwilioAdapter(),
		provider.VendorVapi:   provider.NewVapiAdapter(),
	}

	logging.Logger.Info("[NewApp] Provider adapters created",
		zap.String("default", config.Conf.DefaultProvider),
	)

	callRepository := call.NewRepository(dbConn)
	callService := call.NewService(callRepository, providers, kafkaProducer, archiver)
	conferenceService := conference.NewService(conference.NewRepository(dbConn), providers)
	insightsService := insights.NewService(callRepository)

	logging.Logger.Info("[NewApp] Services created")

	dispatchWorker, err := dispatch.NewWorker(callService, callRepository)
	if err != nil {
		logging.Logger.Error("[NewApp] Failed to create dispatch worker", zap.Error(err))
		return nil, err
	}

	logging.Logger.Info("[NewApp] Dispatch worker created",
		zap.Int("pool_size", config.Conf.DispatchPoolSize),
	)

	logging.Logger.Info("[NewApp] Initializing circuit breakers...")
	circuitbreak.Init()
	logging.Logger.Info("[NewApp] Circuit breakers initialized")

	return &Switchboard{
		DBConn:               dbConn,
		Providers:            providers,
		KafkaProducer:        kafkaProducer,
		Archiver:             archiver,
		CallService:          callService,
		ConferenceService:    conferenceService,
		InsightsService:      insightsService,
		DispatchWorker:       dispatchWorker,
		HealthCheckerService: healthcheckerService,
		HTTPServer:           newHTTPServer(callService, conferenceService, insightsService),
	}, nil
}

func newHTTPServer(
	callService *call.Service,
	conferenceService *conference.Service,
	insightsService *insights.Service,
) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	handler := webhook.NewHandler(callService, conferenceService, insightsService)
	handler.RegisterRoutes(router)

	return &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Conf.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: time.Duration(config.Conf.HTTPTimeout) * time.Second,
	}
}

func (app *Switchboard) Run(ctx context.Context) error {
	logging.Logger.Info("[Run] Starting app goroutines...")

	logging.Logger.Info("[Run] Starting health checker monitor goroutine")

	go app.HealthCheckerService.Monitor()

	logging.Logger.Info("[Run] Starting dispatch worker goroutine")

	go app.DispatchWorker.Run(ctx)

	serverErr := make(chan error, 1)

	go func() {
		logging.Logger.Info("[Run] HTTP server listening", zap.String("addr", app.HTTPServer.Addr))

		err := app.HTTPServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logging.Logger.Error("[Run] HTTP server failed", zap.String("error", err.Error()))
		app.shutdown()

		return err
	case <-ctx.Done():
		app.shutdown()

		return nil
	}
}

func (app *Switchboard) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logging.Logger.Info("[Run] Shutting down HTTP server...")

	err := app.HTTPServer.Shutdown(shutdownCtx)
	if err != nil {
		logging.Logger.Error("[Run] Failed to shut down HTTP server", zap.String("error", err.Error()))
	}

	logging.Logger.Info("[Run] Releasing dispatch worker pool...")
	app.DispatchWorker.Release()
	logging.Logger.Info("[Run] Dispatch worker pool released")

	logging.Logger.Info("[Run] Closing Kafka producer...")

	err = app.KafkaProducer.Close()
	if err != nil {
		logging.Logger.Error("[Run] Failed to close producer", zap.String("error", err.Error()))
	} else {
		logging.Logger.Info("[Run] Kafka producer closed successfully")
	}

	logging.Logger.Info("[Run] ===== App shutdown complete =====")
}
