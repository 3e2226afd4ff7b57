package healthchecker

import (
	"context"

	"github.com/google/uuid"
	"github.com/voxaide/switchboard/internal/events"
	"github.com/voxaide/switchboard/internal/logging"
	"go.uber.org/zap"
)

const healthcheckEventType = "healthcheck"

func CheckKafkaProducer() error {
	producer, err := events.NewProducer()
	if err != nil {
		logging.Logger.Error("failed to create new kafka producer client", zap.String("error", err.Error()))
		return err
	}

	defer func() {
		_ = producer.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	return producer.Publish(ctx, events.CallEvent{
		Type:   healthcheckEventType,
		CallID: uuid.NewString(),
	})
}
