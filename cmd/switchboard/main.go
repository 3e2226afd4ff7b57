package main

import (
	"context"

	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/prometheus"
	"github.com/voxaide/switchboard/internal/switchboard"
	"go.uber.org/zap"
)

func main() {
	go prometheus.Run()

	for {
		ctx, cancel := context.WithCancel(context.Background())

		app, err := switchboard.NewApp(cancel)
		if err != nil {
			logging.Logger.Fatal("failed to create switchboard app", zap.String("error", err.Error()))
		}

		err = app.Run(ctx)
		if err != nil {
			panic(err)
		}

		<-ctx.Done()

		app.HealthCheckerService.Check()

		cancel()
	}
}
