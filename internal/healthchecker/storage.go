package healthchecker

import (
	"context"

	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	"github.com/voxaide/switchboard/internal/storage"
	"go.uber.org/zap"
)

func CheckStorage() error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	archiver, err := storage.NewArchiver()
	if err != nil {
		logging.Logger.Error("failed to create new minio client", zap.String("error", err.Error()))
		return err
	}

	_, err = archiver.Client.BucketExists(ctx, config.Conf.MinioBucketName)

	return err
}
