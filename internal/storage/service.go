package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/voxaide/switchboard/internal/circuitbreak"
	"github.com/voxaide/switchboard/internal/config"
	"github.com/voxaide/switchboard/internal/logging"
	prometheusSwitchboard "github.com/voxaide/switchboard/internal/prometheus"
	"go.uber.org/zap"
)

var (
	ErrConvertToObjectKey = errors.New("failed to convert result to object key string")
	ErrRecordingFetch     = errors.New("recording fetch returned non-2xx status")
)

// Archiver copies provider-hosted call recordings into the recordings
// bucket so they survive provider retention windows.
type Archiver struct {
	Client         *minio.Client
	HTTPClient     *http.Client
	CircuitBreaker *gobreaker.CircuitBreaker[any]
	BucketName     string
	PathPrefix     string
	MaxFileSize    int64
}

// NewArchiver initializes a MinIO-backed recording archiver.
func NewArchiver() (*Archiver, error) {
	endpointURL := config.Conf.MinioEndpointURL

	client, err := minio.New(endpointURL, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Conf.MinioAccessKey, config.Conf.MinioSecretKey, ""),
		Secure: true,
	})
	if err != nil {
		logging.Logger.Error("Failed to initialize MinIO client",
			zap.String("error", err.Error()),
		)

		return nil, err
	}

	logging.Logger.Info("Successfully connected to MinIO",
		zap.String("endpoint", endpointURL),
		zap.String("bucket", config.Conf.MinioBucketName),
	)

	return &Archiver{
		Client: client,
		HTTPClient: &http.Client{
			Timeout: time.Duration(config.Conf.MinioTimeout) * time.Second,
		},
		CircuitBreaker: newCircuitBreaker(),
		BucketName:     config.Conf.MinioBucketName,
		PathPrefix:     config.Conf.MinioPathPrefix,
		MaxFileSize:    config.Conf.RecordingMaxFileSize,
	}, nil
}

func newCircuitBreaker() *gobreaker.CircuitBreaker[any] {
	settings := gobreaker.Settings{
		Name:     "minio",
		Interval: time.Duration(config.Conf.MinioIntervalCB) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.Conf.MinioConsecutiveFailuresCB
		},
		OnStateChange: func(name string, fromState, toState gobreaker.State) {
			logging.Logger.Warn(
				"Circuit state changed",
				zap.String("service", name),
				zap.String("from", fromState.String()),
				zap.String("to", toState.String()),
			)

			if toState == gobreaker.StateOpen {
				circuitbreak.TriggerError(circuitbreak.StorageService)
			}
		},
	}

	return gobreaker.NewCircuitBreaker[any](settings)
}

// Archive downloads the recording from the provider URL and uploads it to
// the bucket, returning the object key.
func (archiver *Archiver) Archive(ctx context.Context, callID, recordingURL string) (string, error) {
	logging.Logger.Info("Starting recording archive",
		zap.String("call_id", callID),
		zap.String("recording_url", recordingURL),
	)

	result, err := archiver.CircuitBreaker.Execute(func() (any, error) {
		return archiver.doArchive(ctx, callID, recordingURL)
	})
	if err != nil {
		return "", err
	}

	objectKey, ok := result.(string)
	if !ok {
		return "", ErrConvertToObjectKey
	}

	return objectKey, nil
}

func (archiver *Archiver) doArchive(ctx context.Context, callID, recordingURL string) (string, error) {
	timer := prometheus.NewTimer(prometheusSwitchboard.RecordingArchiveDuration.WithLabelValues("archive"))
	defer timer.ObserveDuration()

	objectKey := archiver.objectKey(callID)

	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}

			buffer, err := archiver.fetchRecording(ctx, recordingURL)
			if err != nil {
				logging.Logger.Error("Recording fetch failed",
					zap.String("call_id", callID),
					zap.String("error", err.Error()),
				)

				return err
			}

			_, err = archiver.Client.PutObject(
				ctx,
				archiver.BucketName,
				objectKey,
				bytes.NewReader(buffer.Bytes()),
				int64(buffer.Len()),
				minio.PutObjectOptions{ContentType: "audio/mpeg"},
			)
			if err != nil {
				logging.Logger.Error("MinIO upload failed",
					zap.String("object_key", objectKey),
					zap.String("error", err.Error()),
				)

				return err
			}

			logging.Logger.Info("Recording archived successfully",
				zap.String("call_id", callID),
				zap.String("object_key", objectKey),
				zap.Int("size", buffer.Len()),
			)

			return nil
		},
		retry.Attempts(config.Conf.MinioMaxRetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(time.Duration(config.Conf.MinioRetryBackoffMinSeconds)*time.Second),
		retry.MaxDelay(time.Duration(config.Conf.MinioRetryBackoffMaxSeconds)*time.Second),
	)
	if err != nil {
		logging.Logger.Error("Recording archive failed after all retry attempts",
			zap.String("call_id", callID),
			zap.String("error", err.Error()),
		)

		return "", err
	}

	return objectKey, nil
}

func (archiver *Archiver) fetchRecording(ctx context.Context, recordingURL string) (*bytes.Buffer, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, err
	}

	response, err := archiver.HTTPClient.Do(request)
	if err != nil {
		return nil, err
	}

	defer func() {
		cerr := response.Body.Close()
		if cerr != nil {
			logging.Logger.Error("Failed to close recording response body",
				zap.String("error", cerr.Error()),
			)
		}
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d", ErrRecordingFetch, response.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, archiver.MaxFileSize))
	if err != nil {
		return nil, err
	}

	return bytes.NewBuffer(data), nil
}

func (archiver *Archiver) objectKey(callID string) string {
	return filepath.Join(archiver.PathPrefix, fmt.Sprintf("%s.mp3", callID))
}
