// internal/domain/upload/cloudinary.go
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// cdnClient is the subset of the Cloudinary upload API used here
type cdnClient interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStorage uploads images to Cloudinary behind a circuit breaker
type CloudinaryStorage struct {
	client  cdnClient
	folder  string
	breaker *gobreaker.CircuitBreaker[any]
	logger  *logrus.Entry
}

// NewCloudinaryStorage creates a Cloudinary backed storage
func NewCloudinaryStorage(cfg config.CloudinaryConfig, m *metrics.Metrics, logger *logrus.Entry) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary client: %w", err)
	}
	return newCloudinaryStorage(&cld.Upload, cfg.Folder, m, logger), nil
}

func newCloudinaryStorage(client cdnClient, folder string, m *metrics.Metrics, logger *logrus.Entry) *CloudinaryStorage {
	settings := gobreaker.Settings{
		Name:    "cloudinary",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.BreakerState(name, int(to))
			logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
		},
	}
	return &CloudinaryStorage{
		client:  client,
		folder:  folder,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// Name identifies the provider on upload records
func (s *CloudinaryStorage) Name() string { return "cloudinary" }

// Upload streams r to Cloudinary
func (s *CloudinaryStorage) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*StoredObject, error) {
	res, err := s.breaker.Execute(func() (any, error) {
		out, err := s.client.Upload(ctx, r, uploader.UploadParams{
			PublicID:     opts.PublicID,
			Folder:       path.Join(s.folder, opts.Folder),
			ResourceType: "image",
		})
		if err != nil {
			return nil, err
		}
		if out.Error.Message != "" {
			return nil, errors.New(out.Error.Message)
		}
		return out, nil
	})
	if err != nil {
		return nil, cdnError(err, "failed to upload image")
	}

	out := res.(*uploader.UploadResult)
	return &StoredObject{
		PublicID: out.PublicID,
		URL:      out.SecureURL,
		Width:    out.Width,
		Height:   out.Height,
		Bytes:    int64(out.Bytes),
	}, nil
}

// Delete destroys an image on Cloudinary. Missing images are not an error.
func (s *CloudinaryStorage) Delete(ctx context.Context, publicID string) error {
	_, err := s.breaker.Execute(func() (any, error) {
		out, err := s.client.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, ResourceType: "image"})
		if err != nil {
			return nil, err
		}
		if out.Error.Message != "" {
			return nil, errors.New(out.Error.Message)
		}
		if out.Result != "ok" && out.Result != "not found" {
			return nil, fmt.Errorf("unexpected destroy result %q", out.Result)
		}
		return out, nil
	})
	if err != nil {
		return cdnError(err, "failed to delete image")
	}
	return nil
}

func cdnError(err error, message string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.Wrap(apperrors.CodeDependency, err, "image service temporarily unavailable")
	}
	return apperrors.Wrap(apperrors.CodeDependency, err, message)
}
