// internal/domain/upload/service.go
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/drinksharbour/drinksharbour-api/internal/config"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/apperrors"
	"github.com/drinksharbour/drinksharbour-api/internal/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// extensionsByMime lists the file extensions accepted for each image type
var extensionsByMime = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
	"image/gif":  {".gif"},
	"image/avif": {".avif"},
}

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*(/[a-z0-9][a-z0-9_-]*)*$`)

// Service handles file upload business logic
type Service struct {
	db      *gorm.DB
	config  *config.Config
	storage Storage
	logger  *logrus.Entry
}

// NewService creates a new upload service
func NewService(db *gorm.DB, cfg *config.Config, storage Storage, logger *logrus.Entry) *Service {
	return &Service{
		db:      db,
		config:  cfg,
		storage: storage,
		logger:  logger,
	}
}

// NewStorage selects the storage backend named in the upload config
func NewStorage(cfg *config.Config, m *metrics.Metrics, logger *logrus.Entry) (Storage, error) {
	if cfg.Upload.Provider == "cloudinary" {
		return NewCloudinaryStorage(cfg.External.Cloudinary, m, logger)
	}
	return NewLocalStorage(cfg.Upload.LocalPath, cfg.Upload.PublicBaseURL), nil
}

// File is one incoming image
type File struct {
	Filename string
	Size     int64 // as declared by the client, 0 when unknown
	Open     func() (io.ReadCloser, error)
}

// ImageUploadRequest represents an image upload request
type ImageUploadRequest struct {
	File       File
	Folder     string
	UploadedBy uint
}

// BulkUploadRequest represents bulk upload request
type BulkUploadRequest struct {
	Files      []File
	Folder     string
	UploadedBy uint
}

// BulkUploadResult represents bulk upload result
type BulkUploadResult struct {
	Uploaded []Upload      `json:"uploaded"`
	Failed   []FailedUpload `json:"failed"`
	Summary  UploadSummary `json:"summary"`
}

// FailedUpload represents a failed upload
type FailedUpload struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadSummary represents upload summary
type UploadSummary struct {
	TotalFiles   int   `json:"total_files"`
	SuccessCount int   `json:"success_count"`
	FailureCount int   `json:"failure_count"`
	TotalSize    int64 `json:"total_size"`
}

// UploadImage validates and stores a single image
func (s *Service) UploadImage(ctx context.Context, req *ImageUploadRequest) (*Upload, error) {
	folder, err := normalizeFolder(req.Folder)
	if err != nil {
		return nil, err
	}

	data, mime, ext, err := s.readImage(req.File)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Upload(ctx, bytes.NewReader(data), UploadOptions{
		PublicID:  uuid.NewString(),
		Folder:    folder,
		Extension: ext,
		MimeType:  mime,
	})
	if err != nil {
		return nil, err
	}

	record := Upload{
		PublicID:     obj.PublicID,
		Provider:     s.storage.Name(),
		Folder:       folder,
		URL:          obj.URL,
		OriginalName: filepath.Base(req.File.Filename),
		MimeType:     mime,
		Size:         int64(len(data)),
		Width:        obj.Width,
		Height:       obj.Height,
		UploadedBy:   req.UploadedBy,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		// Clean up file if database insert fails
		if derr := s.storage.Delete(ctx, obj.PublicID); derr != nil {
			s.logger.WithError(derr).WithField("public_id", obj.PublicID).Warn("failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to save file info: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"public_id": record.PublicID,
		"size":      record.GetFormattedSize(),
		"mime":      record.MimeType,
	}).Info("image uploaded")
	return &record, nil
}

// BulkUploadImages uploads multiple images, reporting failures per file
func (s *Service) BulkUploadImages(ctx context.Context, req *BulkUploadRequest) (*BulkUploadResult, error) {
	maxFiles := s.config.Upload.MaxFiles
	if maxFiles <= 0 {
		maxFiles = 10
	}
	if len(req.Files) == 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "no files provided")
	}
	if len(req.Files) > maxFiles {
		return nil, apperrors.Newf(apperrors.CodeValidation, "at most %d files can be uploaded at once", maxFiles)
	}
	if _, err := normalizeFolder(req.Folder); err != nil {
		return nil, err
	}

	result := &BulkUploadResult{
		Uploaded: []Upload{},
		Failed:   []FailedUpload{},
		Summary: UploadSummary{
			TotalFiles: len(req.Files),
		},
	}

	for _, f := range req.Files {
		uploaded, err := s.UploadImage(ctx, &ImageUploadRequest{File: f, Folder: req.Folder, UploadedBy: req.UploadedBy})
		if err != nil {
			msg := err.Error()
			if typed := apperrors.As(err); typed != nil {
				msg = typed.Message()
			}
			result.Failed = append(result.Failed, FailedUpload{Filename: f.Filename, Error: msg})
			result.Summary.FailureCount++
			continue
		}
		result.Uploaded = append(result.Uploaded, *uploaded)
		result.Summary.SuccessCount++
		result.Summary.TotalSize += uploaded.Size
	}

	return result, nil
}

// DeleteImage removes an image from storage and its record.
// publicID may use ':' in place of '/'.
func (s *Service) DeleteImage(ctx context.Context, publicID string) error {
	publicID = DecodePublicID(publicID)

	var record Upload
	if err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&record).Error; err != nil {
		return apperrors.FromGorm(err, "image")
	}

	if err := s.storage.Delete(ctx, record.PublicID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&record).Error; err != nil {
		return fmt.Errorf("failed to delete image record: %w", err)
	}

	s.logger.WithField("public_id", record.PublicID).Info("image deleted")
	return nil
}

// readImage loads the file within the size limit and checks its sniffed type
func (s *Service) readImage(f File) ([]byte, string, string, error) {
	maxSize := s.config.Upload.MaxFileSize
	if f.Size > maxSize {
		return nil, "", "", apperrors.Newf(apperrors.CodeValidation, "file exceeds the maximum size of %d bytes", maxSize)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to open file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", "", apperrors.Newf(apperrors.CodeValidation, "file exceeds the maximum size of %d bytes", maxSize)
	}
	if len(data) == 0 {
		return nil, "", "", apperrors.New(apperrors.CodeValidation, "file is empty")
	}

	detected := mimetype.Detect(data)
	mime := detected.String()
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if !s.allowed(mime) {
		return nil, "", "", apperrors.Newf(apperrors.CodeValidation, "file type %s is not allowed", mime)
	}

	ext := strings.ToLower(filepath.Ext(f.Filename))
	if !contains(extensionsByMime[mime], ext) {
		return nil, "", "", apperrors.Newf(apperrors.CodeValidation, "file extension %q does not match its content (%s)", ext, mime)
	}
	return data, mime, ext, nil
}

func (s *Service) allowed(mime string) bool {
	if _, ok := extensionsByMime[mime]; !ok {
		return false
	}
	if len(s.config.Upload.AllowedTypes) == 0 {
		return true
	}
	return contains(s.config.Upload.AllowedTypes, mime)
}

func normalizeFolder(folder string) (string, error) {
	folder = strings.Trim(strings.ToLower(strings.TrimSpace(folder)), "/")
	if folder == "" {
		return "general", nil
	}
	if len(folder) > 100 || !folderPattern.MatchString(folder) {
		return "", apperrors.New(apperrors.CodeValidation, "folder may only contain lowercase letters, digits, '-', '_' and '/'")
	}
	return folder, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
