package expense

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sgrimes/expenselens/internal/category"
)

// Scanner runs the extraction pipeline for one receipt image. Scan performs
// a single pass; Rescan is the user-initiated variant that retries the
// structured stage before falling back.
type Scanner interface {
	Scan(ctx context.Context, image []byte, contentType string) (*Record, error)
	Rescan(ctx context.Context, image []byte, contentType string) (*Record, error)
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time { return time.Now() }

// Service owns the record lifecycle around the pipeline: one record per
// scanned image, explicit corrections afterwards, deletion by ID.
type Service struct {
	db         DB
	scanner    Scanner
	storage    Storage
	timeSource TimeSource
	logger     *slog.Logger
}

func NewService(db DB, scanner Scanner, storage Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:         db,
		scanner:    scanner,
		storage:    storage,
		timeSource: defaultTimeSource{},
		logger:     logger,
	}
}

// NewServiceWithDeps is the test constructor.
func NewServiceWithDeps(db DB, scanner Scanner, storage Storage, ts TimeSource, logger *slog.Logger) *Service {
	s := NewService(db, scanner, storage, logger)
	s.timeSource = ts
	return s
}

var (
	reFilenameNoise = regexp.MustCompile(`[^a-zA-Z0-9\s\-_.]`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up phone-generated filenames before they become
// storage keys.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)

	base = reFilenameNoise.ReplaceAllString(base, "")
	base = strings.TrimSpace(reSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ProcessReceipt runs the pipeline over an uploaded image and persists the
// resulting record together with the original file.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Record, error) {
	rec, err := s.scanner.Scan(ctx, data, contentType)
	if err != nil {
		s.logger.Error("scan failed",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", rec.ID, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	rec.ImageFile = savedPath
	rec.ContentType = contentType

	if err := s.db.SaveRecord(rec); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving record: %w", err)
	}

	s.logger.Info("receipt processed",
		"id", rec.ID,
		"vendor", rec.Vendor.DisplayName(),
		"category", rec.Category,
		"confidence", rec.Confidence,
		"needs_review", rec.NeedsReview,
		"source", rec.Source,
	)
	return rec, nil
}

// GetRecord retrieves a record by ID.
func (s *Service) GetRecord(id uuid.UUID) (*Record, error) {
	rec, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return rec, nil
}

// ListRecords returns all records.
func (s *Service) ListRecords() ([]*Record, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record and its stored image.
func (s *Service) DeleteRecord(id uuid.UUID) error {
	rec, err := s.db.GetRecord(id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if rec.ImageFile != "" {
		if err := s.storage.Delete(rec.ImageFile); err != nil {
			s.logger.Warn("failed to delete image file", "file", rec.ImageFile, "error", err)
		}
	}

	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

// GetRecordFile retrieves the original image for a record.
func (s *Service) GetRecordFile(id uuid.UUID) ([]byte, string, error) {
	rec, err := s.db.GetRecord(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting record: %w", err)
	}
	data, err := s.storage.Get(rec.ImageFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting record file: %w", err)
	}
	return data, rec.ContentType, nil
}

// ReassignCategory is the explicit category correction. The label must be a
// taxonomy value (or a recognized variant of one).
func (s *Service) ReassignCategory(id uuid.UUID, label string) (*Record, error) {
	cat, ok := category.Canonicalize(label)
	if !ok {
		return nil, fmt.Errorf("unknown category: %q", label)
	}

	rec, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	rec.Category = cat
	rec.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveRecord(rec); err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}
	return rec, nil
}

// ClearReview marks a record as human-verified.
func (s *Service) ClearReview(id uuid.UUID) (*Record, error) {
	rec, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	rec.NeedsReview = false
	rec.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveRecord(rec); err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}
	return rec, nil
}

// Rescan re-runs the pipeline over a record's stored image, with retries on
// the structured stage. The record keeps its identity; everything extracted
// is replaced.
func (s *Service) Rescan(ctx context.Context, id uuid.UUID) (*Record, error) {
	prior, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}

	data, err := s.storage.Get(prior.ImageFile)
	if err != nil {
		return nil, fmt.Errorf("getting record file: %w", err)
	}

	fresh, err := s.scanner.Rescan(ctx, data, prior.ContentType)
	if err != nil {
		return nil, fmt.Errorf("rescanning receipt: %w", err)
	}

	// the ID is assigned once; a rescan only replaces extracted content
	fresh.ID = prior.ID
	fresh.CreatedAt = prior.CreatedAt
	fresh.ImageFile = prior.ImageFile
	fresh.ContentType = prior.ContentType
	fresh.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveRecord(fresh); err != nil {
		return nil, fmt.Errorf("saving record: %w", err)
	}
	return fresh, nil
}
