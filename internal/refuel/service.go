package refuel

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/TejasRanjith/fuel-tracker/internal/recognition"
)

// IDGenerator generates unique IDs for records and scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles refueling record and scan operations
type Service struct {
	db          DB
	recognizer  recognition.Recognizer
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, recognizer recognition.Recognizer, storage Storage) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, recognizer recognition.Recognizer, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		recognizer:  recognizer,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	// Phone cameras generate very long names, cap the base
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "scan"
	}

	return base + ext
}

// AddRecord validates and persists a new refueling record. Validation here
// is the form-level gate: derivation downstream tolerates anomalies, so this
// is the only place bad numbers are rejected.
func (s *Service) AddRecord(date time.Time, odometer, fuelAmount, price float64, station string) (*Record, error) {
	if !isFinite(odometer) || !isFinite(fuelAmount) || !isFinite(price) {
		return nil, fmt.Errorf("odometer, fuel amount and price must be finite numbers")
	}
	if odometer < 0 {
		return nil, fmt.Errorf("odometer must not be negative")
	}
	if fuelAmount <= 0 {
		return nil, fmt.Errorf("fuel amount must be positive")
	}
	if price < 0 {
		return nil, fmt.Errorf("price must not be negative")
	}

	now := s.timeSource.Now()
	if date.IsZero() {
		date = now
	}

	record := &Record{
		ID:         s.idGenerator.Generate(),
		Date:       date,
		Odometer:   odometer,
		FuelAmount: fuelAmount,
		Price:      price,
		Station:    strings.TrimSpace(station),
		CreatedAt:  now,
	}

	if err := s.db.SaveRecord(record); err != nil {
		return nil, fmt.Errorf("saving record to database: %w", err)
	}

	return record, nil
}

// History re-derives the enriched history and stats from the full record
// snapshot. Stats is nil when fewer than two records exist.
func (s *Service) History() ([]*HistoryEntry, *Stats, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, nil, fmt.Errorf("listing records: %w", err)
	}
	history, stats := DeriveHistory(records)
	return history, stats, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(id string) (*Record, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// DeleteRecord removes a record from the database
func (s *Service) DeleteRecord(id string) error {
	if _, err := s.db.GetRecord(id); err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}
	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record from database: %w", err)
	}
	return nil
}

// ProcessScan archives a meter/receipt photo, runs text recognition on it,
// and saves the scan with its ranked numeric candidates. An empty candidate
// list is a successful scan; only a recognition failure is an error.
func (s *Service) ProcessScan(filename string, data []byte, contentType string) (*Scan, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}

	text, err := s.recognizer.RecognizeText(data, contentType)
	if err != nil {
		slog.Error("Failed to recognize image text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// Clean up the archived image since recognition failed
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("recognizing image text: %w", err)
	}

	scan := &Scan{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		Text:        text,
		Candidates:  recognition.ExtractNumbers(text),
		CreatedAt:   now,
	}

	if err := s.db.SaveScan(scan); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	return scan, nil
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all archived scans
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// GetScanImage retrieves the archived image for a scan
func (s *Service) GetScanImage(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Get(scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan image: %w", err)
	}

	return data, scan.ContentType, nil
}

// DeleteScan removes a scan and its archived image
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if err := s.storage.Delete(scan.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete image", "filename", scan.Filename, "error", err)
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}
