package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/export"
	"github.com/noah-isme/classroom-gate-api/pkg/storage"
)

// Supported gradebook formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type gradebookRepository interface {
	Gradebook(ctx context.Context, courseID string) ([]models.GradebookRow, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	CourseID  string    `json:"course_id"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportDownload is an opened export ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders course gradebooks and hands out signed download links.
type ExportService struct {
	gradebook gradebookRepository
	storage   fileStorage
	renderers map[string]export.Renderer
	signer    *storage.SignedURLSigner
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(gradebook gradebookRepository, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	csvRenderer := export.NewCSVExporter()
	pdfRenderer := export.NewPDFExporter()
	return &ExportService{
		gradebook: gradebook,
		storage:   store,
		renderers: map[string]export.Renderer{
			csvRenderer.Extension(): csvRenderer,
			pdfRenderer.Extension(): pdfRenderer,
		},
		signer:  signer,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SupportsFormat reports whether format can be rendered.
func (s *ExportService) SupportsFormat(format string) bool {
	_, ok := s.renderers[strings.ToLower(format)]
	return ok
}

// ExportGradebook renders the gradebook of course, stores it and returns a signed link.
func (s *ExportService) ExportGradebook(ctx context.Context, course models.Course, format string) (*ExportResult, error) {
	format = strings.ToLower(format)
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	start := time.Now()
	rows, err := s.gradebook.Gradebook(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveDBQuery("analytics_gradebook", time.Since(start))

	dataset := buildGradebookDataset(course, rows)
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render gradebook")
	}

	filename := fmt.Sprintf("gradebooks/%s/%s.%s", sanitizeFilename(course.ID), s.now().UTC().Format("20060102_150405"), renderer.Extension())
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store gradebook")
	}

	token, expiresAt, err := s.signer.Sign(course.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign gradebook link")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("gradebook exported",
		zap.String("course_id", course.ID),
		zap.String("format", format),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportResult{
		CourseID:  course.ID,
		Format:    format,
		Rows:      len(dataset.Rows),
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open validates a download token and opens the referenced file.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	signed, err := s.signer.Verify(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(signed.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}

	ext := strings.TrimPrefix(filepath.Ext(signed.Path), ".")
	contentType := "application/octet-stream"
	if renderer, ok := s.renderers[ext]; ok {
		contentType = renderer.ContentType()
	}
	return &ExportDownload{
		File:        file,
		Filename:    fmt.Sprintf("gradebook_%s.%s", sanitizeFilename(signed.Subject), ext),
		ContentType: contentType,
	}, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// buildGradebookDataset pivots (student, assignment) rows into one line per student with a
// column per assignment and a running total.
func buildGradebookDataset(course models.Course, rows []models.GradebookRow) export.Dataset {
	type column struct {
		id    string
		title string
		max   float64
	}
	columns := lo.UniqBy(lo.Map(rows, func(r models.GradebookRow, _ int) column {
		return column{id: r.AssignmentID, title: r.AssignmentTitle, max: r.MaxGrade}
	}), func(c column) string { return c.id })

	headers := []string{"Student ID", "Student"}
	for _, c := range columns {
		headers = append(headers, fmt.Sprintf("%s (/%s)", c.title, formatGrade(c.max)))
	}
	headers = append(headers, "Total")

	byStudent := lo.GroupBy(rows, func(r models.GradebookRow) string { return r.StudentID })
	students := lo.Uniq(lo.Map(rows, func(r models.GradebookRow, _ int) string { return r.StudentID }))

	out := make([][]string, 0, len(students))
	for _, studentID := range students {
		cells := byStudent[studentID]
		grades := lo.Associate(cells, func(r models.GradebookRow) (string, *float64) { return r.AssignmentID, r.Grade })
		line := []string{studentID, cells[0].StudentName}
		var total float64
		for _, c := range columns {
			grade := grades[c.id]
			if grade == nil {
				line = append(line, "")
				continue
			}
			total += *grade
			line = append(line, formatGrade(*grade))
		}
		line = append(line, formatGrade(total))
		out = append(out, line)
	}

	return export.Dataset{
		Title:   fmt.Sprintf("Gradebook: %s", course.Title),
		Headers: headers,
		Rows:    out,
	}
}

func formatGrade(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
