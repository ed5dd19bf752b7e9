package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/pkg/export"
	"github.com/noah-isme/sis-records-api/pkg/storage"
)

type sectionReportSource interface {
	SectionCards(ctx context.Context, sectionID string) ([]export.ReportCard, error)
	SectionSummaries(ctx context.Context, sectionID string) ([]dto.GradeSummary, error)
}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders section reports and persists the files behind signed URLs.
type ExportService struct {
	source   sectionReportSource
	sections sectionFinder
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	cards    cardBatchRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
	now      func() time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type cardBatchRenderer interface {
	SF9(cards ...export.ReportCard) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(source sectionReportSource, sections sectionFinder, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, cards cardBatchRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if cards == nil {
		cards = export.NewReportCardRenderer()
	}
	return &ExportService{
		source:   source,
		sections: sections,
		storage:  storage,
		csv:      csv,
		pdf:      pdf,
		cards:    cards,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Generate renders the job's report and stores it.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	section, err := s.sections.FindByID(ctx, job.Params.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("section %s not found", job.Params.SectionID)
		}
		return nil, err
	}

	payload, err := s.render(ctx, job, section)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, section), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	s.logger.Info("report rendered",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("section_id", section.ID),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) render(ctx context.Context, job *models.ReportJob, section *models.Section) ([]byte, error) {
	if !job.Type.Supports(job.Params.Format) {
		return nil, fmt.Errorf("%s is not available as %s", job.Type, job.Params.Format)
	}
	switch job.Type {
	case models.ReportTypeSF9:
		cards, err := s.source.SectionCards(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		if len(cards) == 0 {
			return nil, fmt.Errorf("section %s has no enrolled learners", section.ID)
		}
		return s.cards.SF9(cards...)
	case models.ReportTypeGradeSheet:
		summaries, err := s.source.SectionSummaries(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		dataset := buildGradeSheet(section, summaries)
		switch job.Params.Format {
		case models.ReportFormatCSV:
			return s.csv.Render(dataset)
		case models.ReportFormatPDF:
			return s.pdf.Render(dataset)
		default:
			return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
		}
	default:
		return nil, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// buildGradeSheet lays out one row per learner with a column per learning area. Columns
// follow the order in which learning areas first appear across the section.
func buildGradeSheet(section *models.Section, summaries []dto.GradeSummary) export.Dataset {
	var areas []string
	seen := map[string]bool{}
	for _, summary := range summaries {
		for _, row := range summary.Subjects {
			if !seen[row.SubjectName] {
				seen[row.SubjectName] = true
				areas = append(areas, row.SubjectName)
			}
		}
	}

	headers := append([]string{"Learner", "LRN"}, areas...)
	headers = append(headers, "General Average", "Remark", "Failed", "Status")

	rows := make([]map[string]string, 0, len(summaries))
	for _, summary := range summaries {
		row := map[string]string{
			"Learner":         summary.StudentName,
			"LRN":             summary.StudentLRN,
			"General Average": export.FormatGrade(summary.GeneralAverage),
			"Remark":          remarkText(summary.Remark),
			"Failed":          fmt.Sprintf("%d", summary.FailedCount),
			"Status":          summary.Status,
		}
		for _, subject := range summary.Subjects {
			row[subject.SubjectName] = export.FormatGrade(subject.Average)
		}
		rows = append(rows, row)
	}

	return export.Dataset{
		Title: fmt.Sprintf("Grade Sheet - Grade %d %s", section.GradeLevel, section.Name),
		Meta: []export.MetaLine{
			{Label: "Section", Value: section.Name},
			{Label: "Grade Level", Value: fmt.Sprintf("%d", section.GradeLevel)},
			{Label: "School Year", Value: section.SchoolYear},
		},
		Headers: headers,
		Rows:    rows,
	}
}

func (s *ExportService) buildFilename(job *models.ReportJob, section *models.Section) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	sectionPart := sanitizeFilename(fmt.Sprintf("g%d_%s_%s", section.GradeLevel, section.Name, section.SchoolYear))
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), sectionPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
