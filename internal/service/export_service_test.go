package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-records-api/internal/dto"
	"github.com/noah-isme/sis-records-api/internal/models"
	"github.com/noah-isme/sis-records-api/pkg/export"
	"github.com/noah-isme/sis-records-api/pkg/storage"
)

type sectionSourceStub struct {
	cards     []export.ReportCard
	summaries []dto.GradeSummary
}

func (s sectionSourceStub) SectionCards(ctx context.Context, sectionID string) ([]export.ReportCard, error) {
	return s.cards, nil
}

func (s sectionSourceStub) SectionSummaries(ctx context.Context, sectionID string) ([]dto.GradeSummary, error) {
	return s.summaries, nil
}

func exportSection() *fakeSectionReader {
	return &fakeSectionReader{sections: map[string]models.Section{
		"sec-1": {ID: "sec-1", Name: "Rizal", GradeLevel: 8, SchoolYear: "2024-2025"},
	}}
}

func newExportServiceForTest(t *testing.T, source sectionSourceStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(source, exportSection(), store, signer, cfg, zap.NewNop(), nil, nil, nil)
	return svc, store
}

func gradeSheetSource() sectionSourceStub {
	summary := BuildGradeSummary(juniorDetail(), juniorGrades(), nil)
	summary.StudentLRN = "123456789012"
	return sectionSourceStub{summaries: []dto.GradeSummary{*summary}}
}

func TestExportServiceGradeSheetCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t, gradeSheetSource())
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeGradeSheet,
		Params: models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result.URL, "/api/v1/export/")
	assert.True(t, strings.HasPrefix(result.RelativePath, "grade_sheet_g8_Rizal_2024-2025_"))

	data, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Section,Rizal")
	assert.Contains(t, content, "Learner,LRN,English,Mathematics,MAPEH,General Average,Remark,Failed,Status")
	assert.Contains(t, content, "Juan Dela Cruz,123456789012,70,80,85,78.33,PASSED,1,enrolled")
}

func TestExportServiceGradeSheetPDF(t *testing.T) {
	svc, store := newExportServiceForTest(t, gradeSheetSource())
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeGradeSheet,
		Params: models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportServiceSF9Batch(t *testing.T) {
	card := export.ReportCard{
		Learner:    export.LearnerInfo{Name: "Juan Dela Cruz"},
		GradeLevel: 8,
		SchoolYear: "2024-2025",
		Areas:      []export.LearningArea{{Name: "English", Final: ptr(80), Remark: "PASSED"}},
	}
	svc, _ := newExportServiceForTest(t, sectionSourceStub{cards: []export.ReportCard{card}})

	result, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeSF9,
		Params: models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatPDF},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-4",
		Type:   models.ReportTypeSF9,
		Params: models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatCSV},
	})
	require.Error(t, err)
}

func TestExportServiceRejectsEmptySectionAndUnknownSection(t *testing.T) {
	svc, _ := newExportServiceForTest(t, sectionSourceStub{})

	_, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-5",
		Type:   models.ReportTypeSF9,
		Params: models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatPDF},
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-6",
		Type:   models.ReportTypeGradeSheet,
		Params: models.ReportJobParams{SectionID: "missing", Format: models.ReportFormatCSV},
	})
	require.Error(t, err)
}

func TestExportServiceTokenRoundTripAndCleanup(t *testing.T) {
	svc, _ := newExportServiceForTest(t, gradeSheetSource())
	result, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-7",
		Type:   models.ReportTypeGradeSheet,
		Params: models.ReportJobParams{SectionID: "sec-1", Format: models.ReportFormatCSV},
	})
	require.NoError(t, err)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-7", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	file.Close()

	require.NoError(t, svc.Delete(relPath))
	_, err = svc.Open(relPath)
	require.Error(t, err)
}
