package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/storage"
)

type gradebookStub struct {
	rows []models.GradebookRow
}

func (g gradebookStub) Gradebook(_ context.Context, _ string) ([]models.GradebookRow, error) {
	return g.rows, nil
}

func gradePtr(v float64) *float64 { return &v }

func newExportServiceForTest(t *testing.T, rows []models.GradebookRow) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(gradebookStub{rows: rows}, store, signer, nil, ExportConfig{APIPrefix: "/api/v1/"}, zap.NewNop())
}

func sampleGradebook() []models.GradebookRow {
	return []models.GradebookRow{
		{StudentID: "stud-1", StudentName: "Ann", AssignmentID: "hw1", AssignmentTitle: "HW1", MaxGrade: 100, Grade: gradePtr(90)},
		{StudentID: "stud-1", StudentName: "Ann", AssignmentID: "hw2", AssignmentTitle: "HW2", MaxGrade: 50, Grade: gradePtr(40.5)},
		{StudentID: "stud-2", StudentName: "Bob", AssignmentID: "hw1", AssignmentTitle: "HW1", MaxGrade: 100},
		{StudentID: "stud-2", StudentName: "Bob", AssignmentID: "hw2", AssignmentTitle: "HW2", MaxGrade: 50, Grade: gradePtr(20)},
	}
}

func TestBuildGradebookDatasetPivotsPerStudent(t *testing.T) {
	data := buildGradebookDataset(models.Course{ID: "c1", Title: "CS101"}, sampleGradebook())

	assert.Equal(t, "Gradebook: CS101", data.Title)
	assert.Equal(t, []string{"Student ID", "Student", "HW1 (/100)", "HW2 (/50)", "Total"}, data.Headers)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"stud-1", "Ann", "90", "40.5", "130.5"}, data.Rows[0])
	assert.Equal(t, []string{"stud-2", "Bob", "", "20", "20"}, data.Rows[1])
}

func TestExportServiceGradebookCSVRoundTrip(t *testing.T) {
	svc := newExportServiceForTest(t, sampleGradebook())

	result, err := svc.ExportGradebook(context.Background(), models.Course{ID: "c1", Title: "CS101"}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Format)
	assert.Equal(t, 2, result.Rows)
	require.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/"))

	token := strings.TrimPrefix(result.URL, "/api/v1/exports/")
	download, err := svc.Open(token)
	require.NoError(t, err)
	defer download.File.Close()

	assert.Equal(t, "text/csv", download.ContentType)
	assert.Equal(t, "gradebook_c1.csv", download.Filename)
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "stud-1,Ann,90,40.5,130.5")
}

func TestExportServiceGradebookPDF(t *testing.T) {
	svc := newExportServiceForTest(t, sampleGradebook())

	result, err := svc.ExportGradebook(context.Background(), models.Course{ID: "c1", Title: "CS101"}, ExportFormatPDF)
	require.NoError(t, err)

	download, err := svc.Open(strings.TrimPrefix(result.URL, "/api/v1/exports/"))
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "application/pdf", download.ContentType)
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(t, nil)

	_, err := svc.ExportGradebook(context.Background(), models.Course{ID: "c1"}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.False(t, svc.SupportsFormat("xlsx"))
	assert.True(t, svc.SupportsFormat("PDF"))
}

func TestExportServiceOpenRejectsBadToken(t *testing.T) {
	svc := newExportServiceForTest(t, nil)

	_, err := svc.Open("bogus")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
