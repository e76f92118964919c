package export_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
	"github.com/aurelmarchand/medidocs/internal/export"
)

type fakeDocs struct {
	doc *entity.Document
}

func (f *fakeDocs) Create(context.Context, *entity.Document) error   { return nil }
func (f *fakeDocs) InsertPage(context.Context, *entity.Page) error   { return nil }
func (f *fakeDocs) List(context.Context) ([]*entity.Document, error) { return nil, nil }
func (f *fakeDocs) Delete(context.Context, uuid.UUID) error          { return nil }
func (f *fakeDocs) PageImage(context.Context, uuid.UUID, int) (string, error) {
	return "", common.ErrNotFound
}
func (f *fakeDocs) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, common.ErrNotFound
	}
	return f.doc, nil
}

type fakePresc struct {
	analysis *entity.PrescriptionAnalysis
}

func (f *fakePresc) GetByDocument(_ context.Context, docID uuid.UUID) (*entity.PrescriptionAnalysis, error) {
	if f.analysis == nil || f.analysis.DocumentID != docID {
		return nil, fmt.Errorf("%w: no prescription analysis", common.ErrNotFound)
	}
	return f.analysis, nil
}
func (f *fakePresc) CreateWithMedications(context.Context, *entity.PrescriptionAnalysis) error {
	return nil
}
func (f *fakePresc) DeleteByDocument(context.Context, uuid.UUID) error { return nil }

type fakeSumm struct {
	summary *entity.DocumentSummary
}

func (f *fakeSumm) GetByDocument(_ context.Context, docID uuid.UUID) (*entity.DocumentSummary, error) {
	if f.summary == nil || f.summary.DocumentID != docID {
		return nil, fmt.Errorf("%w: no document summary", common.ErrNotFound)
	}
	return f.summary, nil
}
func (f *fakeSumm) CreateWithExtractions(context.Context, *entity.DocumentSummary) error { return nil }
func (f *fakeSumm) DeleteByDocument(context.Context, uuid.UUID) error                    { return nil }

func strp(s string) *string { return &s }
func intp(n int) *int       { return &n }

func TestExportDocumentXLSX(t *testing.T) {
	docID := uuid.New()
	doc := &entity.Document{ID: docID, Filename: "ordonnance.pdf", TotalPages: 2}

	start := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 30, 0, 0, 0, 0, time.UTC)
	analysis := &entity.PrescriptionAnalysis{
		ID: uuid.New(), DocumentID: docID,
		Medications: []entity.Medication{{
			ID:          uuid.New(),
			Name:        "Amoxicilline",
			Dosage:      strp("500mg"),
			Frequency:   strp("3 times per day"),
			StartDate:   &start,
			DurationRaw: strp("10 days"),
			EndDate:     &end,
			PageNumber:  intp(2),
		}},
	}
	assoc := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	summary := &entity.DocumentSummary{
		ID: uuid.New(), DocumentID: docID,
		Extractions: []entity.SummaryExtraction{{
			ID:             uuid.New(),
			Category:       "patient_information",
			Field:          "patient_name",
			Value:          "Marie Dupont",
			PageNumber:     intp(1),
			AssociatedDate: &assoc,
		}},
	}

	svc := export.NewService(&fakeDocs{doc: doc}, &fakePresc{analysis: analysis}, &fakeSumm{summary: summary}, nil)
	data, err := svc.ExportDocumentXLSX(context.Background(), docID)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Medications")
	assert.Contains(t, sheets, "Summary")
	assert.NotContains(t, sheets, "Sheet1")

	cell := func(sheet, ref string) string {
		v, cerr := f.GetCellValue(sheet, ref)
		require.NoError(t, cerr)
		return v
	}
	assert.Equal(t, "Name", cell("Medications", "A1"))
	assert.Equal(t, "Amoxicilline", cell("Medications", "A2"))
	assert.Equal(t, "500mg", cell("Medications", "B2"))
	assert.Equal(t, "2024-03-20", cell("Medications", "D2"))
	assert.Equal(t, "10 days", cell("Medications", "E2"))
	assert.Equal(t, "2024-03-30", cell("Medications", "F2"))
	assert.Equal(t, "2", cell("Medications", "H2"))

	assert.Equal(t, "Category", cell("Summary", "A1"))
	assert.Equal(t, "patient_information", cell("Summary", "A2"))
	assert.Equal(t, "patient_name", cell("Summary", "B2"))
	assert.Equal(t, "Marie Dupont", cell("Summary", "C2"))
	assert.Equal(t, "1", cell("Summary", "D2"))
	assert.Equal(t, "2024-03-20", cell("Summary", "E2"))
}

func TestExportDocumentXLSXNoAnalyses(t *testing.T) {
	docID := uuid.New()
	doc := &entity.Document{ID: docID, Filename: "scan.pdf", TotalPages: 1}

	svc := export.NewService(&fakeDocs{doc: doc}, &fakePresc{}, &fakeSumm{}, nil)
	data, err := svc.ExportDocumentXLSX(context.Background(), docID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	v, err := f.GetCellValue("Medications", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Name", v)
	v, err = f.GetCellValue("Medications", "A2")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestExportDocumentXLSXUnknownDocument(t *testing.T) {
	svc := export.NewService(&fakeDocs{}, &fakePresc{}, &fakeSumm{}, nil)
	_, err := svc.ExportDocumentXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
