package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

// Service produces XLSX bytes from a document's stored analyses.
type Service struct {
	docs   repository.DocumentRepository
	presc  repository.PrescriptionRepository
	summ   repository.SummaryRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, presc repository.PrescriptionRepository, summ repository.SummaryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, presc: presc, summ: summ, logger: logger}
}

// ExportDocumentXLSX returns a workbook with one sheet per available
// analysis. A document with no analyses yet exports header-only sheets.
func (s *Service) ExportDocumentXLSX(ctx context.Context, docID uuid.UUID) ([]byte, error) {
	start := time.Now()

	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	var meds []entity.Medication
	if analysis, err := s.presc.GetByDocument(ctx, docID); err == nil {
		meds = analysis.Medications
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	var extractions []entity.SummaryExtraction
	if summary, err := s.summ.GetByDocument(ctx, docID); err == nil {
		extractions = summary.Extractions
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	f := excelize.NewFile()
	if err := s.writeMedicationsSheet(f, meds); err != nil {
		return nil, err
	}
	if err := s.writeSummarySheet(f, extractions); err != nil {
		return nil, err
	}
	// Drop the default sheet once ours exist.
	_ = f.DeleteSheet("Sheet1")
	if idx, _ := f.GetSheetIndex("Medications"); idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"document_id", docID.String(),
		"filename", doc.Filename,
		"medications", len(meds),
		"extractions", len(extractions),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeMedicationsSheet(f *excelize.File, meds []entity.Medication) error {
	const sheet = "Medications"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{
		"Name",
		"Dosage",
		"Frequency",
		"Start Date",
		"Duration",
		"End Date",
		"Instructions",
		"Page",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, m := range meds {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, m.Name)
		write(2, deref(m.Dosage))
		write(3, deref(m.Frequency))
		write(4, dateStr(m.StartDate))
		write(5, deref(m.DurationRaw))
		write(6, dateStr(m.EndDate))
		write(7, deref(m.Instructions))
		if m.PageNumber != nil {
			write(8, *m.PageNumber)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "C", 18)
	_ = f.SetColWidth(sheet, "D", "F", 14)
	_ = f.SetColWidth(sheet, "G", "G", 48)
	return nil
}

func (s *Service) writeSummarySheet(f *excelize.File, extractions []entity.SummaryExtraction) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"Category", "Field", "Value", "Page", "Date"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, e := range extractions {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, e.Category)
		write(2, e.Field)
		write(3, e.Value)
		if e.PageNumber != nil {
			write(4, *e.PageNumber)
		}
		write(5, dateStr(e.AssociatedDate))
		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 22)
	_ = f.SetColWidth(sheet, "C", "C", 60)
	_ = f.SetColWidth(sheet, "D", "E", 12)
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func dateStr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02")
}
