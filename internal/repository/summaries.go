package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
)

type SummaryRepository interface {
	// GetByDocument returns common.ErrNotFound when no summary exists yet.
	GetByDocument(ctx context.Context, docID uuid.UUID) (*entity.DocumentSummary, error)
	// CreateWithExtractions inserts the summary and its extractions in one
	// transaction, guarded by the UNIQUE document_id constraint.
	CreateWithExtractions(ctx context.Context, summary *entity.DocumentSummary) error
	DeleteByDocument(ctx context.Context, docID uuid.UUID) error
}

type summaryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSummaryRepository(db *DB, logger *slog.Logger) SummaryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &summaryRepository{db: db, logger: logger}
}

func (r *summaryRepository) GetByDocument(ctx context.Context, docID uuid.UUID) (*entity.DocumentSummary, error) {
	s := &entity.DocumentSummary{DocumentID: docID}
	var rawID string
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, analysis_date FROM document_summaries WHERE document_id = $1`,
		docID.String()).Scan(&rawID, &s.AnalysisDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load document summary: %v", common.ErrPersistence, err)
	}
	s.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: summary id: %v", common.ErrPersistence, err)
	}

	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, category, field, value, page_number, associated_date, extraction_date
		 FROM summary_extractions WHERE summary_id = $1 ORDER BY id`,
		s.ID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: load extractions: %v", common.ErrPersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		e := entity.SummaryExtraction{SummaryID: s.ID}
		var (
			eid        string
			pageNumber sql.NullInt64
			assocDate  sql.NullTime
		)
		if err := rows.Scan(&eid, &e.Category, &e.Field, &e.Value,
			&pageNumber, &assocDate, &e.ExtractionDate); err != nil {
			return nil, fmt.Errorf("%w: scan extraction: %v", common.ErrPersistence, err)
		}
		e.ID, _ = uuid.Parse(eid)
		e.PageNumber = intPtr(pageNumber)
		e.AssociatedDate = timePtr(assocDate)
		s.Extractions = append(s.Extractions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate extractions: %v", common.ErrPersistence, err)
	}
	return s, nil
}

func (r *summaryRepository) CreateWithExtractions(ctx context.Context, summary *entity.DocumentSummary) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if summary.AnalysisDate.IsZero() {
		summary.AnalysisDate = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_summaries (id, document_id, analysis_date) VALUES ($1, $2, $3)`,
		summary.ID.String(), summary.DocumentID.String(), summary.AnalysisDate); err != nil {
		r.logger.Error("failed to create document summary",
			"document_id", summary.DocumentID, "error", err)
		return fmt.Errorf("%w: insert document summary: %v", common.ErrPersistence, err)
	}
	for i := range summary.Extractions {
		e := &summary.Extractions[i]
		e.SummaryID = summary.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summary_extractions (id, summary_id, category, field, value,
			    page_number, associated_date, extraction_date)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID.String(), summary.ID.String(), e.Category, e.Field, e.Value,
			ptrInt(e.PageNumber), ptrTime(e.AssociatedDate), e.ExtractionDate); err != nil {
			return fmt.Errorf("%w: insert extraction %q/%q: %v", common.ErrPersistence, e.Category, e.Field, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrPersistence, err)
	}
	r.logger.Info("document summary stored",
		"document_id", summary.DocumentID, "extractions", len(summary.Extractions))
	return nil
}

func (r *summaryRepository) DeleteByDocument(ctx context.Context, docID uuid.UUID) error {
	res, err := r.db.SQL.ExecContext(ctx,
		`DELETE FROM document_summaries WHERE document_id = $1`, docID.String())
	if err != nil {
		return fmt.Errorf("%w: delete document summary: %v", common.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
