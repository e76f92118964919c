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

type PrescriptionRepository interface {
	// GetByDocument returns common.ErrNotFound when no analysis exists yet.
	GetByDocument(ctx context.Context, docID uuid.UUID) (*entity.PrescriptionAnalysis, error)
	// CreateWithMedications inserts the analysis and its medications in one
	// transaction. The UNIQUE document_id constraint makes creation
	// at-most-once even when two callers race.
	CreateWithMedications(ctx context.Context, analysis *entity.PrescriptionAnalysis) error
	DeleteByDocument(ctx context.Context, docID uuid.UUID) error
}

type prescriptionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPrescriptionRepository(db *DB, logger *slog.Logger) PrescriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &prescriptionRepository{db: db, logger: logger}
}

func (r *prescriptionRepository) GetByDocument(ctx context.Context, docID uuid.UUID) (*entity.PrescriptionAnalysis, error) {
	a := &entity.PrescriptionAnalysis{DocumentID: docID}
	var rawID string
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, analysis_date FROM prescription_analyses WHERE document_id = $1`,
		docID.String()).Scan(&rawID, &a.AnalysisDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load prescription analysis: %v", common.ErrPersistence, err)
	}
	a.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis id: %v", common.ErrPersistence, err)
	}

	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, name, dosage, frequency, start_date, duration, duration_raw,
		        end_date, instructions, page_number
		 FROM medications WHERE prescription_id = $1 ORDER BY id`,
		a.ID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: load medications: %v", common.ErrPersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		m := entity.Medication{PrescriptionID: a.ID}
		var (
			mid                 string
			dosage, frequency   sql.NullString
			duration, rawDur    sql.NullString
			instructions        sql.NullString
			startDate, endDate  sql.NullTime
			pageNumber          sql.NullInt64
		)
		if err := rows.Scan(&mid, &m.Name, &dosage, &frequency, &startDate,
			&duration, &rawDur, &endDate, &instructions, &pageNumber); err != nil {
			return nil, fmt.Errorf("%w: scan medication: %v", common.ErrPersistence, err)
		}
		m.ID, _ = uuid.Parse(mid)
		m.Dosage = strPtr(dosage)
		m.Frequency = strPtr(frequency)
		m.Duration = strPtr(duration)
		m.DurationRaw = strPtr(rawDur)
		m.Instructions = strPtr(instructions)
		m.StartDate = timePtr(startDate)
		m.EndDate = timePtr(endDate)
		m.PageNumber = intPtr(pageNumber)
		a.Medications = append(a.Medications, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate medications: %v", common.ErrPersistence, err)
	}
	return a, nil
}

func (r *prescriptionRepository) CreateWithMedications(ctx context.Context, analysis *entity.PrescriptionAnalysis) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", common.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if analysis.AnalysisDate.IsZero() {
		analysis.AnalysisDate = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO prescription_analyses (id, document_id, analysis_date) VALUES ($1, $2, $3)`,
		analysis.ID.String(), analysis.DocumentID.String(), analysis.AnalysisDate); err != nil {
		r.logger.Error("failed to create prescription analysis",
			"document_id", analysis.DocumentID, "error", err)
		return fmt.Errorf("%w: insert prescription analysis: %v", common.ErrPersistence, err)
	}
	for i := range analysis.Medications {
		m := &analysis.Medications[i]
		m.PrescriptionID = analysis.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO medications (id, prescription_id, name, dosage, frequency,
			    start_date, duration, duration_raw, end_date, instructions, page_number)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			m.ID.String(), analysis.ID.String(), m.Name,
			ptrStr(m.Dosage), ptrStr(m.Frequency), ptrTime(m.StartDate),
			ptrStr(m.Duration), ptrStr(m.DurationRaw), ptrTime(m.EndDate),
			ptrStr(m.Instructions), ptrInt(m.PageNumber)); err != nil {
			return fmt.Errorf("%w: insert medication %q: %v", common.ErrPersistence, m.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", common.ErrPersistence, err)
	}
	r.logger.Info("prescription analysis stored",
		"document_id", analysis.DocumentID, "medications", len(analysis.Medications))
	return nil
}

func (r *prescriptionRepository) DeleteByDocument(ctx context.Context, docID uuid.UUID) error {
	res, err := r.db.SQL.ExecContext(ctx,
		`DELETE FROM prescription_analyses WHERE document_id = $1`, docID.String())
	if err != nil {
		return fmt.Errorf("%w: delete prescription analysis: %v", common.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// null/pointer conversion helpers shared by the analysis repositories.

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func ptrStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
