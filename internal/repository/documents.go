package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// InsertPage commits a single page row; each call is its own transaction
	// so concurrent pipeline workers never share one.
	InsertPage(ctx context.Context, page *entity.Page) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
	PageImage(ctx context.Context, docID uuid.UUID, pageNumber int) (string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepository{db: db, logger: logger}
}

func (r *documentRepository) Create(ctx context.Context, doc *entity.Document) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO documents (id, filename, upload_date, total_pages) VALUES ($1, $2, $3, $4)`,
		doc.ID.String(), doc.Filename, doc.UploadDate, doc.TotalPages)
	if err != nil {
		r.logger.Error("failed to create document", "document_id", doc.ID, "error", err)
		return fmt.Errorf("%w: insert document: %v", common.ErrPersistence, err)
	}
	return nil
}

func (r *documentRepository) InsertPage(ctx context.Context, page *entity.Page) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO pages (id, document_id, page_number, content, image_data) VALUES ($1, $2, $3, $4, $5)`,
		page.ID.String(), page.DocumentID.String(), page.PageNumber, page.Content, nullString(page.ImageData))
	if err != nil {
		r.logger.Error("failed to insert page",
			"document_id", page.DocumentID, "page_number", page.PageNumber, "error", err)
		return fmt.Errorf("%w: insert page %d: %v", common.ErrPersistence, page.PageNumber, err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	doc := &entity.Document{}
	var rawID string
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, filename, upload_date, total_pages FROM documents WHERE id = $1`,
		id.String()).Scan(&rawID, &doc.Filename, &doc.UploadDate, &doc.TotalPages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load document: %v", common.ErrPersistence, err)
	}
	doc.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("%w: document id: %v", common.ErrPersistence, err)
	}

	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, page_number, content, COALESCE(image_data, '')
		 FROM pages WHERE document_id = $1 ORDER BY page_number`,
		id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: load pages: %v", common.ErrPersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		p := entity.Page{DocumentID: doc.ID}
		var pid string
		if err := rows.Scan(&pid, &p.PageNumber, &p.Content, &p.ImageData); err != nil {
			return nil, fmt.Errorf("%w: scan page: %v", common.ErrPersistence, err)
		}
		p.ID, _ = uuid.Parse(pid)
		doc.Pages = append(doc.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate pages: %v", common.ErrPersistence, err)
	}
	return doc, nil
}

func (r *documentRepository) List(ctx context.Context) ([]*entity.Document, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, filename, upload_date, total_pages FROM documents ORDER BY upload_date`)
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		doc := &entity.Document{}
		var rawID string
		if err := rows.Scan(&rawID, &doc.Filename, &doc.UploadDate, &doc.TotalPages); err != nil {
			return nil, fmt.Errorf("%w: scan document: %v", common.ErrPersistence, err)
		}
		doc.ID, _ = uuid.Parse(rawID)
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (r *documentRepository) PageImage(ctx context.Context, docID uuid.UUID, pageNumber int) (string, error) {
	var img sql.NullString
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT image_data FROM pages WHERE document_id = $1 AND page_number = $2`,
		docID.String(), pageNumber).Scan(&img)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: load page image: %v", common.ErrPersistence, err)
	}
	if !img.Valid || img.String == "" {
		return "", common.ErrNotFound
	}
	return img.String, nil
}

func (r *documentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", common.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	r.logger.Info("document deleted", "document_id", id)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
