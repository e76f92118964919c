package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document represents one uploaded PDF and its processed pages.
type Document struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	TotalPages int       `json:"total_pages"`
	Pages      []Page    `json:"pages,omitempty"`
}

// Page holds the extracted text for one page. ImageData carries the base64
// PNG used for the OCR call, when image storage is enabled.
type Page struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	PageNumber int       `json:"page_number"`
	Content    string    `json:"content"`
	ImageData  string    `json:"image_data,omitempty"`
}

// PageResult is the per-page outcome reported back to the caller.
type PageResult struct {
	PageNumber int    `json:"page_number"`
	Content    string `json:"content"`
	OK         bool   `json:"ok"`
}

// ProcessResult is the outcome of running the page pipeline on one document.
// Partial success is a first-class outcome: SuccessCount may be anywhere in
// [1, TotalPages] without the overall call failing.
type ProcessResult struct {
	DocumentID   uuid.UUID    `json:"document_id"`
	TotalPages   int          `json:"total_pages"`
	SuccessCount int          `json:"success_count"`
	Results      []PageResult `json:"results"`
}
