package entity

import (
	"time"

	"github.com/google/uuid"
)

// DocumentSummary is the at-most-once category-based field summary of a document.
type DocumentSummary struct {
	ID           uuid.UUID           `json:"id"`
	DocumentID   uuid.UUID           `json:"document_id"`
	AnalysisDate time.Time           `json:"analysis_date"`
	Extractions  []SummaryExtraction `json:"extractions"`
}

// SummaryExtraction is one field value the model found in the document.
// Field always belongs to Category's template field set; items with unknown
// field names are dropped before they reach this type.
type SummaryExtraction struct {
	ID             uuid.UUID  `json:"id"`
	SummaryID      uuid.UUID  `json:"summary_id"`
	Category       string     `json:"category"`
	Field          string     `json:"field"`
	Value          string     `json:"value"`
	PageNumber     *int       `json:"page_number,omitempty"`
	AssociatedDate *time.Time `json:"associated_date,omitempty"`
	ExtractionDate time.Time  `json:"extraction_date"`
}
