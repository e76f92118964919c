package entity

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionAnalysis is the at-most-once prescription breakdown of a document.
type PrescriptionAnalysis struct {
	ID           uuid.UUID    `json:"id"`
	DocumentID   uuid.UUID    `json:"document_id"`
	AnalysisDate time.Time    `json:"analysis_date"`
	Medications  []Medication `json:"medications"`
}

// Medication is one medication entry extracted by the model. Every field
// except Name is nullable: the model may omit them, and date parsing failures
// degrade to nil rather than failing the record.
type Medication struct {
	ID             uuid.UUID  `json:"id"`
	PrescriptionID uuid.UUID  `json:"prescription_id"`
	Name           string     `json:"name"`
	Dosage         *string    `json:"dosage,omitempty"`
	Frequency      *string    `json:"frequency,omitempty"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	Duration       *string    `json:"duration,omitempty"`
	DurationRaw    *string    `json:"duration_raw,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Instructions   *string    `json:"instructions,omitempty"`
	PageNumber     *int       `json:"page_number,omitempty"`
}
