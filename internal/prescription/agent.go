package prescription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/constants"
	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
	"github.com/aurelmarchand/medidocs/internal/llm"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

const analysisPrompt = `You are a medical document analyst. Analyze the document text below and extract every prescribed medication.

Return a JSON object with a single key "medications" holding an array. Each entry has the keys:
- "name": medication name (required)
- "dosage": dose per intake, e.g. "500mg" (null if absent)
- "frequency": intake frequency, e.g. "3 times per day" (null if absent)
- "start_date": treatment start date in YYYY-MM-DD format (null if absent)
- "duration": treatment duration, e.g. "10 days", "2 weeks", "6 months" (null if absent)
- "instructions": additional instructions (null if absent)
- "page_number": page the medication appears on (null if unknown)

Only include medications actually prescribed in the document. Return an empty array if there are none.

Document text:
%s`

type Config struct {
	Model       string
	Temperature float32
	TopP        float32
}

// Agent extracts structured medication data from a processed document.
// Analyses are at-most-once per document: a second call returns the stored
// analysis without touching the model.
type Agent struct {
	invoker llm.Invoker
	docs    repository.DocumentRepository
	repo    repository.PrescriptionRepository
	cfg     Config
	logger  *slog.Logger
}

func NewAgent(invoker llm.Invoker, docs repository.DocumentRepository, repo repository.PrescriptionRepository, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{invoker: invoker, docs: docs, repo: repo, cfg: cfg, logger: logger}
}

func (a *Agent) Analyze(ctx context.Context, docID uuid.UUID) (*entity.PrescriptionAnalysis, error) {
	existing, err := a.repo.GetByDocument(ctx, docID)
	if err == nil {
		a.logger.Info("prescription.analyze.cached", "document_id", docID)
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	doc, err := a.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	a.logger.Info("prescription.analyze.start", "document_id", docID, "pages", len(doc.Pages))

	out, err := a.invoker.Invoke(ctx, llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf(analysisPrompt, AssembleText(doc.Pages)),
		}},
		Temperature: a.cfg.Temperature,
		TopP:        a.cfg.TopP,
		JSONObject:  true,
	})
	if err != nil {
		return nil, err
	}

	cleaned := llm.CleanJSONPayload(out)
	if err := llm.ValidateJSONAgainstSchema(llm.BuildPrescriptionJSONSchema(), []byte(cleaned)); err != nil {
		return nil, err
	}

	var raw struct {
		Medications []rawMedication `json:"medications"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("%w: decode medications: %v", common.ErrSchemaViolation, err)
	}

	analysis := &entity.PrescriptionAnalysis{
		ID:           uuid.New(),
		DocumentID:   docID,
		AnalysisDate: time.Now().UTC(),
	}
	for _, rm := range raw.Medications {
		analysis.Medications = append(analysis.Medications, a.project(analysis.ID, rm))
	}

	if err := a.repo.CreateWithMedications(ctx, analysis); err != nil {
		return nil, err
	}
	a.logger.Info("prescription.analyze.done",
		"document_id", docID,
		"medications", len(analysis.Medications),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return analysis, nil
}

// AssembleText joins page contents with start/end markers so the model can
// attribute findings to page numbers. Pages that failed OCR keep their error
// marker content; the model is expected to ignore them.
func AssembleText(pages []entity.Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, constants.PageStartMarker, p.PageNumber)
		b.WriteString("\n")
		b.WriteString(p.Content)
		b.WriteString("\n")
		fmt.Fprintf(&b, constants.PageEndMarker, p.PageNumber)
	}
	return b.String()
}

type rawMedication struct {
	Name         string  `json:"name"`
	Dosage       *string `json:"dosage"`
	Frequency    *string `json:"frequency"`
	StartDate    *string `json:"start_date"`
	Duration     *string `json:"duration"`
	Instructions *string `json:"instructions"`
	PageNumber   any     `json:"page_number"`
}

// project maps one model record onto the entity. Field-level problems
// degrade to nil instead of failing the record: a bad start date just leaves
// start and end dates unknown.
func (a *Agent) project(analysisID uuid.UUID, rm rawMedication) entity.Medication {
	m := entity.Medication{
		ID:             uuid.New(),
		PrescriptionID: analysisID,
		Name:           strings.TrimSpace(rm.Name),
		Dosage:         trimmed(rm.Dosage),
		Frequency:      trimmed(rm.Frequency),
		Instructions:   trimmed(rm.Instructions),
		PageNumber:     toInt(rm.PageNumber),
	}

	if rm.StartDate != nil {
		if t, ok := ParseDateLiberal(*rm.StartDate); ok {
			m.StartDate = &t
		} else {
			a.logger.Warn("prescription.start_date.unparsed", "value", *rm.StartDate, "name", m.Name)
		}
	}
	if d := trimmed(rm.Duration); d != nil {
		m.DurationRaw = d
		norm := strings.ToLower(*d)
		m.Duration = &norm
	}
	if m.StartDate != nil && m.Duration != nil {
		if end, ok := ComputeEndDate(m.StartDate.Format(dateLayout), *m.Duration); ok {
			t, _ := time.Parse(dateLayout, end)
			m.EndDate = &t
		}
	}
	return m
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// toInt tolerates the page number spellings models emit: JSON numbers,
// numeric strings, or "page 3".
func toInt(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case string:
		s := strings.TrimSpace(strings.ToLower(n))
		s = strings.TrimSpace(strings.TrimPrefix(s, "page"))
		if i, err := strconv.Atoi(s); err == nil {
			return &i
		}
	}
	return nil
}
