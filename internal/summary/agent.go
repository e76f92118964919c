package summary

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

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
	"github.com/aurelmarchand/medidocs/internal/llm"
	"github.com/aurelmarchand/medidocs/internal/prescription"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

const categoryPrompt = `You are a medical document analyst. Extract the fields listed below from the document text.

Category: %s

Fields to extract:
%s

Return a JSON array. Each element has the keys:
- "field": one of the field names listed above, exactly as written
- "value": the extracted value as text
- "page_number": page where the value appears (1 if unknown)
- "date": date associated with the value in YYYY-MM-DD format (null if none)

Omit any field you cannot find with confidence; do not guess. Return an empty array [] if none of the fields appear in the document. Return only the JSON array, no commentary.

Document text:
%s`

type Config struct {
	Model       string
	Temperature float32
	TopP        float32
	Categories  []Category
}

// Agent produces the category-based field summary of a document. One model
// call per template category; a failing category is logged and skipped so
// the remaining categories still land. At-most-once per document.
type Agent struct {
	invoker llm.Invoker
	docs    repository.DocumentRepository
	repo    repository.SummaryRepository
	cfg     Config
	logger  *slog.Logger
}

func NewAgent(invoker llm.Invoker, docs repository.DocumentRepository, repo repository.SummaryRepository, cfg Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{invoker: invoker, docs: docs, repo: repo, cfg: cfg, logger: logger}
}

func (a *Agent) Summarize(ctx context.Context, docID uuid.UUID) (*entity.DocumentSummary, error) {
	existing, err := a.repo.GetByDocument(ctx, docID)
	if err == nil {
		a.logger.Info("summary.analyze.cached", "document_id", docID)
		return existing, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if len(a.cfg.Categories) == 0 {
		return nil, fmt.Errorf("%w: no template categories configured", common.ErrInvalidInput)
	}

	doc, err := a.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	a.logger.Info("summary.analyze.start",
		"document_id", docID, "pages", len(doc.Pages), "categories", len(a.cfg.Categories))

	text := prescription.AssembleText(doc.Pages)
	sum := &entity.DocumentSummary{
		ID:           uuid.New(),
		DocumentID:   docID,
		AnalysisDate: time.Now().UTC(),
	}
	for _, cat := range a.cfg.Categories {
		items, err := a.extractCategory(ctx, cat, text)
		if err != nil {
			a.logger.Error("summary.category.failed", "document_id", docID, "category", cat.Category, "error", err)
			continue
		}
		for i := range items {
			items[i].SummaryID = sum.ID
		}
		sum.Extractions = append(sum.Extractions, items...)
	}

	// An empty summary is still a summary: it records that the analysis ran.
	if err := a.repo.CreateWithExtractions(ctx, sum); err != nil {
		return nil, err
	}
	a.logger.Info("summary.analyze.done",
		"document_id", docID,
		"extractions", len(sum.Extractions),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return sum, nil
}

type rawExtraction struct {
	Field      string          `json:"field"`
	Value      json.RawMessage `json:"value"`
	PageNumber any             `json:"page_number"`
	Date       *string         `json:"date"`
}

// valueText flattens the extracted value to text. Strings come through as-is;
// composite values (objects, arrays, numbers) keep their JSON form.
func valueText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func (a *Agent) extractCategory(ctx context.Context, cat Category, text string) ([]entity.SummaryExtraction, error) {
	out, err := a.invoker.Invoke(ctx, llm.ChatRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf(categoryPrompt, cat.Category, fieldLines(cat.Fields), text),
		}},
		Temperature: a.cfg.Temperature,
		TopP:        a.cfg.TopP,
	})
	if err != nil {
		return nil, err
	}

	var items []rawExtraction
	if err := json.Unmarshal([]byte(llm.CleanJSONPayload(out)), &items); err != nil {
		return nil, fmt.Errorf("%w: category %s: %v", common.ErrSchemaViolation, cat.Category, err)
	}

	allowed := cat.FieldSet()
	now := time.Now().UTC()
	var extractions []entity.SummaryExtraction
	for _, it := range items {
		field := strings.TrimSpace(it.Field)
		if !allowed[field] {
			a.logger.Warn("summary.field.unknown", "category", cat.Category, "field", it.Field)
			continue
		}
		value := strings.TrimSpace(valueText(it.Value))
		if value == "" {
			continue
		}
		page := pageNumber(it.PageNumber)
		e := entity.SummaryExtraction{
			ID:             uuid.New(),
			Category:       cat.Category,
			Field:          field,
			Value:          value,
			PageNumber:     &page,
			ExtractionDate: now,
		}
		if it.Date != nil {
			if t, ok := prescription.ParseDateLiberal(*it.Date); ok {
				e.AssociatedDate = &t
			}
		}
		extractions = append(extractions, e)
	}
	return extractions, nil
}

func fieldLines(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "- %s: %s", f.Field, f.Description)
		if f.Example != "" {
			fmt.Fprintf(&b, " (example: %s)", f.Example)
		}
	}
	return b.String()
}

// pageNumber decodes the model's page attribution, defaulting to 1.
func pageNumber(v any) int {
	switch n := v.(type) {
	case float64:
		if n >= 1 {
			return int(n)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i >= 1 {
			return i
		}
	}
	return 1
}
