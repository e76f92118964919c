package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
	"github.com/aurelmarchand/medidocs/internal/llm"
	"github.com/aurelmarchand/medidocs/internal/llm/mistral"
	"github.com/aurelmarchand/medidocs/internal/pipeline"
	"github.com/aurelmarchand/medidocs/internal/prescription"
	"github.com/aurelmarchand/medidocs/internal/raster"
	"github.com/aurelmarchand/medidocs/internal/repository"
	"github.com/aurelmarchand/medidocs/internal/summary"
)

// Processor is the application facade: one shared model gateway, one
// database, and the three operations callers care about.
type Processor struct {
	db        *repository.DB
	docs      repository.DocumentRepository
	prescRepo repository.PrescriptionRepository
	summRepo  repository.SummaryRepository
	pipeline  *pipeline.Pipeline
	presc     *prescription.Agent
	summ      *summary.Agent
	logger    *slog.Logger
}

// NewProcessor wires the full stack from configuration. The returned
// Processor owns nothing it did not create: the caller keeps ownership of db.
func NewProcessor(db *repository.DB, cfg *common.Config, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := summary.Load(cfg.Template.Path)
	if err != nil {
		return nil, err
	}
	categories := tmpl.ForVersion(cfg.Template.Version)

	client := mistral.NewClient(mistral.Config{
		APIKey:            cfg.Mistral.APIKey,
		BaseURL:           cfg.Mistral.BaseURL,
		Timeout:           cfg.Mistral.Timeout,
		RequestsPerSecond: cfg.Mistral.RequestsPerSecond,
	}, logger)
	gateway := llm.NewGateway(client, llm.GatewayConfig{
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		CallDelay:     cfg.Pipeline.CallDelay,
		MaxAttempts:   cfg.Pipeline.MaxAttempts,
		BackoffBase:   cfg.Pipeline.BackoffBase,
		BackoffCap:    cfg.Pipeline.BackoffCap,
		BackoffJitter: cfg.Pipeline.BackoffJitter,
	}, logger)

	docs := repository.NewDocumentRepository(db, logger)
	prescRepo := repository.NewPrescriptionRepository(db, logger)
	summRepo := repository.NewSummaryRepository(db, logger)

	rasterizer := raster.NewRasterizer(raster.Config{Zoom: cfg.Pipeline.RenderZoom}, logger)
	pipe := pipeline.NewPipeline(rasterizer, gateway, docs, pipeline.Config{
		Workers:     cfg.Pipeline.MaxConcurrent,
		OCRModel:    cfg.Mistral.OCRModel,
		OCRPrompt:   cfg.Pipeline.OCRPrompt,
		Temperature: cfg.Mistral.Temperature,
		TopP:        cfg.Mistral.TopP,
		StoreImages: cfg.Pipeline.StoreImages,
	}, logger)

	return &Processor{
		db:        db,
		docs:      docs,
		prescRepo: prescRepo,
		summRepo:  summRepo,
		pipeline:  pipe,
		presc: prescription.NewAgent(gateway, docs, prescRepo, prescription.Config{
			Model:       cfg.Mistral.TextModel,
			Temperature: cfg.Mistral.Temperature,
			TopP:        cfg.Mistral.TopP,
		}, logger),
		summ: summary.NewAgent(gateway, docs, summRepo, summary.Config{
			Model:       cfg.Mistral.TextModel,
			Temperature: cfg.Mistral.Temperature,
			TopP:        cfg.Mistral.TopP,
			Categories:  categories,
		}, logger),
		logger: logger,
	}, nil
}

// ProcessDocument rasterizes and OCRs a PDF into a new persisted document.
func (p *Processor) ProcessDocument(ctx context.Context, pdf []byte, filename string) (*entity.ProcessResult, error) {
	return p.pipeline.Process(ctx, pdf, filename)
}

// AnalyzePrescription runs (or returns the stored) medication analysis.
func (p *Processor) AnalyzePrescription(ctx context.Context, docID uuid.UUID) (*entity.PrescriptionAnalysis, error) {
	return p.presc.Analyze(ctx, docID)
}

// AnalyzeSummary runs (or returns the stored) category field summary.
func (p *Processor) AnalyzeSummary(ctx context.Context, docID uuid.UUID) (*entity.DocumentSummary, error) {
	return p.summ.Summarize(ctx, docID)
}

// GetDocument loads a document with its pages.
func (p *Processor) GetDocument(ctx context.Context, docID uuid.UUID) (*entity.Document, error) {
	return p.docs.GetByID(ctx, docID)
}

// ListDocuments returns all stored documents, oldest first.
func (p *Processor) ListDocuments(ctx context.Context) ([]*entity.Document, error) {
	return p.docs.List(ctx)
}

// PageImage returns a page's stored base64 PNG payload.
func (p *Processor) PageImage(ctx context.Context, docID uuid.UUID, pageNumber int) (string, error) {
	return p.docs.PageImage(ctx, docID, pageNumber)
}

// DeleteDocument removes a document; pages and analyses go with it via
// foreign-key cascade.
func (p *Processor) DeleteDocument(ctx context.Context, docID uuid.UUID) error {
	return p.docs.Delete(ctx, docID)
}

// ResetAnalyses drops any stored analyses so the next analyze call
// recomputes them. Missing analyses are not an error.
func (p *Processor) ResetAnalyses(ctx context.Context, docID uuid.UUID) error {
	if err := p.prescRepo.DeleteByDocument(ctx, docID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err := p.summRepo.DeleteByDocument(ctx, docID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	p.logger.Info("analyses reset", "document_id", docID)
	return nil
}
