package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aurelmarchand/medidocs/constants"
	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/entity"
	"github.com/aurelmarchand/medidocs/internal/llm"
	"github.com/aurelmarchand/medidocs/internal/raster"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

// Renderer lets tests stub the PDF rasterizer.
type Renderer interface {
	Render(pdf []byte) ([]raster.PageImage, error)
}

type Config struct {
	// Workers sizes the page fan-out pool. It should match the gateway's
	// concurrency cap; more workers would only queue on the semaphore.
	Workers     int
	OCRModel    string
	OCRPrompt   string // may contain %d for the page number
	Temperature float32
	TopP        float32
	StoreImages bool
}

// Pipeline converts one document's pages into persisted text records.
// Pages are dispatched concurrently and committed in completion order, one
// short transaction per page, so a crash loses at most the in-flight pages.
type Pipeline struct {
	renderer Renderer
	invoker  llm.Invoker
	docs     repository.DocumentRepository
	cfg      Config
	logger   *slog.Logger
}

func NewPipeline(renderer Renderer, invoker llm.Invoker, docs repository.DocumentRepository, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.OCRPrompt == "" {
		cfg.OCRPrompt = common.DefaultOCRPrompt
	}
	return &Pipeline{renderer: renderer, invoker: invoker, docs: docs, cfg: cfg, logger: logger}
}

// Process rasterizes the PDF, creates the document record, and fans the pages
// out for OCR. A page whose OCR call fails is still recorded with an error
// marker so page numbers stay contiguous; the call fails with
// ErrNoPagesSucceeded only when every page failed.
func (p *Pipeline) Process(ctx context.Context, pdf []byte, filename string) (*entity.ProcessResult, error) {
	start := time.Now()

	images, err := p.renderer.Render(pdf)
	if err != nil {
		return nil, err
	}

	doc := &entity.Document{
		ID:         uuid.New(),
		Filename:   filename,
		UploadDate: time.Now().UTC(),
		TotalPages: len(images),
	}
	if err := p.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	results := make([]entity.PageResult, len(images))
	var (
		mu      sync.Mutex
		success int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, pi := range images {
		g.Go(func() error {
			content, encoded, ok := p.processPage(gctx, pi)

			page := &entity.Page{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				PageNumber: pi.PageNumber,
				Content:    content,
			}
			if p.cfg.StoreImages {
				page.ImageData = encoded
			}
			// Commit this page before picking up the next one; a storage
			// failure is fatal to the whole run, already-committed pages stay.
			if err := p.docs.InsertPage(gctx, page); err != nil {
				return err
			}

			mu.Lock()
			results[pi.PageNumber-1] = entity.PageResult{
				PageNumber: pi.PageNumber,
				Content:    content,
				OK:         ok,
			}
			if ok {
				success++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &entity.ProcessResult{
		DocumentID:   doc.ID,
		TotalPages:   len(images),
		SuccessCount: success,
		Results:      results,
	}
	p.logger.Info("pipeline.done",
		"document_id", doc.ID,
		"filename", filename,
		"pages", len(images),
		"succeeded", success,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if success == 0 {
		return res, common.ErrNoPagesSucceeded
	}
	return res, nil
}

// processPage encodes and OCRs one page. Failures are local to the page:
// the returned content is then a human-readable error marker.
func (p *Pipeline) processPage(ctx context.Context, pi raster.PageImage) (content, encoded string, ok bool) {
	encoded, err := raster.EncodePNG(pi.Image)
	if err != nil {
		p.logger.Error("pipeline.page.encode_failed", "page", pi.PageNumber, "error", err)
		return fmt.Sprintf(constants.PageErrorMarker, pi.PageNumber, err), "", false
	}

	out, err := p.invoker.Invoke(ctx, llm.ChatRequest{
		Model: p.cfg.OCRModel,
		Messages: []llm.Message{{
			Role:     "user",
			Content:  p.ocrPrompt(pi.PageNumber),
			ImageURL: raster.DataURL(encoded),
		}},
		Temperature: p.cfg.Temperature,
		TopP:        p.cfg.TopP,
	})
	if err != nil {
		p.logger.Error("pipeline.page.ocr_failed", "page", pi.PageNumber, "error", err)
		return fmt.Sprintf(constants.PageErrorMarker, pi.PageNumber, err), encoded, false
	}
	p.logger.Debug("pipeline.page.ok", "page", pi.PageNumber, "content_len", len(out))
	return out, encoded, true
}

func (p *Pipeline) ocrPrompt(pageNumber int) string {
	if strings.Contains(p.cfg.OCRPrompt, "%d") {
		return fmt.Sprintf(p.cfg.OCRPrompt, pageNumber)
	}
	return fmt.Sprintf("%s (page %d)", p.cfg.OCRPrompt, pageNumber)
}
