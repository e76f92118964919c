package raster

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/aurelmarchand/medidocs/internal/common"
)

// base render resolution in DPI before the zoom factor is applied.
const baseDPI = 72

type Config struct {
	// Zoom is the render scale factor; 2 gives ~144 DPI, which keeps page
	// images small enough to embed in a model request while staying legible.
	Zoom float64
}

// PageImage is the transient raster for one page. It lives only for the
// duration of that page's processing and is never persisted directly.
type PageImage struct {
	PageNumber int
	Image      image.Image
}

type Rasterizer struct {
	cfg    Config
	logger *slog.Logger
}

func NewRasterizer(cfg Config, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = 2
	}
	return &Rasterizer{cfg: cfg, logger: logger}
}

// Render rasterizes every page of the PDF to an RGB image. Pages that fail to
// render or come back with zero width/height are logged and skipped; the
// surviving pages are renumbered contiguously from 1. Returns
// ErrNoPagesExtracted when nothing survives.
func (r *Rasterizer) Render(pdf []byte) ([]PageImage, error) {
	// Preflight with pdfcpu: catches corrupt files before MuPDF touches them
	// and gives us the declared page count for the log line.
	declared, err := api.PageCount(bytes.NewReader(pdf), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRender, err)
	}

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", common.ErrRender, err)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			r.logger.Warn("raster.close_error", "error", cerr)
		}
	}()

	var images []PageImage
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, baseDPI*r.cfg.Zoom)
		if err != nil {
			r.logger.Warn("raster.page_failed", "page", n+1, "error", err)
			continue
		}
		b := img.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			r.logger.Warn("raster.page_empty", "page", n+1)
			continue
		}
		images = append(images, PageImage{PageNumber: len(images) + 1, Image: img})
	}

	if len(images) == 0 {
		return nil, common.ErrNoPagesExtracted
	}

	r.logger.Info("raster.ok",
		"declared_pages", declared,
		"rendered_pages", len(images),
		"zoom", r.cfg.Zoom,
	)
	return images, nil
}
