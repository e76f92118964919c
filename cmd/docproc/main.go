package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aurelmarchand/medidocs/internal/async"
	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/core"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

// docproc ingests PDFs: rasterize, OCR every page, persist the result.
// A single file runs inline; several files go through the document queue.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		logger.Error("usage", "cmd", "docproc <file.pdf> [more.pdf ...]")
		os.Exit(2)
	}
	paths := os.Args[1:]

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	db, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("close db", "error", cerr)
		}
	}()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	proc, err := core.NewProcessor(db, cfg, logger)
	if err != nil {
		logger.Error("build processor", "error", err)
		os.Exit(1)
	}

	if len(paths) == 1 {
		path := paths[0]
		pdf, err := os.ReadFile(path)
		if err != nil {
			logger.Error("read pdf", "path", path, "error", err)
			os.Exit(1)
		}

		start := time.Now()
		res, err := proc.ProcessDocument(ctx, pdf, filepath.Base(path))
		if err != nil {
			logger.Error("document processing failed",
				"path", path, "error", err, "duration_ms", time.Since(start).Milliseconds())
			os.Exit(1)
		}

		logger.Info("document processed",
			"document_id", res.DocumentID,
			"pages", res.TotalPages,
			"succeeded", res.SuccessCount,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	queue := async.NewDocumentQueue(proc, logger)
	for _, path := range paths {
		if err := queue.Enqueue(ctx, async.Job{Path: path, Filename: filepath.Base(path)}); err != nil {
			logger.Error("enqueue pdf", "path", path, "error", err)
		}
	}
	queue.Shutdown(ctx)
}
