package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aurelmarchand/medidocs/internal/common"
	"github.com/aurelmarchand/medidocs/internal/core"
	"github.com/aurelmarchand/medidocs/internal/export"
	"github.com/aurelmarchand/medidocs/internal/repository"
)

// docanalyze runs the prescription and summary analyses on a processed
// document and prints them as JSON, optionally writing an XLSX workbook.
func main() {
	var (
		skipPresc = flag.Bool("no-prescriptions", false, "skip the prescription analysis")
		skipSumm  = flag.Bool("no-summary", false, "skip the summary analysis")
		force     = flag.Bool("force", false, "discard stored analyses and recompute")
		xlsxPath  = flag.String("xlsx", "", "also write an XLSX export to this path")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "docanalyze [flags] <document-id-uuid>")
		os.Exit(2)
	}
	docID, err := uuid.Parse(flag.Arg(0))
	if err != nil {
		logger.Error("invalid document id (must be UUID)", "arg", flag.Arg(0), "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
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

	proc, err := core.NewProcessor(db, cfg, logger)
	if err != nil {
		logger.Error("build processor", "error", err)
		os.Exit(1)
	}

	if *force {
		if err := proc.ResetAnalyses(ctx, docID); err != nil {
			logger.Error("reset analyses failed", "document_id", docID, "error", err)
			os.Exit(1)
		}
	}

	out := map[string]any{"document_id": docID}

	if !*skipPresc {
		analysis, err := proc.AnalyzePrescription(ctx, docID)
		if err != nil {
			logger.Error("prescription analysis failed", "document_id", docID, "error", err)
			os.Exit(1)
		}
		out["prescriptions"] = analysis
	}
	if !*skipSumm {
		summary, err := proc.AnalyzeSummary(ctx, docID)
		if err != nil {
			logger.Error("summary analysis failed", "document_id", docID, "error", err)
			os.Exit(1)
		}
		out["summary"] = summary
	}

	if *xlsxPath != "" {
		svc := export.NewService(
			repository.NewDocumentRepository(db, logger),
			repository.NewPrescriptionRepository(db, logger),
			repository.NewSummaryRepository(db, logger),
			logger,
		)
		data, err := svc.ExportDocumentXLSX(ctx, docID)
		if err != nil {
			logger.Error("xlsx export failed", "document_id", docID, "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxPath, data, 0o644); err != nil {
			logger.Error("write xlsx", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		logger.Info("xlsx written", "path", *xlsxPath, "bytes", len(data))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
}
