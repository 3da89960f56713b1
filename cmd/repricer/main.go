package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/merchware/repricer/internal/assemble"
	"github.com/merchware/repricer/internal/config"
	"github.com/merchware/repricer/internal/engine"
	"github.com/merchware/repricer/internal/report"
	"github.com/merchware/repricer/internal/sample"
	"github.com/merchware/repricer/internal/source"
	"github.com/merchware/repricer/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [repricer]...")

	if err := cfg.Validate(); err != nil {
		// Startup diagnostics go to stderr directly so a broken run is
		// readable without a log pipeline.
		fmt.Fprintf(os.Stderr, "repricer: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Input source ---
	var src source.Source
	switch cfg.Source {
	case config.SourceRemote:
		src = source.NewHTTPSource(cfg.InputURL, cfg.HTTPTimeout, logger.L())
	default:
		src = source.LocalFile{Path: cfg.InputPath}
	}

	input, err := src.Fetch(ctx)
	if err != nil {
		logg.Fatalw("failed to fetch input", "error", err)
	}

	// --- Assemble product aggregates ---
	asm := assemble.New(cfg.MetafieldPrefix, logger.L())
	products, metaColumn, err := asm.Assemble(input)
	_ = input.Close()
	if err != nil {
		logg.Fatalw("failed to assemble input", "error", err)
	}

	// --- Classify, price, and diff ---
	eng := engine.New(cfg.Classifier, cfg.Pricing, cfg.DraftStatus,
		cfg.VATRate, cfg.VATNetPrices, logger.L())
	rr, err := eng.Run(products, cfg.EmitFull)
	if err != nil {
		logg.Fatalw("run aborted, no output written", "error", err)
	}

	// --- Manual-review sample ---
	sampled := sample.Select(rr.Results, cfg.SampleSize)

	// --- Write reports and instruction files ---
	w := &report.Writer{
		Dir:             cfg.OutputDir,
		MetafieldColumn: metaColumn,
		EmitFull:        cfg.EmitFull,
		Log:             logger.L(),
	}
	if err := w.WriteAll(rr, sampled); err != nil {
		logg.Fatalw("failed to write output", "error", err)
	}

	logg.Infow("run complete",
		"run_id", rr.Summary.RunID,
		"products", rr.Summary.TotalProducts,
		"changed", rr.Summary.Changed,
		"drafted", rr.Summary.Drafted,
		"excluded", rr.Summary.Excluded,
		"output_dir", cfg.OutputDir,
	)
}
