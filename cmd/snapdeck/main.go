package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"snapdeck/src/config"
	"snapdeck/src/coordinator"
	"snapdeck/src/logutil"
	"snapdeck/src/rasterizer"
	"snapdeck/src/recognition"
	"snapdeck/src/session"
	"snapdeck/src/store"
)

// Version is stamped at build time.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logutil.Setup(cfg.EnableFileLogging)

	st, err := store.Open(cfg.StorageDir, store.Options{AutoRecognize: cfg.AutoRecognize})
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		os.Exit(1)
	}

	pipeline := recognition.New(buildEngine(cfg), st, recognition.Options{
		Deadline:  time.Duration(cfg.OCRDeadlineSec) * time.Second,
		Languages: cfg.Languages,
	})
	defer pipeline.Close()

	backend := rasterizer.OSBackend{}
	coord, err := coordinator.New(coordinator.Deps{
		Store:      st,
		Pipeline:   pipeline,
		Rasterizer: rasterizer.New(backend),
		Surfaces:   backend.Surfaces,
		Windows:    backend,
		Filter:     session.DefaultWindowFilter("snapdeck"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}

	app := newCLIApp(coord, st)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func buildEngine(cfg *config.Config) recognition.Engine {
	switch cfg.Engine {
	case config.EngineOpenRouter:
		log.Printf("recognition: openrouter model=%s key=%s", cfg.Model, logutil.RedactKey(cfg.APIKey))
		return &recognition.OpenRouterEngine{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}
	default:
		return &recognition.TesseractEngine{Binary: cfg.TesseractPath}
	}
}
