package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/clinicalpath/dx-engine/internal/analysis"
	"github.com/clinicalpath/dx-engine/internal/cache"
	"github.com/clinicalpath/dx-engine/internal/config"
	"github.com/clinicalpath/dx-engine/internal/domain"
	"github.com/clinicalpath/dx-engine/internal/encoder"
	"github.com/clinicalpath/dx-engine/internal/httpapi"
	"github.com/clinicalpath/dx-engine/internal/redflag"
	"github.com/clinicalpath/dx-engine/internal/retrieval"
	"github.com/clinicalpath/dx-engine/internal/scoring"
	"github.com/clinicalpath/dx-engine/internal/triage"
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

	index, err := buildIndex(cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to build vector index")
	}

	textEncoder := buildEncoder(cfg, logger)
	embeddingCache, err := cache.NewEmbeddingCache(cfg.Cache.EmbeddingMaxKeys, nil, cfg.Cache.EmbeddingTTL, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build embedding cache")
	}
	queryCache := cache.NewQueryCache(cfg.Cache.QueryCacheMaxKeys, cfg.Cache.QueryCacheTTL)

	retriever := retrieval.New(textEncoder, index, embeddingCache, retrieval.Config{
		BroadTopK: cfg.Retrieval.BroadTopK, FocusedTopK: cfg.Retrieval.FocusedTopK, RareTopK: cfg.Retrieval.RareTopK,
		TopKCandidates: cfg.Retrieval.TopKCandidates, RRFK: cfg.Retrieval.RRFK,
		BroadWeight: cfg.Retrieval.BroadWeight, FocusedWeight: cfg.Retrieval.FocusedWeight, RareWeight: cfg.Retrieval.RareWeight,
		DemographicAgeToleranceYears: cfg.Retrieval.DemographicAgeToleranceYears,
		ConcurrencyLimit:             cfg.Retrieval.ConcurrencyLimit,
	}, logger)

	scorer := scoring.New(cfg.Scoring.Weights, cfg.Scoring.AgeToleranceYears)
	classifier := triage.New(cfg.Triage.Tier1Threshold, cfg.Triage.Tier2Threshold, cfg.Triage.Tier3Threshold, cfg.Triage.MaxTests, cfg.Triage.MaxSpecialists)
	detector := redflag.New(redflag.DefaultLexicon())

	service := analysis.New(detector, retriever, scorer, classifier, queryCache, cfg.Server.OverallTimeout, logger)
	handler := httpapi.NewHandler(service, logger)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.WithField("addr", srv.Addr).Info("starting diagnostic engine server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Fatal("server failed")
	}
	<-ctx.Done()
	logger.Info("diagnostic engine server stopped")
}

func buildIndex(cfg *domain.Config) (domain.VectorIndex, error) {
	switch cfg.Index.Backend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), connString(cfg))
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return vectorindex.NewPostgres(pool, nil), nil
	case "sqlite":
		return vectorindex.NewSQLiteIndex(cfg.Index.SQLitePath)
	case "memory", "":
		return vectorindex.NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
}

func connString(cfg *domain.Config) string {
	db := cfg.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

func buildEncoder(cfg *domain.Config, logger *logrus.Logger) domain.TextEncoder {
	if cfg.Encoder.Backend == "remote" {
		return encoder.NewRemoteEncoder(encoder.RemoteEncoderConfig{
			BaseURL: cfg.Encoder.RemoteURL, ModelID: cfg.Encoder.ModelID, Dimension: cfg.Encoder.Dimension,
			Timeout: cfg.Encoder.RemoteTimeout, RateLimit: cfg.Encoder.RemoteRateLimit,
		}, logger)
	}
	return encoder.NewLocalEncoder(cfg.Encoder.Dimension, logger)
}
