package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/internal/answer"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/export"
	"github.com/belgededektif/docanalyze/internal/extract"
	"github.com/belgededektif/docanalyze/internal/fields"
	"github.com/belgededektif/docanalyze/internal/llm/openai"
	"github.com/belgededektif/docanalyze/internal/ocr"
	"github.com/belgededektif/docanalyze/internal/pipeline"
	"github.com/belgededektif/docanalyze/internal/repository"
	"github.com/belgededektif/docanalyze/internal/server"
	"github.com/belgededektif/docanalyze/internal/storage"
	"github.com/belgededektif/docanalyze/internal/upload"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence
	var docs repository.DocumentRepository
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := repository.OpenSQLite(cfg.Database, logger)
		if err != nil {
			log.Fatalf("opening sqlite: %v", err)
		}
		defer repository.Close(nil, db, logger)
		docs = repository.NewSQLiteDocumentRepository(db, logger)
	default:
		pool, err := repository.Open(ctx, cfg.Database, logger)
		if err != nil {
			log.Fatalf("creating DB pool: %v", err)
		}
		defer repository.Close(pool, nil, logger)
		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
			log.Fatalf("DB health failed: %v", err)
		}
		log.Infow("DB health OK")
		docs = repository.NewDocumentRepository(pool, logger)
	}

	// Blob storage
	var store storage.BlobStore
	switch cfg.Storage.Provider {
	case "local":
		local, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL, logger)
		if err != nil {
			log.Fatalf("opening local store: %v", err)
		}
		store = local
	default:
		gcs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile, cfg.Storage.PublicBaseURL, logger)
		if err != nil {
			log.Fatalf("opening gcs store: %v", err)
		}
		defer gcs.Close()
		store = gcs
	}

	// OCR and extraction
	ocrClient := ocr.NewRESTClient(ocr.ClientConfig{
		Endpoint: cfg.OCR.Endpoint,
		APIKey:   cfg.OCR.APIKey,
	}, logger)
	invoker := ocr.NewInvoker(ocrClient, ocr.InvokerConfig{
		PollInterval: cfg.OCR.PollInterval,
		PollTimeout:  cfg.OCR.PollTimeout,
	}, logger)
	extractor := extract.NewExtractor(extract.NewOCRAdapter(invoker), logger)

	validator := upload.NewValidator(upload.Config{
		MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
		MaxImageDimension: cfg.Upload.MaxImageDimension,
	}, logger)
	fieldEx := fields.NewExtractor(fields.Config{BoilerplateTokens: cfg.Fields.BoilerplateTokens})
	processor := pipeline.NewProcessor(validator, store, docs, extractor, fieldEx, logger)

	// Question answering
	completer := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   int32(cfg.LLM.MaxTokens),
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	answerer := answer.NewService(docs, completer, answer.Config{
		MaxContextChars: cfg.LLM.MaxContextChars,
	}, logger)

	exporter := export.NewService(docs, logger)

	handler := server.NewDocumentHandler(processor, docs, answerer, exporter, cfg.Server.UploadWorker, logger)
	router := server.NewRouter(server.RouterConfig{
		Documents:   handler,
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   cfg.Server.StaticDir,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Infof("HTTP serving on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}
	log.Info("stopped.")
}
