package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/belgededektif/docanalyze/constants"
	"github.com/belgededektif/docanalyze/internal/common"
	"github.com/belgededektif/docanalyze/internal/extract"
	"github.com/belgededektif/docanalyze/internal/fields"
	"github.com/belgededektif/docanalyze/internal/ocr"
	"github.com/belgededektif/docanalyze/internal/upload"
)

// runextract runs validation, text extraction, and field derivation on a
// local file and prints the outcome as JSON. Image files need OCR_ENDPOINT
// and OCR_API_KEY set.
func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()
	log := logger.Sugar()

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: runextract <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read file: %v", err)
	}

	cfg := common.LoadConfig()

	validator := upload.NewValidator(upload.Config{
		MaxSizeBytes:      cfg.Upload.MaxSizeBytes,
		MaxImageDimension: cfg.Upload.MaxImageDimension,
	}, logger)
	res, err := validator.Validate(filepath.Base(path), data)
	if err != nil {
		log.Fatalf("validate: %v", err)
	}

	ocrClient := ocr.NewRESTClient(ocr.ClientConfig{
		Endpoint: cfg.OCR.Endpoint,
		APIKey:   cfg.OCR.APIKey,
	}, logger)
	invoker := ocr.NewInvoker(ocrClient, ocr.InvokerConfig{
		PollInterval: cfg.OCR.PollInterval,
		PollTimeout:  cfg.OCR.PollTimeout,
	}, logger)
	extractor := extract.NewExtractor(extract.NewOCRAdapter(invoker), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	text, err := extractor.Extract(ctx, extract.Source{
		Bytes:       res.Bytes,
		ContentType: res.MimeType,
		Format:      res.Format,
	})
	if err != nil {
		log.Fatalf("extract: %v", err)
	}

	var derived any
	if !extract.IsSentinel(text) {
		fieldEx := fields.NewExtractor(fields.Config{BoilerplateTokens: cfg.Fields.BoilerplateTokens})
		derived = fieldEx.Extract(text)
	}

	out := map[string]any{
		"filename":    filepath.Base(path),
		"format":      res.Format,
		"mime_type":   res.MimeType,
		"normalized":  res.Normalized,
		"text":        text,
		"fields":      derived,
		"elapsed_ms":  time.Since(start).Milliseconds(),
		"image_bytes": len(res.Bytes),
	}
	if res.Format != constants.IMAGE {
		delete(out, "image_bytes")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
