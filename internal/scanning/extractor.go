package scanning

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxOutputTokens leaves room for several hundred table rows
	DefaultMaxOutputTokens = 25000
	DefaultTimeout         = 5 * time.Minute
)

// Config holds the generation limits shared by Extractor and Refiner
type Config struct {
	MaxOutputTokens int
	Timeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Extractor turns a source document into InvoiceData with one schema-constrained
// generation call
type Extractor struct {
	rasterizer Rasterizer
	generator  Generator
	cfg        Config
	newRunID   func() string
}

// NewExtractor creates a new Extractor
func NewExtractor(rasterizer Rasterizer, generator Generator, cfg Config) *Extractor {
	return &Extractor{
		rasterizer: rasterizer,
		generator:  generator,
		cfg:        cfg.withDefaults(),
		newRunID:   uuid.NewString,
	}
}

// Extract rasterizes page 1 of file, asks the model for the invoice table and
// validates the reply. Rasterization failures are *DocumentProcessingError;
// everything after that is *ExtractionError. A record with zero line items is
// a valid result.
func (e *Extractor) Extract(ctx context.Context, file SourceFile, model string, progress ProgressReporter) (*InvoiceData, error) {
	if progress == nil {
		progress = discardProgress{}
	}
	runID := e.newRunID()
	log := slog.With("run_id", runID, "file", file.Name, "model", model)
	report := func(percent int, message string) {
		progress.Report(Progress{RunID: runID, Percent: percent, Message: message})
	}

	report(0, "Starting extraction process...")

	report(10, "Reading PDF file...")
	if len(file.Data) == 0 {
		return nil, &DocumentProcessingError{Err: errors.New("file is empty")}
	}

	report(20, "Parsing PDF structure...")
	img, err := e.rasterizer.Rasterize(file.Data, file.MediaType)
	if err != nil {
		log.Error("Failed to rasterize document", "content_type", file.MediaType, "file_size", len(file.Data), "error", err)
		var docErr *DocumentProcessingError
		if errors.As(err, &docErr) {
			return nil, docErr
		}
		return nil, &DocumentProcessingError{Err: err}
	}

	report(40, "Capturing invoice image...")
	req := Request{
		Model:           model,
		Prompt:          extractionPrompt,
		Image:           img,
		MaxOutputTokens: e.cfg.MaxOutputTokens,
	}

	report(60, "Optimizing data for AI...")
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	report(70, "AI is analyzing 15-column table structure...")
	start := time.Now()
	text, err := e.generator.GenerateStructured(ctx, req)
	if err != nil {
		log.Error("Generation failed", "image_size", len(img.Data), "error", err)
		return nil, &ExtractionError{Err: err}
	}

	report(90, "Validating data integrity...")
	data, err := parseInvoiceJSON(text)
	if err != nil {
		log.Error("Failed to parse model response", "response_size", len(text), "error", err)
		return nil, &ExtractionError{Err: err}
	}

	log.Info("Invoice extracted", "items", len(data.LineItems), "duration", time.Since(start))
	report(100, "Success!")
	return data, nil
}
