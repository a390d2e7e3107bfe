package scanning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Refiner applies a natural-language correction to a full record. The backend
// returns the complete corrected record, not a diff.
//
// The refinement call is not schema-constrained on the backend; the reply is
// validated locally against the closed field set instead.
type Refiner struct {
	generator Generator
	cfg       Config
}

// NewRefiner creates a new Refiner
func NewRefiner(generator Generator, cfg Config) *Refiner {
	return &Refiner{
		generator: generator,
		cfg:       cfg.withDefaults(),
	}
}

// Refine returns a new record derived from current and instruction. current is
// never modified. Failures are *RefinementError.
func (r *Refiner) Refine(ctx context.Context, current *InvoiceData, instruction string, model string) (*InvoiceData, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, &RefinementError{Err: errors.New("instruction is required")}
	}
	if current == nil {
		return nil, &RefinementError{Err: errors.New("no record to refine")}
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, &RefinementError{Err: fmt.Errorf("marshaling current record: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	text, err := r.generator.GenerateJSON(ctx, Request{
		Model:           model,
		Prompt:          buildRefinementPrompt(instruction, currentJSON),
		MaxOutputTokens: r.cfg.MaxOutputTokens,
	})
	if err != nil {
		slog.Error("Refinement generation failed", "model", model, "error", err)
		return nil, &RefinementError{Err: err}
	}

	data, err := parseInvoiceJSON(text)
	if err != nil {
		slog.Error("Failed to parse refinement response", "model", model, "response_size", len(text), "error", err)
		return nil, &RefinementError{Err: err}
	}

	slog.Info("Invoice refined", "model", model, "items_before", len(current.LineItems), "items_after", len(data.LineItems))
	return data, nil
}
