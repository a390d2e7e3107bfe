package scanning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini implements the Generator interface using Google Gemini
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a new Gemini Generator instance
func NewGemini(apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrInvalidCredential)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{client: client}, nil
}

// GenerateStructured sends the page image with the prompt and constrains the
// reply to the invoice schema
func (g *Gemini) GenerateStructured(ctx context.Context, req Request) (string, error) {
	if req.Image == nil {
		return "", errors.New("structured generation requires an image")
	}

	model := g.structuredModel(req)

	// genai.ImageData expects just the format suffix (e.g., "jpeg"), not the full MIME type
	format := strings.TrimPrefix(req.Image.MediaType, "image/")
	parts := []genai.Part{
		genai.ImageData(format, req.Image.Data),
		genai.Text(req.Prompt),
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return responseText(resp)
}

// GenerateJSON sends a text-only prompt and asks for a JSON reply
func (g *Gemini) GenerateJSON(ctx context.Context, req Request) (string, error) {
	model := g.newModel(req)

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return responseText(resp)
}

// newModel builds a model handle per request so the model name is a pure pass-through.
// It asks for JSON but leaves the reply shape unconstrained.
func (g *Gemini) newModel(req Request) *genai.GenerativeModel {
	model := g.client.GenerativeModel(req.Model)
	model.ResponseMIMEType = "application/json"
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	return model
}

// structuredModel is newModel constrained to the invoice schema
func (g *Gemini) structuredModel(req Request) *genai.GenerativeModel {
	model := g.newModel(req)
	model.ResponseSchema = invoiceGenaiSchema()
	return model
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// classifyGeminiError marks API key failures with ErrInvalidCredential
func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		case apiErr.Code == http.StatusBadRequest && mentionsAPIKey(apiErr.Message):
			return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
		}
	}
	if mentionsAPIKey(err.Error()) {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return fmt.Errorf("generating content: %w", err)
}

func mentionsAPIKey(msg string) bool {
	return strings.Contains(msg, "API_KEY_INVALID") ||
		strings.Contains(msg, "API key not valid") ||
		strings.Contains(msg, "API key expired")
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
