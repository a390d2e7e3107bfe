package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ollama implements the Generator interface using a local Ollama server.
// The per-request model identifier wins over the default model when set.
//
// Recommended vision models for invoice tables: qwen2.5vl, llama3.2-vision, llava.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Generator instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5vl"
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		// Timeouts come from the request context; large tables take minutes locally
		client: &http.Client{},
	}, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// GenerateStructured sends the image with the prompt, passing the invoice
// JSON schema as the response format
func (o *Ollama) GenerateStructured(ctx context.Context, req Request) (string, error) {
	if req.Image == nil {
		return "", fmt.Errorf("structured generation requires an image")
	}

	msg := ollamaMessage{
		Role:    "user",
		Content: req.Prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(req.Image.Data)},
	}
	return o.chat(ctx, req, msg, invoiceJSONSchema())
}

// GenerateJSON sends a text-only prompt in JSON mode
func (o *Ollama) GenerateJSON(ctx context.Context, req Request) (string, error) {
	msg := ollamaMessage{Role: "user", Content: req.Prompt}
	return o.chat(ctx, req, msg, "json")
}

func (o *Ollama) chat(ctx context.Context, req Request, msg ollamaMessage, format any) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	reqBody := ollamaChatRequest{
		Model:  model,
		Stream: false,
		Format: format,
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading invoice tables. You return only JSON.",
			},
			msg,
		},
	}
	if req.MaxOutputTokens > 0 {
		reqBody.Options = map[string]any{"num_predict": req.MaxOutputTokens}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", fmt.Errorf("ollama API (status %d): %w", resp.StatusCode, ErrInvalidCredential)
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	text := strings.TrimSpace(chatResp.Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
