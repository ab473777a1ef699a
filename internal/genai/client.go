// Package genai calls the Gemini generateContent REST API for digest
// summarization.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/craigary/telegram-summary-bot/internal/observability"
)

var (
	ErrNoCandidates    = errors.New("no candidates in response")
	ErrInvalidResponse = errors.New("invalid response from Gemini API")
)

// maxOutputTokens bounds the generated digest length.
const maxOutputTokens = 4096

// Part is one element of a multimodal prompt: text or inline image data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inline_data,omitempty"`
}

// Blob is base64-encoded inline media.
type Blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// TextPart builds a text prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// JPEGPart builds an inline image part from raw JPEG bytes.
func JPEGPart(data []byte) Part {
	return Part{InlineData: &Blob{
		MimeType: "image/jpeg",
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

// Client calls the generateContent endpoint. The HTTP client carries no
// timeout: generation on a large window can take minutes, so the caller's
// context is the only bound.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a new Gemini API client.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []Part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Group chat runs rude; only the highest-severity content is blocked.
func defaultSafetySettings() []safetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]safetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, safetySetting{Category: c, Threshold: "BLOCK_ONLY_HIGH"})
	}
	return settings
}

// GenerateContent sends the prompt parts and returns the generated text.
// Transient failures are retried twice with linear backoff.
func (c *Client) GenerateContent(ctx context.Context, parts []Part) (string, error) {
	payload := generateRequest{
		Contents:         []content{{Parts: parts}},
		SafetySettings:   defaultSafetySettings(),
		GenerationConfig: generationConfig{MaxOutputTokens: maxOutputTokens},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		text, err := c.doGenerate(ctx, url, body)
		if err == nil {
			observability.GenAIRequestDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < 3 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	observability.GenAIRequestDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
	return "", fmt.Errorf("failed to generate content after 3 attempts: %w", lastErr)
}

func (c *Client) doGenerate(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call generateContent: %w", err)
	}
	defer resp.Body.Close()

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("generateContent error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", ErrNoCandidates
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
