package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"digibox/internal/logging"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAISettings configures the OpenAI-compatible back end.
type OpenAISettings struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (s OpenAISettings) withDefaults() OpenAISettings {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.BaseURL == "" {
		s.BaseURL = DefaultOpenAIBaseURL
	}
	if strings.TrimSpace(s.Model) == "" {
		s.Model = DefaultOpenAIModel
	}
	s.APIKey = strings.TrimSpace(s.APIKey)
	return s
}

// OpenAIProvider talks to any /chat/completions endpoint that accepts
// image_url content parts.
type OpenAIProvider struct {
	settings   OpenAISettings
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider. A nil client gets a 60s timeout.
func NewOpenAIProvider(settings OpenAISettings, httpClient *http.Client) *OpenAIProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIProvider{settings: settings.withDefaults(), httpClient: httpClient}
}

func (p *OpenAIProvider) Name() Selection { return ProviderOpenAI }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const openAIInstruction = instruction +
	` Respond with ONLY a JSON array of exactly 4 objects of the form {"label": "<city or region>", "confidence": <integer 0-100>}.` +
	` No prose, no Markdown.`

// Locate sends the image and the instruction as one user message.
func (p *OpenAIProvider) Locate(ctx context.Context, img Image) ([]Guess, error) {
	if p.settings.APIKey == "" {
		return nil, &Error{Kind: MissingCredential, Provider: ProviderOpenAI, Err: fmt.Errorf("API key not configured")}
	}

	startTime := time.Now()
	logging.GeoDebug("[OpenAI] Locate: model=%s base=%s image=%s (%d bytes)", p.settings.Model, p.settings.BaseURL, img.MIMEType, len(img.Data))

	reqBody := chatRequest{
		Model: p.settings.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: openAIInstruction},
				{Type: "image_url", ImageURL: &imageURL{URL: img.DataURI()}},
			},
		}},
		MaxTokens:   512,
		Temperature: 0.2,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.settings.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &Error{Kind: ProviderError, Provider: ProviderOpenAI, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.settings.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		logging.GeoError("[OpenAI] Locate: request failed after %v: %v", time.Since(startTime), err)
		return nil, &Error{Kind: ProviderError, Provider: ProviderOpenAI, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: ProviderError, Provider: ProviderOpenAI, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.GeoError("[OpenAI] Locate: status %d: %s", resp.StatusCode, truncate(string(body), 200))
		return nil, classifyStatus(resp.StatusCode, string(body))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, &Error{Kind: MalformedResponse, Provider: ProviderOpenAI, Status: resp.StatusCode, Body: truncate(string(body), 200), Err: err}
	}
	if chat.Error != nil {
		return nil, &Error{Kind: ProviderError, Provider: ProviderOpenAI, Status: resp.StatusCode, Body: chat.Error.Message}
	}
	if len(chat.Choices) == 0 {
		return nil, &Error{Kind: MalformedResponse, Provider: ProviderOpenAI, Err: fmt.Errorf("no completion returned")}
	}

	guesses, err := parseGuesses(stripFences(chat.Choices[0].Message.Content))
	if err != nil {
		return nil, withProvider(err, ProviderOpenAI)
	}
	logging.Geo("[OpenAI] Locate: completed in %v with %d guesses", time.Since(startTime), len(guesses))
	return guesses, nil
}

var visionRejections = []string{"image", "vision", "multimodal", "multi-modal"}

func classifyStatus(status int, body string) error {
	e := &Error{Kind: ProviderError, Provider: ProviderOpenAI, Status: status, Body: truncate(body, 500)}
	switch status {
	case http.StatusUnauthorized:
		e.Kind = AuthError
	case http.StatusBadRequest:
		lower := strings.ToLower(body)
		for _, marker := range visionRejections {
			if strings.Contains(lower, marker) {
				e.Kind = VisionUnsupported
				break
			}
		}
	}
	return e
}

func withProvider(err error, sel Selection) error {
	if ge, ok := err.(*Error); ok && ge.Provider == "" {
		ge.Provider = sel
	}
	return err
}
