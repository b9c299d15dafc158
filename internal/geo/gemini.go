package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"digibox/internal/logging"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini back end. The key always comes from
// the environment, never from the local store.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string // overrides the API endpoint (tests)
}

// GeminiProvider uses structured output so the reply is already the
// four-entry array.
type GeminiProvider struct {
	cfg        GeminiConfig
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider creates a provider; the SDK client is built on first use.
func NewGeminiProvider(cfg GeminiConfig, httpClient *http.Client) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &GeminiProvider{cfg: cfg, httpClient: httpClient}
}

func (p *GeminiProvider) Name() Selection { return ProviderGemini }

func (p *GeminiProvider) sdk(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     p.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: p.httpClient,
	}
	if p.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return client, nil
}

func guessSchema() *genai.Schema {
	n := int64(GuessCount)
	lo, hi := 0.0, 100.0
	return &genai.Schema{
		Type:     genai.TypeArray,
		MinItems: &n,
		MaxItems: &n,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"city": {Type: genai.TypeString},
				"prob": {Type: genai.TypeInteger, Minimum: &lo, Maximum: &hi},
			},
			Required: []string{"city", "prob"},
		},
	}
}

// Locate sends the image inline and parses the JSON reply.
func (p *GeminiProvider) Locate(ctx context.Context, img Image) ([]Guess, error) {
	if p.cfg.APIKey == "" {
		return nil, &Error{Kind: MissingCredential, Provider: ProviderGemini, Err: fmt.Errorf("GEMINI_API_KEY not set")}
	}
	client, err := p.sdk(ctx)
	if err != nil {
		return nil, &Error{Kind: ProviderError, Provider: ProviderGemini, Err: err}
	}

	startTime := time.Now()
	logging.GeoDebug("[Gemini] Locate: model=%s image=%s (%d bytes)", p.cfg.Model, img.MIMEType, len(img.Data))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(instruction + " Key names: 'city', 'prob'."),
		}, genai.RoleUser),
	}
	resp, err := client.Models.GenerateContent(ctx, p.cfg.Model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   guessSchema(),
	})
	if err != nil {
		logging.GeoError("[Gemini] Locate: failed after %v: %v", time.Since(startTime), err)
		return nil, classifyGenAI(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &Error{Kind: MalformedResponse, Provider: ProviderGemini, Err: fmt.Errorf("empty response")}
	}
	guesses, err := parseGuesses(stripFences(text))
	if err != nil {
		return nil, withProvider(err, ProviderGemini)
	}
	logging.Geo("[Gemini] Locate: completed in %v with %d guesses", time.Since(startTime), len(guesses))
	return guesses, nil
}

func classifyGenAI(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return &Error{Kind: ProviderError, Provider: ProviderGemini, Err: err}
	}

	e := &Error{Kind: ProviderError, Provider: ProviderGemini, Status: apiErr.Code, Body: truncate(apiErr.Message, 500), Err: err}
	lower := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden,
		strings.Contains(lower, "api key not valid"), strings.Contains(lower, "api_key_invalid"):
		e.Kind = AuthError
	case apiErr.Code == http.StatusBadRequest && strings.Contains(lower, "image"):
		e.Kind = VisionUnsupported
	}
	return e
}
