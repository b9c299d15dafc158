// Package geo infers where a photo was taken by asking a vision model for
// four ranked location guesses.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// GuessCount is the number of guesses every analysis yields.
const GuessCount = 4

// Selection names the active inference back end.
type Selection string

const (
	ProviderGemini Selection = "gemini"
	ProviderOpenAI Selection = "openai"
)

// Valid reports whether s names a supported provider.
func (s Selection) Valid() bool {
	return s == ProviderGemini || s == ProviderOpenAI
}

// Other returns the alternate provider.
func (s Selection) Other() Selection {
	if s == ProviderOpenAI {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// DisplayName is the user-facing provider name.
func (s Selection) DisplayName() string {
	switch s {
	case ProviderOpenAI:
		return "OpenAI 兼容接口"
	default:
		return "Gemini"
	}
}

// Guess is one candidate location.
type Guess struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
	Error      bool   `json:"error,omitempty"`
}

// Provider is a vision back end.
type Provider interface {
	Name() Selection
	Locate(ctx context.Context, img Image) ([]Guess, error)
}

const instruction = "Analyze the location of this image. Identify the city or region. " +
	"Return a JSON array of exactly 4 potential locations with confidence probability (integer 0-100). " +
	"Ensure probabilities are realistic guesses."

// Validate checks a provider reply: exactly GuessCount entries with
// non-empty labels and confidence in [0,100].
func Validate(guesses []Guess) error {
	if len(guesses) != GuessCount {
		return &Error{Kind: MalformedResponse, Err: fmt.Errorf("got %d guesses, want %d", len(guesses), GuessCount)}
	}
	for i, g := range guesses {
		if strings.TrimSpace(g.Label) == "" {
			return &Error{Kind: MalformedResponse, Err: fmt.Errorf("guess %d has an empty label", i)}
		}
		if g.Confidence < 0 || g.Confidence > 100 {
			return &Error{Kind: MalformedResponse, Err: fmt.Errorf("guess %d confidence %d out of range", i, g.Confidence)}
		}
	}
	return nil
}

// rawGuess accepts both the {label, confidence} and {city, prob} shapes.
type rawGuess struct {
	Label      string   `json:"label"`
	City       string   `json:"city"`
	Confidence *float64 `json:"confidence"`
	Prob       *float64 `json:"prob"`
}

func parseGuesses(text string) ([]Guess, error) {
	var raw []rawGuess
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &Error{Kind: MalformedResponse, Body: truncate(text, 200), Err: err}
	}
	guesses := make([]Guess, 0, len(raw))
	for _, r := range raw {
		g := Guess{Label: strings.TrimSpace(r.Label)}
		if g.Label == "" {
			g.Label = strings.TrimSpace(r.City)
		}
		conf := r.Confidence
		if conf == nil {
			conf = r.Prob
		}
		if conf == nil {
			g.Confidence = -1
		} else {
			g.Confidence = int(math.Round(*conf))
		}
		guesses = append(guesses, g)
	}
	return guesses, nil
}

// stripFences removes a Markdown code fence around a reply and anything
// outside the outermost JSON array.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if start, end := strings.IndexByte(s, '['), strings.LastIndexByte(s, ']'); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}
