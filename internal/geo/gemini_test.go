package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func candidate(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
		}},
	})
	return string(b)
}

func TestGeminiLocate(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, candidate(
		`[{"city":"Kyoto","prob":62},{"city":"Nara","prob":18},{"city":"Osaka","prob":12},{"city":"Kobe","prob":8}]`))

	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL + "/"}, srv.Client())
	guesses, err := p.Locate(context.Background(), testImage)
	require.NoError(t, err)
	require.NoError(t, Validate(guesses))
	assert.Equal(t, Guess{Label: "Kyoto", Confidence: 62}, guesses[0])
}

func TestGeminiAuthFailure(t *testing.T) {
	srv := geminiServer(t, http.StatusUnauthorized,
		`{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`)

	p := NewGeminiProvider(GeminiConfig{APIKey: "test-key", BaseURL: srv.URL + "/"}, srv.Client())
	_, err := p.Locate(context.Background(), testImage)
	require.ErrorIs(t, err, ErrAuth)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusUnauthorized, ge.Status)
	assert.Equal(t, ProviderGemini, ge.Provider)
}

func TestGeminiMissingKey(t *testing.T) {
	p := NewGeminiProvider(GeminiConfig{}, nil)
	_, err := p.Locate(context.Background(), testImage)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestGuessSchemaPinsFourItems(t *testing.T) {
	s := guessSchema()
	require.NotNil(t, s.MinItems)
	require.NotNil(t, s.MaxItems)
	assert.EqualValues(t, GuessCount, *s.MinItems)
	assert.EqualValues(t, GuessCount, *s.MaxItems)
	assert.Contains(t, s.Items.Properties, "city")
	assert.Contains(t, s.Items.Properties, "prob")
}
