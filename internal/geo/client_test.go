package geo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"digibox/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeProvider struct {
	name   Selection
	locate func(ctx context.Context, img Image) ([]Guess, error)
}

func (f *fakeProvider) Name() Selection { return f.name }

func (f *fakeProvider) Locate(ctx context.Context, img Image) ([]Guess, error) {
	return f.locate(ctx, img)
}

func fourGuesses(top string) []Guess {
	return []Guess{{top, 60, false}, {"B", 20, false}, {"C", 15, false}, {"D", 5, false}}
}

func newClient(t *testing.T, opts Options) (*Client, *store.KV) {
	t.Helper()
	kv := store.New(store.NewMemoryBackend())
	return NewClient(kv, opts), kv
}

const okURI = "data:image/png;base64,iVBORw0KGgo="

func TestMissingCredentialNamedInFirstEntry(t *testing.T) {
	c, _ := newClient(t, Options{})

	res := c.Analyze(context.Background(), okURI)
	require.ErrorIs(t, res.Err, ErrMissingCredential)
	require.Len(t, res.Guesses, GuessCount)
	assert.Contains(t, res.Guesses[0].Label, "GEMINI_API_KEY")

	c.SetSelection(ProviderOpenAI)
	res = c.Analyze(context.Background(), okURI)
	require.ErrorIs(t, res.Err, ErrMissingCredential)
	assert.Equal(t, ProviderOpenAI, res.Provider)
	assert.Contains(t, res.Guesses[0].Label, "API Key")
	for _, g := range res.Guesses {
		assert.True(t, g.Error)
		assert.Zero(t, g.Confidence)
		assert.NotEmpty(t, g.Label)
	}
}

func TestInvalidImageNeverReachesProvider(t *testing.T) {
	c, _ := newClient(t, Options{})
	called := false
	c.newProvider = func(sel Selection) Provider {
		return &fakeProvider{name: sel, locate: func(context.Context, Image) ([]Guess, error) {
			called = true
			return fourGuesses("X"), nil
		}}
	}

	res := c.Analyze(context.Background(), "not-a-data-uri")
	assert.ErrorIs(t, res.Err, ErrInvalidImageData)
	assert.False(t, called)
	assert.Len(t, res.Guesses, GuessCount)
}

func TestMalformedReplyBecomesDiagnostics(t *testing.T) {
	c, _ := newClient(t, Options{})
	c.newProvider = func(sel Selection) Provider {
		return &fakeProvider{name: sel, locate: func(context.Context, Image) ([]Guess, error) {
			return []Guess{{Label: "Only one", Confidence: 99}}, nil
		}}
	}

	res := c.Analyze(context.Background(), okURI)
	assert.ErrorIs(t, res.Err, ErrMalformedResponse)
	require.Len(t, res.Guesses, GuessCount)
	assert.True(t, res.Guesses[0].Error)
}

func TestSuccessStoresParsedGuesses(t *testing.T) {
	c, _ := newClient(t, Options{})
	c.newProvider = func(sel Selection) Provider {
		return &fakeProvider{name: sel, locate: func(_ context.Context, img Image) ([]Guess, error) {
			assert.Equal(t, "image/png", img.MIMEType)
			return fourGuesses("Shanghai"), nil
		}}
	}

	res := c.Analyze(context.Background(), okURI)
	require.NoError(t, res.Err)
	assert.Equal(t, fourGuesses("Shanghai"), res.Guesses)
	assert.NotEmpty(t, res.RequestID)
	assert.True(t, c.Accept(res))
}

func TestNewerAnalysisWins(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	c, _ := newClient(t, Options{})
	firstStarted := make(chan struct{})
	var calls atomic.Int32
	c.newProvider = func(sel Selection) Provider {
		return &fakeProvider{name: sel, locate: func(ctx context.Context, _ Image) ([]Guess, error) {
			if calls.Add(1) == 1 {
				close(firstStarted)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return fourGuesses("second"), nil
		}}
	}

	firstDone := make(chan Result, 1)
	go func() { firstDone <- c.Analyze(context.Background(), okURI) }()
	<-firstStarted

	second := c.Analyze(context.Background(), okURI)
	var first Result
	select {
	case first = <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("first analysis was not cancelled")
	}

	assert.Less(t, first.Seq, second.Seq)
	assert.False(t, c.Accept(first), "stale result must be dropped")
	assert.True(t, c.Accept(second))
	assert.Equal(t, "second", second.Guesses[0].Label)
	assert.True(t, errors.Is(first.Err, context.Canceled))
}

func TestResetMarksInFlightStale(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	c, _ := newClient(t, Options{})
	started := make(chan struct{})
	c.newProvider = func(sel Selection) Provider {
		return &fakeProvider{name: sel, locate: func(ctx context.Context, _ Image) ([]Guess, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}}
	}

	done := make(chan Result, 1)
	go func() { done <- c.Analyze(context.Background(), okURI) }()
	<-started
	c.Reset()

	res := <-done
	assert.False(t, c.Accept(res))
}

func TestSelectionPersistence(t *testing.T) {
	c, kv := newClient(t, Options{})
	assert.Equal(t, ProviderGemini, c.Selection())
	assert.False(t, c.Explicit())

	assert.True(t, c.ApplyDetected(ProviderOpenAI))
	assert.Equal(t, ProviderOpenAI, c.Selection())
	assert.Empty(t, store.LoadString(kv, KeyProvider, ""), "detected provider is not persisted")

	assert.Equal(t, ProviderGemini, c.Toggle())
	assert.Equal(t, "gemini", store.LoadString(kv, KeyProvider, ""))

	reloaded := NewClient(kv, Options{})
	assert.Equal(t, ProviderGemini, reloaded.Selection())
	assert.True(t, reloaded.Explicit())
	assert.False(t, reloaded.ApplyDetected(ProviderOpenAI), "user choice beats detection")
	assert.Equal(t, ProviderGemini, reloaded.Selection())
}

func TestOpenAISettingsPersistence(t *testing.T) {
	c, kv := newClient(t, Options{OpenAI: OpenAISettings{Model: "gpt-4o"}})
	assert.Equal(t, "gpt-4o", c.OpenAISettings().Model)
	assert.Equal(t, DefaultOpenAIBaseURL, c.OpenAISettings().BaseURL)

	c.SetOpenAISettings(OpenAISettings{APIKey: "sk-1", BaseURL: "https://api.example.cn/v1", Model: "qwen-vl-max"})
	reloaded := NewClient(kv, Options{})
	assert.Equal(t, OpenAISettings{APIKey: "sk-1", BaseURL: "https://api.example.cn/v1", Model: "qwen-vl-max"}, reloaded.OpenAISettings())

	c.SetOpenAISettings(OpenAISettings{})
	assert.Empty(t, store.LoadString(kv, KeyOpenAIKey, ""))
	assert.Equal(t, DefaultOpenAIModel, NewClient(kv, Options{}).OpenAISettings().Model)
}

func TestAnalyzeFilesBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	dir := t.TempDir()
	var paths []string
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(p, pngHeader, 0o644))
		paths = append(paths, p)
	}
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("plain text"), 0o644))
	paths = append(paths, bad)

	c, _ := newClient(t, Options{})
	var mu sync.Mutex
	inFlight, peak := 0, 0
	c.newProvider = func(sel Selection) Provider {
		return &fakeProvider{name: sel, locate: func(context.Context, Image) ([]Guess, error) {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			inFlight--
			mu.Unlock()
			return fourGuesses("ok"), nil
		}}
	}

	results, err := c.AnalyzeFiles(context.Background(), paths, 2)
	require.NoError(t, err)
	require.Len(t, results, len(paths))
	assert.LessOrEqual(t, peak, 2)

	for _, r := range results[:6] {
		assert.NoError(t, r.Result.Err, r.Path)
		assert.Equal(t, "ok", r.Result.Guesses[0].Label)
	}
	last := results[6]
	assert.True(t, strings.HasSuffix(last.Path, "notes.txt"))
	assert.ErrorIs(t, last.Result.Err, ErrInvalidImageData)
	assert.Len(t, last.Result.Guesses, GuessCount)
}

func TestDiagnoseForeignError(t *testing.T) {
	guesses := Diagnose(ProviderOpenAI, errors.New("dial tcp: connection refused"))
	require.Len(t, guesses, GuessCount)
	assert.Contains(t, guesses[0].Label, "OpenAI")
	assert.Contains(t, guesses[3].Label, "connection refused")
}
