package geo

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"digibox/internal/logging"
	"digibox/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store keys for provider settings. All are unversioned plain strings.
const (
	KeyProvider      = "digibox_ai_provider"
	KeyOpenAIKey     = "digibox_openai_key"
	KeyOpenAIBaseURL = "digibox_openai_base_url"
	KeyOpenAIModel   = "digibox_openai_model"
)

// Options configures a Client.
type Options struct {
	// Force pins the provider for this run without persisting it.
	Force   Selection
	Gemini  GeminiConfig
	OpenAI  OpenAISettings // defaults when nothing is stored
	Timeout time.Duration
}

// Result is the outcome of one Analyze call. Guesses always has
// GuessCount entries; on failure they are diagnostics with Error set.
type Result struct {
	Seq       uint64
	RequestID string
	Provider  Selection
	Guesses   []Guess
	Err       error
}

// Client routes analyses to the selected provider and tracks which
// request is the latest.
type Client struct {
	mu         sync.Mutex
	kv         *store.KV
	selection  Selection
	explicit   bool // selection was chosen by the user and persisted
	openai     OpenAISettings
	gemini     GeminiConfig
	httpClient *http.Client

	seq    uint64
	cancel context.CancelFunc

	geminiProvider *GeminiProvider

	// newProvider is swapped out in tests.
	newProvider func(Selection) Provider
}

// NewClient loads the provider selection and OpenAI settings from kv.
func NewClient(kv *store.KV, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		kv:         kv,
		selection:  ProviderGemini,
		gemini:     opts.Gemini,
		httpClient: &http.Client{Timeout: timeout},
	}
	if sel := Selection(store.LoadString(kv, KeyProvider, "")); sel.Valid() {
		c.selection = sel
		c.explicit = true
	}
	if opts.Force.Valid() {
		c.selection = opts.Force
		c.explicit = true
	}
	c.openai = OpenAISettings{
		APIKey:  store.LoadString(kv, KeyOpenAIKey, opts.OpenAI.APIKey),
		BaseURL: store.LoadString(kv, KeyOpenAIBaseURL, opts.OpenAI.BaseURL),
		Model:   store.LoadString(kv, KeyOpenAIModel, opts.OpenAI.Model),
	}.withDefaults()
	c.newProvider = c.defaultProvider
	logging.Geo("Client ready: provider=%s explicit=%v", c.selection, c.explicit)
	return c
}

func (c *Client) defaultProvider(sel Selection) Provider {
	if sel == ProviderOpenAI {
		return NewOpenAIProvider(c.openai, c.httpClient)
	}
	if c.geminiProvider == nil {
		c.geminiProvider = NewGeminiProvider(c.gemini, c.httpClient)
	}
	return c.geminiProvider
}

// Selection returns the active provider.
func (c *Client) Selection() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection
}

// Explicit reports whether the user picked the provider.
func (c *Client) Explicit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.explicit
}

// SetSelection switches provider and persists the choice.
func (c *Client) SetSelection(sel Selection) {
	if !sel.Valid() {
		return
	}
	c.mu.Lock()
	c.selection = sel
	c.explicit = true
	c.mu.Unlock()
	_ = store.SaveString(c.kv, KeyProvider, string(sel))
	logging.Geo("Provider set to %s", sel)
	logging.Audit(logging.CategoryGeo).ProviderSelect(string(sel), true)
}

// Toggle flips to the other provider and returns it.
func (c *Client) Toggle() Selection {
	next := c.Selection().Other()
	c.SetSelection(next)
	return next
}

// ApplyDetected adopts an auto-detected provider unless the user already
// chose one. The detected value is not persisted.
func (c *Client) ApplyDetected(sel Selection) bool {
	if !sel.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.explicit {
		logging.GeoDebug("Ignoring detected provider %s, user chose %s", sel, c.selection)
		return false
	}
	c.selection = sel
	logging.Audit(logging.CategoryGeo).ProviderSelect(string(sel), false)
	return true
}

// OpenAISettings returns the current OpenAI-compatible settings.
func (c *Client) OpenAISettings() OpenAISettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openai
}

// SetOpenAISettings stores new settings. Empty fields fall back to defaults
// and are removed from the store.
func (c *Client) SetOpenAISettings(s OpenAISettings) {
	raw := OpenAISettings{APIKey: s.APIKey, BaseURL: s.BaseURL, Model: s.Model}
	eff := s.withDefaults()
	c.mu.Lock()
	c.openai = eff
	c.mu.Unlock()
	_ = store.SaveString(c.kv, KeyOpenAIKey, raw.APIKey)
	_ = store.SaveString(c.kv, KeyOpenAIBaseURL, raw.BaseURL)
	_ = store.SaveString(c.kv, KeyOpenAIModel, raw.Model)
	logging.Geo("OpenAI settings updated (key set: %v)", raw.APIKey != "")
	logging.Audit(logging.CategoryGeo).Log(logging.AuditEvent{
		EventType: logging.AuditSettingsSave,
		Target:    "openai",
		Success:   true,
		Fields:    map[string]interface{}{"key_set": raw.APIKey != "", "base_url": eff.BaseURL, "model": eff.Model},
		Message:   "OpenAI settings saved",
	})
}

// Analyze runs one inference. Starting a new analysis cancels the previous
// one; use Accept to discard results that are no longer the latest.
func (c *Client) Analyze(ctx context.Context, dataURI string) Result {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	sel := c.selection
	provider := c.newProvider(sel)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.seq == seq {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	res := c.run(ctx, provider, dataURI)
	res.Seq = seq
	return res
}

func (c *Client) run(ctx context.Context, provider Provider, dataURI string) Result {
	sel := provider.Name()
	res := Result{RequestID: uuid.NewString(), Provider: sel}
	reqLog := logging.WithRequestID(logging.CategoryGeo, res.RequestID)
	audit := logging.AuditWithRequest(logging.CategoryGeo, res.RequestID)
	audit.Log(logging.AuditEvent{EventType: logging.AuditGeoRequest, Target: string(sel), Success: true, Message: "Inference started"})
	timer := logging.StartTimer(logging.CategoryGeo, "analyze "+string(sel))

	guesses, err := func() ([]Guess, error) {
		img, err := ParseDataURI(dataURI)
		if err != nil {
			return nil, err
		}
		guesses, err := provider.Locate(ctx, img)
		if err != nil {
			return nil, err
		}
		return guesses, Validate(guesses)
	}()
	if err != nil {
		err = withProvider(asGeoError(err, sel), sel)
		reqLog.Warn("analysis failed: %v", err)
		audit.GeoCall(string(sel), timer.Stop().Milliseconds(), err.Error())
		res.Err = err
		res.Guesses = Diagnose(sel, err)
		return res
	}
	reqLog.Info("analysis succeeded: top=%q", guesses[0].Label)
	audit.GeoCall(string(sel), timer.Stop().Milliseconds(), "")
	res.Guesses = guesses
	return res
}

func asGeoError(err error, sel Selection) error {
	var ge *Error
	if errors.As(err, &ge) {
		return err
	}
	return &Error{Kind: ProviderError, Provider: sel, Err: err}
}

// Accept reports whether r is the result of the latest Analyze call.
func (c *Client) Accept(r Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.Seq != 0 && r.Seq == c.seq
}

// Reset cancels any in-flight analysis and marks its result stale.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// FileResult pairs an input path with its analysis.
type FileResult struct {
	Path   string
	Result Result
}

// AnalyzeFiles analyzes several image files with at most limit in flight.
// Per-file failures are reported in each Result; these runs do not take
// part in the latest-request tracking of Analyze.
func (c *Client) AnalyzeFiles(ctx context.Context, paths []string, limit int) ([]FileResult, error) {
	if limit <= 0 {
		limit = 4
	}
	c.mu.Lock()
	provider := c.newProvider(c.selection)
	c.mu.Unlock()

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			uri, err := LoadImageFile(path)
			if err != nil {
				sel := provider.Name()
				var ge *Error
				if !errors.As(err, &ge) {
					err = &Error{Kind: InvalidImageData, Err: err}
				}
				err = withProvider(err, sel)
				results[i] = FileResult{Path: path, Result: Result{Provider: sel, Err: err, Guesses: Diagnose(sel, err)}}
				return nil
			}
			results[i] = FileResult{Path: path, Result: c.run(gctx, provider, uri)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
