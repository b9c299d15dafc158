// Package region guesses where the user is so the inference provider that
// is reachable from there can be preselected.
package region

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"digibox/internal/config"
	"digibox/internal/geo"
	"digibox/internal/logging"
)

// Source says how a Result was obtained.
type Source string

const (
	SourceLookup   Source = "lookup"
	SourceTimeZone Source = "timezone"
	SourceDefault  Source = "default"
)

// Result is the outcome of one detection.
type Result struct {
	Country   string
	Zone      string
	Selection geo.Selection
	Estimated bool
	Source    Source
	Err       error // lookup failure that triggered the fallback
}

// Detector runs the one-shot lookup.
type Detector struct {
	LookupURL  string
	Country    string
	Zones      []string
	HTTPClient *http.Client

	// ZoneSource returns the local time zone name.
	ZoneSource func() string
}

// NewDetector builds a detector from config.
func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		LookupURL:  cfg.Region.LookupURL,
		Country:    cfg.Region.Country,
		Zones:      cfg.Region.TimeZones,
		HTTPClient: &http.Client{Timeout: cfg.GetRegionTimeout()},
		ZoneSource: LocalZone,
	}
}

type lookupResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// Detect looks up the country, falling back to the local time zone when the
// lookup fails. It never returns an error; Result.Err records why the
// fallback ran.
func (d *Detector) Detect(ctx context.Context) Result {
	timer := logging.StartTimer(logging.CategoryRegion, "detect")
	defer timer.Stop()

	country, err := d.lookup(ctx)
	if err == nil {
		res := Result{Country: country, Selection: geo.ProviderGemini, Source: SourceLookup}
		if strings.EqualFold(country, d.Country) {
			res.Selection = geo.ProviderOpenAI
		}
		logging.Region("Lookup: country=%s provider=%s", country, res.Selection)
		return res
	}

	logging.Region("Lookup failed, checking time zone: %v", err)
	zone := ""
	if d.ZoneSource != nil {
		zone = d.ZoneSource()
	}
	for _, z := range d.Zones {
		if zone == z {
			logging.Region("Time zone %s matches, estimating provider %s", zone, geo.ProviderOpenAI)
			return Result{Zone: zone, Selection: geo.ProviderOpenAI, Estimated: true, Source: SourceTimeZone, Err: err}
		}
	}
	return Result{Zone: zone, Selection: geo.ProviderGemini, Source: SourceDefault, Err: err}
}

func (d *Detector) lookup(ctx context.Context) (string, error) {
	if d.LookupURL == "" {
		return "", fmt.Errorf("no lookup URL configured")
	}
	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.LookupURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("lookup returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if out.Error {
		return "", fmt.Errorf("lookup error: %s", out.Reason)
	}
	code := strings.ToUpper(strings.TrimSpace(out.CountryCode))
	if code == "" {
		return "", fmt.Errorf("lookup response has no country_code")
	}
	return code, nil
}

// LocalZone returns the IANA name of the local time zone: $TZ, then
// /etc/timezone, then the /etc/localtime symlink target.
func LocalZone() string {
	return localZone(os.Getenv("TZ"), "/etc/timezone", "/etc/localtime")
}

func localZone(tz, timezoneFile, localtime string) string {
	if tz = strings.TrimPrefix(strings.TrimSpace(tz), ":"); tz != "" {
		return tz
	}
	if data, err := os.ReadFile(timezoneFile); err == nil {
		if z := strings.TrimSpace(string(data)); z != "" {
			return z
		}
	}
	if target, err := os.Readlink(localtime); err == nil {
		target = filepath.ToSlash(target)
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			return target[i+len("zoneinfo/"):]
		}
	}
	return ""
}
