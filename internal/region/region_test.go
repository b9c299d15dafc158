package region

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"digibox/internal/config"
	"digibox/internal/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detector(url, zone string) *Detector {
	d := NewDetector(config.DefaultConfig())
	d.LookupURL = url
	d.ZoneSource = func() string { return zone }
	return d
}

func lookupServer(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestLookupSelectsProvider(t *testing.T) {
	cases := []struct {
		country string
		want    geo.Selection
	}{
		{"CN", geo.ProviderOpenAI},
		{"cn", geo.ProviderOpenAI},
		{"US", geo.ProviderGemini},
		{"JP", geo.ProviderGemini},
	}
	for _, tc := range cases {
		t.Run(tc.country, func(t *testing.T) {
			url := lookupServer(t, http.StatusOK, fmt.Sprintf(`{"ip":"1.2.3.4","country_code":%q}`, tc.country))
			// The zone must not matter when the lookup succeeds.
			res := detector(url, "Asia/Shanghai").Detect(context.Background())
			assert.Equal(t, tc.want, res.Selection)
			assert.False(t, res.Estimated)
			assert.Equal(t, SourceLookup, res.Source)
			assert.NoError(t, res.Err)
		})
	}
}

func TestFallbackToTimeZone(t *testing.T) {
	failing := lookupServer(t, http.StatusTooManyRequests, "rate limited")

	for _, zone := range []string{"Asia/Shanghai", "Asia/Chongqing"} {
		res := detector(failing, zone).Detect(context.Background())
		assert.Equal(t, geo.ProviderOpenAI, res.Selection, zone)
		assert.True(t, res.Estimated)
		assert.Equal(t, SourceTimeZone, res.Source)
		assert.Error(t, res.Err)
	}

	res := detector(failing, "Europe/Berlin").Detect(context.Background())
	assert.Equal(t, geo.ProviderGemini, res.Selection)
	assert.False(t, res.Estimated)
	assert.Equal(t, SourceDefault, res.Source)
}

func TestMalformedLookupFallsBack(t *testing.T) {
	for name, body := range map[string]string{
		"not json":     "<html>",
		"no country":   `{"ip":"1.2.3.4"}`,
		"error reply":  `{"error":true,"reason":"RateLimited"}`,
		"empty object": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			url := lookupServer(t, http.StatusOK, body)
			res := detector(url, "Asia/Shanghai").Detect(context.Background())
			assert.Equal(t, SourceTimeZone, res.Source)
			assert.True(t, res.Estimated)
		})
	}
}

func TestUnreachableLookup(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := detector(url, "").Detect(context.Background())
	assert.Equal(t, geo.ProviderGemini, res.Selection)
	assert.Error(t, res.Err)
}

func TestLocalZone(t *testing.T) {
	dir := t.TempDir()
	tzFile := filepath.Join(dir, "timezone")
	link := filepath.Join(dir, "localtime")

	assert.Equal(t, "Asia/Chongqing", localZone(":Asia/Chongqing", tzFile, link))

	require.NoError(t, os.WriteFile(tzFile, []byte("Asia/Shanghai\n"), 0o644))
	assert.Equal(t, "Asia/Shanghai", localZone("", tzFile, link))

	require.NoError(t, os.Remove(tzFile))
	require.NoError(t, os.Symlink("/usr/share/zoneinfo/Europe/Paris", link))
	assert.Equal(t, "Europe/Paris", localZone("", tzFile, link))

	assert.Equal(t, "", localZone("", tzFile, filepath.Join(dir, "none")))
}
