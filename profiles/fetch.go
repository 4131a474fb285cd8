package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Fetcher retrieves a renewable-output profile from somewhere external - an
// irradiance API, a file, a cache. The engine only ever sees the interface;
// the fetch is run as a background task and joined before simulation begins.
type Fetcher interface {
	Fetch(ctx context.Context, years int) (Profile, error)
}

// HTTPFetcher pulls per-kWp solar output from an HTTP JSON API.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

type solarResponse struct {
	Values []float64 `json:"values"` // kWh per kWp, hourly
}

// NewHTTPFetcher constructs a fetcher against the given base URL.
func NewHTTPFetcher(client *http.Client, baseURL string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPFetcher{
		client:  client,
		baseURL: baseURL,
		logger:  slog.Default(),
	}
}

// Fetch downloads the solar profile covering the requested number of years.
func (f *HTTPFetcher) Fetch(ctx context.Context, years int) (Profile, error) {
	u, err := url.Parse(f.baseURL)
	if err != nil {
		return Profile{}, fmt.Errorf("parse solar api url: %w", err)
	}
	q := u.Query()
	q.Set("years", strconv.Itoa(years))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build solar api request: %w", err)
	}

	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("fetch solar profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("solar api returned status %d", resp.StatusCode)
	}

	var payload solarResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Profile{}, fmt.Errorf("decode solar api response: %w", err)
	}
	if len(payload.Values) < years*HoursPerYear {
		return Profile{}, fmt.Errorf("solar api returned %d hours, need %d", len(payload.Values), years*HoursPerYear)
	}

	f.logger.Info(
		"Fetched solar profile",
		"hours", len(payload.Values),
		"elapsed", time.Since(started),
	)
	return New(payload.Values), nil
}

// FileFetcher serves a solar profile from a local CSV file. Used when the
// profile has already been generated and cached on disk.
type FileFetcher struct {
	Path   string
	Column string
}

// Fetch loads the profile from disk and checks it covers the requested years.
func (f FileFetcher) Fetch(_ context.Context, years int) (Profile, error) {
	p, err := ReadCSVFile(f.Path, f.Column)
	if err != nil {
		return Profile{}, err
	}
	if p.Len() < years*HoursPerYear {
		return Profile{}, fmt.Errorf("solar profile %q has %d hours, need %d", f.Path, p.Len(), years*HoursPerYear)
	}
	return p, nil
}
