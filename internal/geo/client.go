// Package geo geocodes label transcripts with the GeoNames search API.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/labelsort/internal/cache"
	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/util"
	"github.com/ppiankov/labelsort/internal/worker"
)

const maxResponseBytes = 1 << 20

// Place is a gazetteer entry resolved from label text.
type Place struct {
	GeonameID    int     `json:"geoname_id"`
	Name         string  `json:"name"`
	CountryCode  string  `json:"country_code,omitempty"`
	CountryName  string  `json:"country_name,omitempty"`
	FeatureClass string  `json:"feature_class"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Query        string  `json:"query"` // n-gram that produced the hit
}

// Address renders the place for display and for field comparison.
func (p Place) Address() string {
	if p.CountryName == "" || p.CountryName == p.Name {
		return p.Name
	}
	return p.Name + ", " + p.CountryName
}

// IsCountry reports whether the place is the country itself.
func (p Place) IsCountry() bool {
	return p.CountryName != "" && p.Name == p.CountryName
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	Username          string
	RequestsPerSecond float64
	Burst             int
	MaxNGram          int
	Timeout           time.Duration
	HTTPProxy         string
	HTTPSProxy        string
	NoProxy           string
	CacheTTL          time.Duration
	Coordinates       bool // Read written coordinates before querying
}

// OptionsFromConfig extracts the gazetteer options of a run.
func OptionsFromConfig(cfg *model.Config) Options {
	return Options{
		BaseURL:           cfg.Geo.BaseURL,
		Username:          cfg.Geo.Username,
		RequestsPerSecond: cfg.Geo.RequestsPerSecond,
		Burst:             cfg.Geo.Burst,
		MaxNGram:          cfg.Geo.MaxNGram,
		Timeout:           cfg.Geo.Timeout,
		HTTPProxy:         cfg.Geo.HTTPProxy,
		HTTPSProxy:        cfg.Geo.HTTPSProxy,
		NoProxy:           cfg.Geo.NoProxy,
		CacheTTL:          cfg.Similarity.CacheTTL,
		Coordinates:       cfg.Enrich.Coordinates,
	}
}

// Client queries GeoNames. Requests are rate limited per host and answers
// are cached per query, including empty answers.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *worker.Limiter
	cache      cache.Cache[[]geoname]
}

// NewClient creates a GeoNames client.
func NewClient(opts Options) (*Client, error) {
	if opts.Username == "" {
		return nil, model.ConfigErrorf("geonames username is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "http://api.geonames.org"
	}
	if opts.MaxNGram <= 0 {
		opts.MaxNGram = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &http.Transport{Proxy: util.NewProxyFunc(opts.HTTPProxy, opts.HTTPSProxy, opts.NoProxy)},
		},
		limiter: worker.NewLimiter(opts.RequestsPerSecond, opts.Burst),
		cache:   cache.NewMemoryCache[[]geoname](opts.CacheTTL, 10*time.Minute),
	}, nil
}

type geoname struct {
	GeonameID   int    `json:"geonameId"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
	CountryName string `json:"countryName"`
	FCL         string `json:"fcl"`
	Lat         string `json:"lat"`
	Lng         string `json:"lng"`
}

type searchResponse struct {
	Geonames []geoname `json:"geonames"`
	Status   *struct {
		Message string `json:"message"`
		Value   int    `json:"value"`
	} `json:"status"`
}

// Search returns the first GeoNames hit for query.
func (c *Client) Search(ctx context.Context, query string) (*Place, error) {
	hits, err := c.search(ctx, query)
	if err != nil || len(hits) == 0 {
		return nil, err
	}
	p := hits[0].place(query)
	return &p, nil
}

func (c *Client) search(ctx context.Context, query string) ([]geoname, error) {
	key := cache.Key("geonames", query)
	if hits, ok := c.cache.Get(key); ok {
		return hits, nil
	}

	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/searchJSON"
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxRows", "1")
	params.Set("username", c.opts.Username)
	rawURL := endpoint + "?" + params.Encode()

	if err := c.limiter.Wait(ctx, rawURL); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geonames: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geonames: unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode geonames response: %w", err)
	}
	if parsed.Status != nil {
		return nil, fmt.Errorf("geonames error %d: %s", parsed.Status.Value, parsed.Status.Message)
	}

	_ = c.cache.Set(key, parsed.Geonames, 0)
	return parsed.Geonames, nil
}

func (g geoname) place(query string) Place {
	p := Place{
		GeonameID:    g.GeonameID,
		Name:         g.Name,
		CountryCode:  g.CountryCode,
		CountryName:  g.CountryName,
		FeatureClass: g.FCL,
		Query:        query,
	}
	p.Lat, _ = strconv.ParseFloat(g.Lat, 64)
	p.Lng, _ = strconv.ParseFloat(g.Lng, 64)
	return p
}
