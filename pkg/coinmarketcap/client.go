// Package coinmarketcap fetches batched quotes from the CoinMarketCap
// v1 API and maps them into raw quote entries for the pipeline.
package coinmarketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptotrack/pkg/metrics"
	"cryptotrack/pkg/models"
)

var (
	// ErrUpstreamUnavailable covers network failures, timeouts and
	// non-2xx responses from the provider. Never retried here.
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")

	// ErrMalformedPayload means the response body itself could not be
	// decoded. Per-entry field problems are skipped and counted instead.
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// The provider accepts up to 100 IDs per quotes/latest call.
const maxIDsPerRequest = 100

// HTTPClient describes the HTTP client used for upstream calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a CoinMarketCap API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Client authenticating with the given API key.
func New(apiKey string, timeout time.Duration, options ...Option) *Client {
	c := &Client{
		baseURL: "https://pro-api.coinmarketcap.com",
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// FetchResult carries the mapped entries of one fetch plus the number
// of provider entries skipped because required fields were missing.
type FetchResult struct {
	Quotes  []models.RawQuote
	Skipped int
}

// Provider payload subset. Everything the pipeline does not depend on
// is left undeclared.
type envelope struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data map[string]entry `json:"data"`
}

type entry struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Symbol string      `json:"symbol"`
	Quote  map[string]struct {
		Price            *float64 `json:"price"`
		PercentChange24h *float64 `json:"percent_change_24h"`
		LastUpdated      string   `json:"last_updated"`
	} `json:"quote"`
}

// FetchQuotes issues batched quotes/latest requests for the given asset
// IDs and maps each provider entry to a RawQuote. IDs unknown to the
// provider are simply absent from the result. Large ID sets are split
// into provider-sized chunks fetched concurrently and merged.
func (c *Client) FetchQuotes(ctx context.Context, assetIDs []string) (FetchResult, error) {
	if len(assetIDs) == 0 {
		return FetchResult{}, fmt.Errorf("no asset IDs requested")
	}

	start := time.Now()
	metrics.FetchCounter.Inc()

	var (
		mu     sync.Mutex
		merged FetchResult
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, chunk := range chunkIDs(assetIDs, maxIDsPerRequest) {
		chunk := chunk
		g.Go(func() error {
			res, err := c.fetchChunk(ctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			merged.Quotes = append(merged.Quotes, res.Quotes...)
			merged.Skipped += res.Skipped
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.FetchErrors.Inc()
		return FetchResult{}, err
	}

	metrics.FetchLatency.Observe(time.Since(start).Seconds())
	if merged.Skipped > 0 {
		metrics.FetchSkippedEntries.Add(float64(merged.Skipped))
	}
	return merged, nil
}

func (c *Client) fetchChunk(ctx context.Context, ids []string) (FetchResult, error) {
	query := url.Values{}
	query.Set("id", strings.Join(ids, ","))
	query.Set("convert", "USD")

	endpoint := fmt.Sprintf("%s/v1/cryptocurrency/quotes/latest?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return FetchResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("quotes/latest: %v: %w", err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FetchResult{}, fmt.Errorf("quotes/latest: status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return FetchResult{}, fmt.Errorf("decoding quotes/latest: %v: %w", err, ErrMalformedPayload)
	}
	if env.Status.ErrorCode != 0 {
		return FetchResult{}, fmt.Errorf("quotes/latest: provider error %d: %s: %w",
			env.Status.ErrorCode, env.Status.ErrorMessage, ErrUpstreamUnavailable)
	}

	var res FetchResult
	for _, e := range env.Data {
		raw, ok := mapEntry(e)
		if !ok {
			res.Skipped++
			continue
		}
		res.Quotes = append(res.Quotes, raw)
	}
	return res, nil
}

// mapEntry extracts the fields the pipeline depends on. An entry with
// no symbol or no USD price is reported as not mappable.
func mapEntry(e entry) (models.RawQuote, bool) {
	if e.Symbol == "" {
		return models.RawQuote{}, false
	}
	usd, ok := e.Quote["USD"]
	if !ok || usd.Price == nil {
		return models.RawQuote{}, false
	}

	raw := models.RawQuote{
		ID:          e.ID.String(),
		Name:        e.Name,
		Symbol:      e.Symbol,
		PriceUSD:    *usd.Price,
		LastUpdated: usd.LastUpdated,
	}
	if usd.PercentChange24h != nil {
		change := *usd.PercentChange24h
		raw.Change24h = &change
	}
	return raw, true
}

// chunkIDs splits ids into slices of at most size elements.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}
