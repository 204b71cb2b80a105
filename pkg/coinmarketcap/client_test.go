package coinmarketcap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHTTPClient struct {
	mu       sync.Mutex
	requests []*http.Request
	do       func(req *http.Request) (*http.Response, error)
}

// Do records the request; chunked fetches call it concurrently.
func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.do(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

const successBody = `{
	"status": {"error_code": 0},
	"data": {
		"1": {
			"id": 1, "name": "Bitcoin", "symbol": "BTC",
			"quote": {"USD": {"price": 65000.5, "percent_change_24h": 2.1, "last_updated": "2026-08-01T11:59:30.000Z"}}
		},
		"1027": {
			"id": 1027, "name": "Ethereum", "symbol": "ETH",
			"quote": {"USD": {"price": 3200.0, "percent_change_24h": null}}
		},
		"52": {
			"id": 52, "name": "XRP", "symbol": "XRP",
			"quote": {}
		},
		"825": {
			"id": 825, "name": "Tether", "symbol": "",
			"quote": {"USD": {"price": 1.0}}
		}
	}
}`

func TestFetchQuotes_MapsEntriesAndSkipsMalformed(t *testing.T) {
	fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, successBody), nil
	}}
	client := New("secret-key", time.Second, WithHTTPClient(fake))

	res, err := client.FetchQuotes(context.Background(), []string{"1", "1027", "52", "825"})
	require.NoError(t, err)

	// XRP lacks a USD quote, Tether lacks a symbol.
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Quotes, 2)

	bySymbol := map[string]bool{}
	for _, q := range res.Quotes {
		bySymbol[q.Symbol] = true
	}
	assert.True(t, bySymbol["BTC"])
	assert.True(t, bySymbol["ETH"])

	for _, q := range res.Quotes {
		switch q.Symbol {
		case "BTC":
			assert.Equal(t, "1", q.ID)
			assert.Equal(t, 65000.5, q.PriceUSD)
			require.NotNil(t, q.Change24h)
			assert.Equal(t, 2.1, *q.Change24h)
		case "ETH":
			assert.Nil(t, q.Change24h)
		}
	}

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "secret-key", req.Header.Get("X-CMC_PRO_API_KEY"))
	assert.Equal(t, "/v1/cryptocurrency/quotes/latest", req.URL.Path)
	assert.Equal(t, "1,1027,52,825", req.URL.Query().Get("id"))
}

func TestFetchQuotes_UnknownIDsAreAbsentNotErrors(t *testing.T) {
	fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":{"error_code":0},"data":{}}`), nil
	}}
	client := New("k", time.Second, WithHTTPClient(fake))

	res, err := client.FetchQuotes(context.Background(), []string{"999999"})
	require.NoError(t, err)
	assert.Empty(t, res.Quotes)
	assert.Zero(t, res.Skipped)
}

func TestFetchQuotes_Non2xxIsUpstreamUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusBadGateway} {
		fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(status, `{}`), nil
		}}
		client := New("k", time.Second, WithHTTPClient(fake))

		_, err := client.FetchQuotes(context.Background(), []string{"1"})
		assert.ErrorIs(t, err, ErrUpstreamUnavailable, "status %d", status)
	}
}

func TestFetchQuotes_TransportErrorIsUpstreamUnavailable(t *testing.T) {
	fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	client := New("k", time.Second, WithHTTPClient(fake))

	_, err := client.FetchQuotes(context.Background(), []string{"1"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchQuotes_ProviderErrorEnvelope(t *testing.T) {
	fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"status":{"error_code":1001,"error_message":"API key invalid"},"data":{}}`), nil
	}}
	client := New("k", time.Second, WithHTTPClient(fake))

	_, err := client.FetchQuotes(context.Background(), []string{"1"})
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "API key invalid")
}

func TestFetchQuotes_UndecodableBodyIsMalformed(t *testing.T) {
	fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `<html>gateway error</html>`), nil
	}}
	client := New("k", time.Second, WithHTTPClient(fake))

	_, err := client.FetchQuotes(context.Background(), []string{"1"})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFetchQuotes_EmptyIDSet(t *testing.T) {
	client := New("k", time.Second, WithHTTPClient(&fakeHTTPClient{}))
	_, err := client.FetchQuotes(context.Background(), nil)
	assert.Error(t, err)
}

func TestFetchQuotes_ChunksLargeIDSets(t *testing.T) {
	fake := &fakeHTTPClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"status":{"error_code":0},"data":{}}`), nil
	}}
	client := New("k", time.Second, WithHTTPClient(fake))

	ids := make([]string, 250)
	for i := range ids {
		ids[i] = "1"
	}
	_, err := client.FetchQuotes(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, fake.requests, 3)
}

func TestChunkIDs(t *testing.T) {
	cases := []struct {
		name  string
		n     int
		size  int
		want  []int
	}{
		{name: "under one chunk", n: 3, size: 100, want: []int{3}},
		{name: "exact boundary", n: 100, size: 100, want: []int{100}},
		{name: "two chunks", n: 101, size: 100, want: []int{100, 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ids := make([]string, c.n)
			chunks := chunkIDs(ids, c.size)
			require.Len(t, chunks, len(c.want))
			for i, chunk := range chunks {
				assert.Len(t, chunk, c.want[i])
			}
		})
	}
}
