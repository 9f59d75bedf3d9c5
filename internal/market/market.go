// Package market proxies the third-party crypto price APIs. Upstream bodies
// are cached so the dashboards never hit the providers more than once a
// minute per query.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/cradoe/vestra/internal/cache"
	"github.com/go-resty/resty/v2"
)

const (
	DefaultListingsURL = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/listings/latest"
	DefaultCoinGecko   = "https://api.coingecko.com/api/v3"

	listingsKey   = "market:listings"
	listingsLimit = 10
)

var (
	ErrNotConfigured = errors.New("CoinMarketCap API key not configured")
	ErrRateLimited   = errors.New("API limit reached")
	ErrInvalidQuery  = errors.New("invalid market query")
)

var (
	coinRX     = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)
	currencyRX = regexp.MustCompile(`^[a-z]{3,5}$`)
)

type Options struct {
	ListingsURL      string
	CoinMarketCapKey string
	CoinGeckoBase    string
	CoinGeckoKey     string
	CacheTTL         time.Duration
	Timeout          time.Duration
}

type Client struct {
	http   *resty.Client
	store  cache.Store
	opts   Options
	logger *slog.Logger
}

func New(opts Options, store cache.Store, logger *slog.Logger) *Client {
	if opts.ListingsURL == "" {
		opts.ListingsURL = DefaultListingsURL
	}
	if opts.CoinGeckoBase == "" {
		opts.CoinGeckoBase = DefaultCoinGecko
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   client,
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// PriceQuery selects a CoinGecko market chart.
type PriceQuery struct {
	Coin     string
	Days     string
	Currency string
}

func (q *PriceQuery) normalize() error {
	if q.Coin == "" {
		q.Coin = "bitcoin"
	}
	if q.Days == "" {
		q.Days = "1"
	}
	if q.Currency == "" {
		q.Currency = "usd"
	}

	if !coinRX.MatchString(q.Coin) || !currencyRX.MatchString(q.Currency) {
		return ErrInvalidQuery
	}

	if q.Days != "max" {
		days, err := strconv.Atoi(q.Days)
		if err != nil || days < 1 || days > 365 {
			return ErrInvalidQuery
		}
	}

	return nil
}

func (q PriceQuery) cacheKey() string {
	return fmt.Sprintf("market:price:%s:%s:%s", q.Coin, q.Days, q.Currency)
}

// Listings returns the top coins by market cap.
func (c *Client) Listings(ctx context.Context) (json.RawMessage, error) {
	if body, ok := c.cached(ctx, listingsKey); ok {
		return body, nil
	}
	return c.RefreshListings(ctx)
}

// RefreshListings fetches the listings upstream and replaces the cached copy.
func (c *Client) RefreshListings(ctx context.Context) (json.RawMessage, error) {
	if c.opts.CoinMarketCapKey == "" {
		return nil, ErrNotConfigured
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-CMC_PRO_API_KEY", c.opts.CoinMarketCapKey).
		SetQueryParams(map[string]string{
			"limit":   strconv.Itoa(listingsLimit),
			"convert": "USD",
		}).
		Get(c.opts.ListingsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}

	if err := upstreamError(resp); err != nil {
		return nil, err
	}

	var payload struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	c.remember(ctx, listingsKey, payload.Data)
	return payload.Data, nil
}

// Price returns the market chart for q.
func (c *Client) Price(ctx context.Context, q PriceQuery) (json.RawMessage, error) {
	if err := q.normalize(); err != nil {
		return nil, err
	}

	key := q.cacheKey()
	if body, ok := c.cached(ctx, key); ok {
		return body, nil
	}

	req := c.http.R().
		SetContext(ctx).
		SetPathParam("coin", q.Coin).
		SetQueryParams(map[string]string{
			"vs_currency": q.Currency,
			"days":        q.Days,
		})
	if c.opts.CoinGeckoKey != "" {
		req.SetHeader("x-cg-demo-api-key", c.opts.CoinGeckoKey)
	}

	resp, err := req.Get(c.opts.CoinGeckoBase + "/coins/{coin}/market_chart")
	if err != nil {
		return nil, fmt.Errorf("fetch price: %w", err)
	}

	if err := upstreamError(resp); err != nil {
		return nil, err
	}

	body := json.RawMessage(resp.Body())
	if !json.Valid(body) {
		return nil, errors.New("decode price: upstream returned invalid JSON")
	}

	c.remember(ctx, key, body)
	return body, nil
}

func upstreamError(resp *resty.Response) error {
	switch {
	case resp.StatusCode() >= http.StatusBadRequest && resp.StatusCode() < http.StatusInternalServerError:
		return fmt.Errorf("%w: upstream status %d", ErrRateLimited, resp.StatusCode())
	case resp.IsError():
		return fmt.Errorf("upstream status %d", resp.StatusCode())
	}
	return nil
}

// a cache failure only costs an upstream call
func (c *Client) cached(ctx context.Context, key string) (json.RawMessage, bool) {
	value, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("market cache read failed", "key", key, "error", err.Error())
		}
		return nil, false
	}
	return json.RawMessage(value), true
}

func (c *Client) remember(ctx context.Context, key string, body json.RawMessage) {
	if err := c.store.Set(ctx, key, string(body), c.opts.CacheTTL); err != nil {
		c.logger.Warn("market cache write failed", "key", key, "error", err.Error())
	}
}
