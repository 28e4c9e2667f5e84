package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDataAPI  = "https://data-api.polymarket.com"
	defaultGammaAPI = "https://gamma-api.polymarket.com"

	// Hard pagination cap per user. A trader hitting this cap is treated
	// as truncated data by the scoring engine.
	MaxRecordsPerUser = 10000

	tradePageSize          = 500
	closedPositionPageSize = 50

	maxRetries429 = 3
)

// ErrRateLimited is returned after the 429 retry budget is exhausted.
var ErrRateLimited = errors.New("api: rate limit retries exhausted")

// Client is a rate-limited HTTP client for the Polymarket data and gamma
// APIs. A single instance should be shared by all callers hitting the same
// provider: the semaphore and pacing timer are the cross-worker rate
// controls.
type Client struct {
	dataURL    string
	gammaURL   string
	httpClient *http.Client

	// sem caps in-flight requests; pace serializes the inter-request gap.
	sem         chan struct{}
	pace        chan struct{}
	minInterval time.Duration
	lastRequest time.Time

	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOptions tune rate limiting. Zero values fall back to defaults.
type ClientOptions struct {
	DataURL        string
	GammaURL       string
	MaxConcurrent  int
	MinInterval    time.Duration
	RequestTimeout time.Duration
}

// NewClient builds a data API client with the given rate limits.
func NewClient(opts ClientOptions) *Client {
	if opts.DataURL == "" {
		opts.DataURL = defaultDataAPI
	}
	if opts.GammaURL == "" {
		opts.GammaURL = defaultGammaAPI
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = 400 * time.Millisecond
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	c := &Client{
		dataURL:  strings.TrimRight(opts.DataURL, "/"),
		gammaURL: strings.TrimRight(opts.GammaURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.RequestTimeout,
		},
		sem:         make(chan struct{}, opts.MaxConcurrent),
		pace:        make(chan struct{}, 1),
		minInterval: opts.MinInterval,
		sleep:       sleepCtx,
	}
	c.pace <- struct{}{}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// get performs a paced GET and decodes the JSON body into out. On 429 it
// honors Retry-After (default 5s) and retries up to maxRetries429 times.
func (c *Client) get(ctx context.Context, rawURL string, params url.Values, out interface{}) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	for attempt := 0; ; attempt++ {
		if err := c.waitTurn(ctx); err != nil {
			return err
		}

		retryAfter, err := c.doOnce(ctx, rawURL, params, out)
		if err == nil {
			return nil
		}
		if retryAfter <= 0 {
			return err
		}
		if attempt >= maxRetries429 {
			return fmt.Errorf("%w: %s", ErrRateLimited, rawURL)
		}
		log.Printf("[data-api] 429 from %s, waiting %s (attempt %d/%d)", rawURL, retryAfter, attempt+1, maxRetries429)
		if err := c.sleep(ctx, retryAfter); err != nil {
			return err
		}
	}
}

// waitTurn enforces the minimum inter-request interval across all callers.
func (c *Client) waitTurn(ctx context.Context) error {
	select {
	case <-c.pace:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { c.pace <- struct{}{} }()

	if elapsed := time.Since(c.lastRequest); elapsed < c.minInterval {
		if err := c.sleep(ctx, c.minInterval-elapsed); err != nil {
			return err
		}
	}
	c.lastRequest = time.Now()
	return nil
}

// doOnce issues a single request. A positive retryAfter signals a 429.
func (c *Client) doOnce(ctx context.Context, rawURL string, params url.Values, out interface{}) (time.Duration, error) {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("api: get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("api: 429 from %s", rawURL)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("api: get %s: status %d %s", rawURL, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("api: decode %s: %w", rawURL, err)
	}
	return 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || secs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

// GetTrades fetches one page of trade history for a user.
func (c *Client) GetTrades(ctx context.Context, address string, limit, offset int) ([]DataTrade, error) {
	params := url.Values{}
	params.Set("user", address)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var trades []DataTrade
	if err := c.get(ctx, c.dataURL+"/trades", params, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// GetAllTrades paginates through a user's trade history. Pagination stops
// on a short or empty page, or at MaxRecordsPerUser.
func (c *Client) GetAllTrades(ctx context.Context, address string) ([]DataTrade, error) {
	var all []DataTrade
	for offset := 0; offset < MaxRecordsPerUser; offset += tradePageSize {
		batch, err := c.GetTrades(ctx, address, tradePageSize, offset)
		if err != nil {
			return all, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < tradePageSize {
			break
		}
	}
	return all, nil
}

// GetPositions fetches a user's current open positions, largest P&L first.
func (c *Client) GetPositions(ctx context.Context, address string, limit int) ([]OpenPosition, error) {
	params := url.Values{}
	params.Set("user", address)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sortBy", "CASHPNL")
	params.Set("sortDirection", "DESC")

	var positions []OpenPosition
	if err := c.get(ctx, c.dataURL+"/positions", params, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetClosedPositions fetches one page of resolved positions. The endpoint
// is queried without a sort bias so wins and losses both come back.
func (c *Client) GetClosedPositions(ctx context.Context, address string, limit, offset int) ([]ClosedPosition, error) {
	params := url.Values{}
	params.Set("user", address)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var positions []ClosedPosition
	if err := c.get(ctx, c.dataURL+"/closed-positions", params, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// GetAllClosedPositions paginates through a user's resolved positions.
func (c *Client) GetAllClosedPositions(ctx context.Context, address string) ([]ClosedPosition, error) {
	var all []ClosedPosition
	for offset := 0; offset < MaxRecordsPerUser; offset += closedPositionPageSize {
		batch, err := c.GetClosedPositions(ctx, address, closedPositionPageSize, offset)
		if err != nil {
			return all, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < closedPositionPageSize {
			break
		}
	}
	return all, nil
}

// GetPortfolioValue returns a user's total portfolio value in USDC.
func (c *Client) GetPortfolioValue(ctx context.Context, address string) (float64, error) {
	params := url.Values{}
	params.Set("user", address)

	var values []PortfolioValue
	if err := c.get(ctx, c.dataURL+"/value", params, &values); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0].Value.Float64(), nil
}

// GetLeaderboard fetches a page of the ranked trader leaderboard.
func (c *Client) GetLeaderboard(ctx context.Context, category LeaderboardCategory, period TimePeriod, orderBy string, limit int) ([]LeaderboardEntry, error) {
	params := url.Values{}
	params.Set("category", string(category))
	params.Set("timePeriod", string(period))
	params.Set("orderBy", orderBy)
	params.Set("limit", strconv.Itoa(limit))

	var entries []LeaderboardEntry
	if err := c.get(ctx, c.dataURL+"/v1/leaderboard", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetTopMarkets fetches active markets from the gamma API sorted by
// volume descending.
func (c *Client) GetTopMarkets(ctx context.Context, limit int) ([]GammaMarket, error) {
	fetchLimit := limit
	if fetchLimit > 500 {
		fetchLimit = 500 // API max
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(fetchLimit))
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volumeNum")
	params.Set("ascending", "false")

	var markets []GammaMarket
	if err := c.get(ctx, c.gammaURL+"/markets", params, &markets); err != nil {
		return nil, err
	}
	if len(markets) > limit {
		markets = markets[:limit]
	}
	return markets, nil
}

// GetMarketTopTraders returns the top traders by P&L within one market.
func (c *Client) GetMarketTopTraders(ctx context.Context, marketID string, limit int) ([]MarketHolder, error) {
	params := url.Values{}
	params.Set("market", marketID)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("orderBy", "pnl")
	params.Set("order", "DESC")

	var holders []MarketHolder
	if err := c.get(ctx, c.dataURL+"/traders", params, &holders); err != nil {
		return nil, err
	}
	return holders, nil
}
