package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"torn-alert-watcher/internal/catalog"
)

// Selections requested from the game API per data group.
var groupSelections = map[string]string{
	catalog.GroupBars:      "bars",
	catalog.GroupCooldowns: "cooldowns",
	catalog.GroupTravel:    "travel",
	catalog.GroupMoney:     "money",
	catalog.GroupStatus:    "basic,messages",
}

const travelSelections = "travel,profile"

// Options parameterise the HTTP client.
type Options struct {
	BaseURL           string
	StockFeedURL      string
	Timeout           time.Duration
	RequestsPerMinute int
	UserAgent         string
}

// Client fetches game state over the public JSON API. A shared token-bucket
// limiter keeps the process under the API's per-key request cap.
type Client struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient constructs an API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.torn.com"
	}
	opts.StockFeedURL = strings.TrimRight(opts.StockFeedURL, "/")

	return &Client{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		logger:  logger.With().Str("component", "fetcher").Logger(),
	}
}

// Fetch retrieves the raw state document for one data group.
func (c *Client) Fetch(ctx context.Context, credential, group string) (catalog.Payload, error) {
	selections, ok := groupSelections[group]
	if !ok {
		return nil, fmt.Errorf("unknown data group %q", group)
	}

	body, err := c.get(ctx, c.userURL(credential, selections))
	if err != nil {
		return nil, err
	}

	var payload catalog.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", group, err)
	}
	if apiErr := extractAPIError(payload); apiErr != nil {
		return nil, apiErr
	}
	return payload, nil
}

// TravelStatus reports the subject's location and itinerary.
func (c *Client) TravelStatus(ctx context.Context, credential string) (TravelStatus, error) {
	body, err := c.get(ctx, c.userURL(credential, travelSelections))
	if err != nil {
		return TravelStatus{}, err
	}

	var payload catalog.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return TravelStatus{}, fmt.Errorf("decode travel payload: %w", err)
	}
	if apiErr := extractAPIError(payload); apiErr != nil {
		return TravelStatus{}, apiErr
	}

	return TravelStatus{
		Location:    payload.Str("profile.location"),
		Destination: payload.Str("travel.destination"),
		TimeLeft:    int64(payload.Num("travel.time_left")),
	}, nil
}

// StockSnapshot queries the live foreign-stock feed for one country.
func (c *Client) StockSnapshot(ctx context.Context, country string) ([]StockItem, error) {
	if c.opts.StockFeedURL == "" {
		return nil, fmt.Errorf("stock feed url not configured")
	}

	endpoint := fmt.Sprintf("%s/travel/export/?country=%s", c.opts.StockFeedURL, url.QueryEscape(country))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var snapshot struct {
		Stocks []StockItem `json:"stocks"`
	}
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decode stock snapshot: %w", err)
	}
	return snapshot.Stocks, nil
}

// RecentTrades returns abroad item purchases from the subject's log within
// the trailing window.
func (c *Client) RecentTrades(ctx context.Context, credential string, window time.Duration) ([]TradeEntry, error) {
	body, err := c.get(ctx, c.userURL(credential, "log"))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Error *struct {
			Code  int    `json:"code"`
			Error string `json:"error"`
		} `json:"error"`
		Log map[string]logEntry `json:"log"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode trade log: %w", err)
	}
	if payload.Error != nil {
		return nil, &APIError{Code: payload.Error.Code, Message: payload.Error.Error}
	}

	cutoff := time.Now().Add(-window).Unix()
	var trades []TradeEntry
	for _, entry := range payload.Log {
		if entry.Category != "Travel" || entry.Data.Item == 0 || entry.Timestamp < cutoff {
			continue
		}
		trades = append(trades, TradeEntry{
			ItemID:    entry.Data.Item,
			Country:   entry.Data.Country,
			Quantity:  entry.Data.Quantity,
			Price:     entry.Data.CostEach,
			Timestamp: time.Unix(entry.Timestamp, 0),
		})
	}
	return trades, nil
}

type logEntry struct {
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
	Category  string `json:"category"`
	Data      struct {
		Item     int64           `json:"item"`
		Quantity int64           `json:"quantity"`
		CostEach decimal.Decimal `json:"cost_each"`
		Country  string          `json:"country"`
	} `json:"data"`
}

func (c *Client) userURL(credential, selections string) string {
	return fmt.Sprintf("%s/user/?selections=%s&key=%s", c.opts.BaseURL, selections, url.QueryEscape(credential))
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// The API reports failures as 200 responses carrying an error object.
func extractAPIError(p catalog.Payload) *APIError {
	if !p.Has("error") {
		return nil
	}
	return &APIError{
		Code:    int(p.Num("error.code")),
		Message: p.Str("error.error"),
	}
}

var _ Fetcher = (*Client)(nil)
var _ MarketSource = (*Client)(nil)
