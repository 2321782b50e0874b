package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"torn-alert-watcher/internal/catalog"
)

// Fetcher retrieves one data group's raw state for a subject credential.
type Fetcher interface {
	Fetch(ctx context.Context, credential, group string) (catalog.Payload, error)
}

// MarketSource provides the travel, stock and trade-log queries consumed by
// the market monitor.
type MarketSource interface {
	TravelStatus(ctx context.Context, credential string) (TravelStatus, error)
	StockSnapshot(ctx context.Context, country string) ([]StockItem, error)
	RecentTrades(ctx context.Context, credential string, window time.Duration) ([]TradeEntry, error)
}

// TravelStatus is the subject's current location and itinerary.
type TravelStatus struct {
	Location    string
	Destination string
	TimeLeft    int64 // seconds to arrival; 0 when not traveling
}

// StockItem is one entry of a country's live stock snapshot.
type StockItem struct {
	ItemID   int64           `json:"id"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
}

// TradeEntry is one purchase from the subject's trade log.
type TradeEntry struct {
	ItemID    int64
	Country   string
	Quantity  int64
	Price     decimal.Decimal
	Timestamp time.Time
}

// APIError carries the game API's error code so callers can tell transport
// failures from key/permission problems. The scheduler treats every variant
// as a retryable failure.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("game api error %d: %s", e.Code, e.Message)
}
