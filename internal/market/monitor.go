package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torn-alert-watcher/internal/alerting"
	"torn-alert-watcher/internal/catalog"
	"torn-alert-watcher/internal/directory"
	"torn-alert-watcher/internal/fetcher"
	"torn-alert-watcher/internal/storage"
)

const namespace = "watched_items"

// State is the watched-item lifecycle position. TRIGGERED and
// LOW_STOCK_WARNING are transient: the monitor notifies and returns the
// record to MONITORING within the same cycle.
type State string

const (
	StateIdle                State = "IDLE"
	StateArmed               State = "ARMED"
	StateMonitoring          State = "MONITORING"
	StateMonitoringPurchased State = "MONITORING_PURCHASED"
	StateTriggered           State = "TRIGGERED"
	StateLowStockWarning     State = "LOW_STOCK_WARNING"
)

// Item is one persisted (subject, country, item) watch record.
type Item struct {
	SubjectID             string `json:"subjectId"`
	Country               string `json:"country"`
	ItemID                int64  `json:"itemId"`
	ItemName              string `json:"itemName"`
	State                 State  `json:"state"`
	LastStock             int64  `json:"lastStock"`
	HasPurchased          bool   `json:"hasPurchased"`
	LastLowStockWarningAt int64  `json:"lastLowStockWarningAt"`
	LastRestockAt         int64  `json:"lastRestockAt"`
}

// Key identifies the record inside the persisted collection.
func (it Item) Key() string {
	return fmt.Sprintf("%s|%s|%d", it.SubjectID, it.Country, it.ItemID)
}

// Options tune the monitor's thresholds.
type Options struct {
	Interval          time.Duration
	ArmWindow         time.Duration
	LowStockThreshold int64
	LowStockThrottle  time.Duration
	TradeWindow       time.Duration
}

// Monitor runs the restock/purchase state machine for every watched item,
// driven by the travel status and live stock feeds on the fast cadence.
type Monitor struct {
	opts     Options
	docs     storage.DocumentStore
	source   fetcher.MarketSource
	dir      directory.Directory
	notifier alerting.Notifier
	logger   zerolog.Logger
	clock    func() time.Time

	mu    sync.Mutex
	items map[string]*Item

	flusher *storage.Flusher
}

// New constructs a monitor.
func New(opts Options, docs storage.DocumentStore, source fetcher.MarketSource, dir directory.Directory, notifier alerting.Notifier, debounce time.Duration, logger zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.ArmWindow <= 0 {
		opts.ArmWindow = 180 * time.Second
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = 50
	}
	if opts.LowStockThrottle <= 0 {
		opts.LowStockThrottle = 5 * time.Minute
	}
	if opts.TradeWindow <= 0 {
		opts.TradeWindow = 5 * time.Minute
	}

	m := &Monitor{
		opts:     opts,
		docs:     docs,
		source:   source,
		dir:      dir,
		notifier: notifier,
		logger:   logger.With().Str("component", "market_monitor").Logger(),
		clock:    time.Now,
		items:    make(map[string]*Item),
	}
	m.flusher = storage.NewFlusher(debounce, m.save, logger)
	return m
}

// Load reads the persisted watch collection; missing or unreadable
// documents start the monitor empty.
func (m *Monitor) Load(ctx context.Context) {
	doc, err := m.docs.Load(ctx, namespace)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Error().Err(err).Msg("load watched items failed; starting empty")
		return
	}

	items := make(map[string]*Item)
	if err := json.Unmarshal(doc, &items); err != nil {
		m.logger.Error().Err(err).Msg("decode watched items failed; starting empty")
		return
	}
	for _, it := range items {
		if it.State == "" {
			it.State = StateIdle
		}
	}

	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
}

// Run ticks the state machine at the fast cadence until ctx is cancelled,
// with debounced persistence and a final flush on shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.flusher.Run(ctx)
	}()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Flush forces an immediate write of the watch collection.
func (m *Monitor) Flush(ctx context.Context) error {
	return m.flusher.Flush(ctx)
}

// Tick evaluates every watched item once. Fetch failures for one subject or
// country are logged and skipped without aborting the cycle.
func (m *Monitor) Tick(ctx context.Context) {
	subjects, err := m.dir.ListSubjects(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("list subjects failed, skipping tick")
		return
	}

	bySubject := m.itemsBySubject()
	if len(bySubject) == 0 {
		return
	}

	snapshots := m.fetchSnapshots(ctx, bySubject)

	for subjectID, items := range bySubject {
		subject, ok := subjects[subjectID]
		if !ok || subject.Credential == "" {
			continue
		}

		travel, err := m.source.TravelStatus(ctx, subject.Credential)
		if err != nil {
			m.logger.Warn().Err(err).Str("subject", subjectID).Msg("travel status fetch failed")
			m.updateStocks(items, snapshots)
			continue
		}

		var trades []fetcher.TradeEntry
		tradesLoaded := false
		for _, it := range items {
			if it.State == StateMonitoring && !it.HasPurchased && !tradesLoaded {
				trades, err = m.source.RecentTrades(ctx, subject.Credential, m.opts.TradeWindow)
				if err != nil {
					m.logger.Warn().Err(err).Str("subject", subjectID).Msg("trade log fetch failed")
					trades = nil
				}
				tradesLoaded = true
			}
			m.step(ctx, it, travel, snapshots[it.Country], trades)
		}

		m.updateStocks(items, snapshots)
	}

	m.flusher.MarkDirty()
}

// step applies the transition table for one item against this cycle's
// travel status, stock snapshot and trade log.
func (m *Monitor) step(ctx context.Context, it *Item, travel fetcher.TravelStatus, stock map[int64]fetcher.StockItem, trades []fetcher.TradeEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	armSeconds := int64(m.opts.ArmWindow / time.Second)

	switch it.State {
	case StateIdle:
		if travel.Destination == it.Country && travel.TimeLeft > 0 && travel.TimeLeft <= armSeconds {
			m.transition(it, StateArmed)
		} else if travel.Location == it.Country && travel.TimeLeft == 0 {
			it.HasPurchased = false
			m.transition(it, StateMonitoring)
		}

	case StateArmed:
		if travel.Location == it.Country && travel.TimeLeft == 0 {
			it.HasPurchased = false
			m.transition(it, StateMonitoring)
		} else if travel.Destination != it.Country {
			m.transition(it, StateIdle)
		}

	case StateMonitoring:
		if travel.Location != it.Country && travel.Destination != it.Country {
			m.transition(it, StateIdle)
			return
		}

		if !it.HasPurchased && purchaseDetected(trades, it) {
			it.HasPurchased = true
			m.transition(it, StateMonitoringPurchased)
			m.notify(ctx, it, alerting.Notification{
				Title:    "Purchase confirmed",
				Emoji:    "🛒",
				Severity: catalog.SeverityInfo,
				Lines:    []string{fmt.Sprintf("%s bought in %s within the last %s.", it.ItemName, it.Country, m.opts.TradeWindow)},
			})
			return
		}

		entry, inStock := stockFor(stock, it.ItemID)
		if !inStock {
			return
		}
		now := m.clock()

		if it.LastStock == 0 && entry.Quantity > 0 {
			// Transient: notify and return to MONITORING in the same cycle.
			m.transition(it, StateTriggered)
			it.LastRestockAt = now.UnixMilli()
			m.notify(ctx, it, alerting.Notification{
				Title:    "Restock",
				Emoji:    "📦",
				Severity: catalog.SeverityCritical,
				Lines: []string{
					fmt.Sprintf("%s restocked in %s.", it.ItemName, it.Country),
					fmt.Sprintf("Quantity %d at $%s each.", entry.Quantity, entry.Cost.StringFixed(0)),
				},
			})
			m.transition(it, StateMonitoring)
			return
		}

		throttled := it.LastLowStockWarningAt > 0 &&
			now.Sub(time.UnixMilli(it.LastLowStockWarningAt)) < m.opts.LowStockThrottle
		if !it.HasPurchased && entry.Quantity > 0 && entry.Quantity < m.opts.LowStockThreshold && !throttled {
			m.transition(it, StateLowStockWarning)
			it.LastLowStockWarningAt = now.UnixMilli()
			m.notify(ctx, it, alerting.Notification{
				Title:    "Low stock",
				Emoji:    "⚠️",
				Severity: catalog.SeverityWarning,
				Lines: []string{
					fmt.Sprintf("Only %d %s left in %s.", entry.Quantity, it.ItemName, it.Country),
				},
			})
			m.transition(it, StateMonitoring)
		}

	case StateMonitoringPurchased:
		if travel.Location != it.Country {
			it.HasPurchased = false
			m.transition(it, StateIdle)
		}

	default:
		// Transient states never persist across cycles; repair if they do.
		m.transition(it, StateMonitoring)
	}
}

func (m *Monitor) transition(it *Item, to State) {
	if it.State == to {
		return
	}
	m.logger.Info().
		Str("subject", it.SubjectID).
		Str("country", it.Country).
		Int64("item", it.ItemID).
		Str("from", string(it.State)).
		Str("to", string(to)).
		Msg("watch state transition")
	it.State = to
}

func (m *Monitor) notify(ctx context.Context, it *Item, note alerting.Notification) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, it.SubjectID, note); err != nil {
		m.logger.Error().Err(err).
			Str("subject", it.SubjectID).
			Int64("item", it.ItemID).
			Msg("failed to dispatch market notification")
	}
}

// updateStocks refreshes lastStock from the feed for every item, whatever
// state it is in.
func (m *Monitor) updateStocks(items []*Item, snapshots map[string]map[int64]fetcher.StockItem) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, it := range items {
		if entry, ok := stockFor(snapshots[it.Country], it.ItemID); ok {
			it.LastStock = entry.Quantity
		}
	}
}

// fetchSnapshots queries each distinct watched country once per tick.
func (m *Monitor) fetchSnapshots(ctx context.Context, bySubject map[string][]*Item) map[string]map[int64]fetcher.StockItem {
	countries := make(map[string]struct{})
	for _, items := range bySubject {
		for _, it := range items {
			countries[it.Country] = struct{}{}
		}
	}

	snapshots := make(map[string]map[int64]fetcher.StockItem, len(countries))
	for country := range countries {
		stocks, err := m.source.StockSnapshot(ctx, country)
		if err != nil {
			m.logger.Warn().Err(err).Str("country", country).Msg("stock snapshot fetch failed")
			continue
		}
		byID := make(map[int64]fetcher.StockItem, len(stocks))
		for _, s := range stocks {
			byID[s.ItemID] = s
		}
		snapshots[country] = byID
	}
	return snapshots
}

func (m *Monitor) itemsBySubject() map[string][]*Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]*Item)
	for _, it := range m.items {
		out[it.SubjectID] = append(out[it.SubjectID], it)
	}
	// Stable evaluation order inside a subject.
	for _, items := range out {
		sort.Slice(items, func(i, j int) bool { return items[i].Key() < items[j].Key() })
	}
	return out
}

func stockFor(stock map[int64]fetcher.StockItem, itemID int64) (fetcher.StockItem, bool) {
	if stock == nil {
		return fetcher.StockItem{}, false
	}
	entry, ok := stock[itemID]
	return entry, ok
}

func purchaseDetected(trades []fetcher.TradeEntry, it *Item) bool {
	for _, t := range trades {
		if t.ItemID != it.ItemID {
			continue
		}
		if t.Country == "" || t.Country == it.Country {
			return true
		}
	}
	return false
}

// Watch registers a new watched item and persists immediately.
func (m *Monitor) Watch(ctx context.Context, subjectID, country string, itemID int64, itemName string) error {
	if subjectID == "" || country == "" || itemID == 0 {
		return errors.New("subject, country and item id are required")
	}

	it := &Item{
		SubjectID: subjectID,
		Country:   country,
		ItemID:    itemID,
		ItemName:  itemName,
		State:     StateIdle,
	}

	m.mu.Lock()
	m.items[it.Key()] = it
	m.mu.Unlock()

	m.flusher.MarkDirty()
	return m.flusher.Flush(ctx)
}

// Unwatch removes a watched item and persists immediately.
func (m *Monitor) Unwatch(ctx context.Context, subjectID, country string, itemID int64) error {
	key := Item{SubjectID: subjectID, Country: country, ItemID: itemID}.Key()

	m.mu.Lock()
	_, exists := m.items[key]
	delete(m.items, key)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("watch %s not registered", key)
	}
	m.flusher.MarkDirty()
	return m.flusher.Flush(ctx)
}

// RemoveSubject drops every watch owned by a deregistered subject.
func (m *Monitor) RemoveSubject(subjectID string) {
	m.mu.Lock()
	for key, it := range m.items {
		if it.SubjectID == subjectID {
			delete(m.items, key)
		}
	}
	m.mu.Unlock()
	m.flusher.MarkDirty()
}

// Items returns a sorted copy of every watch record.
func (m *Monitor) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (m *Monitor) save(ctx context.Context) error {
	m.mu.Lock()
	doc, err := json.Marshal(m.items)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode watched items: %w", err)
	}
	if err := m.docs.Save(ctx, namespace, doc); err != nil {
		return fmt.Errorf("save watched items: %w", err)
	}
	return nil
}
