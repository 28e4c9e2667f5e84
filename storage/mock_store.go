package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/miyamoto-labs/easypoly/models"
)

// MockStore is an in-memory TraderStore for testing. It mirrors the upsert
// semantics of the Postgres implementation: rows keyed by lower-cased wallet
// address, empty strings never blank out existing values, and recorded
// trader trades are unique per (trader, market, direction).
type MockStore struct {
	mu sync.RWMutex

	nextID  int
	Traders map[string]models.TrackedTrader // wallet address -> row
	Trades  []models.TraderTrade
	Audit   []MockAuditEvent

	// Call tracking
	Calls map[string]int

	// Error injection
	ErrorOnNext map[string]error
}

// MockAuditEvent is one captured audit-trail entry.
type MockAuditEvent struct {
	EventType string
	EventData map[string]interface{}
	Source    string
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		Traders:     make(map[string]models.TrackedTrader),
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

func (m *MockStore) trackCall(name string) error {
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

func (m *MockStore) Close() error { return nil }

func (m *MockStore) UpsertTrader(ctx context.Context, trader models.TrackedTrader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("UpsertTrader"); err != nil {
		return "", err
	}

	addr := models.NormalizeAddress(trader.WalletAddress)
	trader.WalletAddress = addr
	trader.LastUpdated = time.Now().UTC()

	existing, ok := m.Traders[addr]
	if !ok {
		m.nextID++
		trader.ID = fmt.Sprintf("%d", m.nextID)
		m.Traders[addr] = trader
		return trader.ID, nil
	}

	trader.ID = existing.ID
	if trader.Alias == "" {
		trader.Alias = existing.Alias
	}
	if trader.BankrollTier == "" {
		trader.BankrollTier = existing.BankrollTier
	}
	if trader.TradingStyle == "" {
		trader.TradingStyle = existing.TradingStyle
	}
	if trader.Category == "" {
		trader.Category = existing.Category
	}
	if trader.ProfileSummary == "" {
		trader.ProfileSummary = existing.ProfileSummary
	}
	if trader.Source == "" {
		trader.Source = existing.Source
	}
	if trader.LifecycleState == "" {
		trader.LifecycleState = existing.LifecycleState
	}
	if trader.LastTradeDate == nil {
		trader.LastTradeDate = existing.LastTradeDate
	}
	m.Traders[addr] = trader
	return trader.ID, nil
}

func (m *MockStore) GetTrader(ctx context.Context, walletAddress string) (*models.TrackedTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("GetTrader"); err != nil {
		return nil, err
	}
	if t, ok := m.Traders[models.NormalizeAddress(walletAddress)]; ok {
		return &t, nil
	}
	return nil, nil
}

func (m *MockStore) TopTraders(ctx context.Context, limit int) ([]models.TrackedTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("TopTraders"); err != nil {
		return nil, err
	}

	traders := m.activeSortedLocked(func(t models.TrackedTrader) bool { return true })
	if limit > 0 && len(traders) > limit {
		traders = traders[:limit]
	}
	return traders, nil
}

func (m *MockStore) TopTradersByTier(ctx context.Context, topPerTier int) ([]models.TrackedTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("TopTradersByTier"); err != nil {
		return nil, err
	}

	var all []models.TrackedTrader
	for _, tier := range models.BankrollTiers {
		traders := m.activeSortedLocked(func(t models.TrackedTrader) bool { return t.BankrollTier == tier })
		if topPerTier > 0 && len(traders) > topPerTier {
			traders = traders[:topPerTier]
		}
		all = append(all, traders...)
	}
	return all, nil
}

func (m *MockStore) RisingStars(ctx context.Context, limit int) ([]models.TrackedTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("RisingStars"); err != nil {
		return nil, err
	}

	traders := m.activeSortedLocked(func(t models.TrackedTrader) bool { return t.RisingStar })
	if limit > 0 && len(traders) > limit {
		traders = traders[:limit]
	}
	return traders, nil
}

func (m *MockStore) FollowedCustomTraders(ctx context.Context) ([]models.TrackedTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("FollowedCustomTraders"); err != nil {
		return nil, err
	}
	return m.activeSortedLocked(func(t models.TrackedTrader) bool { return t.Source == "custom" }), nil
}

func (m *MockStore) DeactivateInactive(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("DeactivateInactive"); err != nil {
		return 0, err
	}

	count := 0
	for addr, t := range m.Traders {
		if !t.Active || t.Source == "custom" || t.LastTradeDate == nil {
			continue
		}
		if t.LastTradeDate.Before(olderThan) {
			t.Active = false
			m.Traders[addr] = t
			count++
		}
	}
	return count, nil
}

func (m *MockStore) SeenSignalKeys(ctx context.Context, traderID string) (map[SignalKey]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("SeenSignalKeys"); err != nil {
		return nil, err
	}

	keys := make(map[SignalKey]struct{})
	for _, t := range m.Trades {
		if t.TraderID == traderID {
			keys[SignalKey{MarketID: t.MarketID, Direction: t.Direction}] = struct{}{}
		}
	}
	return keys, nil
}

func (m *MockStore) RecordTraderTrade(ctx context.Context, trade models.TraderTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("RecordTraderTrade"); err != nil {
		return err
	}

	for _, t := range m.Trades {
		if t.TraderID == trade.TraderID && t.MarketID == trade.MarketID && t.Direction == trade.Direction {
			return nil
		}
	}
	trade.CreatedAt = time.Now().UTC()
	m.Trades = append(m.Trades, trade)
	return nil
}

func (m *MockStore) RecentTraderTrades(ctx context.Context, limit int) ([]models.TraderTrade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("RecentTraderTrades"); err != nil {
		return nil, err
	}

	trades := make([]models.TraderTrade, len(m.Trades))
	copy(trades, m.Trades)
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].CreatedAt.After(trades[j].CreatedAt) })
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	return trades, nil
}

func (m *MockStore) InsertAuditEvent(ctx context.Context, eventType string, eventData map[string]interface{}, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.trackCall("InsertAuditEvent"); err != nil {
		return err
	}
	m.Audit = append(m.Audit, MockAuditEvent{EventType: eventType, EventData: eventData, Source: source})
	return nil
}

func (m *MockStore) activeSortedLocked(keep func(models.TrackedTrader) bool) []models.TrackedTrader {
	var traders []models.TrackedTrader
	for _, t := range m.Traders {
		if t.Active && keep(t) {
			traders = append(traders, t)
		}
	}
	sort.SliceStable(traders, func(i, j int) bool {
		if traders[i].CompositeRank != traders[j].CompositeRank {
			return traders[i].CompositeRank > traders[j].CompositeRank
		}
		return traders[i].WalletAddress < traders[j].WalletAddress
	})
	return traders
}
