package api

import (
	"context"
	"sync"
)

// DataClient defines the methods needed from the data API client.
// This interface enables dependency injection for testing.
type DataClient interface {
	GetAllTrades(ctx context.Context, address string) ([]DataTrade, error)
	GetPositions(ctx context.Context, address string, limit int) ([]OpenPosition, error)
	GetAllClosedPositions(ctx context.Context, address string) ([]ClosedPosition, error)
	GetPortfolioValue(ctx context.Context, address string) (float64, error)
	GetLeaderboard(ctx context.Context, category LeaderboardCategory, period TimePeriod, orderBy string, limit int) ([]LeaderboardEntry, error)
	GetTopMarkets(ctx context.Context, limit int) ([]GammaMarket, error)
	GetMarketTopTraders(ctx context.Context, marketID string, limit int) ([]MarketHolder, error)
}

// Ensure both implementations satisfy the interface.
var _ DataClient = (*Client)(nil)
var _ DataClient = (*MockDataClient)(nil)

// MockDataClient is a mock data API client for testing.
type MockDataClient struct {
	mu sync.RWMutex

	// Response data, keyed by address where relevant
	Trades          map[string][]DataTrade
	Positions       map[string][]OpenPosition
	ClosedPositions map[string][]ClosedPosition
	PortfolioValues map[string]float64
	Leaderboard     []LeaderboardEntry
	TopMarkets      []GammaMarket
	MarketTraders   map[string][]MarketHolder

	// Call tracking
	Calls map[string]int

	// Error injection
	ErrorOnNext map[string]error
}

// NewMockDataClient creates a new mock data client.
func NewMockDataClient() *MockDataClient {
	return &MockDataClient{
		Trades:          make(map[string][]DataTrade),
		Positions:       make(map[string][]OpenPosition),
		ClosedPositions: make(map[string][]ClosedPosition),
		PortfolioValues: make(map[string]float64),
		MarketTraders:   make(map[string][]MarketHolder),
		Calls:           make(map[string]int),
		ErrorOnNext:     make(map[string]error),
	}
}

func (m *MockDataClient) trackCall(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	if err, ok := m.ErrorOnNext[name]; ok {
		delete(m.ErrorOnNext, name)
		return err
	}
	return nil
}

func (m *MockDataClient) GetAllTrades(ctx context.Context, address string) ([]DataTrade, error) {
	if err := m.trackCall("GetAllTrades"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Trades[address], nil
}

func (m *MockDataClient) GetPositions(ctx context.Context, address string, limit int) ([]OpenPosition, error) {
	if err := m.trackCall("GetPositions"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Positions[address], nil
}

func (m *MockDataClient) GetAllClosedPositions(ctx context.Context, address string) ([]ClosedPosition, error) {
	if err := m.trackCall("GetAllClosedPositions"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ClosedPositions[address], nil
}

func (m *MockDataClient) GetPortfolioValue(ctx context.Context, address string) (float64, error) {
	if err := m.trackCall("GetPortfolioValue"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PortfolioValues[address], nil
}

func (m *MockDataClient) GetLeaderboard(ctx context.Context, category LeaderboardCategory, period TimePeriod, orderBy string, limit int) ([]LeaderboardEntry, error) {
	if err := m.trackCall("GetLeaderboard"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit > 0 && limit < len(m.Leaderboard) {
		return m.Leaderboard[:limit], nil
	}
	return m.Leaderboard, nil
}

func (m *MockDataClient) GetTopMarkets(ctx context.Context, limit int) ([]GammaMarket, error) {
	if err := m.trackCall("GetTopMarkets"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit > 0 && limit < len(m.TopMarkets) {
		return m.TopMarkets[:limit], nil
	}
	return m.TopMarkets, nil
}

func (m *MockDataClient) GetMarketTopTraders(ctx context.Context, marketID string, limit int) ([]MarketHolder, error) {
	if err := m.trackCall("GetMarketTopTraders"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.MarketTraders[marketID], nil
}
