package storage

import (
	"context"
	"time"

	"github.com/miyamoto-labs/easypoly/models"
)

// SignalKey identifies one recorded (market, direction) entry for a trader.
type SignalKey struct {
	MarketID  string
	Direction string
}

// TraderStore defines the persistence boundary for the discovery pipeline
// and the copy-signal detector. Both implementations below satisfy it.
type TraderStore interface {
	Close() error

	// Roster operations
	UpsertTrader(ctx context.Context, trader models.TrackedTrader) (string, error)
	GetTrader(ctx context.Context, walletAddress string) (*models.TrackedTrader, error)
	TopTraders(ctx context.Context, limit int) ([]models.TrackedTrader, error)
	TopTradersByTier(ctx context.Context, topPerTier int) ([]models.TrackedTrader, error)
	RisingStars(ctx context.Context, limit int) ([]models.TrackedTrader, error)
	FollowedCustomTraders(ctx context.Context) ([]models.TrackedTrader, error)
	DeactivateInactive(ctx context.Context, olderThan time.Time) (int, error)

	// Copy-signal bookkeeping
	SeenSignalKeys(ctx context.Context, traderID string) (map[SignalKey]struct{}, error)
	RecordTraderTrade(ctx context.Context, trade models.TraderTrade) error
	RecentTraderTrades(ctx context.Context, limit int) ([]models.TraderTrade, error)

	// Audit trail
	InsertAuditEvent(ctx context.Context, eventType string, eventData map[string]interface{}, source string) error
}

// Ensure both implementations satisfy the interface
var _ TraderStore = (*PostgresStore)(nil)
var _ TraderStore = (*MockStore)(nil)
