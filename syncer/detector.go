package syncer

import (
	"context"
	"log"
	"time"

	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/config"
	"github.com/miyamoto-labs/easypoly/models"
	"github.com/miyamoto-labs/easypoly/storage"
)

// positionsPerTrader caps how many open positions are inspected per
// tracked trader on each detector tick.
const positionsPerTrader = 50

// Broadcaster receives the copy signals produced by one detector tick.
type Broadcaster interface {
	Broadcast(ctx context.Context, signals []models.CopySignal) error
}

// LogBroadcaster writes signals to the process log. It stands in when no
// downstream consumer is wired up.
type LogBroadcaster struct{}

func (LogBroadcaster) Broadcast(ctx context.Context, signals []models.CopySignal) error {
	for _, sig := range signals {
		log.Printf("[signals] COPY %s: %s %s ($%.0f @ %.2f) by %s [%s/%s]",
			sig.Direction, sig.MarketID, sig.Question, sig.Size, sig.Price,
			sig.TraderAlias, sig.TraderTier, sig.TraderStyle)
	}
	return nil
}

// Detector watches the open positions of tracked traders and emits a copy
// signal the first time a trader shows up in a (market, direction) it has
// not been seen in before. Seen keys are persisted, so restarts do not
// replay old positions.
type Detector struct {
	client      api.DataClient
	store       storage.TraderStore
	broadcaster Broadcaster
	cfg         config.SignalConfig

	now func() time.Time
}

// NewDetector builds a detector. A nil broadcaster falls back to logging.
func NewDetector(cfg config.SignalConfig, client api.DataClient, store storage.TraderStore, broadcaster Broadcaster) *Detector {
	if broadcaster == nil {
		broadcaster = LogBroadcaster{}
	}
	return &Detector{
		client:      client,
		store:       store,
		broadcaster: broadcaster,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Detect runs one detection tick across the current roster and returns
// the new signals it found.
func (d *Detector) Detect(ctx context.Context) ([]models.CopySignal, error) {
	roster, err := d.roster(ctx)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		log.Printf("[signals] no tracked traders to watch")
		return nil, nil
	}

	tiers := make(map[models.BankrollTier]int)
	for _, t := range roster {
		tiers[t.BankrollTier]++
	}
	log.Printf("[signals] watching %d traders (whale=%d mid=%d small=%d micro=%d)",
		len(roster), tiers[models.BankrollWhale], tiers[models.BankrollMid],
		tiers[models.BankrollSmall], tiers[models.BankrollMicro])

	var signals []models.CopySignal
	for _, trader := range roster {
		if ctx.Err() != nil {
			break
		}
		found, err := d.checkTrader(ctx, trader)
		if err != nil {
			log.Printf("[signals] check %s failed: %v", trader.WalletAddress, err)
			continue
		}
		signals = append(signals, found...)
	}

	if len(signals) > 0 {
		log.Printf("[signals] tick found %d new signals", len(signals))
		if err := d.broadcaster.Broadcast(ctx, signals); err != nil {
			log.Printf("[signals] broadcast failed: %v", err)
		}
	}
	return signals, nil
}

// roster assembles the watch list: the best traders per bankroll tier
// (falling back to a flat top-N when tiers are empty), plus any custom
// follows, deduplicated by row ID.
func (d *Detector) roster(ctx context.Context) ([]models.TrackedTrader, error) {
	traders, err := d.store.TopTradersByTier(ctx, d.cfg.TopPerTier)
	if err != nil {
		return nil, err
	}
	if len(traders) == 0 {
		traders, err = d.store.TopTraders(ctx, d.cfg.MaxTraders)
		if err != nil {
			return nil, err
		}
	}

	custom, err := d.store.FollowedCustomTraders(ctx)
	if err != nil {
		log.Printf("[signals] custom follows fetch failed: %v", err)
		custom = nil
	}

	seen := make(map[string]struct{}, len(traders))
	for _, t := range traders {
		seen[t.ID] = struct{}{}
	}
	for _, t := range custom {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		traders = append(traders, t)
	}
	return traders, nil
}

func (d *Detector) checkTrader(ctx context.Context, trader models.TrackedTrader) ([]models.CopySignal, error) {
	positions, err := d.client.GetPositions(ctx, trader.WalletAddress, positionsPerTrader)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, nil
	}

	seenKeys, err := d.store.SeenSignalKeys(ctx, trader.ID)
	if err != nil {
		return nil, err
	}

	alias := trader.Alias
	if alias == "" {
		alias = models.ShortAddress(trader.WalletAddress)
	}

	var signals []models.CopySignal
	for _, pos := range positions {
		marketID := positionMarketID(pos)
		if marketID == "" {
			continue
		}

		direction := "NO"
		if pos.Outcome == "Yes" {
			direction = "YES"
		}

		value := positionValue(pos)
		if value < d.cfg.MinPositionValue {
			continue
		}

		key := storage.SignalKey{MarketID: marketID, Direction: direction}
		if _, ok := seenKeys[key]; ok {
			continue
		}

		if err := d.store.RecordTraderTrade(ctx, models.TraderTrade{
			TraderID:  trader.ID,
			MarketID:  marketID,
			Direction: direction,
			Amount:    value,
			Price:     pos.CurPrice.Float64(),
			TradeType: "buy",
		}); err != nil {
			log.Printf("[signals] record trade %s/%s failed: %v", marketID, direction, err)
			continue
		}
		seenKeys[key] = struct{}{}

		question := pos.Title
		if question == "" {
			question = marketID
		}
		signals = append(signals, models.CopySignal{
			TraderAlias:   alias,
			TraderAddress: trader.WalletAddress,
			TraderPNL:     trader.TotalPNL,
			TraderRank:    trader.CompositeRank,
			TraderROI:     trader.ROI,
			TraderTier:    trader.BankrollTier,
			TraderStyle:   trader.TradingStyle,
			MarketID:      marketID,
			Question:      question,
			Direction:     direction,
			Size:          value,
			Price:         pos.CurPrice.Float64(),
			DetectedAt:    d.now().UTC(),
		})
	}
	return signals, nil
}

// positionMarketID prefers the market slug, then the event slug, then the
// raw condition ID.
func positionMarketID(pos api.OpenPosition) string {
	if pos.Slug != "" {
		return pos.Slug
	}
	if pos.EventSlug != "" {
		return pos.EventSlug
	}
	return pos.ConditionID
}

// positionValue derives the USDC value of a position, falling back from
// marked value to entry notional to raw share count.
func positionValue(pos api.OpenPosition) float64 {
	if v := pos.CurrentValue.Float64(); v > 0 {
		return v
	}
	size := pos.Size.Float64()
	if price := pos.CurPrice.Float64(); price > 0 {
		return size * price
	}
	return size
}
