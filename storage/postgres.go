package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/miyamoto-labs/easypoly/models"
)

// PostgresStore wraps PostgreSQL persistence with Redis caching.
type PostgresStore struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewPostgres creates a PostgreSQL store with connection pooling and a
// Redis cache in front of the hot roster reads.
func NewPostgres() (*PostgresStore, error) {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "easypoly")
	password := getEnv("POSTGRES_PASSWORD", "easypoly123")
	dbname := getEnv("POSTGRES_DB", "easypoly")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?pool_max_conns=20&pool_min_conns=4",
		user, password, host, port, dbname)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 4
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	// Discovery passes run long queries against a growing roster; keep a
	// hard statement timeout so one stuck query cannot wedge the pool.
	config.ConnConfig.RuntimeParams["statement_timeout"] = "30000"
	config.ConnConfig.RuntimeParams["lock_timeout"] = "10000"

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort := getEnv("REDIS_PORT", "6379")
	redisPassword := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password:     redisPassword,
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	store := &PostgresStore{pool: pool, redis: rdb}
	if err := store.migrate(context.Background()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tracked_traders (
			id BIGSERIAL PRIMARY KEY,
			wallet_address TEXT NOT NULL UNIQUE,
			alias TEXT,
			total_pnl DOUBLE PRECISION DEFAULT 0,
			win_rate DOUBLE PRECISION DEFAULT 0,
			trade_count INTEGER DEFAULT 0,
			avg_position_size DOUBLE PRECISION DEFAULT 0,
			roi DOUBLE PRECISION DEFAULT 0,
			composite_rank DOUBLE PRECISION DEFAULT 0,
			bankroll_tier TEXT,
			trading_style TEXT,
			estimated_bankroll DOUBLE PRECISION DEFAULT 0,
			markets_traded INTEGER DEFAULT 0,
			consistency_score DOUBLE PRECISION DEFAULT 0,
			category TEXT,
			market_categories JSONB DEFAULT '[]'::jsonb,
			lifecycle_state TEXT DEFAULT 'unknown',
			rising_star BOOLEAN DEFAULT FALSE,
			category_win_rates JSONB DEFAULT '{}'::jsonb,
			profile_summary TEXT,
			source TEXT DEFAULT 'discovery',
			active BOOLEAN DEFAULT TRUE,
			last_trade_date TIMESTAMPTZ,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_traders_rank
			ON tracked_traders (active, composite_rank DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tracked_traders_tier
			ON tracked_traders (active, bankroll_tier, composite_rank DESC)`,
		`CREATE TABLE IF NOT EXISTS trader_trades (
			id BIGSERIAL PRIMARY KEY,
			trader_id TEXT NOT NULL,
			market_id TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount DOUBLE PRECISION DEFAULT 0,
			price DOUBLE PRECISION DEFAULT 0,
			trade_type TEXT DEFAULT 'entry',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (trader_id, market_id, direction)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			event_data JSONB DEFAULT '{}'::jsonb,
			source TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// Close releases database connections.
func (s *PostgresStore) Close() error {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// UpsertTrader inserts or refreshes a roster row keyed by wallet address.
// String fields arriving empty and a nil last trade date never overwrite
// existing values, so a thin record (a seed whale re-scan, say) cannot
// blank out a previously scored row. Upserts never deactivate a row.
func (s *PostgresStore) UpsertTrader(ctx context.Context, trader models.TrackedTrader) (string, error) {
	marketCategories, err := json.Marshal(trader.MarketCategories)
	if err != nil {
		return "", fmt.Errorf("postgres: marshal market categories: %w", err)
	}
	categoryWinRates, err := json.Marshal(trader.CategoryWinRates)
	if err != nil {
		return "", fmt.Errorf("postgres: marshal category win rates: %w", err)
	}

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO tracked_traders (
			wallet_address, alias, total_pnl, win_rate, trade_count, avg_position_size,
			roi, composite_rank, bankroll_tier, trading_style, estimated_bankroll,
			markets_traded, consistency_score, category, market_categories,
			lifecycle_state, rising_star, category_win_rates, profile_summary,
			source, active, last_trade_date, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, NOW())
		ON CONFLICT (wallet_address) DO UPDATE SET
			alias = COALESCE(NULLIF(EXCLUDED.alias, ''), tracked_traders.alias),
			total_pnl = EXCLUDED.total_pnl,
			win_rate = EXCLUDED.win_rate,
			trade_count = EXCLUDED.trade_count,
			avg_position_size = EXCLUDED.avg_position_size,
			roi = EXCLUDED.roi,
			composite_rank = EXCLUDED.composite_rank,
			bankroll_tier = COALESCE(NULLIF(EXCLUDED.bankroll_tier, ''), tracked_traders.bankroll_tier),
			trading_style = COALESCE(NULLIF(EXCLUDED.trading_style, ''), tracked_traders.trading_style),
			estimated_bankroll = EXCLUDED.estimated_bankroll,
			markets_traded = EXCLUDED.markets_traded,
			consistency_score = EXCLUDED.consistency_score,
			category = COALESCE(NULLIF(EXCLUDED.category, ''), tracked_traders.category),
			market_categories = EXCLUDED.market_categories,
			lifecycle_state = COALESCE(NULLIF(EXCLUDED.lifecycle_state, ''), tracked_traders.lifecycle_state),
			rising_star = EXCLUDED.rising_star,
			category_win_rates = EXCLUDED.category_win_rates,
			profile_summary = COALESCE(NULLIF(EXCLUDED.profile_summary, ''), tracked_traders.profile_summary),
			source = COALESCE(NULLIF(EXCLUDED.source, ''), tracked_traders.source),
			active = EXCLUDED.active,
			last_trade_date = COALESCE(EXCLUDED.last_trade_date, tracked_traders.last_trade_date),
			last_updated = NOW()
		RETURNING id::text
	`,
		models.NormalizeAddress(trader.WalletAddress), trader.Alias, trader.TotalPNL, trader.WinRate,
		trader.TradeCount, trader.AvgPositionSize, trader.ROI, trader.CompositeRank,
		string(trader.BankrollTier), trader.TradingStyle, trader.EstimatedBankroll,
		trader.MarketsTraded, trader.ConsistencyScore, trader.Category, marketCategories,
		string(trader.LifecycleState), trader.RisingStar, categoryWinRates, trader.ProfileSummary,
		trader.Source, trader.Active, nullTime(trader.LastTradeDate),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("postgres: upsert trader %s: %w", trader.WalletAddress, err)
	}

	s.invalidateRosterCaches(ctx)
	return id, nil
}

// GetTrader fetches a single roster row by wallet address. Returns nil when
// the trader is not tracked.
func (s *PostgresStore) GetTrader(ctx context.Context, walletAddress string) (*models.TrackedTrader, error) {
	rows, err := s.pool.Query(ctx, selectTraderColumns+`
		FROM tracked_traders
		WHERE wallet_address = $1
	`, models.NormalizeAddress(walletAddress))
	if err != nil {
		return nil, err
	}
	traders, err := scanTraders(rows)
	if err != nil {
		return nil, err
	}
	if len(traders) == 0 {
		return nil, nil
	}
	return &traders[0], nil
}

// TopTraders returns active traders ranked by composite rank.
func (s *PostgresStore) TopTraders(ctx context.Context, limit int) ([]models.TrackedTrader, error) {
	if limit <= 0 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("traders:top:%d", limit)
	if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
		var traders []models.TrackedTrader
		if json.Unmarshal(cached, &traders) == nil {
			return traders, nil
		}
	}

	rows, err := s.pool.Query(ctx, selectTraderColumns+`
		FROM tracked_traders
		WHERE active
		ORDER BY composite_rank DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	traders, err := scanTraders(rows)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(traders); err == nil {
		s.redis.Set(ctx, cacheKey, data, 2*time.Minute)
	}
	return traders, nil
}

// TopTradersByTier returns the best traders per bankroll tier so the signal
// roster covers micro accounts as well as whales.
func (s *PostgresStore) TopTradersByTier(ctx context.Context, topPerTier int) ([]models.TrackedTrader, error) {
	if topPerTier <= 0 {
		topPerTier = 5
	}

	cacheKey := fmt.Sprintf("traders:tiered:%d", topPerTier)
	if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
		var traders []models.TrackedTrader
		if json.Unmarshal(cached, &traders) == nil {
			return traders, nil
		}
	}

	var all []models.TrackedTrader
	for _, tier := range models.BankrollTiers {
		rows, err := s.pool.Query(ctx, selectTraderColumns+`
			FROM tracked_traders
			WHERE active AND bankroll_tier = $1
			ORDER BY composite_rank DESC
			LIMIT $2
		`, string(tier), topPerTier)
		if err != nil {
			return nil, err
		}
		traders, err := scanTraders(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, traders...)
	}

	if data, err := json.Marshal(all); err == nil {
		s.redis.Set(ctx, cacheKey, data, 2*time.Minute)
	}
	return all, nil
}

// RisingStars returns active rising-star traders ranked by composite rank.
func (s *PostgresStore) RisingStars(ctx context.Context, limit int) ([]models.TrackedTrader, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, selectTraderColumns+`
		FROM tracked_traders
		WHERE active AND rising_star
		ORDER BY composite_rank DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return scanTraders(rows)
}

// FollowedCustomTraders returns user-added wallets that are actively followed.
func (s *PostgresStore) FollowedCustomTraders(ctx context.Context) ([]models.TrackedTrader, error) {
	rows, err := s.pool.Query(ctx, selectTraderColumns+`
		FROM tracked_traders
		WHERE active AND source = 'custom'
	`)
	if err != nil {
		return nil, err
	}
	return scanTraders(rows)
}

// DeactivateInactive flips off traders whose last trade predates the cutoff.
// Custom follows are exempt: the user asked for them explicitly.
func (s *PostgresStore) DeactivateInactive(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tracked_traders
		SET active = FALSE, last_updated = NOW()
		WHERE active AND source <> 'custom'
		  AND last_trade_date IS NOT NULL AND last_trade_date < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("postgres: deactivate inactive: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.invalidateRosterCaches(ctx)
		log.Printf("[storage] deactivated %d inactive traders", tag.RowsAffected())
	}
	return int(tag.RowsAffected()), nil
}

// SeenSignalKeys returns the (market, direction) pairs already recorded for
// a trader, used by the detector to suppress repeat signals.
func (s *PostgresStore) SeenSignalKeys(ctx context.Context, traderID string) (map[SignalKey]struct{}, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, direction FROM trader_trades WHERE trader_id = $1
	`, traderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[SignalKey]struct{})
	for rows.Next() {
		var key SignalKey
		if err := rows.Scan(&key.MarketID, &key.Direction); err != nil {
			return nil, err
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

// RecordTraderTrade persists one detected (market, direction) entry.
// Replays of the same key are absorbed by the unique constraint.
func (s *PostgresStore) RecordTraderTrade(ctx context.Context, trade models.TraderTrade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trader_trades (trader_id, market_id, direction, amount, price, trade_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (trader_id, market_id, direction) DO NOTHING
	`, trade.TraderID, trade.MarketID, trade.Direction, trade.Amount, trade.Price, trade.TradeType)
	if err != nil {
		return fmt.Errorf("postgres: record trader trade: %w", err)
	}
	return nil
}

// RecentTraderTrades returns the newest recorded entries, newest first.
func (s *PostgresStore) RecentTraderTrades(ctx context.Context, limit int) ([]models.TraderTrade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT trader_id, market_id, direction, amount, price, trade_type, created_at
		FROM trader_trades
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.TraderTrade
	for rows.Next() {
		var t models.TraderTrade
		if err := rows.Scan(&t.TraderID, &t.MarketID, &t.Direction, &t.Amount, &t.Price, &t.TradeType, &t.CreatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertAuditEvent appends to the audit trail. Audit failures are logged
// and swallowed: bookkeeping must never break a discovery pass.
func (s *PostgresStore) InsertAuditEvent(ctx context.Context, eventType string, eventData map[string]interface{}, source string) error {
	data, err := json.Marshal(eventData)
	if err != nil {
		data = []byte("{}")
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (event_type, event_data, source) VALUES ($1, $2, $3)
	`, eventType, data, source); err != nil {
		log.Printf("[storage] audit insert failed: %v", err)
	}
	return nil
}

func (s *PostgresStore) invalidateRosterCaches(ctx context.Context) {
	if keys, err := s.redis.Keys(ctx, "traders:*").Result(); err == nil && len(keys) > 0 {
		s.redis.Del(ctx, keys...)
	}
}

const selectTraderColumns = `
	SELECT id::text, wallet_address, alias, total_pnl, win_rate, trade_count,
		   avg_position_size, roi, composite_rank, bankroll_tier, trading_style,
		   estimated_bankroll, markets_traded, consistency_score, category,
		   market_categories, lifecycle_state, rising_star, category_win_rates,
		   profile_summary, source, active, last_trade_date, last_updated
`

func scanTraders(rows pgx.Rows) ([]models.TrackedTrader, error) {
	defer rows.Close()

	var traders []models.TrackedTrader
	for rows.Next() {
		var (
			t                models.TrackedTrader
			alias            *string
			bankrollTier     *string
			tradingStyle     *string
			category         *string
			profileSummary   *string
			source           *string
			lifecycleState   *string
			marketCategories []byte
			categoryWinRates []byte
			lastTradeDate    *time.Time
		)
		if err := rows.Scan(
			&t.ID, &t.WalletAddress, &alias, &t.TotalPNL, &t.WinRate, &t.TradeCount,
			&t.AvgPositionSize, &t.ROI, &t.CompositeRank, &bankrollTier, &tradingStyle,
			&t.EstimatedBankroll, &t.MarketsTraded, &t.ConsistencyScore, &category,
			&marketCategories, &lifecycleState, &t.RisingStar, &categoryWinRates,
			&profileSummary, &source, &t.Active, &lastTradeDate, &t.LastUpdated,
		); err != nil {
			return nil, err
		}

		if alias != nil {
			t.Alias = *alias
		}
		if bankrollTier != nil {
			t.BankrollTier = models.BankrollTier(*bankrollTier)
		}
		if tradingStyle != nil {
			t.TradingStyle = *tradingStyle
		}
		if category != nil {
			t.Category = *category
		}
		if profileSummary != nil {
			t.ProfileSummary = *profileSummary
		}
		if source != nil {
			t.Source = *source
		}
		if lifecycleState != nil {
			t.LifecycleState = models.LifecycleState(*lifecycleState)
		}
		if len(marketCategories) > 0 {
			json.Unmarshal(marketCategories, &t.MarketCategories)
		}
		if len(categoryWinRates) > 0 {
			json.Unmarshal(categoryWinRates, &t.CategoryWinRates)
		}
		t.LastTradeDate = lastTradeDate

		traders = append(traders, t)
	}
	return traders, rows.Err()
}

func nullTime(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}
