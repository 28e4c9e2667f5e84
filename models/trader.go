package models

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Tier is the quality grade derived from the composite score.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// LifecycleState buckets how current a trader's edge appears to be.
type LifecycleState string

const (
	LifecycleHot        LifecycleState = "hot"
	LifecycleConsistent LifecycleState = "consistent"
	LifecycleCooling    LifecycleState = "cooling"
	LifecycleCold       LifecycleState = "cold"
	LifecycleUnknown    LifecycleState = "unknown"
)

// BankrollTier is a volume-derived size bucket, distinct from the quality tier.
type BankrollTier string

const (
	BankrollWhale BankrollTier = "whale"
	BankrollMid   BankrollTier = "mid"
	BankrollSmall BankrollTier = "small"
	BankrollMicro BankrollTier = "micro"
)

// BankrollTiers lists all buckets in descending size order.
var BankrollTiers = []BankrollTier{BankrollWhale, BankrollMid, BankrollSmall, BankrollMicro}

// Trade is a single fill pulled from the data API.
type Trade struct {
	Side        string  `json:"side"` // BUY or SELL
	Size        float64 `json:"size"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
	ConditionID string  `json:"condition_id"`
	Title       string  `json:"title"`
	Outcome     string  `json:"outcome"`
	Asset       string  `json:"asset"`
}

// Notional returns the USDC value of the fill.
func (t Trade) Notional() float64 {
	return t.Size * t.Price
}

// Time returns the fill time in UTC.
func (t Trade) Time() time.Time {
	return time.Unix(t.Timestamp, 0).UTC()
}

// Position is a market stake, open or closed. RealizedPNL is only
// meaningful when IsClosed is set; CashPNL covers the open side.
type Position struct {
	ConditionID  string  `json:"condition_id"`
	Title        string  `json:"title"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	InitialValue float64 `json:"initial_value"`
	CurrentValue float64 `json:"current_value"`
	CashPNL      float64 `json:"cash_pnl"`
	PctPNL       float64 `json:"pct_pnl"`
	IsClosed     bool    `json:"is_closed"`
	RealizedPNL  float64 `json:"realized_pnl"`
	Timestamp    int64   `json:"timestamp"` // close time for closed positions
}

// TraderProfile is the raw aggregate collected for one candidate address.
// It is owned by a single scoring pass and treated as immutable once built.
type TraderProfile struct {
	Address            string     `json:"address"`
	Username           string     `json:"username"`
	ProfileImage       string     `json:"profile_image"`
	LeaderboardRank    int        `json:"leaderboard_rank"`
	LeaderboardPNL     float64    `json:"leaderboard_pnl"`
	LeaderboardVolume  float64    `json:"leaderboard_volume"`
	Trades             []Trade    `json:"trades"`
	OpenPositions      []Position `json:"open_positions"`
	ClosedPositions    []Position `json:"closed_positions"`
	PortfolioValue     float64    `json:"portfolio_value"`
	MarketsSpecialized []string   `json:"markets_specialized"` // top markets by realized P&L
}

// TraderScore is the output of one scoring pass. Records are never mutated
// after scoring returns; a later pass supersedes the record wholesale.
type TraderScore struct {
	Address      string `json:"address"`
	Username     string `json:"username"`
	ProfileImage string `json:"profile_image"`

	// Raw aggregates
	TotalTrades      int     `json:"total_trades"`
	TotalVolume      float64 `json:"total_volume"`
	TotalPNL         float64 `json:"total_pnl"`
	WinCount         int     `json:"win_count"`
	LossCount        int     `json:"loss_count"`
	AvgPositionSize  float64 `json:"avg_position_size"`
	MaxPositionSize  float64 `json:"max_position_size"`
	ActiveDays       int     `json:"active_days"`
	MarketsTraded    int     `json:"markets_traded"`
	CurrentPositions int     `json:"current_positions"`
	PortfolioValue   float64 `json:"portfolio_value"`

	// Sub-scores, 0-100
	ROIScore         float64 `json:"roi_score"`
	WinRateScore     float64 `json:"win_rate_score"`
	ConsistencyScore float64 `json:"consistency_score"`
	RiskMgmtScore    float64 `json:"risk_mgmt_score"`
	VolumeScore      float64 `json:"volume_score"`
	EdgeScore        float64 `json:"edge_score"`
	RecencyScore     float64 `json:"recency_score"`

	CompositeScore float64 `json:"composite_score"`
	Tier           Tier    `json:"tier"`
	Recommendation string  `json:"recommendation"`

	LifecycleState     LifecycleState     `json:"lifecycle_state"`
	RisingStar         bool               `json:"rising_star"`
	CategoryWinRates   map[string]float64 `json:"category_win_rates"`
	MarketsSpecialized []string           `json:"markets_specialized"`
	LastHotStreak      *time.Time         `json:"last_hot_streak,omitempty"`

	Disqualified       bool           `json:"disqualified"`
	DisqualifyReason   string         `json:"disqualify_reason"`
	LastTradeTimestamp int64          `json:"last_trade_timestamp"`
	PrimaryCategory    string         `json:"primary_category"`
	CategoryBreakdown  map[string]int `json:"category_breakdown"` // category -> pct of distinct markets
}

// ResolvedPositions returns the number of closed positions with a nonzero
// realized P&L sign.
func (s TraderScore) ResolvedPositions() int {
	return s.WinCount + s.LossCount
}

// WinRatePct returns the win rate over resolved positions as a percentage.
func (s TraderScore) WinRatePct() float64 {
	resolved := s.ResolvedPositions()
	if resolved == 0 {
		return 0
	}
	return float64(s.WinCount) / float64(resolved) * 100
}

// TrackedTrader is the storage-facing projection of a qualifying score (or
// a manually seeded whale). WalletAddress is the unique key, always
// lower-cased.
type TrackedTrader struct {
	ID                string             `json:"id"`
	WalletAddress     string             `json:"wallet_address"`
	Alias             string             `json:"alias"`
	TotalPNL          float64            `json:"total_pnl"`
	WinRate           float64            `json:"win_rate"` // percent
	TradeCount        int                `json:"trade_count"`
	AvgPositionSize   float64            `json:"avg_position_size"`
	ROI               float64            `json:"roi"` // percent
	CompositeRank     float64            `json:"composite_rank"` // 0-1 scale
	BankrollTier      BankrollTier       `json:"bankroll_tier"`
	TradingStyle      string             `json:"trading_style"`
	EstimatedBankroll float64            `json:"estimated_bankroll"`
	MarketsTraded     int                `json:"markets_traded"`
	ConsistencyScore  float64            `json:"consistency_score"`
	Category          string             `json:"category"`
	MarketCategories  []string           `json:"market_categories"`
	LifecycleState    LifecycleState     `json:"lifecycle_state"`
	RisingStar        bool               `json:"rising_star"`
	CategoryWinRates  map[string]float64 `json:"category_win_rates"`
	ProfileSummary    string             `json:"profile_summary"`
	Source            string             `json:"source"` // "discovery", "seed", "custom"
	Active            bool               `json:"active"`
	LastTradeDate     *time.Time         `json:"last_trade_date,omitempty"`
	LastUpdated       time.Time          `json:"last_updated"`
}

// CopySignal is the ephemeral output of the detector, handed straight to a
// broadcast collaborator.
type CopySignal struct {
	TraderAlias   string       `json:"trader_alias"`
	TraderAddress string       `json:"trader_address"`
	TraderPNL     float64      `json:"trader_pnl"`
	TraderRank    float64      `json:"trader_rank"`
	TraderROI     float64      `json:"trader_roi"`
	TraderTier    BankrollTier `json:"trader_tier"`
	TraderStyle   string       `json:"trader_style"`
	MarketID      string       `json:"market_id"`
	Question      string       `json:"question"`
	Direction     string       `json:"direction"` // YES or NO
	Size          float64      `json:"size"`      // position value in USDC
	Price         float64      `json:"price"`
	DetectedAt    time.Time    `json:"detected_at"`
}

// TraderTrade is one recorded (market, direction) entry for a tracked
// trader, used to suppress repeat signals.
type TraderTrade struct {
	TraderID  string    `json:"trader_id"`
	MarketID  string    `json:"market_id"`
	Direction string    `json:"direction"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	TradeType string    `json:"trade_type"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeAddress canonicalizes a wallet address for use as a storage
// key. Valid hex addresses are round-tripped through the EIP-55 form to
// absorb any padding oddities; anything else is just lower-cased.
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return strings.ToLower(addr)
}

// ShortAddress renders a truncated address for display when no alias exists.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "..."
}
