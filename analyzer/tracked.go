package analyzer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/miyamoto-labs/easypoly/models"
)

// Bankroll tier thresholds on total volume.
const (
	bankrollWhaleUSD = 500_000.0
	bankrollMidUSD   = 50_000.0
	bankrollSmallUSD = 5_000.0
)

// BankrollTierFor buckets a trader by total traded volume.
func BankrollTierFor(totalVolume float64) models.BankrollTier {
	switch {
	case totalVolume >= bankrollWhaleUSD:
		return models.BankrollWhale
	case totalVolume >= bankrollMidUSD:
		return models.BankrollMid
	case totalVolume >= bankrollSmallUSD:
		return models.BankrollSmall
	default:
		return models.BankrollMicro
	}
}

// TradingStyleFor labels how a trader operates. The checks are ordered by
// distinctiveness: a selective high-accuracy account reads as a sniper even
// if it would also qualify on volume.
func TradingStyleFor(score *models.TraderScore) string {
	resolved := score.ResolvedPositions()
	winRate := score.WinRatePct()

	switch {
	case resolved > 0 && winRate >= 75 && score.TotalTrades < 50:
		return "sniper"
	case score.TotalTrades >= 200:
		return "grinder"
	case score.TotalVolume >= bankrollWhaleUSD:
		return "whale"
	case score.AvgPositionSize > 0 && score.MaxPositionSize/math.Max(score.AvgPositionSize, 1) > 5:
		return "degen"
	default:
		return "unknown"
	}
}

// ToTrackedTrader projects a qualifying score onto the persisted roster
// record. The caller is responsible for filtering disqualified scores first.
func ToTrackedTrader(score *models.TraderScore, now time.Time) models.TrackedTrader {
	winRate := score.WinRatePct()

	var roiPct float64
	if score.TotalVolume > 0 {
		roiPct = score.TotalPNL / score.TotalVolume * 100
	}

	var marketCategories []string
	for cat := range score.CategoryBreakdown {
		if cat != CategoryOther {
			marketCategories = append(marketCategories, cat)
		}
	}

	category := ""
	if score.PrimaryCategory != "unknown" && score.PrimaryCategory != CategoryOther {
		category = score.PrimaryCategory
	}

	var lastTrade *time.Time
	if score.LastTradeTimestamp > 0 {
		ts := time.Unix(score.LastTradeTimestamp, 0).UTC()
		lastTrade = &ts
	}

	risingMark := ""
	if score.RisingStar {
		risingMark = " RISING STAR"
	}
	summary := fmt.Sprintf(
		"Tier %s | Score %.0f/100 | %s%s | %s | WR %.0f%% (%dW/%dL) | PnL $%.0f | %d trades | Best at: %s",
		score.Tier, score.CompositeScore, strings.ToUpper(string(score.LifecycleState)), risingMark,
		score.Recommendation, winRate, score.WinCount, score.LossCount,
		score.TotalPNL, score.TotalTrades, score.PrimaryCategory,
	)

	return models.TrackedTrader{
		WalletAddress:     models.NormalizeAddress(score.Address),
		Alias:             score.Username,
		TotalPNL:          score.TotalPNL,
		WinRate:           round2(winRate),
		TradeCount:        score.TotalTrades,
		AvgPositionSize:   score.AvgPositionSize,
		ROI:               round2(roiPct),
		CompositeRank:     round4(score.CompositeScore / 100),
		BankrollTier:      BankrollTierFor(score.TotalVolume),
		TradingStyle:      TradingStyleFor(score),
		EstimatedBankroll: round2(score.TotalVolume),
		MarketsTraded:     score.MarketsTraded,
		ConsistencyScore:  round2(score.ConsistencyScore),
		Category:          category,
		MarketCategories:  marketCategories,
		LifecycleState:    score.LifecycleState,
		RisingStar:        score.RisingStar,
		CategoryWinRates:  score.CategoryWinRates,
		ProfileSummary:    summary,
		Source:            "discovery",
		Active:            true,
		LastTradeDate:     lastTrade,
		LastUpdated:       now,
	}
}

// SeedWhaleTrader builds a roster record for a manually tracked wallet.
// Seeds carry a neutral mid-scale rank so they never outrank scored traders.
func SeedWhaleTrader(alias, address string, profit float64, specialty string, now time.Time) models.TrackedTrader {
	if specialty == "" {
		specialty = "general"
	}
	return models.TrackedTrader{
		WalletAddress:    models.NormalizeAddress(address),
		Alias:            alias,
		TotalPNL:         profit,
		MarketCategories: []string{specialty},
		ProfileSummary:   "Known whale - specialty: " + specialty,
		Active:           true,
		CompositeRank:    0.5,
		LifecycleState:   models.LifecycleUnknown,
		Source:           "seed",
		LastUpdated:      now,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
