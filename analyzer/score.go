package analyzer

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/models"
)

// Scoring weights. Must sum to 1.0.
const (
	WeightROI         = 0.20
	WeightWinRate     = 0.20
	WeightConsistency = 0.15
	WeightRiskMgmt    = 0.15
	WeightVolume      = 0.05
	WeightEdge        = 0.10
	WeightRecency     = 0.15
)

// Minimum thresholds for qualification.
const (
	MinTrades            = 15
	MinVolumeUSD         = 500.0
	MinActiveDays        = 5
	MinResolvedPositions = 5
	InactivityCutoffDays = 30.0
)

// Lifecycle state thresholds in days.
const (
	lifecycleHotDays        = 7.0
	lifecycleConsistentDays = 30.0
	lifecycleCoolingDays    = 60.0
)

// Rising star detection thresholds.
const (
	risingStarMaxTrades  = 100
	risingStarMinWinRate = 65.0
)

// Bot detection patterns.
const (
	botHexAddressThreshold = 0.8
	botPerfectWinRate      = 99.0
)

var botUsernamePatterns = []string{"updown", "bot", "test", "auto"}

// Data quality cutoffs. A trader at the pagination cap has truncated
// history and cannot be scored honestly.
const (
	suspiciousWinRatePct    = 95.0
	suspiciousMinResolved   = 20
	zeroLossMinResolved     = 10
	truncatedTradeThreshold = api.MaxRecordsPerUser - 1
)

// sigmoid maps x onto 0-100 with a smooth S-curve centered at midpoint.
func sigmoid(x, midpoint, steepness float64) float64 {
	v := math.Exp(-steepness * (x - midpoint))
	if math.IsInf(v, 1) {
		return 0
	}
	return 100 / (1 + v)
}

// logScale gives diminishing returns on raw magnitudes, capped at cap.
func logScale(x, base, cap float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Min(cap, math.Log(x+1)/math.Log(base)*(cap/5))
}

// Score runs the full scoring pass over one trader profile: raw aggregates,
// the disqualification cascade, seven weighted factors, tier assignment, and
// the lifecycle and rising star checks. Disqualified scores carry the
// aggregates computed before the failing check and zero sub-scores.
func Score(profile *models.TraderProfile, classifier Classifier, now time.Time) *models.TraderScore {
	username := profile.Username
	if username == "" {
		username = models.ShortAddress(profile.Address)
	}

	score := &models.TraderScore{
		Address:            profile.Address,
		Username:           username,
		ProfileImage:       profile.ProfileImage,
		LifecycleState:     models.LifecycleUnknown,
		MarketsSpecialized: profile.MarketsSpecialized,
	}

	score.TotalTrades = len(profile.Trades)
	for _, t := range profile.Trades {
		score.TotalVolume += t.Notional()
	}
	score.CurrentPositions = len(profile.OpenPositions)
	score.PortfolioValue = profile.PortfolioValue

	marketIDs := make(map[string]struct{})
	tradeDays := make(map[string]struct{})
	for _, t := range profile.Trades {
		marketIDs[t.ConditionID] = struct{}{}
		tradeDays[t.Time().Format("2006-01-02")] = struct{}{}
	}
	score.MarketsTraded = len(marketIDs)
	score.ActiveDays = len(tradeDays)

	// Disqualification cascade. Checks run in order and short-circuit.
	if score.TotalTrades < MinTrades {
		return disqualify(score, fmt.Sprintf("Too few trades (%d < %d)", score.TotalTrades, MinTrades))
	}
	if score.TotalVolume < MinVolumeUSD {
		return disqualify(score, fmt.Sprintf("Volume too low ($%.0f < $%.0f)", score.TotalVolume, MinVolumeUSD))
	}
	if score.ActiveDays < MinActiveDays {
		return disqualify(score, fmt.Sprintf("Not active enough (%d days < %d)", score.ActiveDays, MinActiveDays))
	}

	var latestTrade int64
	for _, t := range profile.Trades {
		if t.Timestamp > latestTrade {
			latestTrade = t.Timestamp
		}
	}
	score.LastTradeTimestamp = latestTrade
	daysSinceLastTrade := now.Sub(time.Unix(latestTrade, 0)).Hours() / 24
	if daysSinceLastTrade > InactivityCutoffDays {
		return disqualify(score, fmt.Sprintf("Inactive (%.0f days since last trade)", daysSinceLastTrade))
	}

	for _, pos := range profile.ClosedPositions {
		if pos.RealizedPNL > 0 {
			score.WinCount++
		} else if pos.RealizedPNL < 0 {
			score.LossCount++
		}
	}
	totalResolved := score.ResolvedPositions()

	if totalResolved < MinResolvedPositions {
		return disqualify(score, fmt.Sprintf("Not enough resolved positions (%d < %d)", totalResolved, MinResolvedPositions))
	}

	winRatePct := score.WinRatePct()

	// Data quality checks. These catch truncated or filtered API responses
	// that would otherwise score absurdly well.
	if winRatePct >= suspiciousWinRatePct && totalResolved >= suspiciousMinResolved {
		return disqualify(score, fmt.Sprintf("Suspicious win rate (%.1f%% - likely incomplete API data)", winRatePct))
	}
	if score.TotalTrades >= truncatedTradeThreshold {
		return disqualify(score, fmt.Sprintf("Trade count at API limit (%d) - incomplete data", score.TotalTrades))
	}
	if score.LossCount == 0 && totalResolved >= zeroLossMinResolved {
		return disqualify(score, fmt.Sprintf("Zero losses in %d trades - likely API filtering issue", totalResolved))
	}

	if isBot, reason := detectBotPatterns(score.Address, score.Username, winRatePct, score.TotalTrades); isBot {
		return disqualify(score, "Bot detected: "+reason)
	}

	var realizedPNL, unrealizedPNL float64
	for _, pos := range profile.ClosedPositions {
		realizedPNL += pos.RealizedPNL
	}
	for _, pos := range profile.OpenPositions {
		unrealizedPNL += pos.CashPNL
	}
	score.TotalPNL = realizedPNL + unrealizedPNL

	var positionSizes []float64
	for _, pos := range profile.ClosedPositions {
		if pos.InitialValue > 0 {
			positionSizes = append(positionSizes, pos.InitialValue)
		}
	}
	for _, pos := range profile.OpenPositions {
		if pos.InitialValue > 0 {
			positionSizes = append(positionSizes, pos.InitialValue)
		}
	}
	if len(positionSizes) > 0 {
		var sum, max float64
		for _, v := range positionSizes {
			sum += v
			if v > max {
				max = v
			}
		}
		score.AvgPositionSize = sum / float64(len(positionSizes))
		score.MaxPositionSize = max
	}

	categories := AnalyzeCategories(classifier, profile)
	score.PrimaryCategory = categories.Primary
	score.CategoryBreakdown = categories.Breakdown
	score.CategoryWinRates = categories.WinRates

	// Factor 1: ROI
	if score.TotalVolume > 0 {
		roiPct := score.TotalPNL / score.TotalVolume * 100
		score.ROIScore = sigmoid(roiPct, 0, 0.15)
	} else {
		score.ROIScore = 50
	}

	// Factor 2: win rate over resolved positions
	winRate := float64(score.WinCount) / float64(totalResolved)
	if totalResolved >= 5 {
		score.WinRateScore = sigmoid((winRate-0.5)*200, 0, 0.1)
	} else {
		score.WinRateScore = 50
	}

	// Factor 3: consistency, via spread of entry prices around 0.5
	var entryPrices []float64
	for _, t := range profile.Trades {
		if t.Notional() != 0 {
			entryPrices = append(entryPrices, t.Price)
		}
	}
	if len(entryPrices) >= 5 {
		var sumSq float64
		for _, p := range entryPrices {
			sumSq += (p - 0.5) * (p - 0.5)
		}
		returnsStd := math.Sqrt(sumSq / float64(len(entryPrices)))
		score.ConsistencyScore = sigmoid(returnsStd*-100, 0, 0.1)
	} else {
		score.ConsistencyScore = 50
	}

	// Factor 4: risk management, punishes outsized max positions
	if score.AvgPositionSize > 0 && score.MaxPositionSize > 0 {
		positionRatio := score.MaxPositionSize / score.AvgPositionSize
		score.RiskMgmtScore = sigmoid(positionRatio*-10, 3, 0.2)
	} else {
		score.RiskMgmtScore = 50
	}

	// Factor 5: volume
	score.VolumeScore = logScale(score.TotalVolume, 10, 100)

	// Factor 6: edge over coin-flip
	if totalResolved >= 5 {
		edge := winRate - 0.5
		score.EdgeScore = sigmoid(edge*100, 0, 0.08)
	} else {
		score.EdgeScore = 30
	}

	// Factor 7: recency step function
	switch {
	case daysSinceLastTrade <= 1:
		score.RecencyScore = 100
	case daysSinceLastTrade <= 7:
		score.RecencyScore = 85
	case daysSinceLastTrade <= 30:
		score.RecencyScore = 60
	case daysSinceLastTrade <= 90:
		score.RecencyScore = 30
	default:
		score.RecencyScore = 10
	}

	score.CompositeScore = WeightROI*score.ROIScore +
		WeightWinRate*score.WinRateScore +
		WeightConsistency*score.ConsistencyScore +
		WeightRiskMgmt*score.RiskMgmtScore +
		WeightVolume*score.VolumeScore +
		WeightEdge*score.EdgeScore +
		WeightRecency*score.RecencyScore

	score.Tier, score.Recommendation = tierFor(score.CompositeScore)

	score.LifecycleState, score.LastHotStreak = detectLifecycleState(profile, now)
	score.RisingStar = detectRisingStar(score, score.LifecycleState)

	return score
}

func disqualify(score *models.TraderScore, reason string) *models.TraderScore {
	score.Disqualified = true
	score.DisqualifyReason = reason
	return score
}

func tierFor(composite float64) (models.Tier, string) {
	switch {
	case composite >= 80:
		return models.TierS, "Elite trader. Strong copy candidate."
	case composite >= 65:
		return models.TierA, "High-quality trader. Worth following closely."
	case composite >= 50:
		return models.TierB, "Decent trader. Monitor before copying."
	case composite >= 35:
		return models.TierC, "Below average. Proceed with caution."
	default:
		return models.TierD, "Weak track record. Not recommended."
	}
}

// detectLifecycleState buckets recency of activity. Hot additionally
// requires positive realized P&L over the trailing seven days.
func detectLifecycleState(profile *models.TraderProfile, now time.Time) (models.LifecycleState, *time.Time) {
	if len(profile.Trades) == 0 {
		return models.LifecycleCold, nil
	}

	var latest int64
	for _, t := range profile.Trades {
		if t.Timestamp > latest {
			latest = t.Timestamp
		}
	}
	daysSince := now.Sub(time.Unix(latest, 0)).Hours() / 24

	sevenDaysAgo := now.Add(-7 * 24 * time.Hour).Unix()
	var pnl7d float64
	for _, pos := range profile.ClosedPositions {
		if pos.Timestamp >= sevenDaysAgo {
			pnl7d += pos.RealizedPNL
		}
	}

	if daysSince <= lifecycleHotDays && pnl7d > 0 {
		streak := time.Unix(latest, 0).UTC()
		return models.LifecycleHot, &streak
	}
	if daysSince <= lifecycleConsistentDays {
		return models.LifecycleConsistent, nil
	}
	if daysSince <= lifecycleCoolingDays {
		return models.LifecycleCooling, nil
	}
	return models.LifecycleCold, nil
}

// detectRisingStar flags strong but not-yet-famous traders: either a high
// win rate early in their journey, or high recency plus a strong composite.
func detectRisingStar(score *models.TraderScore, lifecycle models.LifecycleState) bool {
	if lifecycle != models.LifecycleHot && lifecycle != models.LifecycleConsistent {
		return false
	}
	totalResolved := score.ResolvedPositions()
	if totalResolved < MinResolvedPositions {
		return false
	}

	winRate := score.WinRatePct()
	if winRate >= risingStarMinWinRate && score.TotalTrades < risingStarMaxTrades {
		return true
	}
	if score.RecencyScore >= 85 && score.CompositeScore >= 70 {
		return true
	}
	return false
}

// detectBotPatterns flags automated or wash-trading accounts.
func detectBotPatterns(address, username string, winRatePct float64, totalTrades int) (bool, string) {
	if address != "" {
		hexChars := 0
		for _, c := range strings.ToLower(address) {
			if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
				hexChars++
			}
		}
		hexRatio := float64(hexChars) / float64(len(address))
		if hexRatio >= botHexAddressThreshold {
			return true, fmt.Sprintf("Hex address pattern (%.0f%% hex chars)", hexRatio*100)
		}
	}

	lower := strings.ToLower(username)
	for _, pattern := range botUsernamePatterns {
		if strings.Contains(lower, pattern) {
			return true, fmt.Sprintf("Bot-like username contains %q", pattern)
		}
	}

	if winRatePct >= botPerfectWinRate && totalTrades >= MinTrades {
		return true, fmt.Sprintf("Suspicious win rate (%.1f%% with %d trades)", winRatePct, totalTrades)
	}

	return false, ""
}
