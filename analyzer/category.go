package analyzer

import (
	"strings"

	"github.com/miyamoto-labs/easypoly/models"
)

// Classifier maps a market title to a category label. The keyword table is
// the only implementation; it is an interface so the table can be swapped
// without touching the scoring engine.
type Classifier interface {
	Classify(title string) string
}

// CategoryOther is the label for titles matching no keyword set.
const CategoryOther = "other"

type categoryKeywords struct {
	name     string
	keywords []string
}

// Declaration order matters: ties are broken by the first category listed.
var defaultCategories = []categoryKeywords{
	{"politics", []string{
		"election", "president", "congress", "senate", "vote", "biden", "trump",
		"democrat", "republican", "white house", "governor", "mayor", "campaign",
		"political", "legislation", "bill", "law", "policy", "government",
		"supreme court", "impeach", "primary", "nominee", "cabinet",
	}},
	{"sports", []string{
		"nfl", "nba", "mlb", "nhl", "soccer", "football", "basketball", "baseball",
		"hockey", "championship", "playoff", "super bowl", "world series", "finals",
		"mvp", "player", "team", "game", "match", "tournament", "olympics",
		"ufc", "boxing", "tennis", "golf", "f1", "formula 1", "world cup",
	}},
	{"crypto", []string{
		"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "crypto", "coinbase",
		"binance", "blockchain", "defi", "nft", "token", "coin", "wallet", "mining",
		"satoshi", "altcoin", "stablecoin", "usdc", "usdt", "doge", "memecoin",
		"airdrop", "polymarket",
	}},
	{"culture", []string{
		"movie", "film", "actor", "actress", "box office", "oscar", "grammy",
		"emmy", "music", "album", "artist", "celebrity", "pop culture", "tv show",
		"series", "streaming", "netflix", "spotify", "youtube", "influencer",
		"tiktok", "viral", "meme",
	}},
	{"finance", []string{
		"stock", "market", "nasdaq", "s&p", "dow", "trading", "earnings", "ipo",
		"acquisition", "merger", "fed", "interest rate", "inflation", "gdp",
		"unemployment", "bond", "treasury", "recession", "bull market", "bear market",
	}},
	{"mentions", []string{
		"elon musk", "jeff bezos", "mark zuckerberg", "tim cook", "satya nadella",
		"jensen huang", "sam altman", "vitalik buterin", "tweet", "post",
		"follower", "x.com", "twitter",
	}},
}

// KeywordClassifier classifies market titles by keyword overlap.
type KeywordClassifier struct {
	categories []categoryKeywords
}

// NewKeywordClassifier builds a classifier over the default keyword table.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{categories: defaultCategories}
}

// Classify returns the category with the most keyword hits in the title,
// or CategoryOther when nothing matches.
func (kc *KeywordClassifier) Classify(title string) string {
	text := strings.ToLower(title)

	best := CategoryOther
	bestHits := 0
	for _, cat := range kc.categories {
		hits := 0
		for _, kw := range cat.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = cat.name
			bestHits = hits
		}
	}
	return best
}

// categoryNames returns the classifier's labels in declaration order.
func (kc *KeywordClassifier) categoryNames() []string {
	names := make([]string, 0, len(kc.categories))
	for _, cat := range kc.categories {
		names = append(names, cat.name)
	}
	return names
}

// CategoryProfile summarizes a trader's exposure per category.
type CategoryProfile struct {
	Primary   string
	Breakdown map[string]int     // category -> pct of distinct markets traded
	WinRates  map[string]float64 // category -> win rate pct, only where >=5 resolved
}

// minResolvedForCategoryWR gates per-category win rates to categories with
// enough resolved positions to be meaningful.
const minResolvedForCategoryWR = 5

// AnalyzeCategories derives a trader's category distribution from trade
// titles and per-category win rates from closed positions.
func AnalyzeCategories(classifier Classifier, profile *models.TraderProfile) CategoryProfile {
	counts := make(map[string]int)
	wins := make(map[string]int)
	totals := make(map[string]int)
	seenMarkets := make(map[string]struct{})

	// Count market exposure by category, one vote per distinct market.
	for _, trade := range profile.Trades {
		if _, seen := seenMarkets[trade.ConditionID]; seen {
			continue
		}
		seenMarkets[trade.ConditionID] = struct{}{}
		counts[classifier.Classify(trade.Title)]++
	}

	for _, pos := range profile.ClosedPositions {
		cat := classifier.Classify(pos.Title)
		totals[cat]++
		if pos.RealizedPNL > 0 {
			wins[cat]++
		}
	}

	result := CategoryProfile{
		Primary:   "unknown",
		Breakdown: make(map[string]int),
		WinRates:  make(map[string]float64),
	}
	if len(counts) == 0 {
		return result
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	for cat, n := range counts {
		result.Breakdown[cat] = int(float64(n)/float64(total)*100 + 0.5)
	}

	for cat, w := range wins {
		if totals[cat] >= minResolvedForCategoryWR {
			result.WinRates[cat] = round1(float64(w) / float64(totals[cat]) * 100)
		}
	}

	// Primary category: highest distinct-market count excluding "other",
	// ties broken by declaration order.
	if kc, ok := classifier.(*KeywordClassifier); ok {
		best, bestCount := "", 0
		for _, name := range kc.categoryNames() {
			if counts[name] > bestCount {
				best = name
				bestCount = counts[name]
			}
		}
		if best != "" {
			result.Primary = best
		}
	} else {
		best, bestCount := "", 0
		for cat, n := range counts {
			if cat == CategoryOther {
				continue
			}
			if n > bestCount || (n == bestCount && cat < best) {
				best = cat
				bestCount = n
			}
		}
		if best != "" {
			result.Primary = best
		}
	}

	return result
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
