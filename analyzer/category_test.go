package analyzer

import (
	"fmt"
	"testing"

	"github.com/miyamoto-labs/easypoly/models"
)

func TestClassify(t *testing.T) {
	kc := NewKeywordClassifier()

	tests := []struct {
		title string
		want  string
	}{
		{"Will Trump win the 2028 election?", "politics"},
		{"Chiefs vs Eagles: who wins the Super Bowl?", "sports"},
		{"Will Bitcoin hit $150k by June?", "crypto"},
		{"Will the new Dune movie break the box office record?", "culture"},
		{"Will the Fed cut interest rates in March?", "finance"},
		{"Will Elon Musk tweet about Mars this week?", "mentions"},
		{"Will it rain in Paris on Friday?", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := kc.Classify(tt.title); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestClassifyTieBreaksByDeclarationOrder(t *testing.T) {
	kc := NewKeywordClassifier()
	// "vote" hits politics, "game" hits sports, one keyword each.
	// Politics is declared first so it wins the tie.
	if got := kc.Classify("Will the vote delay the game?"); got != "politics" {
		t.Errorf("tie broke to %q, want politics", got)
	}
}

func TestAnalyzeCategories(t *testing.T) {
	profile := &models.TraderProfile{}

	// Six distinct politics markets, two crypto markets. Duplicate trades on
	// the same market must not inflate the breakdown.
	for i := 0; i < 6; i++ {
		title := fmt.Sprintf("Will candidate %d win the election?", i)
		id := fmt.Sprintf("pol-%d", i)
		profile.Trades = append(profile.Trades,
			models.Trade{ConditionID: id, Title: title},
			models.Trade{ConditionID: id, Title: title},
		)
	}
	for i := 0; i < 2; i++ {
		profile.Trades = append(profile.Trades, models.Trade{
			ConditionID: fmt.Sprintf("cry-%d", i),
			Title:       "Will Bitcoin close above $100k?",
		})
	}

	// Six resolved politics positions, four wins. Crypto has too few
	// resolved positions for a win rate.
	for i := 0; i < 6; i++ {
		pnl := 10.0
		if i >= 4 {
			pnl = -10.0
		}
		profile.ClosedPositions = append(profile.ClosedPositions, models.Position{
			ConditionID: fmt.Sprintf("pol-%d", i),
			Title:       "Will the president sign the bill?",
			IsClosed:    true,
			RealizedPNL: pnl,
		})
	}
	profile.ClosedPositions = append(profile.ClosedPositions, models.Position{
		ConditionID: "cry-0",
		Title:       "Will Bitcoin close above $100k?",
		IsClosed:    true,
		RealizedPNL: 25,
	})

	result := AnalyzeCategories(NewKeywordClassifier(), profile)

	if result.Primary != "politics" {
		t.Errorf("Primary = %q, want politics", result.Primary)
	}
	if got := result.Breakdown["politics"]; got != 75 {
		t.Errorf("Breakdown[politics] = %d, want 75", got)
	}
	if got := result.Breakdown["crypto"]; got != 25 {
		t.Errorf("Breakdown[crypto] = %d, want 25", got)
	}
	if got, ok := result.WinRates["politics"]; !ok || !floatEquals(got, 66.7, 0.1) {
		t.Errorf("WinRates[politics] = %v (present=%v), want ~66.7", got, ok)
	}
	if _, ok := result.WinRates["crypto"]; ok {
		t.Error("crypto win rate should be suppressed below 5 resolved positions")
	}
}

func TestAnalyzeCategoriesEmptyProfile(t *testing.T) {
	result := AnalyzeCategories(NewKeywordClassifier(), &models.TraderProfile{})
	if result.Primary != "unknown" {
		t.Errorf("Primary = %q, want unknown for empty profile", result.Primary)
	}
	if len(result.Breakdown) != 0 || len(result.WinRates) != 0 {
		t.Error("empty profile should yield empty maps")
	}
}
