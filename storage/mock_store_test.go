package storage

import (
	"context"
	"testing"
	"time"

	"github.com/miyamoto-labs/easypoly/models"
)

func TestUpsertTraderIdempotent(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	trader := models.TrackedTrader{
		WalletAddress: "0xAbCd",
		Alias:         "steady-hands",
		CompositeRank: 0.72,
		BankrollTier:  models.BankrollMid,
		Source:        "discovery",
		Active:        true,
	}

	id1, err := store.UpsertTrader(ctx, trader)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := store.UpsertTrader(ctx, trader)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ across upserts: %q vs %q", id1, id2)
	}
	if len(store.Traders) != 1 {
		t.Errorf("rows = %d, want 1 after repeated upsert", len(store.Traders))
	}

	stored, err := store.GetTrader(ctx, "0xABCD")
	if err != nil || stored == nil {
		t.Fatalf("GetTrader: %v, %v", stored, err)
	}
	if stored.WalletAddress != "0xabcd" {
		t.Errorf("WalletAddress = %q, want lower-cased key", stored.WalletAddress)
	}
}

func TestUpsertPreservesExistingFields(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	lastTrade := time.Now().Add(-24 * time.Hour).UTC()
	full := models.TrackedTrader{
		WalletAddress:  "0xwallet",
		Alias:          "original-alias",
		BankrollTier:   models.BankrollWhale,
		TradingStyle:   "grinder",
		Category:       "politics",
		ProfileSummary: "summary",
		Source:         "discovery",
		LastTradeDate:  &lastTrade,
		Active:         true,
	}
	if _, err := store.UpsertTrader(ctx, full); err != nil {
		t.Fatal(err)
	}

	// A thin refresh (seed re-scan) must not blank out scored fields.
	thin := models.TrackedTrader{
		WalletAddress: "0xWALLET",
		TotalPNL:      999,
		Active:        true,
	}
	if _, err := store.UpsertTrader(ctx, thin); err != nil {
		t.Fatal(err)
	}

	stored, _ := store.GetTrader(ctx, "0xwallet")
	if stored.Alias != "original-alias" {
		t.Errorf("Alias = %q, want preserved", stored.Alias)
	}
	if stored.BankrollTier != models.BankrollWhale {
		t.Errorf("BankrollTier = %q, want preserved", stored.BankrollTier)
	}
	if stored.TradingStyle != "grinder" || stored.Category != "politics" {
		t.Errorf("style/category = %q/%q, want preserved", stored.TradingStyle, stored.Category)
	}
	if stored.LastTradeDate == nil {
		t.Error("LastTradeDate nulled out by thin refresh")
	}
	if stored.TotalPNL != 999 {
		t.Errorf("TotalPNL = %v, want refreshed to 999", stored.TotalPNL)
	}
}

func TestUpsertNeverDeactivates(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	if _, err := store.UpsertTrader(ctx, models.TrackedTrader{WalletAddress: "0xa", Active: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertTrader(ctx, models.TrackedTrader{WalletAddress: "0xb", Active: true}); err != nil {
		t.Fatal(err)
	}

	// A later pass that only sees 0xa leaves 0xb untouched.
	if _, err := store.UpsertTrader(ctx, models.TrackedTrader{WalletAddress: "0xa", Active: true}); err != nil {
		t.Fatal(err)
	}
	top, err := store.TopTraders(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Errorf("active rows = %d, want roster to accumulate", len(top))
	}
}

func TestTopTradersByTier(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	rows := []models.TrackedTrader{
		{WalletAddress: "0xw1", BankrollTier: models.BankrollWhale, CompositeRank: 0.9, Active: true},
		{WalletAddress: "0xw2", BankrollTier: models.BankrollWhale, CompositeRank: 0.8, Active: true},
		{WalletAddress: "0xw3", BankrollTier: models.BankrollWhale, CompositeRank: 0.7, Active: true},
		{WalletAddress: "0xm1", BankrollTier: models.BankrollMicro, CompositeRank: 0.6, Active: true},
		{WalletAddress: "0xoff", BankrollTier: models.BankrollMicro, CompositeRank: 0.95, Active: false},
	}
	for _, r := range rows {
		if _, err := store.UpsertTrader(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.TopTradersByTier(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 2 whales (capped) + 1 micro; the inactive micro row is excluded.
	if len(got) != 3 {
		t.Fatalf("traders = %d, want 3", len(got))
	}
	if got[0].WalletAddress != "0xw1" || got[1].WalletAddress != "0xw2" {
		t.Errorf("whale ordering = %q, %q", got[0].WalletAddress, got[1].WalletAddress)
	}
	if got[2].BankrollTier != models.BankrollMicro {
		t.Errorf("tier[2] = %s, want micro", got[2].BankrollTier)
	}
}

func TestDeactivateInactiveSparesCustomFollows(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	old := time.Now().Add(-90 * 24 * time.Hour).UTC()
	recent := time.Now().Add(-2 * 24 * time.Hour).UTC()

	seedRows := []models.TrackedTrader{
		{WalletAddress: "0xstale", Source: "discovery", LastTradeDate: &old, Active: true},
		{WalletAddress: "0xfresh", Source: "discovery", LastTradeDate: &recent, Active: true},
		{WalletAddress: "0xcustom", Source: "custom", LastTradeDate: &old, Active: true},
	}
	for _, r := range seedRows {
		if _, err := store.UpsertTrader(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := store.DeactivateInactive(ctx, time.Now().Add(-60*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deactivated = %d, want 1", n)
	}

	stale, _ := store.GetTrader(ctx, "0xstale")
	if stale.Active {
		t.Error("stale discovery row should be deactivated")
	}
	custom, _ := store.GetTrader(ctx, "0xcustom")
	if !custom.Active {
		t.Error("custom follow must never be deactivated by the inactivity job")
	}
}

func TestRecordTraderTradeDeduplicates(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	trade := models.TraderTrade{TraderID: "1", MarketID: "mkt-a", Direction: "YES", Amount: 50}
	if err := store.RecordTraderTrade(ctx, trade); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordTraderTrade(ctx, trade); err != nil {
		t.Fatal(err)
	}
	if len(store.Trades) != 1 {
		t.Errorf("trades = %d, want duplicate key absorbed", len(store.Trades))
	}

	keys, err := store.SeenSignalKeys(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := keys[SignalKey{MarketID: "mkt-a", Direction: "YES"}]; !ok {
		t.Error("recorded key missing from SeenSignalKeys")
	}
	if len(keys) != 1 {
		t.Errorf("keys = %d, want 1", len(keys))
	}
}
