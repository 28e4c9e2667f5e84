package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/config"
	"github.com/miyamoto-labs/easypoly/storage"
)

// seedQualifyingTrader loads the mock client with enough history for the
// address to clear every disqualification check: 20 trades across 8 days
// and 6 markets, $10k volume, and 10 resolved positions at a 60% win rate.
func seedQualifyingTrader(client *api.MockDataClient, address string) {
	now := time.Now().UTC()

	var trades []api.DataTrade
	for i := 0; i < 20; i++ {
		trades = append(trades, api.DataTrade{
			ProxyWallet: address,
			Side:        "BUY",
			ConditionID: "0xmarket" + string(rune('a'+i%6)),
			Size:        1000,
			Price:       0.5,
			Timestamp:   now.AddDate(0, 0, -(2 + i%8)).Unix(),
			Title:       "Will the Fed cut interest rates in March?",
			Name:        "steady-hands",
		})
	}
	client.Trades[address] = trades

	var closed []api.ClosedPosition
	for i := 0; i < 10; i++ {
		pnl := 50.0
		if i >= 6 {
			pnl = -25
		}
		initial := 200.0
		if i == 0 {
			initial = 400
		}
		closed = append(closed, api.ClosedPosition{
			ConditionID:  "0xmarket" + string(rune('a'+i%6)),
			InitialValue: api.Numeric(initial),
			RealizedPNL:  api.Numeric(pnl),
			Timestamp:    now.AddDate(0, 0, -10).Unix(),
			Title:        "Will the Fed cut interest rates in March?",
		})
	}
	client.ClosedPositions[address] = closed
	client.PortfolioValues[address] = 5000
}

// seedThinTrader gives the address too few trades to qualify.
func seedThinTrader(client *api.MockDataClient, address string) {
	now := time.Now().UTC()
	client.Trades[address] = []api.DataTrade{
		{ProxyWallet: address, Side: "BUY", ConditionID: "0xm1", Size: 10, Price: 0.5, Timestamp: now.AddDate(0, 0, -1).Unix()},
		{ProxyWallet: address, Side: "BUY", ConditionID: "0xm2", Size: 10, Price: 0.5, Timestamp: now.AddDate(0, 0, -2).Unix()},
	}
}

func TestDiscoveryRunLeaderboard(t *testing.T) {
	client := api.NewMockDataClient()
	store := storage.NewMockStore()

	const goodAddr = "poly-alpha-one"
	const thinAddr = "poly-thin-two"
	seedQualifyingTrader(client, goodAddr)
	seedThinTrader(client, thinAddr)
	client.Leaderboard = []api.LeaderboardEntry{
		{ProxyWallet: goodAddr, UserName: "steady-hands", Rank: 1, PNL: 12000, Vol: 80000},
		{ProxyWallet: thinAddr, UserName: "tourist", Rank: 2, PNL: 300, Vol: 500},
	}

	cfg := config.DiscoveryConfig{
		Strategy:        "leaderboard",
		LeaderboardTopN: 50,
		BatchSize:       10,
		SeedWhales: []config.SeedWhale{
			{Alias: "TheWhale", Address: "0xWhaleSeed", Profit: 2000000, Specialty: "politics"},
		},
	}

	d := NewDiscovery(cfg, client, store)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ctx := context.Background()
	good, err := store.GetTrader(ctx, goodAddr)
	if err != nil || good == nil {
		t.Fatalf("qualified trader not persisted: %v, %v", good, err)
	}
	if good.Source != "discovery" {
		t.Errorf("Source = %q, want discovery", good.Source)
	}
	if good.Alias != "steady-hands" {
		t.Errorf("Alias = %q, want username carried through", good.Alias)
	}
	if good.CompositeRank <= 0 || good.CompositeRank > 1 {
		t.Errorf("CompositeRank = %v, want within (0, 1]", good.CompositeRank)
	}

	thin, err := store.GetTrader(ctx, thinAddr)
	if err != nil {
		t.Fatal(err)
	}
	if thin != nil {
		t.Error("disqualified trader should not be persisted")
	}

	whale, err := store.GetTrader(ctx, "0xwhaleseed")
	if err != nil || whale == nil {
		t.Fatalf("seed whale not persisted: %v, %v", whale, err)
	}
	if whale.Source != "seed" || whale.Alias != "TheWhale" {
		t.Errorf("seed whale = %q/%q, want seed/TheWhale", whale.Source, whale.Alias)
	}

	if len(store.Audit) != 1 {
		t.Fatalf("audit events = %d, want 1", len(store.Audit))
	}
	audit := store.Audit[0]
	if audit.EventType != "trader_discovery" || audit.Source != "discovery" {
		t.Errorf("audit = %q/%q", audit.EventType, audit.Source)
	}
	if audit.EventData["qualified"] != 1 {
		t.Errorf("audit qualified = %v, want 1", audit.EventData["qualified"])
	}
}

func TestDiscoverySeedWhaleDoesNotOverrideQualified(t *testing.T) {
	client := api.NewMockDataClient()
	store := storage.NewMockStore()

	const addr = "poly-alpha-one"
	seedQualifyingTrader(client, addr)
	client.Leaderboard = []api.LeaderboardEntry{
		{ProxyWallet: addr, UserName: "steady-hands", Rank: 1, PNL: 12000, Vol: 80000},
	}

	cfg := config.DiscoveryConfig{
		Strategy:        "leaderboard",
		LeaderboardTopN: 50,
		BatchSize:       10,
		SeedWhales: []config.SeedWhale{
			{Alias: "ShadowAlias", Address: "Poly-Alpha-One", Profit: 1, Specialty: "sports"},
		},
	}

	d := NewDiscovery(cfg, client, store)
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, _ := store.GetTrader(context.Background(), addr)
	if stored == nil {
		t.Fatal("trader missing")
	}
	if stored.Source != "discovery" {
		t.Errorf("Source = %q, want the scored row to win over the seed", stored.Source)
	}
	if stored.Alias != "steady-hands" {
		t.Errorf("Alias = %q, want scored alias preserved", stored.Alias)
	}
	if len(store.Traders) != 1 {
		t.Errorf("rows = %d, want 1", len(store.Traders))
	}
}

func TestDiscoveryFailsWithoutCandidates(t *testing.T) {
	client := api.NewMockDataClient()
	store := storage.NewMockStore()

	cfg := config.DiscoveryConfig{Strategy: "leaderboard", LeaderboardTopN: 50, BatchSize: 10}
	d := NewDiscovery(cfg, client, store)
	if err := d.Run(context.Background()); err == nil {
		t.Error("expected error when sourcing yields no candidates")
	}
	if len(store.Traders) != 0 {
		t.Errorf("rows = %d, want none persisted", len(store.Traders))
	}
}

func TestMarketSourceDeduplicates(t *testing.T) {
	client := api.NewMockDataClient()
	client.TopMarkets = []api.GammaMarket{
		{ID: "1", ConditionID: "0xc1", Question: "Market one"},
		{ID: "2", ConditionID: "0xc2", Question: "Market two"},
	}
	client.MarketTraders["0xc1"] = []api.MarketHolder{
		{ProxyWallet: "0xaaa", UserName: "alpha", PNL: 100},
		{ProxyWallet: "0xbbb", UserName: "beta", PNL: 50},
	}
	client.MarketTraders["0xc2"] = []api.MarketHolder{
		{ProxyWallet: "0xaaa", UserName: "alpha-dup", PNL: 999},
		{ProxyWallet: "0xccc", UserName: "gamma", PNL: 25},
	}

	src := &MarketSource{client: client, marketCount: 10, tradersPerMarket: 20}
	candidates, err := src.Gather(context.Background())
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("candidates = %d, want 3 unique addresses", len(candidates))
	}
	// First sighting wins on duplicates.
	if candidates["0xaaa"].Username != "alpha" {
		t.Errorf("duplicate address username = %q, want first sighting kept", candidates["0xaaa"].Username)
	}
}

func TestLeaderboardSourceKeepsHighestPNL(t *testing.T) {
	client := api.NewMockDataClient()
	client.Leaderboard = []api.LeaderboardEntry{
		{ProxyWallet: "0xaaa", UserName: "alpha", Rank: 1, PNL: 5000, Vol: 100},
	}

	src := &LeaderboardSource{client: client, topN: 50}
	candidates, err := src.Gather(context.Background())
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	// Four period/order combinations all hit the same mock listing.
	if client.Calls["GetLeaderboard"] != 4 {
		t.Errorf("GetLeaderboard calls = %d, want 4", client.Calls["GetLeaderboard"])
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want merged to 1", len(candidates))
	}
	if candidates["0xaaa"].PNL != 5000 {
		t.Errorf("PNL = %v, want 5000", candidates["0xaaa"].PNL)
	}
}
