package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/miyamoto-labs/easypoly/analyzer"
	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/config"
)

// CandidateSource produces the address pool for one discovery pass. Both
// strategies return candidates keyed by address, already deduplicated.
type CandidateSource interface {
	Name() string
	Gather(ctx context.Context) (map[string]analyzer.Candidate, error)
}

// NewCandidateSource picks the sourcing strategy from configuration.
func NewCandidateSource(cfg config.DiscoveryConfig, client api.DataClient) CandidateSource {
	if cfg.Strategy == "leaderboard" {
		return &LeaderboardSource{client: client, topN: cfg.LeaderboardTopN}
	}
	return &MarketSource{
		client:           client,
		marketCount:      cfg.MarketCount,
		tradersPerMarket: cfg.TradersPerMarket,
	}
}

// LeaderboardSource pulls candidates from the ranked leaderboard across
// time-period and sort-order combinations, keeping the highest-P&L entry
// seen per address.
type LeaderboardSource struct {
	client api.DataClient
	topN   int
}

func (s *LeaderboardSource) Name() string { return "leaderboard" }

func (s *LeaderboardSource) Gather(ctx context.Context) (map[string]analyzer.Candidate, error) {
	limit := s.topN
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	periods := []api.TimePeriod{api.PeriodAll, api.PeriodMonth}
	orders := []string{"PNL", "VOL"}

	candidates := make(map[string]analyzer.Candidate)
	fetched := 0
	for _, period := range periods {
		for _, orderBy := range orders {
			entries, err := s.client.GetLeaderboard(ctx, api.CategoryOverall, period, orderBy, limit)
			if err != nil {
				if ctx.Err() != nil {
					return candidates, ctx.Err()
				}
				log.Printf("[discovery] leaderboard %s/%s fetch failed: %v", period, orderBy, err)
				continue
			}
			fetched++

			for _, entry := range entries {
				addr := entry.ProxyWallet
				if addr == "" {
					continue
				}
				if prev, ok := candidates[addr]; ok && prev.PNL >= entry.PNL.Float64() {
					continue
				}
				candidates[addr] = analyzer.Candidate{
					Address:      addr,
					Username:     entry.UserName,
					ProfileImage: entry.ProfileImage,
					Rank:         int(entry.Rank.Float64()),
					PNL:          entry.PNL.Float64(),
					Volume:       entry.Vol.Float64(),
				}
			}
		}
	}

	if fetched == 0 {
		return nil, fmt.Errorf("discovery: all leaderboard fetches failed")
	}
	log.Printf("[discovery] leaderboard sourcing found %d unique candidates", len(candidates))
	return candidates, nil
}

// MarketSource scans the top markets by volume and collects the best
// traders within each one. It yields a far larger and more specialized pool
// than the leaderboard for the same fetch budget.
type MarketSource struct {
	client           api.DataClient
	marketCount      int
	tradersPerMarket int
}

func (s *MarketSource) Name() string { return "market" }

func (s *MarketSource) Gather(ctx context.Context) (map[string]analyzer.Candidate, error) {
	marketCount := s.marketCount
	if marketCount <= 0 {
		marketCount = 200
	}
	perMarket := s.tradersPerMarket
	if perMarket <= 0 {
		perMarket = 20
	}

	markets, err := s.client.GetTopMarkets(ctx, marketCount)
	if err != nil {
		return nil, fmt.Errorf("discovery: fetch top markets: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("discovery: no markets available")
	}
	log.Printf("[discovery] scanning %d markets for top traders", len(markets))

	candidates := make(map[string]analyzer.Candidate)
	for i, market := range markets {
		if ctx.Err() != nil {
			return candidates, ctx.Err()
		}

		marketID := market.ConditionID
		if marketID == "" {
			marketID = market.ID
		}
		if marketID == "" {
			continue
		}

		holders, err := s.client.GetMarketTopTraders(ctx, marketID, perMarket)
		if err != nil {
			log.Printf("[discovery] market %s trader fetch failed: %v", marketID, err)
			continue
		}

		for _, holder := range holders {
			addr := holder.ProxyWallet
			if addr == "" {
				continue
			}
			if _, ok := candidates[addr]; ok {
				continue
			}
			candidates[addr] = analyzer.Candidate{
				Address:      addr,
				Username:     holder.UserName,
				ProfileImage: holder.ProfileImage,
				PNL:          holder.PNL.Float64(),
				Volume:       holder.Vol.Float64(),
			}
		}

		if (i+1)%50 == 0 {
			log.Printf("[discovery] scanned %d/%d markets, %d unique candidates", i+1, len(markets), len(candidates))
		}
	}

	log.Printf("[discovery] market sourcing found %d unique candidates from %d markets", len(candidates), len(markets))
	return candidates, nil
}
