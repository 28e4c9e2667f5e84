package analyzer

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/models"
)

// Candidate is a trader address surfaced by a sourcing strategy, carrying
// whatever display metadata the source happened to include.
type Candidate struct {
	Address      string
	Username     string
	ProfileImage string
	Rank         int
	PNL          float64
	Volume       float64
}

const openPositionsFetchLimit = 500

// CollectProfile gathers a candidate's trades, open and closed positions,
// and portfolio value concurrently and assembles a TraderProfile. Each input
// is independently fallible: a failed fetch yields an empty slice or zero
// for that input, and the scoring gates handle the partial data.
func CollectProfile(ctx context.Context, client api.DataClient, cand Candidate) *models.TraderProfile {
	profile := &models.TraderProfile{
		Address:           cand.Address,
		Username:          cand.Username,
		ProfileImage:      cand.ProfileImage,
		LeaderboardRank:   cand.Rank,
		LeaderboardPNL:    cand.PNL,
		LeaderboardVolume: cand.Volume,
	}

	var (
		wg        sync.WaitGroup
		trades    []api.DataTrade
		open      []api.OpenPosition
		closed    []api.ClosedPosition
		portfolio float64
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		var err error
		if trades, err = client.GetAllTrades(ctx, cand.Address); err != nil {
			log.Printf("[profile] trades fetch failed for %s: %v", models.ShortAddress(cand.Address), err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if open, err = client.GetPositions(ctx, cand.Address, openPositionsFetchLimit); err != nil {
			log.Printf("[profile] positions fetch failed for %s: %v", models.ShortAddress(cand.Address), err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if closed, err = client.GetAllClosedPositions(ctx, cand.Address); err != nil {
			log.Printf("[profile] closed positions fetch failed for %s: %v", models.ShortAddress(cand.Address), err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if portfolio, err = client.GetPortfolioValue(ctx, cand.Address); err != nil {
			log.Printf("[profile] portfolio value fetch failed for %s: %v", models.ShortAddress(cand.Address), err)
		}
	}()
	wg.Wait()

	for _, t := range trades {
		profile.Trades = append(profile.Trades, models.Trade{
			Side:        t.Side,
			Size:        t.Size.Float64(),
			Price:       t.Price.Float64(),
			Timestamp:   t.Timestamp,
			ConditionID: t.ConditionID,
			Title:       t.Title,
			Outcome:     t.Outcome,
			Asset:       t.Asset,
		})
		if profile.Username == "" && t.Name != "" {
			profile.Username = t.Name
		}
	}

	for _, p := range open {
		profile.OpenPositions = append(profile.OpenPositions, models.Position{
			ConditionID:  p.ConditionID,
			Title:        p.Title,
			Outcome:      p.Outcome,
			Size:         p.Size.Float64(),
			AvgPrice:     p.AvgPrice.Float64(),
			CurrentPrice: p.CurPrice.Float64(),
			InitialValue: p.InitialValue.Float64(),
			CurrentValue: p.CurrentValue.Float64(),
			CashPNL:      p.CashPNL.Float64(),
			PctPNL:       p.PercentPNL.Float64(),
		})
	}

	for _, p := range closed {
		profile.ClosedPositions = append(profile.ClosedPositions, models.Position{
			ConditionID:  p.ConditionID,
			Title:        p.Title,
			Outcome:      p.Outcome,
			Size:         p.Size.Float64(),
			AvgPrice:     p.AvgPrice.Float64(),
			CurrentPrice: p.CurPrice.Float64(),
			InitialValue: p.InitialValue.Float64(),
			CurrentValue: p.CurrentValue.Float64(),
			CashPNL:      p.CashPNL.Float64(),
			PctPNL:       p.PercentPNL.Float64(),
			IsClosed:     true,
			RealizedPNL:  p.RealizedPNL.Float64(),
			Timestamp:    p.Timestamp,
		})
	}

	profile.PortfolioValue = portfolio
	profile.MarketsSpecialized = topMarketsByPNL(profile.ClosedPositions, 5)

	return profile
}

// topMarketsByPNL returns up to n market IDs with the highest positive
// summed realized P&L, descending.
func topMarketsByPNL(closed []models.Position, n int) []string {
	marketPNL := make(map[string]float64)
	for _, pos := range closed {
		marketPNL[pos.ConditionID] += pos.RealizedPNL
	}

	type entry struct {
		id  string
		pnl float64
	}
	entries := make([]entry, 0, len(marketPNL))
	for id, pnl := range marketPNL {
		entries = append(entries, entry{id, pnl})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].pnl != entries[j].pnl {
			return entries[i].pnl > entries[j].pnl
		}
		return entries[i].id < entries[j].id
	})

	var top []string
	for _, e := range entries {
		if len(top) >= n || e.pnl <= 0 {
			break
		}
		top = append(top, e.id)
	}
	return top
}
