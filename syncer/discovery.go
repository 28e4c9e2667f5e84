package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/miyamoto-labs/easypoly/analyzer"
	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/config"
	"github.com/miyamoto-labs/easypoly/models"
	"github.com/miyamoto-labs/easypoly/storage"
)

// Discovery runs one full discovery pass: gather candidates, build and
// score a profile for each, and persist everything that qualifies. Seed
// whales from configuration are merged in at the end so a manually
// curated wallet is tracked even when sourcing never surfaces it.
type Discovery struct {
	client     api.DataClient
	store      storage.TraderStore
	source     CandidateSource
	classifier analyzer.Classifier
	cfg        config.DiscoveryConfig

	now func() time.Time
}

// NewDiscovery builds a discovery pipeline from configuration.
func NewDiscovery(cfg config.DiscoveryConfig, client api.DataClient, store storage.TraderStore) *Discovery {
	return &Discovery{
		client:     client,
		store:      store,
		source:     NewCandidateSource(cfg, client),
		classifier: analyzer.NewKeywordClassifier(),
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run executes one discovery pass end to end.
func (d *Discovery) Run(ctx context.Context) error {
	started := d.now().UTC()
	log.Printf("[discovery] starting %s discovery pass", d.source.Name())

	candidates, err := d.source.Gather(ctx)
	if err != nil {
		return fmt.Errorf("discovery: gather candidates: %w", err)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("discovery: sourcing produced no candidates")
	}

	ordered := make([]analyzer.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		ordered = append(ordered, cand)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].PNL != ordered[j].PNL {
			return ordered[i].PNL > ordered[j].PNL
		}
		return ordered[i].Address < ordered[j].Address
	})

	scores := d.scoreCandidates(ctx, ordered)

	var qualified []*models.TraderScore
	for _, score := range scores {
		if score.Disqualified {
			continue
		}
		qualified = append(qualified, score)
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].CompositeScore > qualified[j].CompositeScore
	})
	log.Printf("[discovery] %d/%d candidates qualified", len(qualified), len(scores))

	now := d.now().UTC()
	rows := make([]models.TrackedTrader, 0, len(qualified)+len(d.cfg.SeedWhales))
	present := make(map[string]struct{}, len(qualified))
	for _, score := range qualified {
		row := analyzer.ToTrackedTrader(score, now)
		present[row.WalletAddress] = struct{}{}
		rows = append(rows, row)
	}
	for _, seed := range d.cfg.SeedWhales {
		if _, ok := present[models.NormalizeAddress(seed.Address)]; ok {
			continue
		}
		rows = append(rows, analyzer.SeedWhaleTrader(seed.Alias, seed.Address, seed.Profit, seed.Specialty, now))
	}

	saved := 0
	for _, row := range rows {
		if _, err := d.store.UpsertTrader(ctx, row); err != nil {
			log.Printf("[discovery] upsert %s failed: %v", row.WalletAddress, err)
			continue
		}
		saved++
	}

	lifecycle := make(map[string]interface{})
	tiers := make(map[string]interface{})
	risingStars := 0
	for _, score := range qualified {
		state := string(score.LifecycleState)
		if n, ok := lifecycle[state].(int); ok {
			lifecycle[state] = n + 1
		} else {
			lifecycle[state] = 1
		}
		tier := string(score.Tier)
		if n, ok := tiers[tier].(int); ok {
			tiers[tier] = n + 1
		} else {
			tiers[tier] = 1
		}
		if score.RisingStar {
			risingStars++
		}
	}

	elapsed := d.now().UTC().Sub(started)
	log.Printf("[discovery] pass complete: %d candidates, %d scored, %d qualified, %d saved, %d rising stars in %s",
		len(candidates), len(scores), len(qualified), saved, risingStars, elapsed.Round(time.Second))

	d.store.InsertAuditEvent(ctx, "trader_discovery", map[string]interface{}{
		"strategy":     d.source.Name(),
		"candidates":   len(candidates),
		"scored":       len(scores),
		"qualified":    len(qualified),
		"saved":        saved,
		"rising_stars": risingStars,
		"lifecycle":    lifecycle,
		"tiers":        tiers,
		"duration_ms":  elapsed.Milliseconds(),
	}, "discovery")

	return nil
}

// scoreCandidates profiles and scores candidates in fixed-size batches.
// Each batch fans out one goroutine per candidate; results land in a
// per-batch slice so no locking is needed. Cancellation between batches
// returns whatever has been scored so far.
func (d *Discovery) scoreCandidates(ctx context.Context, cands []analyzer.Candidate) []*models.TraderScore {
	batchSize := d.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 25
	}

	scores := make([]*models.TraderScore, 0, len(cands))
	for start := 0; start < len(cands); start += batchSize {
		if ctx.Err() != nil {
			log.Printf("[discovery] scoring interrupted after %d/%d candidates", len(scores), len(cands))
			break
		}

		end := start + batchSize
		if end > len(cands) {
			end = len(cands)
		}
		batch := cands[start:end]
		results := make([]*models.TraderScore, len(batch))

		var wg sync.WaitGroup
		for i, cand := range batch {
			wg.Add(1)
			go func(i int, cand analyzer.Candidate) {
				defer wg.Done()
				profile := analyzer.CollectProfile(ctx, d.client, cand)
				results[i] = analyzer.Score(profile, d.classifier, d.now().UTC())
			}(i, cand)
		}
		wg.Wait()

		for _, score := range results {
			if score != nil {
				scores = append(scores, score)
			}
		}
		log.Printf("[discovery] profiled %d/%d candidates", len(scores), len(cands))
	}
	return scores
}
