package syncer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/miyamoto-labs/easypoly/api"
	"github.com/miyamoto-labs/easypoly/config"
	"github.com/miyamoto-labs/easypoly/storage"
)

// rosterStaleAfter is how long a tracked trader can go without trading
// before the cleanup loop deactivates the row. Custom follows are exempt.
const rosterStaleAfter = 60 * 24 * time.Hour

// Worker runs the background loops: periodic trader discovery, the
// copy-signal detector, and roster cleanup.
type Worker struct {
	discovery *Discovery
	detector  *Detector
	store     storage.TraderStore
	cfg       *config.Config

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewWorker wires the discovery and detection pipelines onto shared
// client and store instances.
func NewWorker(cfg *config.Config, client api.DataClient, store storage.TraderStore) *Worker {
	return &Worker{
		discovery: NewDiscovery(cfg.Discovery, client, store),
		detector:  NewDetector(cfg.Signals, client, store, nil),
		store:     store,
		cfg:       cfg,
		stop:      make(chan struct{}),
	}
}

// Start launches all background loops. Each loop runs once immediately,
// then on its own ticker.
func (w *Worker) Start() {
	scanEvery := time.Duration(w.cfg.Discovery.ScanIntervalMins) * time.Minute
	checkEvery := time.Duration(w.cfg.Signals.CheckIntervalMins) * time.Minute

	w.startLoop("trader discovery", scanEvery, w.discovery.Run)
	w.startLoop("copy signals", checkEvery, func(ctx context.Context) error {
		_, err := w.detector.Detect(ctx)
		return err
	})
	w.startLoop("roster cleanup", 24*time.Hour, func(ctx context.Context) error {
		n, err := w.store.DeactivateInactive(ctx, time.Now().UTC().Add(-rosterStaleAfter))
		if err == nil && n > 0 {
			log.Printf("[sync] roster cleanup deactivated %d stale traders", n)
		}
		return err
	})
}

// Stop signals all loops to exit and waits for them.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

func (w *Worker) startLoop(name string, interval time.Duration, fn func(context.Context) error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		run := func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval/2)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Printf("[sync] %s tick failed: %v", name, err)
			}
		}

		run()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
