// Package equity periodically snapshots account equity for reporting.
package equity

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"papertrade/internal/metrics"
	"papertrade/internal/pricecache"
	"papertrade/internal/store"
)

// Recorder appends one EquityHistory row per account per tick.
type Recorder struct {
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	store    *store.Store
	cache    *pricecache.Cache
	interval time.Duration
}

// NewRecorder creates a recorder with the given cadence.
func NewRecorder(st *store.Store, cache *pricecache.Cache, interval time.Duration) *Recorder {
	return &Recorder{
		stopCh:   make(chan struct{}),
		store:    st,
		cache:    cache,
		interval: interval,
	}
}

// Start launches the recording loop.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()
	log.Info().Dur("interval", r.interval).Msg("📊 Equity recorder started")
}

// Stop terminates the loop at the next iteration.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
	log.Info().Msg("Equity recorder stopped")
}

func (r *Recorder) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.Record(); err != nil {
				log.Error().Err(err).Msg("Equity recording failed")
			}
		}
	}
}

// Record writes one equity snapshot per account, committed in a single
// transaction. An account with any position whose mark is unknown is skipped
// this tick: recording it would book the unrealized P&L as zero and put a
// spike artifact into the history.
func (r *Recorder) Record() error {
	accounts, err := r.store.AccountsWithPositions()
	if err != nil {
		return err
	}
	marks := r.cache.Snapshot()

	return r.store.Transaction(func(tx *gorm.DB) error {
		for _, account := range accounts {
			if !metrics.AllMarksKnown(account.Positions, marks) {
				log.Debug().Uint("account_id", account.ID).Msg("Equity snapshot skipped, mark missing")
				continue
			}
			m := metrics.Compute(&account, account.Positions, marks)
			if err := r.store.AppendEquity(tx, account.ID, m.Equity); err != nil {
				return err
			}
		}
		return nil
	})
}
