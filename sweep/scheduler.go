/*
scheduler.go - Periodic driver for the sweepers

PURPOSE:
  Runs both sweepers on a fixed interval. At process start it performs an
  immediate catch-up pass with a long lookback, covering any downtime,
  then settles into short-lookback periodic passes.

DESIGN:
  - Single background goroutine with ticker + stop channel
  - Sweepers carry their own single-flight guards, so a slow pass simply
    makes the next tick a no-op instead of queuing
  - Per-organization failures are logged and do not stop the pass

USAGE:
  sched := sweep.NewScheduler(store, absence, checkout)
  sched.Start()
  // ... later
  sched.Stop()
*/
package sweep

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/rosterly/attendance-engine/engine"
)

// Scheduler drives the absence and checkout sweeps.
type Scheduler struct {
	Store    engine.Store
	Absence  *AbsenceSweeper
	Checkout *CheckoutSweeper

	// Interval between periodic passes.
	Interval time.Duration
	// Lookback for periodic passes.
	Lookback time.Duration
	// CatchUpLookback for the immediate pass at start.
	CatchUpLookback time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewScheduler(store engine.Store, absence *AbsenceSweeper, checkout *CheckoutSweeper) *Scheduler {
	return &Scheduler{
		Store:           store,
		Absence:         absence,
		Checkout:        checkout,
		Interval:        15 * time.Minute,
		Lookback:        24 * time.Hour,
		CatchUpLookback: 7 * 24 * time.Hour,
		stop:            make(chan struct{}),
	}
}

// Start launches the background goroutine: one catch-up pass now, then a
// pass per tick.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.Interval)
	s.wg.Add(1)
	go s.run()

	log.Printf("[Sweeper] Started: interval=%v lookback=%v catchup=%v", s.Interval, s.Lookback, s.CatchUpLookback)
}

// Stop terminates the scheduler and waits for an in-flight pass.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	// Catch-up pass covers events that elapsed while the process was down.
	s.pass(s.CatchUpLookback)

	for {
		select {
		case <-s.ticker.C:
			s.pass(s.Lookback)
		case <-s.stop:
			return
		}
	}
}

// RunNow triggers an immediate pass (manual trigger, tests).
func (s *Scheduler) RunNow() {
	s.pass(s.Lookback)
}

func (s *Scheduler) pass(lookback time.Duration) {
	ctx := context.Background()

	closed, err := s.Checkout.Run(ctx, lookback)
	if err != nil && !errors.Is(err, ErrSweepRunning) {
		log.Printf("[Sweeper] checkout sweep: %v", err)
	}

	orgs, err := s.Store.ListOrganizations(ctx)
	if err != nil {
		log.Printf("[Sweeper] listing organizations: %v", err)
		return
	}

	absent := 0
	for _, org := range orgs {
		n, err := s.Absence.Run(ctx, org, lookback)
		if err != nil && !errors.Is(err, ErrSweepRunning) {
			log.Printf("[Sweeper] absence sweep for org=%s: %v", org, err)
			continue
		}
		absent += n
	}

	if closed > 0 || absent > 0 {
		log.Printf("[Sweeper] Pass complete: %d auto-checkouts, %d auto-absences", closed, absent)
	}
}
