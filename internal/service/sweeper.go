package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// PendingExpirer is implemented by *Ledger.
type PendingExpirer interface {
	ExpirePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// CheckoutExpirer is implemented by repository.CheckoutRepo.
type CheckoutExpirer interface {
	ExpireOpen(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// LeasePurger is implemented by repository.SeatHoldRepo.
type LeasePurger interface {
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// SweepResult counts what one pass reclaimed.
type SweepResult struct {
	ExpiredBookings  int   `json:"expiredBookings"`
	ExpiredCheckouts int   `json:"expiredCheckouts"`
	ReleasedLeases   int64 `json:"releasedLeases"`
}

// Sweeper reclaims abandoned state: PENDING bookings that never got paid,
// checkout requests whose lease window passed, and expired leases.
type Sweeper struct {
	bookings   PendingExpirer
	checkouts  CheckoutExpirer
	leases     LeasePurger
	pendingTTL time.Duration
	interval   time.Duration
	now        func() time.Time

	mu    sync.Mutex
	sched gocron.Scheduler
}

// NewSweeper builds a sweeper; call Start to schedule it.
func NewSweeper(bookings PendingExpirer, checkouts CheckoutExpirer, leases LeasePurger, pendingTTL, interval time.Duration) *Sweeper {
	return &Sweeper{
		bookings:   bookings,
		checkouts:  checkouts,
		leases:     leases,
		pendingTTL: pendingTTL,
		interval:   interval,
		now:        time.Now,
	}
}

// RunOnce performs one pass.  Passes are serialized; each step logs its own
// failure and the pass continues with the next step.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res SweepResult
	n, err := s.bookings.ExpirePending(ctx, s.pendingTTL)
	if err != nil {
		log.Printf("sweeper: expire pending bookings: %v", err)
	}
	res.ExpiredBookings = n

	ids, err := s.checkouts.ExpireOpen(ctx, s.now(), 500)
	if err != nil {
		log.Printf("sweeper: expire checkout requests: %v", err)
	}
	res.ExpiredCheckouts = len(ids)
	for _, id := range ids {
		released, err := s.leases.DeleteByOrder(ctx, id)
		if err != nil {
			log.Printf("sweeper: release leases of %s: %v", id, err)
			continue
		}
		res.ReleasedLeases += released
	}

	purged, err := s.leases.PurgeExpired(ctx)
	if err != nil {
		log.Printf("sweeper: purge expired leases: %v", err)
	}
	res.ReleasedLeases += purged

	if res != (SweepResult{}) {
		log.Printf("sweeper: expired %d bookings, %d checkout requests, released %d leases",
			res.ExpiredBookings, res.ExpiredCheckouts, res.ReleasedLeases)
	}
	return res
}

// Start schedules RunOnce every interval.
func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			defer cancel()
			s.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}
	sched.Start()
	s.sched = sched
	return nil
}

// Stop shuts the scheduler down, waiting for a running pass.
func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
