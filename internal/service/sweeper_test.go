package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubExpirer struct {
	n   int
	err error
	ttl time.Duration
}

func (s *stubExpirer) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	s.ttl = olderThan
	return s.n, s.err
}

type stubCheckoutExpirer struct{ ids []string }

func (s stubCheckoutExpirer) ExpireOpen(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.ids, nil
}

type stubPurger struct {
	released []string
	purged   int64
}

func (s *stubPurger) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	s.released = append(s.released, orderID)
	return 2, nil
}

func (s *stubPurger) PurgeExpired(ctx context.Context) (int64, error) { return s.purged, nil }

func TestSweeperRunOnce(t *testing.T) {
	bookings := &stubExpirer{n: 3}
	leases := &stubPurger{purged: 1}
	s := NewSweeper(bookings, stubCheckoutExpirer{ids: []string{"ORDER_a", "ORDER_b"}}, leases, 10*time.Minute, time.Minute)

	res := s.RunOnce(context.Background())
	assert.Equal(t, SweepResult{ExpiredBookings: 3, ExpiredCheckouts: 2, ReleasedLeases: 5}, res)
	assert.Equal(t, 10*time.Minute, bookings.ttl)
	assert.Equal(t, []string{"ORDER_a", "ORDER_b"}, leases.released)
}

func TestSweeperContinuesAfterFailure(t *testing.T) {
	leases := &stubPurger{purged: 4}
	s := NewSweeper(&stubExpirer{err: errors.New("db down")}, stubCheckoutExpirer{}, leases, time.Minute, time.Minute)

	res := s.RunOnce(context.Background())
	assert.Equal(t, int64(4), res.ReleasedLeases)
	assert.Zero(t, res.ExpiredBookings)
}

func TestSweeperStartStop(t *testing.T) {
	s := NewSweeper(&stubExpirer{}, stubCheckoutExpirer{}, &stubPurger{}, time.Minute, time.Hour)
	assert.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
}
