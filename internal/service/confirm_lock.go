package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// ConfirmLock guards the in-flight confirmation of one order id across
// instances.  It is an optimization: the durable guard is the unique
// order_id on bookings and payments.  With no Redis client, or when Redis
// is unreachable, Acquire always succeeds.
type ConfirmLock struct {
	rdb      *redis.Client
	ttl      time.Duration
	prefix   string
	newToken func() string
}

// NewConfirmLock returns a lock with keys "confirm:<orderId>".
func NewConfirmLock(rdb *redis.Client, ttl time.Duration) *ConfirmLock {
	return &ConfirmLock{rdb: rdb, ttl: ttl, prefix: "confirm:", newToken: uuid.NewString}
}

// Acquire takes the lock for orderID.  ErrConfirmInProgress means another
// holder has it.  The returned func releases the lock and is safe to defer.
func (l *ConfirmLock) Acquire(ctx context.Context, orderID string) (func(), error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}
	key := l.prefix + orderID
	token := l.newToken()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		log.Printf("confirm-lock: redis unavailable for %s, relying on order id uniqueness: %v", orderID, err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrConfirmInProgress
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("confirm-lock: release %s failed: %v", orderID, err)
		}
	}, nil
}
