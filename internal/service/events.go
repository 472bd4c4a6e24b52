package service

import (
	"context"
	"log"
	"time"
)

// EventPublisher is implemented by queue.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

const publishTimeout = 3 * time.Second

// notify publishes best-effort.  A broker outage is logged and never fails
// the operation that produced the event.
func notify(p EventPublisher, queue string, v any) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, queue, v); err != nil {
		log.Printf("events: publish to %s failed: %v", queue, err)
	}
}
