package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderID returns an id of the form ORDER_<unix millis>_<8 hex chars>.
// The id is generated once per checkout request and is the idempotency key
// for everything that follows.
func NewOrderID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORDER_%d_%s", now.UnixMilli(), suffix)
}

// OrderName renders "<title> - <seats>", e.g. "Dune - A1, A2".
func OrderName(title string, seats []string) string {
	return title + " - " + strings.Join(seats, ", ")
}
