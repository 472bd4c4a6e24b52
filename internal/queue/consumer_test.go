package queue

import (
    "bytes"
    "encoding/json"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestWriteEventLineConfirmed(t *testing.T) {
    body, err := json.Marshal(BookingConfirmedEvent{
        BookingID: 42, OrderID: "ORDER_1_ab", PaymentKey: "pk", UserID: 7, ShowtimeID: 3,
        MovieTitle: "Dune", Seats: []string{"A1", "A2"}, TotalPrice: 24000, ConfirmedAt: "2024-01-01T00:00:00Z",
    })
    require.NoError(t, err)

    var buf bytes.Buffer
    require.NoError(t, writeEventLine(&buf, BookingConfirmedQueue, body))
    line := buf.String()
    assert.Contains(t, line, "Booking confirmed")
    assert.Contains(t, line, "booking_id=42")
    assert.Contains(t, line, "order_id=ORDER_1_ab")
    assert.Contains(t, line, "seats=[A1,A2]")
    assert.Contains(t, line, "total=24000")
}

func TestWriteEventLineCancelled(t *testing.T) {
    body, err := json.Marshal(BookingCancelledEvent{BookingID: 5, Reason: "expired", Seats: []string{"B3"}})
    require.NoError(t, err)

    var buf bytes.Buffer
    require.NoError(t, writeEventLine(&buf, BookingCancelledQueue, body))
    assert.Contains(t, buf.String(), `reason="expired"`)
    assert.Contains(t, buf.String(), "refunded=false")
}

func TestWriteEventLineRejectsGarbage(t *testing.T) {
    var buf bytes.Buffer
    assert.Error(t, writeEventLine(&buf, BookingConfirmedQueue, []byte("{")))
    assert.Error(t, writeEventLine(&buf, "other.queue", []byte("{}")))
    assert.Zero(t, buf.Len())
}
