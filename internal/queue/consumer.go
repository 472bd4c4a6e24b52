package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartBookingConsumer connects to RabbitMQ, declares the booking queues
// (durable) and appends one line per event to logs/booking.log.  It runs a
// reconnect loop with backoff (1s doubling to 30s) and only returns when ctx
// is cancelled.  A message that cannot be handled is rejected without
// requeue so the server keeps operating.
func StartBookingConsumer(ctx context.Context, url string) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("booking-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("booking-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("booking-consumer: set QoS failed: %v", err)
    }

    confirmed, err := declareAndConsume(ch, BookingConfirmedQueue)
    if err != nil {
        return err
    }
    cancelled, err := declareAndConsume(ch, BookingCancelledQueue)
    if err != nil {
        return err
    }

    for {
        var (
            d  amqp.Delivery
            ok bool
        )
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-confirmed:
        case d, ok = <-cancelled:
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := appendBookingLog(d.RoutingKey, d.Body); err != nil {
            log.Printf("booking-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
            continue
        }
        _ = d.Ack(false)
    }
}

func declareAndConsume(ch *amqp.Channel, queue string) (<-chan amqp.Delivery, error) {
    if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
        return nil, fmt.Errorf("queue declare %s: %w", queue, err)
    }
    msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
    if err != nil {
        return nil, fmt.Errorf("queue consume %s: %w", queue, err)
    }
    return msgs, nil
}

func appendBookingLog(queue string, body []byte) error {
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(filepath.Join("logs", "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    return writeEventLine(f, queue, body)
}

// writeEventLine renders one event as a single human-friendly line.
func writeEventLine(w io.Writer, queue string, body []byte) error {
    var line string
    switch queue {
    case BookingConfirmedQueue:
        var ev BookingConfirmedEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | order_id=%s | payment_key=%s | user_id=%d | showtime_id=%d | theater=%q | screen=%q | movie=%q | starts_at=%s | total=%d | seats=%s\n",
            ev.ConfirmedAt, ev.BookingID, ev.OrderID, ev.PaymentKey, ev.UserID, ev.ShowtimeID,
            ev.TheaterName, ev.ScreenName, ev.MovieTitle, ev.StartsAt, ev.TotalPrice, seatList(ev.Seats))
    case BookingCancelledQueue:
        var ev BookingCancelledEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return fmt.Errorf("unmarshal: %w", err)
        }
        line = fmt.Sprintf("[%s] Booking cancelled | booking_id=%d | user_id=%d | showtime_id=%d | reason=%q | refunded=%t | seats=%s\n",
            ev.CancelledAt, ev.BookingID, ev.UserID, ev.ShowtimeID, ev.Reason, ev.Refunded, seatList(ev.Seats))
    default:
        return fmt.Errorf("unexpected queue %q", queue)
    }
    if _, err := io.WriteString(w, line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func seatList(seats []string) string {
    return "[" + strings.Join(seats, ",") + "]"
}
