package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/cenkalti/backoff/v4"
    amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer appends every booking event to {dir}/booking.log, one line
// per event.
type Consumer struct {
    url string
    dir string
    log *slog.Logger
}

func NewConsumer(url, dir string, log *slog.Logger) *Consumer {
    if dir == "" {
        dir = "logs"
    }
    if log == nil {
        log = slog.Default()
    }
    return &Consumer{url: url, dir: dir, log: log.With("component", "booking-consumer")}
}

// Run connects to the broker and consumes both booking queues until ctx
// is done, reconnecting with a doubling delay capped at 30 seconds.
// Messages that cannot be handled are rejected without requeue so one
// bad payload cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
    redial := backoff.NewExponentialBackOff()
    redial.InitialInterval = time.Second
    redial.Multiplier = 2
    redial.RandomizationFactor = 0
    redial.MaxInterval = 30 * time.Second
    redial.MaxElapsedTime = 0
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            wait := redial.NextBackOff()
            c.log.Warn("dial failed", "err", err, "retry_in", wait)
            if !sleep(ctx, wait) {
                return ctx.Err()
            }
            continue
        }
        redial.Reset()

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("consume loop ended; reconnecting", "err", err)
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

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("set QoS failed", "err", err)
    }

    var streams []<-chan amqp.Delivery
    for _, q := range []string{QueueBookingConfirmed, QueueBookingCancelled} {
        if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", q, err)
        }
        msgs, err := ch.Consume(q, "", false, false, false, false, nil)
        if err != nil {
            return fmt.Errorf("queue consume %s: %w", q, err)
        }
        streams = append(streams, msgs)
    }

    for {
        var d amqp.Delivery
        var ok bool
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok = <-streams[0]:
        case d, ok = <-streams[1]:
        }
        if !ok {
            return errors.New("deliveries channel closed")
        }
        if err := c.Handle(d.Body); err != nil {
            c.log.Error("handle message failed", "err", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
}

// Handle decodes one event and appends it to the booking log.
func (c *Consumer) Handle(body []byte) error {
    var ev BookingEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Reference == "" {
        return errors.New("event without reference")
    }
    if err := os.MkdirAll(c.dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders an event as one human-friendly log line.
func FormatLine(ev BookingEvent) string {
    verb := "Booking confirmed"
    if ev.Type == QueueBookingCancelled {
        verb = "Booking cancelled"
    }
    line := fmt.Sprintf("[%s] %s | reference=%s | user_id=%s | flight_id=%s | total=%d %s | seats=[%s] | status=%s | payment=%s",
        ev.OccurredAt, verb, ev.Reference, ev.UserID, ev.FlightID, ev.AmountCents, ev.Currency,
        strings.Join(ev.SeatIDs, ","), ev.Status, ev.PaymentStatus)
    if ev.Reason != "" {
        line += fmt.Sprintf(" | reason=%q", ev.Reason)
    }
    return line + "\n"
}
