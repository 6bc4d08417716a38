package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "log/slog"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends booking events.  Delivery is best effort: callers log
// failures and carry on.
type Publisher interface {
    Publish(ctx context.Context, ev BookingEvent) error
}

// AMQPPublisher publishes each event on a short-lived connection to a
// durable queue named after the event type.  Messages are persistent.
// Dialling, the AMQP handshake and the publish together are bounded by
// timeout or by the context deadline, whichever is sooner, so a broker
// outage delays a commit by at most that long.
type AMQPPublisher struct {
    url     string
    timeout time.Duration
    log     *slog.Logger
}

func NewAMQPPublisher(url string, timeout time.Duration, log *slog.Logger) *AMQPPublisher {
    if timeout <= 0 {
        timeout = 2 * time.Second
    }
    if log == nil {
        log = slog.Default()
    }
    return &AMQPPublisher{url: url, timeout: timeout, log: log.With("component", "publisher")}
}

// Publish returns the first failure; callers decide how to log it.
func (p *AMQPPublisher) Publish(ctx context.Context, ev BookingEvent) error {
    if ev.Type == "" {
        return fmt.Errorf("rabbitmq: event without type")
    }
    ctx, cancel := context.WithTimeout(ctx, p.timeout)
    defer cancel()
    dialTimeout := p.timeout
    if dl, ok := ctx.Deadline(); ok {
        dialTimeout = time.Until(dl)
    }
    if dialTimeout <= 0 {
        return fmt.Errorf("rabbitmq: dial: %w", context.DeadlineExceeded)
    }

    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial:      amqp.DefaultDial(dialTimeout),
    })
    if err != nil {
        return fmt.Errorf("rabbitmq: dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq: open channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // Idempotent; durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
        return fmt.Errorf("rabbitmq: declare %s: %w", ev.Type, err)
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        MessageId:    ev.Reference + ":" + ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
        return fmt.Errorf("rabbitmq: publish %s: %w", ev.Type, err)
    }
    p.log.Debug("booking event published", "type", ev.Type, "reference", ev.Reference)
    return nil
}

// NopPublisher drops every event.  It stands in when the broker is
// disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BookingEvent) error { return nil }
