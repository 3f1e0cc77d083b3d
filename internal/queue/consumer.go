package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/study-hall-booking/internal/config"
)

// SeatEventConsumer drains the seat events queue.  For every event it
// drops the cached seat maps of the affected hall and writes one audit
// log line.
type SeatEventConsumer struct {
    url   string
    rdb   *redis.Client // nil when Redis is unavailable; invalidation is skipped
    cache config.CacheConfig
    log   *zap.Logger
}

func NewSeatEventConsumer(url string, rdb *redis.Client, cache config.CacheConfig, log *zap.Logger) *SeatEventConsumer {
    return &SeatEventConsumer{url: url, rdb: rdb, cache: cache, log: log}
}

// StartSeatEventConsumer connects to RabbitMQ, declares the seat events
// queue (durable) and consumes until ctx is cancelled.  Broker failures
// are retried with exponential backoff capped at 30s; a message that
// cannot be handled is rejected without requeue so the loop never spins
// on it.
func StartSeatEventConsumer(ctx context.Context, url string, rdb *redis.Client, cache config.CacheConfig, log *zap.Logger) error {
    return NewSeatEventConsumer(url, rdb, cache, log).Run(ctx)
}

// Run is the reconnect loop.  It returns ctx.Err() once ctx is done.
func (c *SeatEventConsumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.url)
        if err != nil {
            c.log.Warn("seat-event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.log.Warn("seat-event consumer: consume loop ended, reconnecting", zap.Error(err))
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *SeatEventConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.log.Warn("seat-event consumer: set QoS failed", zap.Error(err))
    }
    if _, err := ch.QueueDeclare(SeatEventsQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(SeatEventsQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.log.Error("seat-event consumer: handle message failed", zap.Error(err))
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle processes one message body.
func (c *SeatEventConsumer) Handle(ctx context.Context, body []byte) error {
    var ev SeatEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    return c.Apply(ctx, ev)
}

// Publish applies ev in-process.  It lets the consumer stand in for the
// broker publisher when events are disabled, so cached seat maps are
// still dropped on every change.
func (c *SeatEventConsumer) Publish(ctx context.Context, ev SeatEvent) error {
    return c.Apply(ctx, ev)
}

// Apply invalidates the hall's cache entries and writes the audit line.
func (c *SeatEventConsumer) Apply(ctx context.Context, ev SeatEvent) error {
    if ev.Type == "" || ev.HallID == 0 {
        return fmt.Errorf("incomplete seat event %q for hall %d", ev.Type, ev.HallID)
    }

    dropped := 0
    if c.rdb != nil {
        n, err := InvalidateHall(ctx, c.rdb, c.cache.HallScope(ev.HallID))
        if err != nil {
            return fmt.Errorf("invalidate hall %d: %w", ev.HallID, err)
        }
        dropped = n
    }

    fields := []zap.Field{
        zap.String("event", ev.Type),
        zap.Uint64("hall_id", ev.HallID),
        zap.Uint64("seat_id", ev.SeatID),
        zap.Time("at", ev.At),
        zap.Int("cache_keys_dropped", dropped),
    }
    if ev.BookingID != 0 {
        fields = append(fields,
            zap.Uint64("booking_id", ev.BookingID),
            zap.Uint64("user_id", ev.UserID),
            zap.Int64("amount_cents", ev.AmountCents),
        )
    }
    if ev.Reason != "" {
        fields = append(fields, zap.String("reason", ev.Reason))
    }
    c.log.Info("seat event", fields...)
    return nil
}

// InvalidateHall deletes every cache entry under scope and returns how
// many keys were removed.  Keys are walked with SCAN in batches of 200.
func InvalidateHall(ctx context.Context, rdb *redis.Client, scope string) (int, error) {
    var (
        cursor  uint64
        removed int
    )
    for {
        keys, next, err := rdb.Scan(ctx, cursor, scope+":*", 200).Result()
        if err != nil {
            return removed, err
        }
        if len(keys) > 0 {
            n, err := rdb.Del(ctx, keys...).Result()
            if err != nil {
                return removed, err
            }
            removed += int(n)
        }
        cursor = next
        if cursor == 0 {
            return removed, nil
        }
    }
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
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
