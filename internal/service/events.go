package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/study-hall-booking/internal/model"
	"github.com/iliyamo/study-hall-booking/internal/queue"
)

// EventPublisher delivers committed seat events.  Publishing is best
// effort: callers log a failure and never undo the committed change.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.SeatEvent) error
}

// NopPublisher drops every event.  It is used when EVENTS_ENABLED=false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.SeatEvent) error { return nil }

// AMQPPublisher publishes seat events to RabbitMQ.  A connection is
// dialed per event; traffic is bounded by booking writes.
type AMQPPublisher struct {
	url string
	log *zap.Logger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{url: url, log: log}
}

// Publish sends ev to the seat events queue as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.SeatEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.SeatEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", queue.SeatEventsQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.Debug("seat event published", zap.String("event", ev.Type), zap.Uint64("hall_id", ev.HallID))
	return nil
}

// publish sends ev with a short timeout detached from the request so a
// cancelled client does not lose the event; failures are only logged.
func publish(ctx context.Context, pub EventPublisher, log *zap.Logger, ev queue.SeatEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("publish seat event failed",
			zap.String("type", ev.Type),
			zap.Uint64("hall_id", ev.HallID),
			zap.Uint64("seat_id", ev.SeatID),
			zap.Error(err),
		)
	}
}

func bookingEvent(typ string, b *model.Booking, at time.Time) queue.SeatEvent {
	start, end := b.Start, b.End
	return queue.SeatEvent{
		Type:        typ,
		HallID:      b.HallID,
		SeatID:      b.SeatID,
		BookingID:   b.ID,
		UserID:      b.UserID,
		Start:       &start,
		End:         &end,
		AmountCents: b.AmountCents,
		At:          at,
	}
}

func seatEvent(typ string, seat *model.Seat, at time.Time) queue.SeatEvent {
	ev := queue.SeatEvent{Type: typ, HallID: seat.HallID, SeatID: seat.ID, At: at}
	if seat.Maintenance != nil {
		ev.Reason = string(seat.Maintenance.Reason)
		ev.End = seat.Maintenance.Until
	}
	return ev
}
