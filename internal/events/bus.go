package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

const (
	TopicBookings = "booking-events"

	metadataType = "event_type"
)

// Sink is anything that takes a typed event, booking.Publisher included.
type Sink interface {
	Publish(ctx context.Context, eventType string, payload any)
}

// Bus publishes committed booking events to the bookings topic. Publishing
// never fails the caller; the state change already happened.
type Bus struct {
	pub message.Publisher
	log *zap.Logger
}

func NewBus(pub message.Publisher, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{pub: pub, log: log}
}

func (b *Bus) Publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("marshal event", zap.String("event_type", eventType), zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(metadataType, eventType)
	msg.SetContext(ctx)

	if err := b.pub.Publish(TopicBookings, msg); err != nil {
		b.log.Warn("publish event",
			zap.String("event_type", eventType),
			zap.String("message_uuid", msg.UUID),
			zap.Error(err),
		)
	}
}

// Forwarder drains the bookings topic into a Sink, typically the console hub.
type Forwarder struct {
	sub  message.Subscriber
	sink Sink
	log  *zap.Logger
}

func NewForwarder(sub message.Subscriber, sink Sink, log *zap.Logger) *Forwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Forwarder{sub: sub, sink: sink, log: log}
}

// Start subscribes before returning, so nothing published afterwards is
// missed, and forwards in the background until ctx ends or the subscriber
// closes. The returned channel closes when forwarding stops.
func (f *Forwarder) Start(ctx context.Context) (<-chan struct{}, error) {
	messages, err := f.sub.Subscribe(ctx, TopicBookings)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			eventType := msg.Metadata.Get(metadataType)
			if !json.Valid(msg.Payload) {
				f.log.Warn("dropping malformed event",
					zap.String("event_type", eventType),
					zap.String("message_uuid", msg.UUID),
				)
				msg.Ack()
				continue
			}
			f.sink.Publish(msg.Context(), eventType, json.RawMessage(msg.Payload))
			msg.Ack()
		}
	}()
	return done, nil
}
