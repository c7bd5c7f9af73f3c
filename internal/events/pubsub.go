package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

// PubSub is the transport behind the booking event bus.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	closers    []func() error
}

// NewPubSub keeps events in process when redisAddr is empty and uses Redis
// streams otherwise. Each API instance passes its own consumer group so every
// instance sees every event and can feed its own consoles.
func NewPubSub(redisAddr, consumerGroup string, logger watermill.LoggerAdapter) (*PubSub, error) {
	if redisAddr == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return &PubSub{Publisher: ch, Subscriber: ch, closers: []func() error{ch.Close}}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: rdb,
	}, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis publisher: %w", err)
	}

	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        rdb,
		ConsumerGroup: consumerGroup,
		// consoles only care about what happens after they connect
		OldestId: "$",
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis subscriber: %w", err)
	}

	return &PubSub{
		Publisher:  pub,
		Subscriber: sub,
		closers:    []func() error{sub.Close, pub.Close, rdb.Close},
	}, nil
}

func (p *PubSub) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
