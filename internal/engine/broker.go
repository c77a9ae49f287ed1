package engine

import "github.com/strandhttp/strand/internal/observability"

// Broker fans messages out to websocket topic subscribers. It is
// loop-confined: every method must be called on the loop goroutine, so
// no locking is needed.
type Broker struct {
	topics  map[string]map[NativeWebSocket]struct{}
	logger  observability.Logger
	metrics *observability.Metrics
}

// BrokerOption is a functional option for configuring the broker.
type BrokerOption func(*Broker)

// WithBrokerLogger sets the logger for the broker.
func WithBrokerLogger(logger observability.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = logger
	}
}

// WithBrokerMetrics sets the metrics sink for the broker.
func WithBrokerMetrics(metrics *observability.Metrics) BrokerOption {
	return func(b *Broker) {
		b.metrics = metrics
	}
}

// NewBroker creates a broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		topics: make(map[string]map[NativeWebSocket]struct{}),
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds ws to a topic. Subscribing twice is a no-op.
func (b *Broker) Subscribe(topic string, ws NativeWebSocket) {
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[NativeWebSocket]struct{})
		b.topics[topic] = subs
	}
	if _, already := subs[ws]; already {
		return
	}
	subs[ws] = struct{}{}
	if b.metrics != nil {
		b.metrics.TopicSubscribed()
	}
}

// Unsubscribe removes ws from a topic.
func (b *Broker) Unsubscribe(topic string, ws NativeWebSocket) {
	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	if _, present := subs[ws]; !present {
		return
	}
	delete(subs, ws)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
	if b.metrics != nil {
		b.metrics.TopicUnsubscribed()
	}
}

// UnsubscribeAll removes ws from every topic, typically on close.
func (b *Broker) UnsubscribeAll(ws NativeWebSocket) {
	for topic := range b.topics {
		b.Unsubscribe(topic, ws)
	}
}

// Publish sends a message to every subscriber of a topic except the
// publisher itself. Send failures are logged and do not stop delivery
// to the remaining subscribers.
func (b *Broker) Publish(topic string, message []byte, binary bool, from NativeWebSocket) {
	for ws := range b.topics[topic] {
		if ws == from {
			continue
		}
		if err := ws.Send(message, binary); err != nil {
			b.logger.Debug("topic delivery failed",
				observability.String("topic", topic),
				observability.Error(err),
			)
		}
	}
}
