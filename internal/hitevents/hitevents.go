// Package hitevents publishes search lifecycle events to Kafka.
package hitevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// Event is one search lifecycle event.
type Event struct {
	Type     string    `json:"type"`
	SearchID string    `json:"search_id,omitempty"`
	Typename string    `json:"typename,omitempty"`
	Pkey     string    `json:"pkey,omitempty"`
	URL      string    `json:"url,omitempty"`
	Count    int       `json:"count,omitempty"`
	Bytes    int       `json:"bytes,omitempty"`
	TS       time.Time `json:"ts"`
}

// key partitions events of one search together.
func (e Event) key() sarama.Encoder {
	if e.SearchID == "" {
		return nil
	}
	return sarama.StringEncoder(e.SearchID)
}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}
	errDone chan struct{}
}

// NewPublisher connects an async producer to brokers.
func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("hitevents: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, queueSize, log), nil
}

// NewWithProducer publishes through an existing producer. The producer
// must report errors (Producer.Return.Errors).
func NewWithProducer(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("hitevents: marshal error", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   ev.key(),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Warn("hitevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish never blocks the search; events are dropped when the queue is full.
func (p *Publisher) Publish(ev Event) {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	select {
	case p.events <- ev:
	default:
		p.log.Debug("hitevents: queue full, event dropped", "type", ev.Type)
	}
}

// Close flushes queued events and closes the producer.
func (p *Publisher) Close() error {
	close(p.events)
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("hitevents: close producer: %w", err)
	}
	<-p.errDone
	return nil
}
