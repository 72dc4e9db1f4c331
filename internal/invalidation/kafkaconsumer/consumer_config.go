package kafkaconsumer

import (
	"strings"
	"time"

	"github.com/geodov/godov/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
}

// FromKafka derives the consumer settings from the client configuration.
// Missed updates are replayed from the oldest retained offset.
func FromKafka(k config.KafkaCfg) Config {
	return Config{
		Brokers:             splitCSV(k.Brokers),
		Topic:               k.InvalidationTopic,
		GroupID:             k.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: true,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
