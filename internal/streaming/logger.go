package streaming

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// LogPublisher writes every event to the standard logger (stderr unless
// redirected). Useful as a default sink
// before a dashboard connects, and for integration tests that want a
// Publisher with no network dependency.
type LogPublisher struct {
	logger *log.Logger
}

// NewLogPublisher builds a LogPublisher writing to the default logger.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{
		logger: log.Default(),
	}
}

func (p *LogPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	event := Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   data,
		Timestamp: time.Now(),
		Source:    "swarmrouterd",
	}

	eventBytes, _ := json.Marshal(event)
	p.logger.Printf("[STREAMING] PUBLISH %s: %s", topic, string(eventBytes))
	return nil
}

func (p *LogPublisher) Close() error {
	p.logger.Println("[STREAMING] closed log publisher")
	return nil
}

var _ Publisher = (*LogPublisher)(nil)
