package kafka

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"
)

// CheckinMessage is what downstream redemption publishes when a ticket is
// redeemed. The consumer flips the local is_consumed flag; the sync engine
// itself never writes that column.
type CheckinMessage struct {
	PositionID string `json:"position_id"`
	CheckedBy  string `json:"checked_by,omitempty"`
}

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader}
}

// Start consumes check-in messages until ctx is cancelled, passing each
// decoded message to handler. Decode failures are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler func(msg CheckinMessage)) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("kafka: error reading check-in message: %v", err)
			continue
		}

		var checkin CheckinMessage
		if err := json.Unmarshal(msg.Value, &checkin); err != nil {
			log.Printf("kafka: undecodable check-in message on %s: %v", msg.Topic, err)
			continue
		}
		if checkin.PositionID == "" {
			continue
		}
		handler(checkin)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
