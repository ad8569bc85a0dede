package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaJournal struct {
	log    *log.Logger
	writer messageWriter
}

func NewKafkaJournal(logger *log.Logger, brokers []string, topic string) *KafkaJournal {
	j := &KafkaJournal{log: logger}
	j.writer = &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
		// writes happen on the room goroutine, do not wait for acks
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				j.log.Printf("journal: write %d events: %v", len(messages), err)
			}
		},
	}
	return j
}

func (j *KafkaJournal) Record(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return j.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key),
		Value: value,
		Time:  ev.At,
	})
}

func (j *KafkaJournal) Close() error {
	return j.writer.Close()
}
