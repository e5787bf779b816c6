// Package kafkapublisher sends cache invalidation events to Kafka.
package kafkapublisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"

	"github.com/adnan855570/Global-Dorm-App/internal/invalidation"
)

type Publisher struct {
	topic string
	prod  sarama.SyncProducer
}

func New(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafkapublisher: create sync producer: %w", err)
	}
	return NewWithProducer(prod, topic), nil
}

func NewWithProducer(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{topic: topic, prod: prod}
}

// Publish keys messages by their sorted key list so updates to the same keys
// land on one partition and stay ordered.
func (p *Publisher) Publish(ctx context.Context, ev invalidation.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafkapublisher: marshal: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strings.Join(ev.Keys, ",")),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := p.prod.SendMessage(msg); err != nil {
		return fmt.Errorf("kafkapublisher: send: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("kafkapublisher: close producer: %w", err)
	}
	return nil
}
