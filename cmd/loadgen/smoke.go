package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	h3 "github.com/uber/h3-go/v4"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// smoke checks the backing services a multi-instance deployment needs.
func smoke() error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := smokeRedis(ctx, getenv("REDIS_ADDR", "localhost:6379")); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	brokers := splitCSV(getenv("KAFKA_BROKERS", "localhost:9092"))
	if err := smokeKafka(brokers, getenv("KAFKA_TOPIC", "room-cache-invalidation")); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if err := smokeH3(); err != nil {
		return fmt.Errorf("h3: %w", err)
	}
	fmt.Println("all checks passed")
	return nil
}

func smokeRedis(ctx context.Context, addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 2 * time.Second})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	key := "globaldorm:smoke"
	if err := client.Set(ctx, key, "ok", 30*time.Second).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	val, err := client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	fmt.Println("redis GET", key, "=", val)
	return nil
}

// smokeKafka publishes an empty-key invalidation event; consumers reject it as
// invalid, so it never evicts anything.
func smokeKafka(brokers []string, topic string) error {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_5_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	payload, _ := json.Marshal(map[string]any{
		"version": time.Now().UnixNano(),
		"op":      "update",
		"keys":    []string{},
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"source":  "smoke",
	})
	partition, offset, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder("smoke"),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Printf("kafka produced to %s/%d@%d\n", topic, partition, offset)
	return nil
}

func smokeH3() error {
	// Mile End campus
	cell, err := h3.LatLngToCell(h3.NewLatLng(51.5246, -0.0403), 9)
	if err != nil {
		return err
	}
	ring, err := h3.GridDisk(cell, 1)
	if err != nil {
		return err
	}
	fmt.Printf("h3 campus cell %s, neighbours %d\n", cell.String(), len(ring)-1)
	return nil
}
