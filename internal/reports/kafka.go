package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yevheniidehtiar/locust-love-django/internal/profiling"
)

const kafkaPeekTimeout = 2 * time.Second

// KafkaBackend publishes each report as a message on a single topic.
// Reads are a best-effort peek of the first partition.
type KafkaBackend struct {
	brokers string
	topic   string

	once   sync.Once
	writer *kafka.Writer
}

// NewKafkaBackend constructs a Kafka backend; topic defaults to
// "smells.profiles".
func NewKafkaBackend(brokers, topic string) *KafkaBackend {
	if topic == "" {
		topic = "smells.profiles"
	}
	return &KafkaBackend{brokers: brokers, topic: topic}
}

func (k *KafkaBackend) ensure() error {
	if k.brokers == "" {
		return errors.New("kafka brokers not configured")
	}
	return nil
}

func (k *KafkaBackend) getWriter() *kafka.Writer {
	k.once.Do(func() {
		k.writer = &kafka.Writer{
			Addr:                   kafka.TCP(k.brokers),
			Topic:                  k.topic,
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			AllowAutoTopicCreation: true,
		}
	})
	return k.writer
}

func (k *KafkaBackend) Save(ctx context.Context, r profiling.Report) error {
	if err := k.ensure(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return k.getWriter().WriteMessages(ctx, kafka.Message{Key: []byte(r.ID), Value: data})
}

// peek reads partition 0 from its first offset up to the last offset seen
// when the peek started, keeping the newest limit reports. An unreachable
// broker is an error, not an empty topic.
func (k *KafkaBackend) peek(ctx context.Context, limit int) ([]profiling.Report, error) {
	if err := k.ensure(); err != nil {
		return nil, err
	}
	deadline, cancel := context.WithTimeout(ctx, kafkaPeekTimeout)
	defer cancel()
	first, last, err := k.offsets(deadline)
	if err != nil {
		return nil, err
	}
	items := []profiling.Report{}
	if last <= first {
		return items, nil
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{k.brokers},
		Topic:       k.topic,
		Partition:   0,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer r.Close()
	for {
		m, err := r.ReadMessage(deadline)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return nil, fmt.Errorf("peek %s: %w", k.topic, err)
		}
		var rep profiling.Report
		if err := json.Unmarshal(m.Value, &rep); err == nil {
			items = append(items, rep)
			if limit > 0 && len(items) > limit {
				items = items[1:]
			}
		}
		if m.Offset >= last-1 {
			break
		}
	}
	return items, nil
}

// offsets returns partition 0's first and last offsets.
func (k *KafkaBackend) offsets(ctx context.Context) (first, last int64, err error) {
	conn, err := kafka.DialLeader(ctx, "tcp", k.brokers, k.topic, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("dial kafka %s: %w", k.brokers, err)
	}
	defer conn.Close()
	if first, err = conn.ReadFirstOffset(); err != nil {
		return 0, 0, err
	}
	if last, err = conn.ReadLastOffset(); err != nil {
		return 0, 0, err
	}
	return first, last, nil
}

func (k *KafkaBackend) Get(ctx context.Context, findingID string) (profiling.Report, profiling.Finding, error) {
	items, err := k.peek(ctx, 0)
	if err != nil {
		return profiling.Report{}, profiling.Finding{}, err
	}
	return find(items, findingID)
}

func (k *KafkaBackend) List(ctx context.Context, limit int) ([]profiling.Report, error) {
	items, err := k.peek(ctx, limit)
	if err != nil {
		return nil, err
	}
	return newest(items, limit), nil
}

func (k *KafkaBackend) Clear(ctx context.Context) error {
	return ErrUnsupported
}

// Stats reports the partition's message count from its offsets.
func (k *KafkaBackend) Stats(ctx context.Context) (Stats, error) {
	if err := k.ensure(); err != nil {
		return Stats{}, err
	}
	first, last, err := k.offsets(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{Backend: "kafka", Reports: int(last - first)}, nil
}

// Close flushes the writer if one was created.
func (k *KafkaBackend) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
