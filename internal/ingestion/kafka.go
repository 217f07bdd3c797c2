package ingestion

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/observability"
)

// KafkaConfig holds Kafka connection configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// messageReader is the subset of *kafka.Reader used by KafkaSource.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes JSON-encoded TradeEvents from a topic. Offsets are
// committed after the event is handed downstream.
type KafkaSource struct {
	reader  messageReader
	now     func() time.Time
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewKafkaSource creates a consumer-group source.
func NewKafkaSource(cfg KafkaConfig, log *logger.Logger, metrics *observability.Metrics) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	})
	return newKafkaSource(reader, log, metrics)
}

func newKafkaSource(reader messageReader, log *logger.Logger, metrics *observability.Metrics) *KafkaSource {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaSource{
		reader:  reader,
		now:     time.Now,
		log:     log.Named("kafka-source"),
		metrics: metrics,
	}
}

// Subscribe implements TradeEventSource. Events for wallets outside the list
// are dropped; an empty list accepts all.
func (s *KafkaSource) Subscribe(ctx context.Context, wallets []string) (<-chan domain.TradeEvent, error) {
	set := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		set[w] = struct{}{}
	}
	out := make(chan domain.TradeEvent, defaultBuffer)
	go func() {
		defer close(out)
		for {
			msg, err := s.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.metrics.RecordSourceError("kafka")
					s.log.Error("fetch message", logger.Err(err))
				}
				return
			}

			ev, ok := s.decode(msg, set)
			if ok {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
			if err := s.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				s.log.Warn("commit offset",
					logger.Int64("offset", msg.Offset),
					logger.Err(err))
			}
		}
	}()
	return out, nil
}

func (s *KafkaSource) decode(msg kafka.Message, wallets map[string]struct{}) (domain.TradeEvent, bool) {
	var ev domain.TradeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		s.metrics.RecordSourceError("kafka")
		s.log.Warn("bad message",
			logger.Int("partition", msg.Partition),
			logger.Int64("offset", msg.Offset),
			logger.Err(err))
		return ev, false
	}
	if len(wallets) > 0 {
		if _, ok := wallets[ev.WalletID]; !ok {
			return ev, false
		}
	}
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = msg.Time
	}
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = s.now()
	}
	return ev, true
}

// Close closes the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// Publisher forwards trade events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TradeEvent) error
}

// KafkaPublisher writes TradeEvents to a topic keyed by wallet and token,
// so events for one pair stay on one partition. Writes are asynchronous:
// delivery failures are reported through the logger, not from Publish.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher.
func NewKafkaPublisher(cfg KafkaConfig, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("kafka-publisher")
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: publishBatchTimeout,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Warn("deliver trade events", logger.Int("messages", len(msgs)), logger.Err(err))
			}
		},
	}}
}

const (
	publishBatchTimeout = 10 * time.Millisecond
	publishQueueSize    = 1024
)

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, ev domain.TradeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Key().String()),
		Value: data,
		Time:  ev.ObservedAt,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Tee forwards every event from in and publishes a copy. Events are forwarded
// before they are published, and publishing runs on its own goroutine, so a
// slow or failing publisher never delays the stream. When the publish queue
// is full the copy is dropped. out closes once in is drained and every queued
// copy has been handed to pub.
func Tee(ctx context.Context, in <-chan domain.TradeEvent, pub Publisher, log *logger.Logger) <-chan domain.TradeEvent {
	if log == nil {
		log = logger.Nop()
	}
	out := make(chan domain.TradeEvent, defaultBuffer)
	queue := make(chan domain.TradeEvent, publishQueueSize)
	published := make(chan struct{})

	go func() {
		defer close(published)
		for ev := range queue {
			if err := pub.Publish(ctx, ev); err != nil && ctx.Err() == nil {
				log.Warn("publish trade event",
					logger.String("wallet", ev.WalletID),
					logger.String("token", ev.TokenID),
					logger.Err(err))
			}
		}
	}()

	go func() {
		defer close(out)
		defer func() {
			close(queue)
			<-published
		}()
		for ev := range in {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			select {
			case queue <- ev:
			default:
				log.Warn("publish queue full, dropping copy",
					logger.String("wallet", ev.WalletID),
					logger.String("token", ev.TokenID))
			}
		}
	}()
	return out
}
