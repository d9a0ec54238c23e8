package kafka

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/zeebo/blake3"

	"github.com/couchcryptid/civic-map-service/internal/config"
	"github.com/couchcryptid/civic-map-service/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces rendered view snapshots to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	timeout time.Duration
}

// NewPublisher creates a Kafka producer for the configured view topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaViewTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		// One snapshot per write; flush immediately instead of waiting for a batch.
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: w, logger: logger, timeout: 5 * time.Second}
}

// Publish serializes view and writes it keyed by its parameter key, so
// snapshots of the same view land on the same partition.
func (p *Publisher) Publish(ctx context.Context, view domain.View) error {
	msg, err := serializeToMessage(view)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write view snapshot: %w", err)
	}
	p.logger.Debug("view snapshot published", "key", string(msg.Key), "bytes", len(msg.Value))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// ParamKey returns a stable identifier for a set of view parameters.
// Parameters that select the same view always produce the same key.
func ParamKey(params domain.ViewParams) string {
	filter := params.Filter
	parts := []string{
		string(params.Mode),
		dateOrOpen(filter.Start),
		dateOrOpen(filter.End),
		facet(filter.State),
		facet(filter.Category),
		facet(filter.District),
		string(params.Style),
	}
	if params.Mode == domain.LayerCluster {
		parts = append(parts,
			strconv.FormatFloat(params.Cluster.EpsilonKm, 'g', -1, 64),
			strconv.Itoa(params.Cluster.MinPoints),
		)
	}
	sum := blake3.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:16])
}

func dateOrOpen(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format(domain.DateLayout)
}

func facet(s string) string {
	if s == "" {
		return domain.All
	}
	return s
}

// serializeToMessage marshals a View into a Kafka message.
func serializeToMessage(view domain.View) (kafkago.Message, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize view: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ParamKey(view.Params)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "mode", Value: []byte(view.Params.Mode)},
			{Key: "generated_at", Value: []byte(view.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
