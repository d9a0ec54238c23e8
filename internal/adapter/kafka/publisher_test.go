package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-map-service/internal/config"
	"github.com/couchcryptid/civic-map-service/internal/domain"
)

type mockWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func newTestPublisher(w *mockWriter) *Publisher {
	return &Publisher{writer: w, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), timeout: time.Second}
}

func clusterView() domain.View {
	return domain.View{
		Params: domain.ViewParams{
			Filter:  domain.DefaultFilterParams(),
			Mode:    domain.LayerCluster,
			Cluster: domain.ClusterParams{EpsilonKm: 0.3, MinPoints: 2},
			Style:   domain.StyleDark,
		},
		Layer:       domain.Layer{Kind: domain.LayerCluster, Points: []domain.LayerPoint{}},
		GeneratedAt: time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	view := clusterView()

	msg, err := serializeToMessage(view)
	require.NoError(t, err)

	assert.Equal(t, []byte(ParamKey(view.Params)), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"cluster"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "mode", msg.Headers[0].Key)
	assert.Equal(t, []byte("cluster"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-04-26T15:10:00Z"), msg.Headers[1].Value)
}

func TestParamKey(t *testing.T) {
	base := clusterView().Params

	t.Run("stable", func(t *testing.T) {
		assert.Equal(t, ParamKey(base), ParamKey(base))
		assert.Len(t, ParamKey(base), 32)
	})

	t.Run("empty facet equals all", func(t *testing.T) {
		other := base
		other.Filter.State = ""
		assert.Equal(t, ParamKey(base), ParamKey(other))
	})

	t.Run("cluster params distinguish", func(t *testing.T) {
		other := base
		other.Cluster.EpsilonKm = 0.4
		assert.NotEqual(t, ParamKey(base), ParamKey(other))
	})

	t.Run("cluster params ignored outside cluster mode", func(t *testing.T) {
		a, b := base, base
		a.Mode, b.Mode = domain.LayerPoints, domain.LayerPoints
		b.Cluster = domain.ClusterParams{}
		assert.Equal(t, ParamKey(a), ParamKey(b))
	})

	t.Run("dates distinguish", func(t *testing.T) {
		other := base
		other.Filter.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.NotEqual(t, ParamKey(base), ParamKey(other))
	})
}

func TestPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := newTestPublisher(w)

	require.NoError(t, p.Publish(context.Background(), clusterView()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("cluster"), w.msgs[0].Headers[0].Value)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_PublishError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newTestPublisher(&mockWriter{err: boom})

	err := p.Publish(context.Background(), clusterView())
	require.ErrorIs(t, err, boom)
}

func TestNewPublisher_FlushesEachSnapshot(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaViewTopic: "civic.views"}
	p := NewPublisher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	w, ok := p.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, "civic.views", w.Topic)
}
