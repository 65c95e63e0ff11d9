package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/metrics"
)

type fakeWriter struct {
	mu     sync.Mutex
	err    error
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type failingSink struct{}

func (failingSink) Write(context.Context, *Event) error { return errors.New("boom") }
func (failingSink) Close() error                        { return nil }
func (failingSink) Name() string                        { return "failing" }

var eventTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewEvent(t *testing.T) {
	e := NewEvent(TypeEscalated, "job-1", 5, "a@example.com", eventTime).WithDetail("reason", "smtp down")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeEscalated, e.Type)
	assert.Equal(t, 5, e.Attempts)
	assert.Equal(t, "smtp down", e.Details["reason"])
}

func TestLogSink_Write(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	e := NewEvent(TypeDelivered, "job-1", 2, "a@example.com", eventTime)
	require.NoError(t, sink.Write(context.Background(), e))

	entries := logs.FilterMessage("delivery_event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "delivered", fields["event_type"])
	assert.Equal(t, "job-1", fields["job_id"])
	assert.Equal(t, int64(2), fields["attempts"])
}

func TestKafkaSink_Write(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, zap.NewNop())

	e := NewEvent(TypeEscalated, "job-7", 5, "a@example.com", eventTime)
	require.NoError(t, sink.Write(context.Background(), e))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "job-7", string(w.msgs[0].Key))
	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, TypeEscalated, decoded.Type)
	assert.Equal(t, "escalated", string(w.msgs[0].Headers[0].Value))
}

func TestKafkaSink_WriteError(t *testing.T) {
	sink := newKafkaSink(&fakeWriter{err: errors.New("broker unavailable")}, zap.NewNop())
	err := sink.Write(context.Background(), NewEvent(TypeDelivered, "job", 1, "a@example.com", eventTime))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestKafkaSink_Close(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, zap.NewNop())

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
	assert.ErrorIs(t, sink.Write(context.Background(), NewEvent(TypeDelivered, "j", 1, "", eventTime)), ErrSinkClosed)
}

func TestNewKafkaSink_Validation(t *testing.T) {
	_, err := NewKafkaSink(KafkaSinkConfig{Topic: "t"}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewKafkaSink(KafkaSinkConfig{Brokers: []string{"localhost:9092"}}, zap.NewNop())
	assert.Error(t, err)

	sink, err := NewKafkaSink(KafkaSinkConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "kafka", sink.Name())
	assert.NoError(t, sink.Close())
}

func TestMultiSink_ContinuesAfterFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	multi := NewMultiSink([]Sink{failingSink{}, NewLogSink(logger)}, logger)

	before := testutil.ToFloat64(metrics.EventsFailed.WithLabelValues("failing"))
	err := multi.Write(context.Background(), NewEvent(TypeDropped, "job", 0, "a@example.com", eventTime))
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EventsFailed.WithLabelValues("failing")))
	assert.Equal(t, 1, logs.FilterMessage("delivery_event").Len())
	assert.Equal(t, 1, logs.FilterMessage("event sink write failed").Len())
}

func TestNew(t *testing.T) {
	multi, err := New(config.Events{}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, multi.sinks, 1)

	multi, err = New(config.Events{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "form-relay-delivery"}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, multi.sinks, 2)
	assert.NoError(t, multi.Close())
}
