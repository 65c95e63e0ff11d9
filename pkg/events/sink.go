/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/telekom/form-relay/pkg/config"
	"github.com/telekom/form-relay/pkg/metrics"
)

// Sink defines the interface for event destinations.
type Sink interface {
	// Write sends an event to the sink.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("events")}
}

func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("job_id", event.JobID),
		zap.Int("attempts", event.Attempts),
		zap.String("sender_email", event.SenderEmail),
		zap.Time("timestamp", event.Timestamp),
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String(k, v))
	}
	s.logger.Info("delivery_event", fields...)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}

func (s *LogSink) Name() string {
	return "log"
}

// MultiSink writes to several sinks in order. A failing sink does not stop
// the others.
type MultiSink struct {
	sinks  []Sink
	logger *zap.Logger
}

func NewMultiSink(sinks []Sink, logger *zap.Logger) *MultiSink {
	return &MultiSink{
		sinks:  sinks,
		logger: logger,
	}
}

func (s *MultiSink) Write(ctx context.Context, event *Event) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			metrics.EventsFailed.WithLabelValues(sink.Name()).Inc()
			s.logger.Warn("event sink write failed",
				zap.String("sink", sink.Name()),
				zap.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		metrics.EventsPublished.WithLabelValues(sink.Name()).Inc()
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Close() error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *MultiSink) Name() string {
	return "multi"
}

// New builds the sink set for the configuration: the log sink always, plus a
// Kafka sink when brokers are configured.
func New(cfg config.Events, logger *zap.Logger) (*MultiSink, error) {
	sinks := []Sink{NewLogSink(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := NewKafkaSink(KafkaSinkConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	}
	return NewMultiSink(sinks, logger), nil
}
