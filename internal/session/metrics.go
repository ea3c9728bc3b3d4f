package session

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	phraseAttempts metric.Int64Counter
	verifications  metric.Int64Counter
	similarity     metric.Float64Histogram
	intents        metric.Int64Counter
}

func newMetrics(logger *slog.Logger) *metrics {
	meter := otel.Meter("github.com/voxgate-labs/voxgate-core/session")
	m := &metrics{}
	var err error

	if m.phraseAttempts, err = meter.Int64Counter("voxgate.phrase.attempts",
		metric.WithDescription("Phrase-gate listening cycles")); err != nil {
		logger.Warn("failed to create phrase attempts counter", slogError(err))
	}
	if m.verifications, err = meter.Int64Counter("voxgate.verify.attempts",
		metric.WithDescription("Voice verification attempts")); err != nil {
		logger.Warn("failed to create verification counter", slogError(err))
	}
	if m.similarity, err = meter.Float64Histogram("voxgate.verify.similarity",
		metric.WithDescription("Similarity score per verification attempt")); err != nil {
		logger.Warn("failed to create similarity histogram", slogError(err))
	}
	if m.intents, err = meter.Int64Counter("voxgate.intents.resolved",
		metric.WithDescription("Intents resolved from command transcripts")); err != nil {
		logger.Warn("failed to create intent counter", slogError(err))
	}
	return m
}

func (m *metrics) phraseAttempt(matched bool) {
	if m.phraseAttempts == nil {
		return
	}
	m.phraseAttempts.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("matched", matched)))
}

func (m *metrics) verification(accepted bool, similarity float64) {
	if m.verifications != nil {
		m.verifications.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Bool("accepted", accepted)))
	}
	if m.similarity != nil {
		m.similarity.Record(context.Background(), similarity)
	}
}

func (m *metrics) intentResolved(name string) {
	if m.intents == nil {
		return
	}
	m.intents.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("intent", name)))
}
