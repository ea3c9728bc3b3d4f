package voiceid

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/audio"
	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// FailureKind identifies which stage of a verification attempt failed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureRecording FailureKind = "recording_failed"
	FailureEmbedding FailureKind = "embedding_failed"
)

// Outcome is the result of one verification attempt. Any internal failure
// leaves Accepted false: verification fails closed.
type Outcome struct {
	Accepted   bool
	Similarity float64
	Failure    FailureKind
	Err        error
}

// Verifier records a short voice sample and compares its embedding against
// the enrolled reference voiceprint.
type Verifier struct {
	input     audio.Input
	embedder  Embedder
	reference Voiceprint
	audioCfg  config.AudioConfig
	duration  time.Duration
	threshold float64
	logger    *slog.Logger
}

func NewVerifier(input audio.Input, embedder Embedder, reference Voiceprint, audioCfg config.AudioConfig, authCfg config.AuthConfig, logger *slog.Logger) *Verifier {
	return &Verifier{
		input:     input,
		embedder:  embedder,
		reference: reference,
		audioCfg:  audioCfg,
		duration:  time.Duration(authCfg.RecordDurationSec) * time.Second,
		threshold: authCfg.Threshold,
		logger:    logger.With(slog.String("component", "verifier")),
	}
}

// Verify runs one verification attempt. The recorded clip is transient: it
// lives in memory for the duration of the call and is released regardless of
// outcome.
func (v *Verifier) Verify(ctx context.Context) Outcome {
	v.logger.Info("recording voice sample", slog.Duration("duration", v.duration))
	clip, err := audio.RecordClip(ctx, v.input, v.audioCfg, v.duration)
	if err != nil {
		v.logger.Warn("voice sample recording failed", slog.String("error", err.Error()))
		return Outcome{Failure: FailureRecording, Err: err}
	}

	sample, err := v.embedder.Embed(ctx, clip, v.audioCfg.SampleRate, v.audioCfg.Channels)
	if err != nil {
		v.logger.Warn("voice sample embedding failed", slog.String("error", err.Error()))
		return Outcome{Failure: FailureEmbedding, Err: err}
	}

	similarity, err := InnerProduct(v.reference, sample)
	if err != nil {
		v.logger.Warn("voiceprint comparison failed", slog.String("error", err.Error()))
		return Outcome{Failure: FailureEmbedding, Err: err}
	}

	accepted := similarity >= v.threshold
	v.logger.Info("voice verification attempt",
		slog.Float64("similarity", similarity),
		slog.Float64("threshold", v.threshold),
		slog.Bool("accepted", accepted))
	return Outcome{Accepted: accepted, Similarity: similarity}
}
