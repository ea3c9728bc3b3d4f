package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/audio"
	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// Utterance is a finalized transcription.
type Utterance struct {
	Text       string
	Confidence float64
}

// Transcriber turns one bounded listening window into at most one utterance.
// Each call opens its own capture stream and endpoints with a fresh VAD, so
// a timed-out partial utterance never leaks into the next call.
type Transcriber struct {
	input      audio.Input
	recognizer Recognizer
	cfg        config.AudioConfig
	logger     *slog.Logger
}

func NewTranscriber(input audio.Input, recognizer Recognizer, cfg config.AudioConfig, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		input:      input,
		recognizer: recognizer,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "transcriber")),
	}
}

// Transcribe listens until the recognizer produces a non-empty utterance or
// timeout elapses. The timeout is wall-clock, measured from the call start,
// independent of audio arrival. Returns (nil, nil) when nothing was heard.
func (t *Transcriber) Transcribe(ctx context.Context, timeout time.Duration) (*Utterance, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stream, err := t.input.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer stream.Close()

	vad := newVAD()
	var buf []byte
	hadSpeech := false

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				t.logger.Debug("listening window elapsed without utterance")
				return nil, nil
			}
			return nil, ctx.Err()
		case frame, ok := <-stream.Frames():
			if !ok {
				// Capture ended; recognize whatever speech was buffered.
				if hadSpeech {
					return t.finalize(context.WithoutCancel(ctx), buf)
				}
				return nil, nil
			}
			buf = append(buf, frame...)
			speaking := vad.IsSpeech(frame)
			if speaking {
				hadSpeech = true
				continue
			}
			if hadSpeech {
				utt, err := t.finalize(ctx, buf)
				if err != nil || utt != nil {
					return utt, err
				}
				// Empty transcript: keep listening within the same window.
				buf = buf[:0]
				hadSpeech = false
				vad.Reset()
			}
		}
	}
}

func (t *Transcriber) finalize(ctx context.Context, pcm []byte) (*Utterance, error) {
	result, err := t.recognizer.Transcribe(ctx, pcm, t.cfg.SampleRate, t.cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("transcribe utterance: %w", err)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return nil, nil
	}
	t.logger.Info("utterance recognized",
		slog.String("text", text),
		slog.Float64("confidence", result.Confidence))
	return &Utterance{Text: text, Confidence: result.Confidence}, nil
}
