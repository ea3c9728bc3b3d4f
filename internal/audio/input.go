package audio

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// ErrCaptureBusy is returned when a second consumer tries to open the
// microphone while another stream is still active.
var ErrCaptureBusy = errors.New("audio capture already in use")

// Stream delivers fixed-size PCM frames (16-bit little-endian samples) until
// closed. The channel is closed when the underlying capture ends.
type Stream interface {
	Frames() <-chan []byte
	Close() error
}

// Input opens microphone streams. At most one Stream may be open at a time;
// each listening operation opens its own stream and closes it when done.
type Input interface {
	Open(ctx context.Context) (Stream, error)
}

// FrameBytes returns the size in bytes of one capture frame.
func FrameBytes(cfg config.AudioConfig) int {
	return cfg.SampleRate * cfg.Channels * 2 * cfg.FrameDurationMS / 1000
}

// NewInput builds the configured capture backend, wrapped so that concurrent
// opens fail with ErrCaptureBusy instead of draining the same device.
func NewInput(cfg config.AudioConfig) (Input, error) {
	var inner Input
	switch cfg.Mode {
	case "exec":
		in, err := newExecInput(cfg)
		if err != nil {
			return nil, err
		}
		inner = in
	case "mock":
		inner = NewScriptedInput(nil)
	default:
		return nil, fmt.Errorf("unsupported audio mode %q", cfg.Mode)
	}
	return &exclusiveInput{inner: inner}, nil
}

type exclusiveInput struct {
	inner Input
	busy  atomic.Bool
}

func (e *exclusiveInput) Open(ctx context.Context) (Stream, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrCaptureBusy
	}
	stream, err := e.inner.Open(ctx)
	if err != nil {
		e.busy.Store(false)
		return nil, err
	}
	return &exclusiveStream{Stream: stream, owner: e}, nil
}

type exclusiveStream struct {
	Stream
	owner  *exclusiveInput
	closed atomic.Bool
}

func (s *exclusiveStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.Stream.Close()
	s.owner.busy.Store(false)
	return err
}

// RecordClip captures a fixed duration of audio into a transient buffer. The
// stream is opened for this call only and closed before returning.
func RecordClip(ctx context.Context, input Input, cfg config.AudioConfig, duration time.Duration) ([]byte, error) {
	stream, err := input.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer stream.Close()

	want := int(duration.Seconds() * float64(cfg.SampleRate*cfg.Channels*2))
	buf := make([]byte, 0, want)
	for len(buf) < want {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case frame, ok := <-stream.Frames():
			if !ok {
				return nil, fmt.Errorf("capture ended after %d of %d bytes", len(buf), want)
			}
			buf = append(buf, frame...)
		}
	}
	return buf[:want], nil
}
