package audio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/config"
)

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		Mode:            "mock",
		SampleRate:      16000,
		Channels:        1,
		FrameDurationMS: 20,
		QueueDepth:      64,
	}
}

func TestFrameBytes(t *testing.T) {
	// 20ms of 16kHz mono s16le is 640 bytes.
	if got := FrameBytes(testAudioConfig()); got != 640 {
		t.Fatalf("expected 640 byte frames, got %d", got)
	}
}

func TestExclusiveOpen(t *testing.T) {
	input := &exclusiveInput{inner: NewScriptedInput(nil)}

	first, err := input.Open(context.Background())
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := input.Open(context.Background()); !errors.Is(err, ErrCaptureBusy) {
		t.Fatalf("expected ErrCaptureBusy, got %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := input.Open(context.Background())
	if err != nil {
		t.Fatalf("open after close: %v", err)
	}
	_ = second.Close()
}

func TestRecordClip(t *testing.T) {
	cfg := testAudioConfig()
	frame := bytes.Repeat([]byte{0x01, 0x02}, FrameBytes(cfg)/2)
	var frames [][]byte
	// 100ms of frames, more than the 40ms we ask for.
	for i := 0; i < 5; i++ {
		frames = append(frames, frame)
	}
	input := NewScriptedInput(frames)

	clip, err := RecordClip(context.Background(), input, cfg, 40*time.Millisecond)
	if err != nil {
		t.Fatalf("record clip: %v", err)
	}
	want := 16000 * 2 * 40 / 1000
	if len(clip) != want {
		t.Fatalf("expected %d bytes, got %d", want, len(clip))
	}
}

func TestRecordClipShortCapture(t *testing.T) {
	cfg := testAudioConfig()
	input := NewScriptedInput(nil)
	if _, err := RecordClip(context.Background(), input, cfg, time.Second); err == nil {
		t.Fatal("expected error when capture ends early")
	}
}
