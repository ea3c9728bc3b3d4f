package stt

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/audio"
	"github.com/voxgate-labs/voxgate-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		Mode:            "mock",
		SampleRate:      16000,
		Channels:        1,
		FrameDurationMS: 20,
		QueueDepth:      64,
	}
}

func pcmFrame(amplitude int16) []byte {
	frame := make([]byte, 640)
	for i := 0; i < len(frame); i += 2 {
		binary.LittleEndian.PutUint16(frame[i:], uint16(amplitude))
	}
	return frame
}

func loudFrames(n int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = pcmFrame(3000)
	}
	return frames
}

// idleInput delivers a stream that stays open but never produces frames.
type idleInput struct{}

func (idleInput) Open(ctx context.Context) (audio.Stream, error) {
	return idleStream{frames: make(chan []byte)}, nil
}

type idleStream struct{ frames chan []byte }

func (s idleStream) Frames() <-chan []byte { return s.frames }
func (s idleStream) Close() error          { return nil }

func TestTranscribeTimeoutReturnsNoUtterance(t *testing.T) {
	tr := NewTranscriber(idleInput{}, NewMockRecognizer(), testAudioConfig(), newLogger())

	start := time.Now()
	utt, err := tr.Transcribe(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utt != nil {
		t.Fatalf("expected no utterance, got %+v", utt)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("returned before the window elapsed: %v", elapsed)
	}
}

func TestTranscribeRecognizesSpeech(t *testing.T) {
	input := audio.NewScriptedInput(loudFrames(10))
	rec := NewMockRecognizer(TranscriptResult{Text: "hey it's infinity now", Confidence: 0.92})
	tr := NewTranscriber(input, rec, testAudioConfig(), newLogger())

	utt, err := tr.Transcribe(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utt == nil || utt.Text != "hey it's infinity now" {
		t.Fatalf("unexpected utterance: %+v", utt)
	}
}

func TestTranscribeSilentCaptureReturnsNothing(t *testing.T) {
	input := audio.NewScriptedInput([][]byte{pcmFrame(0), pcmFrame(0), pcmFrame(0)})
	tr := NewTranscriber(input, NewMockRecognizer(), testAudioConfig(), newLogger())

	utt, err := tr.Transcribe(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utt != nil {
		t.Fatalf("expected no utterance from silence, got %+v", utt)
	}
}

func TestTranscribeRecognizerError(t *testing.T) {
	wantErr := errors.New("decoder exploded")
	input := audio.NewScriptedInput(loudFrames(10))
	tr := NewTranscriber(input, NewFailingRecognizer(wantErr), testAudioConfig(), newLogger())

	if _, err := tr.Transcribe(context.Background(), time.Second); !errors.Is(err, wantErr) {
		t.Fatalf("expected recognizer error, got %v", err)
	}
}

func TestVADHysteresis(t *testing.T) {
	vad := newVAD()

	// A single loud frame must not trigger speech.
	if vad.IsSpeech(pcmFrame(3000)) {
		t.Fatal("one frame should not enter speech state")
	}
	vad.IsSpeech(pcmFrame(3000))
	if !vad.IsSpeech(pcmFrame(3000)) {
		t.Fatal("expected speech state after three loud frames")
	}

	// A short pause keeps the speech state; extended silence ends it.
	for i := 0; i < 5; i++ {
		vad.IsSpeech(pcmFrame(0))
	}
	if !vad.inSpeech {
		t.Fatal("short pause should not end speech")
	}
	for i := 0; i < 30; i++ {
		vad.IsSpeech(pcmFrame(0))
	}
	if vad.inSpeech {
		t.Fatal("expected silence state after extended quiet")
	}
}
