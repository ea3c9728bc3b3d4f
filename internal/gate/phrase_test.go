package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/stt"
	"github.com/voxgate-labs/voxgate-core/internal/tts"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedTranscriber replays utterances in order; nil entries simulate
// silent windows.
type scriptedTranscriber struct {
	utterances []*stt.Utterance
	errs       []error
	calls      int
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, _ time.Duration) (*stt.Utterance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	if len(s.utterances) == 0 {
		return nil, nil
	}
	utt := s.utterances[0]
	s.utterances = s.utterances[1:]
	return utt, nil
}

func authConfig(maxRetries int) config.AuthConfig {
	return config.AuthConfig{
		Phrase:           "infinity",
		PhraseTimeoutSec: 1,
		MaxPhraseRetries: maxRetries,
	}
}

func TestAwaitPhraseMatchesSubstringCaseInsensitive(t *testing.T) {
	tr := &scriptedTranscriber{utterances: []*stt.Utterance{
		{Text: "hey it's INFINITY now"},
	}}
	g := NewPhraseGate(tr, tts.NewMockSpeaker(), authConfig(0), newLogger())

	if err := g.AwaitPhrase(context.Background()); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected one cycle, got %d", tr.calls)
	}
}

func TestAwaitPhraseRetriesOnSilenceAndWrongPhrase(t *testing.T) {
	tr := &scriptedTranscriber{utterances: []*stt.Utterance{
		nil,
		{Text: "infin ity"}, // split phrase is not a match
		{Text: "open sesame"},
		{Text: "infinity"},
	}}
	speaker := tts.NewMockSpeaker()
	var attempts []Attempt
	g := NewPhraseGate(tr, speaker, authConfig(0), newLogger())
	g.Notify = func(a Attempt) { attempts = append(attempts, a) }

	if err := g.AwaitPhrase(context.Background()); err != nil {
		t.Fatalf("expected eventual match, got %v", err)
	}
	if tr.calls != 4 {
		t.Fatalf("expected 4 cycles, got %d", tr.calls)
	}
	if len(attempts) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(attempts))
	}
	if !attempts[0].TimedOut || attempts[1].Matched || attempts[2].Matched || !attempts[3].Matched {
		t.Fatalf("unexpected attempt sequence: %+v", attempts)
	}
	// Each miss must produce a spoken notice, plus one for the match.
	if spoken := speaker.Spoken(); len(spoken) != 4 {
		t.Fatalf("expected 4 spoken notices, got %v", spoken)
	}
}

func TestAwaitPhraseRetryBound(t *testing.T) {
	tr := &scriptedTranscriber{}
	g := NewPhraseGate(tr, tts.NewMockSpeaker(), authConfig(3), newLogger())

	if err := g.AwaitPhrase(context.Background()); !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if tr.calls != 3 {
		t.Fatalf("expected 3 cycles, got %d", tr.calls)
	}
}

func TestAwaitPhraseAbortsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewPhraseGate(&scriptedTranscriber{}, tts.NewMockSpeaker(), authConfig(0), newLogger())

	if err := g.AwaitPhrase(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestAwaitPhraseTreatsErrorsAsSilence(t *testing.T) {
	tr := &scriptedTranscriber{
		errs:       []error{errors.New("decoder glitch")},
		utterances: []*stt.Utterance{{Text: "infinity"}},
	}
	g := NewPhraseGate(tr, tts.NewMockSpeaker(), authConfig(0), newLogger())

	if err := g.AwaitPhrase(context.Background()); err != nil {
		t.Fatalf("expected recovery after transient error, got %v", err)
	}
	if tr.calls != 2 {
		t.Fatalf("expected 2 cycles, got %d", tr.calls)
	}
}
