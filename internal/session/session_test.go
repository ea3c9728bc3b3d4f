package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/audit"
	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/gate"
	"github.com/voxgate-labs/voxgate-core/internal/intent"
	"github.com/voxgate-labs/voxgate-core/internal/stt"
	"github.com/voxgate-labs/voxgate-core/internal/tts"
	"github.com/voxgate-labs/voxgate-core/internal/voiceid"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type scriptedTranscriber struct {
	utterances []*stt.Utterance
}

func (s *scriptedTranscriber) Transcribe(ctx context.Context, _ time.Duration) (*stt.Utterance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.utterances) == 0 {
		return nil, nil
	}
	utt := s.utterances[0]
	s.utterances = s.utterances[1:]
	return utt, nil
}

type fixedVerifier struct {
	outcome voiceid.Outcome
}

func (f fixedVerifier) Verify(context.Context) voiceid.Outcome { return f.outcome }

type recordingDispatcher struct {
	dispatched []intent.Intent
	err        error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, in intent.Intent) error {
	d.dispatched = append(d.dispatched, in)
	return d.err
}

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		Phrase:            "infinity",
		PhraseTimeoutSec:  1,
		ListenTimeoutSec:  1,
		RecordDurationSec: 1,
		Threshold:         0.6,
		MaxPhraseRetries:  2,
	}
}

func newSession(t *testing.T, phraseUtts, commandUtts []*stt.Utterance, verifier Verifier, dispatcher Dispatcher, store *audit.Store) (*Session, *tts.MockSpeaker) {
	t.Helper()
	cfg := authConfig()
	speaker := tts.NewMockSpeaker()
	resolver, err := intent.NewResolver(config.DefaultIntentRules())
	if err != nil {
		t.Fatalf("build resolver: %v", err)
	}
	phraseTranscriber := &scriptedTranscriber{utterances: phraseUtts}
	g := gate.NewPhraseGate(phraseTranscriber, speaker, cfg, newLogger())
	s := New(cfg, Deps{
		Gate:        g,
		Verifier:    verifier,
		Transcriber: &scriptedTranscriber{utterances: commandUtts},
		Resolver:    resolver,
		Dispatcher:  dispatcher,
		Speaker:     speaker,
		Audit:       store,
	}, newLogger())
	return s, speaker
}

func openStore(t *testing.T) *audit.Store {
	t.Helper()
	cfg := config.AuditConfig{Path: filepath.Join(t.TempDir(), "audit.db"), RetentionMode: "session"}
	store, err := audit.Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunDispatchesAfterBothGates(t *testing.T) {
	store := openStore(t)
	dispatcher := &recordingDispatcher{}
	s, _ := newSession(t,
		[]*stt.Utterance{{Text: "hey it's infinity now"}},
		[]*stt.Utterance{{Text: "open chrome and play music"}},
		fixedVerifier{voiceid.Outcome{Accepted: true, Similarity: 1.0}},
		dispatcher, store)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateDispatched {
		t.Fatalf("expected dispatched, got %+v", result)
	}
	// First declared rule wins for overlapping transcripts.
	if result.Intent != intent.OpenBrowser {
		t.Fatalf("expected open_browser, got %v", result.Intent)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != intent.OpenBrowser {
		t.Fatalf("unexpected dispatches: %v", dispatcher.dispatched)
	}

	events, err := store.ListSessionEvents(context.Background(), s.ID(), 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	stages := make([]string, 0, len(events))
	for _, e := range events {
		stages = append(stages, e.Stage)
	}
	want := []string{audit.StagePhrase, audit.StageVerify, audit.StageIntent, audit.StageDispatch}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("expected stages %v, got %v", want, stages)
		}
	}
}

func TestRunDeniesOnVoiceMismatch(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	s, speaker := newSession(t,
		[]*stt.Utterance{{Text: "infinity"}},
		nil,
		fixedVerifier{voiceid.Outcome{Accepted: false, Similarity: 0.02}},
		dispatcher, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateDenied || result.Denial != ReasonVoiceMismatch {
		t.Fatalf("expected voice-mismatch denial, got %+v", result)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Fatal("denied session must not dispatch")
	}
	var spoke bool
	for _, line := range speaker.Spoken() {
		if strings.Contains(line, "Voice mismatch") {
			spoke = true
		}
	}
	if !spoke {
		t.Fatalf("expected voice-mismatch feedback, got %v", speaker.Spoken())
	}
}

func TestRunDeniesClosedOnVerifierFailure(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	s, _ := newSession(t,
		[]*stt.Utterance{{Text: "infinity"}},
		nil,
		fixedVerifier{voiceid.Outcome{Failure: voiceid.FailureEmbedding, Err: errors.New("model died")}},
		dispatcher, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateDenied {
		t.Fatalf("verifier failure must deny, got %+v", result)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Fatal("denied session must not dispatch")
	}
}

func TestRunDeniesWhenPhraseRetriesExhausted(t *testing.T) {
	s, speaker := newSession(t,
		[]*stt.Utterance{{Text: "wrong"}, {Text: "also wrong"}},
		nil,
		fixedVerifier{voiceid.Outcome{Accepted: true, Similarity: 1}},
		&recordingDispatcher{}, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateDenied || result.Denial != ReasonWrongPhrase {
		t.Fatalf("expected wrong-phrase denial, got %+v", result)
	}
	var spoke bool
	for _, line := range speaker.Spoken() {
		if strings.Contains(line, "Wrong phrase") {
			spoke = true
		}
	}
	if !spoke {
		t.Fatalf("expected wrong-phrase feedback, got %v", speaker.Spoken())
	}
}

func TestRunSilentCommandFallsBackToUnlock(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	s, _ := newSession(t,
		[]*stt.Utterance{{Text: "infinity"}},
		nil, // command window times out
		fixedVerifier{voiceid.Outcome{Accepted: true, Similarity: 0.9}},
		dispatcher, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateDispatched || result.Intent != intent.DefaultUnlock {
		t.Fatalf("expected default_unlock dispatch, got %+v", result)
	}
}

func TestRunDispatchFailureStillCompletes(t *testing.T) {
	dispatcher := &recordingDispatcher{err: errors.New("launch failed")}
	s, _ := newSession(t,
		[]*stt.Utterance{{Text: "infinity"}},
		[]*stt.Utterance{{Text: "open mail"}},
		fixedVerifier{voiceid.Outcome{Accepted: true, Similarity: 0.95}},
		dispatcher, nil)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != StateDispatched || result.Intent != intent.OpenMail {
		t.Fatalf("dispatch failure must not prevent completion, got %+v", result)
	}
}

func TestRunAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, _ := newSession(t, nil, nil,
		fixedVerifier{voiceid.Outcome{Accepted: true, Similarity: 1}},
		&recordingDispatcher{}, nil)

	if _, err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
