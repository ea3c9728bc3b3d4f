package gate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/stt"
	"github.com/voxgate-labs/voxgate-core/internal/tts"
)

// ErrRetriesExhausted is returned when a configured retry bound runs out
// before the secret phrase is heard.
var ErrRetriesExhausted = errors.New("phrase retries exhausted")

// Transcriber is the listening dependency of the gate.
type Transcriber interface {
	Transcribe(ctx context.Context, timeout time.Duration) (*stt.Utterance, error)
}

// Attempt describes one phrase-gate cycle, for observers.
type Attempt struct {
	Attempt  int
	Heard    string
	Matched  bool
	TimedOut bool
}

// PhraseGate listens repeatedly until an utterance contains the secret
// phrase. By default it retries until the phrase matches or the context is
// canceled; a retry bound can be configured so automated runs terminate.
type PhraseGate struct {
	transcriber Transcriber
	speaker     tts.Speaker
	phrase      string
	timeout     time.Duration
	maxRetries  int
	logger      *slog.Logger

	// Notify, when set, observes every cycle. Used for audit records and
	// bus events.
	Notify func(Attempt)
}

func NewPhraseGate(transcriber Transcriber, speaker tts.Speaker, cfg config.AuthConfig, logger *slog.Logger) *PhraseGate {
	return &PhraseGate{
		transcriber: transcriber,
		speaker:     speaker,
		phrase:      strings.ToLower(strings.TrimSpace(cfg.Phrase)),
		timeout:     time.Duration(cfg.PhraseTimeoutSec) * time.Second,
		maxRetries:  cfg.MaxPhraseRetries,
		logger:      logger.With(slog.String("component", "phrase-gate")),
	}
}

// AwaitPhrase blocks until some utterance contains the secret phrase as a
// case-insensitive substring. Nil means the gate committed; the only other
// exits are context cancellation and an exhausted retry bound.
func (g *PhraseGate) AwaitPhrase(ctx context.Context) error {
	g.logger.Info("waiting for secret phrase")
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		utt, err := g.transcriber.Transcribe(ctx, g.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Recognition errors are treated like silence: notify and retry.
			g.logger.Warn("phrase listening failed", slog.String("error", err.Error()))
			utt = nil
		}

		switch {
		case utt == nil:
			g.logger.Info("no utterance within window", slog.Int("attempt", attempt))
			g.notify(Attempt{Attempt: attempt, TimedOut: true})
			g.say(ctx, "Didn't hear anything, try again.")
		case strings.Contains(strings.ToLower(utt.Text), g.phrase):
			g.logger.Info("secret phrase matched", slog.Int("attempt", attempt))
			g.notify(Attempt{Attempt: attempt, Heard: utt.Text, Matched: true})
			g.say(ctx, "Secret phrase recognized.")
			return nil
		default:
			g.logger.Info("wrong phrase", slog.Int("attempt", attempt))
			g.notify(Attempt{Attempt: attempt, Heard: utt.Text})
			g.say(ctx, "Wrong phrase, try again.")
		}

		if g.maxRetries > 0 && attempt >= g.maxRetries {
			return ErrRetriesExhausted
		}
	}
}

func (g *PhraseGate) notify(a Attempt) {
	if g.Notify != nil {
		g.Notify(a)
	}
}

func (g *PhraseGate) say(ctx context.Context, text string) {
	if err := g.speaker.Say(ctx, text); err != nil {
		g.logger.Warn("speech output failed", slog.String("error", err.Error()))
	}
}
