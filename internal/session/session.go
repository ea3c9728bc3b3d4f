package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/voxgate-labs/voxgate-core/internal/audit"
	"github.com/voxgate-labs/voxgate-core/internal/bus"
	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/gate"
	"github.com/voxgate-labs/voxgate-core/internal/intent"
	"github.com/voxgate-labs/voxgate-core/internal/protocol"
	"github.com/voxgate-labs/voxgate-core/internal/tts"
	"github.com/voxgate-labs/voxgate-core/internal/voiceid"
)

// State of the authentication session.
type State string

const (
	StateStart          State = "start"
	StatePhrasePending  State = "phrase_pending"
	StateVoicePending   State = "voice_pending"
	StateCommandPending State = "command_pending"
	StateDispatched     State = "dispatched"
	StateDenied         State = "denied"
)

// DenialReason distinguishes the user-visible denial paths.
type DenialReason string

const (
	ReasonNone          DenialReason = ""
	ReasonWrongPhrase   DenialReason = "wrong_phrase"
	ReasonVoiceMismatch DenialReason = "voice_mismatch"
)

// Result is the terminal outcome of one session run.
type Result struct {
	State      State
	Denial     DenialReason
	Intent     intent.Intent
	Similarity float64
}

// Verifier is the voice-verification dependency.
type Verifier interface {
	Verify(ctx context.Context) voiceid.Outcome
}

// Dispatcher executes a resolved intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, in intent.Intent) error
}

// Deps collects the session's collaborators. Audit and Bus may be nil.
type Deps struct {
	Gate        *gate.PhraseGate
	Verifier    Verifier
	Transcriber gate.Transcriber
	Resolver    *intent.Resolver
	Dispatcher  Dispatcher
	Speaker     tts.Speaker
	Audit       *audit.Store
	Bus         *bus.Client
}

// Session drives the two-stage authentication pipeline: phrase gate, then
// speaker verification, then command dispatch. Authentication always
// precedes action; a failed verification is terminal for the session.
type Session struct {
	id      string
	cfg     config.AuthConfig
	deps    Deps
	logger  *slog.Logger
	metrics *metrics
	state   State
}

func New(cfg config.AuthConfig, deps Deps, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With(slog.String("component", "session"), slog.String("session_id", id)),
		metrics: newMetrics(logger),
		state:   StateStart,
	}
}

func (s *Session) ID() string { return s.id }

// Run executes the state machine to a terminal state. A non-nil error means
// the run was aborted (context cancellation) before reaching one.
func (s *Session) Run(ctx context.Context) (Result, error) {
	if s.deps.Audit != nil {
		if err := s.deps.Audit.BeginSession(ctx, s.id); err != nil {
			s.logger.Warn("failed to record session start", slogError(err))
		}
	}

	s.transition(StatePhrasePending)
	s.deps.Gate.Notify = s.observePhraseAttempt
	if err := s.deps.Gate.AwaitPhrase(ctx); err != nil {
		if errors.Is(err, gate.ErrRetriesExhausted) {
			return s.deny(ctx, ReasonWrongPhrase, 0), nil
		}
		return Result{}, err
	}

	s.transition(StateVoicePending)
	outcome := s.deps.Verifier.Verify(ctx)
	s.recordVerification(outcome)
	if !outcome.Accepted {
		return s.deny(ctx, ReasonVoiceMismatch, outcome.Similarity), nil
	}

	s.transition(StateCommandPending)
	s.say(ctx, "Voice verified. What do you want me to do?")
	transcript := s.listenForCommand(ctx)

	resolved := s.deps.Resolver.Resolve(transcript)
	s.recordIntent(transcript, resolved)

	dispatchErr := s.deps.Dispatcher.Dispatch(ctx, resolved)
	s.recordDispatch(resolved, dispatchErr)

	s.transition(StateDispatched)
	if s.deps.Audit != nil {
		if err := s.deps.Audit.FinishSession(ctx, s.id, audit.OutcomeDispatched); err != nil {
			s.logger.Warn("failed to record session outcome", slogError(err))
		}
	}
	return Result{State: StateDispatched, Intent: resolved, Similarity: outcome.Similarity}, nil
}

func (s *Session) listenForCommand(ctx context.Context) string {
	timeout := time.Duration(s.cfg.ListenTimeoutSec) * time.Second
	utt, err := s.deps.Transcriber.Transcribe(ctx, timeout)
	if err != nil {
		s.logger.Warn("command listening failed", slogError(err))
		return ""
	}
	if utt == nil {
		s.logger.Info("no command heard within window")
		return ""
	}
	s.logger.Info("command transcript", slog.String("text", utt.Text))
	return utt.Text
}

func (s *Session) deny(ctx context.Context, reason DenialReason, similarity float64) Result {
	s.transition(StateDenied)
	switch reason {
	case ReasonWrongPhrase:
		s.say(ctx, "Access denied. Wrong phrase.")
	case ReasonVoiceMismatch:
		s.say(ctx, "Access denied. Voice mismatch.")
	}
	if s.deps.Audit != nil {
		if err := s.deps.Audit.FinishSession(ctx, s.id, audit.OutcomeDenied); err != nil {
			s.logger.Warn("failed to record session outcome", slogError(err))
		}
	}
	return Result{State: StateDenied, Denial: reason, Similarity: similarity}
}

func (s *Session) transition(next State) {
	s.logger.Info("session state", slog.String("from", string(s.state)), slog.String("to", string(next)))
	s.state = next
}

func (s *Session) observePhraseAttempt(a gate.Attempt) {
	s.metrics.phraseAttempt(a.Matched)
	evt := protocol.PhraseEvent{
		SessionID: s.id,
		Heard:     a.Heard,
		Matched:   a.Matched,
		Timeout:   a.TimedOut,
		Attempt:   a.Attempt,
		Timestamp: time.Now().UTC(),
	}
	s.publish(protocol.SubjectPhraseResult, evt)
	s.auditEvent(audit.StagePhrase, evt)
}

func (s *Session) recordVerification(outcome voiceid.Outcome) {
	s.metrics.verification(outcome.Accepted, outcome.Similarity)
	evt := protocol.VerifyEvent{
		SessionID:  s.id,
		Similarity: outcome.Similarity,
		Accepted:   outcome.Accepted,
		Failure:    string(outcome.Failure),
		Timestamp:  time.Now().UTC(),
	}
	s.publish(protocol.SubjectVerifyResult, evt)
	s.auditEvent(audit.StageVerify, evt)
}

func (s *Session) recordIntent(transcript string, in intent.Intent) {
	s.metrics.intentResolved(string(in))
	evt := protocol.IntentEvent{
		SessionID:  s.id,
		Transcript: transcript,
		Intent:     string(in),
		Timestamp:  time.Now().UTC(),
	}
	s.publish(protocol.SubjectIntentResolved, evt)
	s.auditEvent(audit.StageIntent, evt)
}

func (s *Session) recordDispatch(in intent.Intent, dispatchErr error) {
	evt := protocol.DispatchEvent{
		SessionID: s.id,
		Intent:    string(in),
		OK:        dispatchErr == nil,
		Timestamp: time.Now().UTC(),
	}
	if dispatchErr != nil {
		evt.Error = dispatchErr.Error()
	}
	s.publish(protocol.SubjectDispatchDone, evt)
	s.auditEvent(audit.StageDispatch, evt)
}

func (s *Session) publish(subject string, payload any) {
	if s.deps.Bus != nil {
		s.deps.Bus.PublishJSON(subject, payload)
	}
}

func (s *Session) auditEvent(stage string, payload any) {
	if s.deps.Audit == nil {
		return
	}
	detail, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal audit detail", slogError(err))
		return
	}
	if err := s.deps.Audit.AppendEvent(context.Background(), audit.Event{
		SessionID: s.id,
		Stage:     stage,
		Detail:    detail,
	}); err != nil {
		s.logger.Warn("failed to append audit event", slogError(err))
	}
}

func (s *Session) say(ctx context.Context, text string) {
	if err := s.deps.Speaker.Say(ctx, text); err != nil {
		s.logger.Warn("speech output failed", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
