package audit

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxgate-labs/voxgate-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.AuditConfig{RetentionMode: "ephemeral"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Ephemeral stores accept writes silently and return nothing.
	if err := s.AppendEvent(context.Background(), Event{SessionID: "x", Stage: StagePhrase}); err != nil {
		t.Fatalf("append: %v", err)
	}
	events, err := s.ListSessionEvents(context.Background(), "x", 10)
	if err != nil || events != nil {
		t.Fatalf("expected no records, got %v, %v", events, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.AuditConfig{Path: filepath.Join(tmp, "audit.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	if err := s.BeginSession(context.Background(), sessionID); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.AppendEvent(context.Background(), Event{SessionID: sessionID, Stage: StagePhrase, Detail: []byte(`{"matched":true}`)}); err != nil {
		t.Fatalf("append phrase event: %v", err)
	}
	if err := s.AppendEvent(context.Background(), Event{SessionID: sessionID, Stage: StageVerify, Detail: []byte(`{"similarity":0.91}`)}); err != nil {
		t.Fatalf("append verify event: %v", err)
	}
	if err := s.FinishSession(context.Background(), sessionID, OutcomeDispatched); err != nil {
		t.Fatalf("finish session: %v", err)
	}

	events, err := s.ListSessionEvents(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Stage != StagePhrase || events[1].Stage != StageVerify {
		t.Fatalf("unexpected stage order: %v, %v", events[0].Stage, events[1].Stage)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.AuditConfig{Path: filepath.Join(tmp, "audit.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginSession(context.Background(), "old-session"); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.AppendEvent(context.Background(), Event{SessionID: "old-session", Stage: StagePhrase}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginSession(context.Background(), "new-session"); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := s.ListSessionEvents(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
