package tts

import (
	"context"
	"sync"
)

// MockSpeaker records everything said, for tests and the mock TTS mode.
type MockSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func NewMockSpeaker() *MockSpeaker {
	return &MockSpeaker{}
}

func (m *MockSpeaker) Say(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, text)
	return nil
}

// Spoken returns a copy of everything said so far.
func (m *MockSpeaker) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}
