package stt

import (
	"context"
	"sync"
)

type mockRecognizer struct {
	mu      sync.Mutex
	results []TranscriptResult
	errs    []error
}

// NewMockRecognizer returns a recognizer that replays scripted results in
// order, then empty transcripts. Used by the mock STT mode and tests.
func NewMockRecognizer(results ...TranscriptResult) Recognizer {
	return &mockRecognizer{results: results}
}

// NewFailingRecognizer returns a recognizer whose next calls fail with the
// given errors.
func NewFailingRecognizer(errs ...error) Recognizer {
	return &mockRecognizer{errs: errs}
}

func (m *mockRecognizer) Transcribe(_ context.Context, _ []byte, _ int, _ int) (TranscriptResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return TranscriptResult{}, err
	}
	if len(m.results) == 0 {
		return TranscriptResult{}, nil
	}
	result := m.results[0]
	m.results = m.results[1:]
	return result, nil
}
