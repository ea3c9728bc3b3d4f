package protocol

import "time"

// PhraseEvent reports one phrase-gate cycle.
type PhraseEvent struct {
	SessionID string    `json:"session_id"`
	Heard     string    `json:"heard,omitempty"`
	Matched   bool      `json:"matched"`
	Timeout   bool      `json:"timeout"`
	Attempt   int       `json:"attempt"`
	Timestamp time.Time `json:"timestamp"`
}

// VerifyEvent reports the outcome of a speaker verification attempt.
type VerifyEvent struct {
	SessionID  string    `json:"session_id"`
	Similarity float64   `json:"similarity"`
	Accepted   bool      `json:"accepted"`
	Failure    string    `json:"failure,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// IntentEvent reports the intent resolved from a command transcript.
type IntentEvent struct {
	SessionID  string    `json:"session_id"`
	Transcript string    `json:"transcript,omitempty"`
	Intent     string    `json:"intent"`
	Timestamp  time.Time `json:"timestamp"`
}

// DispatchEvent reports the result of executing the resolved intent.
type DispatchEvent struct {
	SessionID string    `json:"session_id"`
	Intent    string    `json:"intent"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectPhraseResult   = "auth.phrase.result"
	SubjectVerifyResult   = "auth.verify.result"
	SubjectIntentResolved = "auth.intent.resolved"
	SubjectDispatchDone   = "auth.dispatch.done"
)
