package tts

import (
	"context"
	"fmt"

	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// Speaker voices user feedback for stage transitions and denials.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// NewSpeaker builds the configured speech backend. Disabled TTS yields a
// no-op speaker; feedback still reaches the log.
func NewSpeaker(cfg config.TTSConfig) (Speaker, error) {
	if !cfg.Enabled {
		return NopSpeaker{}, nil
	}
	switch cfg.Mode {
	case "exec":
		return NewExecSpeaker(cfg)
	case "mock":
		return NewMockSpeaker(), nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}

// NopSpeaker swallows all speech.
type NopSpeaker struct{}

func (NopSpeaker) Say(context.Context, string) error { return nil }
