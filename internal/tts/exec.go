package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/voxgate-labs/voxgate-core/internal/config"
)

type execSpeaker struct {
	cmd   []string
	voice string
	mu    sync.Mutex
}

// NewExecSpeaker wraps an external TTS command (say, espeak, piper) that
// reads text from stdin.
func NewExecSpeaker(cfg config.TTSConfig) (Speaker, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command is empty")
	}
	return &execSpeaker{cmd: args, voice: cfg.Voice}, nil
}

func (e *execSpeaker) Say(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	args := append([]string{}, e.cmd[1:]...)
	if e.voice != "" {
		args = append(args, "-v", e.voice)
	}
	cmd := exec.CommandContext(ctx, e.cmd[0], args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tts command failed: %w", err)
	}
	return nil
}
