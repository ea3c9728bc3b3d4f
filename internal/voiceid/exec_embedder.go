package voiceid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
	"github.com/voxgate-labs/voxgate-core/internal/audio"
	"github.com/voxgate-labs/voxgate-core/internal/config"
)

type execEmbedder struct {
	cmd []string
	cfg config.EmbeddingConfig
	mu  sync.Mutex
}

type execEmbedding struct {
	Embedding []float32 `json:"embedding"`
}

// NewExecEmbedder wraps an external speaker-encoder command that accepts
// --audio <wav> and prints a JSON embedding vector.
func NewExecEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse embedding command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("embedding command is empty")
	}
	return &execEmbedder{cmd: args, cfg: cfg}, nil
}

func (e *execEmbedder) Embed(ctx context.Context, pcm []byte, sampleRate int, channels int) (Voiceprint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	path, err := audio.TempWAV("voxgate_embed_*.wav", pcm, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	cmdArgs := append([]string{}, e.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", path)
	if e.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", e.cfg.ModelPath)
	}

	command := exec.CommandContext(ctx, e.cmd[0], cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("embedding command failed: %w: %s", err, stderr.String())
	}

	var resp execEmbedding
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(resp.Embedding) != e.cfg.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: model produced %d, expected %d", len(resp.Embedding), e.cfg.Dimension)
	}
	return Voiceprint(resp.Embedding), nil
}
