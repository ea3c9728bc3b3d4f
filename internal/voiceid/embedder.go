package voiceid

import (
	"context"
	"fmt"

	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// Embedder abstracts the speaker-encoder model mapping an audio clip to a
// fixed-length voiceprint.
type Embedder interface {
	Embed(ctx context.Context, pcm []byte, sampleRate int, channels int) (Voiceprint, error)
}

// NewEmbedder builds the configured embedding backend.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecEmbedder(cfg)
	case "mock":
		return NewFixedEmbedder(make(Voiceprint, cfg.Dimension)), nil
	default:
		return nil, fmt.Errorf("unsupported embedding mode %q", cfg.Mode)
	}
}
