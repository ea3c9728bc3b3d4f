package voiceid

import (
	"context"
)

type fixedEmbedder struct {
	print Voiceprint
}

// NewFixedEmbedder returns an embedder that always produces the given
// voiceprint. Used by the mock embedding mode and tests.
func NewFixedEmbedder(print Voiceprint) Embedder {
	return &fixedEmbedder{print: print}
}

func (f *fixedEmbedder) Embed(_ context.Context, _ []byte, _ int, _ int) (Voiceprint, error) {
	out := make(Voiceprint, len(f.print))
	copy(out, f.print)
	return out, nil
}

type failingEmbedder struct {
	err error
}

// NewFailingEmbedder returns an embedder that always fails.
func NewFailingEmbedder(err error) Embedder {
	return &failingEmbedder{err: err}
}

func (f *failingEmbedder) Embed(_ context.Context, _ []byte, _ int, _ int) (Voiceprint, error) {
	return nil, f.err
}
