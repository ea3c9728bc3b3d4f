package voiceid

import (
	"fmt"
	"math"
)

// Voiceprint is a fixed-length speaker embedding. The reference voiceprint
// is loaded once at startup and is read-only afterwards; sample voiceprints
// are computed per verification attempt and discarded.
type Voiceprint []float32

func (v Voiceprint) Dimension() int { return len(v) }

// InnerProduct computes the inner product of two voiceprints. For the
// unit-normalized embeddings produced by speaker encoders this equals cosine
// similarity. Errors on dimension mismatch rather than computing a bogus
// score.
func InnerProduct(a, b Voiceprint) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("voiceprint dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("voiceprint is empty")
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Cosine computes cosine similarity, for embeddings that are not
// unit-normalized.
func Cosine(a, b Voiceprint) (float64, error) {
	dot, err := InnerProduct(a, b)
	if err != nil {
		return 0, err
	}
	var na, nb float64
	for i := range a {
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, fmt.Errorf("voiceprint has zero norm")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
