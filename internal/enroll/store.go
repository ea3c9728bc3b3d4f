package enroll

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/voxgate-labs/voxgate-core/internal/voiceid"
)

// Store persists the single reference voiceprint. The on-disk format is a
// raw array of little-endian float32 values with no header; dimensionality
// is fixed by the embedding model and checked on load.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Save writes the reference voiceprint, creating parent directories as
// needed.
func (s *Store) Save(print voiceid.Voiceprint) error {
	if print.Dimension() == 0 {
		return fmt.Errorf("refusing to save empty voiceprint")
	}
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create enrollment dir: %w", err)
		}
	}
	data := make([]byte, 4*len(print))
	for i, v := range print {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write enrollment file: %w", err)
	}
	return nil
}

// Load reads the reference voiceprint and rejects files whose dimensionality
// does not match the configured embedding model.
func (s *Store) Load(expectedDim int) (voiceid.Voiceprint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no enrollment found at %s (run voxgate-enroll first): %w", s.path, err)
		}
		return nil, fmt.Errorf("read enrollment file: %w", err)
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt enrollment file %s: %d bytes is not a float32 array", s.path, len(data))
	}
	dim := len(data) / 4
	if dim != expectedDim {
		return nil, fmt.Errorf("enrollment dimension mismatch: file holds %d values, model expects %d", dim, expectedDim)
	}
	print := make(voiceid.Voiceprint, dim)
	for i := range print {
		print[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return print, nil
}
