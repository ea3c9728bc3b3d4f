package audio

import (
	"encoding/binary"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes raw 16-bit little-endian PCM into a WAV file. Used by the
// exec STT and embedding adapters, which hand clips to external tools as
// files.
func WriteWAV(file *os.File, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &gaudio.IntBuffer{Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// TempWAV writes pcm to a temp WAV file and returns its path. Caller removes
// the file when done.
func TempWAV(pattern string, pcm []byte, sampleRate, channels int) (string, error) {
	file, err := os.CreateTemp(os.TempDir(), pattern)
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer file.Close()

	if err := WriteWAV(file, pcm, sampleRate, channels); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}
