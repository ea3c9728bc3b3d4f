package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/voxgate-labs/voxgate-core/internal/audio"
	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/enroll"
	"github.com/voxgate-labs/voxgate-core/internal/voiceid"
)

var version = "0.1.0-dev"

// voxgate-enroll captures (or reads) a reference clip of the owner's voice,
// runs it through the speaker encoder, and writes the voiceprint that
// voxgated verifies against.
func main() {
	var (
		configPath  string
		wavPath     string
		durationSec int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "voxgate.yaml", "Path to configuration file")
	flag.StringVar(&wavPath, "wav", "", "Enroll from an existing WAV file instead of the microphone")
	flag.IntVar(&durationSec, "duration", 0, "Recording length in seconds (default: auth.record_duration_s)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if durationSec <= 0 {
		durationSec = cfg.Auth.RecordDurationSec
	}

	ctx := context.Background()

	var (
		pcm        []byte
		sampleRate = cfg.Audio.SampleRate
		channels   = cfg.Audio.Channels
	)
	if wavPath != "" {
		pcm, sampleRate, channels, err = readWAV(wavPath)
		if err != nil {
			logger.Error("failed to read WAV file", slog.String("path", wavPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
	} else {
		input, err := audio.NewInput(cfg.Audio)
		if err != nil {
			logger.Error("failed to open audio input", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Speak now: recording %d seconds of your voice...\n", durationSec)
		pcm, err = audio.RecordClip(ctx, input, cfg.Audio, time.Duration(durationSec)*time.Second)
		if err != nil {
			logger.Error("recording failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	embedder, err := voiceid.NewEmbedder(cfg.Embedding)
	if err != nil {
		logger.Error("failed to build embedder", slog.String("error", err.Error()))
		os.Exit(1)
	}
	voiceprint, err := embedder.Embed(ctx, pcm, sampleRate, channels)
	if err != nil {
		logger.Error("embedding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := enroll.NewStore(cfg.Enrollment.Path)
	if err := store.Save(voiceprint); err != nil {
		logger.Error("failed to save voiceprint", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("enrollment complete",
		slog.String("path", store.Path()),
		slog.Int("dimension", len(voiceprint)))
	fmt.Printf("Voiceprint saved to %s (%d dimensions).\n", store.Path(), len(voiceprint))
}

// readWAV decodes a PCM WAV file into raw 16-bit little-endian samples.
func readWAV(path string) (pcm []byte, sampleRate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	if dec.BitDepth != 16 {
		return nil, 0, 0, fmt.Errorf("%s: only 16-bit PCM is supported, got %d-bit", path, dec.BitDepth)
	}

	pcm = make([]byte, 2*len(buf.Data))
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(sample)))
	}
	return pcm, int(dec.SampleRate), int(dec.NumChans), nil
}
