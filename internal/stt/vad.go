package stt

import (
	"encoding/binary"
	"math"
)

// rmsVAD is an RMS-energy voice activity detector with hysteresis, used for
// endpointing: the transcriber finalizes an utterance when the detector
// falls back from speech to silence.
type rmsVAD struct {
	speechThreshold  float64
	silenceThreshold float64
	speechFrames     int
	silenceFrames    int
	inSpeech         bool
	speechCount      int
	silenceCount     int
}

// newVAD returns a detector tuned for 16kHz 20ms frames.
func newVAD() *rmsVAD {
	return &rmsVAD{
		speechThreshold:  0.015,
		silenceThreshold: 0.008,
		speechFrames:     3,  // ~60ms to start
		silenceFrames:    30, // ~600ms to end
	}
}

// IsSpeech classifies one PCM frame (16-bit little-endian samples).
func (v *rmsVAD) IsSpeech(pcm []byte) bool {
	level := rms(pcm)

	if v.inSpeech {
		if level < v.silenceThreshold {
			v.silenceCount++
			v.speechCount = 0
			if v.silenceCount >= v.silenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
	} else {
		if level >= v.speechThreshold {
			v.speechCount++
			v.silenceCount = 0
			if v.speechCount >= v.speechFrames {
				v.inSpeech = true
				v.speechCount = 0
			}
		} else {
			v.speechCount = 0
		}
	}

	return v.inSpeech
}

// Reset clears internal state between listening operations.
func (v *rmsVAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}

func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}
