package audio

import (
	"context"
)

// ScriptedInput replays a fixed set of frames per open. With no frames it
// produces an immediately-ending silent stream, which is what the mock audio
// mode uses.
type ScriptedInput struct {
	frames [][]byte
}

func NewScriptedInput(frames [][]byte) *ScriptedInput {
	return &ScriptedInput{frames: frames}
}

func (s *ScriptedInput) Open(ctx context.Context) (Stream, error) {
	ch := make(chan []byte, len(s.frames))
	for _, f := range s.frames {
		ch <- f
	}
	close(ch)
	return &scriptedStream{frames: ch}, nil
}

type scriptedStream struct {
	frames chan []byte
}

func (s *scriptedStream) Frames() <-chan []byte { return s.frames }

func (s *scriptedStream) Close() error { return nil }
