package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/mattn/go-shellwords"
	"github.com/voxgate-labs/voxgate-core/internal/config"
)

// execInput spawns a capture command (arecord, sox, ffmpeg) and slices its
// raw PCM stdout into fixed-size frames on a bounded queue. Frames are
// dropped when the queue is full so capture stays realtime.
type execInput struct {
	cmd []string
	cfg config.AudioConfig
}

func newExecInput(cfg config.AudioConfig) (*execInput, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse audio command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("audio command is empty")
	}
	return &execInput{cmd: args, cfg: cfg}, nil
}

func (e *execInput) Open(ctx context.Context) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start capture command: %w", err)
	}

	s := &execStream{
		frames: make(chan []byte, e.cfg.QueueDepth),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	frameSize := FrameBytes(e.cfg)
	go s.pump(stdout, cmd, frameSize)
	return s, nil
}

type execStream struct {
	frames  chan []byte
	cancel  context.CancelFunc
	done    chan struct{}
	dropped int
}

func (s *execStream) Frames() <-chan []byte {
	return s.frames
}

func (s *execStream) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *execStream) pump(r io.Reader, cmd *exec.Cmd, frameSize int) {
	defer close(s.done)
	defer close(s.frames)
	defer cmd.Wait()

	for {
		frame := make([]byte, frameSize)
		if _, err := io.ReadFull(r, frame); err != nil {
			return
		}
		select {
		case s.frames <- frame:
		default:
			s.dropped++
		}
	}
}
