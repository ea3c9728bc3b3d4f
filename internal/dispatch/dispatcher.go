package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/mattn/go-shellwords"
	"github.com/voxgate-labs/voxgate-core/internal/config"
	"github.com/voxgate-labs/voxgate-core/internal/intent"
	"github.com/voxgate-labs/voxgate-core/internal/tts"
)

var acks = map[intent.Intent]string{
	intent.OpenBrowser:   "Opening Google Chrome.",
	intent.OpenMail:      "Opening your email.",
	intent.PlayMusic:     "Playing your music.",
	intent.OpenCode:      "Launching Visual Studio Code.",
	intent.Shutdown:      "Shutting down the system. Farewell.",
	intent.DefaultUnlock: "Unlocked. Awaiting your next command.",
	intent.Unknown:       "Sorry, I didn't understand that.",
}

// Dispatcher executes the side effect bound to a resolved intent. A failed
// action is reported, not fatal: the session still completes.
type Dispatcher struct {
	commands map[intent.Intent][]string
	speaker  tts.Speaker
	logger   *slog.Logger

	runCommand func(ctx context.Context, name string, args ...string) error
}

func NewDispatcher(cfg config.DispatchConfig, speaker tts.Speaker, logger *slog.Logger) (*Dispatcher, error) {
	parser := shellwords.NewParser()
	commands := make(map[intent.Intent][]string, len(cfg.Commands))
	for name, line := range cfg.Commands {
		args, err := parser.Parse(line)
		if err != nil {
			return nil, fmt.Errorf("parse dispatch command for %q: %w", name, err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("dispatch command for %q is empty", name)
		}
		commands[intent.Intent(name)] = args
	}
	return &Dispatcher{
		commands: commands,
		speaker:  speaker,
		logger:   logger.With(slog.String("component", "dispatcher")),
		runCommand: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}, nil
}

// Dispatch voices the acknowledgment for the intent and runs its bound
// command, if any. default_unlock is an explicit no-op; unknown gets the
// distinct "not understood" feedback.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent) error {
	ack, ok := acks[in]
	if !ok {
		ack = acks[intent.Unknown]
		in = intent.Unknown
	}
	d.say(ctx, ack)
	d.logger.Info("dispatching intent", slog.String("intent", string(in)))

	args, ok := d.commands[in]
	if !ok {
		return nil
	}
	if err := d.runCommand(ctx, args[0], args[1:]...); err != nil {
		d.logger.Warn("dispatch action failed",
			slog.String("intent", string(in)),
			slog.String("error", err.Error()))
		d.say(ctx, fmt.Sprintf("Sorry, that action failed: %s.", in))
		return fmt.Errorf("dispatch %s: %w", in, err)
	}
	return nil
}

func (d *Dispatcher) say(ctx context.Context, text string) {
	if err := d.speaker.Say(ctx, text); err != nil {
		d.logger.Warn("speech output failed", slog.String("error", err.Error()))
	}
}
