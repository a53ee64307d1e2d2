package approval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"quizline/internal/logging"
)

// ConsoleGateway prompts the operator on the local terminal.
type ConsoleGateway struct {
	out         io.Writer
	interactive func() bool
	logger      *slog.Logger
}

// NewConsole returns a gateway bound to stdin/stdout.
func NewConsole(logger *slog.Logger) *ConsoleGateway {
	return &ConsoleGateway{
		out: os.Stdout,
		interactive: func() bool {
			fd := os.Stdin.Fd()
			return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		},
		logger: logging.NewComponentLogger(logger, "approval-console"),
	}
}

func (g *ConsoleGateway) Request(ctx context.Context, channelID, prompt string, options []string) (string, error) {
	if !g.interactive() {
		return "", fmt.Errorf("%w: console approval needs an interactive terminal", ErrUnavailable)
	}
	choices := make([]huh.Option[string], 0, len(options))
	for _, opt := range options {
		choices = append(choices, huh.NewOption(opt, opt))
	}
	var answer string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(prompt).
				Description(fmt.Sprintf("channel %s", channelID)).
				Options(choices...).
				Value(&answer),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("console prompt: %w", err)
	}
	g.logger.Debug("console approval answered", logging.String("answer", answer))
	return answer, nil
}

func (g *ConsoleGateway) Notify(ctx context.Context, channelID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(g.out, "[%s] %s\n", channelID, message)
	return err
}
