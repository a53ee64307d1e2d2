package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quizline/internal/config"
)

var (
	// ErrTimeout reports that no answer arrived within the bounded wait.
	ErrTimeout = errors.New("approval timed out")
	// ErrInvalidChoice reports an answer outside the offered options.
	ErrInvalidChoice = errors.New("approval answer not among options")
	// ErrAborted reports that the approver dismissed the prompt.
	ErrAborted = errors.New("approval aborted")
	// ErrUnavailable reports that the transport could not be reached.
	ErrUnavailable = errors.New("approval channel unavailable")
)

// Gateway delivers prompts to a human approver.
type Gateway interface {
	// Request blocks until the approver picks one of options and returns its label.
	Request(ctx context.Context, channelID, prompt string, options []string) (string, error)
	// Notify sends a one-way message.
	Notify(ctx context.Context, channelID, message string) error
}

// Backend names accepted by approval.backend.
const (
	BackendTelegram = "telegram"
	BackendConsole  = "console"
	BackendAuto     = "auto"
)

// New builds the configured gateway wrapped with the approval timeout.
func New(cfg *config.Config, logger *slog.Logger) (Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("approval: config is nil")
	}
	var gw Gateway
	switch strings.ToLower(cfg.Approval.Backend) {
	case BackendTelegram:
		tg, err := NewTelegram(cfg.Telegram, logger)
		if err != nil {
			return nil, err
		}
		gw = tg
	case BackendConsole:
		gw = NewConsole(logger)
	case BackendAuto:
		gw = NewAuto(cfg.Approval.AutoChoice, logger)
	default:
		return nil, fmt.Errorf("approval: unknown backend %q", cfg.Approval.Backend)
	}
	return WithTimeout(gw, cfg.ApprovalTimeout()), nil
}

// WithTimeout bounds every Request and Notify by d and normalizes the answer
// to the offered option's spelling. A non-positive d leaves the wait unbounded.
func WithTimeout(next Gateway, d time.Duration) Gateway {
	return &timeoutGateway{next: next, timeout: d}
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

func (g *timeoutGateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *timeoutGateway) Request(ctx context.Context, channelID, prompt string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("%w: no options offered", ErrInvalidChoice)
	}
	reqCtx, cancel := g.bound(ctx)
	defer cancel()

	label, err := g.next.Request(reqCtx, channelID, prompt, options)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		}
		return "", err
	}
	return MatchOption(label, options)
}

func (g *timeoutGateway) Notify(ctx context.Context, channelID, message string) error {
	reqCtx, cancel := g.bound(ctx)
	defer cancel()
	err := g.next.Notify(reqCtx, channelID, message)
	if err != nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}
	return err
}

// Unwrap exposes the wrapped gateway.
func (g *timeoutGateway) Unwrap() Gateway { return g.next }

// MatchOption returns the option equal to label ignoring case and
// surrounding space.
func MatchOption(label string, options []string) (string, error) {
	trimmed := strings.TrimSpace(label)
	for _, opt := range options {
		if strings.EqualFold(trimmed, strings.TrimSpace(opt)) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrInvalidChoice, label, options)
}
