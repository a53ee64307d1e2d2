package approval

import (
	"context"
	"log/slog"

	"quizline/internal/logging"
)

// AutoGateway answers every request without a human. An empty choice picks
// the first option, which is the accepting option for every edge.
type AutoGateway struct {
	choice string
	logger *slog.Logger
}

// NewAuto returns a gateway that answers with choice.
func NewAuto(choice string, logger *slog.Logger) *AutoGateway {
	return &AutoGateway{choice: choice, logger: logging.NewComponentLogger(logger, "approval-auto")}
}

func (g *AutoGateway) Request(ctx context.Context, channelID, prompt string, options []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	answer := g.choice
	if answer == "" && len(options) > 0 {
		answer = options[0]
	}
	g.logger.Info("auto approval answered",
		logging.String("channel_id", channelID),
		logging.String("prompt", prompt),
		logging.String("answer", answer),
	)
	return answer, nil
}

func (g *AutoGateway) Notify(ctx context.Context, channelID, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.logger.Info("operator notice",
		logging.String("channel_id", channelID),
		logging.String("message", message),
	)
	return nil
}
