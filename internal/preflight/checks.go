package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"

	"quizline/internal/approval"
	"quizline/internal/config"
	"quizline/internal/logging"
	"quizline/internal/queue"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLedger opens the configured store and loads the ledger once.
func CheckLedger(ctx context.Context, cfg *config.Config) Result {
	const name = "Ledger"

	store, err := queue.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Ledger.Path, err)}
	}
	defer store.Close()

	ledger, err := store.LoadAll(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.Ledger.Path, err)}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%s (%s, %d items)", store.Path(), cfg.Ledger.Backend, len(ledger.Items)),
	}
}

// CheckTelegram verifies the bot token with getMe. It uses a 10-second
// timeout and a single attempt.
func CheckTelegram(ctx context.Context, cfg config.Telegram) Result {
	const name = "Telegram"

	gw, err := approval.NewTelegram(cfg, logging.NewNop())
	if err != nil {
		return Result{Name: name, Detail: "bot token missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	username, err := gw.GetMe(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeTelegramError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "@" + username}
}

// CheckInteractive verifies stdin is a terminal for the console backend.
func CheckInteractive() Result {
	const name = "Approval console"
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return Result{Name: name, Passed: true, Detail: "interactive terminal"}
	}
	return Result{Name: name, Detail: "stdin is not a terminal; console approvals will fail"}
}

func summarizeTelegramError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "getMe timed out (Bot API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "getMe timed out (Bot API unreachable)"
	}
	var apiErr *approval.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 401 {
		return "auth failed (invalid bot token)"
	}
	return err.Error()
}
