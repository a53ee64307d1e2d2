package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"quizline/internal/config"
	"quizline/internal/logging"
)

const (
	telegramUserAgent      = "Quizline-Go/0.1.0"
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultPollTimeout     = 30 * time.Second
	telegramRetryMaxElapse = 2 * time.Minute
	expireNoticeTimeout    = 5 * time.Second
)

// TelegramGateway talks to the Telegram Bot API. Requests post a message with
// an inline keyboard and wait for the matching button press. getUpdates
// offsets are per bot, so one waiting request at a time polls and routes every
// callback to its request by id; concurrent requests never wait to send.
type TelegramGateway struct {
	endpoint    string
	client      *http.Client
	pollTimeout time.Duration
	newBackOff  func() backoff.BackOff
	newID       func() string
	logger      *slog.Logger

	// poll is a one-slot semaphore held by the request currently calling
	// getUpdates. offset is only touched while holding it.
	poll   chan struct{}
	offset int64

	mu      sync.Mutex
	waiters map[string]*waiter
}

type waiter struct {
	options []string
	answers chan callbackAnswer
}

type callbackAnswer struct {
	label    string
	approver string
}

// NewTelegram builds a gateway from the telegram config section.
func NewTelegram(cfg config.Telegram, logger *slog.Logger) (*TelegramGateway, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, fmt.Errorf("%w: telegram bot token not configured", ErrUnavailable)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if base == "" {
		base = defaultTelegramBaseURL
	}
	poll := time.Duration(cfg.PollTimeoutSeconds) * time.Second
	if poll <= 0 {
		poll = defaultPollTimeout
	}
	return &TelegramGateway{
		endpoint:    base + "/bot" + token,
		client:      &http.Client{Timeout: poll + 15*time.Second},
		pollTimeout: poll,
		newBackOff: func() backoff.BackOff {
			// BackOff implementations are stateful; always return a fresh instance.
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = telegramRetryMaxElapse
			return bo
		},
		newID: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		},
		logger:  logging.NewComponentLogger(logger, "approval-telegram"),
		poll:    make(chan struct{}, 1),
		waiters: make(map[string]*waiter),
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// APIError is a Bot API failure response.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Transient reports whether retrying may succeed. 409 means another poller
// holds getUpdates; it clears when that poller finishes.
func (e *APIError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code == http.StatusConflict || e.Code >= 500
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageParams struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type editMessageParams struct {
	ChatID    string `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

type getUpdatesParams struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

type answerCallbackParams struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

type telegramMessage struct {
	MessageID int64 `json:"message_id"`
}

type telegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type callbackQuery struct {
	ID      string           `json:"id"`
	Data    string           `json:"data"`
	From    telegramUser     `json:"from"`
	Message *telegramMessage `json:"message"`
}

type telegramUpdate struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

func (g *TelegramGateway) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("User-Agent", telegramUserAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Method: method, Code: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !decoded.OK {
		code := decoded.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: decoded.Description}
	}
	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func (g *TelegramGateway) callWithRetry(ctx context.Context, method string, params any, out any) error {
	return backoff.Retry(func() error {
		err := g.call(ctx, method, params, out)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return backoff.Permanent(ctxErr)
		}
		if isTransient(err) {
			g.logger.Warn("telegram call failed; retrying",
				logging.String("method", method),
				logging.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(g.newBackOff(), ctx))
}

// GetMe returns the bot username. It doubles as a credential check.
func (g *TelegramGateway) GetMe(ctx context.Context) (string, error) {
	var me telegramUser
	if err := g.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return "", err
	}
	return me.Username, nil
}

func (g *TelegramGateway) Notify(ctx context.Context, channelID, message string) error {
	return g.callWithRetry(ctx, "sendMessage", sendMessageParams{ChatID: channelID, Text: message}, nil)
}

func (g *TelegramGateway) Request(ctx context.Context, channelID, prompt string, options []string) (string, error) {
	requestID := g.newID()
	w := &waiter{options: options, answers: make(chan callbackAnswer, 1)}
	g.register(requestID, w)
	defer g.unregister(requestID)

	row := make([]inlineButton, 0, len(options))
	for idx, opt := range options {
		row = append(row, inlineButton{Text: opt, CallbackData: requestID + ":" + strconv.Itoa(idx)})
	}
	var sent telegramMessage
	params := sendMessageParams{
		ChatID:      channelID,
		Text:        prompt,
		ReplyMarkup: &inlineKeyboard{InlineKeyboard: [][]inlineButton{row}},
	}
	if err := g.callWithRetry(ctx, "sendMessage", params, &sent); err != nil {
		return "", err
	}
	g.logger.Info("approval requested",
		logging.String(logging.FieldCorrelationID, requestID),
		logging.String("channel_id", channelID),
		logging.Any("options", options),
	)

	for {
		// An answer routed by another request's poll wins over polling again.
		select {
		case ans := <-w.answers:
			return g.finish(ctx, requestID, channelID, sent.MessageID, prompt, ans), nil
		default:
		}

		select {
		case ans := <-w.answers:
			return g.finish(ctx, requestID, channelID, sent.MessageID, prompt, ans), nil
		case <-ctx.Done():
			g.expirePrompt(ctx, channelID, sent.MessageID, prompt)
			return "", ctx.Err()
		case g.poll <- struct{}{}:
			err := g.pollOnce(ctx)
			<-g.poll
			if err != nil {
				if ctx.Err() != nil {
					g.expirePrompt(ctx, channelID, sent.MessageID, prompt)
					return "", ctx.Err()
				}
				return "", err
			}
		}
	}
}

func (g *TelegramGateway) register(requestID string, w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiters[requestID] = w
}

func (g *TelegramGateway) unregister(requestID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.waiters, requestID)
}

func (g *TelegramGateway) lookup(requestID string) *waiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters[requestID]
}

// pollOnce runs one getUpdates call and hands each button press to the
// request that owns it. The caller holds g.poll.
func (g *TelegramGateway) pollOnce(ctx context.Context) error {
	var updates []telegramUpdate
	params := getUpdatesParams{
		Offset:         g.offset,
		Timeout:        int(g.pollTimeout / time.Second),
		AllowedUpdates: []string{"callback_query"},
	}
	if err := g.callWithRetry(ctx, "getUpdates", params, &updates); err != nil {
		return err
	}
	for _, upd := range updates {
		if upd.UpdateID >= g.offset {
			g.offset = upd.UpdateID + 1
		}
		cq := upd.CallbackQuery
		if cq == nil {
			continue
		}
		id, idx, ok := parseCallbackData(cq.Data)
		var w *waiter
		if ok {
			w = g.lookup(id)
		}
		if w == nil || idx >= len(w.options) {
			g.answerCallback(ctx, cq.ID, "This prompt is no longer active.")
			continue
		}
		answer := w.options[idx]
		select {
		case w.answers <- callbackAnswer{label: answer, approver: cq.From.Username}:
			g.answerCallback(ctx, cq.ID, "Recorded: "+answer)
		default:
			// A second press on a prompt that already has an answer.
			g.answerCallback(ctx, cq.ID, "This prompt is no longer active.")
		}
	}
	return nil
}

func (g *TelegramGateway) finish(ctx context.Context, requestID, channelID string, messageID int64, prompt string, ans callbackAnswer) string {
	g.closePrompt(ctx, channelID, messageID, prompt+"\n\n→ "+ans.label)
	g.logger.Info("approval answered",
		logging.String(logging.FieldCorrelationID, requestID),
		logging.String("answer", ans.label),
		logging.String("approver", ans.approver),
	)
	return ans.label
}

func parseCallbackData(data string) (string, int, bool) {
	id, rawIdx, found := strings.Cut(data, ":")
	if !found || id == "" {
		return "", 0, false
	}
	idx, err := strconv.Atoi(rawIdx)
	if err != nil || idx < 0 {
		return "", 0, false
	}
	return id, idx, true
}

func (g *TelegramGateway) answerCallback(ctx context.Context, callbackID, text string) {
	if err := g.call(ctx, "answerCallbackQuery", answerCallbackParams{CallbackQueryID: callbackID, Text: text}, nil); err != nil {
		g.logger.Debug("answer callback failed", logging.Error(err))
	}
}

// closePrompt replaces the prompt text, which also drops its keyboard.
func (g *TelegramGateway) closePrompt(ctx context.Context, channelID string, messageID int64, text string) {
	if messageID == 0 {
		return
	}
	params := editMessageParams{ChatID: channelID, MessageID: messageID, Text: text}
	if err := g.call(ctx, "editMessageText", params, nil); err != nil {
		g.logger.Debug("edit prompt failed", logging.Error(err))
	}
}

func (g *TelegramGateway) expirePrompt(ctx context.Context, channelID string, messageID int64, prompt string) {
	expireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), expireNoticeTimeout)
	defer cancel()
	g.closePrompt(expireCtx, channelID, messageID, prompt+"\n\n(expired without an answer)")
}
