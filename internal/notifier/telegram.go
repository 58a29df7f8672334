package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// DefaultAPIURL is the public Telegram Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// ErrUnreachable means the recipient can no longer receive messages
// (bot blocked, chat deleted, user deactivated).
var ErrUnreachable = errors.New("telegram: recipient unreachable")

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	APIURL   string
	Client   *http.Client
	// RetryBase is the first SendWithRetry backoff; it doubles per attempt.
	RetryBase time.Duration
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken:  botToken,
		APIURL:    DefaultAPIURL,
		RetryBase: time.Second,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (t *TelegramNotifier) method(name string) string {
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(t.APIURL, "/"), t.BotToken, name)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Deliver sends an HTML message to chatID. Failures that mean the chat is
// gone wrap ErrUnreachable.
func (t *TelegramNotifier) Deliver(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.method("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	var ar apiResponse
	_ = json.Unmarshal(respBody, &ar)
	if unreachable(resp.StatusCode, ar.Description) {
		return fmt.Errorf("%w: chat %d: %s", ErrUnreachable, chatID, ar.Description)
	}
	return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
}

func unreachable(status int, description string) bool {
	if status == http.StatusForbidden {
		return true
	}
	d := strings.ToLower(description)
	for _, s := range []string{"chat not found", "bot was blocked", "user is deactivated", "bot was kicked"} {
		if strings.Contains(d, s) {
			return true
		}
	}
	return false
}

// SendWithRetry delivers with exponential backoff. Unreachable recipients
// are not retried, and an ended ctx stops the retries.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, chatID int64, text string, maxRetries int) error {
	base := t.RetryBase
	if base <= 0 {
		base = time.Second
	}
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Deliver(ctx, chatID, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnreachable) {
			return err
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := base << uint(i)
		log.Warn().Err(err).Int64("chat_id", chatID).
			Int("attempt", i+1).Dur("backoff", backoff).
			Msg("telegram send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}
