package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bynour1/projet-planni/internal/config"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSender 通过 Telegram Bot API 推送验证码。
type TelegramSender struct {
	cfg     *config.TelegramConfig
	baseURL string
	client  *http.Client
}

// NewTelegramSender 创建 Telegram 发送器。
func NewTelegramSender(cfg *config.TelegramConfig) *TelegramSender {
	return &TelegramSender{
		cfg:     cfg,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured Bot token 和 chat id 是否都已配置。
func (t *TelegramSender) Configured() bool {
	return t.cfg.Configured()
}

type telegramSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// SendCode 调用 sendMessage 把验证码发到配置的会话。
func (t *TelegramSender) SendCode(ctx context.Context, phone string, code string, meta Meta) error {
	if !t.Configured() {
		return fmt.Errorf("telegram config missing")
	}

	text := fmt.Sprintf("Votre code de confirmation est : %s", code)
	if meta.PasswordReset {
		text = fmt.Sprintf("Votre code de réinitialisation est : %s", code)
	}

	payload, err := json.Marshal(telegramSendRequest{ChatID: t.cfg.ChatID, Text: text})
	if err != nil {
		return fmt.Errorf("encode telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram send: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
