package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bynour1/projet-planni/internal/config"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioSender 通过 Twilio Messages API 发送短信验证码。
type TwilioSender struct {
	cfg     *config.TwilioConfig
	baseURL string
	client  *http.Client
}

// NewTwilioSender 创建 Twilio 发送器。
func NewTwilioSender(cfg *config.TwilioConfig) *TwilioSender {
	return &TwilioSender{
		cfg:     cfg,
		baseURL: twilioAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured 账号 SID、token、发送号码是否都已配置。
func (t *TwilioSender) Configured() bool {
	return t.cfg.Configured()
}

// SendCode 向手机号发送验证码短信。
func (t *TwilioSender) SendCode(ctx context.Context, phone string, code string, meta Meta) error {
	if !t.Configured() {
		return fmt.Errorf("twilio config missing")
	}

	body := fmt.Sprintf("Votre code de confirmation est : %s", code)
	if meta.PasswordReset {
		body = fmt.Sprintf("Votre code de réinitialisation est : %s", code)
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build twilio request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	return nil
}
