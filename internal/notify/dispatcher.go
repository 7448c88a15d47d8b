package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bynour1/projet-planni/internal/model"
)

// emailChannel / phoneChannel 是 dispatcher 内部的通道抽象，方便测试替换。
type emailChannel interface {
	Configured() bool
	SendCode(toEmail string, code string, meta Meta) error
}

type phoneChannel interface {
	Configured() bool
	SendCode(ctx context.Context, phone string, code string, meta Meta) error
}

// ChannelDispatcher 按联系方式类型选择投递通道。
//
// 邮箱只走 SMTP。手机号依次尝试 Telegram、Twilio；在尝试之前先把明文
// 验证码打到运维控制台 —— 这是给没有配置投递服务的环境留的后门，
// 码已经持久化，可以独立核验。
type ChannelDispatcher struct {
	email    emailChannel
	telegram phoneChannel
	twilio   phoneChannel
	logger   *slog.Logger
}

// NewChannelDispatcher 创建 dispatcher。
func NewChannelDispatcher(email *EmailSender, telegram *TelegramSender, twilio *TwilioSender, logger *slog.Logger) *ChannelDispatcher {
	return &ChannelDispatcher{
		email:    email,
		telegram: telegram,
		twilio:   twilio,
		logger:   logger,
	}
}

// Send 投递验证码，返回实际使用的通道。
//
// 没有任何可用通道时返回 ErrNoDelivery；调用方据此降级为 dev-mode 响应，
// 绝不能因此放弃已持久化的验证码或用户记录。
func (d *ChannelDispatcher) Send(ctx context.Context, contact model.Contact, code string, meta Meta) (string, error) {
	if contact.IsEmail() {
		if !d.email.Configured() {
			d.logCode(contact, code)
			return "", ErrNoDelivery
		}
		if err := d.email.SendCode(contact.Value, code, meta); err != nil {
			d.logCode(contact, code)
			return "", fmt.Errorf("email delivery: %w", err)
		}
		return MethodEmail, nil
	}

	// 手机号：先打控制台再尝试投递。
	d.logCode(contact, code)

	if d.telegram.Configured() {
		if err := d.telegram.SendCode(ctx, contact.Value, code, meta); err == nil {
			return MethodTelegram, nil
		} else {
			d.logger.Warn("telegram delivery failed, trying next channel",
				slog.String("contact", contact.Value), slog.String("error", err.Error()))
		}
	}
	if d.twilio.Configured() {
		if err := d.twilio.SendCode(ctx, contact.Value, code, meta); err == nil {
			return MethodSMS, nil
		} else {
			d.logger.Warn("twilio delivery failed",
				slog.String("contact", contact.Value), slog.String("error", err.Error()))
			return "", fmt.Errorf("sms delivery: %w", err)
		}
	}

	return "", ErrNoDelivery
}

func (d *ChannelDispatcher) logCode(contact model.Contact, code string) {
	// 明文验证码只进运维日志，不进任何持久化存储。
	d.logger.Info("one-time code issued",
		slog.String("contact", contact.Value),
		slog.String("code", code),
	)
}
