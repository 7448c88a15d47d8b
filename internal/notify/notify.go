// Package notify 负责把一次性验证码投递到用户的联系方式。
//
// 邮箱走 SMTP；手机号依次尝试 Telegram Bot、Twilio 短信。
// 任何通道都没配置时记录明文验证码到运维控制台并返回 ErrNoDelivery，
// 由调用方降级为 dev-mode 响应 —— 投递失败永远不回滚已持久化的验证码。
package notify

import (
	"context"
	"errors"

	"github.com/bynour1/projet-planni/internal/model"
)

// 投递通道标识。
const (
	MethodEmail    = "email"
	MethodTelegram = "telegram"
	MethodSMS      = "sms"
	MethodConsole  = "console"
)

// ErrNoDelivery 没有任何可用投递通道（原服务的 NO_SMS_SERVICE）。
var ErrNoDelivery = errors.New("aucun service d'envoi configuré")

// Meta 携带收件人上下文，用于渲染消息模板。
type Meta struct {
	Nom           string
	Prenom        string
	Role          string
	PasswordReset bool // true 时使用密码重置模板
}

// Dispatcher 把验证码发往联系方式，返回实际使用的通道。
type Dispatcher interface {
	Send(ctx context.Context, contact model.Contact, code string, meta Meta) (string, error)
}
