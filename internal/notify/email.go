package notify

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/bynour1/projet-planni/internal/config"
)

// EmailSender 通过 SMTP 发送验证码邮件。
type EmailSender struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailSender 创建邮件发送器。
func NewEmailSender(cfg *config.EmailConfig, logger *slog.Logger) *EmailSender {
	return &EmailSender{cfg: cfg, logger: logger}
}

// Configured SMTP 是否配置完整。
func (n *EmailSender) Configured() bool {
	return n.cfg.Configured()
}

// SendCode 发送验证码邮件，模板按 reset 区分确认/重置。
func (n *EmailSender) SendCode(toEmail string, code string, meta Meta) error {
	if !n.Configured() {
		return fmt.Errorf("email config missing")
	}
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("empty recipient")
	}

	subject := "Code de confirmation"
	intro := "Votre code de confirmation est :"
	if meta.PasswordReset {
		subject = "Réinitialisation du mot de passe"
		intro = "Votre code de réinitialisation est :"
	}

	greeting := "Bonjour"
	if meta.Prenom != "" || meta.Nom != "" {
		greeting = strings.TrimSpace("Bonjour " + meta.Prenom + " " + meta.Nom)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)

	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>%s,</h2>
    <p>%s</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>Ce code est valable 10 minutes.</p>
  </div>
</body>
</html>`, greeting, intro, code)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("verification email sent", slog.String("to", toEmail), slog.Bool("reset", meta.PasswordReset))
	return nil
}
