package notify

import (
	"log/slog"

	"github.com/wneessen/go-mail"

	"airwave/internal/config"
)

// SendAlert emails the operator. No-op when SMTP is not configured; delivery
// failures are logged, not returned, since alerts are best-effort.
func SendAlert(subject, body string) {
	if config.SMTPHost == "" || config.AlertFrom == "" || config.AlertTo == "" {
		return
	}

	msg := mail.NewMsg()
	if err := msg.From(config.AlertFrom); err != nil {
		slog.Error("Invalid alert sender", "error", err)
		return
	}
	if err := msg.To(config.AlertTo); err != nil {
		slog.Error("Invalid alert recipient", "error", err)
		return
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(config.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if config.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.SMTPUser),
			mail.WithPassword(config.SMTPPass),
		)
	}

	client, err := mail.NewClient(config.SMTPHost, opts...)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return
	}
	if err := client.DialAndSend(msg); err != nil {
		slog.Error("Failed to send alert email", "error", err)
		return
	}
	slog.Info("Alert sent", "subject", subject)
}
