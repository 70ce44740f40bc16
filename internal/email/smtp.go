package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/carepoint/portal-api/pkg/logger"
)

type smtpService struct {
	dialer *gomail.Dialer
	cfg    Config
	logger *logger.Logger
}

// NewSMTPService sends mail through the configured SMTP relay.
func NewSMTPService(cfg Config, log *logger.Logger) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg:    cfg,
		logger: log.WithComponent("email"),
	}
}

func (s *smtpService) SendVerification(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.BaseURL, token)
	body := fmt.Sprintf(`<p>Welcome to CarePoint.</p>
<p>Please confirm your email address by following <a href=%q>this link</a>.</p>
<p>The link expires in 24 hours. If you did not create an account, ignore this message.</p>`, link)
	return s.send(ctx, email, "Verify your email address", body)
}

func (s *smtpService) SendPasswordReset(ctx context.Context, email, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.BaseURL, token)
	body := fmt.Sprintf(`<p>A password reset was requested for your account.</p>
<p>Follow <a href=%q>this link</a> to choose a new password.</p>
<p>The link expires in 1 hour. If you did not request a reset, ignore this message.</p>`, link)
	return s.send(ctx, email, "Reset your password", body)
}

func (s *smtpService) SendWelcome(ctx context.Context, email, name string) error {
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your CarePoint account is ready. You can now book appointments, message
your care team, and manage your health records from the portal.</p>`, name)
	return s.send(ctx, email, "Welcome to CarePoint", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	return s.send(ctx, to, subject, content)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error(err, "failed to send email", "to", to, "subject", subject)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}
