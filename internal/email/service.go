package email

import (
	"context"
)

// Service sends transactional portal mail. Implementations must be safe
// for concurrent use.
type Service interface {
	SendVerification(ctx context.Context, email string, token string) error
	SendPasswordReset(ctx context.Context, email string, token string) error
	SendWelcome(ctx context.Context, email string, name string) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Config holds SMTP settings plus the public portal address used to
// build links in message bodies.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}
