package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/friendlyvoice/pkg/logger"
)

// Mailer delivers verification links.
type Mailer interface {
	SendVerification(ctx context.Context, email, link string) error
}

// LogMailer writes the link to the log instead of sending mail.
type LogMailer struct{}

func (LogMailer) SendVerification(_ context.Context, email, link string) error {
	logger.Info("verification email", zap.String("email", email), zap.String("link", link))
	return nil
}
