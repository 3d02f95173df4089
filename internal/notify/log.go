// Package notify delivers password reset links to users.
package notify

import (
	"context"
	"log/slog"

	"github.com/accounts/accounts-go/internal/model"
)

// LogNotifier writes reset links to a structured logger instead of
// sending mail. It suits development and deployments that relay the log
// stream to a mailer.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendPasswordReset logs the reset link for the user.
func (n *LogNotifier) SendPasswordReset(ctx context.Context, reset model.PasswordReset) error {
	n.logger.InfoContext(ctx, "password reset requested",
		"user_id", reset.UserID,
		"email", reset.Email,
		"link", reset.Link,
	)
	return nil
}
