// Package notify hands password-reset tokens to their owners.
package notify

import (
	"context"

	"github.com/dtroode/rbac-server/internal/logger"
	"github.com/dtroode/rbac-server/internal/model"
)

var _ model.Notifier = (*Log)(nil)

// Log records reset hand-offs instead of delivering them. Mail delivery is
// done by an external worker that tails these records.
type Log struct {
	logger *logger.Logger
}

func NewLog(logger *logger.Logger) *Log {
	return &Log{logger: logger}
}

// SendPasswordReset logs the recipient and a short token prefix only.
func (n *Log) SendPasswordReset(_ context.Context, email, token string) error {
	prefix := token
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	n.logger.Info("Notifier: password reset requested",
		"email", email,
		"tokenPrefix", prefix)
	return nil
}
