package model

import "context"

// Notifier delivers password-reset tokens to their owners.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}
