package notifications

import "context"

type SendWelcomeEmailInput struct {
	UserID string
	Email  string
	Name   string
}

type Notifier interface {
	SendWelcomeEmail(ctx context.Context, input SendWelcomeEmailInput) error
}
