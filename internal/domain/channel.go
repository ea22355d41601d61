package domain

import "context"

// Sender is the outbound Delivery Channel. Errors are reported to the caller
// for logging only; delivery is fire-and-forget from the pipeline's view.
type Sender interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

// Notifier alerts human operators about escalated cases.
type Notifier interface {
	Notify(ctx context.Context, alert EscalationAlert) error
}

// EscalationAlert summarizes a case that needs a person.
type EscalationAlert struct {
	UserID      string
	Intent      Intent
	Tier        Tier
	Agent       string
	Confidence  float64
	UserMessage string
	DraftAnswer string
}
