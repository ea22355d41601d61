package domain

import (
	"context"
	"time"
)

// OutcomeRecorder persists one record per completed dispatch.
type OutcomeRecorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Outcome is the audit record of one dispatch.
type Outcome struct {
	ID               int64     `json:"id,omitempty"`
	InvocationID     string    `json:"invocation_id"`
	UserID           string    `json:"user_id"`
	Status           string    `json:"status"`
	Intent           string    `json:"intent,omitempty"`
	Tone             string    `json:"tone,omitempty"`
	Tier             Tier      `json:"tier,omitempty"`
	Rule             int       `json:"rule,omitempty"`
	Agent            string    `json:"agent,omitempty"`
	Confidence       float64   `json:"confidence"`
	UserMessage      string    `json:"user_message,omitempty"`
	Intermediate     string    `json:"intermediate,omitempty"`
	FinalMessage     string    `json:"final_message,omitempty"`
	IntermediateSent bool      `json:"intermediate_sent"`
	FinalSent        bool      `json:"final_sent"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
