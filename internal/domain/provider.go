package domain

import "context"

// Generator is the NLU/Generation service: one text prompt in, one text
// document out. Callers must treat the output as untrusted text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent is a specialized reasoning agent bound to one intent. Sessions let
// the agent keep per-user conversational state on its side.
type Agent interface {
	Name() string
	Invoke(ctx context.Context, sessionID, input string) (string, error)
}

// PromptStore resolves prompt templates by name. A missing template is a
// configuration failure, never defaulted.
type PromptStore interface {
	Load(name string) (string, error)
}
