package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"

	"tako/internal/domain"
)

// Terminal dispatch statuses.
const (
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
	StatusLocked    = "locked"
	StatusNonText   = "non_text_message_ignored"
	StatusError     = "error"
)

// Response is the HTTP-style envelope returned for every handled event.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Result is the body of a processed dispatch.
type Result struct {
	Intermediate *string           `json:"mensagem_intermediaria"`
	Final        string            `json:"mensagem_final"`
	Tone         domain.Tone       `json:"tom"`
	Risks        domain.Risks      `json:"riscos"`
	Escalation   domain.Tier       `json:"escalation"`
	Debug        domain.Resolution `json:"debug"`
}

func jsonResponse(status int, v any) Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return InternalError()
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(bytes.TrimRight(buf.Bytes(), "\n")),
	}
}

func statusResponse(status string) Response {
	return jsonResponse(http.StatusOK, map[string]string{"status": status})
}

// InternalError is the envelope used when a dispatch fails. It never
// carries error details.
func InternalError() Response {
	return Response{
		StatusCode: http.StatusInternalServerError,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"error":"internal server error"}`,
	}
}
