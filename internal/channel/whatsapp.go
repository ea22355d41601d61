package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const whatsappAPIBase = "https://graph.facebook.com/v21.0"

// WhatsApp delivers messages through the WhatsApp Cloud API.
type WhatsApp struct {
	apiBase       string
	accessToken   string
	phoneNumberID string
	client        *http.Client
	logger        *slog.Logger
}

type WhatsAppConfig struct {
	APIBase       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
	Logger        *slog.Logger
}

func NewWhatsApp(cfg WhatsAppConfig) *WhatsApp {
	if cfg.APIBase == "" {
		cfg.APIBase = whatsappAPIBase
	}
	return &WhatsApp{
		apiBase:       strings.TrimRight(cfg.APIBase, "/"),
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		client:        newHTTPClient(cfg.Timeout),
		logger:        cfg.Logger,
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

// Send posts a text message to the Graph API messages endpoint.
func (w *WhatsApp) Send(ctx context.Context, phone, message string) error {
	payload := waOutbound{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             waText{Body: message},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	w.logger.Debug("whatsapp message sent", "phone", phone, "len", len(message))
	return nil
}

type waOutbound struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             waText `json:"text"`
}

type waText struct {
	Body string `json:"body"`
}
