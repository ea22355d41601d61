package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const zapiBaseURL = "https://api.z-api.io"

// ZAPI delivers messages through a Z-API WhatsApp instance.
type ZAPI struct {
	baseURL     string
	instanceID  string
	token       string
	clientToken string
	client      *http.Client
	logger      *slog.Logger
}

type ZAPIConfig struct {
	BaseURL     string
	InstanceID  string
	Token       string
	ClientToken string // sent as the client-token header
	Timeout     time.Duration
	Logger      *slog.Logger
}

func NewZAPI(cfg ZAPIConfig) *ZAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = zapiBaseURL
	}
	return &ZAPI{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		instanceID:  cfg.InstanceID,
		token:       cfg.Token,
		clientToken: cfg.ClientToken,
		client:      newHTTPClient(cfg.Timeout),
		logger:      cfg.Logger,
	}
}

func (z *ZAPI) Name() string { return "zapi" }

func (z *ZAPI) endpoint() string {
	return fmt.Sprintf("%s/instances/%s/token/%s/send-text",
		z.baseURL, url.PathEscape(z.instanceID), url.PathEscape(z.token))
}

// Send posts {phone, message} to the instance's send-text endpoint. Any
// non-2xx status is an error.
func (z *ZAPI) Send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if z.clientToken != "" {
		req.Header.Set("client-token", z.clientToken)
	}

	resp, err := z.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("z-api %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	io.Copy(io.Discard, resp.Body)
	z.logger.Debug("z-api message sent", "phone", phone, "len", len(message))
	return nil
}
