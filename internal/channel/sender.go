package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tako/internal/config"
	"tako/internal/domain"
)

const (
	defaultSendTimeout = 30 * time.Second
	maxErrorBody       = 1024
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &http.Client{Timeout: timeout}
}

// LogSender writes outbound messages to the log instead of a gateway.
// Used for local runs and the dispatch command.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Name() string { return "log" }

func (l *LogSender) Send(_ context.Context, phone, message string) error {
	l.logger.Info("outbound message", "phone", phone, "message", message)
	return nil
}

// NewSender builds the delivery channel selected by cfg.Backend.
func NewSender(cfg config.DeliveryConfig, logger *slog.Logger) (domain.Sender, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Backend {
	case "zapi":
		return NewZAPI(ZAPIConfig{
			BaseURL:     cfg.ZAPI.BaseURL,
			InstanceID:  cfg.ZAPI.InstanceID,
			Token:       cfg.ZAPI.Token,
			ClientToken: cfg.ZAPI.ClientToken,
			Timeout:     timeout,
			Logger:      logger,
		}), nil
	case "whatsapp":
		return NewWhatsApp(WhatsAppConfig{
			APIBase:       cfg.WhatsApp.APIBase,
			AccessToken:   cfg.WhatsApp.AccessToken,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			Timeout:       timeout,
			Logger:        logger,
		}), nil
	case "log", "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown delivery backend %q", cfg.Backend)
	}
}
