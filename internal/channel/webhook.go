package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"tako/internal/dispatch"
	"tako/internal/domain"
)

const maxWebhookBody = 1 << 20

// Dispatcher runs one inbound event through the pipeline.
type Dispatcher interface {
	Handle(ctx context.Context, payload domain.InboundPayload) (dispatch.Response, error)
}

// WebhookConfig configures the inbound webhook server.
type WebhookConfig struct {
	Host        string
	Port        int
	Path        string // webhook URL path (default: /webhook)
	Secret      string // HMAC secret for verifying webhook signatures
	Dispatcher  Dispatcher
	Metrics     http.Handler // optional
	MetricsPath string
	Logger      *slog.Logger
}

// Webhook accepts gateway callbacks over HTTP and answers with the
// dispatcher's response envelope.
type Webhook struct {
	addr        string
	path        string
	secret      string
	dispatcher  Dispatcher
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger
	server      *http.Server
}

// NewWebhook creates a new webhook server.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Webhook{
		addr:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		path:        cfg.Path,
		secret:      cfg.Secret,
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		metricsPath: cfg.MetricsPath,
		logger:      cfg.Logger,
	}
}

// Handler returns the routes served by the webhook.
func (w *Webhook) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.handleWebhook)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Write([]byte(`{"status":"ok"}`))
	})
	if w.metrics != nil {
		mux.Handle(w.metricsPath, w.metrics)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (w *Webhook) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              w.addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("webhook server starting", "addr", w.addr, "path", w.path)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("webhook server: %w", err)
	}
}

func (w *Webhook) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify HMAC signature if secret is configured.
	if w.secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if sig == "" {
			http.Error(rw, "Missing signature", http.StatusUnauthorized)
			return
		}
		if !verifyHMAC(body, w.secret, sig) {
			http.Error(rw, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	var payload domain.InboundPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	// The gateway may hang up before the pipeline finishes; delivery of the
	// final reply must not depend on it.
	resp, err := w.dispatcher.Handle(context.WithoutCancel(r.Context()), payload)
	if err != nil {
		// already logged by the dispatcher
		resp = dispatch.InternalError()
	}
	writeResponse(rw, resp)
}

func writeResponse(rw http.ResponseWriter, resp dispatch.Response) {
	for k, v := range resp.Headers {
		rw.Header().Set(k, v)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	rw.WriteHeader(status)
	io.WriteString(rw, resp.Body)
}

// verifyHMAC verifies the HMAC-SHA256 signature of the body.
func verifyHMAC(body []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
