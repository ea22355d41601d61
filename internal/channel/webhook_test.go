package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tako/internal/dispatch"
	"tako/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDispatcher struct {
	resp     dispatch.Response
	err      error
	payloads []domain.InboundPayload
}

func (f *fakeDispatcher) Handle(_ context.Context, p domain.InboundPayload) (dispatch.Response, error) {
	f.payloads = append(f.payloads, p)
	return f.resp, f.err
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newTestWebhook(d Dispatcher, secret string) *Webhook {
	return NewWebhook(WebhookConfig{
		Secret:     secret,
		Dispatcher: d,
		Metrics: http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
			io.WriteString(rw, "tako_up 1\n")
		}),
		Logger: testLogger(),
	})
}

func TestVerifyHMAC_Valid(t *testing.T) {
	body := []byte(`{"phone":"1"}`)
	if !verifyHMAC(body, "test-secret", sign("test-secret", body)) {
		t.Error("valid HMAC should verify")
	}
}

func TestVerifyHMAC_Invalid(t *testing.T) {
	if verifyHMAC([]byte("body"), "secret", "sha256=invalid") {
		t.Error("invalid HMAC should not verify")
	}
}

func TestVerifyHMAC_Empty(t *testing.T) {
	if verifyHMAC([]byte("body"), "secret", "") {
		t.Error("empty signature should not verify")
	}
}

func TestWebhook_PassesPayloadAndWritesEnvelope(t *testing.T) {
	d := &fakeDispatcher{resp: dispatch.Response{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       `{"status":"locked"}`,
	}}
	srv := httptest.NewServer(newTestWebhook(d, "").Handler())
	defer srv.Close()

	body := `{"phone":"5511999990000","fromMe":false,"messageId":"ABC","text":{"message":"Oi"}}`
	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"status":"locked"}`, string(got))

	require.Len(t, d.payloads, 1)
	p := d.payloads[0]
	assert.Equal(t, "5511999990000", p.Phone)
	assert.Equal(t, "ABC", p.MessageID)
	require.True(t, p.HasText())
	assert.Equal(t, "Oi", *p.Text.Message)
}

func TestWebhook_NonTextPayloadReachesDispatcher(t *testing.T) {
	d := &fakeDispatcher{resp: dispatch.Response{StatusCode: 200, Body: `{}`}}
	h := newTestWebhook(d, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"phone":"1","audio":{"audioUrl":"x"}}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.payloads, 1)
	assert.False(t, d.payloads[0].HasText())
}

func TestWebhook_DispatchErrorIsOpaque500(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("lock store: connection refused")}
	h := newTestWebhook(d, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"phone":"1"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestWebhook_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			rec := httptest.NewRecorder()
			newTestWebhook(d, "").Handler().ServeHTTP(rec,
				httptest.NewRequest(tt.method, "/webhook", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, d.payloads)
		})
	}
}

func TestWebhook_Signature(t *testing.T) {
	const secret = "s3cret"
	body := []byte(`{"phone":"1","text":{"message":"oi"}}`)

	tests := []struct {
		name string
		sig  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", sign("other", body), http.StatusForbidden},
		{"valid", sign(secret, body), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{resp: dispatch.Response{StatusCode: 200, Body: `{}`}}
			req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
			if tt.sig != "" {
				req.Header.Set("X-Signature-256", tt.sig)
			}
			rec := httptest.NewRecorder()
			newTestWebhook(d, secret).Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Len(t, d.payloads, 1)
			} else {
				assert.Empty(t, d.payloads)
			}
		})
	}
}

func TestWebhook_HealthAndMetrics(t *testing.T) {
	h := newTestWebhook(&fakeDispatcher{}, "").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "tako_up 1\n", rec.Body.String())
}

func TestWebhook_StartStopsOnCancel(t *testing.T) {
	w := NewWebhook(WebhookConfig{Host: "127.0.0.1", Port: 0, Dispatcher: &fakeDispatcher{}, Logger: testLogger()})
	w.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}

// blockingDispatcher holds Handle until release is closed, then reports
// whether its context was cancelled meanwhile.
type blockingDispatcher struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (b *blockingDispatcher) Handle(ctx context.Context, _ domain.InboundPayload) (dispatch.Response, error) {
	close(b.started)
	<-b.release
	b.ctxErr <- ctx.Err()
	return dispatch.Response{StatusCode: 200, Body: `{}`}, nil
}

func TestWebhook_GatewayDisconnectDoesNotCancelDispatch(t *testing.T) {
	d := &blockingDispatcher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	srv := httptest.NewServer(newTestWebhook(d, "").Handler())
	defer srv.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := client.Post(srv.URL+"/webhook", "application/json",
		strings.NewReader(`{"phone":"1","text":{"message":"oi"}}`))
	require.Error(t, err, "client should time out while the dispatch is running")

	<-d.started
	// Give the server time to notice the closed connection.
	time.Sleep(150 * time.Millisecond)
	close(d.release)

	assert.NoError(t, <-d.ctxErr)
}
