package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"tako/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxMsgLen = 4000

// TelegramNotifier posts escalation alerts to an operator chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

type TelegramConfig struct {
	Token    string
	ChatID   int64
	Endpoint string // defaults to tgbotapi.APIEndpoint
	Timeout  time.Duration
	Logger   *slog.Logger
}

// NewTelegramNotifier connects to the Bot API. The token is checked with a
// getMe call.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, newHTTPClient(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.Logger.Info("telegram notifier connected", "username", bot.Self.UserName, "chat_id", cfg.ChatID)
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// Notify sends the alert as plain text, split into chunks under the Bot API
// message limit. The first failing chunk aborts the rest.
func (t *TelegramNotifier) Notify(_ context.Context, alert domain.EscalationAlert) error {
	for _, chunk := range splitMessage(FormatAlert(alert), telegramMaxMsgLen) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(t.chatID, chunk)); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

// FormatAlert renders an escalation alert for operators.
func FormatAlert(a domain.EscalationAlert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Escalonamento: %s\n", a.Tier)
	fmt.Fprintf(&sb, "Usuário: %s\n", a.UserID)
	fmt.Fprintf(&sb, "Intenção: %s\n", a.Intent)
	fmt.Fprintf(&sb, "Agente: %s\n", a.Agent)
	fmt.Fprintf(&sb, "Confiança: %.2f\n", a.Confidence)
	fmt.Fprintf(&sb, "\nMensagem do usuário:\n%s\n", a.UserMessage)
	fmt.Fprintf(&sb, "\nRascunho:\n%s", a.DraftAnswer)
	return sb.String()
}

// splitMessage cuts msg into chunks of at most maxLen bytes, preferring
// line breaks in the second half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	var chunks []string
	for len(msg) > maxLen {
		cutAt := strings.LastIndex(msg[:maxLen], "\n")
		if cutAt < maxLen/2 {
			cutAt = maxLen
			for cutAt > 0 && !utf8.RuneStart(msg[cutAt]) {
				cutAt--
			}
		}
		chunks = append(chunks, msg[:cutAt])
		msg = msg[cutAt:]
	}
	if msg != "" {
		chunks = append(chunks, msg)
	}
	return chunks
}
