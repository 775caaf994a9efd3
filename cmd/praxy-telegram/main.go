// ABOUTME: Entry point for the praxy Telegram bridge
// ABOUTME: Long-polls Telegram updates and forwards questions to the gateway HTTP API

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/praxyhealth/praxy-gateway/internal/dedupe"
)

const (
	helpText = `I answer questions about sore throat in adults.

Commands:
/start - introduce the bot
/help  - this message
/info  - bridge status
/ask QUESTION - ask a question

Plain messages are treated as questions too.`

	startText = "Hi! Send me a question about sore throat in adults and I'll do my best to answer."

	// shown when no gateway is configured
	stubAnswer = "I'm running in demo mode without a gateway connection. " +
		"A sore throat in adults usually improves within a week; see a doctor if it lasts longer or you have trouble swallowing."

	apologyText = "Sorry, something went wrong answering that. Please try again in a moment."
)

// getConfigPath returns the path to the bridge config file.
// Priority: PRAXY_TELEGRAM_CONFIG env var > XDG_CONFIG_HOME/praxy/telegram.toml > ~/.config/praxy/telegram.toml
func getConfigPath() string {
	if envPath := os.Getenv("PRAXY_TELEGRAM_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "telegram.toml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "praxy", "telegram.toml")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("connecting to telegram: %w", err)
	}

	bridge := &Bridge{
		bot:    bot,
		cfg:    cfg,
		http:   &http.Client{Timeout: 90 * time.Second},
		dedupe: dedupe.New(5*time.Minute, 10_000),
		logger: logger.With("component", "telegram-bridge"),
	}
	defer bridge.dedupe.Close()

	logger.Info("bridge started",
		"bot", bot.Self.UserName,
		"gateway_url", cfg.Gateway.URL,
		"model_variant", cfg.Bridge.ModelVariant,
	)
	if cfg.Gateway.URL == "" {
		logger.Warn("no gateway.url configured, answering with the demo stub")
	}

	return bridge.Run(ctx)
}

// Bridge connects a Telegram bot to the gateway's ask endpoint.
type Bridge struct {
	bot    *tgbotapi.BotAPI
	cfg    *Config
	http   *http.Client
	dedupe *dedupe.Cache
	logger *slog.Logger
}

// Run polls for updates until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("context canceled, stopping bridge")
			b.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bridge) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	// Telegram redelivers updates after restarts and poll timeouts
	if b.dedupe.Seen(update.UpdateID) {
		b.logger.Debug("duplicate update suppressed", "update_id", update.UpdateID)
		return
	}

	msg := update.Message
	if !b.cfg.allowed(msg.From.ID) {
		b.logger.Warn("message from unlisted user ignored", "user_id", msg.From.ID)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case text == "/start":
		b.reply(msg, startText)
	case text == "/help":
		b.reply(msg, helpText)
	case text == "/info":
		b.reply(msg, b.infoText())
	case strings.HasPrefix(text, "/ask"):
		question := strings.TrimSpace(strings.TrimPrefix(text, "/ask"))
		if question == "" {
			b.reply(msg, "Usage: /ask QUESTION")
			return
		}
		b.answer(ctx, msg, question)
	case strings.HasPrefix(text, "/"):
		b.reply(msg, "Unknown command. Try /help.")
	default:
		b.answer(ctx, msg, text)
	}
}

func (b *Bridge) infoText() string {
	if b.cfg.Gateway.URL == "" {
		return "Mode: demo stub (no gateway configured)"
	}
	variant := b.cfg.Bridge.ModelVariant
	if variant == "" {
		variant = "gateway default"
	}
	return fmt.Sprintf("Gateway: %s\nModel: %s", b.cfg.Gateway.URL, variant)
}

func (b *Bridge) answer(ctx context.Context, msg *tgbotapi.Message, question string) {
	if b.cfg.Gateway.URL == "" {
		b.reply(msg, stubAnswer)
		return
	}

	answer, err := b.askGateway(ctx, fmt.Sprintf("tg-%d", msg.From.ID), question)
	if err != nil {
		b.logger.Error("gateway ask failed", "user_id", msg.From.ID, "error", err)
		b.reply(msg, apologyText)
		return
	}
	b.reply(msg, answer)
}

// askGateway runs one question round trip against POST /api/ask and
// returns the assistant's answer.
func (b *Bridge) askGateway(ctx context.Context, externalID, question string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"user_id":  externalID,
		"question": question,
		"model":    b.cfg.Bridge.ModelVariant,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	url := strings.TrimSuffix(b.cfg.Gateway.URL, "/") + "/api/ask"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Answer == "" {
		return "", fmt.Errorf("gateway returned an empty answer")
	}
	return parsed.Answer, nil
}

func (b *Bridge) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.bot.Send(out); err != nil {
		b.logger.Error("sending reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}
