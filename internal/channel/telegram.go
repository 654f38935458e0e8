package channel

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"hatbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
)

// Telegram implements domain.Channel for Telegram Bot.
type Telegram struct {
	token     string
	allowFrom []int64 // Allowed user IDs (empty = allow all)
	parseMode string

	bot    *tgbotapi.BotAPI
	bus    domain.MessageBus
	logger *slog.Logger
}

type TelegramConfig struct {
	Token     string
	AllowFrom []string // User IDs as strings
	ParseMode string
	Logger    *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	var allowed []int64
	for _, s := range cfg.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if cfg.ParseMode == "" {
		cfg.ParseMode = "Markdown"
	}
	return &Telegram{
		token:     cfg.Token,
		allowFrom: allowed,
		parseMode: cfg.ParseMode,
		logger:    cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and begins polling for updates.
func (t *Telegram) Start(ctx context.Context, bus domain.MessageBus) error {
	t.bus = bus

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	bus.OnUpdate("telegram", func(u domain.RenderUpdate) {
		t.handleRenderUpdate(u)
	})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop shuts down the Telegram bot.
// Note: StopReceivingUpdates is already called when ctx is cancelled in Start().
// Calling it twice panics, so Stop() is a no-op.
func (t *Telegram) Stop() error {
	return nil
}

// handleRenderUpdate delivers one incremental render update to the chat.
// Placeholders become chat actions (Telegram has no editable "thinking"
// bubble worth managing over polling); appended and replaced entries are
// sent as messages, with media blocks uploaded from their data URIs.
func (t *Telegram) handleRenderUpdate(u domain.RenderUpdate) {
	chatID, err := strconv.ParseInt(u.ChatID, 10, 64)
	if err != nil {
		t.logger.Error("invalid chat ID for telegram update", "chatID", u.ChatID, "err", err)
		return
	}

	switch u.Kind {
	case domain.UpdatePlaceholder:
		action := tgbotapi.ChatTyping
		switch u.Entry.Text() {
		case "Generating image...":
			action = tgbotapi.ChatUploadPhoto
		case "Generating video...":
			action = tgbotapi.ChatUploadVideo
		}
		_, _ = t.bot.Send(tgbotapi.NewChatAction(chatID, action))
	case domain.UpdateAppend, domain.UpdateReplace:
		if u.Entry.Role != domain.RoleAssistant {
			return // user entries are already visible in the chat
		}
		t.renderEntry(chatID, u.Entry)
	case domain.UpdateDone:
		// Nothing to re-enable: Telegram input is always available and
		// mid-flight sends are rejected upstream.
	}
}

func (t *Telegram) renderEntry(chatID int64, e domain.ConversationEntry) {
	prefix := ""
	if e.Perspective != "" {
		prefix = fmt.Sprintf("🎩 *%s hat*\n", e.Perspective)
	}
	for _, b := range e.Content {
		switch b.Kind {
		case domain.BlockText:
			t.sendMessage(chatID, prefix+b.Body)
			prefix = ""
		case domain.BlockImage:
			t.sendMedia(chatID, b.URI, "image")
		case domain.BlockVideo:
			t.sendMedia(chatID, b.URI, "video")
		}
	}
}

// sendMedia uploads a data: URI block as a photo or video. Non-data URIs
// (e.g. a file:// attachment preview) are sent as text references.
func (t *Telegram) sendMedia(chatID int64, uri string, kind string) {
	data, ok := decodeDataURI(uri)
	if !ok {
		t.sendMessage(chatID, uri)
		return
	}

	var err error
	switch kind {
	case "image":
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: data})
		_, err = t.bot.Send(photo)
	case "video":
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileBytes{Name: "video.mp4", Bytes: data})
		_, err = t.bot.Send(video)
	}
	if err != nil {
		t.logger.Error("telegram media send failed", "kind", kind, "err", err)
		t.sendMessage(chatID, "⚠️ Could not deliver the generated "+kind+".")
	}
}

// decodeDataURI extracts the payload of a base64 data: URI.
func decodeDataURI(uri string) ([]byte, bool) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, false
	}
	_, payload, found := strings.Cut(uri, ";base64,")
	if !found {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}

	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID,
			"username", update.Message.From.UserName,
		)
		t.sendMessage(chatID, "⛔ Unauthorized. Your user ID is not in the allow list.")
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	if update.Message.IsCommand() {
		t.handleCommand(chatID, update.Message)
		return
	}

	t.logger.Info("telegram message received",
		"user_id", userID,
		"chat_id", chatID,
		"text_len", len(text),
	)

	t.bus.Publish(domain.InboundMessage{
		Channel:   "telegram",
		ChatID:    strconv.FormatInt(chatID, 10),
		SenderID:  strconv.FormatInt(userID, 10),
		Content:   text,
		Timestamp: time.Unix(int64(update.Message.Date), 0),
	})
}

func (t *Telegram) handleCommand(chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.sendMessage(chatID, "👋 Hello! I'm hatbot.\n\nSend me a message and I'll answer from all six thinking-hat perspectives. Tag a message with @white, @black, @blue, @red, @yellow or @green for a single perspective, or @image / @video to generate media.\n\nCommands:\n/status — Show bot status\n/help — Show this message")
	case "help":
		t.sendMessage(chatID, "📖 *hatbot Help*\n\nAn untagged message gets a reply from every hat in order: white, black, blue, red, yellow, green.\n\nTags:\n• @white — facts and information\n• @black — risks and caution\n• @blue — process and control\n• @red — feelings and intuition\n• @yellow — benefits and optimism\n• @green — creativity and alternatives\n• @image — generate an image from the prompt\n• @video — generate a video from the prompt")
	case "status":
		t.sendMessage(chatID, fmt.Sprintf("🟢 hatbot\n\nBot: @%s\nYour ID: %d\nChat ID: %d", t.bot.Self.UserName, msg.From.ID, chatID))
	default:
		t.sendMessage(chatID, "Unknown command. Type /help for available commands.")
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true // Empty list = allow all
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	// Telegram has a 4096 char limit per message
	const maxLen = telegramMaxMsgLen
	for len(text) > 0 {
		chunk := text
		if len(chunk) > maxLen {
			cutAt := strings.LastIndex(chunk[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}

		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends a single message chunk with retry and rate limit handling.
// Strategy: try the configured parse mode first, fall back to plain text on
// parse errors, back off on rate limits.
func (t *Telegram) sendChunk(chatID int64, text string) {
	const maxRetries = telegramMaxSendRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}
		// On subsequent attempts: send as plain text (parse mode may be malformed).

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}

		errStr := err.Error()

		// Handle Telegram rate limiting (HTTP 429).
		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1,
			)
			time.Sleep(retryAfter)
			continue
		}

		// Parse error on first attempt — immediately retry as plain text.
		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram parse error, retrying as plain text",
				"err", err, "parseMode", t.parseMode,
			)
			plainMsg := tgbotapi.NewMessage(chatID, text)
			if _, err2 := t.bot.Send(plainMsg); err2 == nil {
				return
			}
			// Plain also failed — fall through to backoff loop.
		}

		// Exponential backoff for other transient errors.
		if attempt < maxRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}

		t.logger.Error("telegram send failed after retries", "err", err, "attempts", maxRetries+1)
	}
}
