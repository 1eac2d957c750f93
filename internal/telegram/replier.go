package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/scoutbot/internal/session"
)

const (
	// maxMessageLength is the Telegram limit for one text message.
	maxMessageLength = 4096

	typingInterval = 4 * time.Second
)

// Replier sends operator replies through a bot.
type Replier struct {
	b      *bot.Bot
	logger *slog.Logger
}

func NewReplier(b *bot.Bot, logger *slog.Logger) *Replier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replier{b: b, logger: logger.With("component", "replier")}
}

// SendText sends text, split into several messages when it is too long.
func (r *Replier) SendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, maxMessageLength) {
		if _, err := r.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: part}); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

// SendFile uploads the file at path as a document.
func (r *Replier) SendFile(ctx context.Context, chatID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	_, err = r.b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filepath.Base(path), Data: f},
	})
	if err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

// StartTyping shows the typing indicator in chatID until the returned
// function is called.
func (r *Replier) StartTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		for {
			_, err := r.b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: chatID, Action: models.ChatActionTyping})
			if err != nil && ctx.Err() == nil {
				r.logger.DebugContext(ctx, "Typing action failed", "chat_id", chatID, "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// splitMessage cuts text into parts of at most limit runes, preferring to
// cut after a newline.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// BotOpener turns a pasted token into a Replier for a secondary bot. The
// bot is only used to send; it never polls for updates.
type BotOpener struct {
	logger *slog.Logger
}

func NewBotOpener(logger *slog.Logger) *BotOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &BotOpener{logger: logger}
}

// OpenBot validates token against Telegram and returns the bot username.
func (o *BotOpener) OpenBot(ctx context.Context, token string) (session.Replier, string, error) {
	b, err := NewTelegramBot(token, o.logger)
	if err != nil {
		return nil, "", err
	}
	me, err := b.GetMe(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get bot info: %w", err)
	}
	return NewReplier(b, o.logger), me.Username, nil
}

var (
	_ session.Replier   = (*Replier)(nil)
	_ session.BotOpener = (*BotOpener)(nil)
)
