package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/scoutbot/internal/session"
)

// NewCommandHandler returns a handler that queues cmd for the session.
func NewCommandHandler(deps HandlerDeps, cmd session.Command) bot.HandlerFunc {
	return commandHandler{deps: deps, cmd: cmd}.Handle
}

type commandHandler struct {
	deps HandlerDeps
	cmd  session.Command
}

func (h commandHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", string(h.cmd))

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Command handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	u := updateFromMessage(update.Message)
	u.Command = h.cmd
	u.Text = ""
	submit(ctx, h.deps, b, u)
}

// NewTextHandler returns the default handler. It queues free text, and
// unregistered commands so the session can answer them.
func NewTextHandler(deps HandlerDeps) bot.HandlerFunc {
	return textHandler{deps}.Handle
}

type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "text")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update without a message", "update_id", update.ID)
		return
	}
	if msg.Chat.Type != models.ChatTypePrivate {
		log.DebugContext(ctx, "Ignoring message outside a private chat", "chat_id", msg.Chat.ID, "chat_type", msg.Chat.Type)
		return
	}

	submit(ctx, h.deps, b, updateFromMessage(msg))
}

// updateFromMessage converts msg, treating a leading "/name" or
// "/name@bot" as a command.
func updateFromMessage(msg *models.Message) session.Update {
	u := session.Update{
		ChatID: msg.Chat.ID,
		From:   session.Sender{ID: msg.From.ID, FirstName: msg.From.FirstName},
		Text:   msg.Text,
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return u
	}
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return u
	}
	if cmd, ok := session.LookupCommand(name); ok {
		u.Command = cmd
	} else {
		u.Command = session.Command(strings.ToLower(name))
	}
	u.Text = ""
	return u
}

func submit(ctx context.Context, deps HandlerDeps, b *bot.Bot, u session.Update) {
	err := deps.Updates.Submit(u)
	if err == nil {
		return
	}

	log := deps.Logger.With("chat_id", u.ChatID, "user_id", u.From.ID)
	if !errors.Is(err, session.ErrBusy) {
		log.ErrorContext(ctx, "Failed to queue update", "error", err)
		return
	}

	log.WarnContext(ctx, "Session busy, update dropped", "command", u.Command)
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: u.ChatID, Text: deps.Config.Messages.Busy}); err != nil {
		log.ErrorContext(ctx, "Failed to send busy message", "error", err)
	}
}
