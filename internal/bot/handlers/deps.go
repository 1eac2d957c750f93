package handlers

import (
	"log/slog"

	"github.com/edgard/scoutbot/internal/config"
	"github.com/edgard/scoutbot/internal/session"
)

// Submitter queues operator updates for the session controller.
type Submitter interface {
	Submit(u session.Update) error
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Updates Submitter
}
