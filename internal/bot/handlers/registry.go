package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/scoutbot/internal/session"
)

// RegisteredHandler represents a command handler with its middleware.
// It encapsulates all information needed to register a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns a handler for every operator command and
// alias, keyed by "/name". All of them are admin-only.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	for _, info := range session.Commands {
		handler := NewCommandHandler(deps, info.Command)
		for _, name := range info.Names() {
			handlers["/"+name] = RegisteredHandler{
				HandlerType: tgbot.HandlerTypeMessageText,
				Pattern:     name,
				Handler:     handler,
				MatchType:   tgbot.MatchTypeCommandStartOnly,
				Middleware:  adminMiddleware,
			}
		}
	}

	return handlers
}
