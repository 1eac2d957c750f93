package session

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/edgard/scoutbot/internal/config"
	apperrors "github.com/edgard/scoutbot/internal/errors"
	"github.com/edgard/scoutbot/internal/metrics"
)

// ErrBusy is returned by Submit when the update queue is full.
var ErrBusy = errors.New("session: update queue is full")

const defaultBuffer = 32

// typingIndicator is implemented by repliers that can show activity while
// an update is processed.
type typingIndicator interface {
	StartTyping(ctx context.Context, chatID int64) (stop func())
}

// Update is one inbound operator message. Command is empty for free text.
type Update struct {
	ChatID  int64
	From    Sender
	Command Command
	Text    string
}

// Controller feeds updates to a Machine one at a time. Submit may be
// called from any goroutine; only Run touches the Machine.
type Controller struct {
	machine  *Machine
	admins   map[int64]struct{}
	replier  Replier
	messages config.MessagesConfig
	logger   *slog.Logger
	updates  chan Update
}

func NewController(machine *Machine, admins []int64, replier Replier, messages config.MessagesConfig, logger *slog.Logger, buffer int) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Controller{
		machine:  machine,
		admins:   set,
		replier:  replier,
		messages: messages,
		logger:   logger.With("component", "controller"),
		updates:  make(chan Update, buffer),
	}
}

// IsAdmin reports whether id may drive the session.
func (c *Controller) IsAdmin(id int64) bool {
	_, ok := c.admins[id]
	return ok
}

// Submit queues u without blocking.
func (c *Controller) Submit(u Update) error {
	select {
	case c.updates <- u:
		return nil
	default:
		return ErrBusy
	}
}

// Run processes queued updates until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Session controller started")
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Session controller stopped")
			return nil
		case u := <-c.updates:
			c.Process(ctx, u)
		}
	}
}

// Process handles one update synchronously. Updates from non-admins get a
// fixed reply and never reach the Machine.
func (c *Controller) Process(ctx context.Context, u Update) {
	label := string(u.Command)
	if label == "" {
		label = "text"
	}

	if !c.IsAdmin(u.From.ID) {
		err := apperrors.Newf(apperrors.CodeUnauthorized, "user %d is not an admin", u.From.ID)
		c.logger.WarnContext(ctx, "Rejected update", "chat_id", u.ChatID, "code", apperrors.Code(err), "error", err)
		metrics.IncCommand(label, "unauthorized")
		if err := c.replier.SendText(ctx, u.ChatID, c.messages.NotAuthorized); err != nil {
			c.logger.ErrorContext(ctx, "Failed to send reply", "chat_id", u.ChatID, "error", err)
		}
		return
	}

	if t, ok := c.replier.(typingIndicator); ok {
		stop := t.StartTyping(ctx, u.ChatID)
		defer stop()
	}

	if u.Command != "" {
		c.machine.HandleCommand(ctx, u.ChatID, u.From, u.Command)
	} else {
		c.machine.HandleText(ctx, u.ChatID, u.From, u.Text)
	}
	metrics.IncCommand(label, "handled")
}
