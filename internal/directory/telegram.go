package directory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

const (
	dialogBatchSize      = 100
	participantBatchSize = 200
)

// TelegramConfig configures the MTProto user session.
type TelegramConfig struct {
	APIID       int
	APIHash     string
	SessionPath string
}

// Telegram is the MTProto implementation of Client. The connection runs in
// a background goroutine between Connect and Disconnect.
type Telegram struct {
	cfg    TelegramConfig
	logger *slog.Logger
	zap    *zap.Logger
	lookup PeerLookup

	mu         sync.Mutex
	client     *telegram.Client
	stop       context.CancelFunc
	done       chan error
	codeHashes map[string]string

	peersMu sync.RWMutex
	users   map[int64]int64
}

// NewTelegram creates an MTProto directory client. zapLogger may be nil.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger, zapLogger *zap.Logger, lookup PeerLookup) *Telegram {
	if logger == nil {
		logger = slog.Default()
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &Telegram{
		cfg:        cfg,
		logger:     logger.With("component", "directory"),
		zap:        zapLogger,
		lookup:     lookup,
		codeHashes: make(map[string]string),
		users:      make(map[int64]int64),
	}
}

// Connect starts the MTProto connection and waits until it is usable.
// Calling Connect on a connected client is a no-op.
func (t *Telegram) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return nil
	}

	client := telegram.NewClient(t.cfg.APIID, t.cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: t.cfg.SessionPath},
		Logger:         t.zap,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		err := client.Run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
		done <- err
		t.runExited(client, err)
	}()

	select {
	case <-ready:
		t.client = client
		t.stop = cancel
		t.done = done
		t.logger.InfoContext(ctx, "Directory session connected")
		return nil

	case err := <-done:
		cancel()
		t.logger.ErrorContext(ctx, "Directory session failed to connect", "error", err)
		return fmt.Errorf("connect to directory: %w", err)

	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Disconnect stops the MTProto connection and waits for it to close.
func (t *Telegram) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnectLocked(ctx)
}

func (t *Telegram) disconnectLocked(ctx context.Context) error {
	if t.client == nil {
		return nil
	}

	t.stop()
	var err error
	select {
	case err = <-t.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	t.client = nil
	t.stop = nil
	t.done = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		t.logger.WarnContext(ctx, "Directory session closed with error", "error", err)
		return fmt.Errorf("disconnect from directory: %w", err)
	}
	t.logger.InfoContext(ctx, "Directory session disconnected")
	return nil
}

// runExited forgets client when its run loop ended without Disconnect, so
// the next call reports ErrNotConnected instead of waiting on a dead
// connection.
func (t *Telegram) runExited(client *telegram.Client, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != client {
		return
	}
	t.stop()
	t.client = nil
	t.stop = nil
	t.done = nil
	t.logger.Warn("Directory session stopped unexpectedly", "error", err)
}

func (t *Telegram) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil
}

func (t *Telegram) connected() (*telegram.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil, ErrNotConnected
	}
	return t.client, nil
}

func (t *Telegram) IsAuthorized(ctx context.Context) (bool, error) {
	client, err := t.connected()
	if err != nil {
		return false, err
	}
	status, err := client.Auth().Status(ctx)
	if err != nil {
		return false, classify(err)
	}
	return status.Authorized, nil
}

func (t *Telegram) RequestAuthCode(ctx context.Context, phone string) error {
	client, err := t.connected()
	if err != nil {
		return err
	}

	sent, err := client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return classify(err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return fmt.Errorf("unexpected sent code response %T", sent)
	}

	t.mu.Lock()
	t.codeHashes[phone] = code.PhoneCodeHash
	t.mu.Unlock()

	t.logger.InfoContext(ctx, "Login code requested")
	return nil
}

func (t *Telegram) SignIn(ctx context.Context, phone, code string) (Identity, error) {
	client, err := t.connected()
	if err != nil {
		return Identity{}, err
	}

	t.mu.Lock()
	hash, ok := t.codeHashes[phone]
	t.mu.Unlock()
	if !ok {
		return Identity{}, fmt.Errorf("%w: no code was requested for this phone", ErrInvalidCode)
	}

	authz, err := client.Auth().SignIn(ctx, phone, code, hash)
	if err != nil {
		return Identity{}, classify(err)
	}

	t.mu.Lock()
	delete(t.codeHashes, phone)
	t.mu.Unlock()

	user, ok := authz.User.(*tg.User)
	if !ok {
		return Identity{}, fmt.Errorf("unexpected authorization user %T", authz.User)
	}
	t.logger.InfoContext(ctx, "Directory session signed in", "user_id", user.ID)
	return Identity{ID: user.ID, Username: user.Username, FirstName: user.FirstName}, nil
}

// SignOut logs the session out, disconnects and removes the session file.
func (t *Telegram) SignOut(ctx context.Context) (bool, error) {
	client, err := t.connected()
	if err != nil {
		return false, err
	}

	if _, err := client.API().AuthLogOut(ctx); err != nil {
		return false, classify(err)
	}

	t.mu.Lock()
	disconnectErr := t.disconnectLocked(ctx)
	t.mu.Unlock()
	if disconnectErr != nil {
		t.logger.WarnContext(ctx, "Disconnect after sign out failed", "error", disconnectErr)
	}

	if err := os.Remove(t.cfg.SessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.WarnContext(ctx, "Failed to remove session file", "path", t.cfg.SessionPath, "error", err)
	}

	t.peersMu.Lock()
	clear(t.users)
	t.peersMu.Unlock()

	return true, nil
}

func (t *Telegram) Dialogs(ctx context.Context) iter.Seq2[Dialog, error] {
	return func(yield func(Dialog, error) bool) {
		client, err := t.connected()
		if err != nil {
			yield(Dialog{}, err)
			return
		}

		it := query.GetDialogs(client.API()).BatchSize(dialogBatchSize).Iter()
		for it.Next(ctx) {
			d, ok := t.dialogFromElem(it.Value())
			if !ok {
				continue
			}
			if !yield(d, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(Dialog{}, classify(err))
		}
	}
}

func (t *Telegram) dialogFromElem(elem dialogs.Elem) (Dialog, bool) {
	switch p := elem.Peer.(type) {
	case *tg.InputPeerChannel:
		ch, ok := elem.Entities.Channel(p.ChannelID)
		if !ok {
			return Dialog{}, false
		}
		return dialogFromChannel(ch), true

	case *tg.InputPeerChat:
		chat, ok := elem.Entities.Chat(p.ChatID)
		if !ok {
			return Dialog{}, false
		}
		return dialogFromChat(chat), true

	case *tg.InputPeerUser:
		user, ok := elem.Entities.User(p.UserID)
		if !ok {
			return Dialog{}, false
		}
		t.rememberUser(user)
		return dialogFromUser(user), true
	}
	return Dialog{}, false
}

func dialogFromChannel(ch *tg.Channel) Dialog {
	kind := KindChannel
	if ch.Megagroup {
		kind = KindGroup
	}
	return Dialog{
		ID:        ch.ID,
		Name:      ch.Title,
		Kind:      kind,
		Megagroup: ch.Megagroup,
		Peer:      Entity{Type: PeerChannel, ID: ch.ID, AccessHash: ch.AccessHash},
	}
}

func dialogFromChat(chat *tg.Chat) Dialog {
	return Dialog{
		ID:   chat.ID,
		Name: chat.Title,
		Kind: KindGroup,
		Peer: Entity{Type: PeerChat, ID: chat.ID},
	}
}

func dialogFromUser(user *tg.User) Dialog {
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	if name == "" {
		name = user.Username
	}
	return Dialog{
		ID:   user.ID,
		Name: name,
		Kind: KindDirect,
		Peer: Entity{Type: PeerUser, ID: user.ID, AccessHash: user.AccessHash},
	}
}

func (t *Telegram) Participants(ctx context.Context, dialog Dialog) iter.Seq2[Participant, error] {
	return func(yield func(Participant, error) bool) {
		client, err := t.connected()
		if err != nil {
			yield(Participant{}, err)
			return
		}
		api := client.API()

		switch dialog.Peer.Type {
		case PeerChat:
			full, err := api.MessagesGetFullChat(ctx, dialog.Peer.ID)
			if err != nil {
				yield(Participant{}, classify(err))
				return
			}
			for _, u := range full.Users {
				if !t.yieldUser(u, yield) {
					return
				}
			}

		case PeerChannel:
			input := &tg.InputChannel{ChannelID: dialog.Peer.ID, AccessHash: dialog.Peer.AccessHash}
			offset := 0
			for {
				res, err := api.ChannelsGetParticipants(ctx, &tg.ChannelsGetParticipantsRequest{
					Channel: input,
					Filter:  &tg.ChannelParticipantsSearch{},
					Offset:  offset,
					Limit:   participantBatchSize,
				})
				if err != nil {
					yield(Participant{}, classify(err))
					return
				}
				page, ok := res.(*tg.ChannelsChannelParticipants)
				if !ok || len(page.Users) == 0 {
					return
				}
				for _, u := range page.Users {
					if !t.yieldUser(u, yield) {
						return
					}
				}
				offset += len(page.Users)
				if offset >= page.Count {
					return
				}
			}

		default:
			yield(Participant{}, fmt.Errorf("dialog %q has no participant list", dialog.Name))
		}
	}
}

func (t *Telegram) yieldUser(u tg.UserClass, yield func(Participant, error) bool) bool {
	user, ok := u.(*tg.User)
	if !ok {
		return true
	}
	t.rememberUser(user)
	return yield(participantFromUser(user), nil)
}

func participantFromUser(user *tg.User) Participant {
	return Participant{
		ID:         user.ID,
		Username:   user.Username,
		AccessHash: user.AccessHash,
		IsSelf:     user.Self,
		IsBot:      user.Bot,
	}
}

func (t *Telegram) rememberUser(user *tg.User) {
	if user.AccessHash == 0 {
		return
	}
	t.peersMu.Lock()
	t.users[user.ID] = user.AccessHash
	t.peersMu.Unlock()
}

// ResolveUser returns the input entity for a user seen by this session or
// persisted through the PeerLookup. Unknown users yield ErrUnresolved.
func (t *Telegram) ResolveUser(ctx context.Context, userID int64) (Entity, error) {
	t.peersMu.RLock()
	hash, ok := t.users[userID]
	t.peersMu.RUnlock()
	if ok {
		return Entity{Type: PeerUser, ID: userID, AccessHash: hash}, nil
	}

	if t.lookup != nil {
		hash, ok, err := t.lookup(ctx, userID)
		if err != nil {
			return Entity{}, err
		}
		if ok && hash != 0 {
			return Entity{Type: PeerUser, ID: userID, AccessHash: hash}, nil
		}
	}

	return Entity{}, fmt.Errorf("%w: user %d", ErrUnresolved, userID)
}

func (t *Telegram) InviteToChannel(ctx context.Context, channel Entity, user Entity) error {
	if channel.Type != PeerChannel {
		return fmt.Errorf("peer %d is not a channel", channel.ID)
	}
	client, err := t.connected()
	if err != nil {
		return err
	}

	res, err := client.API().ChannelsInviteToChannel(ctx, &tg.ChannelsInviteToChannelRequest{
		Channel: &tg.InputChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash},
		Users:   []tg.InputUserClass{&tg.InputUser{UserID: user.ID, AccessHash: user.AccessHash}},
	})
	if err != nil {
		return classify(err)
	}

	// Users whose privacy settings block the invite come back as missing
	// invitees instead of an RPC error.
	if len(res.MissingInvitees) > 0 {
		return fmt.Errorf("%w: user %d", ErrPrivacyRestricted, user.ID)
	}
	return nil
}

var _ Client = (*Telegram)(nil)
