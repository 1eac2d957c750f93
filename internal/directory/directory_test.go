package directory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

func rpcError(code int, typ string, arg int) error {
	msg := typ
	if arg > 0 {
		msg = fmt.Sprintf("%s_%d", typ, arg)
	}
	return fmt.Errorf("invoke: %w", &tgerr.Error{Code: code, Message: msg, Type: typ, Argument: arg})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "privacy", err: rpcError(403, "USER_PRIVACY_RESTRICTED", 0), want: ErrPrivacyRestricted},
		{name: "mutual contact", err: rpcError(400, "USER_NOT_MUTUAL_CONTACT", 0), want: ErrNotMutualContact},
		{name: "flood wait", err: rpcError(420, "FLOOD_WAIT", 30), want: ErrFloodWait},
		{name: "peer flood", err: rpcError(400, "PEER_FLOOD", 0), want: ErrFloodWait},
		{name: "bad code", err: rpcError(400, "PHONE_CODE_INVALID", 0), want: ErrInvalidCode},
		{name: "expired code", err: rpcError(400, "PHONE_CODE_EXPIRED", 0), want: ErrInvalidCode},
		{name: "revoked", err: rpcError(401, "AUTH_KEY_UNREGISTERED", 0), want: ErrNotAuthorized},
	}

	for _, tt := range tests {
		got := classify(tt.err)
		if !errors.Is(got, tt.want) {
			t.Errorf("%s: classify() = %v, want %v", tt.name, got, tt.want)
		}
		var rpcErr *tgerr.Error
		if !errors.As(got, &rpcErr) {
			t.Errorf("%s: original RPC error lost from chain", tt.name)
		}
	}
}

func TestClassifyPassesThroughGenericErrors(t *testing.T) {
	t.Parallel()

	generic := rpcError(400, "CHANNEL_PRIVATE", 0)
	got := classify(generic)
	for _, sentinel := range []error{ErrPrivacyRestricted, ErrNotMutualContact, ErrFloodWait, ErrUnresolved} {
		if errors.Is(got, sentinel) {
			t.Errorf("classify(%v) matched %v", generic, sentinel)
		}
	}
	if classify(nil) != nil {
		t.Error("classify(nil) != nil")
	}
	if !errors.Is(classify(context.Canceled), context.Canceled) {
		t.Error("context cancellation not preserved")
	}
}

func TestFloodWaitDuration(t *testing.T) {
	t.Parallel()

	var fw *FloodWaitError
	if !errors.As(classify(rpcError(420, "FLOOD_WAIT", 30)), &fw) {
		t.Fatal("expected *FloodWaitError")
	}
	if fw.Wait != 30*time.Second {
		t.Errorf("Wait = %s, want 30s", fw.Wait)
	}
}

func TestDialogMapping(t *testing.T) {
	t.Parallel()

	broadcast := dialogFromChannel(&tg.Channel{ID: 1, AccessHash: 11, Title: "News", Broadcast: true})
	if broadcast.Kind != KindChannel || !broadcast.AcceptsInvites() {
		t.Errorf("broadcast channel mapped to %+v", broadcast)
	}

	super := dialogFromChannel(&tg.Channel{ID: 2, AccessHash: 22, Title: "Chat", Megagroup: true})
	if super.Kind != KindGroup || !super.AcceptsInvites() || super.Peer.AccessHash != 22 {
		t.Errorf("supergroup mapped to %+v", super)
	}

	basic := dialogFromChat(&tg.Chat{ID: 3, Title: "Old group"})
	if basic.Kind != KindGroup || basic.AcceptsInvites() {
		t.Errorf("basic group mapped to %+v", basic)
	}

	direct := dialogFromUser(&tg.User{ID: 4, AccessHash: 44, FirstName: "Ada", LastName: "L"})
	if direct.Kind != KindDirect || direct.Name != "Ada L" || direct.AcceptsInvites() {
		t.Errorf("user mapped to %+v", direct)
	}
}

func TestResolveUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	lookup := func(_ context.Context, id int64) (int64, bool, error) {
		if id == 7 {
			return 700, true, nil
		}
		return 0, false, nil
	}
	client := NewTelegram(TelegramConfig{}, nil, nil, lookup)
	client.rememberUser(&tg.User{ID: 5, AccessHash: 500})

	tests := []struct {
		id       int64
		wantHash int64
		wantErr  error
	}{
		{id: 5, wantHash: 500},
		{id: 7, wantHash: 700},
		{id: 9, wantErr: ErrUnresolved},
	}
	for _, tt := range tests {
		got, err := client.ResolveUser(ctx, tt.id)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveUser(%d) error = %v, want %v", tt.id, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got.AccessHash != tt.wantHash || got.Type != PeerUser {
			t.Errorf("ResolveUser(%d) = %+v, %v", tt.id, got, err)
		}
	}
}

func TestDisconnectedCallsFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := NewTelegram(TelegramConfig{}, nil, nil, nil)

	if client.IsConnected() {
		t.Fatal("new client reports connected")
	}
	if _, err := client.IsAuthorized(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("IsAuthorized() error = %v", err)
	}
	for _, err := range client.Dialogs(ctx) {
		if !errors.Is(err, ErrNotConnected) {
			t.Errorf("Dialogs() error = %v", err)
		}
	}
	if err := client.Disconnect(ctx); err != nil {
		t.Errorf("Disconnect() on idle client = %v", err)
	}
}

func TestRunExitForgetsClient(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c := NewTelegram(TelegramConfig{}, nil, nil, nil)
	dead := telegram.NewClient(1, "hash", telegram.Options{})
	c.client, c.stop, c.done = dead, func() {}, make(chan error, 1)

	c.runExited(dead, errors.New("auth key revoked"))

	if c.IsConnected() {
		t.Fatal("client still reported connected after its run loop ended")
	}
	if _, err := c.IsAuthorized(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("IsAuthorized() error = %v, want ErrNotConnected", err)
	}
	if ctx.Err() != nil {
		t.Error("IsAuthorized() waited on the stopped client")
	}
}

func TestRunExitOfReplacedClientIsIgnored(t *testing.T) {
	t.Parallel()

	c := NewTelegram(TelegramConfig{}, nil, nil, nil)
	old := telegram.NewClient(1, "hash", telegram.Options{})
	current := telegram.NewClient(1, "hash", telegram.Options{})
	c.client, c.stop, c.done = current, func() {}, make(chan error, 1)

	c.runExited(old, context.Canceled)

	if !c.IsConnected() {
		t.Error("exit of a previous run dropped the current client")
	}
}

type dialogList []Dialog

func (l dialogList) seq() iter.Seq2[Dialog, error] {
	return func(yield func(Dialog, error) bool) {
		for _, d := range l {
			if !yield(d, nil) {
				return
			}
		}
	}
}

type listClient struct {
	Client
	dialogs dialogList
}

func (c listClient) Dialogs(context.Context) iter.Seq2[Dialog, error] { return c.dialogs.seq() }

func TestFindDialogFirstMatchWins(t *testing.T) {
	t.Parallel()

	c := listClient{dialogs: dialogList{
		{ID: 1, Name: "Team"},
		{ID: 2, Name: "Dest"},
		{ID: 3, Name: "Dest"},
	}}

	d, ok, err := FindDialog(context.Background(), c, "Dest")
	if err != nil || !ok || d.ID != 2 {
		t.Errorf("FindDialog() = %+v, %v, %v; want id 2", d, ok, err)
	}

	_, ok, err = FindDialog(context.Background(), c, "dest")
	if err != nil || ok {
		t.Errorf("FindDialog() matched case-insensitively")
	}
}
