// Package directory is the contract between the scout bot and the remote
// Telegram directory: dialog listing, participant enumeration, user
// resolution, channel invitations and the user-session authentication flow.
//
// Every call may fail. Callers are expected to classify failures with
// errors.Is against the sentinels in this package.
package directory

import (
	"context"
	"iter"
)

// Kind is the conversation kind of a dialog.
type Kind int

const (
	KindDirect Kind = iota
	KindGroup
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindChannel:
		return "channel"
	default:
		return "direct"
	}
}

// PeerType selects the input peer constructor used when calling the directory.
type PeerType int

const (
	PeerUser PeerType = iota
	PeerChat
	PeerChannel
)

// Entity is a resolved directory object that can be passed back into calls.
type Entity struct {
	Type       PeerType
	ID         int64
	AccessHash int64
}

// Dialog is a named conversation visible to the scout session.
type Dialog struct {
	ID   int64
	Name string
	Kind Kind
	// Megagroup is set for supergroups, which are channels under the hood
	// and accept channel invitations.
	Megagroup bool
	Peer      Entity
}

// AcceptsInvites reports whether users can be invited into the dialog.
func (d Dialog) AcceptsInvites() bool {
	return d.Peer.Type == PeerChannel && (d.Kind == KindChannel || d.Megagroup)
}

// Participant is a member of a group or channel.
type Participant struct {
	ID         int64
	Username   string
	AccessHash int64
	IsSelf     bool
	IsBot      bool
}

// Identity is the account a session is signed in as.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// Client is the directory session used by the scout bot.
type Client interface {
	IsAuthorized(ctx context.Context) (bool, error)
	// RequestAuthCode asks the directory to deliver a login code to phone.
	RequestAuthCode(ctx context.Context, phone string) error
	// SignIn completes the login started by RequestAuthCode.
	SignIn(ctx context.Context, phone, code string) (Identity, error)
	// SignOut terminates the session. It reports whether the directory
	// acknowledged the logout.
	SignOut(ctx context.Context) (bool, error)

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	Dialogs(ctx context.Context) iter.Seq2[Dialog, error]
	Participants(ctx context.Context, dialog Dialog) iter.Seq2[Participant, error]
	ResolveUser(ctx context.Context, userID int64) (Entity, error)
	InviteToChannel(ctx context.Context, channel Entity, user Entity) error
}

// PeerLookup returns a persisted access hash for a user the session has not
// seen since it started.
type PeerLookup func(ctx context.Context, userID int64) (accessHash int64, ok bool, err error)

// FindDialog returns the first dialog whose name equals name exactly.
// Dialogs sharing a display name are not disambiguated.
func FindDialog(ctx context.Context, c Client, name string) (Dialog, bool, error) {
	for d, err := range c.Dialogs(ctx) {
		if err != nil {
			return Dialog{}, false, err
		}
		if d.Name == name {
			return d, true, nil
		}
	}
	return Dialog{}, false, nil
}
