// Package directorytest provides an in-memory directory.Client for tests.
package directorytest

import (
	"context"
	"iter"
	"sync"

	"github.com/edgard/scoutbot/internal/directory"
)

// Fake is a scripted directory.Client. Zero values behave like a connected,
// authorized session with no dialogs.
type Fake struct {
	mu sync.Mutex

	Connected    bool
	Authorized   bool
	DialogList   []directory.Dialog
	DialogsErr   error
	Members      map[int64][]directory.Participant
	Identity     directory.Identity
	SignInErr    error
	RequestErr   error
	ConnectErr   error
	Unresolvable map[int64]bool
	ResolveErr   map[int64]error
	InviteErr    map[int64]error
	// OnInvite, when set, runs after each invitation attempt.
	OnInvite func(userID int64)

	CodeRequests []string
	SignInCodes  []string
	Invites      []int64
	Resolved     []int64
	SignOuts     int
}

// New returns a connected, authorized fake.
func New() *Fake {
	return &Fake{
		Connected:    true,
		Authorized:   true,
		Members:      make(map[int64][]directory.Participant),
		Unresolvable: make(map[int64]bool),
		ResolveErr:   make(map[int64]error),
		InviteErr:    make(map[int64]error),
	}
}

func (f *Fake) IsAuthorized(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Connected {
		return false, directory.ErrNotConnected
	}
	return f.Authorized, nil
}

func (f *Fake) RequestAuthCode(_ context.Context, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RequestErr != nil {
		return f.RequestErr
	}
	f.CodeRequests = append(f.CodeRequests, phone)
	return nil
}

func (f *Fake) SignIn(_ context.Context, _, code string) (directory.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignInCodes = append(f.SignInCodes, code)
	if f.SignInErr != nil {
		return directory.Identity{}, f.SignInErr
	}
	f.Authorized = true
	return f.Identity, nil
}

func (f *Fake) SignOut(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SignOuts++
	f.Authorized = false
	f.Connected = false
	return true, nil
}

func (f *Fake) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.Connected = true
	return nil
}

func (f *Fake) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = false
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

func (f *Fake) Dialogs(context.Context) iter.Seq2[directory.Dialog, error] {
	return func(yield func(directory.Dialog, error) bool) {
		f.mu.Lock()
		list := append([]directory.Dialog(nil), f.DialogList...)
		err := f.DialogsErr
		f.mu.Unlock()

		if err != nil {
			yield(directory.Dialog{}, err)
			return
		}
		for _, d := range list {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (f *Fake) Participants(_ context.Context, d directory.Dialog) iter.Seq2[directory.Participant, error] {
	return func(yield func(directory.Participant, error) bool) {
		f.mu.Lock()
		members := append([]directory.Participant(nil), f.Members[d.ID]...)
		f.mu.Unlock()

		for _, p := range members {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (f *Fake) ResolveUser(_ context.Context, id int64) (directory.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resolved = append(f.Resolved, id)
	if err := f.ResolveErr[id]; err != nil {
		return directory.Entity{}, err
	}
	if f.Unresolvable[id] {
		return directory.Entity{}, directory.ErrUnresolved
	}
	return directory.Entity{Type: directory.PeerUser, ID: id, AccessHash: id * 10}, nil
}

func (f *Fake) InviteToChannel(_ context.Context, _ directory.Entity, user directory.Entity) error {
	f.mu.Lock()
	f.Invites = append(f.Invites, user.ID)
	err := f.InviteErr[user.ID]
	hook := f.OnInvite
	f.mu.Unlock()

	if hook != nil {
		hook(user.ID)
	}
	return err
}

// InviteCount returns how many invitations were attempted.
func (f *Fake) InviteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Invites)
}

var _ directory.Client = (*Fake)(nil)
