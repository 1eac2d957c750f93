package directory

import (
	"context"
	"iter"
	"time"
)

// WithTimeout bounds every call made through c to d. Listings are bounded
// as a whole, from the first item to the last. A non-positive d returns c.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

func (c *timeoutClient) IsAuthorized(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.IsAuthorized(ctx)
}

func (c *timeoutClient) RequestAuthCode(ctx context.Context, phone string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.RequestAuthCode(ctx, phone)
}

func (c *timeoutClient) SignIn(ctx context.Context, phone, code string) (Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.SignIn(ctx, phone, code)
}

func (c *timeoutClient) SignOut(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.SignOut(ctx)
}

func (c *timeoutClient) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Connect(ctx)
}

func (c *timeoutClient) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Disconnect(ctx)
}

func (c *timeoutClient) IsConnected() bool {
	return c.next.IsConnected()
}

func (c *timeoutClient) Dialogs(ctx context.Context) iter.Seq2[Dialog, error] {
	return func(yield func(Dialog, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		c.next.Dialogs(ctx)(yield)
	}
}

func (c *timeoutClient) Participants(ctx context.Context, dialog Dialog) iter.Seq2[Participant, error] {
	return func(yield func(Participant, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		c.next.Participants(ctx, dialog)(yield)
	}
}

func (c *timeoutClient) ResolveUser(ctx context.Context, userID int64) (Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.ResolveUser(ctx, userID)
}

func (c *timeoutClient) InviteToChannel(ctx context.Context, channel Entity, user Entity) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.InviteToChannel(ctx, channel, user)
}
