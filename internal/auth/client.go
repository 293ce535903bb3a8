package auth

import (
	"context"
	"sync"

	"github.com/d60-Lab/friendlyvoice/internal/apperr"
)

// Client is one session's view of the provider.
type Client struct {
	backend *Backend

	mu        sync.Mutex
	current   *Identity
	listeners map[int]Listener
	nextID    int
}

var _ Provider = (*Client)(nil)

func (c *Client) Subscribe(ctx context.Context, l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	cur := c.current.clone()
	c.mu.Unlock()

	l(ctx, cur)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) CreateCredential(ctx context.Context, email, password string) (*Identity, error) {
	return c.backend.create(ctx, email, password)
}

func (c *Client) VerifyCredential(ctx context.Context, email, password string) (*Identity, error) {
	id, err := c.backend.verify(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.setCurrent(ctx, id)
	return id.clone(), nil
}

func (c *Client) SendVerificationEmail(ctx context.Context, id *Identity) error {
	if id == nil {
		return apperr.ErrNotAuthenticated
	}
	return c.backend.sendVerification(ctx, id)
}

func (c *Client) SignOut(ctx context.Context) error {
	c.setCurrent(ctx, nil)
	return nil
}

// Reload refreshes the signed-in identity from the store without notifying.
func (c *Client) Reload(ctx context.Context) (*Identity, error) {
	c.mu.Lock()
	cur := c.current.clone()
	c.mu.Unlock()
	if cur == nil {
		return nil, apperr.ErrNotAuthenticated
	}

	fresh, err := c.backend.lookup(ctx, cur.ID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.current != nil && c.current.ID == fresh.ID {
		c.current = fresh
	}
	c.mu.Unlock()
	return fresh.clone(), nil
}

func (c *Client) CurrentIdentity() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.clone()
}

// setCurrent 更新当前身份并在锁外通知监听者
func (c *Client) setCurrent(ctx context.Context, id *Identity) {
	c.mu.Lock()
	c.current = id.clone()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.Unlock()

	for _, l := range ls {
		l(ctx, id.clone())
	}
}
