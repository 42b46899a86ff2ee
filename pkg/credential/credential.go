package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-mailmerge/pkg/submission"
)

// ErrMissingSecret signals a required secret that is unset.
var ErrMissingSecret = errors.New("credential: secret is not configured")

// Static checks that a configured secret is present. It never calls out.
type Static struct {
	name  string
	value string
}

// NewStatic builds a presence check for the secret called name.
func NewStatic(name, value string) Static {
	return Static{name: name, value: value}
}

func (s Static) EnsureCredential(context.Context) error {
	if strings.TrimSpace(s.value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingSecret, s.name)
	}
	return nil
}

// Chain runs providers in order and stops at the first failure.
type Chain []submission.CredentialProvider

func (c Chain) EnsureCredential(ctx context.Context) error {
	for _, provider := range c {
		if provider == nil {
			continue
		}
		if err := provider.EnsureCredential(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CachedOption configures a Cached provider.
type CachedOption func(*Cached)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CachedOption {
	return func(c *Cached) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) CachedOption {
	return func(c *Cached) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cached remembers a successful check for ttl so consecutive sends do not
// re-verify the credential every time. Failures are never cached.
type Cached struct {
	provider submission.CredentialProvider
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	validAt time.Time
}

// NewCached wraps provider. A ttl of zero disables caching.
func NewCached(provider submission.CredentialProvider, ttl time.Duration, options ...CachedOption) *Cached {
	c := &Cached{provider: provider, ttl: ttl, now: time.Now, logger: zap.NewNop()}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Cached) EnsureCredential(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.ttl > 0 && !c.validAt.IsZero() && now.Sub(c.validAt) < c.ttl {
		return nil
	}
	if err := c.provider.EnsureCredential(ctx); err != nil {
		c.validAt = time.Time{}
		return err
	}
	c.validAt = now
	c.logger.Debug("credential verified", zap.Duration("ttl", c.ttl))
	return nil
}

// Invalidate forgets the last successful check.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.validAt = time.Time{}
	c.mu.Unlock()
}
