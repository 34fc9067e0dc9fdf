// Package valkey wraps the valkey-go client used for state shared across
// server processes.
package valkey

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

// DefaultConnectTimeout bounds the initial ping.
const DefaultConnectTimeout = 5 * time.Second

type Config struct {
	Address        string
	Password       string
	DB             int
	KeyPrefix      string
	ConnectTimeout time.Duration
}

type Client struct {
	inner     valkeylib.Client
	keyPrefix string
}

// NewClient connects and pings the server. The caller must Close the client.
func NewClient(cfg Config) (*Client, error) {
	inner, err := valkeylib.NewClient(valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := inner.Do(ctx, inner.B().Ping().Build()).Error(); err != nil {
		inner.Close()
		return nil, fmt.Errorf("failed to ping valkey (timeout: %v): %w", timeout, err)
	}

	return newClient(inner, cfg.KeyPrefix), nil
}

func newClient(inner valkeylib.Client, prefix string) *Client {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &Client{inner: inner, keyPrefix: prefix}
}

func (c *Client) Inner() valkeylib.Client {
	return c.inner
}

func (c *Client) Close() {
	if c.inner != nil {
		c.inner.Close()
	}
}

// Key joins parts with ":" under the configured prefix,
// e.g. Key("ratelimit", "10.0.0.1") -> "surveygen:ratelimit:10.0.0.1".
func (c *Client) Key(parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(c.keyPrefix, ":")
	}
	return c.keyPrefix + strings.Join(parts, ":")
}

func (c *Client) Ping(ctx context.Context) error {
	return c.inner.Do(ctx, c.inner.B().Ping().Build()).Error()
}
