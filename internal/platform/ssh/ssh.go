package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/routeros-upgrade/internal/util/clock"
	"github.com/imamik/routeros-upgrade/internal/util/retry"
)

const (
	defaultPort           = 22
	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 60 * time.Second
	defaultRetryDelay     = 1 * time.Second
)

// ErrConnect is returned when every connection attempt to a host failed.
var ErrConnect = errors.New("ssh connection failed")

// Config holds SSH client configuration shared by all hosts of a run.
type Config struct {
	Port     int
	User     string
	Password string

	// DialTimeout bounds TCP connect plus handshake of one attempt.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// CommandTimeout bounds a single Run. If zero, defaultCommandTimeout is used.
	CommandTimeout time.Duration

	// MaxRetries is the number of retries after the first failed attempt.
	// Zero means a single attempt.
	MaxRetries int

	// RetryDelay is the unit of the linear backoff: retry n waits n*RetryDelay.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback

	// Clock drives retry sleeps. If nil, the real clock is used.
	Clock clock.Clock
}

// Connector opens sessions to hosts.
type Connector interface {
	Connect(ctx context.Context, host string) (Session, error)
}

type dialFunc func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)

// Client implements Connector over golang.org/x/crypto/ssh.
type Client struct {
	config *Config
	dial   dialFunc
}

// NewClient validates cfg and applies defaults to a copy of it.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("config max retries cannot be negative")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.CommandTimeout == 0 {
		configCopy.CommandTimeout = defaultCommandTimeout
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // accepts any host key, see package doc
	}
	if configCopy.Clock == nil {
		configCopy.Clock = clock.New()
	}

	return &Client{
		config: &configCopy,
		dial:   dialContext,
	}, nil
}

// Connect establishes an authenticated session with retry logic.
//
// The logger is taken from ctx. On exhaustion the error wraps ErrConnect.
// Every failure is retried, including rejected logins, since a rebooting
// device can refuse logins until its services are up. A done ctx stops
// retrying at once.
func (c *Client) Connect(ctx context.Context, host string) (Session, error) {
	log := logr.FromContextOrDiscard(ctx)
	addr := net.JoinHostPort(host, strconv.Itoa(c.config.Port))
	clientConfig := c.clientConfig()

	var client *ssh.Client
	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		log.V(1).Info("Connecting", "addr", addr, "attempt", attempt+1)
		var dialErr error
		client, dialErr = c.dial(ctx, addr, clientConfig)
		if dialErr != nil && ctx.Err() != nil {
			return retry.Fatal(fmt.Errorf("%w: %w", dialErr, ctx.Err()))
		}
		return dialErr
	},
		retry.WithMaxRetries(c.config.MaxRetries),
		retry.WithBackoff(retry.Linear(c.config.RetryDelay)),
		retry.WithClock(c.config.Clock),
		retry.WithOnRetry(func(n int, delay time.Duration, err error) {
			log.Info("SSH connection failed, retrying", "retry", n, "delay", delay.String(), "error", err.Error())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ErrConnect, addr, err)
	}

	return newSession(host, client, c.config.CommandTimeout), nil
}

func (c *Client) clientConfig() *ssh.ClientConfig {
	password := c.config.Password
	return &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}
}

// dialContext is ssh.Dial with context cancellation for the TCP connect.
func dialContext(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// WithSession connects to host, runs fn and closes the session on every
// exit path, including a panic inside fn.
func WithSession(ctx context.Context, connector Connector, host string, fn func(Session) error) error {
	sess, err := connector.Connect(ctx, host)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	return fn(sess)
}
