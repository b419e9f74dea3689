package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Session is an open authenticated connection to one host.
type Session interface {
	// Host returns the host the session is connected to.
	Host() string

	// Run executes command and returns its combined output once it exits.
	Run(ctx context.Context, command string) (string, error)

	// Start sends command without waiting for it to finish. It is used for
	// commands that make the device drop the connection, such as reboots.
	// The command keeps running until it exits or the session is closed.
	Start(command string) error

	// Close releases the connection. Calls after the first return the first result.
	Close() error
}

type session struct {
	host           string
	client         *ssh.Client
	commandTimeout time.Duration

	once     sync.Once
	closeErr error
}

func newSession(host string, client *ssh.Client, commandTimeout time.Duration) *session {
	return &session{
		host:           host,
		client:         client,
		commandTimeout: commandTimeout,
	}
}

func (s *session) Host() string {
	return s.host
}

func (s *session) Run(ctx context.Context, command string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	defer func() { _ = sess.Close() }()

	var out bytes.Buffer
	sess.Stdout = &out
	sess.Stderr = &out

	if err := sess.Start(command); err != nil {
		return "", fmt.Errorf("failed to start %q on %s: %w", command, s.host, err)
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	select {
	case err := <-done:
		// RouterOS does not always send an exit status for console commands.
		var missing *ssh.ExitMissingError
		if err != nil && !errors.As(err, &missing) {
			return out.String(), fmt.Errorf("command failed on %s: %w\nCommand: %s\nOutput: %s",
				s.host, err, command, out.String())
		}
		return out.String(), nil
	case <-ctx.Done():
		_ = sess.Close()
		return "", fmt.Errorf("command %q on %s: %w", command, s.host, ctx.Err())
	}
}

func (s *session) Start(command string) error {
	sess, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create SSH session on %s: %w", s.host, err)
	}
	if err := sess.Start(command); err != nil {
		_ = sess.Close()
		return fmt.Errorf("failed to start %q on %s: %w", command, s.host, err)
	}
	return nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		// Started commands are left running; closing the client ends them
		// together with the connection.
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}
