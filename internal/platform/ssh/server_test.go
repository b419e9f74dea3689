package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

const (
	testUser     = "admin"
	testPassword = "secret"
)

// testServer is a minimal in-process SSH server answering exec requests
// with canned output, standing in for a RouterOS console.
type testServer struct {
	t        *testing.T
	listener net.Listener
	config   *ssh.ServerConfig

	mu       sync.Mutex
	outputs  map[string]string
	hang     map[string]bool
	noStatus bool
	commands []string
	conns    int
	ended    int
	rejects  int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	srv := &testServer{
		t:       t,
		outputs: make(map[string]string),
		hang:    make(map[string]bool),
	}
	srv.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			srv.mu.Lock()
			reject := srv.rejects > 0
			if reject {
				srv.rejects--
			}
			srv.mu.Unlock()
			if !reject && c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", c.User())
		},
	}
	srv.config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	srv.listener = ln
	t.Cleanup(func() { _ = ln.Close() })

	go srv.serve()
	return srv
}

func (s *testServer) port() int {
	_, portStr, _ := net.SplitHostPort(s.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

func (s *testServer) setOutput(command, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[command] = output
}

// rejectLogins makes the next n password attempts fail even when correct.
func (s *testServer) rejectLogins(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects = n
}

func (s *testServer) setHang(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hang[command] = true
}

func (s *testServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// endedHung returns how many hanging commands saw their channel close.
func (s *testServer) endedHung() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *testServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *testServer) serve() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handle(nc)
	}
}

func (s *testServer) handle(nc net.Conn) {
	sconn, chans, reqs, err := ssh.NewServerConn(nc, s.config)
	if err != nil {
		_ = nc.Close()
		return
	}
	defer func() { _ = sconn.Close() }()

	s.mu.Lock()
	s.conns++
	s.mu.Unlock()

	go ssh.DiscardRequests(reqs)
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, requests)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()

	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		output := s.outputs[payload.Command]
		hang := s.hang[payload.Command]
		noStatus := s.noStatus
		s.mu.Unlock()

		_, _ = io.WriteString(ch, output)
		if hang {
			// Block until the client gives up and closes the channel.
			_, _ = io.Copy(io.Discard, ch)
			s.mu.Lock()
			s.ended++
			s.mu.Unlock()
			return
		}
		if !noStatus {
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
		}
		return
	}
}
