package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/imamik/routeros-upgrade/internal/platform/ssh"
)

// FakeConnector hands out FakeSessions for scripted devices.
type FakeConnector struct {
	mu      sync.Mutex
	devices map[string]*FakeDevice
}

// NewFakeConnector returns a connector with no devices.
func NewFakeConnector() *FakeConnector {
	return &FakeConnector{devices: make(map[string]*FakeDevice)}
}

// Device returns the device for host, creating it on first use.
func (c *FakeConnector) Device(host string) *FakeDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.devices[host]
	if !ok {
		d = &FakeDevice{
			host:    host,
			outputs: make(map[string][]string),
			hooks:   make(map[string]func(*FakeDevice)),
		}
		c.devices[host] = d
	}
	return d
}

// Connect implements ssh.Connector.
func (c *FakeConnector) Connect(ctx context.Context, host string) (ssh.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w to %s: %w", ssh.ErrConnect, host, err)
	}
	return c.Device(host).connect()
}

// FakeDevice is a scripted RouterOS console.
type FakeDevice struct {
	host string

	mu          sync.Mutex
	outputs     map[string][]string
	hooks       map[string]func(*FakeDevice)
	connectErrs []error
	unreachable bool
	connects    int
	commands    []string
	sessions    []*FakeSession
}

// Respond scripts the output of command. With several outputs, successive
// runs consume them in order and the last one repeats.
func (d *FakeDevice) Respond(command string, outputs ...string) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs[command] = outputs
	return d
}

// OnStart registers fn to run when command is started or run.
// It is typically used to change scripted output after an install or reboot.
func (d *FakeDevice) OnStart(command string, fn func(*FakeDevice)) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[command] = fn
	return d
}

// FailConnect makes the next len(errs) connection attempts fail with errs.
// A nil entry lets that attempt succeed.
func (d *FakeDevice) FailConnect(errs ...error) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErrs = append(d.connectErrs, errs...)
	return d
}

// Unreachable makes every subsequent connection attempt fail with ssh.ErrConnect.
func (d *FakeDevice) Unreachable() *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unreachable = true
	return d
}

// Commands returns every command run or started on the device, in order.
func (d *FakeDevice) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

// Issued reports whether command was run or started.
func (d *FakeDevice) Issued(command string) bool {
	for _, c := range d.Commands() {
		if c == command {
			return true
		}
	}
	return false
}

// Connects returns the number of successful connections.
func (d *FakeDevice) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

// OpenSessions returns the number of sessions not yet closed.
func (d *FakeDevice) OpenSessions() int {
	d.mu.Lock()
	sessions := append([]*FakeSession(nil), d.sessions...)
	d.mu.Unlock()

	open := 0
	for _, s := range sessions {
		if s.Closes() == 0 {
			open++
		}
	}
	return open
}

// Sessions returns every session handed out, in order.
func (d *FakeDevice) Sessions() []*FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeSession(nil), d.sessions...)
}

func (d *FakeDevice) connect() (ssh.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unreachable {
		return nil, fmt.Errorf("%w to %s: host unreachable", ssh.ErrConnect, d.host)
	}
	if len(d.connectErrs) > 0 {
		err := d.connectErrs[0]
		d.connectErrs = d.connectErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	d.connects++
	s := &FakeSession{device: d}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *FakeDevice) exec(command string) (string, error) {
	d.mu.Lock()
	d.commands = append(d.commands, command)
	hook := d.hooks[command]
	outputs, scripted := d.outputs[command]
	var out string
	if len(outputs) > 0 {
		out = outputs[0]
		if len(outputs) > 1 {
			d.outputs[command] = outputs[1:]
		}
	}
	d.mu.Unlock()

	if hook != nil {
		hook(d)
	}
	if !scripted {
		return "", fmt.Errorf("bad command name %q", command)
	}
	return out, nil
}

// FakeSession is a session on a FakeDevice.
type FakeSession struct {
	device *FakeDevice

	mu     sync.Mutex
	closes int
}

// Host implements ssh.Session.
func (s *FakeSession) Host() string {
	return s.device.host
}

// Run implements ssh.Session.
func (s *FakeSession) Run(ctx context.Context, command string) (string, error) {
	if err := s.usable(ctx); err != nil {
		return "", err
	}
	return s.device.exec(command)
}

// Start implements ssh.Session. Unscripted commands are accepted.
func (s *FakeSession) Start(command string) error {
	if err := s.usable(context.Background()); err != nil {
		return err
	}
	_, _ = s.device.exec(command)
	return nil
}

// Close implements ssh.Session and counts calls.
func (s *FakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called.
func (s *FakeSession) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *FakeSession) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Closes() > 0 {
		return fmt.Errorf("session to %s already closed", s.device.host)
	}
	return nil
}

// FakeProbe returns scripted reachability results.
type FakeProbe struct {
	mu       sync.Mutex
	results  []error
	fallback error
	calls    int
}

// NewFakeProbe returns a probe yielding results in order, then fallback forever.
func NewFakeProbe(fallback error, results ...error) *FakeProbe {
	return &FakeProbe{results: results, fallback: fallback}
}

// Probe implements netutil.Probe.
func (p *FakeProbe) Probe(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.results) > 0 {
		err := p.results[0]
		p.results = p.results[1:]
		return err
	}
	return p.fallback
}

// Calls returns the number of probes performed.
func (p *FakeProbe) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
