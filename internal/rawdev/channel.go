// Package rawdev provides an exclusive, privileged channel to a physical
// storage device for issuing ATA drive commands.
package rawdev

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigreer/hwgod/internal/ata"
)

var (
	// ErrDeviceUnavailable is returned when a channel cannot be opened:
	// the device is missing, access is denied, the platform has no raw
	// channel, or another channel already holds the device.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrCommandFailed is returned when the device or driver rejects a
	// command or returns no data.
	ErrCommandFailed = errors.New("command failed")

	// ErrDisposed is returned for any operation on a closed channel.
	ErrDisposed = errors.New("channel disposed")
)

const (
	// DefaultCommandTimeout bounds a single command where the transport
	// supports a timeout.
	DefaultCommandTimeout = 20 * time.Second

	// DefaultWatchdog is how long a command may block before the channel
	// is forcibly closed.
	DefaultWatchdog = 30 * time.Second
)

// transport is the platform specific side of a channel.
type transport interface {
	// do submits one command. in is an encoded DriveCommandParameter and
	// out is sized for the expected response. It returns the number of
	// bytes the driver produced.
	do(code ata.DriveCommand, in, out []byte, timeout time.Duration) (int, error)
	close() error
}

// clock schedules the watchdog; the returned func cancels it.
type clock interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type options struct {
	commandTimeout time.Duration
	watchdog       time.Duration
	clock          clock
}

// Option configures Open.
type Option func(*options)

// WithCommandTimeout sets the per-command transport timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) { o.commandTimeout = d }
}

// WithWatchdog sets how long a command may block before the channel is
// forcibly closed. Zero disables the watchdog.
func WithWatchdog(d time.Duration) Option {
	return func(o *options) { o.watchdog = d }
}

func withClock(c clock) Option {
	return func(o *options) { o.clock = c }
}

// held tracks device indices owned by open channels in this process.
var held = struct {
	sync.Mutex
	indices map[int]bool
}{indices: make(map[int]bool)}

func acquire(index int) bool {
	held.Lock()
	defer held.Unlock()
	if held.indices[index] {
		return false
	}
	held.indices[index] = true
	return true
}

func release(index int) {
	held.Lock()
	defer held.Unlock()
	delete(held.indices, index)
}

// Channel is an exclusive handle to one physical storage device. At most
// one command is in flight per channel.
type Channel struct {
	index int
	path  string
	opts  options

	cmdMu  sync.Mutex // serializes commands
	closed atomic.Bool

	closeMu sync.Mutex
	t       transport
}

// Open acquires the numbered physical storage device.
func Open(index int, opts ...Option) (*Channel, error) {
	return openWith(index, openTransport, opts...)
}

func openWith(index int, open func(path string) (transport, error), opts ...Option) (*Channel, error) {
	if index < 0 {
		return nil, fmt.Errorf("drive %d: %w", index, ErrDeviceUnavailable)
	}
	o := options{
		commandTimeout: DefaultCommandTimeout,
		watchdog:       DefaultWatchdog,
		clock:          realClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !acquire(index) {
		return nil, fmt.Errorf("drive %d already held: %w", index, ErrDeviceUnavailable)
	}

	path := DevicePath(index)
	t, err := open(path)
	if err != nil {
		release(index)
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open %s: %v: %w", path, err, ErrDeviceUnavailable)
	}

	return &Channel{index: index, path: path, opts: o, t: t}, nil
}

// Index returns the device index the channel was opened for.
func (c *Channel) Index() int {
	return c.index
}

// Path returns the OS device path.
func (c *Channel) Path() string {
	return c.path
}

// IsValid reports whether the channel can still issue commands.
func (c *Channel) IsValid() bool {
	return !c.closed.Load()
}

// SendCommand issues one command and returns the raw response bytes.
func (c *Channel) SendCommand(code ata.DriveCommand, p ata.DriveCommandParameter) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrDisposed
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.closeMu.Lock()
	t := c.t
	c.closeMu.Unlock()
	if t == nil {
		return nil, ErrDisposed
	}

	if c.opts.watchdog > 0 {
		stop := c.opts.clock.AfterFunc(c.opts.watchdog, func() { c.Close() })
		defer stop()
	}

	out := make([]byte, ata.ResultSize(p.BufferSize))
	n, err := t.do(code, p.Encode(), out, c.opts.commandTimeout)
	if c.closed.Load() {
		return nil, fmt.Errorf("%s %s: %w", c.path, code, ErrDisposed)
	}
	if err != nil {
		if errors.Is(err, ErrCommandFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %v: %w", c.path, code, err, ErrCommandFailed)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%s %s: no data returned: %w", c.path, code, ErrCommandFailed)
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n], nil
}

// Close releases the device. It is safe to call more than once.
func (c *Channel) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.closeMu.Lock()
	t := c.t
	c.t = nil
	c.closeMu.Unlock()

	release(c.index)
	if t == nil {
		return nil
	}
	return t.close()
}
