package tdm

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelOpen is returned by LoopbackDriver.Open when the port is already acquired.
var ErrChannelOpen = errors.New("channel already open")

// LoopbackDriver simulates port hardware in process. Frames are delivered
// synchronously by Inject and collected by Pull on the caller's goroutine.
type LoopbackDriver struct {
	// OpenErr and StartErr, when set, make Open or Start fail.
	OpenErr  error
	StartErr error

	mu       sync.Mutex
	channels map[int]*LoopbackChannel
}

// NewLoopbackDriver creates a driver with no acquired ports.
func NewLoopbackDriver() *LoopbackDriver {
	return &LoopbackDriver{channels: make(map[int]*LoopbackChannel)}
}

// Open acquires port.
func (d *LoopbackDriver) Open(_ context.Context, port int, geom Geometry) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}

	if _, ok := d.channels[port]; ok {
		return nil, fmt.Errorf("port %d: %w", port, ErrChannelOpen)
	}

	c := &LoopbackChannel{driver: d, port: port, geom: geom, regs: geom.Registers()}
	d.channels[port] = c

	logDebug(ComponentDriver, "loopback open", "port", port, "slots", geom.Slots, "bits", geom.SlotBits)

	return c, nil
}

// Channel returns the open channel of port, or nil.
func (d *LoopbackDriver) Channel(port int) *LoopbackChannel {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.channels[port]
}

// LoopbackChannel is an acquired loopback port.
type LoopbackChannel struct {
	driver *LoopbackDriver
	port   int
	geom   Geometry
	regs   Registers

	mu      sync.Mutex
	handler Handler
	starts  int
}

// Start begins accepting Inject and Pull calls.
func (c *LoopbackChannel) Start(_ context.Context, h Handler) error {
	if err := c.driver.StartErr; err != nil {
		return err
	}

	c.mu.Lock()
	c.handler = h
	c.starts++
	c.mu.Unlock()

	return nil
}

// Stop detaches the handler.
func (c *LoopbackChannel) Stop() error {
	c.mu.Lock()
	c.handler = nil
	c.mu.Unlock()

	return nil
}

// Close releases the port.
func (c *LoopbackChannel) Close() error {
	_ = c.Stop()

	c.driver.mu.Lock()
	delete(c.driver.channels, c.port)
	c.driver.mu.Unlock()

	return nil
}

// Geometry returns the layout the channel was opened with.
func (c *LoopbackChannel) Geometry() Geometry {
	return c.geom
}

// Registers returns the register image programmed at open.
func (c *LoopbackChannel) Registers() Registers {
	return c.regs
}

// Starts returns how many times the channel was started.
func (c *LoopbackChannel) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.starts
}

func (c *LoopbackChannel) current() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handler
}

// Inject delivers received TDM words as if a DMA buffer completed.
// It reports whether a handler was attached.
func (c *LoopbackChannel) Inject(words []int32) bool {
	h := c.current()
	if h == nil {
		return false
	}

	h.OnReceive(words)

	return true
}

// Fail reports a stream failure to the handler as a dying DMA stream would.
// It reports whether a handler was attached.
func (c *LoopbackChannel) Fail(err error) bool {
	h := c.current()
	if h == nil {
		return false
	}

	h.OnFault(err)

	return true
}

// Pull asks the handler for frames TDM frames of transmit words.
func (c *LoopbackChannel) Pull(frames int) []int32 {
	words := make([]int32, frames*c.geom.Slots)

	if h := c.current(); h != nil {
		h.OnTransmit(words)
	}

	return words
}
