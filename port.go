package tdm

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// PortConfig is the physical setup of a port.
type PortConfig struct {
	Pins         Pins
	ClockRole    ClockRole
	SampleRate   uint32
	SlotBitWidth BitWidth
	MclkMultiple MclkMultiple
	UseAPLL      bool
}

// DefaultPortConfig returns a primary 16 kHz, 16-bit configuration with MCLK at 256x.
func DefaultPortConfig(pins Pins) PortConfig {
	return PortConfig{
		Pins:         pins,
		ClockRole:    ClockPrimary,
		SampleRate:   16000,
		SlotBitWidth: Bits16,
		MclkMultiple: DefaultMclkMultiple,
	}
}

// Geometry is the clock and slot layout a started port runs with.
type Geometry struct {
	Role         ClockRole
	SampleRate   uint32
	SlotBits     BitWidth
	Mask         SlotMask
	Slots        int // words per TDM frame
	MclkMultiple MclkMultiple
	UseAPLL      bool
}

// BCLK returns the bit clock frequency in Hz.
func (g Geometry) BCLK() uint32 {
	return g.SampleRate * uint32(g.Slots) * uint32(g.SlotBits)
}

// MCLK returns the master clock frequency in Hz.
func (g Geometry) MCLK() uint32 {
	return g.SampleRate * uint32(g.MclkMultiple)
}

// Registers returns the register image for the geometry.
func (g Geometry) Registers() Registers {
	src := ClockSourceDefault
	if g.UseAPLL {
		src = ClockSourceAPLL
	}

	mode := slotModeRegister[ChannelStereo]
	if g.Mask.Count() == 1 {
		mode = slotModeRegister[ChannelMono]
	}

	return Registers{
		Role:        clockRoleRegister[g.Role],
		SlotMask:    uint32(g.Mask),
		SlotWidth:   bitWidthRegister[g.SlotBits],
		SlotMode:    mode,
		Mclk:        mclkRegister[g.MclkMultiple],
		ClockSource: src,
		SampleRate:  g.SampleRate,
	}
}

// Port controls one physical audio port. Control methods are meant to be
// called from a single goroutine; delivery callbacks may run concurrently.
type Port struct {
	index    int
	registry *Registry

	mu      sync.Mutex
	config  PortConfig
	mask    SlotMask
	channel Channel
	err     error

	state    atomic.Int32
	running  atomic.Bool
	inflight atomic.Int32
	faults   atomic.Uint64

	arbiter    *Arbiter
	dependents []endpoint

	// Delivery snapshot, replaced only while not running.
	rx []endpoint
	tx []endpoint
}

func newPort(r *Registry, index int) *Port {
	p := &Port{index: index, registry: r}
	p.arbiter = &Arbiter{port: p}

	return p
}

// Index returns the hardware port number.
func (p *Port) Index() int {
	return p.index
}

// State returns the current lifecycle state.
func (p *Port) State() PortState {
	return PortState(p.state.Load())
}

func (p *Port) setState(s PortState) {
	p.state.Store(int32(s))
}

// Config returns the configuration applied by Configure.
func (p *Port) Config() PortConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.config
}

// SlotMask returns the committed slot mask, zero before CommitSlotMask.
func (p *Port) SlotMask() SlotMask {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mask
}

// Arbiter returns the slot arbiter of the port.
func (p *Port) Arbiter() *Arbiter {
	return p.arbiter
}

// Err returns the error that moved the port to StateError.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

// DeliveryFaults counts malformed DMA buffers the port discarded and
// driver streams that died while running.
func (p *Port) DeliveryFaults() uint64 {
	return p.faults.Load()
}

// Geometry returns the layout derived from the configuration and slot mask.
func (p *Port) Geometry() Geometry {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.geometry()
}

func (p *Port) geometry() Geometry {
	return Geometry{
		Role:         p.config.ClockRole,
		SampleRate:   p.config.SampleRate,
		SlotBits:     p.config.SlotBitWidth,
		Mask:         p.mask,
		Slots:        p.mask.Width(),
		MclkMultiple: p.config.MclkMultiple,
		UseAPLL:      p.config.UseAPLL,
	}
}

// Configure applies pins and clock settings. It is only valid on an uninitialized port.
func (p *Port) Configure(cfg PortConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.State(); s != StateUninitialized {
		return configErr(KindInvalidState, p.index, "cannot configure a port in state %s", s)
	}

	if err := cfg.Pins.validate(); err != nil {
		return &ConfigError{Kind: KindInvalidPins, Port: p.index, Err: err}
	}

	if _, ok := clockRoleRegister[cfg.ClockRole]; !ok {
		return configErr(KindFormatUnsupported, p.index, "unknown clock role %s", cfg.ClockRole)
	}

	if cfg.SampleRate == 0 {
		return configErr(KindFormatUnsupported, p.index, "sample rate must be positive")
	}

	if !cfg.SlotBitWidth.Valid() {
		return configErr(KindFormatUnsupported, p.index, "unsupported slot width %d", cfg.SlotBitWidth)
	}

	capability := p.registry.capability
	if !capability.SupportsMclk(cfg.MclkMultiple) {
		return configErr(KindFormatUnsupported, p.index, "mclk multiple %d not supported by %s", cfg.MclkMultiple, capability.Variant)
	}

	if cfg.SlotBitWidth == Bits24 && cfg.MclkMultiple%3 != 0 {
		return configErr(KindMclkDivisibility, p.index, "24-bit slots with mclk multiple %d", cfg.MclkMultiple)
	}

	p.config = cfg
	p.setState(StateConfigured)

	logInfo(ComponentPort, "configured", "port", p.index, "role", cfg.ClockRole,
		"rate", cfg.SampleRate, "slot_bits", cfg.SlotBitWidth, "mclk", cfg.MclkMultiple, "apll", cfg.UseAPLL)

	return nil
}

// CommitSlotMask sets the slots the port transmits. The mask is frozen once the port starts.
func (p *Port) CommitSlotMask(mask SlotMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.State(); s != StateConfigured {
		return configErr(KindInvalidState, p.index, "cannot commit slot mask in state %s", s)
	}

	if mask == 0 {
		return configErr(KindSlotOverflow, p.index, "slot mask is empty")
	}

	if limit := p.registry.capability.MaxSlots; mask.Width() > limit {
		return configErr(KindSlotOverflow, p.index, "mask %s exceeds %d slots", mask, limit)
	}

	if claimed := p.arbiter.claimed(); !mask.Contains(claimed) {
		return configErr(KindSlotConflict, p.index, "claimed slots %s would be dropped", claimed&^mask)
	}

	if frameBits := uint32(p.config.SlotBitWidth) * uint32(mask.Width()); frameBits > uint32(p.config.MclkMultiple) {
		return configErr(KindFormatUnsupported, p.index, "%d bits per frame exceed mclk multiple %d", frameBits, p.config.MclkMultiple)
	}

	p.mask = mask

	logDebug(ComponentPort, "slot mask committed", "port", p.index, "mask", mask)

	return nil
}

// Start acquires the hardware and begins delivery. Starting a running port is a no-op.
func (p *Port) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch s := p.State(); s {
	case StateRunning:
		return nil
	case StateConfigured, StateStopped:
	default:
		return configErr(KindInvalidState, p.index, "cannot start a port in state %s", s)
	}

	if p.mask == 0 {
		return configErr(KindInvalidState, p.index, "no slot mask committed")
	}

	geom := p.geometry()

	if p.channel == nil {
		ch, err := p.registry.driver.Open(ctx, p.index, geom)
		if err != nil {
			return p.fail(&RuntimeError{Kind: KindHardwareBusy, Port: p.index, Err: err})
		}

		p.channel = ch
	}

	p.snapshot()
	p.running.Store(true)

	if err := p.channel.Start(ctx, p); err != nil {
		p.running.Store(false)

		return p.fail(&RuntimeError{Kind: KindDmaFailure, Port: p.index, Err: err})
	}

	p.setState(StateRunning)

	logInfo(ComponentPort, "started", "port", p.index, "bclk", geom.BCLK(), "mclk", geom.MCLK(), "slots", geom.Mask)

	return nil
}

// fail moves the port to StateError and releases the channel. p.mu must be held.
func (p *Port) fail(err error) error {
	if p.channel != nil {
		if cerr := p.channel.Close(); cerr != nil {
			logWarn(ComponentPort, "closing channel failed", "port", p.index, "error", cerr)
		}

		p.channel = nil
	}

	p.err = err
	p.setState(StateError)

	logError(ComponentPort, "port failed", "port", p.index, "error", err)

	return err
}

// Stop halts delivery. After it returns no adapter receives or transmits
// further frames. Stopping a port that is not running does nothing.
func (p *Port) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.State() != StateRunning {
		return nil
	}

	p.running.Store(false)

	var err error
	if p.channel != nil {
		err = p.channel.Stop()
	}

	for p.inflight.Load() != 0 {
		runtime.Gosched()
	}

	p.setState(StateStopped)

	logInfo(ComponentPort, "stopped", "port", p.index)

	if err != nil {
		return fmt.Errorf("failed to stop channel: %w", err)
	}

	return nil
}

// Reset tears the port down to StateUninitialized. Adapters must be unbound first.
func (p *Port) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s := p.State(); s == StateRunning {
		return configErr(KindInvalidState, p.index, "cannot reset a running port")
	}

	if n := len(p.dependents); n > 0 {
		return configErr(KindInvalidState, p.index, "%d adapters still bound", n)
	}

	var err error
	if p.channel != nil {
		err = p.channel.Close()
		p.channel = nil
	}

	p.config = PortConfig{}
	p.mask = 0
	p.err = nil
	p.rx, p.tx = nil, nil
	p.setState(StateUninitialized)

	logDebug(ComponentPort, "reset", "port", p.index)

	if err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}

	return nil
}

// Dependents returns the IDs of the adapters bound to the port.
func (p *Port) Dependents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.dependents))
	for _, d := range p.dependents {
		ids = append(ids, d.stream().id)
	}

	return ids
}

func (p *Port) attach(e endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dependents = append(p.dependents, e)
}

func (p *Port) detach(e endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, d := range p.dependents {
		if d == e {
			p.dependents = append(p.dependents[:i], p.dependents[i+1:]...)

			break
		}
	}
}

// snapshot splits dependents by direction for the delivery path. p.mu must be held.
func (p *Port) snapshot() {
	p.rx, p.tx = p.rx[:0], p.tx[:0]
	for _, d := range p.dependents {
		if d.stream().dir == DirectionCapture {
			p.rx = append(p.rx, d)
		} else {
			p.tx = append(p.tx, d)
		}
	}
}

func (p *Port) enter() bool {
	p.inflight.Add(1)
	if !p.running.Load() {
		p.inflight.Add(-1)

		return false
	}

	return true
}

func (p *Port) exit() {
	p.inflight.Add(-1)
}

// OnReceive delivers interleaved TDM words from the hardware, one word per
// slot of each frame, right-aligned at the slot width.
func (p *Port) OnReceive(words []int32) {
	if !p.enter() {
		return
	}
	defer p.exit()

	width := p.mask.Width()
	if width == 0 || len(words)%width != 0 {
		p.faults.Add(1)

		return
	}

	for _, e := range p.rx {
		e.receive(words, width)
	}
}

// OnTransmit fills words with the next TDM frames. Slots no adapter drives carry silence.
func (p *Port) OnTransmit(words []int32) {
	clear(words)

	if !p.enter() {
		return
	}
	defer p.exit()

	width := p.mask.Width()
	if width == 0 || len(words)%width != 0 {
		p.faults.Add(1)

		return
	}

	for _, e := range p.tx {
		e.transmit(words, width)
	}
}

// OnFault counts a driver stream that stopped while the port was running.
func (p *Port) OnFault(error) {
	if !p.running.Load() {
		return
	}

	p.faults.Add(1)
}
