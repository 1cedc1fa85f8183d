package tdm

import (
	"context"
	"errors"
	"fmt"
)

// Descriptor is a validated board description handed over by the configuration layer.
type Descriptor struct {
	Variant Variant
	Ports   []PortDescriptor
}

// PortDescriptor describes one physical port and its adapters.
type PortDescriptor struct {
	Index    int
	Pins     Pins
	Slots    SlotMask
	Adapters []AdapterDescriptor
}

// AdapterDescriptor describes one logical stream. Clock settings are given
// per adapter but describe the port, so every adapter of a port must agree on them.
type AdapterDescriptor struct {
	ID              string
	Direction       Direction
	Slots           SlotMask
	Shared          bool
	Format          Format
	ClockRole       ClockRole
	UseAPLL         bool
	MclkMultiple    MclkMultiple // zero selects DefaultMclkMultiple
	CorrectDCOffset bool
	Options         AdapterOptions
}

func (a AdapterDescriptor) mclk() MclkMultiple {
	if a.MclkMultiple == 0 {
		return DefaultMclkMultiple
	}

	return a.MclkMultiple
}

// PortConfig derives the port configuration from the adapters. Adapters that
// disagree on clock role, APLL, mclk multiple, sample rate or slot width are
// rejected with ErrInconsistentConfig.
func (d PortDescriptor) PortConfig() (PortConfig, error) {
	if len(d.Adapters) == 0 {
		return PortConfig{}, configErr(KindInconsistentConfig, d.Index, "port has no adapters")
	}

	first := d.Adapters[0]
	cfg := PortConfig{
		Pins:         d.Pins,
		ClockRole:    first.ClockRole,
		SampleRate:   first.Format.SampleRate,
		SlotBitWidth: first.Format.SlotWidth(),
		MclkMultiple: first.mclk(),
		UseAPLL:      first.UseAPLL,
	}

	for _, a := range d.Adapters[1:] {
		var field string
		switch {
		case a.ClockRole != cfg.ClockRole:
			field = "clock role"
		case a.UseAPLL != cfg.UseAPLL:
			field = "use_apll"
		case a.mclk() != cfg.MclkMultiple:
			field = "mclk multiple"
		case a.Format.SampleRate != cfg.SampleRate:
			field = "sample rate"
		case a.Format.SlotWidth() != cfg.SlotBitWidth:
			field = "slot width"
		default:
			continue
		}

		return PortConfig{}, configErr(KindInconsistentConfig, d.Index, "adapters %q and %q disagree on %s", first.ID, a.ID, field)
	}

	return cfg, nil
}

// Board is the set of ports and adapters built from a descriptor.
type Board struct {
	Ports     []*Port
	Captures  map[string]*CaptureAdapter
	Playbacks map[string]*PlaybackAdapter

	registry *Registry
}

// Build configures the ports of d, binds their adapters and starts them.
// On failure everything built so far is torn down.
func (r *Registry) Build(ctx context.Context, d Descriptor) (*Board, error) {
	if d.Variant != r.capability.Variant {
		return nil, &ConfigError{Kind: KindUnsupportedVariant, Port: -1,
			Err: fmt.Errorf("descriptor for %q on a %q registry", d.Variant, r.capability.Variant)}
	}

	b := &Board{
		Captures:  make(map[string]*CaptureAdapter),
		Playbacks: make(map[string]*PlaybackAdapter),
		registry:  r,
	}

	fail := func(err error) (*Board, error) {
		if cerr := b.Close(); cerr != nil {
			logWarn(ComponentRegistry, "teardown after failed build", "error", cerr)
		}

		return nil, err
	}

	for _, pd := range d.Ports {
		if err := b.buildPort(pd); err != nil {
			return fail(err)
		}
	}

	for _, p := range b.Ports {
		if err := p.Start(ctx); err != nil {
			return fail(err)
		}
	}

	logInfo(ComponentRegistry, "board up", "variant", d.Variant, "ports", len(b.Ports),
		"captures", len(b.Captures), "playbacks", len(b.Playbacks))

	return b, nil
}

func (b *Board) buildPort(pd PortDescriptor) error {
	cfg, err := pd.PortConfig()
	if err != nil {
		return err
	}

	p, err := b.registry.Port(pd.Index)
	if err != nil {
		return err
	}

	if err := p.Configure(cfg); err != nil {
		return err
	}

	b.Ports = append(b.Ports, p)

	if err := p.CommitSlotMask(pd.Slots); err != nil {
		return err
	}

	for _, ad := range pd.Adapters {
		if _, dup := b.Captures[ad.ID]; dup {
			return configErr(KindInconsistentConfig, pd.Index, "duplicate adapter id %q", ad.ID)
		}

		if _, dup := b.Playbacks[ad.ID]; dup {
			return configErr(KindInconsistentConfig, pd.Index, "duplicate adapter id %q", ad.ID)
		}

		req := SlotRequest{Slots: ad.Slots, Shared: ad.Shared}

		switch ad.Direction {
		case DirectionCapture:
			c := NewCaptureAdapter(ad.ID, CaptureOptions{AdapterOptions: ad.Options, CorrectDCOffset: ad.CorrectDCOffset})
			if err := c.Bind(p, ad.Format, req); err != nil {
				return err
			}

			b.Captures[ad.ID] = c
		case DirectionPlayback:
			a := NewPlaybackAdapter(ad.ID, ad.Options)
			if err := a.Bind(p, ad.Format, req); err != nil {
				return err
			}

			b.Playbacks[ad.ID] = a
		default:
			return configErr(KindInconsistentConfig, pd.Index, "adapter %q has unknown direction %d", ad.ID, ad.Direction)
		}
	}

	return nil
}

// Start starts every port of the board.
func (b *Board) Start(ctx context.Context) error {
	for _, p := range b.Ports {
		if err := p.Start(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Stop stops every port of the board.
func (b *Board) Stop() error {
	var errs []error
	for _, p := range b.Ports {
		errs = append(errs, p.Stop())
	}

	return errors.Join(errs...)
}

// Close stops the ports, unbinds all adapters and resets the ports.
func (b *Board) Close() error {
	errs := []error{b.Stop()}

	for _, c := range b.Captures {
		errs = append(errs, c.Unbind())
	}

	for _, a := range b.Playbacks {
		errs = append(errs, a.Unbind())
	}

	for _, p := range b.Ports {
		errs = append(errs, p.Reset())
	}

	return errors.Join(errs...)
}
