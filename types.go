package tdm

import (
	"fmt"
	"math/bits"
	"strings"
)

// ClockRole is whether a port drives (Primary) or follows (Secondary) BCLK/LRCLK.
type ClockRole uint8

const (
	ClockPrimary ClockRole = iota
	ClockSecondary
)

// String returns the configuration name of the role.
func (r ClockRole) String() string {
	switch r {
	case ClockPrimary:
		return "primary"
	case ClockSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("ClockRole(%d)", uint8(r))
	}
}

// PortState is the lifecycle state of a port.
type PortState int32

const (
	StateUninitialized PortState = iota
	StateConfigured
	StateRunning
	StateStopped
	StateError
)

// String returns a human-readable state name.
func (s PortState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Direction is the data direction of a stream adapter.
type Direction uint8

const (
	DirectionCapture Direction = iota
	DirectionPlayback
)

// String returns "capture" or "playback".
func (d Direction) String() string {
	if d == DirectionPlayback {
		return "playback"
	}

	return "capture"
}

// ChannelMode describes how an adapter maps onto its slots.
// Left and Right are mono modes that name the physical side of a stereo codec.
type ChannelMode uint8

const (
	ChannelMono ChannelMode = iota
	ChannelLeft
	ChannelRight
	ChannelStereo
)

// String returns the configuration name of the mode.
func (m ChannelMode) String() string {
	switch m {
	case ChannelMono:
		return "mono"
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	case ChannelStereo:
		return "stereo"
	default:
		return fmt.Sprintf("ChannelMode(%d)", uint8(m))
	}
}

// IsMono reports whether the mode carries a single channel.
func (m ChannelMode) IsMono() bool {
	return m != ChannelStereo
}

// BitWidth is a sample or slot width in bits. BitsAuto lets the slot width follow the sample width.
type BitWidth uint8

const (
	BitsAuto BitWidth = 0
	Bits8    BitWidth = 8
	Bits16   BitWidth = 16
	Bits24   BitWidth = 24
	Bits32   BitWidth = 32
)

// Valid reports whether w is one of 8, 16, 24 or 32.
func (w BitWidth) Valid() bool {
	_, ok := bitWidthRegister[w]

	return ok && w != BitsAuto
}

// MclkMultiple is the ratio between MCLK and the sample rate.
type MclkMultiple uint16

const (
	Mclk128 MclkMultiple = 128
	Mclk256 MclkMultiple = 256
	Mclk384 MclkMultiple = 384
	Mclk512 MclkMultiple = 512
)

// DefaultMclkMultiple is used when a descriptor leaves the multiple unset.
const DefaultMclkMultiple = Mclk256

// Slot is a TDM slot index in 0..15.
type Slot uint8

// MaxSlots is the widest TDM frame any supported variant can generate.
const MaxSlots = 16

// SlotMask is a set of slot indices, bit n set for slot n.
type SlotMask uint16

// Slots builds a mask from slot indices. Indices outside 0..15 are ignored;
// use ParseSlotMask when the input must be validated.
func Slots(slots ...Slot) SlotMask {
	var m SlotMask
	for _, s := range slots {
		if s < MaxSlots {
			m |= 1 << s
		}
	}

	return m
}

// ParseSlotMask builds a mask from integer indices and rejects anything outside 0..15.
func ParseSlotMask(indices []int) (SlotMask, error) {
	var m SlotMask
	for _, i := range indices {
		if i < 0 || i >= MaxSlots {
			return 0, fmt.Errorf("slot %d out of range 0..%d", i, MaxSlots-1)
		}
		m |= 1 << uint(i)
	}

	return m, nil
}

// Has reports whether slot s is in the mask.
func (m SlotMask) Has(s Slot) bool {
	return s < MaxSlots && m&(1<<s) != 0
}

// Count returns the number of slots in the mask.
func (m SlotMask) Count() int {
	return bits.OnesCount16(uint16(m))
}

// Width returns the number of slots a TDM frame needs to carry the mask,
// which is the highest set slot plus one.
func (m SlotMask) Width() int {
	return bits.Len16(uint16(m))
}

// Contains reports whether every slot of other is also in m.
func (m SlotMask) Contains(other SlotMask) bool {
	return other&^m == 0
}

// Overlaps reports whether the masks share a slot.
func (m SlotMask) Overlaps(other SlotMask) bool {
	return m&other != 0
}

// Indices lists the slots in ascending order.
func (m SlotMask) Indices() []Slot {
	out := make([]Slot, 0, m.Count())
	for s := Slot(0); s < MaxSlots; s++ {
		if m.Has(s) {
			out = append(out, s)
		}
	}

	return out
}

// String formats the mask as "slot0|slot3".
func (m SlotMask) String() string {
	if m == 0 {
		return "none"
	}

	parts := make([]string, 0, m.Count())
	for _, s := range m.Indices() {
		parts = append(parts, fmt.Sprintf("slot%d", s))
	}

	return strings.Join(parts, "|")
}

// Pin is a GPIO number. NoPin marks an unused signal.
type Pin int16

// NoPin marks an optional signal as not connected.
const NoPin Pin = -1

// Pins is the signal assignment of a port. LRCLK is required; the others are optional.
type Pins struct {
	LRCLK Pin
	BCLK  Pin
	MCLK  Pin
	DIN   Pin
	DOUT  Pin
}

// NewPins returns a pin set with only LRCLK connected.
func NewPins(lrclk Pin) Pins {
	return Pins{LRCLK: lrclk, BCLK: NoPin, MCLK: NoPin, DIN: NoPin, DOUT: NoPin}
}

// validate checks that LRCLK is present and no GPIO is used twice.
func (p Pins) validate() error {
	if p.LRCLK < 0 {
		return fmt.Errorf("lrclk pin is required")
	}

	seen := make(map[Pin]string, 5)
	for _, sig := range []struct {
		name string
		pin  Pin
	}{
		{"lrclk", p.LRCLK}, {"bclk", p.BCLK}, {"mclk", p.MCLK}, {"din", p.DIN}, {"dout", p.DOUT},
	} {
		if sig.pin < 0 {
			continue
		}

		if other, ok := seen[sig.pin]; ok {
			return fmt.Errorf("gpio %d assigned to both %s and %s", sig.pin, other, sig.name)
		}

		seen[sig.pin] = sig.name
	}

	return nil
}

// Register values for the validated enumerations. These mirror the
// peripheral's enum encodings and are handed to drivers verbatim.
var (
	clockRoleRegister = map[ClockRole]uint32{
		ClockPrimary:   0,
		ClockSecondary: 1,
	}

	slotModeRegister = map[ChannelMode]uint32{
		ChannelMono:   1,
		ChannelLeft:   1,
		ChannelRight:  1,
		ChannelStereo: 2,
	}

	bitWidthRegister = map[BitWidth]uint32{
		BitsAuto: 0,
		Bits8:    8,
		Bits16:   16,
		Bits24:   24,
		Bits32:   32,
	}

	mclkRegister = map[MclkMultiple]uint32{
		Mclk128: 128,
		Mclk256: 256,
		Mclk384: 384,
		Mclk512: 512,
	}
)

// ClockSource selects the clock feeding the port divider.
type ClockSource uint32

const (
	ClockSourceDefault ClockSource = 0
	ClockSourceAPLL    ClockSource = 1
)

// Registers is the register image a driver programs for a port.
type Registers struct {
	Role        uint32
	SlotMask    uint32
	SlotWidth   uint32
	SlotMode    uint32
	Mclk        uint32
	ClockSource ClockSource
	SampleRate  uint32
}
