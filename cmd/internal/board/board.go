// Package board loads YAML board files for the command line tools.
package board

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gen2brain/tdm"
)

// File is the on-disk layout of a board file.
type File struct {
	Variant string     `yaml:"variant"`
	Ports   []PortSpec `yaml:"ports"`
}

// PortSpec describes one port. When Slots is empty the port mask is the
// union of its adapters' slots.
type PortSpec struct {
	Index    int           `yaml:"index"`
	Pins     PinSpec       `yaml:"pins"`
	Slots    []int         `yaml:"slots"`
	ALSA     *ALSASpec     `yaml:"alsa"`
	Adapters []AdapterSpec `yaml:"adapters"`
}

// PinSpec holds GPIO numbers. Missing entries are not connected.
type PinSpec struct {
	LRCLK *int `yaml:"lrclk"`
	BCLK  *int `yaml:"bclk"`
	MCLK  *int `yaml:"mclk"`
	DIN   *int `yaml:"din"`
	DOUT  *int `yaml:"dout"`
}

// ALSASpec maps a port onto ALSA devices. A missing device disables that direction.
type ALSASpec struct {
	Card           uint `yaml:"card"`
	CaptureDevice  *int `yaml:"capture_device"`
	PlaybackDevice *int `yaml:"playback_device"`
}

// AdapterSpec describes one stream adapter.
type AdapterSpec struct {
	ID              string `yaml:"id"`
	Direction       string `yaml:"direction"`
	Slots           []int  `yaml:"slots"`
	Shared          bool   `yaml:"shared"`
	SampleRate      uint32 `yaml:"sample_rate"`
	BitsPerSample   int    `yaml:"bits_per_sample"`
	BitsPerChannel  int    `yaml:"bits_per_channel"`
	ChannelMode     string `yaml:"channel_mode"`
	ClockRole       string `yaml:"clock_role"`
	UseAPLL         bool   `yaml:"use_apll"`
	MclkMultiple    int    `yaml:"mclk_multiple"`
	CorrectDCOffset bool   `yaml:"correct_dc_offset"`
	RingFrames      int    `yaml:"ring_frames"`
	BlockFrames     int    `yaml:"block_frames"`
}

// Load reads and parses the board file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// Parse decodes a board file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse board: %w", err)
	}

	if f.Variant == "" {
		return nil, errors.New("parse board: variant is required")
	}

	return &f, nil
}

// Descriptor converts the file into a tdm.Descriptor. Only the encoding is
// checked here; the rules of the runtime are applied by tdm.Registry.Build.
func (f *File) Descriptor() (tdm.Descriptor, error) {
	d := tdm.Descriptor{Variant: tdm.Variant(strings.ToLower(f.Variant))}

	for _, ps := range f.Ports {
		pd := tdm.PortDescriptor{Index: ps.Index, Pins: ps.Pins.pins()}

		for _, as := range ps.Adapters {
			ad, err := as.descriptor()
			if err != nil {
				return tdm.Descriptor{}, fmt.Errorf("port %d: adapter %q: %w", ps.Index, as.ID, err)
			}

			pd.Slots |= ad.Slots
			pd.Adapters = append(pd.Adapters, ad)
		}

		if len(ps.Slots) > 0 {
			mask, err := tdm.ParseSlotMask(ps.Slots)
			if err != nil {
				return tdm.Descriptor{}, fmt.Errorf("port %d: %w", ps.Index, err)
			}

			pd.Slots = mask
		}

		d.Ports = append(d.Ports, pd)
	}

	return d, nil
}

// Endpoints returns the ALSA devices of every port that has an alsa section.
func (f *File) Endpoints() map[int]tdm.ALSAEndpoint {
	eps := make(map[int]tdm.ALSAEndpoint)

	for _, ps := range f.Ports {
		if ps.ALSA == nil {
			continue
		}

		eps[ps.Index] = tdm.ALSAEndpoint{
			Card:           ps.ALSA.Card,
			CaptureDevice:  device(ps.ALSA.CaptureDevice),
			PlaybackDevice: device(ps.ALSA.PlaybackDevice),
		}
	}

	return eps
}

// Adapter returns the settings of the adapter with the given id.
func (f *File) Adapter(id string) (AdapterSpec, bool) {
	for _, ps := range f.Ports {
		for _, as := range ps.Adapters {
			if as.ID == id {
				return as, true
			}
		}
	}

	return AdapterSpec{}, false
}

func (p PinSpec) pins() tdm.Pins {
	return tdm.Pins{
		LRCLK: pin(p.LRCLK),
		BCLK:  pin(p.BCLK),
		MCLK:  pin(p.MCLK),
		DIN:   pin(p.DIN),
		DOUT:  pin(p.DOUT),
	}
}

func pin(v *int) tdm.Pin {
	if v == nil {
		return tdm.NoPin
	}

	return tdm.Pin(*v)
}

func device(v *int) int {
	if v == nil {
		return tdm.NoDevice
	}

	return *v
}

func (a AdapterSpec) descriptor() (tdm.AdapterDescriptor, error) {
	if a.ID == "" {
		return tdm.AdapterDescriptor{}, errors.New("id is required")
	}

	dir, err := parseDirection(a.Direction)
	if err != nil {
		return tdm.AdapterDescriptor{}, err
	}

	mode, err := parseChannelMode(a.ChannelMode)
	if err != nil {
		return tdm.AdapterDescriptor{}, err
	}

	role, err := parseClockRole(a.ClockRole)
	if err != nil {
		return tdm.AdapterDescriptor{}, err
	}

	slots, err := tdm.ParseSlotMask(a.Slots)
	if err != nil {
		return tdm.AdapterDescriptor{}, err
	}

	if a.BitsPerSample < 0 || a.BitsPerSample > 32 || a.BitsPerChannel < 0 || a.BitsPerChannel > 32 {
		return tdm.AdapterDescriptor{}, fmt.Errorf("bit width out of range: %d/%d", a.BitsPerSample, a.BitsPerChannel)
	}

	if a.MclkMultiple < 0 || a.MclkMultiple > 0xffff {
		return tdm.AdapterDescriptor{}, fmt.Errorf("mclk multiple out of range: %d", a.MclkMultiple)
	}

	return tdm.AdapterDescriptor{
		ID:        a.ID,
		Direction: dir,
		Slots:     slots,
		Shared:    a.Shared,
		Format: tdm.Format{
			SampleRate:     a.SampleRate,
			BitsPerSample:  tdm.BitWidth(a.BitsPerSample),
			BitsPerChannel: tdm.BitWidth(a.BitsPerChannel),
			ChannelMode:    mode,
		},
		ClockRole:       role,
		UseAPLL:         a.UseAPLL,
		MclkMultiple:    tdm.MclkMultiple(a.MclkMultiple),
		CorrectDCOffset: a.CorrectDCOffset,
		Options:         tdm.AdapterOptions{RingFrames: a.RingFrames, BlockFrames: a.BlockFrames},
	}, nil
}

func parseDirection(s string) (tdm.Direction, error) {
	switch strings.ToLower(s) {
	case "capture", "rx":
		return tdm.DirectionCapture, nil
	case "playback", "tx":
		return tdm.DirectionPlayback, nil
	default:
		return 0, fmt.Errorf("invalid direction %q", s)
	}
}

func parseChannelMode(s string) (tdm.ChannelMode, error) {
	switch strings.ToLower(s) {
	case "", "mono":
		return tdm.ChannelMono, nil
	case "left":
		return tdm.ChannelLeft, nil
	case "right":
		return tdm.ChannelRight, nil
	case "stereo":
		return tdm.ChannelStereo, nil
	default:
		return 0, fmt.Errorf("invalid channel mode %q", s)
	}
}

func parseClockRole(s string) (tdm.ClockRole, error) {
	switch strings.ToLower(s) {
	case "", "primary", "master":
		return tdm.ClockPrimary, nil
	case "secondary", "slave":
		return tdm.ClockSecondary, nil
	default:
		return 0, fmt.Errorf("invalid clock role %q", s)
	}
}
