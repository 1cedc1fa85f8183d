//go:build linux

package tdm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/tdm/internal/pcm"
)

// ALSADriver runs ports on Linux ALSA hardware devices. Each TDM slot becomes
// one interleaved ALSA channel and each period one DMA completion.
type ALSADriver struct {
	Endpoints    map[int]ALSAEndpoint
	PeriodFrames uint32
	Periods      uint32
}

// NewALSADriver returns a driver with 256-frame periods and four periods per buffer.
func NewALSADriver(endpoints map[int]ALSAEndpoint) *ALSADriver {
	return &ALSADriver{Endpoints: endpoints, PeriodFrames: 256, Periods: 4}
}

// Open acquires the devices mapped to port.
func (d *ALSADriver) Open(_ context.Context, port int, geom Geometry) (Channel, error) {
	ep, ok := d.Endpoints[port]
	if !ok {
		return nil, fmt.Errorf("no ALSA device mapped to port %d", port)
	}

	format, ok := pcm.FormatForWidth(uint32(geom.SlotBits))
	if !ok {
		return nil, fmt.Errorf("no ALSA format for %d-bit slots", geom.SlotBits)
	}

	cfg := pcm.Config{
		Channels:    uint32(geom.Slots),
		Rate:        geom.SampleRate,
		PeriodSize:  d.PeriodFrames,
		PeriodCount: d.Periods,
		Format:      format,
	}

	c := &alsaChannel{port: port, width: uint32(geom.SlotBits)}

	if ep.CaptureDevice != NoDevice {
		dev, err := pcm.Open(ep.Card, uint(ep.CaptureDevice), pcm.Capture, cfg)
		if err != nil {
			return nil, err
		}

		c.capture = dev
	}

	if ep.PlaybackDevice != NoDevice {
		dev, err := pcm.Open(ep.Card, uint(ep.PlaybackDevice), pcm.Playback, cfg)
		if err != nil {
			_ = c.Close()

			return nil, err
		}

		c.playback = dev
	}

	if c.capture == nil && c.playback == nil {
		return nil, fmt.Errorf("port %d has neither capture nor playback device", port)
	}

	logInfo(ComponentDriver, "alsa open", "port", port, "card", ep.Card, "channels", cfg.Channels,
		"rate", cfg.Rate, "format", format)

	return c, nil
}

// xruns returns the recovered overruns or underruns of dev, zero without a device.
func xruns(dev *pcm.Device) int {
	if dev == nil {
		return 0
	}

	return dev.Xruns()
}

type alsaChannel struct {
	port     int
	width    uint32
	capture  *pcm.Device
	playback *pcm.Device

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (c *alsaChannel) Start(ctx context.Context, h Handler) error {
	for _, dev := range []*pcm.Device{c.capture, c.playback} {
		if dev == nil {
			continue
		}

		if err := dev.Prepare(); err != nil {
			return err
		}
	}

	if c.capture != nil {
		if err := c.capture.Start(); err != nil {
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	if c.capture != nil {
		c.wg.Add(1)
		go c.captureLoop(loopCtx, h)
	}

	if c.playback != nil {
		c.wg.Add(1)
		go c.playbackLoop(loopCtx, h)
	}

	return nil
}

func (c *alsaChannel) captureLoop(ctx context.Context, h Handler) {
	defer c.wg.Done()

	cfg := c.capture.Config()
	buf := make([]byte, cfg.PeriodSize*cfg.FrameSize())
	words := make([]int32, cfg.PeriodSize*cfg.Channels)

	for ctx.Err() == nil {
		frames, err := c.capture.Read(buf)
		if err != nil {
			if ctx.Err() == nil {
				logWarn(ComponentDriver, "capture read failed", "port", c.port, "error", err)
				h.OnFault(err)
			}

			return
		}

		n, err := pcm.Decode(cfg.Format, c.width, buf[:uint32(frames)*cfg.FrameSize()], words)
		if err != nil {
			logWarn(ComponentDriver, "capture decode failed", "port", c.port, "error", err)
			h.OnFault(err)

			return
		}

		h.OnReceive(words[:n])
	}
}

func (c *alsaChannel) playbackLoop(ctx context.Context, h Handler) {
	defer c.wg.Done()

	cfg := c.playback.Config()
	buf := make([]byte, cfg.PeriodSize*cfg.FrameSize())
	words := make([]int32, cfg.PeriodSize*cfg.Channels)

	for ctx.Err() == nil {
		h.OnTransmit(words)

		if _, err := pcm.Encode(cfg.Format, c.width, words, buf); err != nil {
			logWarn(ComponentDriver, "playback encode failed", "port", c.port, "error", err)
			h.OnFault(err)

			return
		}

		if _, err := c.playback.Write(buf); err != nil {
			if ctx.Err() == nil {
				logWarn(ComponentDriver, "playback write failed", "port", c.port, "error", err)
				h.OnFault(err)
			}

			return
		}
	}
}

// Stop cancels the loops and drops pending frames so blocked transfers return.
func (c *alsaChannel) Stop() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()

	var errs []error
	for _, dev := range []*pcm.Device{c.capture, c.playback} {
		if dev != nil {
			errs = append(errs, dev.Drop())
		}
	}

	c.wg.Wait()
	c.cancel = nil

	logInfo(ComponentDriver, "alsa stopped", "port", c.port, "capture_xruns", xruns(c.capture), "playback_xruns", xruns(c.playback))

	return errors.Join(errs...)
}

func (c *alsaChannel) Close() error {
	stopErr := c.Stop()

	var errs []error
	if c.capture != nil {
		errs = append(errs, c.capture.Close())
		c.capture = nil
	}

	if c.playback != nil {
		errs = append(errs, c.playback.Close())
		c.playback = nil
	}

	return errors.Join(append(errs, stopErr)...)
}
