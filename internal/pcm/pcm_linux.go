//go:build linux

package pcm

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Direction selects the playback or capture node of a PCM device.
type Direction int

const (
	Playback Direction = iota
	Capture
)

// Device is an open ALSA hardware PCM stream.
type Device struct {
	file      *os.File
	dir       Direction
	config    Config
	subdevice uint32
	xruns     int
}

// Path returns the device node for a card/device pair.
func Path(card, device uint, dir Direction) string {
	streamChar := 'p'
	if dir == Capture {
		streamChar = 'c'
	}

	return fmt.Sprintf("/dev/snd/pcmC%dD%d%c", card, device, streamChar)
}

// Open opens a hardware PCM device in blocking mode and applies config.
// The node is opened non-blocking first so a busy device fails fast with EBUSY.
func Open(card, device uint, dir Direction, config Config) (*Device, error) {
	path := Path(card, device, dir)

	file, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCM device %s: %w", path, err)
	}

	currentFlags, err := unix.FcntlInt(file.Fd(), unix.F_GETFL, 0)
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("fcntl F_GETFL for %s failed: %w", path, err)
	}

	if _, err = unix.FcntlInt(file.Fd(), unix.F_SETFL, currentFlags&^syscall.O_NONBLOCK); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("failed to set blocking mode on %s: %w", path, err)
	}

	var info pcmInfo
	if err := ioctl(file.Fd(), ioctlInfo, uintptr(unsafe.Pointer(&info))); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("ioctl INFO failed: %w", err)
	}

	d := &Device{
		file:      file,
		dir:       dir,
		subdevice: info.Subdevice,
	}

	if err := d.setConfig(config); err != nil {
		_ = d.Close()

		return nil, fmt.Errorf("failed to set PCM config: %w", err)
	}

	return d, nil
}

// Close releases the device.
func (d *Device) Close() error {
	if d == nil || d.file == nil {
		return nil
	}

	err := d.file.Close()
	d.file = nil

	return err
}

// Config returns the parameters negotiated with the driver.
func (d *Device) Config() Config {
	return d.config
}

// Xruns returns the number of overruns (capture) or underruns (playback) seen so far.
func (d *Device) Xruns() int {
	return d.xruns
}

func (d *Device) setConfig(config Config) error {
	if config.Format.Bits() == 0 {
		return fmt.Errorf("unsupported sample format %d", config.Format)
	}

	hw := &hwParams{}
	hw.init()
	hw.setMask(paramAccess, accessRWInterleaved)
	hw.setMask(paramFormat, uint32(config.Format))
	hw.setMin(paramPeriodSize, config.PeriodSize)
	hw.setInt(paramChannels, config.Channels)
	hw.setInt(paramPeriods, config.PeriodCount)
	hw.setInt(paramRate, config.Rate)

	if err := ioctl(d.file.Fd(), ioctlHwParams, uintptr(unsafe.Pointer(hw))); err != nil {
		return fmt.Errorf("ioctl HW_PARAMS failed: %w", err)
	}

	d.config = config
	d.config.PeriodSize = hw.getInt(paramPeriodSize)
	d.config.PeriodCount = hw.getInt(paramPeriods)
	d.config.Channels = hw.getInt(paramChannels)
	d.config.Rate = hw.getInt(paramRate)

	if d.config.Channels == 0 || d.config.Rate == 0 || d.config.PeriodSize == 0 || d.config.PeriodCount == 0 {
		return fmt.Errorf("driver finalized invalid PCM configuration (Channels=%d, Rate=%d, PeriodSize=%d, PeriodCount=%d)",
			d.config.Channels, d.config.Rate, d.config.PeriodSize, d.config.PeriodCount)
	}

	sw := &swParams{}
	sw.TstampMode = 1
	sw.PeriodStep = 1
	sw.AvailMin = uframes(d.config.PeriodSize)
	sw.XferAlign = uframes(d.config.PeriodSize / 2)

	if d.dir == Capture {
		sw.StartThreshold = 1
		sw.StopThreshold = uframes(d.config.BufferSize() * 10)
	} else {
		sw.StartThreshold = uframes(d.config.BufferSize() / 2)
		sw.StopThreshold = uframes(d.config.BufferSize())
	}

	if err := ioctl(d.file.Fd(), ioctlSwParams, uintptr(unsafe.Pointer(sw))); err != nil {
		return fmt.Errorf("ioctl SW_PARAMS failed: %w", err)
	}

	return nil
}

// Prepare readies the stream for I/O. It also recovers from an xrun.
func (d *Device) Prepare() error {
	if err := ioctl(d.file.Fd(), ioctlPrepare, 0); err != nil {
		return fmt.Errorf("ioctl PREPARE failed: %w", err)
	}

	return nil
}

// Start starts the stream explicitly.
func (d *Device) Start() error {
	if err := ioctl(d.file.Fd(), ioctlStart, 0); err != nil {
		return fmt.Errorf("ioctl START failed: %w", err)
	}

	return nil
}

// Drop stops the stream immediately, discarding pending frames.
// A reader blocked in Read returns with an error afterwards.
func (d *Device) Drop() error {
	if err := ioctl(d.file.Fd(), ioctlDrop, 0); err != nil {
		return fmt.Errorf("ioctl DROP failed: %w", err)
	}

	return nil
}

// Read fills buf with interleaved frames from a capture stream.
// It returns the number of whole frames read.
func (d *Device) Read(buf []byte) (int, error) {
	if d.dir != Capture {
		return 0, fmt.Errorf("cannot read from a playback device")
	}

	return d.transfer(ioctlReadIFrames, buf)
}

// Write sends interleaved frames from buf to a playback stream.
// It returns the number of whole frames written.
func (d *Device) Write(buf []byte) (int, error) {
	if d.dir != Playback {
		return 0, fmt.Errorf("cannot write to a capture device")
	}

	return d.transfer(ioctlWriteIFrames, buf)
}

func (d *Device) transfer(req uintptr, buf []byte) (int, error) {
	frameSize := d.config.FrameSize()
	if frameSize == 0 {
		return 0, fmt.Errorf("invalid frame size")
	}

	frames := uint32(len(buf)) / frameSize
	if frames == 0 {
		return 0, nil
	}

	defer runtime.KeepAlive(buf)

	done := uint32(0)
	for done < frames {
		x := xferi{
			Frames: uframes(frames - done),
			Buf:    uintptr(unsafe.Pointer(&buf[done*frameSize])),
		}

		err := ioctl(d.file.Fd(), req, uintptr(unsafe.Pointer(&x)))
		if x.Result > 0 {
			done += uint32(x.Result)
		}

		if err != nil {
			if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ESTRPIPE) {
				d.xruns++
				if prepErr := d.Prepare(); prepErr != nil {
					return int(done), fmt.Errorf("recovery failed: could not prepare stream: %w", prepErr)
				}

				continue
			}

			return int(done), fmt.Errorf("ioctl transfer failed: %w", err)
		}
	}

	return int(done), nil
}
