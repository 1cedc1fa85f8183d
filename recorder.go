package tdm

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag.
const wavFormatPCM = 1

// Recorder drains a capture adapter into a WAV stream.
type Recorder struct {
	src    *CaptureAdapter
	enc    *wav.Encoder
	buf    *audio.IntBuffer
	frames int
}

// NewRecorder creates a recorder writing the adapter's bound format to w.
// blockFrames sizes the read buffer; zero means 1024.
func NewRecorder(w io.WriteSeeker, src *CaptureAdapter, blockFrames int) (*Recorder, error) {
	if !src.Bound() {
		return nil, fmt.Errorf("capture adapter %q is not bound", src.ID())
	}

	if blockFrames <= 0 {
		blockFrames = 1024
	}

	f := src.Format()

	return &Recorder{
		src: src,
		enc: wav.NewEncoder(w, int(f.SampleRate), int(f.BitsPerSample), src.Channels(), wavFormatPCM),
		buf: &audio.IntBuffer{Data: make([]int, 0, blockFrames*src.Channels())},
	}, nil
}

// Drain writes every frame currently buffered in the adapter and returns the frame count.
func (r *Recorder) Drain() (int, error) {
	total := 0
	for {
		r.buf.Data = r.buf.Data[:0]

		n, err := r.src.ReadBuffer(r.buf)
		if err != nil {
			return total, err
		}

		if n == 0 {
			return total, nil
		}

		// WAV stores 8-bit samples unsigned.
		if r.buf.SourceBitDepth == 8 {
			for i := range r.buf.Data {
				r.buf.Data[i] += 128
			}
		}

		if err := r.enc.Write(r.buf); err != nil {
			return total, fmt.Errorf("failed to write WAV data: %w", err)
		}

		total += n
		r.frames += n
	}
}

// Run drains the adapter every interval until ctx is done, then drains once more.
func (r *Recorder) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_, err := r.Drain()

			return err
		case <-ticker.C:
			if _, err := r.Drain(); err != nil {
				return err
			}
		}
	}
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int {
	return r.frames
}

// Close finalizes the WAV header. It does not close the underlying writer.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}

	logDebug(ComponentRecorder, "recording closed", "adapter", r.src.ID(), "frames", r.frames)

	return nil
}
