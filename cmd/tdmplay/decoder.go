package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// AudioDecoder abstracts the file formats the player accepts.
type AudioDecoder interface {
	// PCMBuffer fills buf.Data with interleaved samples and returns the number of samples read.
	PCMBuffer(buf *audio.IntBuffer) (n int, err error)
	Duration() (time.Duration, error)
	NumChans() uint16
	SampleRate() uint32
	BitDepth() uint16
}

// openDecoder picks a decoder by file extension.
func openDecoder(path string, f *os.File) (AudioDecoder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return newWavDecoder(f)
	case ".aif", ".aiff":
		return newAiffDecoder(f)
	case ".mp3":
		return newMp3Decoder(f)
	case ".ogg", ".oga":
		return newOggDecoder(f)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

type wavDecoderWrapper struct {
	*wav.Decoder
}

func newWavDecoder(r io.ReadSeeker) (AudioDecoder, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	// 3 == IEEE float
	if decoder.WavAudioFormat == 3 {
		return nil, errors.New("floating point WAV files are not supported")
	}

	return &wavDecoderWrapper{Decoder: decoder}, nil
}

func (w *wavDecoderWrapper) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	n, err := w.Decoder.PCMBuffer(buf)
	if err != nil {
		return n, err
	}

	// WAV stores 8-bit samples unsigned.
	if w.Decoder.BitDepth == 8 {
		for i := range buf.Data[:n] {
			buf.Data[i] -= 128
		}
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

func (w *wavDecoderWrapper) SampleRate() uint32 { return w.Decoder.SampleRate }
func (w *wavDecoderWrapper) NumChans() uint16   { return w.Decoder.NumChans }
func (w *wavDecoderWrapper) BitDepth() uint16   { return uint16(w.Decoder.BitDepth) }

type aiffDecoderWrapper struct {
	*aiff.Decoder
}

func newAiffDecoder(r io.ReadSeeker) (AudioDecoder, error) {
	decoder := aiff.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, errors.New("invalid AIFF file")
	}

	return &aiffDecoderWrapper{Decoder: decoder}, nil
}

func (a *aiffDecoderWrapper) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	n, err := a.Decoder.PCMBuffer(buf)
	if n == 0 && err == nil {
		return 0, io.EOF
	}

	return n, err
}

func (a *aiffDecoderWrapper) SampleRate() uint32 { return uint32(a.Decoder.SampleRate) }
func (a *aiffDecoderWrapper) NumChans() uint16   { return uint16(a.Decoder.NumChans) }
func (a *aiffDecoderWrapper) BitDepth() uint16   { return uint16(a.Decoder.BitDepth) }

// mp3DecoderWrapper always yields 16-bit stereo.
type mp3DecoderWrapper struct {
	decoder *mp3.Decoder
	bytes   []byte
}

func newMp3Decoder(r io.Reader) (AudioDecoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	return &mp3DecoderWrapper{decoder: decoder}, nil
}

func (m *mp3DecoderWrapper) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	need := len(buf.Data) * 2
	if cap(m.bytes) < need {
		m.bytes = make([]byte, need)
	}

	byteBuf := m.bytes[:need]

	bytesRead, err := io.ReadFull(m.decoder, byteBuf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}

	samplesRead := bytesRead / 2
	for i := 0; i < samplesRead; i++ {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(byteBuf[i*2:])))
	}

	if samplesRead > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return samplesRead, err
}

func (m *mp3DecoderWrapper) Duration() (time.Duration, error) {
	// 4 bytes per 16-bit stereo frame.
	frames := m.decoder.Length() / 4
	if frames <= 0 {
		return 0, errors.New("unknown length")
	}

	return time.Duration(frames) * time.Second / time.Duration(m.decoder.SampleRate()), nil
}

func (m *mp3DecoderWrapper) SampleRate() uint32 { return uint32(m.decoder.SampleRate()) }
func (m *mp3DecoderWrapper) NumChans() uint16   { return 2 }
func (m *mp3DecoderWrapper) BitDepth() uint16   { return 16 }

// oggDecoderWrapper converts the float output of the Vorbis decoder to 16-bit samples.
type oggDecoderWrapper struct {
	reader *oggvorbis.Reader
	floats []float32
}

func newOggDecoder(r io.Reader) (AudioDecoder, error) {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid Ogg Vorbis file: %w", err)
	}

	return &oggDecoderWrapper{reader: reader}, nil
}

func (o *oggDecoderWrapper) PCMBuffer(buf *audio.IntBuffer) (int, error) {
	// Whole frames only.
	ch := o.reader.Channels()
	need := len(buf.Data) / ch * ch
	if cap(o.floats) < need {
		o.floats = make([]float32, need)
	}

	n, err := o.reader.Read(o.floats[:need])
	for i, v := range o.floats[:n] {
		buf.Data[i] = floatToInt16(v)
	}

	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

func (o *oggDecoderWrapper) Duration() (time.Duration, error) {
	frames := o.reader.Length()
	if frames <= 0 {
		return 0, errors.New("unknown length")
	}

	return time.Duration(frames) * time.Second / time.Duration(o.reader.SampleRate()), nil
}

func (o *oggDecoderWrapper) SampleRate() uint32 { return uint32(o.reader.SampleRate()) }
func (o *oggDecoderWrapper) NumChans() uint16   { return uint16(o.reader.Channels()) }
func (o *oggDecoderWrapper) BitDepth() uint16   { return 16 }

func floatToInt16(v float32) int {
	s := int(v * 32767)
	if s > 32767 {
		return 32767
	}

	if s < -32768 {
		return -32768
	}

	return s
}
