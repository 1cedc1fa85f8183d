package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-audio/audio"

	"github.com/gen2brain/tdm"
	"github.com/gen2brain/tdm/cmd/internal/board"
)

func main() {
	var (
		boardPath string
		adapterID string
		verbose   bool
	)

	flag.StringVar(&boardPath, "board", "board.yaml", "The board file describing ports and adapters")
	flag.StringVar(&adapterID, "adapter", "", "The playback adapter to feed (default: the first one)")
	flag.BoolVar(&verbose, "verbose", false, "Log port and adapter events")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <wav|aiff|mp3|ogg-file>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nOptions:")
		for _, name := range []string{"board", "adapter", "verbose"} {
			f := flag.Lookup(name)
			if f != nil {
				fmt.Fprintf(os.Stderr, "  --%s\n    \t%v (default %q)\n", f.Name, f.Usage, f.DefValue)
			}
		}
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	if verbose {
		tdm.SetLogLevel(slog.LevelDebug)
	}

	audioPath := flag.Arg(0)
	audioFile, err := os.Open(audioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio file: %v\n", err)
		os.Exit(1)
	}
	defer audioFile.Close()

	decoder, err := openDecoder(audioPath, audioFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	bf, err := board.Load(boardPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading board: %v\n", err)
		os.Exit(1)
	}

	desc, err := bf.Descriptor()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error in board file: %v\n", err)
		os.Exit(1)
	}

	reg, err := tdm.NewRegistry(desc.Variant, tdm.NewALSADriver(bf.Endpoints()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating registry: %v\n", err)
		os.Exit(1)
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := reg.Build(ctx, desc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error bringing up board: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	spk, err := pickPlayback(b, desc, adapterID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	f := spk.Format()
	if decoder.SampleRate() != f.SampleRate {
		fmt.Fprintf(os.Stderr, "Error: file is %d Hz but adapter %q runs at %d Hz, resampling is not supported\n",
			decoder.SampleRate(), spk.ID(), f.SampleRate)
		os.Exit(1)
	}

	fmt.Printf("Playing: %s\n", audioPath)
	fmt.Printf("Source: %d channels, %d Hz, %d bits\n", decoder.NumChans(), decoder.SampleRate(), decoder.BitDepth())
	fmt.Printf("Adapter %q on port %d, slots %s, %d channels, %d bits\n",
		spk.ID(), spk.Port().Index(), spk.Claim().Slots, spk.Channels(), f.BitsPerSample)

	if d, err := decoder.Duration(); err == nil {
		fmt.Printf("Duration: %v\n", d.Round(time.Millisecond))
	}

	startTime := time.Now()

	if err := play(ctx, decoder, spk); err != nil {
		fmt.Fprintf(os.Stderr, "Error during playback: %v\n", err)
	}

	fmt.Printf("Playback finished in %v. (%d frames sent, %d underruns, %d overruns)\n",
		time.Since(startTime).Round(time.Millisecond), spk.Sent(), spk.Underruns(), spk.Overruns())
}

// play feeds the adapter in chunks of 20 ms, keeping at most two chunks
// queued, then waits for the queue to drain.
func play(ctx context.Context, decoder AudioDecoder, spk *tdm.PlaybackAdapter) error {
	srcChans := int(decoder.NumChans())
	chunkFrames := int(decoder.SampleRate()) / 50

	in := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: srcChans, SampleRate: int(decoder.SampleRate())},
		Data:   make([]int, chunkFrames*srcChans),
	}
	out := make([]int32, chunkFrames*spk.Channels())

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	wait := func(cond func() bool) error {
		for !cond() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		return nil
	}

	for {
		n, err := decoder.PCMBuffer(in)
		if n > 0 {
			frames := convertFrames(in.Data[:n], srcChans, int(decoder.BitDepth()), out, spk.Channels(), int(spk.Format().BitsPerSample))

			if werr := wait(func() bool { return spk.Queued() < chunkFrames }); werr != nil {
				return werr
			}

			spk.WriteFrames(out[:frames*spk.Channels()])
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return err
		}
	}

	return wait(func() bool { return spk.Queued() == 0 })
}

// pickPlayback returns the named playback adapter, or the first one in board order.
func pickPlayback(b *tdm.Board, desc tdm.Descriptor, id string) (*tdm.PlaybackAdapter, error) {
	if id != "" {
		a, ok := b.Playbacks[id]
		if !ok {
			return nil, fmt.Errorf("no playback adapter %q", id)
		}

		return a, nil
	}

	for _, pd := range desc.Ports {
		for _, ad := range pd.Adapters {
			if ad.Direction == tdm.DirectionPlayback {
				return b.Playbacks[ad.ID], nil
			}
		}
	}

	return nil, fmt.Errorf("board has no playback adapter")
}
