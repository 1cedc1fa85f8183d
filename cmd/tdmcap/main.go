package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/tdm"
	"github.com/gen2brain/tdm/cmd/internal/board"
)

func main() {
	var (
		boardPath string
		adapterID string
		duration  int
		noDC      bool
		verbose   bool
	)

	flag.StringVar(&boardPath, "board", "board.yaml", "The board file describing ports and adapters")
	flag.StringVar(&adapterID, "adapter", "", "The capture adapter to record (default: the first one)")
	flag.IntVar(&duration, "duration", 5, "The duration of the capture in seconds")
	flag.BoolVar(&noDC, "no-dc", false, "Disable DC offset correction on the recorded adapter")
	flag.BoolVar(&verbose, "verbose", false, "Log port and adapter events")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <output-wav-file>\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nOptions:")
		for _, name := range []string{"board", "adapter", "duration", "no-dc", "verbose"} {
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

	outputPath := flag.Arg(0)

	if verbose {
		tdm.SetLogLevel(slog.LevelDebug)
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

	mic, err := pickCapture(b, desc, adapterID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if noDC {
		mic.SetCorrectionEnabled(false)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	rec, err := tdm.NewRecorder(file, mic, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating recorder: %v\n", err)
		os.Exit(1)
	}

	f := mic.Format()
	fmt.Printf("Recording adapter %q from port %d, slots %s\n", mic.ID(), mic.Port().Index(), mic.Claim().Slots)
	fmt.Printf("Format: %d channels, %d Hz, %d bits, dc correction %v\n", mic.Channels(), f.SampleRate, f.BitsPerSample, mic.CorrectionEnabled())
	fmt.Printf("Capturing for %d seconds... Press Ctrl+C to stop.\n", duration)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(duration)*time.Second)
	defer cancel()

	startTime := time.Now()

	if err := rec.Run(ctx, 20*time.Millisecond); err != nil {
		fmt.Fprintf(os.Stderr, "Error recording: %v\n", err)
	}

	if err := rec.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error finalizing WAV file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Capture finished in %v. (%d frames, %d overruns)\n", time.Since(startTime).Round(time.Millisecond), rec.Frames(), mic.Overruns())
}

// pickCapture returns the named capture adapter, or the first one in board order.
func pickCapture(b *tdm.Board, desc tdm.Descriptor, id string) (*tdm.CaptureAdapter, error) {
	if id != "" {
		c, ok := b.Captures[id]
		if !ok {
			return nil, fmt.Errorf("no capture adapter %q", id)
		}

		return c, nil
	}

	for _, pd := range desc.Ports {
		for _, ad := range pd.Adapters {
			if ad.Direction == tdm.DirectionCapture {
				return b.Captures[ad.ID], nil
			}
		}
	}

	return nil, fmt.Errorf("board has no capture adapter")
}
