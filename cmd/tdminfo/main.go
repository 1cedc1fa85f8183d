package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gen2brain/tdm"
	"github.com/gen2brain/tdm/cmd/internal/board"
)

func main() {
	var (
		boardPath string
		variant   string
	)

	flag.StringVar(&boardPath, "board", "", "A board file to validate and describe.")
	flag.StringVar(&variant, "variant", "", "Only show the capabilities of this variant.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Displays the capability table, or brings up a board file on a")
		fmt.Fprintln(os.Stderr, "loopback driver and prints the resulting port geometry.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
	}

	flag.Parse()

	if boardPath == "" {
		if err := printCapabilities(variant); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	if err := describeBoard(boardPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if kind := tdm.ErrorKindOf(err); kind != 0 {
			fmt.Fprintf(os.Stderr, "Kind: %s\n", kind)
		}
		os.Exit(1)
	}
}

func printCapabilities(only string) error {
	variants := tdm.Variants()
	if only != "" {
		variants = []tdm.Variant{tdm.Variant(strings.ToLower(only))}
	}

	fmt.Printf("%-10s %-6s %-5s %-6s %s\n", "Variant", "Ports", "TDM", "Slots", "MCLK multiples")

	for _, v := range variants {
		c, ok := tdm.LookupCapability(v)
		if !ok {
			return fmt.Errorf("unknown variant %q", v)
		}

		mclk := make([]string, len(c.MclkMultiples))
		for i, m := range c.MclkMultiples {
			mclk[i] = fmt.Sprint(m)
		}

		fmt.Printf("%-10s %-6d %-5v %-6d %s\n", c.Variant, c.MaxPorts, c.TDMSupported, c.MaxSlots, strings.Join(mclk, ","))
	}

	return nil
}

// describeBoard runs a full bring-up on a loopback driver so that every
// configuration rule is checked without touching hardware.
func describeBoard(path string) error {
	bf, err := board.Load(path)
	if err != nil {
		return err
	}

	desc, err := bf.Descriptor()
	if err != nil {
		return err
	}

	drv := tdm.NewLoopbackDriver()

	reg, err := tdm.NewRegistry(desc.Variant, drv)
	if err != nil {
		return err
	}
	defer reg.Close()

	b, err := reg.Build(context.Background(), desc)
	if err != nil {
		return err
	}
	defer b.Close()

	eps := bf.Endpoints()

	fmt.Printf("Board:              %s\n", path)
	fmt.Printf("Variant:            %s\n", desc.Variant)

	for _, p := range b.Ports {
		g := p.Geometry()
		regs := drv.Channel(p.Index()).Registers()

		fmt.Printf("\nPort %d (%s)\n", p.Index(), p.State())
		fmt.Printf("  Clock role:       %s\n", g.Role)
		fmt.Printf("  Sample rate:      %d Hz\n", g.SampleRate)
		fmt.Printf("  Slot width:       %d bits\n", g.SlotBits)
		fmt.Printf("  Slots:            %s (%d per frame)\n", g.Mask, g.Slots)
		fmt.Printf("  BCLK:             %d Hz\n", g.BCLK())
		fmt.Printf("  MCLK:             %d Hz (x%d, apll %v)\n", g.MCLK(), g.MclkMultiple, g.UseAPLL)
		fmt.Printf("  Registers:        role=%d mask=%#04x width=%d mode=%d mclk=%d src=%d\n",
			regs.Role, regs.SlotMask, regs.SlotWidth, regs.SlotMode, regs.Mclk, regs.ClockSource)

		if ep, ok := eps[p.Index()]; ok {
			fmt.Printf("  ALSA:             card %d, capture %s, playback %s\n", ep.Card, deviceName(ep.CaptureDevice), deviceName(ep.PlaybackDevice))
		}

		for _, c := range p.Arbiter().Claims() {
			fmt.Printf("  Adapter %-10q %s%s\n", c.AdapterID, c.Slots, sharedSuffix(c.Shared))
		}
	}

	return nil
}

func deviceName(d int) string {
	if d == tdm.NoDevice {
		return "none"
	}

	return fmt.Sprint(d)
}

func sharedSuffix(shared bool) string {
	if shared {
		return " (shared)"
	}

	return ""
}
