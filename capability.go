package tdm

import (
	"slices"
	"sort"
)

// Variant identifies a hardware variant of the audio peripheral.
type Variant string

const (
	VariantESP32   Variant = "esp32"
	VariantESP32S2 Variant = "esp32s2"
	VariantESP32S3 Variant = "esp32s3"
	VariantESP32C3 Variant = "esp32c3"
	VariantESP32C5 Variant = "esp32c5"
	VariantESP32C6 Variant = "esp32c6"
	VariantESP32H2 Variant = "esp32h2"
	VariantESP32P4 Variant = "esp32p4"
)

// Capability describes what one hardware variant offers.
type Capability struct {
	Variant       Variant
	MaxPorts      int
	TDMSupported  bool
	MaxSlots      int // 16 with TDM, 2 (left/right) without
	MclkMultiples []MclkMultiple
}

// SupportsMclk reports whether the variant's clock tree can generate multiple m.
func (c Capability) SupportsMclk(m MclkMultiple) bool {
	return slices.Contains(c.MclkMultiples, m)
}

var standardMclk = []MclkMultiple{Mclk128, Mclk256, Mclk384, Mclk512}

// Port counts follow SOC_I2S_NUM of each variant.
var capabilities = map[Variant]Capability{
	VariantESP32:   {Variant: VariantESP32, MaxPorts: 2, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32S2: {Variant: VariantESP32S2, MaxPorts: 1, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32S3: {Variant: VariantESP32S3, MaxPorts: 2, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32C3: {Variant: VariantESP32C3, MaxPorts: 1, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32C5: {Variant: VariantESP32C5, MaxPorts: 1, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32C6: {Variant: VariantESP32C6, MaxPorts: 1, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32H2: {Variant: VariantESP32H2, MaxPorts: 1, MaxSlots: 2, MclkMultiples: standardMclk},
	VariantESP32P4: {Variant: VariantESP32P4, MaxPorts: 3, TDMSupported: true, MaxSlots: MaxSlots, MclkMultiples: standardMclk},
}

// LookupCapability returns the capability entry for v.
func LookupCapability(v Variant) (Capability, bool) {
	c, ok := capabilities[v]
	if !ok {
		return Capability{}, false
	}

	c.MclkMultiples = slices.Clone(c.MclkMultiples)

	return c, true
}

// Variants lists the known variants in name order.
func Variants() []Variant {
	out := make([]Variant, 0, len(capabilities))
	for v := range capabilities {
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
