//go:build linux

package pcm

// Hardware parameter indices (SNDRV_PCM_HW_PARAM_*).
const (
	paramAccess     = 0
	paramFormat     = 1
	paramSubformat  = 2
	paramSampleBits = 8
	paramChannels   = 10
	paramRate       = 11
	paramPeriodSize = 13
	paramPeriods    = 15
	paramTickTime   = 19
)

const (
	accessRWInterleaved = 3
	intervalInteger     = 1 << 2
)

type mask struct {
	Bits [8]uint32
}

type interval struct {
	MinVal uint32
	MaxVal uint32
	Flags  uint32
}

// pcmInfo mirrors struct snd_pcm_info.
type pcmInfo struct {
	Device          uint32
	Subdevice       uint32
	Stream          int32
	Card            int32
	ID              [64]byte
	Name            [80]byte
	Subname         [32]byte
	DevClass        int32
	DevSubclass     int32
	SubdevicesCount uint32
	SubdevicesAvail uint32
	Sync            [16]byte
	Reserved        [64]byte
}

// hwParams mirrors struct snd_pcm_hw_params.
type hwParams struct {
	Flags     uint32
	Masks     [3]mask
	Mres      [5]mask
	Intervals [12]interval
	Ires      [9]interval
	Rmask     uint32
	Cmask     uint32
	Info      uint32
	Msbits    uint32
	RateNum   uint32
	RateDen   uint32
	FifoSize  uframes
	Reserved  [64]byte
}

// init opens every mask and interval so the driver can refine them.
func (p *hwParams) init() {
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Intervals {
		p.Intervals[n] = interval{MaxVal: ^uint32(0)}
	}

	for n := range p.Ires {
		p.Ires[n] = interval{MaxVal: ^uint32(0)}
	}

	p.Rmask = ^uint32(0)
	p.Info = ^uint32(0)
}

func (p *hwParams) setMask(param int, bit uint32) {
	if param < paramAccess || param > paramSubformat || bit >= 256 {
		return
	}

	m := &p.Masks[param-paramAccess]
	for i := range m.Bits {
		m.Bits[i] = 0
	}

	m.Bits[bit>>5] |= 1 << (bit & 31)
}

func (p *hwParams) setInt(param int, val uint32) {
	if param < paramSampleBits || param > paramTickTime {
		return
	}

	p.Intervals[param-paramSampleBits] = interval{MinVal: val, MaxVal: val, Flags: intervalInteger}
}

func (p *hwParams) setMin(param int, val uint32) {
	if param < paramSampleBits || param > paramTickTime {
		return
	}

	p.Intervals[param-paramSampleBits].MinVal = val
}

// getInt reads back a value the driver narrowed to a single point.
func (p *hwParams) getInt(param int) uint32 {
	if param < paramSampleBits || param > paramTickTime {
		return 0
	}

	return p.Intervals[param-paramSampleBits].MinVal
}
