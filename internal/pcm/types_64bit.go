//go:build linux && (amd64 || arm64)

package pcm

// uframes is snd_pcm_uframes_t, an unsigned long.
type uframes = uint64

// xferi is struct snd_xferi for interleaved transfers.
type xferi struct {
	Result int
	Buf    uintptr
	Frames uframes
}

// swParams mirrors struct snd_pcm_sw_params on 64-bit kernels.
type swParams struct {
	TstampMode       uint32
	PeriodStep       uint32
	SleepMin         uint32
	_                [4]byte
	AvailMin         uframes
	XferAlign        uframes
	StartThreshold   uframes
	StopThreshold    uframes
	SilenceThreshold uframes
	SilenceSize      uframes
	Boundary         uframes
	Reserved         [64]byte
}
