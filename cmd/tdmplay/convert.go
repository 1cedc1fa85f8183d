package main

// convertFrames maps interleaved decoder samples onto the channel count and
// sample width of a playback adapter. A mono adapter receives the average of
// all source channels; extra adapter channels repeat the source channels.
// It returns the number of frames written to dst.
func convertFrames(src []int, srcChans, srcBits int, dst []int32, dstChans, dstBits int) int {
	frames := len(src) / srcChans
	if limit := len(dst) / dstChans; frames > limit {
		frames = limit
	}

	for f := 0; f < frames; f++ {
		in := src[f*srcChans : (f+1)*srcChans]
		out := dst[f*dstChans : (f+1)*dstChans]

		if dstChans == 1 && srcChans > 1 {
			sum := 0
			for _, v := range in {
				sum += v
			}

			out[0] = rescale(sum/srcChans, srcBits, dstBits)

			continue
		}

		for c := range out {
			out[c] = rescale(in[c%srcChans], srcBits, dstBits)
		}
	}

	return frames
}

func rescale(v, from, to int) int32 {
	switch {
	case to > from:
		return int32(v << (to - from))
	case to < from:
		return int32(v >> (from - to))
	default:
		return int32(v)
	}
}
