package pcm

import (
	"encoding/binary"
	"fmt"
)

// Decode converts little-endian samples in src to signed integers in dst,
// right-aligned at width bits. A sample whose container is wider than width
// carries the value in its most significant bits, as an I2S slot does; S24_LE
// carries it in the low 24 bits of the container. It returns the number of
// samples decoded.
func Decode(f Format, width uint32, src []byte, dst []int32) (int, error) {
	size := int(f.Bits() / 8)
	if size == 0 {
		return 0, fmt.Errorf("unsupported format %s", f)
	}

	n := min(len(src)/size, len(dst))
	shift := containerShift(f, width)

	for i := 0; i < n; i++ {
		b := src[i*size:]

		var v int32
		switch f {
		case FormatS8:
			v = int32(int8(b[0]))
		case FormatS16LE:
			v = int32(int16(binary.LittleEndian.Uint16(b)))
		case FormatS24LE:
			v = int32(binary.LittleEndian.Uint32(b)<<8) >> 8
		case FormatS24Packed:
			v = int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
		case FormatS32LE:
			v = int32(binary.LittleEndian.Uint32(b))
		}

		dst[i] = v >> shift
	}

	return n, nil
}

// Encode is the inverse of Decode. It returns the number of samples encoded.
func Encode(f Format, width uint32, src []int32, dst []byte) (int, error) {
	size := int(f.Bits() / 8)
	if size == 0 {
		return 0, fmt.Errorf("unsupported format %s", f)
	}

	n := min(len(dst)/size, len(src))
	shift := containerShift(f, width)

	for i := 0; i < n; i++ {
		b := dst[i*size:]
		v := src[i] << shift

		switch f {
		case FormatS8:
			b[0] = byte(v)
		case FormatS16LE:
			binary.LittleEndian.PutUint16(b, uint16(v))
		case FormatS24LE:
			binary.LittleEndian.PutUint32(b, uint32(v)&0x00ffffff)
		case FormatS24Packed:
			b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
		case FormatS32LE:
			binary.LittleEndian.PutUint32(b, uint32(v))
		}
	}

	return n, nil
}

// containerShift is the distance between the container's value width and a slot width.
func containerShift(f Format, width uint32) uint32 {
	valueBits := f.Bits()
	if f == FormatS24LE {
		valueBits = 24
	}

	if width == 0 || width >= valueBits {
		return 0
	}

	return valueBits - width
}
