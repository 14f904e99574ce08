package dngpatch

import "encoding/binary"

const max14 = 1<<14 - 1

// Encode16 serializes samples as 2 bytes each in the given byte order.
func Encode16(samples []uint16, order binary.ByteOrder) []byte {
	p := make([]byte, 2*len(samples))
	for i, s := range samples {
		order.PutUint16(p[2*i:], s)
	}
	return p
}

// Decode16 is the inverse of Encode16. It decodes n samples from p.
func Decode16(p []byte, order binary.ByteOrder, n int) ([]uint16, error) {
	if len(p) < 2*n {
		return nil, FormatError("short 16-bit sample data")
	}
	s := make([]uint16, n)
	for i := range s {
		s[i] = order.Uint16(p[2*i:])
	}
	return s, nil
}

// Packed14Len returns the size of n samples packed at 14 bits.
func Packed14Len(n int) int {
	return (n + 3) / 4 * 7
}

// Pack14 clamps samples to 14 bits and packs every four of them into
// seven bytes, most significant bits first. A short final group is
// padded with zero samples.
//
// The layout is the inverse of Unpack14; changing one requires changing
// the other.
func Pack14(samples []uint16) []byte {
	p := make([]byte, Packed14Len(len(samples)))
	var g [4]uint16
	for i, o := 0, 0; i < len(samples); i, o = i+4, o+7 {
		for j := range g {
			g[j] = 0
			if i+j < len(samples) {
				g[j] = samples[i+j]
				if g[j] > max14 {
					g[j] = max14
				}
			}
		}
		p[o+0] = byte(g[0] >> 6)
		p[o+1] = byte(g[0]&0x3f)<<2 | byte(g[1]>>12)&0x03
		p[o+2] = byte(g[1] >> 4)
		p[o+3] = byte(g[1]&0x0f)<<4 | byte(g[2]>>10)&0x0f
		p[o+4] = byte(g[2] >> 2)
		p[o+5] = byte(g[2]&0x03)<<6 | byte(g[3]>>8)&0x3f
		p[o+6] = byte(g[3])
	}
	return p
}

// Unpack14 decodes n samples packed by Pack14.
func Unpack14(p []byte, n int) ([]uint16, error) {
	if len(p) < Packed14Len(n) {
		return nil, FormatError("short 14-bit packed data")
	}
	s := make([]uint16, Packed14Len(n)/7*4)
	for i, o := 0, 0; i < len(s); i, o = i+4, o+7 {
		b := p[o : o+7]
		s[i+0] = uint16(b[0])<<6 | uint16(b[1])>>2
		s[i+1] = uint16(b[1]&0x03)<<12 | uint16(b[2])<<4 | uint16(b[3])>>4
		s[i+2] = uint16(b[3]&0x0f)<<10 | uint16(b[4])<<2 | uint16(b[5])>>6
		s[i+3] = uint16(b[5]&0x3f)<<8 | uint16(b[6])
	}
	return s[:n], nil
}

// EncodeSamples encodes samples for a raw plane declaring bits per
// sample. It returns the payload and the bit depth actually used. Depths
// other than 14 and 16 are written as 16-bit and reported with a non-nil
// warning of type *UnsupportedBitDepthError.
func EncodeSamples(samples []uint16, bits int, order binary.ByteOrder) (payload []byte, encoded int, warning error) {
	switch bits {
	case 14:
		return Pack14(samples), 14, nil
	case 16:
		return Encode16(samples, order), 16, nil
	}
	return Encode16(samples, order), 16, &UnsupportedBitDepthError{Bits: bits}
}

// DecodeSamples is the reading counterpart of EncodeSamples, with 8-bit
// planes added for decoding.
func DecodeSamples(p []byte, bits, n int, order binary.ByteOrder) ([]uint16, error) {
	switch bits {
	case 8:
		if len(p) < n {
			return nil, FormatError("short 8-bit sample data")
		}
		s := make([]uint16, n)
		for i := range s {
			s[i] = uint16(p[i])
		}
		return s, nil
	case 14:
		return Unpack14(p, n)
	case 16:
		return Decode16(p, order, n)
	}
	return nil, UnsupportedError("bit depth")
}
