package dngpatch

import (
	"io"
	"os"
)

// RawDecoder decodes uncompressed raw planes of 8, 14 or 16 bits per
// sample. It implements Decoder.
type RawDecoder struct {
	// MaxEntries bounds the entry count of a trustworthy IFD. Zero
	// means the default.
	MaxEntries int
}

// Decode decodes the raw plane of the container at path.
func (d RawDecoder) Decode(path string) (*PixelBuffer, Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Shape{}, err
	}
	defer f.Close()
	buf, err := d.DecodeFrom(f)
	if err != nil {
		return nil, Shape{}, err
	}
	return buf, buf.Shape(), nil
}

// DecodeFrom decodes the raw plane of the container in r.
func (d RawDecoder) DecodeFrom(r io.ReaderAt) (*PixelBuffer, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	main, err := ReadIFD(r, h.ByteOrder, int64(h.FirstIFD), d.MaxEntries)
	if err != nil {
		return nil, err
	}
	plane := d.rawPlane(r, main)
	if plane == nil {
		return nil, ErrNoUsableRawIFD
	}
	return decodePlane(r, plane)
}

// rawPlane returns the first SubIFD, then the main IFD, holding one
// sample per pixel in strips.
func (d RawDecoder) rawPlane(r io.ReaderAt, main *IFD) *IFD {
	var candidates []*IFD
	for _, off := range main.Uint(tSubIFDs) {
		if off == 0 {
			continue
		}
		sub, err := ReadIFD(r, main.ByteOrder(), int64(off), d.MaxEntries)
		if err != nil {
			continue
		}
		candidates = append(candidates, sub)
	}
	candidates = append(candidates, main)
	for _, c := range candidates {
		if samplesPerPixel(c) == 1 && c.Has(tStripOffsets) && c.Has(tStripByteCounts) &&
			c.First(tImageWidth) > 0 && c.First(tImageLength) > 0 {
			return c
		}
	}
	return nil
}

func decodePlane(r io.ReaderAt, d *IFD) (*PixelBuffer, error) {
	if c := d.First(tCompression); d.Has(tCompression) && c != cNone {
		return nil, UnsupportedError("compressed raw plane")
	}
	offsets := d.Uint(tStripOffsets)
	counts := d.Uint(tStripByteCounts)
	if len(offsets) != len(counts) {
		return nil, FormatError("StripOffsets and StripByteCounts differ in length")
	}
	var data []byte
	for i := range offsets {
		p, err := readFull(r, uint64(counts[i]), int64(offsets[i]), "strip")
		if err != nil {
			return nil, err
		}
		data = append(data, p...)
	}
	buf := &PixelBuffer{
		Width:  int(d.First(tImageWidth)),
		Height: int(d.First(tImageLength)),
	}
	bits := 1
	if d.Has(tBitsPerSample) {
		bits = int(d.First(tBitsPerSample))
	}
	pix, err := DecodeSamples(data, bits, buf.Width*buf.Height, d.ByteOrder())
	if err != nil {
		return nil, err
	}
	buf.Pix = pix
	return buf, nil
}
