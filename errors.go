package dngpatch

import (
	"errors"
	"fmt"
)

// A FormatError reports that the input is not a valid TIFF/DNG container.
type FormatError string

func (e FormatError) Error() string {
	return "dngpatch: invalid format: " + string(e)
}

// An UnsupportedError reports that the input uses a valid but
// unimplemented feature.
type UnsupportedError string

func (e UnsupportedError) Error() string {
	return "dngpatch: unsupported feature: " + string(e)
}

// ErrNoUsableRawIFD means that no IFD holds a writable raw plane and that
// a new SubIFD could not be synthesized either.
var ErrNoUsableRawIFD = errors.New("dngpatch: no usable raw IFD")

// Shape is the width and height of a raw plane in samples.
type Shape struct {
	Width, Height int
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Pixels returns the number of samples in a plane of this shape.
func (s Shape) Pixels() int {
	return s.Width * s.Height
}

// A DimensionMismatchError reports that a pixel buffer does not have the
// shape of the raw plane it should replace.
type DimensionMismatchError struct {
	Got, Want Shape
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dngpatch: dimension mismatch: buffer is %v, container declares %v", e.Got, e.Want)
}

// A MissingTagError reports that the selected IFD lacks a required tag.
type MissingTagError struct {
	Tag uint16
}

func (e *MissingTagError) Error() string {
	return fmt.Sprintf("dngpatch: missing tag %d (%s)", e.Tag, tagName(e.Tag))
}

// An UnsupportedBitDepthError is a warning: the raw plane declares a bit
// depth the codec cannot reproduce, so samples were written as 16-bit.
type UnsupportedBitDepthError struct {
	Bits int
}

func (e *UnsupportedBitDepthError) Error() string {
	return fmt.Sprintf("dngpatch: unsupported bit depth %d, encoding as 16-bit", e.Bits)
}

func tagName(tag uint16) string {
	switch tag {
	case tImageWidth:
		return "ImageWidth"
	case tImageLength:
		return "ImageLength"
	case tBitsPerSample:
		return "BitsPerSample"
	case tCompression:
		return "Compression"
	case tStripOffsets:
		return "StripOffsets"
	case tSamplesPerPixel:
		return "SamplesPerPixel"
	case tRowsPerStrip:
		return "RowsPerStrip"
	case tStripByteCounts:
		return "StripByteCounts"
	case tSubIFDs:
		return "SubIFDs"
	}
	return "unknown"
}
