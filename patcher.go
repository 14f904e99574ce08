package dngpatch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apex/log"
)

// PixelBuffer is a row-major plane of unsigned samples.
type PixelBuffer struct {
	Width, Height int
	Pix           []uint16
}

// NewPixelBuffer returns a zeroed buffer of the given shape.
func NewPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// Shape returns the buffer's dimensions.
func (b *PixelBuffer) Shape() Shape {
	return Shape{Width: b.Width, Height: b.Height}
}

// At returns the sample at column x, row y.
func (b *PixelBuffer) At(x, y int) uint16 {
	return b.Pix[y*b.Width+x]
}

func (b *PixelBuffer) valid() error {
	if b == nil || b.Width <= 0 || b.Height <= 0 {
		return errors.New("dngpatch: empty pixel buffer")
	}
	if len(b.Pix) != b.Width*b.Height {
		return fmt.Errorf("dngpatch: pixel buffer holds %d samples, want %d", len(b.Pix), b.Width*b.Height)
	}
	return nil
}

// Decoder decodes the raw plane of a container and reports the plane's
// declared shape.
type Decoder interface {
	Decode(path string) (*PixelBuffer, Shape, error)
}

// Patcher replaces the raw plane of DNG containers.
type Patcher struct {
	log         log.Interface
	rawFraction float64
	maxEntries  int
	decoder     Decoder
}

// Logger sets the logger. The default is log.Log.
func Logger(l log.Interface) func(*Patcher) {
	return func(p *Patcher) {
		p.log = l
	}
}

// RawFraction sets the share of the theoretical plane size a main IFD's
// strips must reach to be taken as the raw plane.
func RawFraction(f float64) func(*Patcher) {
	return func(p *Patcher) {
		if f <= 0 || f > 1 {
			panic("raw fraction must be in (0, 1]")
		}
		p.rawFraction = f
	}
}

// MaxEntries sets the entry count above which an IFD is not trusted.
func MaxEntries(n int) func(*Patcher) {
	return func(p *Patcher) {
		p.maxEntries = n
	}
}

// UseDecoder makes PatchFile validate the buffer against the shape d
// decodes from the original container.
func UseDecoder(d Decoder) func(*Patcher) {
	return func(p *Patcher) {
		p.decoder = d
	}
}

// NewPatcher returns a Patcher configured by opts.
func NewPatcher(opts ...func(*Patcher)) *Patcher {
	p := &Patcher{
		log:         log.Log,
		rawFraction: 0.8,
		maxEntries:  defaultMaxEntries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes a completed patch.
type Result struct {
	Strategy    string
	IFDOffset   int64 // the IFD now holding the raw plane
	StripOffset uint32
	ByteCount   uint32
	Bits        int
	Synthesized bool
	// Warnings holds non-fatal conditions, such as
	// *UnsupportedBitDepthError.
	Warnings []error
}

// Patch replaces the raw plane of the container in rw, which is size
// bytes long, with buf. If declared is not nil the buffer must have that
// shape. rw is modified in place: an error after writing has begun leaves
// it partially patched. Use PatchFile for an atomic replacement.
func (p *Patcher) Patch(rw ReadWriterAt, size int64, buf *PixelBuffer, declared *Shape) (*Result, error) {
	return p.patch(rw, rw, size, buf, declared)
}

// patch reads metadata to harvest from orig, which must hold the same
// bytes as rw before any write.
func (p *Patcher) patch(orig io.ReaderAt, rw ReadWriterAt, size int64, buf *PixelBuffer, declared *Shape) (*Result, error) {
	if err := buf.valid(); err != nil {
		return nil, err
	}
	if declared != nil && *declared != buf.Shape() {
		return nil, &DimensionMismatchError{Got: buf.Shape(), Want: *declared}
	}
	h, err := ReadHeader(rw)
	if err != nil {
		return nil, err
	}
	main, err := ReadIFD(rw, h.ByteOrder, int64(h.FirstIFD), p.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("dngpatch: main IFD: %w", err)
	}

	l := NewLocator(rw, len(buf.Pix), p.log)
	l.RawFraction = p.rawFraction
	l.MaxEntries = p.maxEntries
	plan, err := l.Locate(main)
	if err != nil {
		return nil, err
	}

	w := NewWriter(rw, h.ByteOrder, size, p.log)
	res := &Result{Strategy: plan.Strategy, Synthesized: plan.Synthesize}
	ctx := p.log.WithFields(log.Fields{
		"strategy": plan.Strategy,
		"shape":    buf.Shape().String(),
	})

	if plan.Synthesize {
		payload := Encode16(buf.Pix, h.ByteOrder)
		s := NewSynthesizer(orig, h, w, p.log)
		s.maxEntries = p.maxEntries
		sr, err := s.Synthesize(main, payload, buf.Shape())
		if err != nil {
			return nil, err
		}
		res.IFDOffset = int64(sr.IFDOffset)
		res.StripOffset = sr.StripOffset
		res.ByteCount = sr.ByteCount
		res.Bits = 16
		ctx.WithField("subifd", sr.IFDOffset).Info("patched")
		return res, nil
	}

	target := plan.Target
	if target.Has(tImageWidth) && target.Has(tImageLength) {
		want := Shape{Width: int(target.First(tImageWidth)), Height: int(target.First(tImageLength))}
		if want != buf.Shape() {
			return nil, &DimensionMismatchError{Got: buf.Shape(), Want: want}
		}
	}
	payload, bits, warning := EncodeSamples(buf.Pix, int(target.First(tBitsPerSample)), h.ByteOrder)
	if warning != nil {
		ctx.WithError(warning).Warn("bit depth")
		res.Warnings = append(res.Warnings, warning)
	}
	u, err := w.Patch(target, payload, bits, buf.Height)
	if err != nil {
		return nil, err
	}
	res.IFDOffset = target.Offset
	res.StripOffset = u.Offset
	res.ByteCount = u.ByteCount
	res.Bits = bits
	ctx.WithFields(log.Fields{
		"ifd":    target.Offset,
		"offset": u.Offset,
		"bytes":  u.ByteCount,
		"bits":   bits,
	}).Info("patched")
	return res, nil
}

// PatchFile writes a copy of the container at original to output with
// its raw plane replaced by buf. The copy is built in a temporary file in
// output's directory and renamed over output only once fully written, so
// a failure never leaves a partially patched output. output may equal
// original.
func (p *Patcher) PatchFile(original, output string, buf *PixelBuffer, declared *Shape) (res *Result, err error) {
	if declared == nil && p.decoder != nil {
		_, shape, derr := p.decoder.Decode(original)
		var unsupported UnsupportedError
		switch {
		case derr == nil:
			declared = &shape
		case errors.As(derr, &unsupported), errors.Is(derr, ErrNoUsableRawIFD):
			// Compressed planes and preview-only containers are
			// validated against the container instead.
			p.log.WithError(derr).Debug("original not decodable, validating against the container")
		default:
			return nil, fmt.Errorf("dngpatch: decode %s: %w", original, derr)
		}
	}

	src, err := os.Open(original)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	fi, err := src.Stat()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), ".dngpatch-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, src); err != nil {
		return nil, err
	}
	if res, err = p.patch(src, tmp, fi.Size(), buf, declared); err != nil {
		return nil, err
	}
	if err = tmp.Chmod(fi.Mode().Perm()); err != nil {
		return nil, err
	}
	if err = tmp.Sync(); err != nil {
		return nil, err
	}
	if err = tmp.Close(); err != nil {
		return nil, err
	}
	if err = os.Rename(tmp.Name(), output); err != nil {
		return nil, err
	}
	return res, nil
}
