package dngpatch

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
)

// memFile is a growable in-memory container.
type memFile struct {
	b []byte
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.b)) {
		return 0, io.EOF
	}
	n := copy(p, m.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > int64(len(m.b)) {
		m.b = append(m.b, make([]byte, end-int64(len(m.b)))...)
	}
	return copy(m.b[off:], p), nil
}

func (m *memFile) size() int64 {
	return int64(len(m.b))
}

// tag is an entry for the test builder. RATIONAL values are given as
// numerator/denominator pairs.
type tag struct {
	id, typ uint16
	vals    []uint32
}

func short(id uint16, vals ...uint32) tag { return tag{id, dtShort, vals} }
func long(id uint16, vals ...uint32) tag  { return tag{id, dtLong, vals} }

func (t tag) count() uint32 {
	if t.typ == dtRational || t.typ == dtSRational {
		return uint32(len(t.vals) / 2)
	}
	return uint32(len(t.vals))
}

func (t tag) encode(order binary.ByteOrder) []byte {
	var p []byte
	for _, v := range t.vals {
		switch t.typ {
		case dtByte, dtASCII, dtUndefined, dtSByte:
			p = append(p, byte(v))
		case dtShort, dtSShort:
			var q [2]byte
			order.PutUint16(q[:], uint16(v))
			p = append(p, q[:]...)
		default:
			var q [4]byte
			order.PutUint32(q[:], v)
			p = append(p, q[:]...)
		}
	}
	return p
}

// builder lays out a container front to back: header, then whatever
// data and IFDs are added, in order.
type builder struct {
	order binary.ByteOrder
	buf   []byte
}

func newBuilder(order binary.ByteOrder) *builder {
	b := &builder{order: order, buf: make([]byte, headerLen)}
	Header{ByteOrder: order, FirstIFD: 0}.put(b.buf)
	return b
}

func (b *builder) align() {
	if len(b.buf)&1 == 1 {
		b.buf = append(b.buf, 0)
	}
}

func (b *builder) data(p []byte) uint32 {
	b.align()
	off := uint32(len(b.buf))
	b.buf = append(b.buf, p...)
	return off
}

func (b *builder) ifd(tags []tag, next uint32) uint32 {
	fields := make([][4]byte, len(tags))
	for i, t := range tags {
		p := t.encode(b.order)
		if len(p) <= inlineLen {
			copy(fields[i][:], p)
		} else {
			b.order.PutUint32(fields[i][:], b.data(p))
		}
	}
	b.align()
	off := uint32(len(b.buf))
	p := make([]byte, countLen+ifdLen*len(tags)+nextLen)
	b.order.PutUint16(p, uint16(len(tags)))
	for i, t := range tags {
		q := p[countLen+i*ifdLen:]
		b.order.PutUint16(q[0:2], t.id)
		b.order.PutUint16(q[2:4], t.typ)
		b.order.PutUint32(q[4:8], t.count())
		copy(q[8:12], fields[i][:])
	}
	b.order.PutUint32(p[len(p)-nextLen:], next)
	b.buf = append(b.buf, p...)
	return off
}

func (b *builder) first(off uint32) {
	b.order.PutUint32(b.buf[4:8], off)
}

func (b *builder) file() *memFile {
	return &memFile{b: append([]byte(nil), b.buf...)}
}

// rawTags returns the tags of an uncompressed single-strip raw plane.
func rawTags(w, h, bits int, strip, size uint32) []tag {
	return []tag{
		long(tImageWidth, uint32(w)),
		long(tImageLength, uint32(h)),
		short(tBitsPerSample, uint32(bits)),
		short(tCompression, cNone),
		short(tPhotometricInterpretation, pCFA),
		long(tStripOffsets, strip),
		short(tSamplesPerPixel, 1),
		long(tRowsPerStrip, uint32(h)),
		long(tStripByteCounts, size),
	}
}

// ramp returns a w×h buffer whose samples count up modulo mod.
func ramp(w, h int, mod uint16) *PixelBuffer {
	buf := NewPixelBuffer(w, h)
	for i := range buf.Pix {
		buf.Pix[i] = uint16(i*37) % mod
	}
	return buf
}

func testLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

func readBack(t *testing.T, r io.ReaderAt, off int64) *IFD {
	t.Helper()
	h, err := ReadHeader(r)
	if err != nil {
		t.Fatal(err)
	}
	d, err := ReadIFD(r, h.ByteOrder, off, 0)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
