package dngpatch

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestRawDecoderMultiStrip(t *testing.T) {
	const w, h = 4, 4
	buf := ramp(w, h, 3000)
	p := Encode16(buf.Pix, binary.BigEndian)
	b := newBuilder(binary.BigEndian)
	s0 := b.data(p[:16])
	s1 := b.data(p[16:])
	tags := rawTags(w, h, 16, 0, 0)
	tags[5] = long(tStripOffsets, s0, s1)
	tags[7] = long(tRowsPerStrip, 2)
	tags[8] = long(tStripByteCounts, 16, 16)
	main := b.ifd(tags, 0)
	b.first(main)
	f := b.file()

	got, err := RawDecoder{}.DecodeFrom(f)
	if err != nil {
		t.Fatal(err)
	}
	if !equalPix(got, buf) {
		t.Fatal(got.Pix)
	}

	// Patching collapses the plane to one strip.
	next := ramp(w, h, 77)
	res, err := NewPatcher().Patch(f, f.size(), next, nil)
	if err != nil {
		t.Fatal(err)
	}
	d := readBack(t, f, int64(main))
	if e := d.Entry(tStripOffsets); e.Count != 1 || !e.Inline() || d.First(tStripOffsets) != uint(res.StripOffset) {
		t.Fatal(d.Uint(tStripOffsets))
	}
	if v := d.Uint(tStripByteCounts); len(v) != 1 || v[0] != 32 {
		t.Fatal(v)
	}
	if d.First(tRowsPerStrip) != h {
		t.Fatal(d.First(tRowsPerStrip))
	}
	got, err = RawDecoder{}.DecodeFrom(f)
	if err != nil {
		t.Fatal(err)
	}
	if !equalPix(got, next) {
		t.Fatal(got.Pix)
	}
}

func TestPatchPromotesShortStrips(t *testing.T) {
	const w, h = 4, 2
	b := newBuilder(binary.LittleEndian)
	strip := b.data(make([]byte, 2*w*h))
	tags := rawTags(w, h, 16, 0, 0)
	tags[5] = short(tStripOffsets, strip)
	tags[8] = short(tStripByteCounts, 2*w*h)
	main := b.ifd(tags, 0)
	b.first(main)
	f := b.file()
	// Push the end of the container past what a SHORT can address.
	f.b = append(f.b, make([]byte, 70000)...)

	res, err := NewPatcher().Patch(f, f.size(), ramp(w, h, 100), nil)
	if err != nil {
		t.Fatal(err)
	}
	d := readBack(t, f, int64(main))
	e := d.Entry(tStripOffsets)
	if e.Type != dtLong || d.First(tStripOffsets) != uint(res.StripOffset) || res.StripOffset < 70000 {
		t.Fatal(e.Type, d.First(tStripOffsets))
	}
	if d.Entry(tStripByteCounts).Type != dtShort || d.First(tStripByteCounts) != 2*w*h {
		t.Fatal(d.Entry(tStripByteCounts).Type)
	}
}

func TestPatchMissingStripTag(t *testing.T) {
	b := newBuilder(binary.LittleEndian)
	off := b.ifd([]tag{long(tStripOffsets, 8)}, 0)
	b.first(off)
	f := b.file()
	size := f.size()
	d := readBack(t, f, int64(off))
	_, err := NewWriter(f, binary.LittleEndian, size, nil).Patch(d, make([]byte, 8), 16, 2)
	if mt, ok := err.(*MissingTagError); !ok || mt.Tag != tStripByteCounts {
		t.Fatalf("got %v, want MissingTagError", err)
	}
	if f.size() != size {
		t.Fatal("payload appended")
	}
}

func TestRawDecoderFile(t *testing.T) {
	f, _, _ := subIFDContainer(binary.LittleEndian, 5, 3, 14, cNone)
	buf := ramp(5, 3, 1<<14)
	if _, err := NewPatcher().Patch(f, f.size(), buf, nil); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "a.dng")
	if err := os.WriteFile(path, f.b, 0o644); err != nil {
		t.Fatal(err)
	}
	got, shape, err := RawDecoder{}.Decode(path)
	if err != nil {
		t.Fatal(err)
	}
	if shape != (Shape{5, 3}) || !equalPix(got, buf) {
		t.Fatal(shape, got.Pix)
	}
	if _, _, err := (RawDecoder{}).Decode(filepath.Join(t.TempDir(), "missing.dng")); err == nil {
		t.Fatal("missing file decoded")
	}
}

func TestRawDecoderNoPlane(t *testing.T) {
	f, _ := previewContainer(binary.LittleEndian, 4, 4)
	if _, err := (RawDecoder{}).DecodeFrom(f); err != ErrNoUsableRawIFD {
		t.Fatal(err)
	}
}

func TestPatchMissingBitsPerSample(t *testing.T) {
	const w, h = 4, 4
	b := newBuilder(binary.LittleEndian)
	strip := b.data(make([]byte, 2*w*h))
	tags := rawTags(w, h, 16, strip, 2*w*h)
	tags = append(tags[:2], tags[3:]...)
	sub := b.ifd(tags, 0)
	main := b.ifd([]tag{short(tSamplesPerPixel, 3), long(tSubIFDs, sub)}, 0)
	b.first(main)
	f := b.file()
	before := append([]byte(nil), f.b...)

	_, err := NewPatcher().Patch(f, f.size(), ramp(w, h, 100), nil)
	if mt, ok := err.(*MissingTagError); !ok || mt.Tag != tBitsPerSample {
		t.Fatalf("got %v, want MissingTagError", err)
	}
	if !bytes.Equal(before, f.b) {
		t.Fatal("container written")
	}
}
