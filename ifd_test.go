package dngpatch

import (
	"encoding/binary"
	"testing"
)

func TestReadIFD(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		b := newBuilder(order)
		off := b.ifd([]tag{
			long(tImageWidth, 4000),
			short(tBitsPerSample, 8, 8, 8),
			{tXResolution, dtRational, []uint32{300, 1}},
			long(tStripOffsets, 100, 200, 300),
		}, 77)
		b.first(off)
		f := b.file()

		d := readBack(t, f, int64(off))
		if len(d.Entries) != 4 || d.Next != 77 || d.Offset != int64(off) {
			t.Fatal(len(d.Entries), d.Next, d.Offset)
		}
		if d.First(tImageWidth) != 4000 {
			t.Fatal(d.First(tImageWidth))
		}
		if v := d.Uint(tBitsPerSample); len(v) != 3 || v[2] != 8 {
			t.Fatal(v)
		}
		if d.Sum(tStripOffsets) != 600 {
			t.Fatal(d.Sum(tStripOffsets))
		}
		if d.Uint(tXResolution) != nil {
			t.Fatal("rational decoded as integer")
		}
		if d.Has(tCompression) || d.First(tCompression) != 0 {
			t.Fatal("phantom tag")
		}

		e := d.Entry(tImageWidth)
		if !e.Inline() || e.ValuePos() != int64(off)+2+8 {
			t.Fatal(e.Inline(), e.ValuePos())
		}
		if d.Entry(tBitsPerSample).Inline() {
			t.Fatal("6-byte SHORT array stored inline")
		}
		raw, err := d.Raw(d.Entry(tXResolution))
		if err != nil {
			t.Fatal(err)
		}
		if len(raw) != 8 || order.Uint32(raw) != 300 || order.Uint32(raw[4:]) != 1 {
			t.Fatal(raw)
		}
		// The value field of the last entry can be read back at ValuePos.
		e = d.Entry(tStripOffsets)
		var p [4]byte
		if _, err := f.ReadAt(p[:], e.ValuePos()); err != nil {
			t.Fatal(err)
		}
		if order.Uint32(p[:]) != d.DataOffset(e) {
			t.Fatal(p)
		}
	}
}

func TestReadIFDUntrusted(t *testing.T) {
	f := &memFile{b: make([]byte, 64)}
	copy(f.b, leHeader)
	binary.LittleEndian.PutUint16(f.b[8:], 2000)
	if _, err := ReadIFD(f, binary.LittleEndian, 8, 0); err == nil {
		t.Fatal("implausible entry count accepted")
	}
	binary.LittleEndian.PutUint16(f.b[8:], 0)
	if _, err := ReadIFD(f, binary.LittleEndian, 8, 0); err == nil {
		t.Fatal("empty IFD accepted")
	}
	// Ten entries do not fit in the remaining bytes.
	binary.LittleEndian.PutUint16(f.b[8:], 10)
	_, err := ReadIFD(f, binary.LittleEndian, 8, 0)
	if _, ok := err.(FormatError); !ok {
		t.Fatalf("got %v, want FormatError", err)
	}
	if _, err := ReadIFD(f, binary.LittleEndian, 1<<20, 0); err == nil {
		t.Fatal("offset past end accepted")
	}
}

func TestReadIFDExternalPastEnd(t *testing.T) {
	b := newBuilder(binary.LittleEndian)
	off := b.ifd([]tag{short(tBitsPerSample, 16, 16, 16)}, 0)
	b.first(off)
	f := b.file()
	e := readBack(t, f, int64(off)).Entry(tBitsPerSample)
	binary.LittleEndian.PutUint32(f.b[e.ValuePos():], 1<<20)
	if _, err := ReadIFD(f, binary.LittleEndian, int64(off), 0); err == nil {
		t.Fatal("external value past end accepted")
	}
}
