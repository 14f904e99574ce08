package dngpatch

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/apex/log"
)

// ReadWriterAt is a container open for patching.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Writer appends data at the end of a container and rewrites IFD entries
// in place. It never overwrites existing strip data.
type Writer struct {
	w     ReadWriterAt
	order binary.ByteOrder
	end   int64
	log   log.Interface
}

// NewWriter returns a Writer for a container of size bytes.
func NewWriter(w ReadWriterAt, order binary.ByteOrder, size int64, logger log.Interface) *Writer {
	if logger == nil {
		logger = log.Log
	}
	return &Writer{w: w, order: order, end: size, log: logger}
}

// End returns the current end of the container.
func (w *Writer) End() int64 {
	return w.end
}

// Append writes p at the end of the container and returns its offset.
func (w *Writer) Append(p []byte) (uint32, error) {
	off := w.end
	if off+int64(len(p)) > math.MaxUint32 {
		return 0, UnsupportedError("container larger than 4 GiB")
	}
	if _, err := w.w.WriteAt(p, off); err != nil {
		return 0, err
	}
	w.end += int64(len(p))
	return uint32(off), nil
}

// Align pads the container with a zero byte if its end is odd, since IFDs
// must start on a word boundary.
func (w *Writer) Align() error {
	if w.end&1 == 0 {
		return nil
	}
	_, err := w.Append([]byte{0})
	return err
}

// putSingle rewrites the 12-byte slot of e so that it holds exactly one
// inline value. A SHORT entry is promoted to LONG when v does not fit;
// one value always fits in the slot, so the IFD does not move.
func (w *Writer) putSingle(e *Entry, v uint32) error {
	typ := e.Type
	switch {
	case typ == dtShort && v > math.MaxUint16:
		typ = dtLong
	case typ != dtShort && typ != dtLong:
		typ = dtLong
	}
	var p [ifdLen - 2]byte
	w.order.PutUint16(p[0:2], typ)
	w.order.PutUint32(p[2:6], 1)
	if typ == dtShort {
		w.order.PutUint16(p[6:8], uint16(v))
	} else {
		w.order.PutUint32(p[6:10], v)
	}
	_, err := w.w.WriteAt(p[:], e.Pos+2)
	return err
}

// StripUpdate describes what Patch wrote into a target IFD.
type StripUpdate struct {
	Offset     uint32
	ByteCount  uint32
	Bits       int
	Compressed bool // the original plane was compressed
	Strips     int  // strip count before the patch
}

// Patch appends payload and points the target IFD's single strip at it.
// bits is the bit depth the payload was encoded with and rows the plane
// height. StripOffsets, StripByteCounts and BitsPerSample must be
// present; nothing is written otherwise.
func (w *Writer) Patch(target *IFD, payload []byte, bits, rows int) (*StripUpdate, error) {
	offsets := target.Entry(tStripOffsets)
	if offsets == nil {
		return nil, &MissingTagError{Tag: tStripOffsets}
	}
	counts := target.Entry(tStripByteCounts)
	if counts == nil {
		return nil, &MissingTagError{Tag: tStripByteCounts}
	}
	bps := target.Entry(tBitsPerSample)
	if bps == nil {
		return nil, &MissingTagError{Tag: tBitsPerSample}
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, UnsupportedError("payload larger than 4 GiB")
	}

	u := &StripUpdate{
		ByteCount:  uint32(len(payload)),
		Bits:       bits,
		Compressed: target.Has(tCompression) && target.First(tCompression) != cNone,
		Strips:     int(offsets.Count),
	}
	var err error
	if u.Offset, err = w.Append(payload); err != nil {
		return nil, err
	}
	if err = w.putSingle(offsets, u.Offset); err != nil {
		return nil, err
	}
	if err = w.putSingle(counts, u.ByteCount); err != nil {
		return nil, err
	}
	if u.Compressed {
		if err = w.putSingle(target.Entry(tCompression), cNone); err != nil {
			return nil, err
		}
	}
	if int(target.First(tBitsPerSample)) != bits {
		if err = w.putSingle(bps, uint32(bits)); err != nil {
			return nil, err
		}
	}
	if e := target.Entry(tRowsPerStrip); e != nil && int(target.First(tRowsPerStrip)) != rows {
		if err = w.putSingle(e, uint32(rows)); err != nil {
			return nil, err
		}
	}
	w.log.WithFields(log.Fields{
		"ifd":        target.Offset,
		"offset":     u.Offset,
		"bytes":      u.ByteCount,
		"bits":       bits,
		"strips":     u.Strips,
		"compressed": u.Compressed,
	}).Debug("strips rewritten")
	return u, nil
}
