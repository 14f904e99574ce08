package dngpatch

import (
	"io"
	"math"
	"sort"

	"github.com/apex/log"
)

// slot is an IFD entry being built, with its value already inline or
// already pointing at appended data.
type slot struct {
	tag, typ uint16
	count    uint32
	field    [inlineLen]byte
}

func (w *Writer) shortSlot(tag, v uint16) slot {
	s := slot{tag: tag, typ: dtShort, count: 1}
	w.order.PutUint16(s.field[:], v)
	return s
}

func (w *Writer) longSlot(tag uint16, v uint32) slot {
	s := slot{tag: tag, typ: dtLong, count: 1}
	w.order.PutUint32(s.field[:], v)
	return s
}

// writeIFD appends a directory holding slots, sorted by tag as TIFF
// requires, and returns its offset.
func (w *Writer) writeIFD(slots []slot, next uint32) (uint32, error) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].tag < slots[j].tag
	})
	if err := w.Align(); err != nil {
		return 0, err
	}
	p := make([]byte, countLen+ifdLen*len(slots)+nextLen)
	w.order.PutUint16(p[0:2], uint16(len(slots)))
	for i, s := range slots {
		q := p[countLen+i*ifdLen:]
		w.order.PutUint16(q[0:2], s.tag)
		w.order.PutUint16(q[2:4], s.typ)
		w.order.PutUint32(q[4:8], s.count)
		copy(q[8:12], s.field[:])
	}
	w.order.PutUint32(p[len(p)-nextLen:], next)
	return w.Append(p)
}

// copySlot carries e from src into the output. External values are
// appended verbatim and the slot points at the copy.
func (w *Writer) copySlot(src *IFD, e *Entry) (slot, error) {
	s := slot{tag: e.Tag, typ: e.Type, count: e.Count}
	if e.Inline() {
		s.field = e.field
		return s, nil
	}
	data, err := src.Raw(e)
	if err != nil {
		return slot{}, err
	}
	if err := w.Align(); err != nil {
		return slot{}, err
	}
	off, err := w.Append(data)
	if err != nil {
		return slot{}, err
	}
	w.order.PutUint32(s.field[:], off)
	return s, nil
}

// keepSlot returns e's slot unchanged. Its external value, if any, stays
// where it is.
func keepSlot(e *Entry) slot {
	return slot{tag: e.Tag, typ: e.Type, count: e.Count, field: e.field}
}

// harvested reports whether a main-IFD tag is carried into a synthesized
// raw IFD.
func harvested(tag uint16) bool {
	return tag >= tDNGPrivateFirst || tag == tXResolution || tag == tYResolution || tag == tPlanarConfiguration
}

// SynthResult describes a synthesized raw SubIFD.
type SynthResult struct {
	IFDOffset   uint32
	StripOffset uint32
	ByteCount   uint32
	Copied      int  // tags carried over from the main IFD
	Relocated   bool // the main IFD was rewritten at the end of the file
}

// Synthesizer builds a new raw SubIFD when the container holds its raw
// plane only in a form that cannot be overwritten.
type Synthesizer struct {
	orig       io.ReaderAt
	header     Header
	w          *Writer
	maxEntries int
	log        log.Interface
}

// NewSynthesizer returns a Synthesizer harvesting metadata from orig,
// the unmodified container described by h, and writing through w.
func NewSynthesizer(orig io.ReaderAt, h Header, w *Writer, logger log.Interface) *Synthesizer {
	if logger == nil {
		logger = log.Log
	}
	return &Synthesizer{orig: orig, header: h, w: w, maxEntries: defaultMaxEntries, log: logger}
}

// Synthesize appends a 16-bit CFA SubIFD holding payload and links it
// from main, the output's first IFD. main is demoted from preview to raw
// metadata: BitsPerSample 16, SamplesPerPixel 1, Compression 1.
func (s *Synthesizer) Synthesize(main *IFD, payload []byte, shape Shape) (*SynthResult, error) {
	src, err := ReadIFD(s.orig, s.header.ByteOrder, int64(s.header.FirstIFD), s.maxEntries)
	if err != nil {
		return nil, err
	}
	w := s.w
	res := &SynthResult{ByteCount: uint32(len(payload))}

	var copied []slot
	for _, e := range src.Entries {
		if !harvested(e.Tag) {
			continue
		}
		sl, err := w.copySlot(src, e)
		if err != nil {
			return nil, err
		}
		copied = append(copied, sl)
	}
	res.Copied = len(copied)

	if res.StripOffset, err = w.Append(payload); err != nil {
		return nil, err
	}
	slots := append([]slot{
		w.longSlot(tImageWidth, uint32(shape.Width)),
		w.longSlot(tImageLength, uint32(shape.Height)),
		w.shortSlot(tBitsPerSample, 16),
		w.shortSlot(tCompression, cNone),
		w.shortSlot(tPhotometricInterpretation, pCFA),
		w.longSlot(tStripOffsets, res.StripOffset),
		w.shortSlot(tSamplesPerPixel, 1),
		w.longSlot(tRowsPerStrip, uint32(shape.Height)),
		w.longSlot(tStripByteCounts, res.ByteCount),
	}, copied...)
	if res.IFDOffset, err = w.writeIFD(slots, 0); err != nil {
		return nil, err
	}

	if main.Has(tSubIFDs) {
		res.Relocated, err = s.relink(main, res.IFDOffset)
	} else {
		res.Relocated = true
		err = s.relocate(main, []uint32{res.IFDOffset})
	}
	if err != nil {
		return nil, err
	}
	s.log.WithFields(log.Fields{
		"subifd":    res.IFDOffset,
		"offset":    res.StripOffset,
		"bytes":     res.ByteCount,
		"copied":    res.Copied,
		"relocated": res.Relocated,
	}).Info("raw SubIFD synthesized")
	return res, nil
}

// relink points the first pointer of main's existing SubIFDs entry at sub
// and demotes main in place. The other pointers are kept. A SHORT array
// that cannot hold sub is widened by relocating main, which is reported
// by the first result.
func (s *Synthesizer) relink(main *IFD, sub uint32) (bool, error) {
	w := s.w
	e := main.Entry(tSubIFDs)
	pos := e.ValuePos()
	if !e.Inline() {
		pos = int64(main.DataOffset(e))
	}
	switch {
	case e.Type == dtShort && e.Count == 1:
		// A single SHORT pointer is promoted in its slot.
		if err := w.putSingle(e, sub); err != nil {
			return false, err
		}
	case e.Type == dtShort && sub > math.MaxUint16:
		ptrs := make([]uint32, 0, e.Count)
		for _, v := range main.Uint(tSubIFDs) {
			ptrs = append(ptrs, uint32(v))
		}
		if len(ptrs) == 0 {
			ptrs = append(ptrs, sub)
		}
		ptrs[0] = sub
		return true, s.relocate(main, ptrs)
	case e.Type == dtShort:
		var p [2]byte
		w.order.PutUint16(p[:], uint16(sub))
		if _, err := w.w.WriteAt(p[:], pos); err != nil {
			return false, err
		}
	default:
		var p [4]byte
		w.order.PutUint32(p[:], sub)
		if _, err := w.w.WriteAt(p[:], pos); err != nil {
			return false, err
		}
	}
	for _, f := range demoted {
		if e := main.Entry(f.tag); e != nil {
			if err := w.putSingle(e, f.value); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// subIFDsSlot returns a LONG SubIFDs entry holding ptrs, appending the
// array when it does not fit inline.
func (w *Writer) subIFDsSlot(ptrs []uint32) (slot, error) {
	if len(ptrs) == 1 {
		return w.longSlot(tSubIFDs, ptrs[0]), nil
	}
	p := make([]byte, 4*len(ptrs))
	for i, v := range ptrs {
		w.order.PutUint32(p[4*i:], v)
	}
	if err := w.Align(); err != nil {
		return slot{}, err
	}
	off, err := w.Append(p)
	if err != nil {
		return slot{}, err
	}
	s := slot{tag: tSubIFDs, typ: dtLong, count: uint32(len(ptrs))}
	w.order.PutUint32(s.field[:], off)
	return s, nil
}

// relocate writes a demoted copy of main whose SubIFDs entry holds ptrs
// at the end of the file and points the header at it. The original
// directory is left in place, unreferenced.
func (s *Synthesizer) relocate(main *IFD, ptrs []uint32) error {
	w := s.w
	slots := make([]slot, 0, len(main.Entries)+1)
	for _, e := range main.Entries {
		if e.Tag == tSubIFDs {
			continue
		}
		sl := keepSlot(e)
		for _, f := range demoted {
			if e.Tag == f.tag {
				sl = w.shortSlot(f.tag, uint16(f.value))
			}
		}
		slots = append(slots, sl)
	}
	sl, err := w.subIFDsSlot(ptrs)
	if err != nil {
		return err
	}
	slots = append(slots, sl)
	off, err := w.writeIFD(slots, main.Next)
	if err != nil {
		return err
	}
	h := s.header
	h.FirstIFD = off
	var p [headerLen]byte
	h.put(p[:])
	if _, err := w.w.WriteAt(p[4:8], 4); err != nil {
		return err
	}
	s.log.WithFields(log.Fields{"from": main.Offset, "to": off}).Debug("main IFD relocated")
	return nil
}

// demoted lists the main-IFD values forced when a SubIFD is synthesized.
var demoted = []struct {
	tag   uint16
	value uint32
}{
	{tBitsPerSample, 16},
	{tCompression, cNone},
	{tSamplesPerPixel, 1},
}
