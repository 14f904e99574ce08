// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dngpatch

import (
	"encoding/binary"
	"io"
	"math"
)

// Entry is one 12-byte IFD entry together with its position in the file.
type Entry struct {
	Tag   uint16
	Type  uint16
	Count uint32
	// Pos is the absolute file offset of the entry. The value-or-offset
	// field starts at Pos+8.
	Pos int64

	field [inlineLen]byte
}

// ValuePos returns the file offset of the entry's 4-byte value field.
func (e *Entry) ValuePos() int64 {
	return e.Pos + 8
}

// dataLen returns the size of the entry's value array in bytes.
func (e *Entry) dataLen() (uint64, error) {
	if int(e.Type) >= len(lengths) || lengths[e.Type] == 0 {
		return 0, UnsupportedError("IFD entry datatype")
	}
	return uint64(lengths[e.Type]) * uint64(e.Count), nil
}

// Inline reports whether the entry's value is stored in the entry itself.
func (e *Entry) Inline() bool {
	n, err := e.dataLen()
	return err == nil && n <= inlineLen
}

// IFD is a parsed Image File Directory. Integer-valued entries are
// resolved once, so later stages look tags up by number instead of
// rescanning the directory.
type IFD struct {
	// Offset is the absolute file offset of the entry count.
	Offset int64
	// Entries are in the order they are stored.
	Entries []*Entry
	// Next is the offset of the following IFD, or 0.
	Next uint32

	order    binary.ByteOrder
	r        io.ReaderAt
	tags     map[uint16]*Entry
	features map[uint16][]uint
}

// ReadIFD parses the IFD at offset. An entry count of zero or above
// maxEntries yields a FormatError; callers probing candidate offsets
// treat that as an untrustworthy directory.
func ReadIFD(r io.ReaderAt, order binary.ByteOrder, offset int64, maxEntries int) (*IFD, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	// The first two bytes contain the number of entries (12 bytes each).
	p, err := readFull(r, countLen, offset, "IFD entry count")
	if err != nil {
		return nil, err
	}
	numItems := int(order.Uint16(p))
	if numItems == 0 || numItems >= maxEntries {
		return nil, FormatError("implausible IFD entry count")
	}

	// All IFD entries and the next pointer are read in one chunk.
	p, err = readFull(r, uint64(ifdLen*numItems+nextLen), offset+countLen, "IFD")
	if err != nil {
		return nil, err
	}

	d := &IFD{
		Offset:   offset,
		Entries:  make([]*Entry, 0, numItems),
		Next:     order.Uint32(p[ifdLen*numItems:]),
		order:    order,
		r:        r,
		tags:     make(map[uint16]*Entry, numItems),
		features: make(map[uint16][]uint),
	}
	for i := 0; i < numItems; i++ {
		q := p[i*ifdLen : (i+1)*ifdLen]
		e := &Entry{
			Tag:   order.Uint16(q[0:2]),
			Type:  order.Uint16(q[2:4]),
			Count: order.Uint32(q[4:8]),
			Pos:   offset + countLen + int64(i*ifdLen),
		}
		copy(e.field[:], q[8:12])
		d.Entries = append(d.Entries, e)
		if _, dup := d.tags[e.Tag]; !dup {
			d.tags[e.Tag] = e
		}
		switch e.Type {
		case dtByte, dtShort, dtLong, dtIFD:
			val, err := d.ifdUint(e)
			if err != nil {
				return nil, err
			}
			d.features[e.Tag] = val
		}
	}
	return d, nil
}

// ByteOrder returns the byte order the IFD was parsed with.
func (d *IFD) ByteOrder() binary.ByteOrder {
	return d.order
}

// Entry returns the first entry with the given tag, or nil.
func (d *IFD) Entry(tag uint16) *Entry {
	return d.tags[tag]
}

// Has reports whether the IFD contains tag.
func (d *IFD) Has(tag uint16) bool {
	_, ok := d.tags[tag]
	return ok
}

// Uint returns the decoded values of an integer-valued tag.
func (d *IFD) Uint(tag uint16) []uint {
	return d.features[tag]
}

// First returns the first value of the tag, or 0 if the tag does not
// exist.
func (d *IFD) First(tag uint16) uint {
	f := d.features[tag]
	if len(f) == 0 {
		return 0
	}
	return f[0]
}

// Sum returns the sum of all values of the tag.
func (d *IFD) Sum(tag uint16) uint64 {
	var s uint64
	for _, v := range d.features[tag] {
		s += uint64(v)
	}
	return s
}

// DataOffset returns the external offset held in the entry's value field.
// It is meaningless for inline entries.
func (d *IFD) DataOffset(e *Entry) uint32 {
	return d.order.Uint32(e.field[:])
}

// Raw returns the value bytes of e exactly as stored, whether inline or
// external.
func (d *IFD) Raw(e *Entry) ([]byte, error) {
	datalen, err := e.dataLen()
	if err != nil {
		return nil, err
	}
	if datalen <= inlineLen {
		p := make([]byte, datalen)
		copy(p, e.field[:datalen])
		return p, nil
	}
	return readFull(d.r, datalen, int64(d.DataOffset(e)), "IFD entry data")
}

// ifdUint decodes an entry of the Byte, Short, Long or IFD type, and
// returns the decoded uint values.
func (d *IFD) ifdUint(e *Entry) (u []uint, err error) {
	if e.Count > math.MaxInt32/lengths[e.Type] {
		return nil, FormatError("IFD data too large")
	}
	raw, err := d.Raw(e)
	if err != nil {
		return nil, err
	}

	count := e.Count
	u = make([]uint, count)
	switch e.Type {
	case dtByte:
		for i := uint32(0); i < count; i++ {
			u[i] = uint(raw[i])
		}
	case dtShort:
		for i := uint32(0); i < count; i++ {
			u[i] = uint(d.order.Uint16(raw[2*i : 2*(i+1)]))
		}
	case dtLong, dtIFD:
		for i := uint32(0); i < count; i++ {
			u[i] = uint(d.order.Uint32(raw[4*i : 4*(i+1)]))
		}
	default:
		return nil, UnsupportedError("data type")
	}
	return u, nil
}
