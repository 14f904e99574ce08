// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dngpatch

import (
	"encoding/binary"
	"io"
)

// Header is the 8-byte preamble of a TIFF/DNG container.
type Header struct {
	ByteOrder binary.ByteOrder
	// FirstIFD is the absolute offset of the main IFD.
	FirstIFD uint32
}

// ParseHeader decodes the first 8 bytes of a container. p must hold at
// least headerLen bytes.
func ParseHeader(p []byte) (Header, error) {
	if len(p) < headerLen {
		return Header{}, FormatError("truncated header")
	}
	var h Header
	switch string(p[0:2]) {
	case leHeader[0:2]:
		h.ByteOrder = binary.LittleEndian
	case beHeader[0:2]:
		h.ByteOrder = binary.BigEndian
	default:
		return Header{}, FormatError("malformed byte order marker")
	}
	if h.ByteOrder.Uint16(p[2:4]) != tiffMagic {
		return Header{}, FormatError("bad magic number")
	}
	h.FirstIFD = h.ByteOrder.Uint32(p[4:8])
	return h, nil
}

// ReadHeader reads and decodes the container header at the start of r.
func ReadHeader(r io.ReaderAt) (Header, error) {
	p, err := readFull(r, headerLen, 0, "header")
	if err != nil {
		return Header{}, err
	}
	return ParseHeader(p)
}

// put encodes h into p, which must hold at least headerLen bytes.
func (h Header) put(p []byte) {
	if h.ByteOrder == binary.BigEndian {
		copy(p, beHeader)
	} else {
		copy(p, leHeader)
	}
	h.ByteOrder.PutUint32(p[4:8], h.FirstIFD)
}
