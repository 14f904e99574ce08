// Copyright 2011 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dngpatch

// A DNG file is a TIFF file. The metadata of each image is contained
// in an Image File Directory (IFD), which contains entries of 12 bytes
// each and is described on page 14-16 of the TIFF specification. An IFD
// entry consists of
//
//  - a tag, which describes the signification of the entry,
//  - the data type and length of the entry,
//  - the data itself or a pointer to it if it is more than 4 bytes.
//
// The presence of a length means that each IFD is effectively an array.

const (
	leHeader = "II\x2A\x00" // Header for little-endian files.
	beHeader = "MM\x00\x2A" // Header for big-endian files.

	headerLen = 8  // Length of the file header in bytes.
	ifdLen    = 12 // Length of an IFD entry in bytes.

	countLen  = 2 // Length of the entry count preceding the entries.
	nextLen   = 4 // Length of the next-IFD pointer following the entries.
	inlineLen = 4 // Values up to this many bytes live in the entry itself.

	tiffMagic = 42
)

// Data types (p. 14-16 of the TIFF specification).
const (
	dtByte      = 1
	dtASCII     = 2
	dtShort     = 3
	dtLong      = 4
	dtRational  = 5
	dtSByte     = 6
	dtUndefined = 7
	dtSShort    = 8
	dtSLong     = 9
	dtSRational = 10
	dtFloat     = 11
	dtDouble    = 12
	dtIFD       = 13
)

// The length of one instance of each data type in bytes.
var lengths = [...]uint32{0, 1, 1, 2, 4, 8, 1, 1, 2, 4, 8, 4, 8, 4}

// Tags (see p. 28-41 of the TIFF specification, and the DNG specification for the
// private range).
const (
	tImageWidth                = 256
	tImageLength               = 257
	tBitsPerSample             = 258
	tCompression               = 259
	tPhotometricInterpretation = 262

	tStripOffsets    = 273
	tSamplesPerPixel = 277
	tRowsPerStrip    = 278
	tStripByteCounts = 279

	tXResolution         = 282
	tYResolution         = 283
	tPlanarConfiguration = 284

	tSubIFDs = 330

	// Every tag at or above this number is DNG private and is copied
	// verbatim into a synthesized raw IFD.
	tDNGPrivateFirst = 50700
	tDNGVersion      = 50706
)

// Compression types (defined in various places in the TIFF specification and supplements).
const (
	cNone       = 1
	cJPEG       = 7
	cDeflate    = 8
	cLossyJPEG  = 34892
	cDeflateOld = 32946
)

// Photometric interpretation values (see p. 37 of the TIFF specification, and the DNG
// specification for CFA and LinearRaw).
const (
	pBlackIsZero = 1
	pRGB         = 2
	pCFA         = 32803
	pLinearRaw   = 34892
)

// defaultMaxEntries bounds the entry count of an IFD that is still
// considered trustworthy.
const defaultMaxEntries = 1000
