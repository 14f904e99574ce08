package dngpatch

import (
	"encoding/binary"
	"fmt"

	tiff "github.com/garyhouston/tiff66"
	"github.com/hashicorp/go-multierror"
)

// CheckReport is the outcome of Check.
type CheckReport struct {
	IFDs      int
	RawPlanes int
	// Warnings holds problems the tree parser recovered from.
	Warnings []error
}

// Check re-parses a container independently of this package's own IFD
// reader and verifies that every strip lies inside the file and that at
// least one IFD holds a single-sample uncompressed plane. The returned
// error, if any, is a *multierror.Error listing every problem.
func Check(buf []byte) (*CheckReport, error) {
	valid, order, pos := tiff.GetHeader(buf)
	if !valid {
		return nil, FormatError("not a TIFF container")
	}
	root, perr := tiff.GetIFDTree(buf, order, pos, tiff.TIFFSpace)
	rep := &CheckReport{}
	if merr, ok := perr.(*multierror.Error); ok {
		rep.Warnings = append(rep.Warnings, merr.Errors...)
	} else if perr != nil {
		rep.Warnings = append(rep.Warnings, perr)
	}
	if root == nil {
		return rep, FormatError("no IFD")
	}

	var result *multierror.Error
	var walk func(node *tiff.IFDNode, path string)
	walk = func(node *tiff.IFDNode, path string) {
		for i := 0; node != nil; i++ {
			name := fmt.Sprintf("%s%d", path, i)
			rep.IFDs++
			if err := checkStrips(node, order, len(buf), name); err != nil {
				result = multierror.Append(result, err)
			} else if rawNode(node, order) {
				rep.RawPlanes++
			}
			for j, sub := range node.SubIFDs {
				if sub.Tag == tSubIFDs {
					walk(sub.Node, fmt.Sprintf("%s.sub%d.", name, j))
				}
			}
			node = node.Next
		}
	}
	walk(root, "ifd")
	if rep.RawPlanes == 0 {
		result = multierror.Append(result, ErrNoUsableRawIFD)
	}
	return rep, result.ErrorOrNil()
}

func nodeField(node *tiff.IFDNode, tag uint16) *tiff.Field {
	for i := range node.Fields {
		if uint16(node.Fields[i].Tag) == tag {
			return &node.Fields[i]
		}
	}
	return nil
}

func nodeFirst(node *tiff.IFDNode, tag uint16, order binary.ByteOrder, def int64) int64 {
	f := nodeField(node, tag)
	if f == nil || f.Count == 0 || !f.Type.IsIntegral() {
		return def
	}
	return f.AnyInteger(0, order)
}

func checkStrips(node *tiff.IFDNode, order binary.ByteOrder, size int, name string) error {
	offsets := nodeField(node, tStripOffsets)
	counts := nodeField(node, tStripByteCounts)
	if offsets == nil && counts == nil {
		return nil
	}
	if offsets == nil || counts == nil || offsets.Count != counts.Count {
		return fmt.Errorf("%s: unpaired StripOffsets/StripByteCounts", name)
	}
	if !offsets.Type.IsIntegral() || !counts.Type.IsIntegral() {
		return fmt.Errorf("%s: strip fields are not integers", name)
	}
	for i := uint32(0); i < offsets.Count; i++ {
		off := offsets.AnyInteger(i, order)
		n := counts.AnyInteger(i, order)
		if off < 0 || n < 0 || off+n > int64(size) {
			return fmt.Errorf("%s: strip %d [%d, %d) outside file of %d bytes", name, i, off, off+n, size)
		}
	}
	return nil
}

func rawNode(node *tiff.IFDNode, order binary.ByteOrder) bool {
	return nodeField(node, tStripOffsets) != nil &&
		nodeFirst(node, tSamplesPerPixel, order, 1) == 1 &&
		nodeFirst(node, tCompression, order, cNone) == cNone
}
