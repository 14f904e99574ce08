package dngpatch

import (
	"errors"
	"math"
	"testing"
)

func TestComputeStats(t *testing.T) {
	buf := &PixelBuffer{Width: 2, Height: 2, Pix: []uint16{1, 3, 5, 11}}
	s := ComputeStats(buf)
	if s.Min != 1 || s.Max != 11 || s.Mean != 5 || s.Median != 4 {
		t.Fatal(s)
	}
	if math.Abs(s.Std-math.Sqrt(14)) > 1e-9 {
		t.Fatal(s.Std)
	}
	buf = &PixelBuffer{Width: 3, Height: 1, Pix: []uint16{9, 2, 2}}
	if s := ComputeStats(buf); s.Median != 2 || s.Shape != (Shape{3, 1}) {
		t.Fatal(s)
	}
}

func TestCorner(t *testing.T) {
	buf := ramp(4, 3, 1000)
	c := Corner(buf, 5)
	if len(c) != 3 || len(c[0]) != 4 {
		t.Fatal(c)
	}
	c = Corner(buf, 2)
	if len(c) != 2 || c[1][1] != buf.At(1, 1) {
		t.Fatal(c)
	}
}

func TestDiff(t *testing.T) {
	a := &PixelBuffer{Width: 2, Height: 2, Pix: []uint16{10, 10, 10, 10}}
	b := &PixelBuffer{Width: 2, Height: 2, Pix: []uint16{9, 9, 10, 14}}
	d, err := Diff(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if d.Min != -1 || d.Max != 4 || d.Total != 4 || d.MinusOne != 2 {
		t.Fatal(d)
	}
	if d.Mean != 0.5 || d.Median != -0.5 {
		t.Fatal(d.Mean, d.Median)
	}
	if len(d.Distinct) != 3 || d.Distinct[0] != -1 || d.Distinct[2] != 4 {
		t.Fatal(d.Distinct)
	}

	_, err = Diff(a, NewPixelBuffer(2, 3))
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatal(err)
	}
}

func TestOffset(t *testing.T) {
	buf := &PixelBuffer{Width: 3, Height: 1, Pix: []uint16{0, 7, 65535}}
	if o := Offset(buf, -1); o.Pix[0] != 0 || o.Pix[1] != 6 || o.Pix[2] != 65534 {
		t.Fatal(o.Pix)
	}
	if o := Offset(buf, 1); o.Pix[0] != 1 || o.Pix[2] != 65535 {
		t.Fatal(o.Pix)
	}
	if buf.Pix[1] != 7 {
		t.Fatal("input modified")
	}
}
