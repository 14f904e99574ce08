package dngpatch

import (
	"math"
	"sort"
)

// Stats summarizes the samples of a plane.
type Stats struct {
	Shape
	Min, Max          uint16
	Mean, Median, Std float64
}

// ComputeStats returns summary statistics of buf. The median of an even
// number of samples is the mean of the two middle ones.
func ComputeStats(buf *PixelBuffer) Stats {
	s := Stats{Shape: buf.Shape()}
	n := len(buf.Pix)
	if n == 0 {
		return s
	}
	var hist [1 << 16]int
	var sum float64
	s.Min = math.MaxUint16
	for _, v := range buf.Pix {
		hist[v]++
		sum += float64(v)
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Mean = sum / float64(n)
	var sq float64
	for _, v := range buf.Pix {
		d := float64(v) - s.Mean
		sq += d * d
	}
	s.Std = math.Sqrt(sq / float64(n))

	// nth returns the sample of rank k in sorted order.
	nth := func(k int) float64 {
		for v, c := range hist {
			if k < c {
				return float64(v)
			}
			k -= c
		}
		return float64(s.Max)
	}
	if n%2 == 1 {
		s.Median = nth(n / 2)
	} else {
		s.Median = (nth(n/2-1) + nth(n/2)) / 2
	}
	return s
}

// Corner returns the top-left n×n samples of buf, or fewer if buf is
// smaller.
func Corner(buf *PixelBuffer, n int) [][]uint16 {
	h, w := n, n
	if h > buf.Height {
		h = buf.Height
	}
	if w > buf.Width {
		w = buf.Width
	}
	rows := make([][]uint16, h)
	for y := range rows {
		rows[y] = append([]uint16(nil), buf.Pix[y*buf.Width:y*buf.Width+w]...)
	}
	return rows
}

// DiffStats summarizes b−a over two planes of equal shape.
type DiffStats struct {
	Min, Max     int
	Mean, Median float64
	Total        int
	// MinusOne counts samples that decreased by exactly one.
	MinusOne int
	// Distinct holds every distinct difference in ascending order.
	Distinct []int
}

// Diff compares two planes sample by sample.
func Diff(a, b *PixelBuffer) (*DiffStats, error) {
	if a.Shape() != b.Shape() {
		return nil, &DimensionMismatchError{Got: b.Shape(), Want: a.Shape()}
	}
	n := len(a.Pix)
	ds := &DiffStats{Total: n}
	if n == 0 {
		return ds, nil
	}
	d := make([]int, n)
	var sum float64
	for i := range d {
		d[i] = int(b.Pix[i]) - int(a.Pix[i])
		sum += float64(d[i])
		if d[i] == -1 {
			ds.MinusOne++
		}
	}
	sort.Ints(d)
	ds.Min, ds.Max = d[0], d[n-1]
	ds.Mean = sum / float64(n)
	if n%2 == 1 {
		ds.Median = float64(d[n/2])
	} else {
		ds.Median = float64(d[n/2-1]+d[n/2]) / 2
	}
	for i, v := range d {
		if i == 0 || v != d[i-1] {
			ds.Distinct = append(ds.Distinct, v)
		}
	}
	return ds, nil
}

// Offset returns a copy of buf with delta added to every sample, clamped
// to [0, 65535].
func Offset(buf *PixelBuffer, delta int) *PixelBuffer {
	out := NewPixelBuffer(buf.Width, buf.Height)
	for i, v := range buf.Pix {
		x := int(v) + delta
		if x < 0 {
			x = 0
		} else if x > math.MaxUint16 {
			x = math.MaxUint16
		}
		out.Pix[i] = uint16(x)
	}
	return out
}
