package dngpatch

import (
	"io"

	"github.com/apex/log"
)

// Strategy names, in the order they are tried.
const (
	StrategySubIFD     = "subifd"
	StrategyMainIFD    = "main-ifd"
	StrategyNextIFD    = "next-ifd"
	StrategySynthesize = "synthesize"
)

// PatchPlan is the Locator's decision.
type PatchPlan struct {
	// Strategy is the name of the strategy that matched.
	Strategy string
	// Main is the container's first IFD.
	Main *IFD
	// Target is the IFD whose strips are replaced. It is nil when
	// Synthesize is set.
	Target *IFD
	// Synthesize means no existing IFD is writable and a new raw
	// SubIFD must be built.
	Synthesize bool
}

// A strategy inspects the main IFD and either produces a plan or
// declines. Strategies do not write.
type strategy struct {
	name  string
	match func(l *Locator, main *IFD) (*PatchPlan, bool)
}

var strategies = []strategy{
	{StrategySubIFD, (*Locator).subIFD},
	{StrategyMainIFD, (*Locator).mainIFD},
	{StrategyNextIFD, (*Locator).nextIFD},
	{StrategySynthesize, (*Locator).synthesize},
}

// Locator decides which IFD of a container holds the sensor raw plane.
type Locator struct {
	r      io.ReaderAt
	log    log.Interface
	pixels int

	// RawFraction is the share of the theoretical plane size the main
	// IFD's strips must reach to be taken as raw.
	RawFraction float64
	// MaxEntries bounds the entry count of a trustworthy IFD.
	MaxEntries int
}

// NewLocator returns a Locator for a replacement plane of the given
// number of samples.
func NewLocator(r io.ReaderAt, pixels int, logger log.Interface) *Locator {
	if logger == nil {
		logger = log.Log
	}
	return &Locator{
		r:           r,
		log:         logger,
		pixels:      pixels,
		RawFraction: 0.8,
		MaxEntries:  defaultMaxEntries,
	}
}

// Locate evaluates the strategies in priority order and returns the plan
// of the first one that matches.
func (l *Locator) Locate(main *IFD) (*PatchPlan, error) {
	for _, s := range strategies {
		plan, ok := s.match(l, main)
		if !ok {
			continue
		}
		plan.Strategy = s.name
		plan.Main = main
		l.log.WithFields(log.Fields{
			"strategy":   s.name,
			"synthesize": plan.Synthesize,
		}).Debug("raw IFD located")
		return plan, nil
	}
	return nil, ErrNoUsableRawIFD
}

func (l *Locator) subIFD(main *IFD) (*PatchPlan, bool) {
	off := main.First(tSubIFDs)
	if off == 0 {
		return nil, false
	}
	sub, err := ReadIFD(l.r, main.ByteOrder(), int64(off), l.MaxEntries)
	if err != nil {
		l.log.WithError(err).WithField("offset", off).Debug("SubIFD rejected")
		return nil, false
	}
	if !sub.Has(tStripOffsets) || !sub.Has(tStripByteCounts) {
		l.log.WithField("offset", off).Debug("SubIFD has no strips")
		return nil, false
	}
	return &PatchPlan{Target: sub}, true
}

func (l *Locator) mainIFD(main *IFD) (*PatchPlan, bool) {
	if !IsRawPlane(main, l.pixels, l.RawFraction) {
		return nil, false
	}
	return &PatchPlan{Target: main}, true
}

// nextIFD records a following IFD as a hint only; multi-page containers
// holding the raw plane in a later IFD are not followed.
func (l *Locator) nextIFD(main *IFD) (*PatchPlan, bool) {
	if main.Next != 0 {
		l.log.WithField("offset", main.Next).Debug("next IFD present, not followed")
	}
	return nil, false
}

func (l *Locator) synthesize(main *IFD) (*PatchPlan, bool) {
	if samplesPerPixel(main) != 3 {
		return nil, false
	}
	return &PatchPlan{Synthesize: true}, true
}

// IsRawPlane reports whether d looks like an uncompressed-size sensor
// plane for pixels samples: one sample per pixel, 12 to 16 bits per
// sample, and strips adding up to at least fraction of the theoretical
// plane size.
func IsRawPlane(d *IFD, pixels int, fraction float64) bool {
	if samplesPerPixel(d) != 1 {
		return false
	}
	bits := d.First(tBitsPerSample)
	if bits < 12 || bits > 16 {
		return false
	}
	want := float64(pixels) * float64(bits) / 8
	return float64(d.Sum(tStripByteCounts)) >= fraction*want
}

// samplesPerPixel applies the TIFF default of 1 when the tag is absent.
func samplesPerPixel(d *IFD) uint {
	if !d.Has(tSamplesPerPixel) {
		return 1
	}
	return d.First(tSamplesPerPixel)
}
