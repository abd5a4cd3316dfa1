package interval

import (
	"github.com/grailbio/base/log"
)

// CoverageSample reports the read depth at one reference position. A stream
// of samples fed to a RegionBuilder must be nondecreasing in (RefID, Pos).
type CoverageSample struct {
	RefID int
	Pos   int
	Depth int
}

// RegionBuilder coalesces a coverage signal into the maximal regions whose
// depth is at least MinCoverage.
//
// The builder is either idle or tracking one open region. Finalize must be
// called after the last sample; otherwise a region still open at the end of
// the input is lost.
type RegionBuilder struct {
	minCoverage int

	tracking bool
	open     Region
	regions  Regions
}

// NewRegionBuilder creates an idle builder. minCoverage values below 1 are
// raised to 1.
func NewRegionBuilder(minCoverage int) *RegionBuilder {
	if minCoverage < 1 {
		log.Printf("interval.NewRegionBuilder: minimum coverage %d raised to 1", minCoverage)
		minCoverage = 1
	}
	return &RegionBuilder{minCoverage: minCoverage}
}

// Visit consumes one coverage sample.
//
// A sample that is not adjacent to the open region (different reference, or a
// position gap) closes it first: positions absent from the signal have zero
// coverage.
func (b *RegionBuilder) Visit(s CoverageSample) {
	if b.tracking && (s.RefID != b.open.RefID || s.Pos > b.open.End+1) {
		b.close()
	}
	if s.Depth < b.minCoverage {
		if b.tracking {
			b.close()
		}
		return
	}
	if !b.tracking {
		b.tracking = true
		b.open = Region{RefID: s.RefID, Start: s.Pos, End: s.Pos}
		return
	}
	b.open.End = s.Pos
}

// Finalize closes the open region, if any. It is safe to call more than once.
func (b *RegionBuilder) Finalize() {
	if b.tracking {
		b.close()
	}
}

// Regions returns the regions closed so far, in (RefID, Start) order.
func (b *RegionBuilder) Regions() Regions {
	return b.regions
}

func (b *RegionBuilder) close() {
	log.Debug.Printf("closing %v", b.open)
	b.regions = append(b.regions, b.open)
	b.tracking = false
	b.open = Region{}
}
