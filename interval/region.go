package interval

import (
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/materescue/biopb"
)

// Region is a closed interval [Start, End] of 0-based positions on the
// reference with ID RefID. Regions are values; nothing mutates them after
// RegionBuilder creates them.
type Region struct {
	RefID int
	Start int
	End   int
}

func (r Region) String() string {
	return fmt.Sprintf("Region(%d, %d, %d)", r.RefID, r.Start, r.End)
}

// Len returns the number of positions covered by r.
func (r Region) Len() int {
	return r.End - r.Start + 1
}

// FullyLeftOf returns true iff r ends strictly before the alignment position
// of rec. References are ordered by ID, and a record without a reference
// comes after every reference.
//
// FullyLeftOf is only meaningful for advancing a sweep over a
// coordinate-sorted stream; it is not a containment test.
func (r Region) FullyLeftOf(rec *sam.Record) bool {
	end := biopb.NewCoord(r.RefID, r.End)
	return end.LT(biopb.NewCoord(rec.Ref.ID(), rec.Pos))
}

// Overlaps returns true iff the effective span of rec intersects r. For a
// mapped record the span is [Pos, End()) on Ref. For an unmapped record with a
// mapped mate, the mate's reference and position are used and the span
// length is the record's own sequence length, since the mate's end is not
// known. A record with neither side mapped overlaps nothing.
func (r Region) Overlaps(rec *sam.Record) bool {
	refID, start, end, ok := EffectiveSpan(rec)
	if !ok {
		return false
	}
	return refID == r.RefID && start <= r.End && end > r.Start
}

// EffectiveSpan computes the half-open span [start, end) on reference refID
// that Region.Overlaps tests against. ok is false if neither rec nor its mate
// is mapped.
func EffectiveSpan(rec *sam.Record) (refID, start, end int, ok bool) {
	switch {
	case rec.Flags&sam.Unmapped == 0:
		return rec.Ref.ID(), rec.Pos, rec.End(), true
	case rec.Flags&sam.MateUnmapped == 0:
		return rec.MateRef.ID(), rec.MatePos, rec.MatePos + rec.Seq.Length, true
	default:
		return -1, 0, 0, false
	}
}

// Regions is a list of regions sorted by (RefID, Start).
type Regions []Region

// Validate checks that rs is sorted by (RefID, Start) and that no two regions
// overlap.
func (rs Regions) Validate() error {
	for i, r := range rs {
		if r.End < r.Start {
			return errors.E(errors.Invalid, fmt.Sprintf("%v: end before start", r))
		}
		if i == 0 {
			continue
		}
		prev := rs[i-1]
		if prev.RefID > r.RefID || (prev.RefID == r.RefID && prev.End >= r.Start) {
			return errors.E(errors.Invalid, fmt.Sprintf("%v and %v are out of order or overlap", prev, r))
		}
	}
	return nil
}

// TotalLength returns the number of positions covered by rs.
func (rs Regions) TotalLength() int {
	n := 0
	for _, r := range rs {
		n += r.Len()
	}
	return n
}

// WriteBED writes rs as BED lines (0-based, half-open). Reference IDs are
// translated to names with header.
func (rs Regions) WriteBED(w io.Writer, header *sam.Header) error {
	refs := header.Refs()
	out := tsv.NewWriter(w)
	for _, r := range rs {
		if r.RefID < 0 || r.RefID >= len(refs) {
			return errors.E(errors.Invalid, fmt.Sprintf("%v: reference not in header", r))
		}
		out.WriteString(refs[r.RefID].Name())
		out.WriteInt64(int64(r.Start))
		out.WriteInt64(int64(r.End + 1))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}
