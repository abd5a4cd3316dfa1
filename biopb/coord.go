package biopb

// Coord describes positions in a coordinate-sorted BAM file. A
// record's position is <RefId, Pos>; records without a reference (RefId=-1)
// are stored after every mapped record, so they compare greater than any
// valid reference.

import (
	"fmt"
	"math"
)

const (
	// InfinityPos is 1+ the largest possible alignment position.
	InfinityPos = math.MaxInt32

	// UnmappedRefID is the reference ID of records placed on no reference.
	UnmappedRefID = int32(-1)

	// InvalidRefID is used as a sentinel. We use -2 because -1 is taken by
	// UnmappedRefID.
	InvalidRefID = int32(-2)
	// InvalidPos is a sentinel position value.
	InvalidPos = int32(-2)
)

// Coord is a position in the coordinate order of a BAM file.
type Coord struct {
	RefId int32
	Pos   int32
}

// NewCoord creates a Coord from int-typed reference ID and position, as found
// in sam.Record.
func NewCoord(refID, pos int) Coord {
	return Coord{RefId: int32(refID), Pos: int32(pos)}
}

func sortableRefID(id int32) int64 {
	if id == UnmappedRefID {
		// Unmapped reads are sorted the last, so use a large value.
		return math.MaxInt32 + 1
	}
	return int64(id)
}

// Compare returns (negative int, 0, positive int) if (r<r1, r=r1, r>r1)
// respectively.
func (r Coord) Compare(r1 Coord) int {
	refid0 := sortableRefID(r.RefId)
	refid1 := sortableRefID(r1.RefId)
	if refid0 != refid1 {
		if refid0 < refid1 {
			return -1
		}
		return 1
	}
	return int(r.Pos) - int(r1.Pos)
}

// LT returns true iff r < r1.
func (r Coord) LT(r1 Coord) bool {
	return r.Compare(r1) < 0
}

func (r Coord) String() string {
	return fmt.Sprintf("%d:%d", r.RefId, r.Pos)
}
