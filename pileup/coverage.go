package pileup

import (
	"fmt"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/materescue/biopb"
	"github.com/grailbio/materescue/encoding/bamprovider"
	"github.com/grailbio/materescue/interval"
)

// Visitor receives the coverage signal computed by CoverageEngine.
// interval.RegionBuilder implements Visitor.
type Visitor interface {
	Visit(s interval.CoverageSample)
}

// pendingEnd counts the active reads whose alignment ends at pos (exclusive).
type pendingEnd struct {
	pos int
	n   int
}

// Compare implements llrb.Comparable.
func (e *pendingEnd) Compare(c llrb.Comparable) int {
	return e.pos - c.(*pendingEnd).pos
}

// CoverageEngine computes per-position read depth from a coordinate-sorted
// stream of records. Each position covered by at least one mapped read is
// reported exactly once, in increasing (refid, pos) order, once no later
// record can change its depth. Positions with no coverage are not reported.
//
// Thread compatible.
type CoverageEngine struct {
	visitor Visitor

	refID int
	// cur is the next position to report on refID.
	cur int
	// last is the coordinate of the last record added.
	last biopb.Coord
	// ends holds the end positions of the active reads.
	ends   llrb.Tree
	active int
}

// NewCoverageEngine creates an engine that reports to v.
func NewCoverageEngine(v Visitor) *CoverageEngine {
	return &CoverageEngine{
		visitor: v,
		refID:   -1,
		last:    biopb.Coord{RefId: biopb.InvalidRefID, Pos: biopb.InvalidPos},
	}
}

// AddRecord adds one record to the pileup. Unmapped records and records with
// an empty alignment are ignored. Records must be added in coordinate order.
func (e *CoverageEngine) AddRecord(r *sam.Record) error {
	if r.Flags&sam.Unmapped != 0 || r.Ref == nil {
		return nil
	}
	coord := biopb.NewCoord(r.Ref.ID(), r.Pos)
	if e.last.RefId != biopb.InvalidRefID && coord.LT(e.last) {
		return errors.E(errors.Invalid, fmt.Sprintf("pileup: record %s at %v is before %v; input must be coordinate-sorted",
			r.Name, coord, e.last))
	}
	e.last = coord

	if r.Ref.ID() != e.refID {
		e.Flush()
		e.refID = r.Ref.ID()
		e.cur = r.Pos
	}
	e.flushTo(r.Pos)

	end := r.End()
	if end <= r.Pos {
		return nil
	}
	key := &pendingEnd{pos: end}
	if c := e.ends.Get(key); c != nil {
		c.(*pendingEnd).n++
	} else {
		key.n = 1
		e.ends.Insert(key)
	}
	e.active++
	return nil
}

// Flush reports every buffered position of the current reference. It must be
// called after the last record.
func (e *CoverageEngine) Flush() {
	e.flushTo(biopb.InfinityPos)
}

// flushTo reports the positions in [e.cur, limit).
func (e *CoverageEngine) flushTo(limit int) {
	for e.cur < limit && e.active > 0 {
		e.expire()
		if e.active == 0 {
			break
		}
		e.visitor.Visit(interval.CoverageSample{RefID: e.refID, Pos: e.cur, Depth: e.active})
		e.cur++
	}
	if e.cur < limit && limit != biopb.InfinityPos {
		e.cur = limit
	}
}

// expire drops the reads that end at or before e.cur.
func (e *CoverageEngine) expire() {
	for e.ends.Len() > 0 {
		min := e.ends.Min().(*pendingEnd)
		if min.pos > e.cur {
			return
		}
		e.active -= min.n
		e.ends.DeleteMin()
	}
}

// ComputeCoverage feeds every record in iter to a new CoverageEngine reporting
// to v, then flushes it. iter is not closed.
func ComputeCoverage(iter bamprovider.Iterator, v Visitor) (nRecs int, err error) {
	e := NewCoverageEngine(v)
	for iter.Scan() {
		if err = e.AddRecord(iter.Record()); err != nil {
			return nRecs, err
		}
		nRecs++
	}
	if err = iter.Err(); err != nil {
		return nRecs, err
	}
	e.Flush()
	log.Debug.Printf("pileup: computed coverage over %d records", nRecs)
	return nRecs, nil
}
