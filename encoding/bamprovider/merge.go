package bamprovider

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/materescue/biopb"
)

// mergeProvider yields the records of its providers merged by coordinate.
type mergeProvider struct {
	concatProvider
}

type mergeIterator struct {
	iters []Iterator
	// heads[i] is the next record of iters[i], or nil once it is exhausted.
	heads  []*sam.Record
	primed bool
	// cur indexes the iterator whose head was last returned; -1 if none.
	cur int
	err errors.Once
}

// NewMergeProvider creates a Provider that merges the records of providers
// by (reference, position), with unmapped records last. Each provider must
// be coordinate-sorted. Records at equal coordinates are yielded in the order
// of providers. The header is taken from providers[0].
//
// REQUIRES: len(providers) > 0.
func NewMergeProvider(providers ...Provider) Provider {
	if len(providers) == 0 {
		panic("NewMergeProvider: no providers")
	}
	return &mergeProvider{concatProvider{providers: providers}}
}

// NewIterator implements the Provider interface.
func (m *mergeProvider) NewIterator() Iterator {
	iter := &mergeIterator{
		iters: make([]Iterator, len(m.providers)),
		heads: make([]*sam.Record, len(m.providers)),
		cur:   -1,
	}
	for i, p := range m.providers {
		iter.iters[i] = p.NewIterator()
	}
	return iter
}

func coordOf(r *sam.Record) biopb.Coord {
	return biopb.NewCoord(r.Ref.ID(), r.Pos)
}

func (i *mergeIterator) advance(k int) {
	if i.iters[k].Scan() {
		i.heads[k] = i.iters[k].Record()
		return
	}
	i.heads[k] = nil
	i.err.Set(i.iters[k].Err())
}

// Scan implements the Iterator interface.
func (i *mergeIterator) Scan() bool {
	if !i.primed {
		for k := range i.iters {
			i.advance(k)
		}
		i.primed = true
	} else if i.cur >= 0 {
		i.advance(i.cur)
	}
	i.cur = -1
	if i.err.Err() != nil {
		return false
	}
	for k, r := range i.heads {
		if r != nil && (i.cur < 0 || coordOf(r).LT(coordOf(i.heads[i.cur]))) {
			i.cur = k
		}
	}
	return i.cur >= 0
}

// Record implements the Iterator interface.
func (i *mergeIterator) Record() *sam.Record {
	return i.heads[i.cur]
}

// Err implements the Iterator interface.
func (i *mergeIterator) Err() error {
	return i.err.Err()
}

// Close implements the Iterator interface.
func (i *mergeIterator) Close() error {
	for _, iter := range i.iters {
		i.err.Set(iter.Close())
	}
	return i.err.Err()
}
