package bamprovider

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// errorIterator stands in for an iterator whose source could not be opened.
type errorIterator struct {
	err error
}

func (i *errorIterator) Scan() bool { return false }

func (i *errorIterator) Record() *sam.Record {
	log.Panicf("Record called on a failed iterator: %v", i.err)
	return nil
}

func (i *errorIterator) Err() error   { return i.err }
func (i *errorIterator) Close() error { return i.err }

// NewErrorIterator creates an Iterator that yields no record and reports err
// from both Err and Close. BAMProvider returns one when its file cannot be
// opened, so callers see the failure through the usual Scan/Err loop.
func NewErrorIterator(err error) Iterator {
	return &errorIterator{err: err}
}
