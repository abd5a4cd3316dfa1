package bamprovider

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// concatProvider yields the records of each of its providers in turn. The
// records are not merged by coordinate.
type concatProvider struct {
	providers []Provider
}

type concatIterator struct {
	iters []Iterator
	// cur indexes the iterator being read.
	cur int
	err errors.Once
}

// NewConcatProvider creates a Provider that reads the records of providers[0]
// to the end, then those of providers[1], and so on. The header is taken from
// providers[0]; all the providers are expected to share the same reference
// dictionary. Closing the returned provider closes all of providers.
//
// REQUIRES: len(providers) > 0.
func NewConcatProvider(providers ...Provider) Provider {
	if len(providers) == 0 {
		panic("NewConcatProvider: no providers")
	}
	return &concatProvider{providers: providers}
}

// GetHeader implements the Provider interface.
func (c *concatProvider) GetHeader() (*sam.Header, error) {
	return c.providers[0].GetHeader()
}

// NewIterator implements the Provider interface.
func (c *concatProvider) NewIterator() Iterator {
	iter := &concatIterator{iters: make([]Iterator, len(c.providers))}
	for i, p := range c.providers {
		iter.iters[i] = p.NewIterator()
	}
	return iter
}

// Close implements the Provider interface.
func (c *concatProvider) Close() error {
	var err errors.Once
	for _, p := range c.providers {
		err.Set(p.Close())
	}
	return err.Err()
}

// Scan implements the Iterator interface.
func (i *concatIterator) Scan() bool {
	for i.cur < len(i.iters) && i.err.Err() == nil {
		if i.iters[i.cur].Scan() {
			return true
		}
		i.err.Set(i.iters[i.cur].Err())
		i.cur++
	}
	return false
}

// Record implements the Iterator interface.
func (i *concatIterator) Record() *sam.Record {
	return i.iters[i.cur].Record()
}

// Err implements the Iterator interface.
func (i *concatIterator) Err() error {
	return i.err.Err()
}

// Close implements the Iterator interface.
func (i *concatIterator) Close() error {
	for _, iter := range i.iters {
		i.err.Set(iter.Close())
	}
	return i.err.Err()
}
