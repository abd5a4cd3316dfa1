package bamprovider

import (
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for a single BAM file. The file is read
// through grailbio/base/file, so the path may be a local pathname or any URL
// registered with that package.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Opts controls record decoding.
	Opts ProviderOpts
	// err is the first error seen by the provider or any of its iterators.
	err errors.Once

	mu        sync.Mutex
	nActive   int
	freeIters []*bamIterator
	header    *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	// Offset of the first record in the file.
	firstRecord bgzf.Offset

	active bool
	err    error
	next   *sam.Record
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	reader, err := file.Open(ctx, b.Path)
	if err != nil {
		err = errors.E(err, "open", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close(ctx) // nolint: errcheck
	bamReader, err := bam.NewReader(reader.Reader(ctx), 1)
	if err != nil {
		err = errors.E(errors.Invalid, err, "read BAM header", b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer bamReader.Close() // nolint: errcheck
	b.header = bamReader.Header()
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %s", b.nActive, b.Path)
	}
	for _, iter := range b.freeIters {
		iter.internalClose()
	}
	b.freeIters = nil
	return b.err.Err()
}

func (b *BAMProvider) freeIterator(i *bamIterator) {
	if !i.active {
		vlog.Fatalf("%s: freeing an inactive iterator", b.Path)
	}
	i.active = false
	if i.Err() != nil || i.reader == nil {
		// The iter may be invalid. Don't reuse it.
		i.internalClose() // Will set b.err
		i = nil
	}
	b.mu.Lock()
	if i != nil {
		b.freeIters = append(b.freeIters, i)
	}
	b.nActive--
	if b.nActive < 0 {
		vlog.Fatalf("%s: negative active iterator count", b.Path)
	}
	b.mu.Unlock()
}

// Return an unused iterator positioned at the first record. If b.freeIters is
// nonempty, this function rewinds and returns one from freeIters. Else, it
// opens the BAM file and creates a BAM reader. If the file cannot be opened,
// no iterator is allocated and the error is returned.
func (b *BAMProvider) allocateIterator() (*bamIterator, error) {
	b.mu.Lock()
	if len(b.freeIters) > 0 {
		iter := b.freeIters[len(b.freeIters)-1]
		b.freeIters = b.freeIters[:len(b.freeIters)-1]
		b.nActive++
		b.mu.Unlock()
		iter.active = true
		iter.next = nil
		iter.err = iter.reader.Seek(iter.firstRecord)
		return iter, nil
	}
	b.mu.Unlock()

	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		return nil, errors.E(err, "open", b.Path)
	}
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		in.Close(ctx) // nolint: errcheck
		return nil, errors.E(errors.Invalid, err, "read BAM", b.Path)
	}
	if b.Opts.Lightweight {
		reader.Omit(bam.AllVariableLengthData)
	}
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()
	return &bamIterator{
		provider:    b,
		in:          in,
		reader:      reader,
		firstRecord: reader.LastChunk().End,
		active:      true,
	}, nil
}

// NewIterator implements the Provider interface. If the file cannot be
// opened, the returned iterator yields no record and reports the error, which
// is also returned by Close.
func (b *BAMProvider) NewIterator() Iterator {
	iter, err := b.allocateIterator()
	if err != nil {
		b.err.Set(err)
		return NewErrorIterator(err)
	}
	return iter
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	err := i.Err()
	i.provider.freeIterator(i)
	return err
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if !i.active {
		vlog.Fatalf("%s: reusing a closed iterator", i.provider.Path)
	}
	if i.err != nil {
		return false
	}
	i.next, i.err = i.reader.Read()
	if i.err != nil && i.err != io.EOF {
		i.err = errors.E(i.err, "read", i.provider.Path)
	}
	return i.err == nil
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.next
}

func (i *bamIterator) internalClose() {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.Err())
}
