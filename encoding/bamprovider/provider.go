package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Lightweight causes the reader to skip decoding the sequence, quality and
	// aux fields of each record. Name, position, flags and cigar are still
	// filled in. Records read this way must not be written to another file.
	Lightweight bool
}

// Provider reads the records of a BAM file, or of a sequence of BAM files, in
// stored order. Thread safe; each Iterator is thread compatible.
type Provider interface {
	// GetHeader returns the header for the provided BAM data.  The callee
	// must not modify the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over all the records, starting from the
	// first one. Multiple iterators may be created, sequentially or
	// concurrently; each one reads the full data.
	//
	// REQUIRES: Close has not been called.
	NewIterator() Iterator

	// Close must be called exactly once. It returns any error encountered
	// by the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator iterates over sam.Records in stored order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If the iterator
	// reaches the end of the data, Scan() returns false.  If an error
	// occurs, Scan() returns false and the error can be retrieved by
	// calling Err().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

func mergeOpts(optList []ProviderOpts) ProviderOpts {
	opts := ProviderOpts{}
	for _, o := range optList {
		if o.Lightweight {
			opts.Lightweight = true
		}
	}
	return opts
}

// NewProvider creates a Provider for the BAM file at "path". The path may be
// anything accepted by grailbio/base/file.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	return &BAMProvider{Path: path, Opts: mergeOpts(optList)}
}
