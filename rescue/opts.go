package rescue

import (
	"github.com/grailbio/base/log"
)

// Opts configures Run and Classify.
type Opts struct {
	// MinMapQ is the minimum mapping quality of a mapped record.
	MinMapQ int
	// MinBaseQual is the minimum mean base quality of an unmapped record.
	MinBaseQual int
	// MinCoverage is the minimum depth of a position to be part of a region.
	MinCoverage int
	// BatchSize is the number of query records per mate-rescue batch.
	BatchSize int
	// UpdateFreq is the number of records between progress messages during
	// classification.
	UpdateFreq int
	// IndexOutputs causes .bai indexes to be built for the final outputs.
	IndexOutputs bool
	// RegionsBED, if nonempty, receives the coverage regions in BED format.
	RegionsBED string
	// Checksum causes the summary to include a checksum of each final output.
	Checksum bool
	// SummaryPath, if nonempty, receives the run summary as TSV. The file is
	// gzipped if the path ends in ".gz".
	SummaryPath string
}

// DefaultOpts are the default values of Opts.
var DefaultOpts = Opts{
	MinMapQ:      30,
	MinBaseQual:  10,
	MinCoverage:  1,
	BatchSize:    1000000,
	UpdateFreq:   1000000,
	IndexOutputs: true,
}

const minUpdateFreq = 1000

// Normalize raises out-of-range values to their minimums, logging a warning
// for each one changed.
func (o *Opts) Normalize() {
	clamp := func(v *int, name string, min int) {
		if *v < min {
			log.Error.Printf("warning: value of %s set to minimum of %d", name, min)
			*v = min
		}
	}
	clamp(&o.MinBaseQual, "basequal", 0)
	clamp(&o.MinCoverage, "coverage", 1)
	clamp(&o.MinMapQ, "mapqual", 0)
	clamp(&o.BatchSize, "batch-size", 1)
	if o.UpdateFreq < minUpdateFreq {
		o.UpdateFreq = minUpdateFreq
	}
}

// MatchOpts configures MateRescue.
type MatchOpts struct {
	// BatchSize is the number of query records read per pass over the subject.
	BatchSize int
	// Index causes a .bai index to be built for the output.
	Index bool
	// MergeSorted merges the batch outputs by coordinate instead of
	// concatenating them. The subject must be coordinate-sorted.
	MergeSorted bool
}

// DefaultMatchOpts are the default values of MatchOpts.
var DefaultMatchOpts = MatchOpts{
	BatchSize: 1000000,
}

func (o Opts) matchOpts(mergeSorted bool) MatchOpts {
	return MatchOpts{BatchSize: o.BatchSize, MergeSorted: mergeSorted}
}
