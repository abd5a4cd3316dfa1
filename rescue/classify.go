package rescue

import (
	"context"
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/materescue/encoding/bam"
	"github.com/grailbio/materescue/encoding/bamprovider"
)

// Bucket identifies one of the classification outputs.
type Bucket int

const (
	// BothUnmappedR1 holds first-of-pair records whose mate is also unmapped.
	BothUnmappedR1 Bucket = iota
	// BothUnmappedR2 holds the other records whose mate is also unmapped.
	BothUnmappedR2
	// UnmappedMateMapped holds unmapped records with a mapped mate.
	UnmappedMateMapped
	// MappedMateUnmapped holds mapped records with an unmapped mate.
	MappedMateUnmapped
	// NumBuckets is the number of buckets.
	NumBuckets
)

var bucketNames = [NumBuckets]string{
	"both-unmapped-r1",
	"both-unmapped-r2",
	"unmapped-mate-mapped",
	"mapped-mate-unmapped",
}

func (b Bucket) String() string {
	if b < 0 || b >= NumBuckets {
		return fmt.Sprintf("Bucket(%d)", int(b))
	}
	return bucketNames[b]
}

// ClassifyStats counts the records seen by a classification pass. Every
// record is counted in exactly one of Excluded, FailedQuality and PerBucket.
type ClassifyStats struct {
	// Total is the number of records read.
	Total int
	// Excluded is the number of records dropped by the inclusion filter.
	Excluded int
	// PassedInitial is the number of records passing the inclusion filter.
	PassedInitial int
	// FailedQuality is the number of records dropped by the quality filter.
	FailedQuality int
	// Passed is the number of records routed to a bucket.
	Passed int
	// PerBucket is the number of records routed to each bucket.
	PerBucket [NumBuckets]int
}

const excludeFlags = sam.Duplicate | sam.ProperPair | sam.QCFail | sam.Secondary | sam.Supplementary

// PassesInclusion reports whether r is a primary, non-duplicate, QC-passing
// member of an improper pair in which at least one end is unmapped.
func PassesInclusion(r *sam.Record) bool {
	return r.Flags&sam.Paired != 0 &&
		r.Flags&excludeFlags == 0 &&
		r.Flags&(sam.Unmapped|sam.MateUnmapped) != 0
}

// MeanBaseQual returns the mean Phred base quality of r. Bases with no
// quality (0xff) count as zero. A record with an empty quality string has no
// mean and yields NaN, which fails every threshold in PassesQuality.
func MeanBaseQual(r *sam.Record) float64 {
	if len(r.Qual) == 0 {
		return math.NaN()
	}
	total := 0
	for _, q := range r.Qual {
		if q != 0xff {
			total += int(q)
		}
	}
	return float64(total) / float64(len(r.Qual))
}

// PassesQuality applies the mapping quality threshold to a mapped record and
// the mean base quality threshold to an unmapped one.
func PassesQuality(r *sam.Record, minMapQ, minBaseQual int) bool {
	if r.Flags&sam.Unmapped == 0 {
		return int(r.MapQ) >= minMapQ
	}
	return MeanBaseQual(r) >= float64(minBaseQual)
}

// BucketOf returns the bucket for a record that passed the inclusion filter.
// It returns an Integrity error if both r and its mate are mapped.
func BucketOf(r *sam.Record) (Bucket, error) {
	unmapped := r.Flags&sam.Unmapped != 0
	mateUnmapped := r.Flags&sam.MateUnmapped != 0
	switch {
	case unmapped && mateUnmapped:
		if r.Flags&sam.Read1 != 0 {
			return BothUnmappedR1, nil
		}
		return BothUnmappedR2, nil
	case unmapped:
		return UnmappedMateMapped, nil
	case mateUnmapped:
		return MappedMateUnmapped, nil
	}
	return -1, errors.E(errors.Integrity, fmt.Sprintf("classify %s: record and mate are both mapped", r.Name))
}

// ClassifyRecords reads iter to the end and routes each record passing both
// filters to route. If passedInitial is non-nil, it receives every record
// passing the inclusion filter, whatever its quality. Progress is logged every
// opts.UpdateFreq records.
func ClassifyRecords(iter bamprovider.Iterator, opts Opts, route func(Bucket, *sam.Record) error,
	passedInitial func(*sam.Record) error) (ClassifyStats, error) {
	var stats ClassifyStats
	updateFreq := opts.UpdateFreq
	if updateFreq < minUpdateFreq {
		updateFreq = minUpdateFreq
	}
	for iter.Scan() {
		r := iter.Record()
		stats.Total++
		if stats.Total%updateFreq == 0 {
			log.Printf("classify: read %d records, %d passed", stats.Total, stats.Passed)
		}
		if !PassesInclusion(r) {
			stats.Excluded++
			continue
		}
		stats.PassedInitial++
		if passedInitial != nil {
			if err := passedInitial(r); err != nil {
				return stats, err
			}
		}
		if !PassesQuality(r, opts.MinMapQ, opts.MinBaseQual) {
			stats.FailedQuality++
			continue
		}
		b, err := BucketOf(r)
		if err != nil {
			return stats, err
		}
		if err := route(b, r); err != nil {
			return stats, err
		}
		stats.Passed++
		stats.PerBucket[b]++
	}
	return stats, iter.Err()
}

// ClassifyOutputs names the files written by Classify.
type ClassifyOutputs struct {
	// Buckets holds the destination of each bucket.
	Buckets [NumBuckets]string
	// PassedInitial, if nonempty, receives every record passing the inclusion
	// filter.
	PassedInitial string
}

// Classify reads the BAM file at in and writes each qualifying record to the
// file of its bucket. The outputs share the header of in.
func Classify(ctx context.Context, in string, outs ClassifyOutputs, opts Opts) (stats ClassifyStats, err error) {
	provider := bamprovider.NewProvider(in)
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	header, err := provider.GetHeader()
	if err != nil {
		return stats, err
	}

	var (
		writers  [NumBuckets]*gbam.Writer
		passed   *gbam.Writer
		closeErr errors.Once
	)
	defer func() {
		for _, w := range writers {
			if w != nil {
				closeErr.Set(w.Close())
			}
		}
		if passed != nil {
			closeErr.Set(passed.Close())
		}
		if err == nil {
			err = closeErr.Err()
		}
	}()
	for b, path := range outs.Buckets {
		if writers[b], err = gbam.NewWriter(ctx, path, header); err != nil {
			return stats, errors.E(err, "classify", Bucket(b).String())
		}
	}
	var passedFn func(*sam.Record) error
	if outs.PassedInitial != "" {
		if passed, err = gbam.NewWriter(ctx, outs.PassedInitial, header); err != nil {
			return stats, errors.E(err, "classify")
		}
		passedFn = passed.Write
	}

	log.Printf("classify: scanning %s for unmapped reads", in)
	iter := provider.NewIterator()
	stats, err = ClassifyRecords(iter, opts, func(b Bucket, r *sam.Record) error {
		return writers[b].Write(r)
	}, passedFn)
	if e := iter.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return stats, err
	}
	log.Printf("classify: %d records, %d excluded, %d failed quality, routed %v",
		stats.Total, stats.Excluded, stats.FailedQuality, stats.PerBucket)
	return stats, nil
}
