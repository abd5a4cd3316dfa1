package rescue

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/materescue/encoding/bam"
	"github.com/grailbio/materescue/encoding/bamprovider"
	"github.com/grailbio/materescue/interval"
)

// SweepRecords passes to emit each record of iter that overlaps one of
// regions, and returns the number emitted.
//
// iter must be sorted by coordinate, and regions sorted and disjoint. A single
// cursor walks regions: while the record misses the current region and the
// region lies fully left of it, the cursor advances and the same record is
// tested again. Once the cursor runs off the end of regions no later record
// can match, so the sweep stops without reading the rest of iter.
func SweepRecords(iter bamprovider.Iterator, regions interval.Regions, emit func(*sam.Record) error) (n int, err error) {
	if len(regions) == 0 {
		return 0, nil
	}
	cur := 0
	for iter.Scan() {
		r := iter.Record()
		for !regions[cur].Overlaps(r) && regions[cur].FullyLeftOf(r) {
			cur++
			if cur >= len(regions) {
				log.Debug.Printf("sweep: regions exhausted at %s after %d records", r.Name, n)
				return n, nil
			}
		}
		if !regions[cur].Overlaps(r) {
			continue
		}
		if err := emit(r); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}

// SweepOverlaps writes to out the records of the coordinate-sorted BAM file at
// in that overlap one of regions, and returns the number written. If regions
// is empty nothing is read or written. If index is set, a .bai is built for
// out.
func SweepOverlaps(ctx context.Context, in, out string, regions interval.Regions, index bool) (n int, err error) {
	if len(regions) == 0 {
		return 0, nil
	}
	provider := bamprovider.NewProvider(in)
	header, err := provider.GetHeader()
	if err != nil {
		provider.Close() // nolint: errcheck
		return 0, errors.E(err, "sweep")
	}
	w, err := gbam.NewWriter(ctx, out, header)
	if err != nil {
		provider.Close() // nolint: errcheck
		return 0, err
	}
	iter := provider.NewIterator()
	n, err = SweepRecords(iter, regions, w.Write)
	var e errors.Once
	e.Set(err)
	e.Set(iter.Close())
	e.Set(provider.Close())
	e.Set(w.Close())
	if err = e.Err(); err != nil {
		return n, err
	}
	if index {
		indexBestEffort(ctx, out)
	}
	log.Printf("sweep: wrote %d of the records in %s overlapping %d regions to %s", n, in, len(regions), out)
	return n, nil
}
