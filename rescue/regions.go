package rescue

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/materescue/encoding/bamprovider"
	"github.com/grailbio/materescue/interval"
	"github.com/grailbio/materescue/pileup"
)

// BuildRegions piles up the coordinate-sorted BAM file at path and returns
// the maximal regions in which every position has depth at least
// minCoverage.
func BuildRegions(ctx context.Context, path string, minCoverage int) (regions interval.Regions, err error) {
	provider := bamprovider.NewProvider(path, bamprovider.ProviderOpts{Lightweight: true})
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if _, err = provider.GetHeader(); err != nil {
		return nil, errors.E(err, "build regions")
	}
	builder := interval.NewRegionBuilder(minCoverage)
	iter := provider.NewIterator()
	nRecs, err := pileup.ComputeCoverage(iter, builder)
	if e := iter.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, errors.E(err, "build regions", path)
	}
	builder.Finalize()
	regions = builder.Regions()
	log.Printf("build regions: %d records in %s yield %d regions covering %d bases",
		nRecs, path, len(regions), regions.TotalLength())
	return regions, nil
}

// writeRegionsBED writes regions to path in BED format.
func writeRegionsBED(ctx context.Context, path string, regions interval.Regions, header *sam.Header) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	var e errors.Once
	e.Set(regions.WriteBED(out.Writer(ctx), header))
	e.Set(out.Close(ctx))
	return e.Err()
}
