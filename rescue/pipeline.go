package rescue

import (
	"context"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/materescue/encoding/bamprovider"
)

// Run extracts the discordant read pairs of paths.Input into the outputs of
// paths.
//
// The three mate-rescue passes over the classification buckets run
// concurrently. Region construction waits only for the mapped
// reconciliation; the two both-unmapped passes are joined just before their
// outputs are concatenated. If no region meets opts.MinCoverage, Run returns
// ErrNoQualifyingRegions along with the partial summary, and the half-mapped,
// half-unmapped and both-unmapped outputs are not written.
func Run(ctx context.Context, paths *FilePaths, opts Opts) (*Summary, error) {
	opts.Normalize()
	start := time.Now()
	log.Printf("mapqual %d, basequal %d, coverage %d, batch size %d",
		opts.MinMapQ, opts.MinBaseQual, opts.MinCoverage, opts.BatchSize)
	log.Printf("input %s, working directory %s", paths.Input, paths.WorkingDir)

	summary := &Summary{}
	inputProvider := bamprovider.NewProvider(paths.Input)
	header, err := inputProvider.GetHeader()
	if e := inputProvider.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return summary, err
	}

	// 1: route every qualifying record to its bucket.
	outs := ClassifyOutputs{PassedInitial: paths.Filtered}
	outs.Buckets[BothUnmappedR1] = paths.TmpBoth1
	outs.Buckets[BothUnmappedR2] = paths.TmpBoth2
	outs.Buckets[UnmappedMateMapped] = paths.TmpUnmapped
	outs.Buckets[MappedMateUnmapped] = paths.TmpMapped
	if summary.Classify, err = Classify(ctx, paths.Input, outs, opts); err != nil {
		return summary, err
	}
	if paths.Filtered != "" {
		summary.Filtered = summary.Classify.PassedInitial
	}

	// 2: pair up the mates across buckets.
	tasks := taskMap{}
	defer tasks.drain()
	tasks.start(roleMappedReconciliation, func() (int, error) {
		return MateRescue(ctx, paths.TmpUnmapped, paths.TmpMapped, paths.WorkingDir,
			paths.TmpMappedFiltered, opts.matchOpts(true))
	})
	tasks.start(roleBothUnmappedR2, func() (int, error) {
		return MateRescue(ctx, paths.TmpBoth1, paths.TmpBoth2, paths.WorkingDir,
			paths.TmpBoth2Filtered, opts.matchOpts(false))
	})
	tasks.start(roleBothUnmappedR1, func() (int, error) {
		return MateRescue(ctx, paths.TmpBoth2, paths.TmpBoth1, paths.WorkingDir,
			paths.TmpBoth1Filtered, opts.matchOpts(false))
	})

	// 3: find the regions of sufficient coverage.
	if _, err = tasks.wait(roleMappedReconciliation); err != nil {
		return summary, err
	}
	regions, err := BuildRegions(ctx, paths.TmpMappedFiltered, opts.MinCoverage)
	if err != nil {
		return summary, err
	}
	summary.Regions = len(regions)
	summary.RegionBases = regions.TotalLength()
	if opts.RegionsBED != "" {
		if err = writeRegionsBED(ctx, opts.RegionsBED, regions, header); err != nil {
			return summary, err
		}
	}
	if len(regions) == 0 {
		return summary, ErrNoQualifyingRegions
	}

	// 4: keep the mapped reads in those regions, then fetch their mates.
	if summary.HalfMapped, err = SweepOverlaps(ctx, paths.TmpMappedFiltered, paths.HalfMapped, regions, false); err != nil {
		return summary, err
	}
	if summary.HalfUnmapped, err = MateRescue(ctx, paths.HalfMapped, paths.TmpUnmapped, paths.WorkingDir,
		paths.HalfUnmapped, opts.matchOpts(true)); err != nil {
		return summary, err
	}

	// 5: consolidate the both-unmapped pairs.
	var bothPaths []string
	for _, t := range []struct {
		role taskRole
		path string
	}{
		{roleBothUnmappedR1, paths.TmpBoth1Filtered},
		{roleBothUnmappedR2, paths.TmpBoth2Filtered},
	} {
		if _, err = tasks.wait(t.role); err != nil {
			return summary, err
		}
		bothPaths = append(bothPaths, t.path)
	}
	if summary.BothUnmapped, err = combineBAMs(ctx, header, bothPaths, paths.BothUnmapped, false); err != nil {
		return summary, errors.E(err, "consolidate both-unmapped reads")
	}

	if opts.IndexOutputs {
		outputs := paths.Outputs()
		err = traverse.Each(len(outputs), func(i int) error {
			indexBestEffort(ctx, outputs[i])
			return nil
		})
		if err != nil {
			return summary, err
		}
	}
	if opts.Checksum {
		if summary.Checksums, err = checksumOutputs(paths); err != nil {
			return summary, err
		}
	}
	if opts.SummaryPath != "" {
		if err = WriteSummary(ctx, opts.SummaryPath, summary); err != nil {
			return summary, err
		}
	}
	log.Printf("finished in %v", time.Since(start))
	summary.Log(paths)
	return summary, nil
}

func checksumOutputs(paths *FilePaths) (map[string]Checksum, error) {
	names := []string{HalfMappedOutput, HalfUnmappedOutput, BothUnmappedOutput}
	outputs := []string{paths.HalfMapped, paths.HalfUnmapped, paths.BothUnmapped}
	checksums := make([]Checksum, len(outputs))
	err := traverse.Each(len(outputs), func(i int) (err error) {
		checksums[i], err = ChecksumBAM(outputs[i])
		return err
	})
	if err != nil {
		return nil, err
	}
	m := make(map[string]Checksum, len(names))
	for i, name := range names {
		m[name] = checksums[i]
	}
	return m, nil
}
