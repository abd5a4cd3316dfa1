package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/materescue/rescue"
)

var (
	mapqual    = flag.Int("mapqual", rescue.DefaultOpts.MinMapQ, "Minimum mapping quality of a mapped read")
	basequal   = flag.Int("basequal", rescue.DefaultOpts.MinBaseQual, "Minimum mean base quality of an unmapped read")
	coverage   = flag.Int("coverage", rescue.DefaultOpts.MinCoverage, "Minimum mapped read coverage of a region")
	batchSize  = flag.Int("batch-size", rescue.DefaultOpts.BatchSize, "Number of reads whose names are held in memory during mate rescue")
	workingDir = flag.String("working-dir", "", "Directory under which temporary files are written (default os.TempDir())")
	deleteWdir = flag.Bool("delete", false, "Delete the temporary files when done")
	noIndex    = flag.Bool("no-index", false, "Do not build .bai indexes for the outputs")
	inputPath  = flag.String("input", "", "Path to the input BAM file (required)")
	mappedPath = flag.String("mapped", "", "Path to output half-mapped file (required)")
	unmapped   = flag.String("unmapped", "", "Path to output half-unmapped file (required)")
	allPath    = flag.String("all", "", "Path to output both-unmapped file (required)")
	filtered   = flag.String("filtered", "", "Path to output filtered file; receives every read passing the initial checks")
	summary    = flag.String("summary", "", "Path to output summary TSV; gzipped if it ends in .gz")
	checksum   = flag.Bool("checksum", false, "Add a checksum of each output to the summary")
	regionsBED = flag.String("regions-bed", "", "Path to output BED file of the coverage regions")
)

const (
	exitSetupError   = 1
	exitNoResults    = 2
	exitRuntimeError = 3
)

// exitCode maps the outcome of a run to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case rescue.IsPathError(err):
		return exitSetupError
	case err == rescue.ErrNoQualifyingRegions:
		return exitNoResults
	default:
		return exitRuntimeError
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -input in.bam -mapped m.bam -unmapped u.bam -all a.bam [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() > 0 {
		log.Error.Printf("unexpected positional arguments: %v", flag.Args())
		usage()
		os.Exit(exitSetupError)
	}
	paths, err := rescue.NewFilePaths(rescue.PathOpts{
		Input:        *inputPath,
		WorkingDir:   *workingDir,
		HalfMapped:   *mappedPath,
		HalfUnmapped: *unmapped,
		BothUnmapped: *allPath,
		Filtered:     *filtered,
		Cleanup:      *deleteWdir,
	})
	if err != nil {
		log.Error.Printf("error constructing file paths: %v", err)
		shutdown()
		os.Exit(exitCode(err))
	}

	opts := rescue.DefaultOpts
	opts.MinMapQ = *mapqual
	opts.MinBaseQual = *basequal
	opts.MinCoverage = *coverage
	opts.BatchSize = *batchSize
	opts.IndexOutputs = !*noIndex
	opts.SummaryPath = *summary
	opts.Checksum = *checksum
	opts.RegionsBED = *regionsBED

	_, err = rescue.Run(vcontext.Background(), paths, opts)
	if e := paths.Cleanup(); e != nil {
		log.Error.Printf("cleanup %s: %v", paths.WorkingDir, e)
	}
	switch code := exitCode(err); code {
	case 0:
		log.Debug.Printf("exiting")
	case exitNoResults:
		log.Error.Printf("no results: %v", err)
		shutdown()
		os.Exit(code)
	default:
		log.Error.Printf("mate rescue failed: %v", err)
		shutdown()
		os.Exit(code)
	}
}
