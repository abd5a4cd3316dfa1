package rescue

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/sync/multierror"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/materescue/encoding/bam"
	"github.com/grailbio/materescue/encoding/bamprovider"
)

// MateRescue writes to out the records of subject whose name appears in
// query, and returns the number of records written.
//
// Query names are read BatchSize records at a time. For each batch the whole
// subject is scanned once; a subject record matching a name in the batch is
// written and the name is removed from the batch, so within a batch each name
// yields at most one subject record. A name that recurs in a later batch may
// match again. Each batch is written to its own file in scratchDir, and the
// batch files are concatenated into out in batch order, so the subject order
// is kept within each batch but out is not re-sorted. With MergeSorted, the
// batch files of a coordinate-sorted subject are instead merged by coordinate.
//
// If query or subject cannot be opened, an error is returned and out is not
// written.
func MateRescue(ctx context.Context, query, subject, scratchDir, out string, opts MatchOpts) (n int, err error) {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	queryProvider := bamprovider.NewProvider(query, bamprovider.ProviderOpts{Lightweight: true})
	subjectProvider := bamprovider.NewProvider(subject)
	defer func() {
		var e errors.Once
		e.Set(queryProvider.Close())
		e.Set(subjectProvider.Close())
		if err == nil {
			err = e.Err()
		}
	}()
	if _, err = queryProvider.GetHeader(); err != nil {
		return 0, errors.E(err, "mate rescue: query")
	}
	header, err := subjectProvider.GetHeader()
	if err != nil {
		return 0, errors.E(err, "mate rescue: subject")
	}

	var batchPaths []string
	defer func() {
		removeAll(ctx, batchPaths)
	}()

	queryIter := queryProvider.NewIterator()
	names := make(map[string]struct{})
	for batch := 1; ; batch++ {
		nQuery := 0
		for nQuery < opts.BatchSize && queryIter.Scan() {
			names[queryIter.Record().Name] = struct{}{}
			nQuery++
		}
		if nQuery == 0 {
			break
		}
		log.Debug.Printf("mate rescue %s: batch %d holds %d names", out, batch, len(names))
		batchPath := filepath.Join(scratchDir, "batch-"+uuid.New().String()+".bam")
		batchPaths = append(batchPaths, batchPath)
		nMatched, err := matchBatch(ctx, subjectProvider, header, names, batchPath)
		if err != nil {
			queryIter.Close() // nolint: errcheck
			return 0, err
		}
		log.Debug.Printf("mate rescue %s: batch %d matched %d records", out, batch, nMatched)
		for name := range names {
			delete(names, name)
		}
	}
	if err := queryIter.Close(); err != nil {
		return 0, err
	}

	if n, err = combineBAMs(ctx, header, batchPaths, out, opts.MergeSorted); err != nil {
		return n, err
	}
	if opts.Index {
		indexBestEffort(ctx, out)
	}
	log.Printf("mate rescue: wrote %d records from %s to %s in %d batches", n, subject, out, len(batchPaths))
	return n, nil
}

// matchBatch scans the subject once and writes the records whose name is in
// names to path. Each matched name is removed from names.
func matchBatch(ctx context.Context, subject bamprovider.Provider, header *sam.Header,
	names map[string]struct{}, path string) (n int, err error) {
	w, err := gbam.NewWriter(ctx, path, header)
	if err != nil {
		return 0, err
	}
	iter := subject.NewIterator()
	for iter.Scan() {
		r := iter.Record()
		if _, ok := names[r.Name]; !ok {
			continue
		}
		if err = w.Write(r); err != nil {
			break
		}
		delete(names, r.Name)
	}
	var e errors.Once
	e.Set(err)
	e.Set(iter.Close())
	e.Set(w.Close())
	return w.Count(), e.Err()
}

// combineBAMs copies the records of paths into a new file at out. The files
// are concatenated in order, or merged by coordinate if sorted is set. If
// paths is empty, out holds only the header.
func combineBAMs(ctx context.Context, header *sam.Header, paths []string, out string, sorted bool) (n int, err error) {
	w, err := gbam.NewWriter(ctx, out, header)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, w.Close()
	}
	providers := make([]bamprovider.Provider, len(paths))
	for i, path := range paths {
		providers[i] = bamprovider.NewProvider(path)
	}
	var combined bamprovider.Provider
	if sorted {
		combined = bamprovider.NewMergeProvider(providers...)
	} else {
		combined = bamprovider.NewConcatProvider(providers...)
	}
	iter := combined.NewIterator()
	for iter.Scan() {
		if err = w.Write(iter.Record()); err != nil {
			break
		}
	}
	var e errors.Once
	e.Set(err)
	e.Set(iter.Close())
	e.Set(combined.Close())
	e.Set(w.Close())
	return w.Count(), e.Err()
}

// indexBestEffort builds the index of the BAM file at path. A failure is
// logged and leaves no index behind.
func indexBestEffort(ctx context.Context, path string) {
	if err := gbam.BuildIndex(ctx, path); err != nil {
		log.Error.Printf("index %s: %v", path, err)
		indexPath := gbam.IndexPath(path)
		if err := file.Remove(ctx, indexPath); err != nil && !errors.Is(errors.NotExist, err) {
			log.Error.Printf("remove stale index %s: %v", indexPath, err)
		}
	}
}

// removeAll deletes the BAM files at paths and their indexes. Failures are
// logged.
func removeAll(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	errs := multierror.NewMultiError(len(paths))
	for _, path := range paths {
		errs.Add(gbam.Remove(ctx, path))
	}
	if err := errs.Err(); err != nil {
		log.Error.Printf("remove temporary files: %v", err)
	}
}
