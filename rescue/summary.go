package rescue

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

// Summary reports the outcome of Run.
type Summary struct {
	Classify ClassifyStats
	// Regions is the number of coverage regions, and RegionBases their total
	// length.
	Regions     int
	RegionBases int
	// Record counts of the final outputs.
	HalfMapped   int
	HalfUnmapped int
	BothUnmapped int
	Filtered     int
	// Checksums of the final outputs, keyed by output name, if requested.
	Checksums map[string]Checksum
}

// Names of the final outputs in Summary.Checksums.
const (
	HalfMappedOutput   = "half_mapped"
	HalfUnmappedOutput = "half_unmapped"
	BothUnmappedOutput = "both_unmapped"
)

// Log prints s to the info log.
func (s *Summary) Log(paths *FilePaths) {
	log.Printf("wrote %d half-mapped reads tied to high coverage areas to %s", s.HalfMapped, paths.HalfMapped)
	log.Printf("wrote %d half-unmapped reads tied to high coverage areas to %s", s.HalfUnmapped, paths.HalfUnmapped)
	log.Printf("wrote %d both-unmapped reads to %s", s.BothUnmapped, paths.BothUnmapped)
	if s.Filtered > 0 {
		log.Printf("wrote %d filtered reads to %s", s.Filtered, paths.Filtered)
	}
}

// WriteTSV writes s as two-column "metric value" lines.
func (s *Summary) WriteTSV(w io.Writer) error {
	out := tsv.NewWriter(w)
	out.WriteString("metric")
	out.WriteString("value")
	if err := out.EndLine(); err != nil {
		return err
	}
	rows := []struct {
		name  string
		value int
	}{
		{"total_reads", s.Classify.Total},
		{"excluded_reads", s.Classify.Excluded},
		{"passed_initial_checks", s.Classify.PassedInitial},
		{"failed_quality", s.Classify.FailedQuality},
		{"passed_quality", s.Classify.Passed},
		{"regions", s.Regions},
		{"region_bases", s.RegionBases},
		{HalfMappedOutput, s.HalfMapped},
		{HalfUnmappedOutput, s.HalfUnmapped},
		{BothUnmappedOutput, s.BothUnmapped},
		{"filtered", s.Filtered},
	}
	for b := Bucket(0); b < NumBuckets; b++ {
		rows = append(rows, struct {
			name  string
			value int
		}{"bucket_" + strings.Replace(b.String(), "-", "_", -1), s.Classify.PerBucket[b]})
	}
	for _, row := range rows {
		out.WriteString(row.name)
		out.WriteInt64(int64(row.value))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	for _, name := range []string{HalfMappedOutput, HalfUnmappedOutput, BothUnmappedOutput} {
		c, ok := s.Checksums[name]
		if !ok {
			continue
		}
		out.WriteString(name + "_checksum")
		out.WriteString(fmt.Sprintf("%016x", c.Digest()))
		if err := out.EndLine(); err != nil {
			return err
		}
	}
	return out.Flush()
}

// WriteSummary writes s to path as TSV. The output is gzipped if path ends in
// ".gz".
func WriteSummary(ctx context.Context, path string, s *Summary) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create summary", path)
	}
	defer func() {
		if e := f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	w := f.Writer(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return s.WriteTSV(w)
	}
	gz := gzip.NewWriter(w)
	if err = s.WriteTSV(gz); err != nil {
		gz.Close() // nolint: errcheck
		return err
	}
	return gz.Close()
}
