package rescue_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/materescue/rescue"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestSummaryTSV(t *testing.T) {
	s := &rescue.Summary{
		Classify: rescue.ClassifyStats{
			Total:     10,
			Passed:    4,
			PerBucket: [rescue.NumBuckets]int{1, 1, 0, 2},
		},
		Regions:    3,
		HalfMapped: 2,
	}
	var buf bytes.Buffer
	require.NoError(t, s.WriteTSV(&buf))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	expect.EQ(t, lines[0], "metric\tvalue")
	expect.EQ(t, lines[1], "total_reads\t10")
	expect.EQ(t, lines[5], "passed_quality\t4")
	expect.EQ(t, lines[6], "regions\t3")
	expect.EQ(t, lines[len(lines)-1], "bucket_mapped_mate_unmapped\t2")

	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tmpDir, "summary.tsv")
	require.NoError(t, rescue.WriteSummary(vcontext.Background(), path, s))
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	expect.EQ(t, string(data), buf.String())
}

func TestBucketString(t *testing.T) {
	expect.EQ(t, rescue.BothUnmappedR1.String(), "both-unmapped-r1")
	expect.EQ(t, rescue.MappedMateUnmapped.String(), "mapped-mate-unmapped")
	expect.EQ(t, rescue.Bucket(7).String(), "Bucket(7)")
}
