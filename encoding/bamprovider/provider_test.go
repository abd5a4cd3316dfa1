package bamprovider_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/materescue/encoding/bamprovider"
	"github.com/grailbio/materescue/internal/testrecs"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

func doRead(t *testing.T, p bamprovider.Provider) []string {
	names := []string{}
	iter := p.NewIterator()
	for iter.Scan() {
		names = append(names, iter.Record().Name)
	}
	require.NoError(t, iter.Err())
	require.NoError(t, iter.Close())
	return names
}

func testRecords() []*sam.Record {
	chr1 := testrecs.Chr1
	return []*sam.Record{
		testrecs.NewRecordSeq("read1", chr1, 10, testrecs.R1, chr1, 50, testrecs.Cigar(4), "ACGT", "IIII"),
		testrecs.NewRecordSeq("read2", chr1, 20, testrecs.R1, chr1, 60, testrecs.Cigar(4), "ACGT", "IIII"),
		testrecs.NewRecordSeq("read3", chr1, 30, testrecs.R2, chr1, 10, testrecs.Cigar(4), "ACGT", "IIII"),
		testrecs.NewRecordSeq("read10", nil, -1, testrecs.R1|sam.Unmapped|sam.MateUnmapped, nil, -1, nil, "ACGT", "IIII"),
	}
}

func TestBAM(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tmpDir, "test.bam")
	testrecs.WriteBAM(t, path, testrecs.Header, testRecords())

	p := bamprovider.NewProvider(path)
	header, err := p.GetHeader()
	require.NoError(t, err)
	require.Equal(t, 2, len(header.Refs()))
	// Repeat to exercise the iterator-reuse code path.
	for i := 0; i < 3; i++ {
		require.Equal(t, []string{"read1", "read2", "read3", "read10"}, doRead(t, p))
	}
	require.NoError(t, p.Close())
}

func TestConcurrentIterators(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tmpDir, "test.bam")
	testrecs.WriteBAM(t, path, testrecs.Header, testRecords())

	p := bamprovider.NewProvider(path)
	i0 := p.NewIterator()
	i1 := p.NewIterator()
	require.True(t, i0.Scan())
	require.True(t, i1.Scan())
	require.True(t, i1.Scan())
	require.Equal(t, "read1", i0.Record().Name)
	require.Equal(t, "read2", i1.Record().Name)
	require.NoError(t, i0.Close())
	require.NoError(t, i1.Close())
	require.NoError(t, p.Close())
}

func TestLightweight(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tmpDir, "test.bam")
	testrecs.WriteBAM(t, path, testrecs.Header, testRecords())

	p := bamprovider.NewProvider(path, bamprovider.ProviderOpts{Lightweight: true})
	iter := p.NewIterator()
	require.True(t, iter.Scan())
	r := iter.Record()
	require.Equal(t, "read1", r.Name)
	require.Equal(t, 10, r.Pos)
	require.Equal(t, 14, r.End())
	require.Empty(t, r.Qual)
	require.NoError(t, iter.Close())
	require.NoError(t, p.Close())
}

func TestError(t *testing.T) {
	p := bamprovider.NewProvider("/nonexistent/file.bam")
	_, err := p.GetHeader()
	require.Error(t, err)

	iter := p.NewIterator()
	require.False(t, iter.Scan())
	require.Error(t, iter.Err())
	require.Error(t, iter.Close())
	require.Error(t, p.Close())
}

func TestConcat(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	recs := testRecords()
	paths := []string{
		filepath.Join(tmpDir, "0.bam"),
		filepath.Join(tmpDir, "1.bam"),
		filepath.Join(tmpDir, "2.bam"),
	}
	testrecs.WriteBAM(t, paths[0], testrecs.Header, recs[2:4])
	testrecs.WriteBAM(t, paths[1], testrecs.Header, nil)
	testrecs.WriteBAM(t, paths[2], testrecs.Header, recs[0:2])

	var providers []bamprovider.Provider
	for _, path := range paths {
		providers = append(providers, bamprovider.NewProvider(path))
	}
	p := bamprovider.NewConcatProvider(providers...)
	header, err := p.GetHeader()
	require.NoError(t, err)
	require.Equal(t, "chr1", header.Refs()[0].Name())
	require.Equal(t, []string{"read3", "read10", "read1", "read2"}, doRead(t, p))
	require.NoError(t, p.Close())
}

func TestMerge(t *testing.T) {
	chr1, chr2 := testrecs.Chr1, testrecs.Chr2
	unmapped := sam.Paired | sam.Read1 | sam.Unmapped | sam.MateUnmapped
	p := bamprovider.NewMergeProvider(
		bamprovider.NewFakeProvider(testrecs.Header, []*sam.Record{
			testrecs.NewRecord("a10", chr1, 10, testrecs.R1, chr1, 50, testrecs.Cigar(4)),
			testrecs.NewRecord("a30", chr1, 30, testrecs.R1, chr1, 50, testrecs.Cigar(4)),
			testrecs.NewRecord("u1", nil, -1, unmapped, nil, -1, nil),
		}),
		bamprovider.NewFakeProvider(testrecs.Header, nil),
		bamprovider.NewFakeProvider(testrecs.Header, []*sam.Record{
			testrecs.NewRecord("b5", chr1, 5, testrecs.R2, chr1, 50, testrecs.Cigar(4)),
			testrecs.NewRecord("b30", chr1, 30, testrecs.R2, chr1, 50, testrecs.Cigar(4)),
			testrecs.NewRecord("b2", chr2, 2, testrecs.R2, chr2, 50, testrecs.Cigar(4)),
		}))
	require.Equal(t, []string{"b5", "a10", "a30", "b30", "b2", "u1"}, doRead(t, p))
	require.NoError(t, p.Close())
}

func TestConcatError(t *testing.T) {
	p := bamprovider.NewConcatProvider(
		bamprovider.NewFakeProvider(testrecs.Header, testRecords()[:1]),
		bamprovider.NewProvider("/nonexistent/file.bam"))
	iter := p.NewIterator()
	require.True(t, iter.Scan())
	require.Equal(t, "read1", iter.Record().Name)
	require.False(t, iter.Scan())
	require.Error(t, iter.Err())
	require.Error(t, iter.Close())
	require.Error(t, p.Close())
}

func TestOpenFailureIterator(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	notBAM := filepath.Join(tmpDir, "garbage.bam")
	require.NoError(t, ioutil.WriteFile(notBAM, []byte("not a bam file"), 0644))

	for _, test := range []struct {
		path string
		kind errors.Kind
	}{
		{filepath.Join(tmpDir, "missing.bam"), errors.NotExist},
		{notBAM, errors.Invalid},
	} {
		p := bamprovider.NewProvider(test.path)
		// Every failed open yields a fresh iterator carrying the error, and
		// none of them counts as active when the provider is closed.
		for i := 0; i < 2; i++ {
			iter := p.NewIterator()
			require.False(t, iter.Scan(), test.path)
			err := iter.Err()
			require.True(t, errors.Is(test.kind, err), "%s: %v", test.path, err)
			require.Equal(t, err, iter.Close())
		}
		err := p.Close()
		require.True(t, errors.Is(test.kind, err), "%s: %v", test.path, err)
	}
}
