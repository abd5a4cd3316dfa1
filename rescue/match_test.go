package rescue_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	gbam "github.com/grailbio/materescue/encoding/bam"
	"github.com/grailbio/materescue/internal/testrecs"
	"github.com/grailbio/materescue/rescue"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const solexa = "SOLEXA-1GA-2_2_FC20EMB:5:"

// subjectRecs creates mapped records named by names, in increasing position.
func subjectRecs(names ...string) []*sam.Record {
	recs := make([]*sam.Record, len(names))
	for i, name := range names {
		recs[i] = mapped(name, 100*(i+1), 60)
	}
	return recs
}

// queryRecs creates unplaced records named by names, in the given order.
func queryRecs(names ...string) []*sam.Record {
	recs := make([]*sam.Record, len(names))
	for i, name := range names {
		recs[i] = unplaced(name, testrecs.R2, highQual)
	}
	return recs
}

type matchFixture struct {
	dir, query, subject, out string
}

func newMatchFixture(t *testing.T, dir string, query, subject []*sam.Record) matchFixture {
	f := matchFixture{
		dir:     dir,
		query:   filepath.Join(dir, "query.bam"),
		subject: filepath.Join(dir, "subject.bam"),
		out:     filepath.Join(dir, "result.bam"),
	}
	testrecs.WriteBAM(t, f.query, testrecs.Header, query)
	testrecs.WriteBAM(t, f.subject, testrecs.Header, subject)
	return f
}

func (f matchFixture) run(t *testing.T, opts rescue.MatchOpts) (int, []string) {
	n, err := rescue.MateRescue(vcontext.Background(), f.query, f.subject, f.dir, f.out, opts)
	require.NoError(t, err)
	return n, testrecs.ReadNames(t, f.out)
}

func scratchFiles(t *testing.T, dir string) []string {
	matches, err := filepath.Glob(filepath.Join(dir, "batch-*"))
	require.NoError(t, err)
	return matches
}

func TestMateRescueBatchOrder(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	a, b, c := solexa+"195:284:685", solexa+"35:583:827", solexa+"248:130:724"
	d, e, f, g := solexa+"236:644:107", solexa+"165:628:70", solexa+"108:485:455", solexa+"240:501:237"
	fx := newMatchFixture(t, tmpDir,
		queryRecs(
			c, a, "unknown1", b, a, // batch 1
			g, e, "unknown2", f, d, // batch 2
			"unknown3"), // batch 3
		subjectRecs(a, b, "other1", c, d, e, "other2", f, g, "other3"))

	n, names := fx.run(t, rescue.MatchOpts{BatchSize: 5})
	expect.EQ(t, n, 7)
	expect.EQ(t, names, []string{a, b, c, d, e, f, g})
	assert.Empty(t, scratchFiles(t, tmpDir))
}

func TestMateRescueBatchesConcatenated(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fx := newMatchFixture(t, tmpDir, queryRecs("c", "a"), subjectRecs("a", "b", "c"))

	// Each batch holds one name, so the output follows query order.
	n, names := fx.run(t, rescue.MatchOpts{BatchSize: 1})
	expect.EQ(t, n, 2)
	expect.EQ(t, names, []string{"c", "a"})

	// A single batch follows subject order.
	_, names = fx.run(t, rescue.MatchOpts{BatchSize: 10})
	expect.EQ(t, names, []string{"a", "c"})

	// Merging keeps the subject's coordinate order across batches.
	_, names = fx.run(t, rescue.MatchOpts{BatchSize: 1, MergeSorted: true})
	expect.EQ(t, names, []string{"a", "c"})
}

func TestMateRescueDuplicateNames(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	// The subject holds two records named "a", e.g. a primary and a secondary
	// alignment.
	fx := newMatchFixture(t, tmpDir, queryRecs("a", "b", "a"), subjectRecs("a", "a", "b"))

	// Within a batch a name is consumed by its first match.
	n, names := fx.run(t, rescue.MatchOpts{BatchSize: 3})
	expect.EQ(t, n, 2)
	expect.EQ(t, names, []string{"a", "b"})

	// A name recurring in a later batch matches again.
	n, names = fx.run(t, rescue.MatchOpts{BatchSize: 2})
	expect.EQ(t, n, 3)
	expect.EQ(t, names, []string{"a", "b", "a"})
}

func TestMateRescueCompleteness(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var query, subject []string
	for i := 0; i < 40; i++ {
		name := string(rune('A'+i%26)) + string(rune('a'+i/26))
		subject = append(subject, name)
		if i%3 != 0 {
			query = append(query, name)
		}
	}
	fx := newMatchFixture(t, tmpDir, queryRecs(query...), subjectRecs(subject...))
	for _, batchSize := range []int{1, 4, 7, 26, 1000} {
		n, names := fx.run(t, rescue.MatchOpts{BatchSize: batchSize})
		expect.EQ(t, n, len(query), "batch size %d", batchSize)
		assert.ElementsMatch(t, names, query, "batch size %d", batchSize)
	}
}

func TestMateRescueEmptyQuery(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fx := newMatchFixture(t, tmpDir, nil, subjectRecs("a", "b"))
	n, names := fx.run(t, rescue.DefaultMatchOpts)
	expect.EQ(t, n, 0)
	assert.Empty(t, names)
}

func TestMateRescueIndex(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	fx := newMatchFixture(t, tmpDir, queryRecs("b", "a"), subjectRecs("a", "b"))
	_, _ = fx.run(t, rescue.MatchOpts{BatchSize: 10, Index: true})
	_, err := os.Stat(gbam.IndexPath(fx.out))
	require.NoError(t, err)

	// Concatenated batches are out of order, so no index is left behind.
	_, names := fx.run(t, rescue.MatchOpts{BatchSize: 1, Index: true})
	expect.EQ(t, names, []string{"b", "a"})
	_, err = os.Stat(gbam.IndexPath(fx.out))
	assert.True(t, os.IsNotExist(err))
}

func TestMateRescueOpenFailure(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	existing := filepath.Join(tmpDir, "existing.bam")
	testrecs.WriteBAM(t, existing, testrecs.Header, subjectRecs("a"))
	missing := filepath.Join(tmpDir, "missing.bam")
	out := filepath.Join(tmpDir, "out.bam")

	_, err := rescue.MateRescue(ctx, missing, existing, tmpDir, out, rescue.DefaultMatchOpts)
	require.Error(t, err)
	_, err = rescue.MateRescue(ctx, existing, missing, tmpDir, out, rescue.DefaultMatchOpts)
	require.Error(t, err)
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}
