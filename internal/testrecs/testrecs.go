// Package testrecs builds sam.Records and small BAM files for unittests.
package testrecs

import (
	"io"
	"os"
	"testing"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/require"
)

var (
	// Chr1 and Chr2 are the references of Header.
	Chr1, _ = sam.NewReference("chr1", "", "", 100000, nil, nil)
	Chr2, _ = sam.NewReference("chr2", "", "", 100000, nil, nil)
	// Header is a header with references chr1 and chr2.
	Header, _ = sam.NewHeader(nil, []*sam.Reference{Chr1, Chr2})
)

// Common flag combinations.
const (
	R1 = sam.Paired | sam.Read1
	R2 = sam.Paired | sam.Read2
)

// Cigar returns a cigar with a single match operation of length n.
func Cigar(n int) sam.Cigar {
	return []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, n)}
}

// NewRecord creates a record with no sequence.
func NewRecord(name string, ref *sam.Reference, pos int, flags sam.Flags, mateRef *sam.Reference, matePos int, cigar sam.Cigar) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MateRef = mateRef
	r.MatePos = matePos
	r.Flags = flags
	r.Cigar = cigar
	return r
}

// NewRecordSeq creates a record with the given sequence and qualities. qual
// is in the SAM text encoding (Phred+33); it is stored as raw Phred values,
// the way the BAM reader decodes it.
func NewRecordSeq(name string, ref *sam.Reference, pos int, flags sam.Flags, mateRef *sam.Reference, matePos int,
	cigar sam.Cigar, seq, qual string) *sam.Record {
	if len(seq) != len(qual) {
		panic("seq and qual must be equal length")
	}
	r := NewRecord(name, ref, pos, flags, mateRef, matePos, cigar)
	r.Seq = sam.NewSeq([]byte(seq))
	r.Qual = make([]byte, len(qual))
	for i := range qual {
		r.Qual[i] = qual[i] - 33
	}
	return r
}

// WriteBAM writes recs to a new BAM file at path.
func WriteBAM(t testing.TB, path string, header *sam.Header, recs []*sam.Record) {
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, header, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
}

// ReadRecords reads all the records in the BAM file at path, in file order.
func ReadRecords(t testing.TB, path string) []*sam.Record {
	in, err := os.Open(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, in.Close())
	}()
	reader, err := bam.NewReader(in, 1)
	require.NoError(t, err)
	var recs []*sam.Record
	for {
		r, err := reader.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		recs = append(recs, r)
	}
	require.NoError(t, reader.Close())
	return recs
}

// ReadNames returns the names of the records in the BAM file at path, in file
// order.
func ReadNames(t testing.TB, path string) []string {
	var names []string
	for _, r := range ReadRecords(t, path) {
		names = append(names, r.Name)
	}
	return names
}

// Names returns the names of recs.
func Names(recs []*sam.Record) []string {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	return names
}
