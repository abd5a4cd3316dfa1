package rescue

import (
	"encoding/binary"
	"hash"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/materescue/encoding/bamprovider"
)

// Checksum is a digest of the records of a BAM file that does not depend on
// their order. Two files holding the same records have equal checksums.
type Checksum struct {
	NRecs int
	// SumPos is the sum of all positions.
	SumPos uint64
	// SumFlags and SumName are sums of per-record hashes of the flags and the
	// name, each salted with the record's position.
	SumFlags uint64
	SumName  uint64
}

func hashField(h hash.Hash64, pos [8]byte, value []byte) uint64 {
	h.Reset()
	h.Write(pos[:])
	h.Write(value)
	return h.Sum64()
}

func (c *Checksum) add(r *sam.Record, h hash.Hash64) {
	c.NRecs++
	c.SumPos += uint64(r.Pos)

	pos := [8]byte{}
	binary.LittleEndian.PutUint32(pos[:], uint32(r.Ref.ID()))
	binary.LittleEndian.PutUint32(pos[4:], uint32(r.Pos))
	flags := [4]byte{}
	binary.LittleEndian.PutUint32(flags[:], uint32(r.Flags))
	c.SumFlags += hashField(h, pos, flags[:])
	c.SumName += hashField(h, pos, unsafe.StringToBytes(r.Name))
}

// Digest folds c into one value.
func (c Checksum) Digest() uint64 {
	return uint64(c.NRecs) ^ c.SumPos ^ (c.SumFlags * 31) ^ (c.SumName * 961)
}

// ChecksumRecords computes the checksum of the records in iter.
func ChecksumRecords(iter bamprovider.Iterator) (Checksum, error) {
	var c Checksum
	h := seahash.New()
	for iter.Scan() {
		c.add(iter.Record(), h)
	}
	return c, iter.Err()
}

// ChecksumBAM computes the checksum of the BAM file at path.
func ChecksumBAM(path string) (c Checksum, err error) {
	provider := bamprovider.NewProvider(path, bamprovider.ProviderOpts{Lightweight: true})
	iter := provider.NewIterator()
	c, err = ChecksumRecords(iter)
	var e errors.Once
	e.Set(err)
	e.Set(iter.Close())
	e.Set(provider.Close())
	if err = e.Err(); err != nil {
		return c, errors.E(err, "checksum", path)
	}
	return c, nil
}
