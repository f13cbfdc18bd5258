package block

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
)

// Round is a monotonic, non-negative DAG round number.
type Round uint64

// AuthorityIndex identifies a committee member in {0..N-1}.
type AuthorityIndex int32

// BlockDigest is the 32-byte digest of a block's canonical serialization.
type BlockDigest [32]byte

// String truncates the digest to 4 base64 characters for display. Full
// equality comparisons must always use Equal, never the truncated string.
func (d BlockDigest) String() string {
	return base64.RawURLEncoding.EncodeToString(d[:])[:4]
}

// Equal compares the full 32-byte digest.
func (d BlockDigest) Equal(other BlockDigest) bool {
	return d == other
}

// BlockRef identifies a block's position and content: round, author, and
// content digest.
type BlockRef struct {
	Round  Round
	Author AuthorityIndex
	Digest BlockDigest
}

func (r BlockRef) String() string {
	return fmt.Sprintf("B%d(%d,%s)", r.Round, r.Author, r.Digest)
}

// Slot identifies the (round, author) position a leader may occupy,
// independent of which block digest ultimately fills it.
type Slot struct {
	Round  Round
	Author AuthorityIndex
}

func (s Slot) String() string {
	return fmt.Sprintf("Slot(%d,%d)", s.Round, s.Author)
}

// BlockData is the canonical, serializable content of a block.
type BlockData struct {
	Round        Round
	Author       AuthorityIndex
	TimestampMs  uint64
	Ancestors    []BlockRef
	Transactions [][]byte
}

// Block is the capability trait every block version must implement,
// regardless of its concrete wire representation.
type Block interface {
	Reference() BlockRef
	Round() Round
	Author() AuthorityIndex
	Timestamp() time.Time
	Ancestors() []BlockRef
	Transactions() [][]byte
	Digest() BlockDigest
}

// VerifiedBlock is the sole block version (V1): a BlockData payload whose
// digest has been checked against its canonical encoding.
type VerifiedBlock struct {
	data       BlockData
	digest     BlockDigest
	serialized []byte
}

// NewVerifiedBlock re-derives data's canonical digest and returns a
// VerifiedBlock if, and only if, the structural invariants hold: parents
// strictly below this round, and (for non-genesis blocks) at least one
// parent at round-1.
func NewVerifiedBlock(data BlockData) (*VerifiedBlock, error) {
	for _, p := range data.Ancestors {
		if p.Round >= data.Round {
			return nil, fmt.Errorf("%w: parent %s not strictly below block round %d", cerrors.ErrProtocolViolation, p, data.Round)
		}
	}
	if data.Round > 0 {
		hasImmediateParent := false
		for _, p := range data.Ancestors {
			if p.Round == data.Round-1 {
				hasImmediateParent = true
				break
			}
		}
		if !hasImmediateParent {
			return nil, fmt.Errorf("%w: block at round %d has no parent at round %d", cerrors.ErrProtocolViolation, data.Round, data.Round-1)
		}
	} else if len(data.Ancestors) != 0 {
		return nil, fmt.Errorf("%w: genesis block must have no ancestors", cerrors.ErrProtocolViolation)
	}

	serialized := encodeBlockData(data)
	digest := BlockDigest(sha256.Sum256(serialized))
	return &VerifiedBlock{data: data, digest: digest, serialized: serialized}, nil
}

// VerifyDigest re-derives the digest from serialized bytes and checks it
// matches the claimed digest, for blocks arriving over the wire.
func VerifyDigest(serialized []byte, claimed BlockDigest) error {
	got := BlockDigest(sha256.Sum256(serialized))
	if !got.Equal(claimed) {
		return fmt.Errorf("%w: block digest mismatch: got %s want %s", cerrors.ErrProtocolViolation, got, claimed)
	}
	return nil
}

func (b *VerifiedBlock) Reference() BlockRef {
	return BlockRef{Round: b.data.Round, Author: b.data.Author, Digest: b.digest}
}

func (b *VerifiedBlock) Round() Round               { return b.data.Round }
func (b *VerifiedBlock) Author() AuthorityIndex      { return b.data.Author }
func (b *VerifiedBlock) Timestamp() time.Time        { return time.UnixMilli(int64(b.data.TimestampMs)) }
func (b *VerifiedBlock) Ancestors() []BlockRef        { return b.data.Ancestors }
func (b *VerifiedBlock) Transactions() [][]byte       { return b.data.Transactions }
func (b *VerifiedBlock) Digest() BlockDigest          { return b.digest }
func (b *VerifiedBlock) Serialized() []byte           { return b.serialized }

// GenesisBlocks builds the one genesis block per authority: round 0,
// empty ancestors, deterministic (no signature required).
func GenesisBlocks(numAuthorities int) ([]*VerifiedBlock, error) {
	blocks := make([]*VerifiedBlock, 0, numAuthorities)
	for i := 0; i < numAuthorities; i++ {
		vb, err := NewVerifiedBlock(BlockData{
			Round:  0,
			Author: AuthorityIndex(i),
		})
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, vb)
	}
	return blocks, nil
}

// DeserializeBlock parses the canonical wire representation produced by
// encodeBlockData, recomputes its digest, and builds a VerifiedBlock. Used
// by pkg/blockstore to reload persisted blocks without re-running the
// structural ancestor checks a freshly-proposed block needs.
func DeserializeBlock(data []byte) (*VerifiedBlock, error) {
	d, err := decodeBlockData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed block: %v", cerrors.ErrProtocolViolation, err)
	}
	digest := BlockDigest(sha256.Sum256(data))
	return &VerifiedBlock{data: d, digest: digest, serialized: data}, nil
}

func decodeBlockData(data []byte) (BlockData, error) {
	var d BlockData
	r := bytes.NewReader(data)
	var tmp [8]byte

	if _, err := r.Read(tmp[:]); err != nil {
		return d, fmt.Errorf("read round: %w", err)
	}
	d.Round = Round(binary.BigEndian.Uint64(tmp[:]))

	if _, err := r.Read(tmp[:4]); err != nil {
		return d, fmt.Errorf("read author: %w", err)
	}
	d.Author = AuthorityIndex(binary.BigEndian.Uint32(tmp[:4]))

	if _, err := r.Read(tmp[:]); err != nil {
		return d, fmt.Errorf("read timestamp: %w", err)
	}
	d.TimestampMs = binary.BigEndian.Uint64(tmp[:])

	if _, err := r.Read(tmp[:4]); err != nil {
		return d, fmt.Errorf("read ancestor count: %w", err)
	}
	numAncestors := binary.BigEndian.Uint32(tmp[:4])
	d.Ancestors = make([]BlockRef, 0, numAncestors)
	for i := uint32(0); i < numAncestors; i++ {
		var ref BlockRef
		if _, err := r.Read(tmp[:]); err != nil {
			return d, fmt.Errorf("read ancestor %d round: %w", i, err)
		}
		ref.Round = Round(binary.BigEndian.Uint64(tmp[:]))
		if _, err := r.Read(tmp[:4]); err != nil {
			return d, fmt.Errorf("read ancestor %d author: %w", i, err)
		}
		ref.Author = AuthorityIndex(binary.BigEndian.Uint32(tmp[:4]))
		if _, err := r.Read(ref.Digest[:]); err != nil {
			return d, fmt.Errorf("read ancestor %d digest: %w", i, err)
		}
		d.Ancestors = append(d.Ancestors, ref)
	}

	if _, err := r.Read(tmp[:4]); err != nil {
		return d, fmt.Errorf("read tx count: %w", err)
	}
	numTx := binary.BigEndian.Uint32(tmp[:4])
	d.Transactions = make([][]byte, 0, numTx)
	for i := uint32(0); i < numTx; i++ {
		if _, err := r.Read(tmp[:4]); err != nil {
			return d, fmt.Errorf("read tx %d length: %w", i, err)
		}
		n := binary.BigEndian.Uint32(tmp[:4])
		tx := make([]byte, n)
		if n > 0 {
			if _, err := r.Read(tx); err != nil {
				return d, fmt.Errorf("read tx %d body: %w", i, err)
			}
		}
		d.Transactions = append(d.Transactions, tx)
	}

	return d, nil
}

// encodeBlockData produces the canonical byte representation that both the
// digest function and the wire format are defined over.
func encodeBlockData(d BlockData) []byte {
	var buf bytes.Buffer
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], uint64(d.Round))
	buf.Write(tmp[:])
	binary.BigEndian.PutUint32(tmp[:4], uint32(d.Author))
	buf.Write(tmp[:4])
	binary.BigEndian.PutUint64(tmp[:], d.TimestampMs)
	buf.Write(tmp[:])

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(d.Ancestors)))
	buf.Write(tmp[:4])
	for _, a := range d.Ancestors {
		binary.BigEndian.PutUint64(tmp[:], uint64(a.Round))
		buf.Write(tmp[:])
		binary.BigEndian.PutUint32(tmp[:4], uint32(a.Author))
		buf.Write(tmp[:4])
		buf.Write(a.Digest[:])
	}

	binary.BigEndian.PutUint32(tmp[:4], uint32(len(d.Transactions)))
	buf.Write(tmp[:4])
	for _, tx := range d.Transactions {
		binary.BigEndian.PutUint32(tmp[:4], uint32(len(tx)))
		buf.Write(tmp[:4])
		buf.Write(tx)
	}

	return buf.Bytes()
}
