package block

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
)

// CommitIndex is the position of a commit in the chain-linked commit
// sequence; commit indices start at 1 and never skip.
type CommitIndex uint32

// CommitDigest is the 32-byte digest of a commit's canonical serialization.
type CommitDigest [32]byte

// String truncates the digest to 4 base64 characters for display.
func (d CommitDigest) String() string {
	return base64.RawURLEncoding.EncodeToString(d[:])[:4]
}

// Equal compares the full 32-byte digest.
func (d CommitDigest) Equal(other CommitDigest) bool {
	return d == other
}

// commitVersionV1 tags the sole commit wire format this implementation
// produces. A future format adds a new tag rather than renumbering this
// one; DeserializeCommit rejects any tag it does not recognize.
const commitVersionV1 = 1

// Commit is the capability trait every commit version must implement.
type Commit interface {
	Index() CommitIndex
	PreviousDigest() CommitDigest
	Leader() BlockRef
	Blocks() []BlockRef
}

// CommitV1 is the sole concrete commit format.
type CommitV1 struct {
	CommitIndex_    CommitIndex
	PrevDigest      CommitDigest
	LeaderRef       BlockRef
	BlockRefs       []BlockRef
}

func (c *CommitV1) Index() CommitIndex          { return c.CommitIndex_ }
func (c *CommitV1) PreviousDigest() CommitDigest { return c.PrevDigest }
func (c *CommitV1) Leader() BlockRef             { return c.LeaderRef }
func (c *CommitV1) Blocks() []BlockRef           { return c.BlockRefs }

// serializeCommit produces the canonical byte representation a commit's
// digest is computed over, prefixed with its version tag.
func serializeCommit(c Commit) []byte {
	var buf bytes.Buffer
	var tmp [8]byte

	buf.WriteByte(commitVersionV1)

	binary.BigEndian.PutUint32(tmp[:4], uint32(c.Index()))
	buf.Write(tmp[:4])

	prev := c.PreviousDigest()
	buf.Write(prev[:])

	writeRef := func(r BlockRef) {
		binary.BigEndian.PutUint64(tmp[:], uint64(r.Round))
		buf.Write(tmp[:])
		binary.BigEndian.PutUint32(tmp[:4], uint32(r.Author))
		buf.Write(tmp[:4])
		buf.Write(r.Digest[:])
	}

	writeRef(c.Leader())

	blocks := c.Blocks()
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(blocks)))
	buf.Write(tmp[:4])
	for _, b := range blocks {
		writeRef(b)
	}

	return buf.Bytes()
}

// DeserializeCommit parses a wire-format commit, rejecting any version tag
// it does not recognize and returning the caller-usable Commit value
// together with its precomputed digest.
func DeserializeCommit(data []byte) (Commit, CommitDigest, error) {
	if len(data) < 1 {
		return nil, CommitDigest{}, fmt.Errorf("commit payload too short")
	}
	tag := data[0]
	if tag != commitVersionV1 {
		return nil, CommitDigest{}, fmt.Errorf("%w: unknown commit version tag %d", cerrors.ErrProtocolViolation, tag)
	}

	r := bytes.NewReader(data[1:])
	var tmp [8]byte

	if _, err := r.Read(tmp[:4]); err != nil {
		return nil, CommitDigest{}, fmt.Errorf("read commit index: %w", err)
	}
	idx := CommitIndex(binary.BigEndian.Uint32(tmp[:4]))

	var prev CommitDigest
	if _, err := r.Read(prev[:]); err != nil {
		return nil, CommitDigest{}, fmt.Errorf("read previous digest: %w", err)
	}

	readRef := func() (BlockRef, error) {
		var ref BlockRef
		if _, err := r.Read(tmp[:]); err != nil {
			return ref, err
		}
		ref.Round = Round(binary.BigEndian.Uint64(tmp[:]))
		if _, err := r.Read(tmp[:4]); err != nil {
			return ref, err
		}
		ref.Author = AuthorityIndex(binary.BigEndian.Uint32(tmp[:4]))
		if _, err := r.Read(ref.Digest[:]); err != nil {
			return ref, err
		}
		return ref, nil
	}

	leader, err := readRef()
	if err != nil {
		return nil, CommitDigest{}, fmt.Errorf("read leader ref: %w", err)
	}

	if _, err := r.Read(tmp[:4]); err != nil {
		return nil, CommitDigest{}, fmt.Errorf("read block count: %w", err)
	}
	count := binary.BigEndian.Uint32(tmp[:4])
	blocks := make([]BlockRef, 0, count)
	for i := uint32(0); i < count; i++ {
		ref, err := readRef()
		if err != nil {
			return nil, CommitDigest{}, fmt.Errorf("read block ref %d: %w", i, err)
		}
		blocks = append(blocks, ref)
	}

	c := &CommitV1{CommitIndex_: idx, PrevDigest: prev, LeaderRef: leader, BlockRefs: blocks}
	digest := CommitDigest(sha256.Sum256(data))
	return c, digest, nil
}

// TrustedCommit wraps a Commit whose digest has either been locally
// produced or certified by a quorum of authority signatures.
type TrustedCommit struct {
	commit     Commit
	digest     CommitDigest
	serialized []byte
}

func (t *TrustedCommit) Commit() Commit           { return t.commit }
func (t *TrustedCommit) Digest() CommitDigest     { return t.digest }
func (t *TrustedCommit) Serialized() []byte       { return t.serialized }

// NewTrustedCommit wraps a commit this node produced itself, computing its
// digest directly rather than verifying a remote certification.
func NewTrustedCommit(c Commit) *TrustedCommit {
	serialized := serializeCommit(c)
	digest := CommitDigest(sha256.Sum256(serialized))
	return &TrustedCommit{commit: c, digest: digest, serialized: serialized}
}

// Verifier checks a quorum-certifying signature set over a message.
type Verifier interface {
	VerifyQuorumSignatures(committee Committee, message []byte, signers []AuthorityIndex, signatures [][]byte) error
}

// VerifyAndTrustCommit certifies a remotely-received commit: it checks
// that signers form a quorum of committee stake and that their signatures
// verify over the commit's canonical serialization, then wraps it as a
// TrustedCommit.
func VerifyAndTrustCommit(committee Committee, v Verifier, c Commit, signers []AuthorityIndex, signatures [][]byte) (*TrustedCommit, error) {
	if !committee.IsQuorum(signers) {
		return nil, fmt.Errorf("commit %d: signers do not form a quorum", c.Index())
	}
	serialized := serializeCommit(c)
	if err := v.VerifyQuorumSignatures(committee, serialized, signers, signatures); err != nil {
		return nil, fmt.Errorf("commit %d: %w", c.Index(), err)
	}
	digest := CommitDigest(sha256.Sum256(serialized))
	return &TrustedCommit{commit: c, digest: digest, serialized: serialized}, nil
}
