package accumulator

import (
	"crypto/sha256"
	"math/big"

	"github.com/cuemby/mysticonsensus/pkg/types"
)

// modulus is the 256-bit prime 2^256 - 189, large enough that collisions
// across the digest space are negligible; the exact value only needs to
// be prime and fixed across the fleet.
var modulus, _ = new(big.Int).SetString(
	"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff43", 16)

// domainSeparator keys the digest-to-residue hash so this accumulator's
// residues never collide with an unrelated use of sha256 over the same
// bytes elsewhere in the system.
var domainSeparator = []byte("mysticonsensus/accumulator/v1")

// Accumulator is a commutative multiset hash over 32-byte object
// digests: Insert and Remove commute, so the accumulated value depends
// only on the multiset of digests currently inserted, never on order.
type Accumulator struct {
	sum *big.Int
}

// New returns the empty accumulator (the identity element).
func New() *Accumulator {
	return &Accumulator{sum: new(big.Int)}
}

// Insert adds digest's residue into the running sum.
func (a *Accumulator) Insert(digest [32]byte) {
	a.sum.Add(a.sum, residue(digest))
	a.sum.Mod(a.sum, modulus)
}

// Remove subtracts digest's residue from the running sum, inverting a
// prior Insert of the same digest.
func (a *Accumulator) Remove(digest [32]byte) {
	a.sum.Sub(a.sum, residue(digest))
	a.sum.Mod(a.sum, modulus)
}

// Digest returns the accumulator's current value as a fixed 32-byte
// digest, left-padded with zeros.
func (a *Accumulator) Digest() [32]byte {
	var out [32]byte
	a.sum.FillBytes(out[:])
	return out
}

// Clone returns an independent copy of a.
func (a *Accumulator) Clone() *Accumulator {
	return &Accumulator{sum: new(big.Int).Set(a.sum)}
}

func residue(digest [32]byte) *big.Int {
	h := sha256.New()
	h.Write(domainSeparator)
	h.Write(digest[:])
	return new(big.Int).Mod(new(big.Int).SetBytes(h.Sum(nil)), modulus)
}

// AccumulateCheckpoint folds one checkpoint's object deltas into a fresh
// accumulator: created and mutated objects' new digests are inserted,
// deleted objects' prior digests are removed.
func AccumulateCheckpoint(created, mutated, deleted []types.ObjectRef) *Accumulator {
	acc := New()
	for _, ref := range created {
		acc.Insert(ref.Digest)
	}
	for _, ref := range mutated {
		acc.Insert(ref.Digest)
	}
	for _, ref := range deleted {
		acc.Remove(ref.Digest)
	}
	return acc
}

// UnionEpoch folds a sequence of checkpoint accumulators into one epoch
// root. If alreadyStored reports an existing root, UnionEpoch returns it
// unchanged rather than re-accumulating.
func UnionEpoch(checkpoints []*Accumulator, alreadyStored func() (*Accumulator, bool)) *Accumulator {
	if alreadyStored != nil {
		if stored, ok := alreadyStored(); ok {
			return stored
		}
	}
	root := New()
	for _, cp := range checkpoints {
		if cp == nil {
			continue
		}
		root.sum.Add(root.sum, cp.sum)
		root.sum.Mod(root.sum, modulus)
	}
	return root
}
