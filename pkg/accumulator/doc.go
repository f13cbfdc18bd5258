/*
Package accumulator maintains a commutative, incremental multiset hash
over object digests: a checkpoint's effect on global state is the sum of
its created/mutated object digests minus its deleted objects' prior
digests, and epoch roots are the running union of every checkpoint
accumulator in sequence.

# Construction

Each digest is hashed into a residue mod a large prime via a keyed hash
(sha256 keyed by a fixed domain separator), then accumulated with
modular addition. Addition commutes, so insertion and removal order
never affects the result — the same property an elliptic-curve multiset
hash gives, without requiring a curve library this module does not
otherwise depend on.

# Idempotence

UnionEpoch never recomputes a root that is already durably stored; it
returns the stored value unchanged.
*/
package accumulator
