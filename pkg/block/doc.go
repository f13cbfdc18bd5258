/*
Package block implements the DAG consensus data model: blocks, their
references, and the versioned commit records produced by pkg/committer.

Identity for both blocks and commits is a content digest computed over a
canonical serialization; canonical serialization is the sole input to the
digest function, so any two implementations that agree on the wire format
agree on digests.

# Versioned sum types

Block and Commit are exposed as narrow capability interfaces (Round,
Author, Leader, Blocks, ...) over a concrete, tagged wire representation.
Today there is exactly one block format and one commit format (V1); a
future format adds a new tag and a new concrete type without renumbering
the existing tag, and readers reject tags they do not recognize rather
than guessing a layout.

# See Also

  - pkg/blockstore for persistence keyed by BlockRef and CommitIndex
  - pkg/committer for how sub-DAGs are decided and linearized into commits
  - pkg/commitlog for the append-only, chain-linked commit sequence
*/
package block
