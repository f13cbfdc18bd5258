package blockstore

import "github.com/cuemby/mysticonsensus/pkg/block"

// Store persists blocks and commits and serves the lookups the committer
// and commit log need.
type Store interface {
	// WriteBatch durably writes blocks and commits in a single atomic
	// unit, so a commit log entry never references an unwritten block.
	WriteBatch(blocks []*block.VerifiedBlock, commits []*block.TrustedCommit) error

	ReadBlock(ref block.BlockRef) (*block.VerifiedBlock, bool, error)
	ReadBlocksByRound(round block.Round) ([]*block.VerifiedBlock, error)
	ReadLatestByAuthor(author block.AuthorityIndex) (*block.VerifiedBlock, bool, error)

	ReadCommit(index block.CommitIndex) (*block.TrustedCommit, bool, error)
	ReadCommitsAfter(index block.CommitIndex) ([]*block.TrustedCommit, error)
	LastCommit() (*block.TrustedCommit, bool, error)
}
