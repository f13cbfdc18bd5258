package commitlog

import (
	"fmt"
	"sync"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/blockstore"
	"github.com/cuemby/mysticonsensus/pkg/cerrors"
)

// Log is the append-only, gap-free sequence of trusted commits.
type Log interface {
	Append(commit *block.TrustedCommit) error
	ReadAfter(index block.CommitIndex) ([]*block.TrustedCommit, error)
	Last() (*block.TrustedCommit, bool, error)
}

// store wraps a blockstore.Store, rejecting appends that would break the
// gap-free, chain-linked invariant the store itself is agnostic to.
type store struct {
	mu    sync.Mutex
	store blockstore.Store
}

// NewLog wraps backing with the append-time chain and gap checks.
func NewLog(backing blockstore.Store) Log {
	return &store{store: backing}
}

// Append rejects a commit whose index is not exactly one past the log's
// current tail, or whose PreviousDigest does not match the tail's
// digest — both are non-recoverable logic errors per the protocol's
// fatal-violation taxonomy, never a condition to silently patch over.
func (s *store) Append(commit *block.TrustedCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok, err := s.store.LastCommit()
	if err != nil {
		return fmt.Errorf("read last commit: %w", err)
	}

	wantIndex := block.CommitIndex(1)
	wantPrev := block.CommitDigest{}
	if ok {
		wantIndex = last.Commit().Index() + 1
		wantPrev = last.Digest()
	}

	if commit.Commit().Index() != wantIndex {
		return fmt.Errorf("%w: commit index %d is not the expected successor %d", cerrors.ErrProtocolViolation, commit.Commit().Index(), wantIndex)
	}
	if commit.Commit().PreviousDigest() != wantPrev {
		return fmt.Errorf("%w: commit %d previous digest does not chain to the log tail", cerrors.ErrProtocolViolation, commit.Commit().Index())
	}

	return s.store.WriteBatch(nil, []*block.TrustedCommit{commit})
}

func (s *store) ReadAfter(index block.CommitIndex) ([]*block.TrustedCommit, error) {
	return s.store.ReadCommitsAfter(index)
}

func (s *store) Last() (*block.TrustedCommit, bool, error) {
	return s.store.LastCommit()
}
