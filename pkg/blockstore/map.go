package blockstore

import (
	"sync"

	"github.com/cuemby/mysticonsensus/pkg/block"
)

// MapBlockStore is an in-memory Store for committer and commit-log unit
// tests, mirroring the teacher's lightweight in-memory fakes.
type MapBlockStore struct {
	mu            sync.RWMutex
	blocks        map[block.BlockRef]*block.VerifiedBlock
	byRound       map[block.Round][]*block.VerifiedBlock
	latestByAuth  map[block.AuthorityIndex]*block.VerifiedBlock
	commits       map[block.CommitIndex]*block.TrustedCommit
	lastCommitIdx block.CommitIndex
	haveCommit    bool
}

// NewMapBlockStore returns an empty in-memory Store.
func NewMapBlockStore() *MapBlockStore {
	return &MapBlockStore{
		blocks:       make(map[block.BlockRef]*block.VerifiedBlock),
		byRound:      make(map[block.Round][]*block.VerifiedBlock),
		latestByAuth: make(map[block.AuthorityIndex]*block.VerifiedBlock),
		commits:      make(map[block.CommitIndex]*block.TrustedCommit),
	}
}

func (s *MapBlockStore) WriteBatch(blocks []*block.VerifiedBlock, commits []*block.TrustedCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, vb := range blocks {
		ref := vb.Reference()
		s.blocks[ref] = vb
		s.byRound[ref.Round] = append(s.byRound[ref.Round], vb)
		s.latestByAuth[ref.Author] = vb
	}
	for _, tc := range commits {
		idx := tc.Commit().Index()
		s.commits[idx] = tc
		if !s.haveCommit || idx > s.lastCommitIdx {
			s.lastCommitIdx = idx
			s.haveCommit = true
		}
	}
	return nil
}

func (s *MapBlockStore) ReadBlock(ref block.BlockRef) (*block.VerifiedBlock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vb, ok := s.blocks[ref]
	return vb, ok, nil
}

func (s *MapBlockStore) ReadBlocksByRound(round block.Round) ([]*block.VerifiedBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*block.VerifiedBlock, len(s.byRound[round]))
	copy(out, s.byRound[round])
	return out, nil
}

func (s *MapBlockStore) ReadLatestByAuthor(author block.AuthorityIndex) (*block.VerifiedBlock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vb, ok := s.latestByAuth[author]
	return vb, ok, nil
}

func (s *MapBlockStore) ReadCommit(index block.CommitIndex) (*block.TrustedCommit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tc, ok := s.commits[index]
	return tc, ok, nil
}

func (s *MapBlockStore) ReadCommitsAfter(index block.CommitIndex) ([]*block.TrustedCommit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*block.TrustedCommit
	for i := index + 1; i <= s.lastCommitIdx; i++ {
		if tc, ok := s.commits[i]; ok {
			out = append(out, tc)
		}
	}
	return out, nil
}

func (s *MapBlockStore) LastCommit() (*block.TrustedCommit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveCommit {
		return nil, false, nil
	}
	return s.commits[s.lastCommitIdx], true, nil
}
