package blockstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/block"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketBlocks         = []byte("blocks")
	bucketBlocksByRound  = []byte("blocks_by_round")
	bucketBlocksByAuthor = []byte("blocks_latest_by_author")
	bucketCommits        = []byte("commits")
	bucketCommitsLatest  = []byte("commits_latest")
)

var latestCommitKey = []byte("latest")

// BoltBlockStore persists blocks and commits in a shared bbolt database.
// Bucket layout mirrors the teacher's bucket-per-entity convention: one
// bucket holding the primary record, secondary buckets holding indices
// over it.
type BoltBlockStore struct {
	db *bolt.DB
}

// OpenBoltBlockStore creates the block and commit buckets (if absent) on
// an already-open database, so the process's single bbolt.DB handle can
// be shared across pkg/blockstore, pkg/storage, and pkg/commitlog.
func OpenBoltBlockStore(db *bolt.DB) (*BoltBlockStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketBlocks, bucketBlocksByRound, bucketBlocksByAuthor, bucketCommits, bucketCommitsLatest} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltBlockStore{db: db}, nil
}

// blockKey is round|author|digest, big-endian round prefix so a bucket
// cursor naturally walks rounds in ascending order.
func blockKey(ref block.BlockRef) []byte {
	key := make([]byte, 8+4+32)
	binary.BigEndian.PutUint64(key[0:8], uint64(ref.Round))
	binary.BigEndian.PutUint32(key[8:12], uint32(ref.Author))
	copy(key[12:], ref.Digest[:])
	return key
}

func roundPrefix(round block.Round) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(round))
	return key
}

func authorKey(author block.AuthorityIndex) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(author))
	return key
}

func commitKey(index block.CommitIndex) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(index))
	return key
}

// WriteBatch writes blocks and commits inside a single transaction so
// readers never observe a commit referencing an unwritten block.
func (s *BoltBlockStore) WriteBatch(blocks []*block.VerifiedBlock, commits []*block.TrustedCommit) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bb := tx.Bucket(bucketBlocks)
		byRound := tx.Bucket(bucketBlocksByRound)
		byAuthor := tx.Bucket(bucketBlocksByAuthor)

		for _, vb := range blocks {
			ref := vb.Reference()
			key := blockKey(ref)
			if err := bb.Put(key, vb.Serialized()); err != nil {
				return fmt.Errorf("put block %s: %w", ref, err)
			}
			if err := byRound.Put(key, nil); err != nil {
				return fmt.Errorf("index block %s by round: %w", ref, err)
			}
			if err := byAuthor.Put(authorKey(ref.Author), key); err != nil {
				return fmt.Errorf("index block %s by author: %w", ref, err)
			}
		}

		cb := tx.Bucket(bucketCommits)
		latest := tx.Bucket(bucketCommitsLatest)
		for _, tc := range commits {
			idx := tc.Commit().Index()
			if err := cb.Put(commitKey(idx), tc.Serialized()); err != nil {
				return fmt.Errorf("put commit %d: %w", idx, err)
			}
			if err := latest.Put(latestCommitKey, commitKey(idx)); err != nil {
				return fmt.Errorf("update latest commit pointer: %w", err)
			}
		}
		return nil
	})
}

// ReadBlock returns the block for ref, reading inside a single db.View so
// a reader never observes a torn write.
func (s *BoltBlockStore) ReadBlock(ref block.BlockRef) (*block.VerifiedBlock, bool, error) {
	var vb *block.VerifiedBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketBlocks).Get(blockKey(ref))
		if data == nil {
			return nil
		}
		parsed, err := block.DeserializeBlock(append([]byte(nil), data...))
		if err != nil {
			return err
		}
		vb = parsed
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return vb, vb != nil, nil
}

// ReadBlocksByRound scans the round index for every block at round,
// returning them ordered by author.
func (s *BoltBlockStore) ReadBlocksByRound(round block.Round) ([]*block.VerifiedBlock, error) {
	var out []*block.VerifiedBlock
	prefix := roundPrefix(round)
	err := s.db.View(func(tx *bolt.Tx) error {
		bb := tx.Bucket(bucketBlocks)
		c := tx.Bucket(bucketBlocksByRound).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := bb.Get(k)
			if data == nil {
				continue
			}
			vb, err := block.DeserializeBlock(append([]byte(nil), data...))
			if err != nil {
				return err
			}
			out = append(out, vb)
		}
		return nil
	})
	return out, err
}

// ReadLatestByAuthor returns the most recently written block by author.
func (s *BoltBlockStore) ReadLatestByAuthor(author block.AuthorityIndex) (*block.VerifiedBlock, bool, error) {
	var vb *block.VerifiedBlock
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketBlocksByAuthor).Get(authorKey(author))
		if key == nil {
			return nil
		}
		data := tx.Bucket(bucketBlocks).Get(key)
		if data == nil {
			return nil
		}
		parsed, err := block.DeserializeBlock(append([]byte(nil), data...))
		if err != nil {
			return err
		}
		vb = parsed
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return vb, vb != nil, nil
}

// ReadCommit returns the commit at index.
func (s *BoltBlockStore) ReadCommit(index block.CommitIndex) (*block.TrustedCommit, bool, error) {
	var out *block.TrustedCommit
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCommits).Get(commitKey(index))
		if data == nil {
			return nil
		}
		tc, err := decodeTrustedCommit(data)
		if err != nil {
			return err
		}
		out = tc
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// ReadCommitsAfter returns every commit strictly after index, in order.
func (s *BoltBlockStore) ReadCommitsAfter(index block.CommitIndex) ([]*block.TrustedCommit, error) {
	var out []*block.TrustedCommit
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCommits).Cursor()
		for k, v := c.Seek(commitKey(index + 1)); k != nil; k, v = c.Next() {
			tc, err := decodeTrustedCommit(v)
			if err != nil {
				return err
			}
			out = append(out, tc)
		}
		return nil
	})
	return out, err
}

// LastCommit returns the most recently appended commit.
func (s *BoltBlockStore) LastCommit() (*block.TrustedCommit, bool, error) {
	var out *block.TrustedCommit
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketCommitsLatest).Get(latestCommitKey)
		if key == nil {
			return nil
		}
		data := tx.Bucket(bucketCommits).Get(key)
		if data == nil {
			return nil
		}
		tc, err := decodeTrustedCommit(data)
		if err != nil {
			return err
		}
		out = tc
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func decodeTrustedCommit(data []byte) (*block.TrustedCommit, error) {
	buf := append([]byte(nil), data...)
	c, _, err := block.DeserializeCommit(buf)
	if err != nil {
		return nil, err
	}
	return block.NewTrustedCommit(c), nil
}

// Close closes the underlying database handle.
func (s *BoltBlockStore) Close() error {
	return s.db.Close()
}
