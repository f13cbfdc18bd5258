package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/blockstore"
	"github.com/cuemby/mysticonsensus/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketObjects      = []byte("objects")
	bucketObjectsByKey = []byte("objects_by_key")
	bucketPackages     = []byte("packages")
	bucketMarkers      = []byte("markers")
)

// BoltObjectStore is the production ObjectStore, backed by a bbolt
// database shared with pkg/blockstore's block and commit buckets.
type BoltObjectStore struct {
	db    *bolt.DB
	owned bool
	blocks *blockstore.BoltBlockStore
}

// NewBoltObjectStore opens <dataDir>/consensus.db, creating the object,
// package, and marker buckets plus pkg/blockstore's block/commit
// buckets on the same database handle.
func NewBoltObjectStore(dataDir string) (*BoltObjectStore, error) {
	dbPath := filepath.Join(dataDir, "consensus.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	store, err := openBoltObjectStore(db, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewBoltObjectStoreOn wraps an already-open database handle owned by the
// caller, so one *bolt.DB can back the object store, block store, and
// commit log together; Close on the returned store leaves the handle open.
func NewBoltObjectStoreOn(db *bolt.DB) (*BoltObjectStore, error) {
	return openBoltObjectStore(db, false)
}

func openBoltObjectStore(db *bolt.DB, owned bool) (*BoltObjectStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketObjects, bucketObjectsByKey, bucketPackages, bucketMarkers} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	blocks, err := blockstore.OpenBoltBlockStore(db)
	if err != nil {
		return nil, err
	}

	return &BoltObjectStore{db: db, owned: owned, blocks: blocks}, nil
}

func versionKey(id types.ObjectID, version types.Version) []byte {
	key := make([]byte, 32+8)
	copy(key, id[:])
	binary.BigEndian.PutUint64(key[32:], uint64(version))
	return key
}

// ReadObject returns the latest known version of id.
func (s *BoltObjectStore) ReadObject(id types.ObjectID) (*types.Object, bool, error) {
	var obj *types.Object
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketObjects).Get(id[:])
		if data == nil {
			return nil
		}
		var o types.Object
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		obj = &o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return obj, obj != nil, nil
}

// ReadObjectByKey returns the exact (id, version) pair, if stored.
func (s *BoltObjectStore) ReadObjectByKey(id types.ObjectID, version types.Version) (*types.Object, bool, error) {
	var obj *types.Object
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketObjectsByKey).Get(versionKey(id, version))
		if data == nil {
			return nil
		}
		var o types.Object
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		obj = &o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return obj, obj != nil, nil
}

// ReadBlocks resolves refs against the shared block store.
func (s *BoltObjectStore) ReadBlocks(refs []block.BlockRef) ([]*block.VerifiedBlock, error) {
	out := make([]*block.VerifiedBlock, 0, len(refs))
	for _, ref := range refs {
		vb, ok, err := s.blocks.ReadBlock(ref)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, vb)
		}
	}
	return out, nil
}

// GetPackage returns the Move package for id, if stored.
func (s *BoltObjectStore) GetPackage(id types.ObjectID) (*types.MovePackage, bool, error) {
	var pkg *types.MovePackage
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPackages).Get(id[:])
		if data == nil {
			return nil
		}
		var p types.MovePackage
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		pkg = &p
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return pkg, pkg != nil, nil
}

// WriteBatch durably writes objects (both the latest-version index and
// the full version history) and received markers in one bbolt
// transaction, then writes commits through the shared block store in a
// second transaction. The two are not atomic together: if the commit
// write fails, the objects and markers stay written.
func (s *BoltObjectStore) WriteBatch(objects []*types.Object, commits []*block.TrustedCommit, markers []types.ReceivedMarker) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		ob := tx.Bucket(bucketObjects)
		obk := tx.Bucket(bucketObjectsByKey)
		for _, obj := range objects {
			data, err := json.Marshal(obj)
			if err != nil {
				return fmt.Errorf("marshal object %s: %w", obj.ID, err)
			}
			if err := ob.Put(obj.ID[:], data); err != nil {
				return fmt.Errorf("put object %s: %w", obj.ID, err)
			}
			if err := obk.Put(versionKey(obj.ID, obj.Version), data); err != nil {
				return fmt.Errorf("put object %s@%d: %w", obj.ID, obj.Version, err)
			}
		}

		mb := tx.Bucket(bucketMarkers)
		for _, m := range markers {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal marker for %s: %w", m.ObjectID, err)
			}
			key := versionKey(m.ObjectID, m.Version)
			if err := mb.Put(key, data); err != nil {
				return fmt.Errorf("put marker for %s: %w", m.ObjectID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(commits) > 0 {
		if err := s.blocks.WriteBatch(nil, commits); err != nil {
			return fmt.Errorf("write commits: %w", err)
		}
	}
	return nil
}

// BlockStore exposes the shared block store, so pkg/node can hand the
// same instance to pkg/committer and pkg/commitlog rather than opening a
// second bbolt handle on the same file.
func (s *BoltObjectStore) BlockStore() *blockstore.BoltBlockStore {
	return s.blocks
}

// Close closes the underlying database, if this store opened it itself.
func (s *BoltObjectStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// FindObjectLtOrEqVersion scans id's version history for the highest
// version not exceeding v, for pkg/objectcache's fallthrough once both
// cache tiers have missed.
func (s *BoltObjectStore) FindObjectLtOrEqVersion(id types.ObjectID, v types.Version) (*types.Object, bool, error) {
	var best *types.Object
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketObjectsByKey).Cursor()
		for k, data := c.Seek(id[:]); k != nil && matchVersionPrefix(k, id); k, data = c.Next() {
			var o types.Object
			if err := json.Unmarshal(data, &o); err != nil {
				return err
			}
			if o.Version > v {
				break
			}
			if best == nil || o.Version > best.Version {
				obj := o
				best = &obj
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return best, best != nil, nil
}

// matchVersionPrefix reports whether key is a versioned key for id,
// used by range scans that need every version of one object.
func matchVersionPrefix(key []byte, id types.ObjectID) bool {
	return bytes.HasPrefix(key, id[:])
}
