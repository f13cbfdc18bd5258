package storage

import (
	"sync"

	"github.com/cuemby/mysticonsensus/pkg/block"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// MapObjectStore is an in-memory ObjectStore for objectcache unit tests.
type MapObjectStore struct {
	mu       sync.RWMutex
	latest   map[types.ObjectID]*types.Object
	versions map[types.ObjectID]map[types.Version]*types.Object
	packages map[types.ObjectID]*types.MovePackage
}

// NewMapObjectStore returns an empty in-memory ObjectStore.
func NewMapObjectStore() *MapObjectStore {
	return &MapObjectStore{
		latest:   make(map[types.ObjectID]*types.Object),
		versions: make(map[types.ObjectID]map[types.Version]*types.Object),
		packages: make(map[types.ObjectID]*types.MovePackage),
	}
}

func (s *MapObjectStore) ReadObject(id types.ObjectID) (*types.Object, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.latest[id]
	return obj, ok, nil
}

func (s *MapObjectStore) ReadObjectByKey(id types.ObjectID, version types.Version) (*types.Object, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.versions[id]
	if !ok {
		return nil, false, nil
	}
	obj, ok := versions[version]
	return obj, ok, nil
}

func (s *MapObjectStore) FindObjectLtOrEqVersion(id types.ObjectID, v types.Version) (*types.Object, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.versions[id]
	if !ok {
		return nil, false, nil
	}
	var best *types.Object
	for version, obj := range versions {
		if version > v {
			continue
		}
		if best == nil || version > best.Version {
			best = obj
		}
	}
	return best, best != nil, nil
}

func (s *MapObjectStore) ReadBlocks(refs []block.BlockRef) ([]*block.VerifiedBlock, error) {
	return nil, nil
}

func (s *MapObjectStore) GetPackage(id types.ObjectID) (*types.MovePackage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[id]
	return p, ok, nil
}

func (s *MapObjectStore) WriteBatch(objects []*types.Object, commits []*block.TrustedCommit, markers []types.ReceivedMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range objects {
		s.latest[obj.ID] = obj
		if s.versions[obj.ID] == nil {
			s.versions[obj.ID] = make(map[types.Version]*types.Object)
		}
		s.versions[obj.ID][obj.Version] = obj
	}
	return nil
}

func (s *MapObjectStore) Close() error { return nil }
