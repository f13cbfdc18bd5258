package execution

import (
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// Storage is the capability interface a Move-style runtime mutates
// in-place while executing one transaction.
type Storage interface {
	ReadObject(id types.ObjectID) (*types.Object, bool)
	WriteObject(obj *types.Object) error
	DeleteObject(id types.ObjectID, kind types.DeleteKind) error
	LogEvent(e types.Event)
	SetCreatedIDs(ids []types.ObjectID)
	Reset()
}

// pendingDelete records why an object left the live object set.
type pendingDelete struct {
	kind types.DeleteKind
}

// TemporaryStore is the copy-on-write workspace for one transaction: an
// immutable input snapshot, the subset of inputs allowed to mutate,
// pending writes and deletes, an ordered event log, and the set of ids
// the runtime declared newly created.
type TemporaryStore struct {
	txDigest types.TransactionDigest

	inputSnapshot map[types.ObjectID]*types.Object
	mutableInputs map[types.ObjectID]bool

	writes  map[types.ObjectID]*types.Object
	deletes map[types.ObjectID]pendingDelete

	events     []types.Event
	createdIDs map[types.ObjectID]bool

	debugChecks bool
}

// NewTemporaryStore builds a workspace over inputSnapshot, with
// mutableInputs marking which input ids the transaction is permitted to
// write or delete.
func NewTemporaryStore(txDigest types.TransactionDigest, inputSnapshot map[types.ObjectID]*types.Object, mutableInputs map[types.ObjectID]bool, debugChecks bool) *TemporaryStore {
	return &TemporaryStore{
		txDigest:      txDigest,
		inputSnapshot: inputSnapshot,
		mutableInputs: mutableInputs,
		writes:        make(map[types.ObjectID]*types.Object),
		deletes:       make(map[types.ObjectID]pendingDelete),
		createdIDs:    make(map[types.ObjectID]bool),
		debugChecks:   debugChecks,
	}
}

// ReadObject resolves id against pending writes first, then the input
// snapshot; a pending delete hides the input snapshot's copy.
func (s *TemporaryStore) ReadObject(id types.ObjectID) (*types.Object, bool) {
	if w, ok := s.writes[id]; ok {
		return w, true
	}
	if _, deleted := s.deletes[id]; deleted {
		return nil, false
	}
	obj, ok := s.inputSnapshot[id]
	return obj, ok
}

// WriteObject records a pending write. There must be no write after
// delete: the runtime is not allowed to resurrect an id it already
// deleted within this transaction. Mutating an object whose current
// owner is Immutable is forbidden as well.
func (s *TemporaryStore) WriteObject(obj *types.Object) error {
	if _, deleted := s.deletes[obj.ID]; deleted {
		return fmt.Errorf("%w: write after delete for object %s", cerrors.ErrProtocolViolation, obj.ID)
	}
	if existing, ok := s.ReadObject(obj.ID); ok && existing.Owner.IsImmutable() {
		return fmt.Errorf("%w: mutating immutable object %s", cerrors.ErrProtocolViolation, obj.ID)
	}
	s.writes[obj.ID] = obj
	return nil
}

// DeleteObject records a pending delete. There must be no delete after
// write: the runtime is not allowed to both produce and discard the same
// id within this transaction. Deleting an object whose current owner is
// Immutable is forbidden as well.
func (s *TemporaryStore) DeleteObject(id types.ObjectID, kind types.DeleteKind) error {
	if _, written := s.writes[id]; written {
		return fmt.Errorf("%w: delete after write for object %s", cerrors.ErrProtocolViolation, id)
	}
	if existing, ok := s.ReadObject(id); ok && existing.Owner.IsImmutable() {
		return fmt.Errorf("%w: deleting immutable object %s", cerrors.ErrProtocolViolation, id)
	}
	s.deletes[id] = pendingDelete{kind: kind}
	return nil
}

// LogEvent appends e to the transaction's ordered event log.
func (s *TemporaryStore) LogEvent(e types.Event) {
	s.events = append(s.events, e)
}

// SetCreatedIDs declares which ids the runtime created during execution.
func (s *TemporaryStore) SetCreatedIDs(ids []types.ObjectID) {
	s.createdIDs = make(map[types.ObjectID]bool, len(ids))
	for _, id := range ids {
		s.createdIDs[id] = true
	}
}

// Reset drops all pending writes, deletes, and events, for OOG recovery's
// first stage. The input snapshot, mutable-input set, and created-ids
// declaration survive a reset.
func (s *TemporaryStore) Reset() {
	s.writes = make(map[types.ObjectID]*types.Object)
	s.deletes = make(map[types.ObjectID]pendingDelete)
	s.events = nil
}

// EnsureActiveInputsMutated advances every mutable input that the
// transaction did not already write or delete by one version and records
// it as a write, so gas conservation holds even for inputs execution
// never touched. gasObjectID is exempted here because the gas charger
// writes it back itself once finalization determines the net balance.
func (s *TemporaryStore) EnsureActiveInputsMutated(gasObjectID types.ObjectID) {
	for id := range s.mutableInputs {
		if id == gasObjectID {
			continue
		}
		if _, written := s.writes[id]; written {
			continue
		}
		if _, deleted := s.deletes[id]; deleted {
			continue
		}
		input, ok := s.inputSnapshot[id]
		if !ok {
			continue
		}
		bumped := *input
		bumped.Version++
		s.writes[id] = &bumped
	}
}

// StorageCharger is the subset of pkg/gas.Charger's behavior
// ChargeGasForStorageChanges needs. Defined here, not imported from
// pkg/gas, so pkg/gas can depend on pkg/execution without a cycle.
type StorageCharger interface {
	ChargeStorageMutation(oldSize, newSize int, oldRebate uint64) (uint64, error)
	CreditDeletedRebate(oldRebate uint64)
}

// ChargeGasForStorageChanges charges every pending write for its net
// storage delta and credits every pending delete's rebate, before any
// write is committed back to the object cache. All charges must succeed
// before the caller commits this store's writes.
func (s *TemporaryStore) ChargeGasForStorageChanges(charger StorageCharger) error {
	for id, obj := range s.writes {
		oldSize, oldRebate := 0, uint64(0)
		if prior, ok := s.inputSnapshot[id]; ok {
			oldSize = len(prior.Contents)
			oldRebate = prior.StorageRebate
		}
		newRebate, err := charger.ChargeStorageMutation(oldSize, len(obj.Contents), oldRebate)
		if err != nil {
			return fmt.Errorf("charge storage for %s: %w", id, err)
		}
		obj.StorageRebate = newRebate
	}
	for id := range s.deletes {
		prior, ok := s.inputSnapshot[id]
		if !ok {
			continue
		}
		charger.CreditDeletedRebate(prior.StorageRebate)
		_ = id
	}
	return nil
}

// PendingWrites returns this store's current pending writes, for a
// caller assembling the cache's TransactionOutputs wire shape after
// ToEffects has validated them.
func (s *TemporaryStore) PendingWrites() []*types.Object {
	writes := make([]*types.Object, 0, len(s.writes))
	for _, obj := range s.writes {
		writes = append(writes, obj)
	}
	return writes
}

// EnforceOutputLimit rejects a transaction whose pending writes exceed
// maxOutputObjects, the execution guard against a single transaction
// accumulating unbounded state. A non-positive limit is treated as
// unbounded.
func (s *TemporaryStore) EnforceOutputLimit(maxOutputObjects int) error {
	if maxOutputObjects <= 0 {
		return nil
	}
	if len(s.writes) > maxOutputObjects {
		return fmt.Errorf("%w: transaction wrote %d objects, exceeding the limit of %d", cerrors.ErrInvalidInput, len(s.writes), maxOutputObjects)
	}
	return nil
}

// assertInvariants enforces the debug-checked invariants from the
// execution data model: no id in both writes and deletes, every mutable
// input written or deleted, created ids disjoint from input ids. The
// write/delete exclusion is also enforced at the call site in
// WriteObject/DeleteObject; it is kept here too as a backstop against any
// future internal caller that mutates the maps directly. It returns
// cerrors.ErrProtocolViolation instead of panicking, since an execution
// error must not crash the node, only fail the transaction.
func (s *TemporaryStore) assertInvariants() error {
	if !s.debugChecks {
		return nil
	}
	for id := range s.writes {
		if _, deleted := s.deletes[id]; deleted {
			return fmt.Errorf("%w: object %s is both written and deleted", cerrors.ErrProtocolViolation, id)
		}
	}
	for id := range s.mutableInputs {
		_, written := s.writes[id]
		_, deleted := s.deletes[id]
		if !written && !deleted {
			return fmt.Errorf("%w: mutable input %s was neither written nor deleted", cerrors.ErrProtocolViolation, id)
		}
	}
	for id := range s.createdIDs {
		if _, isInput := s.inputSnapshot[id]; isInput {
			return fmt.Errorf("%w: created id %s collides with an input id", cerrors.ErrProtocolViolation, id)
		}
	}
	return nil
}
