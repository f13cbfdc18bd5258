package execution

import (
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// ToEffects partitions this store's pending writes and deletes into the
// canonical TransactionEffects buckets: a write whose id is in
// createdIDs is Created; else a write whose id was in the input snapshot
// is Mutated; else it is Unwrapped (and, by debug assertion, must have
// advanced past version 1). A delete is Deleted when its kind is Normal
// or UnwrapThenDelete, Wrapped when its kind is Wrap; both are stamped
// with the matching sentinel digest rather than a real content digest.
func (s *TemporaryStore) ToEffects(status types.ExecutionStatus, gasUsed types.GasCostSummary, sharedObjects []types.ObjectRef, dependencies []types.TransactionDigest) (*types.TransactionEffects, error) {
	if err := s.assertInvariants(); err != nil {
		return nil, err
	}

	effects := &types.TransactionEffects{
		Version:           types.CurrentEffectsVersion,
		TransactionDigest: s.txDigest,
		Status:            status,
		GasUsed:           gasUsed,
		SharedObjects:     sharedObjects,
		Dependencies:      dependencies,
		Events:            append([]types.Event(nil), s.events...),
	}

	for id, obj := range s.writes {
		owned := types.ObjectRefWithOwner{Ref: obj.Ref(), Owner: obj.Owner}
		switch {
		case s.createdIDs[id]:
			effects.Created = append(effects.Created, owned)
		case s.isInput(id):
			effects.Mutated = append(effects.Mutated, owned)
		default:
			if s.debugChecks && obj.Version <= 1 {
				return nil, fmt.Errorf("%w: unwrapped object %s did not advance past version 1", cerrors.ErrProtocolViolation, id)
			}
			effects.Unwrapped = append(effects.Unwrapped, owned)
		}
	}

	for id, d := range s.deletes {
		ref, err := s.deletedRef(id)
		if err != nil {
			return nil, err
		}
		switch d.kind {
		case types.DeleteNormal, types.DeleteUnwrapThenDelete:
			ref.Digest = types.ObjectDigestDeleted
			effects.Deleted = append(effects.Deleted, ref)
		case types.DeleteWrap:
			ref.Digest = types.ObjectDigestWrapped
			effects.Wrapped = append(effects.Wrapped, ref)
		default:
			return nil, fmt.Errorf("%w: object %s has unknown delete kind %d", cerrors.ErrProtocolViolation, id, d.kind)
		}
	}

	return effects, nil
}

func (s *TemporaryStore) isInput(id types.ObjectID) bool {
	_, ok := s.inputSnapshot[id]
	return ok
}

func (s *TemporaryStore) deletedRef(id types.ObjectID) (types.ObjectRef, error) {
	if prior, ok := s.inputSnapshot[id]; ok {
		return types.ObjectRef{ID: id, Version: prior.Version + 1}, nil
	}
	if w, ok := s.writes[id]; ok {
		return types.ObjectRef{ID: id, Version: w.Version + 1}, nil
	}
	return types.ObjectRef{}, fmt.Errorf("%w: deleted object %s has no known prior version", cerrors.ErrProtocolViolation, id)
}
