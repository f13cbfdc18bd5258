package node

import (
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/execution"
	"github.com/cuemby/mysticonsensus/pkg/gas"
	"github.com/cuemby/mysticonsensus/pkg/log"
	"github.com/cuemby/mysticonsensus/pkg/metrics"
	"github.com/cuemby/mysticonsensus/pkg/objectcache"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// DeleteRequest names an input a Transaction wants removed from the live
// object set, and why.
type DeleteRequest struct {
	ID   types.ObjectID
	Kind types.DeleteKind
}

// Transaction is the execution pipeline's unit of work. Full Move VM
// semantics are out of scope, so a Transaction declares its effect
// directly rather than bytecode a VM would interpret: which inputs it
// reads, which it may mutate or delete, the objects it wants written,
// and what pays for it. This is the same shape the Storage capability
// interface would otherwise be driven through by a Move runtime.
type Transaction struct {
	Digest types.TransactionDigest

	ReadOnlyInputs []types.ObjectID
	MutableInputs  []types.ObjectID

	GasCoins  []types.ObjectID
	GasBudget uint64

	Writes          []*types.Object
	Deletes         []DeleteRequest
	CreatedIDs      []types.ObjectID
	ComputationCost uint64
}

// Execute runs tx through the temporary store and gas charger against the
// object cache: it snapshots tx's declared inputs out of the cache,
// applies the requested writes and deletes, charges storage against the
// gas budget (recovering via the two-stage OOG path on overflow),
// finalizes the gas cost summary, then stages the resulting outputs in
// the cache at commitIndex and commits them, which flushes them to the
// backing store. This is the pipeline
// spec'd as C6 (TemporaryStore) and C7 (Charger) running against C8 (the
// object cache).
func (n *Node) Execute(epoch uint64, commitIndex uint64, tx *Transaction) (*types.TransactionEffects, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ExecutionDuration)

	snapshot, mutable, err := n.snapshotInputs(tx)
	if err != nil {
		metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	store := execution.NewTemporaryStore(tx.Digest, snapshot, mutable, true)
	charger := gas.NewCharger(tx.GasBudget)

	gasCoins, err := n.resolveObjects(tx.GasCoins)
	if err != nil {
		metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	primary, err := charger.SmashGasCoins(gasCoins)
	if err != nil {
		metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("smash gas coins: %w", err)
	}

	store.SetCreatedIDs(tx.CreatedIDs)
	for _, w := range tx.Writes {
		if err := store.WriteObject(w); err != nil {
			metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
	}
	for _, d := range tx.Deletes {
		if err := store.DeleteObject(d.ID, d.Kind); err != nil {
			metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
	}

	gasCoinID := types.ObjectID{}
	if primary != nil {
		gasCoinID = primary.ID
	}
	store.EnsureActiveInputsMutated(gasCoinID)

	if err := store.EnforceOutputLimit(n.cfg.MaxOutputObjectsPerTx); err != nil {
		metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	status := types.OK()
	if err := charger.TryChargeForStorage(store); err != nil {
		log.Errorf("transaction out of gas, recovering", err)
		metrics.OutOfGasTotal.Inc()
		if rerr := charger.RecoverFromOOG(store, gasCoins); rerr != nil {
			metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("oog recovery: %w", rerr)
		}
		if err := store.EnforceOutputLimit(n.cfg.MaxOutputObjectsPerTx); err != nil {
			metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		status = types.Failure(cerrors.ErrOutOfGas.Error())
	}

	if primary != nil {
		bumped := *primary
		bumped.Version++
		if err := store.WriteObject(&bumped); err != nil {
			metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("write back gas coin: %w", err)
		}
	}

	charger.RecordComputation(tx.ComputationCost)
	gasUsed := charger.Finalize()
	metrics.StorageRebatePaid.Add(float64(gasUsed.StorageRebate))

	effects, err := store.ToEffects(status, gasUsed, nil, nil)
	if err != nil {
		metrics.TransactionsExecutedTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	outputs := effectsToOutputs(effects, commitIndex, epoch, store)
	if err := n.cache.WriteTransactionOutputs(epoch, outputs); err != nil {
		return nil, fmt.Errorf("stage transaction outputs: %w", err)
	}
	if err := n.cache.CommitTransactionOutputs(epoch, tx.Digest); err != nil {
		return nil, fmt.Errorf("commit transaction outputs: %w", err)
	}

	metrics.TransactionsExecutedTotal.WithLabelValues(statusLabel(status)).Inc()
	return effects, nil
}

// snapshotInputs resolves tx's declared inputs out of the object cache
// into the map TemporaryStore needs, and builds the mutable-input set.
func (n *Node) snapshotInputs(tx *Transaction) (map[types.ObjectID]*types.Object, map[types.ObjectID]bool, error) {
	snapshot := make(map[types.ObjectID]*types.Object, len(tx.ReadOnlyInputs)+len(tx.MutableInputs))
	mutable := make(map[types.ObjectID]bool, len(tx.MutableInputs))

	for _, id := range tx.ReadOnlyInputs {
		obj, ok, err := n.cache.GetObject(id)
		if err != nil {
			return nil, nil, fmt.Errorf("read input %s: %w", id, err)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: input object %s not found", cerrors.ErrInvalidInput, id)
		}
		snapshot[id] = obj
	}
	for _, id := range tx.MutableInputs {
		obj, ok, err := n.cache.GetObject(id)
		if err != nil {
			return nil, nil, fmt.Errorf("read mutable input %s: %w", id, err)
		}
		if !ok {
			return nil, nil, fmt.Errorf("%w: mutable input object %s not found", cerrors.ErrInvalidInput, id)
		}
		snapshot[id] = obj
		mutable[id] = true
	}
	return snapshot, mutable, nil
}

func (n *Node) resolveObjects(ids []types.ObjectID) ([]*types.Object, error) {
	objs := make([]*types.Object, 0, len(ids))
	for _, id := range ids {
		obj, ok, err := n.cache.GetObject(id)
		if err != nil {
			return nil, fmt.Errorf("read gas coin %s: %w", id, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: gas coin %s not found", cerrors.ErrInvalidInput, id)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

// effectsToOutputs packages a TransactionEffects and the store's final
// pending writes into the cache's TransactionOutputs wire shape.
func effectsToOutputs(effects *types.TransactionEffects, commitIndex uint64, epoch uint64, store *execution.TemporaryStore) *objectcache.TransactionOutputs {
	written := store.PendingWrites()
	markers := make([]types.ReceivedMarker, 0, len(written))
	for _, obj := range written {
		markers = append(markers, types.ReceivedMarker{ObjectID: obj.ID, Version: obj.Version, Epoch: epoch})
	}
	return &objectcache.TransactionOutputs{
		TransactionDigest: effects.TransactionDigest,
		CommitIndex:       commitIndex,
		WrittenObjects:    written,
		Markers:           markers,
		Deleted:           effects.Deleted,
		Wrapped:           effects.Wrapped,
		Events:            effects.Events,
	}
}

func statusLabel(status types.ExecutionStatus) string {
	if status.Success {
		return "success"
	}
	return "failure"
}
