package gas

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/mysticonsensus/pkg/cerrors"
	"github.com/cuemby/mysticonsensus/pkg/execution"
	"github.com/cuemby/mysticonsensus/pkg/types"
)

// storageCostPerByte and rebateRateNumerator/Denominator set the
// economics of the storage metering scheme: every byte written costs
// storageCostPerByte, and rebateRateNumerator/Denominator of that cost is
// returned as rebate when the data is later deleted, the remainder being
// the network's non-refundable storage fee.
const (
	storageCostPerByte    = 76
	rebateRateNumerator   = 99
	rebateRateDenominator = 100
)

// Charger accumulates one transaction's gas accounting: storage cost and
// rebate as writes and deletes are charged, computation cost bucketed
// only at Finalize.
type Charger struct {
	budget uint64

	gasCoin *types.Object

	storageCost    uint64
	storageRebate  uint64
	nonRefundable  uint64
	rawComputation uint64

	isSystemTx bool
}

// NewCharger builds a Charger against a fixed gas budget.
func NewCharger(budget uint64) *Charger {
	return &Charger{budget: budget}
}

// SmashGasCoins validates that every coin is a gas coin and sums their
// balances into the first ("primary") coin, which becomes the logical gas
// coin. The other coins are left unchanged; SmashGasCoins does not mark
// them as deleted inputs. Zero coins designates a gas-free system
// transaction and returns (nil, nil) rather than an error.
func (c *Charger) SmashGasCoins(coins []*types.Object) (*types.Object, error) {
	if len(coins) == 0 {
		c.isSystemTx = true
		return nil, nil
	}

	var total uint64
	for _, coin := range coins {
		if !coin.IsGasCoin() {
			return nil, fmt.Errorf("%w: object %s is not a gas coin", cerrors.ErrInvalidInput, coin.ID)
		}
		total += coinBalance(coin)
	}

	primary := coins[0]
	setCoinBalance(primary, total)
	c.gasCoin = primary
	return primary, nil
}

// ChargeStorageMutation accumulates cost for a write whose size changed
// from oldSize to newSize, crediting oldRebate back first, and returns
// the new rebate amount to stamp onto the written object.
func (c *Charger) ChargeStorageMutation(oldSize, newSize int, oldRebate uint64) (uint64, error) {
	c.CreditDeletedRebate(oldRebate)

	cost := uint64(newSize) * storageCostPerByte
	if c.storageCost+cost < c.storageCost {
		return 0, fmt.Errorf("%w: storage cost overflow", cerrors.ErrOutOfGas)
	}
	c.storageCost += cost

	rebate := cost * rebateRateNumerator / rebateRateDenominator
	nonRefundable := cost - rebate
	c.storageRebate += rebate
	c.nonRefundable += nonRefundable
	return rebate, nil
}

// CreditDeletedRebate returns a previously-charged rebate to the budget
// when the object carrying it is deleted.
func (c *Charger) CreditDeletedRebate(oldRebate uint64) {
	if oldRebate > c.storageRebate {
		c.storageRebate = 0
	} else {
		c.storageRebate -= oldRebate
	}
}

// TryChargeForStorage charges store's pending writes and deletes against
// the charger's budget, failing with cerrors.ErrOutOfGas if the
// accumulated net cost would exceed it.
func (c *Charger) TryChargeForStorage(store *execution.TemporaryStore) error {
	if err := store.ChargeGasForStorageChanges(c); err != nil {
		return err
	}
	if c.netCost() > c.budget {
		return fmt.Errorf("%w: storage cost %d exceeds budget %d", cerrors.ErrOutOfGas, c.netCost(), c.budget)
	}
	return nil
}

func (c *Charger) netCost() uint64 {
	net := int64(c.storageCost) - int64(c.storageRebate)
	if net < 0 {
		return 0
	}
	return uint64(net)
}

// RecoverFromOOG implements the two-stage out-of-gas recovery: first,
// reset the temporary store (dropping all writes, deletes, and events)
// and re-smash the gas coins, then attempt to charge only for the input
// objects' touch cost. If that still exceeds budget, the computation
// charge is reduced to zero and only rebates already owed on untouched
// inputs are emitted — the transaction still fails with an OOG status,
// but on-chain state (the gas coin, any rebates) still advances.
func (c *Charger) RecoverFromOOG(store *execution.TemporaryStore, gasCoins []*types.Object) error {
	store.Reset()
	c.storageCost = 0
	c.storageRebate = 0
	c.nonRefundable = 0

	if _, err := c.SmashGasCoins(gasCoins); err != nil {
		return fmt.Errorf("re-smash during OOG recovery: %w", err)
	}

	store.EnsureActiveInputsMutated(gasCoinID(c.gasCoin))
	if err := c.TryChargeForStorage(store); err != nil {
		// Second stage: drop computation entirely and accept whatever
		// rebate the input-touch charges already produced.
		c.rawComputation = 0
	}
	return nil
}

func gasCoinID(coin *types.Object) types.ObjectID {
	if coin == nil {
		return types.ObjectID{}
	}
	return coin.ID
}

// RecordComputation sets the raw, unbucketed computation cost Finalize
// will round up to the nearest bucket.
func (c *Charger) RecordComputation(raw uint64) {
	c.rawComputation = raw
}

// Finalize produces the transaction's GasCostSummary, bucketing
// computation cost via the protocol's ascending cost ladder.
func (c *Charger) Finalize() types.GasCostSummary {
	summary := types.GasCostSummary{
		ComputationCost:         bucketComputationCost(c.rawComputation),
		StorageCost:             c.storageCost,
		StorageRebate:           c.storageRebate,
		NonRefundableStorageFee: c.nonRefundable,
	}
	if c.gasCoin != nil {
		balance := coinBalance(c.gasCoin)
		net := summary.NetGasUsed()
		if net > 0 && uint64(net) <= balance {
			setCoinBalance(c.gasCoin, balance-uint64(net))
		}
	}
	return summary
}

// coinBalance and setCoinBalance interpret a gas coin's opaque Contents
// as an 8-byte big-endian balance — the only structure the execution
// layer needs to understand about Move's native coin type.
func coinBalance(obj *types.Object) uint64 {
	if len(obj.Contents) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(obj.Contents[:8])
}

func setCoinBalance(obj *types.Object, balance uint64) {
	if len(obj.Contents) < 8 {
		obj.Contents = make([]byte, 8)
	}
	binary.BigEndian.PutUint64(obj.Contents[:8], balance)
}
