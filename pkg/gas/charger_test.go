package gas

import (
	"testing"

	"github.com/cuemby/mysticonsensus/pkg/execution"
	"github.com/cuemby/mysticonsensus/pkg/types"
	"github.com/stretchr/testify/require"
)

func gasCoin(id byte, balance uint64) *types.Object {
	var oid types.ObjectID
	oid[0] = id
	contents := make([]byte, 8)
	setCoinBalance(&types.Object{Contents: contents}, balance)
	return &types.Object{ID: oid, Type: types.GasCoinType, Contents: contents}
}

func TestSmashGasCoinsSumsBalances(t *testing.T) {
	c := NewCharger(1_000_000)
	primary := gasCoin(1, 100)
	secondary := gasCoin(2, 50)

	smashed, err := c.SmashGasCoins([]*types.Object{primary, secondary})
	require.NoError(t, err)
	require.Equal(t, uint64(150), coinBalance(smashed))
}

func TestSmashGasCoinsZeroCoinsIsSystemTx(t *testing.T) {
	c := NewCharger(1_000_000)
	smashed, err := c.SmashGasCoins(nil)
	require.NoError(t, err)
	require.Nil(t, smashed)
	require.True(t, c.isSystemTx)
}

func TestSmashGasCoinsRejectsNonGasCoin(t *testing.T) {
	c := NewCharger(1_000_000)
	notGas := &types.Object{Type: "0x2::not::Gas"}
	_, err := c.SmashGasCoins([]*types.Object{notGas})
	require.Error(t, err)
}

func TestChargeStorageMutationAccumulatesCostAndRebate(t *testing.T) {
	c := NewCharger(1_000_000)
	rebate, err := c.ChargeStorageMutation(0, 100, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(100)*storageCostPerByte*rebateRateNumerator/rebateRateDenominator, rebate)
	require.Equal(t, uint64(100)*storageCostPerByte, c.storageCost)
}

func TestCreditDeletedRebateNeverGoesNegative(t *testing.T) {
	c := NewCharger(1_000_000)
	c.CreditDeletedRebate(1000)
	require.Equal(t, uint64(0), c.storageRebate)
}

func TestTryChargeForStorageFailsOverBudget(t *testing.T) {
	c := NewCharger(10)
	id := types.ObjectID{1}
	store := execution.NewTemporaryStore(types.TransactionDigest{}, nil, nil, false)
	require.NoError(t, store.WriteObject(&types.Object{ID: id, Contents: make([]byte, 1000)}))

	err := c.TryChargeForStorage(store)
	require.Error(t, err)
}

func TestFinalizeDecrementsGasCoinBalance(t *testing.T) {
	c := NewCharger(1_000_000)
	primary := gasCoin(1, 10_000)
	_, err := c.SmashGasCoins([]*types.Object{primary})
	require.NoError(t, err)

	c.RecordComputation(30)
	summary := c.Finalize()

	require.Equal(t, uint64(50), summary.ComputationCost, "raw computation 30 rounds up to the 50 bucket")
	remaining := coinBalance(primary)
	require.Equal(t, uint64(10_000)-uint64(summary.NetGasUsed()), remaining)
}

func TestBucketComputationCostRoundsUpAndCaps(t *testing.T) {
	require.Equal(t, uint64(50), bucketComputationCost(1))
	require.Equal(t, uint64(200), bucketComputationCost(150))
	require.Equal(t, computationBuckets[len(computationBuckets)-1], bucketComputationCost(1_000_000))
}
