package observer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

func TestTimeWithoutHashReturnsLastProcessedBlock(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.append("h1")
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	bt, err := rig.processor.Time(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bt.Time)
	require.Equal(t, "h1", bt.Hash)
}

func TestTimeWithHashResolvesViaClient(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.append("h1")
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	hash := "h0"
	bt, err := rig.processor.Time(ctx, &hash)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bt.Time)
	require.Equal(t, "h0", bt.Hash)
}

func TestTransactionsRejectsSinceWithoutHash(t *testing.T) {
	rig := newTestRig(0)
	since := uint64(1000000)
	_, err := rig.processor.Transactions(context.Background(), &since, nil)
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestTransactionsRejectsMismatchedSinceHash(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.append("h1")
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	since := model.ConstructTransactionNumber(0, 0)
	wrongHash := "not-h0"
	_, err := rig.processor.Transactions(ctx, &since, &wrongHash)
	require.ErrorIs(t, err, errs.ErrInvalidTransactionNumberOrTimeHash)
}

func TestTransactionsReturnsTaggedAnchorsWithNormalizedFee(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.append("h1")
	tx := sidetreeTx("tx1", "payload")
	rig.chain.fees["tx1"] = 300
	rig.chain.append("h2", tx)
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	page, err := rig.processor.Transactions(ctx, nil, nil)
	require.NoError(t, err)
	require.False(t, page.MoreTransactions)
	require.Len(t, page.Transactions, 1)
	require.Equal(t, "payload", page.Transactions[0].AnchorString)
}

func TestTransactionsPagesFromSince(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.append("h1")
	tx := sidetreeTx("tx1", "payload")
	rig.chain.fees["tx1"] = 300
	rig.chain.append("h2", tx)
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	since := model.ConstructTransactionNumber(2, 0)
	hash := "h2"
	page, err := rig.processor.Transactions(ctx, &since, &hash)
	require.NoError(t, err)
	require.Empty(t, page.Transactions)
}

func TestFirstValidTransactionSkipsStaleCandidates(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.append("h1")
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	candidates := []BlockchainTime{
		{Time: 1, Hash: "stale-h1"},
		{Time: 0, Hash: "h0"},
	}
	found, err := rig.processor.FirstValidTransaction(ctx, candidates)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, uint64(0), found.Time)
}

func TestGetNormalizedFeeOutOfRangeBeforeGenesis(t *testing.T) {
	rig := newTestRig(10)
	_, err := rig.processor.GetNormalizedFee(context.Background(), 5)
	require.ErrorIs(t, err, errs.ErrBlockchainTimeOutOfRange)
}
