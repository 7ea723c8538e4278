package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

func TestAddTransactionIsIdempotent(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	tx := model.Transaction{TransactionNumber: 1500000000001, TransactionTime: 1500000, AnchorString: "A"}

	require.NoError(t, db.Transactions().AddTransaction(ctx, tx))
	require.NoError(t, db.Transactions().AddTransaction(ctx, tx))

	count, err := db.Transactions().GetTransactionsCount(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestAddBlockMetadataIsIdempotent(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	b := model.BlockMetadata{Height: 100, Hash: "h100"}

	require.NoError(t, db.BlockMetadata().Add(ctx, []model.BlockMetadata{b}))
	require.NoError(t, db.BlockMetadata().Add(ctx, []model.BlockMetadata{b}))

	all, err := db.BlockMetadata().Get(ctx, 0, 1000)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestExponentialLookBackHeights(t *testing.T) {
	heights := exponentialLookBackHeights(1500005, 1500000)
	require.Equal(t, []uint64{1500005, 1500004, 1500003, 1500001}, heights)
}

func TestLookBackExponentiallySkipsMissingHeights(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	for _, h := range []uint64{1500000, 1500001, 1500002, 1500004, 1500005} {
		require.NoError(t, db.BlockMetadata().Add(ctx, []model.BlockMetadata{{Height: h, Hash: "h"}}))
	}
	// 1500003 is deliberately absent, simulating a reorg gap.

	found, err := db.BlockMetadata().LookBackExponentially(ctx, 1500005, 1500000)
	require.NoError(t, err)

	var heights []uint64
	for _, b := range found {
		heights = append(heights, b.Height)
	}
	require.Equal(t, []uint64{1500005, 1500004, 1500001}, heights)
}

func TestRemoveLaterThanTrimsStrictlyGreater(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()
	for _, h := range []uint64{100, 101, 102, 103} {
		require.NoError(t, db.BlockMetadata().Add(ctx, []model.BlockMetadata{{Height: h}}))
	}

	cutoff := uint64(101)
	require.NoError(t, db.BlockMetadata().RemoveLaterThan(ctx, &cutoff))

	remaining, err := db.BlockMetadata().Get(ctx, 0, 1000)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestServiceStateRoundTrip(t *testing.T) {
	db := NewMemoryDatabase()
	ctx := context.Background()

	empty, err := db.ServiceState().Get(ctx)
	require.NoError(t, err)
	require.Nil(t, empty)

	require.NoError(t, db.ServiceState().Put(ctx, model.ServiceState{DatabaseVersion: model.DatabaseVersion}))

	state, err := db.ServiceState().Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DatabaseVersion, state.DatabaseVersion)
}
