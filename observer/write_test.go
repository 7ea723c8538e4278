package observer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
)

func TestWriteTransactionSucceeds(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.balance = 10000
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	txID, err := rig.processor.WriteTransaction(ctx, "anchor-string", 100)
	require.NoError(t, err)
	require.Equal(t, "broadcast-txid", txID)
}

func TestWriteTransactionFailsOnInsufficientBalance(t *testing.T) {
	rig := newTestRig(0)
	rig.chain.append("h0")
	rig.chain.balance = 100 // less than the fake client's fixed 1000-satoshi fee
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	_, err := rig.processor.WriteTransaction(ctx, "anchor-string", 100)
	require.ErrorIs(t, err, errs.ErrNotEnoughBalanceForWrite)
}

func TestWriteTransactionFailsOnSpendingCap(t *testing.T) {
	rig := newTestRigWithCap(0, 500) // below the fake client's fixed 1000-satoshi fee
	rig.chain.append("h0")
	rig.chain.balance = 10000
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))

	_, err := rig.processor.WriteTransaction(ctx, "anchor-string", 100)
	require.ErrorIs(t, err, errs.ErrSpendingCapReached)
}

// TestWriteTransactionEvaluatesCapAgainstLastProcessedBlockNotTip exercises
// the case the other tests above never do: the chain tip has moved past
// the last block this observer has actually processed. The spending cap
// must still be evaluated against the observer's own lagging height, not
// the node's current tip, since a fee committed past the cutoff window at
// the real tip is still inside the window as far as this observer knows.
func TestWriteTransactionEvaluatesCapAgainstLastProcessedBlockNotTip(t *testing.T) {
	rig := newTestRigWithCap(0, 1000)
	rig.chain.append("h0")
	rig.chain.balance = 10000
	ctx := context.Background()
	require.NoError(t, rig.processor.Initialize(ctx))
	require.Equal(t, uint64(0), rig.processor.LastProcessedBlock().Height)

	// Narrow the trailing window so that a prior write recorded at height
	// 0 has already aged out by the live tip, but not by this observer's
	// own lagging height.
	rig.processor.spendingMonitor = spendingMonitorWithCutoff(2, 1000)
	rig.processor.spendingMonitor.AddTransactionDataBeingWritten("earlier-anchor", 1000, 0)

	// Advance the chain tip well past the observer's last-processed
	// height without re-running sync, simulating an observer that has
	// fallen behind.
	rig.chain.append("h1")
	rig.chain.append("h2")
	rig.chain.append("h3")

	_, err := rig.processor.WriteTransaction(ctx, "anchor-string", 100)
	require.ErrorIs(t, err, errs.ErrSpendingCapReached)
}
