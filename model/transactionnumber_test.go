package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructTransactionNumberRoundTrip(t *testing.T) {
	cases := []struct {
		height uint64
		index  uint64
	}{
		{0, 0},
		{1, 0},
		{1500000, 42},
		{MaxBlockHeight, MaxIndexInBlock},
	}
	for _, c := range cases {
		num := ConstructTransactionNumber(c.height, c.index)
		require.Equal(t, c.height, BlockHeightFromTransactionNumber(num))
		require.Equal(t, c.index, IndexInBlockFromTransactionNumber(num))
	}
}

func TestConstructTransactionNumberIsStrictlyOrderedAcrossBlocks(t *testing.T) {
	last := ConstructTransactionNumber(100, MaxIndexInBlock)
	first := ConstructTransactionNumber(101, 0)
	require.Less(t, last, first)
}

func TestConstructTransactionNumberPanicsOnOverflow(t *testing.T) {
	require.Panics(t, func() { ConstructTransactionNumber(MaxBlockHeight+1, 0) })
	require.Panics(t, func() { ConstructTransactionNumber(0, MaxIndexInBlock+1) })
}

func TestLastTransactionOfBlockIsInclusiveUpperBound(t *testing.T) {
	cutoff := LastTransactionOfBlock(100)
	require.Equal(t, uint64(100), BlockHeightFromTransactionNumber(cutoff))
	require.Equal(t, uint64(101), BlockHeightFromTransactionNumber(cutoff+1))
}
