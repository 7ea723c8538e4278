package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockRewardHalvesOnSchedule(t *testing.T) {
	require.Equal(t, uint64(5000000000), BlockReward(0))
	require.Equal(t, uint64(5000000000), BlockReward(209999))
	require.Equal(t, uint64(2500000000), BlockReward(210000))
	require.Equal(t, uint64(1250000000), BlockReward(420000))
}

func TestBlockRewardSaturatesToZero(t *testing.T) {
	require.Equal(t, uint64(0), BlockReward(halvingIntervalBlocks*maxHalvings))
	require.Equal(t, uint64(0), BlockReward(halvingIntervalBlocks*(maxHalvings+10)))
}
