package blockfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000000000000000"

// coinbaseScriptForHeight builds the minimal BIP34 scriptSig push for
// height: a push-length byte followed by height as little-endian bytes.
func coinbaseScriptForHeight(height uint64) []byte {
	var heightBytes []byte
	for height > 0 || len(heightBytes) == 0 {
		heightBytes = append(heightBytes, byte(height))
		height >>= 8
		if height == 0 {
			break
		}
	}
	return append([]byte{byte(len(heightBytes))}, heightBytes...)
}

// testBlock builds a minimal RawBlock with exactly one coinbase
// transaction claiming height via BIP34, for IndexByHeight fixtures.
func testBlock(hash, prevHash string, height uint64) RawBlock {
	return RawBlock{
		Hash: hash,
		Header: RawBlockHeader{
			PreviousHash: prevHash,
		},
		Transactions: []RawTransaction{
			{
				Inputs: []RawInput{
					{
						RawOutPoint: RawOutPoint{
							PreviousTransactionID: zeroHash,
							PreviousOutputIndex:   0xffffffff,
						},
						SignatureScript: coinbaseScriptForHeight(height),
					},
				},
			},
		},
	}
}

// TestIndexByHeightResolvesOrphanFromAmbiguousForwardLink builds a scanned
// set where two blocks at height 1 share the same PreviousHash -- a
// forward walk from genesis cannot tell them apart, but a backward walk
// from the live tip unambiguously resolves which one is on the real chain.
func TestIndexByHeightResolvesOrphanFromAmbiguousForwardLink(t *testing.T) {
	genesis := testBlock("genesis", "", 0)
	mainAt1 := testBlock("main-1", "genesis", 1)
	forkAt1 := testBlock("fork-1", "genesis", 1) // orphan: tip never descends from this
	mainAt2 := testBlock("main-2", "main-1", 2)

	blocks := []RawBlock{forkAt1, mainAt2, genesis, mainAt1}

	chain, orphans, err := IndexByHeight(blocks, "main-2")
	require.NoError(t, err)

	require.Len(t, chain, 3)
	require.Equal(t, []string{"genesis", "main-1", "main-2"}, []string{chain[0].Hash, chain[1].Hash, chain[2].Hash})
	require.Equal(t, []uint64{0, 1, 2}, []uint64{chain[0].Height, chain[1].Height, chain[2].Height})

	require.Len(t, orphans, 1)
	require.Equal(t, "fork-1", orphans[0].Hash)
}

func TestIndexByHeightRejectsNonContiguousHeight(t *testing.T) {
	genesis := testBlock("genesis", "", 0)
	bad := testBlock("bad-1", "genesis", 5) // claims height 5 despite chaining off height 0

	_, _, err := IndexByHeight([]RawBlock{genesis, bad}, "bad-1")
	require.Error(t, err)
}

func TestIndexByHeightDetectsCycle(t *testing.T) {
	a := testBlock("a", "b", 5)
	b := testBlock("b", "a", 4)

	_, _, err := IndexByHeight([]RawBlock{a, b}, "a")
	require.Error(t, err)
}

func TestIndexByHeightErrorsWhenTipNotScanned(t *testing.T) {
	genesis := testBlock("genesis", "", 0)

	_, _, err := IndexByHeight([]RawBlock{genesis}, "missing-tip")
	require.Error(t, err)
}
