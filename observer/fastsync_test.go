package observer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// The helpers below hand-assemble blk*.dat bytes (magic/size framing,
// 80-byte header, one coinbase transaction per block) independently of
// the blockfile package's own decoder, so this test exercises
// FastProcessTransactions end to end against real on-disk bytes rather
// than against blockfile.RawBlock fixtures.

var fastSyncMagic = [4]byte{0xf9, 0xbe, 0xb4, 0xd9}

func leUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func leUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func reverseBytes(b []byte) []byte {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return rev
}

func doubleSHA256Reversed(b []byte) string {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return hex.EncodeToString(reverseBytes(second[:]))
}

// bip34Script builds the minimal scriptSig push BIP34 height extraction
// expects: a push-length byte followed by the height as little-endian
// bytes.
func bip34Script(height uint64) []byte {
	var heightBytes []byte
	for {
		heightBytes = append(heightBytes, byte(height))
		height >>= 8
		if height == 0 {
			break
		}
	}
	return append([]byte{byte(len(heightBytes))}, heightBytes...)
}

// buildCoinbase assembles a single-input, single-output coinbase
// transaction carrying height via BIP34.
func buildCoinbase(height uint64) []byte {
	var buf bytes.Buffer
	buf.Write(leUint32(1))    // version
	buf.WriteByte(1)          // input count
	buf.Write(make([]byte, 32)) // null prevout hash
	buf.Write(leUint32(0xffffffff))
	script := bip34Script(height)
	buf.WriteByte(byte(len(script)))
	buf.Write(script)
	buf.Write(leUint32(0xffffffff)) // sequence
	buf.WriteByte(1)                // output count
	buf.Write(leUint64(5000000000))
	buf.WriteByte(0) // empty scriptPubKey
	buf.Write(leUint32(0))
	return buf.Bytes()
}

// builtBlock is one hand-assembled block ready to be embedded in a
// blk*.dat file, plus the hash it will decode to.
type builtBlock struct {
	hash    string
	payload []byte
}

// buildBlock assembles an 80-byte header chaining from prevHashHex plus
// one coinbase transaction claiming height, returning the full
// (header+txs) payload DecodeBlock expects and the hash it resolves to.
// variant only feeds the merkle root, letting tests build two distinct
// blocks that share both a height and a parent (a fork).
func buildBlock(prevHashHex string, height uint64, variant string) builtBlock {
	var header bytes.Buffer
	header.Write(leUint32(1)) // version
	prevHashBytes, _ := hex.DecodeString(prevHashHex)
	header.Write(reverseBytes(prevHashBytes))
	merkleRoot := sha256.Sum256([]byte(variant))
	header.Write(merkleRoot[:])
	header.Write(leUint32(1231469665))
	header.Write(leUint32(0x1d00ffff))
	header.Write(leUint32(0)) // nonce
	if header.Len() != 80 {
		panic("test block header must be exactly 80 bytes")
	}

	coinbase := buildCoinbase(height)

	var payload bytes.Buffer
	payload.Write(header.Bytes())
	payload.WriteByte(1) // tx count
	payload.Write(coinbase)

	return builtBlock{hash: doubleSHA256Reversed(header.Bytes()), payload: payload.Bytes()}
}

// writeBlockFile writes blocks into a single blk*.dat file at path, using
// the magic/size/payload framing blockfile.ReadFile expects.
func writeBlockFile(t *testing.T, path string, blocks []builtBlock) {
	t.Helper()
	var buf bytes.Buffer
	for _, b := range blocks {
		buf.Write(fastSyncMagic[:])
		buf.Write(leUint32(uint32(len(b.payload))))
		buf.Write(b.payload)
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

var zeroHashHex = func() string {
	return hex.EncodeToString(make([]byte, 32))
}()

func TestFastProcessTransactionsRemovesOrphanedForkTransactions(t *testing.T) {
	genesis := buildBlock(zeroHashHex, 0, "genesis")
	main1 := buildBlock(genesis.hash, 1, "main-1")
	main2 := buildBlock(main1.hash, 2, "main-2")
	fork1 := buildBlock(genesis.hash, 1, "fork-1") // same parent and height as main1, different hash

	dir := t.TempDir()
	writeBlockFile(t, filepath.Join(dir, "blk00000.dat"), []builtBlock{genesis, fork1, main2, main1})

	rig := newTestRigWithDataDir(0, dir)
	rig.chain.append(genesis.hash)
	rig.chain.append(main1.hash)
	rig.chain.append(main2.hash)

	ctx := context.Background()

	// Seed a transaction as if it had previously been observed anchored
	// in the fork block, to confirm fast-sync purges it once the block
	// is identified as an orphan.
	require.NoError(t, rig.db.Transactions().AddTransaction(ctx, model.Transaction{
		TransactionNumber:   model.ConstructTransactionNumber(1, 0),
		TransactionTime:     1,
		TransactionTimeHash: fork1.hash,
		AnchorString:        "stale-anchor",
	}))

	require.NoError(t, rig.processor.FastProcessTransactions(ctx, StartingBlock{Height: 0, PreviousHash: zeroHashHex}))

	last := rig.processor.LastProcessedBlock()
	require.NotNil(t, last)
	require.Equal(t, uint64(2), last.Height)
	require.Equal(t, main2.hash, last.Hash)

	all, err := rig.db.BlockMetadata().Get(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, all, 3) // genesis, main1, main2 -- fork1 never committed as metadata

	remaining, err := rig.db.Transactions().GetTransactionsStartingFrom(ctx, 0, 100)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestFastProcessTransactionsFallsBackToRPCWhenTipNotOnDisk(t *testing.T) {
	genesis := buildBlock(zeroHashHex, 0, "genesis")

	dir := t.TempDir()
	writeBlockFile(t, filepath.Join(dir, "blk00000.dat"), []builtBlock{genesis})

	rig := newTestRigWithDataDir(0, dir)
	rig.chain.append(genesis.hash)
	rig.chain.append("rpc-only-tip") // not present on disk

	ctx := context.Background()
	require.NoError(t, rig.processor.FastProcessTransactions(ctx, StartingBlock{Height: 0, PreviousHash: ""}))

	last := rig.processor.LastProcessedBlock()
	require.NotNil(t, last)
	require.Equal(t, uint64(1), last.Height)
	require.Equal(t, "rpc-only-tip", last.Hash)
}
