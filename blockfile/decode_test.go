package blockfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildCoinbase assembles a minimal coinbase transaction with one
// BIP34 height push and one output, for use as the test fixture below.
func buildCoinbase(t *testing.T, height uint64) []byte {
	t.Helper()

	heightBytes := []byte{byte(height), byte(height >> 8), byte(height >> 16)}
	for len(heightBytes) > 1 && heightBytes[len(heightBytes)-1] == 0 {
		heightBytes = heightBytes[:len(heightBytes)-1]
	}

	var buf bytes.Buffer
	writeUint32LE(&buf, 1) // version
	writeVarInt(&buf, 1)   // input count

	buf.Write(make([]byte, 32)) // null prevout hash
	writeUint32LE(&buf, 0xffffffff)

	script := append([]byte{byte(len(heightBytes))}, heightBytes...)
	writeVarInt(&buf, uint64(len(script)))
	buf.Write(script)
	writeUint32LE(&buf, 0xffffffff) // sequence

	writeVarInt(&buf, 1) // output count
	writeUint64LE(&buf, 5000000000)
	writeVarInt(&buf, 0) // empty scriptPubKey

	writeUint32LE(&buf, 0) // locktime

	return buf.Bytes()
}

func TestDecodeTransactionCoinbase(t *testing.T) {
	raw := buildCoinbase(t, 170)
	tx, err := decodeTransaction(bytes.NewReader(raw))
	require.NoError(t, err)
	require.True(t, tx.IsCoinbase())

	height, ok := CoinbaseHeight(tx)
	require.True(t, ok)
	require.Equal(t, uint64(170), height)
}

func TestDecodeBlockRoundTrip(t *testing.T) {
	coinbase := buildCoinbase(t, 2)

	var header bytes.Buffer
	writeUint32LE(&header, 1)
	header.Write(make([]byte, 32)) // previous hash
	header.Write(make([]byte, 32)) // merkle root
	writeUint32LE(&header, 1231469665)
	writeUint32LE(&header, 0x1d00ffff)
	writeUint32LE(&header, 2573394689)
	require.Equal(t, 80, header.Len())

	var payload bytes.Buffer
	payload.Write(header.Bytes())
	writeVarInt(&payload, 1) // tx count
	payload.Write(coinbase)

	block, err := DecodeBlock(payload.Bytes())
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	require.True(t, block.Transactions[0].IsCoinbase())
	require.Equal(t, uint32(1231469665), block.Header.Timestamp)
	require.NotEmpty(t, block.Hash)
}
