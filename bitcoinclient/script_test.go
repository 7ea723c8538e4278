package bitcoinclient

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func pushScript(opReturnByte byte, pushOpcode byte, lengthBytes []byte, data []byte) []byte {
	out := []byte{opReturnByte, pushOpcode}
	out = append(out, lengthBytes...)
	out = append(out, data...)
	return out
}

func TestOpReturnDataFromScriptBytesDirectPush(t *testing.T) {
	data := []byte("sidetree:hello")
	script := pushScript(opReturn, byte(len(data)), nil, data)

	got, ok := OpReturnDataFromScriptBytes(script)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestOpReturnDataFromScriptBytesPushData1(t *testing.T) {
	data := []byte(strings.Repeat("x", 100))
	script := pushScript(opReturn, opPushData1, []byte{byte(len(data))}, data)

	got, ok := OpReturnDataFromScriptBytes(script)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestOpReturnDataFromScriptBytesPushData2(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	length := len(data)
	script := pushScript(opReturn, opPushData2, []byte{byte(length), byte(length >> 8)}, data)

	got, ok := OpReturnDataFromScriptBytes(script)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestOpReturnDataFromScriptBytesRejectsNonOpReturn(t *testing.T) {
	_, ok := OpReturnDataFromScriptBytes([]byte{0x76, 0xa9})
	require.False(t, ok)
}

func TestOpReturnDataFromScriptBytesRejectsLengthMismatch(t *testing.T) {
	script := []byte{opReturn, 0x05, 0x01, 0x02} // claims 5 bytes, only 2 present
	_, ok := OpReturnDataFromScriptBytes(script)
	require.False(t, ok)
}

func TestOpReturnDataFromScriptBytesRejectsEmptyAndTruncated(t *testing.T) {
	_, ok := OpReturnDataFromScriptBytes(nil)
	require.False(t, ok)

	_, ok = OpReturnDataFromScriptBytes([]byte{opReturn})
	require.False(t, ok)

	_, ok = OpReturnDataFromScriptBytes([]byte{opReturn, opPushData1})
	require.False(t, ok)
}

func TestOpReturnDataDecodesHex(t *testing.T) {
	data := []byte("sidetree:payload")
	script := pushScript(opReturn, byte(len(data)), nil, data)

	got, ok := opReturnData(hex.EncodeToString(script))
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestOpReturnDataRejectsInvalidHex(t *testing.T) {
	_, ok := opReturnData("not-hex")
	require.False(t, ok)
}
