package bitcoinclient

import "encoding/hex"

const (
	opReturn      = 0x6a
	opPushData1   = 0x4c
	opPushData2   = 0x4d
	opPushData4   = 0x4e
	opPushDataMax = 0x4b // single-byte length push opcodes run 0x01..0x4b
)

// opReturnData decodes a scriptPubKey hex string of the form
// OP_RETURN <pushdata>, returning the pushed data bytes. ok is false if the
// script isn't exactly one OP_RETURN followed by one push.
func opReturnData(scriptHex string) ([]byte, bool) {
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return nil, false
	}
	return OpReturnDataFromScriptBytes(script)
}

// OpReturnDataFromScriptBytes is opReturnData without the hex-decoding
// step, for callers (the raw blk*.dat path) that already hold the
// scriptPubKey as bytes.
func OpReturnDataFromScriptBytes(script []byte) ([]byte, bool) {
	if len(script) < 1 || script[0] != opReturn {
		return nil, false
	}
	rest := script[1:]
	if len(rest) == 0 {
		return nil, false
	}

	opcode := rest[0]
	var length int
	var data []byte

	switch {
	case opcode <= opPushDataMax:
		length = int(opcode)
		data = rest[1:]
	case opcode == opPushData1:
		if len(rest) < 2 {
			return nil, false
		}
		length = int(rest[1])
		data = rest[2:]
	case opcode == opPushData2:
		if len(rest) < 3 {
			return nil, false
		}
		length = int(rest[1]) | int(rest[2])<<8
		data = rest[3:]
	case opcode == opPushData4:
		if len(rest) < 5 {
			return nil, false
		}
		length = int(rest[1]) | int(rest[2])<<8 | int(rest[3])<<16 | int(rest[4])<<24
		data = rest[5:]
	default:
		return nil, false
	}

	if length != len(data) {
		return nil, false
	}
	return data, true
}
