package blockfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// segwitMarker/segwitFlag mark a transaction that carries witness data: a
// zero-byte input count immediately followed by a nonzero flag byte, which
// cannot occur in a pre-segwit transaction (input count 0 is invalid).
const (
	segwitMarker = 0x00
	segwitFlag   = 0x01
)

// DecodeBlock decodes one serialized block's bytes (header + transactions,
// without the file-level magic/size prefix) into a RawBlock.
func DecodeBlock(payload []byte) (*RawBlock, error) {
	r := bytes.NewReader(payload)

	headerBytes, err := readBytes(r, 80)
	if err != nil {
		return nil, errors.Wrap(err, "reading block header")
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		return nil, errors.Wrap(err, "decoding block header")
	}

	txCount, err := readVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading transaction count")
	}

	txs := make([]RawTransaction, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx, err := decodeTransaction(r)
		if err != nil {
			return nil, errors.Wrapf(err, "decoding transaction %d", i)
		}
		txs = append(txs, tx)
	}

	return &RawBlock{
		Hash:         doubleSHA256Reversed(headerBytes),
		Header:       *header,
		Transactions: txs,
	}, nil
}

func decodeHeader(b []byte) (*RawBlockHeader, error) {
	r := bytes.NewReader(b)

	var versionBuf, timeBuf, bitsBuf, nonceBuf [4]byte
	if _, err := io.ReadFull(r, versionBuf[:]); err != nil {
		return nil, err
	}
	prevHash, err := readBytes(r, 32)
	if err != nil {
		return nil, err
	}
	merkleRoot, err := readBytes(r, 32)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, timeBuf[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, bitsBuf[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, nonceBuf[:]); err != nil {
		return nil, err
	}

	return &RawBlockHeader{
		Version:      int32(leUint32(versionBuf[:])),
		PreviousHash: reverseHex(prevHash),
		MerkleRoot:   reverseHex(merkleRoot),
		Timestamp:    leUint32(timeBuf[:]),
		Bits:         leUint32(bitsBuf[:]),
		Nonce:        leUint32(nonceBuf[:]),
	}, nil
}

func decodeTransaction(r io.Reader) (RawTransaction, error) {
	var versionBuf [4]byte
	if _, err := io.ReadFull(r, versionBuf[:]); err != nil {
		return RawTransaction{}, err
	}
	version := versionBuf

	inputCount, err := readVarInt(r)
	if err != nil {
		return RawTransaction{}, errors.Wrap(err, "reading input count")
	}

	hasWitness := false
	if inputCount == segwitMarker {
		var flag [1]byte
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return RawTransaction{}, err
		}
		if flag[0] != segwitFlag {
			return RawTransaction{}, errors.Errorf("unexpected segwit flag byte %#x", flag[0])
		}
		hasWitness = true
		inputCount, err = readVarInt(r)
		if err != nil {
			return RawTransaction{}, errors.Wrap(err, "reading input count after segwit marker")
		}
	}

	inputs := make([]RawInput, 0, inputCount)
	for i := uint64(0); i < inputCount; i++ {
		in, err := decodeInput(r)
		if err != nil {
			return RawTransaction{}, errors.Wrapf(err, "decoding input %d", i)
		}
		inputs = append(inputs, in)
	}

	outputCount, err := readVarInt(r)
	if err != nil {
		return RawTransaction{}, errors.Wrap(err, "reading output count")
	}
	outputs := make([]RawOutput, 0, outputCount)
	for i := uint64(0); i < outputCount; i++ {
		out, err := decodeOutput(r)
		if err != nil {
			return RawTransaction{}, errors.Wrapf(err, "decoding output %d", i)
		}
		outputs = append(outputs, out)
	}

	if hasWitness {
		for range inputs {
			itemCount, err := readVarInt(r)
			if err != nil {
				return RawTransaction{}, errors.Wrap(err, "reading witness item count")
			}
			for i := uint64(0); i < itemCount; i++ {
				if _, err := readVarBytes(r); err != nil {
					return RawTransaction{}, errors.Wrap(err, "reading witness item")
				}
			}
		}
	}

	var lockTimeBuf [4]byte
	if _, err := io.ReadFull(r, lockTimeBuf[:]); err != nil {
		return RawTransaction{}, err
	}

	return RawTransaction{
		ID:      nonWitnessTxID(version, inputs, outputs, lockTimeBuf),
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

// nonWitnessTxID re-serializes a transaction's non-witness fields and
// double-SHA256s them, matching how a txid is computed regardless of
// whether the original serialization carried witness data.
func nonWitnessTxID(version [4]byte, inputs []RawInput, outputs []RawOutput, lockTime [4]byte) string {
	var buf bytes.Buffer
	buf.Write(version[:])
	writeVarInt(&buf, uint64(len(inputs)))
	for _, in := range inputs {
		prevHash, _ := hex.DecodeString(in.PreviousTransactionID)
		buf.Write(reverseBytes(prevHash))
		writeUint32LE(&buf, in.PreviousOutputIndex)
		writeVarInt(&buf, uint64(len(in.SignatureScript)))
		buf.Write(in.SignatureScript)
		writeUint32LE(&buf, in.Sequence)
	}
	writeVarInt(&buf, uint64(len(outputs)))
	for _, out := range outputs {
		writeUint64LE(&buf, out.ValueSatoshis)
		writeVarInt(&buf, uint64(len(out.PubKeyScript)))
		buf.Write(out.PubKeyScript)
	}
	buf.Write(lockTime[:])
	return doubleSHA256Reversed(buf.Bytes())
}

func reverseBytes(b []byte) []byte {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return rev
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	buf.Write(b[:])
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	buf.Write(b[:])
}

func writeVarInt(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 0xfd:
		buf.WriteByte(byte(v))
	case v <= 0xffff:
		buf.WriteByte(0xfd)
		buf.WriteByte(byte(v))
		buf.WriteByte(byte(v >> 8))
	case v <= 0xffffffff:
		buf.WriteByte(0xfe)
		var b [4]byte
		b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		buf.Write(b[:])
	default:
		buf.WriteByte(0xff)
		writeUint64LE(buf, v)
	}
}

func decodeInput(r io.Reader) (RawInput, error) {
	prevHash, err := readBytes(r, 32)
	if err != nil {
		return RawInput{}, err
	}
	index, err := readUint32LE(r)
	if err != nil {
		return RawInput{}, err
	}
	script, err := readVarBytes(r)
	if err != nil {
		return RawInput{}, err
	}
	sequence, err := readUint32LE(r)
	if err != nil {
		return RawInput{}, err
	}
	return RawInput{
		RawOutPoint: RawOutPoint{
			PreviousTransactionID: reverseHex(prevHash),
			PreviousOutputIndex:   index,
		},
		SignatureScript: script,
		Sequence:        sequence,
	}, nil
}

func decodeOutput(r io.Reader) (RawOutput, error) {
	value, err := readInt64LE(r)
	if err != nil {
		return RawOutput{}, err
	}
	script, err := readVarBytes(r)
	if err != nil {
		return RawOutput{}, err
	}
	return RawOutput{ValueSatoshis: uint64(value), PubKeyScript: script}, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// reverseHex hex-encodes b in Bitcoin's conventional display order: the
// wire format is little-endian, so the byte-reversed hex string is what
// explorers and RPC responses show.
func reverseHex(b []byte) string {
	rev := make([]byte, len(b))
	for i, v := range b {
		rev[len(b)-1-i] = v
	}
	return hex.EncodeToString(rev)
}

func doubleSHA256Reversed(b []byte) string {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return reverseHex(second[:])
}

// CoinbaseHeight extracts the block height BIP34 encodes in a coinbase
// transaction's scriptSig: the first byte is a push-length n, the next n
// bytes are the height as a little-endian integer.
func CoinbaseHeight(tx RawTransaction) (uint64, bool) {
	if !tx.IsCoinbase() || len(tx.Inputs) == 0 {
		return 0, false
	}
	script := tx.Inputs[0].SignatureScript
	if len(script) < 1 {
		return 0, false
	}
	n := int(script[0])
	if n == 0 || len(script) < 1+n || n > 8 {
		return 0, false
	}
	var height uint64
	for i := n - 1; i >= 0; i-- {
		height = height<<8 | uint64(script[1+i])
	}
	return height, true
}
