// Package blockfile implements RawBlockFileParser: reading on-disk blk*.dat
// files for fast cold-start, bypassing per-block RPC calls. The varint and
// element-reading helpers below follow the conventions of btcd-family
// wire-format readers, adapted to plain Bitcoin (single previous-block
// hash, no DAG parent list).
package blockfile

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Magic bytes identifying a blk*.dat file's network, and the all-zero
// sentinel some implementations pad the file out with, which signals "stop
// reading this file".
var (
	MagicMainNet = [4]byte{0xf9, 0xbe, 0xb4, 0xd9}
	MagicTestNet = [4]byte{0x0b, 0x11, 0x09, 0x07}
	MagicSkip    = [4]byte{0x00, 0x00, 0x00, 0x00}
)

func readUint32LE(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64LE(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readInt64LE(r io.Reader) (int64, error) {
	v, err := readUint64LE(r)
	return int64(v), err
}

func readBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readVarInt reads Bitcoin's CompactSize variable-length integer.
func readVarInt(r io.Reader) (uint64, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}
	switch first[0] {
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[:])), nil
	case 0xfe:
		v, err := readUint32LE(r)
		return uint64(v), err
	case 0xff:
		return readUint64LE(r)
	default:
		return uint64(first[0]), nil
	}
}

// readVarBytes reads a varint-prefixed byte string (a "script" in Bitcoin's
// wire format: scriptSig, scriptPubKey, witness items, coinbase script).
func readVarBytes(r io.Reader) ([]byte, error) {
	n, err := readVarInt(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading var-bytes length")
	}
	return readBytes(r, int(n))
}
