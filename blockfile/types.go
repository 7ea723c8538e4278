package blockfile

// RawOutPoint identifies a spent output: the hash (big-endian, display
// order) of its containing transaction, and its index within that
// transaction's output list.
type RawOutPoint struct {
	PreviousTransactionID string
	PreviousOutputIndex   uint32
}

// RawInput is one transaction input, decoded just enough to detect the
// coinbase marker. Fast sync never resolves the output an input spends, so
// neither its value nor its address is known on this path: writers of
// fast-synced anchors are anonymous, and block fee accounting is computed
// from coinbase outputs instead (see model.BlockReward).
type RawInput struct {
	RawOutPoint
	SignatureScript []byte
	Sequence        uint32
}

// RawOutput is one transaction output.
type RawOutput struct {
	ValueSatoshis uint64
	PubKeyScript  []byte
}

// RawTransaction is a transaction as decoded directly from a blk*.dat file.
type RawTransaction struct {
	ID      string
	Inputs  []RawInput
	Outputs []RawOutput
}

// IsCoinbase reports whether this transaction is a block's coinbase: its
// single input spends the null outpoint (all-zero hash, index 0xffffffff).
func (t RawTransaction) IsCoinbase() bool {
	if len(t.Inputs) != 1 {
		return false
	}
	in := t.Inputs[0]
	return in.PreviousOutputIndex == 0xffffffff && isZeroHash(in.PreviousTransactionID)
}

func isZeroHash(hash string) bool {
	for _, r := range hash {
		if r != '0' {
			return false
		}
	}
	return len(hash) > 0
}

// RawBlockHeader is a block header as it appears on disk.
type RawBlockHeader struct {
	Version       int32
	PreviousHash  string
	MerkleRoot    string
	Timestamp     uint32
	Bits          uint32
	Nonce         uint32
}

// RawBlock is one decoded block from a blk*.dat file.
type RawBlock struct {
	Hash         string
	Header       RawBlockHeader
	Transactions []RawTransaction
}
