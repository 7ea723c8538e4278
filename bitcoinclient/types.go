package bitcoinclient

// BlockInfo is the minimal per-block identity triple the observer needs for
// fork detection and exponential look-back: its own hash, its height, and
// the hash it claims as its predecessor.
type BlockInfo struct {
	Hash         string
	Height       uint64
	PreviousHash string
}

// TransactionInput is one spent outpoint of a Bitcoin transaction, resolved
// enough to know what it paid (needed for fee computation and writer
// derivation).
type TransactionInput struct {
	PreviousTransactionID string
	PreviousOutputIndex   uint32

	// OutputValueSatoshis and OutputAddress describe the output this
	// input spends. They come pre-resolved by the node's verbose
	// getblock/getrawtransaction output; a client that can't resolve
	// them (e.g. a pruned node) leaves OutputAddress empty.
	OutputValueSatoshis uint64
	OutputAddress        string
}

// TransactionOutput is one output of a Bitcoin transaction.
type TransactionOutput struct {
	ValueSatoshis uint64

	// IsOpReturn is true iff this output's script is OP_RETURN <data>.
	IsOpReturn bool

	// OpReturnData is the raw payload bytes following the OP_RETURN
	// opcode, valid only when IsOpReturn is true.
	OpReturnData []byte

	// Address is the output's destination address, empty for
	// non-standard or OP_RETURN scripts.
	Address string
}

// BitcoinTransaction is a transaction as it appears inside a fetched block:
// enough structure for Sidetree-tag detection, fee computation and writer
// derivation, without carrying the full raw script interpreter machinery.
type BitcoinTransaction struct {
	ID      string
	Inputs  []TransactionInput
	Outputs []TransactionOutput

	// IsCoinbase is true for a block's first transaction, which has no
	// spendable inputs and must never be fee-queried.
	IsCoinbase bool
}

// BitcoinBlockModel is a fetched block: its identity plus its ordered list
// of transactions, in on-chain index order.
type BitcoinBlockModel struct {
	Hash         string
	Height       uint64
	PreviousHash string
	Transactions []BitcoinTransaction
}

// UnspentOutput is one entry from listunspent.
type UnspentOutput struct {
	TransactionID string
	OutputIndex   uint32
	ValueSatoshis uint64
	Address       string
}

// UnsignedAnchorTransaction is what CreateSidetreeTransaction hands back:
// an unsigned (or node-signed, depending on wallet mode) transaction ready
// for broadcast, plus the fee it actually committed to pay.
type UnsignedAnchorTransaction struct {
	RawTransactionHex string
	FeeSatoshis       uint64
	// RequiresExternalSigning is true when the node only holds a
	// watch-only import for the configured address, meaning
	// RawTransactionHex still needs a signature applied out of band
	// before BroadcastSidetreeTransaction will be accepted.
	RequiresExternalSigning bool
}

// AddressInfo mirrors the subset of getaddressinfo's response that
// determines whether the node can sign for an address itself.
type AddressInfo struct {
	IsMine      bool
	IsWatchOnly bool
	Solvable    bool
}
