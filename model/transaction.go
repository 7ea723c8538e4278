package model

// Transaction is a Sidetree-level anchoring transaction extracted from a
// Bitcoin transaction. Once persisted it is never mutated; it is removed
// only when a reorg trims the store back past its block.
type Transaction struct {
	// TransactionNumber is the composite, strictly-ordered key: see
	// ConstructTransactionNumber.
	TransactionNumber uint64 `bson:"transactionNumber" json:"transactionNumber"`

	// TransactionTime is the height of the block this transaction was
	// anchored in.
	TransactionTime uint64 `bson:"transactionTime" json:"transactionTime"`

	// TransactionTimeHash is the hash of the block at TransactionTime, as
	// observed at the time this transaction was processed. It is used to
	// detect whether a caller's view of the chain has since forked away.
	TransactionTimeHash string `bson:"transactionTimeHash" json:"transactionTimeHash"`

	// AnchorString is the Sidetree payload, i.e. the OP_RETURN data with
	// the configured prefix stripped. Opaque to this system.
	AnchorString string `bson:"anchorString" json:"anchorString"`

	// TransactionFeePaid is the fee, in satoshis, paid by the anchoring
	// Bitcoin transaction.
	TransactionFeePaid uint64 `bson:"transactionFeePaid" json:"transactionFeePaid"`

	// NormalizedTransactionFee is stamped in by the read path from the
	// containing block's BlockMetadata; it is not stored alongside the
	// transaction itself (the metadata store is the source of truth so
	// that a transaction record never needs rewriting).
	NormalizedTransactionFee *uint64 `bson:"-" json:"normalizedTransactionFee,omitempty"`

	// Writer is derived from the first input's referenced output address.
	// It is stable across reorgs of the anchoring transaction's spending
	// chain but is not a pubkey authentication; see sidetreetx.Parse.
	Writer string `bson:"writer" json:"writer"`
}
