// Package model holds the data types shared across the observer: the
// Sidetree transaction record, block metadata, quantile groups and the
// singleton service-state document.
package model

import "fmt"

// MaxIndexInBlock is the largest index a Sidetree transaction may have
// within its containing block. TransactionNumber encodes the index in the
// low six decimal digits, so an index beyond this overflows into the block
// height's digits.
const MaxIndexInBlock = 999999

// MaxBlockHeight is the largest block height ConstructTransactionNumber
// accepts. MaxBlockHeight*10^6 + MaxIndexInBlock is about 9*10^15, well
// within the range of an int64.
const MaxBlockHeight = 9000000000

// transactionNumberIndexMultiplier is 10^len("999999"), i.e. the value a
// block height is multiplied by before the in-block index is added.
const transactionNumberIndexMultiplier = 1000000

// ConstructTransactionNumber builds the composite, strictly-ordered key used
// to identify a Sidetree transaction: blockHeight*10^6 + indexInBlock.
//
// blockHeight > MaxBlockHeight or indexInBlock > MaxIndexInBlock is a
// programmer error (an upstream invariant violation, not a runtime
// condition this package can recover from) and therefore panics rather than
// returning an error.
func ConstructTransactionNumber(blockHeight, indexInBlock uint64) uint64 {
	if blockHeight > MaxBlockHeight {
		panic(fmt.Sprintf("block height %d exceeds the maximum of %d", blockHeight, MaxBlockHeight))
	}
	if indexInBlock > MaxIndexInBlock {
		panic(fmt.Sprintf("transaction index %d exceeds the maximum of %d", indexInBlock, MaxIndexInBlock))
	}
	return blockHeight*transactionNumberIndexMultiplier + indexInBlock
}

// BlockHeightFromTransactionNumber recovers the block height encoded in a
// transactionNumber produced by ConstructTransactionNumber.
func BlockHeightFromTransactionNumber(transactionNumber uint64) uint64 {
	return transactionNumber / transactionNumberIndexMultiplier
}

// IndexInBlockFromTransactionNumber recovers the in-block index encoded in
// a transactionNumber produced by ConstructTransactionNumber.
func IndexInBlockFromTransactionNumber(transactionNumber uint64) uint64 {
	return transactionNumber % transactionNumberIndexMultiplier
}

// LastTransactionOfBlock returns the largest transactionNumber that could
// belong to the given block height, i.e. (height+1)*10^6 - 1. It is used as
// the upper bound when trimming the transaction store back to a block
// boundary during reorg recovery.
func LastTransactionOfBlock(height uint64) uint64 {
	return (height+1)*transactionNumberIndexMultiplier - 1
}
