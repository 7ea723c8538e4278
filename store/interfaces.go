// Package store defines the persistence interfaces BitcoinProcessor depends
// on (TransactionStore, BlockMetadataStore, ServiceStateStore,
// QuantileGroupStore) and implements them against MongoDB.
package store

import (
	"context"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// TransactionStore is the ordered, append-only store of Sidetree
// transactions keyed by transactionNumber.
type TransactionStore interface {
	AddTransaction(ctx context.Context, tx model.Transaction) error
	// AddTransactionsBulk inserts every tx in one ordered bulk write, so a
	// duplicate-key error partway through the batch still aborts the rest
	// in order rather than leaving the outcome of later writes undefined.
	AddTransactionsBulk(ctx context.Context, txs []model.Transaction) error
	GetLastTransaction(ctx context.Context) (*model.Transaction, error)
	GetTransactionsStartingFrom(ctx context.Context, inclusiveStartHeight, exclusiveEndHeight uint64) ([]model.Transaction, error)
	GetTransactionsLaterThan(ctx context.Context, transactionNumber *uint64, max int) ([]model.Transaction, error)
	GetExponentiallySpacedTransactions(ctx context.Context) ([]model.Transaction, error)
	RemoveTransactionsLaterThan(ctx context.Context, transactionNumber *uint64) error
	RemoveTransactionByTransactionTimeHash(ctx context.Context, hash string) error
	GetTransactionsCount(ctx context.Context) (int64, error)
}

// BlockMetadataStore is the per-block metadata store, keyed by height.
type BlockMetadataStore interface {
	Add(ctx context.Context, blocks []model.BlockMetadata) error
	RemoveLaterThan(ctx context.Context, height *uint64) error
	Get(ctx context.Context, fromInclusive, toExclusive uint64) ([]model.BlockMetadata, error)
	GetLast(ctx context.Context) (*model.BlockMetadata, error)
	// LookBackExponentially returns the stored metadata at heights
	// maxHeight, maxHeight-1, maxHeight-2, maxHeight-4, ... >= minHeight,
	// in descending height order, skipping heights with no stored record.
	LookBackExponentially(ctx context.Context, maxHeight, minHeight uint64) ([]model.BlockMetadata, error)
}

// ServiceStateStore is the singleton record holding schema version and
// cached observed time.
type ServiceStateStore interface {
	Get(ctx context.Context) (*model.ServiceState, error)
	Put(ctx context.Context, state model.ServiceState) error
}

// QuantileGroupStore persists the sliding window of fee-frequency groups
// the quantile calculator maintains.
type QuantileGroupStore interface {
	Add(ctx context.Context, group model.QuantileGroup) error
	Get(ctx context.Context, groupID uint64) (*model.QuantileGroup, error)
	GetLast(ctx context.Context) (*model.QuantileGroup, error)
	RemoveGreaterThanOrEqual(ctx context.Context, groupID uint64) error
}

// exponentialLookBackOffsets computes the offset sequence 0, 1, 2, 4, 8, ...
// for "exponentially spaced" retrieval: the most recent record, then
// ever-more-widely-spaced older ones, so a handful of probes can find a
// common ancestor after a reorg of unknown depth.
func exponentialLookBackOffsets(maxValue, minValue uint64) []uint64 {
	if maxValue < minValue {
		return nil
	}
	offsets := []uint64{0}
	step := uint64(1)
	for maxValue >= minValue+step {
		offsets = append(offsets, step)
		step *= 2
	}
	return offsets
}

// exponentialLookBackHeights returns the descending height sequence
// maxHeight, maxHeight-1, maxHeight-2, maxHeight-4, ... clamped at
// minHeight.
func exponentialLookBackHeights(maxHeight, minHeight uint64) []uint64 {
	offsets := exponentialLookBackOffsets(maxHeight, minHeight)
	heights := make([]uint64, len(offsets))
	for i, off := range offsets {
		heights[i] = maxHeight - off
	}
	return heights
}
