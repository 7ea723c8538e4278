package observer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// BlockchainTime identifies a point on the observed chain by height and
// hash.
type BlockchainTime struct {
	Time uint64
	Hash string
}

// Time returns the observed block at hash, or — with hash omitted — the
// last processed block. Note this is deliberately not the live tip: a
// caller stamping a Core operation with an unprocessed height could anchor
// against a block this observer might still revert.
func (p *Processor) Time(ctx context.Context, hash *string) (*BlockchainTime, error) {
	if hash == nil {
		last := p.LastProcessedBlock()
		if last == nil {
			return nil, errs.ErrBlockchainTimeOutOfRange
		}
		return &BlockchainTime{Time: last.Height, Hash: last.Hash}, nil
	}

	info, err := p.client.GetBlockInfo(ctx, *hash)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving block info for %s", *hash)
	}
	return &BlockchainTime{Time: info.Height, Hash: info.Hash}, nil
}

// TransactionsPage is one page of the transactions(since?, hash?) read API.
type TransactionsPage struct {
	MoreTransactions bool
	Transactions     []model.Transaction
}

// Transactions validates the caller's claimed position against the live
// chain, then
// returns every transaction strictly after since up to whole-block
// granularity, each stamped with its containing block's normalized fee.
func (p *Processor) Transactions(ctx context.Context, since *uint64, hash *string) (*TransactionsPage, error) {
	if (since == nil) != (hash == nil) {
		return nil, errs.ErrBadRequest
	}

	last := p.LastProcessedBlock()
	if last == nil {
		return &TransactionsPage{MoreTransactions: false}, nil
	}

	startHeight := p.cfg.GenesisBlockNumber
	if since != nil {
		sinceHeight := model.BlockHeightFromTransactionNumber(*since)
		valid, err := p.verifyBlock(ctx, sinceHeight, *hash)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, errs.ErrInvalidTransactionNumberOrTimeHash
		}
		startHeight = sinceHeight
	}

	stillValid, err := p.verifyBlock(ctx, last.Height, last.Hash)
	if err != nil {
		return nil, err
	}
	if !stillValid {
		return &TransactionsPage{MoreTransactions: false}, nil
	}

	txs, err := p.transactions.GetTransactionsStartingFrom(ctx, startHeight, last.Height+1)
	if err != nil {
		return nil, errors.Wrap(err, "reading transactions")
	}

	var filtered []model.Transaction
	var lastBlockReturned uint64
	for _, tx := range txs {
		if since != nil && tx.TransactionNumber <= *since {
			continue
		}
		if tx.TransactionTime > last.Height {
			continue
		}

		meta, err := p.blockMetadataAt(ctx, tx.TransactionTime)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			tx.NormalizedTransactionFee = meta.NormalizedFee
		}

		filtered = append(filtered, tx)
		if tx.TransactionTime > lastBlockReturned {
			lastBlockReturned = tx.TransactionTime
		}
	}

	return &TransactionsPage{
		MoreTransactions: lastBlockReturned < last.Height,
		Transactions:     filtered,
	}, nil
}

func (p *Processor) blockMetadataAt(ctx context.Context, height uint64) (*model.BlockMetadata, error) {
	rows, err := p.blocks.Get(ctx, height, height+1)
	if err != nil {
		return nil, errors.Wrapf(err, "reading block metadata at height %d", height)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// FirstValidTransaction returns the first of candidates whose (time, hash)
// still matches the live chain, used by a caller doing its own reorg
// recovery to find a safe re-anchor point.
func (p *Processor) FirstValidTransaction(ctx context.Context, candidates []BlockchainTime) (*BlockchainTime, error) {
	for _, c := range candidates {
		valid, err := p.verifyBlock(ctx, c.Time, c.Hash)
		if err != nil {
			return nil, err
		}
		if valid {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

// GetNormalizedFee delegates to the fee calculator, rejecting heights
// below genesis or not yet covered by the quantile window with
// errs.ErrBlockchainTimeOutOfRange.
func (p *Processor) GetNormalizedFee(ctx context.Context, height uint64) (uint64, error) {
	return p.feeCalculator.GetNormalizedFee(ctx, height)
}
