package observer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// RevertDatabases looks back exponentially for the most recent stored
// block whose hash still
// matches the live chain, trims both stores back to that point (metadata
// first, so a crash mid-trim leaves metadata as the truncation authority
// for the next restart), and returns that block (nil if even genesis no
// longer validates against stored height bookkeeping — the caller then
// starts over from configured genesis).
func (p *Processor) RevertDatabases(ctx context.Context) (*model.BlockMetadata, error) {
	last, err := p.blocks.GetLast(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, nil
	}

	candidates, err := p.blocks.LookBackExponentially(ctx, last.Height, p.cfg.GenesisBlockNumber)
	if err != nil {
		return nil, errors.Wrap(err, "looking back exponentially for a valid ancestor")
	}

	lastValid, err := p.firstValidBlock(ctx, candidates)
	if err != nil {
		return nil, err
	}

	var trimHeight *uint64
	if lastValid != nil {
		h := lastValid.Height
		trimHeight = &h
	}
	if err := p.TrimDatabasesToBlock(ctx, trimHeight); err != nil {
		return nil, errors.Wrap(err, "trimming databases after revert")
	}

	log.Warnf("databases reverted; last valid block: %+v", lastValid)
	return lastValid, nil
}

// firstValidBlock returns the first candidate (in the order given —
// candidates are expected in descending height order) whose recorded
// hash still matches the live chain.
func (p *Processor) firstValidBlock(ctx context.Context, candidates []model.BlockMetadata) (*model.BlockMetadata, error) {
	for _, c := range candidates {
		valid, err := p.verifyBlock(ctx, c.Height, c.Hash)
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

// TrimDatabasesToBlock removes block metadata with height > h and
// transactions with transactionNumber > lastTransactionOfBlock(h). A nil
// h trims everything (full reset to genesis).
func (p *Processor) TrimDatabasesToBlock(ctx context.Context, h *uint64) error {
	if err := p.blocks.RemoveLaterThan(ctx, h); err != nil {
		return errors.Wrap(err, "trimming block metadata")
	}

	var txCutoff *uint64
	if h != nil {
		cutoff := model.LastTransactionOfBlock(*h)
		txCutoff = &cutoff
	}
	if err := p.transactions.RemoveTransactionsLaterThan(ctx, txCutoff); err != nil {
		return errors.Wrap(err, "trimming transactions")
	}

	if err := p.feeCalculator.TrimToGroupBoundary(ctx, valueOr(h, p.cfg.GenesisBlockNumber)); err != nil {
		return errors.Wrap(err, "trimming quantile groups")
	}

	return nil
}

func valueOr(h *uint64, fallback uint64) uint64 {
	if h == nil {
		return fallback
	}
	return *h
}
