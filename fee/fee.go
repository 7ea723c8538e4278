// Package fee wires the reservoir sampler and the sliding-window quantile
// calculator into the per-block normalized fee computation: BitcoinProcessor
// calls Calculator.ProcessBlock once per block and Calculator.GetNormalizedFee
// to answer Core's fee queries.
package fee

import (
	"context"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/quantile"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/sampler"
)

// FeeSource resolves a transaction id to the fee it paid, normally backed
// by bitcoinclient.Client.GetTransactionFeeInSatoshis.
type FeeSource interface {
	GetTransactionFeeInSatoshis(ctx context.Context, txID string) (uint64, error)
}

// Calculator computes the per-block normalized fee from a rolling sample
// of non-Sidetree transaction fees.
type Calculator struct {
	genesisBlockNumber          uint64
	groupSizeInBlocks           uint64
	historicalOffsetInBlocks    uint64
	maxInputCountForSampledTx   int
	sampleSizePerGroup          int

	sampler    *sampler.ReservoirSampler
	quantile   *quantile.Calculator
	feeSource  FeeSource
}

// Config bundles the NormalizedFeeCalculator's tunables, all of which the
// original system hardcodes as module-level constants.
type Config struct {
	GenesisBlockNumber        uint64
	GroupSizeInBlocks         uint64
	HistoricalOffsetInBlocks  uint64
	SampleSizePerGroup        int
	MaxInputCountForSampledTx int
	WindowSizeInGroups        int
	QuantilePercentile        float64
}

// NewCalculator returns a Calculator backed by store for quantile
// persistence and feeSource for resolving sampled transaction ids to
// actual fees.
func NewCalculator(cfg Config, store quantile.Store, feeSource FeeSource) *Calculator {
	return &Calculator{
		genesisBlockNumber:        cfg.GenesisBlockNumber,
		groupSizeInBlocks:         cfg.GroupSizeInBlocks,
		historicalOffsetInBlocks:  cfg.HistoricalOffsetInBlocks,
		maxInputCountForSampledTx: cfg.MaxInputCountForSampledTx,
		sampleSizePerGroup:        cfg.SampleSizePerGroup,
		sampler:                   sampler.NewReservoirSampler(cfg.SampleSizePerGroup),
		quantile:                  quantile.NewCalculator(store, cfg.WindowSizeInGroups, cfg.QuantilePercentile),
		feeSource:                 feeSource,
	}
}

// GroupID maps a block height to the group range (of groupSizeInBlocks
// consecutive heights) it falls in.
func (c *Calculator) GroupID(height uint64) uint64 {
	return height / c.groupSizeInBlocks
}

// ProcessBlock reseeds the sampler from the block's hash, offers every
// eligible non-Sidetree transaction id to it, and, if height completes a
// group (`(height+1) mod groupSizeInBlocks == 0`), drains the sampler,
// resolves each sampled id's fee by RPC, folds the resulting histogram into
// the quantile calculator, then clears the sampler for the next group.
func (c *Calculator) ProcessBlock(ctx context.Context, block *bitcoinclient.BitcoinBlockModel, height uint64, isSidetreeTransaction func(bitcoinclient.BitcoinTransaction) bool) error {
	c.sampler.ResetPseudoRandomSeed(block.Hash)

	for _, tx := range block.Transactions {
		if tx.IsCoinbase {
			continue
		}
		if isSidetreeTransaction(tx) {
			continue
		}
		if len(tx.Inputs) > c.maxInputCountForSampledTx {
			continue
		}
		c.sampler.Offer(tx.ID)
	}

	if (height+1)%c.groupSizeInBlocks != 0 {
		return nil
	}

	sampled := c.sampler.GetSample()
	fees := make([]uint64, 0, len(sampled))
	for _, txID := range sampled {
		f, err := c.feeSource.GetTransactionFeeInSatoshis(ctx, txID)
		if err != nil {
			return errors.Wrapf(err, "resolving sampled transaction fee for %s", txID)
		}
		fees = append(fees, f)
	}

	if err := c.quantile.Add(ctx, c.GroupID(height), fees); err != nil {
		return errors.Wrap(err, "adding group to quantile calculator")
	}

	c.sampler.Clear()
	return nil
}

// GetNormalizedFee returns the quantile at groupId(max(height -
// historicalOffsetInBlocks, genesis)), or ErrBlockchainTimeOutOfRange if
// height predates genesis or the calculator has no answer for that group
// yet (the quantile window hasn't warmed up).
func (c *Calculator) GetNormalizedFee(ctx context.Context, height uint64) (uint64, error) {
	if height < c.genesisBlockNumber {
		return 0, errs.ErrBlockchainTimeOutOfRange
	}

	offsetHeight := c.genesisBlockNumber
	if height > c.historicalOffsetInBlocks {
		candidate := height - c.historicalOffsetInBlocks
		if candidate > offsetHeight {
			offsetHeight = candidate
		}
	}

	groupID := c.GroupID(offsetHeight)
	q, err := c.quantile.GetQuantile(ctx, groupID)
	if err != nil {
		return 0, errors.Wrap(err, "reading quantile")
	}
	if q == nil {
		return 0, errs.ErrBlockchainTimeOutOfRange
	}
	return *q, nil
}

// TrimToGroupBoundary removes every quantile group with id >=
// groupId(lastValidBlock), for reorg recovery.
func (c *Calculator) TrimToGroupBoundary(ctx context.Context, lastValidBlock uint64) error {
	return c.quantile.RemoveGroupsGreaterThanOrEqual(ctx, c.GroupID(lastValidBlock))
}
