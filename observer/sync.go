package observer

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// PeriodicPoll runs the steady-state observation loop forever, until ctx
// is cancelled. Only one tick's worth of work is ever outstanding: the
// next wait begins only after the previous tick (and any timer it set)
// has fully completed.
func (p *Processor) PeriodicPoll(ctx context.Context) {
	for {
		p.runOneTick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.pollPeriod):
		}

		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped {
			return
		}
	}
}

// Stop signals PeriodicPoll to exit after its current tick.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *Processor) runOneTick(ctx context.Context) {
	start, err := p.getStartingBlockForPeriodicPoll(ctx)
	if err != nil {
		log.Errorf("observer-loop-failure resolving starting block: %v", err)
		return
	}
	if start == nil {
		return
	}

	if err := p.ProcessTransactions(ctx, *start); err != nil {
		log.Errorf("observer-loop-failure processing transactions: %v", err)
		return
	}
}

// ProcessTransactions walks forward from startBlock to the current chain
// tip, calling ProcessBlock for each height in order.
func (p *Processor) ProcessTransactions(ctx context.Context, startBlock StartingBlock) error {
	endHeight, err := p.client.GetCurrentBlockHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "reading chain tip")
	}
	if startBlock.Height < p.cfg.GenesisBlockNumber {
		return errors.Errorf("starting block height %d is below genesis %d", startBlock.Height, p.cfg.GenesisBlockNumber)
	}

	height := startBlock.Height
	prevHash := startBlock.PreviousHash
	for height <= endHeight {
		meta, err := p.ProcessBlock(ctx, height, prevHash)
		if err != nil {
			return err
		}
		p.setLastProcessedBlock(*meta)
		height++
		prevHash = meta.Hash
	}
	return nil
}

// isSidetreeTransaction reports whether tx would be recognized as a
// Sidetree transaction, without returning its parsed payload. The fee
// sampler uses this to exclude Sidetree anchors from its candidate pool.
func (p *Processor) isSidetreeTransaction(tx bitcoinclient.BitcoinTransaction) bool {
	_, ok := p.sidetreeParser.Parse(tx)
	return ok
}

// ProcessBlock processes exactly one block: fetches it, checks it chains
// from prevHash, runs Sidetree-tag detection and the fee sampler over its
// transactions, persists matched transactions, and finally appends the
// block's metadata row (only after all of its transactions have
// committed). ProcessBlock is idempotent: AddTransactionsBulk and
// Add(blockMetadata) both tolerate replays.
func (p *Processor) ProcessBlock(ctx context.Context, height uint64, prevHash string) (*model.BlockMetadata, error) {
	hash, err := p.client.GetBlockHash(ctx, height)
	if err != nil {
		return nil, errors.Wrapf(err, "reading block hash at height %d", height)
	}
	block, err := p.client.GetBlock(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching block %s", hash)
	}

	if block.PreviousHash != prevHash {
		return nil, errs.ErrInvalidPreviousBlockHash
	}

	return p.processDecodedBlock(ctx, height, prevHash, block)
}

// processDecodedBlock runs Sidetree-tag detection and the fee sampler over
// an already-fetched block (from either the RPC path or the on-disk
// fast-sync path) and persists the result. Callers are responsible for
// having already verified block chains from prevHash.
func (p *Processor) processDecodedBlock(ctx context.Context, height uint64, prevHash string, block *bitcoinclient.BitcoinBlockModel) (*model.BlockMetadata, error) {
	hash := block.Hash

	if err := p.feeCalculator.ProcessBlock(ctx, block, height, p.isSidetreeTransaction); err != nil {
		return nil, errors.Wrap(err, "updating normalized fee sampler")
	}

	var totalCoinbaseOutputs uint64
	var records []model.Transaction
	for index, tx := range block.Transactions {
		if tx.IsCoinbase {
			for _, out := range tx.Outputs {
				totalCoinbaseOutputs += out.ValueSatoshis
			}
			continue
		}

		tagged, ok := p.sidetreeParser.Parse(tx)
		if !ok {
			continue
		}

		txFee, err := p.client.GetTransactionFeeInSatoshis(ctx, tx.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "resolving fee for sidetree transaction %s", tx.ID)
		}

		txNumber := model.ConstructTransactionNumber(height, uint64(index))
		records = append(records, model.Transaction{
			TransactionNumber:   txNumber,
			TransactionTime:     height,
			TransactionTimeHash: hash,
			AnchorString:        tagged.AnchorString,
			TransactionFeePaid:  txFee,
			Writer:              tagged.Writer,
		})
	}

	if len(records) > 0 {
		if err := p.transactions.AddTransactionsBulk(ctx, records); err != nil {
			return nil, errors.Wrapf(err, "persisting sidetree transactions for block %s", hash)
		}
	}

	totalFee := blockFeeSafe(totalCoinbaseOutputs, model.BlockReward(height))

	meta := model.BlockMetadata{
		Height:           height,
		Hash:             hash,
		PreviousHash:     prevHash,
		TotalFee:         totalFee,
		TransactionCount: uint64(len(block.Transactions)),
	}

	normalizedFee, err := p.feeCalculator.GetNormalizedFee(ctx, height)
	if err == nil {
		meta.NormalizedFee = &normalizedFee
	} else if !errors.Is(err, errs.ErrBlockchainTimeOutOfRange) {
		return nil, errors.Wrap(err, "reading normalized fee for new block metadata")
	}

	if err := p.blocks.Add(ctx, []model.BlockMetadata{meta}); err != nil {
		return nil, errors.Wrapf(err, "persisting block metadata at height %d", height)
	}

	return &meta, nil
}

// blockFeeSafe subtracts reward from totalCoinbaseOutputs without
// underflowing when a malformed or synthetic test block reports less
// than the expected reward.
func blockFeeSafe(totalCoinbaseOutputs, reward uint64) uint64 {
	if reward > totalCoinbaseOutputs {
		return 0
	}
	return totalCoinbaseOutputs - reward
}
