package observer

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/blockfile"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
)

// FastProcessTransactions is the cold-start fast path: instead of walking
// the chain one GetBlock RPC at a time from start to tip, it decodes every
// blk*.dat file under the configured data directory directly, and links
// the decoded blocks into height order by walking backward from the live
// tip through each block's PreviousHash, exactly as a full node itself
// establishes its active chain. Blocks the backward walk never reaches are
// orphans — stale forks left on disk by a reorg or out-of-order download —
// and any previously persisted transactions anchored in them are removed.
// Anything this pass can't find on disk falls back to the steady-state RPC
// path for the remainder.
func (p *Processor) FastProcessTransactions(ctx context.Context, start StartingBlock) error {
	tip, err := p.client.GetCurrentBlockHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "reading chain tip")
	}

	tipInfo, err := p.client.GetBlockInfoFromHeight(ctx, tip)
	if err != nil {
		return errors.Wrap(err, "resolving chain tip block")
	}

	raw, err := blockfile.ReadDirectory(p.blockDataDirectory)
	if err != nil {
		return errors.Wrap(err, "reading block files")
	}

	chain, orphans, err := blockfile.IndexByHeight(raw, tipInfo.Hash)
	if err != nil {
		log.Warnf("fast-sync: %v; falling back to RPC sync for the full range", err)
		return p.ProcessTransactions(ctx, start)
	}

	if len(orphans) > 0 {
		if err := p.removeOrphanedTransactions(ctx, orphans); err != nil {
			return errors.Wrap(err, "removing orphaned fast-sync transactions")
		}
	}

	var inRange []blockfile.IndexedBlock
	for _, b := range chain {
		if b.Height >= start.Height && b.Height <= tip {
			inRange = append(inRange, b)
		}
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].Height < inRange[j].Height })

	if len(inRange) == 0 {
		log.Info("fast-sync: no on-disk blocks cover the requested range; falling back to RPC sync")
		return p.ProcessTransactions(ctx, start)
	}

	prevHash := start.PreviousHash
	var lastProcessedHeight uint64
	for _, indexed := range inRange {
		if indexed.Header.PreviousHash != prevHash {
			return errs.ErrInvalidPreviousBlockHash
		}

		blockModel := blockfile.ToBitcoinBlockModel(indexed.RawBlock)
		blockModel.Height = indexed.Height

		meta, err := p.processDecodedBlock(ctx, indexed.Height, prevHash, &blockModel)
		if err != nil {
			return errors.Wrapf(err, "fast-sync processing block at height %d", indexed.Height)
		}
		p.setLastProcessedBlock(*meta)

		prevHash = meta.Hash
		lastProcessedHeight = indexed.Height
	}

	if lastProcessedHeight < tip {
		remainder := StartingBlock{Height: lastProcessedHeight + 1, PreviousHash: prevHash}
		return p.ProcessTransactions(ctx, remainder)
	}

	return nil
}

// removeOrphanedTransactions drops every previously persisted transaction
// anchored in an orphaned block, identified by that block's hash as
// TransactionTimeHash.
func (p *Processor) removeOrphanedTransactions(ctx context.Context, orphans []blockfile.RawBlock) error {
	for _, b := range orphans {
		if err := p.transactions.RemoveTransactionByTransactionTimeHash(ctx, b.Hash); err != nil {
			return errors.Wrapf(err, "removing transactions anchored in orphaned block %s", b.Hash)
		}
	}
	return nil
}
