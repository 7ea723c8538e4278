// Package observer implements BitcoinProcessor, the orchestrator that
// ties the bitcoin client, block parsing, Sidetree-tag detection, the
// persistence layer and the proof-of-fee pipeline into the steady-state
// and fast-sync observation loops, fork recovery, the anchor write path
// and the read API.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/config"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/fee"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/logger"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/sidetreetx"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/spending"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/store"
)

var log = logger.Logger(logger.TagObserver)

// Client is the subset of bitcoinclient.Client the processor depends on,
// narrowed to an interface so tests can substitute a fake node.
type Client interface {
	GetCurrentBlockHeight(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, height uint64) (string, error)
	GetBlockInfo(ctx context.Context, hash string) (*bitcoinclient.BlockInfo, error)
	GetBlockInfoFromHeight(ctx context.Context, height uint64) (*bitcoinclient.BlockInfo, error)
	GetBlock(ctx context.Context, hash string) (*bitcoinclient.BitcoinBlockModel, error)
	GetBalanceInSatoshis(ctx context.Context) (uint64, error)
	GetTransactionFeeInSatoshis(ctx context.Context, txID string) (uint64, error)
	CreateSidetreeTransaction(ctx context.Context, payload []byte, minFeeSatoshis uint64) (*bitcoinclient.UnsignedAnchorTransaction, error)
	BroadcastSidetreeTransaction(ctx context.Context, signedTransactionHex string) (string, error)
}

// StartingBlock identifies where the next sync pass should begin.
type StartingBlock struct {
	Height       uint64
	PreviousHash string
}

// Processor is BitcoinProcessor: the observer core.
type Processor struct {
	cfg *config.Config

	client            Client
	transactions      store.TransactionStore
	blocks            store.BlockMetadataStore
	serviceState      store.ServiceStateStore
	feeCalculator     *fee.Calculator
	spendingMonitor   *spending.Monitor
	sidetreeParser    *sidetreetx.Parser
	blockDataDirectory string

	mu                  sync.Mutex
	lastProcessedBlock  *model.BlockMetadata
	pollPeriod          time.Duration
	stopped             bool
}

// Deps bundles the components Processor orchestrates but doesn't
// construct itself.
type Deps struct {
	Client          Client
	Transactions    store.TransactionStore
	Blocks          store.BlockMetadataStore
	ServiceState    store.ServiceStateStore
	FeeCalculator   *fee.Calculator
	SpendingMonitor *spending.Monitor
}

// New returns a Processor wired from cfg and deps. It performs no I/O;
// call Initialize to bring it to a running state.
func New(cfg *config.Config, deps Deps) *Processor {
	return &Processor{
		cfg:                cfg,
		client:             deps.Client,
		transactions:       deps.Transactions,
		blocks:             deps.Blocks,
		serviceState:       deps.ServiceState,
		feeCalculator:      deps.FeeCalculator,
		spendingMonitor:    deps.SpendingMonitor,
		sidetreeParser:     sidetreetx.New(cfg.SidetreeTransactionPrefix),
		blockDataDirectory: cfg.BitcoinDataDirectory,
		pollPeriod:         time.Duration(cfg.TransactionPollPeriodInSeconds) * time.Second,
	}
}

// Initialize runs the startup sequence: verifies the persisted schema
// version, resolves where the next sync pass should begin (which may
// itself require a fork revert), and runs that initial sync pass. It
// starts neither the recurring background poll (PeriodicPoll) nor the
// lock monitor; callers own both, with the lock monitor started last.
func (p *Processor) Initialize(ctx context.Context) error {
	if err := p.checkDatabaseVersion(ctx); err != nil {
		return err
	}

	last, err := p.blocks.GetLast(ctx)
	if err != nil {
		return errors.Wrap(err, "reading last processed block")
	}
	p.mu.Lock()
	p.lastProcessedBlock = last
	p.mu.Unlock()

	start, err := p.getStartingBlockForPeriodicPoll(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving starting block")
	}
	if start == nil {
		log.Info("nothing to sync at startup; chain tip not yet beyond last processed block")
		return nil
	}

	if p.blockDataDirectory != "" {
		if err := p.FastProcessTransactions(ctx, *start); err != nil {
			return errors.Wrap(err, "fast-sync from raw block files")
		}
	} else {
		if err := p.ProcessTransactions(ctx, *start); err != nil {
			return errors.Wrap(err, "initial sync pass")
		}
	}

	return nil
}

func (p *Processor) checkDatabaseVersion(ctx context.Context) error {
	state, err := p.serviceState.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "reading service state")
	}

	if state == nil {
		return p.serviceState.Put(ctx, model.ServiceState{DatabaseVersion: model.DatabaseVersion})
	}

	switch {
	case state.DatabaseVersion == model.DatabaseVersion:
		return nil
	case state.DatabaseVersion > model.DatabaseVersion:
		return errs.ErrDatabaseDowngradeNotAllowed
	default:
		// Upgrade path for an older schema: wipe and resync from genesis.
		log.Warnf("persisted database version %s predates %s; wiping and resyncing from genesis", state.DatabaseVersion, model.DatabaseVersion)
		if err := p.blocks.RemoveLaterThan(ctx, nil); err != nil {
			return errors.Wrap(err, "wiping block metadata for upgrade")
		}
		if err := p.transactions.RemoveTransactionsLaterThan(ctx, nil); err != nil {
			return errors.Wrap(err, "wiping transactions for upgrade")
		}
		return p.serviceState.Put(ctx, model.ServiceState{DatabaseVersion: model.DatabaseVersion})
	}
}

// getStartingBlockForPeriodicPoll resolves where the next sync pass should
// begin: if there's no last processed block, trim everything and start
// from genesis; else verify the last block is still on the live chain
// (crash recovery if so), or revert if not. If
// the computed start is beyond the live tip, there is nothing to do this
// tick and (nil, nil) is returned.
func (p *Processor) getStartingBlockForPeriodicPoll(ctx context.Context) (*StartingBlock, error) {
	last, err := p.blocks.GetLast(ctx)
	if err != nil {
		return nil, err
	}

	var start StartingBlock
	if last == nil {
		if err := p.TrimDatabasesToBlock(ctx, nil); err != nil {
			return nil, err
		}
		genesisInfo, err := p.client.GetBlockInfoFromHeight(ctx, p.cfg.GenesisBlockNumber)
		if err != nil {
			return nil, errors.Wrap(err, "resolving genesis block")
		}
		start = StartingBlock{Height: genesisInfo.Height, PreviousHash: genesisInfo.PreviousHash}
	} else {
		valid, err := p.verifyBlock(ctx, last.Height, last.Hash)
		if err != nil {
			return nil, err
		}
		if valid {
			height := last.Height
			if err := p.TrimDatabasesToBlock(ctx, &height); err != nil {
				return nil, err
			}
			start = StartingBlock{Height: last.Height + 1, PreviousHash: last.Hash}
		} else {
			lastValid, err := p.RevertDatabases(ctx)
			if err != nil {
				return nil, err
			}
			if lastValid == nil {
				genesisInfo, err := p.client.GetBlockInfoFromHeight(ctx, p.cfg.GenesisBlockNumber)
				if err != nil {
					return nil, errors.Wrap(err, "resolving genesis block after revert")
				}
				start = StartingBlock{Height: genesisInfo.Height, PreviousHash: genesisInfo.PreviousHash}
			} else {
				start = StartingBlock{Height: lastValid.Height + 1, PreviousHash: lastValid.Hash}
			}
		}
	}

	tip, err := p.client.GetCurrentBlockHeight(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading chain tip")
	}
	if start.Height > tip {
		return nil, nil
	}
	return &start, nil
}

// verifyBlock reports whether the live chain's hash at height still
// matches hash.
func (p *Processor) verifyBlock(ctx context.Context, height uint64, hash string) (bool, error) {
	liveHash, err := p.client.GetBlockHash(ctx, height)
	if err != nil {
		return false, errors.Wrapf(err, "reading live block hash at height %d", height)
	}
	return liveHash == hash, nil
}

// LastProcessedBlock returns the most recently committed block metadata,
// or nil if nothing has been processed yet.
func (p *Processor) LastProcessedBlock() *model.BlockMetadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastProcessedBlock == nil {
		return nil
	}
	cp := *p.lastProcessedBlock
	return &cp
}

func (p *Processor) setLastProcessedBlock(b model.BlockMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastProcessedBlock = &b
}
