// Command sidetreed runs the Sidetree Bitcoin observer: it connects to a
// Bitcoin full node and a MongoDB deployment, brings BitcoinProcessor to a
// caught-up state, and then runs its steady-state poll loop and (if
// configured) value-time-lock monitor until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/config"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/fee"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/locktx"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/logger"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/observer"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/spending"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/store"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/util/panics"
)

var log = logger.Logger(logger.TagObserver)

func main() {
	defer panics.HandlePanic(log, nil)

	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogRotator(cfg.LogDir + "/sidetreed.log"); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing log rotator: %s\n", err)
		os.Exit(1)
	}
	if err := logger.ParseAndSetDebugLevels(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "error setting log level: %s\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Criticalf("fatal startup error: %+v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := store.Connect(ctx, cfg.MongoDBConnectionString, cfg.DatabaseName)
	if err != nil {
		return fmt.Errorf("connecting to mongodb: %w", err)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			log.Errorf("error disconnecting from mongodb: %v", err)
		}
	}()

	client := bitcoinclient.New(cfg)
	if err := client.Initialize(ctx); err != nil {
		return fmt.Errorf("connecting to bitcoin node: %w", err)
	}

	feeCalculator := fee.NewCalculator(fee.Config{
		GenesisBlockNumber:        cfg.GenesisBlockNumber,
		GroupSizeInBlocks:         cfg.NormalizedFeeGroupSizeInBlocks,
		HistoricalOffsetInBlocks:  cfg.NormalizedFeeHistoricalOffsetInBlocks,
		SampleSizePerGroup:        cfg.NormalizedFeeSampleSizePerGroup,
		MaxInputCountForSampledTx: cfg.NormalizedFeeMaxInputCountForSampling,
		WindowSizeInGroups:        cfg.NormalizedFeeWindowSizeInGroups,
		QuantilePercentile:        cfg.NormalizedFeeQuantilePercentile,
	}, db.QuantileGroups(), client)

	spendingMonitor := spending.NewMonitor(cfg.BitcoinFeeSpendingCutoffPeriodInBlocks, cfg.BitcoinFeeSpendingCutoff)

	processor := observer.New(cfg, observer.Deps{
		Client:          client,
		Transactions:    db.Transactions(),
		Blocks:          db.BlockMetadata(),
		ServiceState:    db.ServiceState(),
		FeeCalculator:   feeCalculator,
		SpendingMonitor: spendingMonitor,
	})

	if err := processor.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing observer: %w", err)
	}

	spawn := panics.GoroutineWrapperFunc(log)
	spawn(func() { processor.PeriodicPoll(ctx) })

	// The lock monitor starts last: it depends on the observer already
	// being caught up enough to resolve confirmation depths sensibly.
	if cfg.ValueTimeLockAmountInBitcoins > 0 {
		lockMonitor := locktx.NewMonitor(
			store.NewLockTransactionStore(db),
			lockResolver{client: client},
			cfg.ValueTimeLockConfirmationDepth,
			btcToSatoshis(cfg.ValueTimeLockAmountInBitcoins),
			cfg.ValueTimeLockUpdateEnabled,
		)
		spawn(func() {
			runLockMonitor(ctx, lockMonitor, time.Duration(cfg.ValueTimeLockPollPeriodInSeconds)*time.Second)
		})
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("sidetreed is running; press ctrl+c to exit")
	<-interrupt

	log.Info("shutting down")
	processor.Stop()
	return nil
}

func runLockMonitor(ctx context.Context, monitor *locktx.Monitor, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := monitor.Poll(ctx); err != nil {
				log.Errorf("value-time-lock monitor poll failed: %v", err)
			}
		}
	}
}

// lockResolver adapts *bitcoinclient.Client to locktx.Resolver.
type lockResolver struct {
	client *bitcoinclient.Client
}

func (r lockResolver) Confirmations(ctx context.Context, transactionID string) (uint64, error) {
	return r.client.GetTransactionConfirmations(ctx, transactionID)
}

func (r lockResolver) CurrentHeight(ctx context.Context) (uint64, error) {
	return r.client.GetCurrentBlockHeight(ctx)
}

func btcToSatoshis(btc float64) uint64 {
	const satoshisPerBTC = 100000000
	return uint64(btc*satoshisPerBTC + 0.5)
}
