// Package config defines the observer's recognized configuration surface
// and parses it from the command line with go-flags, following the shape
// used by kasparovd's config package. Loading from a config *file* (as
// opposed to flags) is left to the external collaborator that owns process
// bootstrapping; this package only owns the Config struct's shape and
// defaults, because every constructor in this module takes one.
package config

import (
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// Config is the immutable, fully-resolved configuration record passed by
// pointer into every constructor that needs it.
type Config struct {
	BitcoinPeerURI            string `long:"bitcoin-peer" description:"host:port of the Bitcoin full node's JSON-RPC endpoint" required:"true"`
	BitcoinRPCUsername        string `long:"bitcoin-rpc-user" description:"Bitcoin RPC basic-auth username" required:"true"`
	BitcoinRPCPassword        string `long:"bitcoin-rpc-password" description:"Bitcoin RPC basic-auth password" required:"true"`
	BitcoinWalletOrImportString string `long:"bitcoin-wallet" description:"watch-only wallet address, or a WIF import string for the signing key"`
	BitcoinDataDirectory      string `long:"bitcoin-data-dir" description:"optional directory containing blk*.dat files, enabling fast cold-start"`

	SidetreeTransactionPrefix string `long:"sidetree-prefix" description:"UTF-8 prefix identifying Sidetree-anchored OP_RETURN outputs" default:"sidetree:"`
	GenesisBlockNumber        uint64 `long:"genesis-block" description:"first block height the observer will ever scan" required:"true"`

	TransactionPollPeriodInSeconds int `long:"poll-period-seconds" description:"seconds between steady-state poll ticks" default:"60"`

	RequestTimeoutInMilliseconds int `long:"request-timeout-ms" description:"per-attempt JSON-RPC timeout in milliseconds" default:"10000"`
	RequestMaxRetries            int `long:"request-max-retries" description:"maximum retry rounds for a request-timeout failure" default:"3"`

	SidetreeTransactionFeeMarkupPercentage int     `long:"fee-markup-percentage" description:"percentage added on top of the minimum anchor fee" default:"5"`
	DefaultTransactionFeeInSatoshisPerKB   uint64  `long:"default-fee-rate" description:"fallback fee rate in satoshis/KB when the node can't estimate one" default:"1000"`
	BitcoinFeeSpendingCutoff               uint64  `long:"spending-cap" description:"maximum satoshis the observer may spend on anchors within one cutoff window" required:"true"`
	BitcoinFeeSpendingCutoffPeriodInBlocks uint64  `long:"spending-cap-period-blocks" description:"width, in blocks, of the rolling spending-cap window" default:"2016"`
	LowBalanceNoticeInDays                 int     `long:"low-balance-notice-days" description:"days of projected spend used to emit a low-balance warning" default:"7"`

	ValueTimeLockAmountInBitcoins             float64 `long:"value-time-lock-amount-btc" description:"collateral amount to lock for a higher write quota"`
	ValueTimeLockTransactionFeesAmountInBitcoins float64 `long:"value-time-lock-fees-btc" description:"BTC reserved to cover the lock/release transactions' fees"`
	ValueTimeLockPollPeriodInSeconds          int     `long:"value-time-lock-poll-period-seconds" description:"seconds between lock-monitor ticks" default:"600"`
	ValueTimeLockUpdateEnabled                bool    `long:"value-time-lock-update-enabled" description:"whether the lock monitor may create/renew locks"`
	ValueTimeLockConfirmationDepth             uint64  `long:"value-time-lock-confirmation-depth" description:"blocks of confirmation depth before a lock/release is considered final" default:"10"`

	NormalizedFeeGroupSizeInBlocks        uint64  `long:"fee-group-size-blocks" description:"width, in blocks, of one quantile group" default:"100"`
	NormalizedFeeHistoricalOffsetInBlocks uint64  `long:"fee-historical-offset-blocks" description:"blocks to look back before answering a normalized-fee query" default:"50"`
	NormalizedFeeSampleSizePerGroup       int     `long:"fee-sample-size" description:"reservoir sample size drawn per quantile group" default:"100"`
	NormalizedFeeMaxInputCountForSampling int     `long:"fee-sample-max-inputs" description:"transactions with more inputs than this are excluded from fee sampling" default:"10"`
	NormalizedFeeWindowSizeInGroups       int     `long:"fee-window-size-groups" description:"number of trailing quantile groups kept in the sliding window" default:"10"`
	NormalizedFeeQuantilePercentile       float64 `long:"fee-quantile-percentile" description:"percentile of the sampled fee distribution reported as the normalized fee" default:"0.1"`

	MongoDBConnectionString string `long:"mongodb-connection-string" description:"connection string for the MongoDB deployment backing the three stores" required:"true"`
	DatabaseName             string `long:"database-name" description:"MongoDB database name" default:"sidetree_bitcoin"`

	LogDir   string `long:"log-dir" description:"directory the rotating log files are written to" default:"./logs"`
	LogLevel string `long:"log-level" description:"initial log level, or tag=level,tag=level pairs" default:"info"`
}

// Parse parses os.Args into a Config, applying defaults for any flag that
// wasn't supplied.
func Parse() (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, errors.Wrap(err, "parsing command-line arguments")
	}
	return cfg, nil
}
