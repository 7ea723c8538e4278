// Package bitcoinclient is a thin, typed wrapper over a Bitcoin full node's
// JSON-RPC interface: block hash/height lookups, verbose block fetches,
// unspent-output listing, and anchor transaction creation/broadcast.
package bitcoinclient

import (
	"context"
	"net/http"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/config"
	"github.com/decentralized-identity/sidetree-bitcoin-observer/logger"
)

var log = logger.Logger(logger.TagClient)

// Client is a JSON-RPC client bound to one Bitcoin full node.
type Client struct {
	cfg        *config.Config
	url        string
	httpClient *http.Client
	log        btclog.Logger
}

// New returns a Client configured from cfg. It does not touch the network;
// call Initialize to block until the node is reachable.
func New(cfg *config.Config) *Client {
	return &Client{
		cfg: cfg,
		url: "http://" + cfg.BitcoinPeerURI,
		httpClient: &http.Client{
			// The per-request deadline is applied via context in call();
			// this is only a backstop against a hung connection.
			Timeout: 2 * time.Minute,
		},
		log: log,
	}
}

// Initialize ensures the wallet's watch-only address is imported into the
// node and blocks, retrying with real exponential backoff (as opposed to
// call()'s retry-on-timeout-only policy, since here we're waiting out an
// arbitrary startup race with the node rather than a single flaky request),
// until the RPC endpoint answers.
func (c *Client) Initialize(ctx context.Context) error {
	waitForNode := func() error {
		_, err := c.GetCurrentBlockHeight(ctx)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // retry indefinitely; only ctx cancellation stops us

	err := backoff.Retry(waitForNode, backoff.WithContext(b, ctx))
	if err != nil {
		return errors.Wrap(err, "waiting for bitcoin rpc to become reachable")
	}

	if c.cfg.BitcoinWalletOrImportString == "" {
		return nil
	}
	var imported bool
	err = c.call(ctx, "importpubkey", []interface{}{c.cfg.BitcoinWalletOrImportString, "sidetree observer watch-only import", false}, &imported)
	if err != nil {
		return errors.Wrap(err, "importing watch-only pubkey")
	}
	return nil
}

// GetCurrentBlockHeight returns the node's current chain tip height.
func (c *Client) GetCurrentBlockHeight(ctx context.Context) (uint64, error) {
	var height uint64
	if err := c.call(ctx, "getblockcount", nil, &height); err != nil {
		return 0, errors.Wrap(err, "getblockcount")
	}
	return height, nil
}

// GetBlockHash returns the hash of the block at the given height.
func (c *Client) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	var hash string
	if err := c.call(ctx, "getblockhash", []interface{}{height}, &hash); err != nil {
		return "", errors.Wrapf(err, "getblockhash(%d)", height)
	}
	return hash, nil
}

type verboseBlockHeader struct {
	Hash              string `json:"hash"`
	Height            uint64 `json:"height"`
	PreviousBlockHash string `json:"previousblockhash"`
}

// GetBlockInfo returns the identity triple (hash, height, previousHash) of
// the block with the given hash.
func (c *Client) GetBlockInfo(ctx context.Context, hash string) (*BlockInfo, error) {
	var header verboseBlockHeader
	if err := c.call(ctx, "getblock", []interface{}{hash, 1}, &header); err != nil {
		return nil, errors.Wrapf(err, "getblock(%s)", hash)
	}
	return &BlockInfo{Hash: header.Hash, Height: header.Height, PreviousHash: header.PreviousBlockHash}, nil
}

// GetBlockInfoFromHeight is GetBlockInfo composed with a height->hash lookup.
func (c *Client) GetBlockInfoFromHeight(ctx context.Context, height uint64) (*BlockInfo, error) {
	hash, err := c.GetBlockHash(ctx, height)
	if err != nil {
		return nil, err
	}
	return c.GetBlockInfo(ctx, hash)
}

type verboseScriptPubKey struct {
	Hex       string   `json:"hex"`
	Addresses []string `json:"addresses"`
	Address   string   `json:"address"`
	Type      string   `json:"type"`
}

type verboseVout struct {
	Value        float64             `json:"value"`
	N            uint32              `json:"n"`
	ScriptPubKey verboseScriptPubKey `json:"scriptPubKey"`
}

type verboseVin struct {
	TxID      string `json:"txid"`
	Vout      uint32 `json:"vout"`
	Coinbase  string `json:"coinbase"`
	PrevOut   *struct {
		Value        float64             `json:"value"`
		ScriptPubKey verboseScriptPubKey `json:"scriptPubKey"`
	} `json:"prevout"`
}

type verboseTransaction struct {
	TxID string       `json:"txid"`
	Vin  []verboseVin `json:"vin"`
	Vout []verboseVout `json:"vout"`
}

type verboseBlock struct {
	Hash              string               `json:"hash"`
	Height            uint64               `json:"height"`
	PreviousBlockHash string               `json:"previousblockhash"`
	Tx                []verboseTransaction `json:"tx"`
}

// GetBlock fetches the block with verbosity=2 (full transaction detail,
// including resolved prevouts when the node supports it) and maps it into
// our BitcoinBlockModel.
func (c *Client) GetBlock(ctx context.Context, hash string) (*BitcoinBlockModel, error) {
	var raw verboseBlock
	if err := c.call(ctx, "getblock", []interface{}{hash, 2}, &raw); err != nil {
		return nil, errors.Wrapf(err, "getblock(%s, 2)", hash)
	}

	model := &BitcoinBlockModel{
		Hash:         raw.Hash,
		Height:       raw.Height,
		PreviousHash: raw.PreviousBlockHash,
		Transactions: make([]BitcoinTransaction, 0, len(raw.Tx)),
	}

	for i, tx := range raw.Tx {
		model.Transactions = append(model.Transactions, convertVerboseTransaction(tx, i == 0))
	}
	return model, nil
}

func convertVerboseTransaction(tx verboseTransaction, isCoinbase bool) BitcoinTransaction {
	out := BitcoinTransaction{ID: tx.TxID, IsCoinbase: isCoinbase}

	for _, vin := range tx.Vin {
		if vin.Coinbase != "" {
			continue
		}
		input := TransactionInput{
			PreviousTransactionID: vin.TxID,
			PreviousOutputIndex:   vin.Vout,
		}
		if vin.PrevOut != nil {
			input.OutputValueSatoshis = btcToSatoshis(vin.PrevOut.Value)
			input.OutputAddress = firstAddress(vin.PrevOut.ScriptPubKey)
		}
		out.Inputs = append(out.Inputs, input)
	}

	for _, vout := range tx.Vout {
		output := TransactionOutput{ValueSatoshis: btcToSatoshis(vout.Value)}
		if vout.ScriptPubKey.Type == "nulldata" {
			if data, ok := opReturnData(vout.ScriptPubKey.Hex); ok {
				output.IsOpReturn = true
				output.OpReturnData = data
			}
		} else {
			output.Address = firstAddress(vout.ScriptPubKey)
		}
		out.Outputs = append(out.Outputs, output)
	}

	return out
}

func firstAddress(spk verboseScriptPubKey) string {
	if spk.Address != "" {
		return spk.Address
	}
	if len(spk.Addresses) > 0 {
		return spk.Addresses[0]
	}
	return ""
}

func btcToSatoshis(btc float64) uint64 {
	const satoshisPerBTC = 100000000
	return uint64(btc*satoshisPerBTC + 0.5)
}

type unspentEntry struct {
	TxID    string  `json:"txid"`
	Vout    uint32  `json:"vout"`
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// GetBalanceInSatoshis sums the value of every UTXO listunspent returns for
// the wallet's watched address.
func (c *Client) GetBalanceInSatoshis(ctx context.Context) (uint64, error) {
	utxos, err := c.listUnspent(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, u := range utxos {
		total += u.ValueSatoshis
	}
	return total, nil
}

func (c *Client) listUnspent(ctx context.Context) ([]UnspentOutput, error) {
	var raw []unspentEntry
	if err := c.call(ctx, "listunspent", []interface{}{0}, &raw); err != nil {
		return nil, errors.Wrap(err, "listunspent")
	}
	out := make([]UnspentOutput, 0, len(raw))
	for _, u := range raw {
		out = append(out, UnspentOutput{
			TransactionID: u.TxID,
			OutputIndex:   u.Vout,
			ValueSatoshis: btcToSatoshis(u.Amount),
			Address:       u.Address,
		})
	}
	return out, nil
}

// GetTransactionFeeInSatoshis returns Σinputs.value - Σoutputs.value for a
// non-coinbase transaction.
func (c *Client) GetTransactionFeeInSatoshis(ctx context.Context, txID string) (uint64, error) {
	var raw verboseTransaction
	if err := c.call(ctx, "getrawtransaction", []interface{}{txID, true}, &raw); err != nil {
		return 0, errors.Wrapf(err, "getrawtransaction(%s)", txID)
	}

	tx := convertVerboseTransaction(raw, false)
	var inputTotal, outputTotal uint64
	for _, in := range tx.Inputs {
		inputTotal += in.OutputValueSatoshis
	}
	for _, out := range tx.Outputs {
		outputTotal += out.ValueSatoshis
	}
	if outputTotal > inputTotal {
		return 0, errors.Errorf("transaction %s reports more output value than input value", txID)
	}
	return inputTotal - outputTotal, nil
}

// GetAddressInfo reports what the node knows about its own relationship to
// address: whether it holds the address at all (IsMine), whether it only
// holds a watch-only import rather than the signing key (IsWatchOnly), and
// whether it has enough key/script material to sign for it unassisted
// (Solvable).
func (c *Client) GetAddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	var raw struct {
		IsMine      bool `json:"ismine"`
		IsWatchOnly bool `json:"iswatchonly"`
		Solvable    bool `json:"solvable"`
	}
	if err := c.call(ctx, "getaddressinfo", []interface{}{address}, &raw); err != nil {
		return nil, errors.Wrapf(err, "getaddressinfo(%s)", address)
	}
	return &AddressInfo{IsMine: raw.IsMine, IsWatchOnly: raw.IsWatchOnly, Solvable: raw.Solvable}, nil
}

// GetTransactionConfirmations returns how many blocks deep txID is buried,
// backing locktx.Resolver. getrawtransaction's verbose result omits
// "confirmations" entirely for an unconfirmed (mempool) transaction.
func (c *Client) GetTransactionConfirmations(ctx context.Context, txID string) (uint64, error) {
	var raw struct {
		Confirmations uint64 `json:"confirmations"`
	}
	if err := c.call(ctx, "getrawtransaction", []interface{}{txID, true}, &raw); err != nil {
		return 0, errors.Wrapf(err, "getrawtransaction(%s)", txID)
	}
	return raw.Confirmations, nil
}
