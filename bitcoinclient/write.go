package bitcoinclient

import (
	"context"
	"encoding/hex"
	"math"

	"github.com/pkg/errors"
)

// createRawTransactionResult mirrors the subset of fundrawtransaction's
// response this client needs: the assembled (unsigned) transaction and the
// fee the node committed it to.
type createRawTransactionResult struct {
	Hex string  `json:"hex"`
	Fee float64 `json:"fee"`
}

// CreateSidetreeTransaction asks the node to build (but not broadcast) a
// transaction carrying one OP_RETURN output of sidetreePrefix||payload,
// paying at least minFeeSatoshis plus the configured markup. The node
// performs coin selection and, if the wallet holds the signing key,
// signing; callers that only hold a watch-only import must sign out of
// band before calling BroadcastSidetreeTransaction.
func (c *Client) CreateSidetreeTransaction(ctx context.Context, opReturnPayload []byte, minFeeSatoshis uint64) (*UnsignedAnchorTransaction, error) {
	markedUpFee := minFeeSatoshis + minFeeSatoshis*uint64(c.cfg.SidetreeTransactionFeeMarkupPercentage)/100
	feeBTC := float64(markedUpFee) / 100000000

	var result createRawTransactionResult
	params := []interface{}{
		[]interface{}{},
		map[string]interface{}{"data": hex.EncodeToString(opReturnPayload)},
	}
	if err := c.call(ctx, "createrawtransaction", params, &result.Hex); err != nil {
		return nil, errors.Wrap(err, "createrawtransaction")
	}

	fundParams := []interface{}{result.Hex, map[string]interface{}{"feeRate": feeBTC}}
	if err := c.call(ctx, "fundrawtransaction", fundParams, &result); err != nil {
		return nil, errors.Wrap(err, "fundrawtransaction")
	}

	requiresExternalSigning, err := c.requiresExternalSigning(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolving wallet signing capability")
	}

	return &UnsignedAnchorTransaction{
		RawTransactionHex:       result.Hex,
		FeeSatoshis:             btcToSatoshis(math.Abs(result.Fee)),
		RequiresExternalSigning: requiresExternalSigning,
	}, nil
}

// requiresExternalSigning asks the node what it knows about the configured
// wallet address: if the node only holds a watch-only import rather than
// the private key, the caller must sign the raw transaction out of band
// before broadcasting it. A configuration with no wallet address configured
// (an external signer entirely) always requires external signing.
func (c *Client) requiresExternalSigning(ctx context.Context) (bool, error) {
	if c.cfg.BitcoinWalletOrImportString == "" {
		return true, nil
	}
	info, err := c.GetAddressInfo(ctx, c.cfg.BitcoinWalletOrImportString)
	if err != nil {
		return false, err
	}
	return info.IsWatchOnly || !info.IsMine, nil
}

// BroadcastSidetreeTransaction submits a signed, hex-encoded raw
// transaction to the network and returns its transaction ID.
func (c *Client) BroadcastSidetreeTransaction(ctx context.Context, signedTransactionHex string) (string, error) {
	var txID string
	if err := c.call(ctx, "sendrawtransaction", []interface{}{signedTransactionHex}, &txID); err != nil {
		return "", errors.Wrap(err, "sendrawtransaction")
	}
	return txID, nil
}

