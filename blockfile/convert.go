package blockfile

import (
	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
)

// ToBitcoinBlockModel converts a RawBlock (decoded straight off disk) into
// the same bitcoinclient.BitcoinBlockModel shape the JSON-RPC steady-state
// path produces, so the observer's block-processing logic doesn't need to
// know which path a block came from. Input addresses are left blank: the
// raw path never resolves prevout scriptPubKeys, so writer attribution
// falls back to "anonymous" for fast-synced blocks (see sidetreetx).
func ToBitcoinBlockModel(b RawBlock) bitcoinclient.BitcoinBlockModel {
	model := bitcoinclient.BitcoinBlockModel{
		Hash:         b.Hash,
		Height:       0, // filled in by the caller once height is resolved via IndexByHeight
		PreviousHash: b.Header.PreviousHash,
		Transactions: make([]bitcoinclient.BitcoinTransaction, 0, len(b.Transactions)),
	}
	for _, tx := range b.Transactions {
		model.Transactions = append(model.Transactions, toBitcoinTransaction(tx))
	}
	return model
}

func toBitcoinTransaction(tx RawTransaction) bitcoinclient.BitcoinTransaction {
	out := bitcoinclient.BitcoinTransaction{
		ID:         tx.ID,
		IsCoinbase: tx.IsCoinbase(),
	}

	if !out.IsCoinbase {
		for _, in := range tx.Inputs {
			out.Inputs = append(out.Inputs, bitcoinclient.TransactionInput{
				PreviousTransactionID: in.PreviousTransactionID,
				PreviousOutputIndex:   in.PreviousOutputIndex,
				// OutputValueSatoshis/OutputAddress are left zero: resolving
				// a prevout's value requires either an external UTXO index
				// or a second RPC round trip, neither of which the raw
				// file path attempts.
			})
		}
	}

	for _, o := range tx.Outputs {
		output := bitcoinclient.TransactionOutput{ValueSatoshis: o.ValueSatoshis}
		if data, ok := bitcoinclient.OpReturnDataFromScriptBytes(o.PubKeyScript); ok {
			output.IsOpReturn = true
			output.OpReturnData = data
		}
		out.Outputs = append(out.Outputs, output)
	}

	return out
}
