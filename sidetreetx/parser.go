// Package sidetreetx identifies Sidetree-tagged outputs inside raw Bitcoin
// transactions and derives the writer and anchor string the TransactionStore
// persists.
package sidetreetx

import (
	"strings"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/bitcoinclient"
)

// AnonymousWriter marks a transaction whose first input's source address
// could not be resolved (the raw blk*.dat path never resolves prevouts; the
// JSON-RPC path can fail to if the node has pruned the spent output).
const AnonymousWriter = "anonymous"

// Tagged is the result of successfully identifying T as a Sidetree
// transaction.
type Tagged struct {
	AnchorString string
	Writer       string
}

// Parser detects Sidetree transactions carrying a configured OP_RETURN
// prefix.
type Parser struct {
	prefix string
}

// New returns a Parser matching OP_RETURN payloads that start with prefix.
func New(prefix string) *Parser {
	return &Parser{prefix: prefix}
}

// Parse reports whether tx is a Sidetree transaction: exactly one of its
// outputs must be an OP_RETURN whose UTF-8 decoded data starts with the
// configured prefix. A transaction with zero or more than one matching
// output is not a Sidetree transaction and is silently ignored.
func (p *Parser) Parse(tx bitcoinclient.BitcoinTransaction) (Tagged, bool) {
	var match *bitcoinclient.TransactionOutput
	matches := 0
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if !out.IsOpReturn {
			continue
		}
		if !strings.HasPrefix(string(out.OpReturnData), p.prefix) {
			continue
		}
		matches++
		match = out
	}

	if matches != 1 {
		return Tagged{}, false
	}

	return Tagged{
		AnchorString: strings.TrimPrefix(string(match.OpReturnData), p.prefix),
		Writer:       writerOf(tx),
	}, true
}

// writerOf derives a stable writer identity from the transaction's first
// input's resolved source address. A coinbase transaction or an
// unresolved prevout yields AnonymousWriter rather than failing the parse;
// the transaction is accepted regardless.
func writerOf(tx bitcoinclient.BitcoinTransaction) string {
	if tx.IsCoinbase || len(tx.Inputs) == 0 {
		return AnonymousWriter
	}
	addr := tx.Inputs[0].OutputAddress
	if addr == "" {
		return AnonymousWriter
	}
	return addr
}
