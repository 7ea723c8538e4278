package observer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
)

// WriteTransaction asks the node to assemble an anchor transaction for
// anchorString at minFeeSatoshis, enforces the spending cap and wallet
// balance before broadcasting, and records the write against the spending
// monitor once it's been submitted. The spending cap is evaluated against
// this observer's own last-processed height, not the node's chain tip,
// since the two diverge whenever the observer is still catching up. The
// write is recorded via AddTransactionDataBeingWritten and counts against
// the spending cap until it ages out of the monitor's window.
func (p *Processor) WriteTransaction(ctx context.Context, anchorString string, minFeeSatoshis uint64) (string, error) {
	payload := []byte(p.cfg.SidetreeTransactionPrefix + anchorString)

	unsigned, err := p.client.CreateSidetreeTransaction(ctx, payload, minFeeSatoshis)
	if err != nil {
		return "", errors.Wrap(err, "assembling anchor transaction")
	}

	observedHeight := p.cfg.GenesisBlockNumber
	if last := p.LastProcessedBlock(); last != nil {
		observedHeight = last.Height
	}

	if !p.spendingMonitor.IsCurrentFeeWithinSpendingLimit(unsigned.FeeSatoshis, observedHeight) {
		return "", errs.ErrSpendingCapReached
	}

	balance, err := p.client.GetBalanceInSatoshis(ctx)
	if err != nil {
		return "", errors.Wrap(err, "reading wallet balance")
	}
	if balance < unsigned.FeeSatoshis {
		return "", errs.ErrNotEnoughBalanceForWrite
	}

	txID, err := p.client.BroadcastSidetreeTransaction(ctx, unsigned.RawTransactionHex)
	if err != nil {
		return "", errors.Wrap(err, "broadcasting anchor transaction")
	}

	p.spendingMonitor.AddTransactionDataBeingWritten(anchorString, unsigned.FeeSatoshis, observedHeight)
	log.Infof("broadcast anchor transaction %s for anchor string %q (fee %d satoshis)", txID, anchorString, unsigned.FeeSatoshis)

	return txID, nil
}
