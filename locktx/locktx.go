// Package locktx sketches the value-time-lock lifecycle at its interface
// with the observer: a LockTransactionStore, a LockResolver that checks a
// lock's on-chain confirmation/maturity, and a LockMonitor state machine
// that walks a lock through its states. The underlying redeem-script
// construction is an external collaborator; this package covers only the
// state tracking and persistence the observer itself owns.
package locktx

import (
	"context"

	"github.com/pkg/errors"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
)

// State is one point in a value-time-lock's lifecycle.
type State int

const (
	// NoExistingLock means the wallet currently holds no lock.
	NoExistingLock State = iota
	// PendingConfirmation means a lock transaction has been broadcast
	// but is not yet buried deep enough to be considered confirmed.
	PendingConfirmation
	// Confirmed means the lock is active and its collateral unspendable
	// until maturity.
	Confirmed
	// PendingRelease means a release (spend of the locked output back to
	// the wallet) has been broadcast but is not yet confirmed.
	PendingRelease
	// Released means the lock's collateral has returned to the wallet.
	Released
)

// LockTransaction is one value-time-lock's persisted record.
type LockTransaction struct {
	TransactionID       string
	RedeemScriptHex     string
	LockAmountSatoshis  uint64
	CreatedAtHeight     uint64
	UnlockAtHeight       uint64
	State               State
}

// Store persists the sequence of lock transactions a wallet has gone
// through (a new lock supersedes the previous one on renewal).
type Store interface {
	GetLatest(ctx context.Context) (*LockTransaction, error)
	Add(ctx context.Context, lock LockTransaction) error
}

// Resolver checks a lock's current confirmation state against the live
// chain. It is implemented in terms of BitcoinClient in the full system;
// here it is an interface so LockMonitor can be tested without one.
type Resolver interface {
	Confirmations(ctx context.Context, transactionID string) (uint64, error)
	CurrentHeight(ctx context.Context) (uint64, error)
}

// Monitor walks a wallet's lock through NoExistingLock -> PendingConfirmation
// -> Confirmed -> PendingRelease -> Released on a periodic poll.
type Monitor struct {
	store                  Store
	resolver               Resolver
	confirmationDepth      uint64
	lockAmountSatoshis     uint64
	updateEnabled          bool
}

// NewMonitor returns a Monitor. updateEnabled mirrors
// valueTimeLockUpdateEnabled: when false, the monitor only observes state,
// never creates or renews a lock.
func NewMonitor(store Store, resolver Resolver, confirmationDepth, lockAmountSatoshis uint64, updateEnabled bool) *Monitor {
	return &Monitor{
		store:              store,
		resolver:           resolver,
		confirmationDepth:  confirmationDepth,
		lockAmountSatoshis: lockAmountSatoshis,
		updateEnabled:      updateEnabled,
	}
}

// CurrentState returns the latest known lock's state, or NoExistingLock if
// the wallet has never locked collateral.
func (m *Monitor) CurrentState(ctx context.Context) (State, error) {
	lock, err := m.store.GetLatest(ctx)
	if err != nil {
		return NoExistingLock, errors.Wrap(err, "reading latest lock transaction")
	}
	if lock == nil {
		return NoExistingLock, nil
	}
	return lock.State, nil
}

// Poll advances the latest lock's recorded state based on its current
// on-chain confirmation depth, persisting the transition if one occurred.
// It is a no-op when there is no lock, or when the lock is already in a
// terminal-for-this-tick state (Confirmed awaiting release elsewhere,
// Released).
func (m *Monitor) Poll(ctx context.Context) error {
	lock, err := m.store.GetLatest(ctx)
	if err != nil {
		return errors.Wrap(err, "reading latest lock transaction")
	}
	if lock == nil {
		return nil
	}

	switch lock.State {
	case PendingConfirmation:
		confirmations, err := m.resolver.Confirmations(ctx, lock.TransactionID)
		if err != nil {
			return errors.Wrap(err, "resolving lock confirmations")
		}
		if confirmations >= m.confirmationDepth {
			lock.State = Confirmed
			return m.store.Add(ctx, *lock)
		}
	case PendingRelease:
		confirmations, err := m.resolver.Confirmations(ctx, lock.TransactionID)
		if err != nil {
			return errors.Wrap(err, "resolving release confirmations")
		}
		if confirmations >= m.confirmationDepth {
			lock.State = Released
			return m.store.Add(ctx, *lock)
		}
	}
	return nil
}

// ResolveMaturity returns ErrValueTimeLockInPendingState if the latest
// lock hasn't reached Confirmed/Released, or ErrValueTimeLockNotFound if
// there is no lock at all; an implementer-facing helper the write path can
// use to gate higher spending quota on an active lock.
func (m *Monitor) ResolveMaturity(ctx context.Context) error {
	lock, err := m.store.GetLatest(ctx)
	if err != nil {
		return errors.Wrap(err, "reading latest lock transaction")
	}
	if lock == nil {
		return errs.ErrValueTimeLockNotFound
	}
	if lock.State == PendingConfirmation || lock.State == PendingRelease {
		return errs.ErrValueTimeLockInPendingState
	}
	return nil
}
