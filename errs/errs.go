// Package errs enumerates the sentinel errors the observer core surfaces to
// its callers (the write path and the read API). They are tested with
// errors.Is by callers that need to translate them into a 4xx/404 shape;
// this package never does HTTP translation itself, since the HTTP front-end
// is an external collaborator.
package errs

import "github.com/pkg/errors"

var (
	// ErrSpendingCapReached is returned by writeTransaction when the
	// requested anchor fee would exceed the spending cap for the current
	// rolling window.
	ErrSpendingCapReached = errors.New("spending_cap_per_period_reached")

	// ErrNotEnoughBalanceForWrite is returned by writeTransaction when
	// the wallet balance is below the fee required for the anchor.
	ErrNotEnoughBalanceForWrite = errors.New("not_enough_balance_for_write")

	// ErrBlockchainTimeOutOfRange is returned by GetNormalizedFee for a
	// block below genesis, or when the quantile calculator has no answer
	// yet for the requested height.
	ErrBlockchainTimeOutOfRange = errors.New("blockchain_time_out_of_range")

	// ErrInvalidTransactionNumberOrTimeHash is returned by Transactions
	// when the caller's (since, hash) pair no longer matches the stored
	// chain -- expected during reorg, and also the signal Core uses to
	// drive its own rollback.
	ErrInvalidTransactionNumberOrTimeHash = errors.New("invalid_transaction_number_or_time_hash")

	// ErrInvalidPreviousBlockHash is the observer-internal fork-detection
	// signal: processBlock saw a block whose previousHash didn't match
	// the hash last appended to the metadata store. The caller (the poll
	// loop) reacts to this by invoking fork recovery on the next tick.
	ErrInvalidPreviousBlockHash = errors.New("invalid_previous_block_hash")

	// ErrDatabaseDowngradeNotAllowed is a fatal startup error: the
	// persisted ServiceState.DatabaseVersion is newer than this build
	// understands.
	ErrDatabaseDowngradeNotAllowed = errors.New("database_downgrade_not_allowed")

	// ErrValueTimeLockNotFound is returned by the lock resolver when no
	// lock transaction is known for the active wallet.
	ErrValueTimeLockNotFound = errors.New("value_time_lock_not_found")

	// ErrValueTimeLockInPendingState is returned when a write quota
	// decision depends on a lock that has not yet confirmed or released.
	ErrValueTimeLockInPendingState = errors.New("value_time_lock_in_pending_state")

	// ErrBadRequest covers the read API's parameter-validation failures,
	// e.g. supplying "since" without "transaction-time-hash" or vice versa.
	ErrBadRequest = errors.New("bad_request")
)

// IsNotFound reports whether err is (or wraps) a condition the read API
// should translate to an HTTP 404 rather than a 400/500.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrValueTimeLockNotFound)
}
