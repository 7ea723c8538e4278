package locktx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/errs"
)

type memStore struct{ latest *LockTransaction }

func (m *memStore) GetLatest(context.Context) (*LockTransaction, error) { return m.latest, nil }
func (m *memStore) Add(_ context.Context, lock LockTransaction) error {
	m.latest = &lock
	return nil
}

type fakeResolver struct {
	confirmations uint64
	height        uint64
}

func (r *fakeResolver) Confirmations(context.Context, string) (uint64, error) {
	return r.confirmations, nil
}
func (r *fakeResolver) CurrentHeight(context.Context) (uint64, error) { return r.height, nil }

func TestPollAdvancesPendingConfirmationToConfirmed(t *testing.T) {
	store := &memStore{latest: &LockTransaction{TransactionID: "t1", State: PendingConfirmation}}
	resolver := &fakeResolver{confirmations: 10}
	m := NewMonitor(store, resolver, 6, 100000, true)

	require.NoError(t, m.Poll(context.Background()))
	require.Equal(t, Confirmed, store.latest.State)
}

func TestPollDoesNotAdvanceBeforeConfirmationDepth(t *testing.T) {
	store := &memStore{latest: &LockTransaction{TransactionID: "t1", State: PendingConfirmation}}
	resolver := &fakeResolver{confirmations: 2}
	m := NewMonitor(store, resolver, 6, 100000, true)

	require.NoError(t, m.Poll(context.Background()))
	require.Equal(t, PendingConfirmation, store.latest.State)
}

func TestResolveMaturityNoLock(t *testing.T) {
	store := &memStore{}
	m := NewMonitor(store, &fakeResolver{}, 6, 100000, true)

	err := m.ResolveMaturity(context.Background())
	require.ErrorIs(t, err, errs.ErrValueTimeLockNotFound)
}

func TestResolveMaturityPending(t *testing.T) {
	store := &memStore{latest: &LockTransaction{State: PendingConfirmation}}
	m := NewMonitor(store, &fakeResolver{}, 6, 100000, true)

	err := m.ResolveMaturity(context.Background())
	require.ErrorIs(t, err, errs.ErrValueTimeLockInPendingState)
}

func TestResolveMaturityConfirmed(t *testing.T) {
	store := &memStore{latest: &LockTransaction{State: Confirmed}}
	m := NewMonitor(store, &fakeResolver{}, 6, 100000, true)

	require.NoError(t, m.ResolveMaturity(context.Background()))
}
