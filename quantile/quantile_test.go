package quantile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

type fakeStore struct {
	groups map[uint64]model.QuantileGroup
}

func newFakeStore() *fakeStore { return &fakeStore{groups: make(map[uint64]model.QuantileGroup)} }

func (f *fakeStore) Add(_ context.Context, g model.QuantileGroup) error {
	f.groups[g.GroupID] = g
	return nil
}

func (f *fakeStore) Get(_ context.Context, groupID uint64) (*model.QuantileGroup, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (f *fakeStore) GetLast(_ context.Context) (*model.QuantileGroup, error) {
	var last *model.QuantileGroup
	for id, g := range f.groups {
		if last == nil || id > last.GroupID {
			cp := g
			last = &cp
		}
	}
	return last, nil
}

func (f *fakeStore) RemoveGreaterThanOrEqual(_ context.Context, groupID uint64) error {
	for id := range f.groups {
		if id >= groupID {
			delete(f.groups, id)
		}
	}
	return nil
}

func TestBucketMonotonic(t *testing.T) {
	require.LessOrEqual(t, Bucket(100), Bucket(1000))
	require.LessOrEqual(t, Bucket(1000), Bucket(10000))
}

func TestBucketLowerBoundRoundTrips(t *testing.T) {
	for _, fee := range []uint64{1, 50, 1000, 100000} {
		b := Bucket(fee)
		require.LessOrEqual(t, BucketLowerBound(b), fee)
	}
}

func TestCalculatorAddAndGetQuantile(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCalculator(store, 5, 0.10)

	require.NoError(t, c.Add(ctx, 1, []uint64{1000, 2000, 3000, 4000, 5000}))

	q, err := c.GetQuantile(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, q)
}

func TestCalculatorUnknownGroupReturnsNil(t *testing.T) {
	ctx := context.Background()
	c := NewCalculator(newFakeStore(), 5, 0.10)

	q, err := c.GetQuantile(ctx, 42)
	require.NoError(t, err)
	require.Nil(t, q)
}

func TestCalculatorWindowEviction(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCalculator(store, 2, 0.10)

	require.NoError(t, c.Add(ctx, 1, []uint64{1000}))
	require.NoError(t, c.Add(ctx, 2, []uint64{2000}))
	require.NoError(t, c.Add(ctx, 3, []uint64{3000}))

	require.Len(t, c.window, 2)
	require.Equal(t, uint64(2), c.window[0].GroupID)
}

func TestRemoveGroupsGreaterThanOrEqual(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c := NewCalculator(store, 5, 0.10)

	require.NoError(t, c.Add(ctx, 1, []uint64{1000}))
	require.NoError(t, c.Add(ctx, 2, []uint64{2000}))
	require.NoError(t, c.Add(ctx, 3, []uint64{3000}))

	require.NoError(t, c.RemoveGroupsGreaterThanOrEqual(ctx, 2))
	require.Len(t, c.window, 1)

	q, err := store.Get(ctx, 2)
	require.NoError(t, err)
	require.Nil(t, q)
}
