// Package quantile maintains a sliding window of per-group fee-frequency
// histograms and answers quantile queries against the merged window, the
// bookkeeping half of the proof-of-fee pipeline.
package quantile

import (
	"context"
	"math"

	"github.com/decentralized-identity/sidetree-bitcoin-observer/model"
)

// MaxBuckets bounds the fee-frequency histogram: fees are quantized by
// bucket(f) = floor(log base sqrt(10) of f), clamped to [0, MaxBuckets).
// The top bucket starts near 10^49.5 satoshis, far above the uint64 range
// (about 1.8*10^19, bucket 38), so the upper clamp never applies; a fee of
// 0 maps to bucket 0 directly.
const MaxBuckets = 100

var logBase = math.Sqrt(10)

// Bucket maps a fee (in satoshis) to its histogram bucket index.
func Bucket(fee uint64) int {
	if fee == 0 {
		return 0
	}
	b := int(math.Floor(math.Log(float64(fee)) / math.Log(logBase)))
	if b < 0 {
		return 0
	}
	if b >= MaxBuckets {
		return MaxBuckets - 1
	}
	return b
}

// BucketLowerBound returns the smallest fee that falls into bucket b,
// i.e. the inverse of Bucket: ceil(sqrt(10)^b).
func BucketLowerBound(b int) uint64 {
	if b <= 0 {
		return 0
	}
	return uint64(math.Ceil(math.Pow(logBase, float64(b))))
}

// Store is the persistence dependency the calculator needs: each mutation
// is written through atomically, per group.
type Store interface {
	Add(ctx context.Context, group model.QuantileGroup) error
	Get(ctx context.Context, groupID uint64) (*model.QuantileGroup, error)
	GetLast(ctx context.Context) (*model.QuantileGroup, error)
	RemoveGreaterThanOrEqual(ctx context.Context, groupID uint64) error
}

// Calculator maintains the deque of up to windowSizeInGroups group
// histograms plus a running merged vector, and answers per-group quantile
// queries against that merged vector as it stood when the group was
// added.
type Calculator struct {
	store             Store
	windowSizeInGroups int
	quantilePercentile float64 // e.g. 0.10 for the 10th percentile

	window []model.QuantileGroup // ascending groupId, oldest first
	merged []uint64               // running sum of window's frequency vectors
}

// NewCalculator returns a Calculator backed by store, retaining at most
// windowSizeInGroups histograms and answering queries at the given
// percentile (0, 1).
func NewCalculator(store Store, windowSizeInGroups int, quantilePercentile float64) *Calculator {
	return &Calculator{
		store:              store,
		windowSizeInGroups: windowSizeInGroups,
		quantilePercentile: quantilePercentile,
		merged:             make([]uint64, MaxBuckets),
	}
}

// Add folds a new group's sampled fees into the window: builds the
// group's own histogram, merges it into the running vector, persists the
// resulting quantile under the group's id, and if the window now exceeds
// its configured size, evicts and subtracts the oldest group.
func (c *Calculator) Add(ctx context.Context, groupID uint64, sampledFees []uint64) error {
	freq := make([]uint64, MaxBuckets)
	for _, fee := range sampledFees {
		freq[Bucket(fee)]++
	}

	for i, v := range freq {
		c.merged[i] += v
	}

	group := model.QuantileGroup{
		GroupID:         groupID,
		Quantile:        c.quantileOfMerged(),
		FrequencyVector: freq,
	}
	c.window = append(c.window, group)

	if err := c.store.Add(ctx, group); err != nil {
		return err
	}

	if len(c.window) > c.windowSizeInGroups {
		evicted := c.window[0]
		c.window = c.window[1:]
		for i, v := range evicted.FrequencyVector {
			c.merged[i] -= v
		}
	}

	return nil
}

// quantileOfMerged computes the fee-bucket lower bound at the configured
// percentile over the current merged histogram.
func (c *Calculator) quantileOfMerged() uint64 {
	total := uint64(0)
	for _, v := range c.merged {
		total += v
	}
	if total == 0 {
		return 0
	}

	target := uint64(math.Ceil(float64(total) * c.quantilePercentile))
	if target == 0 {
		target = 1
	}

	cumulative := uint64(0)
	for b, v := range c.merged {
		cumulative += v
		if cumulative >= target {
			return BucketLowerBound(b)
		}
	}
	return BucketLowerBound(MaxBuckets - 1)
}

// GetQuantile returns the persisted quantile for groupID as it was
// computed when that group was added, or nil if the group is unknown.
func (c *Calculator) GetQuantile(ctx context.Context, groupID uint64) (*uint64, error) {
	g, err := c.store.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, nil
	}
	q := g.Quantile
	return &q, nil
}

// RemoveGroupsGreaterThanOrEqual truncates the window (in-memory and
// persisted) back to below groupID, subtracting the removed groups'
// histograms from the running merged vector, for reorg recovery.
func (c *Calculator) RemoveGroupsGreaterThanOrEqual(ctx context.Context, groupID uint64) error {
	kept := c.window[:0]
	for _, g := range c.window {
		if g.GroupID >= groupID {
			for i, v := range g.FrequencyVector {
				c.merged[i] -= v
			}
			continue
		}
		kept = append(kept, g)
	}
	c.window = kept

	return c.store.RemoveGreaterThanOrEqual(ctx, groupID)
}
