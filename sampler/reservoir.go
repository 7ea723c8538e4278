package sampler

// ReservoirSampler draws a uniform sample of up to k items from a stream
// of unknown length using Algorithm R, reseeded deterministically per
// block so every observer produces the identical sample for the identical
// block.
type ReservoirSampler struct {
	k          int
	slots      []string
	streamSize int
	rng        *PseudoRandomNumberGenerator
	stream     *PseudoRandomBitStream
}

// NewReservoirSampler returns a sampler that retains at most k elements.
func NewReservoirSampler(k int) *ReservoirSampler {
	stream := NewPseudoRandomBitStream("")
	return &ReservoirSampler{
		k:      k,
		slots:  make([]string, k),
		stream: stream,
		rng:    NewPseudoRandomNumberGenerator(stream),
	}
}

// ResetPseudoRandomSeed reseeds the underlying bit stream from seedHex
// (normally the block hash), without touching the current sample — call
// this once per block before offering its transaction ids.
func (s *ReservoirSampler) ResetPseudoRandomSeed(seedHex string) {
	s.stream.Reset(seedHex)
}

// Offer presents one more stream element to the sampler. The first k
// elements offered since the last Clear are copied directly into the
// slots they land on; thereafter each element i (0-indexed, counted from
// the last Clear) replaces a uniformly chosen existing slot with
// probability k/(i+1).
func (s *ReservoirSampler) Offer(id string) {
	if s.streamSize < s.k {
		s.slots[s.streamSize] = id
		s.streamSize++
		return
	}

	j := s.rng.Uint64n(uint64(s.streamSize + 1))
	if int(j) < s.k {
		s.slots[j] = id
	}
	s.streamSize++
}

// GetSample returns the currently retained sample. Its length is
// min(streamSize, k): slots beyond streamSize may still hold stale values
// from before the last Clear, but are not part of the current sample.
func (s *ReservoirSampler) GetSample() []string {
	n := s.streamSize
	if n > s.k {
		n = s.k
	}
	out := make([]string, n)
	copy(out, s.slots[:n])
	return out
}

// Clear resets streamSize to zero, so the next block's sampling starts
// fresh, but deliberately leaves the slot array untouched: the sampler is
// reused across blocks rather than reallocated. Because GetSample's length
// tracks streamSize, a cleared-and-not-yet-offered-to sampler still reports
// an empty sample even though the underlying slots are unchanged.
func (s *ReservoirSampler) Clear() {
	s.streamSize = 0
}

// StreamSize reports how many elements have been offered since the last
// Clear.
func (s *ReservoirSampler) StreamSize() int {
	return s.streamSize
}
