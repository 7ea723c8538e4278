package sampler

// PseudoRandomNumberGenerator draws uniform integers in [0, n) from a
// PseudoRandomBitStream using the rejection-sampling algorithm described
// by Lumbroso ("Optimal Discrete Uniform Generation from Coin Flips, and
// Applications"): accumulate bits into a window until it covers at least
// n values, accept if the window's value is below n, otherwise subtract n
// from both the window and its size and keep drawing bits.
type PseudoRandomNumberGenerator struct {
	stream *PseudoRandomBitStream
}

// NewPseudoRandomNumberGenerator wraps stream.
func NewPseudoRandomNumberGenerator(stream *PseudoRandomBitStream) *PseudoRandomNumberGenerator {
	return &PseudoRandomNumberGenerator{stream: stream}
}

// Uint64n draws a uniform value in [0, n). n must be > 0.
func (g *PseudoRandomNumberGenerator) Uint64n(n uint64) uint64 {
	if n == 0 {
		panic("sampler: Uint64n called with n == 0")
	}

	value := uint64(0)
	window := uint64(1)
	for {
		value = value<<1 | uint64(g.stream.NextBit())
		window <<= 1
		if window >= n {
			if value < n {
				return value
			}
			value -= n
			window -= n
		}
	}
}
