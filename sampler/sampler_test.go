package sampler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitStreamIsDeterministic(t *testing.T) {
	a := NewPseudoRandomBitStream("deadbeef")
	b := NewPseudoRandomBitStream("deadbeef")

	for i := 0; i < 256; i++ {
		require.Equal(t, a.NextBit(), b.NextBit())
	}
}

func TestBitStreamRehashesOnExhaustion(t *testing.T) {
	s := NewPseudoRandomBitStream("deadbeef")
	// 32 seed bytes * 8 bits = 256 bits before a rehash is required.
	for i := 0; i < 256; i++ {
		s.NextBit()
	}
	require.NotPanics(t, func() { s.NextBit() })
}

func TestUint64nStaysInRange(t *testing.T) {
	stream := NewPseudoRandomBitStream("seed")
	rng := NewPseudoRandomNumberGenerator(stream)
	for i := 0; i < 1000; i++ {
		v := rng.Uint64n(7)
		require.Less(t, v, uint64(7))
	}
}

func TestReservoirSamplerDeterministic(t *testing.T) {
	ids := []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8", "t9", "t10"}

	sample := func() []string {
		s := NewReservoirSampler(3)
		s.ResetPseudoRandomSeed("deadbeef")
		for _, id := range ids {
			s.Offer(id)
		}
		return s.GetSample()
	}

	first := sample()
	second := sample()
	require.Equal(t, first, second)
	require.Len(t, first, 3)
}

func TestReservoirSamplerClearEmptiesSample(t *testing.T) {
	s := NewReservoirSampler(2)
	s.ResetPseudoRandomSeed("abc")
	s.Offer("x")
	s.Offer("y")
	require.Len(t, s.GetSample(), 2)

	s.Clear()
	require.Empty(t, s.GetSample())
}

func TestReservoirSamplerUnderKElements(t *testing.T) {
	s := NewReservoirSampler(5)
	s.ResetPseudoRandomSeed("abc")
	s.Offer("only-one")
	require.Equal(t, []string{"only-one"}, s.GetSample())
}
