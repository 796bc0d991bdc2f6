package routing

import "math/rand/v2"

// defaultSeed is used when Options.Seed is 0
const defaultSeed int64 = 0x5eed_c0ffee_1dea

// deriveSeed mixes a parent seed and a stream id with a SplitMix64 finalizer
// so that neighbouring streams are decorrelated.
func deriveSeed(parent int64, stream uint64) uint64 {
	x := uint64(parent) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// trialRNG returns the private random stream of one trial of one pair.
// The stream depends only on (seed, pair, trial), never on scheduling.
func trialRNG(seed int64, pair, trial int) *rand.Rand {
	if seed == 0 {
		seed = defaultSeed
	}
	pairSeed := deriveSeed(seed, uint64(pair))
	return rand.New(rand.NewPCG(pairSeed, deriveSeed(int64(pairSeed), uint64(trial))))
}
