package routing

import (
	"encoding/binary"
	"math"

	"github.com/aead/siphash"
)

// fuzzFactor derives the deterministic fee-scaling factor for a channel
// under a given fuzz seed: SipHash-2-4(seed, scid) / 2^64, mapped into
// 1 + (2*fuzz*r) - fuzz per §4.4.3. It does not depend on iteration order,
// only on (seed, scid), so repeated runs over the same graph and seed
// produce identical routes.
func fuzzFactor(fuzz float64, seed uint64, scid uint64) float64 {
	if fuzz == 0 {
		return 1
	}

	var key [16]byte
	binary.BigEndian.PutUint64(key[:8], seed)

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], scid)

	sum := siphash.Sum64(msg[:], &key)
	r := float64(sum) / float64(math.MaxUint64)

	return 1 + (2 * fuzz * r) - fuzz
}
