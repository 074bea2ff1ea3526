package lnwire

// MilliSatoshi represents a thousandth of a satoshi, the unit fee rates and
// HTLC amounts are expressed in on the wire.
type MilliSatoshi uint64
