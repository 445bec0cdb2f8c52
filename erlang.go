package callsim

// erlang.go holds the Erlang-B dimensioning functions used to turn an
// offered traffic load into a required circuit count, and the per-call
// bandwidth computation for packet-voice codecs

import (
	"math"
)

// MaxCircuits bounds the search for a circuit count that satisfies
// a blocking probability target.  Reaching the bound is a soft failure,
// reported to the caller rather than hidden
const MaxCircuits = 10000

// closedFormLimit is the largest circuit count for which the closed-form
// Erlang-B expression stays inside float64 range (170! is the last
// representable factorial)
const closedFormLimit = 170

// ErlangBlockingProb computes the Erlang-B blocking probability B(E,m)
// for offered load E (in Erlangs) over m circuits, using the recurrence
//
//	B(E,0) = 1
//	B(E,m) = E*B(E,m-1) / (m + E*B(E,m-1))
//
// The recurrence keeps every intermediate value in [0,1], so unlike the
// closed form it does not overflow at realistic circuit counts
func ErlangBlockingProb(offeredLoad float64, circuits int) float64 {
	if offeredLoad <= 0.0 {
		return 0.0
	}
	blocking := 1.0
	for m := 1; m <= circuits; m++ {
		blocking = offeredLoad * blocking / (float64(m) + offeredLoad*blocking)
	}
	return blocking
}

// ErlangB returns the minimal number of circuits m such that the
// blocking probability B(offeredLoad, m) does not exceed targetBlocking.
// A zero offered load requires zero circuits.  The search is capped at
// MaxCircuits; when the cap is hit the cap itself is returned, meaning
// the target could not be met within the search bound
func ErlangB(offeredLoad, targetBlocking float64) int {
	circuits, _ := ErlangBBounded(offeredLoad, targetBlocking)
	return circuits
}

// ErlangBBounded is ErlangB with an explicit saturation indicator.
// The second return is true when the search bound was reached without
// satisfying the target, so the circuit count returned is a floor on
// the real requirement
func ErlangBBounded(offeredLoad, targetBlocking float64) (int, bool) {
	if offeredLoad <= 0.0 {
		return 0, false
	}
	blocking := 1.0
	if blocking <= targetBlocking {
		return 0, false
	}
	for m := 1; m <= MaxCircuits; m++ {
		blocking = offeredLoad * blocking / (float64(m) + offeredLoad*blocking)
		if blocking <= targetBlocking {
			return m, false
		}
	}
	return MaxCircuits, true
}

// erlangBClosed evaluates the closed-form Erlang-B expression
//
//	B(E,m) = (E^m/m!) / sum_{i=0}^{m} E^i/i!
//
// accumulating the numerator terms incrementally.  Valid only while the
// E^i/i! terms stay within float64 range, so callers must keep m small
// (the call simulator's per-link capacities are at most tens of circuits).
// Above closedFormLimit it falls back to the recurrence
func erlangBClosed(offeredLoad float64, circuits int) float64 {
	if offeredLoad <= 0.0 {
		return 0.0
	}
	if circuits > closedFormLimit {
		return ErlangBlockingProb(offeredLoad, circuits)
	}
	term := 1.0 // E^i/i! starting at i=0
	sum := term
	for i := 1; i <= circuits; i++ {
		term = term * offeredLoad / float64(i)
		sum += term
	}
	return term / sum
}

// DS0 and T1 constants for the circuit-switched model, and the fixed
// packet-voice header overhead (40 bytes of RTP/UDP/IP headers, 8 bits
// per byte, at the standard 50 packets per second cadence)
const (
	DS0Kbps            = 64.0
	T1Channels         = 24
	T1BandwidthMbps    = 1.544
	voicePacketsPerSec = 50.0
	voiceHeaderBytes   = 40.0
	HeaderOverheadKbps = voiceHeaderBytes * 8.0 * voicePacketsPerSec / 1000.0
)

// VoipBandwidthPerCallKbps gives the one-direction bandwidth consumed by
// a single packet-voice call for a codec payload rate, optionally adding
// the fixed protocol header overhead
func VoipBandwidthPerCallKbps(codecKbps float64, includeOverhead bool) float64 {
	if !includeOverhead {
		return codecKbps
	}
	return codecKbps + HeaderOverheadKbps
}

// T1CountForCircuits returns the number of T1 spans needed to carry
// the given number of DS0 circuits
func T1CountForCircuits(circuits int) int {
	if circuits <= 0 {
		return 0
	}
	return int(math.Ceil(float64(circuits) / float64(T1Channels)))
}
