package midi

// Integer time conversions (spec.md §4.J). The source (ymidi/misc.py)
// mixes integer and floating point arithmetic across call sites; this
// spec mandates integer arithmetic throughout so results are
// deterministic and reproducible across platforms (spec.md §9 Open
// Questions).

// DeltaToMicros converts a tick delta to microseconds given the
// prevailing divisions (ticks per quarter note) and mpb (microseconds
// per beat). Integer division truncates, matching spec.md §4.J.
func DeltaToMicros(delta uint32, divisions uint16, mpb uint32) uint64 {
	if divisions == 0 {
		return 0
	}
	return uint64(delta) * uint64(mpb) / uint64(divisions)
}

// MicrosToDelta is the inverse of DeltaToMicros.
func MicrosToDelta(us uint64, divisions uint16, mpb uint32) uint32 {
	if mpb == 0 {
		return 0
	}
	return uint32(us * uint64(divisions) / uint64(mpb))
}

// BPMToMPB converts a tempo in beats per minute to microseconds per
// beat, for a time signature denominator denom (4 for quarter-note
// beats). denom of 0 is treated as 4.
func BPMToMPB(bpm uint32, denom uint32) uint32 {
	if denom == 0 {
		denom = 4
	}
	if bpm == 0 {
		return 0
	}
	return 60_000_000 * denom / (4 * bpm)
}

// MPBToBPM is the inverse of BPMToMPB.
func MPBToBPM(mpb uint32, denom uint32) uint32 {
	if denom == 0 {
		denom = 4
	}
	if mpb == 0 {
		return 0
	}
	return 60_000_000 * denom / (4 * mpb)
}
