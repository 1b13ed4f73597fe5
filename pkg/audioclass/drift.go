package audioclass

// driftCompensator computes the rate-adaptive transfer size for one
// playback period. The host and device sample clocks never agree
// exactly; over time the write cursor creeps towards or away from the
// read cursor. Once per period the compensator nudges the nominal
// half-buffer transfer by exactly one sample frame in the direction
// that re-centers the cursors.
//
// This is deliberate bang-bang control: the correction is a fixed
// single frame no matter how large the drift is, the scheme typical of
// USB asynchronous audio rate matching. Do not replace it with a
// proportional controller.
type driftCompensator struct {
	capacity int // total buffer size in bytes
	packet   int // nominal packet size in bytes
	step     int // one sample frame in bytes
}

// transferSize returns the number of bytes the consumer should pull
// this period: the nominal half buffer, plus or minus one sample
// frame of correction.
//
// The two cursor orderings are handled symmetrically with opposite
// correction signs. When the reader sits numerically ahead of the
// writer, a gap smaller than one packet means the writer is falling
// behind, so the transfer grows to give it room; a gap within one
// packet of the full capacity means the writer is about to lap the
// reader, so the transfer shrinks. The mirrored branch applies the
// inverted corrections when the writer is ahead.
func (d driftCompensator) transferSize(rd, wr int) int {
	size := d.capacity / 2

	if rd > wr {
		switch gap := rd - wr; {
		case gap < d.packet:
			size += d.step
		case gap > d.capacity-d.packet:
			size -= d.step
		}
	} else {
		switch gap := wr - rd; {
		case gap < d.packet:
			size -= d.step
		case gap > d.capacity-d.packet:
			size += d.step
		}
	}

	return size
}
