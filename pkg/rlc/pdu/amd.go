package pdu

import "fmt"

// FramingInfo is the 2-bit FI field: whether the first/last byte of the
// PDU's payload is aligned with an SDU boundary.
type FramingInfo uint8

const (
	// FIBothAligned: first byte starts an SDU, last byte ends one.
	FIBothAligned FramingInfo = 0b00
	// FIFirstNotAligned: first byte continues an SDU from a prior PDU.
	FIFirstNotAligned FramingInfo = 0b01
	// FILastNotAligned: last byte continues into a following PDU.
	FILastNotAligned FramingInfo = 0b10
	// FINeitherAligned: both ends are mid-SDU (a middle segment/PDU).
	FINeitherAligned FramingInfo = 0b11
)

func (fi FramingInfo) FirstAligned() bool { return fi&0b01 == 0 }
func (fi FramingInfo) LastAligned() bool  { return fi&0b10 == 0 }

// Profile parameterizes field widths that differ between LTE AM (10-bit
// SN) and the NR AM variants (12-/18-bit SN). The LI and SO field widths
// scale with it per TS 38.322; everything else in this package is
// profile-agnostic.
type Profile struct {
	SNBits uint
	LIBits uint
	SOBits uint
}

// LTE is the 10-bit-SN / 11-bit-LI / 15-bit-SO profile this spec targets.
var LTE = Profile{SNBits: 10, LIBits: 11, SOBits: 15}

// NR12 is the 12-bit-SN NR AM profile.
var NR12 = Profile{SNBits: 12, LIBits: 15, SOBits: 16}

// NR18 is the 18-bit-SN NR AM profile.
var NR18 = Profile{SNBits: 18, LIBits: 15, SOBits: 16}

// SOEnd is the sentinel meaning "to the end of the PDU" for a NACK's
// so_end field (0x7FFF at the LTE profile's 15-bit width).
const SOEnd = 0x7FFF

// Header is a fully decoded AMD PDU header (data-flagged), covering both
// the plain and the re-segmented (RF=1) form.
type Header struct {
	Poll     bool
	Framing  FramingInfo
	SN       uint32
	LIs      []uint32 // length indicators, in payload order

	// Re-segmentation fields, valid iff Resegmented is true.
	Resegmented bool
	LastSegment bool
	SegOffset   uint32
}

// Encode packs h into its on-wire byte form per §6: fixed part, optional
// segment-offset part, then the extension (LI) part with E-bit framing
// and zero padding to a byte boundary.
func Encode(h Header, p Profile) ([]byte, error) {
	w := newBitWriter()

	w.writeBits(1, 1) // D/C = 1 (data)
	if h.Resegmented {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
	if h.Poll {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
	w.writeBits(uint32(h.Framing), 2)

	hasLIs := len(h.LIs) > 0
	if hasLIs {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}

	w.writeBits(h.SN, p.SNBits)

	if h.Resegmented {
		if h.LastSegment {
			w.writeBits(1, 1)
		} else {
			w.writeBits(0, 1)
		}
		w.writeBits(h.SegOffset, p.SOBits)
	}

	if hasLIs {
		writeLIList(w, h.LIs, p.LIBits)
	}

	return w.bytes(), nil
}

// writeLIList writes E/LI pairs. Each LI is preceded by a one-bit
// extension flag (1 = another LI follows, 0 = this is the last). An odd
// count of (E,LI) units leaves the cursor mid-byte; writeLIList then
// zero-pads to the next byte boundary.
func writeLIList(w *bitWriter, lis []uint32, liBits uint) {
	for i, li := range lis {
		more := i < len(lis)-1
		if more {
			w.writeBits(1, 1)
		} else {
			w.writeBits(0, 1)
		}
		w.writeBits(li, liBits)
	}
	w.padToByte()
}

// Decode unpacks a data PDU header (D/C must already have been checked by
// the caller — see DispatchKind) from raw bytes, returning the header and
// the unconsumed payload tail.
func Decode(data []byte, p Profile) (Header, []byte, error) {
	r := newBitReader(data)

	dc, err := r.readBits(1)
	if err != nil {
		return Header{}, nil, err
	}
	if dc != 1 {
		return Header{}, nil, fmt.Errorf("pdu: not a data pdu (d/c=%d)", dc)
	}

	rf, _ := r.readBits(1)
	poll, _ := r.readBits(1)
	fi, _ := r.readBits(2)
	e, err := r.readBits(1)
	if err != nil {
		return Header{}, nil, err
	}
	snField, err := r.readBits(p.SNBits)
	if err != nil {
		return Header{}, nil, err
	}

	h := Header{
		Poll:        poll == 1,
		Framing:     FramingInfo(fi),
		SN:          snField,
		Resegmented: rf == 1,
	}

	if h.Resegmented {
		lsf, err := r.readBits(1)
		if err != nil {
			return Header{}, nil, err
		}
		so, err := r.readBits(p.SOBits)
		if err != nil {
			return Header{}, nil, err
		}
		h.LastSegment = lsf == 1
		h.SegOffset = so
	}

	if e == 1 {
		lis, err := readLIList(r, p.LIBits)
		if err != nil {
			return Header{}, nil, err
		}
		h.LIs = lis
	} else if !r.byteAligned() {
		if err := r.skipPadding(8 - r.bitPos); err != nil {
			return Header{}, nil, err
		}
	}

	if !r.byteAligned() {
		return Header{}, nil, fmt.Errorf("pdu: header decode left cursor mid-byte")
	}
	return h, r.remainder(), nil
}

func readLIList(r *bitReader, liBits uint) ([]uint32, error) {
	var lis []uint32
	for {
		more, err := r.readBits(1)
		if err != nil {
			return nil, err
		}
		li, err := r.readBits(liBits)
		if err != nil {
			return nil, err
		}
		lis = append(lis, li)

		if more == 0 {
			break
		}
	}
	// Pad bits follow iff the unit count left us mid-byte.
	if !r.byteAligned() {
		if err := r.skipPadding(8 - r.bitPos); err != nil {
			return nil, err
		}
	}
	return lis, nil
}

// Kind distinguishes a raw PDU's D/C bit without a full header decode,
// per §4.2: "distinguish STATUS from AMD PDUs by inspecting the D/C bit".
type Kind int

const (
	KindControl Kind = iota // STATUS PDU, D/C = 0
	KindData                // AMD PDU, D/C = 1
)

// DispatchKind inspects the first bit of a raw PDU without decoding the
// rest of the header.
func DispatchKind(data []byte) (Kind, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("pdu: empty pdu")
	}
	if data[0]&0x80 != 0 {
		return KindData, nil
	}
	return KindControl, nil
}
