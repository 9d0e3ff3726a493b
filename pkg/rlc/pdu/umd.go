package pdu

import "fmt"

// UMDHeader is a decoded UM Data PDU header: no D/C bit (UM carries no
// STATUS PDUs), no poll, no re-segmentation — just framing, SN, and LIs.
type UMDHeader struct {
	Framing FramingInfo
	SN      uint32
	LIs     []uint32
}

// EncodeUMD packs h per the same FI/E/SN/LI layout the AMD header uses,
// minus the D/C, RF, and Poll bits AMD-only.
func EncodeUMD(h UMDHeader, p Profile) ([]byte, error) {
	w := newBitWriter()

	w.writeBits(uint32(h.Framing), 2)

	hasLIs := len(h.LIs) > 0
	if hasLIs {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}

	w.writeBits(h.SN, p.SNBits)

	if hasLIs {
		writeLIList(w, h.LIs, p.LIBits)
	} else {
		w.padToByte()
	}

	return w.bytes(), nil
}

// DecodeUMD unpacks a UM Data PDU header, returning the header and the
// unconsumed payload tail.
func DecodeUMD(data []byte, p Profile) (UMDHeader, []byte, error) {
	r := newBitReader(data)

	fi, err := r.readBits(2)
	if err != nil {
		return UMDHeader{}, nil, err
	}
	e, err := r.readBits(1)
	if err != nil {
		return UMDHeader{}, nil, err
	}
	snField, err := r.readBits(p.SNBits)
	if err != nil {
		return UMDHeader{}, nil, err
	}

	h := UMDHeader{Framing: FramingInfo(fi), SN: snField}

	if e == 1 {
		lis, err := readLIList(r, p.LIBits)
		if err != nil {
			return UMDHeader{}, nil, err
		}
		h.LIs = lis
	} else if !r.byteAligned() {
		if err := r.skipPadding(8 - r.bitPos); err != nil {
			return UMDHeader{}, nil, err
		}
	}

	if !r.byteAligned() {
		return UMDHeader{}, nil, fmt.Errorf("pdu: umd header decode left cursor mid-byte")
	}
	return h, r.remainder(), nil
}
