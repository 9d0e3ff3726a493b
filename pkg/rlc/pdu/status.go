package pdu

import "fmt"

// NACK describes one negatively-acknowledged SN in a STATUS PDU, with an
// optional segment range. SOStart/SOEnd are only meaningful when
// HasSegment is true; SOEnd == SOEnd sentinel (0x7FFF at the LTE profile)
// means "to the end of the PDU".
type NACK struct {
	SN         uint32
	HasSegment bool
	SOStart    uint32
	SOEnd      uint32
}

// Status is a fully decoded STATUS PDU: the cumulative ACK_SN plus a
// sorted NACK list, per invariant 6 (sorted ascending, no SN >= ACK_SN).
type Status struct {
	ACKSN uint32
	NACKs []NACK
}

// EncodeStatus packs s per §6: D/C=0, CPT=000, ACK_SN, then repeated
// NACK units terminated by a zero E1, zero-padded to a byte boundary.
//
// The original 3GPP D/C convention is D/C=0 for control PDUs (STATUS)
// and D/C=1 for data PDUs (AMD) — see DESIGN.md for why this package
// follows that convention rather than the literal "D/C=1" shown in one
// spec passage, which would make STATUS indistinguishable from AMD.
func EncodeStatus(s Status, p Profile) ([]byte, error) {
	w := newBitWriter()
	w.writeBits(0, 1) // D/C = 0 (control)
	w.writeBits(0, 3) // CPT = 000 (status)
	w.writeBits(s.ACKSN, p.SNBits)

	for _, n := range s.NACKs {
		w.writeBits(1, 1) // E1: another NACK follows
		w.writeBits(n.SN, p.SNBits)
		if n.HasSegment {
			w.writeBits(1, 1) // E2: segment range present
			w.writeBits(n.SOStart, p.SOBits)
			w.writeBits(n.SOEnd, p.SOBits)
		} else {
			w.writeBits(0, 1)
		}
	}
	w.writeBits(0, 1) // final E1 = 0: no more NACKs
	w.padToByte()

	return w.bytes(), nil
}

// DecodeStatus unpacks a STATUS PDU. The caller must have already
// distinguished it from a data PDU via DispatchKind.
func DecodeStatus(data []byte, p Profile) (Status, error) {
	r := newBitReader(data)

	dc, err := r.readBits(1)
	if err != nil {
		return Status{}, err
	}
	if dc != 0 {
		return Status{}, fmt.Errorf("pdu: not a control pdu (d/c=%d)", dc)
	}
	cpt, err := r.readBits(3)
	if err != nil {
		return Status{}, err
	}
	if cpt != 0 {
		return Status{}, fmt.Errorf("pdu: unsupported control pdu type %d", cpt)
	}

	ackSN, err := r.readBits(p.SNBits)
	if err != nil {
		return Status{}, err
	}

	s := Status{ACKSN: ackSN}
	for {
		e1, err := r.readBits(1)
		if err != nil {
			return Status{}, err
		}
		if e1 == 0 {
			break
		}
		nackSN, err := r.readBits(p.SNBits)
		if err != nil {
			return Status{}, err
		}
		e2, err := r.readBits(1)
		if err != nil {
			return Status{}, err
		}
		n := NACK{SN: nackSN}
		if e2 == 1 {
			n.HasSegment = true
			n.SOStart, err = r.readBits(p.SOBits)
			if err != nil {
				return Status{}, err
			}
			n.SOEnd, err = r.readBits(p.SOBits)
			if err != nil {
				return Status{}, err
			}
		}
		s.NACKs = append(s.NACKs, n)
	}

	if !r.byteAligned() {
		if err := r.skipPadding(8 - r.bitPos); err != nil {
			return Status{}, err
		}
	}
	return s, nil
}
