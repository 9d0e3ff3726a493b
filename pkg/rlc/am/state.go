package am

import "github.com/marmos91/rlcam/pkg/rlc/pdu"

// TxPDUSlot is one entry in the Tx window: the PDU as it was last sent,
// kept around so it can be retransmitted or segmented on a NACK.
type TxPDUSlot struct {
	Header    pdu.Header
	Payload   []byte
	RetxCount uint32
	Acked     bool
}

// RxSegment is one arrived re-segmented fragment of an SN, kept until the
// last segment completes the set.
type RxSegment struct {
	Header  pdu.Header
	Payload []byte
}

// RxPDUSlot is a fully-received (or fully-reassembled-from-segments) PDU
// sitting in the Rx window, awaiting in-order consumption by
// reassembleRxSDUs.
type RxPDUSlot struct {
	Header  pdu.Header
	Payload []byte
}

// RetxDescriptor names one unit of retransmission work: either an entire
// stored PDU, or — once a grant has been too small to carry it whole — a
// byte range of it.
type RetxDescriptor struct {
	SN        uint32
	IsSegment bool
	SOStart   uint32
	SOEnd     uint32
}

// framingFrom derives the two-bit FI field from whether the first and
// last byte of an assembled payload line up with an SDU boundary.
func framingFrom(firstAligned, lastAligned bool) pdu.FramingInfo {
	switch {
	case firstAligned && lastAligned:
		return pdu.FIBothAligned
	case !firstAligned && lastAligned:
		return pdu.FIFirstNotAligned
	case firstAligned && !lastAligned:
		return pdu.FILastNotAligned
	default:
		return pdu.FINeitherAligned
	}
}

// headerSizeBytes computes the exact on-wire size of a data PDU header
// with the given LI list, used to decide whether a candidate PDU fits a
// MAC grant.
func headerSizeBytes(lis []uint32, p pdu.Profile, resegmented bool) int {
	bits := 1 + 1 + 1 + 2 + 1 + int(p.SNBits) // D/C,RF,P,FI,E,SN
	if resegmented {
		bits += 1 + int(p.SOBits) // LSF, SO
	}
	bits += len(lis) * (1 + int(p.LIBits)) // E + LI per entry
	return (bits + 7) / 8
}

// segHeaderSizeBytes is the header size of a re-segmented PDU carrying no
// LIs of its own, used as the floor when deciding how much payload a
// segment retransmission can carry under a small grant.
func segHeaderSizeBytes(p pdu.Profile) int {
	return headerSizeBytes(nil, p, true)
}

// recomputeSegmentLIs derives the LI list for the sub-range [soStart,
// soEnd) of a PDU whose full length was totalLen and whose original LIs
// (all-but-last chunk lengths) were origLIs.
func recomputeSegmentLIs(origLIs []uint32, totalLen, soStart, soEnd uint32) []uint32 {
	var bounds []uint32
	cum := uint32(0)
	for _, l := range origLIs {
		cum += l
		bounds = append(bounds, cum)
	}
	bounds = append(bounds, totalLen)

	var segLIs []uint32
	for _, b := range bounds {
		if b > soStart && b < soEnd {
			segLIs = append(segLIs, b-soStart)
		}
	}
	return segLIs
}
