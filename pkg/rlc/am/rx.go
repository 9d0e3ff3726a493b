package am

import (
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
)

// handleDataPDULocked implements handle_data_pdu (§4.2).
func (e *Entity) handleDataPDULocked(h pdu.Header, payload []byte) error {
	if !e.space.IsInside(e.vrR, e.vrMR, h.SN) {
		if h.Poll {
			e.doStatus = true
		}
		return rlcerr.New(rlcerr.OutOfWindow, "am: sn outside rx window").WithSN(h.SN)
	}
	if _, dup := e.rxWindow[h.SN]; dup {
		if h.Poll {
			e.doStatus = true
		}
		return rlcerr.New(rlcerr.DuplicatePdu, "am: duplicate sn").WithSN(h.SN)
	}

	stored, ok := e.pool.Get(len(payload))
	if !ok {
		if e.metr != nil {
			e.metr.ObserveReassemblyLostSDU(e.cfg.LCID)
		}
		return rlcerr.New(rlcerr.BufferPoolExhausted, "am: no buffer available for rx pdu").WithSN(h.SN)
	}
	copy(stored, payload)
	e.rxWindow[h.SN] = &RxPDUSlot{Header: h, Payload: stored}

	next := e.space.Advance(h.SN, 1)
	if e.space.Diff(e.vrR, next) > e.space.Diff(e.vrR, e.vrH) {
		e.vrH = next
	}

	cur := e.vrR
	for {
		if _, ok := e.rxWindow[cur]; !ok {
			break
		}
		cur = e.space.Advance(cur, 1)
	}
	e.vrMS = cur

	if h.Poll {
		if !e.space.IsInside(e.vrR, e.vrMS, h.SN) {
			e.doStatus = true
		} else {
			e.pollPending = true
		}
	}

	e.reassembleRxSDUsLocked()
	e.manageReorderingTimerLocked()
	return nil
}

// handleDataPDUSegmentLocked implements handle_data_pdu_segment (§4.2):
// accumulate re-segmented fragments until the last one arrives, then
// reconstruct a synthetic full header and dispatch it to
// handleDataPDULocked.
func (e *Entity) handleDataPDUSegmentLocked(h pdu.Header, payload []byte) error {
	segs := e.rxSegments[h.SN]

	var expectedOffset uint32
	for _, s := range segs {
		expectedOffset += uint32(len(s.Payload))
	}
	if h.SegOffset != expectedOffset {
		// Cannot fill gaps mid-stream; drop and let retransmission catch up.
		return rlcerr.New(rlcerr.MalformedPdu, "am: out-of-order segment offset").WithSN(h.SN)
	}

	segs = append(segs, RxSegment{Header: h, Payload: append([]byte(nil), payload...)})
	e.rxSegments[h.SN] = segs

	if !h.LastSegment {
		return nil
	}
	delete(e.rxSegments, h.SN)

	var recon []byte
	var allChunks []uint32
	var carry uint32
	haveCarry := false
	poll := false

	for _, s := range segs {
		if s.Header.Poll {
			poll = true
		}
		recon = append(recon, s.Payload...)

		var sum uint32
		for _, l := range s.Header.LIs {
			sum += l
		}
		lastChunk := uint32(len(s.Payload)) - sum
		chunks := append(append([]uint32{}, s.Header.LIs...), lastChunk)

		if haveCarry {
			chunks[0] += carry
			haveCarry = false
		}
		if !s.Header.Framing.LastAligned() {
			carry = chunks[len(chunks)-1]
			haveCarry = true
			chunks = chunks[:len(chunks)-1]
		}
		allChunks = append(allChunks, chunks...)
	}
	if haveCarry {
		allChunks = append(allChunks, carry)
	}

	var lis []uint32
	if len(allChunks) > 0 {
		lis = allChunks[:len(allChunks)-1]
	}

	reconHeader := pdu.Header{
		Poll:    poll,
		Framing: framingFrom(segs[0].Header.Framing.FirstAligned(), segs[len(segs)-1].Header.Framing.LastAligned()),
		SN:      h.SN,
		LIs:     lis,
	}
	return e.handleDataPDULocked(reconHeader, recon)
}

// reassembleRxSDUsLocked implements reassemble_rx_sdus (§4.2): walk
// VR(R) forward while a PDU is present, slicing SDUs out via the LI
// list and delivering them upward (after the lock is released, via
// pendingSDUs/flushLocked).
func (e *Entity) reassembleRxSDUsLocked() {
	for {
		slot, ok := e.rxWindow[e.vrR]
		if !ok {
			break
		}
		h := slot.Header
		payload := slot.Payload
		lis := h.LIs

		offset := 0
		if e.rxAssembly == nil && !h.Framing.FirstAligned() {
			// The first unconsumed bytes continue an SDU whose start was
			// never seen (its originating PDU never arrived, or arrived
			// without an end-aligned predecessor). Nothing before the
			// next boundary is recoverable.
			if len(lis) > 0 {
				offset = int(lis[0])
				lis = lis[1:]
			} else {
				offset = len(payload)
			}
			if e.metr != nil {
				e.metr.ObserveReassemblyLostSDU(e.cfg.LCID)
			}
		}

		for _, liLen := range lis {
			end := offset + int(liLen)
			if end > len(payload) {
				end = len(payload)
			}
			e.rxAssembly = append(e.rxAssembly, payload[offset:end]...)
			e.pendingSDUs = append(e.pendingSDUs, e.rxAssembly)
			e.rxAssembly = nil
			offset = end
		}

		if offset < len(payload) {
			e.rxAssembly = append(e.rxAssembly, payload[offset:]...)
			if h.Framing.LastAligned() {
				e.pendingSDUs = append(e.pendingSDUs, e.rxAssembly)
				e.rxAssembly = nil
			}
		}

		e.pool.Put(slot.Payload)
		delete(e.rxWindow, e.vrR)
		e.vrR = e.space.Advance(e.vrR, 1)
		e.vrMR = e.space.Advance(e.vrR, WindowSize)
	}
}

// manageReorderingTimerLocked keeps t-Reordering running exactly when
// invariant 8 requires it: a gap exists between the contiguous-received
// point (VR(MS)) and the highest SN seen (VR(H)).
func (e *Entity) manageReorderingTimerLocked() {
	if e.space.Diff(e.vrMS, e.vrH) > 0 {
		if !e.timers.Reordering.IsRunning() {
			e.vrX = e.vrH
			e.timers.Reordering.Start(e.cfg.TReorderingMs)
		}
	} else {
		e.timers.Reordering.Stop()
	}
}

// onReorderingExpiry implements the t-Reordering expiry algorithm
// (§4.2, TS 36.322 §5.1.3.2.4).
func (e *Entity) onReorderingExpiry() {
	cur := e.vrX
	for {
		if _, ok := e.rxWindow[cur]; !ok {
			break
		}
		if cur == e.vrH {
			break
		}
		cur = e.space.Advance(cur, 1)
	}
	e.vrMS = cur

	if e.pollPending {
		e.doStatus = true
		e.pollPending = false
	}

	if e.space.Diff(e.vrMS, e.vrH) > 0 {
		e.vrX = e.vrH
		e.timers.Reordering.Start(e.cfg.TReorderingMs)
	}
}

// buildStatusLocked implements STATUS PDU generation (§4.2): ACK_SN is
// VR(MS), and every SN in [VR(R), VR(MS)) not present in the Rx window
// is NACKed. Segment-level NACKs are omitted in this baseline (full-PDU
// NACKs are spec-legal and simpler, per §4.2).
func (e *Entity) buildStatusLocked() pdu.Status {
	s := pdu.Status{ACKSN: e.vrMS}
	cur := e.vrR
	for e.space.Diff(cur, e.vrMS) > 0 {
		if _, ok := e.rxWindow[cur]; !ok {
			s.NACKs = append(s.NACKs, pdu.NACK{SN: cur})
		}
		cur = e.space.Advance(cur, 1)
	}
	return s
}
