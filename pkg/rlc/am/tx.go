package am

import "github.com/marmos91/rlcam/pkg/rlc/pdu"

const fixedHeaderBytes = 2

// liOverheadBytes conservatively charges every candidate LI boundary a
// full 2 bytes (ceil((1+11)/8) at the LTE profile) against the MAC
// grant, even though a run of LIs packs tighter than that once you
// account for shared byte boundaries. A build that slightly underfills
// a grant is harmless; one that overflows it is not, so this errs
// toward the safe side rather than bit-exact accounting during
// concatenation (the final header is still encoded exactly via
// headerSizeBytes/pdu.Encode, so the wire format itself stays precise).
const liOverheadBytes = 2

// buildDataPDULocked implements build_data_pdu (§4.1): greedy
// concatenation of the in-flight SDU remainder followed by fresh SDUs
// from the queue, until the grant is exhausted.
func (e *Entity) buildDataPDULocked(maxBytes int, pollRetransmitFired bool) []byte {
	if e.space.Diff(e.vtA, e.vtS) >= WindowSize {
		return nil
	}
	hdrBytes := headerSizeBytes(nil, e.cfg.Profile, false)
	if maxBytes <= hdrBytes {
		return nil
	}
	budget := maxBytes - hdrBytes

	var payload []byte
	var chunkLens []int
	firstAligned := e.txCurSDU == nil

	if e.txCurSDU != nil {
		take := e.txCurSDU
		if len(take) > budget {
			take = take[:budget]
		}
		payload = append(payload, take...)
		chunkLens = append(chunkLens, len(take))
		budget -= len(take)
		if len(take) == len(e.txCurSDU) {
			e.txCurSDU = nil
		} else {
			e.txCurSDU = e.txCurSDU[len(take):]
		}
	}

	lastAligned := e.txCurSDU == nil
	for e.txCurSDU == nil && budget > liOverheadBytes {
		sdu, ok := e.txQueue.TryPop()
		if !ok {
			break
		}
		avail := budget - liOverheadBytes
		if len(sdu.Bytes) <= avail {
			payload = append(payload, sdu.Bytes...)
			chunkLens = append(chunkLens, len(sdu.Bytes))
			budget -= liOverheadBytes + len(sdu.Bytes)
			lastAligned = true
		} else {
			payload = append(payload, sdu.Bytes[:avail]...)
			chunkLens = append(chunkLens, avail)
			e.txCurSDU = sdu.Bytes[avail:]
			lastAligned = false
			break
		}
	}

	if len(payload) == 0 {
		return nil
	}

	// Every chunk boundary except the final one in the payload gets an
	// LI entry; the last chunk's end is conveyed by the FI bits instead.
	var lis []uint32
	for i := 0; i < len(chunkLens)-1; i++ {
		lis = append(lis, uint32(chunkLens[i]))
	}

	sn := e.vtS
	e.vtS = e.space.Advance(e.vtS, 1)

	windowEmptyAfter := e.txQueue.Len() == 0 && len(e.retxQueue) == 0
	poll := e.decidePollLocked(len(payload), windowEmptyAfter, pollRetransmitFired)

	h := pdu.Header{Poll: poll, Framing: framingFrom(firstAligned, lastAligned), SN: sn, LIs: lis}
	header, err := pdu.Encode(h, e.cfg.Profile)
	if err != nil {
		return nil
	}

	stored, ok := e.pool.Get(len(payload))
	if ok {
		copy(stored, payload)
	} else {
		stored = payload
	}
	e.txWindow[sn] = &TxPDUSlot{Header: h, Payload: stored}

	if e.metr != nil {
		e.metr.SetTxWindowSize(e.cfg.LCID, e.txWindowLen())
	}

	return append(header, payload...)
}

// buildRetxPDULocked implements build_retx_pdu/build_segment (§4.1):
// retransmit the head of the retx queue intact if it fits the grant,
// otherwise carve off a segment and re-queue the residual.
func (e *Entity) buildRetxPDULocked(maxBytes int, pollRetransmitFired bool) []byte {
	if len(e.retxQueue) == 0 {
		return nil
	}
	desc := e.retxQueue[0]

	slot, ok := e.txWindow[desc.SN]
	if !ok {
		// Stale descriptor: the SN was ACKed out from under us between
		// being queued and being served. Drop it and let the caller
		// retry on the next read_pdu.
		e.retxQueue = e.retxQueue[1:]
		return nil
	}
	full := slot.Payload

	if !desc.IsSegment {
		headerLen := headerSizeBytes(slot.Header.LIs, e.cfg.Profile, false)
		if headerLen+len(full) <= maxBytes {
			e.retxQueue = e.retxQueue[1:]
			h := slot.Header
			windowEmptyAfter := e.txQueue.Len() == 0 && len(e.retxQueue) == 0
			h.Poll = e.decidePollLocked(len(full), windowEmptyAfter, pollRetransmitFired)
			data, err := pdu.Encode(h, e.cfg.Profile)
			if err != nil {
				return nil
			}
			e.afterRetxLocked(slot)
			return append(data, full...)
		}
		// Doesn't fit whole: fall through to the segment path over the
		// entire payload range.
		desc = RetxDescriptor{SN: desc.SN, IsSegment: true, SOStart: 0, SOEnd: uint32(len(full))}
	}
	e.retxQueue = e.retxQueue[1:]

	segHeaderLen := segHeaderSizeBytes(e.cfg.Profile)
	if maxBytes <= segHeaderLen {
		// Grant too small for even a one-byte segment: put the work back
		// at the front for a future, larger grant.
		e.retxQueue = append([]RetxDescriptor{desc}, e.retxQueue...)
		return nil
	}
	avail := maxBytes - segHeaderLen
	take := int(desc.SOEnd - desc.SOStart)
	if take > avail {
		take = avail
	}
	newEnd := desc.SOStart + uint32(take)

	segPayload := full[desc.SOStart:newEnd]
	segLIs := recomputeSegmentLIs(slot.Header.LIs, uint32(len(full)), desc.SOStart, newEnd)

	firstAligned := desc.SOStart == 0 && slot.Header.Framing.FirstAligned()
	lastSegment := newEnd == uint32(len(full))
	lastAligned := lastSegment && slot.Header.Framing.LastAligned()

	windowEmptyAfter := e.txQueue.Len() == 0 && len(e.retxQueue) == 0
	poll := e.decidePollLocked(len(segPayload), windowEmptyAfter, pollRetransmitFired)

	h := pdu.Header{
		Poll:        poll,
		Framing:     framingFrom(firstAligned, lastAligned),
		SN:          desc.SN,
		LIs:         segLIs,
		Resegmented: true,
		LastSegment: lastSegment,
		SegOffset:   desc.SOStart,
	}
	data, err := pdu.Encode(h, e.cfg.Profile)
	if err != nil {
		return nil
	}

	if !lastSegment {
		e.retxQueue = append(e.retxQueue, RetxDescriptor{SN: desc.SN, IsSegment: true, SOStart: newEnd, SOEnd: uint32(len(full))})
	}

	e.afterRetxLocked(slot)
	return append(data, segPayload...)
}

func (e *Entity) afterRetxLocked(slot *TxPDUSlot) {
	slot.RetxCount++
	if e.metr != nil {
		e.metr.ObserveRetransmission(e.cfg.LCID)
	}
	if slot.RetxCount >= e.cfg.MaxRetxThreshold {
		e.pendingMaxRetxNotify = true
		if e.metr != nil {
			e.metr.ObserveMaxRetx(e.cfg.LCID)
		}
	}
}

// decidePollLocked implements the poll bit policy (§4.1): evaluates
// conditions (a)-(e) against the PDU just built and, if any hold, arms
// POLL_SN/t-PollRetransmit and resets the trigger counters.
func (e *Entity) decidePollLocked(pduLen int, windowEmptyAfter, pollRetransmitFired bool) bool {
	e.pduWithoutPoll++
	e.byteWithoutPoll += uint64(pduLen)
	e.pdusSincePoll++

	poll := false
	if e.cfg.PollPDU > 0 && e.pduWithoutPoll > e.cfg.PollPDU {
		poll = true
	}
	if e.cfg.PollByte > 0 && e.byteWithoutPoll > e.cfg.PollByte {
		poll = true
	}
	if pollRetransmitFired {
		poll = true
	}
	if windowEmptyAfter {
		poll = true
	}
	if !poll && e.cfg.PollPDU == 0 && e.cfg.PollByte == 0 &&
		e.cfg.PollFallbackEvery > 0 && e.pdusSincePoll >= e.cfg.PollFallbackEvery {
		poll = true
	}

	if poll {
		e.pduWithoutPoll = 0
		e.byteWithoutPoll = 0
		e.pdusSincePoll = 0
		e.pollSN = e.space.Advance(e.vtS, e.space.Modulus-1)
		e.timers.PollRetransmit.Start(e.cfg.TPollRetransmitMs)
	}
	return poll
}

// handleControlPDULocked implements handle_control_pdu (§4.1): parse a
// STATUS PDU, reset t-PollRetransmit, rebuild the retx queue from the
// NACK list, and advance VT(A) past any newly fully-ACKed prefix.
func (e *Entity) handleControlPDULocked(status pdu.Status) {
	e.timers.PollRetransmit.Stop()
	e.retxQueue = nil

	nacks := make(map[uint32]pdu.NACK, len(status.NACKs))
	for _, n := range status.NACKs {
		nacks[n.SN] = n
	}

	cur := e.vtA
	for e.space.Diff(cur, status.ACKSN) > 0 {
		if n, isNack := nacks[cur]; isNack {
			desc := RetxDescriptor{SN: cur}
			if slot, ok := e.txWindow[cur]; ok && n.HasSegment && n.SOStart < uint32(len(slot.Payload)) {
				soEnd := n.SOEnd
				if soEnd == pdu.SOEnd || soEnd > uint32(len(slot.Payload)) {
					soEnd = uint32(len(slot.Payload))
				}
				desc.IsSegment = true
				desc.SOStart = n.SOStart
				desc.SOEnd = soEnd
			}
			e.retxQueue = append(e.retxQueue, desc)
		} else if slot, ok := e.txWindow[cur]; ok {
			e.pool.Put(slot.Payload)
			delete(e.txWindow, cur)
		}
		cur = e.space.Advance(cur, 1)
	}

	for e.space.Diff(e.vtA, e.vtS) > 0 {
		if _, stillPresent := e.txWindow[e.vtA]; stillPresent {
			break
		}
		e.vtA = e.space.Advance(e.vtA, 1)
	}

	if e.metr != nil {
		e.metr.SetTxWindowSize(e.cfg.LCID, e.txWindowLen())
	}
}
