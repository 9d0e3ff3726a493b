package um

import (
	"sync"
	"time"

	"github.com/marmos91/rlcam/pkg/rlc/bufpool"
	"github.com/marmos91/rlcam/pkg/rlc/common"
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
	"github.com/marmos91/rlcam/pkg/rlc/queue"
	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
	"github.com/marmos91/rlcam/pkg/rlc/sn"
	"github.com/marmos91/rlcam/pkg/rlc/timer"
)

// StopGracePeriod mirrors am.Entity's: how long Stop waits for an in-flight
// blocked writer to notice Tx is disabled before buffers are torn down.
const StopGracePeriod = 100 * time.Microsecond

// rxSlot is one fully-received PDU sitting in the reordering window,
// awaiting in-order consumption.
type rxSlot struct {
	Header  pdu.UMDHeader
	Payload []byte
}

// Entity is one UM bearer. It implements common.Bearer and common.Ticker.
type Entity struct {
	cfg   Config
	space sn.Space
	pool  bufpool.Pool

	deliver func(sdu []byte)

	mu        sync.Mutex
	txEnabled bool
	txQueue   *queue.Queue

	vtUS     uint32
	txCurSDU []byte

	rxWindow   map[uint32]*rxSlot
	vrUR       uint32
	vrUX       uint32
	vrUH       uint32
	rxAssembly []byte

	timers *timer.Service

	pendingSDUs [][]byte
}

// New creates a UM entity. deliver is called with each reassembled SDU
// after the internal lock has been released.
func New(cfg Config, pool bufpool.Pool, deliver func(sdu []byte)) (*Entity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, rlcerr.New(rlcerr.InvalidConfig, "um: a buffer pool is required")
	}
	if deliver == nil {
		return nil, rlcerr.New(rlcerr.InvalidConfig, "um: a deliver callback is required")
	}

	e := &Entity{
		cfg:       cfg,
		space:     sn.NewSpace(cfg.Profile.SNBits),
		pool:      pool,
		deliver:   deliver,
		txEnabled: true,
		txQueue:   queue.New(cfg.TxQueueCapacity),
		rxWindow:  make(map[uint32]*rxSlot),
	}
	e.vrUX = e.vrUR
	e.timers = timer.NewService(nil, nil, e.onReorderingExpiry)
	return e, nil
}

func (e *Entity) flushLocked() [][]byte {
	sdus := e.pendingSDUs
	e.pendingSDUs = nil
	return sdus
}

func (e *Entity) dispatch(sdus [][]byte) {
	for _, s := range sdus {
		e.deliver(s)
	}
}

// WriteSDU implements common.Bearer.
func (e *Entity) WriteSDU(sdu []byte, blocking bool) error {
	if blocking {
		return e.txQueue.Push(sdu)
	}
	return e.txQueue.TryPush(sdu)
}

// liOverheadBytes is a conservative reservation for the LI this chunk's
// boundary may need, mirroring am.liOverheadBytes's rationale: a safe
// overestimate during the greedy build loop, not a bit-exact one (the
// final EncodeUMD call is exact regardless).
const liOverheadBytes = 2

// ReadPDU implements common.Bearer: greedily concatenates queued SDUs (and
// any carried SDU remainder) into one PDU, with no retransmission and no
// poll/status bookkeeping — the one-shot Tx side of UM.
func (e *Entity) ReadPDU(buf []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.txEnabled {
		return 0, nil
	}

	budget := len(buf) - headerSizeBytes(nil, e.cfg.Profile)
	if budget <= 0 {
		return 0, nil
	}

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
		return 0, nil
	}

	// Every chunk boundary except the final one gets an LI entry; the
	// last chunk's end is conveyed by the FI bits instead.
	var lis []uint32
	for i := 0; i < len(chunkLens)-1; i++ {
		lis = append(lis, uint32(chunkLens[i]))
	}

	h := pdu.UMDHeader{
		Framing: framingFrom(firstAligned, lastAligned),
		SN:      e.vtUS,
		LIs:     lis,
	}
	e.vtUS = e.space.Advance(e.vtUS, 1)

	data, err := pdu.EncodeUMD(h, e.cfg.Profile)
	if err != nil {
		return 0, err
	}
	data = append(data, payload...)
	if len(data) > len(buf) {
		return 0, nil
	}
	return copy(buf, data), nil
}

// WritePDU implements common.Bearer.
func (e *Entity) WritePDU(data []byte) error {
	h, payload, err := pdu.DecodeUMD(data, e.cfg.Profile)
	if err != nil {
		return rlcerr.New(rlcerr.MalformedPdu, err.Error())
	}

	e.mu.Lock()
	e.handleDataPDULocked(h, payload)
	sdus := e.flushLocked()
	e.mu.Unlock()

	e.dispatch(sdus)
	return nil
}

func (e *Entity) handleDataPDULocked(h pdu.UMDHeader, payload []byte) {
	if !e.space.IsInside(e.vrUR, e.space.Advance(e.vrUR, WindowSize), h.SN) {
		return // outside the reordering window; drop
	}
	if _, dup := e.rxWindow[h.SN]; dup {
		return
	}

	buf, ok := e.pool.Get(len(payload))
	if !ok {
		return
	}
	n := copy(buf, payload)
	e.rxWindow[h.SN] = &rxSlot{Header: h, Payload: buf[:n]}

	next := e.space.Advance(h.SN, 1)
	if e.space.Diff(e.vrUR, next) > e.space.Diff(e.vrUR, e.vrUH) {
		e.vrUH = next
	}

	e.reassembleRxSDUsLocked()
	e.manageReorderingTimerLocked()
}

func (e *Entity) reassembleRxSDUsLocked() {
	for {
		slot, ok := e.rxWindow[e.vrUR]
		if !ok {
			break
		}
		h := slot.Header
		payload := slot.Payload

		if e.rxAssembly == nil && !h.Framing.FirstAligned() {
			if len(h.LIs) > 0 {
				payload = payload[h.LIs[0]:]
				h.LIs = h.LIs[1:]
			} else {
				payload = nil
			}
		}

		offset := 0
		for _, li := range h.LIs {
			end := offset + int(li)
			if end > len(payload) {
				break
			}
			chunk := payload[offset:end]
			if e.rxAssembly != nil {
				e.rxAssembly = append(e.rxAssembly, chunk...)
				e.pendingSDUs = append(e.pendingSDUs, e.rxAssembly)
				e.rxAssembly = nil
			} else {
				e.pendingSDUs = append(e.pendingSDUs, append([]byte(nil), chunk...))
			}
			offset = end
		}

		rest := payload[offset:]
		if h.Framing.LastAligned() {
			if e.rxAssembly != nil {
				e.rxAssembly = append(e.rxAssembly, rest...)
				e.pendingSDUs = append(e.pendingSDUs, e.rxAssembly)
				e.rxAssembly = nil
			} else if len(rest) > 0 {
				e.pendingSDUs = append(e.pendingSDUs, append([]byte(nil), rest...))
			}
		} else {
			if e.rxAssembly == nil {
				e.rxAssembly = append([]byte(nil), rest...)
			} else {
				e.rxAssembly = append(e.rxAssembly, rest...)
			}
		}

		e.pool.Put(slot.Payload)
		delete(e.rxWindow, e.vrUR)
		e.vrUR = e.space.Advance(e.vrUR, 1)
	}
}

// manageReorderingTimerLocked keeps t-Reordering running exactly when a
// gap exists between the receive state VR(UR) and the highest SN seen
// VR(UH); VR(UX) snapshots VR(UH) at the moment the timer (re)starts, the
// same role VR(X) plays on the AM side.
func (e *Entity) manageReorderingTimerLocked() {
	if e.space.Diff(e.vrUR, e.vrUH) > 0 && !e.timers.Reordering.IsRunning() {
		e.vrUX = e.vrUH
		e.timers.Reordering.Start(e.cfg.TReorderingMs)
	}
}

// onReorderingExpiry gives up on the gap stuck at VR(UR): it is never
// going to be retransmitted in UM, so the receive state jumps forward to
// the first SN after it that has been received, or to VR(UX) if none
// below VR(UX) has (discarding any partial SDU that gap would have
// completed), then resumes reassembly from there.
func (e *Entity) onReorderingExpiry() {
	cur := e.vrUR
	for e.space.Diff(cur, e.vrUX) > 0 {
		if _, ok := e.rxWindow[cur]; ok {
			break // reception resumes here
		}
		cur = e.space.Advance(cur, 1)
	}
	if cur != e.vrUR {
		e.rxAssembly = nil
		e.vrUR = cur
	}
	e.reassembleRxSDUsLocked()
	if e.space.Diff(e.vrUR, e.vrUH) > 0 {
		e.vrUX = e.vrUH
		e.timers.Reordering.Start(e.cfg.TReorderingMs)
	}
}

// GetBufferState implements common.Bearer.
func (e *Entity) GetBufferState() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := e.txQueue.BytesPending()
	if e.txCurSDU != nil {
		total += uint64(len(e.txCurSDU))
	}
	return total
}

// Reestablish implements common.Bearer.
func (e *Entity) Reestablish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, slot := range e.rxWindow {
		e.pool.Put(slot.Payload)
	}
	e.rxWindow = make(map[uint32]*rxSlot)
	e.vtUS = 0
	e.txCurSDU = nil
	e.vrUR, e.vrUH, e.vrUX = 0, 0, 0
	e.rxAssembly = nil
	e.timers.StopAll()
	e.txQueue.Reset()
	e.txEnabled = true
}

// Stop implements common.Bearer.
func (e *Entity) Stop() {
	e.mu.Lock()
	e.txEnabled = false
	e.mu.Unlock()

	e.txQueue.Close()
	time.Sleep(StopGracePeriod)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, slot := range e.rxWindow {
		e.pool.Put(slot.Payload)
	}
	e.rxWindow = make(map[uint32]*rxSlot)
	e.timers.StopAll()
}

// EmptyQueue implements common.Bearer.
func (e *Entity) EmptyQueue() { e.txQueue.Reset() }

// GetMode implements common.Bearer.
func (e *Entity) GetMode() common.Mode { return common.ModeUM }

// GetBearer implements common.Bearer.
func (e *Entity) GetBearer() string { return e.cfg.LCID }

// Tick implements common.Ticker: advances t-Reordering by one TTI.
func (e *Entity) Tick() {
	e.mu.Lock()
	e.timers.Tick()
	sdus := e.flushLocked()
	e.mu.Unlock()

	e.dispatch(sdus)
}

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

// headerSizeBytes computes the on-wire size of a UM header with the given
// LI list.
func headerSizeBytes(lis []uint32, p pdu.Profile) int {
	bits := 2 + 1 + int(p.SNBits) // FI, E, SN
	bits += len(lis) * (1 + int(p.LIBits))
	return (bits + 7) / 8
}
