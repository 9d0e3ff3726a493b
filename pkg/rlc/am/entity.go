// Package am implements the RLC Acknowledged Mode entity: a sliding-
// window ARQ protocol over a lossy lower layer, with SDU segmentation
// and reassembly driven by three independent clocks (SDU arrivals from
// above, MAC read/write opportunities from below, and TTI ticks).
//
// Design Rationale
//
// The transmitter and receiver are not split into separate owned
// objects with back-pointers into each other: the Tx side needs the
// Rx side's pending-STATUS state, and the Rx side's control-PDU
// handling needs the Tx window, so both live as private fields of one
// Entity and their logic is exposed as methods on it (tx.go, rx.go).
// A single mutex guards all of it, matching the rest of this module's
// one-lock-per-aggregate convention; no upward callback (SDU delivery,
// max-retx notification) runs while that lock is held — see deliver.
package am

import (
	"sync"
	"time"

	"github.com/marmos91/rlcam/pkg/rlc/bufpool"
	"github.com/marmos91/rlcam/pkg/rlc/common"
	"github.com/marmos91/rlcam/pkg/rlc/metrics"
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
	"github.com/marmos91/rlcam/pkg/rlc/queue"
	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
	"github.com/marmos91/rlcam/pkg/rlc/sn"
	"github.com/marmos91/rlcam/pkg/rlc/timer"
)

// StopGracePeriod is how long Stop waits for an in-flight blocked writer
// to notice tx is disabled before buffers are torn down (§5).
const StopGracePeriod = 100 * time.Microsecond

// Entity is one AM bearer: Tx and Rx state for a single logical channel.
// It implements common.Bearer and common.Ticker.
type Entity struct {
	cfg   Config
	space sn.Space
	pool  bufpool.Pool
	rrc   common.RRCNotifier
	metr  metrics.AMMetrics

	deliver func(sdu []byte)

	mu        sync.Mutex
	txEnabled bool

	txQueue *queue.Queue

	// Tx state (§3 Tx state variables)
	txWindow        map[uint32]*TxPDUSlot
	vtA, vtS        uint32
	txCurSDU        []byte // remainder of the SDU currently being segmented across PDUs
	pollSN          uint32
	pduWithoutPoll  uint32
	byteWithoutPoll uint64
	pdusSincePoll   uint32
	retxQueue       []RetxDescriptor
	pollFired       bool

	// Rx state (§3 Rx state variables)
	rxWindow    map[uint32]*RxPDUSlot
	rxSegments  map[uint32][]RxSegment
	vrR         uint32
	vrMR        uint32
	vrX         uint32
	vrMS        uint32
	vrH         uint32
	doStatus    bool
	pollPending bool // poll received, status deferred to t-Reordering expiry
	rxAssembly  []byte

	timers *timer.Service

	pendingSDUs          [][]byte
	pendingMaxRetxNotify bool
}

// New creates an AM entity. deliver is called with each reassembled SDU,
// after the internal lock has been released. metr and rrc may be nil
// (metr nil means no metrics are reported); pool must not be nil.
func New(cfg Config, pool bufpool.Pool, metr metrics.AMMetrics, rrc common.RRCNotifier, deliver func(sdu []byte)) (*Entity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, rlcerr.New(rlcerr.InvalidConfig, "am: a buffer pool is required")
	}
	if deliver == nil {
		return nil, rlcerr.New(rlcerr.InvalidConfig, "am: a deliver callback is required")
	}

	e := &Entity{
		cfg:       cfg,
		space:     sn.NewSpace(cfg.Profile.SNBits),
		pool:      pool,
		rrc:       rrc,
		metr:      metr,
		deliver:   deliver,
		txEnabled: true,
		txQueue:   queue.New(cfg.TxQueueCapacity),
		txWindow:   make(map[uint32]*TxPDUSlot),
		rxWindow:   make(map[uint32]*RxPDUSlot),
		rxSegments: make(map[uint32][]RxSegment),
	}
	e.vrMR = e.space.Advance(e.vrR, WindowSize)
	e.timers = timer.NewService(e.onPollRetransmitExpiry, nil, e.onReorderingExpiry)
	return e, nil
}

// flushLocked drains the pending-delivery/notification side effects
// accumulated during a locked critical section. Call it after Unlock so
// no upward callback runs while the entity's mutex is held.
func (e *Entity) flushLocked() ([][]byte, bool) {
	sdus := e.pendingSDUs
	e.pendingSDUs = nil
	notify := e.pendingMaxRetxNotify
	e.pendingMaxRetxNotify = false
	return sdus, notify
}

func (e *Entity) dispatch(sdus [][]byte, notifyMaxRetx bool) {
	for _, s := range sdus {
		e.deliver(s)
	}
	if notifyMaxRetx && e.rrc != nil {
		e.rrc.MaxRetxAttempted(e.cfg.LCID)
	}
}

// WriteSDU implements common.Bearer. The SDU queue has its own lock
// independent of the entity's, so a blocking writer never stalls ReadPDU
// or WritePDU (§5).
func (e *Entity) WriteSDU(sdu []byte, blocking bool) error {
	if blocking {
		return e.txQueue.Push(sdu)
	}
	return e.txQueue.TryPush(sdu)
}

// ReadPDU implements common.Bearer: never blocks, follows the five-step
// priority order in §4.1.
func (e *Entity) ReadPDU(buf []byte) (int, error) {
	e.mu.Lock()

	if !e.txEnabled {
		e.mu.Unlock()
		return 0, nil
	}

	data := e.readPDULocked(len(buf))
	sdus, notify := e.flushLocked()
	e.mu.Unlock()

	e.dispatch(sdus, notify)

	if data == nil {
		return 0, nil
	}
	return copy(buf, data), nil
}

func (e *Entity) readPDULocked(maxBytes int) []byte {
	// 1. pending STATUS, prohibit timer not running.
	if e.doStatus && !e.timers.StatusProhibit.IsRunning() {
		status := e.buildStatusLocked()
		data, err := pdu.EncodeStatus(status, e.cfg.Profile)
		if err == nil && len(data) <= maxBytes {
			e.doStatus = false
			e.timers.StatusProhibit.Start(e.cfg.TStatusProhibitMs)
			if e.metr != nil {
				e.metr.ObserveStatusPDU(e.cfg.LCID, len(status.NACKs))
			}
			return data
		}
	}

	// 2. t-PollRetransmit fired, both queues empty, window non-empty:
	// force a retransmission of the last transmitted SN.
	fired := e.pollFired
	e.pollFired = false
	if fired && e.txQueue.Len() == 0 && len(e.retxQueue) == 0 && e.space.Diff(e.vtA, e.vtS) > 0 {
		last := e.space.Advance(e.vtS, e.space.Modulus-1)
		e.retxQueue = append(e.retxQueue, RetxDescriptor{SN: last})
	}

	// 3. Tx window full, retx queue empty: force the oldest unacked SN.
	if e.space.Diff(e.vtA, e.vtS) >= WindowSize && len(e.retxQueue) == 0 {
		e.retxQueue = append(e.retxQueue, RetxDescriptor{SN: e.vtA})
	}

	// 4. retx queue non-empty.
	if len(e.retxQueue) > 0 {
		if data := e.buildRetxPDULocked(maxBytes, fired); len(data) > 0 {
			return data
		}
	}

	// 5. new data.
	return e.buildDataPDULocked(maxBytes, fired)
}

// WritePDU implements common.Bearer: never blocks. Distinguishes STATUS
// from AMD PDUs by the D/C bit (§4.2).
func (e *Entity) WritePDU(data []byte) error {
	kind, err := pdu.DispatchKind(data)
	if err != nil {
		return rlcerr.New(rlcerr.MalformedPdu, err.Error())
	}

	e.mu.Lock()

	var werr error
	if kind == pdu.KindControl {
		status, derr := pdu.DecodeStatus(data, e.cfg.Profile)
		if derr != nil {
			werr = rlcerr.New(rlcerr.MalformedPdu, derr.Error())
		} else {
			e.handleControlPDULocked(status)
		}
	} else {
		h, payload, derr := pdu.Decode(data, e.cfg.Profile)
		if derr != nil {
			werr = rlcerr.New(rlcerr.MalformedPdu, derr.Error())
		} else if h.Resegmented {
			werr = e.handleDataPDUSegmentLocked(h, payload)
		} else {
			werr = e.handleDataPDULocked(h, payload)
		}
	}

	sdus, notify := e.flushLocked()
	e.mu.Unlock()

	e.dispatch(sdus, notify)
	return werr
}

// GetBufferState implements common.Bearer.
func (e *Entity) GetBufferState() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total uint64
	if e.doStatus && !e.timers.StatusProhibit.IsRunning() {
		status := e.buildStatusLocked()
		if data, err := pdu.EncodeStatus(status, e.cfg.Profile); err == nil {
			total += uint64(len(data))
		}
	}
	for _, d := range e.retxQueue {
		if slot, ok := e.txWindow[d.SN]; ok {
			if d.IsSegment {
				total += uint64(d.SOEnd - d.SOStart)
			} else {
				total += uint64(len(slot.Payload))
			}
		}
	}
	total += e.txQueue.BytesPending()
	return total
}

// Reestablish implements common.Bearer: discard all protocol state,
// keep configuration.
func (e *Entity) Reestablish() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, slot := range e.txWindow {
		e.pool.Put(slot.Payload)
	}
	for _, slot := range e.rxWindow {
		e.pool.Put(slot.Payload)
	}

	e.txWindow = make(map[uint32]*TxPDUSlot)
	e.rxWindow = make(map[uint32]*RxPDUSlot)
	e.rxSegments = make(map[uint32][]RxSegment)
	e.vtA, e.vtS = 0, 0
	e.txCurSDU = nil
	e.pollSN, e.pduWithoutPoll, e.byteWithoutPoll, e.pdusSincePoll = 0, 0, 0, 0
	e.retxQueue = nil
	e.pollFired = false
	e.vrR, e.vrX, e.vrMS, e.vrH = 0, 0, 0, 0
	e.vrMR = e.space.Advance(e.vrR, WindowSize)
	e.doStatus, e.pollPending = false, false
	e.rxAssembly = nil
	e.timers.StopAll()
	e.txQueue.Reset()
	e.txEnabled = true
}

// Stop implements common.Bearer (§5's cancellation contract).
func (e *Entity) Stop() {
	e.mu.Lock()
	e.txEnabled = false
	e.mu.Unlock()

	e.txQueue.Close()
	time.Sleep(StopGracePeriod)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, slot := range e.txWindow {
		e.pool.Put(slot.Payload)
	}
	for _, slot := range e.rxWindow {
		e.pool.Put(slot.Payload)
	}
	e.txWindow = make(map[uint32]*TxPDUSlot)
	e.rxWindow = make(map[uint32]*RxPDUSlot)
	e.timers.StopAll()
}

// EmptyQueue implements common.Bearer.
func (e *Entity) EmptyQueue() {
	e.txQueue.Reset()
}

// GetMode implements common.Bearer.
func (e *Entity) GetMode() common.Mode { return common.ModeAM }

// GetBearer implements common.Bearer.
func (e *Entity) GetBearer() string { return e.cfg.LCID }

// Tick implements common.Ticker: advances the three per-entity timers by
// one TTI. Timer callbacks run synchronously here, under the lock.
func (e *Entity) Tick() {
	e.mu.Lock()
	e.timers.Tick()
	sdus, notify := e.flushLocked()
	e.mu.Unlock()

	e.dispatch(sdus, notify)
}

func (e *Entity) onPollRetransmitExpiry() {
	e.pollFired = true
}

func (e *Entity) txWindowLen() int {
	return int(e.space.Diff(e.vtA, e.vtS))
}
