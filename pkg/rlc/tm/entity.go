package tm

import (
	"github.com/marmos91/rlcam/pkg/rlc/common"
	"github.com/marmos91/rlcam/pkg/rlc/queue"
	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
)

// Entity is one TM bearer. It implements common.Bearer but not
// common.Ticker: TM carries no timers, so MAC simply never calls Tick on
// it (the caller's entity map only drives Tick for AM/UM bearers).
type Entity struct {
	cfg Config

	txEnabled bool
	txQueue   *queue.Queue

	deliver func(sdu []byte)
}

// New creates a TM entity. deliver is called with each received SDU,
// unchanged, directly from WritePDU — TM has no reassembly state to
// protect with a lock, so there is nothing to buffer and flush later the
// way um.Entity and am.Entity do.
func New(cfg Config, deliver func(sdu []byte)) (*Entity, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deliver == nil {
		return nil, rlcerr.New(rlcerr.InvalidConfig, "tm: a deliver callback is required")
	}
	return &Entity{
		cfg:       cfg,
		txEnabled: true,
		txQueue:   queue.New(cfg.TxQueueCapacity),
		deliver:   deliver,
	}, nil
}

// WriteSDU implements common.Bearer.
func (e *Entity) WriteSDU(sdu []byte, blocking bool) error {
	if blocking {
		return e.txQueue.Push(sdu)
	}
	return e.txQueue.TryPush(sdu)
}

// ReadPDU implements common.Bearer. TM performs no segmentation or
// concatenation (§4.2.1 of the mode's governing spec: one SDU maps to
// exactly one PDU), so this only ever pops the head SDU whole. If it
// does not fit buf, it is left queued rather than dropped or split —
// the grant is assumed sized for the bearer's configured SDU ceiling,
// the same assumption a transparent-mode MAC scheduler makes.
func (e *Entity) ReadPDU(buf []byte) (int, error) {
	if !e.txEnabled {
		return 0, nil
	}
	if e.txQueue.FrontBytes() > len(buf) {
		return 0, nil
	}
	sdu, ok := e.txQueue.TryPop()
	if !ok {
		return 0, nil
	}
	return copy(buf, sdu.Bytes), nil
}

// WritePDU implements common.Bearer: a TM PDU is an SDU, verbatim.
func (e *Entity) WritePDU(data []byte) error {
	if !e.txEnabled {
		return nil
	}
	e.deliver(append([]byte(nil), data...))
	return nil
}

// GetBufferState implements common.Bearer.
func (e *Entity) GetBufferState() uint64 { return e.txQueue.BytesPending() }

// Reestablish implements common.Bearer. TM carries no sequence numbers
// or reassembly state to reset; only the Tx queue is cleared, matching
// the teacher's reestablish contract of discarding undelivered SDUs.
func (e *Entity) Reestablish() {
	e.txQueue.Reset()
	e.txEnabled = true
}

// Stop implements common.Bearer.
func (e *Entity) Stop() {
	e.txEnabled = false
	e.txQueue.Close()
}

// EmptyQueue implements common.Bearer.
func (e *Entity) EmptyQueue() { e.txQueue.Reset() }

// GetMode implements common.Bearer.
func (e *Entity) GetMode() common.Mode { return common.ModeTM }

// GetBearer implements common.Bearer.
func (e *Entity) GetBearer() string { return e.cfg.LCID }

var _ common.Bearer = (*Entity)(nil)
