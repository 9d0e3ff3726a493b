package am

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/rlcam/pkg/rlc/bufpool"
	"github.com/marmos91/rlcam/pkg/rlc/pdu"
)

func newTestEntity(t *testing.T, lcid string, deliver func([]byte)) *Entity {
	t.Helper()
	cfg := DefaultConfig(lcid)
	cfg.TPollRetransmitMs = 50
	cfg.TStatusProhibitMs = 5
	cfg.TReorderingMs = 20
	e, err := New(cfg, bufpool.New(nil), nil, nil, deliver)
	require.NoError(t, err)
	return e
}

// pump drains every pending PDU from src and feeds it into dst until src
// has nothing left to send for a full grant size.
func pump(t *testing.T, src, dst *Entity, grant int) int {
	t.Helper()
	buf := make([]byte, grant)
	sent := 0
	for {
		n, err := src.ReadPDU(buf)
		require.NoError(t, err)
		if n == 0 {
			return sent
		}
		require.NoError(t, dst.WritePDU(append([]byte(nil), buf[:n]...)))
		sent++
	}
}

func TestBasicTransmitReceiveInOrder(t *testing.T) {
	var delivered [][]byte
	tx := newTestEntity(t, "tx", func([]byte) {})
	rx := newTestEntity(t, "rx", func(sdu []byte) { delivered = append(delivered, sdu) })

	sdus := [][]byte{make([]byte, 100), make([]byte, 200), make([]byte, 300)}
	for i, s := range sdus {
		for j := range s {
			s[j] = byte(i)
		}
		require.NoError(t, tx.WriteSDU(s, false))
	}

	pump(t, tx, rx, 120)

	require.Len(t, delivered, 3)
	for i, s := range sdus {
		require.Equal(t, s, delivered[i])
	}
}

func TestInOrderAckEmptiesWindow(t *testing.T) {
	tx := newTestEntity(t, "tx", func([]byte) {})
	rx := newTestEntity(t, "rx", func([]byte) {})

	for _, n := range []int{100, 200, 300} {
		require.NoError(t, tx.WriteSDU(make([]byte, n), false))
	}
	pump(t, tx, rx, 120)

	// Force a poll so rx has reason to report status promptly, then pull
	// the STATUS PDU back to tx.
	rx.mu.Lock()
	rx.doStatus = true
	rx.mu.Unlock()

	pump(t, rx, tx, 64)

	tx.mu.Lock()
	defer tx.mu.Unlock()
	require.Equal(t, rx.vrMS, tx.vtA)
	require.Empty(t, tx.txWindow)
}

func TestSinglePDULossNackRecovery(t *testing.T) {
	tx := newTestEntity(t, "tx", func([]byte) {})
	rx := newTestEntity(t, "rx", func([]byte) {})

	for _, n := range []int{50, 50, 50} {
		require.NoError(t, tx.WriteSDU(make([]byte, n), false))
	}

	// A 54-byte grant carries exactly one 50-byte SDU plus its 2-byte
	// fixed header and the conservative LI margin, so each read_pdu call
	// produces one PDU with its own SN.
	buf := make([]byte, 54)
	var pdus [][]byte
	for i := 0; i < 3; i++ {
		n, err := tx.ReadPDU(buf)
		require.NoError(t, err)
		require.Greater(t, n, 0)
		pdus = append(pdus, append([]byte(nil), buf[:n]...))
	}

	// Drop the PDU carrying SN=1: deliver 0 and 2 only.
	require.NoError(t, rx.WritePDU(pdus[0]))
	require.NoError(t, rx.WritePDU(pdus[2]))

	// Simulate t-Reordering's expiry: VR(MS) catches up to VR(H) once
	// nothing past it has arrived either, which is what lets a STATUS
	// NACK a gap it hasn't given up waiting on forever.
	rx.mu.Lock()
	rx.vrMS = rx.vrH
	rx.doStatus = true
	rx.mu.Unlock()

	pump(t, rx, tx, 64)

	tx.mu.Lock()
	_, queued := tx.txWindow[1]
	retxLen := len(tx.retxQueue)
	tx.mu.Unlock()
	require.True(t, queued)
	require.Greater(t, retxLen, 0)

	// Tx retransmits SN=1.
	n, err := tx.ReadPDU(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.NoError(t, rx.WritePDU(append([]byte(nil), buf[:n]...)))
}

func TestResegmentationOnSmallGrant(t *testing.T) {
	tx := newTestEntity(t, "tx", func([]byte) {})

	payload := make([]byte, 400)
	tx.mu.Lock()
	tx.txWindow[7] = &TxPDUSlot{Payload: payload}
	tx.vtA, tx.vtS = 7, 8
	tx.retxQueue = []RetxDescriptor{{SN: 7}}
	tx.mu.Unlock()

	buf := make([]byte, 100)
	n, err := tx.ReadPDU(buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	h, rest, err := pdu.Decode(buf[:n], tx.cfg.Profile)
	require.NoError(t, err)
	require.True(t, h.Resegmented)
	require.EqualValues(t, 7, h.SN)
	require.EqualValues(t, 0, h.SegOffset)
	require.False(t, h.LastSegment)
	require.Len(t, rest, len(buf[:n])-headerSizeBytes(nil, tx.cfg.Profile, true))

	tx.mu.Lock()
	defer tx.mu.Unlock()
	require.Len(t, tx.retxQueue, 1)
	require.True(t, tx.retxQueue[0].IsSegment)
	require.EqualValues(t, len(rest), tx.retxQueue[0].SOStart)
	require.EqualValues(t, 400, tx.retxQueue[0].SOEnd)
}

func TestMaxRetxNotifiesRRCExactlyOnce(t *testing.T) {
	notifier := &countingRRC{}
	cfg := DefaultConfig("tx")
	cfg.MaxRetxThreshold = 3
	e, err := New(cfg, bufpool.New(nil), nil, notifier, func([]byte) {})
	require.NoError(t, err)

	e.mu.Lock()
	e.txWindow[0] = &TxPDUSlot{Payload: make([]byte, 10)}
	e.vtA, e.vtS = 0, 1
	e.mu.Unlock()

	buf := make([]byte, 64)
	for i := 0; i < 3; i++ {
		e.mu.Lock()
		e.retxQueue = []RetxDescriptor{{SN: 0}}
		e.mu.Unlock()
		n, err := e.ReadPDU(buf)
		require.NoError(t, err)
		require.Greater(t, n, 0)
	}
	require.Equal(t, 1, notifier.calls)
}

type countingRRC struct{ calls int }

func (c *countingRRC) MaxRetxAttempted(string) { c.calls++ }
func (c *countingRRC) GetRBName(string) string  { return "" }
