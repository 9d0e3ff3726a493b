package um

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/rlcam/pkg/rlc/bufpool"
)

func newTestEntity(t *testing.T, lcid string, deliver func([]byte)) *Entity {
	t.Helper()
	cfg := DefaultConfig(lcid)
	cfg.TReorderingMs = 20
	e, err := New(cfg, bufpool.New(nil), deliver)
	require.NoError(t, err)
	return e
}

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

	sdus := [][]byte{make([]byte, 80), make([]byte, 150), make([]byte, 220)}
	for i, s := range sdus {
		for j := range s {
			s[j] = byte(i)
		}
		require.NoError(t, tx.WriteSDU(s, false))
	}

	pump(t, tx, rx, 100)

	require.Len(t, delivered, 3)
	for i, s := range sdus {
		require.Equal(t, s, delivered[i])
	}
}

func TestLostPDUGivenUpOnAfterReorderingExpiry(t *testing.T) {
	var delivered [][]byte
	tx := newTestEntity(t, "tx", func([]byte) {})
	rx := newTestEntity(t, "rx", func(sdu []byte) { delivered = append(delivered, sdu) })

	for _, n := range []int{40, 40, 40} {
		require.NoError(t, tx.WriteSDU(make([]byte, n), false))
	}

	buf := make([]byte, 44)
	var pdus [][]byte
	for i := 0; i < 3; i++ {
		n, err := tx.ReadPDU(buf)
		require.NoError(t, err)
		require.Greater(t, n, 0)
		pdus = append(pdus, append([]byte(nil), buf[:n]...))
	}

	require.NoError(t, rx.WritePDU(pdus[0]))
	require.NoError(t, rx.WritePDU(pdus[2])) // SN=1 dropped

	rx.mu.Lock()
	require.Len(t, delivered, 1) // only SN=0 delivered so far, SN=2 stuck behind the gap
	require.Equal(t, uint32(1), rx.vrUR)
	rx.mu.Unlock()

	// Drive t-Reordering to expiry.
	for i := 0; i < 25; i++ {
		rx.Tick()
	}

	rx.mu.Lock()
	defer rx.mu.Unlock()
	require.Equal(t, uint32(3), rx.vrUR) // gave up on SN=1, jumped past it
	require.Len(t, delivered, 2)         // SN=2's SDU now delivered too
}
