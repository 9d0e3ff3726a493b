package tm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSDUReadPDURoundTrip(t *testing.T) {
	var delivered [][]byte
	tx, err := New(DefaultConfig("tx"), func([]byte) {})
	require.NoError(t, err)
	rx, err := New(DefaultConfig("rx"), func(sdu []byte) { delivered = append(delivered, sdu) })
	require.NoError(t, err)

	sdu := []byte("hello transparent mode")
	require.NoError(t, tx.WriteSDU(sdu, false))

	buf := make([]byte, 64)
	n, err := tx.ReadPDU(buf)
	require.NoError(t, err)
	require.Equal(t, len(sdu), n)

	require.NoError(t, rx.WritePDU(buf[:n]))
	require.Len(t, delivered, 1)
	require.Equal(t, sdu, delivered[0])
}

func TestReadPDUReturnsZeroWhenEmpty(t *testing.T) {
	e, err := New(DefaultConfig("tx"), func([]byte) {})
	require.NoError(t, err)

	n, err := e.ReadPDU(make([]byte, 64))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestReadPDULeavesOversizedSDUQueued(t *testing.T) {
	e, err := New(DefaultConfig("tx"), func([]byte) {})
	require.NoError(t, err)
	require.NoError(t, e.WriteSDU(make([]byte, 100), false))

	n, err := e.ReadPDU(make([]byte, 10))
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, uint64(100), e.GetBufferState())
}

func TestStopDisablesTx(t *testing.T) {
	e, err := New(DefaultConfig("tx"), func([]byte) {})
	require.NoError(t, err)
	require.NoError(t, e.WriteSDU([]byte("queued"), false))

	e.Stop()

	n, err := e.ReadPDU(make([]byte, 64))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
