package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsRequestedSize(t *testing.T) {
	p := New(nil)
	buf, ok := p.Get(100)
	require.True(t, ok)
	assert.Len(t, buf, 100)
}

func TestOversizedBufferNotPooled(t *testing.T) {
	p := New(&Config{SmallSize: 8, MediumSize: 16, LargeSize: 32})
	buf, ok := p.Get(1024)
	require.True(t, ok)
	assert.Len(t, buf, 1024)
	p.Put(buf) // must not panic
}

func TestOutstandingTracksCheckedOutBytes(t *testing.T) {
	p := New(&Config{SmallSize: 8, MediumSize: 16, LargeSize: 32})
	buf, ok := p.Get(8)
	require.True(t, ok)
	assert.Equal(t, uint64(8), p.Outstanding())
	p.Put(buf)
	assert.Equal(t, uint64(0), p.Outstanding())
}

func TestBoundedPoolReportsExhaustion(t *testing.T) {
	p := New(&Config{SmallSize: 8, MediumSize: 16, LargeSize: 32, MaxOutstanding: 10})

	buf1, ok := p.Get(8)
	require.True(t, ok)

	_, ok = p.Get(8)
	assert.False(t, ok, "second reservation should exceed the 10-byte budget")

	p.Put(buf1)
	_, ok = p.Get(8)
	assert.True(t, ok, "budget should be reclaimed after Put")
}

func TestConcurrentGetPutNeverExceedsBudget(t *testing.T) {
	p := New(&Config{SmallSize: 64, MediumSize: 64, LargeSize: 64, MaxOutstanding: 64 * 8})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf, ok := p.Get(64)
				if ok {
					p.Put(buf)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(0), p.Outstanding())
}
