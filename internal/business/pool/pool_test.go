package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avkuznetsov/callwatch/internal/core/monitoring"
)

func TestRentDisabledReturnsNullRecord(t *testing.T) {
	p := New()
	r := p.Rent(false, "T", "M", nil, nil, nil, false)
	require.True(t, r.IsNull)
	require.Zero(t, p.Live())
}

func TestRentAssignsIncreasingIDs(t *testing.T) {
	p := New()
	a := p.Rent(true, "T", "M", nil, nil, nil, false)
	b := p.Rent(true, "T", "M", nil, nil, nil, false)
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, "a", a.ID)
	require.Equal(t, "b", b.ID)
}

func TestReturnReclaimsAndResets(t *testing.T) {
	p := New()
	r := p.Rent(true, "T", "M", []string{"G"}, []string{"P"}, nil, false)
	r.Parameters.Set("k", "v")
	require.EqualValues(t, 1, p.Live())

	p.Return(r)
	require.EqualValues(t, 0, p.Live())

	// Renting again should reuse the freed record (reset) rather than grow.
	r2 := p.Rent(true, "T2", "M2", nil, nil, nil, false)
	_, present := r2.Parameters.Get("k")
	require.False(t, present, "reused record must have cleared parameters")
}

func TestUseExtendsLifetimeBeyondReturn(t *testing.T) {
	p := New()
	r := p.Rent(true, "T", "M", nil, nil, nil, false)
	release := r.Use()

	p.Return(r)
	// Still live: Use() holds an extra reference.
	require.EqualValues(t, 1, p.Live())

	release()
	require.EqualValues(t, 0, p.Live())
}

func TestHighWaterMarkTracksPeakLiveCount(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	rented := make(chan *monitoring.MethodCallInfo, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rented <- p.Rent(true, "T", "M", nil, nil, nil, false)
		}()
	}
	wg.Wait()
	close(rented)
	require.EqualValues(t, 50, p.HighWaterMark())

	for r := range rented {
		p.Return(r)
	}
	require.Zero(t, p.Live())
	require.EqualValues(t, 50, p.HighWaterMark())
}
