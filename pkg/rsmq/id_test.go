package rsmq

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms ...int64) func() int64 {
	var (
		mu sync.Mutex
		i  int
	)
	return func() int64 {
		mu.Lock()
		defer mu.Unlock()
		v := ms[i]
		if i < len(ms)-1 {
			i++
		}
		return v
	}
}

func TestUnitID_LengthAndCharset(t *testing.T) {
	g := NewIDGenerator()

	for i := 0; i < 50; i++ {
		id := g.Next()
		require.Len(t, id, idLength)
		assert.True(t, validID(id), "generated id %q must be valid", id)
		assert.Equal(t, strings.ToLower(id), id)
	}
}

func TestUnitID_StrictlyIncreasingWithinMillisecond(t *testing.T) {
	g := &IDGenerator{nowMs: fixedClock(1_700_000_000_000)}

	prev := g.Next()
	for i := 0; i < 1000; i++ {
		id := g.Next()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestUnitID_StrictlyIncreasingAcrossMilliseconds(t *testing.T) {
	g := &IDGenerator{nowMs: fixedClock(1000, 1000, 1001, 1005)}

	a, b, c, d := g.Next(), g.Next(), g.Next(), g.Next()
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Less(t, c, d)
	assert.Equal(t, int64(0), g.seq, "sequence resets on a new millisecond")
}

func TestUnitID_ClockRegressionKeepsOrder(t *testing.T) {
	g := &IDGenerator{nowMs: fixedClock(5000, 4000, 3000)}

	first := g.Next()
	second := g.Next()
	third := g.Next()

	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.Equal(t, int64(5000), g.lastMs)
	assert.Equal(t, int64(2), g.seq)
}

func TestUnitID_SequenceOverflowWaitsForNextMillisecond(t *testing.T) {
	g := &IDGenerator{
		nowMs:  fixedClock(2000, 2000, 2001),
		lastMs: 2000,
		seq:    maxIDSequence,
	}

	id := g.Next()
	assert.Equal(t, int64(2001), g.lastMs)
	assert.Equal(t, int64(0), g.seq)
	assert.Equal(t, formatID(2001, 0, 0)[:idTimeWidth+idSeqWidth], id[:idTimeWidth+idSeqWidth])
}

func TestUnitID_ConcurrentNextIsUnique(t *testing.T) {
	g := NewIDGenerator()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{})
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				id := g.Next()
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 8*500)
}

func TestUnitID_FormatPadsEachPart(t *testing.T) {
	assert.Equal(t, "000000001"+"0001"+"0000000z", formatID(1, 1, 35))
}

func TestUnitID_Validation(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc123", true},
		{"ABCxyz09", true},
		{strings.Repeat("a", 64), true},
		{"", false},
		{strings.Repeat("a", 65), false},
		{"has:colon", false},
		{"has space", false},
		{"dash-ed", false},
		{"vt", false},
		{"delay", false},
		{"maxsize", false},
		{"created", false},
		{"modified", false},
		{"totalrecv", false},
		{"totalsent", false},
		{"VT", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, validID(tt.id), "validID(%q)", tt.id)
	}
}
