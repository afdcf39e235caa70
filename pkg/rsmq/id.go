package rsmq

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ID layout, all lowercase base-36 and zero padded so that string order
// matches numeric order within each part:
//
//	[9 chars ms timestamp][4 chars sequence][8 chars random]
const (
	idTimeWidth = 9
	idSeqWidth  = 4
	idRandWidth = 8
	idLength    = idTimeWidth + idSeqWidth + idRandWidth

	maxIDSequence = 36*36*36*36 - 1
	idRandSpace   = uint64(36 * 36 * 36 * 36 * 36 * 36 * 36 * 36)
)

// IDGenerator produces message ids that are strictly increasing within one
// process. IDs from different processes only sort by their millisecond
// prefix; nothing in the queue relies on cross-process order.
type IDGenerator struct {
	mu     sync.Mutex
	lastMs int64
	seq    int64

	nowMs func() int64
}

// NewIDGenerator creates a generator reading the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{nowMs: func() int64 { return time.Now().UnixMilli() }}
}

// Next returns a new id. If the clock goes backwards it stays on the last
// seen millisecond and keeps counting. If the sequence is exhausted within a
// millisecond it waits for the next one.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.nowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.seq >= maxIDSequence {
			for ms <= g.lastMs {
				time.Sleep(time.Millisecond / 8)
				ms = g.nowMs()
			}
			g.seq = 0
		} else {
			g.seq++
		}
	} else {
		g.seq = 0
	}

	g.lastMs = ms
	return formatID(ms, g.seq, rand.Uint64N(idRandSpace))
}

func formatID(ms, seq int64, suffix uint64) string {
	var b strings.Builder
	b.Grow(idLength)
	writePadded(&b, strconv.FormatInt(ms, 36), idTimeWidth)
	writePadded(&b, strconv.FormatInt(seq, 36), idSeqWidth)
	writePadded(&b, strconv.FormatUint(suffix, 36), idRandWidth)
	return b.String()
}

func writePadded(b *strings.Builder, s string, width int) {
	for i := len(s); i < width; i++ {
		b.WriteByte('0')
	}
	b.WriteString(s)
}

// validID reports whether id can name a message field. Ids are opaque to
// the store, but they must not contain the ':' used for per-message fields
// or equal a queue attribute name.
func validID(id string) bool {
	if id == "" || len(id) > 64 || queueFields[id] {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
