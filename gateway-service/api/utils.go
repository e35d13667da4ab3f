package api

import (
	"sync/atomic"
	"time"
)

// timestamper hands out strictly increasing unix-nano event stamps.
type timestamper struct {
	last atomic.Int64
}

func (t *timestamper) next() int64 {
	for {
		now := time.Now().UnixNano()
		last := t.last.Load()
		if now <= last {
			now = last + 1
		}
		if t.last.CompareAndSwap(last, now) {
			return now
		}
	}
}
