package session

import (
	"os"
	"sync/atomic"
	"time"
)

type IDMode string

const (
	IDModeProduction  IDMode = "production"
	IDModeDevelopment IDMode = "development"
)

// IDGenerator mints session ids without a store round trip.
//
// Production ids pack unix seconds (4 bytes), pid (2 bytes) and a process-local
// counter (2 bytes) big-endian. Development ids are the unix timestamp alone.
type IDGenerator struct {
	mode    IDMode
	pid     uint16
	counter atomic.Uint32
	now     func() time.Time
}

func NewIDGenerator(mode IDMode) *IDGenerator {
	if mode != IDModeDevelopment {
		mode = IDModeProduction
	}
	return &IDGenerator{
		mode: mode,
		pid:  uint16(os.Getpid()),
		now:  time.Now,
	}
}

func (g *IDGenerator) Mode() IDMode { return g.mode }

func (g *IDGenerator) Next() int64 {
	ts := uint32(g.now().Unix())
	if g.mode == IDModeDevelopment {
		return int64(ts)
	}
	seq := uint16(g.counter.Add(1))
	return int64(uint64(ts)<<32 | uint64(g.pid)<<16 | uint64(seq))
}

// SplitID reverses the production packing. Useful for diagnostics only.
func SplitID(id int64) (created time.Time, pid uint16, seq uint16) {
	u := uint64(id)
	return time.Unix(int64(u>>32), 0).UTC(), uint16(u >> 16), uint16(u)
}
