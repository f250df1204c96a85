// Package snowflake hands out locally unique ids for messages the client
// shows before the server has assigned one.
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits        = 10
	stepBits        = 12
	nodeMax         = -1 ^ (-1 << nodeBits)
	stepMask        = -1 ^ (-1 << stepBits)
	timeShift       = nodeBits + stepBits
	nodeShift       = stepBits
	epoch     int64 = 1704067200000 // 2024-01-01 00:00:00 UTC
)

var ErrNodeRange = errors.New("node number must be between 0 and 1023")

type Generator struct {
	mu   sync.Mutex
	now  func() int64
	last int64
	node int64
	step int64
}

func NewGenerator(node int64) (*Generator, error) {
	if node < 0 || node > nodeMax {
		return nil, ErrNodeRange
	}
	return &Generator{
		node: node,
		now:  func() int64 { return time.Now().UnixMilli() },
	}, nil
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.last {
		// clock moved backwards
		ms = g.last
	}

	if ms == g.last {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			for ms <= g.last {
				ms = g.now()
			}
		}
	} else {
		g.step = 0
	}
	g.last = ms

	return ((ms - epoch) << timeShift) | (g.node << nodeShift) | g.step
}

// NextString returns Next formatted in base 10, the shape message ids take
// on the wire.
func (g *Generator) NextString() string {
	return strconv.FormatInt(g.Next(), 10)
}

// Node extracts the node number from an id.
func Node(id int64) int64 {
	return (id >> nodeShift) & nodeMax
}
