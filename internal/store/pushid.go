package store

import (
	"math/rand/v2"
	"sync"
	"time"
)

const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// PushIDGenerator produces 20-character keys that sort by creation time.
// Keys generated within the same millisecond increment the random suffix so
// they stay ordered.
type PushIDGenerator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastTime int64
	lastRand [12]int
}

func NewPushIDGenerator(now func() time.Time) *PushIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &PushIDGenerator{now: now}
}

func (g *PushIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms == g.lastTime {
		for i := 11; i >= 0; i-- {
			if g.lastRand[i] != 63 {
				g.lastRand[i]++
				break
			}
			g.lastRand[i] = 0
		}
	} else {
		for i := range g.lastRand {
			g.lastRand[i] = rand.IntN(64)
		}
	}
	g.lastTime = ms

	var id [20]byte
	ts := ms
	for i := 7; i >= 0; i-- {
		id[i] = pushChars[ts%64]
		ts /= 64
	}
	for i, r := range g.lastRand {
		id[8+i] = pushChars[r]
	}
	return string(id[:])
}
