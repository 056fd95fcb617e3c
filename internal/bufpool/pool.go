// Package bufpool provides size-classed byte-slice pooling for the
// container writer and reader. CORE chunk payloads cluster around a
// handful of sizes (small control frames, typical video/audio blocks,
// oversized keyframes), so a small set of sync.Pool buckets absorbs most
// of the build/parse allocation churn without the bookkeeping a general
// arena would need.
package bufpool

import "sync"

// sizeClasses are the bucket capacities a Pool maintains. They were picked
// to bracket typical CORE block sizes after compression: short audio
// frames and control payloads fall in the first class, most video delta
// blocks in the second, and keyframes or multi-track batches in the
// third. Anything larger bypasses pooling entirely.
var sizeClasses = []int{128, 4096, 65536}

type bucket struct {
	capacity int
	pool     *sync.Pool
}

// Pool is a set of size-classed buffer buckets. The zero value is not
// usable; construct one with New.
type Pool struct {
	buckets []bucket
}

var defaultPool = New()

// Get acquires a buffer from the package-level default pool, sized for
// one CORE block payload or chunk-assembly scratch buffer.
func Get(size int) []byte {
	return defaultPool.Get(size)
}

// Put releases a buffer acquired from Get, or from Concat, back to the
// package-level default pool.
func Put(buf []byte) {
	defaultPool.Put(buf)
}

// Concat copies a and b into a single buffer drawn from the package-level
// default pool. container.Build uses it to assemble each encrypted CORE
// payload (header‖ciphertext) without a fresh allocation per block.
func Concat(a, b []byte) []byte {
	return defaultPool.Concat(a, b)
}

// New builds a Pool over the package's predefined size classes.
func New() *Pool {
	buckets := make([]bucket, len(sizeClasses))
	for i, capacity := range sizeClasses {
		c := capacity
		buckets[i] = bucket{
			capacity: c,
			pool: &sync.Pool{
				New: func() any {
					return make([]byte, c)
				},
			},
		}
	}
	return &Pool{buckets: buckets}
}

// Get returns a byte slice of exactly the requested length, backed by the
// smallest size class that can hold it. Requests larger than the largest
// size class fall back to a plain allocation; Put then discards them
// rather than pooling them.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}

	for i := range p.buckets {
		b := &p.buckets[i]
		if size <= b.capacity {
			buf := b.pool.Get().([]byte)
			return buf[:size]
		}
	}

	return make([]byte, size)
}

// Concat draws a buffer sized len(a)+len(b) from p and copies a then b
// into it. The caller owns the result and should Put it back once the
// bytes have been consumed (typically after they've been copied into a
// chunk's wire encoding).
func (p *Pool) Concat(a, b []byte) []byte {
	buf := p.Get(len(a) + len(b))
	n := copy(buf, a)
	copy(buf[n:], b)
	return buf
}

// Put returns buf to the bucket matching its capacity, zeroing it first
// so one caller's payload bytes never leak into the next. Buffers whose
// capacity doesn't match a size class (including plain allocations from
// an oversized Get) are dropped.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}

	capBuf := cap(buf)
	for i := range p.buckets {
		b := &p.buckets[i]
		if capBuf == b.capacity {
			full := buf[:b.capacity]
			clear(full)
			b.pool.Put(full)
			return
		}
	}
}
