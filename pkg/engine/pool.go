package engine

import (
	"bytes"
	"sync"
	"sync/atomic"
)

const defaultBufferCap = 16 * 1024

// maxPooledBufferCap keeps one huge critical-points payload from pinning memory.
const maxPooledBufferCap = 4 * 1024 * 1024

// bufferPool manages reusable payload backing buffers.
// Only return buffers once no payload references them.
var bufferPool = sync.Pool{
	New: func() any {
		bufferPoolNews.Add(1)
		return bytes.NewBuffer(make([]byte, 0, defaultBufferCap))
	},
}

var bufferPoolGets atomic.Uint64
var bufferPoolNews atomic.Uint64
var bufferDoubleReleases atomic.Uint64

// Buffer is a pooled Payload implementation for engines that encode their
// results in-process.
type Buffer struct {
	buf      *bytes.Buffer
	released atomic.Bool
}

// NewBuffer takes a reset buffer from the pool.
func NewBuffer() *Buffer {
	bufferPoolGets.Add(1)
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return &Buffer{buf: buf}
}

// Write appends to the payload. Writing after Release is a no-op.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.released.Load() {
		return 0, nil
	}
	return b.buf.Write(p)
}

// Bytes returns the payload contents, or nil after Release.
func (b *Buffer) Bytes() []byte {
	if b.released.Load() {
		return nil
	}
	return b.buf.Bytes()
}

// Release returns the backing buffer to the pool. After this call, the payload
// must not be used. A second Release is counted and otherwise ignored.
func (b *Buffer) Release() {
	if !b.released.CompareAndSwap(false, true) {
		bufferDoubleReleases.Add(1)
		return
	}
	buf := b.buf
	b.buf = nil
	if buf.Cap() > maxPooledBufferCap {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.released.Load()
}

// BufferPoolStats returns pool hits, misses and double releases since process start.
func BufferPoolStats() (hits, misses, doubleReleases uint64) {
	gets := bufferPoolGets.Load()
	news := bufferPoolNews.Load()
	doubles := bufferDoubleReleases.Load()
	if gets >= news {
		return gets - news, news, doubles
	}
	return 0, news, doubles
}
