package proxy

import (
	"net/http/httputil"
	"sync"
)

// bufferPool recycles relay buffers across forwarded exchanges so large
// response bodies stream through a fixed amount of memory.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) httputil.BufferPool {
	bp := &bufferPool{}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}

	return bp
}

func (p *bufferPool) Get() []byte {
	b := p.pool.Get().(*[]byte)
	return *b
}

func (p *bufferPool) Put(b []byte) {
	// The &b forces a small heap allocation; unavoidable when storing a
	// slice in an interface without a pointer.
	p.pool.Put(&b)
}
