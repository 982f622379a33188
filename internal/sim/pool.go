package sim

import "sync"

// FramePool recycles frame buffers for callers that do not retain frames.
type FramePool struct {
	pool sync.Pool
}

func NewFramePool() *FramePool {
	return &FramePool{
		pool: sync.Pool{
			New: func() any {
				f := make(Frame, 0, 16)
				return &f
			},
		},
	}
}

func (p *FramePool) Get() Frame {
	return (*p.pool.Get().(*Frame))[:0]
}

func (p *FramePool) Put(f Frame) {
	clear(f)
	f = f[:0]
	p.pool.Put(&f)
}
