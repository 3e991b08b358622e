package volt

import "sync"

// ContextPool recycles Context objects across requests.
//
// Contexts are pooled per-process; a warmed pool eliminates cold-start
// allocations under burst traffic.
type ContextPool struct {
	pool sync.Pool
}

// NewContextPool creates an empty context pool.
func NewContextPool() *ContextPool {
	return &ContextPool{
		pool: sync.Pool{
			New: func() any {
				return &Context{}
			},
		},
	}
}

// Get returns a cleared Context.
func (p *ContextPool) Get() *Context {
	return p.pool.Get().(*Context)
}

// Put resets and recycles a Context. The caller must not touch the
// context afterwards.
func (p *ContextPool) Put(c *Context) {
	if c == nil {
		return
	}
	c.Reset()
	p.pool.Put(c)
}

// Warmup pre-allocates n contexts (~300 bytes each plus lazy state).
func (p *ContextPool) Warmup(n int) {
	contexts := make([]*Context, n)
	for i := 0; i < n; i++ {
		contexts[i] = p.Get()
	}
	for _, c := range contexts {
		p.Put(c)
	}
}

// defaultContextPool backs newContext; it is process-wide and never
// drained explicitly (App.Stop leaves it to the GC).
var defaultContextPool = NewContextPool()

func getContext() *Context {
	return defaultContextPool.Get()
}

func putContext(c *Context) {
	defaultContextPool.Put(c)
}
