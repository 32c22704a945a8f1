package proc

import "sync"

// descriptorPool hands out blank Proc shells. The interface exists so tests
// can make allocation fail and watch creation roll back.
type descriptorPool interface {
	get() (*Proc, error)
	put(*Proc)
}

// slabPool recycles descriptors through a sync.Pool. Reaped descriptors come
// back through put; reset gives them their next identity.
type slabPool struct {
	pool sync.Pool
}

func newSlabPool() *slabPool {
	sp := &slabPool{}
	sp.pool.New = func() any { return new(Proc) }
	return sp
}

func (sp *slabPool) get() (*Proc, error) {
	return sp.pool.Get().(*Proc), nil
}

func (sp *slabPool) put(p *Proc) {
	sp.pool.Put(p)
}
