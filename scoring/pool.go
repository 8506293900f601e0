package scoring

// defaultSlabSize is the number of objects allocated per slab.
const defaultSlabSize = 256

// Pool is a bump allocator for objects that live exactly as long as one
// translation task. Objects are carved out of fixed-size slabs, so returned
// pointers stay valid until Reset; nothing is freed individually.
type Pool[T any] struct {
	slabs    [][]T
	slabSize int
	slab     int // index of the slab being filled
	pos      int // next free position in that slab
	count    int
}

// NewPool creates a pool with slabSize objects per slab.
func NewPool[T any](slabSize int) *Pool[T] {
	if slabSize <= 0 {
		slabSize = defaultSlabSize
	}
	return &Pool[T]{slabSize: slabSize}
}

// Get returns a pointer to a zeroed object.
func (p *Pool[T]) Get() *T {
	if p.slab == len(p.slabs) {
		p.slabs = append(p.slabs, make([]T, p.slabSize))
	}
	obj := &p.slabs[p.slab][p.pos]
	p.pos++
	p.count++
	if p.pos == p.slabSize {
		p.slab++
		p.pos = 0
	}
	return obj
}

// Len returns the number of objects handed out since the last Reset.
func (p *Pool[T]) Len() int { return p.count }

// Reset releases every object at once. Pointers obtained before Reset must
// not be used afterwards. The first slab is kept for reuse.
func (p *Pool[T]) Reset() {
	if len(p.slabs) > 0 {
		clear(p.slabs[0])
		p.slabs = p.slabs[:1]
	}
	p.slab = 0
	p.pos = 0
	p.count = 0
}
