package mempool

import (
	"sync"
)

// A simple sized pool for the []int distance buffers on the matching hot
// path.

var intPools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to the next bucket to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

// GetInt retrieves a []int buffer of at least n elements from the pool.
// The returned slice has length n but may have larger capacity.
// The caller must return it via PutInt when done.
func GetInt(n int) []int {
	cls := sizeClass(n)
	pAny, _ := intPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]int, n)
	}
	buf, ok := p.Get().([]int)
	if !ok || cap(buf) < cls {
		buf = make([]int, cls)
	} else {
		buf = buf[:cap(buf)]
	}
	return buf[:n]
}

// PutInt returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt(buf []int) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := intPools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]int, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}
