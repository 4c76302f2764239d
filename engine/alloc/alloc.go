// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package alloc implements a device memory allocator.
// Resources are placed in blocks of driver.Memory that are
// pooled per heap kind and sub-allocated in pages.
package alloc

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
	"github.com/gviegas/meshdraw/internal/bitvec"
	"github.com/gviegas/meshdraw/internal/logger"
)

// PageSize is the granularity of sub-allocations.
const PageSize = 65536

// DefaultBlockSize is the size of pooled blocks used when
// New is given a non-positive block size.
const DefaultBlockSize = 16 << 20

// ErrReleased means that an allocation was released more
// than once.
var ErrReleased = errors.New("alloc: allocation already released")

// ErrClosed means that the Allocator was used after Close.
var ErrClosed = errors.New("alloc: allocator closed")

// Allocator creates placed resources.
// It is safe for concurrent use.
type Allocator struct {
	gpu       driver.GPU
	blockSize int64
	pools     map[driver.HeapKind][]*block
	dedicated []*block
	nalloc    int
	closed    bool
	mu        sync.Mutex
}

// block is a driver.Memory and its page map.
type block struct {
	mem       driver.Memory
	pages     *bitvec.V[uint64]
	dedicated bool
	live      int
}

// Allocation identifies the memory range of a resource
// created by Allocate.
type Allocation struct {
	kind     driver.HeapKind
	blk      *block
	page     int
	npage    int
	released bool
}

// Kind returns the heap kind of the allocation.
func (a *Allocation) Kind() driver.HeapKind { return a.kind }

// Offset returns the byte offset of the allocation in its
// block.
func (a *Allocation) Offset() int64 { return int64(a.page) * PageSize }

// Size returns the number of bytes that the allocation
// spans. It is a multiple of PageSize.
func (a *Allocation) Size() int64 { return int64(a.npage) * PageSize }

// Dedicated returns whether the allocation owns its block.
func (a *Allocation) Dedicated() bool { return a.blk.dedicated }

// Stats describes the state of an Allocator.
type Stats struct {
	// Number of pooled blocks.
	Blocks int
	// Number of dedicated blocks.
	Dedicated int
	// Number of live allocations.
	Allocations int
	// Bytes of device memory held.
	Reserved int64
	// Bytes of device memory in use by live allocations.
	Used int64
}

// New creates a new Allocator.
// blockSize is rounded up to a multiple of PageSize.
func New(gpu driver.GPU, blockSize int64) *Allocator {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	blockSize = (blockSize + PageSize - 1) &^ (PageSize - 1)
	return &Allocator{
		gpu:       gpu,
		blockSize: blockSize,
		pools:     make(map[driver.HeapKind][]*block),
	}
}

// BlockSize returns the size of pooled blocks.
func (a *Allocator) BlockSize() int64 { return a.blockSize }

// Allocate creates a resource described by desc in memory
// of the given kind.
// Resources that need more than half of a block are given
// a dedicated block.
// The returned Allocation must be passed to Release along
// with the resource.
func (a *Allocator) Allocate(kind driver.HeapKind, desc *driver.ResourceDesc, state driver.State, clear *driver.ClearValue) (driver.Resource, *Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, nil, ErrClosed
	}
	size, align := a.gpu.ResourceSize(desc)
	if size <= 0 {
		return nil, nil, errors.Errorf("alloc: Allocate: invalid resource size %d", size)
	}
	if align > PageSize {
		return nil, nil, errors.Errorf("alloc: Allocate: alignment %d exceeds page size", align)
	}
	npage := int((size + PageSize - 1) / PageSize)
	var (
		al  *Allocation
		err error
	)
	if int64(npage)*PageSize > a.blockSize/2 {
		al, err = a.allocDedicated(kind, npage)
	} else {
		al, err = a.allocPooled(kind, npage)
	}
	if err != nil {
		return nil, nil, err
	}
	res, err := a.gpu.NewResource(al.blk.mem, al.Offset(), desc, state, clear)
	if err != nil {
		a.free(al)
		return nil, nil, errors.Wrap(err, "alloc: Allocate")
	}
	a.nalloc++
	return res, al, nil
}

func (a *Allocator) allocDedicated(kind driver.HeapKind, npage int) (*Allocation, error) {
	mem, err := a.gpu.NewMemory(kind, int64(npage)*PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "alloc: dedicated block")
	}
	b := &block{mem: mem, pages: bitvec.New[uint64](npage), dedicated: true}
	b.pages.SetRange(0, npage)
	b.live++
	a.dedicated = append(a.dedicated, b)
	logger.Logger().Debug("dedicated block created", "kind", kind.String(), "size", mem.Size())
	return &Allocation{kind: kind, blk: b, npage: npage}, nil
}

func (a *Allocator) allocPooled(kind driver.HeapKind, npage int) (*Allocation, error) {
	for _, b := range a.pools[kind] {
		if b.pages.Rem() < npage {
			continue
		}
		if i, ok := b.pages.SearchRange(npage); ok {
			b.pages.SetRange(i, npage)
			b.live++
			return &Allocation{kind: kind, blk: b, page: i, npage: npage}, nil
		}
	}
	mem, err := a.gpu.NewMemory(kind, a.blockSize)
	if err != nil {
		return nil, errors.Wrap(err, "alloc: pooled block")
	}
	b := &block{mem: mem, pages: bitvec.New[uint64](int(a.blockSize / PageSize))}
	b.pages.SetRange(0, npage)
	b.live++
	a.pools[kind] = append(a.pools[kind], b)
	logger.Logger().Debug("pooled block created", "kind", kind.String(), "size", a.blockSize)
	return &Allocation{kind: kind, blk: b, npage: npage}, nil
}

// free returns al's pages to its block.
// a.mu must be held.
func (a *Allocator) free(al *Allocation) {
	b := al.blk
	b.pages.UnsetRange(al.page, al.npage)
	b.live--
	if !b.dedicated || b.live > 0 {
		return
	}
	for i, x := range a.dedicated {
		if x == b {
			a.dedicated = append(a.dedicated[:i], a.dedicated[i+1:]...)
			break
		}
	}
	b.mem.Destroy()
}

// Release destroys res and then frees al.
// It must be called at most once per allocation, after
// the GPU is done with res.
func (a *Allocator) Release(res driver.Resource, al *Allocation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if al == nil {
		return errors.New("alloc: Release: nil allocation")
	}
	if al.released {
		return ErrReleased
	}
	al.released = true
	if res != nil {
		res.Destroy()
	}
	a.free(al)
	a.nalloc--
	return nil
}

// Stats returns a snapshot of a's state.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{Dedicated: len(a.dedicated), Allocations: a.nalloc}
	for _, p := range a.pools {
		for _, b := range p {
			s.Blocks++
			s.Reserved += b.mem.Size()
			s.Used += int64(b.pages.Count()) * PageSize
		}
	}
	for _, b := range a.dedicated {
		s.Reserved += b.mem.Size()
		s.Used += b.mem.Size()
	}
	return s
}

// Close destroys every block.
// Allocations must have been released already.
func (a *Allocator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if a.nalloc > 0 {
		logger.Logger().Warn("allocator closed with live allocations", "count", a.nalloc)
	}
	for k, p := range a.pools {
		for _, b := range p {
			b.mem.Destroy()
		}
		delete(a.pools, k)
	}
	for _, b := range a.dedicated {
		b.mem.Destroy()
	}
	a.dedicated = nil
	a.closed = true
}
