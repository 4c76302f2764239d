// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/driver"
)

// op is a unit of queue work.
type op struct {
	lists [][]cmd
	owner []*CmdList
	fence *Fence
	value uint64
	done  chan struct{}
}

// queue implements driver.Queue.
// Work executes in submission order on its own goroutine.
type queue struct {
	gpu  *GPU
	ops  chan op
	exit chan struct{}
}

func newQueue(g *GPU) *queue {
	q := &queue{
		gpu:  g,
		ops:  make(chan op, 64),
		exit: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.exit)
	g := q.gpu
	for o := range q.ops {
		g.mu.Lock()
		for i, cmds := range o.lists {
			if g.lost == nil {
				x := execCtx{g: g, roots: make(map[int]*Resource)}
				for _, c := range cmds {
					if err := c(&x); err != nil {
						g.setLost(err)
						break
					}
				}
				g.stats.Lists++
			}
			l := o.owner[i]
			l.pending--
			l.ca.pending--
		}
		// Fences stop advancing once the device is lost.
		if o.fence != nil && g.lost == nil {
			o.fence.value = o.value
			g.cond.Broadcast()
		}
		g.mu.Unlock()
		if o.done != nil {
			close(o.done)
		}
	}
}

// stop drains and terminates the queue.
func (q *queue) stop() {
	close(q.ops)
	<-q.exit
}

// idle blocks until all submitted work executes.
func (q *queue) idle() {
	done := make(chan struct{})
	q.ops <- op{done: done}
	<-done
}

// Execute submits closed command lists for execution.
func (q *queue) Execute(cl []driver.CmdList) error {
	g := q.gpu
	o := op{
		lists: make([][]cmd, 0, len(cl)),
		owner: make([]*CmdList, 0, len(cl)),
	}
	g.mu.Lock()
	if g.lost != nil {
		g.mu.Unlock()
		return g.lost
	}
	for _, x := range cl {
		l, ok := x.(*CmdList)
		switch {
		case !ok || l.gpu != g:
			g.mu.Unlock()
			return errors.New("soft: Execute: foreign command list")
		case l.recording:
			g.mu.Unlock()
			return errors.Wrap(driver.ErrRecording, "soft: Execute: list is not closed")
		case l.err != nil:
			g.mu.Unlock()
			return errors.Wrap(l.err, "soft: Execute: list closed with error")
		}
		o.lists = append(o.lists, l.cmds)
		o.owner = append(o.owner, l)
	}
	for _, l := range o.owner {
		l.pending++
		l.ca.pending++
	}
	g.mu.Unlock()
	q.ops <- o
	return nil
}

// Signal sets f to v once previously submitted work
// completes.
func (q *queue) Signal(f driver.Fence, v uint64) error {
	x, ok := f.(*Fence)
	if !ok || x.gpu != q.gpu {
		return errors.New("soft: Signal: foreign fence")
	}
	if err := q.gpu.Lost(); err != nil {
		return err
	}
	q.ops <- op{fence: x, value: v}
	return nil
}

// Fence implements driver.Fence.
type Fence struct {
	gpu  *GPU
	node *node
	// Guarded by gpu.mu.
	value uint64
	waits int
}

// NewFence creates a new fence.
func (g *GPU) NewFence(initial uint64) (driver.Fence, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &Fence{gpu: g, node: g.track.add("Fence"), value: initial}, nil
}

// Completed returns the fence's current value.
func (f *Fence) Completed() uint64 {
	f.gpu.mu.Lock()
	defer f.gpu.mu.Unlock()
	return f.value
}

// Signal sets the fence's value from the CPU.
func (f *Fence) Signal(v uint64) error {
	g := f.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lost != nil {
		return g.lost
	}
	f.value = v
	g.cond.Broadcast()
	return nil
}

// Wait blocks until the fence reaches v or the device is
// lost.
func (f *Fence) Wait(v uint64) error {
	g := f.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	f.waits++
	for f.value < v && g.lost == nil {
		g.cond.Wait()
	}
	if f.value < v {
		return g.lost
	}
	return nil
}

// Waits returns how many times Wait was called.
func (f *Fence) Waits() int {
	f.gpu.mu.Lock()
	defer f.gpu.mu.Unlock()
	return f.waits
}

// Destroy destroys the fence.
func (f *Fence) Destroy() {
	if f == nil || f.gpu == nil {
		return
	}
	g := f.gpu
	g.mu.Lock()
	defer g.mu.Unlock()
	g.track.remove(f.node)
}
