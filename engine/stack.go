// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"github.com/pkg/errors"

	"github.com/gviegas/meshdraw/internal/logger"
)

// ErrOrder means that a Stack entry was released while
// entries acquired after it were still alive.
var ErrOrder = errors.New("engine: out-of-order release")

// Stack releases acquired objects in reverse order of
// acquisition.
// The zero value is an empty stack.
type Stack struct {
	ents []stackEnt
	seq  int
}

type stackEnt struct {
	name    string
	id      int
	release func()
}

// Handle identifies an entry of a Stack.
type Handle struct {
	id int
}

// Push pushes an entry whose release function will be
// called when it is popped.
func (s *Stack) Push(name string, release func()) Handle {
	s.seq++
	s.ents = append(s.ents, stackEnt{name, s.seq, release})
	return Handle{s.seq}
}

// Len returns the number of live entries.
func (s *Stack) Len() int { return len(s.ents) }

// Release releases the entry identified by h.
// It must be the most recent live entry.
func (s *Stack) Release(h Handle) error {
	n := len(s.ents)
	if n == 0 {
		return errors.Wrap(ErrOrder, "empty stack")
	}
	if top := s.ents[n-1]; top.id != h.id {
		for _, e := range s.ents[:n-1] {
			if e.id == h.id {
				return errors.Wrapf(ErrOrder, "%s released before %s", e.name, top.name)
			}
		}
		return errors.Wrap(ErrOrder, "entry not in stack")
	}
	s.pop()
	return nil
}

func (s *Stack) pop() {
	n := len(s.ents) - 1
	e := s.ents[n]
	s.ents = s.ents[:n]
	logger.Logger().Debug("released", "object", e.name)
	if e.release != nil {
		e.release()
	}
}

// Unwind releases every entry, last acquired first.
func (s *Stack) Unwind() {
	for len(s.ents) > 0 {
		s.pop()
	}
}
