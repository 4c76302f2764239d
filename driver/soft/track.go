// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package soft

import (
	"fmt"
	"sort"

	"github.com/gviegas/meshdraw/internal/logger"
)

// node is a tracked object.
type node struct {
	id      int
	name    string
	parents []*node
	refs    int
	dead    bool
}

// tracker records creation order and dependencies of
// GPU objects.
type tracker struct {
	gpu        *GPU
	seq        int
	live       map[int]*node
	violations []string
}

func (t *tracker) init(g *GPU) {
	t.gpu = g
	t.live = make(map[int]*node)
}

// add tracks a new object that depends on parents.
func (t *tracker) add(name string, parents ...*node) *node {
	t.seq++
	n := &node{id: t.seq, name: name}
	for _, p := range parents {
		if p == nil {
			continue
		}
		if p.dead {
			t.flag("%s created from destroyed %s", n, p)
		}
		p.refs++
		n.parents = append(n.parents, p)
	}
	t.live[n.id] = n
	return n
}

// remove untracks n.
// Destroying an object that other live objects depend
// on, or destroying it twice, is a violation.
func (t *tracker) remove(n *node) {
	if n.dead {
		t.flag("%s destroyed twice", n)
		return
	}
	if n.refs > 0 {
		t.flag("%s destroyed with %d live dependents", n, n.refs)
	}
	n.dead = true
	for _, p := range n.parents {
		p.refs--
	}
	delete(t.live, n.id)
}

// leaks flags every live object.
func (t *tracker) leaks() {
	ids := make([]int, 0, len(t.live))
	for id := range t.live {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		t.flag("%s not destroyed before Close", t.live[id])
	}
}

func (t *tracker) flag(format string, args ...any) {
	s := fmt.Sprintf(format, args...)
	t.violations = append(t.violations, s)
	if t.gpu != nil && t.gpu.debug {
		logger.Logger().Warn("soft: "+s, "driver", driverName)
	}
}

func (n *node) String() string { return fmt.Sprintf("%s#%d", n.name, n.id) }
