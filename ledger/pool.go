package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lunfardo314/easyfl"
	"go.uber.org/atomic"
)

// Pool is a mapping UTXO -> Output with copy-on-write snapshots.
// Derive creates a child layer over the pool and seals the parent: a sealed pool is
// immutable and can be read concurrently, while the child records only the difference.
// Speculative branches of the search derive from the same sealed base without copying it
type Pool struct {
	parent *Pool
	added  map[UTXO]*Output
	// spent contains keys present in ancestors but removed in this layer
	spent  map[UTXO]struct{}
	size   int
	depth  int
	sealed atomic.Bool
}

func NewPool() *Pool {
	return &Pool{
		added: make(map[UTXO]*Output),
		spent: make(map[UTXO]struct{}),
	}
}

// Derive returns mutable child of the pool. The pool itself becomes immutable
func (p *Pool) Derive() *Pool {
	p.sealed.Store(true)
	return &Pool{
		parent: p,
		added:  make(map[UTXO]*Output),
		spent:  make(map[UTXO]struct{}),
		size:   p.size,
		depth:  p.depth + 1,
	}
}

// Frozen returns the pool itself if it is sealed, otherwise a sealed flat copy of it.
// It never seals p
func Frozen(p *Pool) *Pool {
	if p.IsSealed() {
		return p
	}
	return p.Flatten().Seal()
}

// Seal makes the pool immutable
func (p *Pool) Seal() *Pool {
	p.sealed.Store(true)
	return p
}

func (p *Pool) IsSealed() bool {
	return p.sealed.Load()
}

func (p *Pool) Len() int {
	return p.size
}

// Depth is the number of layers below this one
func (p *Pool) Depth() int {
	return p.depth
}

// Get returns a copy of the output
func (p *Pool) Get(u UTXO) (*Output, bool) {
	o, ok := p.get(u)
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// get returns the shared output, it must not be modified
func (p *Pool) get(u UTXO) (*Output, bool) {
	for l := p; l != nil; l = l.parent {
		if o, ok := l.added[u]; ok {
			return o, true
		}
		if _, ok := l.spent[u]; ok {
			return nil, false
		}
	}
	return nil, false
}

func (p *Pool) Contains(u UTXO) bool {
	_, ok := p.get(u)
	return ok
}

// Add adds a new UTXO. Keys are unique: adding an existing key is an invariant violation
func (p *Pool) Add(u UTXO, o *Output) {
	easyfl.Assert(!p.sealed.Load(), "Pool.Add: pool is sealed")
	easyfl.Assert(!p.Contains(u), "Pool.Add: repeating UTXO")
	delete(p.spent, u)
	p.added[u] = o.Clone()
	p.size++
}

// Remove removes the UTXO and returns false if it does not exist
func (p *Pool) Remove(u UTXO) bool {
	easyfl.Assert(!p.sealed.Load(), "Pool.Remove: pool is sealed")
	if _, ok := p.added[u]; ok {
		delete(p.added, u)
		if p.parent != nil && p.parent.Contains(u) {
			p.spent[u] = struct{}{}
		}
		p.size--
		return true
	}
	if p.parent == nil || !p.parent.Contains(u) {
		return false
	}
	if _, already := p.spent[u]; already {
		return false
	}
	p.spent[u] = struct{}{}
	p.size--
	return true
}

// forEachUnordered iterates visible entries, top layer first
func (p *Pool) forEachUnordered(fun func(u UTXO, o *Output)) {
	seen := make(map[UTXO]struct{})
	for l := p; l != nil; l = l.parent {
		for u, o := range l.added {
			if _, already := seen[u]; already {
				continue
			}
			seen[u] = struct{}{}
			fun(u, o)
		}
		for u := range l.spent {
			seen[u] = struct{}{}
		}
	}
}

// UTXOs returns all keys in ascending order
func (p *Pool) UTXOs() []UTXO {
	ret := make([]UTXO, 0, p.size)
	p.forEachUnordered(func(u UTXO, _ *Output) {
		ret = append(ret, u)
	})
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Compare(ret[j]) < 0
	})
	return ret
}

// ForEach iterates copies of outputs in ascending order of UTXO
func (p *Pool) ForEach(fun func(u UTXO, o *Output) bool) {
	for _, u := range p.UTXOs() {
		o, _ := p.get(u)
		if !fun(u, o.Clone()) {
			return
		}
	}
}

// Flatten returns single layer mutable pool with the same content. Outputs are shared
func (p *Pool) Flatten() *Pool {
	ret := NewPool()
	p.forEachUnordered(func(u UTXO, o *Output) {
		ret.added[u] = o
	})
	ret.size = len(ret.added)
	return ret
}

// Clone returns single layer mutable deep copy of the pool
func (p *Pool) Clone() *Pool {
	ret := NewPool()
	p.forEachUnordered(func(u UTXO, o *Output) {
		ret.added[u] = o.Clone()
	})
	ret.size = len(ret.added)
	return ret
}

func (p *Pool) Equal(other *Pool) bool {
	if p.Len() != other.Len() {
		return false
	}
	equal := true
	p.forEachUnordered(func(u UTXO, o *Output) {
		if !equal {
			return
		}
		o1, ok := other.get(u)
		equal = ok && o.Equal(o1)
	})
	return equal
}

// Sum returns total value of all outputs in the pool
func (p *Pool) Sum() Amount {
	var ret Amount
	p.forEachUnordered(func(_ UTXO, o *Output) {
		ret += o.Amount
	})
	return ret
}

func (p *Pool) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "pool: %d UTXOs, depth %d\n", p.Len(), p.depth)
	p.ForEach(func(u UTXO, o *Output) bool {
		fmt.Fprintf(&buf, "    %s: %s\n", u.String(), o.String())
		return true
	})
	return buf.String()
}
