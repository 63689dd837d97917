package selector

import (
	"github.com/gammazero/deque"
	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/util/fifoqueue"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

type (
	// path is a persistent list of included candidates, last included first
	path struct {
		prev *path
		v    *ledger.Validated
	}

	// node of the search tree: candidates before depth are decided
	node struct {
		depth int
		pool  *ledger.Pool
		fee   ledger.Amount
		path  *path
	}

	best struct {
		found bool
		fee   ledger.Amount
		pool  *ledger.Pool
		path  *path
	}

	search struct {
		cands    []*candidate
		suffix   []ledger.Amount
		verifier ledger.Verifier
		maxNodes int64

		nodes     atomic.Int64
		pruned    atomic.Int64
		leaves    atomic.Int64
		stop      atomic.Bool
		truncated atomic.Bool
		// best fee found by any worker, -1 if none yet
		sharedBest atomic.Int64
	}
)

func newSearch(cands []*candidate, suffix []ledger.Amount, verifier ledger.Verifier, maxNodes int64) *search {
	ret := &search{
		cands:    cands,
		suffix:   suffix,
		verifier: verifier,
		maxNodes: maxNodes,
	}
	ret.sharedBest.Store(-1)
	return ret
}

func (p *path) transactions() []*ledger.Transaction {
	n := 0
	for l := p; l != nil; l = l.prev {
		n++
	}
	ret := make([]*ledger.Transaction, n)
	for l := p; l != nil; l = l.prev {
		n--
		ret[n] = l.v.Tx
	}
	return ret
}

func (s *search) exhausted() bool {
	if s.stop.Load() {
		return true
	}
	return s.maxNodes > 0 && s.nodes.Load() >= s.maxNodes
}

// expand validates the next candidate against the node and returns children in the order
// of exploration: include first (only if the candidate is valid), then exclude
func (s *search) expand(nd node) []node {
	s.nodes.Inc()
	c := s.cands[nd.depth]
	exclude := node{depth: nd.depth + 1, pool: nd.pool, fee: nd.fee, path: nd.path}
	v, err := ledger.Validate(c.tx, nd.pool, s.verifier)
	if err != nil {
		return []node{exclude}
	}
	include := node{
		depth: nd.depth + 1,
		pool:  v.Pool,
		fee:   nd.fee + v.Fee,
		path:  &path{prev: nd.path, v: v},
	}
	return []node{include, exclude}
}

func (s *search) mustPrune(nd node, local *best) bool {
	optimistic := satAdd(nd.fee, s.suffix[nd.depth])
	if local.found && optimistic <= local.fee {
		return true
	}
	// ties with the selection of another worker are resolved when results are combined
	return int64(optimistic) < s.sharedBest.Load()
}

func (s *search) publish(fee ledger.Amount) {
	for {
		cur := s.sharedBest.Load()
		if int64(fee) <= cur || s.sharedBest.CompareAndSwap(cur, int64(fee)) {
			return
		}
	}
}

// explore is depth-first branch and bound over the subtree. Of leaves with equal fee the
// first one reached wins. The first dive to a leaf is never interrupted by the budget
func (s *search) explore(root node) best {
	var ret best
	stack := new(deque.Deque[node])
	stack.PushBack(root)
	for stack.Len() > 0 {
		nd := stack.PopBack()
		if s.mustPrune(nd, &ret) {
			s.pruned.Inc()
			continue
		}
		if nd.depth == len(s.cands) {
			s.leaves.Inc()
			if !ret.found || nd.fee > ret.fee {
				ret = best{found: true, fee: nd.fee, pool: nd.pool, path: nd.path}
				s.publish(nd.fee)
			}
			continue
		}
		if ret.found && s.exhausted() {
			s.truncated.Store(true)
			break
		}
		children := s.expand(nd)
		for i := len(children) - 1; i >= 0; i-- {
			stack.PushBack(children[i])
		}
	}
	return ret
}

// frontier expands the tree breadth-first until there are at least minNodes subtrees.
// The returned nodes are in the depth-first order of the tree
func (s *search) frontier(root node, minNodes int) []node {
	ret := []node{root}
	for len(ret) < minNodes {
		next := make([]node, 0, 2*len(ret))
		expanded := false
		for _, nd := range ret {
			if nd.depth == len(s.cands) {
				next = append(next, nd)
				continue
			}
			next = append(next, s.expand(nd)...)
			expanded = true
		}
		ret = next
		if !expanded {
			break
		}
	}
	return ret
}

// exploreParallel explores subtrees of the frontier by workers. Results are combined in the
// order of the frontier, which gives the same selection as the sequential search
func (s *search) exploreParallel(root node, workers int) best {
	subtrees := s.frontier(root, 4*workers)
	results := make([]best, len(subtrees))

	queue := fifoqueue.New[int]()
	for i := range subtrees {
		queue.Write(i)
	}
	queue.Close()

	var started atomic.Int32
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			queue.Consume(func(i int) {
				// each worker completes at least one subtree, so the result is never empty
				if started.Inc() > int32(workers) && s.exhausted() {
					s.truncated.Store(true)
					return
				}
				results[i] = s.explore(subtrees[i])
			})
			return nil
		})
	}
	_ = g.Wait()

	var ret best
	for _, r := range results {
		if r.found && (!ret.found || r.fee > ret.fee) {
			ret = r
		}
	}
	return ret
}
