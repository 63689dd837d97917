package selector

import (
	"math"
	"sort"

	"github.com/lunfardo314/utxobatch/ledger"
)

type candidate struct {
	tx *ledger.Transaction
	id ledger.TransactionID
	// optimistic upper bound of the fee the candidate can contribute
	bound ledger.Amount
	// position in the search order
	pos int
}

// orderCandidates removes duplicates and returns candidates in the search order:
// ascending by id, except that a candidate spending an output of another candidate
// always comes after it. Among candidates ready to be placed the smallest id is taken first
func orderCandidates(txs []*ledger.Transaction) ([]*candidate, error) {
	byID := make(map[ledger.TransactionID]*candidate, len(txs))
	for _, tx := range txs {
		if err := tx.CheckFinalized(); err != nil {
			return nil, err
		}
		id := tx.ID()
		if _, already := byID[id]; already {
			continue
		}
		byID[id] = &candidate{tx: tx, id: id}
	}
	sorted := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		sorted = append(sorted, c)
	}
	sortByID(sorted)

	producers := make(map[ledger.TransactionID]map[ledger.TransactionID]struct{}, len(sorted))
	dependents := make(map[ledger.TransactionID][]*candidate, len(sorted))
	for _, c := range sorted {
		c := c
		c.tx.ForEachInput(func(_ int, in *ledger.Input) bool {
			pid := in.UTXO.TransactionID()
			if _, inBatch := byID[pid]; !inBatch || pid == c.id {
				return true
			}
			if producers[c.id] == nil {
				producers[c.id] = make(map[ledger.TransactionID]struct{})
			}
			if _, already := producers[c.id][pid]; !already {
				producers[c.id][pid] = struct{}{}
				dependents[pid] = append(dependents[pid], c)
			}
			return true
		})
	}

	ready := make([]*candidate, 0)
	for _, c := range sorted {
		if len(producers[c.id]) == 0 {
			ready = append(ready, c)
		}
	}
	ret := make([]*candidate, 0, len(sorted))
	placed := make(map[ledger.TransactionID]struct{}, len(sorted))
	for len(ready) > 0 {
		c := ready[0]
		ready = ready[1:]
		c.pos = len(ret)
		ret = append(ret, c)
		placed[c.id] = struct{}{}
		for _, dep := range dependents[c.id] {
			delete(producers[dep.id], c.id)
			if len(producers[dep.id]) == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}
	// dependency cycles can't be produced with real hashes. Leftovers go to the end, they will never validate
	for _, c := range sorted {
		if _, ok := placed[c.id]; !ok {
			c.pos = len(ret)
			ret = append(ret, c)
		}
	}
	return ret, nil
}

func sortByID(cands []*candidate) {
	sort.Slice(cands, func(i, j int) bool {
		return cands[i].id.Compare(cands[j].id) < 0
	})
}

func insertSorted(cands []*candidate, c *candidate) []*candidate {
	i := sort.Search(len(cands), func(i int) bool {
		return cands[i].id.Compare(c.id) > 0
	})
	cands = append(cands, nil)
	copy(cands[i+1:], cands[i:])
	cands[i] = c
	return cands
}

// computeBounds sets optimistic fee of each candidate: values of inputs found in the base pool or
// among outputs of candidates, minus non-negative outputs, ignoring conflicts.
// Returns suffix sums: ret[i] is the bound for candidates i..n-1
func computeBounds(cands []*candidate, base *ledger.Pool) []ledger.Amount {
	produced := make(map[ledger.UTXO]ledger.Amount)
	for _, c := range cands {
		c := c
		c.tx.ForEachOutput(func(idx int, o *ledger.Output) bool {
			produced[ledger.NewUTXO(c.id, uint16(idx))] = o.Amount
			return true
		})
	}
	for _, c := range cands {
		var in, out ledger.Amount
		resolved := true
		c.tx.ForEachInput(func(_ int, inp *ledger.Input) bool {
			if o, found := base.Get(inp.UTXO); found {
				in = satAdd(in, o.Amount)
				return true
			}
			if v, found := produced[inp.UTXO]; found && v > 0 {
				in = satAdd(in, v)
				return true
			}
			if _, found := produced[inp.UTXO]; found {
				return true
			}
			resolved = false
			return false
		})
		c.tx.ForEachOutput(func(_ int, o *ledger.Output) bool {
			if o.Amount > 0 {
				out = satAdd(out, o.Amount)
			}
			return true
		})
		c.bound = 0
		if resolved && in > out {
			c.bound = in - out
		}
	}
	ret := make([]ledger.Amount, len(cands)+1)
	for i := len(cands) - 1; i >= 0; i-- {
		ret[i] = satAdd(ret[i+1], cands[i].bound)
	}
	return ret
}

// satAdd adds non-negative amounts saturating at the maximum
func satAdd(a, b ledger.Amount) ledger.Amount {
	if b > 0 && a > ledger.Amount(math.MaxInt64)-b {
		return ledger.Amount(math.MaxInt64)
	}
	return a + b
}
