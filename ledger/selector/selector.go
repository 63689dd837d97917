package selector

import (
	"errors"
	"fmt"
	"time"

	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/util/waitingroom"
	"go.uber.org/zap"
)

// Selector searches for the subset of candidate transactions with the maximal total fee,
// together with the order in which the subset can be applied to the pool
type Selector struct {
	verifier ledger.Verifier
	maxNodes int64
	deadline time.Duration
	workers  int
	log      *zap.SugaredLogger
}

type Status byte

const (
	// StatusOptimal means the search was complete
	StatusOptimal = Status(iota)
	// StatusPartial means the search was truncated by the budget. The selection is valid but may be not optimal
	StatusPartial
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusPartial:
		return "partial"
	}
	return fmt.Sprintf("Status(%d)", byte(s))
}

type (
	Result struct {
		// Accepted transactions in the order of application
		Accepted []*ledger.Transaction
		// Pool after all accepted transactions are applied to the base pool
		Pool     *ledger.Pool
		TotalFee ledger.Amount
		Status   Status
		// Rejected contains the reason for each candidate which was not accepted
		Rejected map[ledger.TransactionID]error
		Stats    Stats
	}

	Stats struct {
		Candidates int
		Nodes      int64
		Pruned     int64
		Leaves     int64
		Duration   time.Duration
	}
)

// ErrExcluded is the reason of valid candidates which lost to a selection with higher fee
var ErrExcluded = errors.New("conflicts with the selected transactions")

func New(opts ...Option) *Selector {
	ret := &Selector{
		verifier: ledger.ED25519Verifier,
		workers:  1,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Select returns the maximal fee selection of candidates applicable to the base pool.
// Candidates are taken in any order, duplicates are ignored. The base pool is not modified.
// The only error is ErrMalformedTransaction, in which case nothing is selected
func (s *Selector) Select(candidates []*ledger.Transaction, base *ledger.Pool) (*Result, error) {
	start := time.Now()
	cands, err := orderCandidates(candidates)
	if err != nil {
		return nil, err
	}
	base = ledger.Frozen(base)
	suffix := computeBounds(cands, base)
	srch := newSearch(cands, suffix, s.verifier, s.maxNodes)

	if s.deadline > 0 {
		wr := waitingroom.Create(pollingPeriod(s.deadline))
		defer wr.Stop()
		wr.CallDelayed(s.deadline, func() {
			srch.stop.Store(true)
		})
	}

	root := node{pool: base}
	var b best
	if s.workers > 1 && len(cands) > 1 {
		b = srch.exploreParallel(root, s.workers)
	} else {
		b = srch.explore(root)
	}

	ret := &Result{
		Accepted: b.path.transactions(),
		Pool:     b.pool,
		TotalFee: b.fee,
		Status:   StatusOptimal,
		Stats: Stats{
			Candidates: len(cands),
			Nodes:      srch.nodes.Load(),
			Pruned:     srch.pruned.Load(),
			Leaves:     srch.leaves.Load(),
		},
	}
	if srch.truncated.Load() {
		ret.Status = StatusPartial
	}
	ret.Rejected = s.rejectionReasons(cands, ret, base)
	ret.Stats.Duration = time.Since(start)

	s.log.Debugf("selected %d of %d candidates, fee %s, status: %s, nodes: %d, pruned: %d, leaves: %d, %v",
		len(ret.Accepted), len(cands), ret.TotalFee.String(), ret.Status, ret.Stats.Nodes, ret.Stats.Pruned,
		ret.Stats.Leaves, ret.Stats.Duration)
	return ret, nil
}

func pollingPeriod(deadline time.Duration) time.Duration {
	ret := deadline / 10
	if ret < time.Millisecond {
		ret = time.Millisecond
	}
	return ret
}

// rejectionReasons explains each not accepted candidate: the validation error against the base pool
// or the final pool, whichever is more specific, or ErrExcluded if the candidate competes for
// UTXOs with the accepted transactions
func (s *Selector) rejectionReasons(cands []*candidate, res *Result, base *ledger.Pool) map[ledger.TransactionID]error {
	accepted := make(map[ledger.TransactionID]struct{}, len(res.Accepted))
	consumed := make(map[ledger.UTXO]ledger.TransactionID)
	for _, tx := range res.Accepted {
		id := tx.ID()
		accepted[id] = struct{}{}
		tx.ForEachInput(func(_ int, in *ledger.Input) bool {
			consumed[in.UTXO] = id
			return true
		})
	}
	ret := make(map[ledger.TransactionID]error)
	for _, c := range cands {
		if _, ok := accepted[c.id]; ok {
			continue
		}
		errBase := reasonAgainst(c.tx, base, s.verifier)
		if errBase != nil && ledger.ReasonOf(errBase) != ledger.UnknownUtxo {
			ret[c.id] = errBase
			continue
		}
		errFinal := reasonAgainst(c.tx, res.Pool, s.verifier)
		if errFinal != nil && ledger.ReasonOf(errFinal) != ledger.UnknownUtxo {
			ret[c.id] = errFinal
			continue
		}
		var conflict error
		c.tx.ForEachInput(func(_ int, in *ledger.Input) bool {
			if winner, ok := consumed[in.UTXO]; ok {
				conflict = fmt.Errorf("%w: UTXO %s is spent by %s", ErrExcluded, in.UTXO.String(), winner.Short())
				return false
			}
			return true
		})
		switch {
		case conflict != nil:
			ret[c.id] = conflict
		case errFinal != nil:
			ret[c.id] = errFinal
		case errBase != nil:
			ret[c.id] = errBase
		default:
			ret[c.id] = fmt.Errorf("%w: not selected", ErrExcluded)
		}
	}
	return ret
}

func reasonAgainst(tx *ledger.Transaction, pool *ledger.Pool, verifier ledger.Verifier) error {
	_, err := ledger.Validate(tx, pool, verifier)
	return err
}
