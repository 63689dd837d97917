package processor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lunfardo314/unitrie/common"
	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/ledger/commitment"
	"github.com/lunfardo314/utxobatch/ledger/selector"
	"go.uber.org/zap"
)

// Processor owns the authoritative pool. Each batch is selected against the pool and the pool
// is replaced by the result of the selection at once, after the search is complete
type Processor struct {
	mutex      sync.RWMutex
	pool       *ledger.Pool
	batchCount int
	verifier   ledger.Verifier
	selOpts    []selector.Option
	log        *zap.SugaredLogger
}

type Option func(p *Processor)

// ErrPartialResult is returned together with the accepted transactions when the search was
// truncated by the budget. The pool is updated with the accepted transactions
var ErrPartialResult = errors.New("search was truncated: selection may be not optimal")

func WithVerifier(v ledger.Verifier) Option {
	return func(p *Processor) {
		if v != nil {
			p.verifier = v
		}
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

func WithSelectorOptions(opts ...selector.Option) Option {
	return func(p *Processor) {
		p.selOpts = append(p.selOpts, opts...)
	}
}

// New creates processor with the deep copy of the initial pool. Pool with negative values is rejected
func New(initial *ledger.Pool, opts ...Option) (*Processor, error) {
	if initial == nil {
		initial = ledger.NewPool()
	}
	var err error
	initial.ForEach(func(u ledger.UTXO, o *ledger.Output) bool {
		if o.Amount < 0 {
			err = fmt.Errorf("processor.New: negative value %s in UTXO %s", o.Amount.String(), u.String())
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	ret := &Processor{
		pool:     initial.Clone().Seal(),
		verifier: ledger.ED25519Verifier,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.log = ret.log.Named("processor")
	ret.log.Infof("created with %d UTXOs, total value %s", ret.pool.Len(), ret.pool.Sum().String())
	return ret, nil
}

func (p *Processor) newSelector() *selector.Selector {
	opts := make([]selector.Option, 0, len(p.selOpts)+2)
	opts = append(opts, selector.WithVerifier(p.verifier), selector.WithLogger(p.log))
	opts = append(opts, p.selOpts...)
	return selector.New(opts...)
}

// IsValidTx checks the transaction against the current pool
func (p *Processor) IsValidTx(tx *ledger.Transaction) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return ledger.IsValid(tx, p.pool, p.verifier)
}

// ValidateTx returns the validation result against the current pool
func (p *Processor) ValidateTx(tx *ledger.Transaction) (*ledger.Validated, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return ledger.Validate(tx, p.pool, p.verifier)
}

// Process selects the maximal fee subset of candidates, replaces the pool and returns full report.
// On error the pool is not changed
func (p *Processor) Process(candidates []*ledger.Transaction) (*selector.Result, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	res, err := p.newSelector().Select(candidates, p.pool)
	if err != nil {
		p.log.Warnf("batch #%d with %d candidates refused: %v", p.batchCount, len(candidates), err)
		return nil, err
	}
	p.pool = res.Pool.Flatten().Seal()
	res.Pool = p.pool
	p.batchCount++

	p.log.Infof("batch #%d: accepted %d of %d candidates, fee %s, %s",
		p.batchCount, len(res.Accepted), len(candidates), res.TotalFee.String(), res.Status)
	for id, reason := range res.Rejected {
		p.log.Debugf("    %s not accepted: %v", id.Short(), reason)
	}
	return res, nil
}

// HandleBatch accepts the maximal fee subset of candidates and returns accepted transactions
// in the order they were applied. ErrPartialResult is returned with the accepted transactions
// if the search was truncated
func (p *Processor) HandleBatch(candidates []*ledger.Transaction) ([]*ledger.Transaction, error) {
	res, err := p.Process(candidates)
	if err != nil {
		return nil, err
	}
	if res.Status == selector.StatusPartial {
		return res.Accepted, ErrPartialResult
	}
	return res.Accepted, nil
}

// Pool returns the current pool. It is sealed and its accessors return copies of outputs,
// so the caller can't change the state of the processor through it
func (p *Processor) Pool() *ledger.Pool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.pool
}

// Commitment is the root of the trie which commits to the current pool
func (p *Processor) Commitment() common.VCommitment {
	return commitment.Compute(p.Pool())
}

func (p *Processor) BatchCount() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return p.batchCount
}
