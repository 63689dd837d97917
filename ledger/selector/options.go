package selector

import (
	"time"

	"github.com/lunfardo314/utxobatch/ledger"
	"go.uber.org/zap"
)

type Option func(s *Selector)

// WithVerifier sets signature verifier. Default is ledger.ED25519Verifier
func WithVerifier(v ledger.Verifier) Option {
	return func(s *Selector) {
		if v != nil {
			s.verifier = v
		}
	}
}

// WithMaxNodes limits the number of validated search nodes. 0 means no limit.
// A search stopped by the limit returns the best selection found so far with StatusPartial
func WithMaxNodes(n int64) Option {
	return func(s *Selector) {
		s.maxNodes = n
	}
}

// WithDeadline limits duration of the search. 0 means no limit
func WithDeadline(d time.Duration) Option {
	return func(s *Selector) {
		s.deadline = d
	}
}

// WithWorkers enables parallel exploration of the search tree with n workers.
// The result is the same as with the sequential search, unless the search is truncated
func WithWorkers(n int) Option {
	return func(s *Selector) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Selector) {
		if log != nil {
			s.log = log.Named("selector")
		}
	}
}
