package ledger

import (
	"errors"
	"fmt"
)

// RejectReason is the reason why a well-formed transaction is not valid against a pool.
// Rejections are expected outcomes, not failures of the processing
type RejectReason byte

const (
	ReasonNone = RejectReason(iota)
	UnknownUtxo
	BadSignature
	DoubleSpendWithinTx
	NegativeOutput
	Overspend
	DuplicateUtxo
)

var reasonNames = map[RejectReason]string{
	ReasonNone:          "none",
	UnknownUtxo:         "UnknownUtxo",
	BadSignature:        "BadSignature",
	DoubleSpendWithinTx: "DoubleSpendWithinTx",
	NegativeOutput:      "NegativeOutput",
	Overspend:           "Overspend",
	DuplicateUtxo:       "DuplicateUtxo",
}

func (r RejectReason) String() string {
	if ret, ok := reasonNames[r]; ok {
		return ret
	}
	return fmt.Sprintf("RejectReason(%d)", byte(r))
}

// ErrMalformedTransaction is a caller contract violation: the transaction has no valid
// canonical encoding or identifier. It is fatal for the batch
var ErrMalformedTransaction = errors.New("malformed transaction")

// Rejection is returned by Validate for transactions which are well-formed but not valid
type Rejection struct {
	Reason RejectReason
	TxID   TransactionID
	// Index of the input or output the check failed at, -1 if not applicable
	Index  int
	Detail string
}

func newRejection(reason RejectReason, txid TransactionID, idx int, format string, args ...interface{}) *Rejection {
	return &Rejection{
		Reason: reason,
		TxID:   txid,
		Index:  idx,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (r *Rejection) Error() string {
	if r.Index >= 0 {
		return fmt.Sprintf("transaction %s rejected: %s @ %d: %s", r.TxID.Short(), r.Reason, r.Index, r.Detail)
	}
	return fmt.Sprintf("transaction %s rejected: %s: %s", r.TxID.Short(), r.Reason, r.Detail)
}

// ReasonOf returns the rejection reason of the error or ReasonNone
func ReasonOf(err error) RejectReason {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ReasonNone
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedTransaction, fmt.Sprintf(format, args...))
}
