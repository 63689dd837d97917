package ledger

import (
	"bytes"
	"fmt"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/unitrie/common"
	"github.com/lunfardo314/utxobatch/lazyslice"
	"golang.org/x/crypto/ed25519"
)

// Output is owned by whichever UTXO references it.
// Serialized form is a 2-element array: [owner public key, amount]
type Output struct {
	Owner  ed25519.PublicKey
	Amount Amount
}

const (
	outputIndexOwner = iota
	outputIndexAmount
	outputNumElements
)

func NewOutput(owner ed25519.PublicKey, amount Amount) *Output {
	return &Output{
		Owner:  owner,
		Amount: amount,
	}
}

func OutputFromBytes(data []byte) (*Output, error) {
	arr, err := lazyslice.ParseArray(data, outputNumElements)
	if err != nil {
		return nil, err
	}
	if arr.NumElements() != outputNumElements {
		return nil, fmt.Errorf("OutputFromBytes: expected %d elements, got %d", outputNumElements, arr.NumElements())
	}
	ret := &Output{}
	if ret.Amount, err = AmountFromBytes(arr.At(outputIndexAmount)); err != nil {
		return nil, err
	}
	owner := arr.At(outputIndexOwner)
	if len(owner) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("OutputFromBytes: wrong owner key size %d", len(owner))
	}
	ret.Owner = common.Concat(owner)
	return ret, nil
}

func (o *Output) Bytes() []byte {
	return lazyslice.MakeArray([]byte(o.Owner), o.Amount.Bytes()).Bytes()
}

// Clone makes deep copy. Pools hold clones so that callers can't alias the owner key
func (o *Output) Clone() *Output {
	return &Output{
		Owner:  common.Concat([]byte(o.Owner)),
		Amount: o.Amount,
	}
}

func (o *Output) Equal(other *Output) bool {
	return o.Amount == other.Amount && bytes.Equal(o.Owner, other.Owner)
}

func (o *Output) String() string {
	return fmt.Sprintf("%s -> %s", o.Amount.String(), easyfl.Fmt(o.Owner))
}

func (o *Output) checkWellFormed() error {
	if len(o.Owner) != ed25519.PublicKeySize {
		return fmt.Errorf("wrong owner key size %d", len(o.Owner))
	}
	return nil
}
