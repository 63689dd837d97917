package ledger

import (
	"fmt"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/unitrie/common"
	"github.com/lunfardo314/utxobatch"
	"github.com/lunfardo314/utxobatch/lazyslice"
	"golang.org/x/crypto/blake2b"
)

const (
	MaxInputs  = lazyslice.MaxArrayLen
	MaxOutputs = lazyslice.MaxArrayLen
)

// canonical encoding of the transaction: [inputs, outputs]
// input: [utxo, signature]
// output: see Output.Bytes
const (
	txIndexInputs = iota
	txIndexOutputs
	txNumElements
)

const (
	inputIndexUTXO = iota
	inputIndexSignature
	inputNumElements
)

type (
	// Input references the UTXO being spent and carries signature of the owner of the consumed output
	Input struct {
		UTXO      UTXO
		Signature []byte
	}

	// Transaction is an ordered sequence of inputs and outputs. The identifier is a hash of the
	// canonical encoding, computed by Finalize. Every mutation invalidates the identifier
	Transaction struct {
		inputs    []Input
		outputs   []Output
		id        TransactionID
		finalized bool
	}
)

func (in *Input) clone() Input {
	return Input{
		UTXO:      in.UTXO,
		Signature: common.Concat(in.Signature),
	}
}

func NewTransaction() *Transaction {
	return &Transaction{
		inputs:  make([]Input, 0),
		outputs: make([]Output, 0),
	}
}

func (tx *Transaction) AddInput(u UTXO) int {
	tx.inputs = append(tx.inputs, Input{UTXO: u})
	tx.finalized = false
	return len(tx.inputs) - 1
}

func (tx *Transaction) AddOutput(o *Output) int {
	tx.outputs = append(tx.outputs, *o.Clone())
	tx.finalized = false
	return len(tx.outputs) - 1
}

func (tx *Transaction) SetSignature(idx int, sig []byte) {
	tx.inputs[idx].Signature = common.Concat(sig)
	tx.finalized = false
}

// Finalize checks structure of the transaction and computes its identifier
func (tx *Transaction) Finalize() error {
	if err := tx.checkWellFormed(); err != nil {
		return err
	}
	tx.id = blake2b.Sum256(tx.Bytes())
	tx.finalized = true
	return nil
}

// MustFinalize is for building transactions in code which knows they are well-formed
func (tx *Transaction) MustFinalize() *Transaction {
	easyfl.AssertNoError(tx.Finalize())
	return tx
}

func (tx *Transaction) IsFinalized() bool {
	return tx.finalized
}

// ID returns identifier of the finalized transaction
func (tx *Transaction) ID() TransactionID {
	easyfl.Assert(tx.finalized, "transaction is not finalized")
	return tx.id
}

func (tx *Transaction) NumInputs() int {
	return len(tx.inputs)
}

func (tx *Transaction) NumOutputs() int {
	return len(tx.outputs)
}

// Input returns a copy of the input. Changing it does not change the transaction
func (tx *Transaction) Input(idx int) Input {
	return tx.inputs[idx].clone()
}

func (tx *Transaction) Output(idx int) *Output {
	return tx.outputs[idx].Clone()
}

// ForEachInput iterates copies of inputs
func (tx *Transaction) ForEachInput(fun func(idx int, in *Input) bool) {
	for i := range tx.inputs {
		in := tx.inputs[i].clone()
		if !fun(i, &in) {
			return
		}
	}
}

// ForEachOutput iterates copies of outputs
func (tx *Transaction) ForEachOutput(fun func(idx int, o *Output) bool) {
	for i := range tx.outputs {
		if !fun(i, tx.outputs[i].Clone()) {
			return
		}
	}
}

// OutputUTXO is the key of the output in the pool after the transaction is applied
func (tx *Transaction) OutputUTXO(idx int) UTXO {
	return NewUTXO(tx.ID(), uint16(idx))
}

func (tx *Transaction) outputsArray() *lazyslice.Array {
	ret := lazyslice.EmptyArray()
	for i := range tx.outputs {
		ret.Push(tx.outputs[i].Bytes())
	}
	return ret
}

// Bytes is the canonical encoding of the transaction, including signatures
func (tx *Transaction) Bytes() []byte {
	inputs := lazyslice.EmptyArray()
	for i := range tx.inputs {
		inputs.Push(lazyslice.MakeArray(tx.inputs[i].UTXO[:], tx.inputs[i].Signature).Bytes())
	}
	return lazyslice.MakeArray(inputs, tx.outputsArray()).Bytes()
}

// DataToSign is the message signed by the owner of the output consumed by input idx.
// All signature fields are excluded. The index is part of the message
func (tx *Transaction) DataToSign(idx int) []byte {
	easyfl.Assert(idx >= 0 && idx < len(tx.inputs), "DataToSign: wrong input index")
	utxos := lazyslice.EmptyArray()
	for i := range tx.inputs {
		utxos.Push(tx.inputs[i].UTXO[:])
	}
	return lazyslice.MakeArray(utxobatch.EncodeInteger(uint16(idx)), utxos, tx.outputsArray()).Bytes()
}

// TransactionFromBytes parses canonical encoding. The result is finalized
func TransactionFromBytes(data []byte) (*Transaction, error) {
	ret := NewTransaction()
	err := easyfl.CatchPanicOrError(func() error {
		arr, err := lazyslice.ParseArray(data, txNumElements)
		if err != nil {
			return err
		}
		if arr.NumElements() != txNumElements {
			return fmt.Errorf("expected %d elements, got %d", txNumElements, arr.NumElements())
		}
		inputs, err := lazyslice.ParseArray(arr.At(txIndexInputs), MaxInputs)
		if err != nil {
			return err
		}
		for i := 0; i < inputs.NumElements(); i++ {
			inArr, err := lazyslice.ParseArray(inputs.At(i), inputNumElements)
			if err != nil {
				return err
			}
			if inArr.NumElements() != inputNumElements {
				return fmt.Errorf("input %d: expected %d elements", i, inputNumElements)
			}
			u, err := UTXOFromBytes(inArr.At(inputIndexUTXO))
			if err != nil {
				return err
			}
			ret.SetSignature(ret.AddInput(u), inArr.At(inputIndexSignature))
		}
		outputs, err := lazyslice.ParseArray(arr.At(txIndexOutputs), MaxOutputs)
		if err != nil {
			return err
		}
		for i := 0; i < outputs.NumElements(); i++ {
			o, err := OutputFromBytes(outputs.At(i))
			if err != nil {
				return fmt.Errorf("output %d: %v", i, err)
			}
			ret.AddOutput(o)
		}
		return nil
	})
	if err != nil {
		return nil, malformed("%v", err)
	}
	if err = ret.Finalize(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (tx *Transaction) checkWellFormed() error {
	if len(tx.inputs) == 0 {
		return malformed("number of inputs can't be 0")
	}
	if len(tx.inputs) > MaxInputs {
		return malformed("too many inputs: %d", len(tx.inputs))
	}
	if len(tx.outputs) > MaxOutputs {
		return malformed("too many outputs: %d", len(tx.outputs))
	}
	for i := range tx.outputs {
		if err := tx.outputs[i].checkWellFormed(); err != nil {
			return malformed("output %d: %v", i, err)
		}
	}
	return nil
}

// CheckFinalized returns ErrMalformedTransaction if the transaction can't be used for validation
func (tx *Transaction) CheckFinalized() error {
	if tx == nil {
		return malformed("nil transaction")
	}
	if !tx.finalized {
		return malformed("transaction is not finalized")
	}
	return nil
}

func (tx *Transaction) String() string {
	id := "(not finalized)"
	if tx.finalized {
		id = tx.id.String()
	}
	return fmt.Sprintf("tx %s: %d inputs, %d outputs", id, len(tx.inputs), len(tx.outputs))
}
