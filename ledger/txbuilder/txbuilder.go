package txbuilder

import (
	"fmt"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/utxobatch/ledger"
	"golang.org/x/crypto/ed25519"
)

// TransactionBuilder collects inputs with the keys which unlock them and outputs.
// Build signs every input and finalizes the transaction
type TransactionBuilder struct {
	tx   *ledger.Transaction
	keys []ed25519.PrivateKey
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		tx:   ledger.NewTransaction(),
		keys: make([]ed25519.PrivateKey, 0),
	}
}

// Consume adds input. The key signs the input in Build. Nil key leaves the input unsigned
func (b *TransactionBuilder) Consume(u ledger.UTXO, key ed25519.PrivateKey) *TransactionBuilder {
	b.tx.AddInput(u)
	b.keys = append(b.keys, key)
	return b
}

func (b *TransactionBuilder) Produce(owner ed25519.PublicKey, amount ledger.Amount) *TransactionBuilder {
	b.tx.AddOutput(ledger.NewOutput(owner, amount))
	return b
}

func (b *TransactionBuilder) NumInputs() int {
	return b.tx.NumInputs()
}

func (b *TransactionBuilder) NumOutputs() int {
	return b.tx.NumOutputs()
}

func (b *TransactionBuilder) Build() (*ledger.Transaction, error) {
	for i, key := range b.keys {
		if key == nil {
			continue
		}
		if len(key) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("TransactionBuilder: wrong private key size at input %d", i)
		}
		b.tx.SetSignature(i, ed25519.Sign(key, b.tx.DataToSign(i)))
	}
	if err := b.tx.Finalize(); err != nil {
		return nil, err
	}
	return b.tx, nil
}

func (b *TransactionBuilder) MustBuild() *ledger.Transaction {
	ret, err := b.Build()
	easyfl.AssertNoError(err)
	return ret
}

// OutputWithID is an output of the pool together with its key
type OutputWithID struct {
	ID     ledger.UTXO
	Output *ledger.Output
}

// OutputsOwnedBy returns outputs in the pool owned by the key, in ascending order of UTXO
func OutputsOwnedBy(pool *ledger.Pool, owner ed25519.PublicKey) []*OutputWithID {
	ret := make([]*OutputWithID, 0)
	pool.ForEach(func(u ledger.UTXO, o *ledger.Output) bool {
		if owner.Equal(o.Owner) {
			ret = append(ret, &OutputWithID{ID: u, Output: o})
		}
		return true
	})
	return ret
}

// TransferInputs are parameters of a simple transfer: consume enough outputs of the sender,
// pay Amount to Target, Fee to whoever includes the transaction, the remainder back to the sender
type TransferInputs struct {
	SenderPrivateKey ed25519.PrivateKey
	SenderPublicKey  ed25519.PublicKey
	Outputs          []*OutputWithID
	Target           ed25519.PublicKey
	Amount           ledger.Amount
	Fee              ledger.Amount
}

func NewTransferInputs(senderKey ed25519.PrivateKey) *TransferInputs {
	return &TransferInputs{
		SenderPrivateKey: senderKey,
		SenderPublicKey:  senderKey.Public().(ed25519.PublicKey),
		Outputs:          make([]*OutputWithID, 0),
	}
}

func (t *TransferInputs) WithOutputs(outs []*OutputWithID) *TransferInputs {
	t.Outputs = outs
	return t
}

func (t *TransferInputs) WithTarget(target ed25519.PublicKey) *TransferInputs {
	t.Target = target
	return t
}

func (t *TransferInputs) WithAmount(amount ledger.Amount) *TransferInputs {
	t.Amount = amount
	return t
}

func (t *TransferInputs) WithFee(fee ledger.Amount) *TransferInputs {
	t.Fee = fee
	return t
}

func MakeTransferTransaction(par *TransferInputs) (*ledger.Transaction, error) {
	if par.Amount < 0 || par.Fee < 0 {
		return nil, fmt.Errorf("MakeTransferTransaction: amount and fee must be non-negative")
	}
	needed, ok := par.Amount.AddChecked(par.Fee)
	if !ok {
		return nil, fmt.Errorf("MakeTransferTransaction: arithmetic overflow")
	}
	b := NewTransactionBuilder()
	var available ledger.Amount
	for _, o := range par.Outputs {
		if b.NumInputs() >= ledger.MaxInputs {
			return nil, fmt.Errorf("exceeded max number of consumed outputs %d", ledger.MaxInputs)
		}
		b.Consume(o.ID, par.SenderPrivateKey)
		available += o.Output.Amount
		if available >= needed {
			break
		}
	}
	if available < needed {
		return nil, fmt.Errorf("not enough tokens in %s: needed %s, got %s",
			easyfl.Fmt(par.SenderPublicKey), needed.String(), available.String())
	}
	b.Produce(par.Target, par.Amount)
	if available > needed {
		b.Produce(par.SenderPublicKey, available-needed)
	}
	return b.Build()
}
