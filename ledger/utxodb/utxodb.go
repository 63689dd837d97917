package utxodb

import (
	"fmt"

	"github.com/lunfardo314/unitrie/common"
	"github.com/lunfardo314/utxobatch"
	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/ledger/txbuilder"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ed25519"
)

// UTXODB is an in-memory ledger with the genesis output and a faucet. Keys are deterministic.
// Mostly for testing

type UTXODB struct {
	pool              *ledger.Pool
	supply            ledger.Amount
	genesisPrivateKey ed25519.PrivateKey
	genesisPublicKey  ed25519.PublicKey
}

const (
	// for determinism
	genesisSeed             = "genesis of the testing ledger"
	deterministicSeed       = "1234567890987654321"
	supplyForTesting        = ledger.Amount(1_000_000_000_000)
	TokensFromFaucetDefault = ledger.Amount(1_000_000)
)

// GenesisUTXO is all-0 transaction id with index 0
var GenesisUTXO = ledger.NewUTXO(ledger.TransactionID{}, 0)

func NewUTXODB() *UTXODB {
	seed := blake2b.Sum256([]byte(genesisSeed))
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	pool := ledger.NewPool()
	pool.Add(GenesisUTXO, ledger.NewOutput(pub, supplyForTesting))
	return &UTXODB{
		pool:              pool,
		supply:            supplyForTesting,
		genesisPrivateKey: priv,
		genesisPublicKey:  pub,
	}
}

func (u *UTXODB) Supply() ledger.Amount {
	return u.supply
}

// Pool returns the current pool. It is sealed, the UTXODB moves on by deriving from it
func (u *UTXODB) Pool() *ledger.Pool {
	return u.pool.Seal()
}

func (u *UTXODB) GenesisKeys() (ed25519.PrivateKey, ed25519.PublicKey) {
	return u.genesisPrivateKey, u.genesisPublicKey
}

// GenerateAddress derives key pair number n from the deterministic seed
func (u *UTXODB) GenerateAddress(n uint16) (ed25519.PrivateKey, ed25519.PublicKey) {
	return GenerateKeyPair(n)
}

func GenerateKeyPair(n uint16) (ed25519.PrivateKey, ed25519.PublicKey) {
	seed := blake2b.Sum256(common.Concat([]byte(deterministicSeed), utxobatch.EncodeInteger(n)))
	priv := ed25519.NewKeyFromSeed(seed[:])
	return priv, priv.Public().(ed25519.PublicKey)
}

// AddTransaction validates transaction and updates the pool
func (u *UTXODB) AddTransaction(tx *ledger.Transaction) error {
	v, err := ledger.Validate(tx, u.pool, ledger.ED25519Verifier)
	if err != nil {
		return err
	}
	u.pool = v.Pool.Flatten()
	return nil
}

func (u *UTXODB) TokensFromFaucet(target ed25519.PublicKey, howMany ...ledger.Amount) (*ledger.Transaction, error) {
	amount := TokensFromFaucetDefault
	if len(howMany) > 0 && howMany[0] > 0 {
		amount = howMany[0]
	}
	par := u.MakeTransferInputs(u.genesisPrivateKey).
		WithAmount(amount).
		WithTarget(target)
	tx, err := txbuilder.MakeTransferTransaction(par)
	if err != nil {
		return nil, fmt.Errorf("UTXODB faucet: %v", err)
	}
	return tx, u.AddTransaction(tx)
}

// MakeTransferInputs collects all outputs owned by the key
func (u *UTXODB) MakeTransferInputs(privKey ed25519.PrivateKey) *txbuilder.TransferInputs {
	ret := txbuilder.NewTransferInputs(privKey)
	return ret.WithOutputs(txbuilder.OutputsOwnedBy(u.pool, ret.SenderPublicKey))
}

func (u *UTXODB) TransferTokens(privKey ed25519.PrivateKey, target ed25519.PublicKey, amount ledger.Amount, fee ...ledger.Amount) (*ledger.Transaction, error) {
	par := u.MakeTransferInputs(privKey).
		WithAmount(amount).
		WithTarget(target)
	if len(fee) > 0 {
		par.WithFee(fee[0])
	}
	tx, err := txbuilder.MakeTransferTransaction(par)
	if err != nil {
		return nil, err
	}
	return tx, u.AddTransaction(tx)
}

func (u *UTXODB) account(owner ed25519.PublicKey) (ledger.Amount, int) {
	outs := txbuilder.OutputsOwnedBy(u.pool, owner)
	balance := ledger.Amount(0)
	for _, o := range outs {
		balance += o.Output.Amount
	}
	return balance, len(outs)
}

func (u *UTXODB) Balance(owner ed25519.PublicKey) ledger.Amount {
	ret, _ := u.account(owner)
	return ret
}

func (u *UTXODB) NumUTXOs(owner ed25519.PublicKey) int {
	_, ret := u.account(owner)
	return ret
}
