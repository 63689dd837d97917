package txbuilder_test

import (
	"testing"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/ledger/txbuilder"
	"github.com/lunfardo314/utxobatch/ledger/utxodb"
	"github.com/stretchr/testify/require"
)

func TestBasics(t *testing.T) {
	t.Run("utxodb 1", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		priv, pub := u.GenesisKeys()
		t.Logf("orig priv key: %s", easyfl.Fmt(priv))
		t.Logf("orig pub key: %s", easyfl.Fmt(pub))

		_, addr := u.GenerateAddress(0)
		_, err := u.TokensFromFaucet(addr, 100)
		require.NoError(t, err)
		require.EqualValues(t, 1, u.NumUTXOs(pub))
		require.EqualValues(t, u.Supply()-100, u.Balance(pub))
		require.EqualValues(t, 100, u.Balance(addr))
		require.EqualValues(t, 1, u.NumUTXOs(addr))
	})
	t.Run("utxodb 2", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		_, pub := u.GenesisKeys()

		privKey, addr := u.GenerateAddress(0)
		_, err := u.TokensFromFaucet(addr, 100)
		require.NoError(t, err)
		_, err = u.TokensFromFaucet(addr)
		require.NoError(t, err)
		require.EqualValues(t, 1, u.NumUTXOs(pub))
		require.EqualValues(t, u.Supply()-100-utxodb.TokensFromFaucetDefault, u.Balance(pub))
		require.EqualValues(t, 100+utxodb.TokensFromFaucetDefault, u.Balance(addr))
		require.EqualValues(t, 2, u.NumUTXOs(addr))

		_, err = u.TransferTokens(privKey, addr, u.Balance(addr))
		require.NoError(t, err)
		require.EqualValues(t, 1, u.NumUTXOs(pub))
		require.EqualValues(t, u.Supply()-100-utxodb.TokensFromFaucetDefault, u.Balance(pub))
		require.EqualValues(t, 100+utxodb.TokensFromFaucetDefault, u.Balance(addr))
		require.EqualValues(t, 1, u.NumUTXOs(addr))
	})
	t.Run("utxodb compress outputs", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		_, pub := u.GenesisKeys()

		privKey, addr := u.GenerateAddress(0)
		const howMany = 256

		total := ledger.Amount(0)
		numOuts := 0
		for i := ledger.Amount(100); i <= howMany; i++ {
			_, err := u.TokensFromFaucet(addr, i)
			require.NoError(t, err)
			total += i
			numOuts++

			require.EqualValues(t, 1, u.NumUTXOs(pub))
			require.EqualValues(t, u.Supply()-total, u.Balance(pub))
			require.EqualValues(t, total, u.Balance(addr))
			require.EqualValues(t, numOuts, u.NumUTXOs(addr))
		}

		tx, err := txbuilder.MakeTransferTransaction(u.MakeTransferInputs(privKey).
			WithAmount(u.Balance(addr)).
			WithTarget(addr),
		)
		require.NoError(t, err)
		require.EqualValues(t, numOuts, tx.NumInputs())
		require.EqualValues(t, 1, tx.NumOutputs())
		t.Logf("tx size = %d bytes", len(tx.Bytes()))

		_, err = u.TransferTokens(privKey, addr, u.Balance(addr))
		require.NoError(t, err)
		require.EqualValues(t, 1, u.NumUTXOs(pub))
		require.EqualValues(t, u.Supply()-total, u.Balance(pub))
		require.EqualValues(t, total, u.Balance(addr))
		require.EqualValues(t, 1, u.NumUTXOs(addr))
	})
	t.Run("utxodb fan out outputs", func(t *testing.T) {
		u := utxodb.NewUTXODB()

		privKey0, addr0 := u.GenerateAddress(0)
		const howMany = 100
		_, err := u.TokensFromFaucet(addr0, howMany*100)
		require.NoError(t, err)
		require.EqualValues(t, howMany*100, u.Balance(addr0))
		require.EqualValues(t, 1, u.NumUTXOs(addr0))

		privKey1, addr1 := u.GenerateAddress(1)
		for i := 0; i < howMany; i++ {
			_, err = u.TransferTokens(privKey0, addr1, 100)
			require.NoError(t, err)
		}
		require.EqualValues(t, howMany*100, u.Balance(addr1))
		require.EqualValues(t, howMany, u.NumUTXOs(addr1))
		require.EqualValues(t, 0, u.Balance(addr0))
		require.EqualValues(t, 0, u.NumUTXOs(addr0))

		_, err = u.TransferTokens(privKey1, addr0, howMany*100)
		require.NoError(t, err)
		require.EqualValues(t, howMany*100, u.Balance(addr0))
		require.EqualValues(t, 1, u.NumUTXOs(addr0))
	})
	t.Run("fee", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		privKey0, addr0 := u.GenerateAddress(0)
		_, addr1 := u.GenerateAddress(1)
		_, err := u.TokensFromFaucet(addr0, 1000)
		require.NoError(t, err)

		tx, err := txbuilder.MakeTransferTransaction(u.MakeTransferInputs(privKey0).
			WithAmount(100).
			WithTarget(addr1).
			WithFee(10),
		)
		require.NoError(t, err)
		v, err := ledger.Validate(tx, u.Pool(), nil)
		require.NoError(t, err)
		require.EqualValues(t, 10, v.Fee)

		_, err = u.TransferTokens(privKey0, addr1, 100, 10)
		require.NoError(t, err)
		require.EqualValues(t, 890, u.Balance(addr0))
		require.EqualValues(t, 100, u.Balance(addr1))
		require.EqualValues(t, u.Supply()-10, u.Pool().Sum())
	})
	t.Run("not enough tokens", func(t *testing.T) {
		u := utxodb.NewUTXODB()
		privKey0, addr0 := u.GenerateAddress(0)
		_, addr1 := u.GenerateAddress(1)
		_, err := u.TokensFromFaucet(addr0, 100)
		require.NoError(t, err)

		_, err = u.TransferTokens(privKey0, addr1, 100, 1)
		easyfl.RequireErrorWith(t, err, "not enough tokens")
		_, err = u.TransferTokens(privKey0, addr1, -1)
		easyfl.RequireErrorWith(t, err, "must be non-negative")
		require.EqualValues(t, 100, u.Balance(addr0))
	})
}

func TestBuilder(t *testing.T) {
	privA, pubA := utxodb.GenerateKeyPair(1)
	_, pubB := utxodb.GenerateKeyPair(2)
	u1 := ledger.NewUTXO(ledger.TransactionID{1}, 0)

	b := txbuilder.NewTransactionBuilder().
		Consume(u1, privA).
		Produce(pubB, 5).
		Produce(pubA, 5)
	require.EqualValues(t, 1, b.NumInputs())
	require.EqualValues(t, 2, b.NumOutputs())
	tx, err := b.Build()
	require.NoError(t, err)
	require.True(t, tx.IsFinalized())

	pool := ledger.NewPool()
	pool.Add(u1, ledger.NewOutput(pubA, 10))
	require.True(t, ledger.IsValid(tx, pool, nil))

	outs := txbuilder.OutputsOwnedBy(pool, pubA)
	require.EqualValues(t, 1, len(outs))
	require.EqualValues(t, u1, outs[0].ID)
	require.EqualValues(t, 0, len(txbuilder.OutputsOwnedBy(pool, pubB)))

	_, err = txbuilder.NewTransactionBuilder().
		Consume(u1, privA[:10]).
		Build()
	easyfl.RequireErrorWith(t, err, "wrong private key size")
}
