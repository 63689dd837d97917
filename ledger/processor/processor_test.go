package processor_test

import (
	"errors"
	"testing"

	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/ledger/commitment"
	"github.com/lunfardo314/utxobatch/ledger/processor"
	"github.com/lunfardo314/utxobatch/ledger/selector"
	"github.com/lunfardo314/utxobatch/ledger/txbuilder"
	"github.com/lunfardo314/utxobatch/ledger/utxodb"
	"github.com/lunfardo314/utxobatch/util/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ed25519"
)

func fakeUTXO(name string, idx uint16) ledger.UTXO {
	return ledger.NewUTXO(blake2b.Sum256([]byte(name)), idx)
}

func TestProcessor(t *testing.T) {
	privA, pubA := utxodb.GenerateKeyPair(0)
	privB, pubB := utxodb.GenerateKeyPair(1)
	_, pubC := utxodb.GenerateKeyPair(2)
	u1 := fakeUTXO("u1", 0)
	u2 := fakeUTXO("u2", 0)

	makeInitial := func() *ledger.Pool {
		ret := ledger.NewPool()
		ret.Add(u1, ledger.NewOutput(pubA, 10))
		return ret
	}
	log := testutil.NewSimpleLogger(true)

	t.Run("handle batch", func(t *testing.T) {
		p, err := processor.New(makeInitial(), processor.WithLogger(log))
		require.NoError(t, err)
		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 4).
			Produce(pubC, 3).
			MustBuild()
		require.True(t, p.IsValidTx(t1))

		accepted, err := p.HandleBatch([]*ledger.Transaction{t1})
		require.NoError(t, err)
		require.EqualValues(t, 1, len(accepted))
		require.EqualValues(t, t1.ID(), accepted[0].ID())
		require.EqualValues(t, 1, p.BatchCount())

		pool := p.Pool()
		require.EqualValues(t, 2, pool.Len())
		require.False(t, pool.Contains(u1))
		o, found := pool.Get(t1.OutputUTXO(0))
		require.True(t, found)
		require.EqualValues(t, 4, o.Amount)
		require.True(t, o.Owner.Equal(pubB))
		o, found = pool.Get(t1.OutputUTXO(1))
		require.True(t, found)
		require.EqualValues(t, 3, o.Amount)
		require.True(t, o.Owner.Equal(pubC))
		require.EqualValues(t, 0, pool.Depth())

		// can't be applied twice
		require.False(t, p.IsValidTx(t1))
		_, err = p.ValidateTx(t1)
		require.EqualValues(t, ledger.UnknownUtxo, ledger.ReasonOf(err))
		accepted, err = p.HandleBatch([]*ledger.Transaction{t1})
		require.NoError(t, err)
		require.EqualValues(t, 0, len(accepted))
		require.EqualValues(t, 2, p.BatchCount())
	})
	t.Run("conflict", func(t *testing.T) {
		p, err := processor.New(makeInitial(), processor.WithLogger(log))
		require.NoError(t, err)
		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 7).
			MustBuild()
		t2 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubC, 5).
			MustBuild()
		res, err := p.Process([]*ledger.Transaction{t1, t2})
		require.NoError(t, err)
		require.EqualValues(t, 1, len(res.Accepted))
		require.EqualValues(t, t2.ID(), res.Accepted[0].ID())
		require.EqualValues(t, 5, res.TotalFee)
		require.True(t, errors.Is(res.Rejected[t1.ID()], selector.ErrExcluded))
		require.True(t, res.Pool.Equal(p.Pool()))
	})
	t.Run("chain across batches", func(t *testing.T) {
		p, err := processor.New(makeInitial())
		require.NoError(t, err)
		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 9).
			MustBuild()
		t2 := txbuilder.NewTransactionBuilder().
			Consume(t1.OutputUTXO(0), privB).
			Produce(pubC, 8).
			MustBuild()
		accepted, err := p.HandleBatch([]*ledger.Transaction{t2})
		require.NoError(t, err)
		require.EqualValues(t, 0, len(accepted))

		accepted, err = p.HandleBatch([]*ledger.Transaction{t1})
		require.NoError(t, err)
		require.EqualValues(t, 1, len(accepted))
		require.True(t, p.IsValidTx(t2))

		accepted, err = p.HandleBatch([]*ledger.Transaction{t2})
		require.NoError(t, err)
		require.EqualValues(t, 1, len(accepted))
		require.EqualValues(t, 8, p.Pool().Sum())
	})
	t.Run("empty batch", func(t *testing.T) {
		p, err := processor.New(makeInitial())
		require.NoError(t, err)
		before := p.Commitment()
		accepted, err := p.HandleBatch(nil)
		require.NoError(t, err)
		require.EqualValues(t, 0, len(accepted))
		require.True(t, p.Pool().Equal(makeInitial()))
		require.True(t, commitment.Equal(before, p.Commitment()))
	})
	t.Run("unknown UTXO", func(t *testing.T) {
		p, err := processor.New(makeInitial())
		require.NoError(t, err)
		unknown := txbuilder.NewTransactionBuilder().
			Consume(u2, privA).
			Produce(pubB, 1).
			MustBuild()
		require.False(t, p.IsValidTx(unknown))
		accepted, err := p.HandleBatch([]*ledger.Transaction{unknown})
		require.NoError(t, err)
		require.EqualValues(t, 0, len(accepted))
		require.True(t, p.Pool().Equal(makeInitial()))
	})
	t.Run("malformed", func(t *testing.T) {
		p, err := processor.New(makeInitial())
		require.NoError(t, err)
		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 7).
			MustBuild()
		notFinalized := ledger.NewTransaction()
		notFinalized.AddInput(u1)
		require.False(t, p.IsValidTx(notFinalized))

		_, err = p.HandleBatch([]*ledger.Transaction{t1, notFinalized})
		require.True(t, errors.Is(err, ledger.ErrMalformedTransaction))
		require.True(t, p.Pool().Equal(makeInitial()))
		require.EqualValues(t, 0, p.BatchCount())
	})
	t.Run("initial pool is copied", func(t *testing.T) {
		initial := makeInitial()
		p, err := processor.New(initial)
		require.NoError(t, err)
		initial.Add(u2, ledger.NewOutput(pubA, 5))
		o, _ := initial.Get(u1)
		o.Owner[0] ^= 0xff
		require.False(t, p.Pool().Contains(u2))
		o1, found := p.Pool().Get(u1)
		require.True(t, found)
		require.True(t, o1.Owner.Equal(pubA))
		require.False(t, initial.IsSealed())
	})
	t.Run("pool can't be changed by the caller", func(t *testing.T) {
		p, err := processor.New(makeInitial())
		require.NoError(t, err)
		before := p.Commitment()

		o, found := p.Pool().Get(u1)
		require.True(t, found)
		o.Owner[0] ^= 0xff
		o.Amount = 1
		p.Pool().ForEach(func(_ ledger.UTXO, o *ledger.Output) bool {
			o.Amount = 2
			return true
		})
		for _, out := range txbuilder.OutputsOwnedBy(p.Pool(), pubA) {
			out.Output.Amount = 3
		}
		require.Panics(t, func() {
			p.Pool().Add(u2, ledger.NewOutput(pubA, 5))
		})

		require.True(t, p.Pool().Equal(makeInitial()))
		require.True(t, commitment.Equal(before, p.Commitment()))
		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 10).
			MustBuild()
		require.True(t, p.IsValidTx(t1))
	})
	t.Run("output already in the pool", func(t *testing.T) {
		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 7).
			MustBuild()
		initial := makeInitial()
		initial.Add(t1.OutputUTXO(0), ledger.NewOutput(pubB, 7))
		p, err := processor.New(initial)
		require.NoError(t, err)

		require.NotPanics(t, func() {
			require.False(t, p.IsValidTx(t1))
		})
		_, err = p.ValidateTx(t1)
		require.EqualValues(t, ledger.DuplicateUtxo, ledger.ReasonOf(err))
		var res *selector.Result
		require.NotPanics(t, func() {
			res, err = p.Process([]*ledger.Transaction{t1})
		})
		require.NoError(t, err)
		require.EqualValues(t, 0, len(res.Accepted))
		require.EqualValues(t, ledger.DuplicateUtxo, ledger.ReasonOf(res.Rejected[t1.ID()]))
		require.True(t, p.Pool().Equal(initial))
	})
	t.Run("negative initial value", func(t *testing.T) {
		initial := makeInitial()
		initial.Add(u2, ledger.NewOutput(pubA, -5))
		_, err := processor.New(initial)
		require.Error(t, err)
	})
	t.Run("nil initial pool", func(t *testing.T) {
		p, err := processor.New(nil)
		require.NoError(t, err)
		require.EqualValues(t, 0, p.Pool().Len())
	})
	t.Run("partial result", func(t *testing.T) {
		p, err := processor.New(makeInitial(), processor.WithSelectorOptions(selector.WithMaxNodes(1)))
		require.NoError(t, err)
		high := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 5).
			MustBuild()
		var low *ledger.Transaction
		for i := uint16(10); ; i++ {
			_, owner := utxodb.GenerateKeyPair(i)
			low = txbuilder.NewTransactionBuilder().
				Consume(u1, privA).
				Produce(owner, 7).
				MustBuild()
			if low.ID().Compare(high.ID()) < 0 {
				break
			}
		}
		accepted, err := p.HandleBatch([]*ledger.Transaction{high, low})
		require.True(t, errors.Is(err, processor.ErrPartialResult))
		require.EqualValues(t, 1, len(accepted))
		require.EqualValues(t, low.ID(), accepted[0].ID())
		// the pool is updated anyway
		require.False(t, p.Pool().Contains(u1))
		require.True(t, p.Pool().Contains(low.OutputUTXO(0)))
	})
	t.Run("verifier", func(t *testing.T) {
		acceptAll := ledger.VerifierFunc(func(_ ed25519.PublicKey, _, _ []byte) bool { return true })
		p, err := processor.New(makeInitial(), processor.WithVerifier(acceptAll))
		require.NoError(t, err)
		unsigned := txbuilder.NewTransactionBuilder().
			Consume(u1, nil).
			Produce(pubB, 7).
			MustBuild()
		require.True(t, p.IsValidTx(unsigned))
		accepted, err := p.HandleBatch([]*ledger.Transaction{unsigned})
		require.NoError(t, err)
		require.EqualValues(t, 1, len(accepted))
	})
	t.Run("commitment", func(t *testing.T) {
		p1, err := processor.New(makeInitial())
		require.NoError(t, err)
		p2, err := processor.New(makeInitial())
		require.NoError(t, err)
		require.True(t, commitment.Equal(p1.Commitment(), p2.Commitment()))
		require.True(t, commitment.Equal(p1.Commitment(), commitment.Compute(makeInitial())))

		t1 := txbuilder.NewTransactionBuilder().
			Consume(u1, privA).
			Produce(pubB, 7).
			MustBuild()
		_, err = p1.HandleBatch([]*ledger.Transaction{t1})
		require.NoError(t, err)
		require.False(t, commitment.Equal(p1.Commitment(), p2.Commitment()))
		_, err = p2.HandleBatch([]*ledger.Transaction{t1})
		require.NoError(t, err)
		require.True(t, commitment.Equal(p1.Commitment(), p2.Commitment()))
	})
}

func TestProcessorWithUTXODB(t *testing.T) {
	u := utxodb.NewUTXODB()
	const numAccounts = 5
	for i := 0; i < numAccounts; i++ {
		_, pub := u.GenerateAddress(uint16(i))
		_, err := u.TokensFromFaucet(pub, 1000)
		require.NoError(t, err)
	}
	p, err := processor.New(u.Pool(), processor.WithLogger(testutil.NewSimpleLogger(false)),
		processor.WithSelectorOptions(selector.WithWorkers(3)))
	require.NoError(t, err)

	// every account makes two conflicting transfers with different fees
	batch := make([]*ledger.Transaction, 0)
	expectedFee := ledger.Amount(0)
	for i := 0; i < numAccounts; i++ {
		priv, _ := u.GenerateAddress(uint16(i))
		_, target := u.GenerateAddress(uint16(i + numAccounts))
		for fee := ledger.Amount(1); fee <= 2; fee++ {
			tx, err := txbuilder.MakeTransferTransaction(u.MakeTransferInputs(priv).
				WithTarget(target).
				WithAmount(100 + fee).
				WithFee(ledger.Amount(i) + fee))
			require.NoError(t, err)
			batch = append(batch, tx)
		}
		expectedFee += ledger.Amount(i) + 2
	}
	res, err := p.Process(batch)
	require.NoError(t, err)
	require.EqualValues(t, numAccounts, len(res.Accepted))
	require.EqualValues(t, numAccounts, len(res.Rejected))
	require.EqualValues(t, expectedFee, res.TotalFee)
	require.EqualValues(t, u.Supply()-expectedFee, p.Pool().Sum())
}
