// batchsim generates batches of conflicting and chained transfers on the testing ledger
// and feeds them to the batch processor
package main

import (
	"errors"
	"math/rand"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/lunfardo314/utxobatch/ledger"
	"github.com/lunfardo314/utxobatch/ledger/processor"
	"github.com/lunfardo314/utxobatch/ledger/selector"
	"github.com/lunfardo314/utxobatch/ledger/txbuilder"
	"github.com/lunfardo314/utxobatch/ledger/utxodb"
	"github.com/lunfardo314/utxobatch/util/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/ed25519"
)

const fundsPerAccount = 10 * ledger.AmountUnitsPerCoin

type account struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	log := testutil.NewSimpleLogger(cfg.Debug, "batchsim")
	defer func() { _ = log.Sync() }()

	if err = run(cfg, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config, log *zap.SugaredLogger) error {
	log.Infof("seed: %d, accounts: %d, batches: %d, transfers per batch: %d, workers: %d",
		cfg.Seed, cfg.Accounts, cfg.Batches, cfg.BatchLen, cfg.Workers)
	rnd := rand.New(rand.NewSource(cfg.Seed))

	u := utxodb.NewUTXODB()
	accounts := make([]account, cfg.Accounts)
	for i := range accounts {
		accounts[i].priv, accounts[i].pub = u.GenerateAddress(uint16(i))
		if _, err := u.TokensFromFaucet(accounts[i].pub, fundsPerAccount); err != nil {
			return err
		}
	}

	p, err := processor.New(u.Pool(),
		processor.WithLogger(log),
		processor.WithSelectorOptions(
			selector.WithWorkers(cfg.Workers),
			selector.WithMaxNodes(cfg.MaxNodes),
			selector.WithDeadline(cfg.Deadline),
		),
	)
	if err != nil {
		return err
	}
	for b := 0; b < cfg.Batches; b++ {
		batch, err := makeBatch(rnd, p.Pool(), accounts, cfg.BatchLen)
		if err != nil {
			return err
		}
		res, err := p.Process(batch)
		if err != nil {
			return err
		}
		log.Infof("batch %d: %d candidates, accepted %d, fee %s, %s. Nodes: %d, pruned: %d, leaves: %d, duration: %v",
			b, res.Stats.Candidates, len(res.Accepted), res.TotalFee.String(), res.Status,
			res.Stats.Nodes, res.Stats.Pruned, res.Stats.Leaves, res.Stats.Duration)
		log.Infof("pool after batch %d: %d UTXOs, commitment %s", b, p.Pool().Len(), p.Commitment().String())
	}
	return nil
}

// makeBatch generates random transfers between accounts, spending outputs of the pool. Some senders
// spend the same outputs twice with different fees, some recipients spend the received output in the same batch
func makeBatch(rnd *rand.Rand, pool *ledger.Pool, accounts []account, n int) ([]*ledger.Transaction, error) {
	ret := make([]*ledger.Transaction, 0, 2*n)
	for len(ret) < n {
		from := rnd.Intn(len(accounts))
		to := (from + 1 + rnd.Intn(len(accounts)-1)) % len(accounts)
		outs := txbuilder.OutputsOwnedBy(pool, accounts[from].pub)
		if len(outs) == 0 {
			continue
		}
		var balance ledger.Amount
		for _, o := range outs {
			balance += o.Output.Amount
		}
		fee := ledger.Amount(1 + rnd.Intn(1000))
		if balance <= 2*fee {
			continue
		}
		amount := 1 + ledger.Amount(rnd.Int63n(int64(balance-2*fee)))

		tx, err := transfer(outs, accounts[from], accounts[to].pub, amount, fee)
		if err != nil {
			return nil, err
		}
		ret = append(ret, tx)

		switch rnd.Intn(4) {
		case 0:
			// double spend with the higher fee
			tx1, err := transfer(outs, accounts[from], accounts[to].pub, amount, fee+1+ledger.Amount(rnd.Int63n(int64(fee))))
			if err != nil {
				return nil, err
			}
			ret = append(ret, tx1)
		case 1:
			// the recipient passes the received output further
			next := (to + 1) % len(accounts)
			received := tx.Output(0)
			if received.Amount <= fee {
				break
			}
			child, err := txbuilder.NewTransactionBuilder().
				Consume(tx.OutputUTXO(0), accounts[to].priv).
				Produce(accounts[next].pub, received.Amount-fee).
				Build()
			if err != nil {
				return nil, err
			}
			ret = append(ret, child)
		}
	}
	rnd.Shuffle(len(ret), func(i, j int) {
		ret[i], ret[j] = ret[j], ret[i]
	})
	return ret, nil
}

func transfer(outs []*txbuilder.OutputWithID, from account, to ed25519.PublicKey, amount, fee ledger.Amount) (*ledger.Transaction, error) {
	return txbuilder.MakeTransferTransaction(txbuilder.NewTransferInputs(from.priv).
		WithOutputs(outs).
		WithTarget(to).
		WithAmount(amount).
		WithFee(fee),
	)
}
