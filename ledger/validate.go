package ledger

// Validated is the result of successful validation of the transaction against a pool
type Validated struct {
	Tx  *Transaction
	Fee Amount
	// Pool is the pool after the transaction is applied: consumed UTXOs removed, one new UTXO per output
	Pool     *Pool
	Consumed []UTXO
}

// Validate checks the transaction against the pool:
//  1. every consumed UTXO is in the pool
//  2. every signature is valid for the owner of the consumed output
//  3. no UTXO is consumed twice
//  4. no output is negative
//  5. sum of inputs >= sum of outputs
//  6. no UTXO the transaction produces is already in the pool
//
// The first failing check is returned as *Rejection. ErrMalformedTransaction is returned if
// the transaction is not finalized. The pool is not modified. The result is derived from the
// pool if it is sealed, otherwise from a sealed flat copy of it
func Validate(tx *Transaction, pool *Pool, verifier Verifier) (*Validated, error) {
	if err := tx.CheckFinalized(); err != nil {
		return nil, err
	}
	if verifier == nil {
		verifier = ED25519Verifier
	}
	txid := tx.ID()

	consumed := make([]*Output, tx.NumInputs())
	for i := range tx.inputs {
		o, found := pool.get(tx.inputs[i].UTXO)
		if !found {
			return nil, newRejection(UnknownUtxo, txid, i, "UTXO %s not found", tx.inputs[i].UTXO.String())
		}
		consumed[i] = o
	}

	for i := range tx.inputs {
		if !verifier.Verify(consumed[i].Owner, tx.DataToSign(i), tx.inputs[i].Signature) {
			return nil, newRejection(BadSignature, txid, i, "invalid signature")
		}
	}

	claimed := make(map[UTXO]struct{}, tx.NumInputs())
	utxos := make([]UTXO, tx.NumInputs())
	for i := range tx.inputs {
		u := tx.inputs[i].UTXO
		if _, already := claimed[u]; already {
			return nil, newRejection(DoubleSpendWithinTx, txid, i, "UTXO %s claimed more than once", u.String())
		}
		claimed[u] = struct{}{}
		utxos[i] = u
	}

	for i := range tx.outputs {
		if tx.outputs[i].Amount < 0 {
			return nil, newRejection(NegativeOutput, txid, i, "negative value %s", tx.outputs[i].Amount.String())
		}
	}

	var inSum, outSum Amount
	var ok bool
	for i, o := range consumed {
		if inSum, ok = inSum.AddChecked(o.Amount); !ok {
			return nil, newRejection(Overspend, txid, i, "arithmetic overflow in the sum of inputs")
		}
	}
	for i := range tx.outputs {
		if outSum, ok = outSum.AddChecked(tx.outputs[i].Amount); !ok {
			return nil, newRejection(Overspend, txid, i, "arithmetic overflow in the sum of outputs")
		}
	}
	if inSum < outSum {
		return nil, newRejection(Overspend, txid, -1, "inputs %s < outputs %s", inSum.String(), outSum.String())
	}

	for i := range tx.outputs {
		if u := NewUTXO(txid, uint16(i)); pool.Contains(u) {
			return nil, newRejection(DuplicateUtxo, txid, i, "UTXO %s already in the pool", u.String())
		}
	}

	after := Frozen(pool).Derive()
	for _, u := range utxos {
		after.Remove(u)
	}
	for i := range tx.outputs {
		after.Add(NewUTXO(txid, uint16(i)), &tx.outputs[i])
	}
	return &Validated{
		Tx:       tx,
		Fee:      inSum - outSum,
		Pool:     after.Seal(),
		Consumed: utxos,
	}, nil
}

// IsValid returns true if Validate succeeds
func IsValid(tx *Transaction, pool *Pool, verifier Verifier) bool {
	_, err := Validate(tx, pool, verifier)
	return err == nil
}
