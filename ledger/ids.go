package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/lunfardo314/easyfl"
	"github.com/lunfardo314/utxobatch"
)

const (
	TransactionIDLength = 32
	UTXOLength          = TransactionIDLength + 2
)

type (
	TransactionID [TransactionIDLength]byte

	// UTXO identifies one spendable output: id of the producing transaction and the output index.
	// Fixed size array, so it is comparable and can be used as a map key
	UTXO [UTXOLength]byte
)

func TransactionIDFromBytes(data []byte) (ret TransactionID, err error) {
	if len(data) != TransactionIDLength {
		err = errors.New("TransactionIDFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func (txid *TransactionID) Bytes() []byte {
	return txid[:]
}

func (txid TransactionID) String() string {
	return easyfl.Fmt(txid[:])
}

// Short is a prefix of the id, for logging
func (txid TransactionID) Short() string {
	return easyfl.Fmt(txid[:4])
}

func (txid TransactionID) Compare(other TransactionID) int {
	return bytes.Compare(txid[:], other[:])
}

func NewUTXO(id TransactionID, idx uint16) (ret UTXO) {
	copy(ret[:TransactionIDLength], id[:])
	copy(ret[TransactionIDLength:], utxobatch.EncodeInteger(idx))
	return
}

func UTXOFromBytes(data []byte) (ret UTXO, err error) {
	if len(data) != UTXOLength {
		err = errors.New("UTXOFromBytes: wrong data length")
		return
	}
	copy(ret[:], data)
	return
}

func (u UTXO) TransactionID() (ret TransactionID) {
	copy(ret[:], u[:TransactionIDLength])
	return
}

func (u UTXO) Index() uint16 {
	return utxobatch.MustDecodeInteger[uint16](u[TransactionIDLength:])
}

func (u *UTXO) Bytes() []byte {
	return u[:]
}

func (u UTXO) String() string {
	return fmt.Sprintf("[%d]%s", u.Index(), u.TransactionID().String())
}

// Compare orders UTXOs by transaction id, then by index
func (u UTXO) Compare(other UTXO) int {
	return bytes.Compare(u[:], other[:])
}
