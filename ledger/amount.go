package ledger

import (
	"fmt"
	"math"

	"github.com/lunfardo314/utxobatch"
)

// Amount is a fixed-point value in base units. It is signed so that malformed
// negative outputs can be represented and rejected
type Amount int64

const AmountUnitsPerCoin = Amount(100_000_000)

func AmountFromBytes(data []byte) (Amount, error) {
	ret, err := utxobatch.DecodeInteger[int64](data)
	if err != nil {
		return 0, fmt.Errorf("AmountFromBytes: %w", err)
	}
	return Amount(ret), nil
}

func (a Amount) Bytes() []byte {
	return utxobatch.EncodeInteger(int64(a))
}

func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		if v == math.MinInt64 {
			return fmt.Sprintf("-%d.%08d", uint64(v)/uint64(AmountUnitsPerCoin), uint64(v)%uint64(AmountUnitsPerCoin))
		}
		v = -v
	}
	return fmt.Sprintf("%s%d.%08d", sign, v/int64(AmountUnitsPerCoin), v%int64(AmountUnitsPerCoin))
}

// AddChecked returns a+b and false if the sum overflows
func (a Amount) AddChecked(b Amount) (Amount, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}
