package lazyslice

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/lunfardo314/utxobatch"
)

// Array can be interpreted two ways:
// - as byte slice
// - as serialized array of up to MaxArrayLen byte slices
// Serialization is canonical: the width of the element length prefix is the minimal one
// which fits the longest element
type Array struct {
	bytes          []byte
	parsed         [][]byte
	maxNumElements int
}

type lenPrefixType uint16

// prefix of the serialized array are two bytes interpreted as uint16
// The highest 2 bits are interpreted as 4 possible DataLenBytes (0, 1, 2 and 4 bytes)
// The rest is the number of elements in the array
const (
	DataLenBytes0  = uint16(0x00) << 14
	DataLenBytes8  = uint16(0x01) << 14
	DataLenBytes16 = uint16(0x02) << 14
	DataLenBytes32 = uint16(0x03) << 14

	DataLenMask  = uint16(0x03) << 14
	ArrayLenMask = ^DataLenMask
	MaxArrayLen  = int(ArrayLenMask) // 16383

	emptyArrayPrefix = lenPrefixType(0)
)

func (dl lenPrefixType) DataLenBytes() int {
	switch uint16(dl) & DataLenMask {
	case DataLenBytes0:
		return 0
	case DataLenBytes8:
		return 1
	case DataLenBytes16:
		return 2
	}
	return 4
}

func (dl lenPrefixType) NumElements() int {
	return int(uint16(dl) & ArrayLenMask)
}

func (dl lenPrefixType) Bytes() []byte {
	return utxobatch.EncodeInteger(uint16(dl))
}

// ArrayFromBytes wraps serialized data. Parsing is lazy, so wrong data panics only on access.
// Use ParseArray to check validity upfront
func ArrayFromBytes(data []byte, maxNumElements ...int) *Array {
	mx := MaxArrayLen
	if len(maxNumElements) > 0 {
		mx = maxNumElements[0]
	}
	return &Array{
		bytes:          data,
		maxNumElements: mx,
	}
}

// ParseArray parses data eagerly and returns error if data is not a canonical array
func ParseArray(data []byte, maxNumElements ...int) (*Array, error) {
	ret := ArrayFromBytes(data, maxNumElements...)
	var err error
	if ret.parsed, err = parseArray(data, ret.maxNumElements); err != nil {
		return nil, err
	}
	if !bytes.Equal(mustEncode(ret.parsed), data) {
		return nil, errors.New("ParseArray: non-canonical encoding")
	}
	return ret, nil
}

func EmptyArray(maxNumElements ...int) *Array {
	return ArrayFromBytes(emptyArrayPrefix.Bytes(), maxNumElements...)
}

// MakeArray creates array from elements. Elements may be []byte, *Array or nil
func MakeArray(elems ...interface{}) *Array {
	ret := EmptyArray()
	for _, e := range elems {
		switch d := e.(type) {
		case nil:
			ret.Push(nil)
		case []byte:
			ret.Push(d)
		case *Array:
			ret.Push(d.Bytes())
		default:
			panic(fmt.Sprintf("MakeArray: unsupported element type %T", e))
		}
	}
	return ret
}

func (a *Array) IsEmpty() bool {
	return a.NumElements() == 0
}

func (a *Array) Push(data []byte) int {
	a.ensureParsed()
	if len(a.parsed) >= a.maxNumElements {
		panic("Array.Push: too many elements")
	}
	a.parsed = append(a.parsed, data)
	a.bytes = nil // invalidate bytes
	return len(a.parsed) - 1
}

func (a *Array) ForEach(fun func(i int, data []byte) bool) {
	for i := 0; i < a.NumElements(); i++ {
		if !fun(i, a.At(i)) {
			break
		}
	}
}

func (a *Array) ensureParsed() {
	if a.parsed != nil {
		return
	}
	var err error
	a.parsed, err = parseArray(a.bytes, a.maxNumElements)
	if err != nil {
		panic(err)
	}
}

func (a *Array) ensureBytes() {
	if a.bytes != nil || a.parsed == nil {
		return
	}
	a.bytes = mustEncode(a.parsed)
}

func (a *Array) At(idx int) []byte {
	a.ensureParsed()
	return a.parsed[idx]
}

func (a *Array) NumElements() int {
	a.ensureParsed()
	return len(a.parsed)
}

func (a *Array) Bytes() []byte {
	a.ensureBytes()
	return a.bytes
}

func mustEncode(data [][]byte) []byte {
	var buf bytes.Buffer
	if err := encodeArray(data, &buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func calcLenPrefix(data [][]byte) (lenPrefixType, error) {
	if len(data) > MaxArrayLen {
		return 0, errors.New("too many elements")
	}
	if len(data) == 0 {
		return emptyArrayPrefix, nil
	}
	var dl uint16
	var t uint16
	for _, d := range data {
		t = DataLenBytes0
		switch {
		case len(d) > math.MaxUint32:
			return 0, errors.New("data can't be longer that MaxUint32")
		case len(d) > math.MaxUint16:
			t = DataLenBytes32
		case len(d) > math.MaxUint8:
			t = DataLenBytes16
		case len(d) > 0:
			t = DataLenBytes8
		}
		if dl < t {
			dl = t
		}
	}
	return lenPrefixType(dl | uint16(len(data))), nil
}

func writeData(data [][]byte, numDataLenBytes int, w io.Writer) error {
	if numDataLenBytes == 0 {
		return nil // all empty
	}
	for _, d := range data {
		var prefix []byte
		switch numDataLenBytes {
		case 1:
			prefix = utxobatch.EncodeInteger(uint8(len(d)))
		case 2:
			prefix = utxobatch.EncodeInteger(uint16(len(d)))
		case 4:
			prefix = utxobatch.EncodeInteger(uint32(len(d)))
		}
		if _, err := w.Write(prefix); err != nil {
			return err
		}
		if _, err := w.Write(d); err != nil {
			return err
		}
	}
	return nil
}

// decodeElement 'reads' element without memory allocation, just cutting a slice
// from the data. Suitable for immutable data
func decodeElement(buf []byte, numDataLenBytes int) ([]byte, []byte, error) {
	if len(buf) < numDataLenBytes {
		return nil, nil, io.ErrUnexpectedEOF
	}
	var sz int
	switch numDataLenBytes {
	case 0:
		sz = 0
	case 1:
		sz = int(buf[0])
	case 2:
		sz = int(utxobatch.MustDecodeInteger[uint16](buf[:2]))
	case 4:
		sz = int(utxobatch.MustDecodeInteger[uint32](buf[:4]))
	default:
		return nil, nil, errors.New("wrong lenPrefixType value")
	}
	if len(buf) < numDataLenBytes+sz {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return buf[numDataLenBytes+sz:], buf[numDataLenBytes : numDataLenBytes+sz], nil
}

// decodeData decodes by splitting into slices, reusing the same underlying array
func decodeData(data []byte, numDataLenBytes int, n int) ([][]byte, error) {
	ret := make([][]byte, n)
	var err error
	for i := 0; i < n; i++ {
		data, ret[i], err = decodeElement(data, numDataLenBytes)
		if err != nil {
			return nil, err
		}
	}
	if len(data) != 0 {
		return nil, errors.New("serialization error: not all bytes were consumed")
	}
	return ret, nil
}

func encodeArray(data [][]byte, w io.Writer) error {
	prefix, err := calcLenPrefix(data)
	if err != nil {
		return err
	}
	if _, err = w.Write(prefix.Bytes()); err != nil {
		return err
	}
	return writeData(data, prefix.DataLenBytes(), w)
}

func parseArray(data []byte, maxNumElements int) ([][]byte, error) {
	if len(data) < 2 {
		return nil, io.ErrUnexpectedEOF
	}
	prefix := lenPrefixType(utxobatch.MustDecodeInteger[uint16](data[:2]))
	if prefix.NumElements() > maxNumElements {
		return nil, fmt.Errorf("parseArray: number of elements in the prefix %d is larger than maxNumElements %d ",
			prefix.NumElements(), maxNumElements)
	}
	return decodeData(data[2:], prefix.DataLenBytes(), prefix.NumElements())
}
