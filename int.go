package utxobatch

import (
	"encoding/binary"
	"fmt"
)

// all integers in canonical encodings are big-endian
var byteOrder = binary.BigEndian

type Integer interface {
	uint8 | uint16 | uint32 | uint64 | int64
}

// EncodeInteger returns fixed size big-endian representation of the integer
func EncodeInteger[T Integer](v T) []byte {
	switch x := any(v).(type) {
	case uint8:
		return []byte{x}
	case uint16:
		var ret [2]byte
		byteOrder.PutUint16(ret[:], x)
		return ret[:]
	case uint32:
		var ret [4]byte
		byteOrder.PutUint32(ret[:], x)
		return ret[:]
	case uint64:
		var ret [8]byte
		byteOrder.PutUint64(ret[:], x)
		return ret[:]
	case int64:
		var ret [8]byte
		byteOrder.PutUint64(ret[:], uint64(x))
		return ret[:]
	}
	panic("EncodeInteger: unsupported type")
}

// DecodeInteger is the inverse of EncodeInteger. The data must be of the exact size
func DecodeInteger[T Integer](data []byte) (T, error) {
	var ret T
	var err error
	switch p := any(&ret).(type) {
	case *uint8:
		if err = checkSize(data, 1); err == nil {
			*p = data[0]
		}
	case *uint16:
		if err = checkSize(data, 2); err == nil {
			*p = byteOrder.Uint16(data)
		}
	case *uint32:
		if err = checkSize(data, 4); err == nil {
			*p = byteOrder.Uint32(data)
		}
	case *uint64:
		if err = checkSize(data, 8); err == nil {
			*p = byteOrder.Uint64(data)
		}
	case *int64:
		if err = checkSize(data, 8); err == nil {
			*p = int64(byteOrder.Uint64(data))
		}
	}
	return ret, err
}

// MustDecodeInteger panics on wrong data size
func MustDecodeInteger[T Integer](data []byte) T {
	ret, err := DecodeInteger[T](data)
	if err != nil {
		panic(err)
	}
	return ret
}

func checkSize(data []byte, size int) error {
	if len(data) != size {
		return fmt.Errorf("wrong data size: expected %d, got %d", size, len(data))
	}
	return nil
}
