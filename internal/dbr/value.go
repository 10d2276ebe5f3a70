package dbr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Values holds a homogeneous array of native-typed scalars. Exactly one
// of the slices is non-nil, selected by Native.
type Values struct {
	Native  Native
	Strings []string
	Ints    []int16
	Floats  []float32
	Enums   []uint16
	Chars   []byte
	Longs   []int32
	Doubles []float64
}

// Len reports the element count regardless of which slice is populated.
func (v Values) Len() int {
	switch v.Native {
	case NSTRING:
		return len(v.Strings)
	case NINT:
		return len(v.Ints)
	case NFLOAT:
		return len(v.Floats)
	case NENUM:
		return len(v.Enums)
	case NCHAR:
		return len(v.Chars)
	case NLONG:
		return len(v.Longs)
	case NDOUBLE:
		return len(v.Doubles)
	}
	return 0
}

// EncodeValues writes every element of v onto w in wire format: fixed
// 40-byte NUL-padded blocks for strings, big-endian binary for every
// numeric native.
func EncodeValues(w io.Writer, v Values) error {
	switch v.Native {
	case NSTRING:
		for _, s := range v.Strings {
			var buf [MaxStringSize]byte
			n := copy(buf[:], s)
			if n < MaxStringSize {
				buf[n] = 0
			}
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	case NINT:
		return binary.Write(w, binary.BigEndian, v.Ints)
	case NFLOAT:
		return binary.Write(w, binary.BigEndian, v.Floats)
	case NENUM:
		return binary.Write(w, binary.BigEndian, v.Enums)
	case NCHAR:
		_, err := w.Write(v.Chars)
		return err
	case NLONG:
		return binary.Write(w, binary.BigEndian, v.Longs)
	case NDOUBLE:
		return binary.Write(w, binary.BigEndian, v.Doubles)
	}
	return fmt.Errorf("dbr: unknown native type %v", v.Native)
}

// DecodeValues reads count elements of native type n from r.
func DecodeValues(r io.Reader, n Native, count int) (Values, error) {
	v := Values{Native: n}
	switch n {
	case NSTRING:
		v.Strings = make([]string, count)
		for i := range v.Strings {
			var buf [MaxStringSize]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return v, err
			}
			v.Strings[i] = cString(buf[:])
		}
	case NINT:
		v.Ints = make([]int16, count)
		if err := binary.Read(r, binary.BigEndian, v.Ints); err != nil {
			return v, err
		}
	case NFLOAT:
		v.Floats = make([]float32, count)
		if err := binary.Read(r, binary.BigEndian, v.Floats); err != nil {
			return v, err
		}
	case NENUM:
		v.Enums = make([]uint16, count)
		if err := binary.Read(r, binary.BigEndian, v.Enums); err != nil {
			return v, err
		}
	case NCHAR:
		v.Chars = make([]byte, count)
		if _, err := io.ReadFull(r, v.Chars); err != nil {
			return v, err
		}
	case NLONG:
		v.Longs = make([]int32, count)
		if err := binary.Read(r, binary.BigEndian, v.Longs); err != nil {
			return v, err
		}
	case NDOUBLE:
		v.Doubles = make([]float64, count)
		if err := binary.Read(r, binary.BigEndian, v.Doubles); err != nil {
			return v, err
		}
	default:
		return v, fmt.Errorf("dbr: unknown native type %v", n)
	}
	return v, nil
}

// cString trims a NUL-terminated fixed-width byte field to a Go string.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// PutCString copies s into a fixed-width NUL-padded field.
func PutCString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
