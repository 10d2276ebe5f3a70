// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package convert implements the from-native-to-native value conversion
// engine every read/write whose requested dtype differs from a
// channel's native dtype must run through.
package convert

import (
	"fmt"
	"math"
	"strconv"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/dbr"
)

// Values converts v (whose Native field names its current type) into
// to, using enumStrings to resolve ENUM<->STRING lookups when either
// side of the conversion is an enum.
func Values(v dbr.Values, to dbr.Native, enumStrings []string) (dbr.Values, error) {
	if v.Native == to {
		return v, nil
	}

	switch v.Native {
	case dbr.NENUM:
		return enumTo(v, to, enumStrings)
	case dbr.NCHAR:
		return charTo(v, to, enumStrings)
	case dbr.NSTRING:
		return stringTo(v, to, enumStrings)
	default:
		return numericTo(v, to)
	}
}

func enumTo(v dbr.Values, to dbr.Native, enumStrings []string) (dbr.Values, error) {
	if to == dbr.NSTRING {
		out := make([]string, len(v.Enums))
		for i, e := range v.Enums {
			if enumStrings != nil && int(e) < len(enumStrings) {
				out[i] = enumStrings[e]
			}
		}
		return dbr.Values{Native: dbr.NSTRING, Strings: out}, nil
	}
	return numericTo(v, to)
}

func charTo(v dbr.Values, to dbr.Native, enumStrings []string) (dbr.Values, error) {
	if to == dbr.NSTRING {
		return dbr.Values{Native: dbr.NSTRING, Strings: []string{trimNUL(v.Chars)}}, nil
	}
	floats := make([]float64, len(v.Chars))
	for i, b := range v.Chars {
		floats[i] = float64(b)
	}
	return castFromFloats(floats, to)
}

func stringTo(v dbr.Values, to dbr.Native, enumStrings []string) (dbr.Values, error) {
	switch to {
	case dbr.NENUM:
		out := make([]uint16, len(v.Strings))
		for i, s := range v.Strings {
			idx := indexOf(enumStrings, s)
			if idx < 0 {
				return dbr.Values{}, caerr.NewConvertError("STRING", "ENUM",
					fmt.Sprintf("%q not found in enum_strings", s))
			}
			out[i] = uint16(idx)
		}
		return dbr.Values{Native: dbr.NENUM, Enums: out}, nil

	case dbr.NCHAR:
		if len(v.Strings) != 1 {
			return dbr.Values{}, caerr.NewConvertError("STRING", "CHAR", "char-array conversion expects exactly one string")
		}
		b := append([]byte(v.Strings[0]), 0)
		return dbr.Values{Native: dbr.NCHAR, Chars: b}, nil

	default:
		floats := make([]float64, len(v.Strings))
		for i, s := range v.Strings {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return dbr.Values{}, caerr.NewConvertError("STRING", to.String(),
					fmt.Sprintf("cannot parse %q as a number", s))
			}
			floats[i] = f
		}
		return castFromFloats(floats, to)
	}
}

func numericTo(v dbr.Values, to dbr.Native) (dbr.Values, error) {
	floats, err := toFloats(v)
	if err != nil {
		return dbr.Values{}, err
	}
	if to == dbr.NSTRING {
		out := make([]string, len(floats))
		for i, f := range floats {
			out[i] = formatFloat(v.Native, f)
		}
		return dbr.Values{Native: dbr.NSTRING, Strings: out}, nil
	}
	if to == dbr.NENUM {
		out := make([]uint16, len(floats))
		for i, f := range floats {
			out[i] = uint16(int64(f))
		}
		return dbr.Values{Native: dbr.NENUM, Enums: out}, nil
	}
	return castFromFloats(floats, to)
}

// toFloats widens any non-string, non-char native slice to float64,
// the common currency every numeric conversion routes through.
func toFloats(v dbr.Values) ([]float64, error) {
	switch v.Native {
	case dbr.NINT:
		out := make([]float64, len(v.Ints))
		for i, x := range v.Ints {
			out[i] = float64(x)
		}
		return out, nil
	case dbr.NFLOAT:
		out := make([]float64, len(v.Floats))
		for i, x := range v.Floats {
			out[i] = float64(x)
		}
		return out, nil
	case dbr.NLONG:
		out := make([]float64, len(v.Longs))
		for i, x := range v.Longs {
			out[i] = float64(x)
		}
		return out, nil
	case dbr.NDOUBLE:
		return v.Doubles, nil
	case dbr.NENUM:
		out := make([]float64, len(v.Enums))
		for i, x := range v.Enums {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, caerr.NewConvertError(v.Native.String(), "numeric", "not a numeric native type")
	}
}

// castFromFloats narrows floats (truncating, never rounding, toward
// zero) into the target native's representation.
func castFromFloats(floats []float64, to dbr.Native) (dbr.Values, error) {
	switch to {
	case dbr.NINT:
		out := make([]int16, len(floats))
		for i, f := range floats {
			out[i] = int16(math.Trunc(f))
		}
		return dbr.Values{Native: dbr.NINT, Ints: out}, nil
	case dbr.NFLOAT:
		out := make([]float32, len(floats))
		for i, f := range floats {
			out[i] = float32(f)
		}
		return dbr.Values{Native: dbr.NFLOAT, Floats: out}, nil
	case dbr.NLONG:
		out := make([]int32, len(floats))
		for i, f := range floats {
			out[i] = int32(math.Trunc(f))
		}
		return dbr.Values{Native: dbr.NLONG, Longs: out}, nil
	case dbr.NDOUBLE:
		return dbr.Values{Native: dbr.NDOUBLE, Doubles: floats}, nil
	case dbr.NCHAR:
		out := make([]byte, len(floats))
		for i, f := range floats {
			out[i] = byte(int64(math.Trunc(f)))
		}
		return dbr.Values{Native: dbr.NCHAR, Chars: out}, nil
	default:
		return dbr.Values{}, caerr.NewConvertError("numeric", to.String(), "unsupported numeric target")
	}
}

func formatFloat(from dbr.Native, f float64) string {
	if from == dbr.NFLOAT || from == dbr.NDOUBLE {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatInt(int64(f), 10)
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

func trimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
