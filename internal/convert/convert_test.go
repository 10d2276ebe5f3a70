// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package convert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caproto/caproto-sub001/internal/dbr"
)

func TestNumericToNumericTruncates(t *testing.T) {
	v := dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{3.9, -3.9}}
	got, err := Values(v, dbr.NLONG, nil)
	require.NoError(t, err)
	require.Equal(t, []int32{3, -3}, got.Longs)
}

func TestStringToNumericParseFailure(t *testing.T) {
	v := dbr.Values{Native: dbr.NSTRING, Strings: []string{"not-a-number"}}
	_, err := Values(v, dbr.NDOUBLE, nil)
	require.Error(t, err)
}

func TestStringToEnumLookup(t *testing.T) {
	enumStrings := []string{"Off", "On"}
	v := dbr.Values{Native: dbr.NSTRING, Strings: []string{"On"}}
	got, err := Values(v, dbr.NENUM, enumStrings)
	require.NoError(t, err)
	require.Equal(t, []uint16{1}, got.Enums)
}

func TestStringToEnumMissing(t *testing.T) {
	enumStrings := []string{"Off", "On"}
	v := dbr.Values{Native: dbr.NSTRING, Strings: []string{"Unknown"}}
	_, err := Values(v, dbr.NENUM, enumStrings)
	require.Error(t, err)
}

func TestEnumToString(t *testing.T) {
	enumStrings := []string{"Off", "On"}
	v := dbr.Values{Native: dbr.NENUM, Enums: []uint16{1}}
	got, err := Values(v, dbr.NSTRING, enumStrings)
	require.NoError(t, err)
	require.Equal(t, []string{"On"}, got.Strings)
}

func TestEnumToStringOutOfRange(t *testing.T) {
	v := dbr.Values{Native: dbr.NENUM, Enums: []uint16{9}}
	got, err := Values(v, dbr.NSTRING, []string{"Off", "On"})
	require.NoError(t, err)
	require.Equal(t, []string{""}, got.Strings)
}

func TestCharArrayToString(t *testing.T) {
	v := dbr.Values{Native: dbr.NCHAR, Chars: []byte("waveform\x00")}
	got, err := Values(v, dbr.NSTRING, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"waveform"}, got.Strings)
}

func TestStringToCharArray(t *testing.T) {
	v := dbr.Values{Native: dbr.NSTRING, Strings: []string{"hi"}}
	got, err := Values(v, dbr.NCHAR, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hi\x00"), got.Chars)
}

func TestSameTypeNoOp(t *testing.T) {
	v := dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{1, 2}}
	got, err := Values(v, dbr.NDOUBLE, nil)
	require.NoError(t, err)
	require.Equal(t, v, got)
}
