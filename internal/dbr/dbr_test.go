// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package dbr

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestPromoteNativeRoundTrip(t *testing.T) {
	natives := []Native{NSTRING, NINT, NFLOAT, NENUM, NCHAR, NLONG, NDOUBLE}
	variants := []Variant{VNative, VSTS, VTIME, VGR, VCTRL}

	for _, n := range natives {
		for _, variant := range variants {
			promoted := Promote(n, variant)
			require.Equal(t, n, NativeOf(promoted), "native round trip for %v/%v", n, variant)
			require.Equal(t, variant, VariantOf(promoted), "variant round trip for %v/%v", n, variant)
		}
	}
}

func TestTypeTagNumbers(t *testing.T) {
	// Spot-check the numbers spec.md mandates every implementation agree on.
	require.EqualValues(t, 0, STRING)
	require.EqualValues(t, 6, DOUBLE)
	require.EqualValues(t, 20, TIME_DOUBLE)
	require.EqualValues(t, 34, CTRL_DOUBLE)
	require.EqualValues(t, 37, STSACK_STRING)
	require.EqualValues(t, 38, CLASS_NAME)
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 123000, time.UTC)
	ts := FromTime(now)
	got := ToTime(ts)
	require.True(t, now.Equal(got), "got %v want %v", got, now)
}

func TestTimestampPosixRoundTrip(t *testing.T) {
	posix := 1785412345.5
	ts := FromPosix(posix)
	got := ToPosix(ts)
	require.InDelta(t, posix, got, 1e-6)
}

func TestTimeDoubleLayout(t *testing.T) {
	// TIME_DOUBLE has a 4-byte RISC pad before its 8-byte value, per
	// spec.md §3's invariant language and _dbr.py's TimeDouble.
	meta := MetaPrototype(TIME_DOUBLE).(*TimeDoubleMeta)
	meta.Status = 1
	meta.Severity = 2
	meta.Stamp = TimeStamp{Sec: 3, Nsec: 4}

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, meta))
	require.Equal(t, 16, buf.Len(), "status+severity+stamp+pad = 16 bytes before the value")
}

func TestTimeCharLayout(t *testing.T) {
	meta := MetaPrototype(TIME_CHAR).(*TimeCharMeta)
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, meta))
	require.Equal(t, 15, buf.Len(), "status+severity+stamp+2byte pad+1byte pad = 15 bytes before the value")
}

func TestCtrlEnumSharedByGrEnum(t *testing.T) {
	require.IsType(t, &CtrlEnumMeta{}, MetaPrototype(CTRL_ENUM))
	require.IsType(t, &CtrlEnumMeta{}, MetaPrototype(GR_ENUM))
}

func TestValuesRoundTripNumeric(t *testing.T) {
	want := Values{Native: NDOUBLE, Doubles: []float64{3.14, 2.71, -1}}

	var buf bytes.Buffer
	require.NoError(t, EncodeValues(&buf, want))

	got, err := DecodeValues(&buf, NDOUBLE, len(want.Doubles))
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
}

func TestValuesRoundTripString(t *testing.T) {
	want := Values{Native: NSTRING, Strings: []string{"Start", "Stop"}}

	var buf bytes.Buffer
	require.NoError(t, EncodeValues(&buf, want))
	require.Equal(t, MaxStringSize*2, buf.Len())

	got, err := DecodeValues(&buf, NSTRING, 2)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestValuesRoundTripChar(t *testing.T) {
	want := Values{Native: NCHAR, Chars: []byte("waveform\x00tail")}

	var buf bytes.Buffer
	require.NoError(t, EncodeValues(&buf, want))

	got, err := DecodeValues(&buf, NCHAR, len(want.Chars))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
