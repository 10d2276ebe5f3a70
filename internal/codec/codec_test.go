// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package codec

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caproto/caproto-sub001/internal/dbr"
)

func roundTrip(t *testing.T, cmd Command, role Role) Command {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, EncodeCommand(&buf, cmd))
	require.Zero(t, buf.Len()%8, "payload must be padded to a multiple of 8")

	got, err := ReadCommand(bufio.NewReader(&buf), role)
	require.NoError(t, err)
	return got
}

func TestVersionRoundTrip(t *testing.T) {
	req := VersionRequest{Priority: 5, Version: 13}
	require.Equal(t, req, roundTrip(t, req, RoleServer))

	resp := VersionResponse{Version: 13}
	require.Equal(t, resp, roundTrip(t, resp, RoleClient))
}

func TestCreateChanRoundTrip(t *testing.T) {
	req := CreateChanRequest{CID: 7, Version: 13, Name: "IOC:scaler1.VAL"}
	require.Equal(t, req, roundTrip(t, req, RoleServer))

	resp := CreateChanResponse{DataType: dbr.DOUBLE, Count: 1, CID: 7, SID: 42}
	require.Equal(t, resp, roundTrip(t, resp, RoleClient))
}

func TestSearchRoundTrip(t *testing.T) {
	req := SearchRequest{CID: 3, MinorVersion: 13, ReplyPolicy: SearchDoReply, Name: "IOC:scaler1.VAL"}
	require.Equal(t, req, roundTrip(t, req, RoleServer))

	resp := SearchResponse{CID: 3, Port: 5064, Addr: 0}
	require.Equal(t, resp, roundTrip(t, resp, RoleClient))
}

func TestReadNotifyRoundTrip(t *testing.T) {
	req := ReadNotifyRequest{DataType: dbr.DOUBLE, Count: 1, SID: 42, IOID: 9}
	require.Equal(t, req, roundTrip(t, req, RoleServer))

	meta := dbr.MetaPrototype(dbr.TIME_DOUBLE).(*dbr.TimeDoubleMeta)
	meta.Status = 0
	meta.Severity = 0
	meta.Stamp = dbr.TimeStamp{Sec: 100, Nsec: 200}
	resp := ReadNotifyResponse{
		DataType: dbr.TIME_DOUBLE,
		Count:    1,
		Status:   0,
		IOID:     9,
		Metadata: meta,
		Values:   dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{3.14}},
	}
	got := roundTrip(t, resp, RoleClient).(ReadNotifyResponse)
	require.Equal(t, resp.Values, got.Values)
	require.Equal(t, meta, got.Metadata)
}

func TestWriteNotifyRoundTrip(t *testing.T) {
	req := WriteNotifyRequest{
		DataType: dbr.DOUBLE,
		Count:    1,
		SID:      42,
		IOID:     9,
		Values:   dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{2.5}},
	}
	got := roundTrip(t, req, RoleServer).(WriteNotifyRequest)
	require.Equal(t, req.Values, got.Values)
	require.Equal(t, req.SID, got.SID)
	require.Equal(t, req.IOID, got.IOID)

	resp := WriteNotifyResponse{Status: 1, IOID: 9}
	require.Equal(t, resp, roundTrip(t, resp, RoleClient))
}

func TestEventAddRoundTrip(t *testing.T) {
	req := EventAddRequest{DataType: uint16(dbr.DOUBLE), Count: 1, SID: 42, SubID: 3, Mask: EventMaskValue | EventMaskAlarm}
	require.Equal(t, req, roundTrip(t, req, RoleServer))

	cancel := EventCancelRequest{DataType: dbr.DOUBLE, Count: 1, SID: 42, SubID: 3}
	require.Equal(t, cancel, roundTrip(t, cancel, RoleServer))
}

func TestErrorResponseRoundTrip(t *testing.T) {
	resp := ErrorResponse{CID: 7, Status: 1, IOID: 9, Message: "virtual circuit disconnect"}
	require.Equal(t, resp, roundTrip(t, resp, RoleClient))
}

func TestExtendedHeaderForLargePayload(t *testing.T) {
	count := 20000
	values := make([]float64, count)
	req := WriteNotifyRequest{
		DataType: dbr.DOUBLE,
		Count:    uint32(count),
		SID:      1,
		IOID:     2,
		Values:   dbr.Values{Native: dbr.NDOUBLE, Doubles: values},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeCommand(&buf, req))

	h, consumed, err := DecodeHeader(bufio.NewReader(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)
	require.True(t, h.Extended)
	require.Equal(t, 24, consumed)
	require.EqualValues(t, count, h.DataCount)
}
