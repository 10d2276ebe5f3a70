// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tcpsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/internal/dbr"
	"github.com/caproto/caproto-sub001/internal/pvdb"
)

func newServerCircuitWithChannel(t *testing.T) (*ServerCircuit, *pvdb.Channel) {
	t.Helper()
	db := pvdb.NewDatabase()
	ch := pvdb.New("IOC:scaler1.VAL", dbr.NDOUBLE, dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{1.5}}, nil)
	db.Add(ch)
	return NewServerCircuit(db), ch
}

func TestServerCreateChanUnknownNameFails(t *testing.T) {
	s, _ := newServerCircuitWithChannel(t)
	resp, err := s.Dispatch(codec.CreateChanRequest{CID: 1, Version: 13, Name: "IOC:missing.VAL"})
	require.NoError(t, err)
	require.Equal(t, []codec.Command{codec.CreateChFailResponse{CID: 1}}, resp)
}

func TestServerCreateChanReadWriteRoundTrip(t *testing.T) {
	s, _ := newServerCircuitWithChannel(t)

	resp, err := s.Dispatch(codec.CreateChanRequest{CID: 1, Version: 13, Name: "IOC:scaler1.VAL"})
	require.NoError(t, err)
	require.Len(t, resp, 2)
	created := resp[0].(codec.CreateChanResponse)
	require.Equal(t, dbr.DOUBLE, created.DataType)
	require.EqualValues(t, 1, created.Count)
	sid := created.SID

	resp, err = s.Dispatch(codec.ReadNotifyRequest{DataType: dbr.DOUBLE, Count: 1, SID: sid, IOID: 9})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	readResp := resp[0].(codec.ReadNotifyResponse)
	require.Equal(t, uint32(9), readResp.IOID)
	require.Equal(t, []float64{1.5}, readResp.Values.Doubles)

	resp, err = s.Dispatch(codec.WriteNotifyRequest{
		DataType: dbr.DOUBLE, Count: 1, SID: sid, IOID: 10,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{7.25}},
	})
	require.NoError(t, err)
	require.Equal(t, []codec.Command{codec.WriteNotifyResponse{Status: 0, IOID: 10}}, resp)

	resp, err = s.Dispatch(codec.ReadNotifyRequest{DataType: dbr.DOUBLE, Count: 1, SID: sid, IOID: 11})
	require.NoError(t, err)
	require.Equal(t, []float64{7.25}, resp[0].(codec.ReadNotifyResponse).Values.Doubles)
}

func TestServerReadOnUnknownSIDReturnsErrorResponse(t *testing.T) {
	s, _ := newServerCircuitWithChannel(t)
	resp, err := s.Dispatch(codec.ReadNotifyRequest{DataType: dbr.DOUBLE, Count: 1, SID: 999, IOID: 1})
	require.NoError(t, err)
	require.Equal(t, uint32(1), resp[0].(codec.ErrorResponse).IOID)
}

func TestServerReadForbiddenReturnsErrorResponse(t *testing.T) {
	s, ch := newServerCircuitWithChannel(t)
	ch.SetCheckAccess(func(string, string) pvdb.AccessRights { return pvdb.NoAccess })

	resp, err := s.Dispatch(codec.CreateChanRequest{CID: 1, Version: 13, Name: "IOC:scaler1.VAL"})
	require.NoError(t, err)
	sid := resp[0].(codec.CreateChanResponse).SID

	resp, err = s.Dispatch(codec.ReadNotifyRequest{DataType: dbr.DOUBLE, Count: 1, SID: sid, IOID: 5})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	_, ok := resp[0].(codec.ErrorResponse)
	require.True(t, ok, "a forbidden read must surface as an ErrorResponse")
}

func TestServerEventAddEmitsFirstReadingThenDrainsLaterWrites(t *testing.T) {
	s, _ := newServerCircuitWithChannel(t)

	resp, err := s.Dispatch(codec.CreateChanRequest{CID: 1, Version: 13, Name: "IOC:scaler1.VAL"})
	require.NoError(t, err)
	sid := resp[0].(codec.CreateChanResponse).SID

	resp, err = s.Dispatch(codec.EventAddRequest{
		DataType: uint16(dbr.DOUBLE), Count: 1, SID: sid, SubID: 1, Mask: codec.EventMaskValue,
	})
	require.NoError(t, err)
	require.Len(t, resp, 1, "EventAddRequest must reply with the first reading immediately")
	added := resp[0].(codec.EventAddResponse)
	require.Equal(t, []float64{1.5}, added.Values.Doubles)

	require.Empty(t, s.DrainEvents(), "no write has happened yet")

	_, err = s.Dispatch(codec.WriteNotifyRequest{
		DataType: dbr.DOUBLE, Count: 1, SID: sid, IOID: 2,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{42}},
	})
	require.NoError(t, err)

	events := s.DrainEvents()
	require.Len(t, events, 1)
	require.Equal(t, []float64{42}, events[0].(codec.EventAddResponse).Values.Doubles)
	require.Equal(t, added.SubID, events[0].(codec.EventAddResponse).SubID)

	resp, err = s.Dispatch(codec.EventCancelRequest{DataType: dbr.DOUBLE, SID: sid, SubID: added.SubID})
	require.NoError(t, err)
	require.Equal(t, []codec.Command{codec.EventCancelResponse{DataType: dbr.DOUBLE, SubID: added.SubID}}, resp)

	_, err = s.Dispatch(codec.WriteNotifyRequest{
		DataType: dbr.DOUBLE, Count: 1, SID: sid, IOID: 3,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{99}},
	})
	require.NoError(t, err)
	require.Empty(t, s.DrainEvents(), "a cancelled subscription must not receive further events")
}
