// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tcpsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caproto/caproto-sub001/internal/caenv"
	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/internal/dbr"
)

func connectedCircuit(t *testing.T) (*Circuit, *Channel) {
	t.Helper()
	c := New(0, caenv.Config{})
	cmds := c.Connect("localhost", "tester")
	require.Len(t, cmds, 3)
	require.Equal(t, AwaitVersion, c.State())

	require.NoError(t, c.Handle(codec.VersionResponse{Version: 13}, Callbacks{}))
	require.Equal(t, Connected, c.State())

	req := c.CreateChannel("IOC:scaler1.VAL")

	var connected *Channel
	require.NoError(t, c.Handle(codec.CreateChanResponse{
		DataType: dbr.DOUBLE, Count: 1, CID: req.CID, SID: 99,
	}, Callbacks{OnChannelConnected: func(ch *Channel) { connected = ch }}))

	require.NotNil(t, connected)
	require.Equal(t, ChanConnected, connected.State)
	return c, connected
}

func TestHandshakeAndChannelCreate(t *testing.T) {
	_, ch := connectedCircuit(t)
	require.EqualValues(t, 99, ch.SID)
	require.Equal(t, dbr.DOUBLE, ch.DataType)
}

func TestReadRoundTrip(t *testing.T) {
	c, ch := connectedCircuit(t)

	req, err := c.Read(ch.CID, dbr.DOUBLE, 1)
	require.NoError(t, err)
	require.EqualValues(t, 99, req.SID)

	var result ReadResult
	require.NoError(t, c.Handle(codec.ReadNotifyResponse{
		DataType: dbr.DOUBLE, Count: 1, Status: 0, IOID: req.IOID,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{1.5}},
	}, Callbacks{OnRead: func(r ReadResult) { result = r }}))

	require.Equal(t, ch.CID, result.CID)
	require.NoError(t, result.Err)
}

func TestReadOnUnconnectedChannelFails(t *testing.T) {
	c := New(0, caenv.Config{})
	_, err := c.Read(1, dbr.DOUBLE, 1)
	require.Error(t, err)
}

func TestCancelledReadIsDrainedSilently(t *testing.T) {
	c, ch := connectedCircuit(t)
	req, err := c.Read(ch.CID, dbr.DOUBLE, 1)
	require.NoError(t, err)

	c.CancelRead(req.IOID)

	called := false
	require.NoError(t, c.Handle(codec.ReadNotifyResponse{
		DataType: dbr.DOUBLE, Count: 1, IOID: req.IOID,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{1}},
	}, Callbacks{OnRead: func(ReadResult) { called = true }}))

	require.False(t, called, "a cancelled read must not deliver to the caller")
}

func TestSubscriptionLifecycle(t *testing.T) {
	c, ch := connectedCircuit(t)

	add, err := c.Subscribe(ch.CID, dbr.DOUBLE, 1, codec.EventMaskValue)
	require.NoError(t, err)

	var events []EventResult
	cb := Callbacks{OnEvent: func(e EventResult) { events = append(events, e) }}

	require.NoError(t, c.Handle(codec.EventAddResponse{
		DataType: dbr.DOUBLE, Count: 1, SubID: add.SubID,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{1}},
	}, cb))
	require.NoError(t, c.Handle(codec.EventAddResponse{
		DataType: dbr.DOUBLE, Count: 1, SubID: add.SubID,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{2}},
	}, cb))
	require.Len(t, events, 2)

	require.NoError(t, c.Handle(codec.EventCancelResponse{DataType: dbr.DOUBLE, SubID: add.SubID}, cb))
	require.NoError(t, c.Handle(codec.EventAddResponse{
		DataType: dbr.DOUBLE, Count: 1, SubID: add.SubID,
		Values: dbr.Values{Native: dbr.NDOUBLE, Doubles: []float64{3}},
	}, cb))
	require.Len(t, events, 2, "events after cancellation must not be delivered")
}

func TestDisconnectDrainsPendingAndClosesChannels(t *testing.T) {
	c, ch := connectedCircuit(t)
	req, err := c.Read(ch.CID, dbr.DOUBLE, 1)
	require.NoError(t, err)

	var readErr error
	var closedChannels []string
	c.Disconnect(Callbacks{
		OnRead:          func(r ReadResult) { readErr = r.Err },
		OnChannelClosed: func(ch *Channel) { closedChannels = append(closedChannels, ch.Name) },
	})

	require.Error(t, readErr)
	require.Equal(t, Disconnected, c.State())
	require.Equal(t, []string{"IOC:scaler1.VAL"}, closedChannels)
	_ = req
}

func TestReadRejectedOverMaxArrayBytes(t *testing.T) {
	c, ch := connectedCircuit(t)
	c.cfg.MaxArrayBytes = 16

	_, err := c.Read(ch.CID, dbr.DOUBLE, 10)
	require.Error(t, err)
}

func TestErrorResponseCorrelatesByIOID(t *testing.T) {
	c, ch := connectedCircuit(t)
	req, err := c.Read(ch.CID, dbr.DOUBLE, 1)
	require.NoError(t, err)

	var result ReadResult
	require.NoError(t, c.Handle(codec.ErrorResponse{
		CID: ch.CID, Status: 1, IOID: req.IOID, Message: "no such record",
	}, Callbacks{OnRead: func(r ReadResult) { result = r }}))

	require.Equal(t, req.IOID, result.IOID)
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "no such record")
}

func TestCreateChanFailClosesChannel(t *testing.T) {
	c := New(0, caenv.Config{})
	c.Connect("localhost", "tester")
	require.NoError(t, c.Handle(codec.VersionResponse{Version: 13}, Callbacks{}))
	req := c.CreateChannel("IOC:missing.VAL")

	var failedName string
	require.NoError(t, c.Handle(codec.CreateChFailResponse{CID: req.CID}, Callbacks{
		OnChannelFailed: func(name string, cid uint32) { failedName = name },
	}))
	require.Equal(t, "IOC:missing.VAL", failedName)
}
