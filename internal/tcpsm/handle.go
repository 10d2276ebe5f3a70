// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tcpsm

import (
	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/codec"
)

// ReadResult is delivered once per completed or failed read.
type ReadResult struct {
	CID      uint32
	IOID     uint32
	Metadata interface{}
	Values   interface{}
	Err      error
}

// WriteResult is delivered once per completed or failed write.
type WriteResult struct {
	CID  uint32
	IOID uint32
	Err  error
}

// EventResult is delivered for every EventAddResponse on a live
// subscription; any number may arrive for one subid.
type EventResult struct {
	CID      uint32
	SubID    uint32
	Metadata interface{}
	Values   interface{}
	Err      error
}

// Callbacks are invoked synchronously from Handle, without the
// circuit's lock held, mirroring the per-instance callback design used
// throughout this module in place of global dispatcher state.
type Callbacks struct {
	OnChannelConnected func(ch *Channel)
	OnChannelFailed    func(name string, cid uint32)
	OnChannelClosed     func(ch *Channel)
	OnRead             func(ReadResult)
	OnWrite            func(WriteResult)
	OnEvent            func(EventResult)
}

// Handle processes one command received from the server. It never
// performs I/O; the returned error, when non-nil, is always
// *caerr.RemoteProtocolError and fatal to the circuit.
func (c *Circuit) Handle(cmd codec.Command, cb Callbacks) error {
	switch r := cmd.(type) {
	case codec.VersionResponse:
		c.mu.Lock()
		if c.state == AwaitVersion {
			c.state = Connected
		}
		c.mu.Unlock()
		return nil

	case codec.CreateChanResponse:
		c.mu.Lock()
		ch, ok := c.channels[r.CID]
		if ok {
			ch.SID = r.SID
			ch.DataType = r.DataType
			ch.Count = r.Count
			ch.State = ChanConnected
		}
		c.mu.Unlock()
		if ok && cb.OnChannelConnected != nil {
			cb.OnChannelConnected(ch)
		}
		return nil

	case codec.AccessRightsResponse:
		// Rights accompany CreateChanResponse in either order; this
		// implementation doesn't gate CONNECTED on seeing both, so it
		// is a no-op beyond bookkeeping a driver may add later.
		return nil

	case codec.CreateChFailResponse:
		c.mu.Lock()
		ch, ok := c.channels[r.CID]
		name := ""
		if ok {
			name = ch.Name
			ch.State = ChanClosed
		}
		c.mu.Unlock()
		c.logger.Warn("channel create failed for cid %d (%s)", r.CID, name)
		if cb.OnChannelFailed != nil {
			cb.OnChannelFailed(name, r.CID)
		}
		return nil

	case codec.ServerDisconnResponse:
		c.mu.Lock()
		ch, ok := c.channels[r.CID]
		if ok {
			ch.State = ChanClosed
		}
		c.mu.Unlock()
		if ok && cb.OnChannelClosed != nil {
			cb.OnChannelClosed(ch)
		}
		return nil

	case codec.ReadNotifyResponse:
		c.mu.Lock()
		pio, ok := c.pendingIOs[r.IOID]
		delete(c.pendingIOs, r.IOID)
		_, wasCancelled := c.cancelled[r.IOID]
		delete(c.cancelled, r.IOID)
		c.mu.Unlock()

		if !ok || wasCancelled || cb.OnRead == nil {
			return nil
		}
		cb.OnRead(ReadResult{CID: pio.cid, IOID: r.IOID, Metadata: r.Metadata, Values: r.Values})
		return nil

	case codec.WriteNotifyResponse:
		c.mu.Lock()
		pio, ok := c.pendingIOs[r.IOID]
		delete(c.pendingIOs, r.IOID)
		_, wasCancelled := c.cancelled[r.IOID]
		delete(c.cancelled, r.IOID)
		c.mu.Unlock()

		if !ok || wasCancelled || cb.OnWrite == nil {
			return nil
		}
		var err error
		if r.Status != 0 {
			err = caerr.NewRemoteProtocolError("write failed with status %d", r.Status)
		}
		cb.OnWrite(WriteResult{CID: pio.cid, IOID: r.IOID, Err: err})
		return nil

	case codec.EventAddResponse:
		c.mu.Lock()
		cid, ok := c.subscriptions[r.SubID]
		c.mu.Unlock()

		if !ok || cb.OnEvent == nil {
			return nil
		}
		cb.OnEvent(EventResult{CID: cid, SubID: r.SubID, Metadata: r.Metadata, Values: r.Values})
		return nil

	case codec.EventCancelResponse:
		c.mu.Lock()
		delete(c.subscriptions, r.SubID)
		c.mu.Unlock()
		return nil

	case codec.ErrorResponse:
		c.mu.Lock()
		pio, isIO := c.pendingIOs[r.IOID]
		delete(c.pendingIOs, r.IOID)
		_, wasCancelled := c.cancelled[r.IOID]
		delete(c.cancelled, r.IOID)
		c.mu.Unlock()

		if !isIO || wasCancelled {
			return nil
		}
		err := caerr.NewRemoteProtocolError("%s", r.Message)
		switch pio.kind {
		case ioRead:
			if cb.OnRead != nil {
				cb.OnRead(ReadResult{CID: pio.cid, IOID: r.IOID, Err: err})
			}
		case ioWrite:
			if cb.OnWrite != nil {
				cb.OnWrite(WriteResult{CID: pio.cid, IOID: r.IOID, Err: err})
			}
		}
		return nil

	default:
		return caerr.NewRemoteProtocolError("unexpected command on circuit: %T", cmd)
	}
}

// Disconnect fails every pending IOID with Disconnected, closes every
// channel, drops every subscription, and marks the circuit terminal.
// A reconnect requires a new Circuit.
func (c *Circuit) Disconnect(cb Callbacks) {
	c.mu.Lock()
	c.state = Disconnected
	c.logger.Info("circuit disconnected, draining %d pending ops", len(c.pendingIOs))

	pending := c.pendingIOs
	c.pendingIOs = make(map[uint32]pendingIO)
	c.subscriptions = make(map[uint32]uint32)

	closed := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		if ch.State != ChanClosed {
			ch.State = ChanClosed
			closed = append(closed, ch)
		}
	}
	c.mu.Unlock()

	for ioid, pio := range pending {
		err := caerr.NewDisconnected("")
		switch pio.kind {
		case ioRead:
			if cb.OnRead != nil {
				cb.OnRead(ReadResult{CID: pio.cid, IOID: ioid, Err: err})
			}
		case ioWrite:
			if cb.OnWrite != nil {
				cb.OnWrite(WriteResult{CID: pio.cid, IOID: ioid, Err: err})
			}
		}
	}
	if cb.OnChannelClosed != nil {
		for _, ch := range closed {
			cb.OnChannelClosed(ch)
		}
	}
}
