// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package tcpsm implements the circuit state machine that drives one
// TCP connection to one server at one priority: the client handshake,
// channel lifecycle, ioid/subid correlation tables, and disconnect
// fan-out. It owns no socket; a driver feeds it bytes and transmits
// whatever it returns.
package tcpsm

import (
	"sync"

	"github.com/caproto/caproto-sub001/internal/caenv"
	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/internal/dbr"
	"github.com/caproto/caproto-sub001/pkg/calog"
)

// CircuitState is the lifecycle of the TCP connection itself.
type CircuitState int

const (
	SendSearch CircuitState = iota
	AwaitVersion
	Connected
	Disconnected
)

// ChannelState is the lifecycle of one channel (PV) on a circuit.
type ChannelState int

const (
	ChanNever ChannelState = iota
	ChanSendCreate
	ChanAwaitCreateResponse
	ChanConnected
	ChanMustClose
	ChanClosed
)

// ioKind distinguishes what a pending ioid is waiting for.
type ioKind int

const (
	ioRead ioKind = iota
	ioWrite
)

type pendingIO struct {
	cid  uint32
	kind ioKind
}

// Channel tracks one named PV's client-side state on a circuit.
type Channel struct {
	Name     string
	CID      uint32
	SID      uint32
	DataType dbr.Type
	Count    uint32
	State    ChannelState
}

// Circuit is the client-role circuit state machine for one TCP
// connection at one priority. All mutation happens through its
// exported methods; none of them perform I/O themselves.
type Circuit struct {
	mu sync.Mutex

	priority uint16
	state    CircuitState
	eventsOn bool

	nextCID  uint32
	nextIOID uint32
	nextSub  uint32

	channels      map[uint32]*Channel // cid -> channel
	channelByName map[string]*Channel

	pendingIOs    map[uint32]pendingIO    // ioid -> (cid, kind)
	subscriptions map[uint32]uint32       // subid -> cid
	cancelled     map[uint32]struct{}     // ioids discarded by the caller but still owed a reply

	cfg    caenv.Config
	logger *calog.Logger
}

// New constructs a circuit in SEND_SEARCH, ready to begin the client
// handshake once the TCP connection is established. cfg supplies the
// EPICS_CA_MAX_ARRAY_BYTES ceiling Read enforces; the zero Config
// disables the check.
func New(priority uint16, cfg caenv.Config) *Circuit {
	return &Circuit{
		priority:      priority,
		state:         SendSearch,
		eventsOn:      true,
		channels:      make(map[uint32]*Channel),
		channelByName: make(map[string]*Channel),
		pendingIOs:    make(map[uint32]pendingIO),
		subscriptions: make(map[uint32]uint32),
		cancelled:     make(map[uint32]struct{}),
		cfg:           cfg,
	}
}

// SetLogger attaches the per-instance logger calls below report
// connect/disconnect and channel-create-failure events to. A nil logger (the
// default) discards everything.
func (c *Circuit) SetLogger(l *calog.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

// State reports the circuit's connection lifecycle state.
func (c *Circuit) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect produces the initial client handshake: VersionRequest,
// HostNameRequest, ClientNameRequest, and transitions to AWAIT_VERSION.
func (c *Circuit) Connect(host, client string) []codec.Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = AwaitVersion
	c.logger.Info("connecting to %s as %s at priority %d", host, client, c.priority)
	return []codec.Command{
		codec.VersionRequest{Priority: c.priority, Version: 13},
		codec.HostNameRequest{Name: host},
		codec.ClientNameRequest{Name: client},
	}
}

// CreateChannel allocates a cid, registers the channel as
// SEND_CREATE/AWAIT_CREATE_RESPONSE, and returns the CreateChanRequest
// to transmit.
func (c *Circuit) CreateChannel(name string) codec.CreateChanRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextCID++
	cid := c.nextCID
	ch := &Channel{Name: name, CID: cid, State: ChanSendCreate}
	c.channels[cid] = ch
	c.channelByName[name] = ch

	return codec.CreateChanRequest{CID: cid, Version: 13, Name: name}
}

// Read allocates an ioid and returns the ReadNotifyRequest to
// transmit, failing with LocalProtocolError if the channel isn't
// CONNECTED.
func (c *Circuit) Read(cid uint32, dataType dbr.Type, count uint32) (codec.ReadNotifyRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.connectedChannel(cid)
	if err != nil {
		return codec.ReadNotifyRequest{}, err
	}

	if c.cfg.MaxArrayBytes > 0 {
		if size := int(count) * dbr.NativeSize(dbr.NativeOf(dataType)); size > c.cfg.MaxArrayBytes {
			return codec.ReadNotifyRequest{}, caerr.NewLocalProtocolError(
				"read of %d bytes on %q exceeds EPICS_CA_MAX_ARRAY_BYTES=%d", size, ch.Name, c.cfg.MaxArrayBytes)
		}
	}

	c.nextIOID++
	ioid := c.nextIOID
	c.pendingIOs[ioid] = pendingIO{cid: ch.CID, kind: ioRead}

	return codec.ReadNotifyRequest{DataType: dataType, Count: count, SID: ch.SID, IOID: ioid}, nil
}

// Write allocates an ioid and returns the WriteNotifyRequest to
// transmit.
func (c *Circuit) Write(cid uint32, req codec.WriteNotifyRequest) (codec.WriteNotifyRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.connectedChannel(cid)
	if err != nil {
		return codec.WriteNotifyRequest{}, err
	}

	c.nextIOID++
	ioid := c.nextIOID
	c.pendingIOs[ioid] = pendingIO{cid: ch.CID, kind: ioWrite}

	req.SID = ch.SID
	req.IOID = ioid
	return req, nil
}

// Subscribe allocates a subid and returns the EventAddRequest to
// transmit. The subscription stays live until Handle observes an
// EventCancelResponse for its subid.
func (c *Circuit) Subscribe(cid uint32, dataType dbr.Type, count uint32, mask uint16) (codec.EventAddRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.connectedChannel(cid)
	if err != nil {
		return codec.EventAddRequest{}, err
	}

	c.nextSub++
	subid := c.nextSub
	c.subscriptions[subid] = ch.CID

	return codec.EventAddRequest{DataType: uint16(dataType), Count: count, SID: ch.SID, SubID: subid, Mask: mask}, nil
}

// CancelRead discards the caller's interest in ioid without removing
// it from pendingIOs: the server will still send a response and the
// circuit must drain it silently, per the cancellation invariant.
func (c *Circuit) CancelRead(ioid uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled[ioid] = struct{}{}
}

// EventsOff/EventsOn toggle the per-circuit subscription flow-control
// commands 8/9.
func (c *Circuit) EventsOff() codec.EventsOffRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsOn = false
	return codec.EventsOffRequest{}
}

func (c *Circuit) EventsOn() codec.EventsOnRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsOn = true
	return codec.EventsOnRequest{}
}

// EventsEnabled reports whether the circuit currently expects
// subscription responses to be delivered by the server.
func (c *Circuit) EventsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventsOn
}

func (c *Circuit) connectedChannel(cid uint32) (*Channel, error) {
	ch, ok := c.channels[cid]
	if !ok {
		return nil, caerr.NewLocalProtocolError("no such channel cid %d", cid)
	}
	if ch.State != ChanConnected {
		return nil, caerr.NewLocalProtocolError("channel %q is not connected (state %d)", ch.Name, ch.State)
	}
	return ch, nil
}
