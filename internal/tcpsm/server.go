// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package tcpsm

import (
	"sync"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/internal/dbr"
	"github.com/caproto/caproto-sub001/internal/filter"
	"github.com/caproto/caproto-sub001/internal/pvdb"
	"github.com/caproto/caproto-sub001/pkg/calog"
)

// serverChannel is one cid's binding to a PV on a server circuit: the
// sid the server assigned at CreateChanResponse time, the underlying
// database channel, and the filter chain parsed from the wire name's
// "[slice]"/".{json}" suffix, per spec.md §4.6.
type serverChannel struct {
	cid     uint32
	sid     uint32
	ch      *pvdb.Channel
	filters []filter.Filter
}

// ServerCircuit is the server-role circuit state machine for one TCP
// connection: it decodes client requests, dispatches them against a
// pvdb.Database, and returns the wire response(s) to transmit. Like
// Circuit, it owns no socket and performs no I/O.
type ServerCircuit struct {
	mu sync.Mutex

	db *pvdb.Database

	host, user string

	nextSID    uint32
	nextSubID  uint32
	channels   map[uint32]*serverChannel // cid -> channel
	bySID      map[uint32]*serverChannel // sid -> channel
	subs       map[uint32]*serverChannel // subid -> channel

	outbox []codec.Command // EventAddResponses queued by writes from any client

	logger *calog.Logger
}

// NewServerCircuit constructs a server-role circuit bound to db.
func NewServerCircuit(db *pvdb.Database) *ServerCircuit {
	return &ServerCircuit{
		db:       db,
		channels: make(map[uint32]*serverChannel),
		bySID:    make(map[uint32]*serverChannel),
		subs:     make(map[uint32]*serverChannel),
	}
}

// SetLogger attaches the per-instance logger Dispatch reports
// channel-create failures to. A nil logger (the
// default) discards everything.
func (s *ServerCircuit) SetLogger(l *calog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// DrainEvents returns and clears every EventAddResponse a subscription
// on this circuit has accumulated since the last drain — the posts
// pvdb.Channel.notify makes on every write, whether it came through
// this circuit or another client's, which arrive independently of the
// reply to any one Dispatch call.
func (s *ServerCircuit) DrainEvents() []codec.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outbox
	s.outbox = nil
	return out
}

// Dispatch decodes one client request and returns the wire response(s)
// to transmit, per spec.md §4.4-§4.5: CreateChanRequest resolves the
// name against the database and assigns an sid; ReadNotifyRequest and
// WriteNotifyRequest perform the auth-checked operation and reply with
// the converted result or an ErrorResponse; EventAddRequest registers a
// subscription and replies with the first reading immediately, with
// every later post reachable through DrainEvents.
func (s *ServerCircuit) Dispatch(cmd codec.Command) ([]codec.Command, error) {
	switch r := cmd.(type) {
	case codec.VersionRequest:
		return []codec.Command{codec.VersionResponse{Version: r.Version}}, nil

	case codec.HostNameRequest:
		s.mu.Lock()
		s.host = r.Name
		s.mu.Unlock()
		return nil, nil

	case codec.ClientNameRequest:
		s.mu.Lock()
		s.user = r.Name
		s.mu.Unlock()
		return nil, nil

	case codec.CreateChanRequest:
		return s.handleCreateChan(r), nil

	case codec.ClearChannelRequest:
		return s.handleClearChannel(r), nil

	case codec.ReadNotifyRequest:
		return s.handleRead(r), nil

	case codec.WriteNotifyRequest:
		return s.handleWrite(r), nil

	case codec.EventAddRequest:
		return s.handleEventAdd(r), nil

	case codec.EventCancelRequest:
		return s.handleEventCancel(r), nil

	case codec.EventsOffRequest, codec.EventsOnRequest:
		return nil, nil

	default:
		return nil, caerr.NewRemoteProtocolError("unexpected command on server circuit: %T", cmd)
	}
}

func (s *ServerCircuit) handleCreateChan(r codec.CreateChanRequest) []codec.Command {
	name, chain, err := filter.Parse(r.Name)
	if err != nil {
		s.logger.Warn("create chan: bad filter suffix on %q: %v", r.Name, err)
		return []codec.Command{codec.CreateChFailResponse{CID: r.CID}}
	}

	ch, ok := s.db.Lookup(name)
	if !ok {
		s.logger.Warn("create chan: no such record %q", name)
		return []codec.Command{codec.CreateChFailResponse{CID: r.CID}}
	}

	s.mu.Lock()
	s.nextSID++
	sid := s.nextSID
	sc := &serverChannel{cid: r.CID, sid: sid, ch: ch, filters: chain}
	s.channels[r.CID] = sc
	s.bySID[sid] = sc
	host, user := s.host, s.user
	s.mu.Unlock()

	rights := ch.CheckAccess(host, user)
	return []codec.Command{
		codec.CreateChanResponse{DataType: ch.NativeType(), Count: ch.Count(), CID: r.CID, SID: sid},
		codec.AccessRightsResponse{CID: r.CID, Rights: uint32(rights)},
	}
}

func (s *ServerCircuit) handleClearChannel(r codec.ClearChannelRequest) []codec.Command {
	s.mu.Lock()
	delete(s.channels, r.CID)
	delete(s.bySID, r.SID)
	s.mu.Unlock()
	return []codec.Command{codec.ClearChannelResponse{CID: r.CID, SID: r.SID}}
}

func (s *ServerCircuit) handleRead(r codec.ReadNotifyRequest) []codec.Command {
	s.mu.Lock()
	sc, ok := s.bySID[r.SID]
	host, user := s.host, s.user
	s.mu.Unlock()
	if !ok {
		return []codec.Command{codec.ErrorResponse{Status: 1, IOID: r.IOID, Message: "read on unknown sid"}}
	}

	meta, values, err := sc.ch.AuthRead(host, user, r.DataType)
	if err != nil {
		return []codec.Command{codec.ErrorResponse{CID: sc.cid, Status: 1, IOID: r.IOID, Message: err.Error()}}
	}
	values, _ = filter.Chain(sc.filters, values, dbr.TimeStamp{})

	return []codec.Command{codec.ReadNotifyResponse{
		DataType: r.DataType, Count: uint32(values.Len()), Status: 0, IOID: r.IOID, Metadata: meta, Values: values,
	}}
}

func (s *ServerCircuit) handleWrite(r codec.WriteNotifyRequest) []codec.Command {
	s.mu.Lock()
	sc, ok := s.bySID[r.SID]
	host, user := s.host, s.user
	s.mu.Unlock()
	if !ok {
		return []codec.Command{codec.ErrorResponse{Status: 1, IOID: r.IOID, Message: "write on unknown sid"}}
	}

	if err := sc.ch.AuthWrite(host, user, r.Values, r.DataType, nil); err != nil {
		return []codec.Command{codec.ErrorResponse{CID: sc.cid, Status: 1, IOID: r.IOID, Message: err.Error()}}
	}
	return []codec.Command{codec.WriteNotifyResponse{Status: 0, IOID: r.IOID}}
}

func (s *ServerCircuit) handleEventAdd(r codec.EventAddRequest) []codec.Command {
	s.mu.Lock()
	sc, ok := s.bySID[r.SID]
	s.mu.Unlock()
	if !ok {
		return []codec.Command{codec.ErrorResponse{Status: 1, Message: "event add on unknown sid"}}
	}

	subid := r.SubID

	sink := &eventSink{circuit: s, filters: sc.filters, suppressFirst: true}
	ev, err := sc.ch.Subscribe(subid, dbr.Type(r.DataType), r.Mask, sink)
	if err != nil {
		return []codec.Command{codec.ErrorResponse{CID: sc.cid, Status: 1, Message: err.Error()}}
	}

	values, _ := filter.Chain(sc.filters, ev.Values, dbr.TimeStamp{})
	sink.mu.Lock()
	sink.prev, sink.havePrev = values, true
	sink.mu.Unlock()

	s.mu.Lock()
	s.subs[subid] = sc
	s.mu.Unlock()

	return []codec.Command{codec.EventAddResponse{
		DataType: ev.DataType, Count: uint32(values.Len()), SubID: subid, Metadata: ev.Metadata, Values: values,
	}}
}

func (s *ServerCircuit) handleEventCancel(r codec.EventCancelRequest) []codec.Command {
	s.mu.Lock()
	sc, ok := s.subs[r.SubID]
	delete(s.subs, r.SubID)
	s.mu.Unlock()
	if ok {
		sc.ch.Unsubscribe(r.SubID)
	}
	return []codec.Command{codec.EventCancelResponse{DataType: r.DataType, SubID: r.SubID}}
}

// eventSink adapts a pvdb.Queue into EventAddResponses queued onto the
// owning circuit's outbox, applying the subscribed channel's filter
// chain and its SuppressEvent gating to every post after the first.
// suppressFirst is set for exactly the synchronous Enqueue call
// Channel.Subscribe makes before returning, so handleEventAdd can
// deliver that reading as the EventAddRequest's direct reply instead of
// through DrainEvents.
type eventSink struct {
	circuit *ServerCircuit
	filters []filter.Filter

	mu            sync.Mutex
	suppressFirst bool
	prev          dbr.Values
	havePrev      bool
}

func (s *eventSink) Enqueue(ev pvdb.Event) {
	s.mu.Lock()
	suppress := s.suppressFirst
	s.suppressFirst = false
	values, _ := filter.Chain(s.filters, ev.Values, dbr.TimeStamp{})
	if !suppress && s.havePrev && filter.SuppressEvent(s.filters, s.prev, values) {
		s.mu.Unlock()
		return
	}
	s.prev, s.havePrev = values, true
	s.mu.Unlock()
	if suppress {
		return
	}

	s.circuit.mu.Lock()
	defer s.circuit.mu.Unlock()
	s.circuit.outbox = append(s.circuit.outbox, codec.EventAddResponse{
		DataType: ev.DataType, Count: uint32(values.Len()), SubID: ev.SubID, Metadata: ev.Metadata, Values: values,
	})
}
