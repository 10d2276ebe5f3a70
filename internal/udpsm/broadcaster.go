// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package udpsm implements the broadcaster state machine that drives
// the UDP discovery protocol without owning a socket: register with
// the local repeater, issue name searches, and surface beacons, all
// through synchronous methods a driver feeds bytes into.
package udpsm

import (
	"sync"
	"time"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/pkg/calog"
)

// State is a broadcaster's registration state.
type State int

const (
	Unregistered State = iota
	AwaitRegisterConfirm
	Registered
)

// searchResultTTL is how long a resolved search result stays fresh
// before a subsequent lookup must discard it and search again.
const searchResultTTL = 10 * time.Second

type searchResult struct {
	addr uint32
	at   time.Time
}

// Broadcaster drives one process's view of the UDP discovery protocol.
// It owns no socket; register/search return datagrams for the caller
// to transmit, and incoming datagrams are fed back through Handle.
type Broadcaster struct {
	mu    sync.Mutex
	state State

	nextCID uint32

	unansweredSearches map[uint32]string // cid -> name
	searchResults      map[string]searchResult

	onBeacon func(serverPort uint16, beacon uint32)

	logger *calog.Logger
}

// SetLogger attaches the per-instance logger Register and Search
// report to. A nil logger (the default) discards everything.
func (b *Broadcaster) SetLogger(l *calog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = l
}

// New constructs an UNREGISTERED broadcaster. onBeacon, if non-nil, is
// invoked (without the broadcaster's lock held) whenever an
// RsrvIsUpResponse is observed; beacons never mutate broadcaster state.
func New(onBeacon func(serverPort uint16, beacon uint32)) *Broadcaster {
	return &Broadcaster{
		unansweredSearches: make(map[uint32]string),
		searchResults:      make(map[string]searchResult),
		onBeacon:           onBeacon,
	}
}

// State reports the current registration state.
func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Register produces the RepeaterRegisterRequest datagram the caller
// must transmit to the local repeater (default port 5065) and advances
// the broadcaster to AWAIT_REGISTER_CONFIRM.
func (b *Broadcaster) Register(localAddr uint32) codec.RepeaterRegisterRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = AwaitRegisterConfirm
	b.logger.Info("registering with local repeater from 0x%x", localAddr)
	return codec.RepeaterRegisterRequest{ClientAddr: localAddr}
}

// Search allocates a fresh search cid and returns the VersionRequest +
// SearchRequest bundle the caller must transmit to every configured
// broadcast destination.
func (b *Broadcaster) Search(name string) (codec.VersionRequest, codec.SearchRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextCID++
	cid := b.nextCID
	b.unansweredSearches[cid] = name
	b.logger.Debug("searching for %q (cid %d)", name, cid)

	return codec.VersionRequest{Priority: 0, Version: 13},
		codec.SearchRequest{CID: cid, MinorVersion: 13, ReplyPolicy: codec.SearchDoReply, Name: name}
}

// Lookup returns the address a prior Search resolved to, if the result
// is still within its freshness window.
func (b *Broadcaster) Lookup(name string) (addr uint32, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	res, found := b.searchResults[name]
	if !found {
		return 0, false
	}
	if time.Since(res.at) > searchResultTTL {
		delete(b.searchResults, name)
		return 0, false
	}
	return res.addr, true
}

// Handle processes one command received on the broadcaster's socket.
func (b *Broadcaster) Handle(cmd codec.Command) error {
	switch c := cmd.(type) {
	case codec.RepeaterConfirmResponse:
		b.mu.Lock()
		b.state = Registered
		b.mu.Unlock()
		return nil

	case codec.SearchResponse:
		b.mu.Lock()
		name, pending := b.unansweredSearches[c.CID]
		if !pending {
			// Duplicate response for an already-answered cid: the
			// protocol mandates silently discarding it.
			b.mu.Unlock()
			return nil
		}
		delete(b.unansweredSearches, c.CID)
		b.searchResults[name] = searchResult{addr: c.Addr, at: time.Now()}
		b.mu.Unlock()
		return nil

	case codec.RsrvIsUpResponse:
		if b.onBeacon != nil {
			b.onBeacon(c.ServerPort, c.Beacon)
		}
		return nil

	case codec.NotFoundResponse:
		b.mu.Lock()
		delete(b.unansweredSearches, c.CID)
		b.mu.Unlock()
		return nil

	default:
		return caerr.NewRemoteProtocolError("unexpected command on broadcaster: %T", cmd)
	}
}
