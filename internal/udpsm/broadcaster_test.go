// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package udpsm

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/pkg/calog"
)

func TestRegisterTransitions(t *testing.T) {
	b := New(nil)
	require.Equal(t, Unregistered, b.State())

	req := b.Register(0x7f000001)
	require.EqualValues(t, 0x7f000001, req.ClientAddr)
	require.Equal(t, AwaitRegisterConfirm, b.State())

	require.NoError(t, b.Handle(codec.RepeaterConfirmResponse{RepeaterAddr: 0x7f000001}))
	require.Equal(t, Registered, b.State())
}

func TestSearchResolvesAndExpires(t *testing.T) {
	b := New(nil)
	_, search := b.Search("IOC:scaler1.VAL")

	_, ok := b.Lookup("IOC:scaler1.VAL")
	require.False(t, ok)

	require.NoError(t, b.Handle(codec.SearchResponse{CID: search.CID, Port: 5064, Addr: 0x0a000001}))

	addr, ok := b.Lookup("IOC:scaler1.VAL")
	require.True(t, ok)
	require.EqualValues(t, 0x0a000001, addr)

	b.mu.Lock()
	b.searchResults["IOC:scaler1.VAL"] = searchResult{addr: 0x0a000001, at: time.Now().Add(-2 * searchResultTTL)}
	b.mu.Unlock()

	_, ok = b.Lookup("IOC:scaler1.VAL")
	require.False(t, ok, "a result older than the freshness window must be discarded")
}

func TestDuplicateSearchResponseDiscarded(t *testing.T) {
	b := New(nil)
	_, search := b.Search("IOC:scaler1.VAL")

	require.NoError(t, b.Handle(codec.SearchResponse{CID: search.CID, Port: 5064, Addr: 1}))
	require.NoError(t, b.Handle(codec.SearchResponse{CID: search.CID, Port: 5064, Addr: 2}))

	addr, ok := b.Lookup("IOC:scaler1.VAL")
	require.True(t, ok)
	require.EqualValues(t, 1, addr, "second response for an already-answered cid must be ignored")
}

func TestBeaconDoesNotMutateState(t *testing.T) {
	var seen []uint32
	b := New(func(_ uint16, beacon uint32) { seen = append(seen, beacon) })

	require.NoError(t, b.Handle(codec.RsrvIsUpResponse{ServerPort: 5064, Beacon: 1}))
	require.Equal(t, Unregistered, b.State())
	require.Equal(t, []uint32{1}, seen)
}

func TestRegisterAndSearchAreLogged(t *testing.T) {
	var buf bytes.Buffer
	b := New(nil)
	b.SetLogger(calog.New("broadcaster", calog.DEBUG, &buf))

	b.Register(0x7f000001)
	b.Search("IOC:scaler1.VAL")

	require.Contains(t, buf.String(), "registering")
	require.Contains(t, buf.String(), "IOC:scaler1.VAL")
}

func TestNotFoundClearsUnanswered(t *testing.T) {
	b := New(nil)
	_, search := b.Search("IOC:missing.VAL")
	require.NoError(t, b.Handle(codec.NotFoundResponse{CID: search.CID}))

	require.NoError(t, b.Handle(codec.SearchResponse{CID: search.CID, Port: 5064, Addr: 9}))
	_, ok := b.Lookup("IOC:missing.VAL")
	require.False(t, ok, "a late response after NotFound for the same cid is no longer pending")
}
