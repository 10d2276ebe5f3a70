// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package codec

import "github.com/caproto/caproto-sub001/internal/dbr"

// Code names a command on the wire. The numeric values are part of the
// wire contract (spec.md §4.1): every implementation must agree on them.
type Code uint16

const (
	CodeVersion         Code = 0
	CodeEventAdd        Code = 1
	CodeEventCancel     Code = 2
	CodeRead            Code = 3 // deprecated
	CodeWrite           Code = 4
	CodeSearch          Code = 6
	CodeEventsOff       Code = 8
	CodeEventsOn        Code = 9
	CodeError           Code = 11
	CodeClearChannel    Code = 12
	CodeRsrvIsUp        Code = 13 // beacon
	CodeNotFound        Code = 14
	CodeReadNotify      Code = 15
	CodeRepeaterConfirm Code = 17
	CodeCreateChan      Code = 18
	CodeWriteNotify     Code = 19
	CodeClientName      Code = 20
	CodeHostName        Code = 21
	CodeAccessRights    Code = 22
	CodeRepeaterRegister Code = 24
	CodeCreateChFail    Code = 26
	CodeServerDisconn   Code = 27
)

// Command is the tagged union every wire command implements: a value
// that knows its own command code, per the design note in spec.md §9
// replacing isinstance-based dispatch with a sum type the state
// machines switch on.
type Command interface {
	code() Code
}

// --- connection setup ---

type VersionRequest struct {
	Priority uint16
	Version  uint16
}

type VersionResponse struct {
	Version uint16
}

type HostNameRequest struct {
	Name string
}

type ClientNameRequest struct {
	Name string
}

// --- channel lifecycle ---

type CreateChanRequest struct {
	CID     uint32
	Version uint16
	Name    string
}

type CreateChanResponse struct {
	DataType dbr.Type
	Count    uint32
	CID      uint32
	SID      uint32
}

type CreateChFailResponse struct {
	CID uint32
}

type AccessRightsResponse struct {
	CID    uint32
	Rights uint32
}

type ClearChannelRequest struct {
	CID uint32
	SID uint32
}

type ClearChannelResponse struct {
	CID uint32
	SID uint32
}

type ServerDisconnResponse struct {
	CID uint32
}

// --- search / discovery (UDP) ---

// Minor-version reply policy for SearchRequest, mirrored from the real
// protocol's DBR-space DO_REPLY/NO_REPLY sentinels in the reference
// implementation's _dbr.py.
const (
	SearchDoReply uint16 = 10
	SearchNoReply uint16 = 5
)

type SearchRequest struct {
	CID         uint32
	MinorVersion uint16
	ReplyPolicy  uint16
	Name         string
}

type SearchResponse struct {
	CID  uint32
	Port uint16
	Addr uint32 // 0 means "use the datagram's source address"
}

type NotFoundResponse struct {
	CID uint32
}

type RsrvIsUpResponse struct {
	ServerPort uint16
	Beacon     uint32
}

type RepeaterRegisterRequest struct {
	ClientAddr uint32
}

type RepeaterConfirmResponse struct {
	RepeaterAddr uint32
}

// --- read / write / subscribe ---

type ReadNotifyRequest struct {
	DataType dbr.Type
	Count    uint32
	SID      uint32
	IOID     uint32
}

type ReadNotifyResponse struct {
	DataType dbr.Type
	Count    uint32
	Status   uint32
	IOID     uint32
	Metadata interface{}
	Values   dbr.Values
}

type WriteNotifyRequest struct {
	DataType dbr.Type
	Count    uint32
	SID      uint32
	IOID     uint32
	Values   dbr.Values
}

type WriteNotifyResponse struct {
	Status uint32
	IOID   uint32
}

// EventMask bits, per spec.md §3's Subscription invariant.
const (
	EventMaskValue    uint16 = 1
	EventMaskLog      uint16 = 2
	EventMaskAlarm    uint16 = 4
	EventMaskProperty uint16 = 8
)

type EventAddRequest struct {
	DataType uint16
	Count    uint32
	SID      uint32
	SubID    uint32
	Mask     uint16
}

type EventAddResponse struct {
	DataType dbr.Type
	Count    uint32
	Status   uint32
	SubID    uint32
	Metadata interface{}
	Values   dbr.Values
}

type EventCancelRequest struct {
	DataType dbr.Type
	Count    uint32
	SID      uint32
	SubID    uint32
}

type EventCancelResponse struct {
	DataType dbr.Type
	SubID    uint32
}

type EventsOffRequest struct{}
type EventsOnRequest struct{}

// ErrorResponse carries the ioid of the request that failed in the
// embedded original-request header the real protocol sends ahead of
// the message string, per spec.md §4.4: "An ErrorResponse carrying the
// same ioid terminates the operation with a failure."
type ErrorResponse struct {
	CID     uint32
	Status  uint32
	IOID    uint32
	Message string
}

func (VersionRequest) code() Code          { return CodeVersion }
func (VersionResponse) code() Code         { return CodeVersion }
func (HostNameRequest) code() Code         { return CodeHostName }
func (ClientNameRequest) code() Code       { return CodeClientName }
func (CreateChanRequest) code() Code       { return CodeCreateChan }
func (CreateChanResponse) code() Code      { return CodeCreateChan }
func (CreateChFailResponse) code() Code    { return CodeCreateChFail }
func (AccessRightsResponse) code() Code    { return CodeAccessRights }
func (ClearChannelRequest) code() Code     { return CodeClearChannel }
func (ClearChannelResponse) code() Code    { return CodeClearChannel }
func (ServerDisconnResponse) code() Code   { return CodeServerDisconn }
func (SearchRequest) code() Code           { return CodeSearch }
func (SearchResponse) code() Code          { return CodeSearch }
func (NotFoundResponse) code() Code        { return CodeNotFound }
func (RsrvIsUpResponse) code() Code        { return CodeRsrvIsUp }
func (RepeaterRegisterRequest) code() Code { return CodeRepeaterRegister }
func (RepeaterConfirmResponse) code() Code { return CodeRepeaterConfirm }
func (ReadNotifyRequest) code() Code       { return CodeReadNotify }
func (ReadNotifyResponse) code() Code      { return CodeReadNotify }
func (WriteNotifyRequest) code() Code      { return CodeWriteNotify }
func (WriteNotifyResponse) code() Code     { return CodeWriteNotify }
func (EventAddRequest) code() Code         { return CodeEventAdd }
func (EventAddResponse) code() Code        { return CodeEventAdd }
func (EventCancelRequest) code() Code      { return CodeEventCancel }
func (EventCancelResponse) code() Code     { return CodeEventCancel }
func (EventsOffRequest) code() Code        { return CodeEventsOff }
func (EventsOnRequest) code() Code         { return CodeEventsOn }
func (ErrorResponse) code() Code           { return CodeError }
