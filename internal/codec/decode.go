// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/dbr"
)

// Role distinguishes which side of a connection is decoding: the same
// command code means a different struct depending on who sent it (code
// 0 is a VersionRequest from a client, a VersionResponse from a
// server), the same way internal/vnc's decode.go keys its factory map
// on client-vs-server message tables.
type Role int

const (
	// RoleClient decodes bytes a client receives, i.e. server replies.
	RoleClient Role = iota
	// RoleServer decodes bytes a server receives, i.e. client requests.
	RoleServer
)

// ReadCommand reads one full framed command (header plus padded
// payload) from r and decodes it for the given role.
func ReadCommand(r *bufio.Reader, role Role) (Command, error) {
	h, _, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}

	padded := PaddedSize(int(h.PayloadSize))
	raw := make([]byte, padded)
	if padded > 0 {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, caerr.NewDecodeError("payload", err)
		}
	}

	return DecodeCommand(h, bytes.NewReader(raw[:h.PayloadSize]), role)
}

// DecodeCommand turns a header plus its exact, unpadded payload bytes
// into a concrete Command.
func DecodeCommand(h Header, payload io.Reader, role Role) (Command, error) {
	switch Code(h.Command) {
	case CodeVersion:
		if role == RoleServer {
			return VersionRequest{Priority: uint16(h.Parameter1), Version: uint16(h.Parameter2)}, nil
		}
		return VersionResponse{Version: uint16(h.Parameter2)}, nil

	case CodeHostName:
		name, err := readCString(payload)
		if err != nil {
			return nil, err
		}
		return HostNameRequest{Name: name}, nil

	case CodeClientName:
		name, err := readCString(payload)
		if err != nil {
			return nil, err
		}
		return ClientNameRequest{Name: name}, nil

	case CodeCreateChan:
		if role == RoleServer {
			name, err := readCString(payload)
			if err != nil {
				return nil, err
			}
			return CreateChanRequest{CID: h.Parameter1, Version: uint16(h.Parameter2), Name: name}, nil
		}
		return CreateChanResponse{
			DataType: dbr.Type(h.DataType),
			Count:    h.DataCount,
			CID:      h.Parameter1,
			SID:      h.Parameter2,
		}, nil

	case CodeCreateChFail:
		return CreateChFailResponse{CID: h.Parameter1}, nil

	case CodeAccessRights:
		return AccessRightsResponse{CID: h.Parameter1, Rights: h.Parameter2}, nil

	case CodeClearChannel:
		if role == RoleServer {
			return ClearChannelRequest{CID: h.Parameter1, SID: h.Parameter2}, nil
		}
		return ClearChannelResponse{CID: h.Parameter1, SID: h.Parameter2}, nil

	case CodeServerDisconn:
		return ServerDisconnResponse{CID: h.Parameter1}, nil

	case CodeSearch:
		if role == RoleServer {
			name, err := readCString(payload)
			if err != nil {
				return nil, err
			}
			return SearchRequest{
				CID:          h.Parameter1,
				MinorVersion: uint16(h.DataCount),
				ReplyPolicy:  h.DataType,
				Name:         name,
			}, nil
		}
		var port uint16
		if err := binary.Read(payload, binary.BigEndian, &port); err != nil {
			return nil, caerr.NewDecodeError("search response port", err)
		}
		return SearchResponse{CID: h.Parameter2, Port: port, Addr: h.Parameter1}, nil

	case CodeNotFound:
		return NotFoundResponse{CID: h.Parameter2}, nil

	case CodeRsrvIsUp:
		return RsrvIsUpResponse{ServerPort: uint16(h.Parameter2), Beacon: h.Parameter1}, nil

	case CodeRepeaterRegister:
		return RepeaterRegisterRequest{ClientAddr: h.Parameter1}, nil

	case CodeRepeaterConfirm:
		return RepeaterConfirmResponse{RepeaterAddr: h.Parameter1}, nil

	case CodeReadNotify:
		if role == RoleServer {
			return ReadNotifyRequest{
				DataType: dbr.Type(h.DataType),
				Count:    h.DataCount,
				SID:      h.Parameter1,
				IOID:     h.Parameter2,
			}, nil
		}
		meta, values, err := decodeDBRPayload(payload, dbr.Type(h.DataType), int(h.DataCount))
		if err != nil {
			return nil, err
		}
		return ReadNotifyResponse{
			DataType: dbr.Type(h.DataType),
			Count:    h.DataCount,
			Status:   h.Parameter1,
			IOID:     h.Parameter2,
			Metadata: meta,
			Values:   values,
		}, nil

	case CodeWriteNotify:
		if role == RoleServer {
			_, values, err := decodeDBRPayload(payload, dbr.Type(h.DataType), int(h.DataCount))
			if err != nil {
				return nil, err
			}
			return WriteNotifyRequest{
				DataType: dbr.Type(h.DataType),
				Count:    h.DataCount,
				SID:      h.Parameter1,
				IOID:     h.Parameter2,
				Values:   values,
			}, nil
		}
		return WriteNotifyResponse{Status: h.Parameter1, IOID: h.Parameter2}, nil

	case CodeEventAdd:
		if role == RoleServer {
			var mask uint16
			if err := binary.Read(payload, binary.BigEndian, &mask); err != nil {
				return nil, caerr.NewDecodeError("event add mask", err)
			}
			return EventAddRequest{
				DataType: h.DataType,
				Count:    h.DataCount,
				SID:      h.Parameter1,
				SubID:    h.Parameter2,
				Mask:     mask,
			}, nil
		}
		meta, values, err := decodeDBRPayload(payload, dbr.Type(h.DataType), int(h.DataCount))
		if err != nil {
			return nil, err
		}
		return EventAddResponse{
			DataType: dbr.Type(h.DataType),
			Count:    h.DataCount,
			Status:   h.Parameter1,
			SubID:    h.Parameter2,
			Metadata: meta,
			Values:   values,
		}, nil

	case CodeEventCancel:
		if role == RoleServer {
			return EventCancelRequest{
				DataType: dbr.Type(h.DataType),
				Count:    h.DataCount,
				SID:      h.Parameter1,
				SubID:    h.Parameter2,
			}, nil
		}
		return EventCancelResponse{DataType: dbr.Type(h.DataType), SubID: h.Parameter2}, nil

	case CodeEventsOff:
		return EventsOffRequest{}, nil

	case CodeEventsOn:
		return EventsOnRequest{}, nil

	case CodeError:
		var orig wireHeader
		if err := binary.Read(payload, binary.BigEndian, &orig); err != nil {
			return nil, caerr.NewDecodeError("error response original header", err)
		}
		msg, err := readCString(payload)
		if err != nil {
			return nil, err
		}
		return ErrorResponse{CID: h.Parameter1, Status: h.Parameter2, IOID: orig.Parameter2, Message: msg}, nil

	default:
		return nil, caerr.NewDecodeError("command", errUnknownCommand)
	}
}

// readCString reads the remainder of r as a NUL-terminated (or
// NUL-padded) string and trims the terminator and any padding.
func readCString(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", caerr.NewDecodeError("string field", err)
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), nil
}
