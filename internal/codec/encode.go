// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/caproto/caproto-sub001/internal/caerr"
)

var errUnknownCommand = errors.New("codec: unknown command type")

// EncodeCommand serializes cmd onto w: header, then payload padded to
// an 8-byte boundary with NULs, per spec.md §3's framing invariant.
func EncodeCommand(w io.Writer, cmd Command) error {
	var payload bytes.Buffer
	h := Header{Command: uint16(cmd.code())}

	if err := fillPayload(&payload, cmd, &h); err != nil {
		return err
	}

	h.PayloadSize = uint32(payload.Len())
	if err := EncodeHeader(w, h); err != nil {
		return err
	}

	padded := PaddedSize(payload.Len())
	if _, err := w.Write(payload.Bytes()); err != nil {
		return caerr.NewEncodeError("payload", err)
	}
	if pad := padded - payload.Len(); pad > 0 {
		if _, err := w.Write(make([]byte, pad)); err != nil {
			return caerr.NewEncodeError("payload padding", err)
		}
	}
	return nil
}

// fillPayload writes cmd's variable payload into buf and fills in the
// header fields that aren't the command code or payload size.
func fillPayload(buf *bytes.Buffer, cmd Command, h *Header) error {
	switch c := cmd.(type) {
	case VersionRequest:
		h.Parameter1, h.Parameter2 = uint32(c.Priority), uint32(c.Version)
	case VersionResponse:
		h.Parameter2 = uint32(c.Version)
	case HostNameRequest:
		writeCString(buf, c.Name)
	case ClientNameRequest:
		writeCString(buf, c.Name)
	case CreateChanRequest:
		h.Parameter1, h.Parameter2 = c.CID, uint32(c.Version)
		writeCString(buf, c.Name)
	case CreateChanResponse:
		h.DataType, h.DataCount = uint16(c.DataType), c.Count
		h.Parameter1, h.Parameter2 = c.CID, c.SID
	case CreateChFailResponse:
		h.Parameter1 = c.CID
	case AccessRightsResponse:
		h.Parameter1, h.Parameter2 = c.CID, c.Rights
	case ClearChannelRequest:
		h.Parameter1, h.Parameter2 = c.CID, c.SID
	case ClearChannelResponse:
		h.Parameter1, h.Parameter2 = c.CID, c.SID
	case ServerDisconnResponse:
		h.Parameter1 = c.CID
	case SearchRequest:
		h.DataType, h.DataCount = c.ReplyPolicy, uint32(c.MinorVersion)
		h.Parameter1, h.Parameter2 = c.CID, c.CID
		writeCString(buf, c.Name)
	case SearchResponse:
		h.Parameter1, h.Parameter2 = c.Addr, c.CID
		if err := binary.Write(buf, binary.BigEndian, c.Port); err != nil {
			return caerr.NewEncodeError("search response port", err)
		}
	case NotFoundResponse:
		h.Parameter2 = c.CID
	case RsrvIsUpResponse:
		h.Parameter1, h.Parameter2 = c.Beacon, uint32(c.ServerPort)
	case RepeaterRegisterRequest:
		h.Parameter1 = c.ClientAddr
	case RepeaterConfirmResponse:
		h.Parameter1 = c.RepeaterAddr
	case ReadNotifyRequest:
		h.DataType, h.DataCount = uint16(c.DataType), c.Count
		h.Parameter1, h.Parameter2 = c.SID, c.IOID
	case ReadNotifyResponse:
		h.DataType, h.DataCount = uint16(c.DataType), c.Count
		h.Parameter1, h.Parameter2 = c.Status, c.IOID
		if err := encodeDBRPayload(buf, c.DataType, c.Metadata, c.Values); err != nil {
			return err
		}
	case WriteNotifyRequest:
		h.DataType, h.DataCount = uint16(c.DataType), c.Count
		h.Parameter1, h.Parameter2 = c.SID, c.IOID
		if err := encodeDBRPayload(buf, c.DataType, nil, c.Values); err != nil {
			return err
		}
	case WriteNotifyResponse:
		h.Parameter1, h.Parameter2 = c.Status, c.IOID
	case EventAddRequest:
		h.DataType, h.DataCount = c.DataType, c.Count
		h.Parameter1, h.Parameter2 = c.SID, c.SubID
		if err := binary.Write(buf, binary.BigEndian, c.Mask); err != nil {
			return caerr.NewEncodeError("event add mask", err)
		}
		// The real wire form pads the 2-byte mask out to a 4-byte
		// boundary with a reserved halfword; see protocol_test.go's
		// treatment of short trailers in internal/vnc for the idiom.
		if err := binary.Write(buf, binary.BigEndian, uint16(0)); err != nil {
			return caerr.NewEncodeError("event add pad", err)
		}
	case EventAddResponse:
		h.DataType, h.DataCount = uint16(c.DataType), c.Count
		h.Parameter1, h.Parameter2 = c.Status, c.SubID
		if err := encodeDBRPayload(buf, c.DataType, c.Metadata, c.Values); err != nil {
			return err
		}
	case EventCancelRequest:
		h.DataType, h.DataCount = uint16(c.DataType), c.Count
		h.Parameter1, h.Parameter2 = c.SID, c.SubID
	case EventCancelResponse:
		h.DataType, h.Parameter2 = uint16(c.DataType), c.SubID
	case EventsOffRequest:
	case EventsOnRequest:
	case ErrorResponse:
		h.Parameter1, h.Parameter2 = c.CID, c.Status
		// The real wire form leads with the 16-byte header of the
		// request that failed; ioid lives at that header's Parameter2
		// for every command this module can fail (ReadNotify,
		// WriteNotify). Other fields of the embedded header carry no
		// information this module correlates on, so they're left zero.
		if err := binary.Write(buf, binary.BigEndian, wireHeader{Parameter2: c.IOID}); err != nil {
			return caerr.NewEncodeError("error response original header", err)
		}
		writeCString(buf, c.Message)
	default:
		return caerr.NewEncodeError("command", errUnknownCommand)
	}
	return nil
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
