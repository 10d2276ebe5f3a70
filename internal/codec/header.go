// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package codec is the stateless wire codec: framing, header layout,
// and command struct encode/decode. It never owns a socket; it only
// turns bytes into Command values and back, the way internal/vnc's
// decode.go turns bytes into RFB messages.
package codec

import (
	"encoding/binary"
	"io"

	"github.com/caproto/caproto-sub001/internal/caerr"
)

// extendedMarker is the payload_size sentinel (0xFFFF) that, combined
// with a zero data_count, signals an extended header follows.
const extendedMarker = 0xFFFF

// headerSize is the length of the fixed 16-byte header.
const headerSize = 16

// extHeaderSize is the length of the extended header that follows when
// the payload or element count doesn't fit in 16 bits.
const extHeaderSize = 8

// Header is the 16-byte command header shared by every command, plus
// the resolved (possibly extended) payload size and element count.
type Header struct {
	Command    uint16
	DataType   uint16
	DataCount  uint32 // resolved; may have come from the extended header
	Parameter1 uint32
	Parameter2 uint32

	PayloadSize uint32 // resolved; may have come from the extended header
	Extended    bool
}

// wireHeader is the exact 16-byte on-wire layout.
type wireHeader struct {
	Command     uint16
	PayloadSize uint16
	DataType    uint16
	DataCount   uint16
	Parameter1  uint32
	Parameter2  uint32
}

type wireExtHeader struct {
	PayloadSizeExt uint32
	DataCountExt   uint32
}

// EncodeHeader writes h onto w, choosing the extended form when either
// the payload size or element count overflows 16 bits.
func EncodeHeader(w io.Writer, h Header) error {
	wh := wireHeader{
		Command:  h.Command,
		DataType: h.DataType,
	}

	needExt := h.PayloadSize >= extendedMarker || h.DataCount >= extendedMarker
	if needExt {
		wh.PayloadSize = extendedMarker
		wh.DataCount = 0
	} else {
		wh.PayloadSize = uint16(h.PayloadSize)
		wh.DataCount = uint16(h.DataCount)
	}
	wh.Parameter1 = h.Parameter1
	wh.Parameter2 = h.Parameter2

	if err := binary.Write(w, binary.BigEndian, &wh); err != nil {
		return caerr.NewEncodeError("header", err)
	}

	if needExt {
		ext := wireExtHeader{PayloadSizeExt: h.PayloadSize, DataCountExt: h.DataCount}
		if err := binary.Write(w, binary.BigEndian, &ext); err != nil {
			return caerr.NewEncodeError("extended header", err)
		}
	}

	return nil
}

// DecodeHeader reads one header from r, transparently consuming the
// extended header when present. consumed is 16 or 24.
func DecodeHeader(r io.Reader) (h Header, consumed int, err error) {
	var wh wireHeader
	if err = binary.Read(r, binary.BigEndian, &wh); err != nil {
		return Header{}, 0, caerr.NewDecodeError("header", err)
	}

	h.Command = wh.Command
	h.DataType = wh.DataType
	h.Parameter1 = wh.Parameter1
	h.Parameter2 = wh.Parameter2
	consumed = headerSize

	if wh.PayloadSize == extendedMarker && wh.DataCount == 0 {
		var ext wireExtHeader
		if err = binary.Read(r, binary.BigEndian, &ext); err != nil {
			return Header{}, 0, caerr.NewDecodeError("extended header", err)
		}
		h.PayloadSize = ext.PayloadSizeExt
		h.DataCount = ext.DataCountExt
		h.Extended = true
		consumed += extHeaderSize
		return h, consumed, nil
	}

	h.PayloadSize = uint32(wh.PayloadSize)
	h.DataCount = uint32(wh.DataCount)
	return h, consumed, nil
}

// PaddedSize rounds n up to the next multiple of 8, the alignment every
// command payload is padded to on the wire.
func PaddedSize(n int) int {
	if rem := n % 8; rem != 0 {
		return n + (8 - rem)
	}
	return n
}

// SerializedLen returns the total on-wire length of a command whose
// payload is payloadSize bytes, per spec.md §3's framing invariant.
func SerializedLen(payloadSize int, extended bool) int {
	n := headerSize + PaddedSize(payloadSize)
	if extended {
		n += extHeaderSize
	}
	return n
}
