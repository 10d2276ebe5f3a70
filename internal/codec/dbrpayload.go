// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/dbr"
)

// encodeDBRPayload writes the metadata block (if t is a promoted or
// special type) followed by count native-typed values, exactly the
// "metadata block then data_count native elements" shape spec.md §4.1
// requires of a ReadNotifyResponse.
func encodeDBRPayload(buf *bytes.Buffer, t dbr.Type, meta interface{}, values dbr.Values) error {
	if meta != nil {
		if err := binary.Write(buf, binary.BigEndian, meta); err != nil {
			return caerr.NewEncodeError("dbr metadata", err)
		}
	}

	if dbr.IsSpecial(t) {
		// STSACK_STRING/CLASS_NAME carry their payload entirely in the
		// metadata block; there is no separate value array.
		return nil
	}

	if err := dbr.EncodeValues(buf, values); err != nil {
		return caerr.NewEncodeError("dbr values", err)
	}
	return nil
}

// decodeDBRPayload is the inverse of encodeDBRPayload: given the
// requested type and element count, it reads the metadata block (if
// any) and then the native value array.
func decodeDBRPayload(r io.Reader, t dbr.Type, count int) (meta interface{}, values dbr.Values, err error) {
	meta = dbr.MetaPrototype(t)
	if meta != nil {
		if err = binary.Read(r, binary.BigEndian, meta); err != nil {
			return nil, dbr.Values{}, caerr.NewDecodeError("dbr metadata", err)
		}
	}

	if dbr.IsSpecial(t) {
		return meta, dbr.Values{}, nil
	}

	values, err = dbr.DecodeValues(r, dbr.NativeOf(t), count)
	if err != nil {
		return nil, dbr.Values{}, caerr.NewDecodeError("dbr values", err)
	}
	return meta, values, nil
}
