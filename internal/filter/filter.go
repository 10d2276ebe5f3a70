// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package filter parses and applies the channel-access "filter"
// suffixes a wire PV name may carry after a dot: array slices,
// timestamp override, dead-band suppression, and sync-state gating.
// Filters compose left to right over a channel's values/metadata.
package filter

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/dbr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Filter is one parsed, composable request rewriter.
type Filter interface {
	// Apply rewrites values (and, for the timestamp filter, stamp) on
	// a read or subscription event.
	Apply(values dbr.Values, stamp dbr.TimeStamp) (dbr.Values, dbr.TimeStamp)
	// SuppressEvent reports whether a subscription event carrying
	// values should be dropped rather than forwarded. prev is the
	// values of the last event that was NOT suppressed.
	SuppressEvent(prev, values dbr.Values) bool
}

// SyncMode names the six gating relations sync-state filters support.
type SyncMode string

const (
	Before SyncMode = "before"
	After  SyncMode = "after"
	While  SyncMode = "while"
	Unless SyncMode = "unless"
	First  SyncMode = "first"
	Last   SyncMode = "last"
)

// Parse splits a wire PV name carrying a "[slice]" (or ".[slice]") or
// ".{json}.{json}" filter suffix into the bare name and its chain of
// filters. A name with neither form (including an ordinary dotted field
// reference like "name.VAL") returns the name unchanged with a nil,
// empty chain.
func Parse(wireName string) (name string, chain []Filter, err error) {
	if idx := strings.IndexByte(wireName, '['); idx >= 0 {
		f, err := parseOne(wireName[idx:])
		if err != nil {
			return "", nil, err
		}
		return strings.TrimSuffix(wireName[:idx], "."), []Filter{f}, nil
	}

	idx := strings.Index(wireName, ".{")
	if idx < 0 {
		return wireName, nil, nil
	}
	name = wireName[:idx]
	for _, part := range strings.Split(wireName[idx+2:], ".{") {
		f, err := parseOne("{" + part)
		if err != nil {
			return "", nil, err
		}
		chain = append(chain, f)
	}
	return name, chain, nil
}

func parseOne(token string) (Filter, error) {
	if strings.HasPrefix(token, "[") {
		return parseSlice(token)
	}
	if strings.HasPrefix(token, "{") {
		return parseJSON(token)
	}
	return nil, caerr.NewLocalProtocolError("unrecognized filter token %q", token)
}

// parseSlice parses the bracketed "[start:stop:step]" array-slice form.
func parseSlice(token string) (Filter, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "["), "]")
	parts := strings.Split(inner, ":")

	step := 1
	start, stop := 0, -1
	var err error
	if len(parts) > 0 && parts[0] != "" {
		start, err = strconv.Atoi(parts[0])
	}
	if err == nil && len(parts) > 1 && parts[1] != "" {
		stop, err = strconv.Atoi(parts[1])
	}
	if err == nil && len(parts) > 2 && parts[2] != "" {
		step, err = strconv.Atoi(parts[2])
	}
	if err != nil {
		return nil, caerr.NewLocalProtocolError("invalid array slice %q: %v", token, err)
	}
	return &SliceFilter{Start: start, Stop: stop, Step: step}, nil
}

type jsonFilterDoc struct {
	Arr  *struct{ S, E, I int } `json:"arr"`
	TS   *struct{}              `json:"ts"`
	Dbnd *struct {
		Abs *float64 `json:"abs"`
		Rel *float64 `json:"rel"`
	} `json:"dbnd"`
	Sync *struct {
		Mode  string `json:"m"`
		State string `json:"s"`
	} `json:"sync"`
}

func parseJSON(token string) (Filter, error) {
	var doc jsonFilterDoc
	if err := json.UnmarshalFromString(token, &doc); err != nil {
		return nil, caerr.NewLocalProtocolError("invalid filter JSON %q: %v", token, err)
	}

	switch {
	case doc.Arr != nil:
		step := doc.Arr.I
		if step == 0 {
			step = 1
		}
		return &SliceFilter{Start: doc.Arr.S, Stop: doc.Arr.E, Step: step}, nil
	case doc.TS != nil:
		return &TimestampFilter{}, nil
	case doc.Dbnd != nil:
		switch {
		case doc.Dbnd.Abs != nil:
			return &DeadbandFilter{Threshold: *doc.Dbnd.Abs, Relative: false}, nil
		case doc.Dbnd.Rel != nil:
			return &DeadbandFilter{Threshold: *doc.Dbnd.Rel, Relative: true}, nil
		}
		return nil, caerr.NewLocalProtocolError("dbnd filter %q needs abs or rel", token)
	case doc.Sync != nil:
		return &SyncFilter{Mode: SyncMode(doc.Sync.Mode), State: doc.Sync.State}, nil
	default:
		return nil, caerr.NewLocalProtocolError("unrecognized filter JSON %q", token)
	}
}

// Chain applies every filter in order to one read's values/timestamp.
func Chain(chain []Filter, values dbr.Values, stamp dbr.TimeStamp) (dbr.Values, dbr.TimeStamp) {
	for _, f := range chain {
		values, stamp = f.Apply(values, stamp)
	}
	return values, stamp
}

// SuppressEvent reports whether any filter in chain says this
// subscription event should be dropped.
func SuppressEvent(chain []Filter, prev, values dbr.Values) bool {
	for _, f := range chain {
		if f.SuppressEvent(prev, values) {
			return true
		}
	}
	return false
}
