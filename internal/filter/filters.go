// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package filter

import (
	"math"
	"time"

	"github.com/caproto/caproto-sub001/internal/dbr"
)

// SliceFilter restricts values to [Start:Stop:Step), inclusive of
// Start, exclusive of Stop. Stop<0 means "through the end".
type SliceFilter struct {
	Start, Stop, Step int
}

func (s *SliceFilter) Apply(values dbr.Values, stamp dbr.TimeStamp) (dbr.Values, dbr.TimeStamp) {
	step := s.Step
	if step == 0 {
		step = 1
	}
	n := values.Len()
	stop := s.Stop
	if stop < 0 || stop > n {
		stop = n
	}
	start := s.Start
	if start < 0 {
		start = 0
	}

	switch values.Native {
	case dbr.NDOUBLE:
		values.Doubles = sliceFloat64(values.Doubles, start, stop, step)
	case dbr.NFLOAT:
		values.Floats = sliceFloat32(values.Floats, start, stop, step)
	case dbr.NLONG:
		values.Longs = sliceInt32(values.Longs, start, stop, step)
	case dbr.NINT:
		values.Ints = sliceInt16(values.Ints, start, stop, step)
	case dbr.NENUM:
		values.Enums = sliceUint16(values.Enums, start, stop, step)
	case dbr.NCHAR:
		values.Chars = sliceByte(values.Chars, start, stop, step)
	case dbr.NSTRING:
		values.Strings = sliceString(values.Strings, start, stop, step)
	}
	return values, stamp
}

func (s *SliceFilter) SuppressEvent(prev, values dbr.Values) bool { return false }

func sliceFloat64(v []float64, start, stop, step int) []float64 {
	var out []float64
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}
func sliceFloat32(v []float32, start, stop, step int) []float32 {
	var out []float32
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}
func sliceInt32(v []int32, start, stop, step int) []int32 {
	var out []int32
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}
func sliceInt16(v []int16, start, stop, step int) []int16 {
	var out []int16
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}
func sliceUint16(v []uint16, start, stop, step int) []uint16 {
	var out []uint16
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}
func sliceByte(v []byte, start, stop, step int) []byte {
	var out []byte
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}
func sliceString(v []string, start, stop, step int) []string {
	var out []string
	for i := start; i < stop; i += step {
		out = append(out, v[i])
	}
	return out
}

// TimestampFilter replaces a reading's timestamp with the current
// wall-clock time instead of the channel's own.
type TimestampFilter struct{}

func (t *TimestampFilter) Apply(values dbr.Values, _ dbr.TimeStamp) (dbr.Values, dbr.TimeStamp) {
	return values, dbr.FromTime(time.Now())
}

func (t *TimestampFilter) SuppressEvent(prev, values dbr.Values) bool { return false }

// DeadbandFilter suppresses subscription events whose value hasn't
// moved from the last emitted value by at least Threshold, either in
// absolute terms or relative to the last emitted value.
type DeadbandFilter struct {
	Threshold float64
	Relative  bool
}

func (d *DeadbandFilter) Apply(values dbr.Values, stamp dbr.TimeStamp) (dbr.Values, dbr.TimeStamp) {
	return values, stamp
}

func (d *DeadbandFilter) SuppressEvent(prev, values dbr.Values) bool {
	prevF, ok1 := soleFloat(prev)
	curF, ok2 := soleFloat(values)
	if !ok1 || !ok2 {
		return false
	}
	delta := math.Abs(curF - prevF)
	if d.Relative && prevF != 0 {
		delta = math.Abs(delta / prevF)
	}
	return delta < d.Threshold
}

func soleFloat(v dbr.Values) (float64, bool) {
	switch v.Native {
	case dbr.NDOUBLE:
		if len(v.Doubles) == 1 {
			return v.Doubles[0], true
		}
	case dbr.NFLOAT:
		if len(v.Floats) == 1 {
			return float64(v.Floats[0]), true
		}
	case dbr.NLONG:
		if len(v.Longs) == 1 {
			return float64(v.Longs[0]), true
		}
	case dbr.NINT:
		if len(v.Ints) == 1 {
			return float64(v.Ints[0]), true
		}
	}
	return 0, false
}

// SyncFilter gates subscription events on whether a named state is
// currently active, per one of the six relations in SyncMode.
type SyncFilter struct {
	Mode  SyncMode
	State string

	active bool

	// emitted tracks whether First mode has already let one event
	// through. SetState never touches it, since a real driver calls
	// SetState before evaluating every event, including the first.
	emitted bool
}

func (s *SyncFilter) Apply(values dbr.Values, stamp dbr.TimeStamp) (dbr.Values, dbr.TimeStamp) {
	return values, stamp
}

// SetState updates the tracked sync-state's activity; a driver calls
// this whenever the named state's channel changes.
func (s *SyncFilter) SetState(active bool) {
	s.active = active
}

func (s *SyncFilter) SuppressEvent(prev, values dbr.Values) bool {
	switch s.Mode {
	case Before, Unless:
		return s.active
	case After, While:
		return !s.active
	case First:
		if s.emitted {
			return true
		}
		s.emitted = true
		return false
	case Last:
		return false
	default:
		return false
	}
}
