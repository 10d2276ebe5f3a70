// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// Package dbr implements the Channel Access "Data Base Record" type
// system: the 35 channel type tags, their byte layouts, and the total
// promote/native_of functions relating a native scalar type to its
// STS/TIME/GR/CTRL metadata-bearing forms.
//
// Field layouts are taken from the reference caproto implementation's
// _dbr.py (ctypes.BigEndianStructure definitions), expressed here as
// plain Go structs with explicit padding fields the way
// internal/vnc/protocol.go expresses RFB messages.
package dbr

// Type is a channel type tag: a value in 0..34 naming a native scalar
// plus its promotion level, or one of the two specials.
type Type uint16

const (
	STRING Type = 0
	INT    Type = 1
	SHORT  Type = 1 // alias; SHORT and INT share tag 1, as in the C headers
	FLOAT  Type = 2
	ENUM   Type = 3
	CHAR   Type = 4
	LONG   Type = 5
	DOUBLE Type = 6

	STS_STRING Type = 7
	STS_INT    Type = 8
	STS_SHORT  Type = 8
	STS_FLOAT  Type = 9
	STS_ENUM   Type = 10
	STS_CHAR   Type = 11
	STS_LONG   Type = 12
	STS_DOUBLE Type = 13

	TIME_STRING Type = 14
	TIME_INT    Type = 15
	TIME_SHORT  Type = 15
	TIME_FLOAT  Type = 16
	TIME_ENUM   Type = 17
	TIME_CHAR   Type = 18
	TIME_LONG   Type = 19
	TIME_DOUBLE Type = 20

	GR_STRING Type = 21
	GR_INT    Type = 22
	GR_SHORT  Type = 22
	GR_FLOAT  Type = 23
	GR_ENUM   Type = 24
	GR_CHAR   Type = 25
	GR_LONG   Type = 26
	GR_DOUBLE Type = 27

	CTRL_STRING Type = 28
	CTRL_INT    Type = 29
	CTRL_SHORT  Type = 29
	CTRL_FLOAT  Type = 30
	CTRL_ENUM   Type = 31
	CTRL_CHAR   Type = 32
	CTRL_LONG   Type = 33
	CTRL_DOUBLE Type = 34

	// Specials: not part of the native x variant grid.
	STSACK_STRING Type = 37
	CLASS_NAME    Type = 38
)

// Native names the seven base scalar shapes a channel may carry.
type Native int

const (
	NSTRING Native = iota
	NINT
	NFLOAT
	NENUM
	NCHAR
	NLONG
	NDOUBLE
)

func (n Native) String() string {
	switch n {
	case NSTRING:
		return "STRING"
	case NINT:
		return "INT"
	case NFLOAT:
		return "FLOAT"
	case NENUM:
		return "ENUM"
	case NCHAR:
		return "CHAR"
	case NLONG:
		return "LONG"
	case NDOUBLE:
		return "DOUBLE"
	default:
		return "Native(?)"
	}
}

// Variant names a promotion level.
type Variant int

const (
	VNative Variant = iota
	VSTS
	VTIME
	VGR
	VCTRL
)

// Wire format sizing constants, from spec.md §3.
const (
	MaxStringSize     = 40
	MaxUnitsSize      = 8
	MaxEnumStringSize = 26
	MaxEnumStates     = 16
)

// nativeSizes gives the on-the-wire element size, in bytes, of one
// value of each native type.
var nativeSizes = [...]int{
	NSTRING: MaxStringSize,
	NINT:    2,
	NFLOAT:  4,
	NENUM:   2,
	NCHAR:   1,
	NLONG:   4,
	NDOUBLE: 8,
}

// NativeSize returns the wire size, in bytes, of a single element of n.
func NativeSize(n Native) int { return nativeSizes[n] }

// grid maps every (native, variant) pair to its concrete Type tag. It
// is the table-driven form spec.md §4.2 requires in place of computing
// the mapping on the fly.
var grid = map[[2]int]Type{
	{int(NSTRING), int(VNative)}: STRING, {int(NSTRING), int(VSTS)}: STS_STRING, {int(NSTRING), int(VTIME)}: TIME_STRING, {int(NSTRING), int(VGR)}: GR_STRING, {int(NSTRING), int(VCTRL)}: CTRL_STRING,
	{int(NINT), int(VNative)}: INT, {int(NINT), int(VSTS)}: STS_INT, {int(NINT), int(VTIME)}: TIME_INT, {int(NINT), int(VGR)}: GR_INT, {int(NINT), int(VCTRL)}: CTRL_INT,
	{int(NFLOAT), int(VNative)}: FLOAT, {int(NFLOAT), int(VSTS)}: STS_FLOAT, {int(NFLOAT), int(VTIME)}: TIME_FLOAT, {int(NFLOAT), int(VGR)}: GR_FLOAT, {int(NFLOAT), int(VCTRL)}: CTRL_FLOAT,
	{int(NENUM), int(VNative)}: ENUM, {int(NENUM), int(VSTS)}: STS_ENUM, {int(NENUM), int(VTIME)}: TIME_ENUM, {int(NENUM), int(VGR)}: GR_ENUM, {int(NENUM), int(VCTRL)}: CTRL_ENUM,
	{int(NCHAR), int(VNative)}: CHAR, {int(NCHAR), int(VSTS)}: STS_CHAR, {int(NCHAR), int(VTIME)}: TIME_CHAR, {int(NCHAR), int(VGR)}: GR_CHAR, {int(NCHAR), int(VCTRL)}: CTRL_CHAR,
	{int(NLONG), int(VNative)}: LONG, {int(NLONG), int(VSTS)}: STS_LONG, {int(NLONG), int(VTIME)}: TIME_LONG, {int(NLONG), int(VGR)}: GR_LONG, {int(NLONG), int(VCTRL)}: CTRL_LONG,
	{int(NDOUBLE), int(VNative)}: DOUBLE, {int(NDOUBLE), int(VSTS)}: STS_DOUBLE, {int(NDOUBLE), int(VTIME)}: TIME_DOUBLE, {int(NDOUBLE), int(VGR)}: GR_DOUBLE, {int(NDOUBLE), int(VCTRL)}: CTRL_DOUBLE,
}

var reverse = func() map[Type][2]int {
	m := make(map[Type][2]int, len(grid))
	for k, v := range grid {
		m[v] = k
	}
	return m
}()

// Promote returns the Type tag for (native, variant). It is a total
// function over the native x variant grid.
func Promote(native Native, variant Variant) Type {
	t, ok := grid[[2]int{int(native), int(variant)}]
	if !ok {
		panic("dbr: invalid native/variant combination")
	}
	return t
}

// NativeOf returns the native scalar type underlying a (possibly
// promoted) Type tag. It is total over every Type this package defines,
// including the specials, which report NSTRING (both carry a string).
func NativeOf(t Type) Native {
	if t == STSACK_STRING || t == CLASS_NAME {
		return NSTRING
	}
	nv, ok := reverse[t]
	if !ok {
		panic("dbr: unknown type")
	}
	return Native(nv[0])
}

// VariantOf returns the promotion level of t.
func VariantOf(t Type) Variant {
	if t == STSACK_STRING || t == CLASS_NAME {
		return VNative
	}
	nv, ok := reverse[t]
	if !ok {
		panic("dbr: unknown type")
	}
	return Variant(nv[1])
}

// IsSpecial reports whether t is STSACK_STRING or CLASS_NAME, the two
// tags outside the native x variant grid.
func IsSpecial(t Type) bool { return t == STSACK_STRING || t == CLASS_NAME }

// Valid reports whether t names a type this package knows how to lay
// out on the wire.
func Valid(t Type) bool {
	if IsSpecial(t) {
		return true
	}
	_, ok := reverse[t]
	return ok
}
