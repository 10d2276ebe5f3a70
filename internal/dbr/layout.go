// Copyright 2015-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package dbr

// Every struct below is a fixed-size, big-endian metadata block:
// exactly the bytes that precede a channel's value(s) for one promoted
// Type. Padding the real C headers insert to keep fields aligned is
// spelled out as blank `_` fields, the same way internal/vnc/protocol.go
// documents RFB padding, so that encoding/binary.Write/Read lays the
// struct out identically to the wire without any bit-twiddling here.
//
// Field layouts are grounded on the reference caproto implementation's
// _dbr.py (TimeString/TimeShort/.../CtrlDouble/CtrlEnum), which is
// itself a port of EPICS base's db_access.h.

// StsMeta is the STS_* metadata block: just status and severity.
type StsMeta struct {
	Status   int16
	Severity int16
}

// TimeMeta is the TIME_* metadata block shared by every native type:
// status, severity, and an EPICS timestamp. Each concrete TIME_* type
// additionally carries its own RISC padding before its value, spelled
// out as blank fields in each Time*Meta struct below rather than here,
// since the pad width depends on the native element size.
type TimeMeta struct {
	Status   int16
	Severity int16
	Stamp    TimeStamp
}

// --- TIME_* leading pads before the value, one per native type ---

type TimeStringMeta struct{ TimeMeta } // value: [40]byte, no pad

type TimeShortMeta struct {
	TimeMeta
	_ int16 // RISC_pad
}

type TimeFloatMeta struct{ TimeMeta } // value: float32, no pad

type TimeEnumMeta struct {
	TimeMeta
	_ int16 // RISC_pad
}

type TimeCharMeta struct {
	TimeMeta
	_ int16 // RISC_pad0
	_ int8  // RISC_pad1
}

type TimeLongMeta struct{ TimeMeta } // value: int32, no pad

type TimeDoubleMeta struct {
	TimeMeta
	_ int32 // RISC_pad
}

// --- GR_* (graphic): status, severity, [precision for float natives],
// units, display limits. No alarm/control limits, no timestamp. ---

type grBase struct {
	Status   int16
	Severity int16
}

type GrShortMeta struct {
	grBase
	Units           [MaxUnitsSize]byte
	UpperDispLimit  int16
	LowerDispLimit  int16
}

type GrCharMeta struct {
	grBase
	Units          [MaxUnitsSize]byte
	UpperDispLimit int8
	LowerDispLimit int8
}

type GrLongMeta struct {
	grBase
	Units          [MaxUnitsSize]byte
	UpperDispLimit int32
	LowerDispLimit int32
}

type GrFloatMeta struct {
	grBase
	Precision      int16
	_              int16 // RISC_pad
	Units          [MaxUnitsSize]byte
	UpperDispLimit float32
	LowerDispLimit float32
}

type GrDoubleMeta struct {
	grBase
	Precision      int16
	_              int16 // RISC_pad
	Units          [MaxUnitsSize]byte
	UpperDispLimit float64
	LowerDispLimit float64
}

// GR_STRING has no C analogue; like CTRL_STRING it is served with the
// plain TIME_STRING layout (see caproto's DBR_TYPES[CTRL_STRING] ==
// TimeString). GR_ENUM, likewise, carries the same enum-string table as
// CTRL_ENUM since enumerations have no display limits to omit.

// --- CTRL_* (control): status, severity, [precision], units, all
// eight alarm/warning/control/display limits. ---

type ctrlBase struct {
	Status   int16
	Severity int16
}

type CtrlShortMeta struct {
	ctrlBase
	Units                                                             [MaxUnitsSize]byte
	UpperDispLimit, LowerDispLimit, UpperAlarmLimit, UpperWarningLimit int16
	LowerWarningLimit, LowerAlarmLimit, UpperCtrlLimit, LowerCtrlLimit int16
}

type CtrlCharMeta struct {
	ctrlBase
	Units                                                             [MaxUnitsSize]byte
	UpperDispLimit, LowerDispLimit, UpperAlarmLimit, UpperWarningLimit int8
	LowerWarningLimit, LowerAlarmLimit, UpperCtrlLimit, LowerCtrlLimit int8
}

type CtrlLongMeta struct {
	ctrlBase
	Units                                                             [MaxUnitsSize]byte
	UpperDispLimit, LowerDispLimit, UpperAlarmLimit, UpperWarningLimit int32
	LowerWarningLimit, LowerAlarmLimit, UpperCtrlLimit, LowerCtrlLimit int32
}

type CtrlFloatMeta struct {
	ctrlBase
	Precision                                                         int16
	_                                                                  int16 // RISC_pad
	Units                                                              [MaxUnitsSize]byte
	UpperDispLimit, LowerDispLimit, UpperAlarmLimit, UpperWarningLimit float32
	LowerWarningLimit, LowerAlarmLimit, UpperCtrlLimit, LowerCtrlLimit float32
}

type CtrlDoubleMeta struct {
	ctrlBase
	Precision                                                         int16
	_                                                                  int16 // RISC_pad
	Units                                                              [MaxUnitsSize]byte
	UpperDispLimit, LowerDispLimit, UpperAlarmLimit, UpperWarningLimit float64
	LowerWarningLimit, LowerAlarmLimit, UpperCtrlLimit, LowerCtrlLimit float64
}

// CtrlEnumMeta is shared, unmodified, by both CTRL_ENUM and GR_ENUM: an
// enumeration has no display/alarm/control limits, only its string
// table, so the graphic and control forms coincide exactly as they do
// in EPICS base.
type CtrlEnumMeta struct {
	Status   int16
	Severity int16
	NumStrs  int16
	Strs     [MaxEnumStates][MaxEnumStringSize]byte
}

// ctrlLimitFields lists the eight limit attribute names, in wire order,
// shared by every CTRL_* metadata struct except CTRL_ENUM. Used by the
// PV database (internal/pvdb) to walk a channel's limits generically
// when filling in a requested metadata block.
var ctrlLimitFields = []string{
	"UpperDispLimit", "LowerDispLimit",
	"UpperAlarmLimit", "UpperWarningLimit",
	"LowerWarningLimit", "LowerAlarmLimit",
	"UpperCtrlLimit", "LowerCtrlLimit",
}

// CtrlLimitFields exposes ctrlLimitFields to other packages.
func CtrlLimitFields() []string { return append([]string(nil), ctrlLimitFields...) }

// STSACKStringMeta is the STSACK_STRING payload: alarm status/severity,
// ack-transient flag, ack-severity, and the alarm message string.
type STSACKStringMeta struct {
	Status   int16
	Severity int16
	AckT     int16
	AckS     int16
	Value    [MaxStringSize]byte
}

// ClassNameMeta is the CLASS_NAME payload: just the record-type string.
type ClassNameMeta struct {
	Value [MaxStringSize]byte
}

// MetaPrototype returns a fresh, zeroed pointer to the metadata struct
// for t, or nil for a native (unpromoted) type, which carries no
// metadata at all. Mirrors the func()interface{} factory-map idiom
// internal/vnc/decode.go uses for clientMessages.
func MetaPrototype(t Type) interface{} {
	switch t {
	case STSACK_STRING:
		return &STSACKStringMeta{}
	case CLASS_NAME:
		return &ClassNameMeta{}
	}

	if IsSpecial(t) || VariantOf(t) == VNative {
		return nil
	}

	native := NativeOf(t)
	switch VariantOf(t) {
	case VSTS:
		return &StsMeta{}
	case VTIME:
		switch native {
		case NSTRING:
			return &TimeStringMeta{}
		case NINT:
			return &TimeShortMeta{}
		case NFLOAT:
			return &TimeFloatMeta{}
		case NENUM:
			return &TimeEnumMeta{}
		case NCHAR:
			return &TimeCharMeta{}
		case NLONG:
			return &TimeLongMeta{}
		case NDOUBLE:
			return &TimeDoubleMeta{}
		}
	case VGR:
		switch native {
		case NSTRING:
			return &TimeStringMeta{} // no GR/CTRL string layout; see comment above
		case NINT:
			return &GrShortMeta{}
		case NFLOAT:
			return &GrFloatMeta{}
		case NENUM:
			return &CtrlEnumMeta{}
		case NCHAR:
			return &GrCharMeta{}
		case NLONG:
			return &GrLongMeta{}
		case NDOUBLE:
			return &GrDoubleMeta{}
		}
	case VCTRL:
		switch native {
		case NSTRING:
			return &TimeStringMeta{}
		case NINT:
			return &CtrlShortMeta{}
		case NFLOAT:
			return &CtrlFloatMeta{}
		case NENUM:
			return &CtrlEnumMeta{}
		case NCHAR:
			return &CtrlCharMeta{}
		case NLONG:
			return &CtrlLongMeta{}
		case NDOUBLE:
			return &CtrlDoubleMeta{}
		}
	}
	panic("dbr: unreachable metadata lookup")
}
