package dbr

import "time"

// EpicsToPosixOffset is the number of seconds between the POSIX epoch
// (1970-01-01 UTC) and the EPICS epoch (1990-01-01 UTC).
const EpicsToPosixOffset = 631152000

// TimeStamp is the on-the-wire EPICS timestamp: seconds since the EPICS
// epoch, plus nanoseconds within that second.
type TimeStamp struct {
	Sec  uint32
	Nsec uint32
}

// FromTime converts a time.Time into an EPICS TimeStamp.
func FromTime(t time.Time) TimeStamp {
	posix := t.Unix()
	epics := posix - EpicsToPosixOffset
	if epics < 0 {
		epics = 0
	}
	return TimeStamp{Sec: uint32(epics), Nsec: uint32(t.Nanosecond())}
}

// ToTime converts an EPICS TimeStamp into a time.Time in UTC.
func ToTime(ts TimeStamp) time.Time {
	posix := int64(ts.Sec) + EpicsToPosixOffset
	return time.Unix(posix, int64(ts.Nsec)).UTC()
}

// FromPosix converts a POSIX timestamp (seconds, as a float64 with
// sub-second precision) into an EPICS TimeStamp.
func FromPosix(posix float64) TimeStamp {
	sec := int64(posix)
	frac := posix - float64(sec)
	epics := sec - EpicsToPosixOffset
	if epics < 0 {
		epics = 0
	}
	return TimeStamp{Sec: uint32(epics), Nsec: uint32(frac * 1e9)}
}

// ToPosix converts an EPICS TimeStamp back into a POSIX timestamp.
func ToPosix(ts TimeStamp) float64 {
	return float64(int64(ts.Sec)+EpicsToPosixOffset) + float64(ts.Nsec)*1e-9
}
