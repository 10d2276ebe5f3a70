// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package pvdb

import (
	"reflect"
	"sync"
	"time"

	"github.com/caproto/caproto-sub001/internal/caerr"
	"github.com/caproto/caproto-sub001/internal/codec"
	"github.com/caproto/caproto-sub001/internal/convert"
	"github.com/caproto/caproto-sub001/internal/dbr"
)

// AccessRights is the result of a check_access call.
type AccessRights int

const (
	NoAccess AccessRights = iota
	ReadOnly
	WriteOnly
	ReadWrite
)

// AccessFunc decides what a (host, user) pair may do to a channel.
// The default, set by New, grants ReadWrite unconditionally.
type AccessFunc func(host, user string) AccessRights

// Limits holds the eight alarm/warning/control/display limits in the
// wire order dbr.CtrlLimitFields() names them.
type Limits struct {
	UpperDispLimit, LowerDispLimit                     float64
	UpperAlarmLimit, UpperWarningLimit                 float64
	LowerWarningLimit, LowerAlarmLimit                 float64
	UpperCtrlLimit, LowerCtrlLimit                      float64
}

// Channel is one PV: typed value storage, alarm state, and the
// metadata a client may request it promoted into.
type Channel struct {
	mu sync.RWMutex

	name       string
	native     dbr.Native
	values     dbr.Values
	timestamp  dbr.TimeStamp
	enumStrings []string
	units      string
	precision  int16
	limits     Limits
	recordType string

	Alarm *Alarm

	checkAccess AccessFunc

	subMu sync.Mutex
	subs  map[uint32]subscription

	metrics *Metrics
}

type subscription struct {
	mask  uint16
	dtype dbr.Type
	queue Queue
}

// Event is what a write or alarm change posts to every matching
// subscription: the channel's current value and the data needed to
// build an EventAddResponse.
type Event struct {
	CID      uint32
	SubID    uint32
	DataType dbr.Type
	Metadata interface{}
	Values   dbr.Values
}

// Queue is the non-blocking-from-the-writer enqueue abstraction the
// database posts subscription events through; the consumer side lives
// in the enclosing I/O layer, per spec.md §4.5.
type Queue interface {
	Enqueue(Event)
}

// New constructs a channel holding an initial value of the given
// native type. check_access defaults to unconditional ReadWrite.
func New(name string, native dbr.Native, initial dbr.Values, enumStrings []string) *Channel {
	return &Channel{
		name:        name,
		native:      native,
		values:      initial,
		timestamp:   dbr.FromTime(time.Now()),
		enumStrings: enumStrings,
		recordType:  "caproto",
		Alarm:       &Alarm{},
		checkAccess: func(string, string) AccessRights { return ReadWrite },
		subs:        make(map[uint32]subscription),
	}
}

// SetCheckAccess overrides the default check_access hook.
func (c *Channel) SetCheckAccess(f AccessFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkAccess = f
}

// SetMetrics attaches the optional Prometheus metrics hook.
func (c *Channel) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// CheckAccess consults the access-control hook for (host, user).
func (c *Channel) CheckAccess(host, user string) AccessRights {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkAccess(host, user)
}

// Name returns the channel's PV name.
func (c *Channel) Name() string { return c.name }

// NativeType reports the bare (unpromoted) dbr.Type a CreateChanResponse
// advertises for this channel.
func (c *Channel) NativeType() dbr.Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return dbr.Promote(c.native, dbr.VNative)
}

// Count reports the channel's current element count.
func (c *Channel) Count() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return uint32(c.values.Len())
}

// Subscribe registers subid to receive events matching mask, each
// converted into reqType the same way a Read(reqType) would be. Per
// spec.md §3 the server emits one EventAddResponse immediately upon
// registration (the "first reading") regardless of mask, so Subscribe
// enqueues that initial Event itself before returning it to the caller
// for building the EventAddResponse.
func (c *Channel) Subscribe(subid uint32, reqType dbr.Type, mask uint16, q Queue) (Event, error) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.mu.RLock()
	meta, values, err := c.convertLocked(reqType)
	c.mu.RUnlock()
	if err != nil {
		return Event{}, err
	}

	c.subs[subid] = subscription{mask: mask, dtype: reqType, queue: q}

	ev := Event{SubID: subid, DataType: reqType, Metadata: meta, Values: values}
	q.Enqueue(ev)
	return ev, nil
}

// Unsubscribe removes subid.
func (c *Channel) Unsubscribe(subid uint32) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subs, subid)
}

// Read implements the read(requested_dtype) contract: it returns the
// metadata block promoted for t (nil for a bare native type) and the
// channel's value converted into t's native representation. Reads take
// only a brief shared lock, never blocking on a writer for long.
func (c *Channel) Read(t dbr.Type) (metadata interface{}, values dbr.Values, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	metadata, values, err = c.convertLocked(t)
	if err != nil {
		return nil, dbr.Values{}, err
	}
	if c.metrics != nil {
		c.metrics.readsTotal.WithLabelValues(c.name).Inc()
	}
	return metadata, values, nil
}

// convertLocked builds the (metadata, values) pair Read and Subscribe
// both need: the channel's current value converted into t's native
// representation plus, for any promoted t, its metadata block. Callers
// must hold at least c.mu.RLock().
func (c *Channel) convertLocked(t dbr.Type) (metadata interface{}, values dbr.Values, err error) {
	if t == dbr.STSACK_STRING {
		snap := c.Alarm.Read()
		meta := &dbr.STSACKStringMeta{
			Status:   snap.Status,
			Severity: int16(snap.Severity),
			AckS:     int16(snap.SeverityToAcknowledge),
		}
		if snap.AckTransient {
			meta.AckT = 1
		}
		dbr.PutCString(meta.Value[:], snap.AlarmString)
		return meta, dbr.Values{}, nil
	}
	if t == dbr.CLASS_NAME {
		meta := &dbr.ClassNameMeta{}
		dbr.PutCString(meta.Value[:], c.recordType)
		return meta, dbr.Values{}, nil
	}

	native := dbr.NativeOf(t)
	converted, err := convert.Values(c.values, native, c.enumStrings)
	if err != nil {
		return nil, dbr.Values{}, err
	}

	meta := dbr.MetaPrototype(t)
	if meta == nil {
		return nil, converted, nil
	}
	c.fillMetadata(meta, t)
	return meta, converted, nil
}

// AuthRead wraps Read with a check_access gate.
func (c *Channel) AuthRead(host, user string, t dbr.Type) (interface{}, dbr.Values, error) {
	if rights := c.CheckAccess(host, user); rights != ReadOnly && rights != ReadWrite {
		return nil, dbr.Values{}, caerr.NewForbidden(host, user, "read")
	}
	return c.Read(t)
}

// Write implements the write(data, data_type, metadata) contract:
// converts data into the channel's native type, updates the timestamp
// (to "now" if metadata carries none), and posts a VALUE event to
// every subscription whose mask includes EventMaskValue.
func (c *Channel) Write(data dbr.Values, fromType dbr.Type, stamp *dbr.TimeStamp) error {
	converted, err := convert.Values(data, c.native, c.enumStrings)
	if err != nil {
		return err
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = converted
	if stamp != nil {
		c.timestamp = *stamp
	} else {
		c.timestamp = dbr.FromTime(time.Now())
	}

	if c.metrics != nil {
		c.metrics.writesTotal.WithLabelValues(c.name).Inc()
	}

	c.notify(codec.EventMaskValue)
	return nil
}

// AuthWrite wraps Write with a check_access gate.
func (c *Channel) AuthWrite(host, user string, data dbr.Values, fromType dbr.Type, stamp *dbr.TimeStamp) error {
	if rights := c.CheckAccess(host, user); rights != WriteOnly && rights != ReadWrite {
		return caerr.NewForbidden(host, user, "write")
	}
	return c.Write(data, fromType, stamp)
}

// notify posts a VALUE-masked event to every subscription whose mask
// includes it, converted and promoted into each subscription's own
// requested_dtype per spec.md §3 — not the channel's bare native type.
// Write calls this while holding c.subMu and the channel's write lock,
// so enqueues happen under the write lock and "value becomes X" and
// "subscribers notified of X" are ordered for any one observer.
func (c *Channel) notify(mask uint16) {
	for subid, sub := range c.subs {
		if sub.mask&mask == 0 {
			continue
		}
		meta, values, err := c.convertLocked(sub.dtype)
		if err != nil {
			continue
		}
		sub.queue.Enqueue(Event{
			SubID:    subid,
			DataType: sub.dtype,
			Metadata: meta,
			Values:   values,
		})
	}
}

// fillMetadata copies status/severity/timestamp/units/precision/limits
// into whatever fields meta happens to have, the Go analogue of the
// reference implementation's hasattr/setattr metadata copy.
func (c *Channel) fillMetadata(meta interface{}, t dbr.Type) {
	v := reflect.ValueOf(meta)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	e := v.Elem()

	snap := c.Alarm.Read()
	setInt16(e, "Status", snap.Status)
	setInt16(e, "Severity", int16(snap.Severity))

	if f := e.FieldByName("Stamp"); f.IsValid() && f.CanSet() {
		f.Set(reflect.ValueOf(c.timestamp))
	}
	if f := e.FieldByName("Precision"); f.IsValid() && f.CanSet() {
		f.SetInt(int64(c.precision))
	}
	if f := e.FieldByName("Units"); f.IsValid() && f.CanSet() && f.Kind() == reflect.Array {
		b := make([]byte, f.Len())
		dbr.PutCString(b, c.units)
		reflect.Copy(f, reflect.ValueOf(b))
	}

	limitValues := map[string]float64{
		"UpperDispLimit": c.limits.UpperDispLimit, "LowerDispLimit": c.limits.LowerDispLimit,
		"UpperAlarmLimit": c.limits.UpperAlarmLimit, "UpperWarningLimit": c.limits.UpperWarningLimit,
		"LowerWarningLimit": c.limits.LowerWarningLimit, "LowerAlarmLimit": c.limits.LowerAlarmLimit,
		"UpperCtrlLimit": c.limits.UpperCtrlLimit, "LowerCtrlLimit": c.limits.LowerCtrlLimit,
	}
	for _, name := range dbr.CtrlLimitFields() {
		f := e.FieldByName(name)
		if !f.IsValid() || !f.CanSet() {
			continue
		}
		setNumeric(f, limitValues[name])
	}
}

func setInt16(e reflect.Value, name string, val int16) {
	f := e.FieldByName(name)
	if f.IsValid() && f.CanSet() && f.Kind() == reflect.Int16 {
		f.SetInt(int64(val))
	}
}

func setNumeric(f reflect.Value, val float64) {
	switch f.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(int64(val))
	case reflect.Float32, reflect.Float64:
		f.SetFloat(val)
	}
}
