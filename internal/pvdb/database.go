// Copyright 2015-2023 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

package pvdb

import (
	"sync"

	"github.com/caproto/caproto-sub001/pkg/calog"
)

// Database is one server's collection of channels, keyed by PV name.
type Database struct {
	mu       sync.Mutex
	channels map[string]*Channel
	logger   *calog.Logger
}

// NewDatabase constructs an empty database.
func NewDatabase() *Database {
	return &Database{channels: make(map[string]*Channel)}
}

// SetLogger attaches the per-instance logger Add/Remove report to. A
// nil logger (the default) discards everything.
func (d *Database) SetLogger(l *calog.Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = l
}

// Add registers ch under its own name, replacing any prior channel of
// the same name.
func (d *Database) Add(ch *Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.name] = ch
	d.logger.Info("added channel %q", ch.name)
}

// Lookup returns the channel named name, if any.
func (d *Database) Lookup(name string) (*Channel, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[name]
	return ch, ok
}

// Remove deletes the channel named name.
func (d *Database) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, name)
	d.logger.Info("removed channel %q", name)
}

// Names returns every registered channel name.
func (d *Database) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.channels))
	for name := range d.channels {
		out = append(out, name)
	}
	return out
}
