// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package undi decodes network interface command blocks and routes them
// to attached controllers.
package undi

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/platinasystems/log"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotReady         = errors.New("not ready")
)

// Undi is the list of attached interfaces and the entry point for
// command blocks addressed to them.
type Undi struct {
	mu       sync.Mutex
	adapters []*Adapter
	// Set once the firmware hands the machine to an operating system.
	exit_boot_services bool

	// Serializes hardware access for adapters without a Block callback.
	lock sync.Mutex

	table *api_table
}

func New() *Undi { return &Undi{table: &default_api_table} }

// Attach adds a to the interface list and returns its interface number.
func (u *Undi) Attach(a *Adapter) uint16 {
	u.mu.Lock()
	defer u.mu.Unlock()
	for i := range u.adapters {
		if u.adapters[i] == nil {
			u.adapters[i] = a
			return uint16(i)
		}
	}
	u.adapters = append(u.adapters, a)
	return uint16(len(u.adapters) - 1)
}

// Detach removes interface ifnum.
func (u *Undi) Detach(ifnum uint16) (a *Adapter, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if int(ifnum) >= len(u.adapters) || u.adapters[ifnum] == nil {
		return nil, fmt.Errorf("interface %d: %w", ifnum, ErrInvalidParameter)
	}
	a = u.adapters[ifnum]
	u.adapters[ifnum] = nil
	return
}

// Adapter returns interface ifnum or nil.
func (u *Undi) Adapter(ifnum uint16) *Adapter {
	u.mu.Lock()
	defer u.mu.Unlock()
	if int(ifnum) < len(u.adapters) {
		return u.adapters[ifnum]
	}
	return nil
}

// Foreach calls f for each attached interface.
func (u *Undi) Foreach(f func(ifnum uint16, a *Adapter)) {
	u.mu.Lock()
	l := append([]*Adapter(nil), u.adapters...)
	u.mu.Unlock()
	for i, a := range l {
		if a != nil {
			f(uint16(i), a)
		}
	}
}

// ExitBootServices quiesces every controller and fails all later
// commands; bus mastering may be gone after this.
func (u *Undi) ExitBootServices() {
	u.mu.Lock()
	u.exit_boot_services = true
	l := append([]*Adapter(nil), u.adapters...)
	u.mu.Unlock()
	for _, a := range l {
		if a != nil && a.dev.HwInitialized {
			unlock := a.acquire(&u.lock)
			a.dev.Shutdown()
			unlock()
		}
	}
}

func absent(b interface{}) bool {
	if b == nil {
		return true
	}
	v := reflect.ValueOf(b)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// ApiEntry validates c and runs its command.  The outcome is reported in
// c.StatCode and c.StatFlags; the returned error only says whether the
// command reached its handler.
func (u *Undi) ApiEntry(c *Cdb) (err error) {
	if c == nil {
		return ErrInvalidParameter
	}
	u.mu.Lock()
	var a *Adapter
	if int(c.IFnum) < len(u.adapters) {
		a = u.adapters[c.IFnum]
	}
	exit := u.exit_boot_services
	u.mu.Unlock()

	if a == nil {
		c.fail(StatInvalidCdb)
		return fmt.Errorf("interface %d: %w", c.IFnum, ErrInvalidParameter)
	}
	if exit {
		c.fail(StatNotInitialized)
		return fmt.Errorf("boot services exited: %w", ErrInvalidParameter)
	}

	if c.OpCode > OpLastValid ||
		c.StatCode != StatCodeInitialize ||
		c.StatFlags != StatFlagsInitialize ||
		(c.CPBsize == NotUsed) != absent(c.CPB) ||
		(c.DBsize == NotUsed) != absent(c.DB) {
		return a.bad_cdb(c)
	}
	e := &u.table[c.OpCode]
	if !e.validate(c) {
		return a.bad_cdb(c)
	}

	unlock := a.acquire(&u.lock)
	defer unlock()

	if code, ok := e.allows(a.State); !ok {
		c.fail(code)
		return fmt.Errorf("%v in state %s: %w", c.OpCode, state_string(a.State), ErrNotReady)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Print("err", a, c.OpCode, "panic:", r)
			c.fail(StatDeviceFailure)
		}
	}()
	c.StatFlags = StatFlagsCommandComplete
	c.StatCode = StatSuccess
	e.handler(a, c)
	if a.Verbose && c.Failed() {
		log.Print("debug", a, c)
	}
	return nil
}

func (a *Adapter) bad_cdb(c *Cdb) error {
	if a.Verbose {
		log.Print("debug", a, "bad cdb", c)
	}
	c.fail(StatInvalidCdb)
	return fmt.Errorf("%v: %w", c.OpCode, ErrNotReady)
}
