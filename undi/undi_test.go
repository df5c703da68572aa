// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package undi

import (
	"errors"
	"testing"
)

// raw is a command block of arbitrary size.
type raw uint16

func (r raw) Size() uint16 { return uint16(r) }

type spy struct {
	calls [n_opcodes]int
	panic bool
}

func (s *spy) table() *api_table {
	t := default_api_table
	for i := range t {
		op := OpCode(i)
		t[i].handler = func(a *Adapter, c *Cdb) {
			s.calls[op]++
			if s.panic {
				panic("spy")
			}
		}
	}
	return &t
}

func spy_undi(state StatFlags) (*Undi, *spy, *Adapter) {
	s := &spy{}
	u := &Undi{table: s.table()}
	a := &Adapter{State: state}
	u.Attach(a)
	return u, s, a
}

// valid_cdb returns a block accepted by the table entry for op.
func valid_cdb(op OpCode) *Cdb {
	e := &default_api_table[op]
	c := &Cdb{OpCode: op}
	if n := e.cpb_size; n != NotUsed {
		if n == DontCheck {
			n = 8
		}
		c.CPB, c.CPBsize = raw(n), n
	}
	if n := e.db_size; n != NotUsed {
		if n == DontCheck {
			n = 8
		}
		c.DB, c.DBsize = raw(n), n
	}
	if e.op_flags != DontCheck {
		c.OpFlags = OpFlags(e.op_flags)
	}
	return c
}

// mismatches returns blocks violating the table entry for op.
func mismatches(op OpCode) (l []*Cdb) {
	e := &default_api_table[op]
	add := func(f func(c *Cdb)) {
		c := valid_cdb(op)
		f(c)
		l = append(l, c)
	}
	if e.cpb_size != DontCheck {
		add(func(c *Cdb) { c.CPB, c.CPBsize = raw(e.cpb_size+4), e.cpb_size+4 })
	}
	if e.cpb_size != DontCheck && e.cpb_size != NotUsed {
		add(func(c *Cdb) { c.CPB, c.CPBsize = nil, NotUsed })
	}
	if e.db_size != DontCheck {
		add(func(c *Cdb) { c.DB, c.DBsize = raw(e.db_size+4), e.db_size+4 })
	}
	if e.db_size != DontCheck && e.db_size != NotUsed {
		add(func(c *Cdb) { c.DB, c.DBsize = nil, NotUsed })
	}
	if e.op_flags != DontCheck {
		add(func(c *Cdb) { c.OpFlags ^= 1 })
	}
	// Size and block must agree.
	add(func(c *Cdb) { c.CPB, c.CPBsize = nil, 8 })
	add(func(c *Cdb) { c.DB, c.DBsize = raw(8), NotUsed })
	add(func(c *Cdb) { c.CPB, c.CPBsize = (*CpbReceive)(nil), CpbReceiveSize })
	// Status fields must hold their initial values.
	add(func(c *Cdb) { c.StatCode = StatBusy })
	add(func(c *Cdb) { c.StatFlags = StatFlagsCommandComplete })
	return
}

func TestTableValidation(t *testing.T) {
	for op := OpGetState; op <= OpLastValid; op++ {
		u, s, _ := spy_undi(StateInitialized)
		for i, c := range mismatches(op) {
			err := u.ApiEntry(c)
			if !errors.Is(err, ErrNotReady) {
				t.Errorf("%v case %d: got %v want %v", op, i, err, ErrNotReady)
			}
			if c.StatCode != StatInvalidCdb || c.StatFlags != StatFlagsCommandFailed {
				t.Errorf("%v case %d: %v", op, i, c)
			}
		}
		if s.calls[op] != 0 {
			t.Errorf("%v: handler called %d times on bad blocks", op, s.calls[op])
		}
		c := valid_cdb(op)
		if err := u.ApiEntry(c); err != nil {
			t.Errorf("%v: %v", op, err)
		}
		if c.StatCode != StatSuccess || c.StatFlags != StatFlagsCommandComplete {
			t.Errorf("%v: %v", op, c)
		}
		if s.calls[op] != 1 {
			t.Errorf("%v: handler calls got %d want 1", op, s.calls[op])
		}
	}
}

func TestOpcodeRange(t *testing.T) {
	u, s, _ := spy_undi(StateInitialized)
	for _, op := range []OpCode{OpLastValid + 1, 0x100, 0xffff} {
		c := &Cdb{OpCode: op}
		if err := u.ApiEntry(c); !errors.Is(err, ErrNotReady) || c.StatCode != StatInvalidCdb {
			t.Errorf("%v: %v %v", op, c, err)
		}
	}
	if s.calls != [n_opcodes]int{} {
		t.Error("handlers called:", s.calls)
	}
	if got := OpCode(0x100).String(); got != "opcode-256" {
		t.Errorf("name: got %q", got)
	}
}

func TestStateGating(t *testing.T) {
	started := map[OpCode]bool{
		OpStop:          true,
		OpGetInitInfo:   true,
		OpGetConfigInfo: true,
		OpInitialize:    true,
	}
	for op := OpGetState; op <= OpLastValid; op++ {
		always := op == OpGetState || op == OpStart
		for _, tc := range []struct {
			state StatFlags
			want  StatCode
		}{
			{StateStopped, StatNotStarted},
			{StateStarted, StatNotInitialized},
			{StateInitialized, StatSuccess},
		} {
			want := tc.want
			switch {
			case always:
				want = StatSuccess
			case started[op] && tc.state == StateStarted:
				want = StatSuccess
			}
			u, s, _ := spy_undi(tc.state)
			c := valid_cdb(op)
			err := u.ApiEntry(c)
			if c.StatCode != want {
				t.Errorf("%v in %s: got %v want %v", op, state_string(tc.state), c.StatCode, want)
			}
			if want == StatSuccess {
				if err != nil || s.calls[op] != 1 {
					t.Errorf("%v in %s: %v calls %d", op, state_string(tc.state), err, s.calls[op])
				}
			} else {
				if !errors.Is(err, ErrNotReady) || s.calls[op] != 0 || !c.Failed() {
					t.Errorf("%v in %s: %v calls %d", op, state_string(tc.state), err, s.calls[op])
				}
			}
		}
	}
}

func TestInterfaceList(t *testing.T) {
	u, s, a := spy_undi(StateInitialized)
	if err := u.ApiEntry(nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("nil cdb:", err)
	}
	c := valid_cdb(OpGetState)
	c.IFnum = 1
	if err := u.ApiEntry(c); !errors.Is(err, ErrInvalidParameter) || c.StatCode != StatInvalidCdb {
		t.Errorf("ifnum 1: %v %v", c, err)
	}

	b := &Adapter{State: StateStarted}
	if got := u.Attach(b); got != 1 {
		t.Errorf("attach: got %d want 1", got)
	}
	if got, err := u.Detach(0); err != nil || got != a {
		t.Errorf("detach: %v %v", got, err)
	}
	if _, err := u.Detach(0); !errors.Is(err, ErrInvalidParameter) {
		t.Error("second detach:", err)
	}
	c = valid_cdb(OpGetState)
	if err := u.ApiEntry(c); !errors.Is(err, ErrInvalidParameter) {
		t.Error("detached interface:", err)
	}
	c = valid_cdb(OpGetState)
	c.IFnum = 1
	if err := u.ApiEntry(c); err != nil || c.Failed() {
		t.Errorf("interface 1: %v %v", c, err)
	}
	if got := u.Attach(a); got != 0 {
		t.Errorf("reattach: got %d want 0", got)
	}
	var n int
	u.Foreach(func(uint16, *Adapter) { n++ })
	if n != 2 {
		t.Errorf("foreach: got %d want 2", n)
	}
	if s.calls[OpGetState] != 1 {
		t.Errorf("get state calls: got %d want 1", s.calls[OpGetState])
	}
}

func TestPanicContained(t *testing.T) {
	u, s, _ := spy_undi(StateInitialized)
	s.panic = true
	c := valid_cdb(OpStatistics)
	if err := u.ApiEntry(c); err != nil {
		t.Fatal(err)
	}
	if c.StatCode != StatDeviceFailure || !c.Failed() {
		t.Error("got", c)
	}
	// Lock must have been released.
	s.panic = false
	c = valid_cdb(OpGetState)
	if err := u.ApiEntry(c); err != nil || c.Failed() {
		t.Error("after panic:", c, err)
	}
}
