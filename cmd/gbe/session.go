// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package gbe

import (
	"fmt"
	"io"
	"time"

	redigo "github.com/garyburd/redigo/redis"
	"github.com/platinasystems/log"
	"github.com/platinasystems/undi/elib/hw/dma"
	"github.com/platinasystems/undi/undi"
	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
)

const (
	phy_port   = 1
	frame_size = 1514
)

// iface is one simulated controller and the memory it DMAs into.
type iface struct {
	ifnum uint16
	a     *undi.Adapter
	sim   *intelgbe.Sim
	phy   *intelgbe.SimPhy
	mem   *dma.Physmem
	// Transmit buffers owned by hardware, by host address.
	pending map[uint64]uint
}

func (x *iface) String() string { return fmt.Sprintf("if%d", x.ifnum) }

type session struct {
	config
	u    *undi.Undi
	ifs  []*iface
	w    io.Writer
	conn redigo.Conn
}

func new_session(c config, w io.Writer) (*session, error) {
	s := &session{config: c, u: undi.New(), w: w}
	for i := 0; i < c.n; i++ {
		x, err := s.attach(i)
		if err != nil {
			return nil, err
		}
		s.ifs = append(s.ifs, x)
	}
	return s, nil
}

func (s *session) attach(i int) (*iface, error) {
	dc := intelgbe.DefaultConfig()
	dc.TxRingLen, dc.RxRingLen = s.tx, s.rx
	dc.Verbose = s.verbose
	// Simulated hardware settles instantly.
	dc.Sleep = func(time.Duration) {}

	// Rings, receive buffers, a frame per transmit slot and scratch.
	pages := dma.BytesToPages(s.tx*16) + dma.BytesToPages(s.rx*16) +
		dma.BytesToPages(s.rx*dc.RxBufferSize) + s.tx*dma.BytesToPages(frame_size) + 4
	x := &iface{
		mem:     dma.NewPhysmem(pages),
		pending: make(map[uint64]uint),
	}
	// Locally administered.
	addr := intelgbe.Address{0x02, 0x00, 0x00, 0x00, byte(i >> 8), byte(i + 1)}
	x.sim = intelgbe.NewSim(x.mem, addr)
	x.sim.Loopback = s.loopback
	p, err := intelgbe.NewSimPhy(s.phy)
	if err != nil {
		return nil, err
	}
	p.SetCable(s.cable)
	x.phy = p
	x.sim.Attach(phy_port, p)

	m := dma.NewManager(x.mem)
	d, err := intelgbe.New(x.sim, m, s.dev, dc)
	if err != nil {
		return nil, err
	}
	if err = d.AllocRings(); err != nil {
		return nil, err
	}
	if err = d.FirstTimeInit(); err != nil {
		d.FreeRings()
		return nil, fmt.Errorf("if%d: %w", i, err)
	}
	x.a = undi.NewAdapter(d, m)
	x.a.Verbose = s.verbose
	x.ifnum = s.u.Attach(x.a)
	return x, nil
}

func (s *session) close() {
	s.u.ExitBootServices()
	for _, x := range s.ifs {
		if _, err := s.u.Detach(x.ifnum); err != nil {
			log.Print("err", x, "detach:", err)
		}
		x.a.Dev().FreeRings()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

// call runs one command block, converting failures into errors.
func (s *session) call(x *iface, op undi.OpCode, flags undi.OpFlags, cpb, db interface{}) (*undi.Cdb, error) {
	c := undi.NewCdb(x.ifnum, op, flags, cpb, db)
	if err := s.u.ApiEntry(c); err != nil {
		return c, fmt.Errorf("%v %v: %v: %w", x, op, c.StatCode, err)
	}
	if c.Failed() {
		return c, fmt.Errorf("%v %v: %v", x, op, c.StatCode)
	}
	return c, nil
}

// up starts, initializes and enables receive on each interface.
func (s *session) up(ifs ...*iface) error {
	for _, x := range ifs {
		if _, err := s.call(x, undi.OpStart, 0, &undi.CpbStart{}, nil); err != nil {
			return err
		}
		flags := undi.OpFlagsInitializeDetectCable
		if !s.cable {
			flags = undi.OpFlagsInitializeDoNotDetectCable
		}
		c, err := s.call(x, undi.OpInitialize, flags, &undi.CpbInitialize{}, &undi.DbInitialize{})
		if err != nil {
			return err
		}
		if c.StatFlags&undi.StatFlagsInitializedNoMedia != 0 {
			fmt.Fprintln(s.w, x, "no media")
		}
		_, err = s.call(x, undi.OpReceiveFilters,
			undi.OpFlagsFilterEnable|undi.OpFlagsFilterUnicast|undi.OpFlagsFilterBroadcast,
			nil, nil)
		if err != nil {
			return err
		}
	}
	return nil
}

// reclaim collects completed transmit buffers and frees them.
func (s *session) reclaim(x *iface) (n int, err error) {
	for {
		db := &undi.DbGetStatus{TxBuffer: make([]uint64, 8)}
		c, err := s.call(x, undi.OpGetStatus, undi.OpFlagsGetTransmittedBuffers, nil, db)
		if err != nil {
			return n, err
		}
		for _, cpu := range db.TxBuffer {
			if err := x.mem.FreePages(cpu, x.pending[cpu]); err != nil {
				log.Print("err", x, "free tx buffer:", err)
			}
			delete(x.pending, cpu)
		}
		n += len(db.TxBuffer)
		if c.StatFlags&undi.StatFlagsNoTxBufsWritten != 0 || len(db.TxBuffer) == 0 {
			return n, nil
		}
	}
}
