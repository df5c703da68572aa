// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"encoding/binary"
	"sync"

	"github.com/platinasystems/undi/elib/hw"
	"github.com/platinasystems/undi/elib/hw/dma"
)

const (
	sim_mac_version = 0x52
	sim_n_channels  = 8
)

// Sim is a register level model of the controller.  It implements
// hw.Bus and moves frames through descriptor rings in mem.
type Sim struct {
	mu   sync.Mutex
	regs hw.Regs
	mem  *dma.Physmem

	// Factory station address.
	Addr Address

	// PHYs by MDIO port address.
	Phys map[uint]*SimPhy
	// SERDES lane strapped for 2.5G.
	Serdes2500 bool
	modphy     map[uint]uint16
	xpcs       map[uint]uint16

	// MDIO busy never clears.
	StuckMdio bool
	// DMA_MODE.SWR never clears.
	StuckReset bool
	// Reads of the MDIO address register.
	MdioAddressReads int

	// Transmitted frames are delivered to the receive ring.
	Loopback bool
	// Set on the next received frame's write back descriptor.
	RxErrorDes2, RxErrorDes3 uint32
	// Next received frame lacks the last descriptor mark.
	RxNoLast bool
	// Set error summary on transmit write back.
	TxError bool

	// Frames transmitted when not in loopback.
	Sent [][]byte
	// Frames arriving with no armed receive descriptor.
	RxMissed int

	tx_cur, rx_cur uint
	tx_frame       []byte
}

func NewSim(mem *dma.Physmem, addr Address) *Sim {
	s := &Sim{
		mem:    mem,
		Addr:   addr,
		Phys:   make(map[uint]*SimPhy),
		modphy: make(map[uint]uint16),
		xpcs:   make(map[uint]uint16),
	}
	s.power_on()
	return s
}

// Attach places p at MDIO address port.
func (s *Sim) Attach(port uint, p *SimPhy) {
	s.mu.Lock()
	s.Phys[port] = p
	s.mu.Unlock()
}

func (s *Sim) power_on() {
	s.regs = make(hw.Regs)
	s.regs[mac_version.Offset()] = 0x1000 | sim_mac_version
	a := s.Addr
	s.regs[mac_address0_high.Offset()] = mac_address_enable | uint32(a[5])<<8 | uint32(a[4])
	s.regs[mac_address0_low.Offset()] = uint32(a[3])<<24 | uint32(a[2])<<16 | uint32(a[1])<<8 | uint32(a[0])
	s.tx_cur, s.rx_cur = 0, 0
	s.tx_frame = nil
}

func (s *Sim) LoadUint32(o uint) (v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v = s.regs[o]
	switch reg(o) {
	case mac_mdio_address:
		s.MdioAddressReads++
		if s.StuckMdio {
			v |= mac_mdio_busy
		} else {
			s.regs[o] &^= mac_mdio_busy
		}
	case dma_mode:
		if !s.StuckReset {
			s.regs[o] &^= dma_mode_swr
		}
	}
	return
}

func (s *Sim) StoreUint32(o uint, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case reg(o) == mac_mdio_address:
		s.regs[o] = v
		if v&mac_mdio_busy != 0 && !s.StuckMdio {
			s.mdio(v)
		}
		return
	case reg(o) == dma_mode && v&dma_mode_swr != 0:
		s.power_on()
		s.regs[o] = v
		return
	case reg(o) == mac_version:
		return
	case o >= dma_ch0_status.Offset() && (o-dma_ch0_status.Offset())%dma_channel_stride == 0 &&
		o < dma_ch0_status.ch(sim_n_channels).Offset():
		// Write one to clear.
		s.regs[o] &^= v
		return
	}
	s.regs[o] = v
}

// Peek reads a register without side effects.
func (s *Sim) Peek(r reg) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[r.Offset()]
}

func (s *Sim) mdio(address uint32) {
	port := uint(address&mac_mdio_pa_mask) >> mac_mdio_pa_shift
	c45 := address&mac_mdio_c45e != 0
	read := address&mac_mdio_cmd_read == mac_mdio_cmd_read
	data := s.regs[mac_mdio_data.Offset()]
	dev := uint(address&mac_mdio_rda_mask) >> mac_mdio_rda_shift
	var r uint
	if c45 {
		r = uint(data >> mac_mdio_ra_shift)
	} else {
		r, dev = dev, 0
	}
	v := uint16(data)

	var res uint16 = 0xffff
	switch {
	case port == modphy_mdio_addr && !c45:
		if read {
			res = s.modphy[r]
			if r == serdes_gcr {
				mode := uint16(serdes_link_mode_1g)
				if s.Serdes2500 {
					mode = serdes_link_mode_2g5
				}
				res = res&^serdes_link_mode_mask | mode<<serdes_link_mode_shift
			}
		} else {
			s.modphy[r] = v
			if r == serdes_gcr0 {
				s.modphy[serdes_gsr0] = v & (serdes_pll_clk | serdes_rst | serdes_pwr_st_mask)
			}
		}
	case port == xpcs_mdio_addr && c45 && dev == mmd_vendor2:
		if read {
			res = s.xpcs[r]
		} else {
			if r == sr_mii_ctrl {
				v &^= sr_mii_ctrl_reset
			}
			s.xpcs[r] = v
		}
	default:
		p := s.Phys[port]
		switch {
		case p == nil:
		case c45 && read:
			res = p.read45(dev, r)
		case c45:
			p.write45(dev, r, v)
		case read:
			res = p.read22(r)
		default:
			p.write22(r, v)
		}
	}
	if read {
		s.regs[mac_mdio_data.Offset()] = uint32(res)
	}
}

// desc returns the device view of descriptor i of a ring at list.
func (s *Sim) desc(list uint32, i uint) []byte {
	b, err := s.mem.PhysBytes(uint64(list)+uint64(i*descriptor_bytes), descriptor_bytes)
	if err != nil {
		panic(err)
	}
	return b
}

func word(b []byte, i int) uint32        { return binary.LittleEndian.Uint32(b[4*i:]) }
func set_word(b []byte, i int, v uint32) { binary.LittleEndian.PutUint32(b[4*i:], v) }

func (s *Sim) channel(ctrl reg, enable uint32) (uint, bool) {
	for c := uint(0); c < sim_n_channels; c++ {
		if s.regs[ctrl.ch(c).Offset()]&enable != 0 {
			return c, true
		}
	}
	return 0, false
}

// Step runs the transmit DMA engine until it reaches the tail pointer
// or a descriptor owned by software.  It returns frames completed.
func (s *Sim) Step() (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.regs[mac_configuration.Offset()]&mac_conf_te == 0 {
		return
	}
	c, ok := s.channel(dma_ch0_tx_control, dma_ch_tx_control_st)
	if !ok {
		return
	}
	list := s.regs[dma_ch0_txdesc_list_address.ch(c).Offset()]
	tail := s.regs[dma_ch0_txdesc_tail_pointer.ch(c).Offset()]
	ring_len := uint(s.regs[dma_ch0_txdesc_ring_length.ch(c).Offset()]) + 1
	for list+uint32(s.tx_cur*descriptor_bytes) != tail {
		e := s.desc(list, s.tx_cur)
		des3 := word(e, 3)
		if des3&desc_own == 0 {
			break
		}
		l := uint(word(e, 2) & tx_desc2_buffer_len)
		buf, err := s.mem.PhysBytes(uint64(word(e, 0)), l)
		if err != nil {
			panic(err)
		}
		if des3&desc_fd != 0 {
			s.tx_frame = nil
		}
		s.tx_frame = append(s.tx_frame, buf...)
		des3 &^= desc_own
		if s.TxError && des3&desc_ld != 0 {
			des3 |= tx_desc3_error_summary
		}
		set_word(e, 3, des3)
		if des3&desc_ld != 0 {
			f := s.tx_frame
			s.tx_frame = nil
			n++
			s.regs[dma_ch0_status.ch(c).Offset()] |= dma_ch_intr_ti | dma_ch_intr_nis
			if s.Loopback {
				s.deliver(f)
			} else {
				s.Sent = append(s.Sent, f)
			}
		}
		if s.tx_cur++; s.tx_cur >= ring_len {
			s.tx_cur = 0
		}
	}
	return
}

// Inject delivers a frame from the wire.
func (s *Sim) Inject(f []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliver(f)
}

func (s *Sim) deliver(f []byte) bool {
	if s.regs[mac_configuration.Offset()]&mac_conf_re == 0 {
		s.RxMissed++
		return false
	}
	c, ok := s.channel(dma_ch0_rx_control, dma_ch_rx_control_sr)
	if !ok {
		s.RxMissed++
		return false
	}
	list := s.regs[dma_ch0_rxdesc_list_address.ch(c).Offset()]
	ring_len := uint(s.regs[dma_ch0_rxdesc_ring_length.ch(c).Offset()]) + 1
	rbsz := uint(s.regs[dma_ch0_rx_control.ch(c).Offset()]&dma_ch_rx_control_rbsz_mask) >> dma_ch_rx_control_rbsz_shift
	e := s.desc(list, s.rx_cur)
	if word(e, 3)&desc_own == 0 {
		s.RxMissed++
		return false
	}
	l := uint(len(f))
	if l > rbsz {
		l = rbsz
	}
	buf, err := s.mem.PhysBytes(uint64(word(e, 0)), l)
	if err != nil {
		panic(err)
	}
	copy(buf, f)
	set_word(e, 2, s.RxErrorDes2)
	des3 := uint32(l)&rx_desc3_length | desc_fd | desc_ld | s.RxErrorDes3
	if s.RxNoLast {
		des3 &^= desc_ld
	}
	set_word(e, 3, des3)
	s.RxErrorDes2, s.RxErrorDes3, s.RxNoLast = 0, 0, false
	s.regs[dma_ch0_status.ch(c).Offset()] |= dma_ch_intr_ri | dma_ch_intr_nis
	if s.rx_cur++; s.rx_cur >= ring_len {
		s.rx_cur = 0
	}
	return true
}
