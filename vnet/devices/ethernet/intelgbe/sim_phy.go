// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"sort"
)

type sim_phy_kind int

const (
	sim_88e1512 sim_phy_kind = iota
	sim_gpy
	sim_88e2110
)

var sim_phy_kinds = map[string]sim_phy_kind{
	"88e1512": sim_88e1512,
	"gpy":     sim_gpy,
	"88e2110": sim_88e2110,
}

// SimPhyNames lists the PHY models NewSimPhy accepts.
func SimPhyNames() (names []string) {
	for n := range sim_phy_kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return
}

// SimPhy models a PHY's management registers and link.
type SimPhy struct {
	kind sim_phy_kind
	id   uint32

	// Cable plugged in; link comes up once negotiated.
	Cable      bool
	Speed      uint
	FullDuplex bool
	// Autonegotiation never completes.
	NoAutoneg bool
	// 88e2110 firmware failed to boot.
	BootFail bool

	// Number of autonegotiation restarts.
	AnRestarts int
	// Number of register writes.
	Writes int

	page       uint16
	negotiated bool
	changed    bool
	c22        map[uint32]uint16
	c45        map[uint32]uint16
}

func sim_key(hi, r uint) uint32 { return uint32(hi)<<16 | uint32(r) }

func NewSimPhy(model string) (p *SimPhy, err error) {
	kind, ok := sim_phy_kinds[model]
	if !ok {
		return nil, fmt.Errorf("sim phy %q: %w", model, ErrUnsupported)
	}
	p = &SimPhy{
		kind:       kind,
		Cable:      true,
		Speed:      1000,
		FullDuplex: true,
		negotiated: true,
		c22:        make(map[uint32]uint16),
		c45:        make(map[uint32]uint16),
	}
	const (
		ctrl_default     = mii_ctrl_an_enable | 1<<8 | 1<<6
		status_abilities = mii_status_10_half | mii_status_10_full | mii_status_100_half |
			mii_status_100_full | mii_status_extended | 1<<3
		adv_default = mii_adv_sel_802_3 | mii_adv_10_half | mii_adv_10_full |
			mii_adv_100_half | mii_adv_100_full
		gctrl_default = mii_gctrl_1000_half | mii_gctrl_1000_full
	)
	switch kind {
	case sim_88e1512:
		p.id = phy_id_88e1512
	case sim_gpy:
		p.id = phy_id_gpy
		p.Speed = 2500
	case sim_88e2110:
		p.id = phy_id_88e2110
		p.c45[sim_key(mmd_pma_pmd, mmd_pma_phyid1)] = uint16(p.id >> 16)
		p.c45[sim_key(mmd_pma_pmd, mmd_pma_phyid2)] = uint16(p.id)
		p.c45[sim_key(mmd_pma_pmd, mmd_pma_fw_ver1)] = 0x0008
		p.c45[sim_key(mmd_pma_pmd, mmd_pma_fw_ver0)] = 0x0203
		p.c45[sim_key(mmd_an, mmd_an_ctrl)] = mmd_an_ctrl_enable | mmd_an_ctrl_ext_np
		p.c45[sim_key(mmd_an, mmd_an_adv)] = adv_default
		p.c45[sim_key(mmd_an, mmd_an_1g_ctrl)] = gctrl_default
		p.c45[sim_key(mmd_an, mmd_an_1g_ability)] = status_abilities
		return
	}
	p.c22[sim_key(0, mii_ctrl)] = ctrl_default
	p.c22[sim_key(0, mii_status)] = status_abilities
	p.c22[sim_key(0, mii_phyid1)] = uint16(p.id >> 16)
	p.c22[sim_key(0, mii_phyid2)] = uint16(p.id)
	p.c22[sim_key(0, mii_an_adv)] = adv_default
	p.c22[sim_key(0, mii_gctrl)] = gctrl_default
	p.c22[sim_key(0, mii_xstat)] = mii_xstat_1000_half | mii_xstat_1000_full
	return
}

func (p *SimPhy) String() string {
	return fmt.Sprintf("sim phy 0x%08x cable %v %dM", p.id, p.Cable, p.Speed)
}

func (p *SimPhy) up() bool { return p.Cable && p.negotiated }

// SetCable plugs or unplugs the cable, latching a link change.
func (p *SimPhy) SetCable(in bool) {
	if in != p.Cable {
		p.changed = true
	}
	p.Cable = in
}

// SetAdvertise overwrites the advertisement register.
func (p *SimPhy) SetAdvertise(v uint16) {
	if p.kind == sim_88e2110 {
		p.c45[sim_key(mmd_an, mmd_an_adv)] = v
	} else {
		p.c22[sim_key(0, mii_an_adv)] = v
	}
}

func (p *SimPhy) renegotiate() {
	p.negotiated = !p.NoAutoneg
	p.changed = true
}

func (p *SimPhy) restart_an() {
	p.AnRestarts++
	p.renegotiate()
}

// Registers 0x10 and up are paged on the 88e1512.
func (p *SimPhy) c22_key(r uint) uint32 {
	if p.kind == sim_88e1512 && r >= 0x10 && r != m88e1512_page {
		return sim_key(uint(p.page), r)
	}
	return sim_key(0, r)
}

func (p *SimPhy) status_bits() (v uint16) {
	if p.up() {
		v |= mii_status_link
	}
	if p.negotiated && p.Cable {
		v |= mii_status_an_complete
	}
	return
}

func (p *SimPhy) read22(r uint) uint16 {
	if p.kind == sim_88e2110 {
		return 0xffff
	}
	v := p.c22[p.c22_key(r)]
	switch {
	case r == mii_status:
		v |= p.status_bits()
	case r == mii_an_lpa && p.up():
		v = mii_adv_sel_802_3 | mii_adv_100_full | mii_adv_100_half | mii_adv_10_full | mii_adv_10_half
	case r == mii_gstat && p.up():
		v = 3 << 10
	case p.kind == sim_88e1512 && p.page == 0 && r == m88e1512_copper_status_1:
		v = 0
		if p.up() {
			v |= m88e1512_copper_status_link
			if p.FullDuplex {
				v |= m88e1512_copper_status_duplex
			}
			switch p.Speed {
			case 1000:
				v |= m88e1512_copper_status_1000
			case 100:
				v |= m88e1512_copper_status_100
			}
		}
	case p.kind == sim_88e1512 && p.page == 0 && r == m88e1512_copper_int_status:
		v = 0
		if p.changed {
			v |= m88e1512_copper_int_link_change
		}
		p.changed = false
	case p.kind == sim_gpy && r == gpy_istat:
		v = 0
		if p.changed {
			v |= gpy_istat_lstc
		}
		p.changed = false
	case p.kind == sim_gpy && r == gpy_miistat:
		v = 0
		if p.up() {
			v |= gpy_miistat_link
			if p.FullDuplex {
				v |= gpy_miistat_duplex
			}
			switch p.Speed {
			case 2500:
				v |= gpy_miistat_2500
			case 1000:
				v |= gpy_miistat_1000
			case 100:
				v |= gpy_miistat_100
			}
		}
	}
	return v
}

func (p *SimPhy) write22(r uint, v uint16) {
	if p.kind == sim_88e2110 {
		return
	}
	p.Writes++
	switch {
	case r == m88e1512_page && p.kind == sim_88e1512:
		p.page = v
		return
	case r == mii_ctrl:
		if v&mii_ctrl_an_restart != 0 {
			p.restart_an()
		} else if v&mii_ctrl_reset != 0 {
			p.renegotiate()
		}
		v &^= mii_ctrl_an_restart | mii_ctrl_reset
	case p.kind == sim_88e1512 && p.page == 18 && r == m88e1512_general_ctrl_1:
		v &^= m88e1512_general_ctrl_1_reset
	}
	p.c22[p.c22_key(r)] = v
}

func (p *SimPhy) read45(dev, r uint) uint16 {
	if p.kind != sim_88e2110 {
		return 0xffff
	}
	v := p.c45[sim_key(dev, r)]
	switch {
	case dev == mmd_pma_pmd && r == mmd_pma_boot:
		v = 0
		if p.BootFail {
			v = mmd_pma_boot_fail
		}
	case dev == mmd_an && r == mmd_an_status:
		v = p.status_bits()
	case dev == mmd_pcs && r == mmd_pcs_cstatus1:
		v = 0
		if p.up() {
			v |= mmd_pcs_cstatus1_link
			if p.FullDuplex {
				v |= mmd_pcs_cstatus1_duplex
			}
			switch p.Speed {
			case 1000, 2500:
				v |= m88e2110_speed_1000 << 14
			case 100:
				v |= m88e2110_speed_100 << 14
			}
		}
	}
	return v
}

func (p *SimPhy) write45(dev, r uint, v uint16) {
	if p.kind != sim_88e2110 {
		return
	}
	p.Writes++
	if dev == mmd_an && r == mmd_an_ctrl && v&mmd_an_ctrl_start != 0 {
		p.restart_an()
		v &^= mmd_an_ctrl_start
	}
	p.c45[sim_key(dev, r)] = v
}
