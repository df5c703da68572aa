// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/log"
	"github.com/platinasystems/undi/elib/hw"
)

// Clause 22 standard registers.
const (
	mii_ctrl   = 0x00
	mii_status = 0x01
	mii_phyid1 = 0x02
	mii_phyid2 = 0x03
	mii_an_adv = 0x04
	mii_an_lpa = 0x05
	mii_gctrl  = 0x09
	mii_gstat  = 0x0a
	mii_xstat  = 0x0f

	mii_ctrl_an_restart = 1 << 9
	mii_ctrl_isolate    = 1 << 10
	mii_ctrl_an_enable  = 1 << 12
	mii_ctrl_reset      = 1 << 15

	mii_status_link        = 1 << 2
	mii_status_an_complete = 1 << 5
	mii_status_extended    = 1 << 8
	mii_status_10_half     = 1 << 11
	mii_status_10_full     = 1 << 12
	mii_status_100_half    = 1 << 13
	mii_status_100_full    = 1 << 14

	mii_xstat_1000_half = 1 << 12
	mii_xstat_1000_full = 1 << 13

	mii_adv_sel_802_3  = 1 << 0
	mii_adv_10_half    = 1 << 5
	mii_adv_10_full    = 1 << 6
	mii_adv_100_half   = 1 << 7
	mii_adv_100_full   = 1 << 8
	mii_adv_100base_t4 = 1 << 9
	mii_adv_pause      = 1 << 10
	mii_adv_asym_pause = 1 << 11

	mii_gctrl_1000_half = 1 << 8
	mii_gctrl_1000_full = 1 << 9
)

// Clause 45 registers.
const (
	mmd_pma_phyid1    = 0x02
	mmd_pma_phyid2    = 0x03
	mmd_pma_fw_ver0   = 0xc011
	mmd_pma_fw_ver1   = 0xc012
	mmd_pma_boot      = 0xc050
	mmd_pma_boot_fail = 1 << 0

	mmd_an_ctrl           = 0x00
	mmd_an_ctrl_start     = 1 << 9
	mmd_an_ctrl_enable    = 1 << 12
	mmd_an_ctrl_ext_np    = 1 << 13
	mmd_an_status         = 0x01
	mmd_an_adv            = 0x10
	mmd_an_lpa            = 0x13
	mmd_an_multig_ctrl    = 0x20
	mmd_an_multig_ctrl_1g = 1 << 0
	mmd_an_1g_ctrl        = 0x8000
	mmd_an_1g_status      = 0x8001
	mmd_an_1g_ability     = 0x8002

	mmd_pcs_cstatus1        = 0x8008
	mmd_pcs_cstatus1_link   = 1 << 10
	mmd_pcs_cstatus1_duplex = 1 << 13
	mmd_pcs_cstatus1_speed  = 3 << 14
)

const (
	phy_support_10_half = 1 << iota
	phy_support_10_full
	phy_support_100_half
	phy_support_100_full
	phy_support_1000_half
	phy_support_1000_full
)

const (
	phy_autoneg_poll_interval = 100 * time.Millisecond
	phy_autoneg_timeout       = 5500 * time.Millisecond
	phy_reset_poll_interval   = 50 * time.Millisecond
	phy_reset_timeout         = 600 * time.Millisecond
)

// Link is the negotiated state reported by the PHY.
type Link struct {
	Up         bool
	Speed      uint
	FullDuplex bool
}

func (l Link) String() string {
	if !l.Up {
		return "down"
	}
	duplex := "half"
	if l.FullDuplex {
		duplex = "full"
	}
	return fmt.Sprintf("up %dM %s duplex", l.Speed, duplex)
}

// A phy is one vendor family's implementation of link control.
type phy interface {
	String() string
	init(d *Dev) error
	configure_link(d *Dev) error
	has_link_changed(d *Dev) (bool, error)
	read_status(d *Dev) (Link, error)
}

type phy_info struct {
	phy
	addr uint
	id   uint32
	c45  bool
	// phy_support_* bits
	support uint
	link_up bool
}

func phy_vendor(id uint32) uint32 { return id >> 10 }
func phy_model(id uint32) uint32  { return (id >> 4) & 0x3f }

func (p *phy_info) String() string {
	name := "none"
	if p.phy != nil {
		name = p.phy.String()
	}
	clause := 22
	if p.c45 {
		clause = 45
	}
	return fmt.Sprintf("%s id 0x%08x addr %d clause %d", name, p.id, p.addr, clause)
}

func degenerate(id uint32) bool { return id == 0 || id == 0xffffffff }

// probe_phy adopts the first MDIO address answering with a valid
// identity, trying clause 22 then the clause 45 PMA/PMD device.
func (d *Dev) probe_phy() (err error) {
	p := &d.phy
	for a := uint(0); a < 32; a++ {
		var hi, lo uint16
		p.addr, p.c45 = a, false
		if hi, err = d.phy_read(mii_phyid1); err != nil {
			return
		}
		if lo, err = d.phy_read(mii_phyid2); err != nil {
			return
		}
		id := uint32(hi)<<16 | uint32(lo)
		if degenerate(id) {
			p.c45 = true
			if hi, err = d.phy_read_mmd(mmd_pma_pmd, mmd_pma_phyid1); err != nil {
				return
			}
			if lo, err = d.phy_read_mmd(mmd_pma_pmd, mmd_pma_phyid2); err != nil {
				return
			}
			id = uint32(hi)<<16 | uint32(lo)
		}
		if !degenerate(id) {
			p.id = id
			return
		}
	}
	p.addr, p.c45, p.id = 0, false, 0
	return ErrNoPhy
}

// bind_phy selects the family driver for the probed identity.
func (d *Dev) bind_phy() error {
	p := &d.phy
	vendor, model := phy_vendor(p.id), phy_model(p.id)
	switch {
	case vendor == phy_vendor(phy_id_88e1512):
		if model != phy_model(phy_id_88e1512) {
			return fmt.Errorf("marvell phy model 0x%x: %w", model, ErrUnsupported)
		}
		p.phy = &m88e1512{}
	case vendor == phy_vendor(phy_id_gpy):
		if d.info.iface != SGMII {
			return fmt.Errorf("gpy phy requires sgmii: %w", ErrUnsupported)
		}
		p.phy = &gpy{}
	case vendor == phy_vendor(phy_id_88e2110):
		if d.info.iface != SGMII {
			return fmt.Errorf("88e2110 phy requires sgmii: %w", ErrUnsupported)
		}
		p.phy = &m88e2110{}
	default:
		return fmt.Errorf("phy id 0x%08x: %w", p.id, ErrUnsupported)
	}
	return nil
}

func (d *Dev) phy_get_supported() error {
	p := &d.phy
	bmsr, err := d.std_read(mii_status, mmd_an_1g_ability)
	if err != nil {
		return err
	}
	for _, x := range []struct{ status, support uint }{
		{mii_status_10_full, phy_support_10_full},
		{mii_status_10_half, phy_support_10_half},
		{mii_status_100_full, phy_support_100_full},
		{mii_status_100_half, phy_support_100_half},
	} {
		if uint(bmsr)&x.status != 0 {
			p.support |= x.support
		}
	}
	if bmsr&mii_status_extended != 0 {
		estat := bmsr
		if !p.c45 {
			if estat, err = d.phy_read(mii_xstat); err != nil {
				return err
			}
		}
		if estat&mii_xstat_1000_full != 0 {
			p.support |= phy_support_1000_full
		}
		if estat&mii_xstat_1000_half != 0 {
			p.support |= phy_support_1000_half
		}
	}
	return nil
}

func (d *Dev) phy_soft_reset(wait bool) error {
	if err := d.phy_modify(mii_ctrl, mii_ctrl_reset, mii_ctrl_reset); err != nil {
		return err
	}
	if wait {
		p := d.poller(0, int(phy_reset_timeout/phy_reset_poll_interval))
		_, err := p.Poll(func() (bool, error) {
			d.delay(phy_reset_poll_interval)
			v, err := d.phy_read(mii_ctrl)
			return err == nil && v&mii_ctrl_reset == 0, nil
		})
		if err != nil {
			return fmt.Errorf("phy soft reset: %w", ErrBusy)
		}
	}
	_, err := d.phy_read(mii_ctrl)
	return err
}

// phy_config_link advertises everything the PHY supports and restarts
// autonegotiation only when the advertisement changed or negotiation
// is off.  Failure to complete is not an error: the cable may be out.
func (d *Dev) phy_config_link(changed bool) (err error) {
	p := &d.phy
	if p.support == 0 {
		if err = d.phy_get_supported(); err != nil {
			return
		}
	}

	var adv, adv_1000 uint16
	for _, x := range []struct {
		support uint
		adv     *uint16
		bit     uint16
	}{
		{phy_support_1000_full, &adv_1000, mii_gctrl_1000_full},
		{phy_support_1000_half, &adv_1000, mii_gctrl_1000_half},
		{phy_support_100_full, &adv, mii_adv_100_full},
		{phy_support_100_half, &adv, mii_adv_100_half},
		{phy_support_10_full, &adv, mii_adv_10_full},
		{phy_support_10_half, &adv, mii_adv_10_half},
	} {
		if p.support&x.support != 0 {
			*x.adv |= x.bit
		}
	}
	adv |= mii_adv_sel_802_3

	const mask = mii_adv_10_half | mii_adv_10_full | mii_adv_100_half |
		mii_adv_100_full | mii_adv_100base_t4 | mii_adv_pause | mii_adv_asym_pause
	var c bool
	if c, err = d.std_modify_changed(mii_an_adv, mmd_an_adv, mask, adv); err != nil {
		return
	}
	changed = changed || c

	var status uint16
	if status, err = d.std_read(mii_status, mmd_an_1g_ability); err != nil {
		return
	}
	if status&mii_status_extended != 0 {
		const mask = mii_gctrl_1000_half | mii_gctrl_1000_full
		if c, err = d.std_modify_changed(mii_gctrl, mmd_an_1g_ctrl, mask, adv_1000); err != nil {
			return
		}
		changed = changed || c
	}

	if !changed {
		var ctrl uint16
		if ctrl, err = d.std_read(mii_ctrl, mmd_an_ctrl); err != nil {
			return
		}
		changed = ctrl&mii_ctrl_an_enable == 0 || ctrl&mii_ctrl_isolate != 0
	}
	if !changed {
		return
	}

	if p.c45 {
		err = d.phy_write_mmd(mmd_an, mmd_an_ctrl,
			mmd_an_ctrl_start|mmd_an_ctrl_enable|mmd_an_ctrl_ext_np)
	} else {
		err = d.phy_modify(mii_ctrl, mii_ctrl_isolate, mii_ctrl_an_enable|mii_ctrl_an_restart)
	}
	if err != nil {
		return
	}

	poller := d.poller(0, int(phy_autoneg_timeout/phy_autoneg_poll_interval))
	_, err = poller.Poll(func() (bool, error) {
		d.delay(phy_autoneg_poll_interval)
		v, err := d.std_read(mii_status, mmd_an_status)
		return v&mii_status_an_complete != 0, err
	})
	if errors.Is(err, hw.ErrTimeout) {
		log.Print("warning", "phy", p.addr, "autonegotiation timeout")
		err = nil
	} else if err != nil {
		return
	}

	lpa, _ := d.std_read(mii_an_lpa, mmd_an_lpa)
	gstat, _ := d.std_read(mii_gstat, mmd_an_1g_status)
	if d.Verbose {
		log.Printf("intelgbe: phy %d advertise 0x%x/0x%x partner 0x%x/0x%x",
			p.addr, adv, adv_1000, lpa, gstat)
	}
	return
}

func (d *Dev) phy_init() error {
	if err := d.phy.init(d); err != nil {
		return err
	}
	return d.phy.configure_link(d)
}
