// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"

	"github.com/platinasystems/log"
)

// Marvell 88E2110 multi-gig, clause 45 only.
const (
	phy_id_88e2110 = 0x002b09b9

	m88e2110_speed_1000 = 2
	m88e2110_speed_100  = 1
)

type m88e2110 struct {
	fw_version uint32
}

func (x *m88e2110) String() string {
	return fmt.Sprintf("marvell 88e2110 fw %d.%d.%d.%d",
		x.fw_version>>24, (x.fw_version>>16)&0xff,
		(x.fw_version>>8)&0xff, x.fw_version&0xff)
}

func (x *m88e2110) init(d *Dev) error {
	v, err := d.phy_read_mmd(mmd_pma_pmd, mmd_pma_boot)
	if err != nil {
		return err
	}
	if v&mmd_pma_boot_fail != 0 {
		return fmt.Errorf("88e2110 firmware boot failed: %w", ErrHardwareFault)
	}
	hi, err := d.phy_read_mmd(mmd_pma_pmd, mmd_pma_fw_ver1)
	if err != nil {
		return err
	}
	lo, err := d.phy_read_mmd(mmd_pma_pmd, mmd_pma_fw_ver0)
	if err != nil {
		return err
	}
	x.fw_version = uint32(hi)<<16 | uint32(lo)
	log.Print("info", "intelgbe:", x)
	return nil
}

// configure_link limits multi-gig advertisement to 1G since the MAC
// side runs 1G SGMII.
func (*m88e2110) configure_link(d *Dev) error {
	if err := d.phy_write_mmd(mmd_an, mmd_an_multig_ctrl, mmd_an_multig_ctrl_1g); err != nil {
		return err
	}
	return d.phy_config_link(false)
}

// No interrupt latch: compare AN link state with the cached state.
func (*m88e2110) has_link_changed(d *Dev) (bool, error) {
	v, err := d.phy_read_mmd(mmd_an, mmd_an_status)
	if err != nil {
		return false, err
	}
	up := v&mii_status_link != 0
	return up != d.phy.link_up, nil
}

func (*m88e2110) read_status(d *Dev) (l Link, err error) {
	v, err := d.phy_read_mmd(mmd_pcs, mmd_pcs_cstatus1)
	if err != nil {
		return
	}
	l.Up = v&mmd_pcs_cstatus1_link != 0
	l.FullDuplex = v&mmd_pcs_cstatus1_duplex != 0
	switch (v & mmd_pcs_cstatus1_speed) >> 14 {
	case m88e2110_speed_1000:
		l.Speed = 1000
	case m88e2110_speed_100:
		l.Speed = 100
	default:
		l.Speed = 10
	}
	return
}
