// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"time"
)

// ModPHY SERDES, clause 22 at a fixed MDIO address.
const (
	modphy_mdio_addr = 0x15

	serdes_gcr  = 0x0
	serdes_gsr0 = 0x5
	serdes_gcr0 = 0xb

	serdes_pll_clk         = 1 << 0
	serdes_phy_rx_clk      = 1 << 1
	serdes_rst             = 1 << 2
	serdes_pwr_st_mask     = 0x7 << 4
	serdes_pwr_st_p0       = 0 << 4
	serdes_rate_mask       = 0x3 << 8
	serdes_rate_pcie_gen1  = 0 << 8
	serdes_rate_pcie_gen2  = 1 << 8
	serdes_pclk_mask       = 0x7 << 12
	serdes_pclk_37p5mhz    = 0 << 12
	serdes_pclk_70mhz      = 1 << 12
	serdes_link_mode_mask  = 0x3 << 1
	serdes_link_mode_shift = 1
	serdes_link_mode_2g5   = 3
	serdes_link_mode_1g    = 2

	serdes_poll_tries    = 10
	serdes_poll_interval = time.Millisecond
)

// Synopsys XPCS, clause 45 vendor MMD at a fixed MDIO address.
const (
	xpcs_mdio_addr = 0x16

	sr_mii_ctrl            = 0x0000
	sr_mii_ctrl_restart_an = 1 << 9
	sr_mii_ctrl_an_enable  = 1 << 12
	sr_mii_ctrl_2500       = 1 << 13
	sr_mii_ctrl_reset      = 1 << 15

	vr_mii_dig_ctrl1             = 0x8000
	vr_mii_dig_ctrl1_2500_enable = 1 << 2
	vr_mii_dig_ctrl1_pre_emp     = 1 << 6
	vr_mii_dig_ctrl1_mac_auto_sw = 1 << 9

	vr_mii_an_ctrl                = 0x8001
	vr_mii_an_ctrl_intr_enable    = 1 << 0
	vr_mii_an_ctrl_pcs_mode_mask  = 0x3 << 1
	vr_mii_an_ctrl_pcs_mode_sgmii = 2 << 1
	vr_mii_an_ctrl_tx_cfg         = 1 << 3
)

var (
	modphy = mdio_addr{port: modphy_mdio_addr}
	xpcs   = mdio_addr{port: xpcs_mdio_addr, dev: mmd_vendor2, c45: true}
)

// serdes_wait polls GSR0 until the masked bits equal want.
func (d *Dev) serdes_wait(what string, mask, want uint16) error {
	_, err := d.poller(serdes_poll_interval, serdes_poll_tries).Poll(func() (bool, error) {
		v, err := d.mdio_read(modphy, serdes_gsr0)
		return v&mask == want, err
	})
	if err != nil {
		return fmt.Errorf("serdes %s: %w", what, err)
	}
	return nil
}

// modphy_init brings up the SERDES lane at the rate strapped in GCR.
func (d *Dev) modphy_init() (err error) {
	gcr, err := d.mdio_read(modphy, serdes_gcr)
	if err != nil {
		return
	}
	mode := (gcr & serdes_link_mode_mask) >> serdes_link_mode_shift
	d.speed_2500 = mode == serdes_link_mode_2g5

	set := uint16(serdes_rate_pcie_gen1 | serdes_pclk_70mhz)
	if d.speed_2500 {
		set = serdes_rate_pcie_gen2 | serdes_pclk_37p5mhz
	}
	if err = d.mdio_modify(modphy, serdes_gcr0, serdes_rate_mask|serdes_pclk_mask, set); err != nil {
		return
	}

	// Assert clock request.
	if err = d.mdio_modify(modphy, serdes_gcr0, 0, serdes_pll_clk); err != nil {
		return
	}
	if err = d.serdes_wait("pll clock", serdes_pll_clk, serdes_pll_clk); err != nil {
		return
	}

	// Lane reset.
	if err = d.mdio_modify(modphy, serdes_gcr0, 0, serdes_rst); err != nil {
		return
	}
	if err = d.serdes_wait("lane reset", serdes_rst, serdes_rst); err != nil {
		return
	}

	// Power state P0.
	if err = d.mdio_modify(modphy, serdes_gcr0, serdes_pwr_st_mask, serdes_pwr_st_p0); err != nil {
		return
	}
	if err = d.serdes_wait("power state", serdes_pwr_st_mask, serdes_pwr_st_p0); err != nil {
		return
	}

	// PSE controllers gate the PHY receive clock until told otherwise.
	if d.info.pse {
		err = d.mdio_modify(modphy, serdes_gcr0, 0, serdes_phy_rx_clk)
	}
	return
}

func (d *Dev) xpcs_init() (err error) {
	if err = d.mdio_modify(xpcs, sr_mii_ctrl, sr_mii_ctrl_reset, sr_mii_ctrl_reset); err != nil {
		return
	}
	_, err = d.poller(serdes_poll_interval, serdes_poll_tries).Poll(func() (bool, error) {
		v, err := d.mdio_read(xpcs, sr_mii_ctrl)
		return v&sr_mii_ctrl_reset == 0, err
	})
	if err != nil {
		return fmt.Errorf("xpcs reset: %w", err)
	}

	if d.speed_2500 {
		if err = d.mdio_modify(xpcs, vr_mii_dig_ctrl1,
			vr_mii_dig_ctrl1_mac_auto_sw,
			vr_mii_dig_ctrl1_2500_enable|vr_mii_dig_ctrl1_pre_emp); err != nil {
			return
		}
		// 2.5G runs without SGMII autonegotiation.
		return d.mdio_modify(xpcs, sr_mii_ctrl, sr_mii_ctrl_an_enable, sr_mii_ctrl_2500)
	}

	const auto_sw = vr_mii_dig_ctrl1_mac_auto_sw | vr_mii_dig_ctrl1_pre_emp
	if err = d.mdio_modify(xpcs, vr_mii_dig_ctrl1, auto_sw, auto_sw); err != nil {
		return
	}
	if err = d.mdio_modify(xpcs, vr_mii_an_ctrl,
		vr_mii_an_ctrl_tx_cfg|vr_mii_an_ctrl_pcs_mode_mask|vr_mii_an_ctrl_intr_enable,
		vr_mii_an_ctrl_pcs_mode_sgmii|vr_mii_an_ctrl_intr_enable); err != nil {
		return
	}
	const an = sr_mii_ctrl_an_enable | sr_mii_ctrl_restart_an
	return d.mdio_modify(xpcs, sr_mii_ctrl, an, an)
}

func (d *Dev) sgmii_init() error {
	if err := d.modphy_init(); err != nil {
		return err
	}
	return d.xpcs_init()
}
