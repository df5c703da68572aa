// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

// Marvell 88E1510 family.  Registers are paged through m88e1512_page.
const (
	phy_id_88e1512 = 0x01410dd1

	m88e1512_page = 0x16

	// page 0
	m88e1512_copper_status_1        = 0x11
	m88e1512_copper_status_link     = 1 << 10
	m88e1512_copper_status_duplex   = 1 << 13
	m88e1512_copper_status_speed    = 3 << 14
	m88e1512_copper_status_1000     = 1 << 15
	m88e1512_copper_status_100      = 1 << 14
	m88e1512_copper_int_status      = 0x13
	m88e1512_copper_int_link_change = 1 << 10

	// page 2
	m88e1512_mac_ctrl_1         = 0x10
	m88e1512_mac_ctrl_1_pad_odd = 1 << 6

	// page 3
	m88e1512_led_func_ctrl     = 0x10
	m88e1512_led_func_ctrl_def = 1<<4 | 1<<5

	// page 18
	m88e1512_general_ctrl_1              = 0x14
	m88e1512_general_ctrl_1_mode_mask    = 0x7
	m88e1512_general_ctrl_1_sgmii_copper = 1 << 0
	m88e1512_general_ctrl_1_reset        = 1 << 15
)

type m88e1512 struct{}

func (*m88e1512) String() string { return "marvell 88e1512" }

func (*m88e1512) page(d *Dev, p uint16) error { return d.phy_write(m88e1512_page, p) }

func (x *m88e1512) init(d *Dev) (err error) {
	if d.info.iface == SGMII {
		if err = x.page(d, 18); err != nil {
			return
		}
		if err = d.phy_modify(m88e1512_general_ctrl_1,
			m88e1512_general_ctrl_1_mode_mask,
			m88e1512_general_ctrl_1_sgmii_copper); err != nil {
			return
		}
		if err = d.phy_modify(m88e1512_general_ctrl_1, 0,
			m88e1512_general_ctrl_1_reset); err != nil {
			return
		}
	}
	if err = x.page(d, 3); err != nil {
		return
	}
	if err = d.phy_write(m88e1512_led_func_ctrl, m88e1512_led_func_ctrl_def); err != nil {
		return
	}
	if err = x.page(d, 2); err != nil {
		return
	}
	if err = d.phy_modify(m88e1512_mac_ctrl_1, 0, m88e1512_mac_ctrl_1_pad_odd); err != nil {
		return
	}
	if err = x.page(d, 0); err != nil {
		return
	}
	// Reset completes on its own; no need to wait.
	d.phy_soft_reset(false)
	return nil
}

func (x *m88e1512) configure_link(d *Dev) error {
	if err := x.page(d, 0); err != nil {
		return err
	}
	return d.phy_config_link(false)
}

func (x *m88e1512) has_link_changed(d *Dev) (bool, error) {
	if err := x.page(d, 0); err != nil {
		return false, err
	}
	v, err := d.phy_read(m88e1512_copper_int_status)
	return v&m88e1512_copper_int_link_change != 0, err
}

func (x *m88e1512) read_status(d *Dev) (l Link, err error) {
	if err = x.page(d, 0); err != nil {
		return
	}
	v, err := d.phy_read(m88e1512_copper_status_1)
	if err != nil {
		return
	}
	if l.Up = v&m88e1512_copper_status_link != 0; !l.Up {
		return
	}
	l.FullDuplex = v&m88e1512_copper_status_duplex != 0
	switch v & m88e1512_copper_status_speed {
	case m88e1512_copper_status_1000:
		l.Speed = 1000
	case m88e1512_copper_status_100:
		l.Speed = 100
	default:
		l.Speed = 10
	}
	return
}
