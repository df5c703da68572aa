// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"time"
)

const (
	mdio_poll_tries    = 100
	mdio_poll_interval = time.Millisecond
)

// Clause 45 device addresses.
const (
	mmd_pma_pmd = 0x01
	mmd_pcs     = 0x03
	mmd_an      = 0x07
	mmd_vendor2 = 0x1f
)

type mdio_addr struct {
	// Port address 0-31.
	port uint
	// MMD; only for clause 45.
	dev uint
	c45 bool
}

func (a mdio_addr) String() string {
	if a.c45 {
		return fmt.Sprintf("%d.%d", a.port, a.dev)
	}
	return fmt.Sprintf("%d", a.port)
}

func (d *Dev) mdio_wait_idle() error {
	_, err := d.poller(mdio_poll_interval, mdio_poll_tries).Poll(func() (bool, error) {
		return mac_mdio_address.get(d)&mac_mdio_busy == 0, nil
	})
	if err != nil {
		return fmt.Errorf("mdio: %w", ErrBusy)
	}
	return nil
}

func (d *Dev) mdio_rw(a mdio_addr, r uint16, v uint16, cmd uint32) (w uint16, err error) {
	var address, data uint32
	address = uint32(a.port<<mac_mdio_pa_shift) & mac_mdio_pa_mask
	if a.c45 {
		address |= mac_mdio_c45e
		address |= uint32(a.dev<<mac_mdio_rda_shift) & mac_mdio_rda_mask
		data = uint32(r) << mac_mdio_ra_shift
	} else {
		address |= uint32(r) << mac_mdio_rda_shift & mac_mdio_rda_mask
	}
	address |= mac_mdio_busy | cmd | d.CsrClock
	data |= uint32(v)

	if err = d.mdio_wait_idle(); err != nil {
		return
	}
	mac_mdio_data.set(d, data)
	mac_mdio_address.set(d, address)
	if err = d.mdio_wait_idle(); err != nil {
		return
	}
	if cmd == mac_mdio_cmd_read {
		w = uint16(mac_mdio_data.get(d))
	} else {
		w = v
	}
	return
}

func (d *Dev) mdio_read(a mdio_addr, r uint16) (v uint16, err error) {
	if v, err = d.mdio_rw(a, r, 0, mac_mdio_cmd_read); err != nil {
		err = fmt.Errorf("mdio read %s reg 0x%x: %w", a, r, err)
	}
	return
}

func (d *Dev) mdio_write(a mdio_addr, r uint16, v uint16) (err error) {
	if _, err = d.mdio_rw(a, r, v, mac_mdio_cmd_write); err != nil {
		err = fmt.Errorf("mdio write %s reg 0x%x: %w", a, r, err)
	}
	return
}

func (d *Dev) mdio_modify(a mdio_addr, r uint16, mask, v uint16) error {
	x, err := d.mdio_read(a, r)
	if err != nil {
		return err
	}
	return d.mdio_write(a, r, x&^mask|v)
}

// mdio_modify_changed writes only when the value differs and reports
// whether it did.
func (d *Dev) mdio_modify_changed(a mdio_addr, r uint16, mask, v uint16) (changed bool, err error) {
	old, err := d.mdio_read(a, r)
	if err != nil {
		return
	}
	x := old&^mask | v
	if x == old {
		return
	}
	if err = d.mdio_write(a, r, x); err == nil {
		changed = true
	}
	return
}

// Accessors for the attached PHY.
func (d *Dev) c22() mdio_addr                    { return mdio_addr{port: d.phy.addr} }
func (d *Dev) c45(dev uint) mdio_addr            { return mdio_addr{port: d.phy.addr, dev: dev, c45: true} }
func (d *Dev) phy_read(r uint16) (uint16, error) { return d.mdio_read(d.c22(), r) }
func (d *Dev) phy_write(r, v uint16) error       { return d.mdio_write(d.c22(), r, v) }
func (d *Dev) phy_modify(r, mask, v uint16) error {
	return d.mdio_modify(d.c22(), r, mask, v)
}
func (d *Dev) phy_read_mmd(dev uint, r uint16) (uint16, error) { return d.mdio_read(d.c45(dev), r) }
func (d *Dev) phy_write_mmd(dev uint, r, v uint16) error       { return d.mdio_write(d.c45(dev), r, v) }

// std_read reads a standard register through clause 22 or, for clause 45
// PHYs, its AN MMD equivalent.
func (d *Dev) std_read(r22 uint16, r45 uint16) (uint16, error) {
	if d.phy.c45 {
		return d.phy_read_mmd(mmd_an, r45)
	}
	return d.phy_read(r22)
}

func (d *Dev) std_modify_changed(r22, r45 uint16, mask, v uint16) (bool, error) {
	if d.phy.c45 {
		return d.mdio_modify_changed(d.c45(mmd_an), r45, mask, v)
	}
	return d.mdio_modify_changed(d.c22(), r22, mask, v)
}

// PhyRead and PhyWrite give raw access to the attached PHY.
func (d *Dev) PhyRead(dev uint, r uint16) (uint16, error) {
	if dev == 0 {
		return d.phy_read(r)
	}
	return d.phy_read_mmd(dev, r)
}

func (d *Dev) PhyWrite(dev uint, r, v uint16) error {
	if dev == 0 {
		return d.phy_write(r, v)
	}
	return d.phy_write_mmd(dev, r, v)
}
