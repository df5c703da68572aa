// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

// MaxLinear GPY2xx.
const (
	phy_id_gpy = 0x67c9dc00

	gpy_istat          = 0x1a
	gpy_istat_lstc     = 1 << 0
	gpy_miistat        = 0x18
	gpy_miistat_link   = 1 << 10
	gpy_miistat_duplex = 1 << 3
	gpy_miistat_speed  = 0x7
	gpy_miistat_10     = 0
	gpy_miistat_100    = 1
	gpy_miistat_1000   = 2
	gpy_miistat_2500   = 4
)

type gpy struct{}

func (*gpy) String() string { return "maxlinear gpy" }

// Firmware defaults are used as is.
func (*gpy) init(d *Dev) error { return nil }

func (*gpy) configure_link(d *Dev) error { return d.phy_config_link(false) }

func (*gpy) has_link_changed(d *Dev) (bool, error) {
	v, err := d.phy_read(gpy_istat)
	return v&gpy_istat_lstc != 0, err
}

func (*gpy) read_status(d *Dev) (l Link, err error) {
	v, err := d.phy_read(gpy_miistat)
	if err != nil {
		return
	}
	if l.Up = v&gpy_miistat_link != 0; !l.Up {
		return
	}
	l.FullDuplex = v&gpy_miistat_duplex != 0
	switch v & gpy_miistat_speed {
	case gpy_miistat_2500:
		l.Speed = 2500
	case gpy_miistat_1000:
		l.Speed = 1000
	case gpy_miistat_100:
		l.Speed = 100
	default:
		l.Speed = 10
	}
	return
}
