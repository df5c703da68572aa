// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"errors"
	"strings"
	"testing"
)

func TestMdioEncoding(t *testing.T) {
	x := started(t, test_config(4, 4))
	d := x.d
	if err := d.mdio_write(mdio_addr{port: 5}, 0x1f, 0xbeef); err != nil {
		t.Fatal(err)
	}
	want := uint32(5<<mac_mdio_pa_shift | 0x1f<<mac_mdio_rda_shift | mac_mdio_cmd_write | mac_mdio_cr_250_300)
	if got := x.sim.Peek(mac_mdio_address); got != want {
		t.Errorf("c22 address: got 0x%08x want 0x%08x", got, want)
	}
	if got := x.sim.Peek(mac_mdio_data); got != 0xbeef {
		t.Errorf("c22 data: got 0x%08x want 0xbeef", got)
	}

	if err := d.mdio_write(mdio_addr{port: 3, dev: mmd_an, c45: true}, 0x8001, 0x1234); err != nil {
		t.Fatal(err)
	}
	want = uint32(3<<mac_mdio_pa_shift | mmd_an<<mac_mdio_rda_shift | mac_mdio_c45e |
		mac_mdio_cmd_write | mac_mdio_cr_250_300)
	if got := x.sim.Peek(mac_mdio_address); got != want {
		t.Errorf("c45 address: got 0x%08x want 0x%08x", got, want)
	}
	if got, want := x.sim.Peek(mac_mdio_data), uint32(0x8001<<mac_mdio_ra_shift|0x1234); got != want {
		t.Errorf("c45 data: got 0x%08x want 0x%08x", got, want)
	}

	// Nothing answers at an empty address.
	if v, err := d.mdio_read(mdio_addr{port: 9}, mii_phyid1); err != nil || v != 0xffff {
		t.Errorf("empty address: 0x%x %v", v, err)
	}
}

func TestMdioTimeout(t *testing.T) {
	x := started(t, test_config(4, 4))
	d := x.d
	x.sim.StuckMdio = true
	reads, sleeps := x.sim.MdioAddressReads, x.sleeps
	if _, err := d.PhyRead(0, mii_status); !errors.Is(err, ErrBusy) {
		t.Fatal("stuck mdio:", err)
	}
	if got := x.sim.MdioAddressReads - reads; got != mdio_poll_tries {
		t.Errorf("busy polls: got %d want %d", got, mdio_poll_tries)
	}
	if got := x.sleeps - sleeps; got != mdio_poll_tries-1 {
		t.Errorf("sleeps: got %d want %d", got, mdio_poll_tries-1)
	}

	x.sim.StuckMdio = false
	v, err := d.PhyRead(0, mii_phyid1)
	if err != nil || v != uint16(phy_id_88e1512>>16) {
		t.Errorf("after recovery: 0x%x %v", v, err)
	}
}

func TestPhyProbe(t *testing.T) {
	x := new_tester(t, DevIDTglhPch1Sgmii, "88e2110", test_config(4, 4)).init()
	d := x.d
	if !d.phy.c45 || d.phy.id != phy_id_88e2110 {
		t.Errorf("probe: %v", &d.phy)
	}
	if got := d.Phy(); !strings.Contains(got, "88e2110 fw 0.8.2.3") {
		t.Errorf("phy: %s", got)
	}
	v, err := d.PhyRead(mmd_pma_pmd, mmd_pma_phyid2)
	if err != nil || v != uint16(phy_id_88e2110&0xffff) {
		t.Errorf("mmd read: 0x%x %v", v, err)
	}
}

func TestPhyProbeFailures(t *testing.T) {
	x := new_tester(t, DevIDEhlPchSgmii, "", test_config(4, 4))
	if err := x.d.FirstTimeInit(); !errors.Is(err, ErrNoPhy) {
		t.Error("no phy:", err)
	}

	x = new_tester(t, DevIDEhlPse0Rgmii1G, "gpy", test_config(4, 4))
	if err := x.d.FirstTimeInit(); !errors.Is(err, ErrUnsupported) {
		t.Error("gpy on rgmii:", err)
	}

	x = new_tester(t, DevIDTglhPch1Sgmii, "88e2110", test_config(4, 4))
	x.sp.BootFail = true
	if err := x.d.FirstTimeInit(); !errors.Is(err, ErrHardwareFault) {
		t.Error("firmware boot failure:", err)
	}
}

func TestPhy88e1512Init(t *testing.T) {
	x := new_tester(t, DevIDEhlPse0Sgmii1G, "88e1512", test_config(4, 4)).init()
	p := x.sp
	if got := p.c22[sim_key(18, m88e1512_general_ctrl_1)]; got&m88e1512_general_ctrl_1_mode_mask != m88e1512_general_ctrl_1_sgmii_copper {
		t.Errorf("mode: 0x%x", got)
	}
	if got := p.c22[sim_key(3, m88e1512_led_func_ctrl)]; got != m88e1512_led_func_ctrl_def {
		t.Errorf("led: 0x%x", got)
	}
	if got := p.c22[sim_key(2, m88e1512_mac_ctrl_1)]; got&m88e1512_mac_ctrl_1_pad_odd == 0 {
		t.Errorf("mac ctrl: 0x%x", got)
	}
	if p.page != 0 {
		t.Errorf("left on page %d", p.page)
	}
}

func TestConfigureLinkChanges(t *testing.T) {
	x := started(t, test_config(4, 4))
	if x.sp.AnRestarts != 0 {
		t.Errorf("restarts with matching advertisement: %d", x.sp.AnRestarts)
	}

	x = new_tester(t, DevIDEhlPse0Rgmii1G, "88e1512", test_config(4, 4))
	x.sp.SetAdvertise(mii_adv_sel_802_3)
	x.init()
	d := x.d
	if x.sp.AnRestarts != 1 {
		t.Errorf("restarts after advertisement change: got %d want 1", x.sp.AnRestarts)
	}
	want := uint16(mii_adv_sel_802_3 | mii_adv_10_half | mii_adv_10_full | mii_adv_100_half | mii_adv_100_full)
	if v, err := d.PhyRead(0, mii_an_adv); err != nil || v != want {
		t.Errorf("advertisement: got 0x%x want 0x%x %v", v, want, err)
	}
	if err := d.phy.configure_link(d); err != nil {
		t.Fatal(err)
	}
	if x.sp.AnRestarts != 1 {
		t.Errorf("restart without change: got %d want 1", x.sp.AnRestarts)
	}

	// Autonegotiation turned off by someone else.
	if err := d.PhyWrite(0, mii_ctrl, 0); err != nil {
		t.Fatal(err)
	}
	if err := d.phy.configure_link(d); err != nil {
		t.Fatal(err)
	}
	if x.sp.AnRestarts != 2 {
		t.Errorf("restart with autonegotiation off: got %d want 2", x.sp.AnRestarts)
	}
	if v, _ := d.PhyRead(0, mii_ctrl); v&mii_ctrl_an_enable == 0 {
		t.Errorf("autonegotiation not enabled: 0x%x", v)
	}
}

func TestConfigureLinkClause45(t *testing.T) {
	x := new_tester(t, DevIDTglhPch1Sgmii, "88e2110", test_config(4, 4))
	x.sp.SetAdvertise(0)
	x.init()
	if x.sp.AnRestarts != 1 {
		t.Errorf("restarts: got %d want 1", x.sp.AnRestarts)
	}
	if got := x.sp.c45[sim_key(mmd_an, mmd_an_multig_ctrl)]; got != mmd_an_multig_ctrl_1g {
		t.Errorf("multi-gig advertisement: 0x%x", got)
	}
}

func TestAutonegTimeout(t *testing.T) {
	x := new_tester(t, DevIDEhlPse0Rgmii1G, "88e1512", test_config(4, 4))
	x.sp.NoAutoneg = true
	x.sp.SetAdvertise(mii_adv_sel_802_3)
	sleeps := x.sleeps
	x.init()
	if x.d.Link().Up {
		t.Error("link up without autonegotiation")
	}
	if got, least := x.sleeps-sleeps, int(phy_autoneg_timeout/phy_autoneg_poll_interval); got < least {
		t.Errorf("sleeps: got %d want at least %d", got, least)
	}
}

func TestLinkRefresh(t *testing.T) {
	for _, model := range []string{"88e1512", "88e2110"} {
		id := DevIDEhlPse0Rgmii1G
		if model == "88e2110" {
			id = DevIDEhlPchSgmii
		}
		x := new_tester(t, id, model, test_config(4, 4)).init()
		d := x.d
		if up, err := d.LinkUp(); err != nil || !up {
			t.Fatalf("%s: link %v %v", model, up, err)
		}
		x.sp.SetCable(false)
		if up, err := d.LinkUp(); err != nil || up {
			t.Errorf("%s: link up with cable out: %v", model, err)
		}
		if d.Link().Up {
			t.Errorf("%s: cached link up", model)
		}

		x.sp.Speed = 100
		x.sp.SetCable(true)
		if up, err := d.LinkUp(); err != nil || !up {
			t.Fatalf("%s: link %v %v", model, up, err)
		}
		if got := d.Link(); got.Speed != 100 || !got.FullDuplex {
			t.Errorf("%s: link %v", model, got)
		}
		if got := x.sim.Peek(mac_configuration) & mac_conf_speed_mask; got != mac_conf_speed_100 {
			t.Errorf("%s: mac speed 0x%x", model, got)
		}
		if !d.WaitForLink(0, 1) {
			t.Errorf("%s: wait for link", model)
		}
	}
}

func TestSgmiiInit(t *testing.T) {
	for _, serdes_2500 := range []bool{false, true} {
		x := new_tester(t, DevIDEhlPse0Sgmii2G, "gpy", test_config(4, 4))
		x.sim.Serdes2500 = serdes_2500
		x.init()
		d := x.d
		if d.speed_2500 != serdes_2500 {
			t.Errorf("2500 %v: speed_2500 %v", serdes_2500, d.speed_2500)
		}

		gcr0 := x.sim.modphy[serdes_gcr0]
		rate := uint16(serdes_rate_pcie_gen1 | serdes_pclk_70mhz)
		if serdes_2500 {
			rate = serdes_rate_pcie_gen2 | serdes_pclk_37p5mhz
		}
		if gcr0&(serdes_rate_mask|serdes_pclk_mask) != rate {
			t.Errorf("2500 %v: gcr0 rate 0x%x", serdes_2500, gcr0)
		}
		const lane = serdes_pll_clk | serdes_rst | serdes_phy_rx_clk
		if gcr0&lane != lane || gcr0&serdes_pwr_st_mask != serdes_pwr_st_p0 {
			t.Errorf("2500 %v: gcr0 0x%x", serdes_2500, gcr0)
		}

		ctrl := x.sim.xpcs[sr_mii_ctrl]
		dig := x.sim.xpcs[vr_mii_dig_ctrl1]
		if serdes_2500 {
			if ctrl&sr_mii_ctrl_an_enable != 0 || ctrl&sr_mii_ctrl_2500 == 0 {
				t.Errorf("2500: xpcs ctrl 0x%x", ctrl)
			}
			if dig&vr_mii_dig_ctrl1_2500_enable == 0 {
				t.Errorf("2500: xpcs dig ctrl 0x%x", dig)
			}
			continue
		}
		if ctrl&sr_mii_ctrl_an_enable == 0 || ctrl&sr_mii_ctrl_reset != 0 {
			t.Errorf("1g: xpcs ctrl 0x%x", ctrl)
		}
		if dig&vr_mii_dig_ctrl1_mac_auto_sw == 0 || dig&vr_mii_dig_ctrl1_2500_enable != 0 {
			t.Errorf("1g: xpcs dig ctrl 0x%x", dig)
		}
		if an := x.sim.xpcs[vr_mii_an_ctrl]; an&vr_mii_an_ctrl_pcs_mode_mask != vr_mii_an_ctrl_pcs_mode_sgmii {
			t.Errorf("1g: xpcs an ctrl 0x%x", an)
		}
	}
}

func TestSimPhyNames(t *testing.T) {
	got := strings.Join(SimPhyNames(), " ")
	if want := "88e1512 88e2110 gpy"; got != want {
		t.Errorf("names: got %q want %q", got, want)
	}
	if _, err := NewSimPhy("dp83867"); !errors.Is(err, ErrUnsupported) {
		t.Error("unknown model:", err)
	}
}
