// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Driver for Intel Elkhart Lake / Tiger Lake gigabit Ethernet controllers
// (Synopsys DesignWare EQoS MAC).
package intelgbe

import (
	"github.com/platinasystems/undi/elib/hw"
)

type reg hw.Reg32

func (r reg) get(d *Dev) uint32                { return hw.Reg32(r).Get(d.bus) }
func (r reg) set(d *Dev, v uint32)             { hw.Reg32(r).Set(d.bus, v) }
func (r reg) or(d *Dev, v uint32)              { hw.Reg32(r).Or(d.bus, v) }
func (r reg) andnot(d *Dev, v uint32)          { hw.Reg32(r).AndNot(d.bus, v) }
func (r reg) modify(d *Dev, clear, set uint32) { hw.Reg32(r).Modify(d.bus, clear, set) }

const (
	dma_channel_stride = 0x80
	mtl_queue_stride   = 0x40
)

// Per DMA channel register.
func (r reg) ch(i uint) reg { return r + reg(i*dma_channel_stride) }

// Per MTL queue register.
func (r reg) q(i uint) reg { return r + reg(i*mtl_queue_stride) }

const (
	// [0] RE receiver enable
	// [1] TE transmitter enable
	// [13] DM full duplex
	// [15:14] PS/FES speed select
	// [20] ACS auto pad/crc strip
	// [21] CST crc strip for type packets
	// [27] IPC checksum offload
	mac_configuration reg = 0x0000
	// [4] PM pass all multicast
	mac_packet_filter reg = 0x0008
	// [2i+1:2i] RXQiEN
	mac_rxq_ctrl0 reg = 0x00a0
	// [7:0] synopsys IP version
	mac_version reg = 0x0110

	mac_mdio_address reg = 0x0200
	mac_mdio_data    reg = 0x0204

	// [15:0] address bytes 5:4
	// [31] AE address enable
	mac_address0_high reg = 0x0300
	mac_address0_low  reg = 0x0304

	mtl_operation_mode reg = 0x0c00
	// [8i+3:8i] dma channel for rx queue i
	mtl_rxq_dma_map0 reg = 0x0c30
	// [1] TSF store and forward
	// [3:2] TXQEN
	// [22:16] TQS queue size in 256 byte units - 1
	mtl_txq0_operation_mode reg = 0x0d00
	// [5] RSF store and forward
	// [26:20] RQS queue size in 256 byte units - 1
	mtl_rxq0_operation_mode reg = 0x0d30

	// [0] SWR software reset, self clearing
	dma_mode reg = 0x1000
	// [1] BLEN4 [2] BLEN8 [3] BLEN16 [31] EN_LPI
	dma_sysbus_mode      reg = 0x1004
	dma_interrupt_status reg = 0x1008

	// Channel 0; other channels at dma_channel_stride.
	// [16] PBLX8
	dma_ch0_control reg = 0x1100
	// [0] ST start [21:16] TXPBL
	dma_ch0_tx_control reg = 0x1104
	// [0] SR start [14:1] RBSZ [21:16] RXPBL
	dma_ch0_rx_control          reg = 0x1108
	dma_ch0_txdesc_list_address reg = 0x1114
	dma_ch0_rxdesc_list_address reg = 0x111c
	dma_ch0_txdesc_tail_pointer reg = 0x1120
	dma_ch0_rxdesc_tail_pointer reg = 0x1128
	dma_ch0_txdesc_ring_length  reg = 0x112c
	dma_ch0_rxdesc_ring_length  reg = 0x1130
	dma_ch0_interrupt_enable    reg = 0x1134
	dma_ch0_status              reg = 0x1160
)

const (
	mac_conf_re         = 1 << 0
	mac_conf_te         = 1 << 1
	mac_conf_dm         = 1 << 13
	mac_conf_speed_mask = 3 << 14
	mac_conf_speed_10   = 2 << 14
	mac_conf_speed_100  = 3 << 14
	mac_conf_speed_1000 = 0 << 14
	mac_conf_speed_2500 = 1 << 14
	mac_conf_acs        = 1 << 20
	mac_conf_cst        = 1 << 21
	mac_conf_ipc        = 1 << 27

	mac_packet_filter_pm = 1 << 4

	mac_rxq_ctrl0_enable_dcb = 2

	mac_version_mask = 0xff
	mac_version_min  = 0x50

	mac_address_enable = 1 << 31

	mac_mdio_busy       = 1 << 0
	mac_mdio_c45e       = 1 << 1
	mac_mdio_cmd_write  = 1 << 2
	mac_mdio_cmd_read   = 3 << 2
	mac_mdio_cr_250_300 = 5 << 8
	mac_mdio_rda_shift  = 16
	mac_mdio_rda_mask   = 0x1f << mac_mdio_rda_shift
	mac_mdio_pa_shift   = 21
	mac_mdio_pa_mask    = 0x1f << mac_mdio_pa_shift
	mac_mdio_ra_shift   = 16

	mtl_operation_mode_schalg_sp = 0x60

	mtl_txq_tsf        = 1 << 1
	mtl_txq_txqen_mask = 3 << 2
	mtl_txq_txqen      = 2 << 2
	mtl_txq_tqs_shift  = 16
	mtl_txq_tqs_mask   = 0x7f << mtl_txq_tqs_shift
	mtl_rxq_rsf        = 1 << 5
	mtl_rxq_rqs_shift  = 20
	mtl_rxq_rqs_mask   = 0x7f << mtl_rxq_rqs_shift
	mtl_fifo_per_queue = 4 << 10

	dma_mode_swr = 1 << 0

	dma_sysbus_blen4  = 1 << 1
	dma_sysbus_blen8  = 1 << 2
	dma_sysbus_blen16 = 1 << 3
	dma_sysbus_en_lpi = 1 << 31

	dma_ch_control_pblx8 = 1 << 16

	dma_ch_tx_control_st        = 1 << 0
	dma_ch_tx_control_pbl_shift = 16
	dma_ch_tx_control_pbl_mask  = 0x3f << dma_ch_tx_control_pbl_shift

	dma_ch_rx_control_sr         = 1 << 0
	dma_ch_rx_control_rbsz_shift = 1
	dma_ch_rx_control_rbsz_mask  = 0x3fff << dma_ch_rx_control_rbsz_shift
	dma_ch_rx_control_pbl_shift  = 16
	dma_ch_rx_control_pbl_mask   = 0x3f << dma_ch_rx_control_pbl_shift

	dma_burst_length = 32

	// Same bit positions in enable and status.
	dma_ch_intr_ti  = 1 << 0
	dma_ch_intr_ri  = 1 << 6
	dma_ch_intr_fbe = 1 << 12
	dma_ch_intr_ais = 1 << 14
	dma_ch_intr_nis = 1 << 15
)

var reg_names = []struct {
	r    reg
	name string
}{
	{mac_configuration, "mac configuration"},
	{mac_packet_filter, "mac packet filter"},
	{mac_rxq_ctrl0, "mac rxq ctrl0"},
	{mac_version, "mac version"},
	{mac_mdio_address, "mdio address"},
	{mac_mdio_data, "mdio data"},
	{mac_address0_high, "mac address0 high"},
	{mac_address0_low, "mac address0 low"},
	{mtl_operation_mode, "mtl operation mode"},
	{mtl_rxq_dma_map0, "mtl rxq dma map0"},
	{dma_mode, "dma mode"},
	{dma_sysbus_mode, "dma sysbus mode"},
	{dma_interrupt_status, "dma interrupt status"},
}

var ch_reg_names = []struct {
	r    reg
	name string
}{
	{dma_ch0_control, "control"},
	{dma_ch0_tx_control, "tx control"},
	{dma_ch0_rx_control, "rx control"},
	{dma_ch0_txdesc_list_address, "tx list address"},
	{dma_ch0_rxdesc_list_address, "rx list address"},
	{dma_ch0_txdesc_tail_pointer, "tx tail"},
	{dma_ch0_rxdesc_tail_pointer, "rx tail"},
	{dma_ch0_txdesc_ring_length, "tx ring length"},
	{dma_ch0_rxdesc_ring_length, "rx ring length"},
	{dma_ch0_interrupt_enable, "interrupt enable"},
	{dma_ch0_status, "status"},
}

func (r reg) Offset() uint   { return uint(r) }
func (r reg) String() string { return hw.Reg32(r).String() }
