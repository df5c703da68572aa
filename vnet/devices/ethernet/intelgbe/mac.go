// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"time"

	"github.com/platinasystems/log"
)

const (
	reset_settle        = 10 * time.Millisecond
	reset_poll_interval = 10 * time.Millisecond
	reset_poll_tries    = 10
)

func (d *Dev) mac_version() uint32 { return mac_version.get(d) & mac_version_mask }

// reset sets DMA_MODE.SWR and waits for hardware to clear it.
func (d *Dev) reset() error {
	dma_mode.or(d, dma_mode_swr)
	d.delay(reset_settle)
	_, err := d.poller(reset_poll_interval, reset_poll_tries).Poll(func() (bool, error) {
		return dma_mode.get(d)&dma_mode_swr == 0, nil
	})
	if err != nil {
		return fmt.Errorf("software reset: %w", ErrHardwareFault)
	}
	return nil
}

func (d *Dev) read_addr() {
	lo := mac_address0_low.get(d)
	hi := mac_address0_high.get(d)
	for i := 0; i < 4; i++ {
		d.PermAddr[i] = byte(lo >> (8 * uint(i)))
	}
	for i := 0; i < 2; i++ {
		d.PermAddr[4+i] = byte(hi >> (8 * uint(i)))
	}
}

func (d *Dev) write_addr() {
	a := &d.Addr
	mac_address0_high.set(d, mac_address_enable|uint32(a[5])<<8|uint32(a[4]))
	mac_address0_low.set(d, uint32(a[3])<<24|uint32(a[2])<<16|uint32(a[1])<<8|uint32(a[0]))
}

// SetAddr programs a new station address.
func (d *Dev) SetAddr(a Address) {
	d.Addr = a
	d.write_addr()
}

func (d *Dev) mtl_init() {
	mtl_operation_mode.set(d, mtl_operation_mode_schalg_sp)
	// Queue 0 maps to the receive channel.
	mtl_rxq_dma_map0.or(d, uint32(d.rx.index))

	// FIFO sizes in 256 byte blocks, minus one; one queue of each in use.
	tqs := uint32(d.info.tx_queues*mtl_fifo_per_queue/256 - 1)
	rqs := uint32(d.info.rx_queues*mtl_fifo_per_queue/256 - 1)
	mtl_txq0_operation_mode.set(d, mtl_txq_tsf|tqs<<mtl_txq_tqs_shift&mtl_txq_tqs_mask)
	mtl_rxq0_operation_mode.set(d, mtl_rxq_rsf|rqs<<mtl_rxq_rqs_shift&mtl_rxq_rqs_mask)
}

func (d *Dev) mac_init() {
	mac_configuration.set(d, mac_conf_cst|mac_conf_acs|mac_conf_ipc)
	if l, err := d.phy.read_status(d); err != nil {
		log.Print("warning", d.id, "phy status", err)
	} else if l.Up {
		d.link = l
		d.phy.link_up = true
	} else {
		d.phy.link_up = false
	}
	d.link.Up = d.phy.link_up
	d.set_speed()
	mac_rxq_ctrl0.set(d, mac_rxq_ctrl0_enable_dcb)
}

func (d *Dev) set_speed() {
	var v uint32
	switch d.link.Speed {
	case 100:
		v = mac_conf_speed_100
	case 1000:
		v = mac_conf_speed_1000
	case 2500:
		v = mac_conf_speed_2500
	default:
		v = mac_conf_speed_10
	}
	if d.link.FullDuplex {
		v |= mac_conf_dm
	}
	mac_configuration.modify(d, mac_conf_speed_mask|mac_conf_dm, v)
	if d.Verbose {
		log.Printf("intelgbe: %v mac speed %d full duplex %v", d.id, d.link.Speed, d.link.FullDuplex)
	}
}

const dma_ch_intr_enable = dma_ch_intr_nis | dma_ch_intr_ri | dma_ch_intr_ti | dma_ch_intr_ais | dma_ch_intr_fbe

func (d *Dev) enable_interrupts() {
	for _, i := range d.channels() {
		dma_ch0_interrupt_enable.ch(i).set(d, dma_ch_intr_enable)
	}
}

// Channels in use: tx on its own, rx on RxChannel.
func (d *Dev) channels() []uint {
	if d.rx.index == d.tx.index {
		return []uint{d.tx.index}
	}
	return []uint{d.tx.index, d.rx.index}
}

func (d *Dev) start() {
	dma_ch0_rx_control.ch(d.rx.index).or(d, dma_ch_rx_control_sr)
	mtl_txq0_operation_mode.modify(d, mtl_txq_txqen_mask, mtl_txq_txqen)
	dma_ch0_tx_control.ch(d.tx.index).or(d, dma_ch_tx_control_st)
	mac_configuration.or(d, mac_conf_re|mac_conf_te)
	d.ReceiveStarted = true
}

func (d *Dev) uninit() {
	dma_ch0_rx_control.ch(d.rx.index).andnot(d, dma_ch_rx_control_sr)
	mtl_txq0_operation_mode.andnot(d, mtl_txq_txqen_mask)
	dma_ch0_tx_control.ch(d.tx.index).andnot(d, dma_ch_tx_control_st)
	mac_configuration.andnot(d, mac_conf_re|mac_conf_te)
}

// LinkUp refreshes link state when the phy reports a change and
// reprograms MAC speed and duplex to match.
func (d *Dev) LinkUp() (up bool, err error) {
	changed, err := d.phy.has_link_changed(d)
	if err != nil || !changed {
		return d.phy.link_up, err
	}
	l, err := d.phy.read_status(d)
	if err != nil {
		return d.phy.link_up, err
	}
	if l.Up {
		d.link = l
		d.set_speed()
	}
	d.phy.link_up = l.Up
	d.link.Up = l.Up
	if d.Verbose {
		log.Print("info", d.id, "link", d.link)
	}
	return l.Up, nil
}

// Link returns the last observed link state.
func (d *Dev) Link() Link { return d.link }

// WaitForLink polls LinkUp for up to tries intervals.
func (d *Dev) WaitForLink(interval time.Duration, tries int) bool {
	_, err := d.poller(interval, tries).Poll(func() (bool, error) {
		up, err := d.LinkUp()
		return up, err
	})
	return err == nil
}

// Interrupt status bits reported by AckInterrupts.
type InterruptStatus uint

const (
	InterruptTransmit InterruptStatus = 1 << iota
	InterruptReceive
)

// AckInterrupts reads and acknowledges per-channel DMA status.
func (d *Dev) AckInterrupts() (s InterruptStatus) {
	for _, i := range d.channels() {
		r := dma_ch0_status.ch(i)
		v := r.get(d)
		switch {
		case v&dma_ch_intr_nis != 0:
			var ack uint32
			if i == d.tx.index && v&dma_ch_intr_ti != 0 {
				s |= InterruptTransmit
				ack |= dma_ch_intr_ti
			}
			if i == d.rx.index && v&dma_ch_intr_ri != 0 {
				s |= InterruptReceive
				ack |= dma_ch_intr_ri
			}
			if ack != 0 {
				r.set(d, ack)
			}
		case v&dma_ch_intr_ais != 0:
			log.Print("err", d.id, "channel", i, "abnormal interrupt", fmt.Sprintf("0x%x", v))
			r.set(d, v)
		}
	}
	return
}

func (d *Dev) set_filter() {
	if d.AllMulticast {
		mac_packet_filter.or(d, mac_packet_filter_pm)
	} else {
		mac_packet_filter.andnot(d, mac_packet_filter_pm)
	}
}

// SetReceive enables or disables receive with all multicast passed.
func (d *Dev) SetReceive(enable bool) {
	d.AllMulticast = enable
	d.ReceiveStarted = enable
	d.set_filter()
}
