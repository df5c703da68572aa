// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/platinasystems/undi/elib/hw"
	"github.com/platinasystems/undi/elib/hw/dma"
)

// Normal (read format) descriptor shared by tx and rx.
type descriptor struct {
	des0 uint32
	des1 uint32
	des2 uint32
	des3 uint32
}

const descriptor_bytes = 16

const (
	// des3
	desc_own = 1 << 31
	// tx: first descriptor; rx write back: context descriptor
	desc_fd = 1 << 29
	desc_ld = 1 << 28

	tx_desc2_ioc           = 1 << 31
	tx_desc2_buffer_len    = 0x3fff
	tx_desc3_frame_len     = 0x7fff
	tx_desc3_error_summary = 1 << 15

	// rx read format
	rx_desc3_ioc   = 1 << 30
	rx_desc3_buf1v = 1 << 24
	rx_desc3_armed = rx_desc3_ioc | rx_desc3_buf1v

	// rx write back format
	rx_desc3_error_summary = 1 << 15
	rx_desc3_receive_error = 1 << 23
	rx_desc3_crc_error     = 1 << 24
	rx_desc3_length        = 0x7fff
	rx_desc2_dribble_error = 1 << 16
	rx_desc2_overflow      = 1 << 17
)

func (e *descriptor) is_owned_by_hw() bool { return e.des3&desc_own != 0 }

func (e *descriptor) zero() { *e = descriptor{} }

func (e *descriptor) String() (s string) {
	d := *e
	if d.des3&desc_own != 0 {
		s += "hw: "
	} else {
		s += "sw: "
	}
	s += fmt.Sprintf("buffer 0x%08x, des2 0x%08x, des3 0x%08x", d.des0, d.des2, d.des3)
	if d.des3&desc_fd != 0 {
		s += ", first"
	}
	if d.des3&desc_ld != 0 {
		s += ", last"
	}
	return
}

type dma_queue struct {
	d  *Dev
	mu sync.Mutex

	// DMA channel.
	index uint

	ring dma.Mapping
	desc []descriptor

	// Slots and indices into desc.
	len        uint
	head_index uint
	tail_index uint

	// Runs between descriptor payload writes and ownership flips.
	barrier func()
}

func (q *dma_queue) init(d *Dev, channel, n uint) (err error) {
	q.d = d
	q.index = channel
	q.len = n
	q.head_index, q.tail_index = 0, 0
	if q.barrier == nil {
		q.barrier = hw.MemoryBarrier
	}
	if q.ring, err = d.dma.AllocateAndMap(n * descriptor_bytes); err != nil {
		return
	}
	b := d.dma.Bytes(&q.ring)
	q.desc = unsafe.Slice((*descriptor)(unsafe.Pointer(&b[0])), n)
	q.zero()
	return
}

func (q *dma_queue) free() {
	if q.ring.IsBound() {
		q.d.dma.Free(&q.ring)
	}
	q.desc = nil
}

func (q *dma_queue) zero() {
	for i := range q.desc {
		q.desc[i].zero()
	}
}

func (q *dma_queue) next(i uint) uint {
	if i++; i >= q.len {
		i = 0
	}
	return i
}

// Device address of descriptor i.
func (q *dma_queue) desc_phys(i uint) uint32 {
	return uint32(q.ring.Physical) + uint32(i*descriptor_bytes)
}

type tx_dma_queue struct {
	dma_queue
	// Mapping of the frame buffer in flight at each slot.
	mappings []dma.Mapping
}

type rx_dma_queue struct {
	dma_queue
	// Receive buffers, buffer_bytes per slot.
	buffers      dma.Mapping
	buffer_bytes uint
}

func (q *rx_dma_queue) buffer_phys(i uint) uint32 {
	return uint32(q.buffers.Physical) + uint32(i*q.buffer_bytes)
}

func (q *rx_dma_queue) buffer(i uint) []byte {
	b := q.d.dma.Bytes(&q.buffers)
	return b[i*q.buffer_bytes : (i+1)*q.buffer_bytes]
}

// AllocRings allocates descriptor rings and receive buffers.
func (d *Dev) AllocRings() (err error) {
	defer func() {
		if err != nil {
			d.FreeRings()
		}
	}()
	if err = d.tx.init(d, 0, d.TxRingLen); err != nil {
		return fmt.Errorf("tx ring: %w", err)
	}
	d.tx.mappings = make([]dma.Mapping, d.TxRingLen)
	if err = d.rx.init(d, d.RxChannel, d.RxRingLen); err != nil {
		return fmt.Errorf("rx ring: %w", err)
	}
	d.rx.buffer_bytes = d.RxBufferSize
	if d.rx.buffers, err = d.dma.AllocateAndMap(d.RxRingLen * d.RxBufferSize); err != nil {
		return fmt.Errorf("rx buffers: %w", err)
	}
	return
}

// FreeRings returns all DMA memory, unmapping any frames still in flight.
func (d *Dev) FreeRings() {
	for i := range d.tx.mappings {
		if m := &d.tx.mappings[i]; m.IsBound() {
			d.dma.Unmap(m)
		}
	}
	d.tx.mappings = nil
	d.tx.free()
	d.rx.free()
	if d.rx.buffers.IsBound() {
		d.dma.Free(&d.rx.buffers)
	}
}

func (q *rx_dma_queue) arm(i uint) {
	e := &q.desc[i]
	e.des0 = q.buffer_phys(i)
	e.des1 = 0
	e.des2 = 0
	e.des3 = rx_desc3_armed
	q.barrier()
	e.des3 |= desc_own
}

// dma_init programs system bus mode and both rings.
func (d *Dev) dma_init() {
	dma_sysbus_mode.set(d, dma_sysbus_en_lpi|dma_sysbus_blen16|dma_sysbus_blen8|dma_sysbus_blen4)

	t := &d.tx
	for i := range t.mappings {
		if m := &t.mappings[i]; m.IsBound() {
			d.dma.Unmap(m)
		}
	}
	t.zero()
	t.head_index, t.tail_index = 0, 0
	dma_ch0_txdesc_ring_length.ch(t.index).set(d, uint32(t.len-1))
	dma_ch0_txdesc_list_address.ch(t.index).set(d, t.desc_phys(0))
	dma_ch0_txdesc_tail_pointer.ch(t.index).set(d, t.desc_phys(0))
	dma_ch0_tx_control.ch(t.index).set(d, dma_burst_length<<dma_ch_tx_control_pbl_shift&dma_ch_tx_control_pbl_mask)

	r := &d.rx
	for i := uint(0); i < r.len; i++ {
		r.arm(i)
	}
	r.head_index, r.tail_index = 0, 0
	dma_ch0_rxdesc_ring_length.ch(r.index).set(d, uint32(r.len-1))
	dma_ch0_rx_control.ch(r.index).set(d,
		(dma_burst_length<<dma_ch_rx_control_pbl_shift|uint32(d.DmaBufferSize)<<dma_ch_rx_control_rbsz_shift)&
			(dma_ch_rx_control_pbl_mask|dma_ch_rx_control_rbsz_mask))
	dma_ch0_rxdesc_list_address.ch(r.index).set(d, r.desc_phys(0))
	// Tail one past the end: whole ring is available to hardware.
	dma_ch0_rxdesc_tail_pointer.ch(r.index).set(d, r.desc_phys(r.len))
	dma_ch0_control.ch(r.index).set(d, dma_ch_control_pblx8)
	dma_ch0_control.ch(t.index).set(d, dma_ch_control_pblx8)
}
