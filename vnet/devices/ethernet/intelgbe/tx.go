// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"

	"github.com/platinasystems/log"
	"github.com/platinasystems/undi/elib/hw/dma"
)

// Fragment is a piece of a frame in host memory.
type Fragment struct {
	Addr uint64
	Len  uint
}

// Free slots: one is always kept empty so a full ring differs from an empty one.
func (q *tx_dma_queue) available() uint {
	if q.head_index > q.tail_index {
		return q.head_index - q.tail_index - 1
	}
	return q.len - q.tail_index + q.head_index - 1
}

func (q *tx_dma_queue) in_flight() uint { return q.len - 1 - q.available() }

// TxAvailable returns the number of free transmit descriptors.
func (d *Dev) TxAvailable() uint {
	d.tx.mu.Lock()
	defer d.tx.mu.Unlock()
	return d.tx.available()
}

// Transmit queues one frame made of one or more fragments.  Buffers
// belong to hardware until returned by Reclaim.
func (d *Dev) Transmit(frags ...Fragment) (err error) {
	q := &d.tx
	q.mu.Lock()
	defer q.mu.Unlock()

	n := uint(len(frags))
	if n == 0 {
		return fmt.Errorf("empty frame: %w", ErrUnsupported)
	}
	if q.available() < n {
		d.Counters.Add(tx_queue_full, 1)
		return ErrQueueFull
	}

	var frame_len uint
	maps := make([]dma.Mapping, n)
	for i := range frags {
		f := &frags[i]
		if f.Len == 0 || f.Len > tx_desc2_buffer_len {
			err = fmt.Errorf("fragment %d length %d: %w", i, f.Len, ErrUnsupported)
		} else {
			maps[i] = dma.Mapping{Unmapped: f.Addr, Size: f.Len}
			err = d.dma.MapReadOnly(&maps[i])
		}
		if err != nil {
			for j := 0; j < i; j++ {
				d.dma.Unmap(&maps[j])
			}
			return
		}
		frame_len += f.Len
	}

	head := q.tail_index
	slot := func(i uint) uint { return (head + i) % q.len }

	// Trailing fragments, last first; hardware polls from head.
	for i := n - 1; i >= 1; i-- {
		q.fill(slot(i), &maps[i], frame_len, 0, i == n-1)
	}
	q.fill(head, &maps[0], frame_len, desc_fd, n == 1)

	q.tail_index = slot(n)
	q.barrier()
	dma_ch0_txdesc_tail_pointer.ch(q.index).set(d, q.desc_phys(q.tail_index))

	d.Counters.Add(tx_packets, 1)
	d.Counters.Add(tx_bytes, uint64(frame_len))
	return nil
}

// fill writes one descriptor, fences, then hands it to hardware.
func (q *tx_dma_queue) fill(i uint, m *dma.Mapping, frame_len uint, first uint32, last bool) {
	e := &q.desc[i]
	q.mappings[i] = *m
	e.des0 = uint32(m.Physical)
	e.des1 = 0
	e.des2 = uint32(m.Size) & tx_desc2_buffer_len
	e.des3 = uint32(frame_len)&tx_desc3_frame_len | first
	if last {
		e.des2 |= tx_desc2_ioc
		e.des3 |= desc_ld
	}
	q.barrier()
	e.des3 |= desc_own
}

// Reclaim returns host addresses of up to max completed frames, oldest
// first, unmapping their buffers.
func (d *Dev) Reclaim(max int) (addrs []uint64) {
	q := &d.tx
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.head_index
	for i != q.tail_index {
		e := &q.desc[i]
		if e.is_owned_by_hw() {
			break
		}
		first := e.des3&desc_fd != 0
		if first && len(addrs) >= max {
			break
		}
		m := &q.mappings[i]
		if !m.IsBound() {
			log.Print("err", d.id, "tx slot", i, "complete without being marked used")
			d.Counters.Add(tx_reclaim_errors, 1)
			break
		}
		if e.des3&desc_ld != 0 {
			if e.des3&tx_desc3_error_summary != 0 {
				log.Print("err", d.id, "tx slot", i, "error", e)
				d.Counters.Add(tx_errors, 1)
			} else {
				d.Counters.Add(tx_good_packets, 1)
			}
		}
		cpu := m.Unmapped
		if err := d.dma.Unmap(m); err != nil {
			log.Print("err", d.id, "tx slot", i, "unmap", err)
		}
		*m = dma.Mapping{}
		if first {
			addrs = append(addrs, cpu)
		}
		e.zero()
		i = q.next(i)
	}
	q.head_index = i
	return
}
