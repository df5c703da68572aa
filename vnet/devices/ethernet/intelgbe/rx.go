// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"encoding/binary"

	"github.com/platinasystems/log"
)

const (
	ethernet_header_bytes = 14
	ethernet_min_bytes    = 60
)

type FrameType uint8

const (
	FrameNone FrameType = iota
	FrameUnicast
	FrameBroadcast
	FrameMulticast
	FramePromiscuous
)

var frame_type_names = [...]string{
	FrameNone:        "none",
	FrameUnicast:     "unicast",
	FrameBroadcast:   "broadcast",
	FrameMulticast:   "multicast",
	FramePromiscuous: "promiscuous",
}

func (t FrameType) String() string {
	if int(t) < len(frame_type_names) {
		return frame_type_names[t]
	}
	return "unknown"
}

// RxFrame describes a frame copied out by Receive.
type RxFrame struct {
	// Bytes copied, header included.
	Len            uint
	MediaHeaderLen uint
	Type           FrameType
	// EtherType.
	Protocol uint16
	Src, Dst Address
}

func (d *Dev) classify(dst Address) FrameType {
	switch {
	case dst == d.PermAddr:
		return FrameUnicast
	case dst == Broadcast:
		return FrameBroadcast
	case dst.IsMulticast():
		return FrameMulticast
	}
	return FramePromiscuous
}

// rx_error reports why a completed descriptor cannot be delivered.
func rx_error(e *descriptor) string {
	switch {
	case e.des3&desc_ld == 0:
		return "not last descriptor"
	case e.des3&rx_desc3_crc_error != 0:
		return "crc error"
	case e.des3&rx_desc3_receive_error != 0:
		return "receive error"
	case e.des2&rx_desc2_overflow != 0:
		return "overflow"
	case e.des2&rx_desc2_dribble_error != 0:
		return "dribble error"
	}
	return ""
}

// Receive copies the next good frame into buf.  Bad frames are dropped
// and their slots returned to hardware.  ErrNoData means the ring is empty.
func (d *Dev) Receive(buf []byte) (f RxFrame, err error) {
	q := &d.rx
	q.mu.Lock()
	defer q.mu.Unlock()

	for n := uint(0); n < q.len; n++ {
		i := q.head_index
		e := &q.desc[i]
		if e.is_owned_by_hw() {
			break
		}
		q.head_index = q.next(i)
		d.Counters.Add(rx_packets, 1)

		if why := rx_error(e); why != "" {
			log.Print("err", d.id, "rx slot", i, why, e)
			if e.des3&rx_desc3_crc_error != 0 {
				d.Counters.Add(rx_crc_errors, 1)
			}
			d.Counters.Add(rx_drops, 1)
			q.rearm(i)
			continue
		}

		b := q.buffer(i)
		l := uint(e.des3 & rx_desc3_length)
		if l > uint(len(b)) {
			l = uint(len(b))
		}
		if l < ethernet_min_bytes {
			d.Counters.Add(rx_undersize_packets, 1)
		}
		copy(f.Dst[:], b[0:6])
		copy(f.Src[:], b[6:12])
		f.Protocol = binary.BigEndian.Uint16(b[12:14])
		f.Type = d.classify(f.Dst)
		f.MediaHeaderLen = ethernet_header_bytes
		if l > uint(len(buf)) {
			l = uint(len(buf))
		}
		f.Len = uint(copy(buf, b[:l]))
		d.Counters.Add(rx_good_packets, 1)
		d.Counters.Add(rx_bytes, uint64(f.Len))
		q.rearm(i)
		return
	}
	err = ErrNoData
	return
}

// rearm gives slot i back to hardware and moves the tail pointer to it.
func (q *rx_dma_queue) rearm(i uint) {
	q.arm(i)
	q.tail_index = i
	dma_ch0_rxdesc_tail_pointer.ch(q.index).set(q.d, q.desc_phys(i))
}
