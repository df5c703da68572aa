// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"io"
)

func (q *dma_queue) dump_ring(w io.Writer) {
	for i := range q.desc {
		fmt.Fprintf(w, "%03d 0x%04x: %s\n", i, q.desc_phys(uint(i)), &q.desc[i])
	}
}

// DumpRegs writes controller and per-channel registers.
func (d *Dev) DumpRegs(w io.Writer) {
	for _, r := range reg_names {
		fmt.Fprintf(w, "%-24s %v: 0x%08x\n", r.name, r.r, r.r.get(d))
	}
	for _, c := range d.channels() {
		fmt.Fprintf(w, "dma channel %d:\n", c)
		for _, r := range ch_reg_names {
			fmt.Fprintf(w, "  %-22s %v: 0x%08x\n", r.name, r.r.ch(c), r.r.ch(c).get(d))
		}
	}
}

// DumpRings writes queue indices and, if verbose, every descriptor.
func (d *Dev) DumpRings(w io.Writer, verbose bool) {
	d.tx.mu.Lock()
	fmt.Fprintf(w, "txq ch %d: head %d tail %d avail %d\n",
		d.tx.index, d.tx.head_index, d.tx.tail_index, d.tx.available())
	if verbose {
		d.tx.dump_ring(w)
	}
	d.tx.mu.Unlock()

	d.rx.mu.Lock()
	fmt.Fprintf(w, "rxq ch %d: cursor %d tail %d\n", d.rx.index, d.rx.head_index, d.rx.tail_index)
	if verbose {
		d.rx.dump_ring(w)
	}
	d.rx.mu.Unlock()
}

// Show summarizes identity, link and counters.
func (d *Dev) Show(w io.Writer) {
	fmt.Fprintf(w, "%v: mac version 0x%02x, %v, address %v (permanent %v)\n",
		d.id, d.Version, d.info.iface, d.Addr, d.PermAddr)
	fmt.Fprintf(w, "  phy %v, link %v\n", &d.phy, d.link)
	d.Counters.WriteTo(w)
}
