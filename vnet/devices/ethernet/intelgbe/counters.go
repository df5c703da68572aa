// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"io"
	"sync"
)

type counter uint

const (
	rx_packets counter = iota
	rx_good_packets
	rx_bytes
	rx_undersize_packets
	rx_drops
	rx_crc_errors
	tx_packets
	tx_good_packets
	tx_bytes
	tx_queue_full
	tx_errors
	tx_reclaim_errors
	n_counters
)

var counter_names = [n_counters]string{
	rx_packets:           "rx packets",
	rx_good_packets:      "rx good packets",
	rx_bytes:             "rx bytes",
	rx_undersize_packets: "rx undersize packets",
	rx_drops:             "rx drops",
	rx_crc_errors:        "rx crc errors",
	tx_packets:           "tx packets",
	tx_good_packets:      "tx good packets",
	tx_bytes:             "tx bytes",
	tx_queue_full:        "tx queue full",
	tx_errors:            "tx errors",
	tx_reclaim_errors:    "tx reclaim errors",
}

func (c counter) String() string { return counter_names[c] }

// Software counters; the controller's MMC block is left disabled.
type Counters struct {
	mu sync.Mutex
	v  [n_counters]uint64
}

func (c *Counters) Add(i counter, n uint64) {
	c.mu.Lock()
	c.v[i] += n
	c.mu.Unlock()
}

func (c *Counters) get(i counter) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v[i]
}

func (c *Counters) Clear() {
	c.mu.Lock()
	c.v = [n_counters]uint64{}
	c.mu.Unlock()
}

// Stats is the subset of counters reported through the command interface.
type Stats struct {
	RxTotal, RxGood, RxUndersize, RxDropped, RxCrcErrors uint64
	TxTotal, TxGood, TxDropped                           uint64
}

func (c *Counters) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		RxTotal:     c.v[rx_packets],
		RxGood:      c.v[rx_good_packets],
		RxUndersize: c.v[rx_undersize_packets],
		RxDropped:   c.v[rx_drops],
		RxCrcErrors: c.v[rx_crc_errors],
		TxTotal:     c.v[tx_packets] + c.v[tx_queue_full],
		TxGood:      c.v[tx_good_packets],
		TxDropped:   c.v[tx_queue_full] + c.v[tx_errors],
	}
}

// Foreach calls f for each non-zero counter.
func (c *Counters) Foreach(f func(name string, v uint64)) {
	c.mu.Lock()
	v := c.v
	c.mu.Unlock()
	for i := range v {
		if v[i] != 0 {
			f(counter(i).String(), v[i])
		}
	}
}

func (c *Counters) WriteTo(w io.Writer) (n int64, err error) {
	c.Foreach(func(name string, v uint64) {
		if err == nil {
			var m int
			m, err = fmt.Fprintf(w, "%30s %d\n", name, v)
			n += int64(m)
		}
	})
	return
}
