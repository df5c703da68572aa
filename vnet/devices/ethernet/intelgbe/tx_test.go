// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/platinasystems/undi/elib/hw/dma"
)

func (x *tester) owned_tx() (n int) {
	for i := range x.d.tx.desc {
		if x.d.tx.desc[i].is_owned_by_hw() {
			n++
		}
	}
	return
}

func TestTxSingleFrame(t *testing.T) {
	x := started(t, test_config(4, 4))
	d := x.d
	if got := d.TxAvailable(); got != 3 {
		t.Fatalf("available: got %d want 3", got)
	}
	cpu, _ := x.alloc(64)
	live := x.mem.Live()
	if err := d.Transmit(Fragment{cpu, 64}); err != nil {
		t.Fatal(err)
	}
	if got := d.TxAvailable(); got != 2 {
		t.Errorf("available: got %d want 2", got)
	}
	if got := x.owned_tx(); got != 1 {
		t.Errorf("owned: got %d want 1", got)
	}
	e := d.tx.desc[0]
	if e.des0 != phys(cpu) || e.des2 != 64|tx_desc2_ioc || e.des3 != 64|desc_fd|desc_ld|desc_own {
		t.Errorf("descriptor: %v", &e)
	}
	if got, want := x.sim.Peek(dma_ch0_txdesc_tail_pointer), d.tx.desc_phys(1); got != want {
		t.Errorf("tail: got 0x%x want 0x%x", got, want)
	}
	if got := d.Reclaim(1); len(got) != 0 {
		t.Errorf("reclaimed frame owned by hardware: %x", got)
	}

	d.tx.desc[0].des3 &^= desc_own
	got := d.Reclaim(1)
	if len(got) != 1 || got[0] != cpu {
		t.Fatalf("reclaim: got %x want [%x]", got, cpu)
	}
	if got := d.TxAvailable(); got != 3 {
		t.Errorf("available after reclaim: got %d want 3", got)
	}
	if d.tx.desc[0] != (descriptor{}) {
		t.Errorf("descriptor not cleared: %v", &d.tx.desc[0])
	}
	if x.mem.Live() != live {
		t.Error("buffer still mapped:", x.mem)
	}
	if got := d.Reclaim(1); len(got) != 0 {
		t.Errorf("second reclaim: %x", got)
	}
}

func TestTxQueueFull(t *testing.T) {
	x := started(t, test_config(4, 4))
	d := x.d
	cpu, _ := x.alloc(256)
	for i := 0; i < 3; i++ {
		if err := d.Transmit(Fragment{cpu + uint64(64*i), 64}); err != nil {
			t.Fatal(i, err)
		}
	}
	maps := x.mem.MapCount
	tail := x.sim.Peek(dma_ch0_txdesc_tail_pointer)
	if err := d.Transmit(Fragment{cpu + 192, 64}); !errors.Is(err, ErrQueueFull) {
		t.Fatal("full ring:", err)
	}
	if x.mem.MapCount != maps {
		t.Error("buffer mapped for rejected frame")
	}
	if x.sim.Peek(dma_ch0_txdesc_tail_pointer) != tail {
		t.Error("tail moved for rejected frame")
	}
	if got := d.Counters.get(tx_queue_full); got != 1 {
		t.Errorf("queue full count: got %d want 1", got)
	}

	x.sim.Step()
	d.Reclaim(1)
	// One slot free; a two fragment frame does not fit.
	if err := d.Transmit(Fragment{cpu, 32}, Fragment{cpu + 32, 32}); !errors.Is(err, ErrQueueFull) {
		t.Fatal("two fragments in one slot:", err)
	}
}

func TestTxBadFragments(t *testing.T) {
	x := started(t, test_config(8, 4))
	d := x.d
	cpu, _ := x.alloc(256)
	live := x.mem.Live()
	if err := d.Transmit(); !errors.Is(err, ErrUnsupported) {
		t.Error("no fragments:", err)
	}
	if err := d.Transmit(Fragment{cpu, 64}, Fragment{cpu + 64, 0}); !errors.Is(err, ErrUnsupported) {
		t.Error("empty fragment:", err)
	}
	// First fragment maps whole, second is truncated.
	x.mem.ShortMap = 10
	if err := d.Transmit(Fragment{cpu, 8}, Fragment{cpu + 8, 64}); !errors.Is(err, dma.ErrOutOfResources) {
		t.Error("short map:", err)
	}
	if x.mem.Live() != live {
		t.Error("mappings leaked:", x.mem)
	}
	if got := d.TxAvailable(); got != 7 {
		t.Errorf("available: got %d want 7", got)
	}
	if got := x.owned_tx(); got != 0 {
		t.Errorf("owned: got %d want 0", got)
	}
}

func TestTxCapacity(t *testing.T) {
	x := started(t, test_config(8, 4))
	d := x.d
	cpu, _ := x.alloc(4096)
	rng := rand.New(rand.NewSource(1))
	capacity := d.TxRingLength() - 1

	type frame struct {
		addr  uint64
		descs uint
	}
	var (
		queued    []frame
		completed int
		in_flight uint
	)
	for step := 0; step < 5000; step++ {
		switch rng.Intn(3) {
		case 0:
			n := 1 + rng.Intn(3)
			frags := make([]Fragment, n)
			for i := range frags {
				frags[i] = Fragment{cpu + uint64(rng.Intn(2048)), uint(1 + rng.Intn(512))}
			}
			err := d.Transmit(frags...)
			fits := in_flight+uint(n) <= capacity
			if fits != (err == nil) {
				t.Fatalf("step %d: %d in flight, %d fragments: %v", step, in_flight, n, err)
			}
			if err == nil {
				queued = append(queued, frame{frags[0].Addr, uint(n)})
				in_flight += uint(n)
			} else if !errors.Is(err, ErrQueueFull) {
				t.Fatal(err)
			}
		case 1:
			x.sim.Step()
			completed = len(queued)
		case 2:
			limit := rng.Intn(3)
			got := d.Reclaim(limit)
			want := limit
			if completed < want {
				want = completed
			}
			if len(got) != want {
				t.Fatalf("step %d: reclaimed %d want %d", step, len(got), want)
			}
			for i, a := range got {
				if a != queued[i].addr {
					t.Fatalf("step %d: reclaim %d got %x want %x", step, i, a, queued[i].addr)
				}
				in_flight -= queued[i].descs
			}
			queued = queued[len(got):]
			completed -= len(got)
		}
		if got := d.TxAvailable(); got != capacity-in_flight {
			t.Fatalf("step %d: available %d want %d", step, got, capacity-in_flight)
		}
	}
}

// Every descriptor must be complete when hardware can see it, and a
// frame's head must be handed over last.
func TestTxOwnershipOrder(t *testing.T) {
	x := started(t, test_config(8, 4))
	d := x.d
	cpu, _ := x.alloc(4096)
	rng := rand.New(rand.NewSource(2))

	prev := make([]bool, d.TxRingLength())
	var order []uint
	d.SetBarrier(func() {
		for i := range d.tx.desc {
			e := &d.tx.desc[i]
			own := e.is_owned_by_hw()
			if own && !prev[i] {
				order = append(order, uint(i))
			}
			if own && (e.des0 == 0 || e.des2&tx_desc2_buffer_len == 0 || e.des3&tx_desc3_frame_len == 0) {
				t.Errorf("slot %d owned before filled: %v", i, e)
			}
			prev[i] = own
		}
	})

	for iter := 0; iter < 300; iter++ {
		n := uint(1 + rng.Intn(3))
		frags := make([]Fragment, n)
		var total uint
		for i := range frags {
			frags[i] = Fragment{cpu + uint64(rng.Intn(2048)), uint(1 + rng.Intn(512))}
			total += frags[i].Len
		}
		for i := range d.tx.desc {
			prev[i] = d.tx.desc[i].is_owned_by_hw()
		}
		order = order[:0]
		head := d.tx.tail_index
		if err := d.Transmit(frags...); err != nil {
			t.Fatal(iter, err)
		}
		slot := func(i uint) uint { return (head + i) % d.tx.len }
		var want []uint
		for i := n - 1; i >= 1; i-- {
			want = append(want, slot(i))
		}
		want = append(want, head)
		if len(order) != len(want) {
			t.Fatalf("iter %d: ownership order %v want %v", iter, order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("iter %d: ownership order %v want %v", iter, order, want)
			}
		}
		for i := uint(0); i < n; i++ {
			e := &d.tx.desc[slot(i)]
			first, last := i == 0, i == n-1
			if (e.des3&desc_fd != 0) != first || (e.des3&desc_ld != 0) != last ||
				(e.des2&tx_desc2_ioc != 0) != last || uint(e.des3&tx_desc3_frame_len) != total ||
				uint(e.des2&tx_desc2_buffer_len) != frags[i].Len || e.des0 != phys(frags[i].Addr) {
				t.Fatalf("iter %d fragment %d: %v", iter, i, e)
			}
		}
		if got, want := x.sim.Peek(dma_ch0_txdesc_tail_pointer), d.tx.desc_phys(slot(n)); got != want {
			t.Fatalf("iter %d: tail 0x%x want 0x%x", iter, got, want)
		}
		x.sim.Step()
		if got := d.Reclaim(1); len(got) != 1 || got[0] != frags[0].Addr {
			t.Fatalf("iter %d: reclaim %x want [%x]", iter, got, frags[0].Addr)
		}
	}
}

func TestTxRoundTrip(t *testing.T) {
	x := started(t, test_config(8, 4))
	d := x.d
	cpu, b := x.alloc(1024)
	f := test_frame(Broadcast, test_addr, 0x0806, 300)
	copy(b, f[:100])
	copy(b[200:], f[100:250])
	copy(b[500:], f[250:])
	live := x.mem.Live()

	err := d.Transmit(Fragment{cpu, 100}, Fragment{cpu + 200, 150}, Fragment{cpu + 500, 50})
	if err != nil {
		t.Fatal(err)
	}
	if n := x.sim.Step(); n != 1 {
		t.Fatalf("step: got %d frames want 1", n)
	}
	if len(x.sim.Sent) != 1 || !bytes.Equal(x.sim.Sent[0], f) {
		t.Fatalf("sent: got %x\nwant %x", x.sim.Sent, f)
	}
	if got := d.Reclaim(4); len(got) != 1 || got[0] != cpu {
		t.Errorf("reclaim: got %x want [%x]", got, cpu)
	}
	if got := d.Reclaim(4); len(got) != 0 {
		t.Errorf("second reclaim: %x", got)
	}
	if x.mem.Live() != live {
		t.Error("fragments still mapped:", x.mem)
	}
	s := d.Counters.Stats()
	if s.TxTotal != 1 || s.TxGood != 1 || s.TxDropped != 0 {
		t.Errorf("stats: %+v", s)
	}
	if got := d.Counters.get(tx_bytes); got != 300 {
		t.Errorf("bytes: got %d want 300", got)
	}
}

func TestTxCompletionError(t *testing.T) {
	x := started(t, test_config(8, 4))
	d := x.d
	x.sim.TxError = true
	cpu, _ := x.alloc(64)
	if err := d.Transmit(Fragment{cpu, 64}); err != nil {
		t.Fatal(err)
	}
	x.sim.Step()
	if got := d.Reclaim(1); len(got) != 1 {
		t.Errorf("reclaim: got %x", got)
	}
	if got := d.Counters.get(tx_errors); got != 1 {
		t.Errorf("errors: got %d want 1", got)
	}
}

func TestTxReclaimUnbound(t *testing.T) {
	x := started(t, test_config(8, 4))
	d := x.d
	cpu, _ := x.alloc(64)
	if err := d.Transmit(Fragment{cpu, 64}); err != nil {
		t.Fatal(err)
	}
	x.sim.Step()
	m := d.tx.mappings[0]
	d.tx.mappings[0] = dma.Mapping{}
	if got := d.Reclaim(1); len(got) != 0 {
		t.Errorf("reclaimed unbound slot: %x", got)
	}
	if got := d.Counters.get(tx_reclaim_errors); got != 1 {
		t.Errorf("reclaim errors: got %d want 1", got)
	}
	if d.tx.head_index != 0 {
		t.Errorf("head moved past unbound slot: %d", d.tx.head_index)
	}
	d.tx.mappings[0] = m
	if got := d.Reclaim(1); len(got) != 1 || got[0] != cpu {
		t.Errorf("reclaim: got %x want [%x]", got, cpu)
	}
}
