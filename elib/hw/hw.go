// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memory mapped register read/write
package hw

import (
	"fmt"
	"sync/atomic"
)

// A Bus is a window of 32 bit device registers addressed by byte offset.
// Mmio implements it over a mapped PCI BAR; simulators implement it in memory.
type Bus interface {
	LoadUint32(offset uint) uint32
	StoreUint32(offset uint, v uint32)
}

var barrier uint32

// MemoryBarrier orders all prior memory writes before any later ones.
// The atomic read-modify-write is a full fence on every supported arch.
func MemoryBarrier() { atomic.AddUint32(&barrier, 1) }

func CheckRegAddr(name string, got, want uint) {
	if got != want {
		panic(fmt.Errorf("%s got 0x%x != want 0x%x", name, got, want))
	}
}

// Reg32 is the byte offset of a 32 bit register.
type Reg32 uint

func (r Reg32) Offset() uint { return uint(r) }

func (r Reg32) Get(b Bus) uint32 {
	MemoryBarrier()
	v := b.LoadUint32(uint(r))
	MemoryBarrier()
	return v
}

func (r Reg32) Set(b Bus, v uint32) {
	MemoryBarrier()
	b.StoreUint32(uint(r), v)
	MemoryBarrier()
}

func (r Reg32) Or(b Bus, v uint32)     { r.Set(b, r.Get(b)|v) }
func (r Reg32) AndNot(b Bus, v uint32) { r.Set(b, r.Get(b)&^v) }

// Modify clears then sets bits.
func (r Reg32) Modify(b Bus, clear, set uint32) { r.Set(b, r.Get(b)&^clear|set) }

// Stride returns register r for instance i of a block repeated every stride bytes.
func (r Reg32) Stride(i, stride uint) Reg32 { return r + Reg32(i*stride) }

func (r Reg32) String() string { return fmt.Sprintf("0x%04x", uint(r)) }

// Regs is a sparse in-memory Bus.
type Regs map[uint]uint32

func (m Regs) LoadUint32(o uint) uint32     { return m[o] }
func (m Regs) StoreUint32(o uint, v uint32) { m[o] = v }
