// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dma

import (
	"fmt"
	"sync"
)

const (
	// CPU and device views of Physmem differ so address mixups show.
	PhysmemCpuBase  uint64 = 0x1000_0000
	PhysmemPhysBase uint64 = 0x8000_0000
)

// Physmem is an in-memory Platform: a fixed arena of pages with an
// identity-plus-offset IOMMU.
type Physmem struct {
	mu   sync.Mutex
	data []byte
	used []bool

	maps       map[uint64]physmemMap
	lastHandle uint64

	// ShortMap, if non-zero, truncates the next Map to this many bytes.
	ShortMap uint
	// FailAllocate fails page allocation.
	FailAllocate bool

	MapCount, UnmapCount int
}

type physmemMap struct {
	op   Operation
	cpu  uint64
	size uint
}

func NewPhysmem(npages uint) *Physmem {
	return &Physmem{
		data: make([]byte, npages*PageSize),
		used: make([]bool, npages),
		maps: make(map[uint64]physmemMap),
	}
}

func (p *Physmem) AllocatePages(n uint) (cpu uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n == 0 || p.FailAllocate {
		return 0, ErrOutOfResources
	}
	run := uint(0)
	for i := range p.used {
		if p.used[i] {
			run = 0
			continue
		}
		run++
		if run == n {
			first := uint(i) + 1 - n
			for j := first; j <= uint(i); j++ {
				p.used[j] = true
			}
			b := p.data[first*PageSize : (first+n)*PageSize]
			for j := range b {
				b[j] = 0
			}
			return PhysmemCpuBase + uint64(first)*PageSize, nil
		}
	}
	return 0, ErrOutOfResources
}

func (p *Physmem) page(cpu uint64) (uint, bool) {
	if cpu < PhysmemCpuBase || (cpu-PhysmemCpuBase)%PageSize != 0 {
		return 0, false
	}
	i := uint((cpu - PhysmemCpuBase) / PageSize)
	return i, i < uint(len(p.used))
}

func (p *Physmem) FreePages(cpu uint64, n uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	first, ok := p.page(cpu)
	if !ok || first+n > uint(len(p.used)) {
		return ErrInvalidArgument
	}
	for i := first; i < first+n; i++ {
		if !p.used[i] {
			return fmt.Errorf("page %d: double free: %w", i, ErrInvalidArgument)
		}
		p.used[i] = false
	}
	return nil
}

func (p *Physmem) inRange(cpu uint64, size uint) bool {
	return cpu >= PhysmemCpuBase &&
		cpu-PhysmemCpuBase+uint64(size) <= uint64(len(p.data))
}

func (p *Physmem) Map(op Operation, cpu uint64, size uint) (phys uint64, mapped uint, handle uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size == 0 || !p.inRange(cpu, size) {
		err = ErrInvalidArgument
		return
	}
	mapped = size
	if p.ShortMap != 0 && p.ShortMap < size {
		mapped = p.ShortMap
		p.ShortMap = 0
	}
	p.lastHandle++
	handle = p.lastHandle
	p.maps[handle] = physmemMap{op: op, cpu: cpu, size: mapped}
	p.MapCount++
	phys = cpu - PhysmemCpuBase + PhysmemPhysBase
	return
}

func (p *Physmem) Unmap(handle uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.maps[handle]; !ok {
		return ErrInvalidArgument
	}
	delete(p.maps, handle)
	p.UnmapCount++
	return nil
}

func (p *Physmem) Bytes(cpu uint64, n uint) []byte {
	if !p.inRange(cpu, n) {
		panic(fmt.Errorf("physmem: cpu 0x%x+%d out of range", cpu, n))
	}
	o := cpu - PhysmemCpuBase
	return p.data[o : o+uint64(n) : o+uint64(n)]
}

// PhysBytes is the device view of [phys, phys+n); the range must lie
// within a live mapping.
func (p *Physmem) PhysBytes(phys uint64, n uint) ([]byte, error) {
	if phys < PhysmemPhysBase {
		return nil, ErrInvalidArgument
	}
	cpu := phys - PhysmemPhysBase + PhysmemCpuBase
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.maps {
		if cpu >= m.cpu && cpu+uint64(n) <= m.cpu+uint64(m.size) {
			o := cpu - PhysmemCpuBase
			return p.data[o : o+uint64(n) : o+uint64(n)], nil
		}
	}
	return nil, fmt.Errorf("phys 0x%x+%d not mapped: %w", phys, n, ErrInvalidArgument)
}

// Live returns the number of outstanding mappings.
func (p *Physmem) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.maps)
}

// Alloc returns a zeroed buffer of n bytes for use as caller memory.
func (p *Physmem) Alloc(n uint) (uint64, []byte, error) {
	cpu, err := p.AllocatePages(BytesToPages(n))
	if err != nil {
		return 0, nil, err
	}
	return cpu, p.Bytes(cpu, n), nil
}

func (p *Physmem) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	used := 0
	for _, u := range p.used {
		if u {
			used++
		}
	}
	return fmt.Sprintf("%d/%d pages used, %d mappings", used, len(p.used), len(p.maps))
}
