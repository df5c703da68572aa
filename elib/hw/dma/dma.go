// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dma manages memory shared between software and a device's
// bus master engine.
package dma

import (
	"errors"
	"fmt"
)

const (
	PageSize      = 4096
	log2_pagesize = 12
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfResources  = errors.New("out of resources")
)

type Operation int

const (
	BusMasterRead Operation = iota
	BusMasterWrite
	CommonBuffer
)

var operation_names = [...]string{
	BusMasterRead:  "bus-master-read",
	BusMasterWrite: "bus-master-write",
	CommonBuffer:   "common-buffer",
}

func (o Operation) String() string {
	if int(o) < len(operation_names) {
		return operation_names[o]
	}
	return fmt.Sprintf("operation-%d", int(o))
}

// Platform is the host's memory and IOMMU service.
type Platform interface {
	// AllocatePages returns n page aligned pages of CPU addressable memory.
	AllocatePages(n uint) (cpu uint64, err error)
	FreePages(cpu uint64, n uint) error
	// Map makes [cpu, cpu+size) visible to the device.  The mapped
	// length may be shorter than size.
	Map(op Operation, cpu uint64, size uint) (phys uint64, mapped uint, handle uint64, err error)
	Unmap(handle uint64) error
	// Bytes returns the CPU view of [cpu, cpu+n).
	Bytes(cpu uint64, n uint) []byte
}

// Mapping is either fully unbound (zero value) or fully bound.
type Mapping struct {
	Unmapped uint64
	Physical uint64
	Size     uint
	Handle   uint64
	pages    uint
}

func (m *Mapping) IsZero() bool {
	return m.Unmapped == 0 && m.Physical == 0 && m.Size == 0 && m.Handle == 0
}

func (m *Mapping) IsBound() bool {
	return m.Unmapped != 0 && m.Physical != 0 && m.Size != 0 && m.Handle != 0
}

func (m *Mapping) String() string {
	if m.IsZero() {
		return "unbound"
	}
	return fmt.Sprintf("cpu 0x%x phys 0x%x size %d handle %d",
		m.Unmapped, m.Physical, m.Size, m.Handle)
}

func BytesToPages(n uint) uint { return (n + PageSize - 1) >> log2_pagesize }

type Manager struct {
	Platform
}

func NewManager(p Platform) *Manager { return &Manager{Platform: p} }

// AllocateAndMap allocates page rounded memory and maps it for common
// buffer use.  A short mapping is unwound and reported as out of resources.
func (d *Manager) AllocateAndMap(size uint) (m Mapping, err error) {
	if d == nil || d.Platform == nil || size == 0 {
		err = ErrInvalidArgument
		return
	}
	npages := BytesToPages(size)
	cpu, err := d.AllocatePages(npages)
	if err != nil {
		err = fmt.Errorf("allocate %d pages: %w", npages, ErrOutOfResources)
		return
	}
	// map whole pages: rings and buffer pools share the tail
	want := npages * PageSize
	phys, mapped, handle, err := d.Map(CommonBuffer, cpu, want)
	if err != nil {
		d.FreePages(cpu, npages)
		err = fmt.Errorf("map 0x%x: %w", cpu, ErrOutOfResources)
		return
	}
	if mapped != want {
		d.Platform.Unmap(handle)
		d.FreePages(cpu, npages)
		err = fmt.Errorf("map 0x%x: mapped %d of %d bytes: %w",
			cpu, mapped, want, ErrOutOfResources)
		return
	}
	m = Mapping{
		Unmapped: cpu,
		Physical: phys,
		Size:     size,
		Handle:   handle,
		pages:    npages,
	}
	return
}

// MapReadOnly maps the m.Size bytes at m.Unmapped for device reads.
func (d *Manager) MapReadOnly(m *Mapping) error {
	if d == nil || d.Platform == nil || m == nil ||
		m.Unmapped == 0 || m.Size == 0 || m.Physical != 0 || m.Handle != 0 {
		return ErrInvalidArgument
	}
	phys, mapped, handle, err := d.Map(BusMasterRead, m.Unmapped, m.Size)
	if err != nil {
		return fmt.Errorf("map 0x%x: %w", m.Unmapped, ErrOutOfResources)
	}
	if mapped != m.Size {
		d.Platform.Unmap(handle)
		return fmt.Errorf("map 0x%x: mapped %d of %d bytes: %w",
			m.Unmapped, mapped, m.Size, ErrOutOfResources)
	}
	m.Physical, m.Handle = phys, handle
	return nil
}

// Unmap tears down the device view of m and clears it, leaving the
// memory itself to the caller.
func (d *Manager) Unmap(m *Mapping) error {
	if d == nil || d.Platform == nil || m == nil || !m.IsBound() {
		return ErrInvalidArgument
	}
	if err := d.Platform.Unmap(m.Handle); err != nil {
		return fmt.Errorf("unmap %d: %w", m.Handle, ErrInvalidArgument)
	}
	*m = Mapping{}
	return nil
}

// Free unmaps and releases memory from AllocateAndMap.
func (d *Manager) Free(m *Mapping) error {
	if d == nil || d.Platform == nil || m == nil || !m.IsBound() || m.pages == 0 {
		return ErrInvalidArgument
	}
	cpu, npages := m.Unmapped, m.pages
	if err := d.Unmap(m); err != nil {
		return err
	}
	return d.FreePages(cpu, npages)
}

// Bytes is the CPU view of a bound mapping.
func (d *Manager) Bytes(m *Mapping) []byte {
	if !m.IsBound() {
		return nil
	}
	return d.Platform.Bytes(m.Unmapped, m.Size)
}
