// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Mmio is a Bus over a memory mapped resource file such as
// /sys/bus/pci/devices/0000:00:1e.4/resource0.
type Mmio struct {
	Path string
	fd   int
	mem  []byte
}

func OpenMmio(path string, size int) (*Mmio, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Mmio{Path: path, fd: fd, mem: mem}, nil
}

func (m *Mmio) addr(o uint) *uint32 {
	if o+4 > uint(len(m.mem)) || o%4 != 0 {
		panic(fmt.Errorf("%s: register offset 0x%x out of range", m.Path, o))
	}
	return (*uint32)(unsafe.Pointer(&m.mem[o]))
}

func (m *Mmio) LoadUint32(o uint) uint32     { return atomic.LoadUint32(m.addr(o)) }
func (m *Mmio) StoreUint32(o uint, v uint32) { atomic.StoreUint32(m.addr(o), v) }

func (m *Mmio) Close() error {
	err := unix.Munmap(m.mem)
	if cerr := unix.Close(m.fd); err == nil {
		err = cerr
	}
	m.mem = nil
	return err
}
