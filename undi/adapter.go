// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package undi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/undi/elib/hw/dma"
	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
	uuid "github.com/satori/go.uuid"
)

// Adapter is the command level state of one controller.
type Adapter struct {
	dev *intelgbe.Dev
	dma *dma.Manager

	Instance uuid.UUID
	// PCI location reported by GetConfigInfo.
	Bus      uint16
	Device   uint8
	Function uint8

	State StatFlags
	// Set while diagnostics own the hardware.
	DriverBusy bool
	// Cleared when the interface is disabled by configuration.
	UndiEnabled bool
	Verbose     bool

	CableDetect     bool
	LinkSpeed       uint32
	DuplexMode      uint8
	LoopbackMode    uint8
	MacAddrOverride bool
	InterruptMask   OpFlags

	// Autonegotiation wait during Initialize.
	LinkPoll  time.Duration
	LinkTries int

	block     func(acquire bool)
	unique_id uint64
}

// NewAdapter wraps a controller whose rings are allocated.
func NewAdapter(d *intelgbe.Dev, m *dma.Manager) *Adapter {
	return &Adapter{
		dev:         d,
		dma:         m,
		Instance:    uuid.NewV4(),
		State:       StateStopped,
		UndiEnabled: true,
		LinkPoll:    100 * time.Millisecond,
		LinkTries:   55,
	}
}

func (a *Adapter) Dev() *intelgbe.Dev { return a.dev }

func (a *Adapter) String() string {
	return fmt.Sprintf("%s %v", a.Instance.String()[:8], a.dev)
}

// acquire takes the caller's Block lock when provided and global otherwise.
func (a *Adapter) acquire(global *sync.Mutex) (unlock func()) {
	if b := a.block; b != nil {
		b(true)
		return func() { b(false) }
	}
	global.Lock()
	return global.Unlock
}

var errBadAddress = errors.New("bad host address")

// host returns the CPU view of caller memory.
func (a *Adapter) host(cpu uint64, n uint) (b []byte, err error) {
	if cpu == 0 {
		return nil, errBadAddress
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("0x%x+%d: %v: %w", cpu, n, r, errBadAddress)
		}
	}()
	b = a.dma.Platform.Bytes(cpu, n)
	if uint(len(b)) < n {
		err = fmt.Errorf("0x%x+%d: %w", cpu, n, errBadAddress)
	}
	return
}

// statcode classifies driver errors.
func statcode(err error) StatCode {
	switch {
	case err == nil:
		return StatSuccess
	case errors.Is(err, intelgbe.ErrBusy):
		return StatBusy
	case errors.Is(err, intelgbe.ErrQueueFull):
		return StatQueueFull
	case errors.Is(err, intelgbe.ErrNoData):
		return StatNoData
	case errors.Is(err, intelgbe.ErrUnsupported):
		return StatUnsupported
	case errors.Is(err, dma.ErrOutOfResources):
		return StatNotEnoughMemory
	case errors.Is(err, dma.ErrInvalidArgument), errors.Is(err, errBadAddress):
		return StatInvalidParameter
	}
	// Timeouts and hardware faults.
	return StatDeviceFailure
}
