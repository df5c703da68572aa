// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/log"
	"github.com/platinasystems/undi/elib/hw"
	"github.com/platinasystems/undi/elib/hw/dma"
)

var (
	ErrBusy          = errors.New("busy")
	ErrHardwareFault = errors.New("hardware fault")
	ErrQueueFull     = errors.New("transmit queue full")
	ErrNoData        = errors.New("no data")
	ErrNoPhy         = errors.New("no phy found")
	ErrUnsupported   = errors.New("unsupported")
)

type Config struct {
	TxRingLen uint
	RxRingLen uint
	// Bytes per receive buffer.
	RxBufferSize uint
	// Receive buffer size programmed into the dma channel.
	DmaBufferSize uint
	// DMA channel serving the receive queue.
	RxChannel uint
	// MDIO clock range field.
	CsrClock uint32
	Verbose  bool
	// Sleep replaces time.Sleep for polls and settle delays.
	Sleep func(time.Duration)
}

func DefaultConfig() Config {
	return Config{
		TxRingLen:     512,
		RxRingLen:     512,
		RxBufferSize:  2048,
		DmaBufferSize: 1536,
		RxChannel:     1,
		CsrClock:      mac_mdio_cr_250_300,
	}
}

type Address [6]byte

var Broadcast = Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (a Address) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

func (a Address) IsMulticast() bool { return a[0]&1 != 0 }

type Dev struct {
	Config

	bus hw.Bus
	dma *dma.Manager

	id   DeviceID
	info device_info

	// MAC IP version.
	Version uint32

	PermAddr Address
	Addr     Address

	speed_2500 bool

	phy  phy_info
	link Link

	tx tx_dma_queue
	rx rx_dma_queue

	HwInitialized  bool
	ReceiveStarted bool
	AllMulticast   bool

	Counters Counters
}

func New(bus hw.Bus, m *dma.Manager, id DeviceID, c Config) (d *Dev, err error) {
	info, ok := devices[id]
	if !ok {
		return nil, fmt.Errorf("device %v: %w", id, ErrUnsupported)
	}
	if c.TxRingLen < 2 || c.RxRingLen < 2 || c.RxBufferSize < c.DmaBufferSize {
		return nil, fmt.Errorf("config %+v: %w", c, ErrUnsupported)
	}
	d = &Dev{
		Config: c,
		bus:    bus,
		dma:    m,
		id:     id,
		info:   info,
		// MAC defaults until the phy reports otherwise.
		link: Link{Speed: 100, FullDuplex: true},
	}
	return
}

func (d *Dev) String() string { return fmt.Sprintf("%v %v", d.id, d.Addr) }

func (d *Dev) DeviceID() DeviceID      { return d.id }
func (d *Dev) Interface() PhyInterface { return d.info.iface }
func (d *Dev) Phy() string             { return d.phy.String() }
func (d *Dev) TxRingLength() uint      { return d.tx.len }
func (d *Dev) RxRingLength() uint      { return d.rx.len }
func (d *Dev) SetBarrier(f func())     { d.tx.barrier, d.rx.barrier = f, f }
func (d *Dev) poller(interval time.Duration, tries int) hw.Poller {
	return hw.Poller{Interval: interval, Max: interval, Tries: tries, Sleep: d.Sleep}
}

func (d *Dev) delay(t time.Duration) { d.poller(0, 0).Delay(t) }

// FirstTimeInit identifies MAC and PHY and brings the controller up.
// Rings must already be allocated.
func (d *Dev) FirstTimeInit() (err error) {
	if d.tx.desc == nil || d.rx.desc == nil {
		return fmt.Errorf("rings not allocated: %w", ErrUnsupported)
	}
	if err = d.probe_phy(); err != nil {
		return
	}
	if err = d.bind_phy(); err != nil {
		return
	}
	if d.Version = d.mac_version(); d.Version < mac_version_min {
		return fmt.Errorf("mac version 0x%02x: %w", d.Version, ErrUnsupported)
	}
	log.Print("info", d.id, "mac version", fmt.Sprintf("0x%02x", d.Version), "phy", &d.phy)
	d.read_addr()
	d.Addr = d.PermAddr

	if d.info.iface == SGMII {
		if err = d.sgmii_init(); err != nil {
			return
		}
	}
	if err = d.phy_init(); err != nil {
		return fmt.Errorf("phy init: %w", err)
	}
	if err = d.reset(); err != nil {
		return
	}
	d.write_addr()
	if err = d.init_hw(); err != nil {
		d.HwInitialized = false
		return
	}
	return
}

// Initialize brings up hardware unless already initialized and
// reloads the station address from the controller.
func (d *Dev) Initialize() (err error) {
	if !d.HwInitialized {
		err = d.init_hw()
	}
	d.read_addr()
	d.Addr = d.PermAddr
	return
}

// Reset re-runs hardware init, discarding ring contents.
func (d *Dev) Reset() (err error) {
	d.uninit()
	d.HwInitialized = false
	return d.init_hw()
}

func (d *Dev) Shutdown() {
	d.uninit()
	d.HwInitialized = false
	d.ReceiveStarted = false
	d.AllMulticast = false
	d.set_filter()
}

func (d *Dev) init_hw() (err error) {
	d.dma_init()
	d.mtl_init()
	d.mac_init()
	d.enable_interrupts()
	d.start()
	d.HwInitialized = true
	return
}
