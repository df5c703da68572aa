// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package undi

import (
	"fmt"
	"net"
	"time"

	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
	uuid "github.com/satori/go.uuid"
)

// Cdb is a command descriptor block.
type Cdb struct {
	OpCode  OpCode
	OpFlags OpFlags
	CPBsize uint16
	DBsize  uint16
	// Command parameter and data blocks; nil when not used.
	CPB interface{}
	DB  interface{}

	StatCode  StatCode
	StatFlags StatFlags
	IFnum     uint16
	Control   uint16
}

// Block sizes are those of the corresponding wire structures.
type sizer interface {
	Size() uint16
}

func block_size(b interface{}) uint16 {
	if s, ok := b.(sizer); ok {
		return s.Size()
	}
	return NotUsed
}

// NewCdb returns a command block with sizes taken from cpb and db
// and status fields set to their initial values.
func NewCdb(ifnum uint16, op OpCode, flags OpFlags, cpb, db interface{}) *Cdb {
	return &Cdb{
		OpCode:    op,
		OpFlags:   flags,
		CPB:       cpb,
		CPBsize:   block_size(cpb),
		DB:        db,
		DBsize:    block_size(db),
		IFnum:     ifnum,
		StatCode:  StatCodeInitialize,
		StatFlags: StatFlagsInitialize,
	}
}

func (c *Cdb) String() string {
	return fmt.Sprintf("if %d %v flags 0x%04x cpb %d db %d: %v %v",
		c.IFnum, c.OpCode, uint16(c.OpFlags), c.CPBsize, c.DBsize, c.StatCode, c.StatFlags)
}

func (c *Cdb) fail(code StatCode) {
	c.StatFlags = StatFlagsCommandFailed
	c.StatCode = code
}

func (c *Cdb) Failed() bool {
	return c.StatFlags&StatFlagsStatusMask == StatFlagsCommandFailed
}

type CpbStart struct {
	// Revision 0x30 blocks lack UniqueId.
	Revision uint8
	Delay    func(time.Duration)
	// Block(true) acquires and Block(false) releases the
	// caller's lock around hardware access.
	Block    func(acquire bool)
	UniqueId uint64
}

func (c *CpbStart) Size() uint16 {
	if c.Revision == 0x30 {
		return CpbStart30Size
	}
	return CpbStart31Size
}

type DbGetInitInfo struct {
	MemoryRequired         uint32
	FrameDataLen           uint32
	LinkSpeeds             [4]uint32
	NvCount                uint32
	NvWidth                uint16
	MediaHeaderLen         uint16
	HwAddrLen              uint16
	McastFilterCnt         uint16
	TxBufCnt               uint16
	TxBufSize              uint16
	RxBufCnt               uint16
	RxBufSize              uint16
	IfType                 uint8
	SupportedDuplexModes   uint8
	SupportedLoopbackModes uint8
}

func (*DbGetInitInfo) Size() uint16 { return DbGetInitInfoSize }

type DbGetConfigInfo struct {
	BusType  uint32
	Bus      uint16
	Device   uint8
	Function uint8
	DeviceId intelgbe.DeviceID
	Phy      string
	Instance uuid.UUID
}

func (*DbGetConfigInfo) Size() uint16 { return DbGetConfigInfoSize }

type CpbInitialize struct {
	MemoryAddr   uint64
	MemoryLength uint32
	// Mbps; 0 autonegotiates.
	LinkSpeed    uint32
	TxBufCnt     uint16
	TxBufSize    uint16
	RxBufCnt     uint16
	RxBufSize    uint16
	DuplexMode   uint8
	LoopbackMode uint8
}

func (*CpbInitialize) Size() uint16 { return CpbInitializeSize }

type DbInitialize struct {
	MemoryUsed uint32
	TxBufCnt   uint16
	TxBufSize  uint16
	RxBufCnt   uint16
	RxBufSize  uint16
}

func (*DbInitialize) Size() uint16 { return DbInitializeSize }

type CpbStationAddress struct {
	StationAddr [MacLength]byte
}

func (*CpbStationAddress) Size() uint16 { return CpbStationAddrSize }

type DbStationAddress struct {
	StationAddr   [MacLength]byte
	BroadcastAddr [MacLength]byte
	PermanentAddr [MacLength]byte
}

func (*DbStationAddress) Size() uint16 { return DbStationAddrSize }

type DbStatistics struct {
	// Bit i set when Data[i] is maintained.
	Supported uint64
	Data      [64]uint64
}

func (*DbStatistics) Size() uint16 { return DbStatisticsSize }

type CpbMcastIpToMac struct {
	IP net.IP
}

func (*CpbMcastIpToMac) Size() uint16 { return CpbMcastIpToMacSize }

type DbMcastIpToMac struct {
	Mac [MacLength]byte
}

func (*DbMcastIpToMac) Size() uint16 { return DbMcastIpToMacSize }

// DbGetStatus returns completed transmit buffers in TxBuffer, which
// the caller sizes to the number of entries it can accept.
type DbGetStatus struct {
	RxFrameLen uint32
	TxBuffer   []uint64
}

func (d *DbGetStatus) Size() uint16 {
	return uint16(DbGetStatusHeader + 8*len(d.TxBuffer))
}

type FragDesc struct {
	Addr uint64
	Len  uint32
}

type CpbFillHeader struct {
	SrcAddr        [MacLength]byte
	DestAddr       [MacLength]byte
	MediaHeader    uint64
	PacketLen      uint32
	Protocol       uint16
	MediaHeaderLen uint16
}

func (*CpbFillHeader) Size() uint16 { return CpbFillHeaderSize }

type CpbFillHeaderFragmented struct {
	SrcAddr        [MacLength]byte
	DestAddr       [MacLength]byte
	PacketLen      uint32
	Protocol       uint16
	MediaHeaderLen uint16
	Frags          []FragDesc
}

func (c *CpbFillHeaderFragmented) Size() uint16 {
	return uint16(2*MacLength + cpb_fragmented_fixed + 4 + fragment_desc_size*len(c.Frags))
}

type CpbTransmit struct {
	FrameAddr      uint64
	DataLen        uint32
	MediaHeaderLen uint16
}

func (*CpbTransmit) Size() uint16 { return CpbTransmitSize }

type CpbTransmitFragments struct {
	FrameLen       uint32
	MediaHeaderLen uint16
	Frags          []FragDesc
}

func (c *CpbTransmitFragments) Size() uint16 {
	return uint16(cpb_fragmented_fixed + fragment_desc_size*len(c.Frags))
}

type CpbReceive struct {
	BufferAddr uint64
	BufferLen  uint32
}

func (*CpbReceive) Size() uint16 { return CpbReceiveSize }

type DbReceive struct {
	SrcAddr        [MacLength]byte
	DestAddr       [MacLength]byte
	FrameLen       uint32
	Protocol       uint16
	MediaHeaderLen uint16
	Type           intelgbe.FrameType
}

func (*DbReceive) Size() uint16 { return DbReceiveSize }

// MacAddr pads a hardware address to MacLength bytes.
func MacAddr(a intelgbe.Address) (m [MacLength]byte) {
	copy(m[:], a[:])
	return
}

// EtherAddr extracts the ethernet address from a padded field.
func EtherAddr(m [MacLength]byte) (a intelgbe.Address) {
	copy(a[:], m[:])
	return
}
