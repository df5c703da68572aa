// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package undi

import (
	"encoding/binary"
	"net"

	"github.com/platinasystems/log"
	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
)

const (
	frame_data_len  = 1500
	descriptor_size = 16
)

// busy fails c while diagnostics own the hardware.
func (a *Adapter) busy(c *Cdb) bool {
	if a.DriverBusy {
		log.Print("err", a, c.OpCode, "called while driver busy")
		c.fail(StatBusy)
	}
	return a.DriverBusy
}

func (a *Adapter) get_state(c *Cdb) {
	c.StatFlags |= a.State
}

func (a *Adapter) start(c *Cdb) {
	if a.State != StateStopped {
		return
	}
	cpb, ok := c.CPB.(*CpbStart)
	if !ok || (c.CPBsize != CpbStart30Size && c.CPBsize != CpbStart31Size) {
		c.fail(StatInvalidCdb)
		return
	}
	if cpb.Delay != nil {
		a.dev.Sleep = cpb.Delay
	}
	a.block = cpb.Block
	if c.CPBsize == CpbStart31Size {
		a.unique_id = cpb.UniqueId
	}
	a.State = StateStarted
}

func (a *Adapter) stop(c *Cdb) {
	if a.State == StateInitialized {
		c.fail(StatNotShutdown)
		return
	}
	a.block = nil
	a.State = StateStopped
}

func (a *Adapter) get_init_info(c *Cdb) {
	if !a.UndiEnabled {
		c.fail(StatBusy)
		return
	}
	db, ok := c.DB.(*DbGetInitInfo)
	if !ok {
		c.fail(StatInvalidCdb)
		return
	}
	d := a.dev
	*db = DbGetInitInfo{
		FrameDataLen:         frame_data_len,
		LinkSpeeds:           [4]uint32{10, 100, 1000, 0},
		NvWidth:              4,
		MediaHeaderLen:       MacHeaderLen,
		HwAddrLen:            HwAddrLen,
		TxBufCnt:             uint16(d.TxRingLength()),
		TxBufSize:            descriptor_size,
		RxBufCnt:             uint16(d.RxRingLength()),
		RxBufSize:            uint16(descriptor_size + d.RxBufferSize),
		IfType:               IfTypeEthernet,
		SupportedDuplexModes: DuplexEnableFullSupported | DuplexForceFullSupported,
	}
	c.StatFlags |= StatFlagsCableDetectSupported | StatFlagsGetStatusNoMediaSupported
}

func (a *Adapter) get_config_info(c *Cdb) {
	db, ok := c.DB.(*DbGetConfigInfo)
	if !ok {
		c.fail(StatInvalidCdb)
		return
	}
	*db = DbGetConfigInfo{
		BusType:  BusTypePci,
		Bus:      a.Bus,
		Device:   a.Device,
		Function: a.Function,
		DeviceId: a.dev.DeviceID(),
		Phy:      a.dev.Phy(),
		Instance: a.Instance,
	}
}

func (a *Adapter) initialize(c *Cdb) {
	if a.busy(c) {
		return
	}
	if c.OpFlags != OpFlagsInitializeDetectCable &&
		c.OpFlags != OpFlagsInitializeDoNotDetectCable {
		c.fail(StatInvalidCdb)
		return
	}
	if a.State == StateInitialized {
		return
	}
	cpb, ok := c.CPB.(*CpbInitialize)
	if !ok {
		c.fail(StatInvalidCdb)
		return
	}
	a.CableDetect = c.OpFlags == OpFlagsInitializeDetectCable
	a.LinkSpeed = cpb.LinkSpeed
	a.DuplexMode = cpb.DuplexMode
	a.LoopbackMode = cpb.LoopbackMode

	d := a.dev
	perm, addr := d.PermAddr, d.Addr
	err := d.Initialize()
	if a.MacAddrOverride {
		d.PermAddr = perm
		d.SetAddr(addr)
	}
	if db, ok := c.DB.(*DbInitialize); ok {
		*db = DbInitialize{
			TxBufCnt:  uint16(d.TxRingLength()),
			TxBufSize: descriptor_size,
			RxBufCnt:  uint16(d.RxRingLength()),
			RxBufSize: uint16(descriptor_size + d.RxBufferSize),
		}
	}
	if err != nil {
		log.Print("err", a, "initialize:", err)
		c.fail(statcode(err))
		return
	}
	a.State = StateInitialized
	if a.CableDetect && !d.WaitForLink(a.LinkPoll, a.LinkTries) {
		log.Print("warning", a, "no link")
		c.StatFlags |= StatFlagsInitializedNoMedia
	}
}

func (a *Adapter) reset(c *Cdb) {
	if a.busy(c) {
		return
	}
	d := a.dev
	all := d.AllMulticast
	if err := d.Reset(); err != nil {
		log.Print("err", a, "reset:", err)
		c.fail(statcode(err))
		return
	}
	if c.OpFlags&OpFlagsResetDisableInterrupts != 0 {
		a.InterruptMask = 0
	}
	switch {
	case c.OpFlags&OpFlagsResetDisableFilters != 0:
		d.SetReceive(false)
	case all:
		d.SetReceive(true)
	}
}

func (a *Adapter) shutdown(c *Cdb) {
	if a.busy(c) {
		return
	}
	a.dev.Shutdown()
	a.InterruptMask = 0
	a.State = StateStarted
}

const interrupt_sources = OpFlagsInterruptReceive | OpFlagsInterruptTxmit | OpFlagsInterruptCommand

func (a *Adapter) interrupt(c *Cdb) {
	sources := c.OpFlags &^ OpFlagsInterruptOpMask
	if sources&^interrupt_sources != 0 {
		c.fail(StatInvalidCdb)
		return
	}
	switch c.OpFlags & OpFlagsInterruptOpMask {
	case OpFlagsInterruptRead:
	case OpFlagsInterruptEnable:
		a.InterruptMask |= sources
	case OpFlagsInterruptDisable:
		a.InterruptMask &^= sources
	default:
		c.fail(StatInvalidCdb)
		return
	}
	c.StatFlags |= StatFlags(a.InterruptMask)
}

const filter_sources = OpFlagsFilterUnicast | OpFlagsFilterBroadcast |
	OpFlagsFilterFilteredMulticast | OpFlagsFilterPromiscuous | OpFlagsFilterAllMulticast

func (a *Adapter) receive_filters(c *Cdb) {
	if a.busy(c) {
		return
	}
	d := a.dev
	switch c.OpFlags & OpFlagsFilterOpMask {
	case OpFlagsFilterRead:
	case OpFlagsFilterEnable:
		d.SetReceive(true)
	case OpFlagsFilterDisable:
		if c.OpFlags&filter_sources != 0 {
			d.SetReceive(false)
		}
	default:
		c.fail(StatInvalidCdb)
		return
	}
	// Multicast is never filtered: the MAC passes all of it.
	if d.ReceiveStarted {
		c.StatFlags |= StatFlagsFilterUnicast | StatFlagsFilterBroadcast | StatFlagsFilterAllMulticast
	}
}

func (a *Adapter) station_address(c *Cdb) {
	if a.busy(c) {
		return
	}
	d := a.dev
	switch c.OpFlags {
	case OpFlagsStationAddressReset:
		d.SetAddr(d.PermAddr)
		a.MacAddrOverride = false
	case OpFlagsStationAddressWrite:
		if cpb, ok := c.CPB.(*CpbStationAddress); ok {
			addr := EtherAddr(cpb.StationAddr)
			if addr.IsMulticast() {
				c.fail(StatInvalidCpb)
				return
			}
			d.SetAddr(addr)
			a.MacAddrOverride = addr != d.PermAddr
		}
	default:
		c.fail(StatInvalidCdb)
		return
	}
	if db, ok := c.DB.(*DbStationAddress); ok {
		db.StationAddr = MacAddr(d.Addr)
		db.BroadcastAddr = MacAddr(intelgbe.Broadcast)
		db.PermanentAddr = MacAddr(d.PermAddr)
	}
}

// Counters maintained in DbStatistics.Data.
var statistics_supported = []int{
	StatRxTotalFrames,
	StatRxGoodFrames,
	StatRxUndersizeFrames,
	StatRxDroppedFrames,
	StatRxCrcErrorFrames,
	StatTxTotalFrames,
	StatTxGoodFrames,
	StatTxDroppedFrames,
}

func (a *Adapter) statistics(c *Cdb) {
	if c.OpFlags&^OpFlagsStatisticsReset != 0 {
		c.fail(StatInvalidCdb)
		return
	}
	db, ok := c.DB.(*DbStatistics)
	if ok {
		s := a.dev.Counters.Stats()
		*db = DbStatistics{}
		db.Data[StatRxTotalFrames] = s.RxTotal
		db.Data[StatRxGoodFrames] = s.RxGood
		db.Data[StatRxUndersizeFrames] = s.RxUndersize
		db.Data[StatRxDroppedFrames] = s.RxDropped
		db.Data[StatRxCrcErrorFrames] = s.RxCrcErrors
		db.Data[StatTxTotalFrames] = s.TxTotal
		db.Data[StatTxGoodFrames] = s.TxGood
		db.Data[StatTxDroppedFrames] = s.TxDropped
		for _, i := range statistics_supported {
			db.Supported |= 1 << uint(i)
		}
	}
	if c.OpFlags&OpFlagsStatisticsReset != 0 {
		a.dev.Counters.Clear()
	} else if !ok {
		c.fail(StatInvalidCdb)
	}
}

// McastMac maps a multicast IP address to its ethernet group address.
func McastMac(ip net.IP, ipv6 bool) (m intelgbe.Address, ok bool) {
	if ipv6 {
		if len(ip) != net.IPv6len {
			return
		}
		m = intelgbe.Address{0x33, 0x33, ip[12], ip[13], ip[14], ip[15]}
		return m, true
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return
	}
	// Low 23 bits of the group.
	m = intelgbe.Address{0x01, 0x00, 0x5e, ip4[1] & 0x7f, ip4[2], ip4[3]}
	return m, true
}

func (a *Adapter) mcast_ip_to_mac(c *Cdb) {
	cpb, ok1 := c.CPB.(*CpbMcastIpToMac)
	db, ok2 := c.DB.(*DbMcastIpToMac)
	if !ok1 || !ok2 {
		c.fail(StatInvalidCdb)
		return
	}
	var ipv6 bool
	switch c.OpFlags {
	case OpFlagsMcastIpv4ToMac:
	case OpFlagsMcastIpv6ToMac:
		ipv6 = true
	default:
		c.fail(StatInvalidCdb)
		return
	}
	m, ok := McastMac(cpb.IP, ipv6)
	if !ok {
		c.fail(StatInvalidCpb)
		return
	}
	db.Mac = MacAddr(m)
}

func (a *Adapter) nvdata(c *Cdb) {
	c.fail(StatUnsupported)
}

func (a *Adapter) get_status(c *Cdb) {
	if a.busy(c) {
		return
	}
	// Room for the header and at least one transmit buffer.
	db, ok := c.DB.(*DbGetStatus)
	if !ok || c.DBsize < DbGetStatusHeader+8 {
		c.fail(StatInvalidCdb)
		if c.OpFlags&OpFlagsGetTransmittedBuffers != 0 {
			c.StatFlags |= StatFlagsNoTxBufsWritten
		}
		return
	}
	d := a.dev
	if c.OpFlags&OpFlagsGetTransmittedBuffers != 0 {
		n := int(c.DBsize-DbGetStatusHeader) / 8
		if n > len(db.TxBuffer) {
			n = len(db.TxBuffer)
		}
		done := d.Reclaim(n)
		db.TxBuffer = db.TxBuffer[:copy(db.TxBuffer, done)]
		if len(done) == 0 {
			c.StatFlags |= StatFlagsNoTxBufsWritten
		}
		if d.TxAvailable() == d.TxRingLength()-1 {
			c.StatFlags |= StatFlagsTxBufQueueEmpty
		}
		c.DBsize = uint16(DbGetStatusHeader + 8*len(db.TxBuffer))
	}
	if c.OpFlags&OpFlagsGetInterruptStatus != 0 {
		s := d.AckInterrupts()
		if s&intelgbe.InterruptTransmit != 0 {
			c.StatFlags |= StatFlagsTransmit
		}
		if s&intelgbe.InterruptReceive != 0 {
			c.StatFlags |= StatFlagsReceive
		}
	}
	if c.OpFlags&OpFlagsGetMediaStatus != 0 {
		up, err := d.LinkUp()
		if err != nil {
			log.Print("warning", a, "link status:", err)
		}
		if !up {
			c.StatFlags |= StatFlagsNoMedia
		}
	}
}

func (a *Adapter) write_header(at uint64, dst, src [MacLength]byte, protocol uint16) bool {
	h, err := a.host(at, MacHeaderLen)
	if err != nil {
		log.Print("err", a, "fill header:", err)
		return false
	}
	copy(h[0:6], dst[:HwAddrLen])
	copy(h[6:12], src[:HwAddrLen])
	binary.BigEndian.PutUint16(h[12:14], protocol)
	return true
}

func (a *Adapter) fill_header(c *Cdb) {
	var ok bool
	if c.OpFlags&OpFlagsFillHeaderFragmented != 0 {
		cpb, is := c.CPB.(*CpbFillHeaderFragmented)
		// The first fragment holds the whole header.
		if !is || len(cpb.Frags) == 0 || cpb.Frags[0].Len < MacHeaderLen {
			c.fail(StatInvalidCdb)
			return
		}
		ok = a.write_header(cpb.Frags[0].Addr, cpb.DestAddr, cpb.SrcAddr, cpb.Protocol)
	} else {
		cpb, is := c.CPB.(*CpbFillHeader)
		if !is {
			c.fail(StatInvalidCdb)
			return
		}
		ok = a.write_header(cpb.MediaHeader, cpb.DestAddr, cpb.SrcAddr, cpb.Protocol)
	}
	if !ok {
		c.fail(StatInvalidCpb)
	}
}

func (a *Adapter) transmit(c *Cdb) {
	if a.busy(c) {
		return
	}
	var frags []intelgbe.Fragment
	if c.OpFlags&OpFlagsTransmitFragmented != 0 {
		cpb, ok := c.CPB.(*CpbTransmitFragments)
		if !ok {
			c.fail(StatInvalidCdb)
			return
		}
		if len(cpb.Frags) == 0 || len(cpb.Frags) > MaxFragments {
			c.fail(StatInvalidCpb)
			return
		}
		for _, f := range cpb.Frags {
			frags = append(frags, intelgbe.Fragment{Addr: f.Addr, Len: uint(f.Len)})
		}
	} else {
		cpb, ok := c.CPB.(*CpbTransmit)
		if !ok {
			c.fail(StatInvalidCdb)
			return
		}
		frags = []intelgbe.Fragment{{
			Addr: cpb.FrameAddr,
			Len:  uint(cpb.DataLen) + uint(cpb.MediaHeaderLen),
		}}
	}
	if err := a.dev.Transmit(frags...); err != nil {
		if a.Verbose {
			log.Print("debug", a, "transmit:", err)
		}
		c.fail(statcode(err))
	}
}

func (a *Adapter) receive(c *Cdb) {
	if a.busy(c) {
		return
	}
	if !a.dev.ReceiveStarted {
		c.fail(StatNotInitialized)
		return
	}
	cpb, ok1 := c.CPB.(*CpbReceive)
	db, ok2 := c.DB.(*DbReceive)
	if !ok1 || !ok2 {
		c.fail(StatInvalidCdb)
		return
	}
	buf, err := a.host(cpb.BufferAddr, uint(cpb.BufferLen))
	if err != nil {
		c.fail(StatInvalidCpb)
		return
	}
	f, err := a.dev.Receive(buf)
	if err != nil {
		c.fail(statcode(err))
		return
	}
	*db = DbReceive{
		SrcAddr:        MacAddr(f.Src),
		DestAddr:       MacAddr(f.Dst),
		FrameLen:       uint32(f.Len),
		Protocol:       f.Protocol,
		MediaHeaderLen: uint16(f.MediaHeaderLen),
		Type:           f.Type,
	}
}
