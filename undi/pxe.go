// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package undi

import "fmt"

type OpCode uint16

const (
	OpGetState OpCode = iota
	OpStart
	OpStop
	OpGetInitInfo
	OpGetConfigInfo
	OpInitialize
	OpReset
	OpShutdown
	OpInterrupt
	OpReceiveFilters
	OpStationAddress
	OpStatistics
	OpMcastIpToMac
	OpNvData
	OpGetStatus
	OpFillHeader
	OpTransmit
	OpReceive
	n_opcodes
)

const OpLastValid = n_opcodes - 1

var opcode_names = [...]string{
	OpGetState:       "get-state",
	OpStart:          "start",
	OpStop:           "stop",
	OpGetInitInfo:    "get-init-info",
	OpGetConfigInfo:  "get-config-info",
	OpInitialize:     "initialize",
	OpReset:          "reset",
	OpShutdown:       "shutdown",
	OpInterrupt:      "interrupt",
	OpReceiveFilters: "receive-filters",
	OpStationAddress: "station-address",
	OpStatistics:     "statistics",
	OpMcastIpToMac:   "mcast-ip-to-mac",
	OpNvData:         "nvdata",
	OpGetStatus:      "get-status",
	OpFillHeader:     "fill-header",
	OpTransmit:       "transmit",
	OpReceive:        "receive",
}

func (o OpCode) String() string {
	if o < n_opcodes {
		return opcode_names[o]
	}
	return fmt.Sprintf("opcode-%d", uint16(o))
}

type StatCode uint16

const (
	StatSuccess StatCode = iota
	StatInvalidCdb
	StatInvalidCpb
	StatBusy
	StatQueueFull
	StatAlreadyStarted
	StatNotStarted
	StatNotShutdown
	StatAlreadyInitialized
	StatNotInitialized
	StatDeviceFailure
	StatNvDataFailure
	StatUnsupported
	StatBufferFull
	StatInvalidParameter
	StatInvalidUndi
	StatIpv4NotSupported
	StatIpv6NotSupported
	StatNotEnoughMemory
	StatNoData
	n_statcodes
)

// Callers set StatCode and StatFlags to these before each call.
const (
	StatCodeInitialize  StatCode  = 0
	StatFlagsInitialize StatFlags = 0
)

var statcode_names = [...]string{
	StatSuccess:            "success",
	StatInvalidCdb:         "invalid cdb",
	StatInvalidCpb:         "invalid cpb",
	StatBusy:               "busy",
	StatQueueFull:          "queue full",
	StatAlreadyStarted:     "already started",
	StatNotStarted:         "not started",
	StatNotShutdown:        "not shutdown",
	StatAlreadyInitialized: "already initialized",
	StatNotInitialized:     "not initialized",
	StatDeviceFailure:      "device failure",
	StatNvDataFailure:      "nvdata failure",
	StatUnsupported:        "unsupported",
	StatBufferFull:         "buffer full",
	StatInvalidParameter:   "invalid parameter",
	StatInvalidUndi:        "invalid undi",
	StatIpv4NotSupported:   "ipv4 not supported",
	StatIpv6NotSupported:   "ipv6 not supported",
	StatNotEnoughMemory:    "not enough memory",
	StatNoData:             "no data",
}

func (c StatCode) String() string {
	if c < n_statcodes {
		return statcode_names[c]
	}
	return fmt.Sprintf("statcode-0x%04x", uint16(c))
}

type StatFlags uint16

const (
	StatFlagsStatusMask      StatFlags = 0xc000
	StatFlagsCommandComplete StatFlags = 0xc000
	StatFlagsCommandFailed   StatFlags = 0x8000
	StatFlagsCommandQueued   StatFlags = 0x4000

	// GetState
	StateMask        StatFlags = 0x0003
	StateStopped     StatFlags = 0x0000
	StateStarted     StatFlags = 0x0001
	StateInitialized StatFlags = 0x0002

	// GetInitInfo
	StatFlagsCableDetectSupported      StatFlags = 0x0001
	StatFlagsGetStatusNoMediaSupported StatFlags = 0x0002

	// Initialize
	StatFlagsInitializedNoMedia StatFlags = 0x0001

	// ReceiveFilters
	StatFlagsFilterUnicast           StatFlags = 0x0001
	StatFlagsFilterBroadcast         StatFlags = 0x0002
	StatFlagsFilterFilteredMulticast StatFlags = 0x0004
	StatFlagsFilterPromiscuous       StatFlags = 0x0008
	StatFlagsFilterAllMulticast      StatFlags = 0x0010

	// GetStatus and Interrupt
	StatFlagsInterruptMask     StatFlags = 0x000f
	StatFlagsReceive           StatFlags = 0x0001
	StatFlagsTransmit          StatFlags = 0x0002
	StatFlagsCommand           StatFlags = 0x0004
	StatFlagsSoftware          StatFlags = 0x0008
	StatFlagsTxBufQueueEmpty   StatFlags = 0x0010
	StatFlagsNoTxBufsWritten   StatFlags = 0x0020
	StatFlagsNoMedia           StatFlags = 0x0040
	StatFlagsInterruptDisabled StatFlags = 0x0000
)

func (f StatFlags) State() StatFlags { return f & StateMask }

func (f StatFlags) String() string {
	switch f & StatFlagsStatusMask {
	case StatFlagsCommandComplete:
		return fmt.Sprintf("complete 0x%04x", uint16(f&^StatFlagsStatusMask))
	case StatFlagsCommandFailed:
		return fmt.Sprintf("failed 0x%04x", uint16(f&^StatFlagsStatusMask))
	case StatFlagsCommandQueued:
		return fmt.Sprintf("queued 0x%04x", uint16(f&^StatFlagsStatusMask))
	}
	return fmt.Sprintf("0x%04x", uint16(f))
}

var state_names = [...]string{
	StateStopped:     "stopped",
	StateStarted:     "started",
	StateInitialized: "initialized",
}

func state_string(s StatFlags) string {
	if int(s) < len(state_names) {
		return state_names[s]
	}
	return fmt.Sprintf("state-%d", uint16(s))
}

type OpFlags uint16

const (
	OpFlagsInterruptOpMask  OpFlags = 0xc000
	OpFlagsInterruptRead    OpFlags = 0x0000
	OpFlagsInterruptEnable  OpFlags = 0x8000
	OpFlagsInterruptDisable OpFlags = 0x4000
	OpFlagsInterruptReceive OpFlags = 0x0001
	OpFlagsInterruptTxmit   OpFlags = 0x0002
	OpFlagsInterruptCommand OpFlags = 0x0004

	OpFlagsInitializeDetectCable      OpFlags = 0x0000
	OpFlagsInitializeDoNotDetectCable OpFlags = 0x0001

	OpFlagsResetDisableInterrupts OpFlags = 0x0001
	OpFlagsResetDisableFilters    OpFlags = 0x0002

	OpFlagsFilterOpMask            OpFlags = 0xc000
	OpFlagsFilterRead              OpFlags = 0x0000
	OpFlagsFilterEnable            OpFlags = 0x8000
	OpFlagsFilterDisable           OpFlags = 0x4000
	OpFlagsFilterResetMcastList    OpFlags = 0x2000
	OpFlagsFilterUnicast           OpFlags = 0x0001
	OpFlagsFilterBroadcast         OpFlags = 0x0002
	OpFlagsFilterFilteredMulticast OpFlags = 0x0004
	OpFlagsFilterPromiscuous       OpFlags = 0x0008
	OpFlagsFilterAllMulticast      OpFlags = 0x0010

	OpFlagsStationAddressRead  OpFlags = 0x0000
	OpFlagsStationAddressWrite OpFlags = 0x0000
	OpFlagsStationAddressReset OpFlags = 0x0001

	OpFlagsStatisticsRead  OpFlags = 0x0000
	OpFlagsStatisticsReset OpFlags = 0x0001

	OpFlagsMcastIpv4ToMac OpFlags = 0x0000
	OpFlagsMcastIpv6ToMac OpFlags = 0x0001

	OpFlagsNvDataOpMask OpFlags = 0x0001
	OpFlagsNvDataRead   OpFlags = 0x0000
	OpFlagsNvDataWrite  OpFlags = 0x0001

	OpFlagsGetInterruptStatus    OpFlags = 0x0001
	OpFlagsGetTransmittedBuffers OpFlags = 0x0002
	OpFlagsGetMediaStatus        OpFlags = 0x0004

	OpFlagsFillHeaderFragmented OpFlags = 0x0001

	OpFlagsTransmitBlock      OpFlags = 0x0001
	OpFlagsTransmitFragmented OpFlags = 0x0002
)

const (
	NotUsed = 0
	// Table value accepting any size or flags.
	DontCheck = 0xffff
)

const (
	// Hardware address fields are padded to this length.
	MacLength = 32
	HwAddrLen = 6
	// Ethernet media header.
	MacHeaderLen = 14
	// Largest fragment list accepted by FillHeader and Transmit.
	MaxFragments = 8

	IfTypeEthernet = 0x01

	DuplexEnableFullSupported = 0x01
	DuplexForceFullSupported  = 0x02

	// "PCIR"
	BusTypePci = 0x52494350
)

// Wire sizes of the fixed-size command blocks.
const (
	CpbStart30Size       = 40
	CpbStart31Size       = 64
	DbGetInitInfoSize    = 48
	DbGetConfigInfoSize  = 264
	CpbInitializeSize    = 32
	DbInitializeSize     = 16
	CpbStationAddrSize   = MacLength
	DbStationAddrSize    = 3 * MacLength
	DbStatisticsSize     = 8 + 64*8
	CpbMcastIpToMacSize  = 16
	DbMcastIpToMacSize   = MacLength
	DbGetStatusHeader    = 8
	CpbFillHeaderSize    = 80
	CpbTransmitSize      = 16
	CpbReceiveSize       = 16
	DbReceiveSize        = 80
	fragment_desc_size   = 16
	cpb_fragmented_fixed = 8
)

// Statistics indices.
const (
	StatRxTotalFrames = iota
	StatRxGoodFrames
	StatRxUndersizeFrames
	StatRxOversizeFrames
	StatRxDroppedFrames
	StatRxUnicastFrames
	StatRxBroadcastFrames
	StatRxMulticastFrames
	StatRxCrcErrorFrames
	StatRxTotalBytes
	StatTxTotalFrames
	StatTxGoodFrames
	StatTxUndersizeFrames
	StatTxOversizeFrames
	StatTxDroppedFrames
	StatTxUnicastFrames
	StatTxBroadcastFrames
	StatTxMulticastFrames
	StatTxCrcErrorFrames
	StatTxTotalBytes
	StatCollisions
	StatUnsupportedProtocol
	n_statistics
)
