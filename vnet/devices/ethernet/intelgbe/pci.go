// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package intelgbe

import (
	"fmt"
	"sort"
)

const VendorIntel = 0x8086

type DeviceID uint16

const (
	DevIDEhlPchSgmii    DeviceID = 0x4b32
	DevIDEhlPse0Rgmii1G DeviceID = 0x4ba0
	DevIDEhlPse0Sgmii1G DeviceID = 0x4ba1
	DevIDEhlPse0Sgmii2G DeviceID = 0x4ba2
	DevIDEhlPse1Rgmii1G DeviceID = 0x4bb0
	DevIDEhlPse1Sgmii1G DeviceID = 0x4bb1
	DevIDEhlPse1Sgmii2G DeviceID = 0x4bb2
	DevIDTglhPch1Sgmii  DeviceID = 0x43ac
	DevIDTglhPch2Sgmii  DeviceID = 0x43a2
	DevIDTgluPch1Sgmii  DeviceID = 0xa0ac
)

type PhyInterface int

const (
	RGMII PhyInterface = iota
	SGMII
)

func (i PhyInterface) String() string {
	if i == SGMII {
		return "sgmii"
	}
	return "rgmii"
}

type device_info struct {
	name      string
	iface     PhyInterface
	pse       bool
	tx_queues uint
	rx_queues uint
}

var devices = map[DeviceID]device_info{
	DevIDEhlPchSgmii:    {"ehl pch sgmii", SGMII, false, 8, 8},
	DevIDEhlPse0Rgmii1G: {"ehl pse0 rgmii 1g", RGMII, true, 8, 8},
	DevIDEhlPse0Sgmii1G: {"ehl pse0 sgmii 1g", SGMII, true, 8, 8},
	DevIDEhlPse0Sgmii2G: {"ehl pse0 sgmii 2.5g", SGMII, true, 8, 8},
	DevIDEhlPse1Rgmii1G: {"ehl pse1 rgmii 1g", RGMII, true, 8, 8},
	DevIDEhlPse1Sgmii1G: {"ehl pse1 sgmii 1g", SGMII, true, 8, 8},
	DevIDEhlPse1Sgmii2G: {"ehl pse1 sgmii 2.5g", SGMII, true, 8, 8},
	// fifo: 4 tx / 6 rx queues of 4k each
	DevIDTglhPch1Sgmii: {"tglh pch1 sgmii", SGMII, false, 4, 6},
	DevIDTglhPch2Sgmii: {"tglh pch2 sgmii", SGMII, false, 4, 6},
	DevIDTgluPch1Sgmii: {"tglu pch1 sgmii", SGMII, false, 4, 6},
}

// Supported reports whether the driver binds to vendor:device.
func Supported(vendor uint16, id DeviceID) bool {
	_, ok := devices[id]
	return ok && vendor == VendorIntel
}

func (d DeviceID) String() string {
	if i, ok := devices[d]; ok {
		return i.name
	}
	return fmt.Sprintf("unknown %04x", uint(d))
}

// DeviceIDs lists supported devices in ascending order.
func DeviceIDs() (ids []DeviceID) {
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return
}
