// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package undi

type required_state uint8

const (
	any_state required_state = iota
	must_be_started
	must_be_initialized
)

type handler func(a *Adapter, c *Cdb)

// Expected CPB size, DB size and op flags are exact values,
// NotUsed or DontCheck.
type api_entry struct {
	cpb_size uint16
	db_size  uint16
	op_flags uint16
	state    required_state
	handler  handler
}

type api_table [n_opcodes]api_entry

var default_api_table = api_table{
	OpGetState:       {NotUsed, NotUsed, 0, any_state, (*Adapter).get_state},
	OpStart:          {DontCheck, NotUsed, 0, any_state, (*Adapter).start},
	OpStop:           {NotUsed, NotUsed, 0, must_be_started, (*Adapter).stop},
	OpGetInitInfo:    {NotUsed, DbGetInitInfoSize, 0, must_be_started, (*Adapter).get_init_info},
	OpGetConfigInfo:  {NotUsed, DbGetConfigInfoSize, 0, must_be_started, (*Adapter).get_config_info},
	OpInitialize:     {CpbInitializeSize, DontCheck, DontCheck, must_be_started, (*Adapter).initialize},
	OpReset:          {NotUsed, NotUsed, DontCheck, must_be_initialized, (*Adapter).reset},
	OpShutdown:       {NotUsed, NotUsed, 0, must_be_initialized, (*Adapter).shutdown},
	OpInterrupt:      {NotUsed, NotUsed, DontCheck, must_be_initialized, (*Adapter).interrupt},
	OpReceiveFilters: {DontCheck, DontCheck, DontCheck, must_be_initialized, (*Adapter).receive_filters},
	OpStationAddress: {DontCheck, DontCheck, DontCheck, must_be_initialized, (*Adapter).station_address},
	OpStatistics:     {NotUsed, DontCheck, DontCheck, must_be_initialized, (*Adapter).statistics},
	OpMcastIpToMac:   {CpbMcastIpToMacSize, DbMcastIpToMacSize, DontCheck, must_be_initialized, (*Adapter).mcast_ip_to_mac},
	OpNvData:         {DontCheck, DontCheck, DontCheck, must_be_initialized, (*Adapter).nvdata},
	OpGetStatus:      {NotUsed, DontCheck, DontCheck, must_be_initialized, (*Adapter).get_status},
	OpFillHeader:     {DontCheck, NotUsed, DontCheck, must_be_initialized, (*Adapter).fill_header},
	OpTransmit:       {DontCheck, NotUsed, DontCheck, must_be_initialized, (*Adapter).transmit},
	OpReceive:        {CpbReceiveSize, DbReceiveSize, 0, must_be_initialized, (*Adapter).receive},
}

func check(want, got uint16) bool { return want == DontCheck || want == got }

// validate checks c against e, returning false for a malformed block.
func (e *api_entry) validate(c *Cdb) bool {
	return check(e.cpb_size, c.CPBsize) &&
		check(e.db_size, c.DBsize) &&
		check(e.op_flags, uint16(c.OpFlags))
}

// allows reports the status code for running e in state s.
func (e *api_entry) allows(s StatFlags) (StatCode, bool) {
	switch {
	case e.state == any_state:
	case s == StateStopped:
		return StatNotStarted, false
	case e.state == must_be_initialized && s != StateInitialized:
		return StatNotInitialized, false
	}
	return StatSuccess, true
}
