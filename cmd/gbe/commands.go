// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package gbe

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/undi/elib/hw/dma"
	"github.com/platinasystems/undi/lang"
	"github.com/platinasystems/undi/undi"
	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
)

type subcommand struct {
	usage   string
	apropos lang.Alt
	main    func(s *session, args ...string) error
}

var byName map[string]*subcommand

func init() {
	byName = map[string]*subcommand{
		"help": {"help [COMMAND]", lang.Alt{lang.EnUS: "list commands"}, (*session).help},
		"state": {"state [IF]...", lang.Alt{lang.EnUS: "print interface state"},
			(*session).state},
		"start": {"start [IF]...", lang.Alt{lang.EnUS: "start interfaces"},
			lifecycle(undi.OpStart)},
		"stop": {"stop [IF]...", lang.Alt{lang.EnUS: "stop interfaces"},
			lifecycle(undi.OpStop)},
		"init": {"init [-no-cable] [IF]...", lang.Alt{lang.EnUS: "initialize interfaces"},
			(*session).initialize},
		"reset": {"reset [-no-irq] [-no-filter] [IF]...", lang.Alt{lang.EnUS: "reset interfaces"},
			(*session).reset},
		"shutdown": {"shutdown [IF]...", lang.Alt{lang.EnUS: "shut down interfaces"},
			lifecycle(undi.OpShutdown)},
		"show": {"show [-regs] [-rings] [IF]...", lang.Alt{lang.EnUS: "print configuration and registers"},
			(*session).show},
		"addr": {"addr [IF] [MAC | reset]", lang.Alt{lang.EnUS: "print or set the station address"},
			(*session).addr},
		"filter": {"filter [IF] [on | off]", lang.Alt{lang.EnUS: "print or set receive filters"},
			(*session).filter},
		"irq": {"irq [IF] [+|-][rx|tx|cmd]...", lang.Alt{lang.EnUS: "print or change the interrupt mask"},
			(*session).irq},
		"link": {"link [IF] [up | down]", lang.Alt{lang.EnUS: "print media status or move the cable"},
			(*session).link},
		"mcast": {"mcast IP...", lang.Alt{lang.EnUS: "map multicast IP addresses to MAC addresses"},
			(*session).mcast},
		"send": {"send [-dst MAC] [-proto TYPE] IF [COUNT [LEN]]", lang.Alt{lang.EnUS: "transmit frames"},
			(*session).send},
		"inject": {"inject [-src MAC] IF [COUNT [LEN]]", lang.Alt{lang.EnUS: "deliver frames from the wire"},
			(*session).inject},
		"recv": {"recv [IF]...", lang.Alt{lang.EnUS: "receive pending frames"},
			(*session).recv},
		"status": {"status [IF]...", lang.Alt{lang.EnUS: "print and acknowledge interrupt status"},
			(*session).status},
		"stats": {"stats [-reset] [IF]...", lang.Alt{lang.EnUS: "print statistics"},
			(*session).stats},
		"publish": {"publish", lang.Alt{lang.EnUS: "publish interface state to redis"},
			(*session).publish},
	}
}

// exec runs one command line.
func (s *session) exec(args ...string) error {
	if len(args) == 0 {
		return nil
	}
	c, found := byName[args[0]]
	if !found {
		return fmt.Errorf("%s: command not found", args[0])
	}
	if err := c.main(s, args[1:]...); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

func (s *session) help(args ...string) error {
	if len(args) > 0 {
		c, found := byName[args[0]]
		if !found {
			return fmt.Errorf("%s: command not found", args[0])
		}
		fmt.Fprintln(s.w, "usage:", c.usage)
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.w, "%-10s %s\n", name, byName[name].apropos)
	}
	return nil
}

var errNoIface = errors.New("no such interface")

// select_ifs consumes leading interface numbers, returning every
// interface when none are given.
func (s *session) select_ifs(args []string) (ifs []*iface, rest []string, err error) {
	for len(args) > 0 {
		i, e := strconv.Atoi(args[0])
		if e != nil {
			break
		}
		if i < 0 || i >= len(s.ifs) {
			return nil, nil, fmt.Errorf("%d: %w", i, errNoIface)
		}
		ifs = append(ifs, s.ifs[i])
		args = args[1:]
	}
	if len(ifs) == 0 {
		ifs = s.ifs
	}
	return ifs, args, nil
}

// one_if consumes the required leading interface number.
func (s *session) one_if(args []string) (*iface, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("IF: missing")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 || i >= len(s.ifs) {
		return nil, nil, fmt.Errorf("%s: %w", args[0], errNoIface)
	}
	return s.ifs[i], args[1:], nil
}

func unexpected(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	return nil
}

func (s *session) state(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	for _, x := range ifs {
		c, err := s.call(x, undi.OpGetState, 0, nil, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.w, x, state_name(c.StatFlags.State()))
	}
	return nil
}

func state_name(f undi.StatFlags) string {
	switch f {
	case undi.StateStopped:
		return "stopped"
	case undi.StateStarted:
		return "started"
	case undi.StateInitialized:
		return "initialized"
	}
	return fmt.Sprint(uint16(f))
}

func lifecycle(op undi.OpCode) func(*session, ...string) error {
	return func(s *session, args ...string) error {
		ifs, args, err := s.select_ifs(args)
		if err != nil {
			return err
		}
		if err = unexpected(args); err != nil {
			return err
		}
		for _, x := range ifs {
			var cpb interface{}
			if op == undi.OpStart {
				cpb = &undi.CpbStart{}
			}
			if _, err = s.call(x, op, 0, cpb, nil); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *session) initialize(args ...string) error {
	flag, args := flags.New(args, "-no-cable")
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	op := undi.OpFlagsInitializeDetectCable
	if flag.ByName["-no-cable"] {
		op = undi.OpFlagsInitializeDoNotDetectCable
	}
	for _, x := range ifs {
		db := &undi.DbInitialize{}
		c, err := s.call(x, undi.OpInitialize, op, &undi.CpbInitialize{}, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%v: tx %d x %d, rx %d x %d", x, db.TxBufCnt, db.TxBufSize, db.RxBufCnt, db.RxBufSize)
		if c.StatFlags&undi.StatFlagsInitializedNoMedia != 0 {
			fmt.Fprint(s.w, ", no media")
		}
		fmt.Fprintln(s.w)
	}
	return nil
}

func (s *session) reset(args ...string) error {
	flag, args := flags.New(args, "-no-irq", "-no-filter")
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	var op undi.OpFlags
	if flag.ByName["-no-irq"] {
		op |= undi.OpFlagsResetDisableInterrupts
	}
	if flag.ByName["-no-filter"] {
		op |= undi.OpFlagsResetDisableFilters
	}
	for _, x := range ifs {
		if _, err = s.call(x, undi.OpReset, op, nil, nil); err != nil {
			return err
		}
		// Frames in flight were discarded with the rings.
		for cpu, n := range x.pending {
			x.mem.FreePages(cpu, n)
		}
		x.pending = make(map[uint64]uint)
	}
	return nil
}

func (s *session) show(args ...string) error {
	flag, args := flags.New(args, "-regs", "-rings")
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	for _, x := range ifs {
		cfg := &undi.DbGetConfigInfo{}
		if _, err = s.call(x, undi.OpGetConfigInfo, 0, nil, cfg); err != nil {
			return err
		}
		info := &undi.DbGetInitInfo{}
		if _, err = s.call(x, undi.OpGetInitInfo, 0, nil, info); err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%v: %v, phy %s, instance %v\n", x, cfg.DeviceId, cfg.Phy, cfg.Instance)
		fmt.Fprintf(s.w, "  frame %d, header %d, speeds %v, tx %d, rx %d\n",
			info.FrameDataLen, info.MediaHeaderLen, info.LinkSpeeds[:3], info.TxBufCnt, info.RxBufCnt)
		d := x.a.Dev()
		d.Show(s.w)
		if flag.ByName["-regs"] {
			d.DumpRegs(s.w)
		}
		if flag.ByName["-rings"] {
			d.DumpRings(s.w, true)
		}
	}
	return nil
}

func parse_mac(s string) (a intelgbe.Address, err error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return
	}
	if len(hw) != len(a) {
		return a, fmt.Errorf("%s: not an ethernet address", s)
	}
	copy(a[:], hw)
	return
}

func (s *session) addr(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	op := undi.OpFlagsStationAddressRead
	var cpb interface{}
	switch len(args) {
	case 0:
	case 1:
		if args[0] == "reset" {
			op = undi.OpFlagsStationAddressReset
		} else {
			a, err := parse_mac(args[0])
			if err != nil {
				return err
			}
			cpb = &undi.CpbStationAddress{StationAddr: undi.MacAddr(a)}
		}
	default:
		return unexpected(args[1:])
	}
	for _, x := range ifs {
		db := &undi.DbStationAddress{}
		if _, err = s.call(x, undi.OpStationAddress, op, cpb, db); err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%v: station %v permanent %v\n",
			x, undi.EtherAddr(db.StationAddr), undi.EtherAddr(db.PermanentAddr))
	}
	return nil
}

func filter_names(f undi.StatFlags) string {
	var l []string
	for _, x := range []struct {
		f    undi.StatFlags
		name string
	}{
		{undi.StatFlagsFilterUnicast, "unicast"},
		{undi.StatFlagsFilterBroadcast, "broadcast"},
		{undi.StatFlagsFilterFilteredMulticast, "filtered-multicast"},
		{undi.StatFlagsFilterPromiscuous, "promiscuous"},
		{undi.StatFlagsFilterAllMulticast, "all-multicast"},
	} {
		if f&x.f != 0 {
			l = append(l, x.name)
		}
	}
	if len(l) == 0 {
		return "off"
	}
	return strings.Join(l, " ")
}

func (s *session) filter(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	op := undi.OpFlagsFilterRead
	switch {
	case len(args) == 0:
	case len(args) > 1:
		return unexpected(args[1:])
	case args[0] == "on":
		op = undi.OpFlagsFilterEnable | undi.OpFlagsFilterUnicast | undi.OpFlagsFilterBroadcast
	case args[0] == "off":
		op = undi.OpFlagsFilterDisable | undi.OpFlagsFilterUnicast | undi.OpFlagsFilterBroadcast
	default:
		return fmt.Errorf("%s: neither on nor off", args[0])
	}
	for _, x := range ifs {
		c, err := s.call(x, undi.OpReceiveFilters, op, nil, nil)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.w, x, filter_names(c.StatFlags))
	}
	return nil
}

var irq_sources = map[string]undi.OpFlags{
	"rx":  undi.OpFlagsInterruptReceive,
	"tx":  undi.OpFlagsInterruptTxmit,
	"cmd": undi.OpFlagsInterruptCommand,
}

func irq_names(f undi.StatFlags) string {
	var l []string
	for _, name := range []string{"rx", "tx", "cmd"} {
		if f&undi.StatFlags(irq_sources[name]) != 0 {
			l = append(l, name)
		}
	}
	if len(l) == 0 {
		return "none"
	}
	return strings.Join(l, " ")
}

func (s *session) irq(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	var enable, disable undi.OpFlags
	for _, arg := range args {
		if len(arg) < 2 || (arg[0] != '+' && arg[0] != '-') {
			return fmt.Errorf("%s: want +SOURCE or -SOURCE", arg)
		}
		f, found := irq_sources[arg[1:]]
		if !found {
			return fmt.Errorf("%s: unknown source", arg[1:])
		}
		if arg[0] == '+' {
			enable |= f
		} else {
			disable |= f
		}
	}
	for _, x := range ifs {
		var c *undi.Cdb
		if enable != 0 {
			if c, err = s.call(x, undi.OpInterrupt, undi.OpFlagsInterruptEnable|enable, nil, nil); err != nil {
				return err
			}
		}
		if disable != 0 {
			if c, err = s.call(x, undi.OpInterrupt, undi.OpFlagsInterruptDisable|disable, nil, nil); err != nil {
				return err
			}
		}
		if c == nil {
			if c, err = s.call(x, undi.OpInterrupt, undi.OpFlagsInterruptRead, nil, nil); err != nil {
				return err
			}
		}
		fmt.Fprintln(s.w, x, "irq", irq_names(c.StatFlags))
	}
	return nil
}

func (s *session) link(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	switch {
	case len(args) == 0:
	case len(args) > 1:
		return unexpected(args[1:])
	case args[0] == "up", args[0] == "down":
		for _, x := range ifs {
			x.phy.SetCable(args[0] == "up")
		}
	default:
		return fmt.Errorf("%s: neither up nor down", args[0])
	}
	for _, x := range ifs {
		db := &undi.DbGetStatus{TxBuffer: make([]uint64, 1)}
		c, err := s.call(x, undi.OpGetStatus, undi.OpFlagsGetMediaStatus, nil, db)
		if err != nil {
			return err
		}
		if c.StatFlags&undi.StatFlagsNoMedia != 0 {
			fmt.Fprintln(s.w, x, "link down")
		} else {
			fmt.Fprintln(s.w, x, "link", x.a.Dev().Link())
		}
	}
	return nil
}

func (s *session) mcast(args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("IP: missing")
	}
	x := s.ifs[0]
	for _, arg := range args {
		ip := net.ParseIP(arg)
		if ip == nil {
			return fmt.Errorf("%s: invalid IP address", arg)
		}
		op := undi.OpFlagsMcastIpv4ToMac
		if ip.To4() == nil {
			op = undi.OpFlagsMcastIpv6ToMac
		}
		db := &undi.DbMcastIpToMac{}
		if _, err := s.call(x, undi.OpMcastIpToMac, op, &undi.CpbMcastIpToMac{IP: ip}, db); err != nil {
			return err
		}
		fmt.Fprintln(s.w, arg, undi.EtherAddr(db.Mac))
	}
	return nil
}

// count_len parses the optional COUNT and LEN arguments.
func count_len(args []string) (count, n int, err error) {
	count, n = 1, 64
	if len(args) > 2 {
		return 0, 0, unexpected(args[2:])
	}
	if len(args) > 0 {
		if count, err = strconv.Atoi(args[0]); err != nil || count < 1 {
			return 0, 0, fmt.Errorf("%s: invalid count", args[0])
		}
	}
	if len(args) > 1 {
		n, err = strconv.Atoi(args[1])
		if err != nil || n < undi.MacHeaderLen || n > frame_size {
			return 0, 0, fmt.Errorf("%s: invalid length", args[1])
		}
	}
	return
}

func (s *session) send(args ...string) error {
	parm, args := parms.New(args, "-dst", "-proto")
	x, args, err := s.one_if(args)
	if err != nil {
		return err
	}
	count, n, err := count_len(args)
	if err != nil {
		return err
	}
	dst := intelgbe.Broadcast
	if v := parm.ByName["-dst"]; len(v) > 0 {
		if dst, err = parse_mac(v); err != nil {
			return err
		}
	}
	proto := uint64(0x88b5)
	if v := parm.ByName["-proto"]; len(v) > 0 {
		if proto, err = strconv.ParseUint(v, 0, 16); err != nil {
			return fmt.Errorf("-proto %s: %w", v, err)
		}
	}
	sent := 0
	for i := 0; i < count; i++ {
		if err = s.send_one(x, dst, uint16(proto), uint(n), byte(i)); err != nil {
			break
		}
		sent++
	}
	x.sim.Step()
	done, rerr := s.reclaim(x)
	fmt.Fprintf(s.w, "%v: sent %d, completed %d\n", x, sent, done)
	if err != nil {
		return err
	}
	return rerr
}

func (s *session) send_one(x *iface, dst intelgbe.Address, proto uint16, n uint, seq byte) error {
	cpu, b, err := x.mem.Alloc(n)
	if err != nil {
		return err
	}
	for i := undi.MacHeaderLen; i < len(b); i++ {
		b[i] = seq
	}
	free := func() { x.mem.FreePages(cpu, dma.BytesToPages(n)) }
	_, err = s.call(x, undi.OpFillHeader, 0, &undi.CpbFillHeader{
		DestAddr:       undi.MacAddr(dst),
		SrcAddr:        undi.MacAddr(x.a.Dev().Addr),
		MediaHeader:    cpu,
		PacketLen:      uint32(n),
		Protocol:       proto,
		MediaHeaderLen: undi.MacHeaderLen,
	}, nil)
	if err != nil {
		free()
		return err
	}
	_, err = s.call(x, undi.OpTransmit, 0, &undi.CpbTransmit{
		FrameAddr:      cpu,
		DataLen:        uint32(n) - undi.MacHeaderLen,
		MediaHeaderLen: undi.MacHeaderLen,
	}, nil)
	if err != nil {
		free()
		return err
	}
	x.pending[cpu] = dma.BytesToPages(n)
	return nil
}

func (s *session) inject(args ...string) error {
	parm, args := parms.New(args, "-src")
	x, args, err := s.one_if(args)
	if err != nil {
		return err
	}
	count, n, err := count_len(args)
	if err != nil {
		return err
	}
	src := intelgbe.Address{0x02, 0xff, 0x00, 0x00, 0x00, 0x01}
	if v := parm.ByName["-src"]; len(v) > 0 {
		if src, err = parse_mac(v); err != nil {
			return err
		}
	}
	dst := x.a.Dev().Addr
	delivered := 0
	for i := 0; i < count; i++ {
		f := make([]byte, n)
		copy(f[0:6], dst[:])
		copy(f[6:12], src[:])
		f[12], f[13] = 0x88, 0xb5
		if x.sim.Inject(f) {
			delivered++
		}
	}
	fmt.Fprintf(s.w, "%v: delivered %d of %d\n", x, delivered, count)
	return nil
}

func (s *session) recv(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	for _, x := range ifs {
		cpu, _, err := x.mem.Alloc(frame_size)
		if err != nil {
			return err
		}
		err = s.recv_all(x, cpu)
		x.mem.FreePages(cpu, dma.BytesToPages(frame_size))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *session) recv_all(x *iface, cpu uint64) error {
	for {
		db := &undi.DbReceive{}
		c := undi.NewCdb(x.ifnum, undi.OpReceive, 0,
			&undi.CpbReceive{BufferAddr: cpu, BufferLen: frame_size}, db)
		if err := s.u.ApiEntry(c); err != nil {
			return fmt.Errorf("%v: %w", c, err)
		}
		switch {
		case c.StatCode == undi.StatNoData:
			return nil
		case c.Failed():
			return fmt.Errorf("%v %v: %v", x, c.OpCode, c.StatCode)
		}
		fmt.Fprintf(s.w, "%v: %v %v -> %v type 0x%04x len %d\n", x, db.Type,
			undi.EtherAddr(db.SrcAddr), undi.EtherAddr(db.DestAddr), db.Protocol, db.FrameLen)
	}
}

func (s *session) status(args ...string) error {
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	for _, x := range ifs {
		db := &undi.DbGetStatus{TxBuffer: make([]uint64, 1)}
		c, err := s.call(x, undi.OpGetStatus, undi.OpFlagsGetInterruptStatus|undi.OpFlagsGetMediaStatus, nil, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "%v: irq %s, media %v\n", x, irq_names(c.StatFlags&undi.StatFlagsInterruptMask),
			c.StatFlags&undi.StatFlagsNoMedia == 0)
	}
	return nil
}

var statistic_names = map[int]string{
	undi.StatRxTotalFrames:     "rx-total-frames",
	undi.StatRxGoodFrames:      "rx-good-frames",
	undi.StatRxUndersizeFrames: "rx-undersize-frames",
	undi.StatRxDroppedFrames:   "rx-dropped-frames",
	undi.StatRxCrcErrorFrames:  "rx-crc-error-frames",
	undi.StatTxTotalFrames:     "tx-total-frames",
	undi.StatTxGoodFrames:      "tx-good-frames",
	undi.StatTxDroppedFrames:   "tx-dropped-frames",
}

// statistics returns the supported counters by name.
func (s *session) statistics(x *iface) (map[string]uint64, error) {
	db := &undi.DbStatistics{}
	if _, err := s.call(x, undi.OpStatistics, undi.OpFlagsStatisticsRead, nil, db); err != nil {
		return nil, err
	}
	m := make(map[string]uint64)
	for i, name := range statistic_names {
		if db.Supported&(1<<uint(i)) != 0 {
			m[name] = db.Data[i]
		}
	}
	return m, nil
}

func (s *session) stats(args ...string) error {
	flag, args := flags.New(args, "-reset")
	ifs, args, err := s.select_ifs(args)
	if err != nil {
		return err
	}
	if err = unexpected(args); err != nil {
		return err
	}
	for _, x := range ifs {
		m, err := s.statistics(x)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(s.w, x)
		for _, name := range names {
			fmt.Fprintf(s.w, "  %-20s %d\n", name, m[name])
		}
		if flag.ByName["-reset"] {
			if _, err = s.call(x, undi.OpStatistics, undi.OpFlagsStatisticsReset, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
