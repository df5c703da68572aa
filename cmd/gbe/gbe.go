// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package gbe drives simulated gigabit controllers through the network
// interface command block API.
package gbe

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/undi/elib/hw"
	"github.com/platinasystems/undi/lang"
	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
)

type Command struct{}

func (Command) String() string { return "gbe" }

func (Command) Usage() string {
	return `gbe [-v] [-loopback] [-no-cable] [-n COUNT] [-tx LEN] [-rx LEN]
	[-phy MODEL] [-dev ID] [-redis ADDR] [COMMAND [ARGS]...]
gbe -dev ID -resource PATH`
}

func (Command) Apropos() lang.Alt {
	return lang.Alt{
		lang.EnUS: "exercise simulated gigabit ethernet controllers",
	}
}

func (Command) Man() lang.Alt {
	return lang.Alt{
		lang.EnUS: `
DESCRIPTION
	Attach COUNT simulated controllers, start and initialize each
	one, then run COMMAND.  Without COMMAND, read commands from
	standard input; with a terminal this is an interactive shell.

OPTIONS
	-v		log every failed command
	-loopback	transmitted frames return on the receive ring
	-no-cable	attach phys with the cable unplugged
	-n COUNT	number of controllers (default 1)
	-tx LEN, -rx LEN
			descriptor ring lengths (default 64)
	-phy MODEL	88e1512 (default), gpy or 88e2110
	-dev ID		PCI device id in hex
	-redis ADDR	publish interface state to this redis server
	-resource PATH	print the registers of the controller mapped by this
			PCI resource file, e.g.
			/sys/bus/pci/devices/0000:00:1e.4/resource0, and exit

COMMANDS
	Run "help" for the list.`,
	}
}

// Main brings up the controllers and runs args as one command line.
func (Command) Main(args ...string) error {
	flag, args := flags.New(args, "-v", "-loopback", "-no-cable")
	parm, args := parms.New(args, "-n", "-tx", "-rx", "-phy", "-dev", "-redis", "-resource")

	c := default_config()
	c.verbose = flag.ByName["-v"]
	c.loopback = flag.ByName["-loopback"]
	c.cable = !flag.ByName["-no-cable"]
	if err := c.parse(parm.ByName); err != nil {
		return err
	}
	if path := parm.ByName["-resource"]; len(path) > 0 {
		return dump_resource(c, path, os.Stdout)
	}

	s, err := new_session(c, os.Stdout)
	if err != nil {
		return err
	}
	defer s.close()
	if err = s.up(s.ifs...); err != nil {
		return err
	}
	if addr := parm.ByName["-redis"]; len(addr) > 0 {
		if err = s.dial(addr); err != nil {
			return err
		}
	}
	if len(args) == 0 {
		return s.shell(os.Stdin)
	}
	return s.exec(args...)
}

type config struct {
	n      int
	tx, rx uint
	phy    string
	dev    intelgbe.DeviceID

	verbose  bool
	loopback bool
	cable    bool
}

func default_config() config {
	return config{
		n:     1,
		tx:    64,
		rx:    64,
		phy:   "88e1512",
		dev:   intelgbe.DevIDEhlPse0Rgmii1G,
		cable: true,
	}
}

func (c *config) parse(parm map[string]string) (err error) {
	if s := parm["-n"]; len(s) > 0 {
		if c.n, err = strconv.Atoi(s); err != nil || c.n < 1 {
			return fmt.Errorf("-n %s: invalid", s)
		}
	}
	for _, x := range []struct {
		name string
		v    *uint
	}{
		{"-tx", &c.tx},
		{"-rx", &c.rx},
	} {
		s := parm[x.name]
		if len(s) == 0 {
			continue
		}
		n, err := strconv.ParseUint(s, 0, 16)
		if err != nil || n < 4 {
			return fmt.Errorf("%s %s: invalid", x.name, s)
		}
		*x.v = uint(n)
	}
	if s := parm["-phy"]; len(s) > 0 {
		c.phy = s
		// Multigig and gpy phys sit behind the SERDES.
		if s != "88e1512" {
			c.dev = intelgbe.DevIDEhlPchSgmii
		}
	}
	if s := parm["-dev"]; len(s) > 0 {
		id, err := strconv.ParseUint(s, 16, 16)
		if err != nil || !intelgbe.Supported(intelgbe.VendorIntel, intelgbe.DeviceID(id)) {
			return fmt.Errorf("-dev %s: unsupported", s)
		}
		c.dev = intelgbe.DeviceID(id)
	}
	return nil
}

// Register space covered by the dump.
const resource_size = 0x2000

// dump_resource reads registers of real hardware without writing any.
func dump_resource(c config, path string, w io.Writer) error {
	m, err := hw.OpenMmio(path, resource_size)
	if err != nil {
		return err
	}
	defer m.Close()
	d, err := intelgbe.New(m, nil, c.dev, intelgbe.DefaultConfig())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %v\n", path, c.dev)
	d.DumpRegs(w)
	return nil
}
