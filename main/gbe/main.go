// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This exercises simulated gigabit controllers through the network
// interface command API.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/platinasystems/undi/cmd/gbe"
)

var Args = os.Args
var Exit = os.Exit
var Stderr io.Writer = os.Stderr

func main() {
	var cmd gbe.Command
	args := Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "-h", "-help", "--help":
			fmt.Println("usage:", cmd.Usage())
			fmt.Println(cmd.Man())
			return
		case "-apropos", "--apropos":
			fmt.Println(cmd, "-", cmd.Apropos())
			return
		}
	}
	if err := cmd.Main(args...); err != nil {
		fmt.Fprintf(Stderr, "%v: %v\n", cmd, err)
		Exit(1)
	}
}
