// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package gbe

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/liner"
)

const prompt = "gbe> "

// shell reads command lines from in; a terminal gets line editing and
// history, anything else is run as a script that stops at the first
// failure.
func (s *session) shell(in *os.File) error {
	if isatty.IsTerminal(in.Fd()) {
		return s.interactive()
	}
	return s.script(in)
}

func (s *session) script(r io.Reader) error {
	scan := bufio.NewScanner(r)
	for n := 1; scan.Scan(); n++ {
		args := fields(scan.Text())
		if len(args) == 0 {
			continue
		}
		if err := s.exec(args...); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scan.Err()
}

func (s *session) interactive() error {
	l := liner.NewLiner()
	defer l.Close()
	l.SetCompleter(complete)
	for {
		line, err := l.Prompt(prompt)
		if err == io.EOF {
			fmt.Fprintln(s.w)
			return nil
		}
		if err != nil {
			return err
		}
		args := fields(line)
		if len(args) == 0 {
			continue
		}
		l.AppendHistory(line)
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}
		if err = s.exec(args...); err != nil {
			fmt.Fprintln(s.w, err)
		}
	}
}

// fields splits a command line, dropping # comments.
func fields(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.Fields(line)
}

// complete returns command names extending the first word of line.
func complete(line string) (lines []string) {
	if strings.ContainsAny(line, " \t") {
		return
	}
	for name := range byName {
		if strings.HasPrefix(name, line) {
			lines = append(lines, name)
		}
	}
	sort.Strings(lines)
	if len(lines) == 1 {
		lines[0] += " "
	}
	return
}
