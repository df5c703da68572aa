// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package gbe

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/platinasystems/undi/vnet/devices/ethernet/intelgbe"
)

func new_test_session(t *testing.T, c config) (*session, *bytes.Buffer) {
	w := new(bytes.Buffer)
	c.tx, c.rx = 8, 8
	s, err := new_session(c, w)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.up(s.ifs...); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.close)
	return s, w
}

// run executes line and returns what it printed.
func run(t *testing.T, s *session, w *bytes.Buffer, line string) string {
	w.Reset()
	if err := s.exec(fields(line)...); err != nil {
		t.Fatal(line, ":", err)
	}
	return w.String()
}

func expect(t *testing.T, got string, want ...string) {
	for _, x := range want {
		if !strings.Contains(got, x) {
			t.Errorf("missing %q in:\n%s", x, got)
		}
	}
}

func TestLoopback(t *testing.T) {
	c := default_config()
	c.loopback = true
	s, w := new_test_session(t, c)

	expect(t, run(t, s, w, "state"), "if0 initialized")
	expect(t, run(t, s, w, "send 0 3 100"), "if0: sent 3, completed 3")
	out := run(t, s, w, "recv 0")
	if n := strings.Count(out, "broadcast 02:00:00:00:00:01 -> ff:ff:ff:ff:ff:ff type 0x88b5 len 100"); n != 3 {
		t.Errorf("received %d frames:\n%s", n, out)
	}
	expect(t, run(t, s, w, "stats -reset 0"),
		"rx-total-frames      3", "rx-good-frames       3", "tx-good-frames       3")
	expect(t, run(t, s, w, "stats"), "rx-total-frames      0")
	if len(s.ifs[0].pending) != 0 {
		t.Error("buffers still pending:", s.ifs[0].pending)
	}
}

func TestSendFullRing(t *testing.T) {
	s, w := new_test_session(t, default_config())
	// Without stepping the ring fills at length - 1.
	x := s.ifs[0]
	for i := 0; i < 7; i++ {
		if err := s.send_one(x, intelgbe.Broadcast, 0x88b5, 64, 0); err != nil {
			t.Fatal(i, err)
		}
	}
	if err := s.send_one(x, intelgbe.Broadcast, 0x88b5, 64, 0); err == nil {
		t.Fatal("queued past a full ring")
	}
	// The failed frame's buffer is returned.
	if len(x.pending) != 7 {
		t.Errorf("pending: got %d want 7", len(x.pending))
	}
	w.Reset()
	if err := s.exec("send", "0"); err == nil {
		t.Error("queued past a full ring")
	}
	expect(t, w.String(), "if0: sent 0, completed 7")
	if len(x.sim.Sent) != 7 {
		t.Errorf("sent: got %d want 7", len(x.sim.Sent))
	}
	expect(t, run(t, s, w, "send 0"), "if0: sent 1, completed 1")
}

func TestInject(t *testing.T) {
	c := default_config()
	c.n = 2
	s, w := new_test_session(t, c)
	expect(t, run(t, s, w, "inject 1 2 60"), "if1: delivered 2 of 2")
	out := run(t, s, w, "recv")
	if n := strings.Count(out, "if1: unicast 02:ff:00:00:00:01 -> 02:00:00:00:00:02 type 0x88b5 len 60"); n != 2 {
		t.Errorf("received %d frames:\n%s", n, out)
	}
	if strings.Contains(out, "if0:") {
		t.Error("frame on the wrong interface:", out)
	}
}

func TestAddress(t *testing.T) {
	s, w := new_test_session(t, default_config())
	expect(t, run(t, s, w, "addr"), "if0: station 02:00:00:00:00:01 permanent 02:00:00:00:00:01")
	expect(t, run(t, s, w, "addr 0 02:aa:bb:cc:dd:ee"), "station 02:aa:bb:cc:dd:ee permanent 02:00:00:00:00:01")
	expect(t, run(t, s, w, "addr 0 reset"), "station 02:00:00:00:00:01")
	if err := s.exec("addr", "0", "ff:ff:ff:ff:ff:ff"); err == nil {
		t.Error("broadcast station address accepted")
	}
}

func TestFilterAndLink(t *testing.T) {
	s, w := new_test_session(t, default_config())
	expect(t, run(t, s, w, "filter"), "if0 unicast broadcast all-multicast")
	expect(t, run(t, s, w, "filter off"), "if0 off")
	if err := s.exec("recv"); err == nil {
		t.Error("receive with filters off")
	}
	expect(t, run(t, s, w, "filter on"), "if0 unicast")
	expect(t, run(t, s, w, "link 0 down"), "if0 link down")
	expect(t, run(t, s, w, "status"), "media false")
	expect(t, run(t, s, w, "link up"), "if0 link up")
}

func TestIrq(t *testing.T) {
	s, w := new_test_session(t, default_config())
	expect(t, run(t, s, w, "irq"), "if0 irq none")
	expect(t, run(t, s, w, "irq +rx +tx"), "if0 irq rx tx")
	expect(t, run(t, s, w, "irq -rx"), "if0 irq tx")
	expect(t, run(t, s, w, "reset -no-irq"), "")
	expect(t, run(t, s, w, "irq"), "if0 irq none")
	if err := s.exec("irq", "rx"); err == nil {
		t.Error("unsigned source accepted")
	}
}

func TestMcast(t *testing.T) {
	s, w := new_test_session(t, default_config())
	expect(t, run(t, s, w, "mcast 224.0.0.251 ff02::fb"),
		"224.0.0.251 01:00:5e:00:00:fb", "ff02::fb 33:33:00:00:00:fb")
	if err := s.exec("mcast", "10.0.0.1"); err != nil {
		t.Error(err)
	}
	if err := s.exec("mcast", "nonsense"); err == nil {
		t.Error("bad address accepted")
	}
}

func TestLifecycle(t *testing.T) {
	s, w := new_test_session(t, default_config())
	if err := s.exec("stop"); err == nil {
		t.Error("stop while initialized")
	}
	run(t, s, w, "shutdown")
	expect(t, run(t, s, w, "state"), "if0 started")
	run(t, s, w, "stop")
	expect(t, run(t, s, w, "state"), "if0 stopped")
	run(t, s, w, "start")
	expect(t, run(t, s, w, "init -no-cable"), "if0: tx 8 x 16, rx 8 x 2064")
	expect(t, run(t, s, w, "show"), "ehl pse0 rgmii 1g", "frame 1500")
}

func TestScript(t *testing.T) {
	c := default_config()
	c.loopback = true
	s, w := new_test_session(t, c)
	err := s.script(strings.NewReader(`
# comment
send 0 1
recv
bogus
state
`))
	if err == nil || !strings.Contains(err.Error(), "line 5") {
		t.Error("got", err)
	}
	if strings.Contains(w.String(), "initialized") {
		t.Error("script ran past the failure")
	}
}

func TestSelect(t *testing.T) {
	s, _ := new_test_session(t, default_config())
	if err := s.exec("state", "3"); !errors.Is(err, errNoIface) {
		t.Error("got", err)
	}
	if err := s.exec("publish"); !errors.Is(err, errNoRedis) {
		t.Error("got", err)
	}
	if err := s.exec("state", "0", "x"); err == nil {
		t.Error("trailing argument accepted")
	}
}

func TestComplete(t *testing.T) {
	got := complete("st")
	want := []string{"start", "state", "stats", "status", "stop"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v want %v", got, want)
	}
	if got = complete("pub"); len(got) != 1 || got[0] != "publish " {
		t.Errorf("got %q", got)
	}
}

func TestConfig(t *testing.T) {
	for _, tc := range []struct {
		parm map[string]string
		ok   bool
	}{
		{map[string]string{"-n": "2", "-tx": "16"}, true},
		{map[string]string{"-n": "0"}, false},
		{map[string]string{"-rx": "2"}, false},
		{map[string]string{"-dev": "4b32"}, true},
		{map[string]string{"-dev": "1234"}, false},
	} {
		c := default_config()
		if err := c.parse(tc.parm); (err == nil) != tc.ok {
			t.Errorf("%v: got %v", tc.parm, err)
		}
	}
	c := default_config()
	c.parse(map[string]string{"-phy": "gpy"})
	if c.dev != intelgbe.DevIDEhlPchSgmii {
		t.Errorf("gpy device: got %v", c.dev)
	}
}

func TestDumpResourceMissing(t *testing.T) {
	w := new(bytes.Buffer)
	if err := dump_resource(default_config(), "/nonexistent/resource0", w); err == nil {
		t.Error("opened a missing resource")
	}
	if w.Len() != 0 {
		t.Error("printed:", w.String())
	}
}
