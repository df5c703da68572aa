// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package gbe

import (
	"errors"
	"fmt"
	"time"

	redigo "github.com/garyburd/redigo/redis"
	"github.com/platinasystems/undi/undi"
)

const (
	redis_timeout = 500 * time.Millisecond
	redis_hash    = "gbe"
)

var errNoRedis = errors.New("no redis server; use -redis ADDR")

func (s *session) dial(addr string) (err error) {
	s.conn, err = redigo.Dial("tcp", addr,
		redigo.DialConnectTimeout(redis_timeout),
		redigo.DialReadTimeout(redis_timeout),
		redigo.DialWriteTimeout(redis_timeout))
	return
}

// hash_fields returns the published state of x as hash fields.
func (s *session) hash_fields(x *iface) (map[string]interface{}, error) {
	prefix := x.String() + "."
	m := make(map[string]interface{})

	c, err := s.call(x, undi.OpGetState, 0, nil, nil)
	if err != nil {
		return nil, err
	}
	st := c.StatFlags.State()
	m[prefix+"state"] = state_name(st)
	d := x.a.Dev()
	m[prefix+"address"] = d.Addr.String()
	m[prefix+"instance"] = x.a.Instance.String()
	if st != undi.StateInitialized {
		return m, nil
	}
	m[prefix+"link"] = d.Link().String()
	stats, err := s.statistics(x)
	if err != nil {
		return nil, err
	}
	for name, v := range stats {
		m[prefix+name] = v
	}
	return m, nil
}

// publish writes every interface's state into the redis hash.
func (s *session) publish(args ...string) error {
	if err := unexpected(args); err != nil {
		return err
	}
	if s.conn == nil {
		return errNoRedis
	}
	for _, x := range s.ifs {
		m, err := s.hash_fields(x)
		if err != nil {
			return err
		}
		if err = s.conn.Send("HMSET", redigo.Args{}.Add(redis_hash).AddFlat(m)...); err != nil {
			return err
		}
	}
	if err := s.conn.Flush(); err != nil {
		return err
	}
	for range s.ifs {
		if _, err := s.conn.Receive(); err != nil {
			return fmt.Errorf("HMSET %s: %w", redis_hash, err)
		}
	}
	fmt.Fprintln(s.w, "published", len(s.ifs), "interfaces to", redis_hash)
	return nil
}
