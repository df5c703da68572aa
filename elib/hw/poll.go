// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

var ErrTimeout = errors.New("timeout")

// Poller retries a condition a bounded number of times.
type Poller struct {
	Interval time.Duration
	// Max grows the interval exponentially toward Max when larger than Interval.
	Max   time.Duration
	Tries int
	// Sleep defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Poll calls done up to p.Tries times, sleeping between calls.
// It returns the number of calls made and ErrTimeout if done never
// reported true.  An error from done stops polling.
func (p Poller) Poll(done func() (bool, error)) (n int, err error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	max := p.Max
	if max < p.Interval {
		max = p.Interval
	}
	b := &backoff.Backoff{
		Min:    p.Interval,
		Max:    max,
		Factor: 2,
	}
	if max == p.Interval {
		b.Factor = 1
	}
	for n < p.Tries {
		var ok bool
		n++
		if ok, err = done(); err != nil || ok {
			return
		}
		if n < p.Tries && p.Interval > 0 {
			sleep(b.Duration())
		}
	}
	err = ErrTimeout
	return
}

// Delay sleeps using the poller's sleep function.
func (p Poller) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	if p.Sleep != nil {
		p.Sleep(d)
	} else {
		time.Sleep(d)
	}
}
