// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package playback

import (
	"sync"
	"time"

	"github.com/kortschak/jiffy/internal/animation"
)

// TickSource is a periodic callback source driving playback.
type TickSource interface {
	// Start calls tick once for every stride ticks of the source
	// until the returned stop function is called. Calls to tick are
	// made sequentially from a single goroutine. The stop function
	// must not return until any running call to tick has returned
	// and no further calls will be made. Calling stop from within
	// tick is not permitted.
	Start(stride int, tick func()) (stop func())
}

// Display is a TickSource backed by a time.Ticker.
type Display struct {
	// Rate is the number of ticks per second at a stride of one.
	// If Rate is not positive, animation.MaxRate is used.
	Rate float64
}

// Start implements the TickSource interface.
func (d Display) Start(stride int, tick func()) (stop func()) {
	rate := d.Rate
	if rate <= 0 {
		rate = animation.MaxRate
	}
	stride = max(stride, 1)
	period := time.Duration(float64(stride) * float64(time.Second) / rate)
	t := time.NewTicker(max(period, time.Microsecond))
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case <-t.C:
				select {
				case <-done:
					return
				default:
				}
				tick()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
			<-exited
		})
	}
}
