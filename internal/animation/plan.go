// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Quality presets.
const (
	QualityFull   = 1.0
	QualityHigh   = 0.8
	QualityMedium = 0.5
	QualityLow    = 0.2
)

// DefaultQuality is the quality used when a requested quality is out of
// range.
const DefaultQuality = QualityFull

// ParseQuality returns the quality corresponding to a preset name, "full",
// "high", "medium" or "low", or a decimal number in (0, 1].
func ParseQuality(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full":
		return QualityFull, nil
	case "high":
		return QualityHigh, nil
	case "medium":
		return QualityMedium, nil
	case "low":
		return QualityLow, nil
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quality: %q", s)
	}
	if !validQuality(q) {
		return 0, fmt.Errorf("quality out of range (0, 1]: %v", q)
	}
	return q, nil
}

func validQuality(q float64) bool {
	return q > 0 && q <= 1
}

// intervals is the list of candidate refresh divisors of MaxRate, in the
// order they are tried. The corresponding display rates go from 1 to 60
// frames per second.
var intervals = [...]int{60, 30, 20, 15, 12, 10, 6, 5, 4, 3, 2, 1}

// Intervals returns the candidate refresh divisors in the order they are
// tried by NewPlan.
func Intervals() []int {
	return slices.Clone(intervals[:])
}

// MaxRate is the display rate, in frames per second, that refresh divisors
// stride over.
const MaxRate = 60

const (
	// unsetDelay is the delay below which an unclamped delay is
	// considered absent.
	unsetDelay = 1e-6

	// tickEpsilon absorbs accumulated floating point error when
	// assigning frame end times to display ticks.
	tickEpsilon = 1e-6
)

// Plan is the reduced display sequence for an animation.
type Plan struct {
	// RefreshDivisor is the number of host ticks at MaxRate
	// between display slot advances. It is one of Intervals.
	RefreshDivisor int `json:"refresh_divisor"`

	// TotalFrames is the number of display slots.
	TotalFrames int `json:"total_frames"`

	// DisplayOrder is the source frame to show for each
	// display slot. It is non-decreasing and its last
	// element is the last source frame.
	DisplayOrder []int `json:"display_order"`

	// MemoryMB is the estimated size in megabytes of all
	// display slots decoded as 32-bit pixels.
	MemoryMB int `json:"memory_mb"`

	// Collisions is the number of adjacent source frames
	// that share a display tick at RefreshDivisor.
	Collisions int `json:"collisions"`
}

// Rate returns the display rate of the plan in frames per second.
func (p Plan) Rate() float64 {
	if p.RefreshDivisor == 0 {
		return 0
	}
	return float64(MaxRate) / float64(p.RefreshDivisor)
}

// Clone returns a copy of the plan that does not share the display order
// with the receiver.
func (p Plan) Clone() Plan {
	p.DisplayOrder = slices.Clone(p.DisplayOrder)
	return p
}

// NewPlan returns the display plan for the provided source frame delays,
// in seconds, at the given quality. A quality outside (0, 1] is replaced
// with DefaultQuality.
//
// Each candidate divisor returned by Intervals is tried in order. Source
// frames whose end times fall into the same display tick collide, and the
// first divisor with no more than len(delays)*(1-quality) collisions is
// chosen. The last candidate is always acceptable.
func NewPlan(delays []float64, quality float64) (Plan, error) {
	if len(delays) == 0 {
		return Plan{}, errors.New("no frame delays")
	}
	if !validQuality(quality) {
		quality = DefaultQuality
	}
	for i, d := range delays {
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return Plan{}, fmt.Errorf("invalid delay for frame %d: %v", i, d)
		}
	}

	// Times at which each frame ends.
	ends := make([]float64, len(delays))
	var t float64
	for i, d := range delays {
		t += d
		ends[i] = t
	}

	budget := float64(len(delays))*(1-quality) + tickEpsilon
	ticks := make([]int, len(delays))
	for i, interval := range intervals {
		rate := float64(MaxRate / interval)
		collisions := 0
		for j, end := range ends {
			ticks[j] = int(math.Floor(end*rate + tickEpsilon))
			if j != 0 && ticks[j] == ticks[j-1] {
				collisions++
			}
		}
		if float64(collisions) > budget && i != len(intervals)-1 {
			continue
		}
		order := displayOrder(ticks)
		return Plan{
			RefreshDivisor: interval,
			TotalFrames:    len(order),
			DisplayOrder:   order,
			Collisions:     collisions,
		}, nil
	}
	panic("unreachable")
}

// displayOrder returns the source frame for each display slot given the
// display tick in which each source frame ends. A slot shows the earliest
// source frame that has not ended before the slot's tick. The last slot
// always shows the last source frame so that playback reaches the end of
// the animation before looping.
func displayOrder(ticks []int) []int {
	last := len(ticks) - 1
	n := max(ticks[last], 1)
	order := make([]int, 0, n)
	src := 0
	for slot := 1; slot <= n; slot++ {
		for src < last && slot > ticks[src] {
			src++
		}
		order = append(order, src)
	}
	order[n-1] = last
	return order
}
