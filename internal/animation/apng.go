// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/kettek/apng"
	"golang.org/x/image/draw"
)

// APNG is a Decoder for animated PNG data. A PNG without animation
// control data is treated as a single frame animation.
//
// APNG values may be shared between goroutines.
type APNG struct {
	frames []apng.Frame
	loops  int
	bounds image.Rectangle

	// mu protects comp and last.
	mu   sync.Mutex
	comp *compositor
	last int
}

// DecodeAPNG returns an APNG decoded from the provided io.Reader. The
// default image is only included as a frame when it is part of the
// animation.
func DecodeAPNG(r io.Reader) (*APNG, error) {
	a, err := apng.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	frames := make([]apng.Frame, 0, len(a.Frames))
	for _, f := range a.Frames {
		if f.IsDefault {
			continue
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		if len(a.Frames) == 0 {
			return nil, fmt.Errorf("no frames")
		}
		// A static PNG.
		frames = a.Frames[:1]
	}
	var bounds image.Rectangle
	for _, f := range frames {
		if f.Image == nil {
			return nil, fmt.Errorf("missing frame image data")
		}
		b := f.Image.Bounds()
		bounds = bounds.Union(image.Rectangle{Max: b.Size()}.Add(image.Point{X: f.XOffset, Y: f.YOffset}))
	}
	if frames[0].XOffset != 0 || frames[0].YOffset != 0 {
		return nil, fmt.Errorf("first frame offset not at origin: (%d,%d)", frames[0].XOffset, frames[0].YOffset)
	}
	return &APNG{frames: frames, loops: int(a.LoopCount), bounds: bounds, last: -1}, nil
}

func openAPNG(r io.Reader) (Decoder, error) {
	a, err := DecodeAPNG(r)
	if err != nil {
		return nil, &DecodeError{Frame: -1, Err: err}
	}
	return a, nil
}

// Frames returns the number of animation frames.
func (a *APNG) Frames() int {
	return len(a.frames)
}

// Loops returns the number of times the animation is shown. Zero means
// forever.
func (a *APNG) Loops() int {
	return a.loops
}

// Metadata returns the delay metadata for frame i. A zero delay
// denominator is treated as 100.
func (a *APNG) Metadata(i int) (FrameMetadata, error) {
	if i < 0 || i >= len(a.frames) {
		return FrameMetadata{}, fmt.Errorf("frame index out of range: %d", i)
	}
	delay := a.frames[i].GetDelay()
	return FrameMetadata{
		DelayUnclamped: delay,
		DelayClamped:   clamp(delay),
		Container:      PNGContainer,
	}, nil
}

// DecodeFrame returns the composed frame i.
func (a *APNG) DecodeFrame(i int, fast bool) (image.Image, error) {
	if i < 0 || i >= len(a.frames) {
		return nil, &DecodeError{Frame: i, Err: fmt.Errorf("frame index out of range")}
	}
	if !fast {
		comp := newCompositor(a.bounds, nil)
		a.compose(comp, 0, i)
		return comp.canvas, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.comp == nil || i <= a.last {
		a.comp = newCompositor(a.bounds, nil)
		a.last = -1
	}
	a.compose(a.comp, a.last+1, i)
	a.last = i
	return a.comp.snapshot(), nil
}

// compose draws frames from through to into comp.
func (a *APNG) compose(comp *compositor, from, to int) {
	for f := from; f <= to; f++ {
		frame := a.frames[f]
		dispose := disposeNone
		switch frame.DisposeOp {
		case apng.DISPOSE_OP_BACKGROUND:
			dispose = disposeBackground
		case apng.DISPOSE_OP_PREVIOUS:
			// The first frame has no previous
			// content, so it is cleared.
			if f == 0 {
				dispose = disposeBackground
			} else {
				dispose = disposePrevious
			}
		}
		op := draw.Over
		if frame.BlendOp == apng.BLEND_OP_SOURCE {
			op = draw.Src
		}
		b := frame.Image.Bounds()
		comp.step(frame.Image, b, image.Point{X: frame.XOffset, Y: frame.YOffset}, op, dispose)
	}
}
