// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"sync"

	"golang.org/x/image/draw"
)

// GIF is a Decoder for animated GIF data.
//
// GIF values may be shared between goroutines.
type GIF struct {
	*gif.GIF

	bounds     image.Rectangle
	background image.Image

	// mu protects comp and last.
	mu   sync.Mutex
	comp *compositor
	last int
}

// DecodeGIF returns a GIF decoded from the provided io.Reader.
func DecodeGIF(r io.Reader) (*GIF, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, err
	}
	return FromGIF(g)
}

// FromGIF returns a GIF wrapping g. GIF delay, disposal and global
// background index values are checked for validity. The frames of g must
// not be altered after the call.
func FromGIF(g *gif.GIF) (*GIF, error) {
	if len(g.Image) == 0 {
		return nil, errors.New("no frames")
	}
	if len(g.Image) != len(g.Delay) && g.Delay != nil {
		return nil, fmt.Errorf("mismatched image count and delay count: %d != %d", len(g.Image), len(g.Delay))
	}
	if len(g.Image) != len(g.Disposal) && g.Disposal != nil {
		return nil, fmt.Errorf("mismatched image count and disposal count: %d != %d", len(g.Image), len(g.Disposal))
	}
	var background image.Image
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && len(pal) != 0 {
		if idx >= len(pal) {
			return nil, fmt.Errorf("global background colour index not in palette: %d", idx)
		}
		background = &image.Uniform{pal[idx]}
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		// Logical screen size is not set, so use the union of frame
		// bounds.
		for _, frame := range g.Image {
			bounds = bounds.Union(frame.Bounds())
		}
	}
	return &GIF{GIF: g, bounds: bounds, background: background, last: -1}, nil
}

func openGIF(r io.Reader) (Decoder, error) {
	g, err := DecodeGIF(r)
	if err != nil {
		return nil, &DecodeError{Frame: -1, Err: err}
	}
	return g, nil
}

// Frames returns the number of frames in the GIF.
func (g *GIF) Frames() int {
	return len(g.Image)
}

// Metadata returns the delay metadata for frame i. GIF delays are held in
// hundredths of a second.
func (g *GIF) Metadata(i int) (FrameMetadata, error) {
	if i < 0 || i >= len(g.Image) {
		return FrameMetadata{}, fmt.Errorf("frame index out of range: %d", i)
	}
	var delay float64
	if g.Delay != nil {
		delay = float64(g.Delay[i]) / 100
	}
	return FrameMetadata{
		DelayUnclamped: delay,
		DelayClamped:   clamp(delay),
		Container:      GIFContainer,
	}, nil
}

// Loops returns the number of times the animation is shown. Zero
// means forever.
func (g *GIF) Loops() int {
	switch {
	case g.LoopCount == 0:
		return 0
	case g.LoopCount < 0:
		return 1
	default:
		return g.LoopCount + 1
	}
}

// DecodeFrame returns the composed frame i.
func (g *GIF) DecodeFrame(i int, fast bool) (image.Image, error) {
	if i < 0 || i >= len(g.Image) {
		return nil, &DecodeError{Frame: i, Err: fmt.Errorf("frame index out of range")}
	}
	if !fast {
		comp := newCompositor(g.bounds, g.background)
		g.compose(comp, 0, i)
		return comp.canvas, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.comp == nil || i <= g.last {
		g.comp = newCompositor(g.bounds, g.background)
		g.last = -1
	}
	g.compose(g.comp, g.last+1, i)
	g.last = i
	return g.comp.snapshot(), nil
}

// compose draws frames from through to into comp.
func (g *GIF) compose(comp *compositor, from, to int) {
	for f := from; f <= to; f++ {
		dispose := disposeNone
		if g.Disposal != nil {
			switch g.Disposal[f] {
			case gif.DisposalBackground:
				dispose = disposeBackground
			case gif.DisposalPrevious:
				dispose = disposePrevious
			}
		}
		frame := g.Image[f]
		comp.step(frame, frame.Bounds(), frame.Bounds().Min, draw.Over, dispose)
	}
}
