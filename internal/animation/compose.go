// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"image"

	"golang.org/x/image/draw"
)

// disposal is the operation applied to a frame's region before the next
// frame is drawn.
type disposal int

const (
	disposeNone disposal = iota
	disposeBackground
	disposePrevious
)

// compositor rebuilds full frames from the sub-frame rectangles held by
// GIF and APNG containers.
type compositor struct {
	canvas     *image.RGBA
	background image.Image

	// saved holds the canvas content under the last
	// drawn frame when its disposal is disposePrevious.
	saved   *image.RGBA
	dispose disposal
	rect    image.Rectangle
}

func newCompositor(bounds image.Rectangle, background image.Image) *compositor {
	if background == nil {
		background = image.Transparent
	}
	return &compositor{
		canvas:     image.NewRGBA(bounds),
		background: background,
	}
}

// step disposes of the previous frame and then draws the sr region of src
// into the canvas at dp with the provided operator.
func (c *compositor) step(src image.Image, sr image.Rectangle, dp image.Point, op draw.Op, dispose disposal) {
	switch c.dispose {
	case disposeBackground:
		draw.Copy(c.canvas, c.rect.Min, c.background, c.rect, draw.Src, nil)
	case disposePrevious:
		if c.saved != nil {
			draw.Copy(c.canvas, c.rect.Min, c.saved, c.saved.Bounds(), draw.Src, nil)
		}
	}

	c.rect = image.Rectangle{Min: dp, Max: dp.Add(sr.Size())}.Intersect(c.canvas.Bounds())
	c.dispose = dispose
	c.saved = nil
	if dispose == disposePrevious {
		c.saved = image.NewRGBA(c.rect)
		draw.Copy(c.saved, c.rect.Min, c.canvas, c.rect, draw.Src, nil)
	}
	draw.Copy(c.canvas, dp, src, sr, op, nil)
}

// snapshot returns a copy of the current canvas.
func (c *compositor) snapshot() *image.RGBA {
	dst := image.NewRGBA(c.canvas.Bounds())
	copy(dst.Pix, c.canvas.Pix)
	return dst
}
