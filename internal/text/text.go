// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package text provides layout helpers for placing text and scaled frames
// within image bounds.
package text

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const ellipsis = "..."

// Size returns the size, in font rows and columns, of the bounding rectangle.
// Columns are separated by a single pixel.
func Size(bound image.Rectangle, fnt *basicfont.Face) (rows, cols int) {
	rows = bound.Dy() / fnt.Height
	cols = bound.Dx() / (fnt.Width + 1)
	return rows, cols
}

// Fit returns the largest rectangle with the aspect ratio of src that fits
// in box, centred within box. It is intended for use with a draw.Scaler.
//
//	draw.BiLinear.Scale(dst, Fit(dst.Bounds(), src.Bounds()), src, src.Bounds(), op, opts)
func Fit(box, src image.Rectangle) image.Rectangle {
	dx, dy := src.Dx(), src.Dy()
	if dx == 0 || dy == 0 {
		return image.Rectangle{Min: box.Min, Max: box.Min}
	}
	switch {
	case dx*box.Dy() < dy*box.Dx():
		dx, dy = dx*box.Dy()/dy, box.Dy()
	case dx*box.Dy() > dy*box.Dx():
		dx, dy = box.Dx(), dy*box.Dx()/dx
	default:
		return box
	}
	min := box.Min.Add(image.Point{X: (box.Dx() - dx) / 2, Y: (box.Dy() - dy) / 2})
	return image.Rectangle{Min: min, Max: min.Add(image.Point{X: dx, Y: dy})}
}

// Lines breaks s into at most rows lines of at most cols runes. If words is
// true, lines are broken at word boundaries where possible. When s does not
// fit, the last line is truncated and marked with an ellipsis.
func Lines(s string, rows, cols int, words bool) []string {
	if rows <= 0 || cols <= len(ellipsis) {
		return nil
	}
	var lines []string
	if words {
		lines = Wrap(s, cols)
	} else {
		for r := []rune(s); len(r) != 0; {
			n := min(cols, len(r))
			lines = append(lines, string(r[:n]))
			r = r[n:]
		}
	}
	if len(lines) > rows {
		lines = lines[:rows]
		last := []rune(lines[rows-1])
		if len(last) > cols-len(ellipsis) {
			last = last[:cols-len(ellipsis)]
		}
		lines[rows-1] = string(last) + ellipsis
	}
	return lines
}

// Wrap breaks s into lines of at most cols runes at word boundaries where
// possible. Words longer than cols are cut.
func Wrap(s string, cols int) []string {
	wrapper := wrap.NewWrapper()
	wrapper.StripTrailingNewline = true
	wrapper.CutLongWords = true
	lines := strings.Split(wrapper.Wrap(s, cols), "\n")
	if len(lines) < 2 || lines[0] != "" {
		for i, l := range lines {
			lines[i] = strings.TrimSpace(l)
		}
	}
	return lines
}

// Draw draws s into dst in the provided color. The position of the inked
// text within dst is given by dx and dy in [0, 1], from the top left at 0
// to the bottom right at 1. If words is true, text spanning lines is broken
// at word boundaries where possible.
func Draw(dst draw.Image, s string, col color.Color, fnt *basicfont.Face, dx, dy float64, words bool) {
	b := dst.Bounds()
	rows, cols := Size(b, fnt)
	lines := Lines(s, rows, cols, words)
	if len(lines) == 0 {
		return
	}

	dots := make([]fixed.Point26_6, len(lines))
	var ink fixed.Rectangle26_6
	for i, l := range lines {
		dots[i] = fixed.P(b.Min.X, b.Min.Y+fnt.Ascent+fnt.Height*i)
		lb, _ := font.BoundString(fnt, l)
		ink = ink.Union(lb.Add(dots[i]))
	}
	var shift fixed.Point26_6
	if !ink.Empty() && (dx != 0 || dy != 0) {
		space := b.Max.Sub(image.Point{X: ink.Max.X.Ceil(), Y: ink.Max.Y.Ceil()})
		shift = fixed.P(int(float64(space.X)*dx), int(float64(space.Y)*dy))
	}

	d := font.Drawer{Dst: dst, Src: &image.Uniform{col}, Face: fnt}
	for i, l := range lines {
		d.Dot = dots[i].Add(shift)
		d.DrawString(l)
	}
}
