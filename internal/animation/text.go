// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"

	"github.com/kortschak/jiffy/internal/text"
)

// Text is a scrolling text animation.
type Text string

// textDelay is the delay between text animation frames in hundredths of a
// second.
const textDelay = 15

// errBoundTooSmall is returned when text can not be presented in a bound.
var errBoundTooSmall = errors.New("bound too small")

// GIF returns a GIF containing animation frames required to present the full
// length of the receiver within the given bounds using [basicfont.Face7x13].
// The provided palette must have at least two colors, which will be indexed
// by fg and bg to provide the foreground and background colors for the
// text animation. Text that fits within the bounds is rendered as a single
// centered frame that is not looped.
func (t Text) GIF(bound image.Rectangle, pal color.Palette, fg, bg byte) (*GIF, error) {
	rows, cols := text.Size(bound, basicfont.Face7x13)
	s := string(t)
	static := fits(s, rows, cols)
	if !static {
		if rows*cols < 4 {
			return nil, errBoundTooSmall
		}
		// Lead in with blank cells so the text scrolls
		// in from the bottom right.
		s = strings.Repeat(" ", rows*cols-4) + s
	}

	g := &gif.GIF{
		Config: image.Config{
			ColorModel: pal,
			Width:      bound.Dx(),
			Height:     bound.Dy(),
		},
		BackgroundIndex: bg,
	}
	var delta float64
	if static {
		g.LoopCount = -1
		delta = 0.5
	}
	background := &image.Uniform{pal[bg]}
	addFrame := func(s string) {
		dst := image.NewPaletted(bound, pal)
		draw.Draw(dst, dst.Bounds(), background, image.Point{}, draw.Src)
		text.Draw(dst, s, pal[fg], basicfont.Face7x13, delta, delta, static)
		g.Image = append(g.Image, dst)
		g.Delay = append(g.Delay, textDelay)
	}
	if static {
		addFrame(s)
	} else {
		for i := range s {
			addFrame(s[i:])
		}
	}
	return FromGIF(g)
}

// fits returns whether s can be presented in a single frame of
// rows×cols cells.
func fits(s string, rows, cols int) bool {
	if utf8.RuneCountInString(s) > rows*cols {
		return false
	}
	lines := text.Wrap(s, cols)
	if len(lines) > rows {
		return false
	}
	for _, l := range lines {
		if utf8.RuneCountInString(l) > cols {
			return false
		}
	}
	return true
}

// ErrorImage returns an Image presenting the text of err within bound.
// The returned error is err, joined with any error that occurred while
// rendering it.
func ErrorImage(err error, bound image.Rectangle) (*Image, error) {
	pal := color.Palette{color.Black, color.White}
	g, gifErr := Text(err.Error()).GIF(bound, pal, 1, 0)
	if gifErr != nil {
		return nil, errors.Join(err, gifErr)
	}
	img, imgErr := New(g, DefaultQuality)
	if imgErr != nil {
		return nil, errors.Join(err, imgErr)
	}
	return img, err
}
