// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"
)

const sentence = "Lorem ipsum dolor sit amet, consectetur adipisci elit, sed eiusmod tempor incidunt ut labore et dolore magna aliqua."

var textGIFTests = []struct {
	name       string
	text       string
	rect       image.Rectangle
	wantFrames int
}{
	{
		name:       "small",
		text:       "text",
		rect:       image.Rect(0, 0, 72, 72),
		wantFrames: 1,
	},
	{
		name:       "long_word",
		text:       "reallylongword",
		rect:       image.Rect(0, 0, 72, 72),
		wantFrames: 1,
	},
	{
		name:       "sentence",
		text:       sentence,
		rect:       image.Rect(0, 0, 72, 72),
		wantFrames: 5*10 - 4 + len(sentence),
	},
	{
		name:       "sentence_compress",
		text:       sentence,
		rect:       image.Rect(0, 0, 144, 144),
		wantFrames: 1,
	},
}

func TestTextGIF(t *testing.T) {
	pal := color.Palette{color.Black, color.White}
	for _, test := range textGIFTests {
		t.Run(test.name, func(t *testing.T) {
			g, err := Text(test.text).GIF(test.rect, pal, 1, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := g.Frames(); got != test.wantFrames {
				t.Errorf("unexpected number of frames: got:%d want:%d", got, test.wantFrames)
			}
			if test.wantFrames == 1 && g.Loops() != 1 {
				t.Errorf("unexpected loop count for static text: %d", g.Loops())
			}
			f, err := g.DecodeFrame(g.Frames()-1, false)
			if err != nil {
				t.Fatalf("unexpected error decoding last frame: %v", err)
			}
			if f.Bounds() != test.rect {
				t.Errorf("unexpected frame bounds: got:%v want:%v", f.Bounds(), test.rect)
			}
			if !hasInk(f) {
				t.Error("no text drawn in last frame")
			}
		})
	}
}

func TestTextGIFTooSmall(t *testing.T) {
	pal := color.Palette{color.Black, color.White}
	_, err := Text("text").GIF(image.Rect(0, 0, 6, 12), pal, 1, 0)
	if !errors.Is(err, errBoundTooSmall) {
		t.Errorf("unexpected error for too small bound: %v", err)
	}
}

func TestErrorImage(t *testing.T) {
	rect := image.Rect(0, 0, 72, 72)
	for _, test := range []struct {
		name       string
		err        error
		wantStatic bool
	}{
		{name: "short", err: errors.New("boom"), wantStatic: true},
		{name: "long", err: errors.New(strings.Repeat("failure ", 10)), wantStatic: false},
	} {
		t.Run(test.name, func(t *testing.T) {
			img, err := ErrorImage(test.err, rect)
			if !errors.Is(err, test.err) {
				t.Errorf("unexpected error: got:%v want:%v", err, test.err)
			}
			if img == nil {
				t.Fatal("unexpected nil image")
			}
			if img.Static() != test.wantStatic {
				t.Errorf("unexpected static state: got:%t want:%t", img.Static(), test.wantStatic)
			}
			if img.Bounds() != rect {
				t.Errorf("unexpected bounds: got:%v want:%v", img.Bounds(), rect)
			}
			if img.TotalFrames() != len(img.Plan().DisplayOrder) {
				t.Errorf("inconsistent plan: %d slots with %d entries", img.TotalFrames(), len(img.Plan().DisplayOrder))
			}
		})
	}
}

func TestErrorImageTooSmall(t *testing.T) {
	want := errors.New("a long error message that cannot be shown")
	img, err := ErrorImage(want, image.Rect(0, 0, 6, 12))
	if img != nil {
		t.Error("unexpected image for too small bound")
	}
	if !errors.Is(err, want) {
		t.Errorf("unexpected error: got:%v want:%v", err, want)
	}
	if !errors.Is(err, errBoundTooSmall) {
		t.Errorf("missing rendering error: %v", err)
	}
}

// hasInk returns whether any pixel in img is not black.
func hasInk(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r != 0 || g != 0 || b != 0 {
				return true
			}
		}
	}
	return false
}
