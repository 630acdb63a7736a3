// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"
)

// disposalGIF returns a 4×4 GIF with a red background frame, a 2×2 blue
// frame at the origin that is restored to the previous content, a 1×1 green
// frame at (3,3) and a 2×2 black frame at (2,0) that is disposed to the
// background.
func disposalGIF(t *testing.T) *GIF {
	t.Helper()
	g := &gif.GIF{
		Config: image.Config{Width: 4, Height: 4},
		Image: []*image.Paletted{
			filled(image.Rect(0, 0, 4, 4), 0),
			filled(image.Rect(0, 0, 2, 2), 2),
			filled(image.Rect(3, 3, 4, 4), 1),
			filled(image.Rect(2, 0, 4, 2), 3),
			filled(image.Rect(3, 3, 4, 4), 2),
		},
		Delay: []int{10, 10, 10, 10, 10},
		Disposal: []byte{
			gif.DisposalNone,
			gif.DisposalPrevious,
			gif.DisposalNone,
			gif.DisposalBackground,
			gif.DisposalNone,
		},
	}
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, g)
	if err != nil {
		t.Fatalf("unexpected error encoding gif: %v", err)
	}
	dec, err := DecodeGIF(&buf)
	if err != nil {
		t.Fatalf("unexpected error decoding gif: %v", err)
	}
	return dec
}

var disposalTests = []struct {
	frame int
	at    image.Point
	want  color.Color
}{
	{frame: 0, at: image.Pt(0, 0), want: red},
	{frame: 1, at: image.Pt(0, 0), want: blue},
	{frame: 1, at: image.Pt(3, 3), want: red},
	{frame: 2, at: image.Pt(0, 0), want: red}, // Restored to previous.
	{frame: 2, at: image.Pt(3, 3), want: green},
	{frame: 3, at: image.Pt(2, 0), want: color.RGBA{A: 0xff}},
	{frame: 4, at: image.Pt(2, 0), want: color.RGBA{}}, // Disposed to transparent.
	{frame: 4, at: image.Pt(3, 3), want: blue},
	{frame: 4, at: image.Pt(0, 3), want: red},
}

func TestGIFDisposal(t *testing.T) {
	for _, fast := range []bool{false, true} {
		g := disposalGIF(t)
		for _, test := range disposalTests {
			f, err := g.DecodeFrame(test.frame, fast)
			if err != nil {
				t.Fatalf("unexpected error decoding frame %d: %v", test.frame, err)
			}
			got := color.RGBAModel.Convert(f.At(test.at.X, test.at.Y))
			if got != color.RGBAModel.Convert(test.want) {
				t.Errorf("unexpected color at %v in frame %d with fast=%t: got:%v want:%v",
					test.at, test.frame, fast, got, test.want)
			}
		}
	}
}

func TestFastDecodeConsistency(t *testing.T) {
	g := disposalGIF(t)
	// Forwards, repeated, skipping and backwards.
	for _, i := range []int{0, 1, 1, 3, 4, 2, 0, 4} {
		fast, err := g.DecodeFrame(i, true)
		if err != nil {
			t.Fatalf("unexpected error decoding frame %d: %v", i, err)
		}
		slow, err := g.DecodeFrame(i, false)
		if err != nil {
			t.Fatalf("unexpected error decoding frame %d: %v", i, err)
		}
		if !bytes.Equal(fast.(*image.RGBA).Pix, slow.(*image.RGBA).Pix) {
			t.Errorf("fast and slow decode differ for frame %d", i)
		}
	}
}

func TestFastDecodeIndependence(t *testing.T) {
	g := disposalGIF(t)
	f0, err := g.DecodeFrame(0, true)
	if err != nil {
		t.Fatalf("unexpected error decoding frame: %v", err)
	}
	_, err = g.DecodeFrame(1, true)
	if err != nil {
		t.Fatalf("unexpected error decoding frame: %v", err)
	}
	if got := color.RGBAModel.Convert(f0.At(0, 0)); got != red {
		t.Errorf("returned frame altered by later decode: got:%v", got)
	}
}

func TestDecodeFrameOutOfRange(t *testing.T) {
	g := disposalGIF(t)
	for _, i := range []int{-1, 5} {
		for _, fast := range []bool{false, true} {
			_, err := g.DecodeFrame(i, fast)
			if err == nil {
				t.Errorf("expected error for frame %d", i)
			}
		}
	}
}
