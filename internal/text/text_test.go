// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package text

import (
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
)

func TestSize(t *testing.T) {
	for _, test := range []struct {
		rect     image.Rectangle
		wantRows int
		wantCols int
	}{
		{rect: image.Rect(0, 0, 72, 72), wantRows: 5, wantCols: 10},
		{rect: image.Rect(0, 0, 144, 26), wantRows: 2, wantCols: 20},
		{rect: image.Rect(0, 0, 6, 12), wantRows: 0, wantCols: 0},
	} {
		rows, cols := Size(test.rect, basicfont.Face7x13)
		if rows != test.wantRows || cols != test.wantCols {
			t.Errorf("unexpected size for %v: got:%d×%d want:%d×%d",
				test.rect, rows, cols, test.wantRows, test.wantCols)
		}
	}
}

func TestFit(t *testing.T) {
	for _, test := range []struct {
		name string
		box  image.Rectangle
		src  image.Rectangle
		want image.Rectangle
	}{
		{
			name: "same",
			box:  image.Rect(0, 0, 100, 100),
			src:  image.Rect(0, 0, 10, 10),
			want: image.Rect(0, 0, 100, 100),
		},
		{
			name: "wide",
			box:  image.Rect(0, 0, 100, 100),
			src:  image.Rect(0, 0, 20, 10),
			want: image.Rect(0, 25, 100, 75),
		},
		{
			name: "tall",
			box:  image.Rect(0, 0, 100, 100),
			src:  image.Rect(0, 0, 10, 20),
			want: image.Rect(25, 0, 75, 100),
		},
		{
			name: "offset",
			box:  image.Rect(10, 10, 110, 60),
			src:  image.Rect(0, 0, 10, 10),
			want: image.Rect(35, 10, 85, 60),
		},
		{
			name: "empty",
			box:  image.Rect(0, 0, 100, 100),
			src:  image.Rectangle{},
			want: image.Rectangle{},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := Fit(test.box, test.src)
			if got != test.want {
				t.Errorf("unexpected rectangle: got:%v want:%v", got, test.want)
			}
		})
	}
}

var linesTests = []struct {
	name       string
	text       string
	rows, cols int
	words      bool
	want       []string
}{
	{
		name: "runes",
		text: "abcdefghij",
		rows: 5, cols: 4,
		want: []string{"abcd", "efgh", "ij"},
	},
	{
		name: "runes_truncated",
		text: "abcdefghij",
		rows: 2, cols: 4,
		want: []string{"abcd", "e..."},
	},
	{
		name: "words",
		text: "aaa bbb ccc",
		rows: 5, cols: 8,
		words: true,
		want:  []string{"aaa bbb", "ccc"},
	},
	{
		name: "too_narrow",
		text: "abc",
		rows: 5, cols: 3,
		want: nil,
	},
	{
		name: "no_rows",
		text: "abc",
		rows: 0, cols: 10,
		want: nil,
	},
}

func TestLines(t *testing.T) {
	for _, test := range linesTests {
		t.Run(test.name, func(t *testing.T) {
			got := Lines(test.text, test.rows, test.cols, test.words)
			if !cmp.Equal(got, test.want) {
				t.Errorf("unexpected lines:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestDraw(t *testing.T) {
	rect := image.Rectangle{Max: image.Point{X: 72, Y: 72}}
	for _, test := range []struct {
		name   string
		dx, dy float64
		// left and top report whether ink
		// is expected in the left and top
		// halves of the image.
		left, top bool
	}{
		{name: "topleft", dx: 0, dy: 0, left: true, top: true},
		{name: "topright", dx: 1, dy: 0, left: false, top: true},
		{name: "bottomleft", dx: 0, dy: 1, left: true, top: false},
	} {
		t.Run(test.name, func(t *testing.T) {
			dst := image.NewRGBA(rect)
			draw.Draw(dst, dst.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)
			Draw(dst, "ok", color.White, basicfont.Face7x13, test.dx, test.dy, true)

			ink := inkBounds(dst)
			if ink.Empty() {
				t.Fatal("no text drawn")
			}
			mid := rect.Max.Div(2)
			if gotLeft := ink.Max.X <= mid.X; gotLeft != test.left {
				t.Errorf("unexpected horizontal placement: ink=%v", ink)
			}
			if gotTop := ink.Max.Y <= mid.Y; gotTop != test.top {
				t.Errorf("unexpected vertical placement: ink=%v", ink)
			}
		})
	}

	t.Run("too_small", func(t *testing.T) {
		dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
		Draw(dst, "text", color.White, basicfont.Face7x13, 0, 0, true)
		if ink := inkBounds(dst); !ink.Empty() {
			t.Errorf("unexpected text drawn in too small image: %v", ink)
		}
	})
}

// inkBounds returns the bounds of non-black pixels in img.
func inkBounds(img *image.RGBA) image.Rectangle {
	var ink image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R != 0 || c.G != 0 || c.B != 0 {
				ink = ink.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return ink
}
