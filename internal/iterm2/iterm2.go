// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package iterm2 renders images to terminals supporting the iTerm2 inline
// image protocol.
package iterm2

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// IsCompatible returns whether the process appears to be running in an
// iTerm2 terminal.
func IsCompatible() bool {
	return os.Getenv("TERM_PROGRAM") == "iTerm.app"
}

// IsTerminal returns whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Image writes m to w as an inline image. If width is positive the image
// is scaled to width terminal cells, preserving its aspect ratio.
func Image(w io.Writer, m image.Image, width int) error {
	var buf bytes.Buffer
	buf.WriteString("\x1b]1337;File=inline=1")
	if width > 0 {
		fmt.Fprintf(&buf, ";width=%d;preserveAspectRatio=1", width)
	}
	buf.WriteByte(':')
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	err := png.Encode(enc, m)
	if err != nil {
		return err
	}
	err = enc.Close()
	if err != nil {
		return err
	}
	buf.WriteByte('\a')
	_, err = w.Write(buf.Bytes())
	return err
}

// Renderer writes a sequence of frames to the same location in a
// terminal.
type Renderer struct {
	w     io.Writer
	width int
	drawn bool
}

// NewRenderer returns a Renderer writing to w. If width is positive frames
// are scaled to width terminal cells.
func NewRenderer(w io.Writer, width int) *Renderer {
	return &Renderer{w: w, width: width}
}

// Render draws m over the previously rendered frame.
func (r *Renderer) Render(m image.Image) error {
	// Save the cursor before the first frame and
	// restore it before each subsequent frame.
	ctl := "\x1b7"
	if r.drawn {
		ctl = "\x1b8"
	}
	_, err := io.WriteString(r.w, ctl)
	if err != nil {
		return err
	}
	r.drawn = true
	return Image(r.w, m, r.width)
}

// Finish moves the cursor to the line following the rendered frames.
func (r *Renderer) Finish() error {
	if !r.drawn {
		return nil
	}
	_, err := io.WriteString(r.w, "\n")
	return err
}

// CellSize is the size of a terminal cell in points.
type CellSize struct {
	Width  float64
	Height float64
	Scale  float64
}

// ReportCellSize queries the terminal on f for its cell size.
func ReportCellSize(f *os.File) (sz CellSize, err error) {
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return CellSize{}, err
	}
	defer func() {
		err = errors.Join(err, term.Restore(int(f.Fd()), state))
	}()

	_, err = f.Write([]byte("\x1b]1337;ReportCellSize\a"))
	if err != nil {
		return CellSize{}, err
	}
	b := make([]byte, 64)
	n, err := f.Read(b)
	if err != nil {
		return CellSize{}, err
	}
	return parseCellSize(b[:n])
}

// parseCellSize parses a cell size report. The report is in the form
// "\x1b]1337;ReportCellSize=height;width[;scale]\x1b\\".
func parseCellSize(b []byte) (CellSize, error) {
	const prefix = "ReportCellSize="
	s := string(b)
	start := strings.Index(s, prefix)
	if start < 0 {
		return CellSize{}, fmt.Errorf("invalid cell size report: %q", s)
	}
	s = s[start+len(prefix):]
	end := strings.Index(s, "\x1b\\")
	if end < 0 {
		return CellSize{}, fmt.Errorf("unterminated cell size report: %q", s)
	}
	parts := strings.Split(s[:end], ";")
	if len(parts) < 2 || len(parts) > 3 {
		return CellSize{}, fmt.Errorf("invalid cell size report: %q", s[:end])
	}
	vals := []float64{0, 0, 1}
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return CellSize{}, fmt.Errorf("invalid cell size report: %w", err)
		}
		vals[i] = v
	}
	return CellSize{Height: vals[0], Width: vals[1], Scale: vals[2]}, nil
}

// Resolution is the pixel resolution of a terminal window.
type Resolution struct {
	Width  int
	Height int
	// CellWidth and CellHeight are the
	// pixel dimensions of a single cell.
	CellWidth  int
	CellHeight int
}

// PixelResolution returns the pixel resolution of the terminal on f.
func PixelResolution(f *os.File) (Resolution, error) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return Resolution{}, err
	}
	sz, err := ReportCellSize(f)
	if err != nil {
		return Resolution{}, err
	}
	cw := int(sz.Width * sz.Scale)
	ch := int(sz.Height * sz.Scale)
	return Resolution{
		Width:      w * cw,
		Height:     h * ch,
		CellWidth:  cw,
		CellHeight: ch,
	}, nil
}
