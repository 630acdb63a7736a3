// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned when image data can be read, but does
// not hold frame delay metadata in a recognised animated container.
var ErrUnsupportedFormat = errors.New("unsupported animated image format")

// DecodeError is returned when a container can not be opened or a frame
// within it can not be decoded.
type DecodeError struct {
	// Frame is the source frame index that failed,
	// or -1 if the container could not be opened.
	Frame int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("decode container: %v", e.Err)
	}
	return fmt.Sprintf("decode frame %d: %v", e.Frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Container is the kind of frame metadata held by an animated image.
type Container int

const (
	Unknown Container = iota
	GIFContainer
	PNGContainer
)

func (c Container) String() string {
	switch c {
	case GIFContainer:
		return "gif"
	case PNGContainer:
		return "png"
	default:
		return "unknown"
	}
}

// FrameMetadata is the timing metadata of a single source frame.
type FrameMetadata struct {
	// DelayUnclamped is the delay in seconds as encoded.
	DelayUnclamped float64
	// DelayClamped is the delay in seconds after applying
	// the minimum delay rule used by browsers.
	DelayClamped float64
	// Container is the kind of container the frame was read from.
	Container Container
}

// Decoder is an opened animated image container.
type Decoder interface {
	// Frames returns the number of source frames.
	Frames() int

	// Metadata returns the timing metadata for frame i.
	Metadata(i int) (FrameMetadata, error)

	// DecodeFrame returns the fully composed frame i as an independent
	// *image.RGBA. If fast is true, the decoder may compose the frame
	// from the last frame it composed; fast calls are serialised by the
	// decoder. Otherwise the frame is composed from the first frame
	// without touching decoder state.
	DecodeFrame(i int, fast bool) (image.Image, error)
}

// Delays shorter than minDelay are reported as clampedDelay in
// FrameMetadata.DelayClamped.
const (
	minDelay     = 0.011
	clampedDelay = 0.1
)

func clamp(delay float64) float64 {
	if delay < minDelay {
		return clampedDelay
	}
	return delay
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// IsPNG returns whether the data held by r is a PNG image. Animated PNG
// shares the PNG signature.
func IsPNG(r ReadPeeker) bool {
	return hasMagic("\x89PNG\r\n\x1a\n", r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// Open returns a Decoder for the animated image held in data. If data is
// a still image in a format known to the image package, the error is
// ErrUnsupportedFormat. Unreadable data results in a *DecodeError.
func Open(data []byte) (Decoder, error) {
	r := AsReadPeeker(bytes.NewReader(data))
	switch {
	case IsGIF(r):
		return openGIF(r)
	case IsPNG(r):
		return openAPNG(r)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Frame: -1, Err: err}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
