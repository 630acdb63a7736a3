// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import (
	"errors"
	"fmt"
	"image"
	"slices"
)

// Image is an animated image with its display plan. Image values are
// immutable and may be shared between goroutines and players.
type Image struct {
	dec       Decoder
	plan      Plan
	delays    []float64
	container Container
	bounds    image.Rectangle
}

// Decode returns an Image for the GIF or APNG data at the given quality.
// A quality outside (0, 1] is replaced with DefaultQuality.
func Decode(data []byte, quality float64) (*Image, error) {
	dec, err := Open(data)
	if err != nil {
		return nil, err
	}
	return New(dec, quality)
}

// New returns an Image for the animation held by dec at the given quality.
// A quality outside (0, 1] is replaced with DefaultQuality. The first
// frame is decoded to determine the image dimensions.
func New(dec Decoder, quality float64) (*Image, error) {
	if dec == nil {
		return nil, errors.New("nil decoder")
	}
	n := dec.Frames()
	if n < 1 {
		return nil, &DecodeError{Frame: -1, Err: errors.New("no frames")}
	}
	delays, container, err := frameDelays(dec, n)
	if err != nil {
		return nil, err
	}
	plan, err := NewPlan(delays, quality)
	if err != nil {
		return nil, err
	}
	first, err := dec.DecodeFrame(0, false)
	if err != nil {
		return nil, decodeError(0, err)
	}
	b := first.Bounds()
	plan.MemoryMB = b.Dy() * b.Dx() * 4 * plan.TotalFrames / (1000 * 1000)
	return &Image{
		dec:       dec,
		plan:      plan,
		delays:    delays,
		container: container,
		bounds:    b,
	}, nil
}

// frameDelays returns the per-frame delays held by dec and the kind of
// container they were found in. The unclamped delay is used unless it is
// unset, in which case the clamped delay is used.
func frameDelays(dec Decoder, n int) ([]float64, Container, error) {
	delays := make([]float64, n)
	var container Container
	for i := range delays {
		md, err := dec.Metadata(i)
		if err != nil {
			return nil, Unknown, decodeError(i, err)
		}
		switch md.Container {
		case GIFContainer, PNGContainer:
		default:
			return nil, Unknown, fmt.Errorf("%w: frame %d metadata container %s", ErrUnsupportedFormat, i, md.Container)
		}
		if i == 0 {
			container = md.Container
		} else if md.Container != container {
			return nil, Unknown, fmt.Errorf("%w: mixed frame metadata containers %s and %s", ErrUnsupportedFormat, container, md.Container)
		}
		delays[i] = md.DelayUnclamped
		if delays[i] < unsetDelay {
			delays[i] = md.DelayClamped
		}
	}
	return delays, container, nil
}

func decodeError(frame int, err error) error {
	var derr *DecodeError
	if errors.As(err, &derr) {
		return err
	}
	return &DecodeError{Frame: frame, Err: err}
}

// Plan returns a copy of the image's display plan.
func (img *Image) Plan() Plan {
	return img.plan.Clone()
}

// RefreshDivisor returns the plan's refresh divisor.
func (img *Image) RefreshDivisor() int { return img.plan.RefreshDivisor }

// TotalFrames returns the number of display slots in the plan.
func (img *Image) TotalFrames() int { return img.plan.TotalFrames }

// MemoryMB returns the estimated memory cost of decoding all display slots.
func (img *Image) MemoryMB() int { return img.plan.MemoryMB }

// Source returns the source frame index shown in display slot.
func (img *Image) Source(slot int) int { return img.plan.DisplayOrder[slot] }

// Frames returns the number of source frames.
func (img *Image) Frames() int { return len(img.delays) }

// Static returns whether the image has only one source frame and so has
// nothing to animate.
func (img *Image) Static() bool { return len(img.delays) == 1 }

// Delays returns the delays of each source frame in seconds.
func (img *Image) Delays() []float64 { return slices.Clone(img.delays) }

// Container returns the kind of container the image was decoded from.
func (img *Image) Container() Container { return img.container }

// Bounds returns the bounds of the image's frames.
func (img *Image) Bounds() image.Rectangle { return img.bounds }

// Decoder returns the image's decoder.
func (img *Image) Decoder() Decoder { return img.dec }

// LoopCount returns the number of times the animation is intended to be
// shown, or zero for forever. Decoders that do not report loop counts are
// treated as looping forever.
func (img *Image) LoopCount() int {
	l, ok := img.dec.(interface{ Loops() int })
	if !ok {
		return 0
	}
	return l.Loops()
}

// Frame decodes the source frame shown in the provided display slot. The
// fast parameter is passed to the decoder's DecodeFrame method.
func (img *Image) Frame(slot int, fast bool) (image.Image, error) {
	if slot < 0 || slot >= img.plan.TotalFrames {
		return nil, fmt.Errorf("display slot out of range: %d", slot)
	}
	src := img.plan.DisplayOrder[slot]
	f, err := img.dec.DecodeFrame(src, fast)
	if err != nil {
		return nil, decodeError(src, err)
	}
	return f, nil
}
