// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slogext provides slog helpers.
package slogext

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/kortschak/goroutine"
)

// GoID is a slog.Handler that adds the calling goroutine's goid.
type GoID struct {
	slog.Handler
}

func (h GoID) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(slog.Int64("goid", goroutine.ID()))
	return h.Handler.Handle(ctx, r)
}

func (h GoID) WithAttrs(attrs []slog.Attr) slog.Handler {
	return GoID{h.Handler.WithAttrs(attrs)}
}

func (h GoID) WithGroup(name string) slog.Handler {
	return GoID{h.Handler.WithGroup(name)}
}

// Stringer implements slog.LogValuer for [fmt.Stringer].
type Stringer struct {
	fmt.Stringer
}

func (v Stringer) LogValue() slog.Value {
	if v.Stringer == nil {
		return slog.StringValue("<nil>")
	}
	return slog.StringValue(v.String())
}

// Rect implements slog.LogValuer for [image.Rectangle], logging its
// origin and size.
type Rect image.Rectangle

func (v Rect) LogValue() slog.Value {
	r := image.Rectangle(v)
	return slog.GroupValue(
		slog.Int("x", r.Min.X),
		slog.Int("y", r.Min.Y),
		slog.Int("width", r.Dx()),
		slog.Int("height", r.Dy()),
	)
}

// Format is a log record format.
type Format string

const (
	JSON Format = "json"
	Text Format = "text"
)

// New returns a logger writing records in the given format with goroutine
// ids to w. An unknown format is treated as JSON.
func New(w io.Writer, format Format, level slog.Leveler, addSource *atomic.Bool) *slog.Logger {
	opts := &HandlerOptions{Level: level, AddSource: addSource}
	var h slog.Handler
	switch format {
	case Text:
		h = NewTextHandler(w, opts)
	default:
		h = NewJSONHandler(w, opts)
	}
	return slog.New(GoID{Handler: h})
}

// Handler is a slog.Handler that allows alteration of the AddSource
// behaviour after construction. It holds a pair of handlers of the same
// format, one adding source positions and one not.
type Handler struct {
	addSource     *atomic.Bool
	withSource    slog.Handler
	withoutSource slog.Handler
}

// NewJSONHandler returns a Handler that writes records to w as
// line-delimited JSON objects. If opts is nil, the default options are used.
func NewJSONHandler(w io.Writer, opts *HandlerOptions) *Handler {
	return newHandler(opts, func(o *slog.HandlerOptions) slog.Handler {
		return slog.NewJSONHandler(w, o)
	})
}

// NewTextHandler returns a Handler that writes records to w as
// line-delimited key=value pairs. If opts is nil, the default options
// are used.
func NewTextHandler(w io.Writer, opts *HandlerOptions) *Handler {
	return newHandler(opts, func(o *slog.HandlerOptions) slog.Handler {
		return slog.NewTextHandler(w, o)
	})
}

func newHandler(opts *HandlerOptions, mk func(*slog.HandlerOptions) slog.Handler) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	addSource := opts.AddSource
	if addSource == nil {
		addSource = &atomic.Bool{}
	}
	return &Handler{
		addSource:     addSource,
		withSource:    mk(opts.options(true)),
		withoutSource: mk(opts.options(false)),
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.withSource.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		addSource:     h.addSource,
		withSource:    h.withSource.WithAttrs(attrs),
		withoutSource: h.withoutSource.WithAttrs(attrs),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		addSource:     h.addSource,
		withSource:    h.withSource.WithGroup(name),
		withoutSource: h.withoutSource.WithGroup(name),
	}
}

// Handle formats r with the source position if AddSource is currently set.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.addSource.Load() {
		return h.withSource.Handle(ctx, r)
	}
	return h.withoutSource.Handle(ctx, r)
}

// HandlerOptions are options for a Handler. It is derived from the
// [slog.HandlerOptions] with a changed AddSource field type to allow
// dynamically changing AddSource behaviour during run time.
// A zero HandlerOptions consists entirely of default values.
type HandlerOptions struct {
	// AddSource causes the handler to add a SourceKey attribute to
	// the output. A nil AddSource is false.
	AddSource *atomic.Bool

	// Level reports the minimum record level that will be logged.
	Level slog.Leveler

	// ReplaceAttr is called to rewrite each non-group attribute before
	// it is logged.
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr
}

func (o *HandlerOptions) options(addSource bool) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		AddSource:   addSource,
		Level:       o.Level,
		ReplaceAttr: o.ReplaceAttr,
	}
}

// NewAtomicBool returns an atomic.Bool with the specified state.
func NewAtomicBool(t bool) *atomic.Bool {
	var x atomic.Bool
	x.Store(t)
	return &x
}
