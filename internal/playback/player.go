// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package playback provides a frame cache and tick-driven player for
// animated images.
package playback

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kortschak/jiffy/internal/animation"
)

// DefaultMemoryLimit is the default memory budget in megabytes below which
// all display slots of an image are decoded ahead of playback.
const DefaultMemoryLimit = 20

// Player plays animated images at the rate determined by their display
// plans. A Player is bound to at most one image at a time. The current
// frame is published for a renderer to read with Current.
//
// Player methods may be called from multiple goroutines.
type Player struct {
	ticks   TickSource
	log     *slog.Logger
	convert func(image.Image) (image.Image, error)
	workers int

	// mu serialises Bind and Close.
	mu sync.Mutex

	// epoch is the generation of the current binding.
	// It is incremented when a binding is torn down and
	// when a new binding is made.
	epoch atomic.Uint64
	bound atomic.Pointer[binding]
}

// Option is a Player configuration option.
type Option func(*Player)

// WithConverter sets a function used to convert decoded frames into a
// format suitable for the renderer. Frames that fail conversion are
// treated as decode failures.
func WithConverter(fn func(image.Image) (image.Image, error)) Option {
	return func(p *Player) {
		p.convert = fn
	}
}

// WithWorkers sets the number of goroutines used to decode frames in the
// background. The default is runtime.GOMAXPROCS(0). When n is one, frames
// are composed incrementally from the previously decoded frame.
func WithWorkers(n int) Option {
	return func(p *Player) {
		p.workers = max(n, 1)
	}
}

// New returns an unbound Player driven by the provided tick source. If log
// is nil, no logging is performed.
func New(ticks TickSource, log *slog.Logger, opts ...Option) *Player {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Player{
		ticks:   ticks,
		log:     log,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// binding is the playback state for a single bound image.
type binding struct {
	gen    uint64
	img    *animation.Image
	plan   animation.Plan
	cached bool

	playing atomic.Bool
	// cursor is the next display slot to present.
	// It is only written by the tick goroutine.
	cursor atomic.Int64

	// current is the last published frame and
	// pending is the most recent decoded frame
	// waiting to be published.
	current atomic.Pointer[frame]
	pending atomic.Pointer[frame]
	// seq is the sequence number of the last
	// requested uncached decode.
	seq atomic.Uint64

	// cache holds the decoded frame for each
	// display slot in cached mode.
	cache []atomic.Pointer[frame]

	// decodes bounds uncached decodes and
	// inflight counts those still running.
	decodes  errgroup.Group
	inflight atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	stop   func()
}

// frame is a decoded frame and the sequence number of the request that
// produced it.
type frame struct {
	img image.Image
	seq uint64
}

// Bind binds img to the player, replacing any existing binding. The
// existing binding's ticks are stopped and its background decodes are
// abandoned. The first source frame is decoded before Bind returns and
// becomes the current frame. If the image's estimated memory cost is less
// than memoryLimitMB, all display slots are decoded in the background and
// played from the cache, otherwise each frame is decoded as it is needed.
// The player is left stopped. The binding's background work lives until
// the next Bind or Close; cancellation of ctx does not end it, but ctx's
// values are retained for logging.
func (p *Player) Bind(ctx context.Context, img *animation.Image, memoryLimitMB int) error {
	if img == nil {
		return errors.New("nil image")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.unbind()

	first, err := p.decode(img, 0, false)
	if err != nil {
		p.log.LogAttrs(ctx, slog.LevelError, "bind", slog.Any("error", err))
		return err
	}

	plan := img.Plan()
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b := &binding{
		gen:    p.epoch.Add(1),
		img:    img,
		plan:   plan,
		cached: plan.MemoryMB < memoryLimitMB,
		ctx:    ctx,
		cancel: cancel,
	}
	b.current.Store(&frame{img: first})
	b.decodes.SetLimit(p.workers)
	if b.cached {
		b.cache = make([]atomic.Pointer[frame], plan.TotalFrames)
	}
	p.bound.Store(b)

	p.log.LogAttrs(ctx, slog.LevelInfo, "bind",
		slog.Uint64("gen", b.gen),
		slog.Int("frames", img.Frames()),
		slog.Int("slots", plan.TotalFrames),
		slog.Int("divisor", plan.RefreshDivisor),
		slog.Int("memory_mb", plan.MemoryMB),
		slog.Bool("cached", b.cached),
	)

	if img.Static() {
		return nil
	}
	if b.cached {
		go p.populate(b)
	}
	b.stop = p.ticks.Start(plan.RefreshDivisor, func() { p.tick(b) })
	return nil
}

// BindAndPlay binds img to the player and starts playback.
func (p *Player) BindAndPlay(ctx context.Context, img *animation.Image, memoryLimitMB int) error {
	err := p.Bind(ctx, img, memoryLimitMB)
	if err != nil {
		return err
	}
	p.Play()
	return nil
}

// Close unbinds the player's image, stopping ticks and abandoning
// background decodes.
func (p *Player) Close() {
	p.mu.Lock()
	p.unbind()
	p.mu.Unlock()
}

// unbind tears down the current binding. It must be called with p.mu held.
func (p *Player) unbind() {
	b := p.bound.Swap(nil)
	if b == nil {
		return
	}
	p.epoch.Add(1)
	b.playing.Store(false)
	if b.stop != nil {
		b.stop()
	}
	b.cancel()
	p.log.LogAttrs(context.Background(), slog.LevelDebug, "unbind", slog.Uint64("gen", b.gen))
}

// stale returns whether b is no longer the player's binding.
func (p *Player) stale(b *binding) bool {
	return p.epoch.Load() != b.gen
}

// Play starts playback. Calling Play on an unbound player has no effect.
func (p *Player) Play() {
	b := p.bound.Load()
	if b == nil {
		p.log.LogAttrs(context.Background(), slog.LevelWarn, "play called on unbound player")
		return
	}
	b.playing.Store(true)
}

// Stop stops playback. Calling Stop on an unbound player has no effect.
// Playback resumes from the same display slot when Play is called.
func (p *Player) Stop() {
	b := p.bound.Load()
	if b == nil {
		p.log.LogAttrs(context.Background(), slog.LevelWarn, "stop called on unbound player")
		return
	}
	b.playing.Store(false)
}

// Toggle flips the playback state and returns whether the player is now
// animating. Calling Toggle on an unbound player has no effect.
func (p *Player) Toggle() bool {
	b := p.bound.Load()
	if b == nil {
		p.log.LogAttrs(context.Background(), slog.LevelWarn, "toggle called on unbound player")
		return false
	}
	for {
		old := b.playing.Load()
		if b.playing.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// IsAnimating returns whether the player is playing.
func (p *Player) IsAnimating() bool {
	b := p.bound.Load()
	return b != nil && b.playing.Load()
}

// Current returns the most recently published frame. It returns false if
// the player is not bound.
func (p *Player) Current() (image.Image, bool) {
	b := p.bound.Load()
	if b == nil {
		return nil, false
	}
	return b.current.Load().img, true
}

// Cached returns whether the bound image is played from a cache of
// decoded frames.
func (p *Player) Cached() bool {
	b := p.bound.Load()
	return b != nil && b.cached
}

// Cursor returns the next display slot to be presented.
func (p *Player) Cursor() int {
	b := p.bound.Load()
	if b == nil {
		return 0
	}
	return int(b.cursor.Load())
}

// Image returns the bound image or nil if the player is not bound.
func (p *Player) Image() *animation.Image {
	b := p.bound.Load()
	if b == nil {
		return nil
	}
	return b.img
}

// tick advances playback of b by one display slot if b is playing.
func (p *Player) tick(b *binding) {
	if !b.playing.Load() {
		return
	}
	cursor := int(b.cursor.Load())
	next := int64((cursor + 1) % b.plan.TotalFrames)
	if b.cached {
		f := b.cache[cursor].Load()
		if f == nil {
			// Not yet populated, retry next tick.
			return
		}
		b.current.Store(f)
		b.cursor.Store(next)
		return
	}

	if f := b.pending.Swap(nil); f != nil && f.seq > b.current.Load().seq {
		b.current.Store(f)
	}
	seq := b.seq.Add(1)
	src := b.plan.DisplayOrder[cursor]
	b.inflight.Add(1)
	ok := b.decodes.TryGo(func() error {
		defer b.inflight.Add(-1)
		p.request(b, src, seq)
		return nil
	})
	if !ok {
		b.inflight.Add(-1)
		p.log.LogAttrs(b.ctx, slog.LevelDebug, "decode skipped", slog.Uint64("gen", b.gen), slog.Int("slot", cursor))
	}
	b.cursor.Store(next)
}

// request decodes source frame src for b and offers it for publication
// on the next tick.
func (p *Player) request(b *binding, src int, seq uint64) {
	if b.ctx.Err() != nil {
		return
	}
	img, err := p.decode(b.img, src, p.workers == 1)
	if err != nil {
		p.log.LogAttrs(b.ctx, slog.LevelDebug, "decode", slog.Uint64("gen", b.gen), slog.Int("frame", src), slog.Any("error", err))
		return
	}
	if p.stale(b) {
		p.log.LogAttrs(b.ctx, slog.LevelDebug, "discard stale frame", slog.Uint64("gen", b.gen), slog.Int("frame", src))
		return
	}
	b.offer(&frame{img: img, seq: seq})
}

// offer stores f as the pending frame unless a frame from a later request
// is already pending or published.
func (b *binding) offer(f *frame) {
	for {
		old := b.pending.Load()
		if old != nil && old.seq >= f.seq {
			return
		}
		if b.current.Load().seq >= f.seq {
			return
		}
		if b.pending.CompareAndSwap(old, f) {
			return
		}
	}
}

// populate decodes every display slot of b into its cache. Slots showing
// the same source frame share a single decoded frame.
func (p *Player) populate(b *binding) {
	slots := make(map[int][]int)
	var order []int
	for slot, src := range b.plan.DisplayOrder {
		if _, ok := slots[src]; !ok {
			order = append(order, src)
		}
		slots[src] = append(slots[src], slot)
	}

	errStale := errors.New("stale binding")
	g, ctx := errgroup.WithContext(b.ctx)
	g.SetLimit(p.workers)
	fast := p.workers == 1
	for _, src := range order {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			img, err := p.decode(b.img, src, fast)
			if err != nil {
				p.log.LogAttrs(ctx, slog.LevelDebug, "decode", slog.Uint64("gen", b.gen), slog.Int("frame", src), slog.Any("error", err))
				return nil
			}
			if p.stale(b) {
				return errStale
			}
			f := &frame{img: img}
			for _, slot := range slots[src] {
				b.cache[slot].Store(f)
			}
			return nil
		})
	}
	err := g.Wait()
	switch {
	case err == nil:
		p.log.LogAttrs(b.ctx, slog.LevelDebug, "cache populated", slog.Uint64("gen", b.gen), slog.Int("frames", len(order)))
	case errors.Is(err, errStale), errors.Is(err, context.Canceled):
		p.log.LogAttrs(context.Background(), slog.LevelDebug, "cache population abandoned", slog.Uint64("gen", b.gen))
	default:
		p.log.LogAttrs(context.Background(), slog.LevelError, "cache population", slog.Uint64("gen", b.gen), slog.Any("error", err))
	}
}

// decode decodes source frame src of img and applies the player's
// converter.
func (p *Player) decode(img *animation.Image, src int, fast bool) (image.Image, error) {
	f, err := img.Decoder().DecodeFrame(src, fast)
	if err != nil {
		var derr *animation.DecodeError
		if !errors.As(err, &derr) {
			err = &animation.DecodeError{Frame: src, Err: err}
		}
		return nil, err
	}
	if p.convert != nil {
		f, err = p.convert(f)
		if err != nil {
			return nil, &animation.DecodeError{Frame: src, Err: err}
		}
	}
	return f, nil
}
