// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The jiffy command plays animated GIF and APNG images at a reduced display
// rate in iTerm2-compatible terminals, and reports their display plans.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"

	"github.com/kortschak/jiffy/internal/animation"
	"github.com/kortschak/jiffy/internal/config"
	"github.com/kortschak/jiffy/internal/iterm2"
	"github.com/kortschak/jiffy/internal/playback"
	"github.com/kortschak/jiffy/internal/slogext"
	"github.com/kortschak/jiffy/internal/text"
	"github.com/kortschak/jiffy/internal/version"
	"github.com/kortschak/jiffy/internal/xdg"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	quality := flag.String("quality", "full", "display quality (full, high, medium, low or a value in (0, 1])")
	memory := flag.Int("memory", playback.DefaultMemoryLimit, "memory budget in MB below which decoded frames are cached")
	rate := flag.Float64("rate", animation.MaxRate, "maximum display rate in frames per second")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "number of background decode workers")
	cfgPath := flag.String("config", "", "configuration file path (default $XDG_CONFIG_HOME/jiffy/config.toml)")
	showPlan := flag.Bool("plan", false, "print the display plan as JSON and exit")
	compare := flag.Bool("compare", false, "print the display plans for all quality presets and exit")
	dur := flag.Duration("for", 0, "play for the given duration (default one loop)")
	render := flag.String("render", "iterm2", "frame renderer (iterm2 or none)")
	width := flag.Int("width", 0, "rendered width in terminal cells (0 for natural width)")
	fit := flag.String("fit", "", "scale frames to fit within a WxH pixel box")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	logFormat := flag.String("log_format", "json", "log record format (json or text)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] <image>\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if *v {
		err := version.Print(os.Stdout)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	path := *cfgPath
	if path == "" {
		path, _ = xdg.Config(filepath.Join("jiffy", "config.toml"), false)
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return invocationError
		}
		err = cfg.Apply(flag.CommandLine)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			return invocationError
		}
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	format := slogext.Format(*logFormat)
	switch format {
	case slogext.JSON, slogext.Text:
	default:
		fmt.Fprintf(os.Stderr, "invalid log format: %q\n", *logFormat)
		return invocationError
	}
	addSource := slogext.NewAtomicBool(*lines)
	// log is the root logger.
	log := slogext.New(os.Stderr, format, &level, addSource)
	// mlog is the logger for main.
	mlog := log.With(slog.String("component", "jiffy.main"))

	if flag.NArg() != 1 {
		flag.Usage()
		return invocationError
	}
	q, err := animation.ParseQuality(*quality)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return invocationError
	}
	switch *render {
	case "iterm2", "none":
	default:
		fmt.Fprintf(os.Stderr, "invalid renderer: %q\n", *render)
		return invocationError
	}
	if *rate <= 0 {
		fmt.Fprintf(os.Stderr, "invalid rate: %v\n", *rate)
		return invocationError
	}
	var box image.Rectangle
	if *fit != "" {
		box, err = parseBox(*fit)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return invocationError
		}
	}

	name := flag.Arg(0)
	data, err := os.ReadFile(name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}

	if *compare {
		err = comparePlans(os.Stdout, name, data)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			mlog.LogAttrs(ctx, slog.LevelInfo, "terminating")
			cancel()
		case <-ctx.Done():
		}
	}()

	status := success
	img, err := animation.Decode(data, q)
	if err != nil {
		mlog.LogAttrs(ctx, slog.LevelError, "decode", slog.String("file", name), slog.Any("error", err))
		if *showPlan || *render != "iterm2" {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		// Show the failure in place of the image.
		img, err = animation.ErrorImage(err, image.Rect(0, 0, 288, 72))
		fmt.Fprintln(os.Stderr, err)
		if img == nil {
			return internalError
		}
		status = internalError
	}
	mlog.LogAttrs(ctx, slog.LevelDebug, "decoded",
		slog.String("file", name),
		slog.Any("container", slogext.Stringer{Stringer: img.Container()}),
		slog.Any("bounds", slogext.Rect(img.Bounds())),
		slog.Int("frames", img.Frames()),
	)

	if *showPlan {
		err = json.NewEncoder(os.Stdout).Encode(newReport(name, "", img))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	if *render == "iterm2" && box.Empty() && *width == 0 && iterm2.IsTerminal(os.Stdin) && iterm2.IsTerminal(os.Stdout) {
		res, err := iterm2.PixelResolution(os.Stdin)
		if err != nil {
			mlog.LogAttrs(ctx, slog.LevelDebug, "terminal resolution", slog.Any("error", err))
		} else {
			box = terminalBox(img.Bounds(), res)
			mlog.LogAttrs(ctx, slog.LevelDebug, "terminal resolution",
				slog.Int("width", res.Width),
				slog.Int("height", res.Height),
				slog.Any("fit", slogext.Rect(box)),
			)
		}
	}

	opts := []playback.Option{playback.WithWorkers(*workers)}
	if !box.Empty() {
		opts = append(opts, playback.WithConverter(scaler(box)))
	}
	p := playback.New(playback.Display{Rate: *rate}, log.With(slog.String("component", "jiffy.playback")), opts...)
	defer p.Close()

	var out func(image.Image) error
	var renderer *iterm2.Renderer
	if *render == "iterm2" {
		if !iterm2.IsCompatible() {
			mlog.LogAttrs(ctx, slog.LevelWarn, "terminal may not support inline images")
		}
		renderer = iterm2.NewRenderer(os.Stdout, *width)
		out = renderer.Render
	}

	d := *dur
	if d <= 0 {
		// One full loop of the display plan.
		slots := img.TotalFrames() * img.RefreshDivisor()
		d = time.Duration(float64(slots) * float64(time.Second) / *rate)
	}
	changes, err := play(ctx, p, img, *memory, *rate, d, out)
	if renderer != nil {
		renderer.Finish()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return internalError
	}
	if *render == "none" {
		r := newReport(name, "", img)
		r.Cached = &changes.cached
		r.Changes = &changes.n
		err = json.NewEncoder(os.Stdout).Encode(r)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
	}
	return status
}

// presentation is a summary of a playback session.
type presentation struct {
	// n is the number of frame changes observed.
	n      int
	cached bool
}

// play binds img to p and polls the player's current frame at the display
// rate for the duration d, passing each new frame to out if it is not nil.
func play(ctx context.Context, p *playback.Player, img *animation.Image, memory int, rate float64, d time.Duration, out func(image.Image) error) (presentation, error) {
	err := p.BindAndPlay(ctx, img, memory)
	if err != nil {
		return presentation{}, err
	}
	defer p.Stop()
	sess := presentation{cached: p.Cached()}

	var last image.Image
	show := func() error {
		f, ok := p.Current()
		if !ok || f == last {
			return nil
		}
		last = f
		sess.n++
		if out == nil {
			return nil
		}
		return out(f)
	}
	err = show()
	if err != nil {
		return sess, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	paint := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer paint.Stop()
	for {
		select {
		case <-ctx.Done():
			return sess, nil
		case <-timer.C:
			return sess, show()
		case <-paint.C:
			err = show()
			if err != nil {
				return sess, err
			}
		}
	}
}

// report is the JSON summary of an image's display plan.
type report struct {
	File      string          `json:"file"`
	Quality   string          `json:"quality,omitempty"`
	Container string          `json:"container"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Frames    int             `json:"frames"`
	Loops     int             `json:"loops"`
	Duration  float64         `json:"duration"`
	FPS       float64         `json:"fps"`
	Memory    string          `json:"memory"`
	Plan      *animation.Plan `json:"plan,omitempty"`
	Cached    *bool           `json:"cached,omitempty"`
	Changes   *int            `json:"changes,omitempty"`
}

func newReport(file, quality string, img *animation.Image) report {
	plan := img.Plan()
	var total float64
	for _, d := range img.Delays() {
		total += d
	}
	b := img.Bounds()
	return report{
		File:      file,
		Quality:   quality,
		Container: img.Container().String(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		Frames:    img.Frames(),
		Loops:     img.LoopCount(),
		Duration:  total,
		FPS:       plan.Rate(),
		Memory:    humanize.Bytes(uint64(b.Dx() * b.Dy() * 4 * plan.TotalFrames)),
		Plan:      &plan,
	}
}

// comparePlans writes the display plan of data for each quality preset
// to w as a JSON stream.
func comparePlans(w io.Writer, file string, data []byte) error {
	enc := json.NewEncoder(w)
	for _, preset := range []string{"full", "high", "medium", "low"} {
		q, err := animation.ParseQuality(preset)
		if err != nil {
			return err
		}
		img, err := animation.Decode(data, q)
		if err != nil {
			return err
		}
		err = enc.Encode(newReport(file, preset, img))
		if err != nil {
			return err
		}
	}
	return nil
}

// parseBox parses a WxH box specification.
func parseBox(s string) (image.Rectangle, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return image.Rectangle{}, fmt.Errorf("invalid box: %q", s)
	}
	w, werr := strconv.Atoi(ws)
	h, herr := strconv.Atoi(hs)
	if err := errors.Join(werr, herr); err != nil {
		return image.Rectangle{}, fmt.Errorf("invalid box: %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid box: %q", s)
	}
	return image.Rect(0, 0, w, h), nil
}

// terminalBox returns the box that frames with the given bounds must be
// scaled to fit in a terminal with the resolution res, leaving a line for
// the prompt. It returns an empty rectangle if the frames already fit.
func terminalBox(bounds image.Rectangle, res iterm2.Resolution) image.Rectangle {
	box := image.Rect(0, 0, res.Width, res.Height-res.CellHeight)
	if box.Empty() || (bounds.Dx() <= box.Dx() && bounds.Dy() <= box.Dy()) {
		return image.Rectangle{}
	}
	return box
}

// scaler returns a frame converter that scales frames to fit within box,
// keeping their aspect ratio.
func scaler(box image.Rectangle) func(image.Image) (image.Image, error) {
	return func(src image.Image) (image.Image, error) {
		dst := image.NewRGBA(box)
		r := text.Fit(box, src.Bounds())
		if r.Empty() {
			return nil, errors.New("empty frame")
		}
		dst = dst.SubImage(r).(*image.RGBA)
		draw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), draw.Src, nil)
		return dst, nil
	}
}
