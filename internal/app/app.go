// Package app drives a single mini-mp3 invocation: precondition checks, then
// resolve, download and optionally convert every requested video.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-colorable"

	"github.com/ytget/mini-mp3/internal/errs"
	"github.com/ytget/mini-mp3/internal/fetch"
	"github.com/ytget/mini-mp3/internal/progress"
	"github.com/ytget/mini-mp3/internal/resolve"
	"github.com/ytget/mini-mp3/internal/sanitize"
	"github.com/ytget/mini-mp3/internal/youtube"
)

var (
	// ErrOutputDirMissing is returned by Run when the output directory does not exist.
	ErrOutputDirMissing = errors.New("output directory does not exist")
	// ErrConverterMissing is returned by Run when conversion was requested but
	// the converter cannot be found.
	ErrConverterMissing = errors.New("converter not found")
)

// Source resolves videos and expands playlists.
type Source interface {
	Resolve(ctx context.Context, videoURL string) (*youtube.Stream, error)
	PlaylistVideos(ctx context.Context, playlistURL string) ([]string, error)
}

// Fetcher downloads a media URL to a file.
type Fetcher interface {
	Download(ctx context.Context, url, outputPath string, hooks fetch.Hooks) (int64, error)
}

// Converter transcodes a file into the format implied by the output extension.
type Converter interface {
	Available() bool
	Convert(ctx context.Context, in, out string) error
}

// Logger is the subset of the application logger used here.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Options are the user's choices for one run.
type Options struct {
	Sources        []string
	OutputDir      string
	Format         string
	SilentErrors   bool
	SilentProgress bool
	Keep           bool
	Color          bool
}

// Deps are the collaborators of a run. Out receives user-facing messages and
// the progress line; it defaults to standard output.
type Deps struct {
	Source    Source
	Fetcher   Fetcher
	Converter Converter
	Log       Logger
	Out       io.Writer
}

// Summary counts what a run did.
type Summary struct {
	Resolved   int
	Downloaded int
	Converted  int
	Failed     int
	Bytes      int64
}

// App runs the download loop.
type App struct {
	opts  Options
	deps  Deps
	runID string
}

// New returns an App. A missing OutputDir means the current directory.
func New(opts Options, deps Deps) *App {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	opts.Format = strings.TrimPrefix(strings.TrimSpace(opts.Format), ".")
	if deps.Out == nil {
		deps.Out = colorable.NewColorableStdout()
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &App{opts: opts, deps: deps, runID: id.String()}
}

// RunID identifies this run in the log.
func (a *App) RunID() string { return a.runID }

// Run checks the preconditions and processes every resolved URL. Per-video
// failures are reported and skipped; they never make Run fail. Run returns
// ErrOutputDirMissing or ErrConverterMissing when a precondition does not
// hold, and the context error when cancelled.
func (a *App) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	log := a.deps.Log
	log.Infof("Run %s: %d source(s), output %q, format %q", a.runID, len(a.opts.Sources), a.opts.OutputDir, a.opts.Format)

	if fi, err := os.Stat(a.opts.OutputDir); err != nil || !fi.IsDir() {
		a.report(fmt.Sprintf("Path '%s' doesn't exist.", a.opts.OutputDir))
		log.Warnf("Output directory %q is missing", a.opts.OutputDir)
		return sum, ErrOutputDirMissing
	}
	if a.opts.Format != "" && !a.deps.Converter.Available() {
		a.report("Could not find ffmpeg! You must install it before converting.")
		log.Warnf("Converter not found, cannot convert to %s", a.opts.Format)
		return sum, ErrConverterMissing
	}

	r := resolve.New(a.deps.Source, a.playlistFailed, a.opts.SilentErrors)
	for u := range r.URLs(ctx, a.opts.Sources) {
		sum.Resolved++
		err := a.process(ctx, u, &sum)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		e := errs.Wrap(u, err)
		sum.Failed++
		log.Warnf("%s failure on %s: %v", e.Kind, u, e.Err)
		a.report(e.Message())
	}

	log.Infof("Run %s finished: %d resolved, %d downloaded (%s), %d converted, %d failed",
		a.runID, sum.Resolved, sum.Downloaded, humanize.Bytes(uint64(sum.Bytes)), sum.Converted, sum.Failed)
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func (a *App) process(ctx context.Context, u string, sum *Summary) error {
	log := a.deps.Log

	stream, err := a.deps.Source.Resolve(ctx, u)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(filepath.Join(a.opts.OutputDir, sanitize.ToSafeFilename(stream.Title, stream.Ext)))
	if err != nil {
		return err
	}

	var hooks fetch.Hooks
	var tracker *progress.Tracker
	if !a.opts.SilentProgress {
		tracker = progress.NewTracker(a.deps.Out, stream.Title, a.opts.Color)
		hooks = tracker
	}
	n, err := a.deps.Fetcher.Download(ctx, stream.URL, path, hooks)
	if err != nil {
		if tracker != nil {
			tracker.Abort()
		}
		return err
	}
	sum.Downloaded++
	sum.Bytes += n
	log.Infof("Downloaded %s (%s)", path, humanize.Bytes(uint64(n)))

	if a.opts.Format == "" {
		return nil
	}
	if sanitize.SameExt(path, a.opts.Format) {
		log.Debugf("%s is already %s, skipping conversion", path, a.opts.Format)
		return nil
	}

	out := sanitize.SwapExt(path, a.opts.Format)
	if err := a.deps.Converter.Convert(ctx, path, out); err != nil {
		return err
	}
	sum.Converted++
	log.Infof("Converted %s", out)

	if a.opts.Keep {
		return nil
	}
	if err := os.Remove(path); err != nil {
		log.Warnf("Could not remove %s: %v", path, err)
		return nil
	}
	log.Debugf("Removed %s", path)
	return nil
}

func (a *App) playlistFailed(u string, err error) {
	a.deps.Log.Warnf("Playlist %s skipped: %v", u, err)
	if errors.Is(err, errs.ErrMalformedPlaylist) {
		a.report(fmt.Sprintf("Invalid playlist URL %s", u))
		return
	}
	a.report(fmt.Sprintf("Could not list playlist %s: %v", u, err))
}

// report prints a user-facing message unless errors are silenced.
func (a *App) report(msg string) {
	if a.opts.SilentErrors {
		return
	}
	fmt.Fprintln(a.deps.Out, msg)
}
