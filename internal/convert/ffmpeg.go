// Package convert transcodes downloaded files by running ffmpeg.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/alessio/shellescape"

	"github.com/ytget/mini-mp3/internal/errs"
)

// DefaultBinary is looked up on PATH when no explicit path is configured.
const DefaultBinary = "ffmpeg"

// Logger is the subset of the application logger used here.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// FFmpeg runs the ffmpeg command line tool.
type FFmpeg struct {
	Path   string
	Stderr io.Writer
	Log    Logger
}

// New returns an FFmpeg using path, or "ffmpeg" from PATH when path is empty.
// ffmpeg's own diagnostics go to os.Stderr.
func New(path string, log Logger) *FFmpeg {
	if path == "" {
		path = DefaultBinary
	}
	if log == nil {
		log = nopLogger{}
	}
	return &FFmpeg{Path: path, Stderr: os.Stderr, Log: log}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Args returns the ffmpeg arguments converting in to out.
func Args(in, out string) []string {
	return []string{"-loglevel", "warning", "-i", in, out}
}

// Convert transcodes in to out and waits for ffmpeg to exit. The output
// format follows from the extension of out. A non-zero exit is reported as
// errs.ErrConversion with the tail of ffmpeg's stderr attached.
func (f *FFmpeg) Convert(ctx context.Context, in, out string) error {
	args := Args(in, out)
	f.Log.Debugf("Running %s %s", f.Path, shellescape.QuoteCommand(args))

	var tail bytes.Buffer
	stderr := io.Writer(&tail)
	if f.Stderr != nil {
		stderr = io.MultiWriter(f.Stderr, &tail)
	}

	cmd := exec.CommandContext(ctx, f.Path, args...)
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if msg := lastLine(tail.String()); msg != "" {
			return fmt.Errorf("%w: %v: %s", errs.ErrConversion, err, msg)
		}
		return fmt.Errorf("%w: %v", errs.ErrConversion, err)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
