package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/ytget/mini-mp3/internal/app"
	"github.com/ytget/mini-mp3/internal/convert"
	"github.com/ytget/mini-mp3/internal/fetch"
	"github.com/ytget/mini-mp3/internal/httpclient"
	"github.com/ytget/mini-mp3/internal/logger"
	"github.com/ytget/mini-mp3/internal/youtube"
)

const (
	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

// options mirrors the command line flags.
type options struct {
	output       string
	format       string
	silentErrors bool
	silentProg   bool
	keep         bool
	rateLimit    string
	proxy        string
	httpTimeout  time.Duration
	logDir       string
	logMode      string
	logConfig    string
	noColor      bool
	verbose      bool
}

// shortAliases maps the two-letter single-dash flags onto their long names;
// pflag only knows one-letter shorthands.
var shortAliases = map[string]string{
	"-se": "--silent-errors",
	"-sp": "--silent-prog",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], colorable.NewColorableStdout(), colorable.NewColorableStderr())
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var code int
	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(normalizeArgs(args))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "mini-mp3 [flags] source...",
		Short: "Download YouTube videos and playlists, optionally converting them with ffmpeg",
		Example: `  mini-mp3 https://youtu.be/dQw4w9WgXcQ
  mini-mp3 -o ~/Music -f mp3 "https://www.youtube.com/playlist?list=PL..."
  mini-mp3 -se -sp -f mp3 -k https://youtu.be/a https://youtu.be/b`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := execute(cmd, o, args, stdout, stderr)
			*code = c
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.output, "output", "o", ".", "The directory to output to")
	f.StringVarP(&o.format, "format", "f", "", "The format to convert to (e.g. mp3); omit to keep the downloaded stream")
	f.BoolVar(&o.silentErrors, "silent-errors", false, "Makes the output of errors silent (alias -se)")
	f.BoolVar(&o.silentProg, "silent-prog", false, "Makes the output of the progress bar silent (alias -sp)")
	f.BoolVarP(&o.keep, "keep", "k", false, "Keeps both the original and converted files")
	f.StringVar(&o.rateLimit, "rate-limit", "", "Download rate limit (e.g. 2MiB/s, 500KiB/s)")
	f.StringVar(&o.proxy, "proxy", "", "Proxy URL (http/https/socks5)")
	f.DurationVar(&o.httpTimeout, "http-timeout", httpclient.DefaultTimeout, "HTTP timeout per request (e.g. 30s, 1m)")
	f.StringVar(&o.logDir, "log-dir", defaultLogDir(), "Directory for the daily log file")
	f.StringVar(&o.logMode, "log-mode", "f", "Log outputs: c (console), f (file) or cf")
	f.StringVar(&o.logConfig, "log-config", "", "JSON logger configuration file")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Log debug messages")
	return cmd
}

// normalizeArgs rewrites -se and -sp into their long forms. Arguments after
// "--" are left alone.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		if long, ok := shortAliases[a]; ok {
			a = long
		}
		out = append(out, a)
	}
	return out
}

func execute(cmd *cobra.Command, o options, sources []string, stdout, stderr io.Writer) (int, error) {
	rate, err := parseRate(o.rateLimit)
	if err != nil {
		return exitError, err
	}

	log, err := buildLogger(cmd, o, stderr)
	if err != nil {
		return exitError, fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Close() }()

	client, err := httpclient.New(httpclient.Config{Timeout: o.httpTimeout, ProxyURL: o.proxy})
	if err != nil {
		return exitError, fmt.Errorf("proxy: %w", err)
	}
	if rate > 0 {
		log.Debugf("Rate limit %s/s", humanize.IBytes(uint64(rate)))
	}

	a := app.New(app.Options{
		Sources:        sources,
		OutputDir:      o.output,
		Format:         o.format,
		SilentErrors:   o.silentErrors,
		SilentProgress: o.silentProg,
		Keep:           o.keep,
		Color:          !o.noColor,
	}, app.Deps{
		Source:    youtube.New(client, log),
		Fetcher:   fetch.New(client, log, rate),
		Converter: convert.New("", log),
		Log:       log,
		Out:       stdout,
	})

	_, err = a.Run(cmd.Context())
	switch {
	case err == nil, errors.Is(err, app.ErrOutputDirMissing), errors.Is(err, app.ErrConverterMissing):
		return exitOK, nil
	case errors.Is(err, context.Canceled):
		log.Warn("Interrupted")
		return exitInterrupted, nil
	default:
		return exitError, err
	}
}

// buildLogger layers the logger configuration: defaults, then the JSON file,
// then MINIMP3_LOG_* variables, then flags given explicitly.
func buildLogger(cmd *cobra.Command, o options, console io.Writer) (*logger.Logger, error) {
	cfg := logger.DefaultConfig()
	cfg.Directory = o.logDir
	cfg.Mode = o.logMode
	cfg.Level = logger.INFO
	cfg.ColorEnabled = !o.noColor
	cfg.Console = console
	format := logger.DefaultFormat

	if o.logConfig != "" {
		fc, err := logger.LoadConfigFromFile(o.logConfig)
		if err != nil {
			return nil, err
		}
		if format, err = fc.Apply(&cfg, format); err != nil {
			return nil, err
		}
	}
	if err := logger.ApplyEnvironment(&cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-dir") {
		cfg.Directory = o.logDir
	}
	if flags.Changed("log-mode") {
		mode, err := logger.ParseMode(o.logMode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}
	if flags.Changed("no-color") {
		cfg.ColorEnabled = !o.noColor
	}
	if o.verbose {
		cfg.Level = logger.DEBUG
	}
	return logger.New(format, cfg)
}

// defaultLogDir is the logs directory next to the executable, or ./logs when
// the executable path is unknown.
func defaultLogDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "logs"
	}
	return filepath.Join(filepath.Dir(exe), "logs")
}

// parseRate parses values like "2MiB/s", "500KiB" or "1.5MB/s" into bytes
// per second. An empty string disables limiting.
func parseRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(strings.ToLower(s), "/s") {
		s = strings.TrimSpace(s[:len(s)-2])
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid rate limit %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid rate limit %q: must be positive", s)
	}
	return int64(n), nil
}
