package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// Level represents the severity of a message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARNING
	CRITICAL
)

var levelNames = map[Level]string{
	DEBUG:    "DEBUG",
	INFO:     "INFO",
	WARNING:  "WARNING",
	CRITICAL: "CRITICAL",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ANSI colors per level, matching the palette of the console output.
const (
	colorReset    = "\033[39m"
	colorDebug    = "\033[37m" // white
	colorInfo     = "\033[90m" // light black
	colorWarning  = "\033[93m" // light yellow
	colorCritical = "\033[91m" // light red
)

var levelColors = map[Level]string{
	DEBUG:    colorDebug,
	INFO:     colorInfo,
	WARNING:  colorWarning,
	CRITICAL: colorCritical,
}

const (
	// DefaultFormat is the template used by the command line tool.
	DefaultFormat = "%N %L @ %T"
	// DefaultName is the logger name rendered by %N.
	DefaultName = "ROOT"
	// DefaultMode prints to the console only.
	DefaultMode = "c"

	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"

	modeConsole = 'c'
	modeFile    = 'f'
)

// ErrInvalidFilename is returned when the log filename is empty or only whitespace.
var ErrInvalidFilename = errors.New("log filename cannot be blank")

// Config holds logger configuration. Zero values are not defaults; start
// from DefaultConfig.
type Config struct {
	Directory         string
	Filename          string
	Enabled           bool
	Name              string
	Mode              string
	FileCompatibility bool // strip colors from file output
	ColorEnabled      bool
	Truncate          bool // open the file truncated instead of appending
	MakeParents       bool
	Level             Level

	// Size-based rotation of the log file; 0 disables it.
	MaxSize    int64
	MaxBackups int
	Compress   bool

	// Console overrides the console sink; nil means standard output.
	Console io.Writer
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Directory:         ".",
		Filename:          DefaultFilename(time.Now()),
		Enabled:           true,
		Name:              DefaultName,
		Mode:              DefaultMode,
		FileCompatibility: true,
		ColorEnabled:      true,
		MakeParents:       true,
		Level:             DEBUG,
		MaxBackups:        3,
	}
}

// DefaultFilename names the log file after the given day.
func DefaultFilename(t time.Time) string {
	return t.Format(dateLayout) + ".txt"
}

// Logger writes template-formatted messages to the configured sinks.
type Logger struct {
	format  string
	cfg     Config
	path    string
	file    io.WriteCloser
	console *logrus.Logger
	logfile *logrus.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
}

// New creates the log directory if needed, opens the log file and appends a
// blank line separating this session from earlier ones.
func New(format string, cfg Config) (*Logger, error) {
	if strings.TrimSpace(cfg.Filename) == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilename, cfg.Filename)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	dir, err := filepath.Abs(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("resolve log directory: %w", err)
	}
	if err := ensureDir(dir, cfg.MakeParents); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, cfg.Filename)

	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if cfg.Truncate {
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	var file io.WriteCloser
	if cfg.MaxSize > 0 {
		file, err = NewRotatingWriter(path, flag, cfg.MaxSize, cfg.MaxBackups, cfg.Compress)
	} else {
		file, err = os.OpenFile(path, flag, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if _, err := io.WriteString(file, "\n"); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("write session separator: %w", err)
	}

	console := cfg.Console
	if console == nil {
		console = colorable.NewColorableStdout()
	}

	return &Logger{
		format:  format,
		cfg:     cfg,
		path:    path,
		file:    file,
		console: newSink(console, cfg.ColorEnabled, cfg.Level),
		logfile: newSink(file, !cfg.FileCompatibility, cfg.Level),
		now:     time.Now,
	}, nil
}

func ensureDir(dir string, makeParents bool) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("log directory %s is not a directory", dir)
		}
		return nil
	}
	mkdir := os.Mkdir
	if makeParents {
		mkdir = os.MkdirAll
	}
	if err := mkdir(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

func newSink(w io.Writer, color bool, level Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&lineFormatter{color: color})
	l.SetLevel(toLogrus(level))
	return l
}

// Path returns the absolute path of the log file.
func (l *Logger) Path() string { return l.path }

// Name returns the logger name rendered by %N.
func (l *Logger) Name() string { return l.cfg.Name }

// Close closes the log file. Messages logged afterwards only reach the console.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Debug logs a message in white.
func (l *Logger) Debug(msg string) { l.log(DEBUG, msg) }

// Info logs a message in grey.
func (l *Logger) Info(msg string) { l.log(INFO, msg) }

// Warn logs a message in yellow.
func (l *Logger) Warn(msg string) { l.log(WARNING, msg) }

// Critical logs a message in red.
func (l *Logger) Critical(msg string) { l.log(CRITICAL, msg) }

// Debugf formats and logs a debug message.
func (l *Logger) Debugf(format string, args ...any) { l.log(DEBUG, fmt.Sprintf(format, args...)) }

// Infof formats and logs an info message.
func (l *Logger) Infof(format string, args ...any) { l.log(INFO, fmt.Sprintf(format, args...)) }

// Warnf formats and logs a warning.
func (l *Logger) Warnf(format string, args ...any) { l.log(WARNING, fmt.Sprintf(format, args...)) }

// Criticalf formats and logs a critical message.
func (l *Logger) Criticalf(format string, args ...any) {
	l.log(CRITICAL, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level Level, msg string) {
	if !l.cfg.Enabled {
		return
	}
	line := l.Format(level, l.format) + " " + l.Format(level, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, sink := range l.cfg.Mode {
		switch sink {
		case modeConsole:
			l.console.Log(toLogrus(level), line)
		case modeFile:
			if !l.closed {
				l.logfile.Log(toLogrus(level), line)
			}
		}
	}
}

func toLogrus(level Level) logrus.Level {
	switch level {
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARNING:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func fromLogrus(level logrus.Level) Level {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return DEBUG
	case logrus.InfoLevel:
		return INFO
	case logrus.WarnLevel:
		return WARNING
	default:
		return CRITICAL
	}
}
