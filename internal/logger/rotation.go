package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const rotatedTimeLayout = "2006-01-02-15-04-05"

// RotatingWriter is a log file that is moved aside once it grows past maxSize.
// Rotated files are named <file>.<timestamp>, optionally gzipped, and only
// the newest maxBackups of them are kept.
type RotatingWriter struct {
	filename   string
	maxSize    int64
	maxBackups int
	compress   bool

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewRotatingWriter opens filename with the given open flags.
func NewRotatingWriter(filename string, flag int, maxSize int64, maxBackups int, compress bool) (*RotatingWriter, error) {
	file, err := os.OpenFile(filename, flag, 0644)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	return &RotatingWriter{
		filename:   filename,
		maxSize:    maxSize,
		maxBackups: maxBackups,
		compress:   compress,
		file:       file,
		size:       stat.Size(),
	}, nil
}

// Write implements io.Writer, rotating first when the size limit is reached.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return 0, os.ErrClosed
	}
	if rw.maxSize > 0 && rw.size > 0 && rw.size+int64(len(p)) > rw.maxSize {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log file: %w", err)
		}
	}
	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the current file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) rotate() error {
	if err := rw.file.Close(); err != nil {
		return fmt.Errorf("close current file: %w", err)
	}

	rotated := rw.filename + "." + time.Now().Format(rotatedTimeLayout)
	if err := os.Rename(rw.filename, rotated); err != nil {
		return fmt.Errorf("rename log file: %w", err)
	}
	if rw.compress {
		if err := gzipFile(rotated); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to compress log file %s: %v\n", rotated, err)
		}
	}
	if err := rw.removeOldBackups(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clean up old log files: %v\n", err)
	}

	file, err := os.OpenFile(rw.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("create new log file: %w", err)
	}
	rw.file = file
	rw.size = 0
	return nil
}

func gzipFile(name string) error {
	src, err := os.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(name + ".gz")
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		_ = dst.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	_ = src.Close()
	return os.Remove(name)
}

// removeOldBackups keeps only the newest maxBackups rotated files.
func (rw *RotatingWriter) removeOldBackups() error {
	dir := filepath.Dir(rw.filename)
	prefix := filepath.Base(rw.filename) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var backups []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(dir, entry.Name()))
		}
	}
	if len(backups) <= rw.maxBackups {
		return nil
	}
	// The timestamp suffix sorts chronologically.
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-rw.maxBackups] {
		if err := os.Remove(name); err != nil {
			return err
		}
	}
	return nil
}
