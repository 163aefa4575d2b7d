package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ytget/mini-mp3/internal/logger"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{in: []string{"-se", "-sp", "url"}, want: []string{"--silent-errors", "--silent-prog", "url"}},
		{in: []string{"-o", "out", "-f", "mp3", "-k"}, want: []string{"-o", "out", "-f", "mp3", "-k"}},
		{in: []string{"url", "--", "-se"}, want: []string{"url", "--", "-se"}},
		{in: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		if got := normalizeArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("normalizeArgs(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "2MiB/s", want: 2 << 20},
		{in: "500KiB/s", want: 500 << 10},
		{in: "500kib/S", want: 500 << 10},
		{in: "1MB", want: 1000 * 1000},
		{in: "1024", want: 1024},
		{in: "fast", wantErr: true},
		{in: "0", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseRate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseRate(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseRate(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--log-dir", t.TempDir()}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_OutputDirMissingExitsZero(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	code, stdout, _ := runCLI(t, "-o", missing, "https://youtu.be/VIDEOID")
	if code != exitOK {
		t.Errorf("exit code = %d, want 0", code)
	}
	if stdout != "Path '"+missing+"' doesn't exist.\n" {
		t.Errorf("stdout = %q", stdout)
	}

	code, stdout, _ = runCLI(t, "-se", "-o", missing, "https://youtu.be/VIDEOID")
	if code != exitOK || stdout != "" {
		t.Errorf("silent: code=%d stdout=%q", code, stdout)
	}
}

func TestRun_NoSources(t *testing.T) {
	code, stdout, stderr := runCLI(t, "-o", t.TempDir())
	if code != exitOK || stdout != "" || stderr != "" {
		t.Errorf("code=%d stdout=%q stderr=%q", code, stdout, stderr)
	}
}

func TestRun_ArgumentErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--no-such-flag"},
		{"--rate-limit", "fast", "url"},
		{"--log-mode", "x", "url"},
		{"--proxy", "://bad", "url"},
	} {
		code, _, stderr := runCLI(t, args...)
		if code != exitError {
			t.Errorf("%v: exit code = %d, want 1", args, code)
		}
		if !strings.HasPrefix(stderr, "Error: ") {
			t.Errorf("%v: stderr = %q", args, stderr)
		}
	}
}

func TestRun_WritesLogFile(t *testing.T) {
	logDir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--log-dir", logDir, "-o", t.TempDir()}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr=%q", code, stderr.String())
	}
	entries, err := os.ReadDir(logDir)
	if err != nil || len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".txt") {
		t.Fatalf("log dir entries = %v, err = %v", entries, err)
	}
	data, _ := os.ReadFile(filepath.Join(logDir, entries[0].Name()))
	if !strings.Contains(string(data), "ROOT INFO @ ") {
		t.Errorf("log file content = %q", data)
	}
}

func TestBuildLogger_Precedence(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "log.json")
	conf := `{"name":"FILE","mode":"c","level":"warning","directory":"` + filepath.ToSlash(filepath.Join(dir, "fromfile")) + `"}`
	if err := os.WriteFile(confPath, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(logger.EnvMode, "cf")
	t.Setenv(logger.EnvLevel, "")

	var stderr bytes.Buffer
	var code int
	cmd := newRootCmd(&bytes.Buffer{}, &stderr, &code)
	flagDir := filepath.Join(dir, "fromflag")
	if err := cmd.ParseFlags([]string{"--log-config", confPath, "--log-dir", flagDir, "--no-color"}); err != nil {
		t.Fatal(err)
	}
	o := options{logDir: flagDir, logMode: "f", logConfig: confPath, noColor: true}

	l, err := buildLogger(cmd, o, &stderr)
	if err != nil {
		t.Fatalf("buildLogger: %v", err)
	}
	defer func() { _ = l.Close() }()

	if l.Name() != "FILE" {
		t.Errorf("name = %q, want the file's", l.Name())
	}
	if filepath.Dir(l.Path()) != flagDir {
		t.Errorf("log path = %q, want it under the flag directory", l.Path())
	}

	l.Info("hidden")
	l.Warn("shown")
	out := stderr.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "FILE WARNING @ ") {
		t.Errorf("console output = %q; want the env mode and the file level", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("--no-color should disable colors: %q", out)
	}
}
