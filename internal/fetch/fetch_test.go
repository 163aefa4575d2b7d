package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	yterrs "github.com/ytget/ytdlp/errs"
)

// mockTransport answers every request with a fixed status and headers.
type mockTransport struct {
	responseStatus  int
	responseHeaders map[string]string
	methods         []string
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.methods = append(t.methods, req.Method)
	resp := &http.Response{
		StatusCode: t.responseStatus,
		Header:     make(http.Header),
		Body:       http.NoBody,
	}
	for key, value := range t.responseHeaders {
		resp.Header.Set(key, value)
	}
	return resp, nil
}

type recordingHooks struct {
	remaining []int64
	completed []string
}

func (h *recordingHooks) OnProgress(chunk int, remaining int64) {
	h.remaining = append(h.remaining, remaining)
}

func (h *recordingHooks) OnComplete(path string) {
	h.completed = append(h.completed, path)
}

func TestDetectTotalSize(t *testing.T) {
	tests := []struct {
		name            string
		url             string
		responseStatus  int
		responseHeaders map[string]string
		expectedSize    int64
		expectedMethods []string
		hasError        bool
	}{
		{
			name:            "Google Video host with Content-Range",
			url:             "https://rr1.googlevideo.com/videoplayback",
			responseStatus:  206,
			responseHeaders: map[string]string{"Content-Range": "bytes 0-1/1000000"},
			expectedSize:    1000000,
			expectedMethods: []string{"GET"},
		},
		{
			name:            "Google Video host with Content-Length",
			url:             "https://googlevideo.com/video.mp4",
			responseStatus:  200,
			responseHeaders: map[string]string{"Content-Length": "500000"},
			expectedSize:    500000,
			expectedMethods: []string{"GET"},
		},
		{
			name:            "Non-Google host with Content-Range",
			url:             "https://example.com/video.mp4",
			responseStatus:  206,
			responseHeaders: map[string]string{"Content-Range": "bytes 0-1/2000000"},
			expectedSize:    2000000,
			expectedMethods: []string{"HEAD"},
		},
		{
			name:            "Invalid Content-Range format",
			url:             "https://example.com/video.mp4",
			responseStatus:  206,
			responseHeaders: map[string]string{"Content-Range": "invalid-format"},
			expectedMethods: []string{"HEAD", "GET"},
			hasError:        true,
		},
		{
			name:           "Unknown total in Content-Range",
			url:            "https://example.com/video.mp4",
			responseStatus: 206,
			responseHeaders: map[string]string{
				"Content-Range":  "bytes 0-1/*",
				"Content-Length": "2",
			},
			expectedMethods: []string{"HEAD", "GET"},
			hasError:        true,
		},
		{
			name:            "Partial content with only Content-Length",
			url:             "https://example.com/video.mp4",
			responseStatus:  206,
			responseHeaders: map[string]string{"Content-Length": "2"},
			expectedMethods: []string{"HEAD", "GET"},
			hasError:        true,
		},
		{
			name:            "No size headers",
			url:             "https://example.com/video.mp4",
			responseStatus:  200,
			responseHeaders: map[string]string{},
			expectedMethods: []string{"HEAD", "GET"},
			hasError:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTransport{responseStatus: tt.responseStatus, responseHeaders: tt.responseHeaders}
			d := &Downloader{Client: &http.Client{Transport: tr}}

			size, err := d.detectTotalSize(context.Background(), tt.url)
			if tt.hasError {
				if !errors.Is(err, ErrUnknownSize) {
					t.Errorf("Expected ErrUnknownSize, got %v", err)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if size != tt.expectedSize {
					t.Errorf("Expected size %d, got %d", tt.expectedSize, size)
				}
			}
			if fmt.Sprint(tr.methods) != fmt.Sprint(tt.expectedMethods) {
				t.Errorf("Expected methods %v, got %v", tt.expectedMethods, tr.methods)
			}
		})
	}
}

// makeServer serves data honoring single byte ranges.
func makeServer(data []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHdr := r.Header.Get("Range")
		start := 0
		end := len(data) - 1
		if rangeHdr != "" {
			var a, b int
			if _, err := fmt.Sscanf(rangeHdr, "bytes=%d-%d", &a, &b); err == nil {
				start = a
				if b < end {
					end = b
				}
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			w.Header().Set("Content-Length", fmt.Sprintf("%d", end-start+1))
			w.WriteHeader(http.StatusPartialContent)
		} else {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
		}
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data[start : end+1])
	}))
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestDownload_Chunked(t *testing.T) {
	data := testData(2<<20 + 12345)
	server := makeServer(data)
	defer server.Close()

	hooks := &recordingHooks{}
	out := filepath.Join(t.TempDir(), "file.mp4")
	n, err := New(server.Client(), nil, 0).Download(context.Background(), server.URL, out, hooks)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("Expected %d bytes, got %d", len(data), n)
	}

	bs, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(bs, data) {
		t.Fatal("content mismatch")
	}
	if _, err := os.Stat(out + temporaryFileSuffix); !os.IsNotExist(err) {
		t.Error("temp file should be gone after success")
	}

	if len(hooks.remaining) == 0 {
		t.Fatal("Expected progress callbacks")
	}
	for i := 1; i < len(hooks.remaining); i++ {
		if hooks.remaining[i] >= hooks.remaining[i-1] {
			t.Fatalf("remaining must decrease: %d then %d", hooks.remaining[i-1], hooks.remaining[i])
		}
	}
	if last := hooks.remaining[len(hooks.remaining)-1]; last != 0 {
		t.Errorf("Expected final remaining 0, got %d", last)
	}
	if len(hooks.completed) != 1 || hooks.completed[0] != out {
		t.Errorf("Expected one completion for %s, got %v", out, hooks.completed)
	}
}

func TestDownload_UnknownSize(t *testing.T) {
	data := testData(4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked transfer without any size header.
		if r.Method == http.MethodHead {
			return
		}
		if r.Header.Get("Range") != "" {
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[:2])
			w.(http.Flusher).Flush()
			return
		}
		_, _ = w.Write(data[:1])
		w.(http.Flusher).Flush()
		_, _ = w.Write(data[1:])
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "file.webm")
	if _, err := New(server.Client(), nil, 0).Download(context.Background(), server.URL, out, nil); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	bs, _ := os.ReadFile(out)
	if !bytes.Equal(bs, data) {
		t.Fatalf("content mismatch: got %d bytes", len(bs))
	}
}

func TestDownload_UnknownRangeTotal(t *testing.T) {
	data := testData(5000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.Header.Get("Range") == "bytes=0-1":
			w.Header().Set("Content-Range", "bytes 0-1/*")
			w.Header().Set("Content-Length", "2")
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[:2])
		default:
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
			_, _ = w.Write(data)
		}
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "file.mp4")
	n, err := New(server.Client(), nil, 0).Download(context.Background(), server.URL, out, nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != int64(len(data)) {
		t.Fatalf("Expected %d bytes, got %d", len(data), n)
	}
	bs, _ := os.ReadFile(out)
	if !bytes.Equal(bs, data) {
		t.Fatalf("content mismatch: got %d bytes", len(bs))
	}
}

func TestDownload_FailureRemovesTemp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	hooks := &recordingHooks{}
	out := filepath.Join(t.TempDir(), "file.mp4")
	_, err := New(server.Client(), nil, 0).Download(context.Background(), server.URL, out, hooks)
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("Expected ErrBadStatus, got %v", err)
	}
	for _, p := range []string{out, out + temporaryFileSuffix} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", p)
		}
	}
	if len(hooks.completed) != 0 {
		t.Error("OnComplete must not fire on failure")
	}
}

func TestDownload_TooManyRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "file.mp4")
	_, err := New(server.Client(), nil, 0).Download(context.Background(), server.URL, out, nil)
	if !errors.Is(err, yterrs.ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
}

func TestDownload_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	out := filepath.Join(t.TempDir(), "file.mp4")
	_, err := New(server.Client(), nil, 0).Download(context.Background(), server.URL, out, nil)
	if !errors.Is(err, ErrEmptyDownload) {
		t.Fatalf("Expected ErrEmptyDownload, got %v", err)
	}
}

func TestDownload_Cancelled(t *testing.T) {
	data := testData(1 << 20)
	server := makeServer(data)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "file.mp4")
	_, err := New(server.Client(), nil, 0).Download(ctx, server.URL, out, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(out + temporaryFileSuffix); !os.IsNotExist(err) {
		t.Error("temp file should be removed after cancellation")
	}
}

func TestNew_RateLimiter(t *testing.T) {
	tests := []struct {
		name      string
		bps       int64
		wantNil   bool
		wantBurst int
	}{
		{name: "disabled", bps: 0, wantNil: true},
		{name: "small rate uses copy buffer as burst", bps: 1024, wantBurst: copyBufferSizeBytes},
		{name: "large rate", bps: 2 << 20, wantBurst: 2 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(nil, nil, tt.bps)
			if tt.wantNil {
				if d.limiter != nil {
					t.Fatal("Expected no limiter")
				}
				return
			}
			if d.limiter == nil || d.limiter.Burst() != tt.wantBurst {
				t.Fatalf("Expected burst %d, got %+v", tt.wantBurst, d.limiter)
			}
		})
	}
}

func TestDownload_RateLimited(t *testing.T) {
	// 96KB at 64KB/s with a 64KB burst needs at least ~0.5s.
	data := testData(96 * 1024)
	server := makeServer(data)
	defer server.Close()

	out := filepath.Join(t.TempDir(), "file.mp4")
	start := time.Now()
	if _, err := New(server.Client(), nil, 64*1024).Download(context.Background(), server.URL, out, nil); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 400*time.Millisecond {
		t.Errorf("Expected rate limiting to slow the download, took %v", elapsed)
	}
}
