// Package fetch downloads a resolved media URL to disk with chunked HTTP range
// requests, reporting progress to optional hooks.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	yterrs "github.com/ytget/ytdlp/errs"
	"golang.org/x/time/rate"
)

const (
	defaultChunkSizeBytes = 1 << 20 // 1MB
	copyBufferSizeBytes   = 32 * 1024
	temporaryFileSuffix   = ".part"

	headerRange          = "Range"
	headerContentRange   = "Content-Range"
	headerContentLength  = "Content-Length"
	headerAccept         = "Accept"
	headerAcceptLanguage = "Accept-Language"
	headerAcceptEncoding = "Accept-Encoding"
	headerConnection     = "Connection"
	headerCacheControl   = "Cache-Control"
)

var (
	// ErrEmptyDownload is returned when the server sent no bytes at all.
	ErrEmptyDownload = errors.New("empty download: 0 bytes written")
	// ErrUnknownSize is returned by size detection when no header carries the total.
	ErrUnknownSize = errors.New("cannot determine total size")
	// ErrBadStatus wraps unexpected HTTP status codes.
	ErrBadStatus = errors.New("unexpected HTTP status")
)

// Hooks receives download events. Both methods run on the downloading goroutine.
type Hooks interface {
	// OnProgress is called after each write with the bytes just written and
	// the bytes still missing.
	OnProgress(chunk int, remaining int64)
	// OnComplete is called once the file has been moved to its final path.
	OnComplete(path string)
}

// Logger is the subset of the application logger used here.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// Downloader fetches media files. A Downloader issues each request once;
// failures are returned to the caller.
type Downloader struct {
	Client *http.Client
	Log    Logger

	chunkSize int64
	limiter   *rate.Limiter
}

// New creates a downloader. If client is nil, a default http.Client is used.
// rateLimitBps=0 disables limiting.
func New(client *http.Client, log Logger, rateLimitBps int64) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	d := &Downloader{
		Client:    client,
		Log:       log,
		chunkSize: defaultChunkSizeBytes,
	}
	if rateLimitBps > 0 {
		burst := int(rateLimitBps)
		if burst < copyBufferSizeBytes {
			burst = copyBufferSizeBytes
		}
		d.limiter = rate.NewLimiter(rate.Limit(rateLimitBps), burst)
	}
	return d
}

func (d *Downloader) logger() Logger {
	if d.Log == nil {
		return nopLogger{}
	}
	return d.Log
}

func isGoogleVideoHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	h := strings.ToLower(u.Host)
	return strings.HasSuffix(h, ".googlevideo.com") || h == "googlevideo.com"
}

func (d *Downloader) newRequest(ctx context.Context, method, urlStr, rangeVal string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptEncoding, "identity")
	req.Header.Set(headerConnection, "keep-alive")
	req.Header.Set(headerCacheControl, "no-cache")
	if !isGoogleVideoHost(urlStr) {
		req.Header.Set(headerAcceptLanguage, "en-US,en;q=0.9")
	}
	if rangeVal != "" {
		req.Header.Set(headerRange, rangeVal)
	}
	return req, nil
}

// sizeFromResponse reads the full size of the resource. A Content-Range
// header is authoritative, and its "*" total means unknown. Content-Length
// only describes the whole resource on a 200 response; on a 206 it is the
// length of the requested range.
func sizeFromResponse(resp *http.Response) (int64, bool) {
	if cr := resp.Header.Get(headerContentRange); cr != "" {
		parts := strings.Split(cr, "/")
		if len(parts) != 2 {
			return 0, false
		}
		v, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	if cl := resp.Header.Get(headerContentLength); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func (d *Downloader) probe(ctx context.Context, method, urlStr string) (int64, error) {
	req, err := d.newRequest(ctx, method, urlStr, "bytes=0-1")
	if err != nil {
		return 0, err
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	d.logger().Debugf("Fetch: %s probe status %d", method, resp.StatusCode)
	if err := checkStatus(resp, 0); err != nil {
		return 0, err
	}
	if v, ok := sizeFromResponse(resp); ok {
		return v, nil
	}
	return 0, ErrUnknownSize
}

// detectTotalSize tries HEAD first, then GET bytes=0-1. googlevideo hosts
// reject HEAD, so they go straight to the ranged GET.
func (d *Downloader) detectTotalSize(ctx context.Context, urlStr string) (int64, error) {
	if !isGoogleVideoHost(urlStr) {
		if v, err := d.probe(ctx, http.MethodHead, urlStr); err == nil {
			return v, nil
		}
	}
	return d.probe(ctx, http.MethodGet, urlStr)
}

func (d *Downloader) wait(ctx context.Context, n int) error {
	if d.limiter == nil || n <= 0 {
		return nil
	}
	return d.limiter.WaitN(ctx, n)
}

// Download saves urlStr to outputPath and returns the number of bytes written.
// Data goes to a temporary file that is renamed on success and removed on
// failure or cancellation. hooks may be nil.
func (d *Downloader) Download(ctx context.Context, urlStr, outputPath string, hooks Hooks) (int64, error) {
	log := d.logger()
	log.Debugf("Fetch: starting download to %s", outputPath)

	tmpPath := outputPath + temporaryFileSuffix
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	written, err := d.copyTo(ctx, urlStr, outFile, hooks)
	if cerr := outFile.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err == nil && written == 0 {
		err = ErrEmptyDownload
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return written, err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return written, fmt.Errorf("rename temp file: %w", err)
	}
	if hooks != nil {
		hooks.OnComplete(outputPath)
	}
	return written, nil
}

func (d *Downloader) copyTo(ctx context.Context, urlStr string, out io.Writer, hooks Hooks) (int64, error) {
	log := d.logger()
	totalSize, err := d.detectTotalSize(ctx, urlStr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		log.Debugf("Fetch: size unknown (%v), downloading in one request", err)
		return d.copyRange(ctx, urlStr, "", 0, 0, out, hooks)
	}
	log.Debugf("Fetch: total size %d bytes", totalSize)

	var downloaded int64
	for downloaded < totalSize {
		end := downloaded + d.chunkSize - 1
		if end >= totalSize {
			end = totalSize - 1
		}
		rangeVal := fmt.Sprintf("bytes=%d-%d", downloaded, end)
		n, err := d.copyRange(ctx, urlStr, rangeVal, downloaded, totalSize, out, hooks)
		downloaded += n
		if err != nil {
			return downloaded, err
		}
		if n == 0 {
			return downloaded, fmt.Errorf("download chunk %s: %w", rangeVal, io.ErrUnexpectedEOF)
		}
	}
	return downloaded, nil
}

// copyRange performs one request and streams its body into out. offset and
// total only feed the progress hook; total=0 means unknown.
func (d *Downloader) copyRange(ctx context.Context, urlStr, rangeVal string, offset, total int64, out io.Writer, hooks Hooks) (int64, error) {
	req, err := d.newRequest(ctx, http.MethodGet, urlStr, rangeVal)
	if err != nil {
		return 0, err
	}
	if rangeVal != "" {
		d.logger().Debugf("Fetch: requesting range %s", rangeVal)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download chunk: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, offset); err != nil {
		return 0, err
	}

	buf := make([]byte, copyBufferSizeBytes)
	var read int64
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return read, fmt.Errorf("write chunk: %w", werr)
			}
			read += int64(n)
			if hooks != nil && total > 0 {
				hooks.OnProgress(n, total-offset-read)
			}
			if err := d.wait(ctx, n); err != nil {
				return read, err
			}
		}
		if rerr == io.EOF {
			return read, nil
		}
		if rerr != nil {
			return read, fmt.Errorf("read response body: %w", rerr)
		}
	}
}

func checkStatus(resp *http.Response, offset int64) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", yterrs.ErrRateLimited, statusError(resp.StatusCode))
	case resp.StatusCode == http.StatusOK && offset > 0:
		return fmt.Errorf("server ignored range request: %w", statusError(resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return statusError(resp.StatusCode)
	}
	return nil
}

func statusError(code int) error {
	return fmt.Errorf("%w %d", ErrBadStatus, code)
}
