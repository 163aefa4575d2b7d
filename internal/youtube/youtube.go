// Package youtube adapts github.com/ytget/ytdlp/v2 to the two questions the
// downloader asks: which videos does a playlist hold, and where is the media
// stream of a video.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ytget/mini-mp3/internal/errs"
	"github.com/ytget/mini-mp3/internal/mimeext"
	"github.com/ytget/ytdlp/v2"
	"github.com/ytget/ytdlp/types"
)

// WatchURLTemplate turns a video id into a canonical watch URL.
const WatchURLTemplate = "https://www.youtube.com/watch?v=%s"

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Stream is the media stream the library selected for a video.
type Stream struct {
	VideoID  string
	Title    string
	URL      string
	MimeType string
	Ext      string
}

// Logger is the subset of the application logger used here.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

type backend interface {
	ResolveURL(ctx context.Context, videoURL string) (string, *ytdlp.VideoInfo, error)
	GetPlaylistItemsAll(ctx context.Context, playlistID string, limit int) ([]types.PlaylistItem, error)
}

// Source resolves videos and playlists.
type Source struct {
	api backend
	log Logger
}

// New returns a Source that performs all requests through client.
func New(client *http.Client, log Logger) *Source {
	d := ytdlp.New()
	if client != nil {
		d = d.WithHTTPClient(client)
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Source{api: d, log: log}
}

// Resolve looks up the default stream of the video at videoURL. URLs that do
// not name a video fail with errs.ErrMalformedURL; playability failures keep
// the library's sentinel errors in their chain.
func (s *Source) Resolve(ctx context.Context, videoURL string) (*Stream, error) {
	id, err := VideoID(videoURL)
	if err != nil {
		return nil, err
	}
	s.log.Debugf("Resolving video %s", id)

	finalURL, info, err := s.api.ResolveURL(ctx, fmt.Sprintf(WatchURLTemplate, id))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", id, err)
	}
	if info == nil || strings.TrimSpace(finalURL) == "" {
		return nil, fmt.Errorf("resolve %s: no stream url", id)
	}

	mime := streamMime(finalURL, info.Formats)
	st := &Stream{
		VideoID:  id,
		Title:    info.Title,
		URL:      finalURL,
		MimeType: mime,
		Ext:      mimeext.ExtFromMime(mime),
	}
	s.log.Debugf("Resolved %s: %q (%s)", id, st.Title, st.MimeType)
	return st, nil
}

// PlaylistVideos returns the watch URLs of every entry of the playlist, in
// playlist order.
func (s *Source) PlaylistVideos(ctx context.Context, playlistURL string) ([]string, error) {
	id, err := PlaylistID(playlistURL)
	if err != nil {
		return nil, err
	}
	items, err := s.api.GetPlaylistItemsAll(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", id, err)
	}
	urls := make([]string, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf(WatchURLTemplate, it.VideoID))
	}
	s.log.Debugf("Playlist %s expanded to %d videos", id, len(urls))
	return urls, nil
}

func isYouTubeHost(host string) bool {
	switch strings.ToLower(host) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		return true
	}
	return false
}

// VideoID extracts the video id from watch, shorts and youtu.be URLs.
func VideoID(videoURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(videoURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrMalformedURL, err)
	}
	var id string
	switch {
	case strings.EqualFold(u.Host, "youtu.be"):
		id = strings.Trim(u.Path, "/")
	case isYouTubeHost(u.Host):
		switch {
		case u.Path == "/watch" || strings.HasPrefix(u.Path, "/watch/"):
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/")
		}
	}
	if id == "" || !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %s", errs.ErrMalformedURL, videoURL)
	}
	return id, nil
}

// PlaylistID extracts the list parameter of a playlist URL. Raw playlist ids
// are accepted as-is.
func PlaylistID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "PL") || strings.HasPrefix(input, "UU") || strings.HasPrefix(input, "OLAK5uy_") {
		if videoIDPattern.MatchString(input) {
			return input, nil
		}
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrMalformedPlaylist, err)
	}
	if id := u.Query().Get("list"); id != "" && videoIDPattern.MatchString(id) {
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", errs.ErrMalformedPlaylist, input)
}

// streamMime finds the MIME type of the resolved URL: first by matching its
// itag against the format list, then from its mime query parameter.
func streamMime(finalURL string, formats []types.Format) string {
	u, err := url.Parse(finalURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if itag, err := strconv.Atoi(q.Get("itag")); err == nil {
		for _, f := range formats {
			if f.Itag == itag && f.MimeType != "" {
				return f.MimeType
			}
		}
	}
	for _, f := range formats {
		if f.URL != "" && f.URL == finalURL {
			return f.MimeType
		}
	}
	return q.Get("mime")
}
