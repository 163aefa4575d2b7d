// Package resolve turns the user's mix of video and playlist URLs into a lazy
// stream of single-video URLs.
package resolve

import (
	"context"
	"iter"
	"strings"
)

// PlaylistMarker identifies playlist URLs.
const PlaylistMarker = "youtube.com/playlist?list="

// Lister expands a playlist URL into its member video URLs.
type Lister interface {
	PlaylistVideos(ctx context.Context, playlistURL string) ([]string, error)
}

// Resolver expands playlists breadth-first and yields everything else as-is.
type Resolver struct {
	lister  Lister
	onError func(url string, err error)
	silent  bool
}

// New returns a Resolver. onError receives playlist failures unless silent is
// set; it may be nil.
func New(lister Lister, onError func(url string, err error), silent bool) *Resolver {
	return &Resolver{lister: lister, onError: onError, silent: silent}
}

// IsPlaylist reports whether u points at a playlist.
func IsPlaylist(u string) bool {
	return strings.Contains(u, PlaylistMarker)
}

// URLs returns a sequence over the single-video URLs reachable from sources.
// Playlist members are appended to the back of the work queue, so inputs keep
// their relative order and a playlist's videos follow every input given
// before it. Playlists that cannot be listed are reported and dropped. The
// sequence stops early when ctx is cancelled. Each call starts a fresh pass.
func (r *Resolver) URLs(ctx context.Context, sources []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		queue := append([]string(nil), sources...)
		for len(queue) > 0 {
			if ctx.Err() != nil {
				return
			}
			u := queue[0]
			queue = queue[1:]

			if !IsPlaylist(u) {
				if !yield(u) {
					return
				}
				continue
			}

			videos, err := r.lister.PlaylistVideos(ctx, u)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.report(u, err)
				continue
			}
			queue = append(queue, videos...)
		}
	}
}

func (r *Resolver) report(u string, err error) {
	if r.silent || r.onError == nil {
		return
	}
	r.onError(u, err)
}
