// Package transcript resolves video URLs and fetches their transcripts with
// a fixed language fallback order.
package transcript

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/core/workerpool"
	"github.com/markdave123-py/studyvault/internal/logger"
	"github.com/markdave123-py/studyvault/internal/models"
)

// DefaultLanguageGroups is tried in order; each group is one provider call.
var DefaultLanguageGroups = [][]string{
	{"en"},
	{"en-US"},
	{"en-GB"},
	{"es", "en"},
	{"fr", "en"},
	{"de", "en"},
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

// ResolveVideoID extracts the video identifier from watch, short and embed
// URLs.
func ResolveVideoID(url string) (string, bool) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Fetcher runs provider calls on the worker pool so callers never block on
// the remote service directly.
type Fetcher struct {
	log      *logger.Logger
	provider core.TranscriptProvider
	pool     *workerpool.Pool
	groups   [][]string
}

func NewFetcher(log *logger.Logger, provider core.TranscriptProvider, pool *workerpool.Pool) *Fetcher {
	return &Fetcher{
		log:      log.With("service", "transcript"),
		provider: provider,
		pool:     pool,
		groups:   DefaultLanguageGroups,
	}
}

// FetchWithFallback tries every language group in priority order and returns
// the first transcript found. A failed group never stops the next one.
func (f *Fetcher) FetchWithFallback(ctx context.Context, url string) (string, bool) {
	videoID, ok := ResolveVideoID(url)
	if !ok {
		f.log.Warn("could not resolve video id", "url", url)
		return "", false
	}
	for _, languages := range f.groups {
		if ctx.Err() != nil {
			break
		}
		if text, ok := f.fetch(ctx, videoID, languages); ok {
			return text, true
		}
	}
	f.log.Warn("no transcript in any language", "video_id", videoID)
	return "", false
}

func (f *Fetcher) fetch(ctx context.Context, videoID string, languages []string) (string, bool) {
	entries, err := workerpool.Do(ctx, f.pool, func(ctx context.Context) ([]models.TranscriptEntry, error) {
		return f.provider.FetchTranscript(ctx, videoID, languages)
	})
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTranscriptsDisabled):
			f.log.Debug("transcripts disabled", "video_id", videoID, "languages", languages)
		case errors.Is(err, core.ErrNoTranscriptFound):
			f.log.Debug("no transcript found", "video_id", videoID, "languages", languages)
		default:
			f.log.Warn("transcript fetch failed", "video_id", videoID, "languages", languages, "error", err)
		}
		return "", false
	}

	text := JoinEntries(entries)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	f.log.Debug("fetched transcript", "video_id", videoID, "languages", languages, "entries", len(entries))
	return text, true
}

// JoinEntries concatenates caption texts with single spaces.
func JoinEntries(entries []models.TranscriptEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Text
	}
	return strings.Join(parts, " ")
}
