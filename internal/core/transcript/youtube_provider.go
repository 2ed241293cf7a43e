package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/models"
)

var _ core.TranscriptProvider = (*YouTubeProvider)(nil)

// YouTubeProvider reads caption tracks through the public YouTube player API.
type YouTubeProvider struct {
	client *youtube.Client
}

func NewYouTubeProvider(httpClient *http.Client) *YouTubeProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &YouTubeProvider{client: &youtube.Client{HTTPClient: httpClient}}
}

// FetchTranscript returns the transcript in the first language of languages
// that the video offers.
func (p *YouTubeProvider) FetchTranscript(ctx context.Context, videoID string, languages []string) ([]models.TranscriptEntry, error) {
	video, err := p.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", videoID, err)
	}
	if len(video.CaptionTracks) == 0 {
		return nil, core.ErrTranscriptsDisabled
	}

	var lastErr error
	for _, lang := range languages {
		if !hasTrack(video, lang) {
			continue
		}
		segments, err := p.client.GetTranscriptCtx(ctx, video, lang)
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			return nil, core.ErrTranscriptsDisabled
		}
		if err != nil {
			lastErr = err
			continue
		}
		return toEntries(segments), nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoTranscriptFound, lastErr)
	}
	return nil, core.ErrNoTranscriptFound
}

func hasTrack(video *youtube.Video, lang string) bool {
	return slices.ContainsFunc(video.CaptionTracks, func(t youtube.CaptionTrack) bool {
		return t.LanguageCode == lang
	})
}

func toEntries(segments youtube.VideoTranscript) []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(segments))
	for i, s := range segments {
		out[i] = models.TranscriptEntry{
			Text:     s.Text,
			Start:    time.Duration(s.StartMs) * time.Millisecond,
			Duration: time.Duration(s.Duration) * time.Millisecond,
		}
	}
	return out
}
