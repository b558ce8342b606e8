package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"tracklink/internal/models"
)

// youtubeService implements PlatformService for YouTube via the YouTube Data
// API v3. Search results carry no duration, so a second videos call fills it
// in.
type youtubeService struct {
	client  *resty.Client
	limiter *rate.Limiter
	apiKey  string
}

const youtubeAPIURL = "https://www.googleapis.com/youtube/v3"

// NewYouTubeService creates a new YouTube service
func NewYouTubeService(apiKey string, timeout time.Duration) PlatformService {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	return &youtubeService{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		apiKey:  apiKey,
	}
}

// GetPlatformName returns the platform name
func (s *youtubeService) GetPlatformName() string {
	return models.PlatformYouTube
}

// ParseURL extracts the video ID from a YouTube URL
func (s *youtubeService) ParseURL(url string) (*models.Candidate, error) {
	platform, videoID, err := ParsePlatformURL(url)
	if err != nil || platform != models.PlatformYouTube {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "parse_url",
			Message:   "invalid YouTube URL format",
			URL:       url,
		}
	}

	return &models.Candidate{
		Platform:   models.PlatformYouTube,
		ExternalID: videoID,
		URL:        s.BuildURL(videoID),
	}, nil
}

// GetTrackByID fetches video details for a video ID
func (s *youtubeService) GetTrackByID(ctx context.Context, videoID string) (*models.Candidate, error) {
	if s.apiKey == "" {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "get_track",
			Message:   "API key not configured",
		}
	}

	details, err := s.videoDetails(ctx, []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "get_track",
			Message:   "video not found",
		}
	}

	candidate := s.convertVideo(details[0])
	return &candidate, nil
}

// Search searches YouTube for candidates matching the reference track.
func (s *youtubeService) Search(ctx context.Context, base models.BaseTrack, limit int) []models.Candidate {
	candidates, err := s.search(ctx, base, limit)
	if err != nil {
		slog.Warn("YouTube search failed",
			"title", base.Title,
			"artist", base.PrimaryArtist(),
			"error", err)
		return nil
	}
	return candidates
}

func (s *youtubeService) search(ctx context.Context, base models.BaseTrack, limit int) ([]models.Candidate, error) {
	if s.apiKey == "" {
		return nil, nil // not configured; valid empty outcome
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := searchText(base)
	if query == "" {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var searchResult youtubeSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":            "snippet",
			"type":            "video",
			"videoCategoryId": "10", // Music
			"q":               query,
			"maxResults":      strconv.Itoa(limit),
			"key":             s.apiKey,
		}).
		SetResult(&searchResult).
		Get(youtubeAPIURL + "/search")

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "search",
			Message:   "request failed",
			Err:       err,
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "search",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	ids := make([]string, 0, len(searchResult.Items))
	for _, item := range searchResult.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	// Second call for durations; without it the scorer would lose the
	// duration component on every YouTube candidate.
	videos, err := s.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(videos))
	for _, video := range videos {
		candidates = append(candidates, s.convertVideo(video))
	}
	return candidates, nil
}

// videoDetails fetches snippet + contentDetails for a batch of video IDs.
func (s *youtubeService) videoDetails(ctx context.Context, ids []string) ([]youtubeVideo, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var result youtubeVideosResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part": "snippet,contentDetails",
			"id":   strings.Join(ids, ","),
			"key":  s.apiKey,
		}).
		SetResult(&result).
		Get(youtubeAPIURL + "/videos")

	if err != nil {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "video_details",
			Message:   "request failed",
			Err:       err,
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "video_details",
			Message:   fmt.Sprintf("API returned status %d", resp.StatusCode()),
		}
	}

	return result.Items, nil
}

// BuildURL constructs a YouTube watch URL from a video ID
func (s *youtubeService) BuildURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// Health checks YouTube API health
func (s *youtubeService) Health(ctx context.Context) error {
	if s.apiKey == "" {
		return &PlatformError{
			Platform:  models.PlatformYouTube,
			Operation: "health",
			Message:   "API key not configured",
		}
	}
	_, err := s.videoDetails(ctx, []string{"dQw4w9WgXcQ"})
	return err
}

// convertVideo converts a YouTube video to a Candidate, splitting the video
// title into artist and title halves.
func (s *youtubeService) convertVideo(video youtubeVideo) models.Candidate {
	artist, title := SplitVideoTitle(video.Snippet.Title, video.Snippet.ChannelTitle)

	candidate := models.Candidate{
		Platform:   models.PlatformYouTube,
		ExternalID: video.ID,
		URL:        s.BuildURL(video.ID),
	}
	candidate.Title = title
	candidate.Artist = artist
	candidate.Artists = []string{artist}
	candidate.DurationSeconds = parseISO8601Duration(video.ContentDetails.Duration)
	if len(video.Snippet.PublishedAt) >= 10 {
		candidate.ReleaseDate = video.Snippet.PublishedAt[:10]
	}
	if video.Snippet.Thumbnails.High.URL != "" {
		candidate.CoverArtURL = video.Snippet.Thumbnails.High.URL
	}

	return candidate
}

// videoTitleSeparators are tried in order when splitting "Artist - Title"
// style video names.
var videoTitleSeparators = []string{" - ", " – ", " — "}

// SplitVideoTitle splits a video title into artist and title halves on a
// hyphen or dash separator. When no separator is present the whole string is
// the title and the channel name is the artist fallback.
func SplitVideoTitle(videoTitle, channelTitle string) (artist, title string) {
	for _, sep := range videoTitleSeparators {
		if idx := strings.Index(videoTitle, sep); idx > 0 {
			return strings.TrimSpace(videoTitle[:idx]), strings.TrimSpace(videoTitle[idx+len(sep):])
		}
	}

	channel := strings.TrimSpace(channelTitle)
	channel = strings.TrimSuffix(channel, " - Topic") // auto-generated music channels
	return channel, strings.TrimSpace(videoTitle)
}

var iso8601DurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts the API's PT#H#M#S duration to seconds.
func parseISO8601Duration(duration string) int {
	matches := iso8601DurationPattern.FindStringSubmatch(duration)
	if matches == nil {
		return 0
	}

	seconds := 0
	if matches[1] != "" {
		hours, _ := strconv.Atoi(matches[1])
		seconds += hours * 3600
	}
	if matches[2] != "" {
		minutes, _ := strconv.Atoi(matches[2])
		seconds += minutes * 60
	}
	if matches[3] != "" {
		secs, _ := strconv.Atoi(matches[3])
		seconds += secs
	}
	return seconds
}

// YouTube Data API response structures
type youtubeSearchResponse struct {
	Items []youtubeSearchItem `json:"items"`
}

type youtubeSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
}

type youtubeVideosResponse struct {
	Items []youtubeVideo `json:"items"`
}

type youtubeVideo struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
		Thumbnails   struct {
			High struct {
				URL string `json:"url"`
			} `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}
