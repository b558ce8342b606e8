package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracklink/internal/models"
	"tracklink/internal/repositories"
	"tracklink/internal/scoring"
)

// Outcome is the terminal state of one resolution request.
type Outcome string

const (
	// OutcomeResolved means at least one platform destination was found and
	// the link was persisted.
	OutcomeResolved Outcome = "RESOLVED"

	// OutcomeCached means an existing record satisfied the request with no
	// external calls.
	OutcomeCached Outcome = "CACHED"

	// OutcomeLowConfidence means a free-text query failed the strict
	// confidence gate; the caller should ask the user for a direct link.
	OutcomeLowConfidence Outcome = "LOW_CONFIDENCE"
)

// Confidence assigned to links taken verbatim from the provider or the
// input. A recognition result with an ISRC is near-certain; one without is
// below the free-text acceptance gate by design.
const (
	inputURLConfidence          = 1.0
	recognitionISRCConfidence   = 0.9
	recognitionNoISRCConfidence = 0.5
)

// ResolutionResult is the outcome of ResolveTrack.
type ResolutionResult struct {
	Outcome Outcome           `json:"outcome"`
	Link    *models.SmartLink `json:"link,omitempty"`
	Query   TrackQuery        `json:"query"`
}

// ResolutionService orchestrates cache check, recognition, concurrent
// platform search, merge, and persistence.
type ResolutionService struct {
	repo              repositories.LinkRepository
	recognition       RecognitionGateway // nil when not configured
	platforms         map[string]PlatformService
	searchLimit       int
	freeTextThreshold float64
	providerTimeout   time.Duration
}

// NewResolutionService creates a new resolution service
func NewResolutionService(repo repositories.LinkRepository, recognition RecognitionGateway, searchLimit int, freeTextThreshold float64, providerTimeout time.Duration) *ResolutionService {
	return &ResolutionService{
		repo:              repo,
		recognition:       recognition,
		platforms:         make(map[string]PlatformService),
		searchLimit:       searchLimit,
		freeTextThreshold: freeTextThreshold,
		providerTimeout:   providerTimeout,
	}
}

// RegisterPlatform registers a platform search client
func (s *ResolutionService) RegisterPlatform(service PlatformService) {
	s.platforms[service.GetPlatformName()] = service
}

// GetPlatformService returns a registered platform client by name
func (s *ResolutionService) GetPlatformService(name string) PlatformService {
	return s.platforms[name]
}

// linkSource is one origin of per-platform destinations. Sources are folded
// in order; the first present value per platform wins.
type linkSource struct {
	name  string
	links map[string]models.ProviderResult
}

// ResolveTrack resolves a raw input into a persisted multi-platform smart
// link.
func (s *ResolutionService) ResolveTrack(ctx context.Context, rawInput string, hints QueryHints) (*ResolutionResult, error) {
	query, err := NormalizeQuery(rawInput, hints)
	if err != nil {
		return nil, err
	}

	// Cache check strictly precedes any network call.
	existing, err := s.findExisting(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("cache check failed: %w", err)
	}
	if existing != nil && !existing.NeedsManualReview {
		slog.Info("Resolution served from existing record",
			"slug", existing.Slug, "id", existing.ID.Hex())
		return &ResolutionResult{Outcome: OutcomeCached, Link: existing, Query: query}, nil
	}

	// Recognition first; failures fall through to platform search.
	recognition := s.recognize(ctx, query)

	base := s.deriveBaseTrack(ctx, query, recognition)

	sources := []linkSource{s.inputURLSource(query)}
	if recognition.HasLinks() {
		sources = append(sources, s.recognitionSource(query, recognition))
	}

	// Fan out to the platforms still missing a destination.
	if missing := s.missingPlatforms(sources); len(missing) > 0 && base.Title != "" {
		sources = append(sources, s.searchSource(ctx, query, recognition, base, missing))
	}

	merged := mergeLinkSources(sources)
	if len(merged) == 0 || base.Title == "" || base.PrimaryArtist() == "" {
		slog.Info("Resolution rejected: no usable source",
			"kind", query.Kind, "links", len(merged), "title", base.Title)
		return &ResolutionResult{Outcome: OutcomeLowConfidence, Query: query}, nil
	}

	link, err := s.persist(ctx, base, merged, existing)
	if err != nil {
		return nil, err
	}

	slog.Info("Resolution complete",
		"slug", link.Slug,
		"platforms", len(link.PlatformLinks),
		"confidence", link.MatchConfidence,
		"needs_review", link.NeedsManualReview)

	return &ResolutionResult{Outcome: OutcomeResolved, Link: link, Query: query}, nil
}

// findExisting looks up a reusable record by the strongest identity key the
// query carries.
func (s *ResolutionService) findExisting(ctx context.Context, query TrackQuery) (*models.SmartLink, error) {
	switch query.Kind {
	case InputKindISRC:
		return s.repo.FindByISRC(ctx, query.RawInput)
	case InputKindURL:
		platform, trackID, err := ParsePlatformURL(query.RawInput)
		if err != nil {
			return nil, nil // unrecognized URL shape; treated as a miss
		}
		return s.repo.FindByPlatformID(ctx, platform, trackID)
	default:
		if query.TitleHint == "" || query.ArtistHint == "" {
			return nil, nil
		}
		return s.repo.FindByTitleArtist(ctx, query.TitleHint, query.ArtistHint)
	}
}

// recognize calls the recognition gateway. Any failure degrades to nil; the
// coordinator always has a fallback path.
func (s *ResolutionService) recognize(ctx context.Context, query TrackQuery) *RecognitionResult {
	if s.recognition == nil {
		return nil
	}

	var result *RecognitionResult
	var err error
	if query.Kind == InputKindURL {
		result, err = s.recognition.RecognizeByURL(ctx, query.RawInput)
	} else {
		result, err = s.recognition.RecognizeByText(ctx, query.RawInput)
	}
	if err != nil {
		slog.Info("Recognition unavailable, falling back to platform search",
			"kind", query.Kind, "error", err)
		return nil
	}
	return result
}

// deriveBaseTrack builds the reference identity from recognition output, the
// input URL's own platform, or the free-text hints, in that order of
// preference.
func (s *ResolutionService) deriveBaseTrack(ctx context.Context, query TrackQuery, recognition *RecognitionResult) models.BaseTrack {
	if recognition != nil && recognition.Track.Title != "" {
		return recognition.Track
	}

	if query.Kind == InputKindURL {
		platform, trackID, err := ParsePlatformURL(query.RawInput)
		if err == nil {
			if svc, ok := s.platforms[platform]; ok {
				if candidate, err := svc.GetTrackByID(ctx, trackID); err == nil {
					return candidate.BaseTrack
				} else {
					slog.Warn("Failed to fetch track from input URL platform",
						"platform", platform, "track_id", trackID, "error", err)
				}
			}
		}
	}

	base := models.BaseTrack{
		Title:  query.TitleHint,
		Artist: query.ArtistHint,
	}
	if query.Kind == InputKindISRC {
		base.ISRC = query.RawInput
	}
	return base
}

// inputURLSource yields the literal input URL as the destination for its own
// platform. It outranks every searched or recognized value for that
// platform.
func (s *ResolutionService) inputURLSource(query TrackQuery) linkSource {
	source := linkSource{name: "input_url", links: make(map[string]models.ProviderResult)}
	if query.Kind != InputKindURL {
		return source
	}

	platform, trackID, err := ParsePlatformURL(query.RawInput)
	if err != nil {
		return source
	}

	source.links[platform] = models.ProviderResult{
		Platform:   platform,
		ExternalID: trackID,
		URL:        query.RawInput, // preserved verbatim
		Confidence: inputURLConfidence,
	}
	return source
}

// recognitionSource converts provider-known links into per-platform results.
// For free text, a result without ISRC corroboration scores below the
// acceptance gate and is dropped.
func (s *ResolutionService) recognitionSource(query TrackQuery, recognition *RecognitionResult) linkSource {
	confidence := recognitionNoISRCConfidence
	if recognition.Track.ISRC != "" {
		confidence = recognitionISRCConfidence
	}

	source := linkSource{name: "recognition", links: make(map[string]models.ProviderResult)}
	if query.Kind == InputKindFreeText && confidence < s.freeTextThreshold {
		slog.Info("Recognition result below free-text gate, discarding links",
			"confidence", confidence, "threshold", s.freeTextThreshold)
		return source
	}

	for platform, url := range recognition.Links {
		source.links[platform] = models.ProviderResult{
			Platform:   platform,
			URL:        url,
			Confidence: confidence,
		}
	}
	return source
}

// searchSource fans out to the given platforms concurrently, scores all
// candidates, and keeps each platform's best accepted one. Every branch
// absorbs its own failures; a slow or failing provider never blocks the
// others.
func (s *ResolutionService) searchSource(ctx context.Context, query TrackQuery, recognition *RecognitionResult, base models.BaseTrack, platforms []string) linkSource {
	// Free-text queries with no recognition corroboration face a stricter
	// per-candidate confidence floor.
	minConfidence := 0.0
	if query.Kind == InputKindFreeText && (recognition == nil || recognition.Track.ISRC == "") {
		minConfidence = s.freeTextThreshold
	}

	results := make(chan models.ProviderResult, len(platforms))
	var wg sync.WaitGroup

	for _, platform := range platforms {
		svc, ok := s.platforms[platform]
		if !ok {
			continue
		}

		wg.Add(1)
		go func(platform string, svc PlatformService) {
			defer wg.Done()

			searchCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
			defer cancel()

			best, ok := bestCandidate(base, svc.Search(searchCtx, base, s.searchLimit), minConfidence)
			if ok {
				results <- best
			}
		}(platform, svc)
	}

	wg.Wait()
	close(results)

	source := linkSource{name: "platform_search", links: make(map[string]models.ProviderResult)}
	for result := range results {
		source.links[result.Platform] = result
	}
	return source
}

// bestCandidate scores candidates against the reference track and returns
// the best one clearing the acceptance gate and the confidence floor.
func bestCandidate(base models.BaseTrack, candidates []models.Candidate, minConfidence float64) (models.ProviderResult, bool) {
	var best models.ProviderResult
	bestRaw := -1

	for _, candidate := range candidates {
		score := scoring.Score(base, candidate)
		if !score.Accepted() || score.Confidence < minConfidence {
			continue
		}
		if score.Raw > bestRaw {
			bestRaw = score.Raw
			best = models.ProviderResult{
				Platform:   candidate.Platform,
				ExternalID: candidate.ExternalID,
				URL:        candidate.URL,
				Confidence: score.Confidence,
			}
		}
	}

	return best, bestRaw >= 0
}

// missingPlatforms returns the searchable platforms no source has covered
// yet.
func (s *ResolutionService) missingPlatforms(sources []linkSource) []string {
	var missing []string
	for platform := range s.platforms {
		covered := false
		for _, source := range sources {
			if _, ok := source.links[platform]; ok {
				covered = true
				break
			}
		}
		if !covered {
			missing = append(missing, platform)
		}
	}
	return missing
}

// mergeLinkSources folds sources left to right, keeping the first present
// value per platform.
func mergeLinkSources(sources []linkSource) map[string]models.ProviderResult {
	merged := make(map[string]models.ProviderResult)
	for _, source := range sources {
		for platform, result := range source.links {
			if _, ok := merged[platform]; !ok {
				merged[platform] = result
			}
		}
	}
	return merged
}

// persist writes the resolved link. An existing record flagged for review is
// re-resolved in place, keeping its id and slug.
func (s *ResolutionService) persist(ctx context.Context, base models.BaseTrack, merged map[string]models.ProviderResult, existing *models.SmartLink) (*models.SmartLink, error) {
	link := existing
	if link == nil {
		link = models.NewSmartLink(base.Title, base.PrimaryArtist())
	} else {
		link.Title = base.Title
		link.Artist = base.PrimaryArtist()
	}

	if base.ISRC != "" {
		link.ISRC = base.ISRC
	}
	link.Album = base.Album
	link.Metadata.DurationSeconds = base.DurationSeconds
	link.Metadata.ReleaseDate = base.ReleaseDate
	link.Metadata.Label = base.Label
	link.Metadata.CoverArtURL = base.CoverArtURL

	for _, result := range merged {
		link.SetPlatformLink(result.Platform, result.ExternalID, result.URL, result.Confidence)
	}

	saved, err := s.repo.Save(ctx, link)
	if err != nil {
		return nil, fmt.Errorf("failed to persist link: %w", err)
	}
	return saved, nil
}

// Health reports the health of every registered platform client.
func (s *ResolutionService) Health(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.platforms))
	for platform, svc := range s.platforms {
		results[platform] = svc.Health(ctx)
	}
	return results
}
