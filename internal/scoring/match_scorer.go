package scoring

import (
	"strconv"
	"strings"

	"tracklink/internal/models"
)

// Scoring weights. Additive; the raw total is normalized against maxRawScore.
const (
	isrcWeight = 10

	artistExactWeight   = 5
	artistPartialWeight = 2

	titleExactWeight   = 5
	titlePartialWeight = 3

	durationTightWeight  = 4 // within 2s
	durationCloseWeight  = 3 // within 5s
	durationLooseWeight  = 1 // within 10s

	yearExactWeight    = 2
	yearAdjacentWeight = 1

	albumExactWeight   = 2
	albumPartialWeight = 1

	labelExactWeight   = 2
	labelPartialWeight = 1

	maxRawScore = 30
)

// minAcceptScore is the raw score floor below which a candidate is never
// accepted, regardless of which components contributed.
const minAcceptScore = 5

// MatchScore is the result of scoring one candidate against a reference track.
type MatchScore struct {
	Raw        int     `json:"raw"`
	Confidence float64 `json:"confidence"` // Raw normalized to [0,1]
	ArtistHit  bool    `json:"artist_hit"`
	ISRCHit    bool    `json:"isrc_hit"`
}

// Accepted reports whether the candidate clears the acceptance gate: enough
// total evidence plus corroboration from either the artist or the ISRC.
// Title-only or duration-only matches are never sufficient; generic titles
// ("Intro", "Freedom") would otherwise collide across unrelated artists.
func (m MatchScore) Accepted() bool {
	return m.Raw >= minAcceptScore && (m.ArtistHit || m.ISRCHit)
}

// Score computes the similarity between a reference track and one platform
// candidate. Pure function, no I/O.
func Score(base models.BaseTrack, candidate models.Candidate) MatchScore {
	var score MatchScore

	if base.ISRC != "" && candidate.ISRC != "" &&
		strings.EqualFold(base.ISRC, candidate.ISRC) {
		score.Raw += isrcWeight
		score.ISRCHit = true
	}

	artistPoints, artistHit := scoreArtists(base, candidate)
	score.Raw += artistPoints
	score.ArtistHit = artistHit

	score.Raw += scoreText(base.Title, candidate.Title, titleExactWeight, titlePartialWeight)
	score.Raw += scoreDuration(base.DurationSeconds, candidate.DurationSeconds)
	score.Raw += scoreReleaseYear(base.ReleaseDate, candidate.ReleaseDate)
	score.Raw += scoreText(base.Album, candidate.Album, albumExactWeight, albumPartialWeight)
	score.Raw += scoreText(base.Label, candidate.Label, labelExactWeight, labelPartialWeight)

	score.Confidence = float64(score.Raw) / maxRawScore
	if score.Confidence > 1 {
		score.Confidence = 1
	}

	return score
}

// scoreArtists compares the artist fragment sets of both sides. Exact
// fragment membership is a strong hit; substring containment between any
// fragment pair is a weak hit.
func scoreArtists(base models.BaseTrack, candidate models.Candidate) (int, bool) {
	baseFragments := artistFragments(base)
	candFragments := artistFragments(candidate.BaseTrack)
	if len(baseFragments) == 0 || len(candFragments) == 0 {
		return 0, false
	}

	for _, bf := range baseFragments {
		for _, cf := range candFragments {
			if bf == cf {
				return artistExactWeight, true
			}
		}
	}

	for _, bf := range baseFragments {
		for _, cf := range candFragments {
			if strings.Contains(bf, cf) || strings.Contains(cf, bf) {
				return artistPartialWeight, true
			}
		}
	}

	return 0, false
}

// artistSeparators split a credit string into individual artist names.
var artistSeparators = []string{",", "/", "&", "feat.", "ft."}

// artistFragments normalizes every artist credit on a track into a flat set
// of name fragments.
func artistFragments(t models.BaseTrack) []string {
	names := t.Artists
	if len(names) == 0 && t.Artist != "" {
		names = []string{t.Artist}
	} else if t.Artist != "" && !containsFold(names, t.Artist) {
		names = append(append([]string{}, names...), t.Artist)
	}

	var fragments []string
	for _, name := range names {
		parts := []string{name}
		for _, sep := range artistSeparators {
			var next []string
			for _, p := range parts {
				next = append(next, strings.Split(p, sep)...)
			}
			parts = next
		}
		for _, p := range parts {
			if f := normalizeName(p); f != "" {
				fragments = append(fragments, f)
			}
		}
	}
	return fragments
}

// scoreText awards the exact weight on normalized equality and the partial
// weight on substring containment in either direction.
func scoreText(a, b string, exact, partial int) int {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return exact
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return partial
	}
	return 0
}

func scoreDuration(a, b int) int {
	if a <= 0 || b <= 0 {
		return 0
	}
	delta := a - b
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= 2:
		return durationTightWeight
	case delta <= 5:
		return durationCloseWeight
	case delta <= 10:
		return durationLooseWeight
	}
	return 0
}

// scoreReleaseYear parses the year from the first 4 characters of each
// release date.
func scoreReleaseYear(a, b string) int {
	yearA, okA := parseYear(a)
	yearB, okB := parseYear(b)
	if !okA || !okB {
		return 0
	}
	delta := yearA - yearB
	if delta < 0 {
		delta = -delta
	}
	switch delta {
	case 0:
		return yearExactWeight
	case 1:
		return yearAdjacentWeight
	}
	return 0
}

func parseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year == 0 {
		return 0, false
	}
	return year, true
}

// normalizeName lowercases, strips quote characters, and collapses
// whitespace.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '‘', '’', '“', '”':
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
