package enrichment

import (
	"sort"

	"github.com/camden-git/titlesnap/tmdb"
)

const (
	// MaxCast is how many cast entries are surfaced after sorting.
	MaxCast = 5

	missingOrder = 9999
)

func billingOrder(m tmdb.CastMember) int {
	if m.Order == nil {
		return missingOrder
	}
	return *m.Order
}

// episodeCount is the series-wide episode count of a cast entry: the
// aggregate total when present, otherwise the sum over its roles.
func episodeCount(m tmdb.CastMember) int {
	if m.TotalEpisodeCount != nil {
		return *m.TotalEpisodeCount
	}
	total := 0
	for _, r := range m.Roles {
		total += r.EpisodeCount
	}
	return total
}

// SortCast orders cast in place. movies go by ascending billing order with a
// missing order last; series go by descending episode count with a missing
// count treated as zero.
func SortCast(cast []tmdb.CastMember, mediaType tmdb.MediaType) {
	if mediaType == tmdb.MediaTV {
		sort.SliceStable(cast, func(i, j int) bool {
			return episodeCount(cast[i]) > episodeCount(cast[j])
		})
		return
	}
	sort.SliceStable(cast, func(i, j int) bool {
		return billingOrder(cast[i]) < billingOrder(cast[j])
	})
}

// TopCast returns the first n entries of a sorted copy of cast.
func TopCast(cast []tmdb.CastMember, mediaType tmdb.MediaType, n int) []tmdb.CastMember {
	sorted := append([]tmdb.CastMember(nil), cast...)
	SortCast(sorted, mediaType)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// CharacterName prefers the direct character field, then for series the
// first role's character. it returns "" when neither is set.
func CharacterName(m tmdb.CastMember, mediaType tmdb.MediaType) string {
	if m.Character != "" {
		return m.Character
	}
	if mediaType == tmdb.MediaTV && len(m.Roles) > 0 {
		return m.Roles[0].Character
	}
	return ""
}
