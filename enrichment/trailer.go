package enrichment

import (
	"sort"

	"github.com/camden-git/titlesnap/tmdb"
)

const youtubeWatchURL = "https://www.youtube.com/watch?v="

func typeRank(videoType string) int {
	if videoType == "Trailer" {
		return 0
	}
	return 1
}

// SelectTrailer picks the best YouTube trailer or teaser and returns its
// watch URL. candidates rank by type (Trailer before Teaser), then official
// before unofficial, then newest published_at first.
func SelectTrailer(videos []tmdb.Video) (string, bool) {
	var candidates []tmdb.Video
	for _, v := range videos {
		if v.Site != "YouTube" {
			continue
		}
		if v.Type != "Trailer" && v.Type != "Teaser" {
			continue
		}
		candidates = append(candidates, v)
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := typeRank(a.Type), typeRank(b.Type); ra != rb {
			return ra < rb
		}
		if a.Official != b.Official {
			return a.Official
		}
		// ISO-8601 strings sort chronologically
		return a.PublishedAt > b.PublishedAt
	})

	best := candidates[0]
	if best.Key == "" {
		return "", false
	}
	return youtubeWatchURL + best.Key, true
}
