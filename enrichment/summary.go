package enrichment

import "github.com/camden-git/titlesnap/tmdb"

type CastSummary struct {
	Name       string `json:"name"`
	Character  string `json:"character,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// MediaSummary is the caller-facing enrichment record.
type MediaSummary struct {
	MediaType   tmdb.MediaType `json:"media_type"`
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Overview    string         `json:"overview,omitempty"`
	PosterURL   string         `json:"poster_url,omitempty"`
	VoteAverage float64        `json:"vote_average"`
	Date        string         `json:"date,omitempty"`
	Genres      []string       `json:"genres"`

	Runtime *int `json:"runtime,omitempty"`

	NumberOfSeasons  *int  `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes *int  `json:"number_of_episodes,omitempty"`
	EpisodeRunTime   []int `json:"episode_run_time,omitempty"`

	Cast       []CastSummary `json:"cast"`
	TrailerURL string        `json:"trailer_url,omitempty"`
}

// Shape turns fetched details into a MediaSummary. imageBase is the CDN
// prefix used for poster and profile URLs.
func Shape(d *tmdb.MediaDetails, imageBase string) *MediaSummary {
	if d == nil {
		return nil
	}

	s := &MediaSummary{
		MediaType:   d.MediaType,
		ID:          d.ID,
		Title:       d.DisplayTitle(),
		Overview:    d.Overview,
		PosterURL:   tmdb.ImageURL(imageBase, tmdb.PosterSize, d.PosterPath),
		VoteAverage: d.VoteAverage,
		Date:        d.Date(),
		Genres:      make([]string, 0, len(d.Genres)),
		Cast:        []CastSummary{},
	}
	for _, g := range d.Genres {
		s.Genres = append(s.Genres, g.Name)
	}

	if d.MediaType == tmdb.MediaTV {
		s.NumberOfSeasons = d.NumberOfSeasons
		s.NumberOfEpisodes = d.NumberOfEpisodes
		s.EpisodeRunTime = d.EpisodeRunTime
	} else {
		s.Runtime = d.Runtime
	}

	for _, m := range TopCast(d.Cast(), d.MediaType, MaxCast) {
		s.Cast = append(s.Cast, CastSummary{
			Name:       m.Name,
			Character:  CharacterName(m, d.MediaType),
			ProfileURL: tmdb.ImageURL(imageBase, tmdb.ProfileSize, m.ProfilePath),
		})
	}

	if url, ok := SelectTrailer(d.VideoList()); ok {
		s.TrailerURL = url
	}
	return s
}
