package tmdb

import "strings"

type MediaType string

const (
	MediaMovie MediaType = "movie"
	MediaTV    MediaType = "tv"
)

// MediaMatch is the single search hit chosen for a recognized title.
type MediaMatch struct {
	MediaType MediaType `json:"media_type"`
	ID        int       `json:"id"`
}

type searchResponse struct {
	Page    int            `json:"page"`
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID        int    `json:"id"`
	MediaType string `json:"media_type"`
	Title     string `json:"title,omitempty"`
	Name      string `json:"name,omitempty"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Role is one character a series cast member played.
type Role struct {
	Character    string `json:"character"`
	EpisodeCount int    `json:"episode_count"`
}

// CastMember covers both movie credits and series aggregate credits. Order is
// set for movies; TotalEpisodeCount and Roles for series.
type CastMember struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Character         string `json:"character,omitempty"`
	ProfilePath       string `json:"profile_path,omitempty"`
	Order             *int   `json:"order,omitempty"`
	TotalEpisodeCount *int   `json:"total_episode_count,omitempty"`
	Roles             []Role `json:"roles,omitempty"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
}

type Video struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Site        string `json:"site"`
	Type        string `json:"type"`
	Official    bool   `json:"official"`
	PublishedAt string `json:"published_at"`
}

type Videos struct {
	Results []Video `json:"results"`
}

// MediaDetails merges the base record with the appended credits and videos.
// Runtime is only set for movies; the season/episode fields only for series.
type MediaDetails struct {
	MediaType MediaType `json:"media_type"`
	ID        int       `json:"id"`

	Title        string  `json:"title,omitempty"`
	Name         string  `json:"name,omitempty"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path,omitempty"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date,omitempty"`
	FirstAirDate string  `json:"first_air_date,omitempty"`
	Genres       []Genre `json:"genres"`

	Runtime *int `json:"runtime,omitempty"`

	NumberOfSeasons  *int  `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes *int  `json:"number_of_episodes,omitempty"`
	EpisodeRunTime   []int `json:"episode_run_time,omitempty"`

	Credits          *Credits `json:"credits,omitempty"`
	AggregateCredits *Credits `json:"aggregate_credits,omitempty"`
	Videos           *Videos  `json:"videos,omitempty"`
}

// DisplayTitle is the movie title or the series name.
func (d *MediaDetails) DisplayTitle() string {
	if d.MediaType == MediaTV || strings.TrimSpace(d.Title) == "" {
		return d.Name
	}
	return d.Title
}

// Date is the release date for movies and the first air date for series.
func (d *MediaDetails) Date() string {
	if d.MediaType == MediaTV {
		return d.FirstAirDate
	}
	return d.ReleaseDate
}

// Cast returns credits.cast for movies and aggregate_credits.cast for series.
func (d *MediaDetails) Cast() []CastMember {
	credits := d.Credits
	if d.MediaType == MediaTV {
		credits = d.AggregateCredits
	}
	if credits == nil {
		return nil
	}
	return credits.Cast
}

// VideoList returns videos.results or nil.
func (d *MediaDetails) VideoList() []Video {
	if d.Videos == nil {
		return nil
	}
	return d.Videos.Results
}

// enforceShape drops the fields that do not belong to the media type so only
// one of the movie/series duration groups is ever present.
func (d *MediaDetails) enforceShape(mediaType MediaType) {
	d.MediaType = mediaType
	switch mediaType {
	case MediaMovie:
		d.NumberOfSeasons = nil
		d.NumberOfEpisodes = nil
		d.EpisodeRunTime = nil
		d.AggregateCredits = nil
	case MediaTV:
		d.Runtime = nil
		d.Credits = nil
		if d.EpisodeRunTime == nil {
			d.EpisodeRunTime = []int{}
		}
		if d.NumberOfSeasons == nil {
			d.NumberOfSeasons = new(int)
		}
		if d.NumberOfEpisodes == nil {
			d.NumberOfEpisodes = new(int)
		}
	}
}
