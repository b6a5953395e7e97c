package tmdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts Options) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	opts.HTTPClient = srv.Client()
	if opts.APIKey == "" && opts.ReadAccessToken == "" {
		opts.APIKey = "key"
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c, srv
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearchSkipsPeopleAndTakesFirst(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/multi", r.URL.Path)
		assert.Equal(t, "The Office", r.URL.Query().Get("query"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		_, _ = io.WriteString(w, `{"page":1,"results":[
			{"id":9,"media_type":"person","name":"Steve Carell"},
			{"id":2316,"media_type":"tv","name":"The Office"},
			{"id":500,"media_type":"movie","title":"The Office Movie"}
		]}`)
	}, Options{})

	match, err := c.Search(context.Background(), "The Office")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, MediaMatch{MediaType: MediaTV, ID: 2316}, *match)
}

func TestSearchNoQualifyingResult(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[{"id":1,"media_type":"person"}]}`)
	}, Options{})

	match, err := c.Search(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestSearchUsesBearerToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("api_key"))
		assert.Equal(t, "fr-FR", r.URL.Query().Get("language"))
		_, _ = io.WriteString(w, `{"results":[]}`)
	}, Options{ReadAccessToken: "tok", Language: "fr-FR"})

	_, err := c.Search(context.Background(), "Amélie")
	require.NoError(t, err)
}

func TestSearchStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, Options{})

	_, err := c.Search(context.Background(), "Heat")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestFetchMovieDetails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/27205", r.URL.Path)
		assert.Equal(t, "credits,videos", r.URL.Query().Get("append_to_response"))
		_, _ = io.WriteString(w, `{
			"id":27205,"title":"Inception","overview":"Dreams.","poster_path":"/p.jpg",
			"vote_average":8.4,"release_date":"2010-07-15","runtime":148,
			"number_of_seasons":3,
			"genres":[{"id":28,"name":"Action"}],
			"credits":{"cast":[{"name":"Leonardo DiCaprio","character":"Cobb","order":0}]},
			"videos":{"results":[{"key":"abc","site":"YouTube","type":"Trailer","official":true,"published_at":"2010-05-01T00:00:00.000Z"}]}
		}`)
	}, Options{})

	d, err := c.FetchDetails(context.Background(), MediaMatch{MediaType: MediaMovie, ID: 27205})
	require.NoError(t, err)
	assert.Equal(t, MediaMovie, d.MediaType)
	assert.Equal(t, "Inception", d.DisplayTitle())
	assert.Equal(t, "2010-07-15", d.Date())
	require.NotNil(t, d.Runtime)
	assert.Equal(t, 148, *d.Runtime)
	assert.Nil(t, d.NumberOfSeasons, "series fields are dropped for movies")
	require.Len(t, d.Cast(), 1)
	assert.Equal(t, "Cobb", d.Cast()[0].Character)
	require.Len(t, d.VideoList(), 1)
}

func TestFetchTVDetails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1396", r.URL.Path)
		assert.Equal(t, "aggregate_credits,videos", r.URL.Query().Get("append_to_response"))
		_, _ = io.WriteString(w, `{
			"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","runtime":47,
			"number_of_seasons":5,"number_of_episodes":62,"episode_run_time":[45,47],
			"aggregate_credits":{"cast":[{"name":"Bryan Cranston","total_episode_count":62,
				"roles":[{"character":"Walter White","episode_count":62}]}]}
		}`)
	}, Options{})

	d, err := c.FetchDetails(context.Background(), MediaMatch{MediaType: MediaTV, ID: 1396})
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", d.DisplayTitle())
	assert.Equal(t, "2008-01-20", d.Date())
	assert.Nil(t, d.Runtime, "runtime is dropped for series")
	require.NotNil(t, d.NumberOfSeasons)
	assert.Equal(t, 5, *d.NumberOfSeasons)
	assert.Equal(t, []int{45, 47}, d.EpisodeRunTime)
	require.Len(t, d.Cast(), 1)
	assert.Equal(t, "Walter White", d.Cast()[0].Roles[0].Character)
	assert.Empty(t, d.VideoList())
}

func TestFetchTVDetailsMissingCounts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":42,"name":"Pilot Only","first_air_date":"2020-01-01"}`)
	}, Options{})

	d, err := c.FetchDetails(context.Background(), MediaMatch{MediaType: MediaTV, ID: 42})
	require.NoError(t, err)
	require.NotNil(t, d.NumberOfSeasons)
	require.NotNil(t, d.NumberOfEpisodes)
	assert.Equal(t, 0, *d.NumberOfSeasons)
	assert.Equal(t, 0, *d.NumberOfEpisodes)
	assert.Equal(t, []int{}, d.EpisodeRunTime)
}

func TestFetchDetailsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":`)
	}, Options{})

	_, err := c.FetchDetails(context.Background(), MediaMatch{MediaType: MediaMovie, ID: 1})
	assert.Error(t, err)
}

func TestFetchDetailsUnsupportedType(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, Options{})

	_, err := c.FetchDetails(context.Background(), MediaMatch{MediaType: "person", ID: 1})
	assert.Error(t, err)
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "https://image.tmdb.org/t/p/w200/p.jpg", ImageURL("https://image.tmdb.org/t/p/", PosterSize, "/p.jpg"))
	assert.Equal(t, "https://image.tmdb.org/t/p/w185/x.jpg", ImageURL("https://image.tmdb.org/t/p", ProfileSize, "x.jpg"))
	assert.Empty(t, ImageURL("https://image.tmdb.org/t/p/", PosterSize, ""))
}
