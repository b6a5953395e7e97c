package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/titlesnap/media"
	"github.com/camden-git/titlesnap/realtime"
	"github.com/camden-git/titlesnap/recognition"
	"github.com/camden-git/titlesnap/tmdb"
)

type fakeNormalizer struct {
	err error
}

func (f fakeNormalizer) Submit(ctx context.Context, raw []byte) (media.NormalizedImage, error) {
	if f.err != nil {
		return media.NormalizedImage{}, f.err
	}
	return media.NormalizedImage{Data: raw, Width: 10, Height: 10, SourceFormat: "image/png"}, nil
}

type fakeRecognizer struct {
	title string
	err   error
	got   string
	// block, when set, holds Identify until it is closed or ctx ends
	block chan struct{}
}

func (f *fakeRecognizer) Identify(ctx context.Context, transportImage string) (string, error) {
	f.got = transportImage
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.title, f.err
}

type fakeLookup struct {
	match      *tmdb.MediaMatch
	searchErr  error
	details    *tmdb.MediaDetails
	detailsErr error
	searched   []string
}

func (f *fakeLookup) Search(ctx context.Context, title string) (*tmdb.MediaMatch, error) {
	f.searched = append(f.searched, title)
	return f.match, f.searchErr
}

func (f *fakeLookup) FetchDetails(ctx context.Context, match tmdb.MediaMatch) (*tmdb.MediaDetails, error) {
	return f.details, f.detailsErr
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Broadcast(e realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Stage)
	}
	return out
}

func src() media.ImageSource {
	return media.BytesSource{Label: "shot.png", Data: []byte("img")}
}

func inception() *tmdb.MediaDetails {
	order := 0
	runtime := 148
	return &tmdb.MediaDetails{
		MediaType:   tmdb.MediaMovie,
		ID:          27205,
		Title:       "Inception",
		PosterPath:  "/p.jpg",
		ReleaseDate: "2010-07-15",
		Runtime:     &runtime,
		Credits: &tmdb.Credits{Cast: []tmdb.CastMember{
			{Name: "Leonardo DiCaprio", Character: "Cobb", Order: &order},
		}},
	}
}

func TestIdentifyEnrichesTitle(t *testing.T) {
	rec := &fakeRecognizer{title: "Inception"}
	lookup := &fakeLookup{match: &tmdb.MediaMatch{MediaType: tmdb.MediaMovie, ID: 27205}, details: inception()}
	pub := &recordingPublisher{}
	svc := NewIdentifyService(fakeNormalizer{}, rec, lookup, "https://img/", pub, nil)

	out, err := svc.Identify(context.Background(), "s1", src())
	require.NoError(t, err)
	assert.Equal(t, StatusIdentified, out.Status)
	assert.Equal(t, "Inception", out.Title)
	assert.Equal(t, LookupOK, out.Lookup)
	require.NotNil(t, out.Media)
	assert.Equal(t, "https://img/w200/p.jpg", out.Media.PosterURL)
	require.Len(t, out.Media.Cast, 1)
	assert.Equal(t, "Cobb", out.Media.Cast[0].Character)

	assert.Equal(t, media.EncodeTransport(media.NormalizedImage{Data: []byte("img")}), rec.got)
	assert.Equal(t, []string{"Inception"}, lookup.searched)
	assert.Equal(t, []string{StageReading, StageNormalizing, StageRecognizing, StageEnriching, StageDone}, pub.stages())
}

func TestIdentifyUnknownSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{}
	svc := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{title: "Unknown"}, lookup, "", nil, nil)

	out, err := svc.Identify(context.Background(), "s1", src())
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, out.Status)
	assert.Equal(t, NoMatchMessage, out.Message)
	assert.Equal(t, LookupSkipped, out.Lookup)
	assert.Nil(t, out.Media)
	assert.Empty(t, lookup.searched)
}

func TestIdentifyWithoutLookupClient(t *testing.T) {
	svc := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{title: "Heat"}, nil, "", nil, nil)
	assert.False(t, svc.LookupAvailable())

	out, err := svc.Identify(context.Background(), "s1", src())
	require.NoError(t, err)
	assert.Equal(t, "Heat", out.Title)
	assert.Equal(t, LookupUnavailable, out.Lookup)
	assert.Nil(t, out.Media)
}

func TestIdentifyLookupNetworkFailureKeepsTitle(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	lookup := &fakeLookup{searchErr: fmt.Errorf("request to /search/multi failed: %w", netErr)}
	svc := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{title: "Inception"}, lookup, "", nil, nil)

	out, err := svc.Identify(context.Background(), "s1", src())
	require.NoError(t, err)
	assert.Equal(t, StatusIdentified, out.Status)
	assert.Equal(t, "Inception", out.Title)
	assert.Equal(t, LookupFailed, out.Lookup)
	assert.Nil(t, out.Media)
}

func TestIdentifyDetailsFailure(t *testing.T) {
	lookup := &fakeLookup{
		match:      &tmdb.MediaMatch{MediaType: tmdb.MediaTV, ID: 1},
		detailsErr: &tmdb.StatusError{Path: "/tv/1", StatusCode: 500},
	}
	svc := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{title: "Lost"}, lookup, "", nil, nil)

	out, err := svc.Identify(context.Background(), "s1", src())
	require.NoError(t, err)
	assert.Equal(t, LookupFailed, out.Lookup)
	assert.Equal(t, "Lost", out.Title)
}

func TestIdentifyNoSearchMatch(t *testing.T) {
	svc := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{title: "Obscure"}, &fakeLookup{}, "", nil, nil)

	out, err := svc.Identify(context.Background(), "s1", src())
	require.NoError(t, err)
	assert.Equal(t, LookupNotFound, out.Lookup)
	assert.Nil(t, out.Media)
}

func TestIdentifyRecognitionError(t *testing.T) {
	recErr := &recognition.Error{Kind: recognition.KindRateLimited, StatusCode: 429}
	pub := &recordingPublisher{}
	lookup := &fakeLookup{}
	svc := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{err: recErr}, lookup, "", pub, nil)

	_, err := svc.Identify(context.Background(), "s1", src())
	var got *recognition.Error
	require.True(t, errors.As(err, &got))
	assert.Equal(t, recognition.KindRateLimited, got.Kind)
	assert.Empty(t, lookup.searched)

	stages := pub.stages()
	require.NotEmpty(t, stages)
	assert.Equal(t, StageFailed, stages[len(stages)-1])
	assert.Equal(t, "rate limited, retry later", pub.events[len(pub.events)-1].Error)
}

func TestIdentifyDecodeError(t *testing.T) {
	rec := &fakeRecognizer{title: "Heat"}
	svc := NewIdentifyService(fakeNormalizer{err: fmt.Errorf("%w: unknown format", media.ErrDecode)}, rec, nil, "", nil, nil)

	_, err := svc.Identify(context.Background(), "s1", src())
	assert.ErrorIs(t, err, media.ErrDecode)
	assert.Empty(t, rec.got, "recognition must not run for undecodable input")
}

func TestIdentifyStopsWhenCancelled(t *testing.T) {
	rec := &fakeRecognizer{title: "Heat"}
	svc := NewIdentifyService(fakeNormalizer{}, rec, nil, "", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Identify(ctx, "s1", src())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.got)
}

func TestIdentifyInSessionDiscardsStaleResult(t *testing.T) {
	slow := &fakeRecognizer{title: "Old Movie", block: make(chan struct{})}
	svc := NewIdentifyService(fakeNormalizer{}, slow, nil, "", nil, nil)
	sess := NewSession("s1")

	type result struct {
		out Outcome
		err error
	}
	first := make(chan result, 1)
	go func() {
		out, err := svc.IdentifyInSession(context.Background(), sess, src())
		first <- result{out, err}
	}()
	require.Eventually(t, func() bool { return sess.Snapshot().Loading }, time.Second, time.Millisecond)

	fast := NewIdentifyService(fakeNormalizer{}, &fakeRecognizer{title: "New Movie"}, nil, "", nil, nil)
	out, err := fast.IdentifyInSession(context.Background(), sess, src())
	require.NoError(t, err)
	assert.Equal(t, "New Movie", out.Title)

	select {
	case r := <-first:
		assert.ErrorIs(t, r.err, ErrSuperseded)
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not finish")
	}

	state := sess.Snapshot()
	assert.False(t, state.Loading)
	require.NotNil(t, state.Outcome)
	assert.Equal(t, "New Movie", state.Outcome.Title)
}
