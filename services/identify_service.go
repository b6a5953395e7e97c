package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/titlesnap/enrichment"
	"github.com/camden-git/titlesnap/logger"
	"github.com/camden-git/titlesnap/media"
	"github.com/camden-git/titlesnap/realtime"
	"github.com/camden-git/titlesnap/recognition"
	"github.com/camden-git/titlesnap/tmdb"
)

// Status is the primary result of an identification.
type Status string

const (
	StatusIdentified Status = "identified"
	StatusUnknown    Status = "unknown"
)

// LookupStatus describes how media enrichment went for an identified title.
type LookupStatus string

const (
	LookupOK          LookupStatus = "ok"
	LookupNotFound    LookupStatus = "not_found"
	LookupUnavailable LookupStatus = "unavailable"
	LookupFailed      LookupStatus = "failed"
	LookupSkipped     LookupStatus = "skipped"
)

const NoMatchMessage = "Could not identify a movie or show in this image"

// progress stages
const (
	StageReading     = "reading"
	StageNormalizing = "normalizing"
	StageRecognizing = "recognizing"
	StageEnriching   = "enriching"
	StageDone        = "done"
	StageFailed      = "failed"
)

// Outcome is what a finished identification hands back to the caller. Media is
// only set when Lookup is LookupOK.
type Outcome struct {
	Status  Status                   `json:"status"`
	Title   string                   `json:"title"`
	Message string                   `json:"message,omitempty"`
	Lookup  LookupStatus             `json:"lookup"`
	Media   *enrichment.MediaSummary `json:"media"`
}

type ImageNormalizer interface {
	Submit(ctx context.Context, raw []byte) (media.NormalizedImage, error)
}

type TitleRecognizer interface {
	Identify(ctx context.Context, transportImage string) (string, error)
}

type MediaLookup interface {
	Search(ctx context.Context, title string) (*tmdb.MediaMatch, error)
	FetchDetails(ctx context.Context, match tmdb.MediaMatch) (*tmdb.MediaDetails, error)
}

type Publisher interface {
	Broadcast(event realtime.Event)
}

// IdentifyService runs the image -> title -> media details pipeline
type IdentifyService struct {
	normalizer ImageNormalizer
	recognizer TitleRecognizer
	lookup     MediaLookup
	imageBase  string
	publisher  Publisher
	log        *logger.Logger
}

// NewIdentifyService builds the service. lookup and publisher may be nil; a nil
// lookup makes every identified title report LookupUnavailable.
func NewIdentifyService(
	normalizer ImageNormalizer,
	recognizer TitleRecognizer,
	lookup MediaLookup,
	imageBase string,
	publisher Publisher,
	log *logger.Logger,
) *IdentifyService {
	if log == nil {
		log = logger.Nop()
	}
	return &IdentifyService{
		normalizer: normalizer,
		recognizer: recognizer,
		lookup:     lookup,
		imageBase:  imageBase,
		publisher:  publisher,
		log:        log,
	}
}

// LookupAvailable reports whether a media database client is configured.
func (s *IdentifyService) LookupAvailable() bool {
	return s.lookup != nil
}

// Identify runs one full pass for src. Recognition failures come back as
// *recognition.Error and unreadable images wrap media.ErrDecode. Lookup
// problems never fail the call; they only change Outcome.Lookup.
func (s *IdentifyService) Identify(ctx context.Context, sessionID string, src media.ImageSource) (Outcome, error) {
	outcome, err := s.run(ctx, sessionID, src)
	if err != nil {
		s.publish(sessionID, StageFailed, "", "", userMessage(err))
		return Outcome{}, err
	}
	s.publish(sessionID, StageDone, string(outcome.Status), outcome.Title, "")
	return outcome, nil
}

func (s *IdentifyService) run(ctx context.Context, sessionID string, src media.ImageSource) (Outcome, error) {
	s.publish(sessionID, StageReading, "", "", "")
	raw, err := src.Bytes(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	s.publish(sessionID, StageNormalizing, "", "", "")
	img, err := s.normalizer.Submit(ctx, raw)
	if err != nil {
		return Outcome{}, fmt.Errorf("normalize %s: %w", src.Name(), err)
	}
	s.log.Debug("image normalized", "session", sessionID, "source", src.Name(),
		"format", img.SourceFormat, "width", img.Width, "height", img.Height)

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	s.publish(sessionID, StageRecognizing, "", "", "")
	title, err := s.recognizer.Identify(ctx, media.EncodeTransport(img))
	if err != nil {
		return Outcome{}, err
	}

	if recognition.IsUnknown(title) {
		return Outcome{
			Status:  StatusUnknown,
			Title:   recognition.UnknownTitle,
			Message: NoMatchMessage,
			Lookup:  LookupSkipped,
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{Status: StatusIdentified, Title: title}
	if s.lookup == nil {
		outcome.Lookup = LookupUnavailable
		return outcome, nil
	}

	s.publish(sessionID, StageEnriching, "", title, "")
	summary, status := s.enrich(ctx, title)
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	outcome.Lookup = status
	outcome.Media = summary
	return outcome, nil
}

func (s *IdentifyService) enrich(ctx context.Context, title string) (*enrichment.MediaSummary, LookupStatus) {
	match, err := s.lookup.Search(ctx, title)
	if err != nil {
		s.log.Warn("media search failed", "title", title, "error", err)
		return nil, LookupFailed
	}
	if match == nil {
		return nil, LookupNotFound
	}

	details, err := s.lookup.FetchDetails(ctx, *match)
	if err != nil {
		s.log.Warn("media details failed", "title", title, "media_type", match.MediaType, "id", match.ID, "error", err)
		return nil, LookupFailed
	}
	return enrichment.Shape(details, s.imageBase), LookupOK
}

func (s *IdentifyService) publish(sessionID, stage, status, title, errMsg string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Broadcast(realtime.Event{
		Type:      "progress",
		Session:   sessionID,
		Stage:     stage,
		Status:    status,
		Title:     title,
		Error:     errMsg,
		Timestamp: time.Now().UnixMilli(),
	})
}

// userMessage renders err the way it is shown to a person.
func userMessage(err error) string {
	var recErr *recognition.Error
	switch {
	case errors.As(err, &recErr):
		return recErr.Message()
	case errors.Is(err, media.ErrDecode):
		return "could not read the image"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}
