package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/camden-git/titlesnap/logger"
	"github.com/camden-git/titlesnap/media"
	"github.com/camden-git/titlesnap/services"
)

const multipartImageField = "image"

// Identifier is the part of services.IdentifyService the handler needs.
type Identifier interface {
	IdentifyInSession(ctx context.Context, sess *services.Session, src media.ImageSource) (services.Outcome, error)
}

type IdentifyHandler struct {
	Service            Identifier
	Log                *logger.Logger
	MaxUploadBytes     int64
	SourceFetchTimeout time.Duration
	// HTTPClient fetches URL sources; nil refuses non-public addresses
	HTTPClient *http.Client
}

type identifyURLRequest struct {
	URL string `json:"url"`
}

type IdentifyResponse struct {
	SessionID string `json:"session_id"`
	services.Outcome
}

// Identify accepts either a multipart upload in the "image" field or a JSON
// body of the form {"url": "..."} and returns the identification outcome.
func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	log := h.logger()
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "session missing from request context")
		return
	}

	src, status, code, detail := h.sourceFromRequest(w, r)
	if src == nil {
		WriteAPIError(w, status, code, detail)
		return
	}

	log.Info("identify requested", "session", sess.ID, "source", src.Name())
	outcome, err := h.Service.IdentifyInSession(r.Context(), sess, src)
	if err != nil {
		writeIdentifyError(w, log.With("session", sess.ID), err)
		return
	}

	log.Info("identify finished", "session", sess.ID, "status", outcome.Status, "title", outcome.Title, "lookup", outcome.Lookup)
	writeJSON(w, http.StatusOK, IdentifyResponse{SessionID: sess.ID, Outcome: outcome})
}

// sourceFromRequest picks the image source from the body. on failure src is nil
// and the remaining values describe the error response.
func (h *IdentifyHandler) sourceFromRequest(w http.ResponseWriter, r *http.Request) (src media.ImageSource, status int, code, detail string) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, http.StatusUnsupportedMediaType, CodeInvalidRequest, "Content-Type must be multipart/form-data or application/json"
	}

	limit := h.maxBytes()
	switch {
	case mediaType == "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
		file, header, err := r.FormFile(multipartImageField)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, http.StatusRequestEntityTooLarge, CodeTooLarge, "image exceeds size limit"
			}
			return nil, http.StatusBadRequest, CodeInvalidRequest, "missing multipart field '" + multipartImageField + "'"
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			return nil, http.StatusBadRequest, CodeInvalidRequest, "failed to read upload"
		}
		if len(data) == 0 {
			return nil, http.StatusBadRequest, CodeDecodeFailed, "uploaded image is empty"
		}
		return media.BytesSource{Label: header.Filename, Data: data, MaxBytes: limit}, 0, "", ""

	case mediaType == "application/json":
		var req identifyURLRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
			return nil, http.StatusBadRequest, CodeInvalidRequest, "invalid request body: " + err.Error()
		}
		req.URL = strings.TrimSpace(req.URL)
		if req.URL == "" {
			return nil, http.StatusBadRequest, CodeInvalidRequest, "missing required field: url"
		}
		if err := media.ValidateImageURL(req.URL); err != nil {
			return nil, http.StatusBadRequest, CodeInvalidRequest, err.Error()
		}
		return media.URLSource{URL: req.URL, Client: h.HTTPClient, MaxBytes: limit, Timeout: h.SourceFetchTimeout}, 0, "", ""

	default:
		return nil, http.StatusUnsupportedMediaType, CodeInvalidRequest, "Content-Type must be multipart/form-data or application/json"
	}
}

func (h *IdentifyHandler) maxBytes() int64 {
	if h.MaxUploadBytes <= 0 {
		return media.DefaultMaxSourceBytes
	}
	return h.MaxUploadBytes
}

func (h *IdentifyHandler) logger() *logger.Logger {
	if h.Log == nil {
		return logger.Nop()
	}
	return h.Log
}
