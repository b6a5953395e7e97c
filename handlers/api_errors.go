package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/camden-git/titlesnap/logger"
	"github.com/camden-git/titlesnap/media"
	"github.com/camden-git/titlesnap/recognition"
	"github.com/camden-git/titlesnap/services"
	"github.com/camden-git/titlesnap/workers"
)

// error codes used in APIErrorDetail.Code
const (
	CodeInvalidRequest     = "invalid_request"
	CodeDecodeFailed       = "image_decode_failed"
	CodeTooLarge           = "image_too_large"
	CodeSourceUnavailable  = "image_source_unavailable"
	CodeSuperseded         = "superseded"
	CodeBusy               = "busy"
	CodeCancelled          = "cancelled"
	CodeTimeout            = "timeout"
	CodeRecognitionPrefix  = "recognition_"
	CodeInternal           = "internal_error"
	CodeSessionNotFound    = "session_not_found"
	StatusClientClosedConn = 499
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// recognitionStatus maps a recognition failure to the status we answer with.
// upstream auth problems are our configuration, not the caller's, so they are
// reported as a bad gateway.
func recognitionStatus(kind recognition.Kind) int {
	if kind == recognition.KindRateLimited {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

// writeIdentifyError answers a failed identification.
func writeIdentifyError(w http.ResponseWriter, log *logger.Logger, err error) {
	var recErr *recognition.Error
	switch {
	case errors.Is(err, services.ErrSuperseded):
		WriteAPIError(w, http.StatusConflict, CodeSuperseded, "a newer request replaced this one")
	case errors.As(err, &recErr):
		log.Warn("recognition failed", "kind", recErr.Kind, "status", recErr.StatusCode, "error", recErr.Err)
		WriteAPIError(w, recognitionStatus(recErr.Kind), CodeRecognitionPrefix+string(recErr.Kind), recErr.Message())
	case errors.Is(err, media.ErrDecode):
		WriteAPIError(w, http.StatusBadRequest, CodeDecodeFailed, "could not read the image")
	case errors.Is(err, media.ErrTooLarge):
		WriteAPIError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "image exceeds size limit")
	case errors.Is(err, media.ErrSourceUnavailable):
		WriteAPIError(w, http.StatusBadRequest, CodeSourceUnavailable, "could not fetch the image")
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped):
		WriteAPIError(w, http.StatusServiceUnavailable, CodeBusy, "server busy, retry later")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("identify timed out", "error", err)
		WriteAPIError(w, http.StatusGatewayTimeout, CodeTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		WriteAPIError(w, StatusClientClosedConn, CodeCancelled, "request cancelled")
	default:
		log.Error("identify failed", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
