package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	v1 "github.com/meridian-lab/project-meridian/internal/api/v1"
	"github.com/gin-gonic/gin"
	httperr "github.com/meridian-lab/project-meridian/internal/core/errors"
	"github.com/meridian-lab/project-meridian/internal/core/storage"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to persist touchpoints"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// batchResult summarizes one ingestion batch for the response body.
type batchResult struct {
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
}

// IngestHandler handles HTTP POST requests for touchpoint batch ingestion.
// The body is a JSON array; the whole batch is validated before any record is
// persisted, so a rejected batch leaves no partial writes behind.
func (s *Service) IngestHandler(c *gin.Context) {
	batch, payloadSize, err := s.parseBatch(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.validateBatch(batch); err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Received touchpoint batch",
		"count", len(batch),
		"payload_size", payloadSize)

	result, err := s.persistBatch(c.Request.Context(), batch)
	if err != nil {
		writeError(c, err)
		return
	}

	// Touchpoints persisted to DB. Cron batch job will pick them up on next cycle.
	c.JSON(http.StatusAccepted, result)
}

// ListTouchpointsHandler returns one user's touchpoints in chronological order.
func (s *Service) ListTouchpointsHandler(c *gin.Context) {
	userID := c.Param("user_id")

	touchpoints, err := s.store.RetrieveUserTouchpoints(c.Request.Context(), userID)
	if err != nil {
		slog.Error("Failed to retrieve user touchpoints", "error", err, "user_id", userID)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to retrieve touchpoints",
		})
		return
	}

	if touchpoints == nil {
		touchpoints = []*v1.Touchpoint{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"touchpoints": touchpoints,
	})
}

// parseBatch reads the raw request body and binds it into a touchpoint slice.
// Returns the parsed batch and the raw payload size (used for structured logging upstream).
func (s *Service) parseBatch(c *gin.Context) ([]*v1.Touchpoint, int, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, 0, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var batch []*v1.Touchpoint
	if err := c.ShouldBindJSON(&batch); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	if len(batch) == 0 {
		return nil, len(bodyBytes), &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpValidationError,
			message:    "batch must contain at least one touchpoint",
		}
	}

	// Stamp receive time and canonicalize channels before validation, so
	// stored rows always carry canonical channel names.
	now := time.Now().UTC()
	for _, tp := range batch {
		tp.IngestedAt = now
		tp.Channel = s.resolver.Resolve(tp.Channel)
	}
	return batch, len(bodyBytes), nil
}

// validateBatch runs envelope validation over every record. The batch is
// all-or-nothing: one bad record rejects the request with its index.
func (s *Service) validateBatch(batch []*v1.Touchpoint) *ingestionError {
	for i, tp := range batch {
		if err := tp.Validate(); err != nil {
			slog.Warn("Touchpoint validation failed", "error", err, "index", i, "user_id", tp.UserID)
			return &ingestionError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpValidationError,
				message:    err.Error(),
				details: map[string]interface{}{
					"index": i,
				},
			}
		}
	}
	return nil
}

// persistBatch saves the batch to the backing store. Duplicates are counted
// and skipped, not errors: upstream feeds replay freely.
func (s *Service) persistBatch(ctx context.Context, batch []*v1.Touchpoint) (*batchResult, *ingestionError) {
	result := &batchResult{}
	for _, tp := range batch {
		err := s.store.SaveTouchpoint(ctx, tp)
		if errors.Is(err, storage.ErrDuplicate) {
			slog.Debug("Duplicate touchpoint skipped",
				"user_id", tp.UserID,
				"channel", tp.Channel,
				"timestamp", tp.Timestamp)
			result.Duplicates++
			continue
		}
		if err != nil {
			slog.Error("Failed to persist touchpoint", "error", err, "user_id", tp.UserID)
			return nil, &ingestionError{
				statusCode: http.StatusInternalServerError,
				errorType:  httperr.HttpInternalError,
				message:    msgPersistFailed,
			}
		}
		result.Accepted++
	}
	return result, nil
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
