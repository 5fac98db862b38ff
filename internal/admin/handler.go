package admin

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	httperr "github.com/dashpin-lab/dashpin/internal/core/errors"
	"github.com/dashpin-lab/dashpin/internal/core/reporting"
	"github.com/dashpin-lab/dashpin/internal/core/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 10_000
	maxStatementBytes = 64 * 1024
)

// QueryReportingHandler serves GET /admin/reporting?granularity=&since=&limit=.
// Rows come back newest first, ts strictly greater than since.
func (s *Service) QueryReportingHandler(c *gin.Context) {
	graph, err := reporting.ParseGraphType(c.DefaultQuery("granularity", "minute"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamError,
			Message:   err.Error(),
		})
		return
	}

	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamError,
			Message:   "since must be a millisecond timestamp",
		})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultQueryLimit)))
	if err != nil || limit <= 0 || limit > maxQueryLimit {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamError,
			Message:   "limit must be between 1 and 10000",
		})
		return
	}

	points, err := s.store.QueryReporting(c.Request.Context(), since, limit, graph)
	if err != nil {
		writeStorageError(c, "reporting query", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"granularity": graph.String(),
		"count":       len(points),
		"points":      points,
	})
}

// ExecuteSQLHandler serves POST /admin/sql with the statement as the raw
// request body. This rides the store's one strict path: failures come back to
// the operator instead of vanishing into a log line.
func (s *Service) ExecuteSQLHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxStatementBytes))
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "failed to read request body",
		})
		return
	}

	stmt := strings.TrimSpace(string(body))
	if stmt == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidParamError,
			Message:   "request body must contain a SQL statement",
		})
		return
	}

	slog.Info("[Admin] Executing raw statement", "bytes", len(stmt))

	if err := s.store.ExecuteRaw(c.Request.Context(), stmt); err != nil {
		writeStorageError(c, "raw statement", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "executed"})
}

func writeStorageError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpStorageDisabledError,
			Message:   "reporting storage is disabled",
		})
	case errors.Is(err, storage.ErrAcquireTimeout):
		slog.Warn("[Admin] "+op+" timed out waiting for a connection", "error", err)
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "no database connection became available in time",
		})
	default:
		slog.Warn("[Admin] "+op+" failed", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpStatementFailedError,
			Message:   err.Error(),
		})
	}
}
