package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httperr "github.com/dashpin-lab/dashpin/internal/core/errors"
	"github.com/dashpin-lab/dashpin/internal/core/reporting"
	"github.com/dashpin-lab/dashpin/internal/core/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeStore scripts the storage responses the handlers see.
type fakeStore struct {
	points   []reporting.Point
	queryErr error
	rawErr   error

	lastStmt  string
	lastGraph reporting.GraphType
	lastSince int64
	lastLimit int
}

func (f *fakeStore) Enabled() bool { return true }

func (f *fakeStore) SaveUsers(context.Context, []reporting.User) {}

func (f *fakeStore) InsertReporting(context.Context, map[reporting.AggregationKey]*reporting.AggregationValue, reporting.GraphType) {
}

func (f *fakeStore) QueryReporting(_ context.Context, sinceTs int64, limit int, graph reporting.GraphType) ([]reporting.Point, error) {
	f.lastSince = sinceTs
	f.lastLimit = limit
	f.lastGraph = graph
	return f.points, f.queryErr
}

func (f *fakeStore) PurgeOldReporting(context.Context, time.Time) {}

func (f *fakeStore) ExecuteRaw(_ context.Context, stmt string) error {
	f.lastStmt = stmt
	return f.rawErr
}

func newRouter(store storage.ReportingStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewService(store).RegisterRoutes(r)
	return r
}

func TestQueryReportingHandler_ReturnsPoints(t *testing.T) {
	store := &fakeStore{points: []reporting.Point{
		{Ts: 1_770_000_120_000, Value: 21.5},
		{Ts: 1_770_000_060_000, Value: 20.0},
	}}
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/admin/reporting?granularity=hourly&since=1770000000000&limit=50", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, reporting.GraphHourly, store.lastGraph)
	require.Equal(t, int64(1_770_000_000_000), store.lastSince)
	require.Equal(t, 50, store.lastLimit)

	var body struct {
		Granularity string            `json:"granularity"`
		Count       int               `json:"count"`
		Points      []reporting.Point `json:"points"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "hourly", body.Granularity)
	require.Equal(t, 2, body.Count)
	require.Equal(t, store.points, body.Points)
}

func TestQueryReportingHandler_DefaultsToMinute(t *testing.T) {
	store := &fakeStore{}
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/admin/reporting", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, reporting.GraphMinute, store.lastGraph)
	require.Equal(t, int64(0), store.lastSince)
	require.Equal(t, defaultQueryLimit, store.lastLimit)
}

func TestQueryReportingHandler_RejectsBadParams(t *testing.T) {
	r := newRouter(&fakeStore{})

	for _, target := range []string{
		"/admin/reporting?granularity=weekly",
		"/admin/reporting?since=yesterday",
		"/admin/reporting?limit=0",
		"/admin/reporting?limit=999999",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		require.Equal(t, http.StatusBadRequest, resp.Code, target)

		var body httperr.ErrorResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		require.Equal(t, httperr.HttpInvalidParamError, body.ErrorType, target)
	}
}

func TestQueryReportingHandler_DisabledStorageIs503(t *testing.T) {
	r := newRouter(&fakeStore{queryErr: storage.ErrDisabled})

	req := httptest.NewRequest(http.MethodGet, "/admin/reporting", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusServiceUnavailable, resp.Code)

	var body httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, httperr.HttpStorageDisabledError, body.ErrorType)
}

func TestExecuteSQLHandler_ExecutesStatement(t *testing.T) {
	store := &fakeStore{}
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/admin/sql", strings.NewReader("VACUUM ANALYZE reporting_average_minute"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "VACUUM ANALYZE reporting_average_minute", store.lastStmt)
}

func TestExecuteSQLHandler_EmptyBodyIs400(t *testing.T) {
	r := newRouter(&fakeStore{})

	req := httptest.NewRequest(http.MethodPost, "/admin/sql", strings.NewReader("   \n"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestExecuteSQLHandler_PropagatesStatementFailure(t *testing.T) {
	store := &fakeStore{rawErr: errors.New(`relation "nope" does not exist`)}
	r := newRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/admin/sql", strings.NewReader("DROP TABLE nope"))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)

	var body httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, httperr.HttpStatementFailedError, body.ErrorType)
	require.Contains(t, body.Message, "does not exist")
}
