package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
	"github.com/odyssey-erp/odyssey-mfa/internal/session"
)

type stubTimelineService struct {
	result      audit.Result
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func newAuditRouter(t *testing.T, service *stubTimelineService) (http.Handler, *session.Issuer) {
	t.Helper()
	issuer, err := session.NewIssuer(session.Config{Secret: []byte("audit-secret")})
	require.NoError(t, err)
	handler := NewHandler(nil, service, issuer)
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return router, issuer
}

func TestTimelineRequiresToken(t *testing.T) {
	router, _ := newAuditRouter(t, &stubTimelineService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTimelineScopesToTokenSubject(t *testing.T) {
	at := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	service := &stubTimelineService{result: audit.Result{
		Rows:   []audit.Event{{Type: audit.TypeLogin, UserID: "u-1", Email: "a@x.com", Outcome: audit.OutcomeAccept, At: at}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	router, issuer := newAuditRouter(t, service)
	token, err := issuer.Issue("u-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/audit/events?type=login&page=1&page_size=100", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u-1", service.lastFilters.UserID)
	assert.Equal(t, "login", service.lastFilters.Type)
	assert.Equal(t, maxPageSize, service.lastFilters.PageSize)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), service.lastFilters.From)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), service.lastFilters.To)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, audit.OutcomeAccept, body.Rows[0].Outcome)
}

func TestTimelineRejectsBadRange(t *testing.T) {
	router, issuer := newAuditRouter(t, &stubTimelineService{})
	token, err := issuer.Issue("u-1")
	require.NoError(t, err)

	for _, query := range []string{"from=2024-03-20&to=2024-03-01", "from=2023-01-01&to=2024-03-01", "page=0", "to=yesterday"} {
		req := httptest.NewRequest(http.MethodGet, "/audit/events?"+query, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}
