package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/cv-ranker/internal/catalog"
	"github.com/jonathan/cv-ranker/internal/config"
	"github.com/jonathan/cv-ranker/internal/embedding"
	"github.com/jonathan/cv-ranker/internal/pipeline"
	"github.com/jonathan/cv-ranker/internal/server/ratelimit"
	"github.com/jonathan/cv-ranker/internal/store"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJD = `{
	"job_title": "Backend Engineer",
	"mandatory_skills": ["go", "postgresql"],
	"sections": {"required_skills": "Go and PostgreSQL", "responsibilities": "Build APIs"}
}`

const testCV = `{
	"id": "cv-1",
	"name": "Ada",
	"skills": ["go", "postgresql"],
	"work_experience": [{"title": "Engineer", "responsibilities": ["Reduced API latency by 35% by rewriting handlers in Go"]}]
}`

func newTestServer(t *testing.T, rl *ratelimit.Config) (*Server, http.Handler) {
	t.Helper()
	mem := store.NewMemory()
	cat := catalog.New(mem, nil)
	searcher, err := pipeline.NewSearcher(pipeline.Deps{
		Catalog:  cat,
		Vectors:  mem,
		Embedder: embedding.NewHashBackend(64),
		Scoring:  config.DefaultScoringConfig(),
	})
	require.NoError(t, err)

	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	s := New(Config{Port: 0, RequestTimeout: 10 * time.Second, RateLimit: rl}, searcher, cat, nil)
	t.Cleanup(s.rateLimiter.Stop)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, h http.Handler) {
	t.Helper()
	w := do(t, h, http.MethodPut, "/companies/acme/jobs/backend/jd", testJD)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPost, "/companies/acme/jobs/backend/cvs", testCV)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := do(t, h, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestSearchEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	seed(t, h)

	w := do(t, h, http.MethodPost, "/search", `{"company": "acme", "job": "backend", "show_details": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Candidates, 1)
	assert.Equal(t, "cv-1", resp.Candidates[0].CandidateID)
	assert.InDelta(t, 1.0, resp.Candidates[0].MandatoryCoverage, 1e-9)
	assert.True(t, resp.Embedded)
	assert.False(t, resp.Reranked)
	assert.Equal(t, "RESULTS", resp.States[len(resp.States)-1])
}

func TestSearchEndpoint_Errors(t *testing.T) {
	_, h := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid JSON", body: `{invalid json}`, want: http.StatusBadRequest},
		{name: "missing job", body: `{"company": "acme"}`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"company": "acme", "job": "x", "limit": 3}`, want: http.StatusBadRequest},
		{name: "negative top_k", body: `{"company": "acme", "job": "x", "top_k": -1}`, want: http.StatusBadRequest},
		{name: "unknown job", body: `{"company": "acme", "job": "nope"}`, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/search", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestSearchStreamEndpoint(t *testing.T) {
	_, h := newTestServer(t, nil)
	seed(t, h)

	w := do(t, h, http.MethodPost, "/search/stream", `{"company": "acme", "job": "backend"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "state", events[0])
	assert.Equal(t, "result", events[len(events)-1])
	assert.Contains(t, w.Body.String(), `"state":"SCORING"`)
	assert.True(t, strings.HasPrefix(w.Body.String(), "id: 1\nevent: state\n"))
}

func TestSearchStreamEndpoint_Error(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodPost, "/search/stream", `{"company": "acme", "job": "nope"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event: error")
	assert.Contains(t, w.Body.String(), `"status":404`)
}

func TestJobStatusAndEmbedEndpoints(t *testing.T) {
	_, h := newTestServer(t, nil)
	seed(t, h)

	w := do(t, h, http.MethodGet, "/companies/acme/jobs/backend/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status pipeline.JobStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.HasJD)
	assert.Equal(t, 1, status.CVs)
	assert.False(t, status.Ready)

	w = do(t, h, http.MethodPost, "/companies/acme/jobs/backend/embed", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var embed EmbedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &embed))
	assert.True(t, embed.Embedded)
	assert.Equal(t, 1, embed.CVsEmbedded)

	w = do(t, h, http.MethodPost, "/companies/acme/jobs/backend/embed", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &embed))
	assert.False(t, embed.Embedded)

	w = do(t, h, http.MethodPost, "/companies/acme/jobs/backend/embed?force=true", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &embed))
	assert.True(t, embed.JDEmbedded)

	w = do(t, h, http.MethodPost, "/companies/acme/jobs/backend/embed?force=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/companies/acme/jobs/backend/status", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Ready)

	w = do(t, h, http.MethodPost, "/companies/acme/jobs/nope/embed", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadEndpoints_Malformed(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := do(t, h, http.MethodPut, "/companies/acme/jobs/backend/jd", `{"mandatory_skills": "go"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/companies/acme/jobs/backend/cvs", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	_, h := newTestServer(t, &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  2,
		DefaultWindow: time.Hour,
	})

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodGet, "/companies/acme/jobs/backend/status", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(t, h, http.MethodGet, "/companies/acme/jobs/backend/status", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health checks are never limited.
	w = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	s, _ := newTestServer(t, nil)

	handler := s.withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSMiddleware_OPTIONS(t *testing.T) {
	s, _ := newTestServer(t, nil)

	handler := s.withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("should not reach here")) //nolint:errcheck
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestLoggingMiddleware(t *testing.T) {
	s, _ := newTestServer(t, nil)

	called := false
	handler := s.withLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}
