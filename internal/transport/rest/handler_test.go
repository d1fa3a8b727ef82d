package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "soulverse/internal/common/http"
	"soulverse/internal/common/logger"
	"soulverse/internal/gemini"
	"soulverse/internal/models"
	"soulverse/internal/normalizer"
	"soulverse/internal/service"
)

const validBody = `{"topic":"red_line","man_birth":"1990-01-01","woman_birth":"1992-03-04",
	"man_mbti":"INTJ","woman_mbti":"ENFP","man_blood":"A"}`

type upstream struct {
	srv   *httptest.Server
	calls int32
}

func newUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int32)) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, atomic.AddInt32(&u.calls, 1))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) Calls() int {
	return int(atomic.LoadInt32(&u.calls))
}

func newTestRouter(t *testing.T, u *upstream, apiKey string) http.Handler {
	t.Helper()
	log := logger.NewTestLogger(t)

	client := gemini.NewClient(gemini.Config{
		APIKey:     apiKey,
		Model:      "gemini-1.5-flash",
		BaseURL:    u.srv.URL,
		APIVersion: "v1",
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Generation: gemini.GenerationConfig{Temperature: 0.6, MaxOutputTokens: 800},
	}, httpclient.Wrap(u.srv.Client()), log, nil)

	svc := service.NewCompatService(service.Config{
		Model:         "gemini-1.5-flash",
		AllowedModels: []string{"gemini-1.5-flash", "gemini-1.5-pro"},
		HasKey:        apiKey != "",
		InsightsMax:   3,
	}, client, log, nil)

	return NewRouter(&Container{Compat: svc, Logger: log})
}

func envelope(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	})
	return string(b)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Error)
	return body
}

func TestPostCompat_Success(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		w.Write([]byte(envelope("```json\n{\"score\": 88.6, \"summary\": \"잘 맞아요\", \"insights\": [\"a\",\"b\",\"c\",\"d\"]}\n```")))
	})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodPost, "/compat", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report models.CompatibilityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 89, report.Score)
	assert.Equal(t, "잘 맞아요", report.Summary)
	assert.Equal(t, []string{"a", "b", "c"}, report.Insights)
	assert.Equal(t, 1, u.Calls())
}

func TestPostCompat_MissingMBTINeverCallsUpstream(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		w.Write([]byte(envelope("{}")))
	})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodPost, "/compat",
		`{"man_birth":"1990-01-01","woman_birth":"1992-03-04","woman_mbti":"ENFP"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Contains(t, body.Detail, "man_mbti")
	assert.Equal(t, 0, u.Calls())
}

func TestPostCompat_TwoUpstreamFailures(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		w.WriteHeader(http.StatusServiceUnavailable)
		if call == 1 {
			w.Write([]byte("first"))
			return
		}
		w.Write([]byte("overloaded"))
	})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodPost, "/compat", validBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "gemini 503: overloaded", body.Detail)
	assert.Equal(t, "UPSTREAM_STATUS", body.Code)
	assert.Equal(t, 2, u.Calls())
}

func TestPostCompat_RetryRecovers(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, call int32) {
		if call == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(envelope(`{"score": 70}`)))
	})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodPost, "/compat", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, u.Calls())
}

func TestPostCompat_UnparseableModelOutputStillSucceeds(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		w.Write([]byte(envelope("죄송합니다, 답변할 수 없습니다.")))
	})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodPost, "/compat", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	var report models.CompatibilityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, normalizer.FallbackScore, report.Score)
	assert.Len(t, report.Insights, 3)
}

func TestPostCompat_MissingCredential(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		w.Write([]byte(envelope("{}")))
	})
	router := newTestRouter(t, u, "")

	rec := do(router, http.MethodPost, "/compat", validBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Contains(t, body.Detail, "GEMINI_API_KEY")
	assert.Equal(t, 0, u.Calls())
}

func TestPostCompat_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"man_birth":`},
		{"array", `[1,2]`},
		{"empty", ``},
		{"bad mbti", `{"man_birth":"1990","woman_birth":"1991","man_mbti":"XXXX","woman_mbti":"ENFP"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {})
			router := newTestRouter(t, u, "test-key")

			rec := do(router, http.MethodPost, "/compat", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			decodeError(t, rec)
			assert.Equal(t, 0, u.Calls())
		})
	}
}

func TestGetCompat_HealthWithoutKey(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {})
	router := newTestRouter(t, u, "")

	rec := do(router, http.MethodGet, "/compat", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var health service.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.True(t, health.OK)
	assert.False(t, health.HasKey)
	assert.Equal(t, "gemini-1.5-flash", health.Model)
	assert.Equal(t, 0, u.Calls())
}

func TestRouter_RequestID(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {})
	router := newTestRouter(t, u, "test-key")

	notFound := do(router, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, notFound.Code)
	assert.NotEmpty(t, notFound.Header().Get(RequestIDHeader))
	decodeError(t, notFound)

	notAllowed := do(router, http.MethodDelete, "/compat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, notAllowed.Code)
	assert.NotEmpty(t, notAllowed.Header().Get(RequestIDHeader))

	assert.Equal(t, http.StatusNoContent, do(router, http.MethodOptions, "/compat", "").Code)
}

func TestPostCompat_NonStringTopicUsesDefault(t *testing.T) {
	var prompt atomic.Value
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int32) {
		var req struct {
			Contents []struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt.Store(req.Contents[0].Parts[0].Text)
		w.Write([]byte(envelope(`{"score": 70}`)))
	})
	router := newTestRouter(t, u, "test-key")

	rec := do(router, http.MethodPost, "/compat",
		`{"topic":5,"man_birth":"1990-01-01","woman_birth":"1992-03-04","man_mbti":"INTJ","woman_mbti":"ENFP"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, prompt.Load(), models.TopicBasic.Title())
}
