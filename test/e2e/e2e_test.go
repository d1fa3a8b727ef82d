// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulverse/internal/common/config"
	httpclient "soulverse/internal/common/http"
	"soulverse/internal/common/logger"
	"soulverse/internal/gemini"
	"soulverse/internal/models"
	"soulverse/internal/service"
	"soulverse/internal/transport/rest"
)

// fakeGemini records every generateContent call and answers with the next scripted reply.
type fakeGemini struct {
	mu      sync.Mutex
	replies []reply
	prompts []string
	paths   []string
}

type reply struct {
	status int
	body   string
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	if len(req.Contents) > 0 && len(req.Contents[0].Parts) > 0 {
		f.prompts = append(f.prompts, req.Contents[0].Parts[0].Text)
	}
	next := reply{status: http.StatusInternalServerError, body: "no scripted reply"}
	if len(f.replies) > 0 {
		next, f.replies = f.replies[0], f.replies[1:]
	}
	f.mu.Unlock()

	w.WriteHeader(next.status)
	_, _ = io.WriteString(w, next.body)
}

func (f *fakeGemini) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
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

// startStack loads configuration from the environment and serves the API the way
// `soulverse serve` does, with the model endpoint pointed at fake.
func startStack(t *testing.T, fake *fakeGemini, env map[string]string) *httptest.Server {
	t.Helper()

	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	t.Setenv("GEMINI_BASE_URL", upstream.URL)
	t.Setenv("GEMINI_API_KEY", "e2e-key")
	t.Setenv("GEMINI_MODEL", "models/gemini-1.5-flash")
	t.Setenv("WORKER_ENABLED", "false")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	client := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		BaseURL:    cfg.Gemini.BaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		Timeout:    config.GetDuration(cfg.Gemini.Timeout),
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: time.Millisecond,
		Generation: gemini.GenerationConfig{
			Temperature:      cfg.Gemini.Generation.Temperature,
			TopP:             cfg.Gemini.Generation.TopP,
			TopK:             cfg.Gemini.Generation.TopK,
			MaxOutputTokens:  cfg.Gemini.Generation.MaxOutputTokens,
			ResponseMimeType: cfg.Gemini.Generation.ResponseMimeType,
		},
	}, httpclient.Wrap(upstream.Client()), log, nil)

	svc := service.NewCompatService(service.Config{
		Model:         cfg.Gemini.Model,
		AllowedModels: cfg.Gemini.AllowedModels,
		HasKey:        cfg.Gemini.HasKey(),
		InsightsMax:   cfg.Report.InsightsMax,
		Debug:         cfg.Debug,
	}, client, log, nil)

	api := httptest.NewServer(rest.NewRouter(&rest.Container{Compat: svc, Logger: log}))
	t.Cleanup(api.Close)
	return api
}

func postCompat(t *testing.T, api *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(api.URL+"/compat", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

const coupleBody = `{"topic":"lucky_color","man_birth":"1990-05-17","woman_birth":"1992-11-03",
	"man_mbti":"infp","woman_mbti":"ESTJ","man_blood":"O","woman_time":"07:30"}`

func TestCompatReport_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	fake := &fakeGemini{replies: []reply{{
		status: http.StatusOK,
		body: envelope("```json\n" + `{"score": 101, "facets": {"정서": "64", "소통": 55.5},
			"summary": "서로의 속도를 존중하면 좋습니다.",
			"insights": ["하나", "둘", "셋", "넷", "다섯"],
			"oneliner": "다름이 곧 힘", "explanation": {"현실": "생활 리듬이 다릅니다."}}` + "\n```\n참고용입니다."),
	}}}
	api := startStack(t, fake, map[string]string{"REPORT_INSIGHTS_MAX": "4"})

	resp, raw := postCompat(t, api, coupleBody)

	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.NotEmpty(t, resp.Header.Get(rest.RequestIDHeader))

	var report models.CompatibilityReport
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, models.ScoreMax, report.Score)
	assert.Equal(t, 64, report.Facets.Emotion)
	assert.Equal(t, 56, report.Facets.Communicate)
	assert.Equal(t, "서로의 속도를 존중하면 좋습니다.", report.Summary)
	assert.Equal(t, []string{"하나", "둘", "셋", "넷"}, report.Insights)
	assert.Equal(t, "다름이 곧 힘", report.Oneliner)
	assert.Equal(t, "생활 리듬이 다릅니다.", report.Explanation.Reality)

	require.Equal(t, 1, fake.calls())
	assert.Equal(t, "/v1/models/gemini-1.5-flash:generateContent", fake.paths[0])
	prompt := fake.prompts[0]
	assert.Contains(t, prompt, models.TopicLuckyColor.Title())
	assert.Contains(t, prompt, "[남] 생년월일=1990-05-17, 시간=미상, MBTI=INFP, 혈액형=O")
	assert.Contains(t, prompt, "[여] 생년월일=1992-11-03, 시간=07:30, MBTI=ESTJ, 혈액형=미상")
	assert.Contains(t, prompt, `"불릿4"`)
	assert.NotContains(t, prompt, `"불릿5"`)
}

func TestCompatReport_UpstreamFailsTwice(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	fake := &fakeGemini{replies: []reply{
		{status: http.StatusTooManyRequests, body: "quota"},
		{status: http.StatusServiceUnavailable, body: "unavailable"},
	}}
	api := startStack(t, fake, nil)

	resp, raw := postCompat(t, api, coupleBody)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["error"])
	assert.Equal(t, "gemini 503: unavailable", body["detail"])
	assert.Equal(t, 2, fake.calls())
}

func TestCompatReport_ValidationAndHealth(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	fake := &fakeGemini{}
	api := startStack(t, fake, nil)

	resp, raw := postCompat(t, api, `{"man_birth":"1990-05-17","woman_birth":"","man_mbti":"INFP"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(raw), "woman_birth, woman_mbti")

	healthResp, err := http.Get(api.URL + "/compat")
	require.NoError(t, err)
	defer healthResp.Body.Close()

	var health service.Health
	require.NoError(t, json.NewDecoder(healthResp.Body).Decode(&health))
	assert.Equal(t, service.Health{OK: true, Model: "gemini-1.5-flash", HasKey: true}, health)

	metricsResp, err := http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	metricsBody, _ := io.ReadAll(metricsResp.Body)
	assert.True(t, strings.Contains(string(metricsBody), "soulverse_"), "expected soulverse metrics")

	assert.Equal(t, 0, fake.calls())
}

// TestCompatReport_LiveGemini calls the real API. It needs SOULVERSE_E2E_LIVE=1 and a key.
func TestCompatReport_LiveGemini(t *testing.T) {
	if testing.Short() || os.Getenv("SOULVERSE_E2E_LIVE") != "1" {
		t.Skip("set SOULVERSE_E2E_LIVE=1 to run against the live model")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	if !cfg.Gemini.HasKey() {
		t.Skip("no GEMINI_API_KEY / GOOGLE_API_KEY configured")
	}

	log := logger.NewTestLogger(t)
	client := gemini.NewClient(gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		BaseURL:    cfg.Gemini.BaseURL,
		APIVersion: cfg.Gemini.APIVersion,
		Timeout:    config.GetDuration(cfg.Gemini.Timeout),
		MaxRetries: cfg.Gemini.MaxRetries,
		RetryDelay: config.GetDuration(cfg.Gemini.RetryDelay),
		Generation: gemini.GenerationConfig{
			Temperature:      cfg.Gemini.Generation.Temperature,
			TopP:             cfg.Gemini.Generation.TopP,
			TopK:             cfg.Gemini.Generation.TopK,
			MaxOutputTokens:  cfg.Gemini.Generation.MaxOutputTokens,
			ResponseMimeType: cfg.Gemini.Generation.ResponseMimeType,
		},
	}, httpclient.NewClient(time.Minute), log, nil)

	svc := service.NewCompatService(service.Config{
		Model:         cfg.Gemini.Model,
		AllowedModels: cfg.Gemini.AllowedModels,
		HasKey:        true,
		InsightsMax:   cfg.Report.InsightsMax,
	}, client, log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	res := svc.Generate(ctx, models.CompatInput{
		ManBirth: "1990-05-17", WomanBirth: "1992-11-03", ManMBTI: "INFP", WomanMBTI: "ESTJ",
	})
	require.Nil(t, res.Err)
	assert.GreaterOrEqual(t, res.Report.Score, models.ScoreMin)
	assert.LessOrEqual(t, res.Report.Score, models.ScoreMax)
	assert.Len(t, res.Report.Insights, cfg.Report.InsightsMax)
}
