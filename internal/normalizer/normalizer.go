// Package normalizer turns untrusted model text into a CompatibilityReport that always has
// the full shape. It never returns an error.
package normalizer

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"soulverse/internal/models"
)

// Insights cap bounds.
const (
	DefaultInsightsMax = 3
	MaxInsightsMax     = 5
)

// Fallback values applied when a field is absent or unusable.
const (
	FallbackScore    = 80
	FallbackSummary  = "두 사람의 리듬을 맞추면 관계가 안정적으로 성장합니다."
	FallbackOneliner = "차이는 대화로 조율된다."
)

var (
	FallbackFacets = models.Facets{
		Emotion:     80,
		Communicate: 80,
		Reality:     70,
		Growth:      90,
		Sustain:     80,
	}

	FallbackExplanation = models.Explanation{
		Emotion:     "감정 리듬을 서로 맞추면 안정감이 커집니다.",
		Communicate: "말하기·듣기 규칙을 간단히 합의하세요.",
		Reality:     "예산·시간·거리 제약을 수치로 관리하세요.",
		Growth:      "목표를 공유하고 월간 체크인을 하세요.",
		Sustain:     "갈등 후 회복 루틴을 만들어 두세요.",
	}
)

// FallbackInsights returns a fresh copy of the default insight list.
func FallbackInsights() []string {
	return []string{"대화 속도 맞추기", "현실 계획 합의", "갈등 회복 루틴 만들기"}
}

// Result is a normalized report plus a record of how much of it came from the model.
type Result struct {
	Report models.CompatibilityReport
	// Parsed is false when the text held no JSON object.
	Parsed bool
	// Fallbacks names every field that was replaced, e.g. "score" or "facets.정서".
	Fallbacks []string
}

// Normalizer applies the report coercion rules with a fixed insights cap.
type Normalizer struct {
	insightsMax int
}

// New returns a Normalizer. insightsMax is clamped to [DefaultInsightsMax, MaxInsightsMax].
func New(insightsMax int) *Normalizer {
	if insightsMax < DefaultInsightsMax {
		insightsMax = DefaultInsightsMax
	}
	if insightsMax > MaxInsightsMax {
		insightsMax = MaxInsightsMax
	}
	return &Normalizer{insightsMax: insightsMax}
}

// InsightsMax returns the configured cap.
func (n *Normalizer) InsightsMax() int {
	return n.insightsMax
}

// Normalize uses the default insights cap.
func Normalize(raw string) models.CompatibilityReport {
	return New(DefaultInsightsMax).Normalize(raw).Report
}

// Normalize parses raw and coerces every report field.
func (n *Normalizer) Normalize(raw string) Result {
	obj, parsed := ParseObject(raw)
	res := Result{Parsed: parsed}
	fb := func(field string) { res.Fallbacks = append(res.Fallbacks, field) }

	report := models.CompatibilityReport{}

	if v, ok := toInt(obj, "score", models.ScoreMin, models.ScoreMax); ok {
		report.Score = v
	} else {
		report.Score = FallbackScore
		fb("score")
	}

	facets := asObject(obj["facets"])
	for _, key := range models.FacetKeys {
		if v, ok := toInt(facets, key, models.FacetMin, models.FacetMax); ok {
			report.Facets.Set(key, v)
			continue
		}
		d, _ := FallbackFacets.Get(key)
		report.Facets.Set(key, d)
		fb("facets." + key)
	}

	if s, ok := toText(obj["summary"]); ok {
		report.Summary = s
	} else {
		report.Summary = FallbackSummary
		fb("summary")
	}

	if list, ok := obj["insights"].([]interface{}); ok {
		if len(list) > n.insightsMax {
			list = list[:n.insightsMax]
		}
		report.Insights = make([]string, 0, len(list))
		for _, item := range list {
			report.Insights = append(report.Insights, jsString(item))
		}
	} else {
		report.Insights = FallbackInsights()
		fb("insights")
	}

	if s, ok := toText(obj["oneliner"]); ok {
		report.Oneliner = s
	} else {
		report.Oneliner = FallbackOneliner
		fb("oneliner")
	}

	explanation := asObject(obj["explanation"])
	for _, key := range models.FacetKeys {
		if s, ok := toText(explanation[key]); ok {
			report.Explanation.Set(key, s)
			continue
		}
		d, _ := FallbackExplanation.Get(key)
		report.Explanation.Set(key, d)
		fb("explanation." + key)
	}

	res.Report = report
	return res
}

var openingFence = regexp.MustCompile("^```[a-zA-Z]*\r?\n?")

// StripFences removes a surrounding markdown code fence.
func StripFences(raw string) string {
	t := strings.TrimSpace(raw)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = openingFence.ReplaceAllString(t, "")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// ExtractObject slices from the first '{' to the last '}' when both exist in that order.
func ExtractObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// ParseObject strips fences, extracts the outer object and decodes it. Anything that is not
// a JSON object yields an empty map and false.
func ParseObject(raw string) (map[string]interface{}, bool) {
	text := ExtractObject(StripFences(raw))

	// Numbers stay json.Number so an out-of-range literal only spoils its own field.
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return map[string]interface{}{}, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return map[string]interface{}{}, false
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}, false
	}
	return obj, true
}

func asObject(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}
