// internal/models/report.go
package models

// Facet keys as they appear on the wire and in the prompt schema.
const (
	FacetEmotion     = "정서"
	FacetCommunicate = "소통"
	FacetReality     = "현실"
	FacetGrowth      = "성장"
	FacetSustain     = "지속"
)

// FacetKeys lists the five facets in report order.
var FacetKeys = []string{FacetEmotion, FacetCommunicate, FacetReality, FacetGrowth, FacetSustain}

// Score and facet bounds.
const (
	ScoreMin = 30
	ScoreMax = 98
	FacetMin = 0
	FacetMax = 100
)

// Facets holds the five 0..100 sub-scores.
type Facets struct {
	Emotion     int `json:"정서"`
	Communicate int `json:"소통"`
	Reality     int `json:"현실"`
	Growth      int `json:"성장"`
	Sustain     int `json:"지속"`
}

// Get returns the facet value for key and whether key is a facet.
func (f Facets) Get(key string) (int, bool) {
	switch key {
	case FacetEmotion:
		return f.Emotion, true
	case FacetCommunicate:
		return f.Communicate, true
	case FacetReality:
		return f.Reality, true
	case FacetGrowth:
		return f.Growth, true
	case FacetSustain:
		return f.Sustain, true
	}
	return 0, false
}

// Set assigns the facet value for key. Unknown keys are ignored.
func (f *Facets) Set(key string, v int) {
	switch key {
	case FacetEmotion:
		f.Emotion = v
	case FacetCommunicate:
		f.Communicate = v
	case FacetReality:
		f.Reality = v
	case FacetGrowth:
		f.Growth = v
	case FacetSustain:
		f.Sustain = v
	}
}

// Explanation holds one sentence per facet.
type Explanation struct {
	Emotion     string `json:"정서"`
	Communicate string `json:"소통"`
	Reality     string `json:"현실"`
	Growth      string `json:"성장"`
	Sustain     string `json:"지속"`
}

// Get returns the explanation for key and whether key is a facet.
func (e Explanation) Get(key string) (string, bool) {
	switch key {
	case FacetEmotion:
		return e.Emotion, true
	case FacetCommunicate:
		return e.Communicate, true
	case FacetReality:
		return e.Reality, true
	case FacetGrowth:
		return e.Growth, true
	case FacetSustain:
		return e.Sustain, true
	}
	return "", false
}

// Set assigns the explanation for key. Unknown keys are ignored.
func (e *Explanation) Set(key, v string) {
	switch key {
	case FacetEmotion:
		e.Emotion = v
	case FacetCommunicate:
		e.Communicate = v
	case FacetReality:
		e.Reality = v
	case FacetGrowth:
		e.Growth = v
	case FacetSustain:
		e.Sustain = v
	}
}

// CompatibilityReport is the only payload returned on success.
type CompatibilityReport struct {
	Score       int         `json:"score"`
	Facets      Facets      `json:"facets"`
	Summary     string      `json:"summary"`
	Insights    []string    `json:"insights"`
	Oneliner    string      `json:"oneliner"`
	Explanation Explanation `json:"explanation"`
}
