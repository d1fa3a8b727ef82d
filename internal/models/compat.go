// internal/models/compat.go
package models

import "strings"

// Topic selects the analysis angle. It changes the prompt, never the report shape.
type Topic string

const (
	TopicBasic      Topic = "compatibility_basic"
	TopicRedLine    Topic = "red_line"
	TopicLuckyColor Topic = "lucky_color"
)

// DefaultTopic is used for empty or unrecognized topic keys.
const DefaultTopic = TopicBasic

var topicTitles = map[Topic]string{
	TopicBasic:      "기본 궁합 리포트",
	TopicRedLine:    "레드 라인 궁합 분석",
	TopicLuckyColor: "행운 컬러 & 무드",
}

var topicDescriptions = map[Topic]string{
	TopicBasic:      "두 사람의 성격, 대화 방식, 미래 지속 가능성 분석",
	TopicRedLine:    "두 사람이 절대 피해야 할 위험 요소와 갈등 해소법 심층 분석",
	TopicLuckyColor: "두 사람이 함께 있을 때 상승하는 컬러, 공간, 무드 추천",
}

// ParseTopic resolves a raw topic key, falling back to DefaultTopic.
func ParseTopic(raw string) Topic {
	t := Topic(strings.TrimSpace(raw))
	if _, ok := topicTitles[t]; ok {
		return t
	}
	return DefaultTopic
}

// Title returns the display title of the topic.
func (t Topic) Title() string {
	if title, ok := topicTitles[t]; ok {
		return title
	}
	return topicTitles[DefaultTopic]
}

// Description returns the one-line summary of what the topic analyses.
func (t Topic) Description() string {
	if d, ok := topicDescriptions[t]; ok {
		return d
	}
	return topicDescriptions[DefaultTopic]
}

// Topics returns all known topics in display order.
func Topics() []Topic {
	return []Topic{TopicBasic, TopicRedLine, TopicLuckyColor}
}

// UnknownValue is the placeholder rendered for absent optional inputs.
const UnknownValue = "미상"

// PersonInput is one side of the pair.
type PersonInput struct {
	BirthDate string `json:"birthDate"`
	BirthTime string `json:"birthTime,omitempty"`
	MBTI      string `json:"mbti"`
	BloodType string `json:"bloodType,omitempty"`
}

// CompatibilityRequest is a validated, normalized request ready for prompting.
type CompatibilityRequest struct {
	Topic Topic       `json:"topic"`
	Man   PersonInput `json:"man"`
	Woman PersonInput `json:"woman"`
}

// CompatInput is the snake_case wire contract shared by POST /compat and the job worker.
type CompatInput struct {
	Topic      string `json:"topic,omitempty"`
	ManBirth   string `json:"man_birth"`
	WomanBirth string `json:"woman_birth"`
	ManMBTI    string `json:"man_mbti"`
	WomanMBTI  string `json:"woman_mbti"`
	ManBlood   string `json:"man_blood,omitempty"`
	WomanBlood string `json:"woman_blood,omitempty"`
	ManTime    string `json:"man_time,omitempty"`
	WomanTime  string `json:"woman_time,omitempty"`
}

// MissingFields lists the required wire fields that are empty, in contract order.
func (in CompatInput) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"man_birth", in.ManBirth},
		{"woman_birth", in.WomanBirth},
		{"man_mbti", in.ManMBTI},
		{"woman_mbti", in.WomanMBTI},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// ToRequest normalizes the wire input. It does not validate.
func (in CompatInput) ToRequest() CompatibilityRequest {
	return CompatibilityRequest{
		Topic: ParseTopic(in.Topic),
		Man: PersonInput{
			BirthDate: strings.TrimSpace(in.ManBirth),
			BirthTime: strings.TrimSpace(in.ManTime),
			MBTI:      strings.ToUpper(strings.TrimSpace(in.ManMBTI)),
			BloodType: strings.ToUpper(strings.TrimSpace(in.ManBlood)),
		},
		Woman: PersonInput{
			BirthDate: strings.TrimSpace(in.WomanBirth),
			BirthTime: strings.TrimSpace(in.WomanTime),
			MBTI:      strings.ToUpper(strings.TrimSpace(in.WomanMBTI)),
			BloodType: strings.ToUpper(strings.TrimSpace(in.WomanBlood)),
		},
	}
}

// MBTITypes are the 16 canonical personality codes.
var MBTITypes = []string{
	"INTJ", "INTP", "ENTJ", "ENTP",
	"INFJ", "INFP", "ENFJ", "ENFP",
	"ISTJ", "ISFJ", "ESTJ", "ESFJ",
	"ISTP", "ISFP", "ESTP", "ESFP",
}

// BloodTypes are the accepted ABO groups.
var BloodTypes = []string{"A", "B", "O", "AB"}

// IsValidMBTI reports whether code is one of MBTITypes (case-insensitive).
func IsValidMBTI(code string) bool {
	return contains(MBTITypes, strings.ToUpper(strings.TrimSpace(code)))
}

// IsValidBloodType reports whether code is one of BloodTypes (case-insensitive).
func IsValidBloodType(code string) bool {
	return contains(BloodTypes, strings.ToUpper(strings.TrimSpace(code)))
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
