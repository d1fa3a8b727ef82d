// Package prompt renders a CompatibilityRequest into model instructions.
package prompt

import (
	"fmt"
	"strings"

	"soulverse/internal/models"
)

const persona = "너는 사주(연·월·일·시=기질/리듬), MBTI(의사소통/갈등복구/결정), 혈액형(문화권 일반론)을 편향 없이 종합 분석하는 코치다.\n" +
	"운명론 금지, 실전 행동전략 중심, 한국어 간결 코칭 톤. 점수/요약/인사이트/설명이 서로 논리적으로 일관되게."

var topicTasks = map[models.Topic]string{
	models.TopicBasic: "두 사람의 성격 궁합, 대화 방식, 관계의 지속 가능성을 균형 있게 분석하라. " +
		"강점과 보완점을 함께 제시하라.",
	models.TopicRedLine: "두 사람이 절대 넘지 말아야 할 갈등 지점(레드 라인)을 찾아라. " +
		"갈등이 터지는 신호, 피해야 할 말과 행동, 갈등 후 회복 순서를 구체적으로 제시하라. " +
		"insights에는 레드 라인과 그 대처법을 담아라.",
	models.TopicLuckyColor: "두 사람이 함께 있을 때 기운이 올라가는 컬러, 공간, 무드를 추천하라. " +
		"insights에는 구체적인 컬러 이름, 데이트 장소 유형, 분위기 연출법을 담아라.",
}

// Prompt is a rendered model instruction.
type Prompt struct {
	System string
	User   string
}

// Text joins both parts into the single block sent upstream.
func (p Prompt) Text() string {
	return p.System + "\n\n" + p.User
}

// Builder renders prompts for a fixed insights count.
type Builder struct {
	insights int
}

// NewBuilder returns a Builder that asks for exactly insights bullet points.
func NewBuilder(insights int) *Builder {
	if insights < 1 {
		insights = 3
	}
	return &Builder{insights: insights}
}

// Build renders req. It is pure: the same request always yields the same prompt.
func (b *Builder) Build(req models.CompatibilityRequest) Prompt {
	var user strings.Builder

	fmt.Fprintf(&user, "[주제] %s: %s\n", req.Topic.Title(), req.Topic.Description())
	user.WriteString(taskFor(req.Topic))
	user.WriteString("\n\n")
	user.WriteString(subjectLine("남", req.Man))
	user.WriteString("\n")
	user.WriteString(subjectLine("여", req.Woman))
	user.WriteString("\n\n")
	user.WriteString(b.Schema())

	return Prompt{System: persona, User: user.String()}
}

// Schema is the literal JSON skeleton the model must fill in.
func (b *Builder) Schema() string {
	bullets := make([]string, b.insights)
	for i := range bullets {
		bullets[i] = fmt.Sprintf("%q", fmt.Sprintf("불릿%d", i+1))
	}

	return "반드시 아래 JSON만 반환(설명문/코드펜스 금지):\n" +
		"{\n" +
		` "score": <30~98 정수>,` + "\n" +
		` "facets": { "정서":0~100, "소통":0~100, "현실":0~100, "성장":0~100, "지속":0~100 },` + "\n" +
		` "summary": "2~3문장",` + "\n" +
		` "insights": [` + strings.Join(bullets, ",") + `],` + "\n" +
		` "oneliner": "짧은 한 문장",` + "\n" +
		` "explanation": { "정서":"..", "소통":"..", "현실":"..", "성장":"..", "지속":".." }` + "\n" +
		"}"
}

func taskFor(t models.Topic) string {
	if task, ok := topicTasks[t]; ok {
		return task
	}
	return topicTasks[models.DefaultTopic]
}

func subjectLine(label string, p models.PersonInput) string {
	return fmt.Sprintf("[%s] 생년월일=%s, 시간=%s, MBTI=%s, 혈액형=%s",
		label,
		orUnknown(p.BirthDate),
		orUnknown(p.BirthTime),
		orUnknown(p.MBTI),
		orUnknown(p.BloodType),
	)
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return models.UnknownValue
	}
	return v
}
