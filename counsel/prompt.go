package counsel

import (
	"fmt"
	"strings"
)

// DefaultContextWindow bounds how many recent messages get re-injected into the
// prompt. Recency wins over completeness here to keep prompt size in check.
const DefaultContextWindow = 6

const defaultSystemRole = "你是一位嚴肅認真的心理諮商助理，採用蘇格拉底式提問法，" +
	"目的在於幫助來談者覺察核心信念及其造成的因果關係。"

const defaultBaseRules = `【通用規則】
- 來談者打招呼時，進行簡單寒暄。
- 不提供建議、安慰或結論。
- 整體語氣保持自然、平和。
- 結尾必須為「?」。
- 禁止使用指導、評論或收尾語氣。
- 禁止生成針對人名的回覆。
- 回覆長度不超過40字。
- 詢問目前的諮商階段時，跳脫通用規則，僅回覆「目前是諮商階段：{stage}」。
`

// Context-window role labels shown to the model.
const (
	roleLabelUser      = "用戶"
	roleLabelAssistant = "助理"
)

// PromptBuilder renders the layered prompt: global rules, stage rules, recent
// context and the current user input. The zero value is not usable; construct
// with NewPromptBuilder.
type PromptBuilder struct {
	SystemRole string
	BaseRules  string
	WindowSize int
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		SystemRole: defaultSystemRole,
		BaseRules:  defaultBaseRules,
		WindowSize: DefaultContextWindow,
	}
}

// StagePrompt renders the stage-specific instruction block.
func (b *PromptBuilder) StagePrompt(stage Stage) (string, error) {
	rule, err := StageRuleFor(stage)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`
【目前階段】：%s
【階段目標】：%s
【允許語氣】：%s
【禁止語氣】：%s
【提問類型】：%s

請根據此階段目標，生成一個開放式提問，以「?」結尾。
`,
		stage,
		rule.Goal,
		strings.Join(rule.AllowedTone, ", "),
		strings.Join(rule.ForbiddenPatterns, ", "),
		strings.Join(rule.QuestionTypes, ", "),
	), nil
}

// SystemPrompt combines the global rule block with the stage instructions.
func (b *PromptBuilder) SystemPrompt(stage Stage) (string, error) {
	stagePrompt, err := b.StagePrompt(stage)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n", b.SystemRole, b.BaseRules, stagePrompt), nil
}

// ContextWindow renders the last windowSize history entries as "<label>: <content>"
// lines in original order. windowSize <= 0 falls back to the builder's default.
// Empty history yields an empty string.
func (b *PromptBuilder) ContextWindow(history []Message, windowSize int) string {
	if len(history) == 0 {
		return ""
	}
	if windowSize <= 0 {
		windowSize = b.WindowSize
	}
	if windowSize <= 0 {
		windowSize = DefaultContextWindow
	}
	if len(history) > windowSize {
		history = history[len(history)-windowSize:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		label := roleLabelAssistant
		if msg.Role == RoleUser {
			label = roleLabelUser
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, msg.Content))
	}
	return strings.Join(lines, "\n")
}

// AnalysisPrompt assembles the full per-turn prompt: system prompt, optional
// context block, then the raw user input, in that fixed order.
func (b *PromptBuilder) AnalysisPrompt(userInput string, stage Stage, context string) (string, error) {
	systemPrompt, err := b.SystemPrompt(stage)
	if err != nil {
		return "", err
	}
	ctx := ""
	if context != "" {
		ctx = fmt.Sprintf("\n【對話上下文】\n%s\n", context)
	}
	return fmt.Sprintf("%s\n%s\n【使用者輸入】\n%s\n", systemPrompt, ctx, userInput), nil
}

// FormatConversation is the compatibility shim consumed by the agent: it folds
// an entire chat history into a single system message. The last entry is taken
// as the current user input, everything before it as context. With useTemplate
// false the raw input is wrapped without any stage instructions.
func (b *PromptBuilder) FormatConversation(messages []Message, useTemplate bool, stage Stage) ([]Message, error) {
	userInput := ""
	if len(messages) > 0 {
		userInput = messages[len(messages)-1].Content
	}
	var history []Message
	if len(messages) > 1 {
		history = messages[:len(messages)-1]
	}
	if stage == "" {
		stage = StageClarify
	}

	var content string
	if useTemplate {
		prompt, err := b.AnalysisPrompt(userInput, stage, b.ContextWindow(history, b.WindowSize))
		if err != nil {
			return nil, err
		}
		content = prompt
	} else {
		content = fmt.Sprintf("使用者輸入：%s", userInput)
	}

	return []Message{{Role: RoleSystem, Content: content}}, nil
}
