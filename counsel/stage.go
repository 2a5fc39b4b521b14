package counsel

import (
	"fmt"
	"strings"
)

// Stage is one phase of the Socratic questioning protocol. The value is the
// display text injected into prompts and matched (as a substring) against the
// model's own 【stage】 marker output, so the constants double as the wire format.
type Stage string

const (
	StageClarify     Stage = "澄清問題"
	StageEvidence    Stage = "蒐集證據"
	StageReframe     Stage = "轉換思維"
	StageConsequence Stage = "後果與影響"
	StageClosure     Stage = "結案"
)

// StageOrder lists the stages in counseling progression order. The order is
// load-bearing: MatchStage adopts the first stage whose display text appears in
// the model's free-text stage field.
var StageOrder = []Stage{
	StageClarify,
	StageEvidence,
	StageReframe,
	StageConsequence,
	StageClosure,
}

// StageRule is the static per-stage rule record. Rules are defined once below
// and never mutated, so they are safe to read from any goroutine.
type StageRule struct {
	Goal              string
	AllowedTone       []string
	ForbiddenPatterns []string
	QuestionTypes     []string
	Examples          []string
}

var stageRules = map[Stage]StageRule{
	StageClarify: {
		Goal:              "根據來談者輸入，寒暄或是引導來談者說出情緒、情境，及造成這些情緒、情境的想法。",
		AllowedTone:       []string{"中性", "探索"},
		ForbiddenPatterns: []string{"很好", "需要幫助", "我覺得", "你應該", "信念"},
		QuestionTypes:     []string{"釐清式", "開放式"},
		Examples: []string{
			"歡迎你來，最近過得如何？",
			"今天想聊聊哪個部分？",
			"這次想討論的主題有特別的原因嗎？",
			"你可以更具體說明當時的情況嗎？",
			"那時候你的想法是什麼？",
		},
	},
	StageEvidence: {
		Goal:              "引導來談者回顧與該情境相關的正面情境。",
		AllowedTone:       []string{"引導", "具體"},
		ForbiddenPatterns: []string{"你做得很好", "還有其他問題嗎", "是否需要幫助"},
		QuestionTypes:     []string{"引導式"},
		Examples: []string{
			"你是否有發現與自己的預想不同的情況?",
			"在這樣的情形下，其他人有沒有注意到和你不同的地方？",
			"如果你從其他人的角度來看，他們會怎麼看待這件事？",
			"如果是你心中最理性的朋友看到這件事，他會怎麼看待這件事？",
			"就事實而言，有沒有發生過什麼事情顯示結果沒有那麼糟？",
			"別人是否曾因你的行為表達過肯定或感謝？",
			"如果只看可觀察的事實，你覺得別人的想法100%如你所想嗎？",
		},
	},
	StageReframe: {
		Goal:              "協助來談者透過相反情境，挑戰原有信念並思考更彈性的觀點。",
		AllowedTone:       []string{"反思", "理性"},
		ForbiddenPatterns: []string{"這樣很好", "放下吧", "你應該"},
		QuestionTypes:     []string{"假設式", "對比式"},
		Examples: []string{
			"如果換個角度思考，你覺得會有什麼不同？",
			"有沒有其他合理的詮釋？",
		},
	},
	StageConsequence: {
		Goal:              "引導來談者思考新信念或行為的長期影響。",
		AllowedTone:       []string{"反思性"},
		ForbiddenPatterns: []string{"你應該", "這樣比較好", "很棒"},
		QuestionTypes:     []string{"反思式", "推論式"},
		Examples: []string{
			"這樣的想法對你產生了什麼影響？",
			"長遠來看，這會讓你有什麼變化？",
		},
	},
	StageClosure: {
		Goal:              "總結對話重點。",
		AllowedTone:       []string{"正面"},
		ForbiddenPatterns: []string{"能再多說說嗎", "請舉例", "發生了什麼"},
		QuestionTypes:     []string{"反思式", "鼓勵式"},
		Examples: []string{
			"你覺得今天談話中哪個部分最有幫助？",
			"這次討論有讓你有新的體會嗎？",
		},
	},
}

// StageRuleFor returns the rule record for a stage, or ErrUnknownStage when the
// identifier is not one of the five defined stages.
func StageRuleFor(stage Stage) (StageRule, error) {
	rule, ok := stageRules[stage]
	if !ok {
		return StageRule{}, fmt.Errorf("%w: %q", ErrUnknownStage, string(stage))
	}
	return rule, nil
}

// MatchStage scans the stages in protocol order and returns the first whose
// display text occurs in the given free text. Model output rarely contains a
// bare stage name ("目前進入結案階段" is typical), hence substring matching.
func MatchStage(text string) (Stage, bool) {
	for _, stage := range StageOrder {
		if strings.Contains(text, string(stage)) {
			return stage, true
		}
	}
	return "", false
}
