package counsel

import "strings"

// Unknown is the per-field sentinel for analysis values the model did not emit.
const Unknown = "未知"

// Analysis holds the structured signals extracted from one generated response.
// Fields default to Unknown; extraction is best-effort and never fails.
type Analysis struct {
	Emotion string `json:"emotion"`
	Context string `json:"context"`
	Belief  string `json:"belief"`
	Stage   string `json:"stage"`
}

// EmptyAnalysis returns an Analysis with every field set to the sentinel.
func EmptyAnalysis() Analysis {
	return Analysis{Emotion: Unknown, Context: Unknown, Belief: Unknown, Stage: Unknown}
}

// IsClosure reports whether the stage field names the closure stage. Same
// substring test as MatchStage, kept separately callable so closure detection
// does not depend on whether the transition was applied.
func (a Analysis) IsClosure() bool {
	return a.Stage != Unknown && strings.Contains(a.Stage, string(StageClosure))
}

// analysisMarkers maps each Analysis field setter to its bracketed marker token.
var analysisMarkers = []struct {
	marker string
	assign func(*Analysis, string)
}{
	{"【emotion】", func(a *Analysis, v string) { a.Emotion = v }},
	{"【context】", func(a *Analysis, v string) { a.Context = v }},
	{"【belief】", func(a *Analysis, v string) { a.Belief = v }},
	{"【stage】", func(a *Analysis, v string) { a.Stage = v }},
}

// ExtractAnalysis parses the bracketed analysis markers out of a generated
// response. For each field the text after the first occurrence of its marker,
// up to the next newline, becomes the value; a missing marker leaves the
// Unknown sentinel in place. Fields degrade independently.
func ExtractAnalysis(response string) Analysis {
	analysis := EmptyAnalysis()
	for _, m := range analysisMarkers {
		_, after, found := strings.Cut(response, m.marker)
		if !found {
			continue
		}
		value, _, _ := strings.Cut(after, "\n")
		m.assign(&analysis, strings.TrimSpace(value))
	}
	return analysis
}
