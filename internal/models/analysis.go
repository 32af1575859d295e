// internal/models/analysis.go
package models

import "encoding/json"

// Drawing pace classes.
const (
	PaceFast       = "fast"
	PaceModerate   = "moderate"
	PaceThoughtful = "thoughtful"
	PaceUnknown    = "unknown"
)

const StatusNoData = "no_data"

// ProgressAnalysis summarises a drawing's action log. When Status is
// StatusNoData it serialises as {"status":"no_data"} and the other fields
// carry no meaning.
type ProgressAnalysis struct {
	Status          string         `json:"-"`
	TotalActions    int            `json:"total_actions"`
	DrawingDuration float64        `json:"drawing_duration"`
	ToolsUsed       map[string]int `json:"tools_used"`
	DrawingPace     string         `json:"drawing_pace"`
	ComplexityScore float64        `json:"complexity_score"`
	Suggestions     []string       `json:"suggestions"`
}

// NoData reports whether the analysis is the empty-log sentinel.
func (p *ProgressAnalysis) NoData() bool {
	return p.Status == StatusNoData
}

func (p ProgressAnalysis) MarshalJSON() ([]byte, error) {
	if p.Status == StatusNoData {
		return []byte(`{"status":"no_data"}`), nil
	}
	type plain ProgressAnalysis
	return json.Marshal(plain(p))
}

// Recommendation types.
const (
	RecommendationQuest = "quest"
	RecommendationStory = "story"
)

// Recommendation is a suggested quest or story prompt.
type Recommendation struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	QuestID     string `json:"quest_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
}

// InterestProfile is the API view of interest scores.
type InterestProfile struct {
	Interests    map[string]float64 `json:"interests"`
	TopInterests []string           `json:"top_interests"`
}

// DrawingHints are quest tips tuned to the user's history.
type DrawingHints struct {
	Hints        []string `json:"hints"`
	SkillLevel   string   `json:"skill_level"`
	Personalized bool     `json:"personalized"`
}
