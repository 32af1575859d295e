// internal/config/heuristics.go
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed heuristics.yaml
var defaultHeuristicsYAML []byte

// KeywordGroup is a named keyword list. Matching is case-insensitive substring.
type KeywordGroup struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// ThemeChoice maps a theme to a character or setting string.
type ThemeChoice struct {
	Theme string `yaml:"theme"`
	Value string `yaml:"value"`
}

// KeywordChoice maps a raw prompt keyword to a character string.
type KeywordChoice struct {
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

type QuestSuggestion struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type RecommendationTables struct {
	MaxCategories int                          `yaml:"max_categories"`
	MaxResults    int                          `yaml:"max_results"`
	Quests        map[string][]QuestSuggestion `yaml:"quests"`
	Stories       map[string][]string          `yaml:"stories"`
}

type ProgressSuggestions struct {
	TryRainbow        string `yaml:"try_rainbow"`
	TryBucket         string `yaml:"try_bucket"`
	SlowDown          string `yaml:"slow_down"`
	PraiseDetail      string `yaml:"praise_detail"`
	AddElements       string `yaml:"add_elements"`
	PraiseMasterpiece string `yaml:"praise_masterpiece"`
}

// ProgressThresholds holds the pace cutoffs and complexity weights.
type ProgressThresholds struct {
	FastAPM        float64             `yaml:"fast_actions_per_minute"`
	ModerateAPM    float64             `yaml:"moderate_actions_per_minute"`
	ActionWeight   float64             `yaml:"action_weight"`
	ToolWeight     float64             `yaml:"tool_weight"`
	MaxComplexity  float64             `yaml:"max_complexity"`
	LowComplexity  float64             `yaml:"low_complexity"`
	HighComplexity float64             `yaml:"high_complexity"`
	MaxSuggestions int                 `yaml:"max_suggestions"`
	Suggestions    ProgressSuggestions `yaml:"suggestions"`
}

type QuestEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Difficulty  string `yaml:"difficulty"`
	Type        string `yaml:"type"`
	Badge       string `yaml:"badge"`
}

type HintTables struct {
	IntermediateFrom int                 `yaml:"intermediate_from"`
	AdvancedFrom     int                 `yaml:"advanced_from"`
	MaxHints         int                 `yaml:"max_hints"`
	ByType           map[string][]string `yaml:"by_type"`
	Default          []string            `yaml:"default"`
	InterestTemplate string              `yaml:"interest_template"`
}

// Heuristics is the full set of lookup tables used by the analyzers.
type Heuristics struct {
	Themes             []KeywordGroup       `yaml:"themes"`
	DefaultThemes      []string             `yaml:"default_themes"`
	Characters         []ThemeChoice        `yaml:"characters"`
	CharacterFallbacks []KeywordChoice      `yaml:"character_fallbacks"`
	DefaultCharacter   string               `yaml:"default_character"`
	Settings           []ThemeChoice        `yaml:"settings"`
	DefaultSetting     string               `yaml:"default_setting"`
	InterestCategories []KeywordGroup       `yaml:"interest_categories"`
	Recommendations    RecommendationTables `yaml:"recommendations"`
	Progress           ProgressThresholds   `yaml:"progress"`
	Quests             []QuestEntry         `yaml:"quests"`
	Hints              HintTables           `yaml:"hints"`
}

// LoadHeuristics parses the tables at path, or the embedded defaults when
// path is empty.
func LoadHeuristics(path string) (*Heuristics, error) {
	data := defaultHeuristicsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read heuristics file: %w", err)
		}
		data = b
	}
	return ParseHeuristics(data)
}

func ParseHeuristics(data []byte) (*Heuristics, error) {
	var h Heuristics
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse heuristics: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}

// DefaultHeuristics returns the embedded tables. It panics if they are invalid.
func DefaultHeuristics() *Heuristics {
	h, err := ParseHeuristics(defaultHeuristicsYAML)
	if err != nil {
		panic(err)
	}
	return h
}

func (h *Heuristics) Validate() error {
	if len(h.Themes) == 0 {
		return fmt.Errorf("heuristics: no themes defined")
	}
	if len(h.DefaultThemes) == 0 {
		return fmt.Errorf("heuristics: default_themes is empty")
	}
	if h.DefaultCharacter == "" || h.DefaultSetting == "" {
		return fmt.Errorf("heuristics: default character and setting are required")
	}
	if len(h.InterestCategories) == 0 {
		return fmt.Errorf("heuristics: no interest categories defined")
	}
	seen := make(map[string]bool, len(h.InterestCategories))
	for _, c := range h.InterestCategories {
		if seen[c.Name] {
			return fmt.Errorf("heuristics: duplicate interest category %q", c.Name)
		}
		seen[c.Name] = true
	}
	if h.Recommendations.MaxResults <= 0 || h.Recommendations.MaxCategories <= 0 {
		return fmt.Errorf("heuristics: recommendation limits must be positive")
	}
	p := h.Progress
	if p.FastAPM <= p.ModerateAPM {
		return fmt.Errorf("heuristics: fast pace threshold must exceed moderate")
	}
	if p.MaxSuggestions <= 0 || p.MaxComplexity <= 0 {
		return fmt.Errorf("heuristics: progress limits must be positive")
	}
	return nil
}

// CategoryNames returns interest category names in table order.
func (h *Heuristics) CategoryNames() []string {
	names := make([]string, len(h.InterestCategories))
	for i, c := range h.InterestCategories {
		names[i] = c.Name
	}
	return names
}

// Quest looks up a catalog quest by id.
func (h *Heuristics) Quest(id string) (QuestEntry, bool) {
	for _, q := range h.Quests {
		if q.ID == id {
			return q, true
		}
	}
	return QuestEntry{}, false
}
