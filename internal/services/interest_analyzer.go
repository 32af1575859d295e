// internal/services/interest_analyzer.go
package services

import (
	"sort"
	"strings"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/models"
)

const maxInterestScore = 100.0

// InterestAnalyzer scores drawing text against the interest categories and
// maps the strongest categories to suggestions. Scores are a keyword
// frequency per hundred words; ties are common and short texts score zero.
type InterestAnalyzer struct {
	tables *config.Heuristics
}

func NewInterestAnalyzer(tables *config.Heuristics) *InterestAnalyzer {
	return &InterestAnalyzer{tables: tables}
}

// AnalyzeDrawingPatterns returns a score in [0,100] for every category.
// An empty drawing list scores 0 everywhere.
func (a *InterestAnalyzer) AnalyzeDrawingPatterns(drawings []models.Drawing) map[string]float64 {
	texts := make([]string, len(drawings))
	for i := range drawings {
		texts[i] = strings.ToLower(drawings[i].Text())
	}

	totalWords := 0
	for _, t := range texts {
		totalWords += len(strings.Fields(t))
	}
	if totalWords < 1 {
		totalWords = 1
	}

	scores := make(map[string]float64, len(a.tables.InterestCategories))
	for _, category := range a.tables.InterestCategories {
		matches := 0
		for _, t := range texts {
			for _, kw := range category.Keywords {
				matches += strings.Count(t, kw)
			}
		}
		score := float64(matches) / float64(totalWords) * 100
		if score > maxInterestScore {
			score = maxInterestScore
		}
		scores[category.Name] = score
	}
	return scores
}

// RankCategories orders categories by score, highest first. Equal scores
// keep table order.
func (a *InterestAnalyzer) RankCategories(interests map[string]float64) []string {
	names := a.tables.CategoryNames()
	sort.SliceStable(names, func(i, j int) bool {
		return interests[names[i]] > interests[names[j]]
	})
	return names
}

// TopInterests returns up to n of the best categories with a positive score.
func (a *InterestAnalyzer) TopInterests(interests map[string]float64, n int) []string {
	top := []string{}
	for _, name := range a.RankCategories(interests) {
		if len(top) >= n {
			break
		}
		if interests[name] > 0 {
			top = append(top, name)
		}
	}
	return top
}

// Profile bundles the scores with the top categories.
func (a *InterestAnalyzer) Profile(drawings []models.Drawing) models.InterestProfile {
	interests := a.AnalyzeDrawingPatterns(drawings)
	return models.InterestProfile{
		Interests:    interests,
		TopInterests: a.TopInterests(interests, a.tables.Recommendations.MaxCategories),
	}
}

// GetPersonalizedRecommendations walks the top categories and collects
// their quest suggestions, then their story prompts, stopping at the
// result limit. Suggested quests are practice themes outside the quest
// catalog, so a user's catalog progress never hides one.
func (a *InterestAnalyzer) GetPersonalizedRecommendations(interests map[string]float64) []models.Recommendation {
	rec := a.tables.Recommendations

	out := []models.Recommendation{}
	for _, category := range a.TopInterests(interests, rec.MaxCategories) {
		for _, q := range rec.Quests[category] {
			out = append(out, models.Recommendation{
				Type:        models.RecommendationQuest,
				Category:    category,
				QuestID:     q.ID,
				Title:       q.Title,
				Description: q.Description,
			})
		}
		for _, prompt := range rec.Stories[category] {
			out = append(out, models.Recommendation{
				Type:     models.RecommendationStory,
				Category: category,
				Prompt:   prompt,
			})
		}
	}

	if len(out) > rec.MaxResults {
		out = out[:rec.MaxResults]
	}
	return out
}
