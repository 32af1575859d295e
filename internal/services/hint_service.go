// internal/services/hint_service.go
package services

import (
	"fmt"

	"github.com/drawatale/drawatale-backend/internal/config"
	"github.com/drawatale/drawatale-backend/internal/models"
)

// Skill levels reported with drawing hints.
const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
)

// HintService picks drawing tips for a quest.
type HintService struct {
	tables *config.Heuristics
}

func NewHintService(tables *config.Heuristics) *HintService {
	return &HintService{tables: tables}
}

// SkillLevel grades a user by how many drawings they have saved.
func (s *HintService) SkillLevel(drawingCount int) string {
	h := s.tables.Hints
	switch {
	case drawingCount >= h.AdvancedFrom:
		return SkillAdvanced
	case drawingCount >= h.IntermediateFrom:
		return SkillIntermediate
	default:
		return SkillBeginner
	}
}

// Hints returns tips for questType, or general tips for an unknown type.
// When topInterest is set the last slot is a tip about it.
func (s *HintService) Hints(questType string, drawingCount int, topInterest string) models.DrawingHints {
	h := s.tables.Hints
	pool, ok := h.ByType[questType]
	if !ok || len(pool) == 0 {
		pool = h.Default
	}

	limit := h.MaxHints
	personalized := topInterest != "" && h.InterestTemplate != ""
	if personalized {
		limit--
	}
	if limit > len(pool) {
		limit = len(pool)
	}
	if limit < 0 {
		limit = 0
	}

	hints := append([]string{}, pool[:limit]...)
	if personalized {
		hints = append(hints, fmt.Sprintf(h.InterestTemplate, topInterest))
	}

	return models.DrawingHints{
		Hints:        hints,
		SkillLevel:   s.SkillLevel(drawingCount),
		Personalized: personalized,
	}
}
