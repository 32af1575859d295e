// internal/services/hint_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkillLevel(t *testing.T) {
	s := NewHintService(testTables())

	assert.Equal(t, SkillBeginner, s.SkillLevel(0))
	assert.Equal(t, SkillBeginner, s.SkillLevel(4))
	assert.Equal(t, SkillIntermediate, s.SkillLevel(5))
	assert.Equal(t, SkillIntermediate, s.SkillLevel(14))
	assert.Equal(t, SkillAdvanced, s.SkillLevel(15))
}

func TestHints(t *testing.T) {
	s := NewHintService(testTables())
	h := testTables().Hints

	plain := s.Hints("color_theory", 2, "")
	assert.Equal(t, h.ByType["color_theory"], plain.Hints)
	assert.False(t, plain.Personalized)

	personal := s.Hints("line_drawing", 20, "space")
	assert.Len(t, personal.Hints, 3)
	assert.Equal(t, h.ByType["line_drawing"][:2], personal.Hints[:2])
	assert.Contains(t, personal.Hints[2], "space")
	assert.True(t, personal.Personalized)
	assert.Equal(t, SkillAdvanced, personal.SkillLevel)

	general := s.Hints("", 0, "")
	assert.Equal(t, h.Default, general.Hints)
}
