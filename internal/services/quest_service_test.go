// internal/services/quest_service_test.go
package services

import (
	"context"
	"testing"

	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuestService(t *testing.T) *QuestService {
	locks := NewLockManager()
	t.Cleanup(locks.Stop)
	return NewQuestService(testTables(), newTestStore(t), locks)
}

func TestQuestCatalog(t *testing.T) {
	s := newTestQuestService(t)

	catalog := s.Catalog()
	require.Len(t, catalog, 3)
	assert.Equal(t, "The Quest for Lines", catalog[0].Title)
	assert.Equal(t, "shape_drawing", catalog[1].Type)
	assert.Equal(t, "intermediate", catalog[2].Difficulty)

	_, err := s.Quest("quest_99")
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestUpdateProgressAwardsBadgeOnce(t *testing.T) {
	s := newTestQuestService(t)
	ctx := context.Background()

	pct := 40.0
	p, err := s.UpdateProgress(ctx, "u1", ProgressRequest{QuestID: "quest_1", CompletionPercentage: &pct})
	require.NoError(t, err)
	assert.Equal(t, models.ProgressInProgress, p.Status)
	assert.Equal(t, 40.0, p.CompletionPercentage)
	assert.Empty(t, p.BadgesEarned)

	p, err = s.UpdateProgress(ctx, "u1", ProgressRequest{QuestID: "quest_1", Status: models.ProgressCompleted})
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.CompletionPercentage)
	assert.Equal(t, []string{"Line Master"}, p.BadgesEarned)

	p, err = s.UpdateProgress(ctx, "u1", ProgressRequest{QuestID: "quest_1", Status: models.ProgressCompleted, BadgesEarned: []string{"Line Master"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Line Master"}, p.BadgesEarned)

	list, err := s.ListProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpdateProgressValidation(t *testing.T) {
	s := newTestQuestService(t)
	ctx := context.Background()

	_, err := s.UpdateProgress(ctx, "u1", ProgressRequest{QuestID: "nope"})
	assert.True(t, apperrors.IsNotFoundError(err))

	_, err = s.UpdateProgress(ctx, "u1", ProgressRequest{QuestID: "quest_2", Status: "paused"})
	assert.True(t, apperrors.IsValidationError(err))

	bad := 140.0
	_, err = s.UpdateProgress(ctx, "u1", ProgressRequest{QuestID: "quest_2", CompletionPercentage: &bad})
	assert.True(t, apperrors.IsValidationError(err))
}
