// internal/services/quest_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/drawatale/drawatale-backend/internal/config"
	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/drawatale/drawatale-backend/internal/utils"
)

// ProgressRequest records a user's standing on a quest. Unset fields keep
// their stored values.
type ProgressRequest struct {
	QuestID              string   `json:"quest_id"`
	Status               string   `json:"status"`
	CompletionPercentage *float64 `json:"completion_percentage"`
	BadgesEarned         []string `json:"badges_earned"`
}

// QuestService serves the quest catalog and per-user progress.
type QuestService struct {
	tables *config.Heuristics
	store  storage.ProgressStore
	locks  *LockManager
}

func NewQuestService(tables *config.Heuristics, store storage.ProgressStore, locks *LockManager) *QuestService {
	return &QuestService{tables: tables, store: store, locks: locks}
}

func (s *QuestService) Catalog() []models.Quest {
	out := make([]models.Quest, len(s.tables.Quests))
	for i, q := range s.tables.Quests {
		out[i] = toQuest(q)
	}
	return out
}

func (s *QuestService) Quest(id string) (models.Quest, error) {
	q, ok := s.tables.Quest(id)
	if !ok {
		return models.Quest{}, apperrors.NewNotFoundError("Quest not found", nil)
	}
	return toQuest(q), nil
}

func toQuest(q config.QuestEntry) models.Quest {
	return models.Quest{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Difficulty:  q.Difficulty,
		Type:        q.Type,
		Badge:       q.Badge,
	}
}

// UpdateProgress upserts the (user, quest) record. Completing a quest sets
// 100% and adds its badge, at most once.
func (s *QuestService) UpdateProgress(ctx context.Context, userID string, req ProgressRequest) (*models.QuestProgress, error) {
	quest, err := s.Quest(strings.TrimSpace(req.QuestID))
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.ProgressInProgress
	}
	if status != models.ProgressInProgress && status != models.ProgressCompleted {
		return nil, apperrors.NewValidationError("status must be in_progress or completed", nil)
	}
	if p := req.CompletionPercentage; p != nil && (*p < 0 || *p > 100) {
		return nil, apperrors.NewValidationError("completion_percentage must be between 0 and 100", nil)
	}

	var out *models.QuestProgress
	err = s.locks.WithLock(userID, func() error {
		existing, err := s.store.GetProgress(ctx, userID, quest.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		progress := &models.QuestProgress{
			UserID:       userID,
			QuestID:      quest.ID,
			Status:       status,
			BadgesEarned: []string{},
		}
		if existing != nil {
			progress.CompletionPercentage = existing.CompletionPercentage
			progress.BadgesEarned = appendUnique(progress.BadgesEarned, existing.BadgesEarned...)
		}
		if req.CompletionPercentage != nil {
			progress.CompletionPercentage = *req.CompletionPercentage
		}
		progress.BadgesEarned = appendUnique(progress.BadgesEarned, req.BadgesEarned...)
		if status == models.ProgressCompleted {
			progress.CompletionPercentage = 100
			if quest.Badge != "" {
				progress.BadgesEarned = appendUnique(progress.BadgesEarned, quest.Badge)
			}
		}

		if err := s.store.UpsertProgress(ctx, progress); err != nil {
			return err
		}
		out = progress
		return nil
	})
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to save progress", err)
	}

	if out.Status == models.ProgressCompleted {
		utils.GetLogger().Info("quest completed", map[string]interface{}{
			"user_id":  userID,
			"quest_id": quest.ID,
		})
	}
	return out, nil
}

func (s *QuestService) ListProgress(ctx context.Context, userID string) ([]models.QuestProgress, error) {
	progress, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to list progress", err)
	}
	if progress == nil {
		progress = []models.QuestProgress{}
	}
	return progress, nil
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		found := false
		for _, have := range list {
			if have == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
