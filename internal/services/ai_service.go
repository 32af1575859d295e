// internal/services/ai_service.go
package services

import (
	"context"

	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/storage"
)

// AnalyzeDrawingRequest names a saved drawing or carries a raw log.
type AnalyzeDrawingRequest struct {
	DrawingID string                  `json:"drawing_id,omitempty"`
	TimeLapse []models.TimeLapseEvent `json:"time_lapse,omitempty"`
	Duration  float64                 `json:"duration,omitempty"`
}

// AIService runs the analyzers against a user's stored documents.
type AIService struct {
	drawings  storage.DrawingStore
	interests *InterestAnalyzer
	progress  *ProgressAnalyzer
	hints     *HintService
	quests    *QuestService
}

func NewAIService(drawings storage.DrawingStore, interests *InterestAnalyzer, progress *ProgressAnalyzer, hints *HintService, quests *QuestService) *AIService {
	return &AIService{
		drawings:  drawings,
		interests: interests,
		progress:  progress,
		hints:     hints,
		quests:    quests,
	}
}

func (s *AIService) userDrawings(ctx context.Context, userID string) ([]models.Drawing, error) {
	drawings, err := s.drawings.ListDrawings(ctx, userID, storage.DefaultDrawingLimit)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to load drawings", err)
	}
	return drawings, nil
}

// Interests scores the user's current drawings.
func (s *AIService) Interests(ctx context.Context, userID string) (models.InterestProfile, error) {
	drawings, err := s.userDrawings(ctx, userID)
	if err != nil {
		return models.InterestProfile{}, err
	}
	return s.interests.Profile(drawings), nil
}

func (s *AIService) Recommendations(ctx context.Context, userID string) ([]models.Recommendation, error) {
	drawings, err := s.userDrawings(ctx, userID)
	if err != nil {
		return nil, err
	}
	scores := s.interests.AnalyzeDrawingPatterns(drawings)
	return s.interests.GetPersonalizedRecommendations(scores), nil
}

func (s *AIService) AnalyzeDrawing(ctx context.Context, userID string, req AnalyzeDrawingRequest) (*models.ProgressAnalysis, error) {
	if req.DrawingID == "" {
		return s.progress.AnalyzeDrawingProgress(req.TimeLapse, req.Duration), nil
	}

	d, err := s.drawings.GetDrawing(ctx, userID, req.DrawingID)
	if err != nil {
		return nil, drawingError(err, "failed to load drawing")
	}
	duration := 0.0
	if d.DrawingDuration != nil {
		duration = *d.DrawingDuration
	}
	return s.progress.AnalyzeDrawingProgress(d.TimeLapse, duration), nil
}

// DrawingHints tailors tips to the quest, the user's drawing count and
// their strongest interest. An empty questID gives general tips.
func (s *AIService) DrawingHints(ctx context.Context, userID, questID string) (models.DrawingHints, error) {
	questType := ""
	if questID != "" {
		q, err := s.quests.Quest(questID)
		if err != nil {
			return models.DrawingHints{}, err
		}
		questType = q.Type
	}

	drawings, err := s.userDrawings(ctx, userID)
	if err != nil {
		return models.DrawingHints{}, err
	}
	top := s.interests.TopInterests(s.interests.AnalyzeDrawingPatterns(drawings), 1)
	topInterest := ""
	if len(top) > 0 {
		topInterest = top[0]
	}
	return s.hints.Hints(questType, len(drawings), topInterest), nil
}
