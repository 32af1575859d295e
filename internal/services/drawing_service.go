// internal/services/drawing_service.go
package services

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"gorm.io/datatypes"
)

// CreateDrawingRequest is the payload for a new drawing.
type CreateDrawingRequest struct {
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	CanvasData      datatypes.JSON          `json:"canvas_data"`
	TimeLapse       []models.TimeLapseEvent `json:"time_lapse"`
	QuestID         *string                 `json:"quest_id"`
	DrawingDuration *float64                `json:"drawing_duration"`
}

type DrawingService struct {
	store storage.DrawingStore
}

func NewDrawingService(store storage.DrawingStore) *DrawingService {
	return &DrawingService{store: store}
}

func (s *DrawingService) Create(ctx context.Context, userID string, req CreateDrawingRequest) (*models.Drawing, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.NewValidationError("Drawing title is required", nil)
	}
	if len(req.CanvasData) == 0 {
		req.CanvasData = datatypes.JSON("{}")
	}
	if req.DrawingDuration != nil && *req.DrawingDuration < 0 {
		return nil, apperrors.NewValidationError("drawing_duration must not be negative", nil)
	}

	d := &models.Drawing{
		UserID:          userID,
		Title:           req.Title,
		Description:     req.Description,
		CanvasData:      req.CanvasData,
		TimeLapse:       req.TimeLapse,
		QuestID:         req.QuestID,
		DrawingDuration: req.DrawingDuration,
	}
	if err := s.store.CreateDrawing(ctx, d); err != nil {
		return nil, apperrors.NewProcessingError("failed to save drawing", err)
	}
	return d, nil
}

func (s *DrawingService) Get(ctx context.Context, userID, id string) (*models.Drawing, error) {
	d, err := s.store.GetDrawing(ctx, userID, id)
	if err != nil {
		return nil, drawingError(err, "failed to load drawing")
	}
	return d, nil
}

// List returns the user's drawings, newest first.
func (s *DrawingService) List(ctx context.Context, userID string) ([]models.Drawing, error) {
	drawings, err := s.store.ListDrawings(ctx, userID, storage.DefaultDrawingLimit)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to list drawings", err)
	}
	return drawings, nil
}

// Update applies a partial update.
func (s *DrawingService) Update(ctx context.Context, userID, id string, update models.DrawingUpdate) (*models.Drawing, error) {
	d, err := s.store.GetDrawing(ctx, userID, id)
	if err != nil {
		return nil, drawingError(err, "failed to load drawing")
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, apperrors.NewValidationError("Drawing title is required", nil)
	}
	update.Apply(d)
	if err := s.store.UpdateDrawing(ctx, d); err != nil {
		return nil, drawingError(err, "failed to update drawing")
	}
	return d, nil
}

func (s *DrawingService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteDrawing(ctx, userID, id); err != nil {
		return drawingError(err, "failed to delete drawing")
	}
	return nil
}

func drawingError(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFoundError("Drawing not found", err)
	}
	return apperrors.NewProcessingError(message, err)
}
