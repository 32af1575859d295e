// internal/services/story_service.go
package services

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/drawatale/drawatale-backend/internal/errors"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/drawatale/drawatale-backend/internal/storage"
	"github.com/drawatale/drawatale-backend/internal/utils"
)

const defaultChildAge = 7

// GenerateStoryRequest asks for a new story. Age overrides the profile age.
type GenerateStoryRequest struct {
	Prompt string `json:"prompt"`
	Age    *int   `json:"age,omitempty"`
}

// CreateStoryRequest saves a story written on the client.
type CreateStoryRequest struct {
	Title      string             `json:"title"`
	Content    string             `json:"content"`
	Pages      []models.StoryPage `json:"pages"`
	UserPrompt string             `json:"user_prompt"`
	Themes     []string           `json:"themes,omitempty"`
	ArtFocus   string             `json:"art_focus,omitempty"`
}

// StoryService generates and stores stories.
type StoryService struct {
	stories   storage.StoryStore
	drawings  storage.DrawingStore
	interests *InterestAnalyzer
	generator *StoryGenerator
}

func NewStoryService(stories storage.StoryStore, drawings storage.DrawingStore, interests *InterestAnalyzer, generator *StoryGenerator) *StoryService {
	return &StoryService{
		stories:   stories,
		drawings:  drawings,
		interests: interests,
		generator: generator,
	}
}

// Generate builds a story personalised with the user's drawing interests
// and saves it. Only storage failures are reported; generation itself
// always yields a story.
func (s *StoryService) Generate(ctx context.Context, user *models.User, req GenerateStoryRequest) (*models.Story, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperrors.NewValidationError("Story prompt is required", nil)
	}

	age := user.AgeOr(defaultChildAge)
	if req.Age != nil && *req.Age > 0 {
		age = *req.Age
	}

	drawings, err := s.drawings.ListDrawings(ctx, user.ID, storage.DefaultDrawingLimit)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to load drawings", err)
	}
	scores := s.interests.AnalyzeDrawingPatterns(drawings)
	top := s.interests.TopInterests(scores, 3)

	draft := s.generator.GenerateStory(ctx, prompt, age, top)

	story, err := newStory(user.ID, prompt, draft)
	if err != nil {
		return nil, err
	}
	if err := s.stories.CreateStory(ctx, story); err != nil {
		return nil, apperrors.NewProcessingError("failed to save story", err)
	}

	utils.GetLogger().Info("story generated", map[string]interface{}{
		"user_id":        user.ID,
		"story_id":       story.ID,
		"generated_with": story.GeneratedWith,
		"provider":       story.Provider,
		"interests":      top,
	})
	return story, nil
}

func newStory(userID, prompt string, draft *models.StoryDraft) (*models.Story, error) {
	content, err := json.Marshal(draft.Pages)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to encode story pages", err)
	}
	themes := draft.Themes
	if themes == nil {
		themes = []string{}
	}
	return &models.Story{
		UserID:        userID,
		Title:         draft.Title,
		Content:       string(content),
		Pages:         draft.Pages,
		UserPrompt:    prompt,
		Themes:        themes,
		ArtFocus:      draft.ArtFocus,
		GeneratedWith: draft.GeneratedWith,
		Provider:      draft.Provider,
	}, nil
}

// Create stores a client-authored story.
func (s *StoryService) Create(ctx context.Context, userID string, req CreateStoryRequest) (*models.Story, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.NewValidationError("Story title is required", nil)
	}
	pages := req.Pages
	if pages == nil {
		pages = []models.StoryPage{}
	}
	themes := req.Themes
	if themes == nil {
		themes = []string{}
	}
	story := &models.Story{
		UserID:     userID,
		Title:      req.Title,
		Content:    req.Content,
		Pages:      pages,
		UserPrompt: req.UserPrompt,
		Themes:     themes,
		ArtFocus:   req.ArtFocus,
	}
	if err := s.stories.CreateStory(ctx, story); err != nil {
		return nil, apperrors.NewProcessingError("failed to save story", err)
	}
	return story, nil
}

func (s *StoryService) List(ctx context.Context, userID string) ([]models.Story, error) {
	stories, err := s.stories.ListStories(ctx, userID, storage.DefaultStoryLimit)
	if err != nil {
		return nil, apperrors.NewProcessingError("failed to list stories", err)
	}
	return stories, nil
}
