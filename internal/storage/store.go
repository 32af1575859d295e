// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("storage: record not found")
	ErrDuplicate = errors.New("storage: duplicate record")
)

// Default list sizes used when callers pass a non-positive limit.
const (
	DefaultDrawingLimit  = 100
	DefaultStoryLimit    = 50
	DefaultProgressLimit = 100
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// DrawingStore scopes every drawing to its owner.
type DrawingStore interface {
	CreateDrawing(ctx context.Context, drawing *models.Drawing) error
	GetDrawing(ctx context.Context, userID, id string) (*models.Drawing, error)
	ListDrawings(ctx context.Context, userID string, limit int) ([]models.Drawing, error)
	UpdateDrawing(ctx context.Context, drawing *models.Drawing) error
	DeleteDrawing(ctx context.Context, userID, id string) error
}

type StoryStore interface {
	CreateStory(ctx context.Context, story *models.Story) error
	ListStories(ctx context.Context, userID string, limit int) ([]models.Story, error)
}

// ProgressStore keeps one record per (user, quest).
type ProgressStore interface {
	UpsertProgress(ctx context.Context, progress *models.QuestProgress) error
	GetProgress(ctx context.Context, userID, questID string) (*models.QuestProgress, error)
	ListProgress(ctx context.Context, userID string) ([]models.QuestProgress, error)
}

// Store is the document store used by the services.
type Store interface {
	UserStore
	DrawingStore
	StoryStore
	ProgressStore
	Close() error
}

func newID() string {
	return uuid.NewString()
}

func stamp(created *time.Time, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func limitOr(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
