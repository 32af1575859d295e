// internal/storage/gorm_storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drawatale/drawatale-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// GormStore implements Store on SQLite or Postgres.
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore connects with driver ("sqlite" or "postgres") and migrates the schema.
func OpenGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return openGormStore(driver, dialector)
}

// openGormStore releases the connection pool when migration fails.
func openGormStore(driver string, dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	store := NewGormStore(db)
	if err := store.Migrate(); err != nil {
		if closeErr := store.Close(); closeErr != nil {
			return nil, errors.Join(err, closeErr)
		}
		return nil, err
	}
	return store, nil
}

// NewGormStore wraps an open connection without migrating.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&models.User{}, &models.Drawing{}, &models.Story{}, &models.QuestProgress{}); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicate
	default:
		return err
	}
}

// isUniqueViolation catches drivers that do not translate constraint errors.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	stamp(&user.CreatedAt, nil)
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) CreateDrawing(ctx context.Context, drawing *models.Drawing) error {
	if drawing.ID == "" {
		drawing.ID = newID()
	}
	stamp(&drawing.CreatedAt, &drawing.UpdatedAt)
	return translate(s.db.WithContext(ctx).Create(drawing).Error)
}

func (s *GormStore) GetDrawing(ctx context.Context, userID, id string) (*models.Drawing, error) {
	var d models.Drawing
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (s *GormStore) ListDrawings(ctx context.Context, userID string, limit int) ([]models.Drawing, error) {
	var out []models.Drawing
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limitOr(limit, DefaultDrawingLimit)).
		Find(&out).Error
	return out, translate(err)
}

func (s *GormStore) UpdateDrawing(ctx context.Context, drawing *models.Drawing) error {
	stamp(nil, &drawing.UpdatedAt)
	res := s.db.WithContext(ctx).
		Model(&models.Drawing{}).
		Where("id = ? AND user_id = ?", drawing.ID, drawing.UserID).
		Select("title", "description", "canvas_data", "time_lapse", "drawing_duration", "updated_at").
		Updates(drawing)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteDrawing(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Drawing{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateStory(ctx context.Context, story *models.Story) error {
	if story.ID == "" {
		story.ID = newID()
	}
	stamp(&story.CreatedAt, nil)
	return translate(s.db.WithContext(ctx).Create(story).Error)
}

func (s *GormStore) ListStories(ctx context.Context, userID string, limit int) ([]models.Story, error) {
	var out []models.Story
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limitOr(limit, DefaultStoryLimit)).
		Find(&out).Error
	return out, translate(err)
}

// UpsertProgress inserts or updates on the (user_id, quest_id) unique index.
func (s *GormStore) UpsertProgress(ctx context.Context, progress *models.QuestProgress) error {
	if progress.ID == "" {
		progress.ID = newID()
	}
	stamp(&progress.CreatedAt, &progress.UpdatedAt)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "quest_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "completion_percentage", "badges_earned", "updated_at"}),
	}).Create(progress).Error
	if err != nil {
		return translate(err)
	}
	// On conflict the row keeps its original id and created_at.
	stored, err := s.GetProgress(ctx, progress.UserID, progress.QuestID)
	if err != nil {
		return err
	}
	*progress = *stored
	return nil
}

func (s *GormStore) GetProgress(ctx context.Context, userID, questID string) (*models.QuestProgress, error) {
	var p models.QuestProgress
	if err := s.db.WithContext(ctx).Where("user_id = ? AND quest_id = ?", userID, questID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListProgress(ctx context.Context, userID string) ([]models.QuestProgress, error) {
	var out []models.QuestProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(DefaultProgressLimit).
		Find(&out).Error
	return out, translate(err)
}

// Open picks the backend named by driver.
func Open(driver, dataDir, dsn string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(dataDir)
	case "sqlite", "postgres":
		return OpenGormStore(driver, dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

var _ Store = (*GormStore)(nil)
var _ Store = (*FileStore)(nil)

// pingTimeout bounds the health probe.
const pingTimeout = 2 * time.Second

// Ping checks the database connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
