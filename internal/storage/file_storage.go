// internal/storage/file_storage.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drawatale/drawatale-backend/internal/models"
)

const (
	usersDir    = "users"
	drawingsDir = "drawings"
	storiesDir  = "stories"
	progressDir = "progress"
)

// FileStorage reads and writes JSON documents under BaseDir with per-file
// locks, atomic replacement and a small read cache.
type FileStorage struct {
	BaseDir string

	fileLocks sync.Map // path -> *sync.RWMutex

	cache        map[string]*CacheEntry
	cacheMutex   sync.RWMutex
	cacheExpiry  time.Duration
	maxCacheSize int
}

type CacheEntry struct {
	Data      []byte
	Timestamp time.Time
}

func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStorage{
		BaseDir:      baseDir,
		cache:        make(map[string]*CacheEntry),
		cacheExpiry:  5 * time.Minute,
		maxCacheSize: 256,
	}, nil
}

func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

// SaveJSONFile atomically writes data as JSON to dirPath/filename.
func (fs *FileStorage) SaveJSONFile(dirPath, filename string, data interface{}) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}

	fullDirPath := filepath.Join(fs.BaseDir, dirPath)
	fullPath := filepath.Join(fullDirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(fullDirPath, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replace file: %w", err)
	}

	fs.invalidateCache(fullPath)
	return nil
}

// LoadJSONFile decodes dirPath/filename into v. A missing file yields ErrNotFound.
func (fs *FileStorage) LoadJSONFile(dirPath, filename string, v interface{}) error {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	content, ok := fs.cached(fullPath)
	if !ok {
		lock := fs.getFileLock(fullPath)
		lock.RLock()
		data, err := os.ReadFile(fullPath)
		lock.RUnlock()
		if err != nil {
			if os.IsNotExist(err) {
				return ErrNotFound
			}
			return fmt.Errorf("read %s: %w", filename, err)
		}
		content = data
		fs.updateCache(fullPath, content)
	}

	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}
	return nil
}

// DeleteFile removes dirPath/filename. A missing file yields ErrNotFound.
func (fs *FileStorage) DeleteFile(dirPath, filename string) error {
	fullPath := filepath.Join(fs.BaseDir, dirPath, filename)

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	fs.invalidateCache(fullPath)
	return nil
}

// ListFiles returns the .json file names in dirPath. A missing directory is empty.
func (fs *FileStorage) ListFiles(dirPath string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fs.BaseDir, dirPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dirPath, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

func (fs *FileStorage) cached(path string) ([]byte, bool) {
	fs.cacheMutex.RLock()
	defer fs.cacheMutex.RUnlock()
	if entry, ok := fs.cache[path]; ok && time.Since(entry.Timestamp) < fs.cacheExpiry {
		return entry.Data, true
	}
	return nil, false
}

func (fs *FileStorage) updateCache(path string, data []byte) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()

	fs.cache[path] = &CacheEntry{Data: data, Timestamp: time.Now()}

	if len(fs.cache) > fs.maxCacheSize {
		var oldestKey string
		var oldestTime time.Time
		for key, entry := range fs.cache {
			if oldestKey == "" || entry.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = entry.Timestamp
			}
		}
		delete(fs.cache, oldestKey)
	}
}

func (fs *FileStorage) invalidateCache(path string) {
	fs.cacheMutex.Lock()
	defer fs.cacheMutex.Unlock()
	delete(fs.cache, path)
}

// userRecord persists the password hash that models.User hides from JSON.
type userRecord struct {
	models.User
	HashedPassword string `json:"hashed_password"`
}

// FileStore implements Store on top of FileStorage. Documents owned by a
// user live in a per-user directory.
type FileStore struct {
	files *FileStorage
	// serialises user creation so email uniqueness holds
	usersMu sync.Mutex
}

func NewFileStore(baseDir string) (*FileStore, error) {
	files, err := NewFileStorage(baseDir)
	if err != nil {
		return nil, err
	}
	return &FileStore{files: files}, nil
}

func (s *FileStore) Close() error { return nil }

func docName(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", ErrNotFound
	}
	return id + ".json", nil
}

func (s *FileStore) CreateUser(ctx context.Context, user *models.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, err := s.getUserByEmailLocked(user.Email); err == nil {
		return ErrDuplicate
	} else if err != ErrNotFound {
		return err
	}

	if user.ID == "" {
		user.ID = newID()
	}
	stamp(&user.CreatedAt, nil)
	return s.files.SaveJSONFile(usersDir, user.ID+".json", userRecord{User: *user, HashedPassword: user.HashedPassword})
}

func (s *FileStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	name, err := docName(id)
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := s.files.LoadJSONFile(usersDir, name, &rec); err != nil {
		return nil, err
	}
	user := rec.User
	user.HashedPassword = rec.HashedPassword
	return &user, nil
}

func (s *FileStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUserByEmailLocked(email)
}

func (s *FileStore) getUserByEmailLocked(email string) (*models.User, error) {
	names, err := s.files.ListFiles(usersDir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		var rec userRecord
		if err := s.files.LoadJSONFile(usersDir, name, &rec); err != nil {
			continue
		}
		if rec.Email == email {
			user := rec.User
			user.HashedPassword = rec.HashedPassword
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) CreateDrawing(ctx context.Context, drawing *models.Drawing) error {
	if drawing.ID == "" {
		drawing.ID = newID()
	}
	stamp(&drawing.CreatedAt, &drawing.UpdatedAt)
	return s.files.SaveJSONFile(filepath.Join(drawingsDir, drawing.UserID), drawing.ID+".json", drawing)
}

func (s *FileStore) GetDrawing(ctx context.Context, userID, id string) (*models.Drawing, error) {
	name, err := docName(id)
	if err != nil {
		return nil, err
	}
	if _, err := docName(userID); err != nil {
		return nil, err
	}
	var d models.Drawing
	if err := s.files.LoadJSONFile(filepath.Join(drawingsDir, userID), name, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *FileStore) ListDrawings(ctx context.Context, userID string, limit int) ([]models.Drawing, error) {
	out, err := loadAll[models.Drawing](s.files, filepath.Join(drawingsDir, userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limitOr(limit, DefaultDrawingLimit)), nil
}

func (s *FileStore) UpdateDrawing(ctx context.Context, drawing *models.Drawing) error {
	if _, err := s.GetDrawing(ctx, drawing.UserID, drawing.ID); err != nil {
		return err
	}
	stamp(nil, &drawing.UpdatedAt)
	return s.files.SaveJSONFile(filepath.Join(drawingsDir, drawing.UserID), drawing.ID+".json", drawing)
}

func (s *FileStore) DeleteDrawing(ctx context.Context, userID, id string) error {
	name, err := docName(id)
	if err != nil {
		return err
	}
	if _, err := docName(userID); err != nil {
		return err
	}
	return s.files.DeleteFile(filepath.Join(drawingsDir, userID), name)
}

func (s *FileStore) CreateStory(ctx context.Context, story *models.Story) error {
	if story.ID == "" {
		story.ID = newID()
	}
	stamp(&story.CreatedAt, nil)
	return s.files.SaveJSONFile(filepath.Join(storiesDir, story.UserID), story.ID+".json", story)
}

func (s *FileStore) ListStories(ctx context.Context, userID string, limit int) ([]models.Story, error) {
	out, err := loadAll[models.Story](s.files, filepath.Join(storiesDir, userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limitOr(limit, DefaultStoryLimit)), nil
}

func (s *FileStore) UpsertProgress(ctx context.Context, progress *models.QuestProgress) error {
	name, err := docName(progress.QuestID)
	if err != nil {
		return err
	}
	dir := filepath.Join(progressDir, progress.UserID)

	var existing models.QuestProgress
	switch err := s.files.LoadJSONFile(dir, name, &existing); err {
	case nil:
		progress.ID = existing.ID
		progress.CreatedAt = existing.CreatedAt
	case ErrNotFound:
		if progress.ID == "" {
			progress.ID = newID()
		}
	default:
		return err
	}
	stamp(&progress.CreatedAt, &progress.UpdatedAt)
	return s.files.SaveJSONFile(dir, name, progress)
}

func (s *FileStore) GetProgress(ctx context.Context, userID, questID string) (*models.QuestProgress, error) {
	name, err := docName(questID)
	if err != nil {
		return nil, err
	}
	var p models.QuestProgress
	if err := s.files.LoadJSONFile(filepath.Join(progressDir, userID), name, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *FileStore) ListProgress(ctx context.Context, userID string) ([]models.QuestProgress, error) {
	out, err := loadAll[models.QuestProgress](s.files, filepath.Join(progressDir, userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return truncate(out, DefaultProgressLimit), nil
}

func loadAll[T any](files *FileStorage, dir string) ([]T, error) {
	names, err := files.ListFiles(dir)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(names))
	for _, name := range names {
		var v T
		if err := files.LoadJSONFile(dir, name, &v); err != nil {
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func truncate[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

// Ping checks that the data directory is reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.files.BaseDir)
	return err
}
