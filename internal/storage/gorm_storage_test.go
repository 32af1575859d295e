// internal/storage/gorm_storage_test.go
package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/drawatale/drawatale-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})
	gdb, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return NewGormStore(gdb), mock
}

func TestGormStoreCreateUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "users"`).WillReturnResult(sqlmock.NewResult(1, 1))

	u := &models.User{Email: "kid@example.com", Username: "kid", UserType: "child", HashedPassword: "h", IsActive: true}
	require.NoError(t, store.CreateUser(context.Background(), u))
	assert.NotEmpty(t, u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreCreateUserDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`))

	err := store.CreateUser(context.Background(), &models.User{Email: "kid@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreGetUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "email", "username", "user_type", "hashed_password", "created_at", "is_active"}).
		AddRow("u1", "kid@example.com", "kid", "child", "h", time.Now(), true)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).WillReturnRows(rows)

	u, err := store.GetUserByEmail(context.Background(), "kid@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "h", u.HashedPassword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreGetDrawingNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "drawings" WHERE id = $1 AND user_id = $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetDrawing(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreDeleteDrawingNoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "drawings" WHERE id = $1 AND user_id = $2`)).
		WithArgs("d1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteDrawing(context.Background(), "u1", "d1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreListStories(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "title", "pages", "themes", "generated_with", "created_at"}).
		AddRow("s1", "u1", "Space Tale", `[{"content":"c","drawing_prompt":"d"}]`, `["space"]`, "ai", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "stories" WHERE user_id = $1 ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	stories, err := store.ListStories(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, []string{"space"}, stories[0].Themes)
	assert.Equal(t, "d", stories[0].Pages[0].DrawingPrompt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mongo", t.TempDir(), "")
	assert.Error(t, err)
}

func TestOpenGormStoreClosesPoolWhenMigrationFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectClose()

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_1",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})
	store, err := openGormStore("postgres", dialector)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.ErrorContains(t, err, "migrate schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}
